// Package catalog persists tracks, collections and their memberships in SQLite.
//
// Every operation runs under the store's exclusive lock, so at most one logical
// operation touches the database at a time. Callers block until the lock is
// free or their context is done.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/llehouerou/beatbank/internal/probe"
)

// DurationFunc computes the playback duration of an audio file in whole
// seconds. A non-nil error means the duration is unknown.
type DurationFunc func(path string) (int, error)

// Store is the single handle to the catalog database.
type Store struct {
	db       *sql.DB
	sem      chan struct{}
	closed   bool // guarded by sem
	fileLock *flock.Flock

	duration DurationFunc
	log      *zap.Logger
	now      func() time.Time

	closeOnce sync.Once
	closeErr  error
}

// Option configures a Store.
type Option func(*Store)

// WithDurationFunc replaces the duration probe used by InsertTrack.
func WithDurationFunc(fn DurationFunc) Option {
	return func(s *Store) {
		if fn != nil {
			s.duration = fn
		}
	}
}

// WithLogger sets the logger used by the store.
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source used for date_created.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open opens (creating if needed) the catalog database at path.
// The file is locked for the lifetime of the Store; a second process opening
// the same catalog fails with ErrConnection.
func Open(path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: ensure catalog directory: %w", ErrConnection, err)
	}

	fileLock := flock.New(path + ".lock")
	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("%w: lock catalog: %w", ErrConnection, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: catalog %s is in use by another process", ErrConnection, path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		_ = fileLock.Unlock()
		return nil, fmt.Errorf("%w: open sqlite db: %w", ErrConnection, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		_ = fileLock.Unlock()
		return nil, fmt.Errorf("%w: apply pragma journal_mode: %w", ErrConnection, err)
	}

	s, err := New(db, opts...)
	if err != nil {
		_ = db.Close()
		_ = fileLock.Unlock()
		return nil, err
	}
	s.fileLock = fileLock
	return s, nil
}

// New wraps an already opened database, applying pragmas and the schema.
// On success the Store owns db and closes it in Close. On error db is left
// open for the caller.
func New(db *sql.DB, opts ...Option) (*Store, error) {
	// One connection: the catalog is a single shared handle, and an in-memory
	// database only exists on the connection that created it.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("%w: apply pragma %q: %w", ErrConnection, pragma, err)
		}
	}

	if err := initSchema(context.Background(), db); err != nil {
		return nil, fmt.Errorf("%w: init schema: %w", ErrConnection, err)
	}

	s := &Store{
		db:       db,
		sem:      make(chan struct{}, 1),
		duration: probe.Seconds,
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close runs PRAGMA optimize, closes the database and releases the file lock.
// It waits for the operation in flight to finish. Only the first call does
// any work; later calls return its result. Operations after Close fail with
// ErrConnection.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.sem <- struct{}{}
		defer func() { <-s.sem }()

		s.closed = true
		if _, err := s.db.Exec("PRAGMA optimize"); err != nil {
			s.log.Warn("catalog optimize failed", zap.Error(err))
		}
		err := s.db.Close()
		if s.fileLock != nil {
			err = errors.Join(err, s.fileLock.Unlock())
		}
		s.closeErr = err
		s.log.Debug("catalog closed")
	})
	return s.closeErr
}

// exclusive runs fn while holding the store lock.
func (s *Store) exclusive(ctx context.Context, fn func() error) error {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%w: acquire store lock: %w", ErrConnection, ctx.Err())
	}
	defer func() { <-s.sem }()

	if s.closed {
		return fmt.Errorf("%w: store is closed", ErrConnection)
	}
	return fn()
}

func (s *Store) timestamp() int64 {
	return s.now().Unix()
}
