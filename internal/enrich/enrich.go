// Package enrich ingests tracks into the catalog and fills in their derived
// musical key and tempo from an Analyzer.
//
// Analysis never runs while the store is locked: the track is read, the
// analyzer runs, and the result is written back in a separate short
// operation. A failed analysis leaves the track persisted without key/tempo
// and can be retried with Enrich.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/llehouerou/beatbank/internal/analyzer"
	"github.com/llehouerou/beatbank/internal/catalog"
)

// UnknownTitle is used when no title can be derived from a file name.
const UnknownTitle = "Unknown"

// Store is the part of the catalog the coordinator needs.
type Store interface {
	InsertTrack(ctx context.Context, title, filePath string) (*catalog.Track, error)
	Track(ctx context.Context, id int64) (*catalog.Track, error)
	ListTracks(ctx context.Context) ([]catalog.Track, error)
	SetAnalysis(ctx context.Context, id int64, key string, bpm float64) error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger for enrichment runs.
func WithLogger(log *zap.Logger) Option {
	return func(c *Coordinator) {
		if log != nil {
			c.log = log
		}
	}
}

// Coordinator sequences insert, analysis and result merge.
type Coordinator struct {
	store    Store
	analyzer analyzer.Analyzer
	log      *zap.Logger
}

// New returns a Coordinator over store using an as its analyzer.
func New(store Store, an analyzer.Analyzer, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:    store,
		analyzer: an,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ingest inserts a track and enriches it. When the insert succeeds but the
// analysis fails, the persisted track is returned together with the error.
func (c *Coordinator) Ingest(ctx context.Context, title, filePath string) (*catalog.Track, error) {
	t, err := c.store.InsertTrack(ctx, title, filePath)
	if err != nil {
		return nil, err
	}

	enriched, err := c.Enrich(ctx, t.ID)
	if err != nil {
		if enriched == nil {
			enriched = t
		}
		return enriched, err
	}
	return enriched, nil
}

// Enrich analyzes an existing track and stores its key and tempo. It can be
// called again after a failure.
func (c *Coordinator) Enrich(ctx context.Context, id int64) (*catalog.Track, error) {
	log := c.log.With(zap.String("run", uuid.NewString()), zap.Int64("track_id", id))

	t, err := c.store.Track(ctx, id)
	if err != nil {
		return nil, err
	}

	log.Debug("analyzing", zap.String("path", t.FilePath))
	res, err := c.analyzer.Analyze(ctx, t.FilePath)
	if err != nil {
		log.Warn("analysis failed", zap.Error(err))
		return t, fmt.Errorf("enrich track %d: %w", id, err)
	}

	if err := c.store.SetAnalysis(ctx, id, res.Key, res.Tempo); err != nil {
		log.Warn("storing analysis failed", zap.Error(err))
		return t, fmt.Errorf("enrich track %d: %w", id, err)
	}

	t.MusicalKey = &res.Key
	t.BPM = &res.Tempo
	log.Info("track enriched",
		zap.String("key", res.Key),
		zap.Float64("bpm", res.Tempo))
	return t, nil
}

// EnrichPending enriches every track still missing a key or tempo, in id
// order. A failing track does not stop the others; all failures are
// returned joined. Cancellation of ctx stops the run.
func (c *Coordinator) EnrichPending(ctx context.Context) (int, error) {
	tracks, err := c.store.ListTracks(ctx)
	if err != nil {
		return 0, err
	}

	var (
		done int
		errs []error
	)
	for _, t := range tracks {
		if t.MusicalKey != nil && t.BPM != nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := c.Enrich(ctx, t.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}

// TitleFromPath derives a track title from the file name without its
// extension.
func TitleFromPath(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		return UnknownTitle
	}
	return stem
}
