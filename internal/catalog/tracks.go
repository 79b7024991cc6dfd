package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	dbutil "github.com/llehouerou/beatbank/internal/db"
)

// Track is a single audio item in the catalog.
// Nil optional fields are unset. Duration, BPM and MusicalKey stay nil until
// their derivation succeeds.
type Track struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Artist      *string   `json:"artist,omitempty"`
	Album       *string   `json:"album,omitempty"`
	Genre       *string   `json:"genre,omitempty"`
	Year        *int      `json:"year,omitempty"`
	TrackNumber *int      `json:"track_number,omitempty"`
	Duration    *int      `json:"duration,omitempty"`
	Composer    *string   `json:"composer,omitempty"`
	Lyricist    *string   `json:"lyricist,omitempty"`
	CoverArt    *string   `json:"cover_art,omitempty"`
	Comments    *string   `json:"comments,omitempty"`
	FilePath    string    `json:"file_path"`
	BPM         *float64  `json:"bpm,omitempty"`
	MusicalKey  *string   `json:"musical_key,omitempty"`
	DateCreated time.Time `json:"date_created"`
	RowOrder    int       `json:"row_order"`
}

// TrackChangeset names a track by ID and carries the fields to change.
// Nil fields are left untouched.
type TrackChangeset struct {
	ID          int64    `json:"id"`
	Title       *string  `json:"title,omitempty"`
	Artist      *string  `json:"artist,omitempty"`
	Album       *string  `json:"album,omitempty"`
	Genre       *string  `json:"genre,omitempty"`
	Year        *int     `json:"year,omitempty"`
	TrackNumber *int     `json:"track_number,omitempty"`
	Duration    *int     `json:"duration,omitempty"`
	Composer    *string  `json:"composer,omitempty"`
	Lyricist    *string  `json:"lyricist,omitempty"`
	CoverArt    *string  `json:"cover_art,omitempty"`
	Comments    *string  `json:"comments,omitempty"`
	BPM         *float64 `json:"bpm,omitempty"`
	MusicalKey  *string  `json:"musical_key,omitempty"`
}

// RowOrder assigns a display position to a track.
type RowOrder struct {
	ID       int64 `json:"id"`
	RowOrder int   `json:"row_order"`
}

const trackColumns = `id, title, artist, album, genre, year, track_number, duration,
	composer, lyricist, cover_art, comments, file_path, bpm, musical_key, date_created, row_order`

type scanner interface {
	Scan(dest ...any) error
}

func scanTrack(row scanner) (*Track, error) {
	var t Track
	var artist, album, genre, composer, lyricist, coverArt, comments, key sql.NullString
	var year, trackNum, duration sql.NullInt64
	var bpm sql.NullFloat64
	var created int64

	if err := row.Scan(&t.ID, &t.Title, &artist, &album, &genre, &year, &trackNum, &duration,
		&composer, &lyricist, &coverArt, &comments, &t.FilePath, &bpm, &key, &created, &t.RowOrder); err != nil {
		return nil, err
	}
	t.Artist = dbutil.NullStringToPtr(artist)
	t.Album = dbutil.NullStringToPtr(album)
	t.Genre = dbutil.NullStringToPtr(genre)
	t.Year = dbutil.NullIntToPtr(year)
	t.TrackNumber = dbutil.NullIntToPtr(trackNum)
	t.Duration = dbutil.NullIntToPtr(duration)
	t.Composer = dbutil.NullStringToPtr(composer)
	t.Lyricist = dbutil.NullStringToPtr(lyricist)
	t.CoverArt = dbutil.NullStringToPtr(coverArt)
	t.Comments = dbutil.NullStringToPtr(comments)
	t.BPM = dbutil.NullFloat64ToPtr(bpm)
	t.MusicalKey = dbutil.NullStringToPtr(key)
	t.DateCreated = time.Unix(created, 0)
	return &t, nil
}

func scanTracks(rows *sql.Rows) ([]Track, error) {
	defer rows.Close()

	var tracks []Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, *t)
	}
	return tracks, rows.Err()
}

// InsertTrack adds a track with only its title and file path set.
// The duration is probed from the file before the row is written; a failed
// probe leaves it unset and does not fail the insert.
func (s *Store) InsertTrack(ctx context.Context, title, filePath string) (*Track, error) {
	if err := requireField("title", title); err != nil {
		return nil, err
	}
	if err := requireField("file_path", filePath); err != nil {
		return nil, err
	}

	var duration *int
	if secs, err := s.duration(filePath); err != nil {
		s.log.Debug("duration probe failed", zap.String("path", filePath), zap.Error(err))
	} else {
		duration = &secs
	}

	var track *Track
	err := s.exclusive(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO tracks (title, file_path, duration, date_created, row_order)
			VALUES (?, ?, ?, ?, 0)
		`, title, filePath, duration, s.timestamp())
		if err != nil {
			return classify(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		track, err = s.trackByID(ctx, s.db, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("insert track: %w", err)
	}

	s.log.Info("track inserted", zap.Int64("id", track.ID), zap.String("path", filePath))
	return track, nil
}

// Track returns a track by its ID.
func (s *Store) Track(ctx context.Context, id int64) (*Track, error) {
	var track *Track
	err := s.exclusive(ctx, func() error {
		var err error
		track, err = s.trackByID(ctx, s.db, id)
		return err
	})
	return track, err
}

func (s *Store) trackByID(ctx context.Context, q dbutil.Querier, id int64) (*Track, error) {
	row := q.QueryRowContext(ctx, `SELECT `+trackColumns+` FROM tracks WHERE id = ?`, id)
	t, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("track %d: %w", id, ErrNotFound)
	}
	return t, err
}

// ListTracks returns every track ordered by ID.
func (s *Store) ListTracks(ctx context.Context) ([]Track, error) {
	var tracks []Track
	err := s.exclusive(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, `SELECT `+trackColumns+` FROM tracks ORDER BY id`)
		if err != nil {
			return err
		}
		tracks, err = scanTracks(rows)
		return err
	})
	return tracks, err
}

// assignments returns the SET clauses and arguments for the non-nil fields.
func (c TrackChangeset) assignments() ([]string, []any) {
	var cols []string
	var args []any
	add := func(col string, v any) {
		cols = append(cols, col+" = ?")
		args = append(args, v)
	}
	if c.Title != nil {
		add("title", *c.Title)
	}
	if c.Artist != nil {
		add("artist", *c.Artist)
	}
	if c.Album != nil {
		add("album", *c.Album)
	}
	if c.Genre != nil {
		add("genre", *c.Genre)
	}
	if c.Year != nil {
		add("year", *c.Year)
	}
	if c.TrackNumber != nil {
		add("track_number", *c.TrackNumber)
	}
	if c.Duration != nil {
		add("duration", *c.Duration)
	}
	if c.Composer != nil {
		add("composer", *c.Composer)
	}
	if c.Lyricist != nil {
		add("lyricist", *c.Lyricist)
	}
	if c.CoverArt != nil {
		add("cover_art", *c.CoverArt)
	}
	if c.Comments != nil {
		add("comments", *c.Comments)
	}
	if c.BPM != nil {
		add("bpm", *c.BPM)
	}
	if c.MusicalKey != nil {
		add("musical_key", *c.MusicalKey)
	}
	return cols, args
}

// UpdateTrack applies a changeset. Fails with ErrNotFound if the track does
// not exist.
func (s *Store) UpdateTrack(ctx context.Context, c TrackChangeset) error {
	if c.Title != nil {
		if err := requireField("title", *c.Title); err != nil {
			return err
		}
	}
	cols, args := c.assignments()

	err := s.exclusive(ctx, func() error {
		if len(cols) == 0 {
			_, err := s.trackByID(ctx, s.db, c.ID)
			return err
		}
		res, err := s.db.ExecContext(ctx,
			`UPDATE tracks SET `+strings.Join(cols, ", ")+` WHERE id = ?`,
			append(args, c.ID)...)
		if err != nil {
			return classify(err)
		}
		return expectAffected(res, "track", c.ID)
	})
	if err != nil {
		return fmt.Errorf("update track: %w", err)
	}
	return nil
}

// SetAnalysis stores the analyzer results for a track, leaving every other
// field untouched.
func (s *Store) SetAnalysis(ctx context.Context, id int64, musicalKey string, bpm float64) error {
	err := s.exclusive(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE tracks SET musical_key = ?, bpm = ? WHERE id = ?
		`, musicalKey, bpm, id)
		if err != nil {
			return classify(err)
		}
		return expectAffected(res, "track", id)
	})
	if err != nil {
		return fmt.Errorf("store analysis: %w", err)
	}
	return nil
}

// DeleteTrack removes a track and every membership referencing it.
// Deleting an ID that does not exist succeeds.
func (s *Store) DeleteTrack(ctx context.Context, id int64) error {
	err := s.exclusive(ctx, func() error {
		return dbutil.WithTx(ctx, s.db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `DELETE FROM collection_tracks WHERE track_id = ?`, id); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `DELETE FROM tracks WHERE id = ?`, id)
			return err
		})
	})
	if err != nil {
		return fmt.Errorf("delete track: %w", classify(err))
	}
	return nil
}

// Reorder assigns row positions one entry at a time, in batch order.
// The batch is not atomic: on the first unknown track ID it stops with
// ErrNotFound, keeping the entries already applied and skipping the rest.
func (s *Store) Reorder(ctx context.Context, batch []RowOrder) error {
	if len(batch) == 0 {
		return nil
	}
	return s.exclusive(ctx, func() error {
		for i, entry := range batch {
			res, err := s.db.ExecContext(ctx, `
				UPDATE tracks SET row_order = ? WHERE id = ?
			`, entry.RowOrder, entry.ID)
			if err != nil {
				return fmt.Errorf("reorder entry %d: %w", i, classify(err))
			}
			if err := expectAffected(res, "track", entry.ID); err != nil {
				return fmt.Errorf("reorder entry %d: %w", i, err)
			}
		}
		return nil
	})
}

func expectAffected(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
	}
	return nil
}
