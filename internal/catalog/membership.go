package catalog

import (
	"context"
	"fmt"

	dbutil "github.com/llehouerou/beatbank/internal/db"
)

// AddMembership links a track to a collection.
// Adding a pair twice, or referencing an unknown collection or track, fails
// with ErrConstraintViolation. Unknown IDs also match ErrNotFound.
func (s *Store) AddMembership(ctx context.Context, collectionID, trackID int64) error {
	err := s.exclusive(ctx, func() error {
		if err := s.requireExists(ctx, s.db, "collections", "collection", collectionID); err != nil {
			return err
		}
		if err := s.requireExists(ctx, s.db, "tracks", "track", trackID); err != nil {
			return err
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO collection_tracks (collection_id, track_id) VALUES (?, ?)
		`, collectionID, trackID)
		return classify(err)
	})
	if err != nil {
		return fmt.Errorf("add track %d to collection %d: %w", trackID, collectionID, err)
	}
	return nil
}

func (s *Store) requireExists(ctx context.Context, q dbutil.Querier, table, kind string, id int64) error {
	var found int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table+` WHERE id = ?`, id).Scan(&found)
	if err != nil {
		return err
	}
	if found == 0 {
		return fmt.Errorf("%w: %s %d: %w", ErrConstraintViolation, kind, id, ErrNotFound)
	}
	return nil
}

// RemoveMembership unlinks a track from a collection. Removing a pair that
// does not exist succeeds.
func (s *Store) RemoveMembership(ctx context.Context, collectionID, trackID int64) error {
	err := s.exclusive(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			DELETE FROM collection_tracks WHERE collection_id = ? AND track_id = ?
		`, collectionID, trackID)
		return classify(err)
	})
	if err != nil {
		return fmt.Errorf("remove track %d from collection %d: %w", trackID, collectionID, err)
	}
	return nil
}

// TracksInCollection returns the full records of a collection's tracks,
// ordered by row order then ID. Fails with ErrNotFound for an unknown
// collection.
func (s *Store) TracksInCollection(ctx context.Context, collectionID int64) ([]Track, error) {
	var tracks []Track
	err := s.exclusive(ctx, func() error {
		if _, err := s.collectionByID(ctx, s.db, collectionID); err != nil {
			return err
		}
		rows, err := s.db.QueryContext(ctx, `
			SELECT t.id, t.title, t.artist, t.album, t.genre, t.year, t.track_number, t.duration,
				t.composer, t.lyricist, t.cover_art, t.comments, t.file_path, t.bpm, t.musical_key,
				t.date_created, t.row_order
			FROM collection_tracks ct
			JOIN tracks t ON ct.track_id = t.id
			WHERE ct.collection_id = ?
			ORDER BY t.row_order, t.id
		`, collectionID)
		if err != nil {
			return err
		}
		tracks, err = scanTracks(rows)
		return err
	})
	return tracks, err
}

// CollectionsForTrack returns the collections a track belongs to.
func (s *Store) CollectionsForTrack(ctx context.Context, trackID int64) ([]Collection, error) {
	var colls []Collection
	err := s.exclusive(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT c.id, c.set_name, c.venue, c.city, c.state_name, c.date_played, c.date_created
			FROM collection_tracks ct
			JOIN collections c ON ct.collection_id = c.id
			WHERE ct.track_id = ?
			ORDER BY c.id
		`, trackID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			c, err := scanCollection(rows)
			if err != nil {
				return err
			}
			colls = append(colls, *c)
		}
		return rows.Err()
	})
	return colls, err
}
