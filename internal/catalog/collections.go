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

// Collection is a named grouping of tracks, usually a played set.
type Collection struct {
	ID          int64     `json:"id"`
	SetName     string    `json:"set_name"`
	Venue       *string   `json:"venue,omitempty"`
	City        *string   `json:"city,omitempty"`
	StateName   *string   `json:"state_name,omitempty"`
	DatePlayed  *string   `json:"date_played,omitempty"`
	DateCreated time.Time `json:"date_created"`
}

// NewCollection holds the fields of a collection to insert.
type NewCollection struct {
	SetName    string
	Venue      *string
	City       *string
	StateName  *string
	DatePlayed *string
}

// CollectionChangeset names a collection by ID and carries the fields to
// change. Nil fields are left untouched.
type CollectionChangeset struct {
	ID         int64   `json:"id"`
	SetName    *string `json:"set_name,omitempty"`
	Venue      *string `json:"venue,omitempty"`
	City       *string `json:"city,omitempty"`
	StateName  *string `json:"state_name,omitempty"`
	DatePlayed *string `json:"date_played,omitempty"`
}

const collectionColumns = `id, set_name, venue, city, state_name, date_played, date_created`

func scanCollection(row scanner) (*Collection, error) {
	var c Collection
	var venue, city, stateName, datePlayed sql.NullString
	var created int64
	if err := row.Scan(&c.ID, &c.SetName, &venue, &city, &stateName, &datePlayed, &created); err != nil {
		return nil, err
	}
	c.Venue = dbutil.NullStringToPtr(venue)
	c.City = dbutil.NullStringToPtr(city)
	c.StateName = dbutil.NullStringToPtr(stateName)
	c.DatePlayed = dbutil.NullStringToPtr(datePlayed)
	c.DateCreated = time.Unix(created, 0)
	return &c, nil
}

// InsertCollection creates a collection. SetName is required.
func (s *Store) InsertCollection(ctx context.Context, nc NewCollection) (*Collection, error) {
	if err := requireField("set_name", nc.SetName); err != nil {
		return nil, err
	}

	var coll *Collection
	err := s.exclusive(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO collections (set_name, venue, city, state_name, date_played, date_created)
			VALUES (?, ?, ?, ?, ?, ?)
		`, nc.SetName, nc.Venue, nc.City, nc.StateName, nc.DatePlayed, s.timestamp())
		if err != nil {
			return classify(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		coll, err = s.collectionByID(ctx, s.db, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("insert collection: %w", err)
	}

	s.log.Info("collection inserted", zap.Int64("id", coll.ID), zap.String("set_name", coll.SetName))
	return coll, nil
}

// Collection returns a collection by its ID.
func (s *Store) Collection(ctx context.Context, id int64) (*Collection, error) {
	var coll *Collection
	err := s.exclusive(ctx, func() error {
		var err error
		coll, err = s.collectionByID(ctx, s.db, id)
		return err
	})
	return coll, err
}

func (s *Store) collectionByID(ctx context.Context, q dbutil.Querier, id int64) (*Collection, error) {
	row := q.QueryRowContext(ctx, `SELECT `+collectionColumns+` FROM collections WHERE id = ?`, id)
	c, err := scanCollection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("collection %d: %w", id, ErrNotFound)
	}
	return c, err
}

// ListCollections returns every collection ordered by ID.
func (s *Store) ListCollections(ctx context.Context) ([]Collection, error) {
	var colls []Collection
	err := s.exclusive(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, `SELECT `+collectionColumns+` FROM collections ORDER BY id`)
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

// UpdateCollection applies a changeset. Fails with ErrNotFound if the
// collection does not exist.
func (s *Store) UpdateCollection(ctx context.Context, c CollectionChangeset) error {
	var cols []string
	var args []any
	add := func(col string, v *string) {
		if v != nil {
			cols = append(cols, col+" = ?")
			args = append(args, *v)
		}
	}
	if c.SetName != nil {
		if err := requireField("set_name", *c.SetName); err != nil {
			return err
		}
	}
	add("set_name", c.SetName)
	add("venue", c.Venue)
	add("city", c.City)
	add("state_name", c.StateName)
	add("date_played", c.DatePlayed)

	err := s.exclusive(ctx, func() error {
		if len(cols) == 0 {
			_, err := s.collectionByID(ctx, s.db, c.ID)
			return err
		}
		res, err := s.db.ExecContext(ctx,
			`UPDATE collections SET `+strings.Join(cols, ", ")+` WHERE id = ?`,
			append(args, c.ID)...)
		if err != nil {
			return classify(err)
		}
		return expectAffected(res, "collection", c.ID)
	})
	if err != nil {
		return fmt.Errorf("update collection: %w", err)
	}
	return nil
}

// DeleteCollection removes a collection and its memberships. The tracks
// themselves are kept. Deleting an ID that does not exist succeeds.
func (s *Store) DeleteCollection(ctx context.Context, id int64) error {
	err := s.exclusive(ctx, func() error {
		return dbutil.WithTx(ctx, s.db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `DELETE FROM collection_tracks WHERE collection_id = ?`, id); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE id = ?`, id)
			return err
		})
	})
	if err != nil {
		return fmt.Errorf("delete collection: %w", classify(err))
	}
	return nil
}
