//nolint:goconst // test files commonly repeat strings for test data
package catalog

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func insertTestTracks(t *testing.T, s *Store, n int) []int64 {
	t.Helper()
	ids := make([]int64, 0, n)
	for i := range n {
		name := "track" + string(rune('1'+i))
		tr, err := s.InsertTrack(context.Background(), name, "/music/"+name+".wav")
		require.NoError(t, err)
		ids = append(ids, tr.ID)
	}
	return ids
}

func rowOrders(t *testing.T, s *Store) map[int64]int {
	t.Helper()
	tracks, err := s.ListTracks(context.Background())
	require.NoError(t, err)
	orders := make(map[int64]int, len(tracks))
	for _, tr := range tracks {
		orders[tr.ID] = tr.RowOrder
	}
	return orders
}

func TestInsertTrack_Defaults(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, WithClock(func() time.Time { return created }))

	tr, err := s.InsertTrack(context.Background(), "track1", "/music/track1.wav")
	require.NoError(t, err)

	assert.Positive(t, tr.ID)
	assert.Equal(t, "track1", tr.Title)
	assert.Equal(t, "/music/track1.wav", tr.FilePath)
	assert.Equal(t, 0, tr.RowOrder)
	assert.True(t, created.Equal(tr.DateCreated), "DateCreated = %v, want %v", tr.DateCreated, created)

	assert.Nil(t, tr.Artist)
	assert.Nil(t, tr.Album)
	assert.Nil(t, tr.Genre)
	assert.Nil(t, tr.Year)
	assert.Nil(t, tr.TrackNumber)
	assert.Nil(t, tr.Composer)
	assert.Nil(t, tr.Lyricist)
	assert.Nil(t, tr.CoverArt)
	assert.Nil(t, tr.Comments)
	assert.Nil(t, tr.Duration)
	assert.Nil(t, tr.BPM)
	assert.Nil(t, tr.MusicalKey)
}

func TestInsertTrack_ProbedDuration(t *testing.T) {
	var probed string
	s := newTestStore(t, WithDurationFunc(func(path string) (int, error) {
		probed = path
		return 180, nil
	}))

	tr, err := s.InsertTrack(context.Background(), "track1", "/music/track1.wav")
	require.NoError(t, err)

	assert.Equal(t, "/music/track1.wav", probed)
	require.NotNil(t, tr.Duration)
	assert.Equal(t, 180, *tr.Duration)
}

func TestInsertTrack_InvalidMediaLeavesDurationUnset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.wav")
	require.NoError(t, os.WriteFile(path, []byte("this is not a RIFF file"), 0o644))

	// No WithDurationFunc: the real probe runs.
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	s, err := New(db)
	require.NoError(t, err)
	defer s.Close()

	tr, err := s.InsertTrack(context.Background(), "broken", path)
	require.NoError(t, err)
	assert.Nil(t, tr.Duration)
}

func TestInsertTrack_RequiredFields(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.InsertTrack(ctx, "", "/music/a.wav")
	require.ErrorIs(t, err, ErrConstraintViolation)

	_, err = s.InsertTrack(ctx, "a", "")
	require.ErrorIs(t, err, ErrConstraintViolation)

	_, err = s.InsertTrack(ctx, "   ", "/music/a.wav")
	require.ErrorIs(t, err, ErrConstraintViolation)

	tracks, err := s.ListTracks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tracks)
}

func TestInsertTrack_IDsAreUniqueAndNeverReused(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	seen := map[int64]bool{}
	for _, id := range insertTestTracks(t, s, 5) {
		assert.False(t, seen[id], "id %d returned twice", id)
		seen[id] = true
	}

	// Delete the newest and insert again: AUTOINCREMENT must not hand out the old id.
	var maxID int64
	for id := range seen {
		maxID = max(maxID, id)
	}
	require.NoError(t, s.DeleteTrack(ctx, maxID))

	tr, err := s.InsertTrack(ctx, "again", "/music/again.wav")
	require.NoError(t, err)
	assert.False(t, seen[tr.ID], "id %d was reused", tr.ID)
	assert.Greater(t, tr.ID, maxID)
}

func TestTrack_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Track(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListTracks_OrderedByID(t *testing.T) {
	s := newTestStore(t)
	ids := insertTestTracks(t, s, 3)

	tracks, err := s.ListTracks(context.Background())
	require.NoError(t, err)
	require.Len(t, tracks, 3)
	for i, tr := range tracks {
		assert.Equal(t, ids[i], tr.ID)
	}
}

func TestUpdateTrack_OnlyChangesGivenFields(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, WithDurationFunc(func(string) (int, error) { return 200, nil }))
	ids := insertTestTracks(t, s, 1)

	err := s.UpdateTrack(ctx, TrackChangeset{
		ID:     ids[0],
		Artist: ptr("Artist 1"),
		Year:   ptr(2023),
		BPM:    ptr(128.0),
	})
	require.NoError(t, err)

	tr, err := s.Track(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "track1", tr.Title)
	require.NotNil(t, tr.Artist)
	assert.Equal(t, "Artist 1", *tr.Artist)
	require.NotNil(t, tr.Year)
	assert.Equal(t, 2023, *tr.Year)
	require.NotNil(t, tr.BPM)
	assert.InDelta(t, 128.0, *tr.BPM, 1e-9)
	require.NotNil(t, tr.Duration)
	assert.Equal(t, 200, *tr.Duration)
	assert.Nil(t, tr.Album)
	assert.Nil(t, tr.MusicalKey)

	err = s.UpdateTrack(ctx, TrackChangeset{ID: ids[0], Title: ptr("Renamed"), Comments: ptr("opener")})
	require.NoError(t, err)

	tr, err = s.Track(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "Renamed", tr.Title)
	assert.Equal(t, "Artist 1", *tr.Artist, "earlier change must survive")
	require.NotNil(t, tr.Comments)
	assert.Equal(t, "opener", *tr.Comments)
}

func TestUpdateTrack_NotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.UpdateTrack(ctx, TrackChangeset{ID: 99, Artist: ptr("x")})
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.UpdateTrack(ctx, TrackChangeset{ID: 99})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateTrack_EmptyChangesetOnExistingTrack(t *testing.T) {
	s := newTestStore(t)
	ids := insertTestTracks(t, s, 1)

	assert.NoError(t, s.UpdateTrack(context.Background(), TrackChangeset{ID: ids[0]}))
}

func TestUpdateTrack_EmptyTitleIsConstraintViolation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ids := insertTestTracks(t, s, 1)

	err := s.UpdateTrack(ctx, TrackChangeset{ID: ids[0], Title: ptr("")})
	require.ErrorIs(t, err, ErrConstraintViolation)

	tr, err := s.Track(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "track1", tr.Title)
}

func TestSetAnalysis(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, WithDurationFunc(func(string) (int, error) { return 180, nil }))
	ids := insertTestTracks(t, s, 1)

	require.NoError(t, s.SetAnalysis(ctx, ids[0], "Am", 95.5))

	tr, err := s.Track(ctx, ids[0])
	require.NoError(t, err)
	require.NotNil(t, tr.MusicalKey)
	assert.Equal(t, "Am", *tr.MusicalKey)
	require.NotNil(t, tr.BPM)
	assert.InDelta(t, 95.5, *tr.BPM, 1e-9)
	require.NotNil(t, tr.Duration)
	assert.Equal(t, 180, *tr.Duration)

	// Applying the same result again is harmless.
	require.NoError(t, s.SetAnalysis(ctx, ids[0], "Am", 95.5))

	assert.ErrorIs(t, s.SetAnalysis(ctx, 999, "C", 120), ErrNotFound)
}

func TestReorder_AppliesAllPositions(t *testing.T) {
	s := newTestStore(t)
	ids := insertTestTracks(t, s, 3)

	err := s.Reorder(context.Background(), []RowOrder{
		{ID: ids[0], RowOrder: 3},
		{ID: ids[1], RowOrder: 1},
		{ID: ids[2], RowOrder: 2},
	})
	require.NoError(t, err)

	assert.Equal(t, map[int64]int{ids[0]: 3, ids[1]: 1, ids[2]: 2}, rowOrders(t, s))
}

func TestReorder_StopsAtFirstUnknownID(t *testing.T) {
	s := newTestStore(t)
	ids := insertTestTracks(t, s, 3)

	err := s.Reorder(context.Background(), []RowOrder{
		{ID: ids[0], RowOrder: 7},
		{ID: 9999, RowOrder: 8},
		{ID: ids[2], RowOrder: 9},
	})
	require.ErrorIs(t, err, ErrNotFound)

	// Entries before the failure stay committed, later ones are not applied.
	assert.Equal(t, map[int64]int{ids[0]: 7, ids[1]: 0, ids[2]: 0}, rowOrders(t, s))
}

func TestReorder_EmptyBatch(t *testing.T) {
	s := newTestStore(t)
	ids := insertTestTracks(t, s, 2)
	before := rowOrders(t, s)

	require.NoError(t, s.Reorder(context.Background(), nil))
	require.NoError(t, s.Reorder(context.Background(), []RowOrder{}))

	assert.Equal(t, before, rowOrders(t, s))
	assert.Len(t, before, len(ids))
}

func TestDeleteTrack_RemovesMemberships(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ids := insertTestTracks(t, s, 2)

	coll, err := s.InsertCollection(ctx, NewCollection{SetName: "Friday"})
	require.NoError(t, err)
	require.NoError(t, s.AddMembership(ctx, coll.ID, ids[0]))
	require.NoError(t, s.AddMembership(ctx, coll.ID, ids[1]))

	require.NoError(t, s.DeleteTrack(ctx, ids[0]))

	tracks, err := s.TracksInCollection(ctx, coll.ID)
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, ids[1], tracks[0].ID)

	var rows int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM collection_tracks WHERE track_id = ?`, ids[0]).Scan(&rows))
	assert.Zero(t, rows)

	_, err = s.Track(ctx, ids[0])
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteTrack_AbsentIDSucceeds(t *testing.T) {
	s := newTestStore(t)

	assert.NoError(t, s.DeleteTrack(context.Background(), 12345))
}
