package enrich

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/beatbank/internal/analyzer"
	"github.com/llehouerou/beatbank/internal/catalog"
)

// fakeAnalyzer returns canned results per path and records calls.
type fakeAnalyzer struct {
	mu      sync.Mutex
	results map[string]analyzer.Result
	errs    map[string]error
	calls   []string
	during  func() // runs inside Analyze
}

func (f *fakeAnalyzer) Analyze(_ context.Context, path string) (analyzer.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, path)
	during := f.during
	f.mu.Unlock()

	if during != nil {
		during()
	}
	if err := f.errs[path]; err != nil {
		return analyzer.Result{}, err
	}
	if res, ok := f.results[path]; ok {
		return res, nil
	}
	return analyzer.Result{Key: "C", Tempo: 120}, nil
}

func newStore(t *testing.T) *catalog.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	s, err := catalog.New(db, catalog.WithDurationFunc(func(string) (int, error) {
		return 180, nil
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func analyzerErr(path string) error {
	return &analyzer.Error{Path: path, Op: analyzer.OpRun, Err: errors.New("exit status 1")}
}

func TestIngest_EndToEnd(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	an := &fakeAnalyzer{results: map[string]analyzer.Result{
		"/music/track1.wav": {Key: "Am", Tempo: 95.5},
	}}
	c := New(store, an)

	tr, err := c.Ingest(ctx, "track1", "/music/track1.wav")
	require.NoError(t, err)

	require.NotNil(t, tr.Duration)
	assert.Equal(t, 180, *tr.Duration)
	require.NotNil(t, tr.MusicalKey)
	assert.Equal(t, "Am", *tr.MusicalKey)
	require.NotNil(t, tr.BPM)
	assert.InDelta(t, 95.5, *tr.BPM, 1e-9)

	stored, err := store.Track(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, tr, stored)
}

func TestIngest_AnalyzerFailureKeepsTrack(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	an := &fakeAnalyzer{errs: map[string]error{"/music/bad.wav": analyzerErr("/music/bad.wav")}}
	c := New(store, an)

	tr, err := c.Ingest(ctx, "bad", "/music/bad.wav")
	require.Error(t, err)
	assert.ErrorIs(t, err, analyzer.ErrAnalyzer)

	require.NotNil(t, tr, "the persisted track is returned with the error")
	assert.Positive(t, tr.ID)
	assert.Nil(t, tr.MusicalKey)
	assert.Nil(t, tr.BPM)

	stored, err := store.Track(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, "bad", stored.Title)
	assert.Nil(t, stored.MusicalKey)
	assert.Nil(t, stored.BPM)
	require.NotNil(t, stored.Duration)
}

func TestIngest_InsertFailureSkipsAnalysis(t *testing.T) {
	store := newStore(t)
	an := &fakeAnalyzer{}
	c := New(store, an)

	tr, err := c.Ingest(context.Background(), "", "/music/x.wav")
	require.ErrorIs(t, err, catalog.ErrConstraintViolation)
	assert.Nil(t, tr)
	assert.Empty(t, an.calls)
}

func TestEnrich_RetryAfterFailure(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	an := &fakeAnalyzer{errs: map[string]error{"/music/a.wav": analyzerErr("/music/a.wav")}}
	c := New(store, an)

	tr, err := c.Ingest(ctx, "a", "/music/a.wav")
	require.Error(t, err)

	// Analyzer recovers.
	an.errs = nil
	an.results = map[string]analyzer.Result{"/music/a.wav": {Key: "Gm", Tempo: 140}}

	enriched, err := c.Enrich(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, "Gm", *enriched.MusicalKey)

	// Enriching again is harmless.
	_, err = c.Enrich(ctx, tr.ID)
	require.NoError(t, err)

	stored, err := store.Track(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, "Gm", *stored.MusicalKey)
	assert.InDelta(t, 140.0, *stored.BPM, 1e-9)
}

func TestEnrich_UnknownTrack(t *testing.T) {
	an := &fakeAnalyzer{}
	c := New(newStore(t), an)

	tr, err := c.Enrich(context.Background(), 404)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	assert.Nil(t, tr)
	assert.Empty(t, an.calls)
}

func TestEnrich_StoreUsableDuringAnalysis(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	an := &fakeAnalyzer{}
	c := New(store, an)

	other, err := store.InsertTrack(ctx, "other", "/music/other.wav")
	require.NoError(t, err)
	target, err := store.InsertTrack(ctx, "target", "/music/target.wav")
	require.NoError(t, err)

	// While the analyzer runs, other operations must not block on the store.
	an.during = func() {
		opCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		err := store.UpdateTrack(opCtx, catalog.TrackChangeset{ID: other.ID, Genre: ptr("Dub")})
		assert.NoError(t, err)
	}

	_, err = c.Enrich(ctx, target.ID)
	require.NoError(t, err)

	got, err := store.Track(ctx, other.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Genre)
	assert.Equal(t, "Dub", *got.Genre)
}

func TestEnrich_TrackDeletedDuringAnalysis(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	an := &fakeAnalyzer{}
	c := New(store, an)

	tr, err := store.InsertTrack(ctx, "gone", "/music/gone.wav")
	require.NoError(t, err)
	an.during = func() {
		assert.NoError(t, store.DeleteTrack(ctx, tr.ID))
	}

	_, err = c.Enrich(ctx, tr.ID)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestEnrichPending(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	an := &fakeAnalyzer{errs: map[string]error{"/music/b.wav": analyzerErr("/music/b.wav")}}
	c := New(store, an)

	for _, name := range []string{"a", "b", "c"} {
		_, err := store.InsertTrack(ctx, name, "/music/"+name+".wav")
		require.NoError(t, err)
	}
	done, err := store.InsertTrack(ctx, "done", "/music/done.wav")
	require.NoError(t, err)
	require.NoError(t, store.SetAnalysis(ctx, done.ID, "E", 100))

	n, err := c.EnrichPending(ctx)
	assert.Equal(t, 2, n)
	require.Error(t, err)
	assert.ErrorIs(t, err, analyzer.ErrAnalyzer)

	assert.ElementsMatch(t, []string{"/music/a.wav", "/music/b.wav", "/music/c.wav"}, an.calls)
}

func TestTitleFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/music/Night Drive.wav", "Night Drive"},
		{"/music/a.b.flac", "a.b"},
		{"relative/track", "track"},
		{"/music/.wav", UnknownTitle},
		{"", UnknownTitle},
		{"/", UnknownTitle},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, TitleFromPath(tt.path))
		})
	}
}

func ptr[T any](v T) *T { return &v }
