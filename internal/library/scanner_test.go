package library

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/llehouerou/beatbank/internal/catalog"
)

func setupTestStore(t *testing.T) *catalog.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	store, err := catalog.New(db, catalog.WithDurationFunc(func(string) (int, error) {
		return 0, errors.New("no probe in tests")
	}))
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDiscoverFiles(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "b.wav"))
	touch(t, filepath.Join(root, "a.flac"))
	touch(t, filepath.Join(root, "sub", "c.MP3"))
	touch(t, filepath.Join(root, "sub", "cover.jpg"))
	touch(t, filepath.Join(root, "notes.txt"))

	single := filepath.Join(root, "a.flac")
	files, err := discoverFiles([]string{root, single})
	if err != nil {
		t.Fatalf("discoverFiles() error: %v", err)
	}

	want := []string{
		filepath.Join(root, "a.flac"),
		filepath.Join(root, "b.wav"),
		filepath.Join(root, "sub", "c.MP3"),
	}
	if !slices.Equal(files, want) {
		t.Errorf("discoverFiles() = %v, want %v", files, want)
	}
}

func TestDiscoverFiles_MissingRoot(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.wav"))

	_, err := discoverFiles([]string{root, filepath.Join(root, "typo")})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("discoverFiles() error = %v, want os.ErrNotExist", err)
	}
}

func TestImport_AddsNewFilesAndSkipsKnown(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	root := t.TempDir()
	known := filepath.Join(root, "known.wav")
	touch(t, known)
	touch(t, filepath.Join(root, "Night Drive.wav"))
	touch(t, filepath.Join(root, "set", "Opener.flac"))

	if _, err := store.InsertTrack(ctx, "known", known); err != nil {
		t.Fatalf("InsertTrack: %v", err)
	}

	im := NewImporter(store, store.InsertTrack, WithWorkers(2))
	stats, err := im.Import(ctx, []string{root}, nil)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	if len(stats.Added) != 2 {
		t.Errorf("expected 2 added, got %v", stats.Added)
	}
	if !slices.Equal(stats.Skipped, []string{known}) {
		t.Errorf("expected %s skipped, got %v", known, stats.Skipped)
	}
	if len(stats.Failed) != 0 || len(stats.Unanalyzed) != 0 {
		t.Errorf("unexpected failures: %v %v", stats.Failed, stats.Unanalyzed)
	}

	tracks, err := store.ListTracks(ctx)
	if err != nil {
		t.Fatalf("ListTracks: %v", err)
	}
	titles := make([]string, 0, len(tracks))
	for _, tr := range tracks {
		titles = append(titles, tr.Title)
	}
	slices.Sort(titles)
	if !slices.Equal(titles, []string{"Night Drive", "Opener", "known"}) {
		t.Errorf("titles = %v", titles)
	}

	// A second run finds nothing new.
	stats, err = im.Import(ctx, []string{root}, nil)
	if err != nil {
		t.Fatalf("second Import: %v", err)
	}
	if len(stats.Added) != 0 || len(stats.Skipped) != 3 {
		t.Errorf("second run: added %v, skipped %v", stats.Added, stats.Skipped)
	}
}

func TestImport_SortsOutcomes(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	root := t.TempDir()
	for _, name := range []string{"ok.wav", "unanalyzed.wav", "rejected.wav"} {
		touch(t, filepath.Join(root, name))
	}

	errAnalysis := errors.New("analysis failed")
	errInsert := errors.New("insert failed")
	ingest := func(ctx context.Context, title, path string) (*catalog.Track, error) {
		switch title {
		case "rejected":
			return nil, errInsert
		case "unanalyzed":
			tr, err := store.InsertTrack(ctx, title, path)
			if err != nil {
				return nil, err
			}
			return tr, errAnalysis
		default:
			return store.InsertTrack(ctx, title, path)
		}
	}

	stats, err := NewImporter(store, ingest).Import(ctx, []string{root}, nil)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	if !slices.Equal(stats.Added, []string{filepath.Join(root, "ok.wav")}) {
		t.Errorf("Added = %v", stats.Added)
	}
	if !slices.Equal(stats.Unanalyzed, []string{filepath.Join(root, "unanalyzed.wav")}) {
		t.Errorf("Unanalyzed = %v", stats.Unanalyzed)
	}
	if got := stats.Failed[filepath.Join(root, "rejected.wav")]; !errors.Is(got, errInsert) {
		t.Errorf("Failed = %v", stats.Failed)
	}
}

func TestImport_ReportsProgress(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.wav"))
	touch(t, filepath.Join(root, "b.wav"))

	progress := make(chan ScanProgress)
	var (
		mu     sync.Mutex
		phases []string
		last   ScanProgress
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progress {
			mu.Lock()
			phases = append(phases, p.Phase)
			last = p
			mu.Unlock()
		}
	}()

	if _, err := NewImporter(store, store.InsertTrack).Import(ctx, []string{root}, progress); err != nil {
		t.Fatalf("Import: %v", err)
	}
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(phases) != 4 {
		t.Fatalf("expected 4 progress updates, got %v", phases)
	}
	if phases[0] != PhaseScanning || last.Phase != PhaseDone {
		t.Errorf("phases = %v", phases)
	}
	if last.Current != 2 || last.Total != 2 {
		t.Errorf("final progress = %+v", last)
	}
}

func TestImport_CancelledContext(t *testing.T) {
	store := setupTestStore(t)
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.wav"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewImporter(store, store.InsertTrack).Import(ctx, []string{root}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestImport_MissingRoot(t *testing.T) {
	store := setupTestStore(t)
	missing := filepath.Join(t.TempDir(), "typo")

	stats, err := NewImporter(store, store.InsertTrack).Import(context.Background(), []string{missing}, nil)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
	if stats != nil {
		t.Errorf("expected no stats, got %+v", stats)
	}
}
