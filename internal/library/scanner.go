// Package library imports directories of audio files into the catalog.
package library

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/llehouerou/beatbank/internal/catalog"
	"github.com/llehouerou/beatbank/internal/enrich"
)

const defaultWorkers = 4

// Import phases reported through ScanProgress.
const (
	PhaseScanning   = "scanning"
	PhaseProcessing = "processing"
	PhaseDone       = "done"
)

// ScanProgress reports the progress of an import.
type ScanProgress struct {
	Phase       string
	Current     int
	Total       int
	CurrentFile string
}

// ImportStats holds the outcome of an import.
type ImportStats struct {
	Added      []string         // inserted and analyzed
	Unanalyzed []string         // inserted, analysis failed
	Skipped    []string         // already in the catalog
	Failed     map[string]error // not inserted
}

// IngestFunc inserts one file into the catalog. When it returns a track
// together with an error, the track was stored but not fully enriched.
// Both enrich.Coordinator.Ingest and catalog.Store.InsertTrack fit.
type IngestFunc func(ctx context.Context, title, filePath string) (*catalog.Track, error)

// Catalog lists what is already stored.
type Catalog interface {
	ListTracks(ctx context.Context) ([]catalog.Track, error)
}

// Option configures an Importer.
type Option func(*Importer)

// WithWorkers sets how many files are ingested concurrently.
func WithWorkers(n int) Option {
	return func(im *Importer) {
		if n > 0 {
			im.workers = n
		}
	}
}

// WithLogger sets the importer logger.
func WithLogger(log *zap.Logger) Option {
	return func(im *Importer) {
		if log != nil {
			im.log = log
		}
	}
}

// Importer adds every music file under a set of roots that the catalog does
// not know yet.
type Importer struct {
	catalog Catalog
	ingest  IngestFunc
	workers int
	log     *zap.Logger
}

// NewImporter returns an Importer writing through ingest.
func NewImporter(cat Catalog, ingest IngestFunc, opts ...Option) *Importer {
	im := &Importer{
		catalog: cat,
		ingest:  ingest,
		workers: defaultWorkers,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

type ingestResult struct {
	path string
	err  error
	// stored is true when the track row exists despite err.
	stored bool
}

// Import scans roots and ingests the new files. Files already cataloged
// (same file path) are skipped. Per-file failures are collected in the
// stats. The returned error reports a missing root or a catalog that could
// not be listed, and is also set when ctx was cancelled. progress may be nil; when set it is closed on
// return.
func (im *Importer) Import(ctx context.Context, roots []string, progress chan<- ScanProgress) (*ImportStats, error) {
	if progress != nil {
		defer close(progress)
	}
	report := func(p ScanProgress) {
		if progress == nil {
			return
		}
		select {
		case progress <- p:
		case <-ctx.Done():
		}
	}

	stats := &ImportStats{Failed: make(map[string]error)}

	// Phase 1: find music files
	report(ScanProgress{Phase: PhaseScanning})
	files, err := discoverFiles(roots)
	if err != nil {
		return nil, err
	}

	// Phase 2: drop the ones already in the catalog
	existing, err := im.catalog.ListTracks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	known := make(map[string]struct{}, len(existing))
	for i := range existing {
		known[existing[i].FilePath] = struct{}{}
	}
	toIngest := make([]string, 0, len(files))
	for _, f := range files {
		if _, ok := known[f]; ok {
			stats.Skipped = append(stats.Skipped, f)
			continue
		}
		toIngest = append(toIngest, f)
	}

	im.log.Info("import scan finished",
		zap.Int("found", len(files)),
		zap.Int("new", len(toIngest)),
		zap.Int("skipped", len(stats.Skipped)))

	// Phase 3: ingest in parallel. The store serializes writes itself;
	// analysis runs concurrently.
	total := len(toIngest)
	workCh := make(chan string)
	resultCh := make(chan ingestResult)

	var wg sync.WaitGroup
	for range min(im.workers, max(total, 1)) {
		wg.Go(func() {
			for path := range workCh {
				t, err := im.ingest(ctx, enrich.TitleFromPath(path), path)
				resultCh <- ingestResult{path: path, err: err, stored: t != nil}
			}
		})
	}

	go func() {
		defer close(workCh)
		for _, f := range toIngest {
			select {
			case workCh <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	processed := 0
	for res := range resultCh {
		processed++
		switch {
		case res.err == nil:
			stats.Added = append(stats.Added, res.path)
		case res.stored:
			stats.Unanalyzed = append(stats.Unanalyzed, res.path)
			im.log.Warn("track imported without analysis", zap.String("path", res.path), zap.Error(res.err))
		default:
			stats.Failed[res.path] = res.err
			im.log.Warn("track import failed", zap.String("path", res.path), zap.Error(res.err))
		}
		report(ScanProgress{Phase: PhaseProcessing, Current: processed, Total: total, CurrentFile: res.path})
	}

	report(ScanProgress{Phase: PhaseDone, Current: processed, Total: total})

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	return stats, nil
}
