package library

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/llehouerou/beatbank/internal/tags"
)

// discoverFiles walks the given roots and returns the absolute paths of all
// music files found, sorted and without duplicates. A root may also name a
// single file. Roots must exist; errors below a root are skipped.
func discoverFiles(roots []string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string

	add := func(path string) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return
		}
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		files = append(files, abs)
	}

	for _, root := range roots {
		if _, err := os.Stat(root); err != nil {
			return nil, fmt.Errorf("import root: %w", err)
		}
		_ = filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
			// Skip any walk errors - intentionally continuing to scan other paths
			if walkErr != nil {
				return nil //nolint:nilerr // intentionally skipping errors
			}
			if d.IsDir() {
				return nil
			}
			if !d.Type().IsRegular() || !tags.IsMusicFile(path) {
				return nil
			}
			add(path)
			return nil
		})
	}

	slices.Sort(files)
	return files, nil
}
