// Package diff walks two release trees and classifies every file as
// unchanged, modified, added or deleted by content hash. The analysis is
// strictly read-only; classifying a file as deleted never removes it from
// a live installation.
package diff

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/avendale/updraft/pkg/checksum"
	"github.com/avendale/updraft/pkg/models"
)

// Analyzer compares two filesystem roots
type Analyzer struct {
	excludePatterns []string
}

// NewAnalyzer creates an analyzer with the given exclusion patterns
func NewAnalyzer(excludePatterns []string) *Analyzer {
	return &Analyzer{excludePatterns: excludePatterns}
}

// WithExcludes returns a copy of the analyzer with extra exclusion
// patterns appended
func (a *Analyzer) WithExcludes(patterns []string) *Analyzer {
	merged := make([]string, 0, len(a.excludePatterns)+len(patterns))
	merged = append(merged, a.excludePatterns...)
	merged = append(merged, patterns...)
	return &Analyzer{excludePatterns: merged}
}

// Analyze scans oldRoot and newRoot and returns the classified diff.
// Every path present in either tree appears in exactly one result set.
func (a *Analyzer) Analyze(ctx context.Context, oldRoot, newRoot string) (*models.DiffResult, error) {
	oldFiles, err := a.scanTree(ctx, oldRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to scan old tree: %w", err)
	}

	newFiles, err := a.scanTree(ctx, newRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to scan new tree: %w", err)
	}

	result := &models.DiffResult{}

	for path, newRecord := range newFiles {
		oldRecord, exists := oldFiles[path]
		switch {
		case !exists:
			result.Added = append(result.Added, newRecord)
		case oldRecord.Hash != newRecord.Hash:
			result.Modified = append(result.Modified, models.ModifiedPair{Old: oldRecord, New: newRecord})
		default:
			result.Unchanged = append(result.Unchanged, newRecord)
		}
	}

	for path, oldRecord := range oldFiles {
		if _, exists := newFiles[path]; !exists {
			result.Deleted = append(result.Deleted, oldRecord)
		}
	}

	sortResult(result)
	return result, nil
}

// scanTree returns a FileRecord for every non-excluded file under root,
// keyed by slash-separated relative path
func (a *Analyzer) scanTree(ctx context.Context, root string) (map[string]models.FileRecord, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to access root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", root)
	}

	records := make(map[string]models.FileRecord)

	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		relPath, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if relPath == "." {
			return nil
		}

		if ShouldExclude(relPath, a.excludePatterns) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		hash, err := checksum.SumFile(ctx, p)
		if err != nil {
			return err
		}

		records[relPath] = models.FileRecord{
			Path:    relPath,
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Hash:    hash,
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to walk tree: %w", err)
	}

	return records, nil
}

// sortResult orders every set by path so diff output is deterministic
func sortResult(r *models.DiffResult) {
	sort.Slice(r.Modified, func(i, j int) bool { return r.Modified[i].New.Path < r.Modified[j].New.Path })
	sort.Slice(r.Added, func(i, j int) bool { return r.Added[i].Path < r.Added[j].Path })
	sort.Slice(r.Deleted, func(i, j int) bool { return r.Deleted[i].Path < r.Deleted[j].Path })
	sort.Slice(r.Unchanged, func(i, j int) bool { return r.Unchanged[i].Path < r.Unchanged[j].Path })
}
