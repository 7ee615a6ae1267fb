// Package backup creates and restores full-tree snapshots of the install
// directory. A snapshot is taken immediately before any install mutates
// the tree; restoring the latest snapshot is the rollback path after a
// failed install. Retention is bounded: the oldest archives are pruned.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/avendale/updraft/pkg/archive"
	"github.com/avendale/updraft/pkg/diff"
	"github.com/avendale/updraft/pkg/logging"
	"github.com/avendale/updraft/pkg/models"
)

// DefaultRetention is how many backup archives are kept
const DefaultRetention = 3

// archivePrefix and archiveSuffix frame every backup file name:
// backup-<version>-<unix-nanos>.tar.zst
const (
	archivePrefix = "backup-"
	archiveSuffix = ".tar.zst"
)

// defaultExcludes are never archived: caches, version-control metadata
// and the engine's own artifacts
var defaultExcludes = []string{
	".git/",
	"node_modules/",
	"logs/",
	"*.tmp",
	"*.bak",
}

// ErrNoBackup reports that a restore was requested with no backup on disk
var ErrNoBackup = errors.New("no backup available")

// Manager owns the backup directory
type Manager struct {
	dir       string
	retention int
	excludes  []string
	logger    logging.Logger
}

// NewManager creates a manager storing archives under dir. retention <= 0
// selects DefaultRetention; extraExcludes extends the fixed exclusion
// list (e.g. with the staging directory). logger may be nil.
func NewManager(dir string, retention int, extraExcludes []string, logger logging.Logger) *Manager {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Manager{
		dir:       dir,
		retention: retention,
		excludes:  append(append([]string{}, defaultExcludes...), extraExcludes...),
		logger:    logging.OrNull(logger),
	}
}

// Create archives every non-excluded file under installRoot, tags the
// archive with currentVersion and the current time, then prunes old
// archives down to the retention limit
func (m *Manager) Create(ctx context.Context, installRoot, currentVersion string) (*models.BackupRecord, error) {
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	paths, err := m.collectFiles(ctx, installRoot)
	if err != nil {
		return nil, err
	}

	createdAt := time.Now()
	name := fmt.Sprintf("%s%s-%d%s", archivePrefix, sanitizeVersion(currentVersion), createdAt.UnixNano(), archiveSuffix)
	archivePath := filepath.Join(m.dir, name)

	if _, err := archive.Build(ctx, archivePath, installRoot, paths); err != nil {
		os.Remove(archivePath)
		return nil, fmt.Errorf("failed to write backup archive: %w", err)
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat backup archive: %w", err)
	}

	if err := m.prune(ctx); err != nil {
		return nil, err
	}

	record := &models.BackupRecord{
		Name:      name,
		Version:   currentVersion,
		CreatedAt: createdAt,
		Size:      info.Size(),
	}
	m.logger.Info(ctx, "backup created", logging.Fields{
		"archive": name,
		"files":   len(paths),
		"size":    record.Size,
	})
	return record, nil
}

// RestoreLatest extracts the most recent backup over installRoot,
// overwriting in place
func (m *Manager) RestoreLatest(ctx context.Context, installRoot string) error {
	records, err := m.List()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return ErrNoBackup
	}

	latest := records[len(records)-1]
	m.logger.Info(ctx, "restoring backup", logging.Fields{"archive": latest.Name, "version": latest.Version})

	if err := archive.Extract(ctx, filepath.Join(m.dir, latest.Name), installRoot); err != nil {
		return fmt.Errorf("failed to restore backup %s: %w", latest.Name, err)
	}
	return nil
}

// List returns the retained backups ordered oldest first
func (m *Manager) List() ([]models.BackupRecord, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var records []models.BackupRecord
	for _, entry := range entries {
		record, ok := parseArchiveName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		record.Size = info.Size()
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

// HasBackup reports whether at least one backup archive exists
func (m *Manager) HasBackup() bool {
	records, err := m.List()
	return err == nil && len(records) > 0
}

// collectFiles lists the non-excluded files under installRoot
func (m *Manager) collectFiles(ctx context.Context, installRoot string) ([]string, error) {
	excludes := m.excludes
	// never archive the backup directory into itself
	if rel, err := filepath.Rel(installRoot, m.dir); err == nil && filepath.IsLocal(rel) {
		excludes = append(append([]string{}, excludes...), filepath.ToSlash(rel)+"/")
	}

	var paths []string
	err := filepath.WalkDir(installRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rel, err := filepath.Rel(installRoot, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if diff.ShouldExclude(rel, excludes) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan install tree: %w", err)
	}

	return paths, nil
}

// prune removes the oldest archives beyond the retention limit
func (m *Manager) prune(ctx context.Context) error {
	records, err := m.List()
	if err != nil {
		return err
	}

	for len(records) > m.retention {
		oldest := records[0]
		if err := os.Remove(filepath.Join(m.dir, oldest.Name)); err != nil {
			return fmt.Errorf("failed to prune backup %s: %w", oldest.Name, err)
		}
		m.logger.Debug(ctx, "pruned backup", logging.Fields{"archive": oldest.Name})
		records = records[1:]
	}
	return nil
}

// sanitizeVersion keeps the version usable as a file name segment.
// Hyphens stay as-is: the timestamp after the last hyphen is all digits,
// so parseArchiveName recovers hyphenated versions like 1.0.0-rc1
// unchanged.
func sanitizeVersion(v string) string {
	if v == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, v)
}

// parseArchiveName recovers a BackupRecord from an archive file name
func parseArchiveName(name string) (models.BackupRecord, bool) {
	if !strings.HasPrefix(name, archivePrefix) || !strings.HasSuffix(name, archiveSuffix) {
		return models.BackupRecord{}, false
	}

	core := strings.TrimSuffix(strings.TrimPrefix(name, archivePrefix), archiveSuffix)
	sep := strings.LastIndex(core, "-")
	if sep <= 0 {
		return models.BackupRecord{}, false
	}

	nanos, err := strconv.ParseInt(core[sep+1:], 10, 64)
	if err != nil {
		return models.BackupRecord{}, false
	}

	return models.BackupRecord{
		Name:      name,
		Version:   core[:sep],
		CreatedAt: time.Unix(0, nanos),
	}, true
}
