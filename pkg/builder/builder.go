// Package builder runs the producer pipeline at release-build time: it
// diffs two release trees, encodes a patch per modified file, packs added
// files into a single compressed container and writes the update manifest
// alongside the assets, ready for upload to a release channel.
package builder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avendale/updraft/pkg/archive"
	"github.com/avendale/updraft/pkg/checksum"
	"github.com/avendale/updraft/pkg/diff"
	"github.com/avendale/updraft/pkg/logging"
	"github.com/avendale/updraft/pkg/models"
	"github.com/avendale/updraft/pkg/patch"
)

// ManifestFileName is the name under which the manifest is written and
// published
const ManifestFileName = "manifest.json"

// Request describes one producer run
type Request struct {
	// OldRoot and NewRoot are the release trees to diff
	OldRoot string
	NewRoot string

	// OldVersion and NewVersion label the transition. OldVersion may be
	// empty for an initial release.
	OldVersion string
	NewVersion string

	// OutDir receives the manifest and all assets
	OutDir string

	// ExcludePatterns are per-run diff exclusions (caches, logs, prior
	// artifacts), added on top of the builder's own
	ExcludePatterns []string

	// RequiresFullRestart marks the manifest as needing a process restart
	RequiresFullRestart bool

	// Progress, if set, is called once per processed file
	Progress func(stage, path string)
}

// Result summarizes a producer run
type Result struct {
	// ID uniquely identifies this build
	ID string

	// Manifest is the published descriptor
	Manifest *models.UpdateManifest

	// ManifestPath is where the manifest was written
	ManifestPath string

	// PatchCount is the number of delta assets emitted
	PatchCount int

	// PromotedCount is the number of modified files shipped whole because
	// their patch failed the worthiness rule
	PromotedCount int
}

// Builder produces update packages
type Builder struct {
	analyzer *diff.Analyzer
	logger   logging.Logger
}

// New creates a builder. logger may be nil.
func New(excludePatterns []string, logger logging.Logger) *Builder {
	return &Builder{
		analyzer: diff.NewAnalyzer(excludePatterns),
		logger:   logging.OrNull(logger),
	}
}

// Build runs the full producer pipeline for one version transition
func (b *Builder) Build(ctx context.Context, req Request) (*Result, error) {
	if req.NewVersion == "" {
		return nil, fmt.Errorf("new version is required")
	}
	if err := os.MkdirAll(req.OutDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	buildID := uuid.New().String()
	log := b.logger.WithFields(logging.Fields{"build": buildID, "version": req.NewVersion})
	log.Info(ctx, "analyzing release trees", logging.Fields{"old": req.OldRoot, "new": req.NewRoot})

	analyzer := b.analyzer
	if len(req.ExcludePatterns) > 0 {
		analyzer = b.analyzer.WithExcludes(req.ExcludePatterns)
	}
	diffResult, err := analyzer.Analyze(ctx, req.OldRoot, req.NewRoot)
	if err != nil {
		return nil, err
	}

	manifest := &models.UpdateManifest{
		Version:             req.NewVersion,
		FromVersion:         req.OldVersion,
		GeneratedAt:         time.Now().UTC(),
		RequiresFullRestart: req.RequiresFullRestart,
	}
	for _, rec := range diffResult.Deleted {
		manifest.DeletedFiles = append(manifest.DeletedFiles, rec.Path)
	}

	added := append([]models.FileRecord(nil), diffResult.Added...)
	result := &Result{ID: buildID, Manifest: manifest}

	for _, pair := range diffResult.Modified {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if req.Progress != nil {
			req.Progress("encode", pair.New.Path)
		}

		deltaFile, err := b.encodeOne(ctx, req, pair)
		if errors.Is(err, patch.ErrNotWorthwhile) {
			// low byte-level similarity: ship the whole file instead
			log.Debug(ctx, "patch not worthwhile, shipping whole file", logging.Fields{"file": pair.New.Path})
			added = append(added, pair.New)
			result.PromotedCount++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to encode patch for %s: %w", pair.New.Path, err)
		}

		manifest.DeltaFiles = append(manifest.DeltaFiles, *deltaFile)
		result.PatchCount++
	}

	if len(added) > 0 {
		info, err := b.buildNewFilesArchive(ctx, req, added)
		if err != nil {
			return nil, err
		}
		manifest.NewFiles = info
	}

	fillStatistics(manifest)

	manifestPath := filepath.Join(req.OutDir, ManifestFileName)
	if err := writeManifest(manifest, manifestPath); err != nil {
		return nil, err
	}
	result.ManifestPath = manifestPath

	log.Info(ctx, "update package built", logging.Fields{
		"patches":   result.PatchCount,
		"promoted":  result.PromotedCount,
		"added":     len(added),
		"deleted":   len(manifest.DeletedFiles),
		"reduction": fmt.Sprintf("%.1f%%", manifest.Statistics.ReductionPercentage),
	})

	return result, nil
}

// encodeOne encodes and writes the patch asset for one modified file
func (b *Builder) encodeOne(ctx context.Context, req Request, pair models.ModifiedPair) (*models.DeltaFile, error) {
	oldBytes, err := os.ReadFile(filepath.Join(req.OldRoot, filepath.FromSlash(pair.Old.Path)))
	if err != nil {
		return nil, fmt.Errorf("failed to read old file: %w", err)
	}
	newBytes, err := os.ReadFile(filepath.Join(req.NewRoot, filepath.FromSlash(pair.New.Path)))
	if err != nil {
		return nil, fmt.Errorf("failed to read new file: %w", err)
	}

	p, err := patch.Encode(oldBytes, newBytes)
	if err != nil {
		return nil, err
	}
	p.TargetFile = pair.New.Path

	assetName := AssetName(pair.New.Path)
	encoded := p.Marshal()
	if err := os.WriteFile(filepath.Join(req.OutDir, assetName), encoded, 0644); err != nil {
		return nil, fmt.Errorf("failed to write patch asset: %w", err)
	}

	return &models.DeltaFile{
		Name:                assetName,
		TargetFile:          pair.New.Path,
		Size:                int64(len(encoded)),
		Hash:                checksum.Sum(encoded),
		OriginalSize:        p.OriginalSize,
		SizeReduction:       p.SizeReduction,
		ReductionPercentage: p.ReductionPercentage,
		TargetHash:          p.TargetHash,
	}, nil
}

// buildNewFilesArchive packs the added files into one tar.gz asset
func (b *Builder) buildNewFilesArchive(ctx context.Context, req Request, added []models.FileRecord) (*models.NewFilesInfo, error) {
	name := fmt.Sprintf("newfiles-%s.tar.gz", req.NewVersion)
	archivePath := filepath.Join(req.OutDir, name)

	paths := make([]string, 0, len(added))
	for _, rec := range added {
		if req.Progress != nil {
			req.Progress("archive", rec.Path)
		}
		paths = append(paths, rec.Path)
	}

	uncompressed, err := archive.Build(ctx, archivePath, req.NewRoot, paths)
	if err != nil {
		return nil, fmt.Errorf("failed to build new-files archive: %w", err)
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat new-files archive: %w", err)
	}
	hash, err := checksum.SumFile(ctx, archivePath)
	if err != nil {
		return nil, err
	}

	return &models.NewFilesInfo{
		Name:             name,
		Size:             info.Size(),
		Hash:             hash,
		UncompressedSize: uncompressed,
	}, nil
}

// AssetName derives the published asset name for a target path. Slashes
// are flattened since release assets are a flat namespace.
func AssetName(targetFile string) string {
	return strings.ReplaceAll(targetFile, "/", "_") + ".patch"
}

// fillStatistics aggregates per-patch size accounting
func fillStatistics(m *models.UpdateManifest) {
	var stats models.Statistics
	for _, df := range m.DeltaFiles {
		stats.TotalOriginalSize += df.OriginalSize
		stats.TotalPatchSize += df.Size
	}
	stats.TotalSizeReduction = stats.TotalOriginalSize - stats.TotalPatchSize
	if stats.TotalOriginalSize > 0 {
		stats.ReductionPercentage = float64(stats.TotalSizeReduction) / float64(stats.TotalOriginalSize) * 100
	}
	m.Statistics = stats
}

// writeManifest writes the manifest JSON atomically
func writeManifest(m *models.UpdateManifest, path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize manifest: %w", err)
	}
	return nil
}
