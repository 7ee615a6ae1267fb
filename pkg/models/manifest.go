package models

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// DeltaFile describes one downloadable patch asset in a manifest
type DeltaFile struct {
	// Name is the asset name under which the patch is published
	Name string `json:"name"`

	// TargetFile is the slash-separated relative path the patch applies to
	TargetFile string `json:"targetFile"`

	// Size is the exact byte size of the patch asset
	Size int64 `json:"size"`

	// Hash is the SHA-256 of the patch asset bytes
	Hash string `json:"hash"`

	// OriginalSize is the byte size of the new version of the target file
	OriginalSize int64 `json:"originalSize"`

	// SizeReduction is OriginalSize minus Size
	SizeReduction int64 `json:"sizeReduction"`

	// ReductionPercentage is SizeReduction relative to OriginalSize
	ReductionPercentage float64 `json:"reductionPercentage"`

	// TargetHash is the SHA-256 the target file must have after the patch
	// is applied
	TargetHash string `json:"targetHash"`
}

// NewFilesInfo describes the single compressed container of added files
type NewFilesInfo struct {
	// Name is the asset name of the container
	Name string `json:"name"`

	// Size is the exact byte size of the compressed container
	Size int64 `json:"size"`

	// Hash is the SHA-256 of the container bytes
	Hash string `json:"hash"`

	// UncompressedSize is the total byte size of the contained files
	UncompressedSize int64 `json:"uncompressedSize"`
}

// Statistics aggregates size accounting for a whole update
type Statistics struct {
	TotalOriginalSize   int64   `json:"totalOriginalSize"`
	TotalPatchSize      int64   `json:"totalPatchSize"`
	TotalSizeReduction  int64   `json:"totalSizeReduction"`
	ReductionPercentage float64 `json:"reductionPercentage"`
}

// UpdateManifest is the published descriptor of one version transition.
// It names the downloadable assets; it never embeds their bytes.
// A manifest is immutable once published.
type UpdateManifest struct {
	// Version is the version this update produces
	Version string `json:"version"`

	// FromVersion is the version this update applies to. Empty for an
	// initial release.
	FromVersion string `json:"fromVersion,omitempty"`

	// GeneratedAt is when the producer built this update
	GeneratedAt time.Time `json:"generatedAt"`

	// DeltaFiles lists the patch assets, in application order
	DeltaFiles []DeltaFile `json:"deltaFiles"`

	// NewFiles describes the added-files container, if any files were added
	NewFiles *NewFilesInfo `json:"newFiles,omitempty"`

	// DeletedFiles lists relative paths removed in the new release.
	// Informational only.
	DeletedFiles []string `json:"deletedFiles,omitempty"`

	// Statistics aggregates the size accounting
	Statistics Statistics `json:"statistics"`

	// RequiresFullRestart indicates the host process must restart after
	// a successful install
	RequiresFullRestart bool `json:"requiresFullRestart"`
}

// SafeAssetName reports whether name can be used as a bare file name
// inside the staging directory. Release assets are a flat namespace, so
// any path separator or traversal component marks a hostile manifest.
func SafeAssetName(name string) bool {
	return name != "" && !strings.ContainsAny(name, `/\`) && filepath.IsLocal(name)
}

// SafeTargetPath reports whether rel is a slash-separated relative path
// that stays confined to the install root when joined onto it
func SafeTargetPath(rel string) bool {
	return rel != "" && !strings.Contains(rel, `\`) && filepath.IsLocal(filepath.FromSlash(rel))
}

// Validate checks that the manifest carries everything an install needs.
// Manifests come from the release channel, so every name and target path
// is also checked for staging/install root escapes.
func (m *UpdateManifest) Validate() error {
	if m.Version == "" {
		return fmt.Errorf("manifest missing version")
	}
	for i, df := range m.DeltaFiles {
		if df.Name == "" {
			return fmt.Errorf("deltaFiles[%d] missing asset name", i)
		}
		if !SafeAssetName(df.Name) {
			return fmt.Errorf("deltaFiles[%d] has an unsafe asset name: %q", i, df.Name)
		}
		if df.TargetFile == "" {
			return fmt.Errorf("deltaFiles[%d] missing target file", i)
		}
		if !SafeTargetPath(df.TargetFile) {
			return fmt.Errorf("deltaFiles[%d] has an unsafe target path: %q", i, df.TargetFile)
		}
		if df.Hash == "" {
			return fmt.Errorf("deltaFiles[%d] missing hash", i)
		}
		if df.TargetHash == "" {
			return fmt.Errorf("deltaFiles[%d] missing target hash", i)
		}
		if df.Size <= 0 {
			return fmt.Errorf("deltaFiles[%d] has invalid size %d", i, df.Size)
		}
	}
	if m.NewFiles != nil {
		if m.NewFiles.Name == "" {
			return fmt.Errorf("newFiles missing asset name")
		}
		if !SafeAssetName(m.NewFiles.Name) {
			return fmt.Errorf("newFiles has an unsafe asset name: %q", m.NewFiles.Name)
		}
		if m.NewFiles.Hash == "" {
			return fmt.Errorf("newFiles missing hash")
		}
		if m.NewFiles.Size <= 0 {
			return fmt.Errorf("newFiles has invalid size %d", m.NewFiles.Size)
		}
	}
	return nil
}

// AssetNames returns the names of every downloadable asset in the manifest
func (m *UpdateManifest) AssetNames() []string {
	names := make([]string, 0, len(m.DeltaFiles)+1)
	for _, df := range m.DeltaFiles {
		names = append(names, df.Name)
	}
	if m.NewFiles != nil {
		names = append(names, m.NewFiles.Name)
	}
	return names
}
