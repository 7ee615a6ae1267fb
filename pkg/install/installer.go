// Package install applies a verified, fully staged update to a live
// install tree. Each patched file is verified against the manifest's
// post-apply hash before it replaces the original, and the originals are
// kept beside their targets until the whole install has succeeded, so a
// mid-install failure restores every file it touched.
package install

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/avendale/updraft/pkg/archive"
	"github.com/avendale/updraft/pkg/checksum"
	"github.com/avendale/updraft/pkg/download"
	"github.com/avendale/updraft/pkg/logging"
	"github.com/avendale/updraft/pkg/models"
	"github.com/avendale/updraft/pkg/patch"
)

// bakSuffix marks the per-file originals kept during an install
const bakSuffix = ".bak"

// Installer applies staged updates to one install tree
type Installer struct {
	installRoot string
	entryPoint  string
	logger      logging.Logger
}

// New creates an installer for installRoot. entryPoint, if non-empty, is
// the application file (relative to installRoot) whose presence is
// verified after every install. logger may be nil.
func New(installRoot, entryPoint string, logger logging.Logger) *Installer {
	return &Installer{
		installRoot: installRoot,
		entryPoint:  entryPoint,
		logger:      logging.OrNull(logger),
	}
}

// Install patches every delta target, extracts the new-files archive and
// runs the post-install check. On any failure every file already replaced
// in this run is restored from its kept original, then the error is
// returned. Files listed as deleted in the manifest are left in place.
func (i *Installer) Install(ctx context.Context, manifest *models.UpdateManifest, staged *download.StagedUpdate) error {
	var replaced []string

	fail := func(err error) error {
		i.restoreOriginals(ctx, replaced)
		return err
	}

	for _, df := range manifest.DeltaFiles {
		select {
		case <-ctx.Done():
			return fail(ctx.Err())
		default:
		}

		patchPath := staged.PathFor(df.Name)
		if patchPath == "" {
			return fail(fmt.Errorf("patch asset %s is not staged", df.Name))
		}

		if err := i.applyDelta(ctx, df, patchPath); err != nil {
			return fail(fmt.Errorf("failed to update %s: %w", df.TargetFile, err))
		}
		replaced = append(replaced, df.TargetFile)
	}

	if manifest.NewFiles != nil {
		archivePath := staged.PathFor(manifest.NewFiles.Name)
		if archivePath == "" {
			return fail(fmt.Errorf("new-files archive %s is not staged", manifest.NewFiles.Name))
		}
		if err := archive.Extract(ctx, archivePath, i.installRoot); err != nil {
			return fail(fmt.Errorf("failed to extract new files: %w", err))
		}
	}

	if err := i.smokeTest(); err != nil {
		return fail(err)
	}

	i.discardOriginals(replaced)

	i.logger.Info(ctx, "install complete", logging.Fields{
		"version": manifest.Version,
		"patched": len(manifest.DeltaFiles),
		"deleted": len(manifest.DeletedFiles),
	})
	return nil
}

// applyDelta patches a single target file in place. The original is kept
// at <target>.bak; the patched content lands via a temp sibling and an
// atomic rename, and must match the manifest's recorded post-apply hash.
func (i *Installer) applyDelta(ctx context.Context, df models.DeltaFile, patchPath string) error {
	if !models.SafeTargetPath(df.TargetFile) {
		return fmt.Errorf("unsafe target path: %q", df.TargetFile)
	}
	target := filepath.Join(i.installRoot, filepath.FromSlash(df.TargetFile))

	oldBytes, err := os.ReadFile(target)
	if err != nil {
		return fmt.Errorf("failed to read current file: %w", err)
	}

	encoded, err := os.ReadFile(patchPath)
	if err != nil {
		return fmt.Errorf("failed to read staged patch: %w", err)
	}

	newBytes, err := patch.Apply(oldBytes, encoded)
	if err != nil {
		return err
	}

	if got := checksum.Sum(newBytes); got != df.TargetHash {
		return fmt.Errorf("patched content hash %s does not match expected %s", got, df.TargetHash)
	}

	perm := os.FileMode(0644)
	if info, err := os.Stat(target); err == nil {
		perm = info.Mode().Perm()
	}

	if err := os.WriteFile(target+bakSuffix, oldBytes, perm); err != nil {
		return fmt.Errorf("failed to keep original: %w", err)
	}

	tmpPath := target + ".tmp-" + checksum.Key(df.TargetFile)
	if err := os.WriteFile(tmpPath, newBytes, perm); err != nil {
		os.Remove(target + bakSuffix)
		return fmt.Errorf("failed to write patched file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		os.Remove(target + bakSuffix)
		return fmt.Errorf("failed to replace file: %w", err)
	}

	i.logger.Debug(ctx, "file patched", logging.Fields{"file": df.TargetFile, "size": len(newBytes)})
	return nil
}

// smokeTest verifies the configured entry point survived the install
func (i *Installer) smokeTest() error {
	if i.entryPoint == "" {
		return nil
	}

	path := filepath.Join(i.installRoot, filepath.FromSlash(i.entryPoint))
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("post-install check failed: entry point %s missing: %w", i.entryPoint, err)
	}
	if info.IsDir() || info.Size() == 0 {
		return fmt.Errorf("post-install check failed: entry point %s is not a usable file", i.entryPoint)
	}
	return nil
}

// restoreOriginals puts back every kept original for the given targets
func (i *Installer) restoreOriginals(ctx context.Context, targets []string) {
	for _, rel := range targets {
		target := filepath.Join(i.installRoot, filepath.FromSlash(rel))
		if err := os.Rename(target+bakSuffix, target); err != nil {
			i.logger.Error(ctx, "failed to restore original", err, logging.Fields{"file": rel})
			continue
		}
		i.logger.Warn(ctx, "restored original after failed install", logging.Fields{"file": rel})
	}
}

// discardOriginals removes the kept originals after a verified install
func (i *Installer) discardOriginals(targets []string) {
	for _, rel := range targets {
		os.Remove(filepath.Join(i.installRoot, filepath.FromSlash(rel)) + bakSuffix)
	}
}
