// Package download fetches the assets named by an update manifest into a
// local staging directory. Every asset must match the manifest's recorded
// byte size and content hash exactly before it is accepted; any mismatch
// discards the whole attempt, so an update set is never partially staged.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/avendale/updraft/pkg/checksum"
	"github.com/avendale/updraft/pkg/logging"
	"github.com/avendale/updraft/pkg/models"
	"github.com/avendale/updraft/pkg/release"
)

// ErrIntegrity reports a size or hash mismatch on a downloaded asset
var ErrIntegrity = errors.New("downloaded asset failed integrity check")

// expected describes one asset to fetch and the values it must match
type expected struct {
	name string
	size int64
	hash string
}

// StagedUpdate locates the verified assets of one download attempt
type StagedUpdate struct {
	// Dir is the staging directory holding the assets
	Dir string

	// paths maps asset name to staged file path
	paths map[string]string
}

// PathFor returns the staged path of an asset, or empty if not staged
func (s *StagedUpdate) PathFor(assetName string) string {
	return s.paths[assetName]
}

// Open returns a StagedUpdate over assets already present in dir, one
// file per name. Lets an install resume from a previous attempt's staged
// files without refetching them.
func Open(dir string, names []string) (*StagedUpdate, error) {
	staged := &StagedUpdate{Dir: dir, paths: make(map[string]string, len(names))}
	for _, name := range names {
		if !models.SafeAssetName(name) {
			return nil, fmt.Errorf("unsafe asset name: %q", name)
		}
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("asset %s is not staged: %w", name, err)
		}
		staged.paths[name] = path
	}
	return staged, nil
}

// Discard removes every staged file of this attempt
func (s *StagedUpdate) Discard() {
	for _, path := range s.paths {
		os.Remove(path)
	}
	s.paths = map[string]string{}
}

// Downloader fetches update assets one at a time. Update payloads are a
// handful of small files, so sequential fetches keep failure handling
// simple; bulk parallel downloads belong to other subsystems.
type Downloader struct {
	stagingDir string
	channel    release.Channel
	logger     logging.Logger
}

// New creates a downloader staging into stagingDir. logger may be nil.
func New(stagingDir string, channel release.Channel, logger logging.Logger) *Downloader {
	return &Downloader{
		stagingDir: stagingDir,
		channel:    channel,
		logger:     logging.OrNull(logger),
	}
}

// Download fetches every asset the manifest names from the given release.
// progress, if set, receives cumulative bytes read against the total
// expected size. On any failure or cancellation all partially or fully
// staged files of this attempt are removed.
func (d *Downloader) Download(ctx context.Context, manifest *models.UpdateManifest, rel *release.Release, progress func(read, total int64)) (*StagedUpdate, error) {
	if err := os.MkdirAll(d.stagingDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	wanted := expectedAssets(manifest)
	var total int64
	for _, exp := range wanted {
		total += exp.size
	}

	staged := &StagedUpdate{Dir: d.stagingDir, paths: make(map[string]string)}
	var read int64

	for _, exp := range wanted {
		// manifests come from the channel; a name with a path component
		// must never become a rename target
		if !models.SafeAssetName(exp.name) {
			staged.Discard()
			return nil, fmt.Errorf("unsafe asset name in manifest: %q", exp.name)
		}

		asset := rel.FindAsset(exp.name)
		if asset == nil {
			staged.Discard()
			return nil, fmt.Errorf("release %s is missing asset %s", rel.Tag, exp.name)
		}

		path, err := d.fetchOne(ctx, asset, exp, func(n int64) {
			read += n
			if progress != nil {
				progress(read, total)
			}
		})
		if err != nil {
			staged.Discard()
			return nil, err
		}
		staged.paths[exp.name] = path
	}

	d.logger.Info(ctx, "update assets staged", logging.Fields{
		"assets": len(staged.paths),
		"bytes":  read,
	})
	return staged, nil
}

// fetchOne downloads a single asset to a temp file, verifies size and
// hash, and atomically renames it into its staged name
func (d *Downloader) fetchOne(ctx context.Context, asset *release.Asset, exp expected, onRead func(int64)) (string, error) {
	tmpPath := filepath.Join(d.stagingDir, checksum.Key(exp.name)+".part")
	finalPath := filepath.Join(d.stagingDir, exp.name)

	tmp, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("failed to create staging file: %w", err)
	}

	hasher := checksum.New()
	counter := &chunkWriter{ctx: ctx, w: io.MultiWriter(tmp, hasher), onWrite: onRead}

	fetchErr := d.channel.Fetch(ctx, asset, counter)
	closeErr := tmp.Close()
	if fetchErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to download %s: %w", exp.name, fetchErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to finalize %s: %w", exp.name, closeErr)
	}

	if counter.written != exp.size {
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: %s size %d, manifest records %d", ErrIntegrity, exp.name, counter.written, exp.size)
	}
	if got := fmt.Sprintf("%x", hasher.Sum(nil)); got != exp.hash {
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: %s hash %s, manifest records %s", ErrIntegrity, exp.name, got, exp.hash)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to stage %s: %w", exp.name, err)
	}

	d.logger.Debug(ctx, "asset verified", logging.Fields{"asset": exp.name, "size": exp.size})
	return finalPath, nil
}

// expectedAssets lists the manifest's assets with their recorded sizes
// and hashes
func expectedAssets(manifest *models.UpdateManifest) []expected {
	wanted := make([]expected, 0, len(manifest.DeltaFiles)+1)
	for _, df := range manifest.DeltaFiles {
		wanted = append(wanted, expected{name: df.Name, size: df.Size, hash: df.Hash})
	}
	if manifest.NewFiles != nil {
		wanted = append(wanted, expected{name: manifest.NewFiles.Name, size: manifest.NewFiles.Size, hash: manifest.NewFiles.Hash})
	}
	return wanted
}

// chunkWriter counts written bytes, reports them, and checks for
// cancellation at every chunk boundary
type chunkWriter struct {
	ctx     context.Context
	w       io.Writer
	onWrite func(int64)
	written int64
}

func (c *chunkWriter) Write(p []byte) (int, error) {
	select {
	case <-c.ctx.Done():
		return 0, c.ctx.Err()
	default:
	}

	n, err := c.w.Write(p)
	c.written += int64(n)
	if n > 0 && c.onWrite != nil {
		c.onWrite(int64(n))
	}
	return n, err
}
