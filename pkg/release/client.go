package release

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/avendale/updraft/pkg/logging"
	"github.com/avendale/updraft/pkg/models"
	"github.com/avendale/updraft/pkg/version"
)

// ManifestAssetName is the asset under which every release publishes its
// update manifest
const ManifestAssetName = "manifest.json"

// CheckResult carries everything a newer release offers
type CheckResult struct {
	// Manifest is the parsed update descriptor
	Manifest *models.UpdateManifest

	// Release is the channel release the manifest came from; the
	// downloader needs it to resolve asset URLs by name
	Release *Release
}

// Client resolves "is there a version newer than mine" against a channel
type Client struct {
	channel Channel
	logger  logging.Logger
}

// NewClient creates a release client. logger may be nil.
func NewClient(channel Channel, logger logging.Logger) *Client {
	return &Client{
		channel: channel,
		logger:  logging.OrNull(logger),
	}
}

// CheckForUpdates returns the latest release's manifest when its tag is
// strictly newer than currentVersion under numeric dotted comparison,
// or nil when already up to date. Errors are non-fatal; callers may
// retry later.
func (c *Client) CheckForUpdates(ctx context.Context, currentVersion string) (*CheckResult, error) {
	rel, err := c.channel.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("update check failed: %w", err)
	}

	newer, err := version.IsNewer(rel.Tag, currentVersion)
	if err != nil {
		return nil, fmt.Errorf("update check failed: %w", err)
	}
	if !newer {
		c.logger.Debug(ctx, "already up to date", logging.Fields{"current": currentVersion, "latest": rel.Tag})
		return nil, nil
	}

	manifest, err := c.fetchManifest(ctx, rel)
	if err != nil {
		return nil, fmt.Errorf("update check failed: %w", err)
	}

	c.logger.Info(ctx, "update available", logging.Fields{
		"current": currentVersion,
		"latest":  rel.Tag,
		"patches": len(manifest.DeltaFiles),
	})

	return &CheckResult{Manifest: manifest, Release: rel}, nil
}

// fetchManifest downloads and validates a release's manifest asset
func (c *Client) fetchManifest(ctx context.Context, rel *Release) (*models.UpdateManifest, error) {
	asset := rel.FindAsset(ManifestAssetName)
	if asset == nil {
		return nil, fmt.Errorf("release %s has no %s asset", rel.Tag, ManifestAssetName)
	}

	var buf bytes.Buffer
	if err := c.channel.Fetch(ctx, asset, &buf); err != nil {
		return nil, err
	}

	var manifest models.UpdateManifest
	if err := json.Unmarshal(buf.Bytes(), &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := manifest.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	return &manifest, nil
}
