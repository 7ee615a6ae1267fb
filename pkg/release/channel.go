// Package release talks to the release-hosting service. The engine only
// assumes a generic HTTPS release API: list the latest tagged release with
// its named, sized assets, and fetch asset bytes by URL. Nothing here is
// vendor specific.
package release

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Asset is one downloadable file attached to a release
type Asset struct {
	// Name is the published asset name
	Name string `json:"name"`

	// Size is the asset byte size as reported by the channel
	Size int64 `json:"size"`

	// Digest is an optional content digest ("sha256:<hex>" or bare hex)
	Digest string `json:"digest,omitempty"`

	// DownloadURL is where the asset bytes live
	DownloadURL string `json:"browser_download_url"`
}

// Release is one published, tagged release
type Release struct {
	// Tag is the release's version tag
	Tag string `json:"tag_name"`

	// Assets are the release's downloadable files
	Assets []Asset `json:"assets"`
}

// FindAsset returns the named asset, or nil if the release lacks it
func (r *Release) FindAsset(name string) *Asset {
	for i := range r.Assets {
		if r.Assets[i].Name == name {
			return &r.Assets[i]
		}
	}
	return nil
}

// SHA256 returns the asset digest as bare lowercase hex, or empty if the
// channel did not report one
func (a *Asset) SHA256() string {
	digest := strings.TrimPrefix(a.Digest, "sha256:")
	return strings.ToLower(digest)
}

// Channel abstracts the release-hosting service
type Channel interface {
	// Latest returns the most recently published release
	Latest(ctx context.Context) (*Release, error)

	// Fetch streams an asset's bytes into w
	Fetch(ctx context.Context, asset *Asset, w io.Writer) error
}

// HTTPChannel implements Channel against a generic HTTPS release API
type HTTPChannel struct {
	baseURL string
	client  *http.Client
}

// NewHTTPChannel creates a channel rooted at baseURL. client may be nil.
func NewHTTPChannel(baseURL string, client *http.Client) *HTTPChannel {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPChannel{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
}

// Latest fetches and parses the latest-release document
func (c *HTTPChannel) Latest(ctx context.Context) (*Release, error) {
	url := c.baseURL + "/releases/latest"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build release request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query release channel: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("release channel returned %s", resp.Status)
	}

	var rel Release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, fmt.Errorf("failed to parse release document: %w", err)
	}
	if rel.Tag == "" {
		return nil, fmt.Errorf("release document missing tag")
	}

	return &rel, nil
}

// Fetch streams an asset's bytes into w
func (c *HTTPChannel) Fetch(ctx context.Context, asset *Asset, w io.Writer) error {
	if asset.DownloadURL == "" {
		return fmt.Errorf("asset %s has no download URL", asset.Name)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.DownloadURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build asset request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch asset %s: %w", asset.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("asset %s returned %s", asset.Name, resp.Status)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to read asset %s: %w", asset.Name, err)
	}
	return nil
}
