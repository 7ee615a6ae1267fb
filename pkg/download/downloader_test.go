package download

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/avendale/updraft/pkg/checksum"
	"github.com/avendale/updraft/pkg/models"
	"github.com/avendale/updraft/pkg/release"
)

// memChannel serves asset bodies from memory, writing in small chunks so
// cancellation and progress get exercised at chunk boundaries
type memChannel struct {
	bodies      map[string][]byte
	beforeFetch func(name string)
}

func (m *memChannel) Latest(ctx context.Context) (*release.Release, error) {
	return nil, errors.New("not used")
}

func (m *memChannel) Fetch(ctx context.Context, asset *release.Asset, w io.Writer) error {
	if m.beforeFetch != nil {
		m.beforeFetch(asset.Name)
	}
	body, ok := m.bodies[asset.Name]
	if !ok {
		return errors.New("no such asset: " + asset.Name)
	}

	const chunk = 8
	for off := 0; off < len(body); off += chunk {
		end := off + chunk
		if end > len(body) {
			end = len(body)
		}
		if _, err := w.Write(body[off:end]); err != nil {
			return err
		}
	}
	return nil
}

func TestDownloaderSuite(t *testing.T) {
	patchBody := []byte("patch-bytes-for-app.js")
	archiveBody := []byte("tar-gz-bytes-for-new-files")

	manifest := &models.UpdateManifest{
		Version: "1.0.1",
		DeltaFiles: []models.DeltaFile{
			{
				Name:       "app.js.patch",
				TargetFile: "app.js",
				Size:       int64(len(patchBody)),
				Hash:       checksum.Sum(patchBody),
				TargetHash: "ffff",
			},
		},
		NewFiles: &models.NewFilesInfo{
			Name: "newfiles-1.0.1.tar.gz",
			Size: int64(len(archiveBody)),
			Hash: checksum.Sum(archiveBody),
		},
	}

	newRelease := func() *release.Release {
		return &release.Release{
			Tag: "1.0.1",
			Assets: []release.Asset{
				{Name: "app.js.patch", Size: int64(len(patchBody)), DownloadURL: "mem://patch"},
				{Name: "newfiles-1.0.1.tar.gz", Size: int64(len(archiveBody)), DownloadURL: "mem://archive"},
			},
		}
	}

	t.Run("SuccessStagesAllAssets", func(t *testing.T) {
		staging := t.TempDir()
		ch := &memChannel{bodies: map[string][]byte{
			"app.js.patch":          patchBody,
			"newfiles-1.0.1.tar.gz": archiveBody,
		}}

		var lastRead, lastTotal int64
		staged, err := New(staging, ch, nil).Download(context.Background(), manifest, newRelease(), func(read, total int64) {
			lastRead, lastTotal = read, total
		})
		if err != nil {
			t.Fatalf("Download() error = %v", err)
		}

		for _, name := range manifest.AssetNames() {
			path := staged.PathFor(name)
			if path == "" {
				t.Fatalf("asset %s not staged", name)
			}
			if _, err := os.Stat(path); err != nil {
				t.Errorf("staged file missing: %v", err)
			}
		}

		data, _ := os.ReadFile(staged.PathFor("app.js.patch"))
		if string(data) != string(patchBody) {
			t.Error("staged patch content mismatch")
		}

		wantTotal := int64(len(patchBody) + len(archiveBody))
		if lastRead != wantTotal || lastTotal != wantTotal {
			t.Errorf("progress read/total = %d/%d, want %d/%d", lastRead, lastTotal, wantTotal, wantTotal)
		}
	})

	t.Run("HashMismatchLeavesNoFiles", func(t *testing.T) {
		staging := t.TempDir()
		ch := &memChannel{bodies: map[string][]byte{
			"app.js.patch":          []byte("corrupted-bytes-not-it!"),
			"newfiles-1.0.1.tar.gz": archiveBody,
		}}

		_, err := New(staging, ch, nil).Download(context.Background(), manifest, newRelease(), nil)
		if !errors.Is(err, ErrIntegrity) {
			t.Fatalf("Download() error = %v, want ErrIntegrity", err)
		}

		assertEmptyDir(t, staging)
	})

	t.Run("SizeMismatchLeavesNoFiles", func(t *testing.T) {
		staging := t.TempDir()
		// correct hash is impossible with the wrong size; use a truncated
		// body so the size gate trips first
		ch := &memChannel{bodies: map[string][]byte{
			"app.js.patch":          patchBody[:5],
			"newfiles-1.0.1.tar.gz": archiveBody,
		}}

		_, err := New(staging, ch, nil).Download(context.Background(), manifest, newRelease(), nil)
		if !errors.Is(err, ErrIntegrity) {
			t.Fatalf("Download() error = %v, want ErrIntegrity", err)
		}

		assertEmptyDir(t, staging)
	})

	t.Run("FailureDiscardsEarlierAssets", func(t *testing.T) {
		staging := t.TempDir()
		// first asset good, second corrupted: nothing may survive
		ch := &memChannel{bodies: map[string][]byte{
			"app.js.patch":          patchBody,
			"newfiles-1.0.1.tar.gz": []byte("wrong"),
		}}

		_, err := New(staging, ch, nil).Download(context.Background(), manifest, newRelease(), nil)
		if !errors.Is(err, ErrIntegrity) {
			t.Fatalf("Download() error = %v, want ErrIntegrity", err)
		}

		assertEmptyDir(t, staging)
	})

	t.Run("MissingReleaseAsset", func(t *testing.T) {
		staging := t.TempDir()
		rel := &release.Release{Tag: "1.0.1"} // no assets at all

		_, err := New(staging, &memChannel{}, nil).Download(context.Background(), manifest, rel, nil)
		if err == nil {
			t.Fatal("Download() should fail when the release lacks a named asset")
		}
		assertEmptyDir(t, staging)
	})

	t.Run("EscapingAssetNameRejected", func(t *testing.T) {
		// a hostile manifest must not turn an asset name into a rename
		// target outside the staging directory
		parent := t.TempDir()
		staging := filepath.Join(parent, "nested", "staging")
		if err := os.MkdirAll(staging, 0755); err != nil {
			t.Fatal(err)
		}

		escaping := &models.UpdateManifest{
			Version: "1.0.1",
			DeltaFiles: []models.DeltaFile{
				{
					Name:       "../../escape.patch",
					TargetFile: "app.js",
					Size:       int64(len(patchBody)),
					Hash:       checksum.Sum(patchBody),
					TargetHash: "ffff",
				},
			},
		}
		rel := &release.Release{
			Tag: "1.0.1",
			Assets: []release.Asset{
				{Name: "../../escape.patch", Size: int64(len(patchBody)), DownloadURL: "mem://escape"},
			},
		}
		ch := &memChannel{bodies: map[string][]byte{"../../escape.patch": patchBody}}

		_, err := New(staging, ch, nil).Download(context.Background(), escaping, rel, nil)
		if err == nil {
			t.Fatal("Download() should reject an escaping asset name")
		}
		if _, statErr := os.Stat(filepath.Join(parent, "escape.patch")); statErr == nil {
			t.Error("asset escaped the staging directory")
		}
		assertEmptyDir(t, staging)
	})

	t.Run("OpenRejectsEscapingName", func(t *testing.T) {
		if _, err := Open(t.TempDir(), []string{"../escape.patch"}); err == nil {
			t.Error("Open() should reject an escaping asset name")
		}
	})

	t.Run("CancellationDiscardsStagedFiles", func(t *testing.T) {
		staging := t.TempDir()
		ctx, cancel := context.WithCancel(context.Background())

		ch := &memChannel{
			bodies: map[string][]byte{
				"app.js.patch":          patchBody,
				"newfiles-1.0.1.tar.gz": archiveBody,
			},
			// cancel mid-flight, after the first asset staged
			beforeFetch: func(name string) {
				if name == "newfiles-1.0.1.tar.gz" {
					cancel()
				}
			},
		}

		_, err := New(staging, ch, nil).Download(ctx, manifest, newRelease(), nil)
		if err == nil {
			t.Fatal("Download() should fail when cancelled")
		}
		assertEmptyDir(t, staging)
	})
}

// assertEmptyDir fails if dir contains any file (staged or partial)
func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read staging dir: %v", err)
	}
	for _, e := range entries {
		t.Errorf("unexpected file left in staging dir: %s", filepath.Join(dir, e.Name()))
	}
}
