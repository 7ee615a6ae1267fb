package archive

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("failed to create parent dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", rel, err)
		}
	}
}

func readTree(t *testing.T, dir string, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("failed to read %s: %v", rel, err)
	}
	return string(data)
}

func TestBuildAndExtract(t *testing.T) {
	formats := []string{"bundle.tar.gz", "bundle.tar.zst"}

	for _, name := range formats {
		t.Run(name, func(t *testing.T) {
			srcDir := t.TempDir()
			files := map[string]string{
				"app.js":            "console.log('hello')",
				"resources/data.js": "export const data = []",
			}
			writeTree(t, srcDir, files)

			archivePath := filepath.Join(t.TempDir(), name)
			total, err := Build(context.Background(), archivePath, srcDir, []string{"app.js", "resources/data.js"})
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}

			wantTotal := int64(len(files["app.js"]) + len(files["resources/data.js"]))
			if total != wantTotal {
				t.Errorf("Build() uncompressed total = %d, want %d", total, wantTotal)
			}

			destDir := t.TempDir()
			if err := Extract(context.Background(), archivePath, destDir); err != nil {
				t.Fatalf("Extract() error = %v", err)
			}

			for rel, content := range files {
				if got := readTree(t, destDir, rel); got != content {
					t.Errorf("extracted %s = %q, want %q", rel, got, content)
				}
			}
		})
	}
}

func TestExtractOverwritesInPlace(t *testing.T) {
	srcDir := t.TempDir()
	writeTree(t, srcDir, map[string]string{"app.js": "new content"})

	archivePath := filepath.Join(t.TempDir(), "b.tar.gz")
	if _, err := Build(context.Background(), archivePath, srcDir, []string{"app.js"}); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	destDir := t.TempDir()
	writeTree(t, destDir, map[string]string{"app.js": "old content", "other.js": "untouched"})

	if err := Extract(context.Background(), archivePath, destDir); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got := readTree(t, destDir, "app.js"); got != "new content" {
		t.Errorf("app.js = %q, want overwritten content", got)
	}
	if got := readTree(t, destDir, "other.js"); got != "untouched" {
		t.Errorf("other.js = %q, want untouched", got)
	}
}

func TestList(t *testing.T) {
	srcDir := t.TempDir()
	writeTree(t, srcDir, map[string]string{"a.js": "a", "sub/b.js": "b"})

	archivePath := filepath.Join(t.TempDir(), "l.tar.gz")
	if _, err := Build(context.Background(), archivePath, srcDir, []string{"a.js", "sub/b.js"}); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	paths, err := List(context.Background(), archivePath)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	sort.Strings(paths)

	want := []string{"a.js", "sub/b.js"}
	if len(paths) != len(want) {
		t.Fatalf("List() = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("List()[%d] = %s, want %s", i, paths[i], want[i])
		}
	}
}

func TestBuildMissingFile(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "m.tar.gz")
	_, err := Build(context.Background(), archivePath, t.TempDir(), []string{"does-not-exist.js"})
	if err == nil {
		t.Error("Build() should fail for a missing source file")
	}
}

func TestBuildUnsupportedFormat(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "m.rar")
	_, err := Build(context.Background(), archivePath, t.TempDir(), nil)
	if err == nil {
		t.Error("Build() should fail for an unsupported extension")
	}
}

func TestExtractCancelled(t *testing.T) {
	srcDir := t.TempDir()
	writeTree(t, srcDir, map[string]string{"a.js": "a"})

	archivePath := filepath.Join(t.TempDir(), "c.tar.gz")
	if _, err := Build(context.Background(), archivePath, srcDir, []string{"a.js"}); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Extract(ctx, archivePath, t.TempDir()); err == nil {
		t.Error("Extract() should fail with cancelled context")
	}
}
