package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func validManifest() *UpdateManifest {
	return &UpdateManifest{
		Version:     "1.0.1",
		FromVersion: "1.0.0",
		GeneratedAt: time.Now(),
		DeltaFiles: []DeltaFile{
			{
				Name:                "app.js.patch",
				TargetFile:          "app.js",
				Size:                40,
				Hash:                "aabb",
				OriginalSize:        36,
				SizeReduction:       -4,
				ReductionPercentage: -11.1,
				TargetHash:          "ccdd",
			},
		},
		NewFiles: &NewFilesInfo{
			Name: "newfiles-1.0.1.tar.gz",
			Size: 128,
			Hash: "eeff",
		},
		DeletedFiles: []string{"legacy.js"},
		Statistics: Statistics{
			TotalOriginalSize: 36,
			TotalPatchSize:    40,
		},
		RequiresFullRestart: true,
	}
}

func TestManifestValidate(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		if err := validManifest().Validate(); err != nil {
			t.Errorf("Validate() error = %v, want nil", err)
		}
	})

	t.Run("MissingVersion", func(t *testing.T) {
		m := validManifest()
		m.Version = ""
		if err := m.Validate(); err == nil {
			t.Error("Validate() should fail without version")
		}
	})

	t.Run("MissingTargetFile", func(t *testing.T) {
		m := validManifest()
		m.DeltaFiles[0].TargetFile = ""
		if err := m.Validate(); err == nil {
			t.Error("Validate() should fail without target file")
		}
	})

	t.Run("MissingTargetHash", func(t *testing.T) {
		m := validManifest()
		m.DeltaFiles[0].TargetHash = ""
		if err := m.Validate(); err == nil {
			t.Error("Validate() should fail without target hash")
		}
	})

	t.Run("InvalidNewFilesSize", func(t *testing.T) {
		m := validManifest()
		m.NewFiles.Size = 0
		if err := m.Validate(); err == nil {
			t.Error("Validate() should fail with zero newFiles size")
		}
	})

	t.Run("EscapingAssetName", func(t *testing.T) {
		for _, name := range []string{"../../escape.patch", "a/b.patch", `a\b.patch`, ".."} {
			m := validManifest()
			m.DeltaFiles[0].Name = name
			if err := m.Validate(); err == nil {
				t.Errorf("Validate() should reject asset name %q", name)
			}
		}
	})

	t.Run("EscapingTargetPath", func(t *testing.T) {
		for _, target := range []string{"../outside.js", "/etc/passwd", `..\outside.js`, ".."} {
			m := validManifest()
			m.DeltaFiles[0].TargetFile = target
			if err := m.Validate(); err == nil {
				t.Errorf("Validate() should reject target path %q", target)
			}
		}
	})

	t.Run("EscapingNewFilesName", func(t *testing.T) {
		m := validManifest()
		m.NewFiles.Name = "../newfiles.tar.gz"
		if err := m.Validate(); err == nil {
			t.Error("Validate() should reject an escaping newFiles name")
		}
	})

	t.Run("NestedTargetPathAllowed", func(t *testing.T) {
		m := validManifest()
		m.DeltaFiles[0].TargetFile = "lib/helper.js"
		if err := m.Validate(); err != nil {
			t.Errorf("Validate() error = %v for a nested target path", err)
		}
	})
}

func TestManifestAssetNames(t *testing.T) {
	m := validManifest()
	names := m.AssetNames()

	if len(names) != 2 {
		t.Fatalf("AssetNames() length = %d, want 2", len(names))
	}
	if names[0] != "app.js.patch" {
		t.Errorf("names[0] = %s, want app.js.patch", names[0])
	}
	if names[1] != "newfiles-1.0.1.tar.gz" {
		t.Errorf("names[1] = %s, want newfiles-1.0.1.tar.gz", names[1])
	}

	m.NewFiles = nil
	if got := len(m.AssetNames()); got != 1 {
		t.Errorf("AssetNames() without newFiles length = %d, want 1", got)
	}
}

func TestManifestJSONFieldNames(t *testing.T) {
	data, err := json.Marshal(validManifest())
	if err != nil {
		t.Fatalf("failed to marshal manifest: %v", err)
	}

	doc := string(data)
	for _, field := range []string{
		`"version"`, `"fromVersion"`, `"generatedAt"`, `"deltaFiles"`,
		`"targetFile"`, `"originalSize"`, `"sizeReduction"`,
		`"reductionPercentage"`, `"newFiles"`, `"deletedFiles"`,
		`"statistics"`, `"totalOriginalSize"`, `"requiresFullRestart"`,
	} {
		if !strings.Contains(doc, field) {
			t.Errorf("manifest JSON missing field %s", field)
		}
	}
}

func TestDiffResultCounts(t *testing.T) {
	d := &DiffResult{
		Modified:  []ModifiedPair{{Old: FileRecord{Path: "a"}, New: FileRecord{Path: "a"}}},
		Added:     []FileRecord{{Path: "b"}},
		Deleted:   []FileRecord{{Path: "c"}},
		Unchanged: []FileRecord{{Path: "d"}, {Path: "e"}},
	}

	if got := d.TotalPaths(); got != 5 {
		t.Errorf("TotalPaths() = %d, want 5", got)
	}
	if !d.HasChanges() {
		t.Error("HasChanges() should be true")
	}

	empty := &DiffResult{Unchanged: []FileRecord{{Path: "a"}}}
	if empty.HasChanges() {
		t.Error("HasChanges() should be false for unchanged-only result")
	}
}

func TestUpdateStateString(t *testing.T) {
	tests := []struct {
		state    UpdateState
		expected string
	}{
		{StateIdle, "idle"},
		{StateChecking, "checking"},
		{StateUpdateAvailable, "update_available"},
		{StateDownloading, "downloading"},
		{StateDownloaded, "downloaded"},
		{StateInstalling, "installing"},
		{StateInstalled, "installed"},
		{StateFailed, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if tt.state.String() != tt.expected {
				t.Errorf("String() = %s, want %s", tt.state.String(), tt.expected)
			}
		})
	}
}
