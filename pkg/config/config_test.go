package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"MissingInstallRoot", func(c *Config) { c.Install.Root = "" }},
		{"ZeroRetention", func(c *Config) { c.Install.BackupRetention = 0 }},
		{"BadOutputFormat", func(c *Config) { c.Output.Format = "yaml" }},
		{"BadLogFormat", func(c *Config) { c.Logging.Format = "xml" }},
		{"BadLogLevel", func(c *Config) { c.Logging.Level = "trace" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() should fail")
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Channel.URL = "https://releases.example.com/myapp"
	cfg.Install.Root = "/opt/myapp"
	cfg.Install.EntryPoint = "main.js"
	cfg.Install.BackupRetention = 5

	if err := SaveToFile(cfg, path); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if loaded.Channel.URL != cfg.Channel.URL {
		t.Errorf("channel url = %s, want %s", loaded.Channel.URL, cfg.Channel.URL)
	}
	if loaded.Install.Root != "/opt/myapp" || loaded.Install.EntryPoint != "main.js" {
		t.Errorf("install settings not round-tripped: %+v", loaded.Install)
	}
	if loaded.Install.BackupRetention != 5 {
		t.Errorf("backup retention = %d, want 5", loaded.Install.BackupRetention)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	partial := "channel:\n  url: https://releases.example.com/myapp\n"
	if err := os.WriteFile(path, []byte(partial), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.Channel.URL != "https://releases.example.com/myapp" {
		t.Errorf("channel url = %s", cfg.Channel.URL)
	}
	if cfg.Install.BackupRetention != Default().Install.BackupRetention {
		t.Error("unset fields should keep their defaults")
	}
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: trace\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFromFile(path); err == nil {
		t.Error("LoadFromFile() should reject an invalid configuration")
	}
}
