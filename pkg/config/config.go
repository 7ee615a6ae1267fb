package config

import (
	"github.com/avendale/updraft/pkg/backup"
	"github.com/avendale/updraft/pkg/models"
)

// Config represents the application configuration
type Config struct {
	Channel ChannelConfig `yaml:"channel"`
	Install InstallConfig `yaml:"install"`
	Build   BuildConfig   `yaml:"build"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
	Exclude []string      `yaml:"exclude"`
}

// ChannelConfig holds release channel settings
type ChannelConfig struct {
	URL string `yaml:"url"`
}

// InstallConfig holds consumer-side settings
type InstallConfig struct {
	Root            string `yaml:"root"`
	EntryPoint      string `yaml:"entry_point"`
	StagingDir      string `yaml:"staging_dir"`
	BackupDir       string `yaml:"backup_dir"`
	BackupRetention int    `yaml:"backup_retention"`
	FallbackVersion string `yaml:"fallback_version"`
}

// BuildConfig holds producer-side settings
type BuildConfig struct {
	OutDir              string `yaml:"out_dir"`
	RequiresFullRestart bool   `yaml:"requires_full_restart"`
}

// OutputConfig holds output-related settings
type OutputConfig struct {
	Format   string `yaml:"format"`   // "human" or "json"
	Progress bool   `yaml:"progress"` // Show progress bars
	Quiet    bool   `yaml:"quiet"`    // Suppress non-error output
}

// LoggingConfig holds logging-related settings
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Format  string `yaml:"format"` // "json" or "text"
	Level   string `yaml:"level"`  // "debug", "info", "warn", "error"
	File    string `yaml:"file"`   // Log file path (empty = stderr)
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Channel: ChannelConfig{
			URL: "",
		},
		Install: InstallConfig{
			Root:            ".",
			EntryPoint:      "",
			StagingDir:      ".updraft/staging",
			BackupDir:       ".updraft/backups",
			BackupRetention: backup.DefaultRetention,
			FallbackVersion: "0.0.0",
		},
		Build: BuildConfig{
			OutDir:              "dist",
			RequiresFullRestart: false,
		},
		Output: OutputConfig{
			Format:   "human",
			Progress: true,
			Quiet:    false,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Format:  "json",
			Level:   "info",
			File:    "",
		},
		Exclude: []string{
			"*.tmp",
			".git/",
			"node_modules/",
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Install.Root == "" {
		return &models.ValidationError{
			Field:   "install.root",
			Message: "is required",
		}
	}

	if c.Install.BackupRetention < 1 {
		return &models.ValidationError{
			Field:   "install.backup_retention",
			Message: "must be at least 1",
		}
	}

	validFormats := map[string]bool{"human": true, "json": true}
	if !validFormats[c.Output.Format] {
		return &models.ValidationError{
			Field:   "output.format",
			Message: "must be 'human' or 'json'",
		}
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return &models.ValidationError{
			Field:   "logging.format",
			Message: "must be 'json' or 'text'",
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return &models.ValidationError{
			Field:   "logging.level",
			Message: "must be 'debug', 'info', 'warn', or 'error'",
		}
	}

	return nil
}
