package cli

import (
	"fmt"
	"os"

	"github.com/avendale/updraft/internal/platform"
	"github.com/avendale/updraft/pkg/config"
	"github.com/avendale/updraft/pkg/logging"
	"github.com/avendale/updraft/pkg/release"
	"github.com/avendale/updraft/pkg/update"
)

// loadConfig loads configuration from file or returns default
func loadConfig() (*config.Config, error) {
	if globalFlags.ConfigFile != "" {
		return config.LoadFromFile(globalFlags.ConfigFile)
	}
	return config.LoadDefault()
}

// createLogger creates a logger from the logging config, optionally
// overridden by per-command flags
func createLogger(cfg *config.Config, logFile, logFormat, logLevel string) (logging.Logger, error) {
	if logFile == "" {
		logFile = cfg.Logging.File
	}
	if logFormat == "" {
		logFormat = cfg.Logging.Format
	}
	if logLevel == "" {
		logLevel = cfg.Logging.Level
	}

	if !cfg.Logging.Enabled {
		return logging.NewNullLogger(), nil
	}

	var format logging.Format
	switch logFormat {
	case "json":
		format = logging.FormatJSON
	default:
		format = logging.FormatText
	}

	// without a log file the entries go to stderr, keeping stdout free
	// for command output
	if logFile == "" {
		return logging.NewWriterLogger(os.Stderr, format, logging.ParseLevel(logLevel)), nil
	}
	return logging.NewFileLogger(logFile, format, logging.ParseLevel(logLevel))
}

// createEngine wires an update engine from configuration
func createEngine(cfg *config.Config, logger logging.Logger) (*update.Engine, error) {
	if cfg.Channel.URL == "" {
		return nil, fmt.Errorf("no release channel configured (set channel.url or use --channel)")
	}
	if err := platform.ValidateInstallRoot(cfg.Install.Root); err != nil {
		return nil, err
	}

	return update.NewEngine(update.Options{
		InstallRoot:     cfg.Install.Root,
		StagingDir:      platform.ResolveUnder(cfg.Install.Root, cfg.Install.StagingDir),
		BackupDir:       platform.ResolveUnder(cfg.Install.Root, cfg.Install.BackupDir),
		EntryPoint:      cfg.Install.EntryPoint,
		FallbackVersion: cfg.Install.FallbackVersion,
		BackupRetention: cfg.Install.BackupRetention,
		Logger:          logger,
	}, release.NewHTTPChannel(cfg.Channel.URL, nil)), nil
}
