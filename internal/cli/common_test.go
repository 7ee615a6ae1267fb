package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/avendale/updraft/pkg/config"
	"github.com/avendale/updraft/pkg/logging"
)

func TestCreateLogger(t *testing.T) {
	t.Run("DefaultGoesToStderr", func(t *testing.T) {
		cfg := config.Default()
		logger, err := createLogger(cfg, "", "", "")
		if err != nil {
			t.Fatalf("createLogger() error = %v", err)
		}
		defer logger.Close()

		if _, ok := logger.(*logging.WriterLogger); !ok {
			t.Errorf("logger = %T, want *logging.WriterLogger for stderr output", logger)
		}
	})

	t.Run("DisabledIsNull", func(t *testing.T) {
		cfg := config.Default()
		cfg.Logging.Enabled = false
		logger, err := createLogger(cfg, "", "", "")
		if err != nil {
			t.Fatalf("createLogger() error = %v", err)
		}
		if _, ok := logger.(*logging.NullLogger); !ok {
			t.Errorf("logger = %T, want *logging.NullLogger when disabled", logger)
		}
	})

	t.Run("FileFlagWins", func(t *testing.T) {
		cfg := config.Default()
		path := filepath.Join(t.TempDir(), "updraft.log")
		logger, err := createLogger(cfg, path, "text", "debug")
		if err != nil {
			t.Fatalf("createLogger() error = %v", err)
		}
		logger.Close()

		if _, err := os.Stat(path); err != nil {
			t.Errorf("log file not created: %v", err)
		}
	})
}
