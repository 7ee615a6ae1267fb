package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"

	"github.com/avendale/updraft/pkg/config"
	"github.com/avendale/updraft/pkg/update"
)

// UpdateFlags holds flags shared by the check and update commands
type UpdateFlags struct {
	Channel string
	Root    string
	// Logging flags
	LogFile   string
	LogFormat string
	LogLevel  string
}

var updateFlags UpdateFlags

func addUpdateFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&updateFlags.Channel, "channel", "", "release channel base URL (default from config)")
	cmd.Flags().StringVar(&updateFlags.Root, "root", "", "install directory (default from config)")
	cmd.Flags().StringVar(&updateFlags.LogFile, "log-file", "", "write logs to file (enables logging)")
	cmd.Flags().StringVar(&updateFlags.LogFormat, "log-format", "", "log format: text, json")
	cmd.Flags().StringVar(&updateFlags.LogLevel, "log-level", "", "log level: debug, info, warn, error")
}

// applyUpdateFlags overrides config values with command-line flags
func applyUpdateFlags(cfg *config.Config) {
	if updateFlags.Channel != "" {
		cfg.Channel.URL = updateFlags.Channel
	}
	if updateFlags.Root != "" {
		cfg.Install.Root = updateFlags.Root
	}
	if globalFlags.Quiet {
		cfg.Output.Progress = false
		cfg.Output.Quiet = true
	}
}

// NewCheckCommand creates the check command
func NewCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the release channel for a newer version",
		RunE:  runCheck,
	}
	addUpdateFlags(cmd)
	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	engine, cleanup, err := setupEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	manifest, err := engine.Check(commandContext(cmd))
	if err != nil {
		return err
	}

	snap := engine.State()
	if manifest == nil {
		if !globalFlags.Quiet {
			fmt.Printf("Already up to date (version %s)\n", snap.CurrentVersion)
		}
		return nil
	}

	fmt.Printf("Update available: %s -> %s\n", snap.CurrentVersion, manifest.Version)
	fmt.Printf("  Patches:   %d\n", len(manifest.DeltaFiles))
	if manifest.NewFiles != nil {
		fmt.Printf("  New files: %s (%d bytes)\n", manifest.NewFiles.Name, manifest.NewFiles.Size)
	}
	if manifest.RequiresFullRestart {
		fmt.Println("  The application must be restarted after this update.")
	}
	return nil
}

// NewUpdateCommand creates the update command
func NewUpdateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Check, download and install the latest version",
		Long: `Run the full update cycle: query the release channel, download and
verify the update assets, snapshot the current install and apply the
update. A failed install is rolled back automatically.`,
		RunE: runUpdate,
	}
	addUpdateFlags(cmd)
	return cmd
}

func runUpdate(cmd *cobra.Command, args []string) error {
	engine, cleanup, err := setupEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := commandContext(cmd)

	manifest, err := engine.Check(ctx)
	if err != nil {
		return err
	}
	if manifest == nil {
		if !globalFlags.Quiet {
			fmt.Printf("Already up to date (version %s)\n", engine.State().CurrentVersion)
		}
		return nil
	}

	if !globalFlags.Quiet {
		fmt.Printf("Updating %s -> %s\n", engine.State().CurrentVersion, manifest.Version)
	}

	if err := downloadWithProgress(ctx, engine); err != nil {
		return err
	}

	if err := engine.Install(ctx); err != nil {
		return err
	}

	if !globalFlags.Quiet {
		fmt.Printf("Updated to version %s\n", manifest.Version)
		if engine.State().RequiresRestart {
			fmt.Println("Restart the application to finish the update.")
		}
	}
	return nil
}

// downloadWithProgress runs the download, rendering a progress bar fed
// from the engine's state while it is in flight
func downloadWithProgress(ctx context.Context, engine *update.Engine) error {
	if globalFlags.Quiet {
		return engine.Download(ctx)
	}

	bar := pb.Full.Start64(100)
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				bar.SetCurrent(int64(engine.State().Progress * 100))
			}
		}
	}()

	err := engine.Download(ctx)
	close(done)
	if err == nil {
		bar.SetCurrent(100)
	}
	bar.Finish()
	return err
}

// setupEngine loads configuration, applies flag overrides and wires an
// engine plus its logger cleanup
func setupEngine() (*update.Engine, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyUpdateFlags(cfg)

	logger, err := createLogger(cfg, updateFlags.LogFile, updateFlags.LogFormat, updateFlags.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	engine, err := createEngine(cfg, logger)
	if err != nil {
		logger.Close()
		return nil, nil, err
	}
	return engine, func() { logger.Close() }, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
