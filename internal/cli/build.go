package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/avendale/updraft/internal/platform"
	"github.com/avendale/updraft/pkg/builder"
)

// BuildFlags holds build command flags
type BuildFlags struct {
	OldDir          string
	NewDir          string
	OldVersion      string
	NewVersion      string
	OutDir          string
	Exclude         []string
	RequiresRestart bool
	// Logging flags
	LogFile   string
	LogFormat string
	LogLevel  string
}

var buildFlags BuildFlags

// NewBuildCommand creates the build command
func NewBuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build an update package from two release trees",
		Long: `Diff an old and a new release tree, encode a binary patch per modified
file, pack added files into a compressed archive and write the update
manifest. The output directory is ready for upload to a release channel.`,
		RunE: runBuild,
	}

	cmd.Flags().StringVar(&buildFlags.OldDir, "old", "", "previous release tree (empty for an initial release)")
	cmd.Flags().StringVar(&buildFlags.NewDir, "new", "", "new release tree (required)")
	cmd.MarkFlagRequired("new")

	cmd.Flags().StringVar(&buildFlags.OldVersion, "old-version", "", "version of the previous release")
	cmd.Flags().StringVar(&buildFlags.NewVersion, "new-version", "", "version of the new release (required)")
	cmd.MarkFlagRequired("new-version")

	cmd.Flags().StringVarP(&buildFlags.OutDir, "out", "o", "", "output directory (default from config)")
	cmd.Flags().StringSliceVar(&buildFlags.Exclude, "exclude", []string{}, "glob patterns to exclude from the diff")
	cmd.Flags().BoolVar(&buildFlags.RequiresRestart, "requires-restart", false, "mark the update as needing a full application restart")

	cmd.Flags().StringVar(&buildFlags.LogFile, "log-file", "", "write logs to file (enables logging)")
	cmd.Flags().StringVar(&buildFlags.LogFormat, "log-format", "", "log format: text, json")
	cmd.Flags().StringVar(&buildFlags.LogLevel, "log-level", "", "log level: debug, info, warn, error")

	return cmd
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := platform.ValidateInstallRoot(buildFlags.NewDir); err != nil {
		return err
	}
	oldDir := buildFlags.OldDir
	if oldDir == "" {
		// initial release: diff against an empty tree so everything ships
		// in the new-files archive
		oldDir, err = os.MkdirTemp("", "updraft-empty-*")
		if err != nil {
			return fmt.Errorf("failed to create empty tree: %w", err)
		}
		defer os.RemoveAll(oldDir)
	} else {
		if err := platform.ValidateInstallRoot(oldDir); err != nil {
			return err
		}
		if platform.SamePath(oldDir, buildFlags.NewDir) {
			return fmt.Errorf("old and new trees cannot be the same: %s", buildFlags.NewDir)
		}
	}

	outDir := buildFlags.OutDir
	if outDir == "" {
		outDir = cfg.Build.OutDir
	}

	exclude := cfg.Exclude
	if len(buildFlags.Exclude) > 0 {
		exclude = buildFlags.Exclude
	}

	logger, err := createLogger(cfg, buildFlags.LogFile, buildFlags.LogFormat, buildFlags.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()

	var progress func(stage, path string)
	if globalFlags.Verbose && !globalFlags.Quiet {
		progress = func(stage, path string) {
			fmt.Printf("  %-7s %s\n", stage, path)
		}
	}

	result, err := builder.New(exclude, logger).Build(ctx, builder.Request{
		OldRoot:             oldDir,
		NewRoot:             buildFlags.NewDir,
		OldVersion:          buildFlags.OldVersion,
		NewVersion:          buildFlags.NewVersion,
		OutDir:              outDir,
		ExcludePatterns:     exclude,
		RequiresFullRestart: buildFlags.RequiresRestart || cfg.Build.RequiresFullRestart,
		Progress:            progress,
	})
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	if !globalFlags.Quiet {
		m := result.Manifest
		fmt.Printf("Update package %s -> %s written to %s\n", m.FromVersion, m.Version, outDir)
		fmt.Printf("  Patches:  %d (%d shipped whole)\n", result.PatchCount, result.PromotedCount)
		if m.NewFiles != nil {
			fmt.Printf("  Archive:  %s (%d bytes)\n", m.NewFiles.Name, m.NewFiles.Size)
		}
		fmt.Printf("  Deleted:  %d\n", len(m.DeletedFiles))
		if m.Statistics.TotalOriginalSize > 0 {
			fmt.Printf("  Size:     %d -> %d bytes (%.1f%% smaller)\n",
				m.Statistics.TotalOriginalSize, m.Statistics.TotalPatchSize, m.Statistics.ReductionPercentage)
		}
	}

	return nil
}
