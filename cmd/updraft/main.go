package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/avendale/updraft/internal/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	rootCmd := &cobra.Command{
		Use:   "updraft",
		Short: "Delta update engine for installed applications",
		Long: `updraft builds and applies binary delta updates. On the producer side
it diffs two release trees into per-file patches plus an archive of new
files, described by a manifest of sizes and hashes. On the consumer side it checks
a release channel, downloads and verifies the assets, snapshots the
install and applies the update with automatic rollback on failure.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add global flags
	cli.AddGlobalFlags(rootCmd)

	// Add commands
	rootCmd.AddCommand(cli.NewBuildCommand())
	rootCmd.AddCommand(cli.NewCheckCommand())
	rootCmd.AddCommand(cli.NewUpdateCommand())
	rootCmd.AddCommand(cli.NewRollbackCommand())
	rootCmd.AddCommand(cli.NewBackupsCommand())
	rootCmd.AddCommand(cli.NewConfigCommand())
	rootCmd.AddCommand(cli.NewVersionCommand())

	return rootCmd.Execute()
}
