package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avendale/updraft/internal/platform"
	"github.com/avendale/updraft/pkg/backup"
	"github.com/avendale/updraft/pkg/update"
)

// NewRollbackCommand creates the rollback command
func NewRollbackCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Restore the install directory from the latest backup",
		RunE:  runRollback,
	}
	addUpdateFlags(cmd)
	return cmd
}

func runRollback(cmd *cobra.Command, args []string) error {
	engine, cleanup, err := setupEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := engine.Rollback(commandContext(cmd)); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}

	if !globalFlags.Quiet {
		fmt.Printf("Restored version %s from backup\n", engine.State().CurrentVersion)
	}
	return nil
}

// NewBackupsCommand creates the backups command
func NewBackupsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backups",
		Short: "List the retained pre-install backups",
		RunE:  runBackups,
	}
	addUpdateFlags(cmd)
	return cmd
}

func runBackups(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyUpdateFlags(cfg)

	backupDir := platform.ResolveUnder(cfg.Install.Root, cfg.Install.BackupDir)
	manager := backup.NewManager(backupDir, cfg.Install.BackupRetention, nil, nil)

	records, err := manager.List()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No backups.")
		return nil
	}

	current, _ := update.ReadVersion(cfg.Install.Root)
	if current != "" {
		fmt.Printf("Installed version: %s\n", current)
	}
	for _, r := range records {
		fmt.Printf("  %s  version %-10s  %d bytes  %s\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"), r.Version, r.Size, r.Name)
	}
	return nil
}
