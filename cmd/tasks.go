package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tasklane/apiserver/config"
	"github.com/tasklane/apiserver/internal/logging"
	"github.com/tasklane/apiserver/internal/services"
	"github.com/tasklane/apiserver/internal/storage"
	"github.com/tasklane/apiserver/internal/store"
)

var restoreKey string

// tasksCmd groups task store maintenance commands.
var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Back up and restore the task store",
}

var tasksBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Upload a snapshot of the task file to object storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackupService(cmd, func(svc *services.BackupService) error {
			key, err := svc.Backup(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		})
	},
}

var tasksRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Replace the task file with a snapshot from object storage",
	Long: `Replace the task file with a snapshot from object storage.

Stop the API server before restoring. The server only serialises writes
within its own process, so a task written while the restore runs is lost.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(restoreKey) == "" {
			return errors.New("--key is required")
		}
		return withBackupService(cmd, func(svc *services.BackupService) error {
			n, err := svc.Restore(cmd.Context(), restoreKey)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %d tasks from %s\n", n, restoreKey)
			return nil
		})
	},
}

func withBackupService(cmd *cobra.Command, fn func(*services.BackupService) error) error {
	cfg := config.LoadConfig()
	log := logging.New(cfg.Log)

	objects, err := storage.Open(cmd.Context(), cfg.Storage)
	if err != nil {
		return err
	}
	if closer, ok := objects.(io.Closer); ok {
		defer closer.Close()
	}

	return fn(services.NewBackupService(store.NewTaskRepository(cfg.Tasks.File), objects, log))
}

func init() {
	rootCmd.AddCommand(tasksCmd)
	tasksCmd.AddCommand(tasksBackupCmd)
	tasksCmd.AddCommand(tasksRestoreCmd)

	tasksRestoreCmd.Flags().StringVar(&restoreKey, "key", "", "object key of the snapshot to restore")
}
