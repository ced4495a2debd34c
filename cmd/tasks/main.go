// Command tasks is the offline-first task client: a local SQLite table kept
// in sync with the remote task API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tasksync/internal/config"
	"tasksync/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	envFile  string
	dbPath   string
	userFlag string
	cfg      config.Config
)

var rootCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Offline-first task list with background sync",
	Long: `tasks keeps your task list in a local database and syncs it with the
remote task API whenever the network is available.

Writes always succeed locally. Unsynced tasks are pushed on the next sync,
and conflicting edits are settled by last-write-wins on the task timestamp.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.LoadEnvFile(envFile)
		cfg = config.Load()
		if dbPath != "" {
			cfg.LocalDBPath = dbPath
		}
		if userFlag != "" {
			cfg.User = userFlag
		}
		setupLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Load environment from this file if present")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Local database path (overrides LOCAL_DB_PATH)")
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "Act as this user (overrides TASKS_USER and the token subject)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "tasks", Title: "Task Commands:"},
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
	)
	rootCmd.AddCommand(listCmd, addCmd, editCmd, rmCmd, shellCmd, syncCmd, statusCmd, daemonCmd)
}

// setupLogging keeps stdout for command output. Logs go to stderr at warn
// unless LOG_LEVEL or LOG_FILE say otherwise.
func setupLogging() {
	opts := logger.Options{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
		File:   os.Getenv("LOG_FILE"),
	}
	if opts.Level == "" {
		opts.Level = "warn"
	}
	if opts.Format == "" {
		opts.Format = "text"
	}
	if opts.File == "" {
		opts.Writer = os.Stderr
	}
	logger.SetDefault(logger.New(opts))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
