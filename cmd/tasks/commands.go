package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"tasksync/internal/models"
	"tasksync/internal/syncer"

	"github.com/spf13/cobra"
)

// withApp opens the client for one command and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app, userID string) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	userID, err := a.user()
	if err != nil {
		return fmt.Errorf("%w (set TASKS_USER, --user or AUTH_TOKEN)", err)
	}
	return fn(ctx, a, userID)
}

var errTitleRequired = errors.New("title is required")

// requireTitle is a CLI convention; stored tasks may have an empty title.
func requireTitle(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errTitleRequired
	}
	return s, nil
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	GroupID: "tasks",
	Short:   "List local tasks",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app, userID string) error {
			tasks, err := a.coord.Tasks(ctx, userID)
			if err != nil {
				return err
			}
			printTasks(cmd.OutOrStdout(), tasks)
			return nil
		})
	},
}

var addDescription string

var addCmd = &cobra.Command{
	Use:     "add <title>",
	GroupID: "tasks",
	Short:   "Add a task",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title, err := requireTitle(strings.Join(args, " "))
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app, userID string) error {
			t, err := a.coord.Insert(ctx, userID, models.Task{
				Title:       title,
				Description: addDescription,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s%s\n", t.ID, syncedSuffix(t))
			return nil
		})
	},
}

var (
	editTitle       string
	editDescription string
	editDone        bool
	editUndone      bool
)

var editCmd = &cobra.Command{
	Use:     "edit <id>",
	GroupID: "tasks",
	Short:   "Change a task's title, description or completion",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app, userID string) error {
			t, found, err := a.coord.Task(ctx, userID, args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("task %s not found", args[0])
			}
			flags := cmd.Flags()
			if flags.Changed("title") {
				t.Title = editTitle
			}
			if flags.Changed("description") {
				t.Description = editDescription
			}
			if editDone {
				t.Completed = true
			}
			if editUndone {
				t.Completed = false
			}
			t, err = a.coord.Update(ctx, userID, t)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s%s\n", t.ID, syncedSuffix(t))
			return nil
		})
	},
}

var rmLocalOnly bool

var rmCmd = &cobra.Command{
	Use:     "rm <id>",
	GroupID: "tasks",
	Short:   "Delete a task",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app, userID string) error {
			var err error
			if rmLocalOnly {
				err = a.coord.DeleteLocalOnly(ctx, userID, args[0])
			} else {
				err = a.coord.DeleteTask(ctx, userID, args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		})
	},
}

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Run one sync cycle now",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app, userID string) error {
			res, err := a.coord.SyncTasks(ctx, userID)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show local database and connectivity status",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app, userID string) error {
			total, unsynced, err := a.store.Count(ctx, userID)
			if err != nil {
				return err
			}
			pending, err := a.store.PendingDeletes(ctx, userID)
			if err != nil {
				return err
			}
			online := "offline"
			if a.probe.IsOnline() {
				online = "online"
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "User:            %s\n", userID)
			fmt.Fprintf(w, "Database:        %s\n", a.store.Path())
			fmt.Fprintf(w, "Remote:          %s (%s)\n", a.cfg.RemoteMode, online)
			fmt.Fprintf(w, "Tasks:           %d\n", total)
			fmt.Fprintf(w, "Unsynced:        %d\n", unsynced)
			fmt.Fprintf(w, "Pending deletes: %d\n", len(pending))
			fmt.Fprintf(w, "Remote tasks:    %s\n", remoteCount(ctx, a.remote, a.probe.IsOnline(), userID))
			return nil
		})
	},
}

// remoteCount reports the size of the remote collection. A failed fetch
// counts as empty.
func remoteCount(ctx context.Context, remote syncer.RemoteStore, online bool, userID string) string {
	if !online {
		return "unknown (offline)"
	}
	return strconv.Itoa(len(syncer.GetAll(ctx, remote, userID)))
}

func init() {
	addCmd.Flags().StringVarP(&addDescription, "description", "d", "", "Task description")

	editCmd.Flags().StringVarP(&editTitle, "title", "t", "", "New title")
	editCmd.Flags().StringVarP(&editDescription, "description", "d", "", "New description")
	editCmd.Flags().BoolVar(&editDone, "done", false, "Mark completed")
	editCmd.Flags().BoolVar(&editUndone, "undone", false, "Mark not completed")
	editCmd.MarkFlagsMutuallyExclusive("done", "undone")

	rmCmd.Flags().BoolVar(&rmLocalOnly, "local-only", false, "Remove from this device only")
}

func printTasks(out io.Writer, tasks []models.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(out, "No tasks.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, t := range tasks {
		check := "[ ]"
		if t.Completed {
			check = "[x]"
		}
		sync := ""
		if !t.IsSynced {
			sync = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, check, t.Title, sync)
	}
	_ = w.Flush()
}

func printResult(out io.Writer, res syncer.Result) {
	if res.Skipped {
		fmt.Fprintln(out, "Offline, sync skipped.")
		return
	}
	fmt.Fprintf(out, "Pushed %d (failed %d), deletes flushed %d, pulled %d, conflicts %d in %s\n",
		res.Pushed, res.PushFailed, res.DeletesFlushed, res.Pulled, res.Conflicts, res.Duration.Round(time.Millisecond))
	if res.PullFailed {
		fmt.Fprintln(os.Stderr, "Warning: remote fetch failed, local tasks left as they were")
	}
}

func syncedSuffix(t models.Task) string {
	if t.IsSynced {
		return ""
	}
	return " (not synced yet)"
}
