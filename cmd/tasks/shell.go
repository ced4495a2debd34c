package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"tasksync/internal/models"
	"tasksync/internal/syncer"
	"tasksync/internal/viewstate"

	"github.com/spf13/cobra"
)

const shellHelp = `Commands:
  ls                 list tasks (* = not synced)
  add <title>        add a task
  edit <id> <title>  change a title
  done <id>          mark completed
  undone <id>        mark not completed
  rm <id>            delete a task
  undo               restore the last deleted task
  refresh            sync now
  help               show this help
  quit               leave the shell
Ids may be shortened to any unique prefix.`

var shellCmd = &cobra.Command{
	Use:     "shell",
	GroupID: "tasks",
	Short:   "Interactive task list with background sync",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		userID, err := a.user()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		// The Kafka worker may finish a cycle before the list exists.
		var current atomic.Pointer[viewstate.TaskList]
		bg := startBackground(ctx, a, userID, func(_ string, res syncer.Result, err error) {
			list := current.Load()
			if list == nil || err != nil || res.Skipped {
				return
			}
			if list.Load(ctx, userID) == nil && (res.Pulled > 0 || res.Pushed > 0) {
				fmt.Fprintf(out, "\n[synced: pushed %d, pulled %d]\n> ", res.Pushed, res.Pulled)
			}
		})
		// Unsynced edits stay in the local table; the next start pushes them.
		defer func() {
			cancel()
			bg.stop()
		}()
		list := viewstate.New(a.coord, bg.sched)
		if err := list.Load(ctx, userID); err != nil {
			return err
		}
		current.Store(list)
		bg.sched.OnStart(ctx)

		return runShell(ctx, list, userID, cmd.InOrStdin(), out)
	},
}

func runShell(ctx context.Context, list *viewstate.TaskList, userID string, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for sc.Scan() {
		quit, err := shellLine(ctx, list, userID, sc.Text(), out)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
		if quit || ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(out, "> ")
	}
	return sc.Err()
}

// shellLine runs one shell command. quit reports that the shell should exit.
func shellLine(ctx context.Context, list *viewstate.TaskList, userID, line string, out io.Writer) (quit bool, err error) {
	verb, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	switch verb {
	case "":
		return false, nil
	case "quit", "exit":
		return true, nil
	case "help", "?":
		fmt.Fprintln(out, shellHelp)
	case "ls", "list":
		printTasks(out, list.Tasks())
	case "add":
		title, err := requireTitle(rest)
		if err != nil {
			return false, err
		}
		t, err := list.Insert(ctx, userID, models.Task{Title: title})
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "Added %s\n", t.ID)
	case "edit":
		idArg, title, _ := strings.Cut(rest, " ")
		t, err := findTask(list, idArg)
		if err != nil {
			return false, err
		}
		if t.Title, err = requireTitle(title); err != nil {
			return false, err
		}
		_, err = list.Update(ctx, userID, t)
		return false, err
	case "done", "undone":
		t, err := findTask(list, rest)
		if err != nil {
			return false, err
		}
		t.Completed = verb == "done"
		_, err = list.Update(ctx, userID, t)
		return false, err
	case "rm", "delete":
		t, err := findTask(list, rest)
		if err != nil {
			return false, err
		}
		if err := list.Delete(ctx, userID, t.ID); err != nil {
			return false, err
		}
		fmt.Fprintf(out, "Deleted %q (undo to restore)\n", t.Title)
	case "undo":
		ok, err := list.UndoDelete(ctx, userID)
		if err != nil {
			return false, err
		}
		if !ok {
			fmt.Fprintln(out, "Nothing to undo.")
		}
	case "refresh", "sync":
		if !list.Refresh(ctx) {
			fmt.Fprintln(out, "Sync not scheduled.")
		}
	default:
		return false, fmt.Errorf("unknown command %q (try help)", verb)
	}
	return false, nil
}

var errAmbiguous = errors.New("ambiguous task id")

// findTask resolves a full id or unique id prefix against the snapshot.
func findTask(list *viewstate.TaskList, idArg string) (t models.Task, err error) {
	if idArg == "" {
		return t, errors.New("missing task id")
	}
	if t, ok := list.GetByID(idArg); ok {
		return t, nil
	}
	var matches []models.Task
	for _, c := range list.Tasks() {
		if strings.HasPrefix(c.ID, idArg) {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 0:
		return t, fmt.Errorf("task %s not found", idArg)
	case 1:
		return matches[0], nil
	default:
		return t, fmt.Errorf("%w: %s", errAmbiguous, idArg)
	}
}
