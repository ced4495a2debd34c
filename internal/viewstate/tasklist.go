// Package viewstate holds the task list a UI renders: the current snapshot, a
// load status and a single-slot undo buffer for the last delete. Consumers
// either poll (Tasks, Status) or Subscribe to snapshots.
package viewstate

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"tasksync/internal/models"
	"tasksync/pkg/logger"
)

// State is the load state of the list.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

// Status is the published load state. Message is set for StateError.
type Status struct {
	State   State
	Message string
}

// Snapshot is what subscribers receive.
type Snapshot struct {
	Tasks  []models.Task
	Status Status
}

// Store is the subset of the sync coordinator the list needs.
type Store interface {
	Tasks(ctx context.Context, userID string) ([]models.Task, error)
	Insert(ctx context.Context, userID string, t models.Task) (models.Task, error)
	Update(ctx context.Context, userID string, t models.Task) (models.Task, error)
	DeleteTask(ctx context.Context, userID, id string) error
}

// Trigger schedules background syncs.
type Trigger interface {
	OnMutation(ctx context.Context) bool
	Refresh(ctx context.Context) bool
}

// TaskList is safe for concurrent use.
type TaskList struct {
	store   Store
	trigger Trigger

	mu      sync.Mutex
	tasks   []models.Task
	status  Status
	deleted *models.Task
	subs    map[int]chan Snapshot
	nextSub int
}

// New creates an empty list. trigger may be nil.
func New(store Store, trigger Trigger) *TaskList {
	return &TaskList{store: store, trigger: trigger, subs: map[int]chan Snapshot{}}
}

// Tasks returns a copy of the current snapshot.
func (l *TaskList) Tasks() []models.Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.tasks)
}

// Status returns the current status.
func (l *TaskList) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// GetByID looks the task up in the published snapshot only.
func (l *TaskList) GetByID(id string) (models.Task, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.indexLocked(id); i >= 0 {
		return l.tasks[i], true
	}
	return models.Task{}, false
}

// Subscribe returns a channel that always holds the latest snapshot; slow
// readers skip intermediate ones. Call cancel to unsubscribe.
func (l *TaskList) Subscribe() (<-chan Snapshot, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextSub
	l.nextSub++
	ch := make(chan Snapshot, 1)
	l.subs[id] = ch
	ch <- l.snapshotLocked()
	return ch, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if c, ok := l.subs[id]; ok {
			delete(l.subs, id)
			close(c)
		}
	}
}

// Load replaces the snapshot with the user's local tasks.
func (l *TaskList) Load(ctx context.Context, userID string) error {
	l.setStatus(Status{State: StateLoading})
	tasks, err := l.store.Tasks(ctx, userID)
	if err != nil {
		return l.fail(ctx, "failed to load tasks", err)
	}
	l.mu.Lock()
	l.tasks = tasks
	l.status = Status{State: StateReady}
	l.publishLocked()
	l.mu.Unlock()
	return nil
}

// Insert saves a new task, schedules a sync and reloads.
func (l *TaskList) Insert(ctx context.Context, userID string, t models.Task) (models.Task, error) {
	saved, err := l.store.Insert(ctx, userID, t)
	if err != nil {
		return saved, l.fail(ctx, "failed to insert task", err)
	}
	l.mutated(ctx)
	return saved, l.Load(ctx, userID)
}

// Update saves an edited task, schedules a sync and reloads.
func (l *TaskList) Update(ctx context.Context, userID string, t models.Task) (models.Task, error) {
	saved, err := l.store.Update(ctx, userID, t)
	if err != nil {
		return saved, l.fail(ctx, "failed to update task", err)
	}
	l.mutated(ctx)
	return saved, l.Load(ctx, userID)
}

// Delete remembers the task for undo, removes it from the snapshot right
// away and deletes it. The list is not reloaded so the removal stays visible.
// An id missing from the snapshot empties the undo buffer.
func (l *TaskList) Delete(ctx context.Context, userID, id string) error {
	l.mu.Lock()
	l.deleted = nil
	if i := l.indexLocked(id); i >= 0 {
		t := l.tasks[i]
		l.deleted = &t
		l.tasks = slices.Delete(slices.Clone(l.tasks), i, i+1)
		l.publishLocked()
	}
	l.mu.Unlock()

	if err := l.store.DeleteTask(ctx, userID, id); err != nil {
		return l.fail(ctx, "failed to delete task", err)
	}
	l.mutated(ctx)
	return nil
}

// UndoDelete restores the most recently deleted task. The buffer is single
// use: a second call, or a call with nothing deleted, reports false.
func (l *TaskList) UndoDelete(ctx context.Context, userID string) (bool, error) {
	l.mu.Lock()
	t := l.deleted
	l.deleted = nil
	if t == nil {
		l.mu.Unlock()
		return false, nil
	}
	if l.indexLocked(t.ID) < 0 {
		l.tasks = append(slices.Clone(l.tasks), *t)
		l.publishLocked()
	}
	l.mu.Unlock()

	saved, err := l.store.Insert(ctx, userID, *t)
	if err != nil {
		return true, l.fail(ctx, "failed to restore task", err)
	}
	l.mu.Lock()
	if i := l.indexLocked(saved.ID); i >= 0 {
		l.tasks = slices.Clone(l.tasks)
		l.tasks[i] = saved
		l.publishLocked()
	}
	l.mu.Unlock()
	l.mutated(ctx)
	return true, nil
}

// Refresh asks for a background sync. Reload once it completes.
func (l *TaskList) Refresh(ctx context.Context) bool {
	if l.trigger == nil {
		return false
	}
	return l.trigger.Refresh(ctx)
}

func (l *TaskList) mutated(ctx context.Context) {
	if l.trigger != nil {
		l.trigger.OnMutation(ctx)
	}
}

func (l *TaskList) fail(ctx context.Context, what string, err error) error {
	err = fmt.Errorf("%s: %w", what, err)
	logger.Warn(ctx, "Task list operation failed", "error", err)
	l.setStatus(Status{State: StateError, Message: err.Error()})
	return err
}

func (l *TaskList) setStatus(s Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status = s
	l.publishLocked()
}

func (l *TaskList) indexLocked(id string) int {
	return slices.IndexFunc(l.tasks, func(t models.Task) bool { return t.ID == id })
}

func (l *TaskList) snapshotLocked() Snapshot {
	return Snapshot{Tasks: slices.Clone(l.tasks), Status: l.status}
}

func (l *TaskList) publishLocked() {
	snap := l.snapshotLocked()
	for _, ch := range l.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
