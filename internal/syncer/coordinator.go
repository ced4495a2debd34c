package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"tasksync/internal/conflict"
	"tasksync/internal/models"
	"tasksync/pkg/logger"
)

// ErrNoUser is returned by per-user operations called without a user id.
var ErrNoUser = errors.New("no current user")

const defaultPushConcurrency = 4

// Result summarizes one sync cycle.
type Result struct {
	Skipped        bool // offline, nothing attempted
	Pushed         int
	PushFailed     int
	DeletesFlushed int
	PullFailed     bool
	Pulled         int
	Conflicts      int
	Duration       time.Duration
}

// Coordinator orchestrates local writes, remote mirroring and sync cycles.
type Coordinator struct {
	local     LocalStore
	remote    RemoteStore
	online    Connectivity
	now       func() time.Time
	pushLimit int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock overrides the clock used to stamp local mutations.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithPushConcurrency bounds concurrent remote pushes within one cycle.
func WithPushConcurrency(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.pushLimit = n
		}
	}
}

// New creates a Coordinator.
func New(local LocalStore, remote RemoteStore, online Connectivity, opts ...Option) *Coordinator {
	c := &Coordinator{
		local:     local,
		remote:    remote,
		online:    online,
		now:       time.Now,
		pushLimit: defaultPushConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SyncTasks runs one full cycle for the user: flush pending deletes, push
// unsynced tasks, pull the remote collection and hydrate the local table
// through the conflict resolver.
//
// Offline is not an error. A failed remote fetch ends the cycle early with
// PullFailed set and a nil error; local store failures are returned.
func (c *Coordinator) SyncTasks(ctx context.Context, userID string) (res Result, err error) {
	if userID == "" {
		return res, ErrNoUser
	}
	ctx = logger.WithUser(ctx, userID)
	if !c.online.IsOnline() {
		logger.Debug(ctx, "Offline, sync skipped")
		res.Skipped = true
		return res, nil
	}
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	pending, flushed, err := c.flushDeletes(ctx, userID)
	if err != nil {
		return res, err
	}
	res.DeletesFlushed = flushed

	unsynced, err := c.local.GetUnsynced(ctx, userID)
	if err != nil {
		return res, fmt.Errorf("failed to read unsynced tasks: %w", err)
	}
	pushed := c.push(ctx, userID, unsynced)
	res.Pushed = len(pushed)
	res.PushFailed = len(unsynced) - len(pushed)
	for _, t := range pushed {
		if _, err := c.local.MarkSynced(ctx, userID, t.ID, t.Timestamp); err != nil {
			logger.Warn(ctx, "Failed to mark task synced", "task_id", t.ID, "error", err)
		}
	}

	remoteTasks, err := c.remote.FetchAll(ctx, userID)
	if err != nil {
		logger.Warn(ctx, "Remote fetch failed, sync ended early", "error", err, "pushed", res.Pushed)
		res.PullFailed = true
		return res, nil
	}
	localTasks, err := c.local.GetAll(ctx, userID)
	if err != nil {
		return res, fmt.Errorf("failed to read local tasks: %w", err)
	}

	merged := conflict.Merge(localTasks, remoteTasks)
	writes := make([]models.Task, 0, len(merged.Pulled))
	for _, t := range merged.Pulled {
		if pending[t.ID] {
			continue
		}
		t.UserID = userID
		t.IsSynced = true
		writes = append(writes, t)
	}
	if err := c.local.UpsertMany(ctx, writes); err != nil {
		return res, fmt.Errorf("failed to hydrate local tasks: %w", err)
	}
	res.Pulled = len(writes)
	res.Conflicts = merged.Conflicts

	logger.Info(ctx, "Sync cycle complete",
		"pushed", res.Pushed, "push_failed", res.PushFailed,
		"pulled", res.Pulled, "conflicts", res.Conflicts,
		"deletes_flushed", res.DeletesFlushed)
	return res, nil
}

// push sends every task to the remote store and returns the ones that made it.
// One failing task never stops the others.
func (c *Coordinator) push(ctx context.Context, userID string, tasks []models.Task) []models.Task {
	var (
		mu     sync.Mutex
		pushed []models.Task
		g      errgroup.Group
	)
	g.SetLimit(c.pushLimit)
	for _, t := range tasks {
		g.Go(func() error {
			remoteCopy := t
			remoteCopy.IsSynced = true
			if err := c.remote.Add(ctx, userID, remoteCopy); err != nil {
				logger.Warn(ctx, "Failed to push task", "task_id", t.ID, "error", err)
				return nil
			}
			mu.Lock()
			pushed = append(pushed, t)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return pushed
}

// flushDeletes retries remote deletes recorded while offline or failing.
// It returns the ids that are still pending.
func (c *Coordinator) flushDeletes(ctx context.Context, userID string) (map[string]bool, int, error) {
	ids, err := c.local.PendingDeletes(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read pending deletes: %w", err)
	}
	pending := make(map[string]bool)
	flushed := 0
	for _, id := range ids {
		if err := c.remote.Delete(ctx, userID, id); err != nil {
			logger.Warn(ctx, "Failed to flush remote delete", "task_id", id, "error", err)
			pending[id] = true
			continue
		}
		if err := c.local.ClearPendingDelete(ctx, userID, id); err != nil {
			logger.Warn(ctx, "Failed to clear pending delete", "task_id", id, "error", err)
		}
		flushed++
	}
	return pending, flushed, nil
}

// Insert stores a new task locally and mirrors it to the remote store when
// online. A missing id is generated. The local write decides success; a
// failed remote mirror leaves the task unsynced for the next cycle.
func (c *Coordinator) Insert(ctx context.Context, userID string, t models.Task) (models.Task, error) {
	if t.ID == "" {
		t.ID = models.NewID()
	}
	return c.write(ctx, userID, t, c.remote.Add)
}

// Update stores a modified task locally and mirrors it like Insert.
func (c *Coordinator) Update(ctx context.Context, userID string, t models.Task) (models.Task, error) {
	return c.write(ctx, userID, t, c.remote.Update)
}

func (c *Coordinator) write(ctx context.Context, userID string, t models.Task,
	mirror func(context.Context, string, models.Task) error) (models.Task, error) {
	if userID == "" {
		return t, ErrNoUser
	}
	ctx = logger.WithUser(ctx, userID)
	t.UserID = userID
	t.Touch(c.now())
	if err := t.Validate(); err != nil {
		return t, err
	}
	if err := c.local.Upsert(ctx, t); err != nil {
		return t, fmt.Errorf("failed to save task locally: %w", err)
	}
	// a re-inserted task (undo) must not be deleted remotely by a stale outbox entry
	if err := c.local.ClearPendingDelete(ctx, userID, t.ID); err != nil {
		logger.Warn(ctx, "Failed to clear pending delete", "task_id", t.ID, "error", err)
	}

	if !c.online.IsOnline() {
		logger.Debug(ctx, "Offline, remote mirror deferred", "task_id", t.ID)
		return t, nil
	}
	remoteCopy := t
	remoteCopy.IsSynced = true
	if err := mirror(ctx, userID, remoteCopy); err != nil {
		logger.Warn(ctx, "Remote mirror failed, task left unsynced", "task_id", t.ID, "error", err)
		return t, nil
	}
	ok, err := c.local.MarkSynced(ctx, userID, t.ID, t.Timestamp)
	if err != nil {
		logger.Warn(ctx, "Failed to mark task synced", "task_id", t.ID, "error", err)
		return t, nil
	}
	t.IsSynced = ok
	return t, nil
}

// DeleteTask removes the task locally, then remotely on a best-effort basis.
// A remote delete that cannot be sent now is queued for the next cycle.
func (c *Coordinator) DeleteTask(ctx context.Context, userID, id string) error {
	if err := c.DeleteLocalOnly(ctx, userID, id); err != nil {
		return err
	}
	ctx = logger.WithUser(ctx, userID)
	if c.online.IsOnline() {
		err := c.remote.Delete(ctx, userID, id)
		if err == nil {
			return nil
		}
		logger.Warn(ctx, "Remote delete failed, queued for next sync", "task_id", id, "error", err)
	}
	if err := c.local.AddPendingDelete(ctx, userID, id); err != nil {
		logger.Warn(ctx, "Failed to queue remote delete", "task_id", id, "error", err)
	}
	return nil
}

// DeleteLocalOnly removes the task from the local table without touching the remote.
func (c *Coordinator) DeleteLocalOnly(ctx context.Context, userID, id string) error {
	if userID == "" {
		return ErrNoUser
	}
	if err := c.local.Delete(ctx, userID, id); err != nil {
		return fmt.Errorf("failed to delete task locally: %w", err)
	}
	return nil
}

// Tasks returns the user's local tasks.
func (c *Coordinator) Tasks(ctx context.Context, userID string) ([]models.Task, error) {
	if userID == "" {
		return nil, ErrNoUser
	}
	tasks, err := c.local.GetAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	return tasks, nil
}

// Task looks up one local task; found=false is a normal outcome.
func (c *Coordinator) Task(ctx context.Context, userID, id string) (models.Task, bool, error) {
	if userID == "" {
		return models.Task{}, false, ErrNoUser
	}
	return c.local.GetByID(ctx, userID, id)
}
