// Package syncer keeps the local task table and the remote per-user task
// collection converging.
//
// A sync cycle pushes every unsynced local task, pulls the remote collection,
// merges it with last-write-wins and writes back the records the remote side
// won. Offline cycles are skipped, not failed. Per-task failures are logged
// and counted; the rows stay unsynced and the next triggered cycle retries
// them.
//
// Foreground mutations are not serialized against a running cycle. The task
// timestamp is the tie-breaker that still makes both sides converge.
package syncer

import (
	"context"

	"tasksync/internal/models"
	"tasksync/pkg/logger"
)

// LocalStore is the durable on-device table.
type LocalStore interface {
	GetAll(ctx context.Context, userID string) ([]models.Task, error)
	GetByID(ctx context.Context, userID, id string) (models.Task, bool, error)
	Upsert(ctx context.Context, t models.Task) error
	UpsertMany(ctx context.Context, tasks []models.Task) error
	Delete(ctx context.Context, userID, id string) error
	GetUnsynced(ctx context.Context, userID string) ([]models.Task, error)
	MarkSynced(ctx context.Context, userID, id string, timestamp int64) (bool, error)

	AddPendingDelete(ctx context.Context, userID, id string) error
	PendingDeletes(ctx context.Context, userID string) ([]string, error)
	ClearPendingDelete(ctx context.Context, userID, id string) error
}

// RemoteStore is the remote task collection, addressed as users/{userID}/tasks/{id}.
// Add and Update are both idempotent upserts. Delete of a missing task is a no-op.
type RemoteStore interface {
	FetchAll(ctx context.Context, userID string) ([]models.Task, error)
	Add(ctx context.Context, userID string, t models.Task) error
	Update(ctx context.Context, userID string, t models.Task) error
	Delete(ctx context.Context, userID, id string) error
}

// Connectivity reports whether the remote store is reachable.
type Connectivity interface {
	IsOnline() bool
}

// GetAll fetches the remote collection, degrading to an empty list when the
// fetch fails. Use RemoteStore.FetchAll to tell "no data" from "fetch failed".
func GetAll(ctx context.Context, remote RemoteStore, userID string) []models.Task {
	tasks, err := remote.FetchAll(ctx, userID)
	if err != nil {
		logger.Warn(ctx, "Remote fetch failed, treating as empty", "error", err)
		return nil
	}
	return tasks
}
