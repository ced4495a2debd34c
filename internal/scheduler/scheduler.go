// Package scheduler turns sync triggers (app start, a completed mutation, a
// manual refresh, a periodic tick) into jobs on the serialized job queue.
// Each job submits a network-constrained SyncRequest to a Deferred runner.
package scheduler

import (
	"context"
	"time"

	"tasksync/internal/auth"
	"tasksync/internal/models"
	"tasksync/internal/queue"
	"tasksync/internal/syncer"
	"tasksync/pkg/logger"
)

// Trigger reasons.
const (
	ReasonStart    = "start"
	ReasonMutation = "mutation"
	ReasonRefresh  = "refresh"
	ReasonPeriodic = "periodic"
)

// Deferred eventually runs the sync cycle a request describes, once its
// constraints hold.
type Deferred interface {
	Submit(ctx context.Context, req models.SyncRequest) error
}

// Syncer is the full-cycle entry point of the sync coordinator.
type Syncer interface {
	SyncTasks(ctx context.Context, userID string) (syncer.Result, error)
}

// Scheduler enqueues sync jobs for the current user.
type Scheduler struct {
	jobs     *queue.JobQueue
	deferred Deferred
	auth     auth.Provider
	now      func() time.Time
}

// New creates a Scheduler.
func New(jobs *queue.JobQueue, deferred Deferred, provider auth.Provider) *Scheduler {
	return &Scheduler{jobs: jobs, deferred: deferred, auth: provider, now: time.Now}
}

// RequestSync enqueues a sync for the current user without blocking. It is a
// no-op (returning false) when nobody is signed in.
func (s *Scheduler) RequestSync(ctx context.Context, reason string) bool {
	userID, ok := s.auth.CurrentUser()
	if !ok {
		logger.Debug(ctx, "No current user, sync request dropped", "reason", reason)
		return false
	}
	req := models.SyncRequest{
		UserID:          userID,
		RequiresNetwork: true,
		Reason:          reason,
		RequestedAt:     s.now(),
	}
	err := s.jobs.Enqueue("sync:"+reason, func(ctx context.Context) {
		ctx = logger.WithUser(ctx, req.UserID)
		if err := s.deferred.Submit(ctx, req); err != nil {
			logger.Error(ctx, "Sync request failed", "reason", req.Reason, "error", err)
		}
	})
	if err != nil {
		logger.Warn(ctx, "Sync request not queued", "reason", reason, "error", err)
		return false
	}
	return true
}

// OnStart is the app-start trigger.
func (s *Scheduler) OnStart(ctx context.Context) bool { return s.RequestSync(ctx, ReasonStart) }

// OnMutation is called after a successful local create/update/delete.
func (s *Scheduler) OnMutation(ctx context.Context) bool { return s.RequestSync(ctx, ReasonMutation) }

// Refresh is the manual trigger.
func (s *Scheduler) Refresh(ctx context.Context) bool { return s.RequestSync(ctx, ReasonRefresh) }

// RunPeriodic requests a sync every interval until ctx is cancelled.
func (s *Scheduler) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RequestSync(ctx, ReasonPeriodic)
		}
	}
}
