package scheduler

import (
	"context"
	"time"

	"tasksync/internal/connectivity"
	"tasksync/internal/models"
	"tasksync/internal/syncer"
	"tasksync/pkg/logger"
)

// Inline runs the sync cycle inside the submitting job, so the job queue's
// one-at-a-time guarantee covers the cycle itself.
type Inline struct {
	Syncer Syncer
	Probe  connectivity.Probe
	// MaxWait bounds how long a network-constrained request waits for
	// connectivity before giving up. Zero means don't wait.
	MaxWait time.Duration
	Poll    time.Duration
	// OnComplete, if set, is called after every attempted cycle.
	OnComplete func(userID string, res syncer.Result, err error)
}

// Submit implements Deferred.
func (r *Inline) Submit(ctx context.Context, req models.SyncRequest) error {
	if req.RequiresNetwork && !WaitOnline(ctx, r.Probe, r.MaxWait, r.Poll) {
		logger.Info(ctx, "Still offline, sync request dropped", "reason", req.Reason)
		return nil
	}
	res, err := r.Syncer.SyncTasks(ctx, req.UserID)
	if r.OnComplete != nil {
		r.OnComplete(req.UserID, res, err)
	}
	return err
}

// WaitOnline polls probe until it reports online, maxWait elapses or ctx is done.
func WaitOnline(ctx context.Context, probe connectivity.Probe, maxWait, poll time.Duration) bool {
	if probe.IsOnline() {
		return true
	}
	if maxWait <= 0 {
		return false
	}
	if poll <= 0 {
		poll = time.Second
	}
	deadline := time.NewTimer(maxWait)
	defer deadline.Stop()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return probe.IsOnline()
		case <-ticker.C:
			if probe.IsOnline() {
				return true
			}
		}
	}
}
