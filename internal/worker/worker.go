package worker

import (
	"context"
	"strings"
	"time"

	"tasksync/internal/auth"
	"tasksync/internal/connectivity"
	"tasksync/internal/queue"
	"tasksync/internal/scheduler"
	"tasksync/internal/syncer"
	"tasksync/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// Config selects the topic and consumer group to read sync requests from.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// GroupID returns the consumer group for one user's device. Every device
// reads the whole topic in its own group and keeps only its user's requests.
func GroupID(userID, device string) string {
	id := "task-sync-" + userID
	if device != "" {
		id += "-" + device
	}
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '/' {
			return '_'
		}
		return r
	}, id)
}

// Handler applies one sync request: it waits for connectivity when the
// request demands it, then runs the sync cycle.
type Handler struct {
	Syncer scheduler.Syncer
	Probe  connectivity.Probe
	// Auth is the user signed in on this device. Requests for anyone else
	// are skipped: the local database holds only this user's tasks.
	Auth auth.Provider
	// Poll is how often a network-constrained request re-checks connectivity.
	Poll time.Duration
	// OnComplete, if set, is called after every cycle the handler runs.
	OnComplete func(userID string, res syncer.Result, err error)
}

// Handle decodes and runs one message. A cycle never starts while offline;
// the call blocks until the network is back or ctx ends.
func (h *Handler) Handle(ctx context.Context, payload []byte) error {
	req, err := queue.DecodeSyncRequest(payload)
	if err != nil {
		return err
	}
	current, ok := h.Auth.CurrentUser()
	if !ok || current != req.UserID {
		logger.Debug(ctx, "Sync request for another user skipped", "request_user", req.UserID)
		return nil
	}
	ctx = logger.WithUser(ctx, req.UserID)
	if req.RequiresNetwork {
		for !scheduler.WaitOnline(ctx, h.Probe, time.Minute, h.Poll) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Debug(ctx, "Waiting for connectivity", "reason", req.Reason)
		}
	}
	res, err := h.Syncer.SyncTasks(ctx, req.UserID)
	if h.OnComplete != nil {
		h.OnComplete(req.UserID, res, err)
	}
	if err != nil {
		return err
	}
	logger.Info(ctx, "Sync request processed", "reason", req.Reason,
		"pushed", res.Pushed, "pulled", res.Pulled, "skipped", res.Skipped)
	return nil
}

// Run starts the Kafka consumer: reads sync requests one at a time and runs them.
// A single reader per process keeps cycles from overlapping.
func Run(ctx context.Context, cfg Config, h *Handler) {
	if len(cfg.Brokers) == 0 {
		logger.Info(ctx, "Worker disabled (no Kafka brokers)")
		return
	}
	groupID := cfg.GroupID
	if groupID == "" {
		groupID = "task-sync-workers"
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 1e6,
	})
	defer reader.Close()

	var processed int64
	logger.Info(ctx, "Kafka consumer started", "topic", cfg.Topic, "group", groupID)
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info(ctx, "Kafka consumer stopped", "processed", processed)
				return
			}
			logger.Error(ctx, "Worker fetch failed", "error", err)
			continue
		}
		if err := h.Handle(ctx, msg.Value); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error(ctx, "Worker handle failed", "error", err, "payload", string(msg.Value))
			// Commit anyway to avoid poison pill blocking the partition; the
			// rows stay unsynced and a later request retries them.
			_ = reader.CommitMessages(ctx, msg)
			continue
		}
		if err := reader.CommitMessages(ctx, msg); err != nil {
			logger.Error(ctx, "Worker commit failed", "error", err)
		}
		processed++
	}
}
