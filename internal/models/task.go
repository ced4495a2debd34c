package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidTask is returned when a task has no id or owner.
var ErrInvalidTask = errors.New("task id and user id are required")

// Task is a user-owned to-do item. Timestamp is the last local modification
// in Unix milliseconds and is the only conflict tie-breaker.
type Task struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
	IsSynced    bool   `json:"is_synced"`
	Timestamp   int64  `json:"timestamp"`
}

// SyncRequest is the payload handed to the deferred sync trigger (in-process or Kafka).
type SyncRequest struct {
	UserID          string    `json:"user_id"`
	RequiresNetwork bool      `json:"requires_network"`
	Reason          string    `json:"reason,omitempty"`
	RequestedAt     time.Time `json:"requested_at"`
}

// NewID returns a fresh task identifier.
func NewID() string {
	return uuid.New().String()
}

// NowMillis returns t as Unix milliseconds.
func NowMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// Touch marks the task as locally modified at now.
func (t *Task) Touch(now time.Time) {
	t.Timestamp = NowMillis(now)
	t.IsSynced = false
}

// Validate checks the fields every persisted task must carry. Title and
// description are free-form and may be empty.
func (t Task) Validate() error {
	if t.ID == "" || t.UserID == "" {
		return ErrInvalidTask
	}
	return nil
}
