package models

import (
	"errors"
	"testing"
	"time"
)

func TestTouch(t *testing.T) {
	task := Task{ID: "a", UserID: "u", Title: "x", IsSynced: true, Timestamp: 1}
	now := time.UnixMilli(1_700_000_000_123)

	task.Touch(now)

	if task.Timestamp != 1_700_000_000_123 {
		t.Errorf("expected timestamp 1700000000123, got %d", task.Timestamp)
	}
	if task.IsSynced {
		t.Error("expected IsSynced=false after Touch")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		task Task
		want error
	}{
		{"valid", Task{ID: "a", UserID: "u", Title: "buy milk"}, nil},
		{"missing id", Task{UserID: "u", Title: "x"}, ErrInvalidTask},
		{"missing user", Task{ID: "a", Title: "x"}, ErrInvalidTask},
		{"empty title", Task{ID: "a", UserID: "u", Description: "only a description"}, nil},
		{"zero task", Task{}, ErrInvalidTask},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.task.Validate()
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewIDUnique(t *testing.T) {
	a, b := NewID(), NewID()
	if a == "" || a == b {
		t.Errorf("expected two distinct ids, got %q and %q", a, b)
	}
}
