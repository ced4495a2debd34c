package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"tasksync/internal/auth"
	"tasksync/internal/connectivity"
	"tasksync/internal/models"
	"tasksync/internal/queue"
	"tasksync/internal/syncer"
)

type stubSyncer struct {
	users []string
	err   error
}

func (s *stubSyncer) SyncTasks(_ context.Context, userID string) (syncer.Result, error) {
	s.users = append(s.users, userID)
	return syncer.Result{}, s.err
}

func payload(t *testing.T, req models.SyncRequest) []byte {
	t.Helper()
	b, err := queue.EncodeSyncRequest(req)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	return b
}

func TestHandleRunsSync(t *testing.T) {
	s := &stubSyncer{}
	h := &Handler{Syncer: s, Probe: connectivity.Static(true), Auth: auth.Static("alice")}

	if err := h.Handle(context.Background(), payload(t, models.SyncRequest{UserID: "alice", RequiresNetwork: true})); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if len(s.users) != 1 || s.users[0] != "alice" {
		t.Errorf("expected one sync for alice, got %v", s.users)
	}
}

func TestHandleWaitsForNetwork(t *testing.T) {
	s := &stubSyncer{}
	sw := connectivity.NewSwitch(false)
	h := &Handler{Syncer: s, Probe: sw, Auth: auth.Static("alice"), Poll: 2 * time.Millisecond}

	go func() {
		time.Sleep(20 * time.Millisecond)
		sw.Set(true)
	}()
	if err := h.Handle(context.Background(), payload(t, models.SyncRequest{UserID: "alice", RequiresNetwork: true})); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if len(s.users) != 1 {
		t.Errorf("expected sync once online, got %v", s.users)
	}
}

func TestHandleStopsOnCancel(t *testing.T) {
	s := &stubSyncer{}
	h := &Handler{Syncer: s, Probe: connectivity.Static(false), Auth: auth.Static("alice"), Poll: time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := h.Handle(ctx, payload(t, models.SyncRequest{UserID: "alice", RequiresNetwork: true}))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", err)
	}
	if len(s.users) != 0 {
		t.Error("sync must not run while offline")
	}
}

func TestHandleRejectsBadPayload(t *testing.T) {
	h := &Handler{Syncer: &stubSyncer{}, Probe: connectivity.Static(true), Auth: auth.Static("alice")}
	if err := h.Handle(context.Background(), []byte("{}")); err == nil {
		t.Error("expected error for request without user")
	}
}

func TestHandleSkipsOtherUsers(t *testing.T) {
	s := &stubSyncer{}
	h := &Handler{Syncer: s, Probe: connectivity.Static(true), Auth: auth.Static("bob")}

	if err := h.Handle(context.Background(), payload(t, models.SyncRequest{UserID: "alice"})); err != nil {
		t.Fatalf("foreign request should be skipped without error, got %v", err)
	}
	if len(s.users) != 0 {
		t.Errorf("bob's device must not sync alice, got %v", s.users)
	}

	h.Auth = auth.Static("")
	if err := h.Handle(context.Background(), payload(t, models.SyncRequest{UserID: "alice"})); err != nil || len(s.users) != 0 {
		t.Errorf("signed-out device must skip: err=%v users=%v", err, s.users)
	}
}

func TestHandleReportsCompletion(t *testing.T) {
	boom := errors.New("disk full")
	var got []error
	h := &Handler{
		Syncer:     &stubSyncer{err: boom},
		Probe:      connectivity.Static(true),
		Auth:       auth.Static("alice"),
		OnComplete: func(_ string, _ syncer.Result, err error) { got = append(got, err) },
	}

	if err := h.Handle(context.Background(), payload(t, models.SyncRequest{UserID: "alice"})); !errors.Is(err, boom) {
		t.Fatalf("expected sync error, got %v", err)
	}
	if len(got) != 1 || !errors.Is(got[0], boom) {
		t.Errorf("OnComplete not called with the result: %v", got)
	}
}

func TestGroupIDPerDevice(t *testing.T) {
	a, b := GroupID("alice", "laptop"), GroupID("bob", "laptop")
	if a == b {
		t.Error("users must not share a consumer group")
	}
	if GroupID("alice", "laptop") == GroupID("alice", "phone") {
		t.Error("devices must not share a consumer group")
	}
	if got := GroupID("alice", "my host/1"); got != "task-sync-alice-my_host_1" {
		t.Errorf("unexpected group id %q", got)
	}
}

func TestRunWithoutBrokersReturns(t *testing.T) {
	Run(context.Background(), Config{}, &Handler{})
}
