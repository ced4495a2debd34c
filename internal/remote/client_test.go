package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"tasksync/internal/models"
)

// fakeAPI mimics the task API routes with an in-memory map.
type fakeAPI struct {
	mu    sync.Mutex
	tasks map[string]models.Task
	auth  []string
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{tasks: map[string]models.Task{}}
	srv := httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(srv.Close)
	return api, srv
}

func (a *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.auth = append(a.auth, r.Header.Get("Authorization"))

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 3 || parts[0] != "users" || parts[2] != "tasks" {
		http.NotFound(w, r)
		return
	}
	user := parts[1]
	switch {
	case r.Method == http.MethodGet && len(parts) == 3:
		if user == "broken" {
			http.Error(w, "database down", http.StatusInternalServerError)
			return
		}
		out := []models.Task{}
		for _, t := range a.tasks {
			if t.UserID == user {
				out = append(out, t)
			}
		}
		_ = json.NewEncoder(w).Encode(out)
	case r.Method == http.MethodPut && len(parts) == 4:
		var t models.Task
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil || t.ID != parts[3] {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		a.tasks[t.ID] = t
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodDelete && len(parts) == 4:
		if _, ok := a.tasks[parts[3]]; !ok {
			http.NotFound(w, r)
			return
		}
		delete(a.tasks, parts[3])
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func TestClientRoundTrip(t *testing.T) {
	api, srv := newFakeAPI(t)
	c := NewClient(srv.URL+"/", "tok", time.Second)
	ctx := context.Background()

	task := models.Task{ID: "t1", Title: "Buy milk", Timestamp: 42}
	if err := c.Add(ctx, "alice", task); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	task.Title = "Buy oat milk"
	if err := c.Update(ctx, "alice", task); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := c.FetchAll(ctx, "alice")
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Buy oat milk" || got[0].UserID != "alice" || got[0].Timestamp != 42 {
		t.Errorf("unexpected tasks: %+v", got)
	}
	if other, _ := c.FetchAll(ctx, "bob"); len(other) != 0 {
		t.Errorf("bob should see nothing, got %+v", other)
	}

	if err := c.Delete(ctx, "alice", "t1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := c.Delete(ctx, "alice", "t1"); err != nil {
		t.Errorf("deleting a missing task should succeed: %v", err)
	}

	for _, h := range api.auth {
		if h != "Bearer tok" {
			t.Errorf("expected bearer header, got %q", h)
		}
	}
}

func TestClientStatusError(t *testing.T) {
	_, srv := newFakeAPI(t)
	c := NewClient(srv.URL, "", time.Second)

	_, err := c.FetchAll(context.Background(), "broken")
	if !errors.Is(err, ErrStatus) {
		t.Fatalf("expected ErrStatus, got %v", err)
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error should carry the status code: %v", err)
	}
}

func TestClientRejectsMissingID(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "", time.Second)
	if err := c.Add(context.Background(), "alice", models.Task{Title: "x"}); !errors.Is(err, models.ErrInvalidTask) {
		t.Errorf("expected ErrInvalidTask, got %v", err)
	}
}

func TestClientUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "", 200*time.Millisecond)
	if _, err := c.FetchAll(context.Background(), "alice"); err == nil {
		t.Error("expected transport error")
	}
}
