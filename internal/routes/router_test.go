package routes

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

	"tasksync/internal/controller"
	"tasksync/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const secret = "router-secret"

type memStore struct {
	mu      sync.Mutex
	tasks   map[string]map[string]models.Task
	fetches int
	fail    bool

	// When block is set, the next FetchAll takes its snapshot, signals
	// entered and waits for block to close.
	entered chan struct{}
	block   chan struct{}
}

func newMemStore() *memStore {
	return &memStore{tasks: map[string]map[string]models.Task{}}
}

func (m *memStore) FetchAll(_ context.Context, userID string) ([]models.Task, error) {
	m.mu.Lock()
	m.fetches++
	if m.fail {
		m.mu.Unlock()
		return nil, errors.New("db down")
	}
	out := []models.Task{}
	for _, t := range m.tasks[userID] {
		out = append(out, t)
	}
	entered, block := m.entered, m.block
	m.block = nil
	m.mu.Unlock()

	if block != nil {
		entered <- struct{}{}
		<-block
	}
	return out, nil
}

func (m *memStore) Update(_ context.Context, userID string, t models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tasks[userID] == nil {
		m.tasks[userID] = map[string]models.Task{}
	}
	m.tasks[userID][t.ID] = t
	return nil
}

func (m *memStore) Delete(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks[userID], id)
	return nil
}

func (m *memStore) Ping(context.Context) error {
	if m.fail {
		return errors.New("db down")
	}
	return nil
}

type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func (c *memCache) Get(_ context.Context, userID string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.entries[userID]
	return b, ok
}

func (c *memCache) Set(_ context.Context, userID string, b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = b
}

func (c *memCache) Invalidate(_ context.Context, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
}

func (c *memCache) Ping(context.Context) error { return nil }

func token(t *testing.T, sub string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	return "Bearer " + s
}

func do(t *testing.T, r *gin.Engine, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != "" {
		req.Header.Set("Authorization", token(t, user))
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func setup(t *testing.T) (*gin.Engine, *memStore, *memCache) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := newMemStore()
	cache := &memCache{entries: map[string][]byte{}}
	return Router(controller.New(store, cache), secret), store, cache
}

func TestPutListDelete(t *testing.T) {
	r, _, _ := setup(t)

	w := do(t, r, http.MethodPut, "/users/alice/tasks/t1", "alice", `{"title":"Buy milk","timestamp":5}`)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT status %d: %s", w.Code, w.Body.String())
	}

	w = do(t, r, http.MethodGet, "/users/alice/tasks", "alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET status %d", w.Code)
	}
	var tasks []models.Task
	if err := json.Unmarshal(w.Body.Bytes(), &tasks); err != nil {
		t.Fatalf("bad list body: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "t1" || tasks[0].UserID != "alice" || tasks[0].Timestamp != 5 {
		t.Errorf("unexpected list: %+v", tasks)
	}

	if w := do(t, r, http.MethodDelete, "/users/alice/tasks/t1", "alice", ""); w.Code != http.StatusNoContent {
		t.Errorf("DELETE status %d", w.Code)
	}
	if w := do(t, r, http.MethodDelete, "/users/alice/tasks/t1", "alice", ""); w.Code != http.StatusNoContent {
		t.Errorf("DELETE of missing task status %d", w.Code)
	}
}

func TestListUsesCacheAndWritesInvalidate(t *testing.T) {
	r, store, cache := setup(t)

	do(t, r, http.MethodGet, "/users/alice/tasks", "alice", "")
	do(t, r, http.MethodGet, "/users/alice/tasks", "alice", "")
	if store.fetches != 1 {
		t.Errorf("second read should hit the cache, got %d fetches", store.fetches)
	}

	do(t, r, http.MethodPut, "/users/alice/tasks/t1", "alice", `{"title":"A"}`)
	if _, ok := cache.Get(context.Background(), "alice"); ok {
		t.Error("write must invalidate the cache")
	}
	w := do(t, r, http.MethodGet, "/users/alice/tasks", "alice", "")
	if !strings.Contains(w.Body.String(), `"t1"`) {
		t.Errorf("expected fresh list, got %s", w.Body.String())
	}
}

func TestSlowReadDoesNotRecacheStaleList(t *testing.T) {
	r, store, cache := setup(t)
	store.entered = make(chan struct{})
	store.block = make(chan struct{})
	auth := token(t, "alice")

	done := make(chan int)
	go func() {
		req := httptest.NewRequest(http.MethodGet, "/users/alice/tasks", nil)
		req.Header.Set("Authorization", auth)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		done <- w.Code
	}()
	<-store.entered

	if w := do(t, r, http.MethodPut, "/users/alice/tasks/a", "alice", `{"title":"A"}`); w.Code != http.StatusOK {
		t.Fatalf("PUT status %d", w.Code)
	}
	close(store.block)
	if code := <-done; code != http.StatusOK {
		t.Fatalf("slow GET status %d", code)
	}

	if b, ok := cache.Get(context.Background(), "alice"); ok {
		t.Errorf("list read before the write must not be cached: %s", b)
	}
	w := do(t, r, http.MethodGet, "/users/alice/tasks", "alice", "")
	if !strings.Contains(w.Body.String(), `"a"`) {
		t.Errorf("write missing from list after slow read: %s", w.Body.String())
	}
}

func TestPutValidation(t *testing.T) {
	r, _, _ := setup(t)
	cases := map[string]string{
		"id mismatch": `{"id":"other","title":"A"}`,
		"bad json":    `{`,
	}
	for name, body := range cases {
		if w := do(t, r, http.MethodPut, "/users/alice/tasks/t1", "alice", body); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", name, w.Code)
		}
	}

	if w := do(t, r, http.MethodPut, "/users/alice/tasks/t2", "alice", `{"description":"no title"}`); w.Code != http.StatusOK {
		t.Errorf("untitled task: status %d, want 200", w.Code)
	}
}

func TestCrossUserForbidden(t *testing.T) {
	r, store, _ := setup(t)
	if w := do(t, r, http.MethodGet, "/users/bob/tasks", "alice", ""); w.Code != http.StatusForbidden {
		t.Errorf("status %d, want 403", w.Code)
	}
	if w := do(t, r, http.MethodPut, "/users/bob/tasks/t1", "alice", `{"title":"x"}`); w.Code != http.StatusForbidden {
		t.Errorf("status %d, want 403", w.Code)
	}
	if len(store.tasks["bob"]) != 0 {
		t.Error("forbidden write reached the store")
	}
	if w := do(t, r, http.MethodGet, "/users/alice/tasks", "", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("status %d, want 401", w.Code)
	}
}

func TestListStoreFailure(t *testing.T) {
	r, store, _ := setup(t)
	store.fail = true
	if w := do(t, r, http.MethodGet, "/users/alice/tasks", "alice", ""); w.Code != http.StatusInternalServerError {
		t.Errorf("status %d, want 500", w.Code)
	}
}

func TestHealthAndReady(t *testing.T) {
	r, store, _ := setup(t)
	if w := do(t, r, http.MethodGet, "/health", "", ""); w.Code != http.StatusOK {
		t.Errorf("health status %d", w.Code)
	}
	if w := do(t, r, http.MethodGet, "/ready", "", ""); w.Code != http.StatusOK {
		t.Errorf("ready status %d", w.Code)
	}
	store.fail = true
	if w := do(t, r, http.MethodGet, "/ready", "", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("ready status %d, want 503", w.Code)
	}
}
