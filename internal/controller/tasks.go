package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"tasksync/internal/models"
	"tasksync/pkg/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"
)

// Store is the task collection behind the API.
type Store interface {
	FetchAll(ctx context.Context, userID string) ([]models.Task, error)
	Update(ctx context.Context, userID string, t models.Task) error
	Delete(ctx context.Context, userID, id string) error
	Ping(ctx context.Context) error
}

// Cache holds serialized per-user task lists.
type Cache interface {
	Get(ctx context.Context, userID string) ([]byte, bool)
	Set(ctx context.Context, userID string, b []byte)
	Invalidate(ctx context.Context, userID string)
	Ping(ctx context.Context) error
}

// Tasks serves users/{userId}/tasks. cache may be nil.
type Tasks struct {
	store Store
	cache Cache
	group singleflight.Group

	// gen counts writes per user. A list read only fills the cache if no
	// write happened since it started.
	mu  sync.Mutex
	gen map[string]uint64
}

func New(store Store, cache Cache) *Tasks {
	return &Tasks{store: store, cache: cache, gen: map[string]uint64{}}
}

// ListTasks returns the user's tasks as JSON, cache first. Concurrent misses
// for the same user share one database read.
func (h *Tasks) ListTasks(c *gin.Context) {
	ctx := c.Request.Context()
	uid := c.Param("userId")

	if h.cache != nil {
		if b, ok := h.cache.Get(ctx, uid); ok {
			c.Data(http.StatusOK, "application/json", b)
			return
		}
	}
	v, err, _ := h.group.Do(uid, func() (interface{}, error) {
		// Detached so one cancelled caller doesn't fail the others.
		readCtx := context.WithoutCancel(ctx)
		gen := h.generation(uid)
		tasks, err := h.store.FetchAll(readCtx, uid)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(tasks)
		if err != nil {
			return nil, err
		}
		h.fill(readCtx, uid, gen, b)
		return b, nil
	})
	if err != nil {
		if ctx.Err() != nil || isContextErr(err) {
			return
		}
		logger.Error(ctx, "ListTasks repository failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get tasks"})
		return
	}
	c.Data(http.StatusOK, "application/json", v.([]byte))
}

// PutTask creates or replaces a task. The body id must be empty or match the path.
func (h *Tasks) PutTask(c *gin.Context) {
	ctx := c.Request.Context()
	uid, id := c.Param("userId"), c.Param("taskId")

	var body models.Task
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	if body.ID != "" && body.ID != id {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Task id does not match path"})
		return
	}
	body.ID, body.UserID = id, uid
	if err := body.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.store.Update(ctx, uid, body); err != nil {
		logger.Error(ctx, "PutTask failed", "error", err, "id", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save task"})
		return
	}
	h.invalidate(ctx, uid)
	body.IsSynced = true
	c.JSON(http.StatusOK, body)
}

// DeleteTask removes a task; deleting a missing task still returns 204.
func (h *Tasks) DeleteTask(c *gin.Context) {
	ctx := c.Request.Context()
	uid, id := c.Param("userId"), c.Param("taskId")
	if err := h.store.Delete(ctx, uid, id); err != nil {
		logger.Error(ctx, "DeleteTask failed", "error", err, "id", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete task"})
		return
	}
	h.invalidate(ctx, uid)
	c.Status(http.StatusNoContent)
}

func (h *Tasks) generation(uid string) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.gen[uid]
}

// fill caches a list read that started at generation gen, unless a write
// has landed since.
func (h *Tasks) fill(ctx context.Context, uid string, gen uint64, b []byte) {
	if h.cache == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.gen[uid] != gen {
		return
	}
	h.cache.Set(ctx, uid, b)
}

// invalidate runs after a write: it bumps the user's generation, drops the
// cached list and detaches any in-flight read so new callers refetch.
func (h *Tasks) invalidate(ctx context.Context, uid string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gen[uid]++
	h.group.Forget(uid)
	if h.cache != nil {
		h.cache.Invalidate(ctx, uid)
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Health returns 200 if the process is alive. Used by load balancers.
func Health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// Ready returns 200 if the database (and Redis, when configured) are reachable.
func (h *Tasks) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "redis unavailable"})
			return
		}
	}
	if err := h.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database ping failed"})
		return
	}
	c.String(http.StatusOK, "OK")
}
