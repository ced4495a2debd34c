package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"tasksync/internal/config"
	"tasksync/pkg/logger"
)

// NewClient connects to REDIS_URL and pings it.
func NewClient(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	opts.PoolSize = cfg.RedisPoolSize
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	logger.Info(ctx, "Redis client initialized", "pool_size", cfg.RedisPoolSize)
	return client, nil
}

// TaskCache caches each user's serialized task list. A nil *TaskCache or one
// without a client always misses, so the server runs without Redis.
type TaskCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New returns a cache backed by client.
func New(client *redis.Client, ttl time.Duration) *TaskCache {
	return &TaskCache{client: client, ttl: ttl}
}

// Key returns the Redis key holding userID's task list.
func Key(userID string) string {
	return "tasks:user:" + userID
}

func (c *TaskCache) enabled() bool {
	return c != nil && c.client != nil
}

// Get returns the cached JSON list. Misses and errors both report false.
func (c *TaskCache) Get(ctx context.Context, userID string) ([]byte, bool) {
	if !c.enabled() {
		return nil, false
	}
	b, err := c.client.Get(ctx, Key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		logger.Debug(ctx, "Redis get tasks failed", "error", err)
		return nil, false
	}
	return b, true
}

// Set stores the JSON list with the configured TTL.
func (c *TaskCache) Set(ctx context.Context, userID string, b []byte) {
	if !c.enabled() {
		return
	}
	if err := c.client.Set(ctx, Key(userID), b, c.ttl).Err(); err != nil {
		logger.Debug(ctx, "Redis set tasks failed", "error", err)
	}
}

// Invalidate drops the user's list so the next read goes to the database.
func (c *TaskCache) Invalidate(ctx context.Context, userID string) {
	if !c.enabled() {
		return
	}
	if err := c.client.Del(ctx, Key(userID)).Err(); err != nil {
		logger.Debug(ctx, "Redis invalidate tasks failed", "error", err)
	}
}

// Ping reports whether Redis is reachable. A disabled cache is never ready.
func (c *TaskCache) Ping(ctx context.Context) error {
	if !c.enabled() {
		return errors.New("redis not configured")
	}
	return c.client.Ping(ctx).Err()
}
