package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Makarios44/xuxu-AIBOT/internal/domain"
)

const keyPrefix = "thread:"

// RedisThreadCache is a read-through cache for conversation→thread
// mappings backed by redis. Errors are logged and treated as misses;
// the record store stays the source of truth.
type RedisThreadCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisThreadCache connects to redis at url ("redis://..." form) and
// verifies the connection.
func NewRedisThreadCache(ctx context.Context, url string, ttl time.Duration, logger *slog.Logger) (*RedisThreadCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, domain.WrapOp("cache.NewRedisThreadCache", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, domain.WrapOp("cache.NewRedisThreadCache", err)
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisThreadCache{client: client, ttl: ttl, logger: logger}, nil
}

func (c *RedisThreadCache) Get(ctx context.Context, conversationID string) (string, bool) {
	val, err := c.client.Get(ctx, keyPrefix+conversationID).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("thread cache read failed", "error", err)
		}
		return "", false
	}
	return val, true
}

func (c *RedisThreadCache) Put(ctx context.Context, conversationID, threadID string) {
	if err := c.client.Set(ctx, keyPrefix+conversationID, threadID, c.ttl).Err(); err != nil {
		c.logger.Warn("thread cache write failed", "error", err)
	}
}

// Close releases the redis connection.
func (c *RedisThreadCache) Close() error { return c.client.Close() }

var _ domain.ThreadCache = (*RedisThreadCache)(nil)

// MemoryThreadCache is the in-process fallback used when no redis URL is
// configured. Entries never expire; the process lifetime bounds staleness.
type MemoryThreadCache struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewMemoryThreadCache creates an empty in-process cache.
func NewMemoryThreadCache() *MemoryThreadCache {
	return &MemoryThreadCache{m: make(map[string]string)}
}

func (c *MemoryThreadCache) Get(ctx context.Context, conversationID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[conversationID]
	return v, ok
}

func (c *MemoryThreadCache) Put(ctx context.Context, conversationID, threadID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[conversationID] = threadID
}

var _ domain.ThreadCache = (*MemoryThreadCache)(nil)
