package cache

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestRedisThreadCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := NewRedisThreadCache(context.Background(), "redis://"+mr.Addr(), time.Minute, slog.Default())
	if err != nil {
		t.Fatalf("NewRedisThreadCache() error = %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	if _, ok := c.Get(ctx, "conv-1"); ok {
		t.Error("unexpected hit on empty cache")
	}

	c.Put(ctx, "conv-1", "thread_abc")
	got, ok := c.Get(ctx, "conv-1")
	if !ok || got != "thread_abc" {
		t.Errorf("Get() = %q, %v", got, ok)
	}
}

func TestRedisThreadCacheExpiry(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := NewRedisThreadCache(context.Background(), "redis://"+mr.Addr(), time.Second, slog.Default())
	if err != nil {
		t.Fatalf("NewRedisThreadCache() error = %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	c.Put(ctx, "conv-1", "thread_abc")
	mr.FastForward(2 * time.Second)

	if _, ok := c.Get(ctx, "conv-1"); ok {
		t.Error("entry survived its TTL")
	}
}

func TestRedisThreadCacheBadURL(t *testing.T) {
	if _, err := NewRedisThreadCache(context.Background(), "not-a-url", time.Minute, slog.Default()); err == nil {
		t.Error("expected error for malformed url")
	}
}

func TestMemoryThreadCache(t *testing.T) {
	c := NewMemoryThreadCache()
	ctx := context.Background()

	if _, ok := c.Get(ctx, "conv-1"); ok {
		t.Error("unexpected hit on empty cache")
	}
	c.Put(ctx, "conv-1", "thread_abc")
	got, ok := c.Get(ctx, "conv-1")
	if !ok || got != "thread_abc" {
		t.Errorf("Get() = %q, %v", got, ok)
	}
}
