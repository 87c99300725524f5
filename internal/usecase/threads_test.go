package usecase

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/Makarios44/xuxu-AIBOT/internal/domain"
)

// memThreadCache is a map-backed ThreadCache recording hits and puts.
type memThreadCache struct {
	mu   sync.Mutex
	m    map[string]string
	gets int
	puts int
}

func newMemThreadCache() *memThreadCache { return &memThreadCache{m: make(map[string]string)} }

func (c *memThreadCache) Get(_ context.Context, conversationID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	v, ok := c.m[conversationID]
	return v, ok
}

func (c *memThreadCache) Put(_ context.Context, conversationID, threadID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	c.m[conversationID] = threadID
}

func TestGetOrCreateCreatesOnce(t *testing.T) {
	assistant := &fakeAssistantClient{threadIDs: []string{"thread-1"}}
	store := newMemThreadStore()
	registry := NewThreadRegistry(store, nil, assistant, slog.Default())

	id1, err := registry.GetOrCreate(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	id2, err := registry.GetOrCreate(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("GetOrCreate() second call error = %v", err)
	}

	if id1 != "thread-1" || id2 != "thread-1" {
		t.Errorf("ids = %q, %q", id1, id2)
	}
	if assistant.createdThreads != 1 {
		t.Errorf("CreateThread calls = %d, want 1", assistant.createdThreads)
	}
}

func TestGetOrCreateCacheShortCircuitsStore(t *testing.T) {
	assistant := &fakeAssistantClient{threadIDs: []string{"thread-1"}}
	store := newMemThreadStore()
	cache := newMemThreadCache()
	registry := NewThreadRegistry(store, cache, assistant, slog.Default())

	if _, err := registry.GetOrCreate(context.Background(), "conv-1"); err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if cache.m["conv-1"] != "thread-1" {
		t.Errorf("cache not populated: %v", cache.m)
	}

	// Second lookup served from cache; wipe the store to prove it.
	store.mu.Lock()
	store.m = map[string]*domain.ConversationThread{}
	store.mu.Unlock()

	id, err := registry.GetOrCreate(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("cached GetOrCreate() error = %v", err)
	}
	if id != "thread-1" {
		t.Errorf("id = %q, want thread-1", id)
	}
	if assistant.createdThreads != 1 {
		t.Errorf("CreateThread calls = %d, want 1", assistant.createdThreads)
	}
}

func TestGetOrCreateStoreHitWarmsCache(t *testing.T) {
	assistant := &fakeAssistantClient{}
	store := newMemThreadStore()
	store.Put(context.Background(), &domain.ConversationThread{
		ConversationID: "conv-1", ThreadID: "thread-db",
	})
	cache := newMemThreadCache()
	registry := NewThreadRegistry(store, cache, assistant, slog.Default())

	id, err := registry.GetOrCreate(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if id != "thread-db" {
		t.Errorf("id = %q", id)
	}
	if cache.m["conv-1"] != "thread-db" {
		t.Errorf("cache not warmed: %v", cache.m)
	}
	if assistant.createdThreads != 0 {
		t.Errorf("CreateThread calls = %d, want 0", assistant.createdThreads)
	}
}
