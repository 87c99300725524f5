package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Makarios44/xuxu-AIBOT/internal/domain"
)

// ThreadRegistry resolves a conversation ID to its remote thread, creating
// the thread on first contact. Lookups go cache, then store, then remote
// creation; the store is the source of truth.
type ThreadRegistry struct {
	threads   domain.ThreadStore
	cache     domain.ThreadCache
	assistant domain.AssistantClient
	logger    *slog.Logger
}

// NewThreadRegistry creates a thread registry. cache may be nil.
func NewThreadRegistry(threads domain.ThreadStore, cache domain.ThreadCache, assistant domain.AssistantClient, logger *slog.Logger) *ThreadRegistry {
	return &ThreadRegistry{
		threads:   threads,
		cache:     cache,
		assistant: assistant,
		logger:    logger,
	}
}

// GetOrCreate returns the remote thread ID for the conversation, creating
// and persisting one when no mapping exists yet.
func (r *ThreadRegistry) GetOrCreate(ctx context.Context, conversationID string) (string, error) {
	if r.cache != nil {
		if threadID, ok := r.cache.Get(ctx, conversationID); ok {
			return threadID, nil
		}
	}

	mapping, err := r.threads.Get(ctx, conversationID)
	if err == nil {
		if r.cache != nil {
			r.cache.Put(ctx, conversationID, mapping.ThreadID)
		}
		return mapping.ThreadID, nil
	}
	if !errors.Is(err, domain.ErrThreadNotFound) {
		return "", err
	}

	threadID, err := r.assistant.CreateThread(ctx)
	if err != nil {
		return "", domain.WrapOp("ThreadRegistry.GetOrCreate", err)
	}

	if err := r.threads.Put(ctx, &domain.ConversationThread{
		ConversationID: conversationID,
		ThreadID:       threadID,
		CreatedAt:      time.Now(),
	}); err != nil {
		return "", err
	}
	if r.cache != nil {
		r.cache.Put(ctx, conversationID, threadID)
	}

	r.logger.Info("created thread for conversation",
		"conversation_id", conversationID, "thread_id", threadID)
	return threadID, nil
}
