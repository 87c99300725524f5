package domain

import (
	"context"
	"time"
)

// ConversationThread maps an external conversation to the remote dialogue
// thread that holds its context. Created once per conversation at first
// contact and never repointed afterwards.
type ConversationThread struct {
	ConversationID string
	ThreadID       string
	CreatedAt      time.Time
}

// ThreadStore persists conversation→thread mappings. Put is last-writer-wins:
// if two callers race to create a mapping, one remote thread is orphaned but
// exactly one mapping survives.
type ThreadStore interface {
	Get(ctx context.Context, conversationID string) (*ConversationThread, error)
	Put(ctx context.Context, thread *ConversationThread) error
}

// ThreadCache is an optional read-through cache layered over a ThreadStore.
// It is never the source of truth; misses and errors fall through to the store.
type ThreadCache interface {
	Get(ctx context.Context, conversationID string) (string, bool)
	Put(ctx context.Context, conversationID, threadID string)
}
