package usecase

import (
	"context"
	"fmt"
	"sync"
)

// ConversationLocker provides operation-level mutual exclusion per
// conversation. The whole handle-message sequence (thread lookup, run,
// tool dispatch, reply) runs under the lock, so two messages from the
// same conversation can never interleave runs on one remote thread.
type ConversationLocker struct {
	mu    sync.Mutex
	locks map[string]*conversationMutex
}

type conversationMutex struct {
	mu       sync.Mutex
	refCount int
}

// NewConversationLocker creates a new conversation locker.
func NewConversationLocker() *ConversationLocker {
	return &ConversationLocker{
		locks: make(map[string]*conversationMutex),
	}
}

// Lock acquires the lock for the given conversation ID. It blocks until
// the lock is acquired or the context is cancelled. Returns an unlock
// function that MUST be called when the operation is complete.
func (cl *ConversationLocker) Lock(ctx context.Context, conversationID string) (unlock func(), err error) {
	// Get or create the per-conversation mutex.
	cl.mu.Lock()
	cm, ok := cl.locks[conversationID]
	if !ok {
		cm = &conversationMutex{}
		cl.locks[conversationID] = cm
	}
	cm.refCount++
	cl.mu.Unlock()

	// Try to acquire the conversation mutex with context cancellation support.
	acquired := make(chan struct{})
	go func() {
		cm.mu.Lock()
		close(acquired)
	}()

	release := func() {
		cm.mu.Unlock()
		cl.mu.Lock()
		cm.refCount--
		if cm.refCount == 0 {
			delete(cl.locks, conversationID)
		}
		cl.mu.Unlock()
	}

	select {
	case <-acquired:
		return release, nil

	case <-ctx.Done():
		// Context cancelled before lock acquired. Must clean up: wait for
		// the goroutine to finish acquiring, then immediately release to
		// prevent a permanently held lock.
		go func() {
			<-acquired
			release()
		}()
		return nil, fmt.Errorf("conversation lock: %w", ctx.Err())
	}
}

// ActiveCount returns the number of conversations with active or pending
// locks. Intended for testing.
func (cl *ConversationLocker) ActiveCount() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.locks)
}
