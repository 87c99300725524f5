package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Makarios44/xuxu-AIBOT/internal/domain"
)

// ThreadRepo implements domain.ThreadStore over the shared Store.
type ThreadRepo struct {
	s *Store
}

// Threads returns the thread-mapping repository view of the store.
func (s *Store) Threads() *ThreadRepo { return &ThreadRepo{s: s} }

func (r *ThreadRepo) Get(ctx context.Context, conversationID string) (*domain.ConversationThread, error) {
	var t domain.ConversationThread
	err := r.s.db.QueryRowContext(ctx, r.s.rebind(
		`SELECT conversation_id, thread_id, created_at
		 FROM conversation_threads WHERE conversation_id = ?`),
		conversationID).Scan(&t.ConversationID, &t.ThreadID, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewDomainError("ThreadRepo.Get", domain.ErrThreadNotFound, conversationID)
	}
	if err != nil {
		return nil, domain.WrapOp("ThreadRepo.Get", fmt.Errorf("%w: %v", domain.ErrStore, err))
	}
	return &t, nil
}

// Put stores the mapping, replacing any existing row for the conversation.
func (r *ThreadRepo) Put(ctx context.Context, thread *domain.ConversationThread) error {
	if thread.CreatedAt.IsZero() {
		thread.CreatedAt = time.Now().UTC()
	}
	_, err := r.s.db.ExecContext(ctx, r.s.rebind(
		`INSERT INTO conversation_threads (conversation_id, thread_id, created_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (conversation_id) DO UPDATE SET thread_id = excluded.thread_id`),
		thread.ConversationID, thread.ThreadID, thread.CreatedAt)
	if err != nil {
		return domain.WrapOp("ThreadRepo.Put", fmt.Errorf("%w: %v", domain.ErrStore, err))
	}
	return nil
}
