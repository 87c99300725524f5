package store

import (
	"context"
	"fmt"

	"github.com/Makarios44/xuxu-AIBOT/internal/domain"
)

// MessageRepo implements domain.MessageStore over the shared Store.
// Rows are append-only; ULID primary keys make (conversation_id, id)
// a chronological index.
type MessageRepo struct {
	s *Store
}

// Messages returns the history repository view of the store.
func (s *Store) Messages() *MessageRepo { return &MessageRepo{s: s} }

func (r *MessageRepo) Append(ctx context.Context, msg domain.Message) error {
	_, err := r.s.db.ExecContext(ctx, r.s.rebind(
		`INSERT INTO conversation_memory (id, conversation_id, role, content, sender_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`),
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content, msg.SenderName, msg.Timestamp.UTC())
	if err != nil {
		return domain.WrapOp("MessageRepo.Append", fmt.Errorf("%w: %v", domain.ErrStore, err))
	}
	return nil
}

// List returns the most recent limit entries, newest first.
func (r *MessageRepo) List(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.s.db.QueryContext(ctx, r.s.rebind(
		`SELECT id, conversation_id, role, content, sender_name, created_at
		 FROM conversation_memory WHERE conversation_id = ?
		 ORDER BY id DESC LIMIT ?`),
		conversationID, limit)
	if err != nil {
		return nil, domain.WrapOp("MessageRepo.List", fmt.Errorf("%w: %v", domain.ErrStore, err))
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		var role string
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &m.SenderName, &m.Timestamp); err != nil {
			return nil, domain.WrapOp("MessageRepo.List", err)
		}
		m.Role = domain.Role(role)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapOp("MessageRepo.List", fmt.Errorf("%w: %v", domain.ErrStore, err))
	}
	return out, nil
}
