package domain

import (
	"context"
	"time"
)

// Role identifies the author of a logged message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in the append-only conversation history log.
// It exists for audit and read-back only; the remote thread is the source
// of truth for assistant context.
type Message struct {
	ID             string // ULID
	ConversationID string
	Role           Role
	Content        string
	SenderName     string // display name of the user, when known
	Timestamp      time.Time
}

// MessageStore is the append-only history log. Entries are never mutated
// or deleted; List returns the most recent entries first.
type MessageStore interface {
	Append(ctx context.Context, msg Message) error
	List(ctx context.Context, conversationID string, limit int) ([]Message, error)
}
