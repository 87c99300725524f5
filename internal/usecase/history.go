package usecase

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Makarios44/xuxu-AIBOT/internal/domain"
)

// HistoryLog records conversation traffic in the append-only message store.
// Logging failures never block a reply; they are reported and swallowed.
type HistoryLog struct {
	messages domain.MessageStore
	logger   *slog.Logger

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewHistoryLog creates a history log.
func NewHistoryLog(messages domain.MessageStore, logger *slog.Logger) *HistoryLog {
	return &HistoryLog{
		messages: messages,
		logger:   logger,
		entropy:  ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

func (h *HistoryLog) newID(t time.Time) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), h.entropy).String()
}

// Record appends one entry. ULIDs give the log a sortable primary key so
// List can order by id alone.
func (h *HistoryLog) Record(ctx context.Context, conversationID string, role domain.Role, content, senderName string) {
	now := time.Now()
	err := h.messages.Append(ctx, domain.Message{
		ID:             h.newID(now),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		SenderName:     senderName,
		Timestamp:      now,
	})
	if err != nil {
		h.logger.Error("failed to record message",
			"conversation_id", conversationID, "role", role, "error", err)
	}
}

// Recent returns the newest entries for a conversation.
func (h *HistoryLog) Recent(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	return h.messages.List(ctx, conversationID, limit)
}
