package domain

import "context"

type ctxKey string

const (
	conversationCtxKey ctxKey = "conversation_id"
	actingUserCtxKey   ctxKey = "acting_user_id"
)

// ContextWithConversationID returns a new context carrying the conversation ID.
func ContextWithConversationID(ctx context.Context, conversationID string) context.Context {
	return context.WithValue(ctx, conversationCtxKey, conversationID)
}

// ConversationIDFromContext extracts the conversation ID from the context.
// Returns empty string if not set.
func ConversationIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(conversationCtxKey).(string); ok {
		return v
	}
	return ""
}

// ContextWithActingUser returns a new context carrying the identity of the
// user on whose behalf tool calls execute.
func ContextWithActingUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actingUserCtxKey, userID)
}

// ActingUserFromContext extracts the acting user's ID from the context.
// Returns empty string if not set.
func ActingUserFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(actingUserCtxKey).(string); ok {
		return v
	}
	return ""
}
