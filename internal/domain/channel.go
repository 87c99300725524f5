package domain

import "context"

// InboundMessage is a message received from a channel (user input).
type InboundMessage struct {
	ConversationID string
	Content        string
	ChannelName    string

	// Enriched fields — all zero-value safe.
	SenderID   string            `json:"sender_id,omitempty"`
	SenderName string            `json:"sender_name,omitempty"`
	ReplyToID  string            `json:"reply_to_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage is a reply sent back through a channel.
type OutboundMessage struct {
	ConversationID string
	Content        string
	IsError        bool

	ReplyToID string            `json:"reply_to_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// MessageHandler is a callback the channel invokes when it receives input.
type MessageHandler func(ctx context.Context, msg InboundMessage) error

// Channel is the interface for messaging-platform adapters.
type Channel interface {
	Start(ctx context.Context, handler MessageHandler) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg OutboundMessage) error
	Name() string
}
