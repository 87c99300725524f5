package domain

import (
	"context"
	"encoding/json"
)

// ToolSchema describes a tool for the assistant function-calling protocol.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolCall represents the assistant's request to invoke a named function.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is the outcome of executing a tool.
type ToolResult struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error"`
}

// Tool is the interface every dispatchable function must implement.
type Tool interface {
	Name() string
	Description() string
	Schema() ToolSchema
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// ToolExecutor abstracts tool lookup for the dispatcher.
type ToolExecutor interface {
	Get(name string) (Tool, error)
	Schemas() []ToolSchema
}

// ToolDispatcher resolves one assistant tool call to its textual output.
// It never fails: any internal error is absorbed into the output string so
// the run can always be resumed with a complete batch.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, call ToolCall, userID string) ToolOutput
}
