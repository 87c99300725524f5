package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Makarios44/xuxu-AIBOT/internal/domain"
)

// UpdateAssistantTools replaces the remote assistant's tool manifest with
// the given schemas. Run at deploy time so the published function list
// always matches what the dispatcher can actually serve.
func (c *Client) UpdateAssistantTools(ctx context.Context, schemas []domain.ToolSchema) error {
	type functionTool struct {
		Type     string            `json:"type"`
		Function domain.ToolSchema `json:"function"`
	}
	tools := make([]functionTool, 0, len(schemas))
	for _, s := range schemas {
		tools = append(tools, functionTool{Type: "function", Function: s})
	}

	body, err := json.Marshal(map[string]any{"tools": tools})
	if err != nil {
		return fmt.Errorf("marshal tools: %w", err)
	}

	url := fmt.Sprintf("%s/assistants/%s", c.baseURL, c.assistantID)
	if _, err := doJSONRequest(ctx, c.client, http.MethodPost, url, body, c.headers()); err != nil {
		return domain.WrapOp("assistant.UpdateAssistantTools", err)
	}

	c.logger.Info("assistant tool manifest updated",
		"assistant_id", c.assistantID, "tools", len(tools))
	return nil
}
