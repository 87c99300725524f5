package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Makarios44/xuxu-AIBOT/internal/domain"
	"github.com/Makarios44/xuxu-AIBOT/internal/infra/config"
	"github.com/Makarios44/xuxu-AIBOT/internal/infra/tracer"
)

const betaHeader = "assistants=v2"

// Client talks to the OpenAI Assistants API (v2): threads, messages,
// runs, and tool-output submission.
type Client struct {
	apiKey      string
	assistantID string
	baseURL     string
	client      *http.Client
	logger      *slog.Logger
}

// NewClient creates an assistant transport from config.
func NewClient(cfg config.AssistantConfig, logger *slog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &Client{
		apiKey:      cfg.APIKey,
		assistantID: cfg.AssistantID,
		baseURL:     baseURL,
		client:      NewHTTPClient(cfg),
		logger:      logger,
	}
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + c.apiKey,
		"OpenAI-Beta":   betaHeader,
	}
}

// --- wire types ---

type threadResponse struct {
	ID string `json:"id"`
}

type runResponse struct {
	ID             string `json:"id"`
	ThreadID       string `json:"thread_id"`
	Status         string `json:"status"`
	RequiredAction *struct {
		Type              string `json:"type"`
		SubmitToolOutputs struct {
			ToolCalls []struct {
				ID       string `json:"id"`
				Type     string `json:"type"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"submit_tool_outputs"`
	} `json:"required_action"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
}

func (r *runResponse) toDomain() *domain.Run {
	run := &domain.Run{
		ID:       r.ID,
		ThreadID: r.ThreadID,
		Status:   domain.RunStatus(r.Status),
	}
	if r.RequiredAction != nil {
		for _, tc := range r.RequiredAction.SubmitToolOutputs.ToolCalls {
			run.ToolCalls = append(run.ToolCalls, domain.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: json.RawMessage(tc.Function.Arguments),
			})
		}
	}
	if r.LastError != nil {
		run.LastError = fmt.Sprintf("%s: %s", r.LastError.Code, r.LastError.Message)
	}
	return run
}

type messageListResponse struct {
	Data []struct {
		ID      string `json:"id"`
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text struct {
				Value string `json:"value"`
			} `json:"text"`
		} `json:"content"`
	} `json:"data"`
}

// --- AssistantClient implementation ---

// CreateThread creates an empty remote thread and returns its id.
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	ctx, span := tracer.StartSpan(ctx, "assistant.create_thread")
	defer span.End()

	body, err := doJSONRequest(ctx, c.client, http.MethodPost,
		c.baseURL+"/threads", []byte("{}"), c.headers())
	if err != nil {
		tracer.RecordError(span, err)
		return "", domain.WrapOp("assistant.CreateThread", err)
	}

	var resp threadResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		tracer.RecordError(span, err)
		return "", domain.WrapOp("assistant.CreateThread", fmt.Errorf("parse response: %w", err))
	}

	c.logger.Debug("thread created", "thread_id", resp.ID)
	tracer.SetOK(span)
	return resp.ID, nil
}

// AppendUserMessage adds a user message to the thread.
func (c *Client) AppendUserMessage(ctx context.Context, threadID, text string) error {
	ctx, span := tracer.StartSpan(ctx, "assistant.append_message")
	defer span.End()

	payload, err := json.Marshal(map[string]string{
		"role":    "user",
		"content": text,
	})
	if err != nil {
		return domain.WrapOp("assistant.AppendUserMessage", err)
	}

	_, err = doJSONRequest(ctx, c.client, http.MethodPost,
		fmt.Sprintf("%s/threads/%s/messages", c.baseURL, threadID), payload, c.headers())
	if err != nil {
		tracer.RecordError(span, err)
		return domain.WrapOp("assistant.AppendUserMessage", err)
	}
	tracer.SetOK(span)
	return nil
}

// CreateRun starts a run of the configured assistant against the thread.
func (c *Client) CreateRun(ctx context.Context, threadID string) (*domain.Run, error) {
	ctx, span := tracer.StartSpan(ctx, "assistant.create_run")
	defer span.End()
	span.SetAttributes(tracer.StringAttr("assistant.thread_id", threadID))

	payload, err := json.Marshal(map[string]string{"assistant_id": c.assistantID})
	if err != nil {
		return nil, domain.WrapOp("assistant.CreateRun", err)
	}

	body, err := doJSONRequest(ctx, c.client, http.MethodPost,
		fmt.Sprintf("%s/threads/%s/runs", c.baseURL, threadID), payload, c.headers())
	if err != nil {
		tracer.RecordError(span, err)
		return nil, domain.WrapOp("assistant.CreateRun", err)
	}

	var resp runResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		tracer.RecordError(span, err)
		return nil, domain.WrapOp("assistant.CreateRun", fmt.Errorf("parse response: %w", err))
	}
	tracer.SetOK(span)
	return resp.toDomain(), nil
}

// RetrieveRun fetches the current state of a run.
func (c *Client) RetrieveRun(ctx context.Context, threadID, runID string) (*domain.Run, error) {
	body, err := doJSONRequest(ctx, c.client, http.MethodGet,
		fmt.Sprintf("%s/threads/%s/runs/%s", c.baseURL, threadID, runID), nil, c.headers())
	if err != nil {
		return nil, domain.WrapOp("assistant.RetrieveRun", err)
	}

	var resp runResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.WrapOp("assistant.RetrieveRun", fmt.Errorf("parse response: %w", err))
	}
	return resp.toDomain(), nil
}

// SubmitToolOutputs answers a requires_action batch. Every tool call in the
// batch must be present in outputs.
func (c *Client) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []domain.ToolOutput) error {
	ctx, span := tracer.StartSpan(ctx, "assistant.submit_tool_outputs")
	defer span.End()
	span.SetAttributes(tracer.IntAttr("assistant.tool_outputs", len(outputs)))

	payload, err := json.Marshal(map[string]any{"tool_outputs": outputs})
	if err != nil {
		return domain.WrapOp("assistant.SubmitToolOutputs", err)
	}

	_, err = doJSONRequest(ctx, c.client, http.MethodPost,
		fmt.Sprintf("%s/threads/%s/runs/%s/submit_tool_outputs", c.baseURL, threadID, runID),
		payload, c.headers())
	if err != nil {
		tracer.RecordError(span, err)
		return domain.WrapOp("assistant.SubmitToolOutputs", err)
	}
	tracer.SetOK(span)
	return nil
}

// CancelRun requests cancellation of an in-flight run. Best effort; the
// remote service may already have finished the run.
func (c *Client) CancelRun(ctx context.Context, threadID, runID string) error {
	_, err := doJSONRequest(ctx, c.client, http.MethodPost,
		fmt.Sprintf("%s/threads/%s/runs/%s/cancel", c.baseURL, threadID, runID),
		[]byte("{}"), c.headers())
	return domain.WrapOp("assistant.CancelRun", err)
}

// LatestAssistantMessage returns the text of the newest assistant-authored
// message in the thread.
func (c *Client) LatestAssistantMessage(ctx context.Context, threadID string) (string, error) {
	body, err := doJSONRequest(ctx, c.client, http.MethodGet,
		fmt.Sprintf("%s/threads/%s/messages?limit=1&order=desc", c.baseURL, threadID),
		nil, c.headers())
	if err != nil {
		return "", domain.WrapOp("assistant.LatestAssistantMessage", err)
	}

	var resp messageListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", domain.WrapOp("assistant.LatestAssistantMessage", fmt.Errorf("parse response: %w", err))
	}

	for _, msg := range resp.Data {
		if msg.Role != "assistant" {
			continue
		}
		for _, part := range msg.Content {
			if part.Type == "text" {
				return part.Text.Value, nil
			}
		}
	}
	return "", domain.WrapOp("assistant.LatestAssistantMessage",
		fmt.Errorf("no assistant message in thread %s", threadID))
}

var _ domain.AssistantClient = (*Client)(nil)
