package tool

import (
	"context"
	"log/slog"

	"github.com/Makarios44/xuxu-AIBOT/internal/domain"
	"github.com/Makarios44/xuxu-AIBOT/internal/infra/tracer"
)

// User-facing output strings. The assistant relays them verbatim, so they
// carry the bot's Portuguese voice.
const (
	// NotImplementedOutput answers calls to function names the bot does
	// not know. The run must still receive an output for the call.
	NotImplementedOutput = "Função não implementada."

	// errorMarker prefixes any absorbed failure so the assistant can tell
	// a result from a problem report.
	errorMarker = "ERRO: "
)

// Dispatcher resolves assistant tool calls against the registry. It never
// returns an error: every failure becomes a marked output string so the
// orchestrator can always submit a complete batch and keep the run moving.
type Dispatcher struct {
	registry domain.ToolExecutor
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher over the given registry.
func NewDispatcher(registry domain.ToolExecutor, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, logger: logger}
}

// Dispatch executes one tool call on behalf of userID and returns its
// output. Unknown function names yield NotImplementedOutput; execution
// failures yield an errorMarker-prefixed description.
func (d *Dispatcher) Dispatch(ctx context.Context, call domain.ToolCall, userID string) domain.ToolOutput {
	ctx, span := tracer.StartSpan(ctx, "tool.dispatch")
	defer span.End()
	span.SetAttributes(
		tracer.StringAttr("tool.name", call.Name),
		tracer.StringAttr("tool.call_id", call.ID),
	)

	ctx = domain.ContextWithActingUser(ctx, userID)

	t, err := d.registry.Get(call.Name)
	if err != nil {
		d.logger.Warn("unknown tool requested", "tool", call.Name, "user", userID)
		tracer.RecordError(span, err)
		return domain.ToolOutput{ToolCallID: call.ID, Output: NotImplementedOutput}
	}

	result, err := t.Execute(ctx, call.Arguments)
	if err != nil {
		// Tools normally absorb their own failures; this is the backstop.
		d.logger.Error("tool execution failed", "tool", call.Name, "error", err)
		tracer.RecordError(span, err)
		return domain.ToolOutput{ToolCallID: call.ID, Output: errorMarker + err.Error()}
	}

	if result.IsError {
		d.logger.Warn("tool reported error", "tool", call.Name, "detail", result.Content)
		return domain.ToolOutput{ToolCallID: call.ID, Output: errorMarker + result.Content}
	}

	tracer.SetOK(span)
	return domain.ToolOutput{ToolCallID: call.ID, Output: result.Content}
}

var _ domain.ToolDispatcher = (*Dispatcher)(nil)
