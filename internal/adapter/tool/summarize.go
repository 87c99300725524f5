package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/Makarios44/xuxu-AIBOT/internal/domain"
)

// summarizeMaxSentences caps how many sentences the extractive summary keeps.
const summarizeMaxSentences = 3

// SummarizeTool produces a short extractive summary of a text, locally and
// without any upstream call. Known summary styles only tune the framing line.
type SummarizeTool struct {
	logger *slog.Logger
}

// NewSummarizeTool creates the resumir_texto tool.
func NewSummarizeTool(logger *slog.Logger) *SummarizeTool {
	return &SummarizeTool{logger: logger}
}

func (t *SummarizeTool) Name() string { return "resumir_texto" }

func (t *SummarizeTool) Description() string {
	return "Resume qualquer tipo de texto (documentos, reuniões, artigos, etc.)"
}

func (t *SummarizeTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"texto": {"type": "string", "description": "Texto completo para resumir"},
				"tipo": {"type": "string", "description": "Tipo de resumo: 'geral', 'reuniao', 'tecnico', etc."}
			},
			"required": ["texto"]
		}`),
	}
}

type summarizeParams struct {
	Texto string `json:"texto"`
	Tipo  string `json:"tipo"`
}

func (t *SummarizeTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.resumir_texto", t.logger, params,
		func(ctx context.Context, span trace.Span, p summarizeParams) (any, error) {
			if err := RequireField("texto", p.Texto); err != nil {
				return ErrResult("%v", err)
			}

			summary := summarize(p.Texto, summarizeMaxSentences)
			label := "Resumo"
			switch p.Tipo {
			case "reuniao":
				label = "Resumo da reunião"
			case "tecnico":
				label = "Resumo técnico"
			}
			return fmt.Sprintf("%s: %s", label, summary), nil
		})
}

// summarize keeps the first maxSentences sentences of the text, collapsing
// whitespace. Short texts pass through unchanged.
func summarize(text string, maxSentences int) string {
	text = strings.Join(strings.Fields(text), " ")

	count := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			// Skip decimal points and abbreviations followed by more text.
			if i+1 < len(text) && text[i+1] != ' ' {
				continue
			}
			count++
			if count >= maxSentences {
				return strings.TrimSpace(text[:i+1])
			}
		}
	}
	return text
}
