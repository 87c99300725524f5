package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/Makarios44/xuxu-AIBOT/internal/adapter/calendar"
	"github.com/Makarios44/xuxu-AIBOT/internal/domain"
)

// googleEventParams is the argument shape shared by the Google calendar
// tools, matching the assistant's declared function schemas.
type googleEventParams struct {
	Titulo     string `json:"titulo"`
	DataInicio string `json:"data_inicio"`
	DataFim    string `json:"data_fim"`
	Descricao  string `json:"descricao"`
	Local      string `json:"local"`
	Dias       int    `json:"dias"`
}

// GoogleListTool lists upcoming Google Calendar events for the acting user.
type GoogleListTool struct {
	tokens domain.TokenSource
	client *calendar.GoogleClient
	logger *slog.Logger
}

// NewGoogleListTool creates the listar_eventos_google tool.
func NewGoogleListTool(tokens domain.TokenSource, client *calendar.GoogleClient, logger *slog.Logger) *GoogleListTool {
	return &GoogleListTool{tokens: tokens, client: client, logger: logger}
}

func (t *GoogleListTool) Name() string { return "listar_eventos_google" }

func (t *GoogleListTool) Description() string {
	return "Lista eventos do Google Calendar do usuário"
}

func (t *GoogleListTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"dias": {"type": "integer", "description": "Número de dias à frente (padrão: 7)"}
			}
		}`),
	}
}

func (t *GoogleListTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.listar_eventos_google", t.logger, params,
		func(ctx context.Context, span trace.Span, p googleEventParams) (any, error) {
			token, err := t.tokens.GetValidToken(ctx, domain.ActingUserFromContext(ctx), domain.ProviderGoogle)
			if err != nil {
				if errors.Is(err, domain.ErrCredentialNotFound) {
					return TextResult(domain.AuthRequiredMessage(domain.ProviderGoogle)), nil
				}
				return nil, err
			}

			events, err := t.client.ListEvents(ctx, token, p.Dias)
			if err != nil {
				return nil, err
			}
			return formatEvents(events), nil
		})
}

// GoogleCreateTool creates a Google Calendar event for the acting user.
type GoogleCreateTool struct {
	tokens domain.TokenSource
	client *calendar.GoogleClient
	logger *slog.Logger
}

// NewGoogleCreateTool creates the criar_evento_google tool.
func NewGoogleCreateTool(tokens domain.TokenSource, client *calendar.GoogleClient, logger *slog.Logger) *GoogleCreateTool {
	return &GoogleCreateTool{tokens: tokens, client: client, logger: logger}
}

func (t *GoogleCreateTool) Name() string { return "criar_evento_google" }

func (t *GoogleCreateTool) Description() string {
	return "Cria evento no Google Calendar do usuário"
}

func (t *GoogleCreateTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"titulo": {"type": "string", "description": "Título do evento"},
				"data_inicio": {"type": "string", "description": "Data/hora início (ISO format)"},
				"data_fim": {"type": "string", "description": "Data/hora fim (ISO format)"},
				"descricao": {"type": "string", "description": "Descrição do evento"},
				"local": {"type": "string", "description": "Local do evento"}
			},
			"required": ["titulo", "data_inicio", "data_fim"]
		}`),
	}
}

func (t *GoogleCreateTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.criar_evento_google", t.logger, params,
		func(ctx context.Context, span trace.Span, p googleEventParams) (any, error) {
			if err := RequireFields("titulo", p.Titulo, "data_inicio", p.DataInicio, "data_fim", p.DataFim); err != nil {
				return ErrResult("%v", err)
			}
			start, err := ParseWhen("data_inicio", p.DataInicio)
			if err != nil {
				return ErrResult("%v", err)
			}
			end, err := ParseWhen("data_fim", p.DataFim)
			if err != nil {
				return ErrResult("%v", err)
			}

			token, err := t.tokens.GetValidToken(ctx, domain.ActingUserFromContext(ctx), domain.ProviderGoogle)
			if err != nil {
				if errors.Is(err, domain.ErrCredentialNotFound) {
					return TextResult(domain.AuthRequiredMessage(domain.ProviderGoogle)), nil
				}
				return nil, err
			}

			ev := calendar.Event{
				Title:       p.Titulo,
				Description: p.Descricao,
				Location:    p.Local,
				Start:       start,
				End:         end,
			}
			if err := t.client.CreateEvent(ctx, token, ev); err != nil {
				return nil, err
			}
			return fmt.Sprintf("Evento %q criado no Google Calendar de %s a %s.",
				p.Titulo, p.DataInicio, p.DataFim), nil
		})
}

// formatEvents renders a provider-neutral event list for the assistant.
func formatEvents(events []calendar.Event) string {
	if len(events) == 0 {
		return "Nenhum evento encontrado no período."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d evento(s) encontrado(s):\n", len(events))
	for _, ev := range events {
		fmt.Fprintf(&b, "- %s", ev.Title)
		if !ev.Start.IsZero() {
			fmt.Fprintf(&b, " (%s", ev.Start.Format("02/01/2006 15:04"))
			if !ev.End.IsZero() {
				fmt.Fprintf(&b, " às %s", ev.End.Format("15:04"))
			}
			b.WriteString(")")
		}
		if ev.Location != "" {
			fmt.Fprintf(&b, " em %s", ev.Location)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
