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

// graphEventParams is the argument shape of the Microsoft calendar tools.
type graphEventParams struct {
	UserEmail  string `json:"user_email"`
	Titulo     string `json:"titulo"`
	DataInicio string `json:"data_inicio"`
	DataFim    string `json:"data_fim"`
	Descricao  string `json:"descricao"`
	Local      string `json:"local"`
	Dias       int    `json:"dias"`
}

// microsoftToken resolves the acting user's Microsoft access token, turning
// a missing credential into the connect-your-calendar instruction.
func microsoftToken(ctx context.Context, tokens domain.TokenSource) (string, *domain.ToolResult, error) {
	token, err := tokens.GetValidToken(ctx, domain.ActingUserFromContext(ctx), domain.ProviderMicrosoft)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return "", TextResult(domain.AuthRequiredMessage(domain.ProviderMicrosoft)), nil
		}
		return "", nil, err
	}
	return token, nil, nil
}

// MicrosoftListTool lists upcoming Outlook events via Microsoft Graph.
type MicrosoftListTool struct {
	tokens domain.TokenSource
	client *calendar.MicrosoftClient
	logger *slog.Logger
}

// NewMicrosoftListTool creates the listar_eventos_calendar tool.
func NewMicrosoftListTool(tokens domain.TokenSource, client *calendar.MicrosoftClient, logger *slog.Logger) *MicrosoftListTool {
	return &MicrosoftListTool{tokens: tokens, client: client, logger: logger}
}

func (t *MicrosoftListTool) Name() string { return "listar_eventos_calendar" }

func (t *MicrosoftListTool) Description() string {
	return "Lista eventos do calendário Microsoft Outlook via Graph API"
}

func (t *MicrosoftListTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"user_email": {"type": "string", "description": "Email do usuário"},
				"dias": {"type": "integer", "description": "Número de dias à frente (padrão: 7)"}
			},
			"required": ["user_email"]
		}`),
	}
}

func (t *MicrosoftListTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.listar_eventos_calendar", t.logger, params,
		func(ctx context.Context, span trace.Span, p graphEventParams) (any, error) {
			if err := RequireField("user_email", p.UserEmail); err != nil {
				return ErrResult("%v", err)
			}
			token, early, err := microsoftToken(ctx, t.tokens)
			if early != nil || err != nil {
				return early, err
			}

			events, err := t.client.ListEvents(ctx, token, p.UserEmail, p.Dias)
			if err != nil {
				return nil, err
			}
			return formatEvents(events), nil
		})
}

// MicrosoftCreateTool creates an Outlook event via Microsoft Graph.
type MicrosoftCreateTool struct {
	tokens domain.TokenSource
	client *calendar.MicrosoftClient
	logger *slog.Logger
}

// NewMicrosoftCreateTool creates the criar_evento_calendar tool.
func NewMicrosoftCreateTool(tokens domain.TokenSource, client *calendar.MicrosoftClient, logger *slog.Logger) *MicrosoftCreateTool {
	return &MicrosoftCreateTool{tokens: tokens, client: client, logger: logger}
}

func (t *MicrosoftCreateTool) Name() string { return "criar_evento_calendar" }

func (t *MicrosoftCreateTool) Description() string {
	return "Cria evento no calendário Microsoft Outlook"
}

func (t *MicrosoftCreateTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"user_email": {"type": "string", "description": "Email do usuário"},
				"titulo": {"type": "string", "description": "Título do evento"},
				"data_inicio": {"type": "string", "description": "Data/hora início (ISO format)"},
				"data_fim": {"type": "string", "description": "Data/hora fim (ISO format)"},
				"descricao": {"type": "string", "description": "Descrição do evento"},
				"local": {"type": "string", "description": "Local do evento"}
			},
			"required": ["user_email", "titulo", "data_inicio", "data_fim"]
		}`),
	}
}

func (t *MicrosoftCreateTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.criar_evento_calendar", t.logger, params,
		func(ctx context.Context, span trace.Span, p graphEventParams) (any, error) {
			if err := RequireFields(
				"user_email", p.UserEmail,
				"titulo", p.Titulo,
				"data_inicio", p.DataInicio,
				"data_fim", p.DataFim,
			); err != nil {
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

			token, early, err := microsoftToken(ctx, t.tokens)
			if early != nil || err != nil {
				return early, err
			}

			ev := calendar.Event{
				Title:       p.Titulo,
				Description: p.Descricao,
				Location:    p.Local,
				Start:       start,
				End:         end,
			}
			if err := t.client.CreateEvent(ctx, token, p.UserEmail, ev); err != nil {
				return nil, err
			}
			return fmt.Sprintf("Evento %q criado no calendário de %s de %s a %s.",
				p.Titulo, p.UserEmail, p.DataInicio, p.DataFim), nil
		})
}

// UserSearchTool searches the Azure AD directory via Microsoft Graph.
type UserSearchTool struct {
	tokens domain.TokenSource
	client *calendar.MicrosoftClient
	logger *slog.Logger
}

// NewUserSearchTool creates the buscar_usuarios tool.
func NewUserSearchTool(tokens domain.TokenSource, client *calendar.MicrosoftClient, logger *slog.Logger) *UserSearchTool {
	return &UserSearchTool{tokens: tokens, client: client, logger: logger}
}

func (t *UserSearchTool) Name() string { return "buscar_usuarios" }

func (t *UserSearchTool) Description() string {
	return "Busca usuários no Azure Active Directory"
}

func (t *UserSearchTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "Nome ou email para buscar"}
			},
			"required": ["query"]
		}`),
	}
}

func (t *UserSearchTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	type searchParams struct {
		Query string `json:"query"`
	}
	return Execute(ctx, "tool.buscar_usuarios", t.logger, params,
		func(ctx context.Context, span trace.Span, p searchParams) (any, error) {
			if err := RequireField("query", p.Query); err != nil {
				return ErrResult("%v", err)
			}
			token, early, err := microsoftToken(ctx, t.tokens)
			if early != nil || err != nil {
				return early, err
			}

			users, err := t.client.SearchUsers(ctx, token, p.Query)
			if err != nil {
				return nil, err
			}
			if len(users) == 0 {
				return fmt.Sprintf("Nenhum usuário encontrado para %q.", p.Query), nil
			}

			var b strings.Builder
			fmt.Fprintf(&b, "%d usuário(s) encontrado(s):\n", len(users))
			for _, u := range users {
				fmt.Fprintf(&b, "- %s <%s>\n", u.DisplayName, u.Email)
			}
			return strings.TrimRight(b.String(), "\n"), nil
		})
}
