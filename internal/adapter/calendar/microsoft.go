package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Makarios44/xuxu-AIBOT/internal/domain"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

// MicrosoftClient talks to the Microsoft Graph calendar and directory
// endpoints using a caller-supplied bearer token.
type MicrosoftClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewMicrosoftClient creates a Microsoft Graph API client.
func NewMicrosoftClient(logger *slog.Logger) *MicrosoftClient {
	return &MicrosoftClient{
		baseURL: graphBaseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

// SetBaseURL overrides the API base URL. Test hook.
func (m *MicrosoftClient) SetBaseURL(u string) { m.baseURL = u }

type graphEvent struct {
	Subject string `json:"subject"`
	Body    *struct {
		Content string `json:"content"`
	} `json:"body,omitempty"`
	Start    graphDateTime  `json:"start"`
	End      graphDateTime  `json:"end"`
	Location *graphLocation `json:"location,omitempty"`
}

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type graphLocation struct {
	DisplayName string `json:"displayName"`
}

func (d graphDateTime) parse() time.Time {
	// Graph returns fractional-second local datetimes without offset.
	for _, layout := range []string{"2006-01-02T15:04:05.9999999", "2006-01-02T15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, d.DateTime); err == nil {
			return t
		}
	}
	return time.Time{}
}

// calendarPath returns the events collection for userEmail, or the signed-in
// user's own calendar when userEmail is empty.
func (m *MicrosoftClient) calendarPath(userEmail string) string {
	if userEmail == "" {
		return m.baseURL + "/me/events"
	}
	return m.baseURL + "/users/" + url.PathEscape(userEmail) + "/events"
}

// ListEvents returns upcoming events within the next days days. With a
// userEmail the lookup targets that mailbox (application permission),
// otherwise the token owner's calendar.
func (m *MicrosoftClient) ListEvents(ctx context.Context, accessToken, userEmail string, days int) ([]Event, error) {
	from, to := Window(time.Now(), days)

	q := url.Values{
		"$top":     {strconv.Itoa(defaultMaxEvents)},
		"$orderby": {"start/dateTime"},
		"$filter": {fmt.Sprintf("start/dateTime ge '%s' and start/dateTime le '%s'",
			from.UTC().Format("2006-01-02T15:04:05"), to.UTC().Format("2006-01-02T15:04:05"))},
	}

	body, err := m.do(ctx, http.MethodGet, m.calendarPath(userEmail)+"?"+q.Encode(), accessToken, nil)
	if err != nil {
		return nil, domain.WrapOp("microsoft.ListEvents", err)
	}

	var resp struct {
		Value []graphEvent `json:"value"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.WrapOp("microsoft.ListEvents", fmt.Errorf("parse response: %w", err))
	}

	events := make([]Event, 0, len(resp.Value))
	for _, it := range resp.Value {
		ev := Event{
			Title: it.Subject,
			Start: it.Start.parse(),
			End:   it.End.parse(),
		}
		if it.Body != nil {
			ev.Description = it.Body.Content
		}
		if it.Location != nil {
			ev.Location = it.Location.DisplayName
		}
		events = append(events, ev)
	}
	return events, nil
}

// CreateEvent inserts an event. With a userEmail the event lands on that
// mailbox's calendar, otherwise the token owner's.
func (m *MicrosoftClient) CreateEvent(ctx context.Context, accessToken, userEmail string, ev Event) error {
	payload := graphEvent{
		Subject: ev.Title,
		Start:   graphDateTime{DateTime: ev.Start.UTC().Format("2006-01-02T15:04:05"), TimeZone: "UTC"},
		End:     graphDateTime{DateTime: ev.End.UTC().Format("2006-01-02T15:04:05"), TimeZone: "UTC"},
	}
	if ev.Description != "" {
		payload.Body = &struct {
			Content string `json:"content"`
		}{Content: ev.Description}
	}
	if ev.Location != "" {
		payload.Location = &graphLocation{DisplayName: ev.Location}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return domain.WrapOp("microsoft.CreateEvent", err)
	}

	if _, err := m.do(ctx, http.MethodPost, m.calendarPath(userEmail), accessToken, data); err != nil {
		return domain.WrapOp("microsoft.CreateEvent", err)
	}
	m.logger.Debug("graph event created", "title", ev.Title, "user", userEmail)
	return nil
}

// SearchUsers queries the directory for users whose display name or mail
// starts with query.
func (m *MicrosoftClient) SearchUsers(ctx context.Context, accessToken, query string) ([]User, error) {
	q := url.Values{
		"$filter": {fmt.Sprintf("startswith(displayName,'%s') or startswith(mail,'%s')",
			escapeODataLiteral(query), escapeODataLiteral(query))},
		"$select": {"displayName,mail"},
		"$top":    {"10"},
	}

	body, err := m.do(ctx, http.MethodGet, m.baseURL+"/users?"+q.Encode(), accessToken, nil)
	if err != nil {
		return nil, domain.WrapOp("microsoft.SearchUsers", err)
	}

	var resp struct {
		Value []struct {
			DisplayName string `json:"displayName"`
			Mail        string `json:"mail"`
		} `json:"value"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.WrapOp("microsoft.SearchUsers", fmt.Errorf("parse response: %w", err))
	}

	users := make([]User, 0, len(resp.Value))
	for _, u := range resp.Value {
		users = append(users, User{DisplayName: u.DisplayName, Email: u.Mail})
	}
	return users, nil
}

// escapeODataLiteral doubles single quotes per OData string literal rules.
func escapeODataLiteral(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'', '\'')
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}

func (m *MicrosoftClient) do(ctx context.Context, method, url, accessToken string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCalendarBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, fmt.Errorf("%w: graph API %d: %s", domain.ErrAuthInvalid, resp.StatusCode, body)
		}
		return nil, fmt.Errorf("%w: graph API %d: %s", domain.ErrUpstream, resp.StatusCode, body)
	}
	return body, nil
}
