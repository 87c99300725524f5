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

const (
	googleBaseURL    = "https://www.googleapis.com/calendar/v3"
	maxCalendarBody  = 4 << 20 // 4 MB
	defaultMaxEvents = 50
)

// GoogleClient talks to the Google Calendar v3 API using a caller-supplied
// bearer token. Token acquisition and refresh live elsewhere; this client
// only speaks the wire protocol.
type GoogleClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewGoogleClient creates a Google Calendar API client.
func NewGoogleClient(logger *slog.Logger) *GoogleClient {
	return &GoogleClient{
		baseURL: googleBaseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

// SetBaseURL overrides the API base URL. Test hook.
func (g *GoogleClient) SetBaseURL(u string) { g.baseURL = u }

type googleEvent struct {
	Summary     string         `json:"summary"`
	Description string         `json:"description,omitempty"`
	Location    string         `json:"location,omitempty"`
	Start       googleDateTime `json:"start"`
	End         googleDateTime `json:"end"`
}

type googleDateTime struct {
	DateTime string `json:"dateTime"`
	Date     string `json:"date,omitempty"`
}

func (d googleDateTime) parse() time.Time {
	if d.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, d.DateTime); err == nil {
			return t
		}
	}
	if d.Date != "" {
		if t, err := time.Parse("2006-01-02", d.Date); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ListEvents returns upcoming events on the primary calendar within the
// next days days, ordered by start time.
func (g *GoogleClient) ListEvents(ctx context.Context, accessToken string, days int) ([]Event, error) {
	from, to := Window(time.Now(), days)

	q := url.Values{
		"timeMin":      {from.Format(time.RFC3339)},
		"timeMax":      {to.Format(time.RFC3339)},
		"maxResults":   {strconv.Itoa(defaultMaxEvents)},
		"singleEvents": {"true"},
		"orderBy":      {"startTime"},
	}

	body, err := g.do(ctx, http.MethodGet,
		g.baseURL+"/calendars/primary/events?"+q.Encode(), accessToken, nil)
	if err != nil {
		return nil, domain.WrapOp("google.ListEvents", err)
	}

	var resp struct {
		Items []googleEvent `json:"items"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.WrapOp("google.ListEvents", fmt.Errorf("parse response: %w", err))
	}

	events := make([]Event, 0, len(resp.Items))
	for _, it := range resp.Items {
		events = append(events, Event{
			Title:       it.Summary,
			Description: it.Description,
			Location:    it.Location,
			Start:       it.Start.parse(),
			End:         it.End.parse(),
		})
	}
	return events, nil
}

// CreateEvent inserts an event on the primary calendar.
func (g *GoogleClient) CreateEvent(ctx context.Context, accessToken string, ev Event) error {
	payload, err := json.Marshal(googleEvent{
		Summary:     ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       googleDateTime{DateTime: ev.Start.Format(time.RFC3339)},
		End:         googleDateTime{DateTime: ev.End.Format(time.RFC3339)},
	})
	if err != nil {
		return domain.WrapOp("google.CreateEvent", err)
	}

	_, err = g.do(ctx, http.MethodPost,
		g.baseURL+"/calendars/primary/events", accessToken, payload)
	if err != nil {
		return domain.WrapOp("google.CreateEvent", err)
	}
	g.logger.Debug("google event created", "title", ev.Title)
	return nil
}

func (g *GoogleClient) do(ctx context.Context, method, url, accessToken string, payload []byte) ([]byte, error) {
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

	resp, err := g.client.Do(req)
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
			return nil, fmt.Errorf("%w: calendar API %d: %s", domain.ErrAuthInvalid, resp.StatusCode, body)
		}
		return nil, fmt.Errorf("%w: calendar API %d: %s", domain.ErrUpstream, resp.StatusCode, body)
	}
	return body, nil
}
