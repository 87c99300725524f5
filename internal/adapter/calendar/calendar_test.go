package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Makarios44/xuxu-AIBOT/internal/domain"
)

func TestWindowDefaultsToSevenDays(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	from, to := Window(now, 0)
	if !from.Equal(now) {
		t.Errorf("from = %v, want %v", from, now)
	}
	if want := now.AddDate(0, 0, 7); !to.Equal(want) {
		t.Errorf("to = %v, want %v", to, want)
	}
}

func TestGoogleListEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/calendars/primary/events" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("singleEvents") != "true" || q.Get("orderBy") != "startTime" {
			t.Errorf("query = %v", q)
		}
		if q.Get("timeMin") == "" || q.Get("timeMax") == "" {
			t.Error("missing time window")
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth = %q", got)
		}
		w.Write([]byte(`{"items": [
			{"summary": "Reunião", "location": "Sala 2",
			 "start": {"dateTime": "2025-03-02T09:00:00Z"},
			 "end": {"dateTime": "2025-03-02T10:00:00Z"}}
		]}`))
	}))
	defer srv.Close()

	g := NewGoogleClient(slog.Default())
	g.SetBaseURL(srv.URL)

	events, err := g.ListEvents(context.Background(), "tok", 7)
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	if len(events) != 1 || events[0].Title != "Reunião" || events[0].Location != "Sala 2" {
		t.Errorf("events = %+v", events)
	}
	if events[0].Start.IsZero() {
		t.Error("start time not parsed")
	}
}

func TestGoogleCreateEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		var ev map[string]any
		if err := json.Unmarshal(body, &ev); err != nil {
			t.Fatalf("bad body: %v", err)
		}
		if ev["summary"] != "Almoço" {
			t.Errorf("summary = %v", ev["summary"])
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": "ev1"}`))
	}))
	defer srv.Close()

	g := NewGoogleClient(slog.Default())
	g.SetBaseURL(srv.URL)

	err := g.CreateEvent(context.Background(), "tok", Event{
		Title: "Almoço",
		Start: time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 2, 13, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}
}

func TestGoogleUnauthorizedMapsToAuthInvalid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	g := NewGoogleClient(slog.Default())
	g.SetBaseURL(srv.URL)

	_, err := g.ListEvents(context.Background(), "expired", 7)
	if !errors.Is(err, domain.ErrAuthInvalid) {
		t.Errorf("got error %v, want ErrAuthInvalid", err)
	}
}

func TestMicrosoftListEventsTargetsUserMailbox(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/ana@empresa.com/events" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("$top"); got != "50" {
			t.Errorf("$top = %q", got)
		}
		w.Write([]byte(`{"value": [
			{"subject": "Planejamento",
			 "body": {"content": "pauta"},
			 "start": {"dateTime": "2025-03-02T09:00:00.0000000", "timeZone": "UTC"},
			 "end": {"dateTime": "2025-03-02T10:00:00.0000000", "timeZone": "UTC"},
			 "location": {"displayName": "Teams"}}
		]}`))
	}))
	defer srv.Close()

	m := NewMicrosoftClient(slog.Default())
	m.SetBaseURL(srv.URL)

	events, err := m.ListEvents(context.Background(), "tok", "ana@empresa.com", 7)
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	if len(events) != 1 || events[0].Title != "Planejamento" || events[0].Description != "pauta" {
		t.Errorf("events = %+v", events)
	}
	if events[0].Start.IsZero() {
		t.Error("graph datetime not parsed")
	}
}

func TestMicrosoftListEventsOwnCalendar(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me/events" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"value": []}`))
	}))
	defer srv.Close()

	m := NewMicrosoftClient(slog.Default())
	m.SetBaseURL(srv.URL)

	if _, err := m.ListEvents(context.Background(), "tok", "", 7); err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
}

func TestMicrosoftCreateEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var ev map[string]any
		json.Unmarshal(body, &ev)
		if ev["subject"] != "Revisão" {
			t.Errorf("subject = %v", ev["subject"])
		}
		start := ev["start"].(map[string]any)
		if start["timeZone"] != "UTC" {
			t.Errorf("timeZone = %v", start["timeZone"])
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": "AAMk1"}`))
	}))
	defer srv.Close()

	m := NewMicrosoftClient(slog.Default())
	m.SetBaseURL(srv.URL)

	err := m.CreateEvent(context.Background(), "tok", "ana@empresa.com", Event{
		Title: "Revisão",
		Start: time.Date(2025, 3, 3, 14, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 3, 15, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}
}

func TestMicrosoftSearchUsers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users" {
			t.Errorf("path = %q", r.URL.Path)
		}
		filter := r.URL.Query().Get("$filter")
		if filter == "" {
			t.Error("missing $filter")
		}
		w.Write([]byte(`{"value": [
			{"displayName": "Ana Souza", "mail": "ana@empresa.com"}
		]}`))
	}))
	defer srv.Close()

	m := NewMicrosoftClient(slog.Default())
	m.SetBaseURL(srv.URL)

	users, err := m.SearchUsers(context.Background(), "tok", "Ana")
	if err != nil {
		t.Fatalf("SearchUsers() error = %v", err)
	}
	if len(users) != 1 || users[0].Email != "ana@empresa.com" {
		t.Errorf("users = %+v", users)
	}
}

func TestEscapeODataLiteral(t *testing.T) {
	if got := escapeODataLiteral("O'Brien"); got != "O''Brien" {
		t.Errorf("got %q", got)
	}
}
