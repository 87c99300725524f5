package tool

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestSummarizeToolRequiresText(t *testing.T) {
	tl := NewSummarizeTool(slog.Default())

	res, err := tl.Execute(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !res.IsError || !strings.Contains(res.Content, "texto") {
		t.Errorf("result = %+v", res)
	}
}

func TestSummarizeToolKeepsLeadingSentences(t *testing.T) {
	tl := NewSummarizeTool(slog.Default())

	text := "Primeira frase. Segunda frase. Terceira frase. Quarta frase. Quinta frase."
	params, _ := json.Marshal(map[string]string{"texto": text})

	res, err := tl.Execute(context.Background(), json.RawMessage(params))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected error result: %s", res.Content)
	}
	if strings.Contains(res.Content, "Quarta") {
		t.Errorf("summary too long: %q", res.Content)
	}
	if !strings.Contains(res.Content, "Primeira frase") {
		t.Errorf("summary dropped leading sentence: %q", res.Content)
	}
}

func TestSummarizeToolMeetingLabel(t *testing.T) {
	tl := NewSummarizeTool(slog.Default())
	params, _ := json.Marshal(map[string]string{"texto": "Discutimos o orçamento.", "tipo": "reuniao"})

	res, err := tl.Execute(context.Background(), json.RawMessage(params))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.HasPrefix(res.Content, "Resumo da reunião:") {
		t.Errorf("Content = %q", res.Content)
	}
}

func TestSummarizeShortTextPassesThrough(t *testing.T) {
	if got := summarize("Sem pontuação final", 3); got != "Sem pontuação final" {
		t.Errorf("got %q", got)
	}
}

func TestParseWhen(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"2025-03-01T14:00:00Z", false},
		{"2025-03-01T14:00:00", false},
		{"2025-03-01 14:00:00", false},
		{"2025-03-01", false},
		{"amanhã de manhã", true},
		{"", true},
	}
	for _, tt := range tests {
		got, err := ParseWhen("data_inicio", tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseWhen(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseWhen(%q) error = %v", tt.in, err)
			continue
		}
		if got.Year() != 2025 || got.Month() != time.March {
			t.Errorf("ParseWhen(%q) = %v", tt.in, got)
		}
	}
}
