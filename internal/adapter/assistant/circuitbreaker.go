package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/Makarios44/xuxu-AIBOT/internal/domain"
	"github.com/Makarios44/xuxu-AIBOT/internal/infra/config"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// BreakerClient wraps an AssistantClient with circuit breaker protection.
// When the remote service fails repeatedly, the circuit opens and calls
// fail fast without reaching the API, preventing poll storms while the
// service is down.
type BreakerClient struct {
	inner   domain.AssistantClient
	breaker *gobreaker.CircuitBreaker[any]
	logger  *slog.Logger
}

// NewBreakerClient wraps inner with a circuit breaker.
// Zero-valued cfg fields fall back to defaults.
func NewBreakerClient(inner domain.AssistantClient, cfg config.BreakerConfig, logger *slog.Logger) *BreakerClient {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "assistant",
		MaxRequests: 1, // allow 1 probe in half-open state
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	return &BreakerClient{inner: inner, breaker: cb, logger: logger}
}

func (b *BreakerClient) execute(fn func() (any, error)) (any, error) {
	v, err := b.breaker.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("assistant circuit open: %w", err)
		}
		return nil, err
	}
	return v, nil
}

func (b *BreakerClient) CreateThread(ctx context.Context) (string, error) {
	v, err := b.execute(func() (any, error) { return b.inner.CreateThread(ctx) })
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (b *BreakerClient) AppendUserMessage(ctx context.Context, threadID, text string) error {
	_, err := b.execute(func() (any, error) {
		return nil, b.inner.AppendUserMessage(ctx, threadID, text)
	})
	return err
}

func (b *BreakerClient) CreateRun(ctx context.Context, threadID string) (*domain.Run, error) {
	v, err := b.execute(func() (any, error) { return b.inner.CreateRun(ctx, threadID) })
	if err != nil {
		return nil, err
	}
	return v.(*domain.Run), nil
}

func (b *BreakerClient) RetrieveRun(ctx context.Context, threadID, runID string) (*domain.Run, error) {
	v, err := b.execute(func() (any, error) { return b.inner.RetrieveRun(ctx, threadID, runID) })
	if err != nil {
		return nil, err
	}
	return v.(*domain.Run), nil
}

func (b *BreakerClient) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []domain.ToolOutput) error {
	_, err := b.execute(func() (any, error) {
		return nil, b.inner.SubmitToolOutputs(ctx, threadID, runID, outputs)
	})
	return err
}

// CancelRun bypasses the breaker: cancellation is already the failure path
// and must not be blocked by an open circuit.
func (b *BreakerClient) CancelRun(ctx context.Context, threadID, runID string) error {
	return b.inner.CancelRun(ctx, threadID, runID)
}

func (b *BreakerClient) LatestAssistantMessage(ctx context.Context, threadID string) (string, error) {
	v, err := b.execute(func() (any, error) { return b.inner.LatestAssistantMessage(ctx, threadID) })
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// State returns the current circuit breaker state for monitoring.
func (b *BreakerClient) State() gobreaker.State { return b.breaker.State() }

var _ domain.AssistantClient = (*BreakerClient)(nil)
