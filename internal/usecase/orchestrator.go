package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Makarios44/xuxu-AIBOT/internal/domain"
	"github.com/Makarios44/xuxu-AIBOT/internal/infra/config"
	"github.com/Makarios44/xuxu-AIBOT/internal/infra/tracer"
)

// Apology texts sent when a run cannot produce an answer. The assistant's
// audience is Portuguese-speaking, so the failure surface is too.
const (
	msgRunFailed  = "Desculpe, não consegui processar sua mensagem (status: %s). Tente novamente em instantes."
	msgRunTimeout = "Desculpe, a resposta demorou mais que o esperado e foi cancelada. Tente novamente."
)

// Orchestrator drives the full message lifecycle: per-conversation locking,
// thread resolution, run creation, tool-call servicing and reply extraction.
// One Orchestrator serves all channels.
type Orchestrator struct {
	assistant  domain.AssistantClient
	threads    *ThreadRegistry
	dispatcher domain.ToolDispatcher
	locker     *ConversationLocker
	history    *HistoryLog
	logger     *slog.Logger

	pollInterval time.Duration
	runTimeout   time.Duration
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(
	assistant domain.AssistantClient,
	threads *ThreadRegistry,
	dispatcher domain.ToolDispatcher,
	locker *ConversationLocker,
	history *HistoryLog,
	cfg config.AssistantConfig,
	logger *slog.Logger,
) *Orchestrator {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	runTimeout := cfg.RunTimeout
	if runTimeout <= 0 {
		runTimeout = 2 * time.Minute
	}
	return &Orchestrator{
		assistant:    assistant,
		threads:      threads,
		dispatcher:   dispatcher,
		locker:       locker,
		history:      history,
		logger:       logger,
		pollInterval: pollInterval,
		runTimeout:   runTimeout,
	}
}

// HandleMessage processes one inbound message end to end and returns the
// reply to send. The whole sequence runs under the conversation lock so
// concurrent messages from one conversation never interleave runs on the
// same remote thread.
func (o *Orchestrator) HandleMessage(ctx context.Context, msg domain.InboundMessage) (*domain.OutboundMessage, error) {
	ctx, span := tracer.StartSpan(ctx, "orchestrator.handle_message")
	defer span.End()
	span.SetAttributes(
		tracer.StringAttr("conversation.id", msg.ConversationID),
		tracer.StringAttr("channel", msg.ChannelName),
	)

	unlock, err := o.locker.Lock(ctx, msg.ConversationID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx = domain.ContextWithConversationID(ctx, msg.ConversationID)

	o.history.Record(ctx, msg.ConversationID, domain.RoleUser, msg.Content, msg.SenderName)

	threadID, err := o.threads.GetOrCreate(ctx, msg.ConversationID)
	if err != nil {
		return nil, err
	}

	if err := o.assistant.AppendUserMessage(ctx, threadID, msg.Content); err != nil {
		return nil, err
	}

	run, err := o.assistant.CreateRun(ctx, threadID)
	if err != nil {
		return nil, err
	}
	o.logger.Debug("run created",
		"conversation_id", msg.ConversationID, "thread_id", threadID, "run_id", run.ID)

	reply, err := o.driveRun(ctx, threadID, run, msg.SenderID)
	if err != nil {
		return nil, err
	}

	o.history.Record(ctx, msg.ConversationID, domain.RoleAssistant, reply.Content, "")
	reply.ConversationID = msg.ConversationID
	reply.ReplyToID = msg.ReplyToID
	reply.Metadata = msg.Metadata
	return reply, nil
}

// driveRun polls the run to completion, servicing requires_action batches
// along the way. Terminal failures and timeouts become apologetic replies
// rather than errors: the user always gets an answer.
func (o *Orchestrator) driveRun(ctx context.Context, threadID string, run *domain.Run, userID string) (*domain.OutboundMessage, error) {
	deadline := time.Now().Add(o.runTimeout)

	for {
		switch {
		case run.Status == domain.RunStatusCompleted:
			text, err := o.assistant.LatestAssistantMessage(ctx, threadID)
			if err != nil {
				return nil, err
			}
			return &domain.OutboundMessage{Content: text}, nil

		case run.Status == domain.RunStatusRequiresAction:
			outputs := o.dispatchAll(ctx, run.ToolCalls, userID)
			if err := o.assistant.SubmitToolOutputs(ctx, threadID, run.ID, outputs); err != nil {
				return nil, err
			}

		case run.Status.Terminal():
			o.logger.Warn("run ended in terminal state",
				"thread_id", threadID, "run_id", run.ID,
				"status", run.Status, "last_error", run.LastError)
			return &domain.OutboundMessage{
				Content: fmt.Sprintf(msgRunFailed, run.Status),
				IsError: true,
			}, nil
		}

		if time.Now().After(deadline) {
			return o.abandonRun(ctx, threadID, run.ID)
		}

		select {
		case <-ctx.Done():
			// Best-effort cancel with a detached context; ours is dead.
			o.cancelRun(context.WithoutCancel(ctx), threadID, run.ID)
			return nil, ctx.Err()
		case <-time.After(o.pollInterval):
		}

		var err error
		run, err = o.assistant.RetrieveRun(ctx, threadID, run.ID)
		if err != nil {
			return nil, err
		}
	}
}

// dispatchAll executes a requires_action batch. Calls run in parallel and
// every call gets exactly one output at its original index, which the
// submit endpoint requires.
func (o *Orchestrator) dispatchAll(ctx context.Context, calls []domain.ToolCall, userID string) []domain.ToolOutput {
	outputs := make([]domain.ToolOutput, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call domain.ToolCall) {
			defer wg.Done()
			outputs[i] = o.dispatcher.Dispatch(ctx, call, userID)
		}(i, call)
	}
	wg.Wait()

	return outputs
}

func (o *Orchestrator) abandonRun(ctx context.Context, threadID, runID string) (*domain.OutboundMessage, error) {
	o.logger.Warn("run exceeded timeout, cancelling", "thread_id", threadID, "run_id", runID)
	o.cancelRun(ctx, threadID, runID)
	return &domain.OutboundMessage{Content: msgRunTimeout, IsError: true}, nil
}

func (o *Orchestrator) cancelRun(ctx context.Context, threadID, runID string) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := o.assistant.CancelRun(ctx, threadID, runID); err != nil &&
		!errors.Is(err, context.Canceled) {
		o.logger.Warn("failed to cancel run", "run_id", runID, "error", err)
	}
}
