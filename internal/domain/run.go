package domain

import "context"

// RunStatus is the remote assistant service's view of one run.
type RunStatus string

const (
	RunStatusQueued          RunStatus = "queued"
	RunStatusInProgress      RunStatus = "in_progress"
	RunStatusRequiresAction  RunStatus = "requires_action"
	RunStatusCancelling      RunStatus = "cancelling"
	RunStatusCompleted       RunStatus = "completed"
	RunStatusFailed          RunStatus = "failed"
	RunStatusCancelled       RunStatus = "cancelled"
	RunStatusExpired         RunStatus = "expired"
	RunStatusIncomplete      RunStatus = "incomplete"
)

// Terminal reports whether the run has reached a final state.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled,
		RunStatusExpired, RunStatusIncomplete:
		return true
	}
	return false
}

// Run is one assistant invocation cycle against a thread. ToolCalls is
// populated only when Status is requires_action.
type Run struct {
	ID        string
	ThreadID  string
	Status    RunStatus
	ToolCalls []ToolCall
	// LastError carries the remote failure description for failed runs.
	LastError string
}

// ToolOutput answers one ToolCall. Every ToolCall in a requires_action batch
// must receive exactly one ToolOutput before the batch is submitted.
type ToolOutput struct {
	ToolCallID string `json:"tool_call_id"`
	Output     string `json:"output"`
}

// AssistantClient is the remote assistant service transport: threads,
// messages, runs and tool-output submission.
type AssistantClient interface {
	CreateThread(ctx context.Context) (string, error)
	AppendUserMessage(ctx context.Context, threadID, text string) error
	CreateRun(ctx context.Context, threadID string) (*Run, error)
	RetrieveRun(ctx context.Context, threadID, runID string) (*Run, error)
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) error
	CancelRun(ctx context.Context, threadID, runID string) error
	// LatestAssistantMessage returns the text of the newest assistant-authored
	// message in the thread.
	LatestAssistantMessage(ctx context.Context, threadID string) (string, error)
}
