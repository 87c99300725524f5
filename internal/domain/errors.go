package domain

import "fmt"

// Sentinel errors for the domain layer.
var (
	ErrCredentialNotFound = fmt.Errorf("credential not found")
	ErrTokenRefreshFailed = fmt.Errorf("token refresh failed")
	ErrThreadNotFound     = fmt.Errorf("conversation thread not found")
	ErrToolNotFound       = fmt.Errorf("tool not found")
	ErrRunTerminal        = fmt.Errorf("run ended in a terminal failure state")
	ErrRunTimeout         = fmt.Errorf("run polling exceeded the configured timeout")
	ErrInvalidProvider    = fmt.Errorf("unknown calendar provider")
	ErrConfigLoad         = fmt.Errorf("failed to load configuration")
	ErrStore              = fmt.Errorf("record store operation failed")

	// Upstream transport errors.
	ErrRateLimit   = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid = fmt.Errorf("authentication failed")
	ErrUpstream    = fmt.Errorf("upstream API error")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "CredentialService.GetValidToken")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
