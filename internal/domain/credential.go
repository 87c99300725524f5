package domain

import (
	"context"
	"fmt"
	"time"
)

// Provider identifies one of the integrated calendar services.
type Provider string

const (
	ProviderGoogle    Provider = "google"
	ProviderMicrosoft Provider = "microsoft"
)

// ParseProvider validates a provider string from config or a web request.
func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case ProviderGoogle, ProviderMicrosoft:
		return Provider(s), nil
	}
	return "", NewDomainError("ParseProvider", ErrInvalidProvider, s)
}

// Credential is the stored OAuth token pair for one (user, provider) pair.
// There is at most one row per (UserID, Provider); refreshes update the row
// in place and ExpiresAt strictly increases on every successful refresh.
type Credential struct {
	ID           int64
	UserID       string
	Provider     Provider
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Fresh reports whether the access token is still usable at now,
// applying skew as a safety margin so a token never expires mid-flight.
func (c *Credential) Fresh(now time.Time, skew time.Duration) bool {
	return c.ExpiresAt.After(now.Add(skew))
}

// CredentialStore persists credentials. Updates are last-writer-wins by
// (UserID, Provider); concurrent refreshes may race harmlessly.
type CredentialStore interface {
	Get(ctx context.Context, userID string, provider Provider) (*Credential, error)
	Upsert(ctx context.Context, cred *Credential) error
	Update(ctx context.Context, cred *Credential) error
	Delete(ctx context.Context, userID string, provider Provider) error
	ListByUser(ctx context.Context, userID string) ([]Credential, error)
	// ListExpiring returns credentials whose ExpiresAt is before the cutoff.
	ListExpiring(ctx context.Context, cutoff time.Time) ([]Credential, error)
}

// TokenGrant is the result of a refresh-token exchange.
// RefreshToken is empty when the provider did not rotate it.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int // seconds
}

// ExpiresAt converts ExpiresIn to an absolute deadline.
func (g TokenGrant) ExpiresAt(now time.Time) time.Time {
	secs := g.ExpiresIn
	if secs <= 0 {
		secs = 3600
	}
	return now.Add(time.Duration(secs) * time.Second)
}

// TokenRefresher exchanges a refresh token for a new access token at the
// provider's token endpoint. Implementations do not retry; the caller decides.
type TokenRefresher interface {
	Refresh(ctx context.Context, provider Provider, refreshToken string) (*TokenGrant, error)
}

// TokenSource supplies a valid access token for a (user, provider) pair,
// refreshing transparently when the stored token is near expiry.
type TokenSource interface {
	GetValidToken(ctx context.Context, userID string, provider Provider) (string, error)
}

// AuthRequiredMessage is the user-facing instruction returned by tools when
// no credential exists for the provider they need.
func AuthRequiredMessage(provider Provider) string {
	switch provider {
	case ProviderGoogle:
		return "Você ainda não conectou seu Google Calendar. Acesse /auth/google para autorizar."
	case ProviderMicrosoft:
		return "Você ainda não conectou seu calendário Microsoft. Acesse /auth/microsoft para autorizar."
	}
	return fmt.Sprintf("Você ainda não autorizou o provedor %q.", provider)
}
