package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Makarios44/xuxu-AIBOT/internal/domain"
)

// expirySkew is the safety margin applied when deciding whether a stored
// access token is still usable. A token within the skew of its deadline is
// refreshed eagerly so it never expires mid-request.
const expirySkew = 30 * time.Second

// CredentialService implements domain.TokenSource on top of the credential
// store and the provider token endpoints. It refreshes transparently and
// persists the result, so callers always see a usable access token or a
// definite failure.
type CredentialService struct {
	creds     domain.CredentialStore
	refresher domain.TokenRefresher
	logger    *slog.Logger
	now       func() time.Time
}

// NewCredentialService creates a credential service.
func NewCredentialService(creds domain.CredentialStore, refresher domain.TokenRefresher, logger *slog.Logger) *CredentialService {
	return &CredentialService{
		creds:     creds,
		refresher: refresher,
		logger:    logger,
		now:       time.Now,
	}
}

// GetValidToken returns a valid access token for the (user, provider) pair,
// refreshing and persisting first when the stored token is near expiry.
// ErrCredentialNotFound passes through untouched so tools can turn it into
// an authorization prompt.
func (s *CredentialService) GetValidToken(ctx context.Context, userID string, provider domain.Provider) (string, error) {
	cred, err := s.creds.Get(ctx, userID, provider)
	if err != nil {
		return "", err
	}

	now := s.now()
	if cred.Fresh(now, expirySkew) {
		return cred.AccessToken, nil
	}

	grant, err := s.refresher.Refresh(ctx, provider, cred.RefreshToken)
	if err != nil {
		s.logger.Warn("token refresh failed",
			"user_id", userID, "provider", provider, "error", err)
		return "", err
	}

	cred.AccessToken = grant.AccessToken
	// Providers may omit the refresh token when it has not rotated.
	if grant.RefreshToken != "" {
		cred.RefreshToken = grant.RefreshToken
	}
	cred.ExpiresAt = grant.ExpiresAt(now)
	cred.UpdatedAt = now

	if err := s.creds.Update(ctx, cred); err != nil {
		// The token itself is good; a persistence failure only costs us a
		// re-refresh on the next call.
		s.logger.Error("failed to persist refreshed token",
			"user_id", userID, "provider", provider, "error", err)
	}

	s.logger.Info("token refreshed",
		"user_id", userID, "provider", provider, "expires_at", cred.ExpiresAt)
	return cred.AccessToken, nil
}

// RefreshCredential refreshes one stored credential in place regardless of
// freshness. Used by the background sweep.
func (s *CredentialService) RefreshCredential(ctx context.Context, cred *domain.Credential) error {
	grant, err := s.refresher.Refresh(ctx, cred.Provider, cred.RefreshToken)
	if err != nil {
		return err
	}

	now := s.now()
	cred.AccessToken = grant.AccessToken
	if grant.RefreshToken != "" {
		cred.RefreshToken = grant.RefreshToken
	}
	cred.ExpiresAt = grant.ExpiresAt(now)
	cred.UpdatedAt = now

	if err := s.creds.Update(ctx, cred); err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			// Row deleted between list and update (logout raced the sweep).
			return nil
		}
		return err
	}
	return nil
}

var _ domain.TokenSource = (*CredentialService)(nil)
