package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Makarios44/xuxu-AIBOT/internal/domain"
	"github.com/Makarios44/xuxu-AIBOT/internal/infra/config"
	"github.com/Makarios44/xuxu-AIBOT/internal/infra/tracer"
)

// Provider token endpoints.
const (
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	microsoftTokenURL = "https://login.microsoftonline.com/common/oauth2/v2.0/token"

	microsoftDefaultScope = "https://graph.microsoft.com/.default"
)

const maxTokenResponse = 1 << 20 // 1 MB

// Refresher exchanges refresh tokens at the Google and Microsoft token
// endpoints. It does not retry; callers decide what a failure means.
type Refresher struct {
	cfg       config.OAuthConfig
	client    *http.Client
	logger    *slog.Logger
	endpoints map[domain.Provider]string
}

// NewRefresher creates a token refresher from OAuth client config.
func NewRefresher(cfg config.OAuthConfig, logger *slog.Logger) *Refresher {
	return &Refresher{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger,
		endpoints: map[domain.Provider]string{
			domain.ProviderGoogle:    googleTokenURL,
			domain.ProviderMicrosoft: microsoftTokenURL,
		},
	}
}

// tokenResponse is the OAuth2 token endpoint response shape shared by
// both providers.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int    `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Refresh exchanges refreshToken for a new access token.
// The returned grant's RefreshToken is empty when the provider did not
// rotate it; callers keep the old one in that case.
func (r *Refresher) Refresh(ctx context.Context, provider domain.Provider, refreshToken string) (*domain.TokenGrant, error) {
	ctx, span := tracer.StartSpan(ctx, "oauth.refresh")
	defer span.End()
	span.SetAttributes(tracer.StringAttr("oauth.provider", string(provider)))

	endpoint, ok := r.endpoints[provider]
	if !ok {
		return nil, domain.NewDomainError("oauth.Refresh", domain.ErrInvalidProvider, string(provider))
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	switch provider {
	case domain.ProviderGoogle:
		form.Set("client_id", r.cfg.Google.ClientID)
		form.Set("client_secret", r.cfg.Google.ClientSecret)
	case domain.ProviderMicrosoft:
		form.Set("client_id", r.cfg.Microsoft.ClientID)
		form.Set("client_secret", r.cfg.Microsoft.ClientSecret)
		scope := r.cfg.Microsoft.Scope
		if scope == "" {
			scope = microsoftDefaultScope
		}
		form.Set("scope", scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, domain.WrapOp("oauth.Refresh", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.client.Do(req)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, domain.NewDomainError("oauth.Refresh", domain.ErrTokenRefreshFailed, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponse))
	if err != nil {
		return nil, domain.WrapOp("oauth.Refresh", err)
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, domain.NewDomainError("oauth.Refresh", domain.ErrTokenRefreshFailed,
			fmt.Sprintf("parse response (status %d): %v", resp.StatusCode, err))
	}

	if resp.StatusCode != http.StatusOK || token.AccessToken == "" {
		detail := fmt.Sprintf("status %d", resp.StatusCode)
		if token.Error != "" {
			detail = fmt.Sprintf("%s: %s: %s", detail, token.Error, token.ErrorDescription)
		}
		r.logger.Warn("token refresh rejected",
			"provider", provider, "status", resp.StatusCode, "error", token.Error)
		tracer.RecordError(span, domain.ErrTokenRefreshFailed)
		return nil, domain.NewDomainError("oauth.Refresh", domain.ErrTokenRefreshFailed, detail)
	}

	tracer.SetOK(span)
	return &domain.TokenGrant{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresIn:    token.ExpiresIn,
	}, nil
}

// Exchange trades an authorization code for an initial token pair. Used by
// the auth web flow after the provider redirects back with a code.
func (r *Refresher) Exchange(ctx context.Context, provider domain.Provider, code string) (*domain.TokenGrant, error) {
	endpoint, ok := r.endpoints[provider]
	if !ok {
		return nil, domain.NewDomainError("oauth.Exchange", domain.ErrInvalidProvider, string(provider))
	}

	var pc config.OAuthProviderConfig
	switch provider {
	case domain.ProviderGoogle:
		pc = r.cfg.Google
	case domain.ProviderMicrosoft:
		pc = r.cfg.Microsoft
	}

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {pc.ClientID},
		"client_secret": {pc.ClientSecret},
		"redirect_uri":  {pc.RedirectURI},
	}
	if provider == domain.ProviderMicrosoft {
		scope := pc.Scope
		if scope == "" {
			scope = microsoftDefaultScope
		}
		form.Set("scope", scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, domain.WrapOp("oauth.Exchange", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, domain.NewDomainError("oauth.Exchange", domain.ErrTokenRefreshFailed, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponse))
	if err != nil {
		return nil, domain.WrapOp("oauth.Exchange", err)
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, domain.NewDomainError("oauth.Exchange", domain.ErrTokenRefreshFailed,
			fmt.Sprintf("parse response (status %d): %v", resp.StatusCode, err))
	}
	if resp.StatusCode != http.StatusOK || token.AccessToken == "" {
		detail := fmt.Sprintf("status %d", resp.StatusCode)
		if token.Error != "" {
			detail = fmt.Sprintf("%s: %s: %s", detail, token.Error, token.ErrorDescription)
		}
		return nil, domain.NewDomainError("oauth.Exchange", domain.ErrTokenRefreshFailed, detail)
	}

	return &domain.TokenGrant{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresIn:    token.ExpiresIn,
	}, nil
}

// SetEndpoint overrides a provider's token endpoint. Test hook.
func (r *Refresher) SetEndpoint(provider domain.Provider, endpoint string) {
	r.endpoints[provider] = endpoint
}

var _ domain.TokenRefresher = (*Refresher)(nil)
