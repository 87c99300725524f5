package oauth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Makarios44/xuxu-AIBOT/internal/domain"
	"github.com/Makarios44/xuxu-AIBOT/internal/infra/config"
)

func testConfig() config.OAuthConfig {
	return config.OAuthConfig{
		Google: config.OAuthProviderConfig{
			ClientID: "g-id", ClientSecret: "g-secret", RedirectURI: "http://localhost/auth/callback",
		},
		Microsoft: config.OAuthProviderConfig{
			ClientID: "m-id", ClientSecret: "m-secret", RedirectURI: "http://localhost/auth/callback",
		},
	}
}

func TestRefreshGoogle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.PostForm.Get("refresh_token"); got != "old-refresh" {
			t.Errorf("refresh_token = %q", got)
		}
		if got := r.PostForm.Get("client_id"); got != "g-id" {
			t.Errorf("client_id = %q", got)
		}
		w.Write([]byte(`{"access_token": "new-access", "expires_in": 3599}`))
	}))
	defer srv.Close()

	ref := NewRefresher(testConfig(), slog.Default())
	ref.SetEndpoint(domain.ProviderGoogle, srv.URL)

	grant, err := ref.Refresh(context.Background(), domain.ProviderGoogle, "old-refresh")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if grant.AccessToken != "new-access" || grant.ExpiresIn != 3599 {
		t.Errorf("grant = %+v", grant)
	}
	// Google does not rotate refresh tokens; the grant carries none.
	if grant.RefreshToken != "" {
		t.Errorf("RefreshToken = %q, want empty", grant.RefreshToken)
	}
}

func TestRefreshMicrosoftSendsScope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if got := r.PostForm.Get("scope"); got != "https://graph.microsoft.com/.default" {
			t.Errorf("scope = %q", got)
		}
		w.Write([]byte(`{"access_token": "ms-access", "refresh_token": "ms-rotated", "expires_in": 3600}`))
	}))
	defer srv.Close()

	ref := NewRefresher(testConfig(), slog.Default())
	ref.SetEndpoint(domain.ProviderMicrosoft, srv.URL)

	grant, err := ref.Refresh(context.Background(), domain.ProviderMicrosoft, "old")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if grant.RefreshToken != "ms-rotated" {
		t.Errorf("RefreshToken = %q, want ms-rotated", grant.RefreshToken)
	}
}

func TestRefreshRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "invalid_grant", "error_description": "token revoked"}`))
	}))
	defer srv.Close()

	ref := NewRefresher(testConfig(), slog.Default())
	ref.SetEndpoint(domain.ProviderGoogle, srv.URL)

	_, err := ref.Refresh(context.Background(), domain.ProviderGoogle, "revoked")
	if !errors.Is(err, domain.ErrTokenRefreshFailed) {
		t.Errorf("got error %v, want ErrTokenRefreshFailed", err)
	}
}

func TestRefreshMissingAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"expires_in": 3600}`))
	}))
	defer srv.Close()

	ref := NewRefresher(testConfig(), slog.Default())
	ref.SetEndpoint(domain.ProviderGoogle, srv.URL)

	_, err := ref.Refresh(context.Background(), domain.ProviderGoogle, "x")
	if !errors.Is(err, domain.ErrTokenRefreshFailed) {
		t.Errorf("got error %v, want ErrTokenRefreshFailed", err)
	}
}

func TestRefreshUnknownProvider(t *testing.T) {
	ref := NewRefresher(testConfig(), slog.Default())
	_, err := ref.Refresh(context.Background(), domain.Provider("yahoo"), "x")
	if !errors.Is(err, domain.ErrInvalidProvider) {
		t.Errorf("got error %v, want ErrInvalidProvider", err)
	}
}

func TestExchangeAuthorizationCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if got := r.PostForm.Get("grant_type"); got != "authorization_code" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.PostForm.Get("code"); got != "auth-code-1" {
			t.Errorf("code = %q", got)
		}
		if got := r.PostForm.Get("redirect_uri"); got != "http://localhost/auth/callback" {
			t.Errorf("redirect_uri = %q", got)
		}
		w.Write([]byte(`{"access_token": "a", "refresh_token": "r", "expires_in": 3600}`))
	}))
	defer srv.Close()

	ref := NewRefresher(testConfig(), slog.Default())
	ref.SetEndpoint(domain.ProviderGoogle, srv.URL)

	grant, err := ref.Exchange(context.Background(), domain.ProviderGoogle, "auth-code-1")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if grant.AccessToken != "a" || grant.RefreshToken != "r" {
		t.Errorf("grant = %+v", grant)
	}
}
