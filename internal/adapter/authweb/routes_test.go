package authweb

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Makarios44/xuxu-AIBOT/internal/domain"
	"github.com/Makarios44/xuxu-AIBOT/internal/infra/config"
)

// memCreds is an in-memory CredentialStore for handler tests.
type memCreds struct {
	m map[string]*domain.Credential
}

func newMemCreds() *memCreds { return &memCreds{m: make(map[string]*domain.Credential)} }

func key(userID string, p domain.Provider) string { return userID + "/" + string(p) }

func (s *memCreds) Get(ctx context.Context, userID string, p domain.Provider) (*domain.Credential, error) {
	c, ok := s.m[key(userID, p)]
	if !ok {
		return nil, domain.NewDomainError("memCreds.Get", domain.ErrCredentialNotFound, key(userID, p))
	}
	return c, nil
}

func (s *memCreds) Upsert(ctx context.Context, c *domain.Credential) error {
	s.m[key(c.UserID, c.Provider)] = c
	return nil
}

func (s *memCreds) Update(ctx context.Context, c *domain.Credential) error {
	return s.Upsert(ctx, c)
}

func (s *memCreds) Delete(ctx context.Context, userID string, p domain.Provider) error {
	delete(s.m, key(userID, p))
	return nil
}

func (s *memCreds) ListByUser(ctx context.Context, userID string) ([]domain.Credential, error) {
	var out []domain.Credential
	for _, c := range s.m {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *memCreds) ListExpiring(ctx context.Context, cutoff time.Time) ([]domain.Credential, error) {
	var out []domain.Credential
	for _, c := range s.m {
		if c.ExpiresAt.Before(cutoff) {
			out = append(out, *c)
		}
	}
	return out, nil
}

// fakeExchanger returns a fixed grant.
type fakeExchanger struct {
	grant *domain.TokenGrant
	err   error
}

func (f *fakeExchanger) Exchange(ctx context.Context, p domain.Provider, code string) (*domain.TokenGrant, error) {
	return f.grant, f.err
}

func newTestHandler(creds domain.CredentialStore, ex CodeExchanger) *http.ServeMux {
	cfg := config.OAuthConfig{
		Google: config.OAuthProviderConfig{
			ClientID: "g-id", ClientSecret: "g-secret",
			RedirectURI: "https://bot.example.com/auth/callback",
		},
		Microsoft: config.OAuthProviderConfig{
			ClientID: "m-id", ClientSecret: "m-secret",
			RedirectURI: "https://bot.example.com/auth/callback",
		},
	}
	h := NewHandler(cfg, ex, creds, slog.Default())
	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}

func TestLoginGoogleBuildsAuthURL(t *testing.T) {
	mux := newTestHandler(newMemCreds(), &fakeExchanger{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/google?user_id=ana", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)

	u, err := url.Parse(body["auth_url"])
	if err != nil {
		t.Fatalf("bad auth_url: %v", err)
	}
	q := u.Query()
	if q.Get("client_id") != "g-id" || q.Get("access_type") != "offline" || q.Get("prompt") != "consent" {
		t.Errorf("query = %v", q)
	}
	if q.Get("state") != "google:ana" {
		t.Errorf("state = %q", q.Get("state"))
	}
	if !strings.Contains(q.Get("scope"), "auth/calendar") {
		t.Errorf("scope = %q", q.Get("scope"))
	}
}

func TestLoginMicrosoftRequiresConfig(t *testing.T) {
	h := NewHandler(config.OAuthConfig{}, &fakeExchanger{}, newMemCreds(), slog.Default())
	mux := http.NewServeMux()
	h.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/microsoft", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestCallbackStoresCredential(t *testing.T) {
	creds := newMemCreds()
	mux := newTestHandler(creds, &fakeExchanger{grant: &domain.TokenGrant{
		AccessToken: "acc", RefreshToken: "ref", ExpiresIn: 3600,
	}})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/auth/callback?code=abc&state=microsoft:ana", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	stored, err := creds.Get(context.Background(), "ana", domain.ProviderMicrosoft)
	if err != nil {
		t.Fatalf("credential not stored: %v", err)
	}
	if stored.AccessToken != "acc" || stored.RefreshToken != "ref" {
		t.Errorf("stored = %+v", stored)
	}
	if stored.ExpiresAt.IsZero() {
		t.Error("ExpiresAt not set")
	}
}

func TestCallbackLegacyStateDefaultsUser(t *testing.T) {
	creds := newMemCreds()
	mux := newTestHandler(creds, &fakeExchanger{grant: &domain.TokenGrant{AccessToken: "acc"}})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/auth/callback?code=abc&state=google", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if _, err := creds.Get(context.Background(), defaultUserID, domain.ProviderGoogle); err != nil {
		t.Errorf("credential not stored under default user: %v", err)
	}
}

func TestCallbackRejectsUnknownProvider(t *testing.T) {
	mux := newTestHandler(newMemCreds(), &fakeExchanger{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/auth/callback?code=abc&state=yahoo", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestStatusReportsProviders(t *testing.T) {
	creds := newMemCreds()
	creds.Upsert(context.Background(), &domain.Credential{
		UserID: "ana", Provider: domain.ProviderGoogle,
		ExpiresAt: time.Now().Add(-time.Hour),
	})
	mux := newTestHandler(creds, &fakeExchanger{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/status?user_id=ana", nil))

	var body struct {
		UserID     string `json:"user_id"`
		AuthStatus map[string]struct {
			Authenticated bool `json:"authenticated"`
			Expired       bool `json:"expired"`
		} `json:"auth_status"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)

	st, ok := body.AuthStatus["google"]
	if !ok || !st.Authenticated || !st.Expired {
		t.Errorf("body = %+v", body)
	}
}

func TestLogout(t *testing.T) {
	creds := newMemCreds()
	creds.Upsert(context.Background(), &domain.Credential{
		UserID: "ana", Provider: domain.ProviderGoogle, ExpiresAt: time.Now().Add(time.Hour),
	})
	mux := newTestHandler(creds, &fakeExchanger{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete,
		"/auth/logout?provider=google&user_id=ana", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete,
		"/auth/logout?provider=google&user_id=ana", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second logout status = %d", rec.Code)
	}
}
