package authweb

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Makarios44/xuxu-AIBOT/internal/domain"
	"github.com/Makarios44/xuxu-AIBOT/internal/infra/config"
)

// Provider authorization endpoints and default scopes. The token endpoints
// live in the oauth adapter; these are the browser-facing halves.
const (
	googleAuthURL    = "https://accounts.google.com/o/oauth2/v2/auth"
	microsoftAuthURL = "https://login.microsoftonline.com/common/oauth2/v2.0/authorize"

	googleCalendarScope    = "https://www.googleapis.com/auth/calendar"
	microsoftCalendarScope = "offline_access Calendars.ReadWrite"

	// defaultUserID stands in when the login link carries no user identity,
	// matching the original single-tenant deployment.
	defaultUserID = "user-demo"
)

// CodeExchanger trades an authorization code for a token pair.
type CodeExchanger interface {
	Exchange(ctx context.Context, provider domain.Provider, code string) (*domain.TokenGrant, error)
}

// Handler serves the OAuth authorization-code web flow that provisions
// credential rows: login redirect URLs, the shared callback, status and
// logout.
type Handler struct {
	cfg       config.OAuthConfig
	exchanger CodeExchanger
	creds     domain.CredentialStore
	logger    *slog.Logger
	now       func() time.Time
}

// NewHandler creates the auth route handler.
func NewHandler(cfg config.OAuthConfig, exchanger CodeExchanger, creds domain.CredentialStore, logger *slog.Logger) *Handler {
	return &Handler{
		cfg:       cfg,
		exchanger: exchanger,
		creds:     creds,
		logger:    logger,
		now:       time.Now,
	}
}

// Register mounts the auth routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /auth/google", h.loginGoogle)
	mux.HandleFunc("GET /auth/microsoft", h.loginMicrosoft)
	mux.HandleFunc("GET /auth/callback", h.callback)
	mux.HandleFunc("GET /auth/status", h.status)
	mux.HandleFunc("DELETE /auth/logout", h.logout)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// stateFor packs provider and user identity into the OAuth state parameter.
func stateFor(provider domain.Provider, userID string) string {
	return string(provider) + ":" + userID
}

// parseState splits the state parameter back into provider and user. Bare
// provider names (the original format) map to the default user.
func parseState(state string) (domain.Provider, string, error) {
	name, userID, found := strings.Cut(state, ":")
	if !found || userID == "" {
		userID = defaultUserID
	}
	provider, err := domain.ParseProvider(name)
	return provider, userID, err
}

func userIDParam(r *http.Request) string {
	if id := r.URL.Query().Get("user_id"); id != "" {
		return id
	}
	return defaultUserID
}

func (h *Handler) loginGoogle(w http.ResponseWriter, r *http.Request) {
	if !h.cfg.Google.Configured() {
		writeError(w, http.StatusInternalServerError, "Google OAuth não configurado")
		return
	}
	scope := h.cfg.Google.Scope
	if scope == "" {
		scope = googleCalendarScope
	}

	q := url.Values{
		"client_id":     {h.cfg.Google.ClientID},
		"redirect_uri":  {h.cfg.Google.RedirectURI},
		"response_type": {"code"},
		"scope":         {scope},
		"access_type":   {"offline"},
		"prompt":        {"consent"},
		"state":         {stateFor(domain.ProviderGoogle, userIDParam(r))},
	}
	writeJSON(w, http.StatusOK, map[string]string{"auth_url": googleAuthURL + "?" + q.Encode()})
}

func (h *Handler) loginMicrosoft(w http.ResponseWriter, r *http.Request) {
	if !h.cfg.Microsoft.Configured() {
		writeError(w, http.StatusInternalServerError, "Microsoft OAuth não configurado")
		return
	}
	scope := h.cfg.Microsoft.Scope
	if scope == "" {
		scope = microsoftCalendarScope
	}

	q := url.Values{
		"client_id":     {h.cfg.Microsoft.ClientID},
		"redirect_uri":  {h.cfg.Microsoft.RedirectURI},
		"response_type": {"code"},
		"response_mode": {"query"},
		"scope":         {scope},
		"state":         {stateFor(domain.ProviderMicrosoft, userIDParam(r))},
	}
	writeJSON(w, http.StatusOK, map[string]string{"auth_url": microsoftAuthURL + "?" + q.Encode()})
}

func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		writeError(w, http.StatusBadRequest, "code e state são obrigatórios")
		return
	}

	provider, userID, err := parseState(state)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Provider inválido")
		return
	}

	grant, err := h.exchanger.Exchange(r.Context(), provider, code)
	if err != nil {
		h.logger.Error("authorization code exchange failed",
			"provider", provider, "error", err)
		writeError(w, http.StatusBadRequest, "Erro na autenticação")
		return
	}

	now := h.now()
	cred := &domain.Credential{
		UserID:       userID,
		Provider:     provider,
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		ExpiresAt:    grant.ExpiresAt(now),
	}
	if err := h.creds.Upsert(r.Context(), cred); err != nil {
		h.logger.Error("credential persist failed", "provider", provider, "error", err)
		writeError(w, http.StatusInternalServerError, "Erro interno no servidor")
		return
	}

	h.logger.Info("credential stored", "provider", provider, "user", userID)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "success",
		"provider": string(provider),
		"user_id":  userID,
		"message":  "Autenticação realizada com sucesso! Volte ao Teams.",
	})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	userID := userIDParam(r)

	creds, err := h.creds.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("auth status lookup failed", "user", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Erro interno no servidor")
		return
	}

	now := h.now()
	status := make(map[string]any, len(creds))
	for _, c := range creds {
		status[string(c.Provider)] = map[string]any{
			"authenticated": true,
			"expires_at":    c.ExpiresAt.Unix(),
			"expired":       now.After(c.ExpiresAt),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "auth_status": status})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	userID := userIDParam(r)
	provider, err := domain.ParseProvider(r.URL.Query().Get("provider"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Provider inválido")
		return
	}

	if _, err := h.creds.Get(r.Context(), userID, provider); err != nil {
		writeError(w, http.StatusNotFound, "Token não encontrado")
		return
	}
	if err := h.creds.Delete(r.Context(), userID, provider); err != nil {
		h.logger.Error("logout failed", "provider", provider, "error", err)
		writeError(w, http.StatusInternalServerError, "Erro interno no servidor")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Logout realizado para " + string(provider),
	})
}
