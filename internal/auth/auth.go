// Package auth authenticates operators through an OpenID Connect provider
// and issues the signed session tokens that guard the API.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc"
	"golang.org/x/oauth2"

	"mail-agent/backend/internal/config"
	"mail-agent/backend/pkg/models"
)

// SessionCookie holds the session token for browser clients.
const SessionCookie = "session"

const stateCookie = "oauthstate"

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type identityKey struct{}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the caller identity placed by RequireAuth.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}

// devIdentity is the operator used when the DEV bypass is on.
var devIdentity = Identity{Subject: "dev", Email: "dev@localhost", Name: "Admin User"}

// Auth contains configuration and helpers for performing OpenID Connect
// authentication and session management.
type Auth struct {
	oauth2Config *oauth2.Config
	verifier     *oidc.IDTokenVerifier
	sessions     *SessionManager
	logger       Logger
	devMode      bool
	authBypass   bool
	cookieSecure bool
}

// New creates a new Auth object using values from the application
// configuration. Outside the DEV bypass it discovers the provider and
// prepares an ID token verifier; incomplete settings are a
// ConfigurationError.
func New(ctx context.Context, cfg *config.Config, logger Logger) (*Auth, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	isDev := cfg.IsDev()
	shouldBypass := isDev && cfg.Auth.DevBypass

	sessions, err := NewSessionManager([]byte(cfg.Auth.SessionSecret), cfg.Auth.SessionTTL)
	if err != nil {
		return nil, err
	}

	a := &Auth{
		sessions:     sessions,
		logger:       logger,
		devMode:      isDev,
		authBypass:   shouldBypass,
		cookieSecure: cfg.Auth.CookieSecure,
	}
	if shouldBypass {
		logger.Info("authentication bypass enabled (DEV)")
		return a, nil
	}

	var missing []string
	for _, kv := range [][2]string{
		{"auth.issuer", cfg.Auth.Issuer},
		{"auth.client_id", cfg.Auth.ClientID},
		{"auth.client_secret", cfg.Auth.ClientSecret},
		{"auth.redirect_url", cfg.Auth.RedirectURL},
		{"auth.session_secret", cfg.Auth.SessionSecret},
	} {
		if kv[1] == "" {
			missing = append(missing, kv[0])
		}
	}
	if len(missing) > 0 {
		return nil, models.NotConfigured("auth", "incomplete configuration: "+strings.Join(missing, ", "))
	}

	provider, err := oidc.NewProvider(ctx, cfg.Auth.Issuer)
	if err != nil {
		return nil, &models.UpstreamCallError{Service: "oidc", Detail: "provider discovery", Err: err}
	}

	a.oauth2Config = &oauth2.Config{
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  cfg.Auth.RedirectURL,
		Scopes:       withOpenID(cfg.Auth.Scopes),
	}
	a.verifier = provider.Verifier(&oidc.Config{ClientID: cfg.Auth.ClientID})
	return a, nil
}

// Sessions exposes the session manager.
func (a *Auth) Sessions() *SessionManager { return a.sessions }

// Bypass reports whether the DEV bypass is active.
func (a *Auth) Bypass() bool { return a.authBypass }

// LoginHandler initiates the OAuth2 authorization code flow. A random state
// value is stored in a cookie to mitigate CSRF attacks. With ?format=json
// the authorization URL is returned instead of a redirect.
func (a *Auth) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if a.authBypass {
		a.startSession(w, r, devIdentity)
		return
	}

	state, err := generateState()
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "failed to generate state")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		HttpOnly: true,
		Path:     "/",
		MaxAge:   600,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	authURL := a.oauth2Config.AuthCodeURL(state)
	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "auth_url": authURL})
		return
	}
	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// CallbackHandler handles the redirect back from the provider. It verifies
// the state parameter, exchanges the code for tokens, validates the ID
// token and issues a session.
func (a *Auth) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	if a.authBypass {
		a.startSession(w, r, devIdentity)
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil || r.URL.Query().Get("state") != cookie.Value {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "invalid state")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	code := r.URL.Query().Get("code")
	if code == "" {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "missing code")
		return
	}

	token, err := a.oauth2Config.Exchange(r.Context(), code)
	if err != nil {
		a.logger.Error("token exchange failed", "error", err)
		writeProblem(w, http.StatusBadGateway, "Bad Gateway", "token exchange failed")
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		writeProblem(w, http.StatusBadGateway, "Bad Gateway", "no id_token in token response")
		return
	}

	idToken, err := a.verifier.Verify(r.Context(), rawIDToken)
	if err != nil {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "failed to verify id token")
		return
	}

	id, err := identityFromToken(idToken)
	if err != nil {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
		return
	}
	a.startSession(w, r, *id)
}

func identityFromToken(token *oidc.IDToken) (*Identity, error) {
	var claims struct {
		Email             string `json:"email"`
		Name              string `json:"name"`
		PreferredUsername string `json:"preferred_username"`
	}
	if err := token.Claims(&claims); err != nil {
		return nil, errors.New("failed to parse token claims")
	}
	email := claims.Email
	if email == "" && strings.Contains(claims.PreferredUsername, "@") {
		email = claims.PreferredUsername
	}
	return &Identity{Subject: token.Subject, Email: email, Name: claims.Name}, nil
}

// startSession issues a session, sets the cookie and returns the token.
func (a *Auth) startSession(w http.ResponseWriter, r *http.Request, id Identity) {
	token, expires, err := a.sessions.Issue(id)
	if err != nil {
		a.logger.Error("failed to issue session", "error", err)
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "failed to issue session")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		Expires:  expires,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	a.logger.Info("session started", "email", id.Email)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"authenticated": true,
		"token":         token,
		"expires_at":    expires.UTC().Format(time.RFC3339),
		"user":          id,
	})
}

// sessionToken returns the bearer token or the session cookie value.
func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// Identify returns the caller's identity if the request carries a valid
// session.
func (a *Auth) Identify(r *http.Request) (*Identity, bool) {
	if a.authBypass {
		id := devIdentity
		return &id, true
	}
	raw := sessionToken(r)
	if raw == "" {
		return nil, false
	}
	id, err := a.sessions.Verify(raw)
	if err != nil {
		return nil, false
	}
	return id, true
}

// RequireAuth is middleware that rejects requests without a valid session
// with 401 and otherwise places the caller identity in the context.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := a.Identify(r)
		if !ok {
			writeProblem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// LogoutHandler revokes the caller's session and clears the cookie.
func (a *Auth) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if raw := sessionToken(r); raw != "" {
		if err := a.sessions.Revoke(raw); err != nil {
			a.logger.Debug("logout with invalid session", "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:   SessionCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Logged out successfully"})
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeProblem writes an RFC 7807 Problem Details response.
func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "about:blank",
		"title":  title,
		"status": status,
		"detail": detail,
	})
}
