package server

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Boomlive-ai/analytics.boomlive.in/internal/models"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/session"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/shared"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/tokens"
)

// stateKey is the session key holding the pending OAuth state for a provider.
func stateKey(p models.Provider) string {
	return "oauth_state_" + string(p)
}

type callbackResponse struct {
	Message       string    `json:"message"`
	Authenticated bool      `json:"authenticated"`
	TokenType     string    `json:"token_type"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type providerStatus struct {
	Authenticated   bool       `json:"authenticated"`
	TokenType       string     `json:"token_type,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	HasRefreshToken *bool      `json:"has_refresh_token,omitempty"`
}

// authURL issues a fresh state for a's provider, remembers it in the session and returns the authorization URL.
func (s *Server) authURL(sess *session.Session, a tokens.Adapter) (string, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return "", fmt.Errorf("failed to generate oauth state: %w", err)
	}
	sess.SetString(stateKey(a.Provider()), state)
	return a.AuthURL(state), nil
}

// handleLogin returns the authorization URL of every enabled provider, keyed "<provider>_auth_url".
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	urls := make(map[string]string)
	for _, a := range s.providers.All() {
		u, err := s.authURL(sess, a)
		if err != nil {
			writeError(w, s.logger, err)
			return
		}
		urls[string(a.Provider())+"_auth_url"] = u
	}
	writeJSON(w, http.StatusOK, urls)
}

// handleProviderLogin returns {"auth_url": ...}, or redirects to it when redirect=true.
func (s *Server) handleProviderLogin(w http.ResponseWriter, r *http.Request) {
	a, err := s.providers.Lookup(r.PathValue("provider"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	sess, err := s.session(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	u, err := s.authURL(sess, a)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	if redirect, _ := strconv.ParseBool(r.URL.Query().Get("redirect")); redirect {
		http.Redirect(w, r, u, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"auth_url": u})
}

// handleCallback completes the authorization code flow for one provider.
//
// The pending state is consumed whatever the outcome, so a callback URL cannot be replayed.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	a, err := s.providers.Lookup(r.PathValue("provider"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	name := a.Provider().DisplayName()

	sess, err := s.session(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	q := r.URL.Query()
	expected, pending := sess.PopString(stateKey(a.Provider()))

	if e := q.Get("error"); e != "" {
		writeError(w, s.logger, fmt.Errorf("%w: %s OAuth error: %s", shared.ErrAuthDenied, name, e))
		return
	}

	if !pending || subtle.ConstantTimeCompare([]byte(expected), []byte(q.Get("state"))) != 1 {
		writeError(w, s.logger, fmt.Errorf("%w for %s", shared.ErrInvalidState, name))
		return
	}

	code := q.Get("code")
	if code == "" {
		writeError(w, s.logger, fmt.Errorf("%w: no authorization code provided for %s", shared.ErrMissingArgument, name))
		return
	}

	rec, err := s.tokens.Authorize(r.Context(), sess, a, code)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, callbackResponse{
		Message:       name + " Authentication successful",
		Authenticated: true,
		TokenType:     rec.TokenType,
		ExpiresAt:     rec.ExpiresAt,
	})
}

// handleStatus reports per enabled provider whether a usable token exists, refreshing it if due.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	out := make(map[string]providerStatus)
	for _, a := range s.providers.All() {
		rec, ok := s.tokens.Status(r.Context(), sess, a)
		if !ok {
			out[string(a.Provider())] = providerStatus{}
			continue
		}

		hasRefresh := rec.HasRefreshToken()
		expiresAt := rec.ExpiresAt
		out[string(a.Provider())] = providerStatus{
			Authenticated:   true,
			TokenType:       rec.TokenType,
			ExpiresAt:       &expiresAt,
			HasRefreshToken: &hasRefresh,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	s.tokens.Logout(sess)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out successfully from all services"})
}
