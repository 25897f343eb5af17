package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Boomlive-ai/analytics.boomlive.in/internal/models"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/shared"
)

const (
	DefaultCookieName = "insights_session"
	DefaultTTL        = time.Hour
)

type contextKey struct{}

// Manager loads the session named by the request cookie and commits changes back to its [Backend].
//
// The cookie holds an HS256 JWT whose jti is the session id and whose exp matches the stored session expiry. A
// session's TTL restarts whenever it is modified.
type Manager struct {
	backend    Backend
	secret     []byte
	ttl        time.Duration
	cookieName string
	secure     bool
	now        func() time.Time
	logger     *log.Logger
}

// Option configures a [Manager].
type Option func(*Manager)

func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

func WithCookieName(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.cookieName = name
		}
	}
}

// WithSecureCookie marks the cookie Secure, for deployments behind HTTPS.
func WithSecureCookie(secure bool) Option {
	return func(m *Manager) { m.secure = secure }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a [Manager] that signs cookies with secret.
func NewManager(backend Backend, secret string, opts ...Option) *Manager {
	m := &Manager{
		backend:    backend,
		secret:     []byte(secret),
		ttl:        DefaultTTL,
		cookieName: DefaultCookieName,
		now:        time.Now,
		logger:     shared.NewLogger(nil),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL returns the session lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Load returns the session named by the request cookie, or a new empty session when the cookie is missing, invalid,
// or points at an expired or unknown session.
func (m *Manager) Load(r *http.Request) *Session {
	now := m.now().UTC()

	c, err := r.Cookie(m.cookieName)
	if err != nil {
		return newSession(shared.GenerateID(), now)
	}

	id, err := m.parse(c.Value)
	if err != nil {
		m.logger.Debug("discarding session cookie", "error", err)
		return newSession(shared.GenerateID(), now)
	}

	stored, err := m.backend.Load(id)
	if err != nil {
		if !isNotFound(err) {
			m.logger.Warn("failed to load session", "error", err)
		}
		return newSession(shared.GenerateID(), now)
	}

	if stored.Expired(now) {
		if err := m.backend.Delete(id); err != nil {
			m.logger.Warn("failed to delete expired session", "error", err)
		}
		return newSession(shared.GenerateID(), now)
	}

	s, err := fromModel(stored)
	if err != nil {
		m.logger.Warn("failed to decode session", "error", err)
		return newSession(shared.GenerateID(), now)
	}
	return s
}

// Save persists a modified session and writes its cookie to w.
// It must run before the response header is written. An emptied session is deleted and its cookie cleared.
func (m *Manager) Save(w http.ResponseWriter, s *Session) error {
	if !s.Modified() {
		return nil
	}

	now := m.now().UTC()

	if s.Len() == 0 {
		if !s.fresh {
			if err := m.backend.Delete(s.ID()); err != nil {
				return fmt.Errorf("failed to delete session: %w", err)
			}
		}
		m.clearCookie(w)
		s.markClean()
		return nil
	}

	data, err := s.encode()
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	stored := models.RestoreSession(s.ID(), data, s.createdAt, now, now)
	stored.Touch(now, m.ttl)
	if err := m.backend.Save(stored); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	token, err := m.sign(s.ID(), now)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		Expires:  now.Add(m.ttl),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.markClean()
	return nil
}

// Prune removes expired sessions from the backend.
func (m *Manager) Prune() (int64, error) {
	return m.backend.Prune(m.now().UTC())
}

// Middleware loads the session into the request context and commits it before the handler's first write.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := m.Load(r)
		sw := &sessionWriter{ResponseWriter: w, commit: func(w http.ResponseWriter) {
			if err := m.Save(w, s); err != nil {
				m.logger.Error("failed to save session", "error", err)
			}
		}}

		next.ServeHTTP(sw, r.WithContext(NewContext(r.Context(), s)))
		sw.flushSession()
	})
}

func (m *Manager) sign(id string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session cookie: %w", err)
	}
	return token, nil
}

func (m *Manager) parse(value string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(value, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	if claims.ID == "" {
		return "", fmt.Errorf("session cookie has no id")
	}
	return claims.ID, nil
}

func (m *Manager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored by [Manager.Middleware].
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok
}

func isNotFound(err error) bool {
	return errors.Is(err, shared.ErrSessionNotFound)
}

// sessionWriter commits the session once, immediately before the response header goes out.
type sessionWriter struct {
	http.ResponseWriter
	commit    func(http.ResponseWriter)
	committed bool
}

func (w *sessionWriter) flushSession() {
	if w.committed {
		return
	}
	w.committed = true
	w.commit(w.ResponseWriter)
}

func (w *sessionWriter) WriteHeader(code int) {
	w.flushSession()
	w.ResponseWriter.WriteHeader(code)
}

func (w *sessionWriter) Write(b []byte) (int, error) {
	w.flushSession()
	return w.ResponseWriter.Write(b)
}

func (w *sessionWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
