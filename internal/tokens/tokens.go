// package tokens guarantees a usable access token per provider, refreshing it shortly before expiry
package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/Boomlive-ai/analytics.boomlive.in/internal/models"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/shared"
)

// DefaultRefreshSkew is how long before expiry a token is considered due for refresh.
const DefaultRefreshSkew = 300 * time.Second

// Store is the per-session key/value storage the manager reads and writes token records in.
type Store interface {
	ID() string
	Get(key string) (models.TokenRecord, bool)
	Set(key string, rec models.TokenRecord) error
	Delete(keys ...string)
}

// Adapter performs the provider-specific parts of the OAuth flow.
//
// Exchange and Refresh return records that are already normalized, with an absolute expiry.
type Adapter interface {
	Provider() models.Provider
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (models.TokenRecord, error)
	Refresh(ctx context.Context, rec models.TokenRecord) (models.TokenRecord, error)
}

// Manager orchestrates expiry checks and refreshes for any [Adapter].
type Manager struct {
	skew   time.Duration
	now    func() time.Time
	logger *log.Logger
	flight singleflight.Group
}

// Option configures a [Manager].
type Option func(*Manager)

func WithSkew(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.skew = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = shared.WithLogger(l, "component", "tokens") }
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{skew: DefaultRefreshSkew, now: time.Now, logger: shared.NewLogger(nil)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Skew returns the configured refresh window.
func (m *Manager) Skew() time.Duration { return m.skew }

// Authorize exchanges an authorization code and stores the resulting record.
// The store is left untouched when the exchange fails.
func (m *Manager) Authorize(ctx context.Context, store Store, a Adapter, code string) (models.TokenRecord, error) {
	if code == "" {
		return models.TokenRecord{}, fmt.Errorf("%w: authorization code", shared.ErrMissingArgument)
	}

	rec, err := a.Exchange(ctx, code)
	if err != nil {
		return models.TokenRecord{}, err
	}

	if err := store.Set(a.Provider().SessionKey(), rec); err != nil {
		return models.TokenRecord{}, fmt.Errorf("failed to store %s token: %w", a.Provider(), err)
	}

	m.logger.Info("authorized", "provider", a.Provider(), "expires_at", rec.ExpiresAt, "refreshable", rec.HasRefreshToken())
	return rec, nil
}

// ValidToken returns a record for the adapter's provider that will not expire within the refresh skew.
//
// A record inside the skew window is refreshed inline and written back with its refresh token carried forward. A
// refresh the provider rejects with a 4xx evicts the record so the next call reports [shared.ErrNotAuthenticated];
// transport failures and 5xx responses return [shared.ErrRefreshFailed] and keep the record for the next attempt.
//
// A provider may grant a lifetime shorter than the skew. That token is returned as is and a warning is logged.
func (m *Manager) ValidToken(ctx context.Context, store Store, a Adapter) (models.TokenRecord, error) {
	provider := a.Provider()
	key := provider.SessionKey()

	rec, ok := store.Get(key)
	if !ok {
		return models.TokenRecord{}, fmt.Errorf("%w with %s", shared.ErrNotAuthenticated, provider.DisplayName())
	}

	if !rec.NeedsRefresh(m.now(), m.skew) {
		return rec, nil
	}

	if !rec.HasRefreshToken() {
		return models.TokenRecord{}, fmt.Errorf("%w for %s", shared.ErrNoRefreshToken, provider.DisplayName())
	}

	fresh, err := m.refresh(ctx, store.ID(), a, rec)
	if err != nil {
		if rejected(err) {
			store.Delete(key)
			m.logger.Warn("refresh rejected, token evicted", "provider", provider, "error", err)
		} else {
			m.logger.Warn("refresh failed, token kept", "provider", provider, "error", err)
		}
		if !errors.Is(err, shared.ErrRefreshFailed) {
			err = fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
		}
		return models.TokenRecord{}, err
	}

	merged := rec.Merge(fresh)
	if err := store.Set(key, merged); err != nil {
		return models.TokenRecord{}, fmt.Errorf("failed to store refreshed %s token: %w", provider, err)
	}

	if merged.NeedsRefresh(m.now(), m.skew) {
		m.logger.Warn("refreshed token expires within the refresh skew",
			"provider", provider, "expires_at", merged.ExpiresAt, "skew", m.skew)
	}

	m.logger.Debug("refreshed", "provider", provider, "token", shared.RedactToken(merged.AccessToken), "expires_at", merged.ExpiresAt)
	return merged, nil
}

// rejected reports whether a refresh error means the refresh token itself is no longer usable.
// Transport failures and provider 5xx responses leave the record in place.
func rejected(err error) bool {
	var re *shared.RemoteError
	return errors.As(err, &re) && re.Rejected()
}

// refresh shares one in-flight provider call between concurrent requests for the same session and provider.
func (m *Manager) refresh(ctx context.Context, sessionID string, a Adapter, rec models.TokenRecord) (models.TokenRecord, error) {
	key := sessionID + ":" + string(a.Provider())
	v, err, joined := m.flight.Do(key, func() (any, error) {
		return a.Refresh(context.WithoutCancel(ctx), rec)
	})
	if joined {
		m.logger.Debug("joined in-flight refresh", "provider", a.Provider())
	}
	if err != nil {
		return models.TokenRecord{}, err
	}
	return v.(models.TokenRecord), nil
}

// Status reports whether a usable token exists, refreshing it if due. Errors downgrade to unauthenticated.
func (m *Manager) Status(ctx context.Context, store Store, a Adapter) (models.TokenRecord, bool) {
	rec, err := m.ValidToken(ctx, store, a)
	if err != nil {
		return models.TokenRecord{}, false
	}
	return rec, true
}

// Logout removes every provider record from the store, including the legacy Facebook key.
func (m *Manager) Logout(store Store) {
	keys := make([]string, 0, len(models.Providers)+1)
	for _, p := range models.Providers {
		keys = append(keys, p.SessionKey())
	}
	keys = append(keys, models.LegacyFacebookKey)
	store.Delete(keys...)
}

// TokenSource yields valid access tokens for one provider within one session.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type source struct {
	m     *Manager
	store Store
	a     Adapter
}

func (s source) Token(ctx context.Context) (string, error) {
	rec, err := s.m.ValidToken(ctx, s.store, s.a)
	if err != nil {
		return "", err
	}
	return rec.AccessToken, nil
}

// Source binds the manager to a store and adapter for use by data fetchers.
func (m *Manager) Source(store Store, a Adapter) TokenSource {
	return source{m: m, store: store, a: a}
}
