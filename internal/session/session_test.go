package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Boomlive-ai/analytics.boomlive.in/internal/models"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/repositories"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/shared"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func newTestManager(t *testing.T, backend Backend, c *clock) *Manager {
	t.Helper()
	return NewManager(backend, "test-secret", WithClock(c.Now), WithLogger(shared.NewLogger(nil)))
}

// roundTrip runs handler behind the session middleware, replaying cookies from the previous response.
func roundTrip(m *Manager, cookies []*http.Cookie, handler http.HandlerFunc) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	m.Middleware(handler).ServeHTTP(rec, req)
	return rec
}

func TestSessionValues(t *testing.T) {
	s := newSession("id", time.Now())
	rec := models.TokenRecord{AccessToken: "a", TokenType: "Bearer", ExpiresAt: time.Unix(1700000000, 0).UTC()}

	require.NoError(t, s.Set(models.Google.SessionKey(), rec))
	got, ok := s.Get(models.Google.SessionKey())
	require.True(t, ok)
	assert.Equal(t, rec, got)

	_, ok = s.Get(models.Spotify.SessionKey())
	assert.False(t, ok)

	s.SetString("oauth_state_google", "xyz")
	state, ok := s.PopString("oauth_state_google")
	assert.True(t, ok)
	assert.Equal(t, "xyz", state)
	_, ok = s.PopString("oauth_state_google")
	assert.False(t, ok, "state should only be readable once")

	s.Delete(models.Google.SessionKey(), "missing")
	assert.Equal(t, 0, s.Len())
	assert.True(t, s.Modified())
}

func TestManager(t *testing.T) {
	t.Run("Round Trip", func(t *testing.T) {
		c := &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
		m := newTestManager(t, NewMemoryBackend(), c)
		rec := models.TokenRecord{AccessToken: "a", ExpiresAt: c.t.Add(time.Hour)}

		first := roundTrip(m, nil, func(w http.ResponseWriter, r *http.Request) {
			s, ok := FromContext(r.Context())
			require.True(t, ok)
			require.NoError(t, s.Set(models.Spotify.SessionKey(), rec))
			w.WriteHeader(http.StatusNoContent)
		})

		cookies := first.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.True(t, cookies[0].HttpOnly)
		assert.Equal(t, 3600, cookies[0].MaxAge)

		roundTrip(m, cookies, func(w http.ResponseWriter, r *http.Request) {
			s, _ := FromContext(r.Context())
			got, ok := s.Get(models.Spotify.SessionKey())
			assert.True(t, ok)
			assert.Equal(t, "a", got.AccessToken)
		})
	})

	t.Run("Unmodified Session Sets No Cookie", func(t *testing.T) {
		c := &clock{t: time.Now()}
		m := newTestManager(t, NewMemoryBackend(), c)

		res := roundTrip(m, nil, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("ok"))
		})
		assert.Empty(t, res.Result().Cookies())
	})

	t.Run("Expires After TTL", func(t *testing.T) {
		c := &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
		m := newTestManager(t, NewMemoryBackend(), c)

		first := roundTrip(m, nil, func(w http.ResponseWriter, r *http.Request) {
			s, _ := FromContext(r.Context())
			s.SetString("k", "v")
		})

		c.t = c.t.Add(time.Hour + time.Second)
		roundTrip(m, first.Result().Cookies(), func(w http.ResponseWriter, r *http.Request) {
			s, _ := FromContext(r.Context())
			assert.Equal(t, 0, s.Len(), "expired session should start empty")
		})
	})

	t.Run("Tampered Cookie Starts Fresh", func(t *testing.T) {
		c := &clock{t: time.Now()}
		backend := NewMemoryBackend()
		m := newTestManager(t, backend, c)

		first := roundTrip(m, nil, func(w http.ResponseWriter, r *http.Request) {
			s, _ := FromContext(r.Context())
			s.SetString("k", "v")
		})

		forged := NewManager(backend, "other-secret", WithClock(c.Now))
		cookie := first.Result().Cookies()[0]
		id, err := m.parse(cookie.Value)
		require.NoError(t, err)
		bad, err := forged.sign(id, c.t)
		require.NoError(t, err)

		roundTrip(m, []*http.Cookie{{Name: cookie.Name, Value: bad}}, func(w http.ResponseWriter, r *http.Request) {
			s, _ := FromContext(r.Context())
			assert.NotEqual(t, id, s.ID())
			assert.Equal(t, 0, s.Len())
		})
	})

	t.Run("Emptied Session Is Deleted", func(t *testing.T) {
		c := &clock{t: time.Now()}
		backend := NewMemoryBackend()
		m := newTestManager(t, backend, c)

		first := roundTrip(m, nil, func(w http.ResponseWriter, r *http.Request) {
			s, _ := FromContext(r.Context())
			s.SetString("k", "v")
		})
		cookies := first.Result().Cookies()
		id, err := m.parse(cookies[0].Value)
		require.NoError(t, err)

		second := roundTrip(m, cookies, func(w http.ResponseWriter, r *http.Request) {
			s, _ := FromContext(r.Context())
			s.Delete("k")
			w.WriteHeader(http.StatusOK)
		})

		cleared := second.Result().Cookies()
		require.Len(t, cleared, 1)
		assert.Equal(t, -1, cleared[0].MaxAge)

		_, err = backend.Load(id)
		assert.ErrorIs(t, err, shared.ErrSessionNotFound)
	})
}

func TestBackends(t *testing.T) {
	db, err := shared.NewDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, shared.RunMigrations(db))

	backends := map[string]Backend{
		"memory": NewMemoryBackend(),
		"sqlite": NewSQLBackend(repositories.NewSessionRepository(db)),
	}

	for name, backend := range backends {
		t.Run(name, func(t *testing.T) {
			now := time.Now().UTC()
			live := models.NewSession(name+"-live", time.Hour)
			live.SetData([]byte(`{"a":1}`))
			stale := models.RestoreSession(name+"-stale", []byte("{}"), now.Add(-2*time.Hour), now.Add(-2*time.Hour), now.Add(-time.Minute))

			require.NoError(t, backend.Save(live))
			require.NoError(t, backend.Save(stale))

			loaded, err := backend.Load(live.ID())
			require.NoError(t, err)
			assert.JSONEq(t, `{"a":1}`, string(loaded.Data()))

			n, err := backend.Prune(now)
			require.NoError(t, err)
			assert.EqualValues(t, 1, n)

			_, err = backend.Load(stale.ID())
			assert.ErrorIs(t, err, shared.ErrSessionNotFound)

			require.NoError(t, backend.Delete(live.ID()))
			require.NoError(t, backend.Delete(live.ID()), "deleting twice is not an error")
		})
	}
}
