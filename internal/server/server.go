// package server exposes the OAuth flows and provider analytics over a JSON HTTP API
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Boomlive-ai/analytics.boomlive.in/internal/models"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/providers"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/services"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/session"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/shared"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/tokens"
)

const shutdownTimeout = 10 * time.Second

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, authentication, CORS, rate limiting, etc.
type Middleware func(http.Handler) http.Handler

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Options holds the collaborators a [Server] routes requests to.
type Options struct {
	FrontendURL string
	Sessions    *session.Manager
	Tokens      *tokens.Manager
	Providers   *providers.Registry
	Google      *services.GoogleService
	Spotify     *services.SpotifyService
	Facebook    *services.FacebookService
	Logger      *log.Logger
}

// Server is the HTTP API. It implements [http.Handler].
type Server struct {
	router    Router
	sessions  *session.Manager
	tokens    *tokens.Manager
	providers *providers.Registry
	google    *services.GoogleService
	spotify   *services.SpotifyService
	facebook  *services.FacebookService
	logger    *log.Logger
}

// New creates a [Server] and registers every route.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	s := &Server{
		sessions:  opts.Sessions,
		tokens:    opts.Tokens,
		providers: opts.Providers,
		google:    opts.Google,
		spotify:   opts.Spotify,
		facebook:  opts.Facebook,
		logger:    opts.Logger,
	}

	r := NewBasicRouter()
	r.Use(Recover(s.logger), Logging(s.logger), CORS(opts.FrontendURL), s.sessions.Middleware)
	s.routes(r)
	s.router = r
	return s
}

func (s *Server) routes(r *BasicRouter) {
	r.Handle(http.MethodGet, "/{$}", http.HandlerFunc(s.handleRoot))

	r.Handle(http.MethodGet, "/auth/login", http.HandlerFunc(s.handleLogin))
	r.Handle(http.MethodGet, "/auth/login/{provider}", http.HandlerFunc(s.handleProviderLogin))
	r.Handle(http.MethodGet, "/auth/callback/{provider}", http.HandlerFunc(s.handleCallback))
	r.Handle(http.MethodGet, "/auth/status", http.HandlerFunc(s.handleStatus))
	r.Handle(http.MethodGet, "/auth/logout", http.HandlerFunc(s.handleLogout))

	r.Handle(http.MethodGet, "/google/youtube/partner-channels", http.HandlerFunc(s.handlePartnerChannels))
	r.Handle(http.MethodGet, "/google/youtube/owner-channel", http.HandlerFunc(s.handleOwnerChannel))
	r.Handle(http.MethodGet, "/google/youtube/analytics", http.HandlerFunc(s.handleYouTubeAnalytics))
	r.Handle(http.MethodGet, "/google/youtube/analytics/auto", http.HandlerFunc(s.handleYouTubeAnalyticsAuto))
	r.Handle(http.MethodGet, "/google/ga4/property", http.HandlerFunc(s.handleGA4Property))
	r.Handle(http.MethodGet, "/google/ga4/analytics", http.HandlerFunc(s.handleGA4Analytics))
	r.Handle(http.MethodGet, "/google/ga4/analytics/auto", http.HandlerFunc(s.handleGA4AnalyticsAuto))

	r.Handle(http.MethodGet, "/spotify/profile", http.HandlerFunc(s.handleSpotifyProfile))
	r.Handle(http.MethodGet, "/spotify/artists", http.HandlerFunc(s.handleSpotifyArtists))
	r.Handle(http.MethodGet, "/spotify/top/{kind}", http.HandlerFunc(s.handleSpotifyTop))

	r.Handle(http.MethodGet, "/facebook/page-insights/{page_id}", http.HandlerFunc(s.handlePageInsights))

	r.NotFound(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Not found"})
	}))
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run listens on addr and serves until ctx is cancelled. See [Server.Serve].
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then drains in-flight requests.
//
// Request contexts keep ctx's values but not its cancellation, so a shutdown signal does not abort handlers that
// are still running.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// session returns the request's session as loaded by [session.Manager.Middleware].
func (s *Server) session(r *http.Request) (*session.Session, error) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		return nil, errors.New("no session in request context")
	}
	return sess, nil
}

// source returns a token source for p bound to the request's session.
func (s *Server) source(r *http.Request, p models.Provider) (tokens.TokenSource, error) {
	a, ok := s.providers.Get(p)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not configured", shared.ErrServiceUnavailable, p.DisplayName())
	}

	sess, err := s.session(r)
	if err != nil {
		return nil, err
	}
	return s.tokens.Source(sess, a), nil
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "Multi-Platform Analytics API is running."})
}
