package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/Boomlive-ai/analytics.boomlive.in/internal/providers"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/repositories"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/server"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/services"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/session"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/shared"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/tokens"
)

// Serve validates the configuration, wires the API and runs it until interrupted.
//
// Expired sessions are pruned in the background while the server runs.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config
	if port := cmd.Int("port"); port > 0 {
		cfg.Server.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	backend, db, err := r.sessionBackend()
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	srv, sessions := r.buildServer(backend)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx, cfg.Server.Addr()) })
	g.Go(func() error { return r.pruneLoop(ctx, sessions, cmd.Duration("prune-interval")) })
	return g.Wait()
}

// sessionBackend opens the configured session store. The returned database is nil for the memory backend.
func (r *Runner) sessionBackend() (session.Backend, *sql.DB, error) {
	if r.config.Session.Backend == "memory" {
		r.logger.Warn("sessions are kept in memory and are lost on restart")
		return session.NewMemoryBackend(), nil, nil
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, nil, err
	}
	return session.NewSQLBackend(repositories.NewSessionRepository(db)), db, nil
}

func (r *Runner) buildServer(backend session.Backend) (*server.Server, *session.Manager) {
	cfg := r.config

	sessions := session.NewManager(backend, cfg.Session.Secret,
		session.WithTTL(cfg.Session.TTL()),
		session.WithCookieName(cfg.Session.CookieName),
		session.WithSecureCookie(cfg.Session.SecureCookie),
		session.WithLogger(r.logger),
	)

	apiClient := &http.Client{Transport: r.httpClient.Transport, Timeout: cfg.API.Timeout()}
	client := services.NewClient(apiClient, cfg.API.RateLimit, r.logger)

	registry := providers.FromConfig(cfg.Credentials, r.httpClient)
	for _, a := range registry.All() {
		r.logger.Info("provider enabled", "provider", a.Provider())
	}

	srv := server.New(server.Options{
		FrontendURL: cfg.Server.FrontendURL,
		Sessions:    sessions,
		Tokens:      tokens.NewManager(tokens.WithSkew(cfg.Tokens.RefreshSkew()), tokens.WithLogger(r.logger)),
		Providers:   registry,
		Google:      services.NewGoogleService(client),
		Spotify:     services.NewSpotifyService(client),
		Facebook:    services.NewFacebookService(client),
		Logger:      r.logger,
	})
	return srv, sessions
}

func (r *Runner) pruneLoop(ctx context.Context, sessions *session.Manager, every time.Duration) error {
	if every <= 0 {
		return nil
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := sessions.Prune()
			if err != nil {
				r.logger.Warn("failed to prune sessions", "error", err)
				continue
			}
			if n > 0 {
				r.logger.Debug("pruned expired sessions", "count", n)
			}
		}
	}
}
