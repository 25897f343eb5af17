package main

import (
	"context"
	"fmt"
	"net/url"

	"github.com/urfave/cli/v3"

	"github.com/Boomlive-ai/analytics.boomlive.in/internal/models"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/shared"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/ui"
)

func (r *Runner) providerConfig(p models.Provider) shared.ProviderConfig {
	switch p {
	case models.Google:
		return r.config.Credentials.Google
	case models.Spotify:
		return r.config.Credentials.Spotify
	default:
		return r.config.Credentials.Facebook
	}
}

// Providers prints each provider's configuration without revealing secrets.
func (r *Runner) Providers(ctx context.Context, cmd *cli.Command) error {
	rows := make([]ui.ProviderRow, 0, len(models.Providers))
	for _, p := range models.Providers {
		pc := r.providerConfig(p)
		rows = append(rows, ui.ProviderRow{
			Name:        p.DisplayName(),
			Enabled:     pc.Enabled,
			ClientID:    pc.ClientID,
			HasSecret:   pc.ClientSecret != "",
			RedirectURI: pc.RedirectURI,
		})
	}

	if cmd.Bool("json") {
		type entry struct {
			Provider    string `json:"provider"`
			Enabled     bool   `json:"enabled"`
			HasSecret   bool   `json:"has_secret"`
			RedirectURI string `json:"redirect_uri"`
		}
		out := make([]entry, 0, len(rows))
		for i, row := range rows {
			out = append(out, entry{
				Provider:    models.Providers[i].String(),
				Enabled:     row.Enabled,
				HasSecret:   row.HasSecret,
				RedirectURI: row.RedirectURI,
			})
		}
		return r.writeJSON(out, true)
	}

	return r.writePlain("%s\n", ui.ProviderTable(rows))
}

// loginURL is the API route that redirects the browser to the provider's consent page.
func (r *Runner) loginURL(p models.Provider) string {
	return r.config.Server.BaseURL() + "/auth/login/" + url.PathEscape(p.String()) + "?redirect=true"
}

// Login opens the running API's login route for a provider in the default browser.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("provider")
	if name == "" {
		return fmt.Errorf("%w: provider", shared.ErrMissingArgument)
	}

	p, ok := models.ParseProvider(name)
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrUnknownProvider, name)
	}
	if !r.providerConfig(p).Enabled {
		return fmt.Errorf("%w: %s is disabled in the configuration", shared.ErrServiceUnavailable, p)
	}

	target := r.loginURL(p)
	if cmd.Bool("print") {
		return r.writePlain("%s\n", target)
	}

	r.logger.Info("opening browser", "provider", p, "url", target)
	if err := r.openBrowser(target); err != nil {
		r.logger.Warn("failed to open browser", "error", err)
		return r.writePlain("Open this URL to sign in with %s:\n%s\n", p.DisplayName(), target)
	}

	return r.writePlain("%s Complete the %s sign-in in your browser\n", ui.OK("✓"), p.DisplayName())
}
