package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/Boomlive-ai/analytics.boomlive.in/internal/models"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/repositories"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/shared"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/ui"
)

type sessionSummary struct {
	ID        string    `json:"id"`
	Providers []string  `json:"providers"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// sessionProviders lists the providers holding a token in a stored session document.
// Values are never decoded so tokens do not leave the database.
func sessionProviders(data []byte) []string {
	values := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil
	}

	var out []string
	for _, p := range models.Providers {
		if _, ok := values[p.SessionKey()]; ok {
			out = append(out, p.String())
			continue
		}
		if p == models.Facebook {
			if _, ok := values[models.LegacyFacebookKey]; ok {
				out = append(out, p.String())
			}
		}
	}
	return out
}

func (r *Runner) sessionRepository() (*repositories.SessionRepository, func() error, error) {
	if r.config.Session.Backend == "memory" {
		return nil, nil, fmt.Errorf("%w: sessions are only inspectable with the sqlite backend", shared.ErrInvalidConfig)
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, nil, err
	}
	return repositories.NewSessionRepository(db), db.Close, nil
}

// SessionsList prints stored sessions. Expired sessions are hidden unless --all is set.
func (r *Runner) SessionsList(ctx context.Context, cmd *cli.Command) error {
	repo, closeDB, err := r.sessionRepository()
	if err != nil {
		return err
	}
	defer closeDB()

	now := r.now().UTC()
	criteria := map[string]any{}
	if !cmd.Bool("all") {
		criteria["active_at"] = now
	}

	stored, err := repo.List(criteria)
	if err != nil {
		return err
	}

	summaries := make([]sessionSummary, 0, len(stored))
	for _, s := range stored {
		summaries = append(summaries, sessionSummary{
			ID:        s.ID(),
			Providers: sessionProviders(s.Data()),
			CreatedAt: s.CreatedAt(),
			UpdatedAt: s.UpdatedAt(),
			ExpiresAt: s.ExpiresAt(),
		})
	}

	if cmd.Bool("json") {
		return r.writeJSON(summaries, cmd.Bool("pretty"))
	}

	if len(summaries) == 0 {
		return r.writePlain("%s\n", ui.Help("no sessions"))
	}

	rows := make([]ui.SessionRow, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, ui.SessionRow{ID: s.ID, Providers: s.Providers, UpdatedAt: s.UpdatedAt, ExpiresAt: s.ExpiresAt})
	}
	return r.writePlain("%s\n", ui.SessionTable(rows, now))
}

// SessionsPrune deletes every session past its expiry.
func (r *Runner) SessionsPrune(ctx context.Context, cmd *cli.Command) error {
	repo, closeDB, err := r.sessionRepository()
	if err != nil {
		return err
	}
	defer closeDB()

	n, err := repo.DeleteExpired(r.now().UTC())
	if err != nil {
		return err
	}

	r.logger.Info("pruned sessions", "count", n)
	return r.writePlain("%s removed %d expired session(s)\n", ui.OK("✓"), n)
}
