package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
)

// ProviderRow is one line of [ProviderTable].
type ProviderRow struct {
	Name        string
	Enabled     bool
	ClientID    string
	HasSecret   bool
	RedirectURI string
}

// SessionRow is one line of [SessionTable].
type SessionRow struct {
	ID        string
	Providers []string
	UpdatedAt time.Time
	ExpiresAt time.Time
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styles.help).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.title.MarginBottom(0).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

func yesNo(b bool) string {
	if b {
		return OK("yes")
	}
	return Warn("no")
}

// ProviderTable renders provider configuration. Client ids are shortened and secrets are never shown.
func ProviderTable(rows []ProviderRow) string {
	t := newTable("Provider", "Enabled", "Client ID", "Secret", "Redirect URI")
	for _, r := range rows {
		clientID := r.ClientID
		if len(clientID) > 12 {
			clientID = clientID[:12] + "…"
		}
		if clientID == "" {
			clientID = Err("missing")
		}
		t.Row(r.Name, yesNo(r.Enabled), clientID, yesNo(r.HasSecret), r.RedirectURI)
	}
	return t.String()
}

// SessionTable renders stored sessions with relative update and expiry times.
func SessionTable(rows []SessionRow, now time.Time) string {
	t := newTable("Session", "Providers", "Updated", "Expires")
	for _, r := range rows {
		providers := "-"
		if len(r.Providers) > 0 {
			providers = strings.Join(r.Providers, ", ")
		}

		expires := humanize.RelTime(r.ExpiresAt, now, "ago", "from now")
		if !now.Before(r.ExpiresAt) {
			expires = Warn("expired " + expires)
		}
		t.Row(r.ID, providers, humanize.RelTime(r.UpdatedAt, now, "ago", "from now"), expires)
	}
	return t.String()
}
