package providers

import (
	"context"
	"time"

	"golang.org/x/oauth2"

	"github.com/Boomlive-ai/analytics.boomlive.in/internal/models"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/shared"
)

// GoogleEndpoint is Google's OAuth 2.0 endpoint for web server applications.
var GoogleEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.google.com/o/oauth2/auth",
	TokenURL: "https://oauth2.googleapis.com/token",
}

// GoogleScopes covers Google Analytics (GA4 admin and data) and YouTube (data, analytics, partner).
var GoogleScopes = []string{
	"https://www.googleapis.com/auth/analytics.readonly",
	"https://www.googleapis.com/auth/analytics",
	"https://www.googleapis.com/auth/analytics.edit",
	"https://www.googleapis.com/auth/analytics.manage.users",
	"https://www.googleapis.com/auth/analytics.manage.users.readonly",
	"https://www.googleapis.com/auth/analytics.provision",
	"https://www.googleapis.com/auth/youtube",
	"https://www.googleapis.com/auth/yt-analytics-monetary.readonly",
	"https://www.googleapis.com/auth/youtube.readonly",
	"https://www.googleapis.com/auth/yt-analytics.readonly",
	"https://www.googleapis.com/auth/youtube.force-ssl",
	"https://www.googleapis.com/auth/youtubepartner",
	"https://www.googleapis.com/auth/youtube.channel-memberships.creator",
}

// Google is the [tokens.Adapter] for Google accounts.
type Google struct {
	cfg   Config
	oauth *oauth2.Config
}

func NewGoogle(cfg Config) *Google {
	cfg = cfg.withDefaults(GoogleEndpoint)
	return &Google{cfg: cfg, oauth: cfg.oauth(GoogleScopes)}
}

func (g *Google) Provider() models.Provider { return models.Google }

// AuthURL requests offline access and forces the consent screen so Google always returns a refresh token.
func (g *Google) AuthURL(state string) string {
	return g.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

func (g *Google) Exchange(ctx context.Context, code string) (models.TokenRecord, error) {
	tok, err := g.oauth.Exchange(g.cfg.withClient(ctx), code)
	if err != nil {
		return models.TokenRecord{}, remoteError(models.Google, "exchange", shared.ErrExchangeFailed, err)
	}
	return googleCredentials{tok}.normalize(g.cfg.Now()), nil
}

func (g *Google) Refresh(ctx context.Context, rec models.TokenRecord) (models.TokenRecord, error) {
	src := g.oauth.TokenSource(g.cfg.withClient(ctx), &oauth2.Token{RefreshToken: rec.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return models.TokenRecord{}, remoteError(models.Google, "refresh", shared.ErrRefreshFailed, err)
	}
	return googleCredentials{tok}.normalize(g.cfg.Now()), nil
}

// googleCredentials is Google's token response. Google reports a relative expires_in, but credentials serialized by
// Google client libraries carry an absolute RFC 3339 "expiry" instead.
type googleCredentials struct {
	token *oauth2.Token
}

func (c googleCredentials) normalize(now time.Time) models.TokenRecord {
	rec := models.TokenRecord{
		AccessToken:  c.token.AccessToken,
		RefreshToken: c.token.RefreshToken,
		TokenType:    tokenType(c.token.TokenType),
		Scope:        extraString(c.token, "scope"),
	}

	if d, ok := expiresIn(c.token); ok {
		rec.ExpiresAt = now.Add(d).UTC()
		return rec
	}

	if s := extraString(c.token, "expiry"); s != "" {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			rec.ExpiresAt = t.UTC()
			return rec
		}
	}

	if !c.token.Expiry.IsZero() {
		rec.ExpiresAt = c.token.Expiry.UTC()
		return rec
	}

	rec.ExpiresAt = now.Add(defaultExpiry).UTC()
	return rec
}
