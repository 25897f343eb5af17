package providers

import (
	"context"
	"time"

	"golang.org/x/oauth2"

	"github.com/Boomlive-ai/analytics.boomlive.in/internal/models"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/shared"
)

var SpotifyEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.spotify.com/authorize",
	TokenURL: "https://accounts.spotify.com/api/token",
}

var SpotifyScopes = []string{"user-follow-read", "user-read-email", "user-top-read"}

// Spotify is the [tokens.Adapter] for Spotify accounts.
type Spotify struct {
	cfg   Config
	oauth *oauth2.Config
}

func NewSpotify(cfg Config) *Spotify {
	cfg = cfg.withDefaults(SpotifyEndpoint)
	return &Spotify{cfg: cfg, oauth: cfg.oauth(SpotifyScopes)}
}

func (s *Spotify) Provider() models.Provider { return models.Spotify }

func (s *Spotify) AuthURL(state string) string {
	return s.oauth.AuthCodeURL(state)
}

func (s *Spotify) Exchange(ctx context.Context, code string) (models.TokenRecord, error) {
	tok, err := s.oauth.Exchange(s.cfg.withClient(ctx), code)
	if err != nil {
		return models.TokenRecord{}, remoteError(models.Spotify, "exchange", shared.ErrExchangeFailed, err)
	}
	return spotifyTokenResponse{tok}.normalize(s.cfg.Now()), nil
}

// Refresh trades the refresh token for a new access token. Spotify may or may not rotate the refresh token.
func (s *Spotify) Refresh(ctx context.Context, rec models.TokenRecord) (models.TokenRecord, error) {
	src := s.oauth.TokenSource(s.cfg.withClient(ctx), &oauth2.Token{RefreshToken: rec.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return models.TokenRecord{}, remoteError(models.Spotify, "refresh", shared.ErrRefreshFailed, err)
	}
	return spotifyTokenResponse{tok}.normalize(s.cfg.Now()), nil
}

type spotifyTokenResponse struct {
	token *oauth2.Token
}

func (r spotifyTokenResponse) normalize(now time.Time) models.TokenRecord {
	rec := models.TokenRecord{
		AccessToken:  r.token.AccessToken,
		RefreshToken: r.token.RefreshToken,
		TokenType:    tokenType(r.token.TokenType),
		Scope:        extraString(r.token, "scope"),
	}

	switch d, ok := expiresIn(r.token); {
	case ok:
		rec.ExpiresAt = now.Add(d).UTC()
	case !r.token.Expiry.IsZero():
		rec.ExpiresAt = r.token.Expiry.UTC()
	default:
		rec.ExpiresAt = now.Add(defaultExpiry).UTC()
	}
	return rec
}
