package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/Boomlive-ai/analytics.boomlive.in/internal/models"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/shared"
)

var FacebookEndpoint = oauth2.Endpoint{
	AuthURL:  "https://www.facebook.com/v18.0/dialog/oauth",
	TokenURL: "https://graph.facebook.com/v18.0/oauth/access_token",
}

var FacebookScopes = []string{"pages_read_engagement"}

// Facebook is the [tokens.Adapter] for Facebook pages. Facebook issues no refresh tokens; an expiring token
// requires the user to log in again.
type Facebook struct {
	cfg   Config
	oauth *oauth2.Config
}

func NewFacebook(cfg Config) *Facebook {
	cfg = cfg.withDefaults(FacebookEndpoint)
	return &Facebook{cfg: cfg, oauth: cfg.oauth(FacebookScopes)}
}

func (f *Facebook) Provider() models.Provider { return models.Facebook }

func (f *Facebook) AuthURL(state string) string {
	return f.oauth.AuthCodeURL(state)
}

// Exchange trades the code at the Graph API token endpoint, which takes its parameters in the query string.
func (f *Facebook) Exchange(ctx context.Context, code string) (models.TokenRecord, error) {
	q := url.Values{
		"client_id":     {f.cfg.ClientID},
		"client_secret": {f.cfg.ClientSecret},
		"redirect_uri":  {f.cfg.RedirectURI},
		"code":          {code},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.Endpoint.TokenURL+"?"+q.Encode(), nil)
	if err != nil {
		return models.TokenRecord{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.cfg.HTTPClient.Do(req)
	if err != nil {
		return models.TokenRecord{}, &shared.RemoteError{Provider: "facebook", Op: "exchange", Kind: shared.ErrExchangeFailed, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return models.TokenRecord{}, &shared.RemoteError{Provider: "facebook", Op: "exchange", StatusCode: resp.StatusCode, Kind: shared.ErrExchangeFailed, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.TokenRecord{}, &shared.RemoteError{
			Provider: "facebook", Op: "exchange", StatusCode: resp.StatusCode, Body: string(body), Kind: shared.ErrExchangeFailed,
		}
	}

	var raw facebookTokenResponse
	if err := json.Unmarshal(body, &raw); err != nil || raw.AccessToken == "" {
		return models.TokenRecord{}, &shared.RemoteError{
			Provider: "facebook", Op: "exchange", StatusCode: resp.StatusCode, Body: string(body), Kind: shared.ErrExchangeFailed, Err: err,
		}
	}

	return raw.normalize(f.cfg.Now()), nil
}

// Refresh always fails: the manager only refreshes records holding a refresh token, which Facebook never issues.
func (f *Facebook) Refresh(context.Context, models.TokenRecord) (models.TokenRecord, error) {
	return models.TokenRecord{}, &shared.RemoteError{
		Provider: "facebook", Op: "refresh", Kind: shared.ErrRefreshFailed, Err: shared.ErrNotImplemented,
	}
}

type facebookTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (r facebookTokenResponse) normalize(now time.Time) models.TokenRecord {
	lifetime := defaultExpiry
	if r.ExpiresIn > 0 {
		lifetime = time.Duration(r.ExpiresIn) * time.Second
	}
	return models.TokenRecord{
		AccessToken: r.AccessToken,
		TokenType:   tokenType(r.TokenType),
		ExpiresAt:   now.Add(lifetime).UTC(),
	}
}
