package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Provider names an OAuth provider.
type Provider string

const (
	Google   Provider = "google"
	Spotify  Provider = "spotify"
	Facebook Provider = "facebook"
)

// LegacyFacebookKey is the session key older deployments stored Facebook tokens under.
// It is still cleared on logout.
const LegacyFacebookKey = "token_info"

// Providers lists the supported providers in display order.
var Providers = []Provider{Google, Spotify, Facebook}

// ParseProvider converts a path segment such as "google" to a [Provider].
func ParseProvider(s string) (Provider, bool) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case Google, Spotify, Facebook:
		return p, true
	}
	return "", false
}

// SessionKey is the key the provider's [TokenRecord] is stored under in a session.
func (p Provider) SessionKey() string {
	return string(p) + "_token_info"
}

func (p Provider) String() string { return string(p) }

// DisplayName returns a capitalized provider name for messages.
func (p Provider) DisplayName() string {
	if p == "" {
		return ""
	}
	return strings.ToUpper(string(p[:1])) + string(p[1:])
}

// TokenRecord is a provider token set after normalization. ExpiresAt is always absolute.
type TokenRecord struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	Scope        string    `json:"scope,omitempty"`
}

// HasRefreshToken reports whether the record can be refreshed.
func (t TokenRecord) HasRefreshToken() bool {
	return t.RefreshToken != ""
}

// NeedsRefresh reports whether now + skew has reached the expiry.
func (t TokenRecord) NeedsRefresh(now time.Time, skew time.Duration) bool {
	return !now.Add(skew).Before(t.ExpiresAt)
}

// Merge applies a refreshed token on top of t.
//
// The access token, expiry and token type are replaced. The refresh token and scope are only replaced when the
// refreshed token carries new values.
func (t TokenRecord) Merge(next TokenRecord) TokenRecord {
	merged := t
	merged.AccessToken = next.AccessToken
	merged.ExpiresAt = next.ExpiresAt
	if next.TokenType != "" {
		merged.TokenType = next.TokenType
	}
	if next.RefreshToken != "" {
		merged.RefreshToken = next.RefreshToken
	}
	if next.Scope != "" {
		merged.Scope = next.Scope
	}
	return merged
}

// Validate checks that the record can be used for an authenticated call.
func (t TokenRecord) Validate() error {
	var errs []error
	if t.AccessToken == "" {
		errs = append(errs, fmt.Errorf("access_token is required"))
	}
	if t.ExpiresAt.IsZero() {
		errs = append(errs, fmt.Errorf("expires_at is required"))
	}
	return errors.Join(errs...)
}
