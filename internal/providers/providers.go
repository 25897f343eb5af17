// package providers implements the OAuth adapters for Google, Spotify and Facebook
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/Boomlive-ai/analytics.boomlive.in/internal/models"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/shared"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/tokens"
)

// defaultExpiry is assumed when a provider omits both expires_in and an absolute expiry.
const defaultExpiry = time.Hour

// Config holds the client credentials and transport for one adapter.
//
// A zero Endpoint selects the provider's production endpoint.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Endpoint     oauth2.Endpoint
	HTTPClient   *http.Client
	Now          func() time.Time
}

func (c Config) withDefaults(endpoint oauth2.Endpoint) Config {
	if c.Endpoint.AuthURL == "" {
		c.Endpoint.AuthURL = endpoint.AuthURL
	}
	if c.Endpoint.TokenURL == "" {
		c.Endpoint.TokenURL = endpoint.TokenURL
	}
	// credentials travel in the form body, which also stops oauth2 from probing both styles
	c.Endpoint.AuthStyle = oauth2.AuthStyleInParams
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

func (c Config) oauth(scopes []string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURI,
		Endpoint:     c.Endpoint,
		Scopes:       scopes,
	}
}

// withClient makes oauth2 use the adapter's HTTP client.
func (c Config) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.HTTPClient)
}

// Registry holds the enabled adapters keyed by provider, in registration order.
type Registry struct {
	order    []models.Provider
	adapters map[models.Provider]tokens.Adapter
}

func NewRegistry(adapters ...tokens.Adapter) *Registry {
	r := &Registry{adapters: map[models.Provider]tokens.Adapter{}}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces the adapter for its provider.
func (r *Registry) Register(a tokens.Adapter) {
	p := a.Provider()
	if _, ok := r.adapters[p]; !ok {
		r.order = append(r.order, p)
	}
	r.adapters[p] = a
}

func (r *Registry) Get(p models.Provider) (tokens.Adapter, bool) {
	a, ok := r.adapters[p]
	return a, ok
}

// Lookup resolves a provider name from a URL path segment.
func (r *Registry) Lookup(name string) (tokens.Adapter, error) {
	p, ok := models.ParseProvider(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", shared.ErrUnknownProvider, name)
	}
	a, ok := r.adapters[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not enabled", shared.ErrUnknownProvider, p)
	}
	return a, nil
}

// All returns the registered adapters in registration order.
func (r *Registry) All() []tokens.Adapter {
	all := make([]tokens.Adapter, 0, len(r.order))
	for _, p := range r.order {
		all = append(all, r.adapters[p])
	}
	return all
}

// FromConfig builds a registry containing every provider enabled in cfg.
func FromConfig(cfg shared.CredentialsConfig, client *http.Client) *Registry {
	build := func(pc shared.ProviderConfig) Config {
		return Config{
			ClientID:     pc.ClientID,
			ClientSecret: pc.ClientSecret,
			RedirectURI:  pc.RedirectURI,
			HTTPClient:   client,
		}
	}

	r := NewRegistry()
	if cfg.Google.Enabled {
		r.Register(NewGoogle(build(cfg.Google)))
	}
	if cfg.Spotify.Enabled {
		r.Register(NewSpotify(build(cfg.Spotify)))
	}
	if cfg.Facebook.Enabled {
		r.Register(NewFacebook(build(cfg.Facebook)))
	}
	return r
}

// remoteError converts an oauth2 or transport failure into a [shared.RemoteError] of the given kind.
func remoteError(p models.Provider, op string, kind error, err error) error {
	re := &shared.RemoteError{Provider: string(p), Op: op, Kind: kind}

	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		if retrieve.Response != nil {
			re.StatusCode = retrieve.Response.StatusCode
		}
		re.Body = string(retrieve.Body)
		return re
	}

	re.Err = err
	return re
}

// expiresIn reads the relative lifetime from a token response, whether it was decoded from JSON or a form body.
func expiresIn(tok *oauth2.Token) (time.Duration, bool) {
	var secs int64
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		secs = int64(v)
	case int64:
		secs = v
	case json.Number:
		secs, _ = v.Int64()
	case string:
		secs, _ = strconv.ParseInt(v, 10, 64)
	}
	if secs <= 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

func extraString(tok *oauth2.Token, key string) string {
	s, _ := tok.Extra(key).(string)
	return s
}

func tokenType(t string) string {
	if t == "" {
		return "Bearer"
	}
	return t
}
