// Spotify Web API reads for the authenticated user
//
// Bodies are passed through unchanged; see https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Boomlive-ai/analytics.boomlive.in/internal/shared"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/tokens"
)

const spotifyBaseURL = "https://api.spotify.com/v1"

// followedArtists is the envelope of /me/following. Only the envelope is decoded.
type followedArtists struct {
	Artists json.RawMessage `json:"artists"`
}

// TopQuery selects the affinity window and page size for top items.
type TopQuery struct {
	TimeRange string // short_term, medium_term or long_term
	Limit     int
	Offset    int
}

func (q TopQuery) values() url.Values {
	v := url.Values{}
	if q.TimeRange != "" {
		v.Set("time_range", q.TimeRange)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	return v
}

// SpotifyService reads profile and listening data for the authenticated Spotify user.
type SpotifyService struct {
	client *Client
}

func NewSpotifyService(c *Client) *SpotifyService {
	return &SpotifyService{client: c}
}

func (s *SpotifyService) get(ctx context.Context, src tokens.TokenSource, endpoint string, result any) error {
	tok, err := token(ctx, src)
	if err != nil {
		return err
	}
	return s.client.doRequest(ctx, "spotify", tok, http.MethodGet, spotifyBaseURL+endpoint, nil, result)
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context, src tokens.TokenSource) (json.RawMessage, error) {
	var out json.RawMessage
	if err := s.get(ctx, src, "/me", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FollowedArtists retrieves one cursor page of artists the user follows and returns the page object
// (items, total, limit, next, cursors). after is the cursor from the previous page.
func (s *SpotifyService) FollowedArtists(ctx context.Context, src tokens.TokenSource, limit int, after string) (json.RawMessage, error) {
	q := url.Values{"type": {"artist"}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if after != "" {
		q.Set("after", after)
	}

	var out followedArtists
	if err := s.get(ctx, src, "/me/following?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	if len(out.Artists) == 0 {
		return json.RawMessage("null"), nil
	}
	return out.Artists, nil
}

// TopArtists retrieves the user's top artists.
func (s *SpotifyService) TopArtists(ctx context.Context, src tokens.TokenSource, q TopQuery) (json.RawMessage, error) {
	var out json.RawMessage
	if err := s.top(ctx, src, "artists", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TopTracks retrieves the user's top tracks.
func (s *SpotifyService) TopTracks(ctx context.Context, src tokens.TokenSource, q TopQuery) (json.RawMessage, error) {
	var out json.RawMessage
	if err := s.top(ctx, src, "tracks", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SpotifyService) top(ctx context.Context, src tokens.TokenSource, kind string, q TopQuery, result any) error {
	switch kind {
	case "artists", "tracks":
	default:
		return fmt.Errorf("%w: top item type %q", shared.ErrInvalidArgument, kind)
	}

	endpoint := "/me/top/" + kind
	if v := q.values(); len(v) > 0 {
		endpoint += "?" + v.Encode()
	}
	return s.get(ctx, src, endpoint, result)
}
