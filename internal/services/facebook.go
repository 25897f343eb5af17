package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Boomlive-ai/analytics.boomlive.in/internal/shared"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/tokens"
)

const (
	facebookGraphURL = "https://graph.facebook.com/v18.0"
	pageMetrics      = "page_impressions,page_engaged_users,page_fan_adds"
)

// FacebookService reads insights for pages the user manages.
type FacebookService struct {
	client *Client
}

func NewFacebookService(c *Client) *FacebookService {
	return &FacebookService{client: c}
}

// PageInsights returns daily impressions, engaged users and new fans for a page.
func (s *FacebookService) PageInsights(ctx context.Context, src tokens.TokenSource, pageID string) (json.RawMessage, error) {
	if pageID == "" {
		return nil, fmt.Errorf("%w: page_id", shared.ErrMissingArgument)
	}

	tok, err := token(ctx, src)
	if err != nil {
		return nil, err
	}

	q := url.Values{"metric": {pageMetrics}, "period": {"day"}}
	endpoint := fmt.Sprintf("%s/%s/insights?%s", facebookGraphURL, url.PathEscape(pageID), q.Encode())

	var out json.RawMessage
	if err := s.client.doRequest(ctx, "facebook", tok, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
