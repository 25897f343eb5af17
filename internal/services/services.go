// package services fetches analytics and profile data from provider APIs on behalf of an authenticated session
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/Boomlive-ai/analytics.boomlive.in/internal/shared"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/tokens"
)

// maxResponseSize caps how much of a provider response is read into memory.
const maxResponseSize = 10 << 20

// Client issues authenticated JSON requests to provider data APIs.
//
// All requests share one rate limiter so a burst of dashboard refreshes cannot exhaust provider quotas.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewClient creates a [Client]. A non-positive perSecond disables rate limiting.
func NewClient(httpClient *http.Client, perSecond float64, logger *log.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	limit := rate.Inf
	burst := 1
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
		burst = max(1, int(perSecond))
	}

	return &Client{httpClient: httpClient, limiter: rate.NewLimiter(limit, burst), logger: logger}
}

// doRequest sends one request with the bearer token and decodes a 2xx JSON body into result.
//
// Any other status becomes a [shared.RemoteError] of kind [shared.ErrAPIRequest] carrying the status and raw body.
func (c *Client) doRequest(ctx context.Context, provider, accessToken, method, endpoint string, body, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	op := method + " " + redactQuery(req.URL)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &shared.RemoteError{Provider: provider, Op: op, Kind: shared.ErrAPIRequest, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &shared.RemoteError{Provider: provider, Op: op, StatusCode: resp.StatusCode, Kind: shared.ErrAPIRequest, Err: err}
	}

	c.logger.Debug("provider request", "provider", provider, "op", op, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &shared.RemoteError{Provider: provider, Op: op, StatusCode: resp.StatusCode, Body: string(data), Kind: shared.ErrAPIRequest}
	}

	if result == nil {
		return nil
	}

	if raw, ok := result.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], data...)
		return nil
	}

	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", provider, err)
	}
	return nil
}

// token resolves a usable access token, refreshing it if due.
func token(ctx context.Context, src tokens.TokenSource) (string, error) {
	if src == nil {
		return "", shared.ErrNotAuthenticated
	}
	return src.Token(ctx)
}

// redactQuery drops query values named like credentials from a URL used in logs and errors.
func redactQuery(u *url.URL) string {
	q := u.Query()
	if q.Has("access_token") {
		q.Set("access_token", "REDACTED")
	}
	c := *u
	c.RawQuery = q.Encode()
	return c.String()
}

// DateRange is an inclusive reporting window in YYYY-MM-DD form.
type DateRange struct {
	Start string
	End   string
}

// DefaultDateRange is used when a request does not name a window.
var DefaultDateRange = DateRange{Start: "2024-01-01", End: "2024-04-01"}
