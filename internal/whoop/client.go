// Package whoop is a thin authenticated client for the WHOOP data endpoints.
// Resource payloads are passed through as raw JSON, not modeled.
package whoop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

// ErrAuthExpired indicates a data endpoint rejected our token twice in a row:
// once with the token we held and again right after a forced refresh. The
// refresh itself succeeded, so this points at a server-side inconsistency
// rather than a stale local pair.
var ErrAuthExpired = errors.New("authorization expired: token rejected after refresh")

// RequestError is any non-auth-related failed data call, surfaced as-is.
type RequestError struct {
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("api request failed (status %d): %s", e.StatusCode, e.Body)
}

// TokenSource supplies valid access tokens. Satisfied by *tokenmanager.Manager.
type TokenSource interface {
	// AccessToken returns a currently valid access token, refreshing if needed.
	AccessToken(ctx context.Context) (string, error)

	// ForceRefresh returns a replacement for a token the server rejected.
	// The source may satisfy it without a new grant when the rejected token
	// has already been superseded.
	ForceRefresh(ctx context.Context, rejected string) (string, error)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client for data requests.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// Client issues authenticated GETs against the WHOOP resource paths.
type Client struct {
	baseURL    *url.URL
	tokens     TokenSource
	httpClient *http.Client
}

// New creates a Client rooted at baseURL.
func New(baseURL string, tokens TokenSource, opts ...ClientOption) (*Client, error) {
	if tokens == nil {
		return nil, fmt.Errorf("missing token source")
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	c := &Client{
		baseURL: u,
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Profile returns the authenticated user's profile.
func (c *Client) Profile(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/profile", Query{})
}

// Recovery returns recovery records matching the query.
func (c *Client) Recovery(ctx context.Context, q Query) (json.RawMessage, error) {
	return c.get(ctx, "/recovery", q)
}

// Sleep returns sleep records matching the query.
func (c *Client) Sleep(ctx context.Context, q Query) (json.RawMessage, error) {
	return c.get(ctx, "/sleep", q)
}

// Workout returns workout records matching the query.
func (c *Client) Workout(ctx context.Context, q Query) (json.RawMessage, error) {
	return c.get(ctx, "/workout", q)
}

// Summary fetches profile, recovery, sleep, and workout concurrently and
// returns them under one document. A valid token is obtained up front so the
// fan-out normally skips per-fetch refreshes; a mid-flight invalidation
// costs one shared refresh via the token source's single-flight ForceRefresh.
func (c *Client) Summary(ctx context.Context, q Query) (json.RawMessage, error) {
	if _, err := c.tokens.AccessToken(ctx); err != nil {
		return nil, err
	}

	var profile, recovery, sleep, workout json.RawMessage

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { profile, err = c.Profile(gCtx); return })
	g.Go(func() (err error) { recovery, err = c.Recovery(gCtx, q); return })
	g.Go(func() (err error) { sleep, err = c.Sleep(gCtx, q); return })
	g.Go(func() (err error) { workout, err = c.Workout(gCtx, q); return })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return json.Marshal(map[string]json.RawMessage{
		"profile":  profile,
		"recovery": recovery,
		"sleep":    sleep,
		"workout":  workout,
	})
}

// get issues one authenticated GET. On HTTP 401 it forces exactly one token
// refresh and retries once; a second 401 surfaces as ErrAuthExpired. No other
// status is retried.
func (c *Client) get(ctx context.Context, path string, q Query) (json.RawMessage, error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	status, body, err := c.do(ctx, token, path, q)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		// Token invalidated server-side between validity check and use.
		token, err = c.tokens.ForceRefresh(ctx, token)
		if err != nil {
			return nil, err
		}
		status, body, err = c.do(ctx, token, path, q)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			return nil, ErrAuthExpired
		}
	}

	if status < 200 || status > 299 {
		return nil, &RequestError{StatusCode: status, Body: string(body)}
	}
	return json.RawMessage(body), nil
}

// do performs a single bearer-authenticated GET and returns the raw outcome.
// Transport failures surface unclassified; the caller never retries them.
func (c *Client) do(ctx context.Context, token, path string, q Query) (int, []byte, error) {
	u := c.baseURL.JoinPath(path)
	u.RawQuery = q.values().Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("requesting %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("reading response from %s: %w", path, err)
	}

	return resp.StatusCode, body, nil
}
