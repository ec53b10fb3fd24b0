package authflow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Scopes are the WHOOP API scopes requested during login. The offline scope
// is required for the provider to issue a refresh token.
var Scopes = []string{"offline", "read:profile", "read:recovery", "read:sleep", "read:workout"}

// FlowState identifies where an interactive login currently stands.
type FlowState string

const (
	StateNotStarted   FlowState = "not_started"
	StateAwaitingCode FlowState = "awaiting_code"
	StateExchanging   FlowState = "exchanging"
	StateComplete     FlowState = "complete"
	StateFailed       FlowState = "failed"
)

// TokenPair is the persisted outcome of a code exchange or refresh.
// ExpiresAt is always exchange time plus the provider's expires_in; staleness
// skew is applied by the token manager at read time, never at creation.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Stale reports whether the access token must not be used to authenticate a
// request at the given instant, leaving skew headroom for clock drift between
// us and the provider.
func (t *TokenPair) Stale(now time.Time, skew time.Duration) bool {
	return !now.Before(t.ExpiresAt.Add(-skew))
}

// AuthorizationRequest is the ephemeral output of Begin. State is a per-login
// nonce correlated against the provider's redirect; it is never persisted.
type AuthorizationRequest struct {
	URL   string
	State string
}

// FlowOption configures a Flow.
type FlowOption func(*Flow)

// WithTransport sets a custom base transport for token-endpoint requests.
// If not provided, http.DefaultTransport is used.
func WithTransport(transport http.RoundTripper) FlowOption {
	return func(f *Flow) {
		f.httpClient.Transport = transport
	}
}

// WithClock overrides the clock used to compute token expiry. Intended for
// tests that need a deterministic expires_at.
func WithClock(now func() time.Time) FlowOption {
	return func(f *Flow) {
		f.now = now
	}
}

// Config holds the provider and client parameters of a Flow.
type Config struct {
	ClientID     string
	ClientSecret string
	Endpoint     oauth2.Endpoint
	RedirectURI  string
}

// Flow performs the authorization-code grant against the WHOOP OAuth2
// endpoints. A Flow instance covers a single login attempt; Refresh is
// stateless and may be called on any Flow regardless of its state.
type Flow struct {
	cfg        Config
	httpClient *http.Client
	now        func() time.Time

	state FlowState
	nonce string
}

// New creates a Flow for the given client identity and endpoints.
func New(cfg Config, opts ...FlowOption) (*Flow, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("client credentials are required")
	}
	if cfg.Endpoint.AuthURL == "" || cfg.Endpoint.TokenURL == "" {
		return nil, fmt.Errorf("oauth endpoints are required")
	}

	f := &Flow{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second, // bounds every token-endpoint round trip
		},
		now:   time.Now,
		state: StateNotStarted,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// State returns the current state of the interactive login.
func (f *Flow) State() FlowState {
	return f.state
}

// Begin constructs the authorization URL and issues a fresh state nonce.
// Calling Begin again restarts the login attempt (required after a failure).
func (f *Flow) Begin() (*AuthorizationRequest, error) {
	if f.state == StateExchanging {
		return nil, fmt.Errorf("code exchange already in progress")
	}

	f.nonce = uuid.NewString()
	f.state = StateAwaitingCode

	oauthCfg := &oauth2.Config{
		ClientID:     f.cfg.ClientID,
		ClientSecret: f.cfg.ClientSecret,
		Scopes:       Scopes,
		Endpoint:     f.cfg.Endpoint,
		RedirectURL:  f.cfg.RedirectURI,
	}

	return &AuthorizationRequest{
		URL:   oauthCfg.AuthCodeURL(f.nonce),
		State: f.nonce,
	}, nil
}

// SubmitCode exchanges an authorization code for a token pair. The state
// returned by the provider must match the nonce issued by Begin; a mismatch
// fails before any token-endpoint call is made (defends against response
// injection from a stale or foreign redirect).
func (f *Flow) SubmitCode(ctx context.Context, code, state string) (*TokenPair, error) {
	if f.state != StateAwaitingCode {
		return nil, fmt.Errorf("no login in progress (state %s), call Begin first", f.state)
	}
	if state != f.nonce {
		f.state = StateFailed
		return nil, ErrStateMismatch
	}

	f.state = StateExchanging

	pair, status, body, err := f.token(ctx, url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {f.cfg.RedirectURI},
		"client_id":     {f.cfg.ClientID},
		"client_secret": {f.cfg.ClientSecret},
	}, "")
	if err != nil {
		f.state = StateFailed
		if status != 0 {
			return nil, &ExchangeError{StatusCode: status, Body: body}
		}
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}

	f.state = StateComplete
	return pair, nil
}

// Refresh exchanges a refresh token for a new token pair. When the provider
// does not rotate the refresh token, the prior one is carried over so the
// returned pair is always complete.
func (f *Flow) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh token is empty")
	}

	pair, status, body, err := f.token(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {f.cfg.ClientID},
		"client_secret": {f.cfg.ClientSecret},
	}, refreshToken)
	if err != nil {
		if status != 0 {
			return nil, &RefreshError{StatusCode: status, Body: body}
		}
		return nil, fmt.Errorf("refreshing access token: %w", err)
	}
	return pair, nil
}

// tokenResponse is the provider's token-endpoint payload.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// token posts a form-encoded grant to the token endpoint and builds a
// TokenPair from the response. On a non-2xx response it returns the status
// and body so callers can raise their grant-specific error; transport
// failures return status 0.
func (f *Flow) token(ctx context.Context, form url.Values, priorRefreshToken string) (*TokenPair, int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	exchangeTime := f.now()

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, 0, "", err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, "", fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, string(body), fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, resp.StatusCode, string(body), fmt.Errorf("malformed token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, resp.StatusCode, string(body), fmt.Errorf("token response missing access_token")
	}

	refreshToken := tr.RefreshToken
	if refreshToken == "" {
		refreshToken = priorRefreshToken
	}

	return &TokenPair{
		AccessToken:  tr.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    exchangeTime.Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, resp.StatusCode, "", nil
}
