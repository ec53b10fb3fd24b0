package authflow

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

// mockTransport captures token-endpoint requests and returns canned responses
type mockTransport struct {
	calls        int
	capturedForm url.Values
	contentType  string

	responseStatus int
	responseBody   string
}

func (m *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	m.calls++
	m.contentType = req.Header.Get("Content-Type")

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	if err := req.Body.Close(); err != nil {
		return nil, err
	}
	m.capturedForm, err = url.ParseQuery(string(body))
	if err != nil {
		return nil, err
	}

	return &http.Response{
		StatusCode: m.responseStatus,
		Body:       io.NopCloser(strings.NewReader(m.responseBody)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Request:    req,
	}, nil
}

var testEndpoint = oauth2.Endpoint{
	AuthURL:   "https://auth.example.com/oauth2/auth",
	TokenURL:  "https://auth.example.com/oauth2/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

func newTestFlow(t *testing.T, transport *mockTransport, now time.Time) *Flow {
	t.Helper()

	flow, err := New(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Endpoint:     testEndpoint,
		RedirectURI:  "https://www.google.com",
	}, WithTransport(transport), WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return flow
}

func TestBeginBuildsAuthorizeURL(t *testing.T) {
	flow := newTestFlow(t, &mockTransport{}, time.Now())

	req, err := flow.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if flow.State() != StateAwaitingCode {
		t.Errorf("state = %s, want %s", flow.State(), StateAwaitingCode)
	}

	u, err := url.Parse(req.URL)
	if err != nil {
		t.Fatalf("authorize URL does not parse: %v", err)
	}
	q := u.Query()

	checks := map[string]string{
		"client_id":     "client-id",
		"redirect_uri":  "https://www.google.com",
		"response_type": "code",
		"scope":         "offline read:profile read:recovery read:sleep read:workout",
		"state":         req.State,
	}
	for key, want := range checks {
		if got := q.Get(key); got != want {
			t.Errorf("query %s = %q, want %q", key, got, want)
		}
	}
	if req.State == "" {
		t.Error("Begin issued an empty state nonce")
	}

	// A restarted login must not reuse the nonce.
	req2, err := flow.Begin()
	if err != nil {
		t.Fatalf("second Begin: %v", err)
	}
	if req2.State == req.State {
		t.Error("second Begin reused the state nonce")
	}
}

func TestSubmitCodeStateMismatch(t *testing.T) {
	transport := &mockTransport{responseStatus: http.StatusOK}
	flow := newTestFlow(t, transport, time.Now())

	if _, err := flow.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	_, err := flow.SubmitCode(context.Background(), "some-code", "forged-state")
	if !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("error = %v, want ErrStateMismatch", err)
	}
	if transport.calls != 0 {
		t.Errorf("token endpoint called %d times, want 0", transport.calls)
	}
	if flow.State() != StateFailed {
		t.Errorf("state = %s, want %s", flow.State(), StateFailed)
	}
}

func TestSubmitCodeWithoutBegin(t *testing.T) {
	flow := newTestFlow(t, &mockTransport{}, time.Now())

	if _, err := flow.SubmitCode(context.Background(), "code", "state"); err == nil {
		t.Fatal("expected error when no login is in progress")
	}
}

func TestSubmitCodeExchange(t *testing.T) {
	exchangeTime := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	transport := &mockTransport{
		responseStatus: http.StatusOK,
		responseBody:   `{"access_token":"at-1","refresh_token":"rt-1","expires_in":3600,"token_type":"bearer"}`,
	}
	flow := newTestFlow(t, transport, exchangeTime)

	req, err := flow.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	pair, err := flow.SubmitCode(context.Background(), "the-code", req.State)
	if err != nil {
		t.Fatalf("SubmitCode: %v", err)
	}

	if pair.AccessToken != "at-1" || pair.RefreshToken != "rt-1" {
		t.Errorf("pair = %+v, want at-1/rt-1", pair)
	}
	// Expiry is exchange time plus expires_in, exactly; skew belongs to the
	// token manager, not to creation.
	if want := exchangeTime.Add(time.Hour); !pair.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", pair.ExpiresAt, want)
	}
	if flow.State() != StateComplete {
		t.Errorf("state = %s, want %s", flow.State(), StateComplete)
	}

	if transport.contentType != "application/x-www-form-urlencoded" {
		t.Errorf("Content-Type = %q", transport.contentType)
	}
	form := transport.capturedForm
	for key, want := range map[string]string{
		"grant_type":    "authorization_code",
		"code":          "the-code",
		"redirect_uri":  "https://www.google.com",
		"client_id":     "client-id",
		"client_secret": "client-secret",
	} {
		if got := form.Get(key); got != want {
			t.Errorf("form %s = %q, want %q", key, got, want)
		}
	}
}

func TestSubmitCodeRejected(t *testing.T) {
	transport := &mockTransport{
		responseStatus: http.StatusBadRequest,
		responseBody:   `{"error":"invalid_grant"}`,
	}
	flow := newTestFlow(t, transport, time.Now())

	req, err := flow.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	_, err = flow.SubmitCode(context.Background(), "expired-code", req.State)
	var exchangeErr *ExchangeError
	if !errors.As(err, &exchangeErr) {
		t.Fatalf("error = %v, want *ExchangeError", err)
	}
	if exchangeErr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", exchangeErr.StatusCode)
	}
	if !strings.Contains(exchangeErr.Body, "invalid_grant") {
		t.Errorf("Body = %q, want provider body", exchangeErr.Body)
	}
	if flow.State() != StateFailed {
		t.Errorf("state = %s, want %s", flow.State(), StateFailed)
	}
}

func TestRefresh(t *testing.T) {
	tests := []struct {
		name             string
		responseBody     string
		wantRefreshToken string
	}{
		{
			name:             "provider rotates refresh token",
			responseBody:     `{"access_token":"at-2","refresh_token":"rt-2","expires_in":3600}`,
			wantRefreshToken: "rt-2",
		},
		{
			name:             "provider omits refresh token, prior one retained",
			responseBody:     `{"access_token":"at-2","expires_in":3600}`,
			wantRefreshToken: "rt-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refreshTime := time.Date(2026, 8, 27, 15, 30, 0, 0, time.UTC)
			transport := &mockTransport{responseStatus: http.StatusOK, responseBody: tt.responseBody}
			flow := newTestFlow(t, transport, refreshTime)

			pair, err := flow.Refresh(context.Background(), "rt-1")
			if err != nil {
				t.Fatalf("Refresh: %v", err)
			}

			if pair.AccessToken != "at-2" {
				t.Errorf("AccessToken = %q, want at-2", pair.AccessToken)
			}
			if pair.RefreshToken != tt.wantRefreshToken {
				t.Errorf("RefreshToken = %q, want %q", pair.RefreshToken, tt.wantRefreshToken)
			}
			if want := refreshTime.Add(time.Hour); !pair.ExpiresAt.Equal(want) {
				t.Errorf("ExpiresAt = %v, want %v", pair.ExpiresAt, want)
			}
			if got := transport.capturedForm.Get("grant_type"); got != "refresh_token" {
				t.Errorf("grant_type = %q", got)
			}
		})
	}
}

func TestRefreshRejected(t *testing.T) {
	transport := &mockTransport{
		responseStatus: http.StatusBadRequest,
		responseBody:   `{"error":"invalid_grant"}`,
	}
	flow := newTestFlow(t, transport, time.Now())

	_, err := flow.Refresh(context.Background(), "revoked")
	var refreshErr *RefreshError
	if !errors.As(err, &refreshErr) {
		t.Fatalf("error = %v, want *RefreshError", err)
	}
	if refreshErr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", refreshErr.StatusCode)
	}
}

func TestTokenPairStale(t *testing.T) {
	now := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	skew := 60 * time.Second

	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{"expires in an hour", now.Add(time.Hour), false},
		{"expires just outside skew", now.Add(61 * time.Second), false},
		{"expires within skew", now.Add(30 * time.Second), true},
		{"expires exactly at skew boundary", now.Add(skew), true},
		{"already expired", now.Add(-time.Minute), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pair := &TokenPair{ExpiresAt: tt.expiresAt}
			if got := pair.Stale(now, skew); got != tt.want {
				t.Errorf("Stale = %v, want %v", got, tt.want)
			}
		})
	}
}
