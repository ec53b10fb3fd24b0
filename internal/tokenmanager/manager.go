// Package tokenmanager holds the in-memory token pair for the process and
// refreshes it transparently before use.
//
// The manager is the single source of truth for the pair once loaded; the
// stored copy mirrors it. A Manager is safe for concurrent use: a mutex
// serializes loads, refreshes, and state updates, so concurrent callers see
// at most one refresh per stale token.
package tokenmanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/whoopctl/whoopctl/internal/authflow"
	"github.com/whoopctl/whoopctl/internal/credstore"
)

// expirySkew is the headroom subtracted from the token's expiry when deciding
// whether it is still usable, avoiding races with the provider's own clock.
const expirySkew = 60 * time.Second

// ErrNotAuthenticated indicates no token pair exists at all; run the login
// flow first.
var ErrNotAuthenticated = errors.New("not authenticated, run login first")

// ErrReauthenticationRequired indicates the refresh token was rejected by the
// provider. The caller must run the full interactive login again; the manager
// never auto-triggers it.
var ErrReauthenticationRequired = errors.New("reauthentication required")

// Refresher performs the refresh grant. Satisfied by *authflow.Flow.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*authflow.TokenPair, error)
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock overrides the clock used for expiry checks. Intended for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// Manager owns the process's token pair. On construction no I/O happens; the
// stored pair is loaded lazily on first use, and absence is not an error.
type Manager struct {
	store     credstore.TokenStore
	refresher Refresher
	now       func() time.Time

	mu     sync.Mutex
	loaded bool
	pair   *authflow.TokenPair
}

// Compile-time check to ensure Manager implements oauth2.TokenSource
var _ oauth2.TokenSource = (*Manager)(nil)

// New creates a Manager backed by the given store and refresher.
func New(store credstore.TokenStore, refresher Refresher, opts ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("missing token store")
	}
	if refresher == nil {
		return nil, fmt.Errorf("missing refresher")
	}

	m := &Manager{
		store:     store,
		refresher: refresher,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// load pulls the persisted pair into memory once. A missing pair leaves the
// manager unauthenticated without error. Caller holds m.mu.
func (m *Manager) load(ctx context.Context) error {
	if m.loaded {
		return nil
	}

	pair, err := m.store.Load(ctx)
	if err != nil {
		if errors.Is(err, credstore.ErrNotFound) {
			m.loaded = true
			return nil
		}
		return fmt.Errorf("loading stored tokens: %w", err)
	}

	m.pair = pair
	m.loaded = true
	return nil
}

// AccessToken returns an access token that is valid for at least the skew
// margin. A stale token triggers exactly one synchronous refresh; the fresh
// pair replaces the old one in memory and on disk before the token is
// returned. A rejected refresh surfaces as ErrReauthenticationRequired and
// leaves the last-known-good pair untouched.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accessToken(ctx)
}

func (m *Manager) accessToken(ctx context.Context) (string, error) {
	if err := m.load(ctx); err != nil {
		return "", err
	}
	if m.pair == nil {
		return "", ErrNotAuthenticated
	}

	if !m.pair.Stale(m.now(), expirySkew) {
		return m.pair.AccessToken, nil
	}
	return m.refresh(ctx)
}

// ForceRefresh refreshes regardless of the current token's expiry. Used by
// the API client when the server rejects a token we still considered valid;
// rejected is that token. When the held token already differs (a concurrent
// caller refreshed first) the current token is returned without another
// grant, so N simultaneous 401s cost one refresh.
func (m *Manager) ForceRefresh(ctx context.Context, rejected string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.load(ctx); err != nil {
		return "", err
	}
	if m.pair == nil {
		return "", ErrNotAuthenticated
	}
	if m.pair.AccessToken != rejected {
		return m.pair.AccessToken, nil
	}
	return m.refresh(ctx)
}

// refresh runs the refresh grant and installs the result. Caller holds m.mu.
func (m *Manager) refresh(ctx context.Context) (string, error) {
	if m.pair.RefreshToken == "" {
		return "", fmt.Errorf("%w: no refresh token stored", ErrReauthenticationRequired)
	}

	pair, err := m.refresher.Refresh(ctx, m.pair.RefreshToken)
	if err != nil {
		var refreshErr *authflow.RefreshError
		if errors.As(err, &refreshErr) {
			// Memory and disk keep the last-known-good pair.
			return "", fmt.Errorf("%w: %w", ErrReauthenticationRequired, err)
		}
		return "", fmt.Errorf("refreshing tokens: %w", err)
	}

	// Persist before use so a follow-up process starts from the fresh pair.
	// A failed write is data loss for future refreshes but the token itself
	// is valid, so the call still succeeds.
	if err := m.store.Save(ctx, pair); err != nil {
		slog.ErrorContext(ctx, "failed to persist refreshed tokens", "error", err)
	}

	m.pair = pair
	return pair.AccessToken, nil
}

// SetTokens installs a freshly exchanged pair (from login) and persists it.
func (m *Manager) SetTokens(ctx context.Context, pair *authflow.TokenPair) error {
	if pair == nil {
		return fmt.Errorf("missing token pair")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Save(ctx, pair); err != nil {
		return fmt.Errorf("persisting tokens: %w", err)
	}

	m.pair = pair
	m.loaded = true
	return nil
}

// Clear drops the pair from memory and storage (logout).
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Delete(ctx); err != nil {
		return fmt.Errorf("deleting stored tokens: %w", err)
	}
	m.pair = nil
	m.loaded = true
	return nil
}

// IsAuthenticated reports whether a token pair is present and either still
// valid or refreshable. Performs no network I/O.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.load(context.Background()); err != nil {
		return false
	}
	if m.pair == nil {
		return false
	}
	return !m.pair.Stale(m.now(), expirySkew) || m.pair.RefreshToken != ""
}

// Token implements oauth2.TokenSource so the manager can back an
// oauth2.Transport or any other ecosystem consumer.
func (m *Manager) Token() (*oauth2.Token, error) {
	// oauth2.TokenSource.Token() has no context parameter (legacy interface limitation)
	ctx := context.Background()

	m.mu.Lock()
	defer m.mu.Unlock()

	accessToken, err := m.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	return &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: m.pair.RefreshToken,
		Expiry:       m.pair.ExpiresAt,
		TokenType:    "Bearer",
	}, nil
}
