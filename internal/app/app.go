package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"sync"

	"golang.org/x/oauth2"

	"github.com/whoopctl/whoopctl/internal/authflow"
	"github.com/whoopctl/whoopctl/internal/credstore"
	"github.com/whoopctl/whoopctl/internal/tokenmanager"
	"github.com/whoopctl/whoopctl/internal/whoop"
)

// App wires the session components together: credential store →
// authorization flow → token manager → API client.
type App struct {
	cfg     *Config
	manager *tokenmanager.Manager
	client  *whoop.Client

	flowMu sync.Mutex
	flow   *authflow.Flow
}

// New assembles the session components. Identity resolution and token I/O
// are deferred to first use, so commands that never touch the token endpoint
// (status, logout) work without client credentials configured.
func New(ctx context.Context, cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := cfg.Auth.NewTokenStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create token store: %w", err)
	}

	a := &App{cfg: cfg}

	manager, err := tokenmanager.New(store, lazyRefresher{app: a})
	if err != nil {
		return nil, fmt.Errorf("failed to create token manager: %w", err)
	}
	a.manager = manager

	client, err := whoop.New(cfg.API.BaseURL, manager)
	if err != nil {
		return nil, fmt.Errorf("failed to create api client: %w", err)
	}
	a.client = client

	return a, nil
}

// authFlow returns the authorization flow, resolving the client identity
// (and running the first-run prompt when enabled) on first call.
func (a *App) authFlow(ctx context.Context) (*authflow.Flow, error) {
	a.flowMu.Lock()
	defer a.flowMu.Unlock()

	if a.flow != nil {
		return a.flow, nil
	}

	identity, err := resolveIdentity(ctx, a.cfg)
	if err != nil {
		return nil, err
	}

	flow, err := authflow.New(authflow.Config{
		ClientID:     identity.ClientID,
		ClientSecret: identity.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   a.cfg.OAuth.AuthURL,
			TokenURL:  a.cfg.OAuth.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURI: a.cfg.OAuth.RedirectURI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization flow: %w", err)
	}

	a.flow = flow
	return flow, nil
}

// lazyRefresher runs the refresh grant through the app's flow, resolving the
// client identity only when a refresh is actually needed.
type lazyRefresher struct {
	app *App
}

var _ tokenmanager.Refresher = lazyRefresher{}

func (r lazyRefresher) Refresh(ctx context.Context, refreshToken string) (*authflow.TokenPair, error) {
	flow, err := r.app.authFlow(ctx)
	if err != nil {
		return nil, err
	}
	return flow.Refresh(ctx, refreshToken)
}

// resolveIdentity walks the configured credential sources: environment,
// settings file, then (when enabled) the interactive prompt.
func resolveIdentity(ctx context.Context, cfg *Config) (*credstore.Identity, error) {
	resolvers := []credstore.IdentityResolver{
		credstore.EnvResolver{},
		credstore.FileResolver{Path: cfg.Auth.SettingsFile},
	}
	if cfg.Auth.Prompt {
		resolvers = append(resolvers, credstore.PromptResolver{
			In:           os.Stdin,
			Out:          os.Stderr,
			SettingsPath: cfg.Auth.SettingsFile,
		})
	}
	return credstore.ResolveIdentity(ctx, resolvers...)
}

// Login runs the interactive authorization-code flow and installs the
// resulting token pair.
func (a *App) Login(ctx context.Context, provider authflow.CodeProvider) error {
	flow, err := a.authFlow(ctx)
	if err != nil {
		return err
	}

	req, err := flow.Begin()
	if err != nil {
		return err
	}

	code, state, err := provider.Prompt(ctx, req)
	if err != nil {
		return fmt.Errorf("capturing authorization code: %w", err)
	}

	pair, err := flow.SubmitCode(ctx, code, state)
	if err != nil {
		return err
	}

	if err := a.manager.SetTokens(ctx, pair); err != nil {
		return err
	}

	slog.InfoContext(ctx, "login complete", "expires_at", pair.ExpiresAt)
	return nil
}

// Logout drops the persisted session.
func (a *App) Logout(ctx context.Context) error {
	return a.manager.Clear(ctx)
}

// Authenticated reports whether a valid or refreshable session exists.
func (a *App) Authenticated() bool {
	return a.manager.IsAuthenticated()
}

// Client returns the authenticated API client.
func (a *App) Client() *whoop.Client {
	return a.client
}

// NewCodeProvider picks the code-capture strategy for this configuration: a
// local callback server when the redirect URI is a loopback address, the
// console paste flow otherwise.
func (a *App) NewCodeProvider() authflow.CodeProvider {
	if isLoopback(a.cfg.OAuth.RedirectURI) {
		return &authflow.CallbackCodeProvider{RedirectURI: a.cfg.OAuth.RedirectURI}
	}
	return &authflow.ConsoleCodeProvider{In: os.Stdin, Out: os.Stderr}
}

// isLoopback reports whether the URL's host resolves locally enough to bind a
// callback server on it.
func isLoopback(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
