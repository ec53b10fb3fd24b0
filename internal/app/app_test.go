package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/whoopctl/whoopctl/internal/authflow"
	"github.com/whoopctl/whoopctl/internal/credstore"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	return &Config{
		LogFormat: LogFormatText,
		Auth: AuthConfig{
			Storage:      TokenStorageTypeFile,
			TokenFile:    filepath.Join(dir, "tokens.json"),
			SettingsFile: filepath.Join(dir, "settings.json"),
		},
		OAuth: OAuthConfig{
			AuthURL:     DefaultConfigAuthURL,
			TokenURL:    DefaultConfigTokenURL,
			RedirectURI: DefaultConfigRedirectURI,
		},
		API: APIConfig{BaseURL: DefaultConfigAPIBaseURL},
	}
}

// Session inspection and teardown must not require the client identity:
// status and logout answer from local state alone.
func TestNewWithoutCredentials(t *testing.T) {
	t.Setenv(credstore.EnvClientID, "")
	t.Setenv(credstore.EnvClientSecret, "")

	ctx := context.Background()
	application, err := New(ctx, testConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if application.Authenticated() {
		t.Error("Authenticated = true with no stored session")
	}
	if err := application.Logout(ctx); err != nil {
		t.Errorf("Logout: %v", err)
	}
}

func TestLoginWithoutCredentials(t *testing.T) {
	t.Setenv(credstore.EnvClientID, "")
	t.Setenv(credstore.EnvClientSecret, "")

	ctx := context.Background()
	application, err := New(ctx, testConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Login needs the flow, and the flow needs an identity.
	err = application.Login(ctx, application.NewCodeProvider())
	if !errors.Is(err, credstore.ErrCredentialsNotFound) {
		t.Fatalf("error = %v, want ErrCredentialsNotFound", err)
	}
}

func TestNewCodeProviderSelection(t *testing.T) {
	tests := []struct {
		name         string
		redirectURI  string
		wantCallback bool
	}{
		{name: "loopback name", redirectURI: "http://localhost:8910/callback", wantCallback: true},
		{name: "loopback address", redirectURI: "http://127.0.0.1:8910/callback", wantCallback: true},
		{name: "remote placeholder", redirectURI: DefaultConfigRedirectURI, wantCallback: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.OAuth.RedirectURI = tt.redirectURI

			application, err := New(context.Background(), cfg)
			if err != nil {
				t.Fatalf("New: %v", err)
			}

			_, isCallback := application.NewCodeProvider().(*authflow.CallbackCodeProvider)
			if isCallback != tt.wantCallback {
				t.Errorf("callback provider = %v, want %v for %s", isCallback, tt.wantCallback, tt.redirectURI)
			}
		})
	}
}
