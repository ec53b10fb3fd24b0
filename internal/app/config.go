package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"

	"github.com/go-playground/validator/v10"

	"github.com/whoopctl/whoopctl/internal/credstore"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText       LogFormat = "text"
	LogFormatJSON       LogFormat = "json"
	LogFormatOTLP       LogFormat = "otlp"
	LogFormatOTLPGRPC   LogFormat = "otlp-grpc"
	LogFormatOTLPStdout LogFormat = "otlp-stdout"
)

// TokenStorageType represents the supported token storage backends.
type TokenStorageType string

const (
	TokenStorageTypeFile    TokenStorageType = "file"
	TokenStorageTypeKeyring TokenStorageType = "keyring"
)

// Default configuration values
const (
	DefaultConfigLogFormat   = LogFormatText
	DefaultConfigAuthStorage = TokenStorageTypeFile

	// WHOOP production endpoints.
	DefaultConfigAuthURL    = "https://api.prod.whoop.com/oauth/oauth2/auth"
	DefaultConfigTokenURL   = "https://api.prod.whoop.com/oauth/oauth2/token"
	DefaultConfigAPIBaseURL = "https://api.prod.whoop.com/developer/v1"

	// Placeholder redirect target used when no local callback server is
	// configured; the user pastes the redirect URL from this page.
	DefaultConfigRedirectURI = "https://www.google.com"

	// Per-user session directory.
	sessionDirName   = ".whoop_sdk"
	tokenFileName    = "tokens.json"
	settingsFileName = "settings.json"
)

// AuthConfig describes how the session is persisted and how the client
// identity is resolved.
type AuthConfig struct {
	// Storage backend for the token pair.
	Storage TokenStorageType `json:"storage" validate:"required,oneof=file keyring"`

	// Storage-specific settings (mutually exclusive based on Storage type)
	TokenFile   string `json:"token_file,omitempty"`   // For file storage: path to token file
	KeyringUser string `json:"keyring_user,omitempty"` // For keyring storage: user identifier

	// SettingsFile holds the persisted client identity. Environment variables
	// WHOOP_CLIENT_ID / WHOOP_CLIENT_SECRET take priority over it.
	SettingsFile string `json:"settings_file,omitempty"`

	// Prompt enables the interactive first-run credential prompt when neither
	// the environment nor the settings file yields an identity.
	Prompt bool `json:"prompt"`
}

// NewTokenStore creates a TokenStore from the authentication configuration.
func (a *AuthConfig) NewTokenStore() (credstore.TokenStore, error) {
	switch a.Storage {
	case TokenStorageTypeFile:
		return credstore.NewFileTokenStore(a.TokenFile)
	case TokenStorageTypeKeyring:
		return credstore.NewKeyringTokenStore("whoopctl-session", a.KeyringUser)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", a.Storage)
	}
}

// OAuthConfig holds the provider's OAuth2 endpoints and the redirect target.
type OAuthConfig struct {
	AuthURL     string `json:"auth_url" validate:"required,url"`
	TokenURL    string `json:"token_url" validate:"required,url"`
	RedirectURI string `json:"redirect_uri" validate:"required,url"`
}

// APIConfig holds the data API configuration.
type APIConfig struct {
	BaseURL string `json:"base_url" validate:"required,url"`
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level  `json:"log_level"`
	LogFormat LogFormat   `json:"log_format" validate:"oneof=text json otlp otlp-grpc otlp-stdout"`
	Auth      AuthConfig  `json:"auth"`
	OAuth     OAuthConfig `json:"oauth"`
	API       APIConfig   `json:"api"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.OAuth.AuthURL == "" {
		c.OAuth.AuthURL = DefaultConfigAuthURL
	}
	if c.OAuth.TokenURL == "" {
		c.OAuth.TokenURL = DefaultConfigTokenURL
	}
	if c.OAuth.RedirectURI == "" {
		c.OAuth.RedirectURI = DefaultConfigRedirectURI
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultConfigAPIBaseURL
	}
	if c.Auth.Storage == "" {
		c.Auth.Storage = DefaultConfigAuthStorage
	}

	if c.Auth.SettingsFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("auth.settings_file required (auto-detect failed: %w)", err)
		}
		c.Auth.SettingsFile = filepath.Join(home, sessionDirName, settingsFileName)
	}

	// Dynamic defaults based on storage type
	switch c.Auth.Storage {
	case TokenStorageTypeFile:
		if c.Auth.TokenFile == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("auth.token_file required (auto-detect failed: %w)", err)
			}
			c.Auth.TokenFile = filepath.Join(home, sessionDirName, tokenFileName)
		}
	case TokenStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("auth.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Auth.KeyringUser = currentUser.Username
		}
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Auth.Storage {
	case TokenStorageTypeFile:
		if c.Auth.TokenFile == "" {
			return errors.New("token_file required for file storage")
		}
	case TokenStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			return errors.New("keyring_user required for keyring storage")
		}
	}

	return nil
}
