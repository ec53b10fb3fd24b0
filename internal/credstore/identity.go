package credstore

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
)

// Environment variables carrying the client identity. They take priority
// over the settings file.
const (
	EnvClientID     = "WHOOP_CLIENT_ID"
	EnvClientSecret = "WHOOP_CLIENT_SECRET"
)

// ErrCredentialsNotFound indicates no client id/secret is available from any
// configured source. Recoverable: configure the environment or settings file
// (or enable the interactive prompt) and retry.
var ErrCredentialsNotFound = errors.New("no client credentials found")

// Identity is the WHOOP developer application's client id and secret.
// Supplied once, immutable for the process lifetime.
type Identity struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// IdentityResolver yields a client identity from one source. Resolvers report
// ErrCredentialsNotFound when their source has no complete identity so the
// chain can move on.
type IdentityResolver interface {
	Resolve(ctx context.Context) (*Identity, error)
}

// ResolveIdentity walks the resolvers in order and returns the first complete
// identity. Sources without one are skipped; other failures abort the chain.
func ResolveIdentity(ctx context.Context, resolvers ...IdentityResolver) (*Identity, error) {
	for _, r := range resolvers {
		id, err := r.Resolve(ctx)
		if err != nil {
			if errors.Is(err, ErrCredentialsNotFound) {
				continue
			}
			return nil, err
		}
		return id, nil
	}
	return nil, ErrCredentialsNotFound
}

// EnvResolver reads the identity from WHOOP_CLIENT_ID / WHOOP_CLIENT_SECRET.
type EnvResolver struct{}

// Compile-time check to ensure EnvResolver implements IdentityResolver
var _ IdentityResolver = (*EnvResolver)(nil)

// Resolve returns the identity from the environment. Both variables must be
// set and non-empty.
func (EnvResolver) Resolve(ctx context.Context) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := Identity{
		ClientID:     os.Getenv(EnvClientID),
		ClientSecret: os.Getenv(EnvClientSecret),
	}
	if id.ClientID == "" || id.ClientSecret == "" {
		return nil, ErrCredentialsNotFound
	}
	return &id, nil
}

// FileResolver reads the identity from the settings file. An absent,
// unreadable, or incomplete file counts as not found so the chain can fall
// through to the next source.
type FileResolver struct {
	Path string
}

// Compile-time check to ensure FileResolver implements IdentityResolver
var _ IdentityResolver = (*FileResolver)(nil)

func (f FileResolver) Resolve(ctx context.Context) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: settings file %s not readable", ErrCredentialsNotFound, f.Path)
	}

	var id Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, fmt.Errorf("%w: malformed settings file %s", ErrCredentialsNotFound, f.Path)
	}
	if id.ClientID == "" || id.ClientSecret == "" {
		return nil, fmt.Errorf("%w: settings file %s incomplete", ErrCredentialsNotFound, f.Path)
	}
	return &id, nil
}

// PromptResolver asks the user for the client id and secret interactively.
// The secret is read without terminal echo when stdin is a terminal. A
// resolved identity is persisted to SettingsPath so the prompt only happens
// on first run.
type PromptResolver struct {
	In           io.Reader
	Out          io.Writer
	SettingsPath string
}

// Compile-time check to ensure PromptResolver implements IdentityResolver
var _ IdentityResolver = (*PromptResolver)(nil)

func (p PromptResolver) Resolve(ctx context.Context) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reader := bufio.NewReader(p.In)

	fmt.Fprintln(p.Out, "WHOOP setup required.")
	fmt.Fprint(p.Out, "Client ID: ")
	clientID, err := reader.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("reading client id: %w", err)
	}

	clientSecret, err := p.readSecret(reader)
	if err != nil {
		return nil, fmt.Errorf("reading client secret: %w", err)
	}

	id := &Identity{
		ClientID:     strings.TrimSpace(clientID),
		ClientSecret: strings.TrimSpace(clientSecret),
	}
	if id.ClientID == "" || id.ClientSecret == "" {
		return nil, ErrCredentialsNotFound
	}

	if p.SettingsPath != "" {
		if err := SaveIdentity(p.SettingsPath, id); err != nil {
			return nil, fmt.Errorf("saving settings: %w", err)
		}
		fmt.Fprintf(p.Out, "Credentials saved to %s\n", p.SettingsPath)
	}

	return id, nil
}

// readSecret reads the client secret without echo when stdin is a terminal,
// falling back to a plain line read otherwise (pipes, tests).
func (p PromptResolver) readSecret(reader *bufio.Reader) (string, error) {
	fmt.Fprint(p.Out, "Client Secret: ")

	if f, ok := p.In.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.Out)
		if err != nil {
			return "", err
		}
		return string(secret), nil
	}

	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return line, nil
}

// SaveIdentity writes the identity to the settings file, creating the parent
// directory if absent. The write is atomic so an existing file is never left
// with partial data.
func SaveIdentity(path string, id *Identity) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding identity: %w", err)
	}
	return writeFileAtomic(path, data)
}
