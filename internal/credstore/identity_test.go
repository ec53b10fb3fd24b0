package credstore

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestEnvResolver(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		secret   string
		wantID   string
		notFound bool
	}{
		{name: "both set", id: "env-id", secret: "env-secret", wantID: "env-id"},
		{name: "id only", id: "env-id", secret: "", notFound: true},
		{name: "secret only", id: "", secret: "env-secret", notFound: true},
		{name: "neither", id: "", secret: "", notFound: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvClientID, tt.id)
			t.Setenv(EnvClientSecret, tt.secret)

			id, err := (EnvResolver{}).Resolve(context.Background())
			if tt.notFound {
				if !errors.Is(err, ErrCredentialsNotFound) {
					t.Fatalf("error = %v, want ErrCredentialsNotFound", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if id.ClientID != tt.wantID {
				t.Errorf("ClientID = %q, want %q", id.ClientID, tt.wantID)
			}
		})
	}
}

func TestFileResolverRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "settings.json")
	want := &Identity{ClientID: "file-id", ClientSecret: "file-secret"}

	if err := SaveIdentity(path, want); err != nil {
		t.Fatalf("SaveIdentity: %v", err)
	}

	got, err := (FileResolver{Path: path}).Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if *got != *want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestFileResolverAbsentOrMalformed(t *testing.T) {
	dir := t.TempDir()

	if _, err := (FileResolver{Path: filepath.Join(dir, "missing.json")}).Resolve(context.Background()); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("absent file: error = %v, want ErrCredentialsNotFound", err)
	}

	path := filepath.Join(dir, "settings.json")
	if err := SaveIdentity(path, &Identity{ClientID: "only-id"}); err != nil {
		t.Fatalf("SaveIdentity: %v", err)
	}
	if _, err := (FileResolver{Path: path}).Resolve(context.Background()); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("incomplete file: error = %v, want ErrCredentialsNotFound", err)
	}
}

func TestResolveIdentityChainPriority(t *testing.T) {
	// Environment beats the settings file.
	t.Setenv(EnvClientID, "env-id")
	t.Setenv(EnvClientSecret, "env-secret")

	path := filepath.Join(t.TempDir(), "settings.json")
	if err := SaveIdentity(path, &Identity{ClientID: "file-id", ClientSecret: "file-secret"}); err != nil {
		t.Fatalf("SaveIdentity: %v", err)
	}

	id, err := ResolveIdentity(context.Background(), EnvResolver{}, FileResolver{Path: path})
	if err != nil {
		t.Fatalf("ResolveIdentity: %v", err)
	}
	if id.ClientID != "env-id" {
		t.Errorf("ClientID = %q, want env-id", id.ClientID)
	}
}

func TestResolveIdentityFallsThrough(t *testing.T) {
	t.Setenv(EnvClientID, "")
	t.Setenv(EnvClientSecret, "")

	path := filepath.Join(t.TempDir(), "settings.json")
	if err := SaveIdentity(path, &Identity{ClientID: "file-id", ClientSecret: "file-secret"}); err != nil {
		t.Fatalf("SaveIdentity: %v", err)
	}

	id, err := ResolveIdentity(context.Background(), EnvResolver{}, FileResolver{Path: path})
	if err != nil {
		t.Fatalf("ResolveIdentity: %v", err)
	}
	if id.ClientID != "file-id" {
		t.Errorf("ClientID = %q, want file-id", id.ClientID)
	}
}

func TestResolveIdentityAllSourcesEmpty(t *testing.T) {
	t.Setenv(EnvClientID, "")
	t.Setenv(EnvClientSecret, "")

	_, err := ResolveIdentity(context.Background(),
		EnvResolver{},
		FileResolver{Path: filepath.Join(t.TempDir(), "missing.json")},
	)
	if !errors.Is(err, ErrCredentialsNotFound) {
		t.Fatalf("error = %v, want ErrCredentialsNotFound", err)
	}
}

func TestPromptResolver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	out := &bytes.Buffer{}
	resolver := PromptResolver{
		In:           strings.NewReader("typed-id\ntyped-secret\n"),
		Out:          out,
		SettingsPath: path,
	}

	id, err := resolver.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id.ClientID != "typed-id" || id.ClientSecret != "typed-secret" {
		t.Errorf("got %+v", id)
	}

	// First-run prompt persists the identity for subsequent runs.
	saved, err := (FileResolver{Path: path}).Resolve(context.Background())
	if err != nil {
		t.Fatalf("reading saved settings: %v", err)
	}
	if *saved != *id {
		t.Errorf("saved %+v, want %+v", saved, id)
	}
}
