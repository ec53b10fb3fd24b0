package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/whoopctl/whoopctl/internal/authflow"
)

// KeyringTokenStore persists the token pair as JSON in the OS-native
// credential store (macOS Keychain, Windows Credential Manager, Linux Secret
// Service).
type KeyringTokenStore struct {
	service string
	user    string
}

// Compile-time check to ensure KeyringTokenStore implements TokenStore
var _ TokenStore = (*KeyringTokenStore)(nil)

// NewKeyringTokenStore creates a KeyringTokenStore under the given service
// and user identifiers.
func NewKeyringTokenStore(service, user string) (*KeyringTokenStore, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}
	if user == "" {
		return nil, fmt.Errorf("user cannot be empty")
	}

	return &KeyringTokenStore{
		service: service,
		user:    user,
	}, nil
}

// Load returns the stored token pair from the system keyring.
func (k *KeyringTokenStore) Load(ctx context.Context) (*authflow.TokenPair, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := keyring.Get(k.service, k.user)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var pair authflow.TokenPair
	if err := json.Unmarshal([]byte(raw), &pair); err != nil {
		return nil, fmt.Errorf("%w: malformed keyring entry for service %s", ErrNotFound, k.service)
	}
	return &pair, nil
}

// Save persists the token pair to the system keyring, overwriting any
// existing entry. Keyring writes replace the whole entry, so readers never
// see a partial pair.
func (k *KeyringTokenStore) Save(ctx context.Context, pair *authflow.TokenPair) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("encoding token pair: %w", err)
	}
	return keyring.Set(k.service, k.user, string(data))
}

// Delete removes the keyring entry. A missing entry is not an error.
func (k *KeyringTokenStore) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := keyring.Delete(k.service, k.user); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}
