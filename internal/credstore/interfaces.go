package credstore

import (
	"context"
	"errors"

	"github.com/whoopctl/whoopctl/internal/authflow"
)

// ErrNotFound indicates no token pair is persisted. A malformed token file is
// reported the same way: it is treated as absent, not fatal.
var ErrNotFound = errors.New("no stored tokens")

// TokenStore reads and writes the persisted token pair.
//
// Save must be atomic with respect to concurrent readers: a reader never
// observes a half-written pair. No cross-process locking is provided; two
// processes racing a refresh is last-writer-wins (both hold valid tokens).
type TokenStore interface {
	// Load returns the stored token pair, or ErrNotFound if absent or
	// malformed.
	Load(ctx context.Context) (*authflow.TokenPair, error)

	// Save atomically replaces the stored token pair.
	Save(ctx context.Context, pair *authflow.TokenPair) error

	// Delete removes the stored token pair. Deleting an absent pair is not
	// an error.
	Delete(ctx context.Context) error
}
