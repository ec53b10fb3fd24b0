package credstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/whoopctl/whoopctl/internal/authflow"
)

// FileTokenStore persists the token pair as JSON in a single file.
// Writes use temp file + rename for crash safety.
type FileTokenStore struct {
	filePath string
}

// Compile-time check to ensure FileTokenStore implements TokenStore
var _ TokenStore = (*FileTokenStore)(nil)

// NewFileTokenStore creates a FileTokenStore for the given path, creating
// parent directories with 0700 permissions if they don't exist.
func NewFileTokenStore(filePath string) (*FileTokenStore, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	return &FileTokenStore{
		filePath: filePath,
	}, nil
}

// Load returns the stored token pair. An absent or malformed file yields
// ErrNotFound so a fresh login can recover from either.
func (f *FileTokenStore) Load(ctx context.Context) (*authflow.TokenPair, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var pair authflow.TokenPair
	if err := json.Unmarshal(data, &pair); err != nil {
		return nil, fmt.Errorf("%w: malformed token file %s", ErrNotFound, f.filePath)
	}
	if pair.AccessToken == "" && pair.RefreshToken == "" {
		return nil, fmt.Errorf("%w: empty token file %s", ErrNotFound, f.filePath)
	}
	return &pair, nil
}

// Save atomically replaces the token file using temp file + rename.
// Sets file permissions to 0600 (owner read/write only).
func (f *FileTokenStore) Save(ctx context.Context, pair *authflow.TokenPair) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(pair, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding token pair: %w", err)
	}

	return writeFileAtomic(f.filePath, data)
}

// Delete removes the token file. A missing file is not an error.
func (f *FileTokenStore) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(f.filePath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// writeFileAtomic writes data to path via a temp file in the same directory
// followed by an atomic rename, so a concurrent reader never observes a torn
// write. The final file has 0600 permissions.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tempFile, err := os.CreateTemp(dir, "*.tmp")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()
	// Cleanup deferred for all exit paths
	defer func() { _ = os.Remove(tempName) }()
	defer func() { _ = tempFile.Close() }()

	if _, err := tempFile.Write(data); err != nil {
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tempName, 0600); err != nil {
		return err
	}

	// Atomic rename to final location
	return os.Rename(tempName, path)
}
