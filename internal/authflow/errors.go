package authflow

import (
	"errors"
	"fmt"
)

// ErrStateMismatch indicates the state parameter on the redirect did not
// match the nonce issued by Begin. The login attempt is dead; restart it
// with Begin.
var ErrStateMismatch = errors.New("authorization state mismatch")

// ExchangeError is a code exchange rejected by the provider (expired or
// already-used code, wrong redirect_uri) or a malformed token response.
type ExchangeError struct {
	StatusCode int
	Body       string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("code exchange rejected (status %d): %s", e.StatusCode, e.Body)
}

// RefreshError is a refresh grant rejected by the provider, typically because
// the refresh token was revoked or expired. It signals that a full
// interactive login is required; it is never retried at this layer.
type RefreshError struct {
	StatusCode int
	Body       string
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("token refresh rejected (status %d): %s", e.StatusCode, e.Body)
}
