// Package authflow drives the WHOOP OAuth2 authorization-code grant and the
// refresh grant.
//
// The interactive login is a small state machine: Begin builds the authorize
// URL (with a per-login state nonce) and SubmitCode exchanges the returned
// code for a token pair. Refresh is stateless and can be called at any time
// with a stored refresh token.
//
// Code capture is pluggable via CodeProvider:
//   - ConsoleCodeProvider: opens the browser and asks the user to paste the
//     redirect URL (works with any redirect target, including the fixed
//     placeholder URL used when no callback server is configured)
//   - CallbackCodeProvider: runs a one-shot local HTTP server on a loopback
//     redirect URI and captures the code from the redirect itself
package authflow
