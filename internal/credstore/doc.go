// Package credstore persists the WHOOP session: the client identity
// (client id/secret) and the current token pair.
//
// Token storage supports two backends:
//   - File: local filesystem storage with atomic writes and secure permissions
//   - Keyring: OS-native credential storage (macOS Keychain, Windows
//     Credential Manager, Linux Secret Service)
//
// The client identity is resolved through an ordered chain of resolvers
// (environment variables, settings file, optional interactive prompt); the
// first resolver that yields both fields wins.
//
// This package touches only the filesystem and OS keyring, never the network.
package credstore
