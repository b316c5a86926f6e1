// Package keyring owns the daemon's in-memory key table.
//
// Ownership boundary:
//   - key storage, lookup, and removal
//   - signing with stored keys
//   - lock state and passphrase checks
//   - lifetime expiry and confirm-constraint refusal
//
// Request parsing and socket handling live in internal/agentd.
package keyring
