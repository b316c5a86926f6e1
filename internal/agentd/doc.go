// Package agentd owns the agent daemon runtime.
//
// Ownership boundary:
//   - unix socket lifecycle and per-connection request loops
//   - request payload parsing and keyring dispatch
//   - admin HTTP surface (health, key listing, metrics)
//
// Key storage semantics live in internal/keyring; the wire contract
// lives in internal/wire.
package agentd
