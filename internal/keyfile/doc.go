// Package keyfile loads OpenSSH key material from disk and renders it
// into the sections agent requests carry.
//
// Ownership boundary:
//   - reading and parsing private/public key files
//   - per-type add-identity payload encoding
//   - public key fingerprints for display
//
// The agent wire contract itself lives in internal/wire.
package keyfile
