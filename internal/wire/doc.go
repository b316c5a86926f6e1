// Package wire owns the ssh-agent wire contract and parsing primitives.
//
// Ownership boundary:
// - message number registry
// - length-prefixed packet framing
// - string/uint32 payload primitives
package wire
