// Package agent owns the client side of the ssh-agent protocol.
//
// Ownership boundary:
// - request envelopes and key-use constraints
// - response decoding
// - the channel-driven client loop and socket dialing
package agent
