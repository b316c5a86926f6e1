// Package auth guards the daemon's admin surface.
//
// It covers exactly one scheme: a fixed bearer token for development
// deployments. Anything stronger belongs in front of the daemon.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

var ErrUnauthorized = errors.New("auth: unauthorized")

// BearerToken authorizes requests carrying a fixed bearer token.
type BearerToken struct {
	Secret string
}

// Authorize checks an Authorization header value. An empty secret
// refuses everything.
func (b BearerToken) Authorize(header string) error {
	if b.Secret == "" {
		return ErrUnauthorized
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(b.Secret), []byte(token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}
