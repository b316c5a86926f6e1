package agentd

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/ssh"

	"github.com/danmuck/agentctl/internal/agent"
	"github.com/danmuck/agentctl/internal/keyring"
	"github.com/danmuck/agentctl/internal/wire"
)

var ErrBadRequest = errors.New("agentd: malformed request")

// parseAddRequest decodes an add-identity body: key type, the per-type
// key section, a comment, then constraints when the request is the
// constrained variant.
func parseAddRequest(body []byte, constrained bool) (keyring.AddOptions, error) {
	var opts keyring.AddOptions

	typ, rest, err := wire.ReadString(body)
	if err != nil {
		return opts, fmt.Errorf("%w: key type: %v", ErrBadRequest, err)
	}
	if string(typ) != ssh.KeyAlgoED25519 {
		return opts, fmt.Errorf("%w: %s", keyring.ErrUnsupportedKey, typ)
	}

	// The ed25519 section is two strings: public half, private half.
	sectionStart := rest
	_, rest, err = wire.ReadString(rest)
	if err != nil {
		return opts, fmt.Errorf("%w: public half: %v", ErrBadRequest, err)
	}
	_, rest, err = wire.ReadString(rest)
	if err != nil {
		return opts, fmt.Errorf("%w: private half: %v", ErrBadRequest, err)
	}
	section := sectionStart[:len(sectionStart)-len(rest)]

	comment, rest, err := wire.ReadString(rest)
	if err != nil {
		return opts, fmt.Errorf("%w: comment: %v", ErrBadRequest, err)
	}

	opts = keyring.AddOptions{
		Type:       string(typ),
		KeySection: section,
		Comment:    string(comment),
	}

	if !constrained {
		if len(rest) != 0 {
			return keyring.AddOptions{}, fmt.Errorf("%w: %d trailing bytes", ErrBadRequest, len(rest))
		}
		return opts, nil
	}

	constraints, err := agent.ParseConstraints(rest)
	if err != nil {
		return keyring.AddOptions{}, fmt.Errorf("%w: constraints: %v", ErrBadRequest, err)
	}
	for _, c := range constraints {
		if seconds, ok := c.Lifetime(); ok {
			opts.LifetimeSeconds = seconds
		}
		if c.IsConfirm() {
			opts.Confirm = true
		}
	}
	return opts, nil
}

// parseRemoveRequest decodes a remove-identity body: one public key blob.
func parseRemoveRequest(body []byte) ([]byte, error) {
	blob, rest, err := wire.ReadString(body)
	if err != nil {
		return nil, fmt.Errorf("%w: key blob: %v", ErrBadRequest, err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrBadRequest, len(rest))
	}
	return blob, nil
}

type signRequest struct {
	blob  []byte
	data  []byte
	flags uint32
}

// parseSignRequest decodes a sign body: key blob, data, flag bits.
func parseSignRequest(body []byte) (signRequest, error) {
	var req signRequest

	blob, rest, err := wire.ReadString(body)
	if err != nil {
		return req, fmt.Errorf("%w: key blob: %v", ErrBadRequest, err)
	}
	data, rest, err := wire.ReadString(rest)
	if err != nil {
		return req, fmt.Errorf("%w: data: %v", ErrBadRequest, err)
	}
	flags, rest, err := wire.ReadUint32(rest)
	if err != nil {
		return req, fmt.Errorf("%w: flags: %v", ErrBadRequest, err)
	}
	if len(rest) != 0 {
		return req, fmt.Errorf("%w: %d trailing bytes", ErrBadRequest, len(rest))
	}
	return signRequest{blob: blob, data: data, flags: flags}, nil
}

// parsePassphrase decodes a lock or unlock body: one passphrase string.
func parsePassphrase(body []byte) ([]byte, error) {
	pass, rest, err := wire.ReadString(body)
	if err != nil {
		return nil, fmt.Errorf("%w: passphrase: %v", ErrBadRequest, err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrBadRequest, len(rest))
	}
	return pass, nil
}
