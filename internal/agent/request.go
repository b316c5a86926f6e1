package agent

import (
	"errors"
	"fmt"

	"github.com/danmuck/agentctl/internal/wire"
)

var ErrInvalidRequest = errors.New("agent: invalid request")

// Sign request flag bits. Only meaningful for RSA keys.
const (
	SignRSASHA256 uint32 = 2
	SignRSASHA512 uint32 = 4
)

// Request is one client->agent message.
type Request interface {
	Validate() error
	Packet() (wire.Packet, error)
}

// Shutdown asks the client loop to stop. It never reaches the agent.
type Shutdown struct{}

func (Shutdown) Validate() error { return nil }

func (Shutdown) Packet() (wire.Packet, error) {
	return wire.Packet{}, fmt.Errorf("%w: shutdown has no wire form", ErrInvalidRequest)
}

// RequestIdentities asks the agent for its key list.
type RequestIdentities struct{}

func (RequestIdentities) Validate() error { return nil }

func (RequestIdentities) Packet() (wire.Packet, error) {
	return wire.NewPacket(wire.KindRequestIdentities, nil), nil
}

// AddIdentity loads a private key into the agent. KeyBlob is the
// pre-encoded per-type key section and is appended to the payload
// unframed, after the key type and before the comment.
type AddIdentity struct {
	Type    string
	KeyBlob []byte
	Comment string
}

func (r AddIdentity) Validate() error {
	if r.Type == "" {
		return fmt.Errorf("%w: missing key type", ErrInvalidRequest)
	}
	if len(r.KeyBlob) == 0 {
		return fmt.Errorf("%w: missing key blob", ErrInvalidRequest)
	}
	return nil
}

func (r AddIdentity) Packet() (wire.Packet, error) {
	if err := r.Validate(); err != nil {
		return wire.Packet{}, err
	}
	var b wire.Builder
	b.String([]byte(r.Type)).Raw(r.KeyBlob).String([]byte(r.Comment))
	return wire.NewPacket(wire.KindAddIdentity, b.Bytes()), nil
}

// AddIdentityConstrained is AddIdentity with use constraints attached.
type AddIdentityConstrained struct {
	AddIdentity
	Constraints []Constraint
}

func (r AddIdentityConstrained) Validate() error {
	if err := r.AddIdentity.Validate(); err != nil {
		return err
	}
	if len(r.Constraints) == 0 {
		return fmt.Errorf("%w: constrained add without constraints", ErrInvalidRequest)
	}
	for _, c := range r.Constraints {
		if seconds, ok := c.Lifetime(); ok && seconds == 0 {
			return fmt.Errorf("%w: zero lifetime", ErrInvalidRequest)
		}
	}
	return nil
}

func (r AddIdentityConstrained) Packet() (wire.Packet, error) {
	if err := r.Validate(); err != nil {
		return wire.Packet{}, err
	}
	var b wire.Builder
	b.String([]byte(r.Type)).Raw(r.KeyBlob).String([]byte(r.Comment)).Raw(EncodeConstraints(r.Constraints...))
	return wire.NewPacket(wire.KindAddIDConstrained, b.Bytes()), nil
}

// RemoveIdentity removes the key identified by its public key blob.
type RemoveIdentity struct {
	KeyBlob []byte
}

func (r RemoveIdentity) Validate() error {
	if len(r.KeyBlob) == 0 {
		return fmt.Errorf("%w: missing key blob", ErrInvalidRequest)
	}
	return nil
}

func (r RemoveIdentity) Packet() (wire.Packet, error) {
	if err := r.Validate(); err != nil {
		return wire.Packet{}, err
	}
	var b wire.Builder
	b.String(r.KeyBlob)
	return wire.NewPacket(wire.KindRemoveIdentity, b.Bytes()), nil
}

// RemoveAllIdentities clears the agent's key table.
type RemoveAllIdentities struct{}

func (RemoveAllIdentities) Validate() error { return nil }

func (RemoveAllIdentities) Packet() (wire.Packet, error) {
	return wire.NewPacket(wire.KindRemoveAllIdentities, nil), nil
}

// SignRequest asks the agent to sign Data with the key named by KeyBlob.
type SignRequest struct {
	KeyBlob []byte
	Data    []byte
	Flags   uint32
}

func (r SignRequest) Validate() error {
	if len(r.KeyBlob) == 0 {
		return fmt.Errorf("%w: missing key blob", ErrInvalidRequest)
	}
	if len(r.Data) == 0 {
		return fmt.Errorf("%w: missing data to sign", ErrInvalidRequest)
	}
	return nil
}

func (r SignRequest) Packet() (wire.Packet, error) {
	if err := r.Validate(); err != nil {
		return wire.Packet{}, err
	}
	var b wire.Builder
	b.String(r.KeyBlob).String(r.Data).Uint32(r.Flags)
	return wire.NewPacket(wire.KindSignRequest, b.Bytes()), nil
}

// Lock hides the agent's keys until Unlock with the same passphrase.
type Lock struct {
	Passphrase []byte
}

func (r Lock) Validate() error {
	if len(r.Passphrase) == 0 {
		return fmt.Errorf("%w: missing passphrase", ErrInvalidRequest)
	}
	return nil
}

func (r Lock) Packet() (wire.Packet, error) {
	if err := r.Validate(); err != nil {
		return wire.Packet{}, err
	}
	var b wire.Builder
	b.String(r.Passphrase)
	return wire.NewPacket(wire.KindLock, b.Bytes()), nil
}

// Unlock reverses a Lock.
type Unlock struct {
	Passphrase []byte
}

func (r Unlock) Validate() error {
	if len(r.Passphrase) == 0 {
		return fmt.Errorf("%w: missing passphrase", ErrInvalidRequest)
	}
	return nil
}

func (r Unlock) Packet() (wire.Packet, error) {
	if err := r.Validate(); err != nil {
		return wire.Packet{}, err
	}
	var b wire.Builder
	b.String(r.Passphrase)
	return wire.NewPacket(wire.KindUnlock, b.Bytes()), nil
}
