package agent

import (
	"errors"
	"fmt"

	"github.com/danmuck/agentctl/internal/wire"
)

var (
	ErrUnexpectedResponse = errors.New("agent: unexpected response")
	ErrMalformedResponse  = errors.New("agent: malformed response")
)

// Response is one agent->client message. Payload keeps the leading
// kind byte so callers see exactly what crossed the socket.
type Response struct {
	Kind    wire.Kind
	Payload []byte
}

func responseFromPacket(p wire.Packet) Response {
	return Response{Kind: p.Kind, Payload: p.Payload}
}

// OK reports whether the agent accepted the request.
func (r Response) OK() bool {
	return r.Kind != wire.KindFailure && r.Kind != wire.KindExtensionFailure
}

// Body returns the payload after the kind byte.
func (r Response) Body() []byte {
	if len(r.Payload) == 0 {
		return nil
	}
	return r.Payload[1:]
}

// Identity is one key held by the agent.
type Identity struct {
	Blob    []byte
	Comment string
}

// Type extracts the key type string from the public key blob.
func (id Identity) Type() string {
	t, _, err := wire.ReadString(id.Blob)
	if err != nil {
		return ""
	}
	return string(t)
}

// ParseIdentities decodes an identities answer into its key list.
func ParseIdentities(r Response) ([]Identity, error) {
	if r.Kind != wire.KindIdentitiesAnswer {
		return nil, fmt.Errorf("%w: want %s, got %s", ErrUnexpectedResponse, wire.KindIdentitiesAnswer, r.Kind)
	}
	b := r.Body()
	count, b, err := wire.ReadUint32(b)
	if err != nil {
		return nil, fmt.Errorf("%w: identity count: %v", ErrMalformedResponse, err)
	}
	// Two strings per identity is at least eight bytes, so a count past
	// that bound cannot be backed by the payload.
	if uint64(count)*8 > uint64(len(b)) {
		return nil, fmt.Errorf("%w: identity count %d exceeds payload", ErrMalformedResponse, count)
	}
	ids := make([]Identity, 0, count)
	for i := uint32(0); i < count; i++ {
		var blob, comment []byte
		blob, b, err = wire.ReadString(b)
		if err != nil {
			return nil, fmt.Errorf("%w: identity %d blob: %v", ErrMalformedResponse, i, err)
		}
		comment, b, err = wire.ReadString(b)
		if err != nil {
			return nil, fmt.Errorf("%w: identity %d comment: %v", ErrMalformedResponse, i, err)
		}
		ids = append(ids, Identity{Blob: blob, Comment: string(comment)})
	}
	if len(b) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after identities", ErrMalformedResponse, len(b))
	}
	return ids, nil
}

// ParseSignature decodes a sign response into the raw signature blob.
func ParseSignature(r Response) ([]byte, error) {
	if r.Kind != wire.KindSignResponse {
		return nil, fmt.Errorf("%w: want %s, got %s", ErrUnexpectedResponse, wire.KindSignResponse, r.Kind)
	}
	sig, rest, err := wire.ReadString(r.Body())
	if err != nil {
		return nil, fmt.Errorf("%w: signature: %v", ErrMalformedResponse, err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after signature", ErrMalformedResponse, len(rest))
	}
	return sig, nil
}
