package wire

import (
	"encoding/binary"
	"errors"
	"io"
)

// Length prefix bytes on every agent message.
const lengthPrefixLen = 4

var (
	ErrEmptyPayload    = errors.New("wire: empty payload")
	ErrPayloadTooLarge = errors.New("wire: payload too large")
	ErrTruncated       = errors.New("wire: truncated data")
)

// Packet is one complete agent message. Payload always starts with the
// message number byte, matching what travels on the socket after the
// length prefix.
type Packet struct {
	Kind    Kind
	Payload []byte
}

// Limits constrains packet decode/encode memory use.
type Limits struct {
	MaxPayloadBytes uint32
}

// DefaultLimits is the protocol ceiling on agent message length.
func DefaultLimits() Limits {
	return Limits{MaxPayloadBytes: 256 * 1024}
}

// NewPacket frames a message body under its message number. The body is
// the payload after the kind byte and may be nil.
func NewPacket(kind Kind, body []byte) Packet {
	payload := make([]byte, 0, 1+len(body))
	payload = append(payload, byte(kind))
	payload = append(payload, body...)
	return Packet{Kind: kind, Payload: payload}
}

// Body returns the payload with the leading kind byte stripped.
func (p Packet) Body() []byte {
	if len(p.Payload) == 0 {
		return nil
	}
	return p.Payload[1:]
}

// Encode returns the full wire form: u32 length prefix plus payload.
func (p Packet) Encode(limits Limits) ([]byte, error) {
	if len(p.Payload) == 0 {
		return nil, ErrEmptyPayload
	}
	if uint32(len(p.Payload)) > limits.MaxPayloadBytes {
		return nil, ErrPayloadTooLarge
	}
	buf := make([]byte, lengthPrefixLen+len(p.Payload))
	binary.BigEndian.PutUint32(buf[0:lengthPrefixLen], uint32(len(p.Payload)))
	copy(buf[lengthPrefixLen:], p.Payload)
	return buf, nil
}

// ReadPacket reads a single message from r.
func ReadPacket(r io.Reader, limits Limits) (Packet, error) {
	var prefix [lengthPrefixLen]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Packet{}, ErrTruncated
		}
		return Packet{}, err
	}

	payloadLen := binary.BigEndian.Uint32(prefix[:])
	if payloadLen == 0 {
		return Packet{}, ErrEmptyPayload
	}
	if payloadLen > limits.MaxPayloadBytes {
		return Packet{}, ErrPayloadTooLarge
	}

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Packet{}, ErrTruncated
		}
		return Packet{}, err
	}

	return Packet{Kind: Kind(payload[0]), Payload: payload}, nil
}

// WritePacket writes a single message to w.
func WritePacket(w io.Writer, p Packet, limits Limits) error {
	buf, err := p.Encode(limits)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}
