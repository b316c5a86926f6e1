package agent

import (
	"errors"

	"github.com/danmuck/agentctl/internal/wire"
)

// Constraint identifiers from the agent protocol.
const (
	constrainLifetime byte = 1
	constrainConfirm  byte = 2
)

var ErrUnknownConstraint = errors.New("agent: unknown constraint")

// Constraint restricts how an added key may be used.
type Constraint struct {
	id      byte
	seconds uint32
}

// LifetimeConstraint expires the key after the given number of seconds.
func LifetimeConstraint(seconds uint32) Constraint {
	return Constraint{id: constrainLifetime, seconds: seconds}
}

// ConfirmConstraint requires per-use confirmation before signing.
func ConfirmConstraint() Constraint {
	return Constraint{id: constrainConfirm}
}

// Lifetime returns the expiry seconds and whether this is a lifetime constraint.
func (c Constraint) Lifetime() (uint32, bool) {
	return c.seconds, c.id == constrainLifetime
}

// IsConfirm reports whether this is a confirm-per-use constraint.
func (c Constraint) IsConfirm() bool {
	return c.id == constrainConfirm
}

func (c Constraint) append(b []byte) []byte {
	b = append(b, c.id)
	if c.id == constrainLifetime {
		b = wire.AppendUint32(b, c.seconds)
	}
	return b
}

// EncodeConstraints renders constraints in submission order as the raw
// section appended to a constrained add request.
func EncodeConstraints(cs ...Constraint) []byte {
	var out []byte
	for _, c := range cs {
		out = c.append(out)
	}
	return out
}

// ParseConstraints decodes the raw constraint section of an add request.
func ParseConstraints(b []byte) ([]Constraint, error) {
	var out []Constraint
	for len(b) > 0 {
		id := b[0]
		b = b[1:]
		switch id {
		case constrainLifetime:
			seconds, rest, err := wire.ReadUint32(b)
			if err != nil {
				return nil, err
			}
			out = append(out, LifetimeConstraint(seconds))
			b = rest
		case constrainConfirm:
			out = append(out, ConfirmConstraint())
		default:
			return nil, ErrUnknownConstraint
		}
	}
	return out, nil
}
