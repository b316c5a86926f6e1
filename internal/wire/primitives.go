package wire

import "encoding/binary"

// AppendUint32 appends v in big-endian order.
func AppendUint32(b []byte, v uint32) []byte {
	return binary.BigEndian.AppendUint32(b, v)
}

// AppendString appends s in SSH string form: u32 length then the bytes.
func AppendString(b []byte, s []byte) []byte {
	b = binary.BigEndian.AppendUint32(b, uint32(len(s)))
	return append(b, s...)
}

// ReadUint32 consumes a big-endian u32 and returns the remainder.
func ReadUint32(b []byte) (uint32, []byte, error) {
	if len(b) < 4 {
		return 0, nil, ErrTruncated
	}
	return binary.BigEndian.Uint32(b[:4]), b[4:], nil
}

// ReadString consumes one SSH string and returns a copy plus the remainder.
func ReadString(b []byte) ([]byte, []byte, error) {
	n, rest, err := ReadUint32(b)
	if err != nil {
		return nil, nil, err
	}
	if uint32(len(rest)) < n {
		return nil, nil, ErrTruncated
	}
	out := make([]byte, n)
	copy(out, rest[:n])
	return out, rest[n:], nil
}

// Builder accumulates a message body field by field.
type Builder struct {
	buf []byte
}

func (b *Builder) Uint32(v uint32) *Builder {
	b.buf = AppendUint32(b.buf, v)
	return b
}

func (b *Builder) String(s []byte) *Builder {
	b.buf = AppendString(b.buf, s)
	return b
}

// Raw appends pre-encoded bytes without a length prefix.
func (b *Builder) Raw(s []byte) *Builder {
	b.buf = append(b.buf, s...)
	return b
}

func (b *Builder) Bytes() []byte {
	return b.buf
}
