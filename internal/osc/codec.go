package osc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

const bit32Size = 4

// EncodeError reports a message that cannot be serialized.
type EncodeError struct {
	Reason string
}

func (e *EncodeError) Error() string {
	return "osc: encode: " + e.Reason
}

// DecodeError reports malformed or truncated wire bytes.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "osc: decode: " + e.Reason
}

func decodeErrorf(format string, args ...interface{}) error {
	return &DecodeError{Reason: fmt.Sprintf(format, args...)}
}

// padBytesNeeded returns how many zero bytes pad n up to the next 4-byte
// boundary.
func padBytesNeeded(n int) int {
	return (4 - n%4) % 4
}

// writePaddedString writes s NUL-terminated and zero-padded to a 4-byte
// boundary. The terminating NUL is always written, so a string whose length
// is already a multiple of 4 gains 4 padding bytes.
func writePaddedString(s string, b *bytes.Buffer) {
	b.WriteString(s)
	b.WriteByte(0)
	for i := 0; i < padBytesNeeded(len(s)+1); i++ {
		b.WriteByte(0)
	}
}

// Encode serializes a message to its wire form: padded address, padded type
// tag string, then each argument in order. The result length is always a
// multiple of 4.
func Encode(m *Message) ([]byte, error) {
	if m.Address == "" {
		return nil, &EncodeError{Reason: "empty address"}
	}
	if !strings.HasPrefix(m.Address, "/") {
		return nil, &EncodeError{Reason: fmt.Sprintf("address %q does not start with '/'", m.Address)}
	}

	tags, err := m.TypeTags()
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	writePaddedString(m.Address, &b)
	writePaddedString(tags, &b)

	for _, arg := range m.Arguments {
		switch v := arg.(type) {
		case int32:
			var buf [bit32Size]byte
			binary.BigEndian.PutUint32(buf[:], uint32(v))
			b.Write(buf[:])
		case float32:
			var buf [bit32Size]byte
			binary.BigEndian.PutUint32(buf[:], math.Float32bits(v))
			b.Write(buf[:])
		case string:
			writePaddedString(v, &b)
		case []byte:
			var buf [bit32Size]byte
			binary.BigEndian.PutUint32(buf[:], uint32(len(v)))
			b.Write(buf[:])
			b.Write(v)
			for i := 0; i < padBytesNeeded(len(v)); i++ {
				b.WriteByte(0)
			}
		default:
			// TypeTags already rejected anything else.
			return nil, &EncodeError{Reason: fmt.Sprintf("unsupported argument type %T", arg)}
		}
	}

	return b.Bytes(), nil
}

// decoder is a cursor over one received datagram.
type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) remaining() int {
	return len(d.data) - d.pos
}

// readPaddedString consumes a NUL-terminated string plus its alignment
// padding.
func (d *decoder) readPaddedString() (string, error) {
	rel := bytes.IndexByte(d.data[d.pos:], 0)
	if rel < 0 {
		return "", decodeErrorf("unterminated string")
	}
	s := string(d.data[d.pos : d.pos+rel])
	consumed := rel + 1
	consumed += padBytesNeeded(consumed)
	if d.pos+consumed > len(d.data) {
		return "", decodeErrorf("string padding past end of packet")
	}
	d.pos += consumed
	return s, nil
}

func (d *decoder) readUint32() (uint32, error) {
	if d.remaining() < bit32Size {
		return 0, decodeErrorf("truncated packet: need %d bytes, have %d", bit32Size, d.remaining())
	}
	v := binary.BigEndian.Uint32(d.data[d.pos:])
	d.pos += bit32Size
	return v, nil
}

// Decode parses one datagram into a message. Extra trailing zero bytes
// beyond the logical payload are tolerated; UDP reads into a fixed buffer
// commonly produce them.
func Decode(data []byte) (*Message, error) {
	if len(data) == 0 {
		return nil, decodeErrorf("empty packet")
	}
	if data[0] != '/' {
		return nil, decodeErrorf("address does not start with '/'")
	}

	d := &decoder{data: data}
	addr, err := d.readPaddedString()
	if err != nil {
		return nil, err
	}

	m := &Message{Address: addr}
	if d.remaining() == 0 {
		return m, nil
	}

	tags, err := d.readPaddedString()
	if err != nil {
		return nil, err
	}
	if len(tags) == 0 || tags[0] != ',' {
		return nil, decodeErrorf("type tag string %q does not start with ','", tags)
	}

	if len(tags) > 1 {
		m.Arguments = make([]interface{}, 0, len(tags)-1)
	}
	for _, tag := range tags[1:] {
		switch tag {
		case 'i':
			v, err := d.readUint32()
			if err != nil {
				return nil, err
			}
			m.Arguments = append(m.Arguments, int32(v))
		case 'f':
			v, err := d.readUint32()
			if err != nil {
				return nil, err
			}
			m.Arguments = append(m.Arguments, math.Float32frombits(v))
		case 's':
			s, err := d.readPaddedString()
			if err != nil {
				return nil, err
			}
			m.Arguments = append(m.Arguments, s)
		case 'b':
			n, err := d.readUint32()
			if err != nil {
				return nil, err
			}
			size := int(n)
			if size < 0 || size > d.remaining() {
				return nil, decodeErrorf("blob length %d exceeds packet", size)
			}
			blob := make([]byte, size)
			copy(blob, d.data[d.pos:d.pos+size])
			d.pos += size
			pad := padBytesNeeded(size)
			if pad > d.remaining() {
				pad = d.remaining()
			}
			d.pos += pad
			m.Arguments = append(m.Arguments, blob)
		default:
			return nil, decodeErrorf("unknown type tag %q", tag)
		}
	}

	// Anything left after the last argument must be padding zeros.
	for _, b := range d.data[d.pos:] {
		if b != 0 {
			return nil, decodeErrorf("%d trailing non-zero bytes after arguments", d.remaining())
		}
	}

	return m, nil
}
