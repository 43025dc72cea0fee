// Package osc implements the subset of the OSC 1.0 wire format spoken by
// the X32 console: messages with int32, float32, string and blob arguments,
// byte-exact 4-byte alignment, and the console's 96-value meter blobs.
package osc

import (
	"fmt"
	"strings"
)

// Message is a single OSC message: an address pattern plus zero or more
// typed arguments. Supported argument types are int32, float32, string and
// []byte (blob).
type Message struct {
	Address   string
	Arguments []interface{}
}

// NewMessage returns a Message for the given address and arguments.
func NewMessage(addr string, args ...interface{}) *Message {
	return &Message{Address: addr, Arguments: args}
}

// TypeTags returns the type tag string for the message, including the
// leading comma. It fails if any argument has an unsupported type.
func (m *Message) TypeTags() (string, error) {
	var b strings.Builder
	b.WriteByte(',')
	for _, arg := range m.Arguments {
		switch arg.(type) {
		case int32:
			b.WriteByte('i')
		case float32:
			b.WriteByte('f')
		case string:
			b.WriteByte('s')
		case []byte:
			b.WriteByte('b')
		default:
			return "", &EncodeError{Reason: fmt.Sprintf("unsupported argument type %T", arg)}
		}
	}
	return b.String(), nil
}

// String renders the message for logs: address, tags, then arguments.
func (m *Message) String() string {
	if m == nil {
		return ""
	}
	tags, err := m.TypeTags()
	if err != nil {
		tags = ",?"
	}

	var b strings.Builder
	b.WriteString(m.Address)
	b.WriteByte(' ')
	b.WriteString(tags)
	for _, arg := range m.Arguments {
		switch v := arg.(type) {
		case []byte:
			fmt.Fprintf(&b, " blob[%d]", len(v))
		default:
			fmt.Fprintf(&b, " %v", v)
		}
	}
	return b.String()
}
