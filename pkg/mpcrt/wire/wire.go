// Package wire defines the messages exchanged between players and their
// framing on a byte stream.
//
// A message is the triple (program counter, kind, data). It is encoded with
// the protobuf wire format (field 1: packed counter levels, field 2: kind,
// field 3: data) so that the layout is self-describing and extensible, and
// each encoded message travels as one length-prefixed frame.
package wire

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/pc"
)

// Kind tags the payload of a message.
type Kind uint8

const (
	KindShare Kind = iota + 1
	KindText
	KindSend
	KindEcho
	KindReady
)

func (k Kind) String() string {
	switch k {
	case KindShare:
		return "share"
	case KindText:
		return "text"
	case KindSend:
		return "send"
	case KindEcho:
		return "echo"
	case KindReady:
		return "ready"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

func (k Kind) valid() bool { return k >= KindShare && k <= KindReady }

// Message is one unit of communication between two players.
type Message struct {
	PC   pc.Stack
	Kind Kind
	Data []byte
}

const (
	fieldPC   protowire.Number = 1
	fieldKind protowire.Number = 2
	fieldData protowire.Number = 3
)

// ErrMalformed is wrapped by every decoding error.
var ErrMalformed = errors.New("wire: malformed message")

// Marshal encodes m.
func (m Message) Marshal() []byte {
	var packed []byte
	for _, v := range m.PC {
		packed = protowire.AppendVarint(packed, uint64(v))
	}
	b := make([]byte, 0, len(packed)+len(m.Data)+16)
	b = protowire.AppendTag(b, fieldPC, protowire.BytesType)
	b = protowire.AppendBytes(b, packed)
	b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Kind))
	b = protowire.AppendTag(b, fieldData, protowire.BytesType)
	b = protowire.AppendBytes(b, m.Data)
	return b
}

// Unmarshal decodes a message produced by Marshal. Unknown fields are
// skipped.
func Unmarshal(b []byte) (Message, error) {
	var m Message
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Message{}, malformed(protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldPC && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Message{}, malformed(protowire.ParseError(n))
			}
			b = b[n:]
			stack, err := unpack(packed)
			if err != nil {
				return Message{}, err
			}
			m.PC = stack
		case num == fieldKind && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Message{}, malformed(protowire.ParseError(n))
			}
			b = b[n:]
			if v > 255 || !Kind(v).valid() {
				return Message{}, fmt.Errorf("%w: unknown kind %d", ErrMalformed, v)
			}
			m.Kind = Kind(v)
		case num == fieldData && typ == protowire.BytesType:
			data, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Message{}, malformed(protowire.ParseError(n))
			}
			b = b[n:]
			m.Data = append([]byte(nil), data...)
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Message{}, malformed(protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	if len(m.PC) == 0 || m.Kind == 0 {
		return Message{}, fmt.Errorf("%w: missing counter or kind", ErrMalformed)
	}
	return m, nil
}

func unpack(b []byte) (pc.Stack, error) {
	var out pc.Stack
	for len(b) > 0 {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, malformed(protowire.ParseError(n))
		}
		if v > 1<<32-1 {
			return nil, fmt.Errorf("%w: counter level overflows uint32", ErrMalformed)
		}
		out = append(out, uint32(v))
		b = b[n:]
	}
	return out, nil
}

func malformed(err error) error {
	return fmt.Errorf("%w: %v", ErrMalformed, err)
}
