package message

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Every message type in this package hand-writes Marshal/Unmarshal against
// google.golang.org/protobuf/encoding/protowire's low-level tag/varint/bytes
// helpers, producing proto3-wire-compatible payloads without depending on
// protoc-generated code or reflection-based dynamicpb. Unknown fields are
// skipped on decode, matching spec §6's "unknown fields MUST be ignored".

// appendUint32 appends a varint field iff v is non-zero, matching proto3's
// "default value is not encoded" convention.
func appendUint32(b []byte, num protowire.Number, v uint32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendUint64(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, 1)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// appendStringMap encodes a map[string]string as repeated embedded messages
// {1: key string, 2: value string}, the standard proto3 map wire shape.
func appendStringMap(b []byte, num protowire.Number, m map[string]string) []byte {
	for k, v := range m {
		var entry []byte
		entry = appendString(entry, 1, k)
		entry = appendString(entry, 2, v)
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	return b
}

func decodeStringMapEntry(b []byte) (key, val string, err error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", "", protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return "", "", protowire.ParseError(m)
			}
			key = string(v)
			b = b[m:]
		case num == 2 && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return "", "", protowire.ParseError(m)
			}
			val = string(v)
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return "", "", protowire.ParseError(m)
			}
			b = b[m:]
		}
	}
	return key, val, nil
}

// fieldVisitor is called once per top-level field encountered while
// decoding a message. It returns the number of bytes of value consumed and
// a non-nil error only on malformed input (fields it does not recognize are
// still expected to be consumed generically via protowire.ConsumeFieldValue
// and signalled by returning handled=false).
type fieldVisitor func(num protowire.Number, typ protowire.Type, b []byte) (n int, handled bool, err error)

// decodeFields drives a generic "read tag, dispatch, skip if unhandled"
// loop shared by every message's Unmarshal implementation.
func decodeFields(b []byte, visit fieldVisitor) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("message: bad tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		vn, handled, err := visit(num, typ, b)
		if err != nil {
			return err
		}
		if handled {
			if vn < 0 {
				return fmt.Errorf("message: bad field %d value", num)
			}
			b = b[vn:]
			continue
		}
		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return fmt.Errorf("message: bad field %d: %w", num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return nil
}

func consumeString(b []byte) (string, int) {
	v, n := protowire.ConsumeBytes(b)
	return string(v), n
}
