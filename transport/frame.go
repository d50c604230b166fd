package transport

import (
	"encoding/binary"

	"github.com/lcx/pantyhose/message"
)

// LengthWidth is the compile/build-time constant from spec §6: every node
// of a cluster must agree on this width. The core ships 2-byte lengths;
// LengthWidth4 exists for deployments that need payloads beyond 64 KiB
// without growing the 2-byte field past its natural range.
type LengthWidth int

const (
	LengthWidth2 LengthWidth = 2
	LengthWidth4 LengthWidth = 4
)

// DefaultMaxPayload is the spec §4.1 default oversize threshold: 16 MiB.
const DefaultMaxPayload = 16 * 1024 * 1024

// HeaderSize returns the frame header size (msg_id + length prefix) for w.
func HeaderSize(w LengthWidth) int { return 2 + int(w) }

// Frame is a decoded [msg_id][payload_len][payload] unit (spec §3, §6).
type Frame struct {
	MsgID   uint32
	Payload []byte
}

// Encode serializes a frame using the given length width. The caller is
// responsible for ensuring len(payload) fits the width: Encode itself does
// not check it. The Connection Send methods reject a payload larger than
// their maxPayload before calling Encode, but with LengthWidth2 a payload
// above 65535 bytes and within maxPayload is not rejected there.
func Encode(w LengthWidth, msgID uint32, payload []byte) []byte {
	out := make([]byte, HeaderSize(w)+len(payload))
	binary.BigEndian.PutUint16(out[0:2], uint16(msgID))
	switch w {
	case LengthWidth4:
		binary.BigEndian.PutUint32(out[2:6], uint32(len(payload)))
	default:
		binary.BigEndian.PutUint16(out[2:4], uint16(len(payload)))
	}
	copy(out[HeaderSize(w):], payload)
	return out
}

// TryFrame is the pure decoder function named in spec §4.1: it peeks at
// buf without consuming anything unless a complete frame is present, in
// which case it advances the buffer's read cursor past the consumed
// bytes. Returns (frame, true, nil) on success, (zero, false, nil) when
// more bytes are needed, and (zero, false, err) on a protocol violation —
// the caller must close the connection in the error case.
func TryFrame(buf *DynamicBuffer, w LengthWidth, maxPayload int) (Frame, bool, error) {
	hdr := HeaderSize(w)
	if buf.ReadableBytes() < hdr {
		return Frame{}, false, nil
	}
	s := buf.ReadableSlice()
	msgID := uint32(binary.BigEndian.Uint16(s[0:2]))

	var payloadLen int
	switch w {
	case LengthWidth4:
		payloadLen = int(binary.BigEndian.Uint32(s[2:6]))
	default:
		payloadLen = int(binary.BigEndian.Uint16(s[2:4]))
	}

	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}
	if payloadLen > maxPayload {
		return Frame{}, false, message.NewError(message.ErrorKindProtocolError,
			errOversizeFrame(payloadLen, maxPayload))
	}

	total := hdr + payloadLen
	if buf.ReadableBytes() < total {
		return Frame{}, false, nil
	}

	payload := make([]byte, payloadLen)
	copy(payload, s[hdr:total])
	buf.Advance(total)

	return Frame{MsgID: msgID, Payload: payload}, true, nil
}

type oversizeFrameError struct {
	got, max int
}

func (e *oversizeFrameError) Error() string {
	return "transport: oversize frame"
}

func errOversizeFrame(got, max int) error {
	return &oversizeFrameError{got: got, max: max}
}
