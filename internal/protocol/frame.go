package protocol

import (
	"encoding/binary"
	"fmt"
)

// lengthSize is the width of the frame length prefix: a 32-bit big-endian
// unsigned integer, per the domain-socket wire format.
const lengthSize = 4

// MaxFrameLength bounds a single frame's payload to guard against a
// corrupt or hostile peer claiming an unreasonable length. The spec
// itself imposes no structural limit; this is the implementation's
// discretion.
const MaxFrameLength = 64 * 1024 * 1024

// Encode wraps a frame's tag and body into the wire envelope:
// [4-byte BE length][tag byte][body]. The length covers tag+body.
func Encode(t FrameType, body []byte) []byte {
	payloadLen := 1 + len(body)
	buf := make([]byte, lengthSize+payloadLen)
	binary.BigEndian.PutUint32(buf[:lengthSize], uint32(payloadLen))
	buf[lengthSize] = byte(t)
	copy(buf[lengthSize+1:], body)
	return buf
}

// EncodeRaw wraps an already-tagged payload (tag byte + body) into the
// wire envelope, for callers that build the payload themselves.
func EncodeRaw(payload []byte) []byte {
	buf := make([]byte, lengthSize+len(payload))
	binary.BigEndian.PutUint32(buf[:lengthSize], uint32(len(payload)))
	copy(buf[lengthSize:], payload)
	return buf
}

// Visit is called once per fully-parsed frame.
type Visit func(f Frame)

// Parse greedily consumes as many complete frames as are present in buf,
// invoking visit for each, and returns the unconsumed trailing bytes so
// the caller can prepend them to the next chunk read from the stream.
// A length of 0 yields no invocation (an empty frame is skipped, not an
// error). Parse does not modify buf's contents; the returned remainder
// is a subslice of buf and shares its backing array.
func Parse(buf []byte, visit Visit) ([]byte, error) {
	for {
		if len(buf) < lengthSize {
			return buf, nil
		}
		payloadLen := binary.BigEndian.Uint32(buf[:lengthSize])
		if payloadLen > MaxFrameLength {
			return nil, fmt.Errorf("protocol: frame length %d exceeds maximum %d", payloadLen, MaxFrameLength)
		}
		total := lengthSize + int(payloadLen)
		if len(buf) < total {
			// Partial frame: wait for more bytes.
			return buf, nil
		}

		if payloadLen > 0 {
			payload := buf[lengthSize:total]
			visit(Frame{Type: FrameType(payload[0]), Body: payload[1:]})
		}

		buf = buf[total:]
	}
}
