// Package protocol defines the wire format shared by every host/viewer
// connection: a length-prefixed frame envelope and the closed set of
// message types that ride inside it.
package protocol

import (
	"encoding/binary"
	"errors"
	"math"
)

// FrameType is the closed enumeration of protocol message kinds.
type FrameType byte

const (
	Data             FrameType = 0x00 // bidirectional: raw terminal bytes
	Resize           FrameType = 0x01 // viewer -> host: uint16 cols, uint16 rows
	Exit             FrameType = 0x02 // host -> viewer: int32 exit code
	BufferReplay     FrameType = 0x03 // host -> viewer: raw bytes
	Title            FrameType = 0x04 // host -> viewer: UTF-8 text
	Notification     FrameType = 0x05 // host -> viewer: UTF-8 text
	Resume           FrameType = 0x10 // viewer -> host: float64 offset
	Sync             FrameType = 0x11 // host -> viewer: float64 totalWritten
	SessionState     FrameType = 0x12 // host -> viewer: uint8 (0=idle, 1=active)
	BufferReplayGzip FrameType = 0x13 // host -> viewer: gzip(raw bytes)
	SessionMetrics   FrameType = 0x14 // host -> viewer: float64 bps1, bps5, bps15, totalBytes
)

func (t FrameType) String() string {
	switch t {
	case Data:
		return "DATA"
	case Resize:
		return "RESIZE"
	case Exit:
		return "EXIT"
	case BufferReplay:
		return "BUFFER_REPLAY"
	case Title:
		return "TITLE"
	case Notification:
		return "NOTIFICATION"
	case Resume:
		return "RESUME"
	case Sync:
		return "SYNC"
	case SessionState:
		return "SESSION_STATE"
	case BufferReplayGzip:
		return "BUFFER_REPLAY_GZ"
	case SessionMetrics:
		return "SESSION_METRICS"
	default:
		return "UNKNOWN"
	}
}

// ErrShortBody is returned by a body parser when the payload is too small
// to contain the type's fixed-width fields.
var ErrShortBody = errors.New("protocol: message body too short")

// Frame is a decoded protocol message: a tag plus its raw body.
type Frame struct {
	Type FrameType
	Body []byte
}

// EncodeResize serializes a RESIZE body: uint16 cols, uint16 rows.
func EncodeResize(cols, rows uint16) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint16(buf[0:2], cols)
	binary.BigEndian.PutUint16(buf[2:4], rows)
	return buf
}

// DecodeResize parses a RESIZE body into (cols, rows).
func DecodeResize(body []byte) (cols, rows uint16, err error) {
	if len(body) < 4 {
		return 0, 0, ErrShortBody
	}
	return binary.BigEndian.Uint16(body[0:2]), binary.BigEndian.Uint16(body[2:4]), nil
}

// EncodeExit serializes an EXIT body: int32 exit code.
func EncodeExit(code int32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(code))
	return buf
}

// DecodeExit parses an EXIT body into an exit code.
func DecodeExit(body []byte) (int32, error) {
	if len(body) < 4 {
		return 0, ErrShortBody
	}
	return int32(binary.BigEndian.Uint32(body)), nil
}

// EncodeFloat64 serializes a single big-endian IEEE 754 float64, used by
// RESUME and SYNC.
func EncodeFloat64(v float64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, math.Float64bits(v))
	return buf
}

// DecodeFloat64 parses a single big-endian IEEE 754 float64.
func DecodeFloat64(body []byte) (float64, error) {
	if len(body) < 8 {
		return 0, ErrShortBody
	}
	return math.Float64frombits(binary.BigEndian.Uint64(body)), nil
}

// EncodeSessionState serializes a SESSION_STATE body.
func EncodeSessionState(active bool) []byte {
	if active {
		return []byte{1}
	}
	return []byte{0}
}

// DecodeSessionState parses a SESSION_STATE body into an active flag.
func DecodeSessionState(body []byte) (bool, error) {
	if len(body) < 1 {
		return false, ErrShortBody
	}
	return body[0] != 0, nil
}

// EncodeMetrics serializes a SESSION_METRICS body: four big-endian float64s,
// bps1, bps5, bps15, totalBytes.
func EncodeMetrics(bps1, bps5, bps15, totalBytes float64) []byte {
	buf := make([]byte, 32)
	binary.BigEndian.PutUint64(buf[0:8], math.Float64bits(bps1))
	binary.BigEndian.PutUint64(buf[8:16], math.Float64bits(bps5))
	binary.BigEndian.PutUint64(buf[16:24], math.Float64bits(bps15))
	binary.BigEndian.PutUint64(buf[24:32], math.Float64bits(totalBytes))
	return buf
}

// Metrics holds the decoded body of a SESSION_METRICS frame.
type Metrics struct {
	Bps1       float64
	Bps5       float64
	Bps15      float64
	TotalBytes float64
}

// DecodeMetrics parses a SESSION_METRICS body.
func DecodeMetrics(body []byte) (Metrics, error) {
	if len(body) < 32 {
		return Metrics{}, ErrShortBody
	}
	return Metrics{
		Bps1:       math.Float64frombits(binary.BigEndian.Uint64(body[0:8])),
		Bps5:       math.Float64frombits(binary.BigEndian.Uint64(body[8:16])),
		Bps15:      math.Float64frombits(binary.BigEndian.Uint64(body[16:24])),
		TotalBytes: math.Float64frombits(binary.BigEndian.Uint64(body[24:32])),
	}, nil
}
