package protocol

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// GzipThreshold is the replay size above which BUFFER_REPLAY_GZ is used
// instead of BUFFER_REPLAY, per spec: "used when raw would exceed ~64 KiB".
const GzipThreshold = 64 * 1024

// MaxDecompressedReplay bounds decompression to guard against a
// corrupted or hostile gzip stream expanding without limit.
const MaxDecompressedReplay = 64 * 1024 * 1024

var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		w, _ := gzip.NewWriterLevel(nil, gzip.BestSpeed)
		return w
	},
}

// Gzip compresses a buffer replay body for transport as BUFFER_REPLAY_GZ.
func Gzip(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzipWriterPool.Get().(*gzip.Writer)
	defer gzipWriterPool.Put(w)
	w.Reset(&buf)

	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("protocol: gzip write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("protocol: gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

// Gunzip decompresses a BUFFER_REPLAY_GZ body back into raw bytes.
func Gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("protocol: gzip reader: %w", err)
	}
	defer r.Close()

	limited := io.LimitReader(r, MaxDecompressedReplay+1)
	var buf bytes.Buffer
	n, err := io.Copy(&buf, limited)
	if err != nil {
		return nil, fmt.Errorf("protocol: gzip read: %w", err)
	}
	if n > MaxDecompressedReplay {
		return nil, fmt.Errorf("protocol: decompressed replay exceeds %d bytes", MaxDecompressedReplay)
	}
	return buf.Bytes(), nil
}

// EncodeReplay picks BUFFER_REPLAY or BUFFER_REPLAY_GZ based on size and
// returns the ready-to-send wire frame.
func EncodeReplay(data []byte) []byte {
	if len(data) <= GzipThreshold {
		return Encode(BufferReplay, data)
	}
	compressed, err := Gzip(data)
	if err != nil || len(compressed) >= len(data) {
		return Encode(BufferReplay, data)
	}
	return Encode(BufferReplayGzip, compressed)
}

// DecodeReplay normalizes a BUFFER_REPLAY or BUFFER_REPLAY_GZ frame body
// back to raw replay bytes.
func DecodeReplay(f Frame) ([]byte, error) {
	switch f.Type {
	case BufferReplay:
		return f.Body, nil
	case BufferReplayGzip:
		return Gunzip(f.Body)
	default:
		return nil, fmt.Errorf("protocol: %s is not a replay frame", f.Type)
	}
}
