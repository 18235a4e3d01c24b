// Package ringbuf implements the host's per-session replay buffer: a
// fixed-capacity circular byte store with a monotonic global write
// offset, so a reconnecting viewer can ask for exactly the bytes it
// hasn't seen yet instead of trusting per-connection bookkeeping on
// the host.
package ringbuf

import (
	"bytes"
	"sync"
)

// DefaultCapacity is the buffer size used when a session doesn't
// override it: 10 MiB, per spec.
const DefaultCapacity = 10 * 1024 * 1024

// RingBuffer is a fixed-capacity circular byte store. The zero value is
// not usable; construct with New.
type RingBuffer struct {
	mu           sync.Mutex
	data         []byte
	writePos     int
	wrapped      bool
	totalWritten uint64
}

// New creates a ring buffer with the given capacity. A non-positive
// capacity falls back to DefaultCapacity.
func New(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RingBuffer{data: make([]byte, capacity)}
}

// Capacity returns the buffer's fixed capacity.
func (rb *RingBuffer) Capacity() int {
	return len(rb.data)
}

// Write appends bytes to the buffer, advancing totalWritten and
// overwriting the oldest retained bytes once the buffer is full. It
// never fails.
func (rb *RingBuffer) Write(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := len(p)
	rb.totalWritten += uint64(n)
	if n == 0 {
		return 0, nil
	}

	capacity := len(rb.data)
	if n >= capacity {
		copy(rb.data, p[n-capacity:])
		rb.writePos = 0
		rb.wrapped = true
		return n, nil
	}

	end := rb.writePos + n
	if end <= capacity {
		copy(rb.data[rb.writePos:end], p)
		rb.writePos = end % capacity
		if rb.writePos == 0 {
			rb.wrapped = true
		}
	} else {
		first := capacity - rb.writePos
		copy(rb.data[rb.writePos:], p[:first])
		copy(rb.data[0:], p[first:])
		rb.writePos = end - capacity
		rb.wrapped = true
	}
	return n, nil
}

// TotalWritten returns the monotonic count of bytes ever written.
func (rb *RingBuffer) TotalWritten() uint64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.totalWritten
}

// size returns min(totalWritten, capacity). Caller must hold rb.mu.
func (rb *RingBuffer) size() int {
	capacity := len(rb.data)
	if rb.totalWritten > uint64(capacity) {
		return capacity
	}
	return int(rb.totalWritten)
}

// Len returns the number of bytes currently retained.
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.size()
}

// linearized returns the current contents in write order, oldest byte
// first, without sanitization. Caller must hold rb.mu.
func (rb *RingBuffer) linearized() []byte {
	size := rb.size()
	if size == 0 {
		return nil
	}
	capacity := len(rb.data)
	if !rb.wrapped {
		// writePos == size in this regime: every write advanced the
		// cursor by its length without ever reaching the end.
		out := make([]byte, size)
		copy(out, rb.data[:size])
		return out
	}
	out := make([]byte, size)
	n := copy(out, rb.data[rb.writePos:capacity])
	copy(out[n:], rb.data[:rb.writePos])
	return out
}

// ReadFull returns a linearized, sanitized copy of the buffer's entire
// current contents: the last min(totalWritten, capacity) bytes written.
// Because a wrap boundary can land mid-escape-sequence or mid-codepoint,
// the result is sanitized by skipping up to and including the first
// newline; if no newline is present it is returned unsanitized (the
// unavoidable cost of sub-line wrap granularity).
func (rb *RingBuffer) ReadFull() []byte {
	rb.mu.Lock()
	raw := rb.linearized()
	wrapped := rb.wrapped
	rb.mu.Unlock()

	if !wrapped {
		return raw
	}
	return sanitize(raw)
}

// sanitize skips up to and including the first newline in b. If no
// newline is present, b is returned unchanged.
func sanitize(b []byte) []byte {
	idx := bytes.IndexByte(b, '\n')
	if idx == -1 {
		return b
	}
	return b[idx+1:]
}

// ReadFrom returns the unsanitized bytes written since offset, along
// with whether the request could be satisfied:
//
//   - offset >= totalWritten: caller has already seen everything;
//     returns an empty, non-nil slice and ok=true.
//   - offset < totalWritten-size: the requested range has already been
//     overwritten; returns ok=false so the caller falls back to a full
//     replay.
//   - otherwise: returns exactly the bytes in [offset, totalWritten).
func (rb *RingBuffer) ReadFrom(offset uint64) ([]byte, bool) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if offset >= rb.totalWritten {
		return []byte{}, true
	}

	size := rb.size()
	floor := rb.totalWritten - uint64(size)
	if offset < floor {
		return nil, false
	}

	skip := int(rb.totalWritten - offset)
	full := rb.linearized()
	return full[len(full)-skip:], true
}
