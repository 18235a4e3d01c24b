package host

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/artpar/sesh/internal/protocol"
)

// serveViewer runs one viewer connection's handshake and input
// dispatch loop (spec §4.3's viewer input path and handshake). It
// owns the reentrant frame-parse buffer for this connection.
func (h *Host) serveViewer(v *viewer) {
	defer h.removeViewer(v)

	var parseBuf []byte
	readBuf := make([]byte, 4096)
	handshakeDone := false

	v.conn.SetReadDeadline(time.Now().Add(h.opts.Config.HandshakeWindow))

	for {
		n, err := v.conn.Read(readBuf)
		if err != nil {
			if !handshakeDone {
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					v.conn.SetReadDeadline(time.Time{})
					h.sendFullReplay(v)
					handshakeDone = true
					continue
				}
			}
			return
		}

		parseBuf = append(parseBuf, readBuf[:n]...)
		var parseErr error
		parseBuf, parseErr = protocol.Parse(parseBuf, func(f protocol.Frame) {
			if !handshakeDone {
				if f.Type == protocol.Resume {
					offset, err := protocol.DecodeFloat64(f.Body)
					v.conn.SetReadDeadline(time.Time{})
					handshakeDone = true
					if err != nil {
						h.sendFullReplay(v)
						return
					}
					h.sendResume(v, offset)
					return
				}
				// A non-RESUME frame this early means the peer isn't
				// attempting a resume; resolve the handshake with a
				// full replay before dispatching it normally.
				v.conn.SetReadDeadline(time.Time{})
				h.sendFullReplay(v)
				handshakeDone = true
			}
			h.dispatchFrame(v, f)
		})
		if parseErr != nil {
			return
		}
	}
}

// sendFullReplay implements the handshake timeout path of spec §4.3:
// BUFFER_REPLAY(read_full()) then SYNC(totalWritten).
func (h *Host) sendFullReplay(v *viewer) {
	data := h.ring.ReadFull()
	v.enqueue(protocol.EncodeReplay(data), false)
	v.enqueue(protocol.Encode(protocol.Sync, protocol.EncodeFloat64(float64(h.ring.TotalWritten()))), false)
	h.finishHandshake(v)
}

// sendResume implements RESUME handling: offsets <= 0 behave like a
// fresh replay; a too-old offset transparently falls back to full
// replay; otherwise the unsanitized delta is sent.
func (h *Host) sendResume(v *viewer, offset float64) {
	if offset <= 0 {
		h.sendFullReplay(v)
		return
	}
	data, ok := h.ring.ReadFrom(uint64(offset))
	if !ok {
		h.sendFullReplay(v)
		return
	}
	v.enqueue(protocol.EncodeReplay(data), false)
	v.enqueue(protocol.Encode(protocol.Sync, protocol.EncodeFloat64(float64(h.ring.TotalWritten()))), false)
	h.finishHandshake(v)
}

// finishHandshake sends the frames that follow replay-or-resume on
// every connection: TITLE (if one has been observed), SESSION_STATE,
// and EXIT if the PTY has already terminated.
func (h *Host) finishHandshake(v *viewer) {
	h.mu.RLock()
	title := h.title
	h.mu.RUnlock()

	if title != "" {
		v.enqueue(protocol.Encode(protocol.Title, []byte(title)), false)
	}
	v.enqueue(protocol.Encode(protocol.SessionState, protocol.EncodeSessionState(h.tr.Active())), false)

	if atomic.LoadInt32(&h.exited) == 1 {
		code := atomic.LoadInt32(&h.exitCode)
		v.enqueue(protocol.Encode(protocol.Exit, protocol.EncodeExit(code)), false)
	}
}

// dispatchFrame handles one post-handshake frame from a viewer: DATA
// writes to the PTY, RESIZE adjusts dimensions, everything else
// (including RESUME outside its window) is ignored per spec §4.3 and
// §7's malformed-frame policy.
func (h *Host) dispatchFrame(v *viewer, f protocol.Frame) {
	if atomic.LoadInt32(&h.exited) == 1 {
		return
	}
	switch f.Type {
	case protocol.Data:
		h.pty.Write(f.Body)
		if h.rec != nil {
			h.rec.WriteInput(f.Body)
		}
	case protocol.Resize:
		cols, rows, err := protocol.DecodeResize(f.Body)
		if err != nil {
			return
		}
		h.pty.Resize(cols, rows)
		h.mu.Lock()
		h.cols, h.rows = cols, rows
		h.dirty = true
		h.mu.Unlock()
		if h.rec != nil {
			h.rec.WriteResize(int(cols), int(rows))
		}
	default:
		// RESUME outside the handshake window, or any unrecognized
		// tag: ignored, not a disconnect.
	}
}
