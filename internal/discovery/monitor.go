package discovery

import (
	"net"
	"os"
	"sync"
	"time"

	"github.com/artpar/sesh/internal/logging"
	"github.com/artpar/sesh/internal/metadata"
	"github.com/artpar/sesh/internal/paths"
	"github.com/artpar/sesh/internal/protocol"
)

// monitor is a passive viewer connection kept open for the lifetime of
// the process so the in-memory session view stays in sync with PTY
// activity, title changes, and exit, per spec §4.4, instead of relying
// solely on periodic rescans of on-disk metadata.
type monitor struct {
	mu       sync.Mutex
	title    string
	active   bool
	exited   bool
	exitCode int32
}

var monitors = struct {
	mu   sync.Mutex
	byID map[string]*monitor
}{byID: make(map[string]*monitor)}

// ensureMonitor returns the existing monitor for id, closing conn since
// it's redundant, or adopts conn as a new monitor's connection and
// starts reading from it in the background.
func ensureMonitor(store *metadata.Store, id string, conn net.Conn) *monitor {
	monitors.mu.Lock()
	if mon, ok := monitors.byID[id]; ok {
		monitors.mu.Unlock()
		conn.Close()
		return mon
	}
	mon := &monitor{}
	monitors.byID[id] = mon
	monitors.mu.Unlock()

	go mon.run(store, id, conn)
	return mon
}

// run reads frames from the monitor connection until it closes or a
// protocol error occurs, applying each to the monitor's state.
func (mon *monitor) run(store *metadata.Store, id string, conn net.Conn) {
	defer func() {
		conn.Close()
		monitors.mu.Lock()
		delete(monitors.byID, id)
		monitors.mu.Unlock()
	}()

	var buf []byte
	raw := make([]byte, 4096)
	for {
		n, err := conn.Read(raw)
		if n > 0 {
			buf = append(buf, raw[:n]...)
			var perr error
			buf, perr = protocol.Parse(buf, func(f protocol.Frame) {
				mon.apply(store, id, f)
			})
			if perr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// apply folds a single frame into the monitor's view. BUFFER_REPLAY(_GZ)
// is deliberately left unhandled: the handshake always sends one, and a
// monitor has no use for historical output, so its body is parsed but
// never decoded.
func (mon *monitor) apply(store *metadata.Store, id string, f protocol.Frame) {
	mon.mu.Lock()
	switch f.Type {
	case protocol.Data:
		mon.active = true
	case protocol.Title:
		mon.title = string(f.Body)
	case protocol.SessionState:
		if active, err := protocol.DecodeSessionState(f.Body); err == nil {
			mon.active = active
		}
	case protocol.Exit:
		if code, err := protocol.DecodeExit(f.Body); err == nil {
			mon.exitCode = code
		}
		mon.exited = true
	}
	mon.mu.Unlock()

	if f.Type == protocol.Exit {
		markExited(store, id, mon.exitCode)
	}
}

// snapshot overlays the monitor's live view onto m, used by probeOne so
// a scan reflects title and exit state a plain socket probe can't see.
// The active flag is not copied: Metadata has no field for it.
func (mon *monitor) snapshot(m *metadata.Metadata) {
	mon.mu.Lock()
	defer mon.mu.Unlock()
	if mon.title != "" {
		m.Title = mon.title
	}
	if mon.exited {
		m.Status = metadata.StatusExited
		code := int(mon.exitCode)
		m.ExitCode = &code
	}
}

// markExited persists an exit observed by a monitor connection, mirroring
// markDead's crash-recovery bookkeeping but with a real exit code instead
// of -1.
func markExited(store *metadata.Store, id string, code int32) {
	m, err := store.Load(id)
	if err != nil {
		return
	}
	if m.Status == metadata.StatusExited {
		return
	}
	now := time.Now().UnixMilli()
	ec := int(code)
	m.Status = metadata.StatusExited
	m.ExitCode = &ec
	m.ExitedAt = &now
	if err := store.SaveBestEffort(m); err != nil {
		log.Warn("failed to persist monitor-observed exit", logging.F("id", id, "error", err.Error()))
	}
	os.Remove(paths.SocketPath(id))
}
