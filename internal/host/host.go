// Package host implements the per-session host process: it owns one
// PTY and one listening domain socket, fans PTY output out to every
// connected viewer, demultiplexes viewer input back into the PTY, and
// keeps the session's on-disk metadata current. This is the component
// spec.md calls out as the bulk of the system (§2, "PTY host").
package host

import (
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/artpar/sesh/internal/config"
	"github.com/artpar/sesh/internal/logging"
	"github.com/artpar/sesh/internal/metadata"
	"github.com/artpar/sesh/internal/metrics"
	"github.com/artpar/sesh/internal/protocol"
	"github.com/artpar/sesh/internal/recording"
	"github.com/artpar/sesh/internal/ringbuf"
)

// Options configures a new Host.
type Options struct {
	ID      string
	Command string
	Args    []string
	Cwd     string
	Cols    uint16
	Rows    uint16

	SocketPath  string
	MetadataDir string
	Config      config.Config
	RecordPath  string // empty disables recording
}

// Host is one session's PTY owner and fan-out point.
type Host struct {
	opts Options
	log  *logging.Logger

	pty    *PTY
	ring   *ringbuf.RingBuffer
	tr     *metrics.Tracker
	store  *metadata.Store
	osc    oscScanner
	rec    *recording.Recorder

	listener net.Listener

	mu        sync.RWMutex
	viewers   map[uint64]*viewer
	nextID    uint64
	title     string
	cols      uint16
	rows      uint16
	dirty     bool

	exited   int32 // atomic bool
	exitCode int32
}

// New constructs a Host without starting the PTY or accepting
// connections; call Run to do both.
func New(opts Options) (*Host, error) {
	store, err := metadata.NewStore(opts.MetadataDir)
	if err != nil {
		return nil, err
	}

	capacity := opts.Config.RingBufferCapacity
	h := &Host{
		opts:    opts,
		log:     logging.WithComponent("host." + opts.ID),
		ring:    ringbuf.New(capacity),
		tr:      metrics.New(opts.Config.IdleTimeout, opts.Config.MetricsPeriod),
		store:   store,
		viewers: make(map[uint64]*viewer),
		cols:    opts.Cols,
		rows:    opts.Rows,
	}
	return h, nil
}

// Run allocates the PTY, binds the domain socket, and runs the host
// until the PTY exits or a termination signal arrives. It implements
// the startup flow of spec §4.3 and returns the exit code the process
// should use.
func (h *Host) Run() int {
	if err := os.RemoveAll(h.opts.SocketPath); err != nil && !os.IsNotExist(err) {
		h.log.Warn("failed removing stale socket", logging.F("error", err.Error()))
	}

	pty, err := StartPTY(h.opts.Command, h.opts.Args, h.opts.Cwd, h.opts.Cols, h.opts.Rows)
	if err != nil {
		h.log.Error("spawn failed", logging.F("error", err.Error()))
		h.writeSpawnFailure(err)
		return 127
	}
	h.pty = pty

	if h.opts.RecordPath != "" {
		if rec, err := recording.NewRecorder(h.opts.RecordPath, int(h.opts.Cols), int(h.opts.Rows), ""); err == nil {
			h.rec = rec
		} else {
			h.log.Warn("recording disabled", logging.F("error", err.Error()))
		}
	}

	ln, err := net.Listen("unix", h.opts.SocketPath)
	if err != nil {
		h.log.Error("socket bind failed", logging.F("error", err.Error()))
		h.pty.Close()
		return 1
	}
	h.listener = ln

	h.writeInitialMetadata()
	h.installSignalHandlers()

	go h.acceptLoop()
	go h.flushLoop()
	go h.metricsLoop()
	go h.idleLoop()
	go h.readOutput()

	code := h.pty.Wait()
	h.onExit(code)
	return 0
}

func (h *Host) writeSpawnFailure(spawnErr error) {
	now := time.Now()
	m := &metadata.Metadata{
		ID:        h.opts.ID,
		Command:   h.opts.Command,
		Args:      h.opts.Args,
		Cwd:       h.opts.Cwd,
		CreatedAt: now.UnixMilli(),
		Status:    metadata.StatusExited,
		Cols:      int(h.opts.Cols),
		Rows:      int(h.opts.Rows),
		StartedAt: now.Format(time.RFC3339),
		Error:     spawnErr.Error(),
	}
	code := 127
	exitedAt := now.UnixMilli()
	m.ExitCode = &code
	m.ExitedAt = &exitedAt
	h.store.SaveBestEffort(m)
}

func (h *Host) writeInitialMetadata() {
	now := time.Now()
	m := &metadata.Metadata{
		ID:           h.opts.ID,
		Command:      h.opts.Command,
		Args:         h.opts.Args,
		Cwd:          h.opts.Cwd,
		CreatedAt:    now.UnixMilli(),
		LastActivity: now.UnixMilli(),
		Status:       metadata.StatusRunning,
		Cols:         int(h.opts.Cols),
		Rows:         int(h.opts.Rows),
		PID:          os.Getpid(),
		StartedAt:    now.Format(time.RFC3339),
	}
	if err := h.store.Save(m); err != nil {
		h.log.Warn("initial metadata write failed", logging.F("error", err.Error()))
	}
}

func (h *Host) installSignalHandlers() {
	installSignalHandlers(h)
}

// handleSIGTERM implements spec §4.3's SIGTERM policy: kill the PTY,
// flush metadata as exited with code -1, unlink the socket, exit 0.
func (h *Host) handleSIGTERM() {
	h.log.Info("received SIGTERM, terminating")
	if h.pty != nil {
		h.pty.Terminate()
	}
	h.flushExitMetadata(-1)
	h.closeListener()
	os.Exit(0)
}

func (h *Host) closeListener() {
	if h.listener != nil {
		h.listener.Close()
	}
	os.RemoveAll(h.opts.SocketPath)
}

// onExit runs the termination sequence of spec §4.3 after the PTY
// child has exited with the given code.
func (h *Host) onExit(code int) {
	atomic.StoreInt32(&h.exitCode, int32(code))
	atomic.StoreInt32(&h.exited, 1)

	h.broadcast(protocol.Encode(protocol.Exit, protocol.EncodeExit(int32(code))), false)
	h.flushExitMetadata(code)
	if h.rec != nil {
		h.rec.Close()
	}

	time.Sleep(h.gracePeriod())

	h.mu.Lock()
	for _, v := range h.viewers {
		v.disconnect()
	}
	h.mu.Unlock()

	h.closeListener()
}

func (h *Host) gracePeriod() time.Duration {
	return 1 * time.Second
}

func (h *Host) flushExitMetadata(code int) {
	now := time.Now()
	m, err := h.store.Load(h.opts.ID)
	if err != nil {
		m = &metadata.Metadata{ID: h.opts.ID, Command: h.opts.Command, Args: h.opts.Args, Cwd: h.opts.Cwd}
	}
	m.Status = metadata.StatusExited
	c := code
	m.ExitCode = &c
	exitedAt := now.UnixMilli()
	m.ExitedAt = &exitedAt
	m.LastActivity = now.UnixMilli()
	h.snapshotInto(m)
	h.store.SaveBestEffort(m)
}

// snapshotInto copies the host's mutable in-memory state into m,
// without touching fields the caller has already set (status, exit
// fields). Caller must not hold h.mu.
func (h *Host) snapshotInto(m *metadata.Metadata) {
	h.mu.RLock()
	m.Title = h.title
	m.Cols = int(h.cols)
	m.Rows = int(h.rows)
	h.mu.RUnlock()

	total := h.ring.TotalWritten()
	m.TotalBytesWritten = &total
	bps1, bps5, bps15, _ := h.tr.Rates()
	m.Bps1 = &bps1
	m.Bps5 = &bps5
	m.Bps15 = &bps15
	bps := bps1
	m.BytesPerSecond = &bps
	m.LastActiveAt = time.Now().Format(time.RFC3339)
}

// acceptLoop admits viewer connections until the listener closes.
func (h *Host) acceptLoop() {
	for {
		conn, err := h.listener.Accept()
		if err != nil {
			return
		}
		id := atomic.AddUint64(&h.nextID, 1)
		v := newViewer(id, conn)
		h.mu.Lock()
		h.viewers[id] = v
		h.mu.Unlock()
		go h.serveViewer(v)
	}
}

func (h *Host) removeViewer(v *viewer) {
	h.mu.Lock()
	delete(h.viewers, v.id)
	h.mu.Unlock()
	v.disconnect()
}

// broadcast sends a wire-encoded frame to every currently connected
// viewer. droppable controls the per-viewer backpressure policy (spec
// §5 property 4).
func (h *Host) broadcast(wire []byte, droppable bool) {
	h.mu.RLock()
	vs := make([]*viewer, 0, len(h.viewers))
	for _, v := range h.viewers {
		vs = append(vs, v)
	}
	h.mu.RUnlock()

	for _, v := range vs {
		v.enqueue(wire, droppable)
	}
}

func (h *Host) setTitle(title string) {
	h.mu.Lock()
	h.title = title
	h.dirty = true
	h.mu.Unlock()
	h.broadcast(protocol.Encode(protocol.Title, []byte(title)), false)
	h.flushMetadataNow()
}

func (h *Host) markDirty() {
	h.mu.Lock()
	h.dirty = true
	h.mu.Unlock()
}

func (h *Host) flushMetadataNow() {
	now := time.Now()
	m, err := h.store.Load(h.opts.ID)
	if err != nil {
		m = &metadata.Metadata{ID: h.opts.ID, Command: h.opts.Command, Args: h.opts.Args, Cwd: h.opts.Cwd, Status: metadata.StatusRunning, PID: os.Getpid()}
	}
	m.LastActivity = now.UnixMilli()
	h.snapshotInto(m)
	if err := h.store.SaveBestEffort(m); err != nil {
		h.log.Warn("metadata flush failed", logging.F("error", err.Error()))
	}
	h.mu.Lock()
	h.dirty = false
	h.mu.Unlock()
}

// flushLoop implements the 5-second metadata flush timer of spec §4.3.
func (h *Host) flushLoop() {
	t := time.NewTicker(h.opts.Config.MetadataFlushPeriod)
	defer t.Stop()
	for range t.C {
		if atomic.LoadInt32(&h.exited) == 1 {
			return
		}
		h.mu.RLock()
		dirty := h.dirty
		h.mu.RUnlock()
		if dirty {
			h.flushMetadataNow()
		}
	}
}

// metricsLoop implements the periodic SESSION_METRICS broadcast.
func (h *Host) metricsLoop() {
	t := time.NewTicker(h.opts.Config.MetricsPeriod)
	defer t.Stop()
	for range t.C {
		if atomic.LoadInt32(&h.exited) == 1 {
			return
		}
		h.tr.Sample(time.Now())
		bps1, bps5, bps15, total := h.tr.Rates()
		h.broadcast(protocol.Encode(protocol.SessionMetrics, protocol.EncodeMetrics(bps1, bps5, bps15, float64(total))), false)
	}
}

// idleLoop polls the activity tracker and broadcasts SESSION_STATE on
// active<->idle transitions the PTY output path didn't already catch.
func (h *Host) idleLoop() {
	t := time.NewTicker(500 * time.Millisecond)
	defer t.Stop()
	for range t.C {
		if atomic.LoadInt32(&h.exited) == 1 {
			return
		}
		if h.tr.CheckIdle(time.Now()) {
			h.broadcast(protocol.Encode(protocol.SessionState, protocol.EncodeSessionState(false)), false)
		}
	}
}

// readOutput is the PTY output path of spec §4.3: read, update
// activity/rate tracking, strip OSC escapes, append to the ring
// buffer, and fan out DATA to every viewer. It returns when the PTY
// is closed out from under it (the process has exited).
func (h *Host) readOutput() {
	buf := make([]byte, 4096)
	for {
		n, err := h.pty.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])

		wasIdle := !h.tr.Active()
		h.tr.RecordOutput(n, time.Now())

		res := h.osc.Feed(data)
		if res.title != nil {
			h.setTitle(*res.title)
		}
		for _, note := range res.notifications {
			h.broadcast(protocol.Encode(protocol.Notification, []byte(note)), false)
		}

		if len(res.clean) > 0 {
			h.ring.Write(res.clean)
			h.broadcast(protocol.Encode(protocol.Data, res.clean), true)
			if h.rec != nil {
				h.rec.WriteOutput(res.clean)
			}
		}
		h.markDirty()

		if wasIdle && h.tr.Active() {
			h.broadcast(protocol.Encode(protocol.SessionState, protocol.EncodeSessionState(true)), false)
		}
	}
}

func (h *Host) Listener() net.Listener { return h.listener }

func (h *Host) String() string {
	return fmt.Sprintf("host(%s)", h.opts.ID)
}
