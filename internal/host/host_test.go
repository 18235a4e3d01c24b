//go:build !windows

package host

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/artpar/sesh/internal/config"
	"github.com/artpar/sesh/internal/protocol"
)

func waitForSocket(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("socket %s never appeared", path)
}

func testConfig() config.Config {
	c := config.Default()
	c.HandshakeWindow = 50 * time.Millisecond
	c.MetadataFlushPeriod = time.Hour
	c.MetricsPeriod = time.Hour
	return c
}

// readFrames reads from conn until n frames have been parsed or the
// deadline already set on conn is hit.
func readFrames(t *testing.T, conn net.Conn, n int) []protocol.Frame {
	t.Helper()
	var frames []protocol.Frame
	var buf []byte
	raw := make([]byte, 4096)
	for len(frames) < n {
		rn, err := conn.Read(raw)
		if err != nil {
			t.Fatalf("read: %v (got %d of %d frames)", err, len(frames), n)
		}
		buf = append(buf, raw[:rn]...)
		var parseErr error
		buf, parseErr = protocol.Parse(buf, func(f protocol.Frame) {
			frames = append(frames, f)
		})
		if parseErr != nil {
			t.Fatalf("parse: %v", parseErr)
		}
	}
	return frames
}

func TestFreshAttachHandshakeOrdering(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "abcd1234.sock")

	h, err := New(Options{
		ID:          "abcd1234",
		Command:     "/bin/sh",
		Args:        []string{"-c", "echo hi; sleep 5"},
		Cols:        80,
		Rows:        24,
		SocketPath:  sockPath,
		MetadataDir: dir,
		Config:      testConfig(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	go h.Run()
	waitForSocket(t, sockPath)

	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	frames := readFrames(t, conn, 3)
	if frames[0].Type != protocol.BufferReplay && frames[0].Type != protocol.BufferReplayGzip {
		t.Fatalf("frame 0 = %v, want BUFFER_REPLAY(_GZ)", frames[0].Type)
	}
	if frames[1].Type != protocol.Sync {
		t.Fatalf("frame 1 = %v, want SYNC", frames[1].Type)
	}
	if frames[2].Type != protocol.SessionState {
		t.Fatalf("frame 2 = %v, want SESSION_STATE", frames[2].Type)
	}

	replay, err := protocol.DecodeReplay(frames[0])
	if err != nil {
		t.Fatalf("DecodeReplay: %v", err)
	}
	if !strings.Contains(string(replay), "hi") {
		t.Fatalf("replay = %q, want it to contain %q", replay, "hi")
	}
}

func TestResumeAtCurrentOffsetYieldsEmptyReplay(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "efgh5678.sock")

	h, err := New(Options{
		ID:          "efgh5678",
		Command:     "/bin/sh",
		Args:        []string{"-c", "echo hi; sleep 5"},
		Cols:        80,
		Rows:        24,
		SocketPath:  sockPath,
		MetadataDir: dir,
		Config:      testConfig(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	go h.Run()
	waitForSocket(t, sockPath)

	first, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer first.Close()
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	frames := readFrames(t, first, 2)
	syncVal, err := protocol.DecodeFloat64(frames[1].Body)
	if err != nil {
		t.Fatalf("DecodeFloat64: %v", err)
	}

	second, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer second.Close()
	second.Write(protocol.Encode(protocol.Resume, protocol.EncodeFloat64(syncVal)))
	second.SetReadDeadline(time.Now().Add(2 * time.Second))

	resumed := readFrames(t, second, 2)
	if resumed[0].Type != protocol.BufferReplay {
		t.Fatalf("frame 0 = %v, want BUFFER_REPLAY", resumed[0].Type)
	}
	if len(resumed[0].Body) != 0 {
		t.Fatalf("expected empty replay at current offset, got %d bytes", len(resumed[0].Body))
	}
	if resumed[1].Type != protocol.Sync {
		t.Fatalf("frame 1 = %v, want SYNC", resumed[1].Type)
	}
}

