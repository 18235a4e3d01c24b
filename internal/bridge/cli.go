//go:build !windows

// Package bridge implements the two viewer-bridge flavours of spec
// §4.7: an interactive CLI attach that puts the local terminal into
// raw mode, and a network bridge that relays WebSocket frames to a
// host's domain socket.
package bridge

import (
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/artpar/sesh/internal/logging"
	"github.com/artpar/sesh/internal/metadata"
	"github.com/artpar/sesh/internal/paths"
	"github.com/artpar/sesh/internal/protocol"
)

// detachByte is the CLI's hardcoded sentinel (Ctrl+]) ending a local
// attach without killing the session. This is a UI contract of the
// CLI front-end, not of the host (spec §9).
const detachByte = 0x1d

const (
	reconnectInitial = 500 * time.Millisecond
	reconnectMax     = 5 * time.Second
)

// CLI attaches the calling process's stdin/stdout to a host socket as
// an interactive, writable viewer.
type CLI struct {
	SocketPath string
	Writable   bool

	log *logging.Logger
}

// NewCLI constructs a CLI bridge for the given host socket.
func NewCLI(socketPath string, writable bool) *CLI {
	return &CLI{SocketPath: socketPath, Writable: writable, log: logging.WithComponent("bridge.cli")}
}

// Run takes over the terminal until detach, exit, or an unrecoverable
// connection failure. It returns the PTY's exit code when one was
// observed, or -1 if the session is still running at detach.
func (c *CLI) Run() (int, error) {
	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return -1, fmt.Errorf("bridge: enter raw mode: %w", err)
	}
	defer term.Restore(int(os.Stdin.Fd()), oldState)

	backoff := reconnectInitial
	for {
		code, detached, err := c.attachOnce()
		if detached {
			return -1, nil
		}
		if err == nil {
			return code, nil
		}
		if !socketLooksAlive(c.SocketPath) && !sessionStillRunning(c.SocketPath) {
			return code, err
		}
		c.log.Warn("connection lost, reconnecting", logging.F("error", err.Error()))
		time.Sleep(backoff)
		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

// attachOnce performs a single connect-attach-until-disconnect cycle.
func (c *CLI) attachOnce() (code int, detached bool, err error) {
	conn, err := net.Dial("unix", c.SocketPath)
	if err != nil {
		return -1, false, err
	}
	defer conn.Close()

	sizeCh := make(chan struct{}, 1)
	stopResize := notifyResize(sizeCh)
	defer stopResize()

	go func() {
		for range sizeCh {
			if cols, rows, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
				conn.Write(protocol.Encode(protocol.Resize, protocol.EncodeResize(uint16(cols), uint16(rows))))
			}
		}
	}()

	stdinDone := make(chan bool, 1)
	go func() {
		sawDetach := c.relayStdin(conn)
		if sawDetach {
			conn.Close()
		}
		stdinDone <- sawDetach
	}()

	exitCode, _, readErr := c.relayOutput(conn)
	conn.Close()
	if <-stdinDone {
		return exitCode, true, nil
	}
	return exitCode, false, readErr
}

// relayStdin forwards terminal input as DATA frames, watching for the
// detach sentinel. It reports true when it stopped at the sentinel.
func (c *CLI) relayStdin(conn net.Conn) bool {
	buf := make([]byte, 4096)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return false
		}
		for i := 0; i < n; i++ {
			if buf[i] == detachByte {
				return true
			}
		}
		if n > 0 && c.Writable {
			conn.Write(protocol.Encode(protocol.Data, buf[:n]))
		}
	}
}

// relayOutput reads frames from conn and writes DATA/BUFFER_REPLAY
// payloads to stdout, returning the exit code on EXIT.
func (c *CLI) relayOutput(conn net.Conn) (code int, detached bool, err error) {
	var parseBuf []byte
	raw := make([]byte, 4096)
	for {
		n, rerr := conn.Read(raw)
		if n > 0 {
			parseBuf = append(parseBuf, raw[:n]...)
			var visitErr error
			parseBuf, visitErr = protocol.Parse(parseBuf, func(f protocol.Frame) {
				switch f.Type {
				case protocol.Data, protocol.BufferReplay:
					os.Stdout.Write(f.Body)
				case protocol.BufferReplayGzip:
					if body, gerr := protocol.Gunzip(f.Body); gerr == nil {
						os.Stdout.Write(body)
					}
				case protocol.Exit:
					if ec, derr := protocol.DecodeExit(f.Body); derr == nil {
						code = int(ec)
					}
				}
			})
			if visitErr != nil {
				return code, false, visitErr
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return code, false, nil
			}
			return code, false, rerr
		}
	}
}

func socketLooksAlive(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	return true
}

// sessionStillRunning consults on-disk metadata as a fallback when the
// socket file itself is momentarily missing: a host mid-restart-window
// may have its listener torn down without having flushed an exited
// status yet, and reconnect backoff shouldn't give up on that window.
func sessionStillRunning(socketPath string) bool {
	id := strings.TrimSuffix(filepath.Base(socketPath), ".sock")
	if id == "" {
		return false
	}
	store, err := metadata.NewStore(paths.SessionsDir())
	if err != nil {
		return false
	}
	m, err := store.Load(id)
	if err != nil {
		return false
	}
	return m.Status == metadata.StatusRunning
}

// notifyResize wires SIGWINCH to sizeCh (non-blocking, coalesced) and
// fires once immediately so the host learns the terminal's starting
// size. It returns a cleanup func that stops the signal relay and
// closes sizeCh.
func notifyResize(sizeCh chan struct{}) func() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGWINCH)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-sig:
				select {
				case sizeCh <- struct{}{}:
				default:
				}
			case <-done:
				return
			}
		}
	}()
	sizeCh <- struct{}{}

	return func() {
		signal.Stop(sig)
		close(done)
		close(sizeCh)
	}
}
