//go:build !windows

package host

import (
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
)

// PTY owns one pseudo-terminal and the command running inside it.
type PTY struct {
	ptmx *os.File
	cmd  *exec.Cmd

	mu     sync.Mutex
	closed bool
}

// StartPTY allocates a PTY, spawns command/args inside it with the given
// working directory and initial dimensions, and inherits the process
// environment.
func StartPTY(command string, args []string, cwd string, cols, rows uint16) (*PTY, error) {
	cmd := exec.Command(command, args...)
	cmd.Dir = cwd
	cmd.Env = os.Environ()

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: rows, Cols: cols})
	if err != nil {
		return nil, err
	}

	return &PTY{ptmx: ptmx, cmd: cmd}, nil
}

// Read reads raw PTY output.
func (p *PTY) Read(buf []byte) (int, error) {
	return p.ptmx.Read(buf)
}

// Write sends input to the controlled process.
func (p *PTY) Write(data []byte) (int, error) {
	return p.ptmx.Write(data)
}

// Resize changes the PTY's reported terminal dimensions.
func (p *PTY) Resize(cols, rows uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return io.ErrClosedPipe
	}
	return pty.Setsize(p.ptmx, &pty.Winsize{Rows: rows, Cols: cols})
}

// PID returns the controlled process's OS process id.
func (p *PTY) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Signal delivers sig to the controlled process.
func (p *PTY) Signal(sig syscall.Signal) error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Signal(sig)
}

// Terminate sends SIGTERM, the host's own termination policy per
// spec §4.3.
func (p *PTY) Terminate() error {
	return p.Signal(syscall.SIGTERM)
}

// Wait blocks until the controlled process exits and returns its exit
// code, computing 128+signum for a signal death per spec §4.3.
func (p *PTY) Wait() int {
	err := p.cmd.Wait()
	if err == nil {
		return 0
	}
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return -1
	}
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		return exitErr.ExitCode()
	}
	if status.Signaled() {
		return 128 + int(status.Signal())
	}
	return status.ExitStatus()
}

// Close releases the PTY master end. It does not itself kill the child;
// callers signal the process separately so termination ordering matches
// spec §4.3 (SIGTERM, then PTY teardown).
func (p *PTY) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	return p.ptmx.Close()
}
