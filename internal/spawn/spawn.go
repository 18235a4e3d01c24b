// Package spawn creates the detached host process for a new session
// and waits for its domain socket to become accept-ready, per spec
// §4.5.
package spawn

import (
	"crypto/rand"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/artpar/sesh/internal/paths"
)

// Result is returned on a successful spawn.
type Result struct {
	ID         string
	SocketPath string
}

// hostBinaryName is the native host binary the supervisor prefers.
const hostBinaryName = "sesh-host"

// NewID generates an 8-hex-character session id.
func NewID() (string, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("spawn: generate id: %w", err)
	}
	return fmt.Sprintf("%02x%02x%02x%02x", b[0], b[1], b[2], b[3]), nil
}

// Options describes the session to spawn.
type Options struct {
	Command      string
	Args         []string
	Cwd          string
	Cols, Rows   uint16
	PollDeadline time.Duration // default 3s if zero
}

// Spawn generates an id, locates the host binary, launches it
// detached inheriting the caller's environment and working directory,
// and polls until its domain socket accepts connections.
func Spawn(opts Options) (*Result, error) {
	id, err := NewID()
	if err != nil {
		return nil, err
	}

	if err := paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("spawn: prepare state dirs: %w", err)
	}
	sockPath := paths.SocketPath(id)

	hostBin, err := resolveHostBinary()
	if err != nil {
		return nil, err
	}

	cwd := opts.Cwd
	if cwd == "" {
		if wd, err := os.Getwd(); err == nil {
			cwd = wd
		}
	}

	args := []string{id, fmt.Sprint(opts.Cols), fmt.Sprint(opts.Rows), cwd, opts.Command}
	args = append(args, opts.Args...)

	cmd := exec.Command(hostBin, args...)
	cmd.Env = os.Environ()
	cmd.Dir = cwd
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn: start host process: %w", err)
	}
	// The host is meant to outlive this process; release it rather
	// than reaping it as a child.
	go cmd.Process.Release()

	deadline := opts.PollDeadline
	if deadline <= 0 {
		deadline = 3 * time.Second
	}
	if err := pollSocket(sockPath, deadline); err != nil {
		return nil, err
	}

	return &Result{ID: id, SocketPath: sockPath}, nil
}

// resolveHostBinary finds the native host binary on PATH, preferring
// the sibling of the currently-running executable so a packaged
// install doesn't depend on PATH at all.
func resolveHostBinary() (string, error) {
	if exe, err := os.Executable(); err == nil {
		candidate := hostBinaryName
		if dir := execDir(exe); dir != "" {
			candidate = dir + string(os.PathSeparator) + hostBinaryName
		}
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	if found, err := exec.LookPath(hostBinaryName); err == nil {
		return found, nil
	}
	return "", fmt.Errorf("spawn: %s not found next to executable or on PATH", hostBinaryName)
}

func execDir(exe string) string {
	for i := len(exe) - 1; i >= 0; i-- {
		if exe[i] == os.PathSeparator {
			return exe[:i]
		}
	}
	return ""
}

// pollSocket dials sockPath with exponential back-off until it
// accepts a connection or the deadline passes.
func pollSocket(sockPath string, deadline time.Duration) error {
	return pollSocketImpl(sockPath, deadline)
}
