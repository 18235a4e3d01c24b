//go:build !windows

package discovery

import (
	"os"
	"syscall"
)

// processAlive reports whether pid names a live process, using
// signal 0 the way the teacher's PTY layer already does for liveness
// checks.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
