//go:build !windows

package main

import (
	"os"
	"syscall"
)

// terminateHost sends SIGTERM to the host process, which forwards it
// into a PTY SIGTERM and flushes exit metadata before exiting.
func terminateHost(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(syscall.SIGTERM)
}
