//go:build windows

package main

import "os"

// terminateHost kills the host process outright; Windows has no
// SIGTERM equivalent the host could trap for a graceful shutdown.
func terminateHost(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}
