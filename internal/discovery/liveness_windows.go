//go:build windows

package discovery

import "os"

// processAlive reports whether pid names a live process. FindProcess
// always succeeds on Windows, so liveness here leans entirely on the
// socket-probe fallback in probeOne.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	_, err := os.FindProcess(pid)
	return err == nil
}
