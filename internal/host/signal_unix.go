//go:build !windows

package host

import (
	"os"
	"os/signal"
	"syscall"
)

// installSignalHandlers wires SIGTERM to graceful shutdown and ignores
// SIGHUP, since the host is detached from any controlling terminal and
// a hangup on that terminal must not kill it (spec §4.3).
func installSignalHandlers(h *Host) {
	signal.Ignore(syscall.SIGHUP)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM)
	go func() {
		for range sigCh {
			h.handleSIGTERM()
		}
	}()
}
