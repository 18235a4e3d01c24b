//go:build windows

package host

// installSignalHandlers is a no-op on Windows; the PTY layer itself is
// unsupported there (see pty_windows.go).
func installSignalHandlers(h *Host) {}
