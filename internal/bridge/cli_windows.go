//go:build windows

// Package bridge implements the two viewer-bridge flavours of spec
// §4.7. The interactive CLI flavour isn't wired up on Windows: resize
// delivery rides SIGWINCH, which the host's process model doesn't
// have there.
package bridge

import "errors"

// ErrUnsupportedPlatform is returned by CLI.Run on Windows.
var ErrUnsupportedPlatform = errors.New("bridge: interactive CLI attach unsupported on this platform")

// CLI is an unusable placeholder on Windows.
type CLI struct {
	SocketPath string
	Writable   bool
}

func NewCLI(socketPath string, writable bool) *CLI {
	return &CLI{SocketPath: socketPath, Writable: writable}
}

func (c *CLI) Run() (int, error) {
	return -1, ErrUnsupportedPlatform
}
