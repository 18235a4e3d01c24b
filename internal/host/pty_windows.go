//go:build windows

package host

import (
	"errors"
	"syscall"
)

// ErrUnsupportedPlatform is returned by every PTY operation on Windows.
// The reference ConPTY binding used by the teacher project isn't part
// of this module's dependency set; a Windows host binary needs it
// wired in before this package can allocate a real pseudo-console.
var ErrUnsupportedPlatform = errors.New("host: pty unsupported on this platform")

// PTY is an unusable placeholder on Windows.
type PTY struct{}

func StartPTY(command string, args []string, cwd string, cols, rows uint16) (*PTY, error) {
	return nil, ErrUnsupportedPlatform
}

func (p *PTY) Read(buf []byte) (int, error)      { return 0, ErrUnsupportedPlatform }
func (p *PTY) Write(data []byte) (int, error)    { return 0, ErrUnsupportedPlatform }
func (p *PTY) Resize(cols, rows uint16) error    { return ErrUnsupportedPlatform }
func (p *PTY) PID() int                          { return 0 }
func (p *PTY) Signal(sig syscall.Signal) error   { return ErrUnsupportedPlatform }
func (p *PTY) Terminate() error                  { return ErrUnsupportedPlatform }
func (p *PTY) Wait() int                         { return -1 }
func (p *PTY) Close() error                      { return nil }
