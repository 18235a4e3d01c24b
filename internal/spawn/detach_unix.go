//go:build !windows

package spawn

import (
	"os/exec"
	"syscall"
)

// detach puts the host process in its own session so it survives the
// spawning process's exit and isn't signaled by its controlling
// terminal.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
