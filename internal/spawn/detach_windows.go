//go:build windows

package spawn

import (
	"os/exec"
	"syscall"
)

const createNewProcessGroup = 0x00000200

// detach starts the host process in a new process group so it
// survives the spawning process's exit.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: createNewProcessGroup}
}
