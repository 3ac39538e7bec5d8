//go:build linux

package chromium

import (
	"os/exec"
	"syscall"
)

// killAfterParent makes the browser receive SIGKILL when the process that
// launched it dies.
func killAfterParent(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Pdeathsig: syscall.SIGKILL}
}
