//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// The child leads its own process group so tree termination can signal the
// whole group at once.
func configureCmdSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
