//go:build !windows

package agentexec

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcessGroup places the child in a new process group (its PID becomes
// the group ID), so the whole tree can be signaled at once.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup sends sig to every process in pid's group.
func killProcessGroup(pid int, sig syscall.Signal) {
	_ = unix.Kill(-pid, sig)
}
