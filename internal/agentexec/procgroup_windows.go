//go:build windows

package agentexec

import (
	"os/exec"
	"strconv"
	"syscall"
)

// setProcessGroup starts the child in a new process group so taskkill /T
// can reach its descendants.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// killProcessGroup shells out to taskkill /F /T /PID, the Windows
// equivalent of signaling a process group (§4.4 Recover step 3).
func killProcessGroup(pid int, _ syscall.Signal) {
	_ = exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid)).Run()
}
