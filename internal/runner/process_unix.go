//go:build unix

package runner

import (
	"errors"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalGroup delivers sig to the process group led by cmd. A process that
// already exited is not an error.
func signalGroup(cmd *exec.Cmd, sig unix.Signal) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	err := unix.Kill(-cmd.Process.Pid, sig)
	if err == nil || errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

func interruptGroup(cmd *exec.Cmd) error { return signalGroup(cmd, unix.SIGINT) }

func terminateGroup(cmd *exec.Cmd) error { return signalGroup(cmd, unix.SIGTERM) }

func killGroup(cmd *exec.Cmd) error { return signalGroup(cmd, unix.SIGKILL) }
