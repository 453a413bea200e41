//go:build !unix

package runner

import (
	"errors"
	"os"
	"os/exec"
)

func setProcessGroup(*exec.Cmd) {}

func killProcess(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func interruptGroup(cmd *exec.Cmd) error { return killProcess(cmd) }

func terminateGroup(cmd *exec.Cmd) error { return killProcess(cmd) }

func killGroup(cmd *exec.Cmd) error { return killProcess(cmd) }
