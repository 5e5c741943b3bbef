//go:build windows

package runner

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr keeps console children from opening a window.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
}
