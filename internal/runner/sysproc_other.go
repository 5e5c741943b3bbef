//go:build !windows

package runner

import "os/exec"

func configureSysProcAttr(*exec.Cmd) {}
