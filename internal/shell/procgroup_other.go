//go:build windows
// +build windows

package shell

import "os/exec"

func killProcessGroup(cmd *exec.Cmd) {}
