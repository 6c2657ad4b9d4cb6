//go:build !windows

package main

import (
	"os/exec"
	"syscall"
)

// setSysProcAttr puts the server in its own session so closing the
// terminal does not send it SIGHUP.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
