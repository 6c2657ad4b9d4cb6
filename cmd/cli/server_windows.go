//go:build windows

package main

import (
	"os/exec"
	"syscall"
)

// setSysProcAttr starts the server in a new process group without a console
// window.
func setSysProcAttr(cmd *exec.Cmd) {
	const createNoWindow = 0x08000000
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | createNoWindow,
	}
}
