//go:build !windows

package session

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

var terminateSignal os.Signal = unix.SIGTERM

// signalGroup signals the whole process group. The PTY child is a session
// leader, so its pid is also the group id.
func signalGroup(pid int, sig os.Signal) error {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return errors.New("unsupported signal")
	}
	return unix.Kill(-pid, s)
}

func exitStatus(err error) ExitStatus {
	if err == nil {
		return ExitStatus{}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return ExitStatus{Code: -1, Signal: unix.SignalName(ws.Signal())}
		}
		return ExitStatus{Code: exitErr.ExitCode()}
	}
	return ExitStatus{Code: -1, Err: err}
}

func signalNumber(name string) int {
	return int(unix.SignalNum(name))
}
