//go:build windows

package session

import (
	"errors"
	"os"
	"os/exec"
)

// Windows has no SIGTERM; stopping goes straight to Kill.
var terminateSignal os.Signal = os.Kill

func signalGroup(pid int, sig os.Signal) error {
	return errors.New("process groups are not supported")
}

func exitStatus(err error) ExitStatus {
	if err == nil {
		return ExitStatus{}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return ExitStatus{Code: exitErr.ExitCode()}
	}
	return ExitStatus{Code: -1, Err: err}
}

func signalNumber(string) int {
	return 0
}
