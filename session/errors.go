package session

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound marks a resumed child that failed because the wrapped CLI
// no longer knows the conversation. It is recovered by one restart and only
// shows up in logs.
var ErrSessionNotFound = errors.New("session not found")

// SpawnError is returned by Start when the child or its PTY cannot be created.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}
