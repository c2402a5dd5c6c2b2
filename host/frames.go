package host

import (
	"claude-ptyhost/session"
	"claude-ptyhost/terminal"
)

// Server frame types.
const (
	FrameRuns    = "runs"
	FrameSession = "session"
	FrameExit    = "exit"
	FrameError   = "error"
)

// Client frame types.
const (
	FrameKey    = "key"
	FrameInput  = "input"
	FrameResize = "resize"
)

// ServerFrame is one JSON text message sent to the client.
type ServerFrame struct {
	Type         string               `json:"type"`
	Runs         []terminal.StyledRun `json:"runs,omitempty"`
	OldSessionID string               `json:"oldSessionId,omitempty"`
	NewSessionID string               `json:"newSessionId,omitempty"`
	Code         *int                 `json:"code,omitempty"`
	Signal       string               `json:"signal,omitempty"`
	Message      string               `json:"message,omitempty"`
}

// ClientFrame is one JSON text message received from the client.
type ClientFrame struct {
	Type string             `json:"type"`
	Key  *terminal.KeyEvent `json:"key,omitempty"`
	Data string             `json:"data,omitempty"`
	Cols int                `json:"cols,omitempty"`
	Rows int                `json:"rows,omitempty"`
}

func frameFor(ev session.Event) ServerFrame {
	switch ev := ev.(type) {
	case session.RunsEvent:
		return ServerFrame{Type: FrameRuns, Runs: ev.Runs}
	case session.SessionUpdatedEvent:
		return ServerFrame{
			Type:         FrameSession,
			OldSessionID: ev.Update.OldSessionID,
			NewSessionID: ev.Update.NewSessionID,
		}
	case session.ExitEvent:
		code := ev.Status.Code
		f := ServerFrame{Type: FrameExit, Code: &code, Signal: ev.Status.Signal}
		if ev.Status.Err != nil {
			f.Message = ev.Status.Err.Error()
		}
		return f
	}
	return ServerFrame{Type: FrameError, Message: "unknown event"}
}

func errorFrame(err error) ServerFrame {
	return ServerFrame{Type: FrameError, Message: err.Error()}
}
