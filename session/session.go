// Package session supervises one interactive child process per session: it
// spawns the child on a PTY, forwards input, pumps output into a screen
// buffer, and silently restarts a resumed conversation once when the wrapped
// CLI reports that the conversation no longer exists.
package session

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// Flags names the wrapped CLI's session flags.
type Flags struct {
	Resume    string
	SessionID string
}

var DefaultFlags = Flags{Resume: "--resume", SessionID: "--session-id"}

// Session describes what to launch. SessionID is replaced at most once, by a
// resume retry; everything else is fixed for the session's lifetime apart from
// the dimensions, which follow resizes.
type Session struct {
	Command          string
	Args             []string
	WorkingDirectory string
	Columns          int
	Rows             int
	SessionID        string
	IsNewSession     bool
}

// Validate checks the session can be launched.
func (s Session) Validate() error {
	if s.Command == "" {
		return errors.New("command is required")
	}
	if s.Columns <= 0 || s.Rows <= 0 {
		return fmt.Errorf("invalid terminal size %dx%d", s.Columns, s.Rows)
	}
	info, err := os.Stat(s.WorkingDirectory)
	if err != nil {
		return fmt.Errorf("working directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("working directory %s is not a directory", s.WorkingDirectory)
	}
	return nil
}

// Resumable reports whether the launch resumes an existing conversation, which
// is the only case the resume retry protocol watches.
func (s Session) Resumable() bool {
	return !s.IsNewSession && s.SessionID != ""
}

// LaunchArgs returns the child's argument list.
func (s Session) LaunchArgs(f Flags) []string {
	args := append([]string(nil), s.Args...)
	switch {
	case s.SessionID == "":
	case s.IsNewSession:
		args = append(args, f.SessionID, s.SessionID)
	default:
		args = append(args, f.Resume, s.SessionID)
	}
	return args
}

// Env appends the terminal variables to base. COLUMNS and LINES always match
// the size the PTY is opened with.
func (s Session) Env(base []string) []string {
	env := append([]string(nil), base...)
	return append(env,
		"COLUMNS="+strconv.Itoa(s.Columns),
		"LINES="+strconv.Itoa(s.Rows),
		"TERM=xterm-256color",
		"COLORTERM=truecolor",
	)
}

func (s Session) spec(f Flags) ProcessSpec {
	return ProcessSpec{
		Path:    s.Command,
		Args:    s.LaunchArgs(f),
		Dir:     s.WorkingDirectory,
		Env:     s.Env(os.Environ()),
		Columns: s.Columns,
		Rows:    s.Rows,
	}
}
