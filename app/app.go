package app

import (
	"context"
	"errors"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"

	"claude-ptyhost/log"
	"claude-ptyhost/session"
	"claude-ptyhost/ui"
)

const stopTimeout = 5 * time.Second

// Run hosts sess in a full-screen pane until the child exits or the user
// quits. A session that cannot start is reported in the pane and returned as
// a *session.SpawnError once the user dismisses it.
func Run(ctx context.Context, sess session.Session, opts session.TerminalOptions, programOpts ...tea.ProgramOption) (session.ExitStatus, error) {
	profile := termenv.NewOutput(os.Stdout).ColorProfile()

	term, openErr := session.Open(sess, opts)
	var pane *ui.Pane
	if openErr != nil {
		log.ErrorLog.Printf("failed to open session: %v", openErr)
		pane = ui.NewErrorPane(openErr, os.Stdout, profile)
	} else {
		pane = ui.NewPane(term, os.Stdout, profile)
	}

	p := tea.NewProgram(pane, append([]tea.ProgramOption{
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	}, programOpts...)...)
	_, runErr := p.Run()

	if term != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if err := term.Close(stopCtx); err != nil {
			log.WarningLog.Printf("failed to stop session: %v", err)
		}
	}

	if openErr != nil {
		return session.ExitStatus{}, openErr
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return session.ExitStatus{}, runErr
	}
	if status, ok := pane.ExitStatus(); ok {
		return status, nil
	}
	// Quit or cancelled: the child was stopped on our side.
	status, _ := term.ExitStatus()
	return status, nil
}
