// Package ui renders one hosted terminal as a bubbletea model.
package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/termenv"

	"claude-ptyhost/inspect"
	"claude-ptyhost/log"
	"claude-ptyhost/session"
	"claude-ptyhost/terminal"
	"claude-ptyhost/ui/overlay"
)

// Terminal is what the pane drives. *session.Terminal implements it.
type Terminal interface {
	Events() <-chan session.Event
	SendKey(k terminal.KeyEvent) error
	SendBytes(p []byte) error
	Resize(columns, rows int) error
	PlainText() string
	Phase() session.Phase
	Session() session.Session
	Close(ctx context.Context) error
}

// statusBarHeight is taken from the window; the rest is the child's screen.
const statusBarHeight = 1

const closeTimeout = 5 * time.Second

type eventMsg struct {
	ev session.Event
}

type closedMsg struct{}

// Pane shows the screen of one terminal with a status bar underneath.
type Pane struct {
	term Terminal
	keys paneKeys

	renderer *lipgloss.Renderer
	styles   statusBarStyles
	spinner  spinner.Model
	overlay  *overlay.ResumeOverlay

	width  int
	height int

	runs      []terminal.StyledRun
	sessionID string
	restarted bool
	exit      *session.ExitStatus
	err       error
	notice    string

	// copy is swapped in tests.
	copy func(string) error
}

// NewPane renders term's output to out using the given color profile.
func NewPane(term Terminal, out io.Writer, profile termenv.Profile) *Pane {
	p := newPane(out, profile)
	p.term = term
	p.sessionID = term.Session().SessionID
	return p
}

// NewErrorPane shows err, typically a failed spawn, until a key is pressed.
func NewErrorPane(err error, out io.Writer, profile termenv.Profile) *Pane {
	p := newPane(out, profile)
	p.err = err
	return p
}

func newPane(out io.Writer, profile termenv.Profile) *Pane {
	r := lipgloss.NewRenderer(out, termenv.WithProfile(profile))
	r.SetColorProfile(profile)
	s := spinner.New(spinner.WithSpinner(spinner.MiniDot))
	p := &Pane{
		keys:     defaultPaneKeys,
		renderer: r,
		styles:   newStatusBarStyles(r),
		spinner:  s,
		copy:     clipboard.WriteAll,
	}
	p.overlay = overlay.NewResumeOverlay("Resuming conversation", &p.spinner)
	p.overlay.SetStatus("checking the session still exists")
	return p
}

func (p *Pane) Init() tea.Cmd {
	if p.term == nil {
		return nil
	}
	return tea.Batch(p.waitForEvent(), p.spinner.Tick)
}

func (p *Pane) waitForEvent() tea.Cmd {
	events := p.term.Events()
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return closedMsg{}
		}
		return eventMsg{ev: ev}
	}
}

func (p *Pane) closeTerminal() tea.Cmd {
	term := p.term
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := term.Close(ctx); err != nil {
			log.WarningLog.Printf("failed to stop session: %v", err)
		}
		return closedMsg{}
	}
}

func (p *Pane) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width, p.height = msg.Width, msg.Height
		p.overlay.SetWidth(min(60, max(msg.Width-4, 0)))
		log.Debug("pane resized to %dx%d", msg.Width, msg.Height)
		if p.term != nil && p.exit == nil {
			if err := p.term.Resize(p.screenSize()); err != nil {
				log.WarningLog.Printf("failed to resize terminal: %v", err)
			}
		}
		return p, nil
	case tea.KeyMsg:
		return p.handleKey(msg)
	case eventMsg:
		return p.handleEvent(msg.ev)
	case closedMsg:
		return p, tea.Quit
	case spinner.TickMsg:
		if p.term == nil || p.exit != nil {
			return p, nil
		}
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return p, cmd
	}
	return p, nil
}

func (p *Pane) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if p.term == nil || p.exit != nil {
		return p, tea.Quit
	}
	switch {
	case key.Matches(msg, p.keys.Quit):
		return p, p.closeTerminal()
	case key.Matches(msg, p.keys.Copy):
		if err := p.copy(p.term.PlainText()); err != nil {
			p.notice = "copy failed: " + err.Error()
		} else {
			p.notice = "copied screen"
		}
		return p, nil
	}

	p.notice = ""
	var err error
	if msg.Paste {
		log.InputTrace("paste of %d runes", len(msg.Runes))
		err = p.term.SendBytes([]byte(string(msg.Runes)))
	} else {
		ev := KeyEvent(msg)
		log.InputTrace("key %q -> %+v", msg.String(), ev)
		err = p.term.SendKey(ev)
	}
	if err != nil {
		log.WarningLog.Printf("failed to send input: %v", err)
	}
	return p, nil
}

func (p *Pane) handleEvent(ev session.Event) (tea.Model, tea.Cmd) {
	switch ev := ev.(type) {
	case session.RunsEvent:
		p.runs = ev.Runs
	case session.SessionUpdatedEvent:
		p.sessionID = ev.Update.NewSessionID
		p.restarted = true
		p.notice = fmt.Sprintf("conversation %s not found, started %s", shortID(ev.Update.OldSessionID), shortID(ev.Update.NewSessionID))
	case session.ExitEvent:
		status := ev.Status
		p.exit = &status
		p.writeInspection()
		return p, tea.Quit
	}
	p.writeInspection()
	return p, p.waitForEvent()
}

// screenSize is the child's share of the window.
func (p *Pane) screenSize() (columns, rows int) {
	return max(p.width, 1), max(p.height-statusBarHeight, 1)
}

// Phase is the child's retry phase, or idle without a child.
func (p *Pane) Phase() session.Phase {
	if p.term == nil || p.exit != nil {
		return session.PhaseIdle
	}
	return p.term.Phase()
}

func (p *Pane) ExitStatus() (session.ExitStatus, bool) {
	if p.exit == nil {
		return session.ExitStatus{}, false
	}
	return *p.exit, true
}

func (p *Pane) View() string {
	if p.width == 0 || p.height == 0 {
		return ""
	}
	if p.err != nil {
		box := ErrorBoxStyle(p.renderer).Width(min(70, max(p.width-4, 10))).Render(
			p.styles.Error.Render("Failed to start session") + "\n\n" + p.err.Error() + "\n\n" +
				p.styles.Muted.Render("press any key to exit"))
		return p.renderer.Place(p.width, p.height, lipgloss.Center, lipgloss.Center, box)
	}

	_, rows := p.screenSize()
	var screen string
	if p.Phase() == session.PhaseBuffering {
		screen = p.renderer.Place(p.width, rows, lipgloss.Center, lipgloss.Center, p.overlay.Render(p.renderer))
	} else {
		screen = strings.Join(p.screenLines(rows), "\n")
	}
	return screen + "\n" + p.statusBar()
}

// screenLines renders runs into exactly rows lines no wider than the pane.
func (p *Pane) screenLines(rows int) []string {
	lines := make([]string, 0, rows)
	var line strings.Builder
	for _, run := range p.runs {
		if run.IsNewline() {
			lines = append(lines, line.String())
			line.Reset()
			continue
		}
		line.WriteString(p.runStyle(run).Render(run.Text))
	}
	lines = append(lines, line.String())

	if len(lines) > rows {
		lines = lines[:rows]
	}
	for i := range lines {
		lines[i] = truncate.String(lines[i], uint(p.width))
	}
	for len(lines) < rows {
		lines = append(lines, "")
	}
	return lines
}

func (p *Pane) runStyle(run terminal.StyledRun) lipgloss.Style {
	s := p.renderer.NewStyle()
	if run.FG != nil {
		s = s.Foreground(lipgloss.Color(run.FG.Hex()))
	}
	if run.BG != nil {
		s = s.Background(lipgloss.Color(run.BG.Hex()))
	}
	a := run.Attrs
	return s.
		Bold(a.Has(terminal.AttrBold)).
		Faint(a.Has(terminal.AttrDim)).
		Italic(a.Has(terminal.AttrItalic)).
		Underline(a.Has(terminal.AttrUnderline)).
		Reverse(a.Has(terminal.AttrInverse)).
		Strikethrough(a.Has(terminal.AttrStrikethrough))
}

func (p *Pane) statusBar() string {
	var icon string
	switch {
	case p.exit != nil && p.exit.Success():
		icon = p.styles.Paused.Render(IconPaused + " exited")
	case p.exit != nil:
		icon = p.styles.Error.Render(IconError + " " + p.exit.String())
	case p.Phase() == session.PhaseBuffering:
		icon = p.styles.Running.Render(IconRunning + " resuming")
	case p.restarted:
		icon = p.styles.Warning.Render(IconWarning + " new session")
	default:
		icon = p.styles.Success.Render(IconSuccess + " running")
	}

	parts := []string{icon}
	if p.sessionID != "" {
		parts = append(parts, p.styles.Bar.Render(shortID(p.sessionID)))
	}
	if p.notice != "" {
		parts = append(parts, p.styles.Bar.Render(p.notice))
	}
	var help []string
	for _, b := range p.keys.help() {
		help = append(help, b.Help().Key+" "+b.Help().Desc)
	}
	parts = append(parts, p.styles.Muted.Render(strings.Join(help, " · ")))

	return truncate.StringWithTail(strings.Join(parts, "  "), uint(p.width), "…")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// InspectNode describes the pane for automated inspection.
func (p *Pane) InspectNode() *inspect.Node {
	columns, rows := p.screenSize()
	screen := inspect.NewNode("Screen").
		WithBounds(0, 0, columns, rows).
		WithState("runs", len(p.runs)).
		WithContent(terminal.RunsText(p.runs))
	bar := inspect.NewNode("StatusBar").
		WithBounds(0, rows, p.width, statusBarHeight).
		WithStyles(inspect.ExtractStyleInfo(p.styles.Bar, "status_bar")).
		WithContent(p.notice)

	n := inspect.NewNode("Pane").
		WithID(p.sessionID).
		WithBounds(0, 0, p.width, p.height).
		WithState("phase", p.Phase().String()).
		WithState("restarted", p.restarted).
		AddChild(screen).
		AddChild(bar)
	if p.Phase() == session.PhaseBuffering {
		n.AddChild(inspect.NewNode("ResumeOverlay").WithContent(p.overlay.Status()))
	}
	if p.exit != nil {
		n.WithState("exit_code", p.exit.Code)
	}
	if p.err != nil {
		n.WithState("error", p.err.Error())
	}
	return n
}

func (p *Pane) writeInspection() {
	if !inspect.IsEnabled() {
		return
	}
	snap := inspect.NewSnapshot().
		WithTerminal(p.width, p.height).
		WithComponents(p.InspectNode())
	if err := inspect.WriteSnapshot(snap); err != nil {
		log.WarningLog.Printf("inspect: %v", err)
	}
}
