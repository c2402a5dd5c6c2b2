package ui

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claude-ptyhost/session"
	"claude-ptyhost/terminal"
	"claude-ptyhost/testing/harness"
	"claude-ptyhost/testing/snapshot"
)

type fakeTerminal struct {
	mu      sync.Mutex
	events  chan session.Event
	keys    []terminal.KeyEvent
	pasted  []string
	sizes   [][2]int
	phase   session.Phase
	sess    session.Session
	text    string
	closed  bool
	sendErr error
}

func newFakeTerminal() *fakeTerminal {
	return &fakeTerminal{
		events: make(chan session.Event, 8),
		phase:  session.PhasePassthrough,
		sess:   session.Session{SessionID: "0123456789abcdef"},
	}
}

func (f *fakeTerminal) Events() <-chan session.Event { return f.events }

func (f *fakeTerminal) SendKey(k terminal.KeyEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, k)
	return f.sendErr
}

func (f *fakeTerminal) SendBytes(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pasted = append(f.pasted, string(p))
	return f.sendErr
}

func (f *fakeTerminal) Resize(columns, rows int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sizes = append(f.sizes, [2]int{columns, rows})
	return nil
}

func (f *fakeTerminal) PlainText() string        { return f.text }
func (f *fakeTerminal) Phase() session.Phase     { return f.phase }
func (f *fakeTerminal) Session() session.Session { return f.sess }

func (f *fakeTerminal) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func newTestPane(term Terminal) *Pane {
	return NewPane(term, io.Discard, termenv.Ascii)
}

func runs(text string, fg *terminal.RGB, attrs terminal.Attr) session.RunsEvent {
	var out []terminal.StyledRun
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			out = append(out, terminal.StyledRun{Text: "\n"})
		}
		out = append(out, terminal.StyledRun{Text: line, FG: fg, Attrs: attrs})
	}
	return session.RunsEvent{Runs: out}
}

func TestPaneRendersRuns(t *testing.T) {
	term := newFakeTerminal()
	h := harness.New(t, newTestPane(term), 40, 6)

	cmd := h.SendMsg(eventMsg{ev: runs("hello\nworld", &terminal.RGB{R: 205}, terminal.AttrBold)})
	require.NotNil(t, cmd, "the pane keeps listening for events")

	view := snapshot.Normalize(h.View())
	lines := strings.Split(view, "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "hello", lines[0])
	assert.Equal(t, "world", lines[1])
	assert.Equal(t, "", lines[4])
	assert.Contains(t, lines[5], "running")
	assert.Contains(t, lines[5], "01234567")
	assert.NotContains(t, lines[5], "0123456789")
}

func TestPaneFitsWindow(t *testing.T) {
	harness.RunWithCommonSizes(t, func(t *testing.T, size harness.TerminalSize) {
		term := newFakeTerminal()
		h := harness.New(t, newTestPane(term), size.Width, size.Height)
		long := strings.Repeat("x", 300)
		tall := strings.TrimSuffix(strings.Repeat(long+"\n", 80), "\n")
		h.SendMsg(eventMsg{ev: runs(tall, nil, 0)})

		view := h.View()
		assert.Equal(t, size.Height, snapshot.Lines(view))
		assert.LessOrEqual(t, snapshot.Width(view), size.Width)
	})
}

func TestPaneStyledRender(t *testing.T) {
	term := newFakeTerminal()
	p := NewPane(term, io.Discard, termenv.TrueColor)
	h := harness.New(t, p, 20, 3)
	h.SendMsg(eventMsg{ev: runs("hi", &terminal.RGB{R: 255}, terminal.AttrBold|terminal.AttrUnderline)})

	first := strings.Split(h.View(), "\n")[0]
	assert.Contains(t, first, "\x1b[")
	assert.Contains(t, first, "38;2;255;0;0")
	assert.Equal(t, "hi", snapshot.StripANSI(first))
}

func TestPaneResizesTerminal(t *testing.T) {
	term := newFakeTerminal()
	h := harness.New(t, newTestPane(term), 100, 30)
	h.Resize(80, 24)
	assert.Equal(t, [][2]int{{100, 29}, {80, 23}}, term.sizes)
}

func TestPaneRoutesKeys(t *testing.T) {
	term := newFakeTerminal()
	h := harness.New(t, newTestPane(term), 80, 24)

	h.SendKey("a")
	h.SendSpecialKey(tea.KeyEnter)
	h.SendSpecialKey(tea.KeyCtrlC)
	h.SendSpecialKey(tea.KeyUp)
	h.Paste("pasted text")

	assert.Equal(t, []terminal.KeyEvent{
		{Name: "a", Sequence: "a"},
		{Name: "return"},
		{Name: "c", Ctrl: true},
		{Name: "up"},
	}, term.keys)
	assert.Equal(t, []string{"pasted text"}, term.pasted)
}

func TestKeyEvent(t *testing.T) {
	tests := []struct {
		msg  tea.KeyMsg
		want terminal.KeyEvent
		wire string
	}{
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("é")}, terminal.KeyEvent{Name: "é", Sequence: "é"}, "é"},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x"), Alt: true}, terminal.KeyEvent{Name: "x", Sequence: "x", Meta: true}, ""},
		{tea.KeyMsg{Type: tea.KeySpace}, terminal.KeyEvent{Name: "space", Sequence: " "}, " "},
		{tea.KeyMsg{Type: tea.KeyTab}, terminal.KeyEvent{Name: "tab", Sequence: "\t"}, "\t"},
		{tea.KeyMsg{Type: tea.KeyBackspace}, terminal.KeyEvent{Name: "backspace"}, "\x7f"},
		{tea.KeyMsg{Type: tea.KeyEsc}, terminal.KeyEvent{Name: "escape"}, "\x1b"},
		{tea.KeyMsg{Type: tea.KeyCtrlD}, terminal.KeyEvent{Name: "d", Ctrl: true}, "\x04"},
		{tea.KeyMsg{Type: tea.KeyCtrlA}, terminal.KeyEvent{Name: "a", Ctrl: true}, ""},
		{tea.KeyMsg{Type: tea.KeyLeft}, terminal.KeyEvent{Name: "left"}, "\x1b[D"},
		{tea.KeyMsg{Type: tea.KeyHome}, terminal.KeyEvent{Name: "home"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.want.Name, func(t *testing.T) {
			got := KeyEvent(tt.msg)
			assert.Equal(t, tt.want, got)
			b, ok := terminal.KeyBytes(got)
			assert.Equal(t, tt.wire != "", ok)
			assert.Equal(t, tt.wire, string(b))
		})
	}
}

func TestPaneQuitStopsSession(t *testing.T) {
	term := newFakeTerminal()
	h := harness.New(t, newTestPane(term), 80, 24)

	cmd := h.SendSpecialKey(tea.KeyCtrlQ)
	assert.Empty(t, term.keys, "ctrl+q is not forwarded")
	msg := h.Exec(cmd, time.Second)
	assert.IsType(t, closedMsg{}, msg)
	assert.True(t, term.closed)
	assert.True(t, harness.IsQuit(h.SendMsg(msg)))
}

func TestPaneCopiesScreen(t *testing.T) {
	term := newFakeTerminal()
	term.text = "screen text"
	p := newTestPane(term)
	var copied string
	p.copy = func(s string) error {
		copied = s
		return nil
	}
	h := harness.New(t, p, 80, 24)

	h.SendSpecialKey(tea.KeyCtrlY)
	assert.Equal(t, "screen text", copied)
	assert.Contains(t, h.View(), "copied screen")

	p.copy = func(string) error { return errors.New("no clipboard") }
	h.SendSpecialKey(tea.KeyCtrlY)
	assert.Contains(t, h.View(), "copy failed: no clipboard")
	assert.Empty(t, term.keys)
}

func TestPaneResumeOverlay(t *testing.T) {
	term := newFakeTerminal()
	term.phase = session.PhaseBuffering
	h := harness.New(t, newTestPane(term), 80, 24)
	h.SendMsg(eventMsg{ev: runs("hidden", nil, 0)})

	view := h.View()
	assert.Contains(t, view, "Resuming conversation")
	assert.Contains(t, view, "resuming")
	assert.NotContains(t, view, "hidden")
	assert.Equal(t, 24, snapshot.Lines(view))

	node := h.Model().(*Pane).InspectNode()
	require.NotNil(t, node.Find("ResumeOverlay"))
	assert.Equal(t, "buffering", node.State["phase"])

	term.phase = session.PhasePassthrough
	assert.Contains(t, h.View(), "hidden")
}

func TestPaneSessionUpdate(t *testing.T) {
	term := newFakeTerminal()
	h := harness.New(t, newTestPane(term), 120, 10)

	h.SendMsg(eventMsg{ev: session.SessionUpdatedEvent{Update: session.SessionUpdate{
		OldSessionID: "0123456789abcdef",
		NewSessionID: "fedcba9876543210",
	}}})
	view := h.View()
	assert.Contains(t, view, "new session")
	assert.Contains(t, view, "conversation 01234567 not found, started fedcba98")

	node := h.Model().(*Pane).InspectNode()
	assert.Equal(t, "fedcba9876543210", node.ID)
	assert.Equal(t, true, node.State["restarted"])
}

func TestPaneExit(t *testing.T) {
	term := newFakeTerminal()
	h := harness.New(t, newTestPane(term), 80, 10)

	cmd := h.SendMsg(eventMsg{ev: session.ExitEvent{Status: session.ExitStatus{Code: 2}}})
	assert.True(t, harness.IsQuit(cmd))

	p := h.Model().(*Pane)
	status, ok := p.ExitStatus()
	require.True(t, ok)
	assert.Equal(t, 2, status.Code)
	assert.Equal(t, session.PhaseIdle, p.Phase())
	assert.Contains(t, h.View(), "exit 2")

	assert.True(t, harness.IsQuit(h.SendKey("q")), "any key leaves after exit")
	assert.Empty(t, term.keys)
}

func TestErrorPane(t *testing.T) {
	spawnErr := &session.SpawnError{Command: "claude", Err: errors.New("executable file not found")}
	h := harness.New(t, NewErrorPane(spawnErr, io.Discard, termenv.Ascii), 80, 20)

	view := h.View()
	assert.Contains(t, view, "Failed to start session")
	assert.Contains(t, view, "executable file not found")
	assert.Nil(t, h.Model().(*Pane).Init())

	node := h.Model().(*Pane).InspectNode()
	assert.Contains(t, node.State["error"], "failed to start claude")
	assert.True(t, harness.IsQuit(h.SendKey("x")))
}
