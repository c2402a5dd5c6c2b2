// Package harness drives bubbletea models in tests without a terminal.
package harness

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Harness wraps a tea.Model and feeds it messages synchronously.
type Harness struct {
	t      *testing.T
	model  tea.Model
	width  int
	height int
}

// New sends the initial window size to model.
func New(t *testing.T, model tea.Model, width, height int) *Harness {
	h := &Harness{t: t, model: model}
	h.Resize(width, height)
	return h
}

func (h *Harness) SendMsg(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	h.model, cmd = h.model.Update(msg)
	return cmd
}

// SendKey types s as printable input.
func (h *Harness) SendKey(s string) tea.Cmd {
	return h.SendMsg(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

// SendSpecialKey sends a non-printable key such as tea.KeyEnter or tea.KeyCtrlC.
func (h *Harness) SendSpecialKey(keyType tea.KeyType) tea.Cmd {
	return h.SendMsg(tea.KeyMsg{Type: keyType})
}

// Paste sends s as a bracketed paste.
func (h *Harness) Paste(s string) tea.Cmd {
	return h.SendMsg(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s), Paste: true})
}

func (h *Harness) Resize(width, height int) tea.Cmd {
	h.width = width
	h.height = height
	return h.SendMsg(tea.WindowSizeMsg{Width: width, Height: height})
}

// Exec runs cmd and returns its message, failing the test if it takes longer
// than timeout. A nil cmd yields a nil message.
func (h *Harness) Exec(cmd tea.Cmd, timeout time.Duration) tea.Msg {
	h.t.Helper()
	if cmd == nil {
		return nil
	}
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		h.t.Fatalf("command did not finish within %v", timeout)
		return nil
	}
}

// IsQuit reports whether cmd, run immediately, asks the program to quit.
func IsQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func (h *Harness) View() string {
	return h.model.View()
}

// Model returns the wrapped model for type assertions.
func (h *Harness) Model() tea.Model {
	return h.model
}

func (h *Harness) Width() int {
	return h.width
}

func (h *Harness) Height() int {
	return h.height
}

// CommonSizes are the window sizes models are checked against.
var CommonSizes = []TerminalSize{
	{Name: "tiny", Width: 20, Height: 5},
	{Name: "minimum", Width: 80, Height: 24},
	{Name: "standard", Width: 120, Height: 40},
	{Name: "wide", Width: 200, Height: 24},
}

type TerminalSize struct {
	Name   string
	Width  int
	Height int
}

func RunWithSizes(t *testing.T, sizes []TerminalSize, fn func(t *testing.T, size TerminalSize)) {
	for _, size := range sizes {
		t.Run(size.Name, func(t *testing.T) {
			fn(t, size)
		})
	}
}

func RunWithCommonSizes(t *testing.T, fn func(t *testing.T, size TerminalSize)) {
	RunWithSizes(t, CommonSizes, fn)
}
