package ui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"claude-ptyhost/terminal"
)

// paneKeys are handled by the pane itself and never reach the child.
type paneKeys struct {
	Quit key.Binding
	Copy key.Binding
}

var defaultPaneKeys = paneKeys{
	Quit: key.NewBinding(key.WithKeys("ctrl+q"), key.WithHelp("ctrl+q", "quit")),
	Copy: key.NewBinding(key.WithKeys("ctrl+y"), key.WithHelp("ctrl+y", "copy screen")),
}

func (k paneKeys) help() []key.Binding {
	return []key.Binding{k.Quit, k.Copy}
}

var namedKeys = map[tea.KeyType]string{
	tea.KeyEnter:     "return",
	tea.KeyBackspace: "backspace",
	tea.KeyEsc:       "escape",
	tea.KeyUp:        "up",
	tea.KeyDown:      "down",
	tea.KeyLeft:      "left",
	tea.KeyRight:     "right",
	tea.KeyDelete:    "delete",
	tea.KeyHome:      "home",
	tea.KeyEnd:       "end",
	tea.KeyPgUp:      "pageup",
	tea.KeyPgDown:    "pagedown",
}

// KeyEvent translates a bubbletea key into the router's key event. Control
// keys carry their letter and the Ctrl flag; printable input carries the
// typed text as its raw sequence.
func KeyEvent(msg tea.KeyMsg) terminal.KeyEvent {
	switch msg.Type {
	case tea.KeyRunes:
		s := string(msg.Runes)
		return terminal.KeyEvent{Name: s, Sequence: s, Meta: msg.Alt}
	case tea.KeySpace:
		return terminal.KeyEvent{Name: "space", Sequence: " ", Meta: msg.Alt}
	case tea.KeyTab:
		return terminal.KeyEvent{Name: "tab", Sequence: "\t", Meta: msg.Alt}
	}
	if name, ok := namedKeys[msg.Type]; ok {
		return terminal.KeyEvent{Name: name, Meta: msg.Alt}
	}
	if msg.Type >= tea.KeyCtrlA && msg.Type <= tea.KeyCtrlZ {
		letter := string(rune('a' + msg.Type - tea.KeyCtrlA))
		return terminal.KeyEvent{Name: letter, Ctrl: true, Meta: msg.Alt}
	}
	return terminal.KeyEvent{Name: msg.String(), Meta: msg.Alt}
}
