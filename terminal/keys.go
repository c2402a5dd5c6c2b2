package terminal

// KeyEvent is a key press from the input layer.
type KeyEvent struct {
	Name     string `json:"name"`
	Sequence string `json:"rawSequence,omitempty"`
	Ctrl     bool   `json:"ctrl"`
	Meta     bool   `json:"meta"`
}

var arrowKeys = map[string]string{
	"up":    "\x1b[A",
	"down":  "\x1b[B",
	"right": "\x1b[C",
	"left":  "\x1b[D",
}

// KeyBytes returns the bytes to write to the child for k. The checks run in a
// fixed order; the raw sequence is only forwarded when no modifier is held.
func KeyBytes(k KeyEvent) ([]byte, bool) {
	switch {
	case k.Ctrl && k.Name == "c":
		return []byte{0x03}, true
	case k.Ctrl && k.Name == "d":
		return []byte{0x04}, true
	case k.Name == "return" || k.Name == "enter":
		return []byte{'\r'}, true
	case k.Name == "backspace":
		return []byte{0x7f}, true
	case k.Name == "escape":
		return []byte{0x1b}, true
	}
	if seq, ok := arrowKeys[k.Name]; ok {
		return []byte(seq), true
	}
	if k.Sequence != "" && !k.Ctrl && !k.Meta {
		return []byte(k.Sequence), true
	}
	return nil, false
}
