package terminal

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Attr is a bitmask of text attributes.
type Attr uint8

const (
	AttrBold Attr = 1 << iota
	AttrDim
	AttrItalic
	AttrUnderline
	AttrInverse
	AttrStrikethrough
)

var attrNames = []struct {
	attr Attr
	name string
}{
	{AttrBold, "bold"},
	{AttrDim, "dim"},
	{AttrItalic, "italic"},
	{AttrUnderline, "underline"},
	{AttrInverse, "inverse"},
	{AttrStrikethrough, "strike"},
}

// Has reports whether every bit of b is set.
func (a Attr) Has(b Attr) bool {
	return a&b == b
}

func (a Attr) String() string {
	if a == 0 {
		return "none"
	}
	var parts []string
	for _, n := range attrNames {
		if a.Has(n.attr) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Cell is one grid position. Width is 2 for the leading half of a wide
// character and 0 for its continuation, which is never rendered on its own.
type Cell struct {
	Char  rune
	Width int
	FG    *RGB
	BG    *RGB
	Attrs Attr
}

// Style is the part of a cell that decides run boundaries.
type Style struct {
	FG    *RGB
	BG    *RGB
	Attrs Attr
}

func (c Cell) Style() Style {
	return Style{FG: c.FG, BG: c.BG, Attrs: c.Attrs}
}

// Equal compares colours by value.
func (s Style) Equal(o Style) bool {
	return s.Attrs == o.Attrs && sameColor(s.FG, o.FG) && sameColor(s.BG, o.BG)
}

func sameColor(a, b *RGB) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// cellWidth is the column width used for a freshly read cell.
func cellWidth(r rune) int {
	if runewidth.RuneWidth(r) == 2 {
		return 2
	}
	return 1
}

// StyledRun is a span of text sharing one style. Runs are rebuilt on every
// compositor pass and never mutated afterwards.
type StyledRun struct {
	Text  string `json:"text"`
	FG    *RGB   `json:"fg,omitempty"`
	BG    *RGB   `json:"bg,omitempty"`
	Attrs Attr   `json:"attrs"`
}

func (r StyledRun) Style() Style {
	return Style{FG: r.FG, BG: r.BG, Attrs: r.Attrs}
}

// IsNewline reports whether the run is a row separator.
func (r StyledRun) IsNewline() bool {
	return r.Text == "\n"
}

// MarshalJSON encodes the colour as "#rrggbb".
func (c RGB) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Hex())
}

func (c *RGB) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return fmt.Errorf("invalid colour %q: %w", s, err)
	}
	*c = RGB{r, g, b}
	return nil
}
