package terminal

import (
	"fmt"
	"image/color"
	"regexp"
	"strings"
	"sync"

	"github.com/tonistiigi/vt100"
)

// vt100 does not understand OSC 8 hyperlinks and would print them.
// Format: ESC ] 8 ; params ; URI ST (where ST is ESC \ or BEL)
var oscHyperlinkRegex = regexp.MustCompile(`\x1b\]8;[^;]*;[^\x1b\x07]*(?:\x1b\\|\x07)`)

// vt100 clamps narrower widths up to this.
const vt100MinColumns = 6

// VT100Buffer is a ScreenBuffer on the tonistiigi/vt100 core. It has no
// 256-colour or truecolor support and no italic, but it does track dim.
type VT100Buffer struct {
	mu sync.Mutex
	vt *vt100.VT100
}

// NewVT100Buffer creates a vt100 screen of columns x rows. Widths below six
// columns are raised to six.
func NewVT100Buffer(columns, rows int) *VT100Buffer {
	return &VT100Buffer{vt: vt100.NewVT100(rows, max(columns, vt100MinColumns))}
}

// Feed advances the emulator after removing OSC 8 hyperlinks.
func (b *VT100Buffer) Feed(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cleaned := oscHyperlinkRegex.ReplaceAll(p, nil)
	_, _ = b.vt.Write(cleaned)
}

// Resize changes the grid and pulls the cursor back inside it.
func (b *VT100Buffer) Resize(columns, rows int) {
	if columns < 1 || rows < 1 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.vt.Resize(rows, columns)
	b.vt.Cursor.Y = min(b.vt.Cursor.Y, b.vt.Height-1)
	b.vt.Cursor.X = min(b.vt.Cursor.X, b.vt.Width-1)
}

// Size returns the current grid dimensions.
func (b *VT100Buffer) Size() (columns, rows int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.vt.Width, b.vt.Height
}

// Cursor returns the zero-based cursor position.
func (b *VT100Buffer) Cursor() (row, col int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.vt.Cursor.Y, b.vt.Cursor.X
}

// CellAt returns one cell. It panics outside the grid.
func (b *VT100Buffer) CellAt(row, col int) Cell {
	b.mu.Lock()
	defer b.mu.Unlock()
	return vt100Grid{b.vt}.CellAt(row, col)
}

// RowText returns a row as plain text without styling.
func (b *VT100Buffer) RowText(row int) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return vt100Grid{b.vt}.RowText(row)
}

// View calls fn with the grid while holding the buffer lock.
func (b *VT100Buffer) View(fn func(g Grid)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(vt100Grid{b.vt})
}

type vt100Grid struct {
	vt *vt100.VT100
}

func (g vt100Grid) Size() (columns, rows int) {
	return g.vt.Width, g.vt.Height
}

func (g vt100Grid) CellAt(row, col int) Cell {
	if row < 0 || row >= g.vt.Height || col < 0 || col >= g.vt.Width {
		panic(fmt.Sprintf("terminal: cell (%d,%d) outside %dx%d grid", row, col, g.vt.Width, g.vt.Height))
	}
	r := g.vt.Content[row][col]
	f := g.vt.Format[row][col]

	c := Cell{
		Char:  r,
		Width: cellWidth(r),
		FG:    vt100Color(f.Fg),
		BG:    vt100Color(f.Bg),
	}
	switch f.Intensity {
	case vt100.Bright:
		c.Attrs |= AttrBold
	case vt100.Dim:
		c.Attrs |= AttrDim
	}
	if f.Underscore {
		c.Attrs |= AttrUnderline
	}
	if f.Inverse {
		c.Attrs |= AttrInverse
	}
	return c
}

func (g vt100Grid) RowText(row int) string {
	var sb strings.Builder
	for _, r := range g.vt.Content[row] {
		if r == 0 {
			r = ' '
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func vt100Color(c color.RGBA) *RGB {
	if c == vt100.DefaultColor {
		return nil
	}
	return resolvePtr(RGB{c.R, c.G, c.B}.Pack(), ColorTrueColor)
}
