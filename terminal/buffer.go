package terminal

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/hinshun/vt10x"
)

// Grid is the read-only view the compositor walks. CellAt panics on
// out-of-range coordinates.
type Grid interface {
	Size() (columns, rows int)
	CellAt(row, col int) Cell
	RowText(row int) string
}

// ScreenBuffer is the emulated screen of one session. Feed and Resize are
// called by the goroutine that owns the session; View lets another goroutine
// read a consistent grid while holding the buffer lock.
type ScreenBuffer interface {
	Grid
	Feed(p []byte)
	Resize(columns, rows int)
	Cursor() (row, col int)
	View(fn func(g Grid))
}

// Emulation cores accepted by NewScreenBuffer.
const (
	EmulatorVT10x = "vt10x"
	EmulatorVT100 = "vt100"
)

// NewScreenBuffer builds a buffer on the named emulation core.
func NewScreenBuffer(emulator string, columns, rows int) (ScreenBuffer, error) {
	if columns < 1 || rows < 1 {
		return nil, fmt.Errorf("invalid screen size %dx%d", columns, rows)
	}
	switch emulator {
	case "", EmulatorVT10x:
		return NewBuffer(columns, rows), nil
	case EmulatorVT100:
		return NewVT100Buffer(columns, rows), nil
	}
	return nil, fmt.Errorf("unknown emulator %q", emulator)
}

// vt10x glyph mode bits.
const (
	vtReverse   = 1 << 0
	vtUnderline = 1 << 1
	vtBold      = 1 << 2
	vtItalic    = 1 << 4
)

// Buffer is a ScreenBuffer backed by vt10x.
type Buffer struct {
	mu      sync.Mutex
	vt      vt10x.Terminal
	pending []byte
}

// NewBuffer creates a vt10x screen of columns x rows.
func NewBuffer(columns, rows int) *Buffer {
	return &Buffer{vt: vt10x.New(vt10x.WithSize(columns, rows))}
}

// Feed advances the emulator. A multi-byte rune split across two reads is held
// back until the rest of it arrives.
func (b *Buffer) Feed(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data := p
	if len(b.pending) > 0 {
		data = append(b.pending, p...)
		b.pending = nil
	}
	data, rest := splitIncompleteRune(data)
	if len(rest) > 0 {
		b.pending = append([]byte(nil), rest...)
	}
	if len(data) > 0 {
		_, _ = b.vt.Write(data)
	}
}

// splitIncompleteRune separates a trailing partial UTF-8 sequence from data.
func splitIncompleteRune(data []byte) (complete, rest []byte) {
	n := len(data)
	for i := n - 1; i >= 0 && i >= n-utf8.UTFMax; i-- {
		c := data[i]
		if c < utf8.RuneSelf {
			return data, nil
		}
		if utf8.RuneStart(c) {
			if utf8.FullRune(data[i:]) {
				return data, nil
			}
			return data[:i], data[i:]
		}
	}
	return data, nil
}

// Resize changes the grid size. Sizes below 1x1 are ignored.
func (b *Buffer) Resize(columns, rows int) {
	if columns < 1 || rows < 1 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.vt.Resize(columns, rows)
}

// Size returns the current grid dimensions.
func (b *Buffer) Size() (columns, rows int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.vt.Size()
}

// Cursor returns the zero-based cursor position.
func (b *Buffer) Cursor() (row, col int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.vt.Cursor()
	return c.Y, c.X
}

// CellAt returns one cell. It panics outside the grid.
func (b *Buffer) CellAt(row, col int) Cell {
	b.mu.Lock()
	defer b.mu.Unlock()
	return vt10xGrid{b.vt}.CellAt(row, col)
}

// RowText returns a row as plain text without styling.
func (b *Buffer) RowText(row int) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return vt10xGrid{b.vt}.RowText(row)
}

// View calls fn with the grid while holding the buffer lock, so a compositor
// pass sees no concurrent Feed or Resize.
func (b *Buffer) View(fn func(g Grid)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(vt10xGrid{b.vt})
}

// vt10xGrid reads the emulator without locking; callers hold Buffer.mu.
type vt10xGrid struct {
	vt vt10x.Terminal
}

func (g vt10xGrid) Size() (columns, rows int) {
	return g.vt.Size()
}

func (g vt10xGrid) CellAt(row, col int) Cell {
	cols, rows := g.vt.Size()
	if row < 0 || row >= rows || col < 0 || col >= cols {
		panic(fmt.Sprintf("terminal: cell (%d,%d) outside %dx%d grid", row, col, cols, rows))
	}
	glyph := g.vt.Cell(col, row)
	fg, bg := glyph.FG, glyph.BG
	// vt10x stores reverse video with the colours already swapped. Undo it so
	// the Inverse attribute is the only place reverse is expressed.
	if glyph.Mode&vtReverse != 0 {
		fg, bg = bg, fg
	}

	c := Cell{
		Char:  glyph.Char,
		Width: cellWidth(glyph.Char),
		FG:    vt10xColor(fg),
		BG:    vt10xColor(bg),
	}
	if glyph.Mode&vtBold != 0 {
		c.Attrs |= AttrBold
	}
	if glyph.Mode&vtItalic != 0 {
		c.Attrs |= AttrItalic
	}
	if glyph.Mode&vtUnderline != 0 {
		c.Attrs |= AttrUnderline
	}
	if glyph.Mode&vtReverse != 0 {
		c.Attrs |= AttrInverse
	}
	return c
}

func (g vt10xGrid) RowText(row int) string {
	cols, _ := g.vt.Size()
	var sb strings.Builder
	for col := 0; col < cols; col++ {
		r := g.vt.Cell(col, row).Char
		if r == 0 {
			r = ' '
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// vt10xColor decodes the vt10x colour word: defaults live above 1<<24, values
// below 16 are ANSI, below 256 the xterm palette, anything else packed RGB.
// A packed RGB value below 256 cannot be told apart from a palette index.
func vt10xColor(c vt10x.Color) *RGB {
	switch {
	case c >= vt10x.DefaultFG:
		return nil
	case c < 16:
		return resolvePtr(uint32(c), ColorPalette16)
	case c < 256:
		return resolvePtr(uint32(c), ColorPalette256)
	}
	return resolvePtr(uint32(c), ColorTrueColor)
}

// PlainText returns the visible screen as text with trailing blanks trimmed.
func PlainText(g Grid) string {
	_, rows := g.Size()
	lines := make([]string, rows)
	for row := 0; row < rows; row++ {
		lines[row] = strings.TrimRight(g.RowText(row), " ")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}
