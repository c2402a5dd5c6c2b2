// Package terminal turns raw PTY output into styled text runs. It holds the
// colour resolver, the emulated screen buffers, the compositor that reads them,
// the render scheduler and the key router that feeds input back to the child.
package terminal

import "fmt"

// ColorMode tags how a raw colour value is encoded.
type ColorMode int

const (
	ColorDefault ColorMode = iota
	ColorPalette16
	ColorPalette256
	ColorTrueColor
)

func (m ColorMode) String() string {
	switch m {
	case ColorDefault:
		return "default"
	case ColorPalette16:
		return "palette16"
	case ColorPalette256:
		return "palette256"
	case ColorTrueColor:
		return "truecolor"
	}
	return fmt.Sprintf("ColorMode(%d)", int(m))
}

// RGB is a resolved 24-bit colour.
type RGB struct {
	R, G, B uint8
}

// Pack returns the colour as 0xRRGGBB.
func (c RGB) Pack() uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

// Hex returns the colour as #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// xterm defaults for the 16 ANSI colours.
var palette16 = [16]RGB{
	{0, 0, 0},
	{205, 0, 0},
	{0, 205, 0},
	{205, 205, 0},
	{0, 0, 238},
	{205, 0, 205},
	{0, 205, 205},
	{229, 229, 229},
	{127, 127, 127},
	{255, 0, 0},
	{0, 255, 0},
	{255, 255, 0},
	{92, 92, 255},
	{255, 0, 255},
	{0, 255, 255},
	{255, 255, 255},
}

// Resolve maps a raw colour value and its mode to an RGB triple. The boolean is
// false when the caller should use the terminal default, which is also the
// answer for out-of-range values and unknown modes.
func Resolve(value uint32, mode ColorMode) (RGB, bool) {
	switch mode {
	case ColorPalette16:
		if value < 16 {
			return palette16[value], true
		}
	case ColorPalette256:
		switch {
		case value < 16:
			return palette16[value], true
		case value < 232:
			i := value - 16
			return RGB{cubeLevel(i / 36), cubeLevel((i / 6) % 6), cubeLevel(i % 6)}, true
		case value < 256:
			v := uint8(8 + (value-232)*10)
			return RGB{v, v, v}, true
		}
	case ColorTrueColor:
		if value <= 0xFFFFFF {
			return RGB{uint8(value >> 16), uint8(value >> 8), uint8(value)}, true
		}
	}
	return RGB{}, false
}

func cubeLevel(step uint32) uint8 {
	return uint8(step * 51)
}

// resolvePtr is Resolve for callers that store "no colour" as nil.
func resolvePtr(value uint32, mode ColorMode) *RGB {
	c, ok := Resolve(value, mode)
	if !ok {
		return nil
	}
	return &c
}
