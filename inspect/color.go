package inspect

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// ExtractStyleInfo reports the colors and decorations of a lipgloss style.
func ExtractStyleInfo(style lipgloss.Style, styleNames ...string) *StyleInfo {
	return &StyleInfo{
		Foreground:    colorToString(style.GetForeground()),
		Background:    colorToString(style.GetBackground()),
		Bold:          style.GetBold(),
		Italic:        style.GetItalic(),
		Underline:     style.GetUnderline(),
		Faint:         style.GetFaint(),
		Border:        style.GetBorderTop() || style.GetBorderRight() || style.GetBorderBottom() || style.GetBorderLeft(),
		AppliedStyles: styleNames,
	}
}

func colorToString(c lipgloss.TerminalColor) string {
	switch v := c.(type) {
	case nil, lipgloss.NoColor:
		return ""
	case lipgloss.Color:
		return string(v)
	case lipgloss.AdaptiveColor:
		return fmt.Sprintf("adaptive(light=%s, dark=%s)", v.Light, v.Dark)
	case lipgloss.CompleteColor:
		return fmt.Sprintf("complete(true=%s, ansi=%s, ansi256=%s)", v.TrueColor, v.ANSI, v.ANSI256)
	}
	return fmt.Sprintf("%v", c)
}
