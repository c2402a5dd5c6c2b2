package overlay

import (
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func plainRenderer() *lipgloss.Renderer {
	r := lipgloss.NewRenderer(io.Discard, termenv.WithProfile(termenv.Ascii))
	r.SetColorProfile(termenv.Ascii)
	return r
}

func TestResumeOverlayRender(t *testing.T) {
	s := spinner.New(spinner.WithSpinner(spinner.Line))
	o := NewResumeOverlay("Resuming conversation", &s)
	o.SetStatus("checking abcd1234")

	out := o.Render(plainRenderer())

	assert.Contains(t, out, "Resuming conversation")
	assert.Contains(t, out, s.View()+" checking abcd1234")
	assert.Equal(t, "checking abcd1234", o.Status())
	assert.True(t, strings.HasPrefix(out, "╭"))
}

func TestResumeOverlayWidth(t *testing.T) {
	o := NewResumeOverlay("Resuming", nil)
	o.SetStatus("x")
	o.SetWidth(40)

	for _, line := range strings.Split(o.Render(plainRenderer()), "\n") {
		assert.Equal(t, 42, lipgloss.Width(line), "line %q", line)
	}
}
