// Package overlay holds boxes drawn over the pane.
package overlay

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
)

// ResumeOverlay is shown while a resumed conversation is being checked: a
// spinner, a title and a status line.
type ResumeOverlay struct {
	title   string
	status  string
	spinner *spinner.Model

	width int
}

func NewResumeOverlay(title string, spinner *spinner.Model) *ResumeOverlay {
	return &ResumeOverlay{
		title:   title,
		spinner: spinner,
	}
}

func (o *ResumeOverlay) SetStatus(status string) {
	o.status = status
}

// SetWidth sets the box width; zero fits the content.
func (o *ResumeOverlay) SetWidth(width int) {
	o.width = width
}

func (o *ResumeOverlay) Status() string {
	return o.status
}

// Render draws the box with r so it follows the caller's color profile.
func (o *ResumeOverlay) Render(r *lipgloss.Renderer) string {
	titleStyle := r.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62"))

	statusStyle := r.NewStyle().
		Foreground(lipgloss.Color("241"))

	boxStyle := r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2)
	if o.width > 0 {
		boxStyle = boxStyle.Width(o.width)
	}

	content := titleStyle.Render(o.title) + "\n\n"
	if o.spinner != nil {
		content += o.spinner.View() + " "
	}
	content += statusStyle.Render(o.status)

	return boxStyle.Render(content)
}
