package ui

import "github.com/charmbracelet/lipgloss"

// Status colors. Each phase has a color and an icon so the status bar still
// reads without color.
var (
	// StatusSuccess marks a live, passthrough session.
	StatusSuccess = lipgloss.AdaptiveColor{Light: "#22C55E", Dark: "#22C55E"}

	// StatusRunning marks a resume being checked.
	StatusRunning = lipgloss.AdaptiveColor{Light: "#3B82F6", Dark: "#3B82F6"}

	// StatusWarning marks a session restarted under a new id.
	StatusWarning = lipgloss.AdaptiveColor{Light: "#F59E0B", Dark: "#F59E0B"}

	StatusError = lipgloss.AdaptiveColor{Light: "#EF4444", Dark: "#EF4444"}

	// StatusPaused marks an exited child.
	StatusPaused = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#6B7280"}
)

// UI chrome colors
var (
	Primary       = lipgloss.AdaptiveColor{Light: "#7D56F4", Dark: "#7D56F4"}
	BorderFocus   = lipgloss.AdaptiveColor{Light: "#7D56F4", Dark: "#7D56F4"}
	TextSecondary = lipgloss.AdaptiveColor{Light: "#4B5563", Dark: "#9CA3AF"}
	TextMuted     = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6B7280"}

	BackgroundSubtle = lipgloss.AdaptiveColor{Light: "#F3F4F6", Dark: "#2a2a2a"}
)

const (
	IconSuccess = "●"
	IconRunning = "○"
	IconWarning = "!"
	IconError   = "×"
	IconPaused  = "⏸"
)

// statusBarStyles are built on the pane's renderer so they follow its color
// profile.
type statusBarStyles struct {
	Bar     lipgloss.Style
	Success lipgloss.Style
	Running lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Paused  lipgloss.Style
	Muted   lipgloss.Style
}

func newStatusBarStyles(r *lipgloss.Renderer) statusBarStyles {
	return statusBarStyles{
		Bar:     r.NewStyle().Foreground(TextSecondary),
		Success: r.NewStyle().Foreground(StatusSuccess),
		Running: r.NewStyle().Foreground(StatusRunning),
		Warning: r.NewStyle().Foreground(StatusWarning).Bold(true),
		Error:   r.NewStyle().Foreground(StatusError).Bold(true),
		Paused:  r.NewStyle().Foreground(StatusPaused),
		Muted:   r.NewStyle().Foreground(TextMuted),
	}
}

// ErrorBoxStyle frames the spawn error shown in place of the screen.
func ErrorBoxStyle(r *lipgloss.Renderer) lipgloss.Style {
	return r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(StatusError).
		Padding(1, 2)
}
