package ui

import (
	"fmt"
	"time"
)

// FormatRelativeTime formats t relative to now: "just now", "2m ago", "3h ago",
// "5d ago". Times in the future read "in 2m".
func FormatRelativeTime(t, now time.Time) string {
	diff := now.Sub(t)
	if diff < 0 {
		return "in " + formatSpan(-diff)
	}
	if diff < time.Minute {
		return "just now"
	}
	return formatSpan(diff) + " ago"
}

func formatSpan(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dd", int(d.Hours()/24))
}
