package inspect

import (
	"fmt"
	"strings"
	"time"
)

// Snapshot is the pane state at one point in time.
type Snapshot struct {
	Timestamp  time.Time    `json:"timestamp"`
	Version    string       `json:"version"`
	Terminal   TerminalInfo `json:"terminal"`
	Components *Node        `json:"components"`
}

type TerminalInfo struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		Timestamp: time.Now(),
		Version:   "1.0.0",
	}
}

func (s *Snapshot) WithTerminal(width, height int) *Snapshot {
	s.Terminal = TerminalInfo{Width: width, Height: height}
	return s
}

func (s *Snapshot) WithComponents(root *Node) *Snapshot {
	s.Components = root
	return s
}

// ToText is a human-readable rendering of the snapshot.
func (s *Snapshot) ToText() string {
	var b strings.Builder
	b.WriteString("=== Pane Snapshot ===\n")
	fmt.Fprintf(&b, "Time: %s\n", s.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&b, "Terminal: %dx%d\n", s.Terminal.Width, s.Terminal.Height)
	if s.Components != nil {
		b.WriteString("\n--- Components ---\n")
		writeNodeText(&b, s.Components, 0)
	}
	return b.String()
}

func writeNodeText(b *strings.Builder, node *Node, indent int) {
	prefix := strings.Repeat("  ", indent)
	fmt.Fprintf(b, "%s%s", prefix, node.Type)
	if node.ID != "" {
		fmt.Fprintf(b, " [%s]", node.ID)
	}
	fmt.Fprintf(b, " (%dx%d)", node.Bounds.Width, node.Bounds.Height)
	if phase, ok := node.State["phase"]; ok {
		fmt.Fprintf(b, " phase=%v", phase)
	}
	b.WriteString("\n")
	for _, child := range node.Children {
		writeNodeText(b, child, indent+1)
	}
}
