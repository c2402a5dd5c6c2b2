// Package inspect dumps pane state as JSON so scripts can see what the pane
// shows without reading the terminal.
package inspect

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// EnvVar enables inspection when set to "1".
const EnvVar = "CLAUDE_PTYHOST_INSPECT"

// Introspectable is implemented by components that can report their state.
type Introspectable interface {
	InspectNode() *Node
}

var (
	enabled     bool
	enabledOnce sync.Once
	inspectFile string
)

// IsEnabled reports whether inspection mode is active. The environment is
// read once.
func IsEnabled() bool {
	enabledOnce.Do(func() {
		enabled = os.Getenv(EnvVar) == "1"
		if enabled {
			inspectFile = filepath.Join(os.TempDir(), "claude-ptyhost-inspect.json")
		}
	})
	return enabled
}

// GetInspectFile returns the snapshot path, or "" when inspection is off.
func GetInspectFile() string {
	if !IsEnabled() {
		return ""
	}
	return inspectFile
}

// WriteSnapshot writes snapshot to the inspection file when enabled.
func WriteSnapshot(snapshot *Snapshot) error {
	if !IsEnabled() {
		return nil
	}
	return WriteSnapshotToPath(snapshot, inspectFile)
}

func WriteSnapshotToPath(snapshot *Snapshot, path string) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}
