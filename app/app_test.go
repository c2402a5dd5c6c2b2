package app

import (
	"bytes"
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claude-ptyhost/session"
)

func TestRunReportsSpawnFailure(t *testing.T) {
	sess := session.Session{
		Command:          "claude",
		WorkingDirectory: t.TempDir(),
		Columns:          0,
		Rows:             24,
	}
	var out bytes.Buffer
	_, err := Run(context.Background(), sess, session.TerminalOptions{},
		tea.WithInput(strings.NewReader("q")),
		tea.WithOutput(&out),
	)

	var spawnErr *session.SpawnError
	require.ErrorAs(t, err, &spawnErr)
	assert.Contains(t, err.Error(), "invalid terminal size")
}
