package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSessionNotFound(t *testing.T) {
	tests := []struct {
		output string
		want   bool
	}{
		{"Error: No conversation found with session ID: abc", true},
		{"Session ID abc not found", true},
		{"\x1b[31mNo conversation found\x1b[0m", true},
		{"Session ID: abc", false},
		{"file not found", false},
		{"no conversation found", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSessionNotFound([]byte(tt.output)))
		})
	}
}

func TestRetryStatePhases(t *testing.T) {
	now := time.Unix(100, 0)

	t.Run("new session passes through", func(t *testing.T) {
		r := newRetryState("", time.Second, 0)
		r.begin(now, false)
		assert.Equal(t, PhasePassthrough, r.phase)
		assert.Equal(t, [][]byte{[]byte("x")}, r.output([]byte("x")))
	})

	t.Run("window elapsed releases in order", func(t *testing.T) {
		r := newRetryState("old", time.Second, 0)
		r.begin(now, true)
		require.Equal(t, PhaseBuffering, r.phase)
		assert.Nil(t, r.output([]byte("a")))
		assert.Nil(t, r.output([]byte("b")))

		assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, r.windowElapsed())
		assert.Equal(t, PhasePassthrough, r.phase)
		assert.Nil(t, r.windowElapsed())

		decision, release := r.exited(ExitStatus{Code: 1})
		assert.Equal(t, exitTerminal, decision)
		assert.Empty(t, release)
	})

	t.Run("failed resume retries once", func(t *testing.T) {
		r := newRetryState("old", time.Second, 0)
		r.begin(now, true)
		r.output([]byte("No conversation "))
		r.output([]byte("found"))
		r.reap(now.Add(500 * time.Millisecond))

		decision, release := r.exited(ExitStatus{Code: 1})
		assert.Equal(t, exitRetry, decision)
		assert.Nil(t, release)
		assert.Equal(t, PhaseRetrying, r.phase)

		r.begin(now, true)
		assert.Equal(t, PhasePassthrough, r.phase, "a restarted child is never buffered")
		r.output([]byte("No conversation found"))
		decision, _ = r.exited(ExitStatus{Code: 1})
		assert.Equal(t, exitTerminal, decision)
	})

	t.Run("exit after the window is terminal", func(t *testing.T) {
		r := newRetryState("old", time.Second, 0)
		r.begin(now, true)
		r.output([]byte("No conversation found"))
		r.reap(now.Add(time.Second))

		decision, release := r.exited(ExitStatus{Code: 1})
		assert.Equal(t, exitTerminal, decision)
		assert.Equal(t, [][]byte{[]byte("No conversation found")}, release)
		assert.False(t, r.hasRetried)
	})

	t.Run("window timer after the reap holds output", func(t *testing.T) {
		r := newRetryState("old", time.Second, 0)
		r.begin(now, true)
		r.output([]byte("No conversation found"))
		r.reap(now.Add(900 * time.Millisecond))

		assert.Nil(t, r.windowElapsed())
		assert.Equal(t, PhaseBuffering, r.phase)
		assert.Nil(t, r.output([]byte(" with session ID: old")))

		decision, release := r.exited(ExitStatus{Code: 1})
		assert.Equal(t, exitRetry, decision)
		assert.Nil(t, release)
	})

	t.Run("begin clears the reap", func(t *testing.T) {
		r := newRetryState("", time.Second, 0)
		r.begin(now, true)
		r.reap(now)
		r.begin(now.Add(time.Second), true)
		assert.False(t, r.inWindow())
	})

	t.Run("clean exit is terminal", func(t *testing.T) {
		r := newRetryState("old", time.Second, 0)
		r.begin(now, true)
		r.output([]byte("No conversation found"))
		decision, release := r.exited(ExitStatus{Code: 0})
		assert.Equal(t, exitTerminal, decision)
		assert.Equal(t, [][]byte{[]byte("No conversation found")}, release)
	})

	t.Run("abort releases held output", func(t *testing.T) {
		r := newRetryState("old", time.Second, 0)
		r.begin(now, true)
		r.output([]byte("No conversation found"))
		assert.Len(t, r.abort(), 1)
		assert.Equal(t, PhasePassthrough, r.phase)
	})

	t.Run("cap releases early", func(t *testing.T) {
		r := newRetryState("old", time.Second, 3)
		r.begin(now, true)
		assert.Nil(t, r.output([]byte("ab")))
		assert.Len(t, r.output([]byte("cd")), 2)
		assert.Equal(t, PhasePassthrough, r.phase)
	})
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "idle", PhaseIdle.String())
	assert.Equal(t, "buffering", PhaseBuffering.String())
	assert.Equal(t, "passthrough", PhasePassthrough.String())
	assert.Equal(t, "retrying", PhaseRetrying.String())
	assert.Equal(t, "unknown", Phase(42).String())
}
