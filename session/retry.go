package session

import (
	"bytes"
	"time"
)

// Phase is where a child stands in the resume retry protocol.
//
//	Idle -> Buffering -> Passthrough   window elapsed, or exit without the failure signature
//	             \-----> Retrying      failed resume, restarted as a new session
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseBuffering
	PhasePassthrough
	PhaseRetrying
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseBuffering:
		return "buffering"
	case PhasePassthrough:
		return "passthrough"
	case PhaseRetrying:
		return "retrying"
	}
	return "unknown"
}

// DefaultMaxBuffered caps output held during a detection window. Going over it
// releases the output and ends detection for that child.
const DefaultMaxBuffered = 1 << 20

var (
	noConversationSignature = []byte("No conversation found")
	sessionIDSignature      = []byte("Session ID")
	notFoundSignature       = []byte("not found")
)

// IsSessionNotFound reports whether output carries the wrapped CLI's
// "conversation does not exist" message.
func IsSessionNotFound(output []byte) bool {
	if bytes.Contains(output, noConversationSignature) {
		return true
	}
	return bytes.Contains(output, sessionIDSignature) && bytes.Contains(output, notFoundSignature)
}

type exitDecision int

const (
	exitTerminal exitDecision = iota
	exitRetry
)

// retryState is the per-handle protocol state. It does no locking; the
// supervisor serializes every call.
type retryState struct {
	phase             Phase
	originalSessionID string
	hasRetried        bool
	startedAt         time.Time
	window            time.Duration
	// reaped is set once the child has been waited on. Detection then waits
	// for the exit to be classified instead of the window timer.
	reaped      bool
	exitedAt    time.Time
	maxBuffered int
	chunks      [][]byte
	size        int
}

func newRetryState(originalSessionID string, window time.Duration, maxBuffered int) *retryState {
	if window <= 0 {
		window = DefaultDetectWindow
	}
	if maxBuffered <= 0 {
		maxBuffered = DefaultMaxBuffered
	}
	return &retryState{originalSessionID: originalSessionID, window: window, maxBuffered: maxBuffered}
}

// begin starts tracking a freshly spawned child. Output is held back only for
// a resumed conversation that can still be retried.
func (r *retryState) begin(now time.Time, resumable bool) {
	r.startedAt = now
	r.reaped = false
	r.exitedAt = time.Time{}
	r.chunks = nil
	r.size = 0
	if resumable && !r.hasRetried {
		r.phase = PhaseBuffering
		return
	}
	r.phase = PhasePassthrough
}

// output returns the chunks to forward now, in order.
func (r *retryState) output(chunk []byte) [][]byte {
	if r.phase != PhaseBuffering {
		return [][]byte{chunk}
	}
	r.chunks = append(r.chunks, chunk)
	r.size += len(chunk)
	if r.size > r.maxBuffered {
		return r.release()
	}
	return nil
}

// windowElapsed ends detection and returns everything held back. Once the
// child is reaped the exit decides instead, so nothing is released here.
func (r *retryState) windowElapsed() [][]byte {
	if r.phase != PhaseBuffering || r.reaped {
		return nil
	}
	return r.release()
}

// reap records when the child exited. Output drained afterwards is still held
// while buffering.
func (r *retryState) reap(at time.Time) {
	r.reaped = true
	r.exitedAt = at
}

// inWindow reports whether the child exited before its detection window closed.
func (r *retryState) inWindow() bool {
	return r.reaped && r.exitedAt.Sub(r.startedAt) < r.window
}

// exited classifies a child exit. On exitTerminal the returned chunks must be
// forwarded before the exit itself.
func (r *retryState) exited(status ExitStatus) (exitDecision, [][]byte) {
	if r.phase == PhaseBuffering && r.inWindow() && !r.hasRetried && !status.Success() &&
		IsSessionNotFound(bytes.Join(r.chunks, nil)) {
		r.hasRetried = true
		r.phase = PhaseRetrying
		r.chunks = nil
		r.size = 0
		return exitRetry, nil
	}
	return exitTerminal, r.release()
}

// abort is exited for a child torn down by the caller: never a retry.
func (r *retryState) abort() [][]byte {
	return r.release()
}

func (r *retryState) release() [][]byte {
	out := r.chunks
	r.chunks = nil
	r.size = 0
	r.phase = PhasePassthrough
	return out
}
