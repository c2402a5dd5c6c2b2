package session

import (
	"bytes"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProcess is a scripted child. Output is queued with emit and the child
// ends with exit; SIGTERM ends it unless ignoreTerm is set.
type fakeProcess struct {
	spec ProcessSpec
	pid  int

	out       chan []byte
	exitCh    chan ExitStatus
	closed    chan struct{}
	exitOnce  sync.Once
	outOnce   sync.Once
	closeOnce sync.Once

	ignoreTerm bool

	mu      sync.Mutex
	written bytes.Buffer
	signals []os.Signal
	killed  bool
	size    [2]int
}

func newFakeProcess(spec ProcessSpec, pid int) *fakeProcess {
	return &fakeProcess{
		spec:   spec,
		pid:    pid,
		out:    make(chan []byte, 64),
		exitCh: make(chan ExitStatus, 1),
		closed: make(chan struct{}),
		size:   [2]int{spec.Columns, spec.Rows},
	}
}

func (p *fakeProcess) emit(s string) {
	p.out <- []byte(s)
}

// exit closes the output stream and reports status to Wait.
func (p *fakeProcess) exit(status ExitStatus) {
	p.outOnce.Do(func() { close(p.out) })
	p.exitOnce.Do(func() { p.exitCh <- status })
}

// exitKeepingOutput reports status to Wait but leaves the output stream open,
// so Read blocks until Close like a PTY whose slave is still held elsewhere.
func (p *fakeProcess) exitKeepingOutput(status ExitStatus) {
	p.exitOnce.Do(func() { p.exitCh <- status })
}

func (p *fakeProcess) Read(b []byte) (int, error) {
	select {
	case chunk, ok := <-p.out:
		if !ok {
			return 0, io.EOF
		}
		return copy(b, chunk), nil
	case <-p.closed:
		return 0, io.EOF
	}
}

func (p *fakeProcess) Write(b []byte) (int, error) {
	select {
	case <-p.closed:
		return 0, os.ErrClosed
	default:
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(b)
}

func (p *fakeProcess) Resize(columns, rows int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.size = [2]int{columns, rows}
	return nil
}

func (p *fakeProcess) Signal(sig os.Signal) error {
	p.mu.Lock()
	p.signals = append(p.signals, sig)
	ignore := p.ignoreTerm
	p.mu.Unlock()
	if !ignore {
		p.exit(ExitStatus{Code: -1, Signal: "SIGTERM"})
	}
	return nil
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	p.exit(ExitStatus{Code: -1, Signal: "SIGKILL"})
	return nil
}

func (p *fakeProcess) Wait() ExitStatus {
	return <-p.exitCh
}

func (p *fakeProcess) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

func (p *fakeProcess) Pid() int {
	return p.pid
}

func (p *fakeProcess) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

func (p *fakeProcess) Signals() []os.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]os.Signal(nil), p.signals...)
}

func (p *fakeProcess) Killed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

// fakeSpawner runs scripts[i] for the i-th spawn; the last script repeats.
type fakeSpawner struct {
	mu      sync.Mutex
	scripts []func(p *fakeProcess)
	procs   []*fakeProcess
	err     error
}

func (s *fakeSpawner) Spawn(spec ProcessSpec) (Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	p := newFakeProcess(spec, 1000+len(s.procs))
	script := s.scripts[min(len(s.procs), len(s.scripts)-1)]
	s.procs = append(s.procs, p)
	go script(p)
	return p, nil
}

func (s *fakeSpawner) Procs() []*fakeProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*fakeProcess(nil), s.procs...)
}

func (s *fakeSpawner) Proc(t *testing.T, i int) *fakeProcess {
	t.Helper()
	var p *fakeProcess
	require.Eventually(t, func() bool {
		procs := s.Procs()
		if len(procs) <= i {
			return false
		}
		p = procs[i]
		return true
	}, time.Second, time.Millisecond)
	return p
}

// recorder collects callback activity in arrival order.
type recorder struct {
	mu      sync.Mutex
	events  []string
	data    bytes.Buffer
	updates []SessionUpdate
	exits   []ExitStatus
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnData: func(chunk []byte) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.data.Write(chunk)
			r.events = append(r.events, "data:"+string(chunk))
		},
		OnExit: func(status ExitStatus) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.exits = append(r.exits, status)
			r.events = append(r.events, "exit")
		},
		OnSessionUpdate: func(u SessionUpdate) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.updates = append(r.updates, u)
			r.events = append(r.events, "update")
		},
	}
}

func (r *recorder) Data() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data.String()
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) Exits() []ExitStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ExitStatus(nil), r.exits...)
}

func (r *recorder) Updates() []SessionUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SessionUpdate(nil), r.updates...)
}

var errSpawn = errors.New("no pty available")

func waitDone(t *testing.T, h *Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("handle did not finish")
	}
}

func testSession(t *testing.T) Session {
	return Session{
		Command:          "claude",
		Args:             []string{"--verbose"},
		WorkingDirectory: t.TempDir(),
		Columns:          80,
		Rows:             24,
	}
}

func testOptions(sp *fakeSpawner) Options {
	return Options{
		Spawner:      sp,
		DetectWindow: time.Second,
		GracePeriod:  100 * time.Millisecond,
		DrainTimeout: 50 * time.Millisecond,
		NewSessionID: func() string { return "new-id" },
	}
}

func assertNoExitYet(t *testing.T, h *Handle) {
	t.Helper()
	_, exited := h.ExitStatus()
	assert.False(t, exited)
}
