package session

import (
	"context"
	"sync"
	"time"

	"claude-ptyhost/terminal"
)

// Event is published by a Terminal.
type Event interface {
	isEvent()
}

// RunsEvent carries a fresh compositor pass.
type RunsEvent struct {
	Runs []terminal.StyledRun
}

// SessionUpdatedEvent reports that a failed resume was restarted under a new id.
type SessionUpdatedEvent struct {
	Update SessionUpdate
}

// ExitEvent is the last event of a terminal.
type ExitEvent struct {
	Status ExitStatus
}

func (RunsEvent) isEvent()           {}
func (SessionUpdatedEvent) isEvent() {}
func (ExitEvent) isEvent()           {}

const defaultEventBuffer = 64

type TerminalOptions struct {
	// Emulator picks the screen buffer core, see terminal.NewScreenBuffer.
	Emulator    string
	Debounce    time.Duration
	EventBuffer int
	Supervisor  Options
}

// Terminal ties one supervised child to one screen buffer. Output is fed to
// the buffer in order, compositor passes are debounced, and the results are
// published on Events.
type Terminal struct {
	buf    terminal.ScreenBuffer
	sched  *terminal.Scheduler
	handle *Handle

	events    chan Event
	quit      chan struct{}
	closeOnce sync.Once
	renderMu  sync.Mutex
}

// Open creates the screen buffer and starts the session.
func Open(sess Session, opts TerminalOptions) (*Terminal, error) {
	buf, err := terminal.NewScreenBuffer(opts.Emulator, sess.Columns, sess.Rows)
	if err != nil {
		return nil, &SpawnError{Command: sess.Command, Err: err}
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = defaultEventBuffer
	}

	t := &Terminal{
		buf:    buf,
		sched:  terminal.NewScheduler(opts.Debounce),
		events: make(chan Event, opts.EventBuffer),
		quit:   make(chan struct{}),
	}
	h, err := NewSupervisor(opts.Supervisor).Start(sess, Callbacks{
		OnData:          t.onData,
		OnExit:          t.onExit,
		OnSessionUpdate: t.onSessionUpdate,
	})
	if err != nil {
		t.sched.Stop()
		return nil, err
	}
	t.handle = h
	return t, nil
}

// Events is never closed; ExitEvent is the last event sent. Runs events are
// dropped while the consumer is behind and re-sent once it catches up.
func (t *Terminal) Events() <-chan Event {
	return t.events
}

func (t *Terminal) onData(chunk []byte) {
	t.buf.Feed(chunk)
	t.sched.Schedule(t.render)
}

func (t *Terminal) onSessionUpdate(u SessionUpdate) {
	t.emit(SessionUpdatedEvent{Update: u})
}

func (t *Terminal) onExit(status ExitStatus) {
	t.sched.Stop()
	t.render()
	t.emit(ExitEvent{Status: status})
}

func (t *Terminal) render() {
	t.renderMu.Lock()
	defer t.renderMu.Unlock()

	ev := RunsEvent{Runs: terminal.ExtractBuffer(t.buf)}
	select {
	case t.events <- ev:
	default:
		t.sched.Schedule(t.render)
	}
}

// emit delivers events that must not be lost unless the terminal is closed.
func (t *Terminal) emit(ev Event) {
	select {
	case t.events <- ev:
		return
	default:
	}
	select {
	case t.events <- ev:
	case <-t.quit:
	}
}

// SendKey routes a key event to the child. Keys without a byte mapping are
// ignored.
func (t *Terminal) SendKey(k terminal.KeyEvent) error {
	b, ok := terminal.KeyBytes(k)
	if !ok {
		return nil
	}
	return t.handle.Write(b)
}

// SendBytes writes raw input, for pastes.
func (t *Terminal) SendBytes(p []byte) error {
	return t.handle.Write(p)
}

// Resize changes the screen buffer and the PTY together.
func (t *Terminal) Resize(columns, rows int) error {
	if err := t.handle.Resize(columns, rows); err != nil {
		return err
	}
	t.buf.Resize(columns, rows)
	t.sched.Schedule(t.render)
	return nil
}

// Runs returns a compositor pass of the current screen.
func (t *Terminal) Runs() []terminal.StyledRun {
	return terminal.ExtractBuffer(t.buf)
}

func (t *Terminal) PlainText() string {
	var s string
	t.buf.View(func(g terminal.Grid) {
		s = terminal.PlainText(g)
	})
	return s
}

func (t *Terminal) Session() Session {
	return t.handle.Session()
}

func (t *Terminal) Phase() Phase {
	return t.handle.Phase()
}

// ExitStatus returns the child's terminal exit, if there has been one.
func (t *Terminal) ExitStatus() (ExitStatus, bool) {
	return t.handle.ExitStatus()
}

func (t *Terminal) Done() <-chan struct{} {
	return t.handle.Done()
}

// Close stops rendering and the child. Pending events are abandoned.
func (t *Terminal) Close(ctx context.Context) error {
	t.closeOnce.Do(func() {
		close(t.quit)
		t.sched.Stop()
	})
	return t.handle.Stop(ctx)
}
