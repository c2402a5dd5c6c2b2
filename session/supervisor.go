package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"claude-ptyhost/log"
)

const (
	DefaultDetectWindow = 2 * time.Second
	DefaultGracePeriod  = 3 * time.Second
	DefaultDrainTimeout = 250 * time.Millisecond

	readBufferSize = 32 * 1024
)

// Options configures a Supervisor. Zero values take the defaults.
type Options struct {
	Spawner Spawner
	Flags   Flags
	// DetectWindow is how long a resumed child's output is held back.
	DetectWindow time.Duration
	// GracePeriod is the wait between SIGTERM and SIGKILL on Stop.
	GracePeriod time.Duration
	// DrainTimeout bounds the wait for the last output after the child exits.
	DrainTimeout time.Duration
	MaxBuffered  int
	NewSessionID func() string
	// WriteMarker persists a retry for other processes. Failures are logged
	// and otherwise ignored.
	WriteMarker func(SessionUpdate) error
	Now         func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Spawner == nil {
		o.Spawner = PTYSpawner{}
	}
	if o.Flags.Resume == "" {
		o.Flags.Resume = DefaultFlags.Resume
	}
	if o.Flags.SessionID == "" {
		o.Flags.SessionID = DefaultFlags.SessionID
	}
	if o.DetectWindow <= 0 {
		o.DetectWindow = DefaultDetectWindow
	}
	if o.GracePeriod <= 0 {
		o.GracePeriod = DefaultGracePeriod
	}
	if o.DrainTimeout <= 0 {
		o.DrainTimeout = DefaultDrainTimeout
	}
	if o.MaxBuffered <= 0 {
		o.MaxBuffered = DefaultMaxBuffered
	}
	if o.NewSessionID == nil {
		o.NewSessionID = uuid.NewString
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Callbacks receive a handle's events. They are bound at Start so no output
// can be emitted before they exist. OnData and OnSessionUpdate run on the
// handle's reader goroutine in emission order; OnExit runs exactly once.
// Callbacks must not call Handle.Stop synchronously.
type Callbacks struct {
	OnData          func(chunk []byte)
	OnExit          func(status ExitStatus)
	OnSessionUpdate func(update SessionUpdate)
}

func (c Callbacks) withDefaults() Callbacks {
	if c.OnData == nil {
		c.OnData = func([]byte) {}
	}
	if c.OnExit == nil {
		c.OnExit = func(ExitStatus) {}
	}
	if c.OnSessionUpdate == nil {
		c.OnSessionUpdate = func(SessionUpdate) {}
	}
	return c
}

// Supervisor starts sessions. It holds no per-session state.
type Supervisor struct {
	opts Options
}

func NewSupervisor(opts Options) *Supervisor {
	return &Supervisor{opts: opts.withDefaults()}
}

// Start launches the session's child. The only error it returns is a
// *SpawnError.
func (s *Supervisor) Start(sess Session, cb Callbacks) (*Handle, error) {
	if err := sess.Validate(); err != nil {
		return nil, &SpawnError{Command: sess.Command, Err: err}
	}

	h := &Handle{
		opts:    s.opts,
		cb:      cb.withDefaults(),
		session: sess,
		retry:   newRetryState(sess.SessionID, s.opts.DetectWindow, s.opts.MaxBuffered),
		done:    make(chan struct{}),
	}
	h.mu.Lock()
	err := h.spawnLocked()
	h.mu.Unlock()
	if err != nil {
		return nil, &SpawnError{Command: sess.Command, Err: err}
	}
	return h, nil
}

// Handle owns the live child of one session. There is never more than one:
// a retry only spawns after the previous child has been reaped.
type Handle struct {
	opts Options
	cb   Callbacks

	// deliverMu orders everything that reaches the callbacks: output chunks,
	// the release of held back output, retries and the exit.
	deliverMu sync.Mutex
	writeMu   sync.Mutex

	mu       sync.Mutex
	session  Session
	proc     Process
	gen      int
	retry    *retryState
	window   *time.Timer
	stopping bool
	exited   bool
	status   ExitStatus
	done     chan struct{}
}

// spawnLocked starts a child for the current session. h.mu must be held.
func (h *Handle) spawnLocked() error {
	spec := h.session.spec(h.opts.Flags)
	proc, err := h.opts.Spawner.Spawn(spec)
	if err != nil {
		return err
	}
	h.proc = proc
	h.gen++
	gen := h.gen

	h.retry.begin(h.opts.Now(), h.session.Resumable())
	if h.retry.phase == PhaseBuffering {
		h.window = time.AfterFunc(h.opts.DetectWindow, func() { h.windowElapsed(gen) })
	}

	log.Logger.Info().
		Str("command", spec.Path).
		Strs("args", spec.Args).
		Int("pid", proc.Pid()).
		Stringer("phase", h.retry.phase).
		Msg("started child")

	readDone := make(chan struct{})
	go h.readLoop(proc, gen, readDone)
	go h.waitLoop(proc, gen, readDone)
	return nil
}

func (h *Handle) readLoop(proc Process, gen int, readDone chan struct{}) {
	defer close(readDone)
	buf := make([]byte, readBufferSize)
	for {
		n, err := proc.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			h.deliver(gen, chunk)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Logger.Debug().Err(err).Int("pid", proc.Pid()).Msg("pty read ended")
			}
			return
		}
	}
}

// waitLoop reaps the child, lets the reader drain what the child wrote last
// and then classifies the exit. The exit time is taken at the reap so a slow
// drain cannot push an exit out of the detection window.
func (h *Handle) waitLoop(proc Process, gen int, readDone chan struct{}) {
	status := proc.Wait()
	exitedAt := h.opts.Now()

	h.mu.Lock()
	if gen == h.gen && !h.exited {
		h.retry.reap(exitedAt)
	}
	h.mu.Unlock()

	select {
	case <-readDone:
	case <-time.After(h.opts.DrainTimeout):
		_ = proc.Close()
		select {
		case <-readDone:
		case <-time.After(h.opts.DrainTimeout):
			log.WarningLog.Printf("reader for pid %d did not stop", proc.Pid())
		}
	}
	_ = proc.Close()
	h.childExited(gen, status)
}

func (h *Handle) deliver(gen int, chunk []byte) {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	h.mu.Lock()
	if gen != h.gen || h.exited {
		h.mu.Unlock()
		return
	}
	forward := h.retry.output(chunk)
	h.mu.Unlock()

	h.forward(forward)
}

func (h *Handle) windowElapsed(gen int) {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	h.mu.Lock()
	if gen != h.gen || h.exited {
		h.mu.Unlock()
		return
	}
	release := h.retry.windowElapsed()
	h.mu.Unlock()

	h.forward(release)
}

func (h *Handle) forward(chunks [][]byte) {
	for _, c := range chunks {
		h.cb.OnData(c)
	}
}

func (h *Handle) childExited(gen int, status ExitStatus) {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	h.mu.Lock()
	if gen != h.gen || h.exited {
		h.mu.Unlock()
		return
	}
	h.stopWindowLocked()

	var (
		decision exitDecision
		release  [][]byte
	)
	if h.stopping {
		release = h.retry.abort()
	} else {
		decision, release = h.retry.exited(status)
	}
	if decision == exitTerminal {
		h.mu.Unlock()
		h.forward(release)
		h.finish(status)
		return
	}

	update := SessionUpdate{
		OldSessionID: h.retry.originalSessionID,
		NewSessionID: h.opts.NewSessionID(),
		Cwd:          h.session.WorkingDirectory,
		Timestamp:    h.opts.Now().UnixMilli(),
	}
	h.mu.Unlock()

	if h.isStopping() {
		h.finish(status)
		return
	}

	log.Logger.Info().
		Str("old_session", update.OldSessionID).
		Str("new_session", update.NewSessionID).
		Int("exit_code", status.Code).
		Msgf("%v: restarting as a new session", ErrSessionNotFound)

	if h.opts.WriteMarker != nil {
		if err := h.opts.WriteMarker(update); err != nil {
			log.WarningLog.Printf("failed to write session update marker: %v", err)
		}
	}
	h.cb.OnSessionUpdate(update)

	h.mu.Lock()
	if h.stopping {
		h.mu.Unlock()
		h.finish(status)
		return
	}
	h.session.SessionID = update.NewSessionID
	h.session.IsNewSession = true
	err := h.spawnLocked()
	h.mu.Unlock()
	if err != nil {
		log.ErrorLog.Printf("failed to restart session %s: %v", update.NewSessionID, err)
		status.Err = &SpawnError{Command: h.session.Command, Err: err}
		h.finish(status)
	}
}

// finish records the terminal exit and fires OnExit once.
func (h *Handle) finish(status ExitStatus) {
	h.mu.Lock()
	if h.exited {
		h.mu.Unlock()
		return
	}
	h.exited = true
	h.status = status
	h.proc = nil
	h.stopWindowLocked()
	h.mu.Unlock()

	log.Logger.Info().Str("session", h.Session().SessionID).Stringer("status", status).Msg("session exited")
	h.cb.OnExit(status)
	close(h.done)
}

func (h *Handle) isStopping() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopping
}

func (h *Handle) stopWindowLocked() {
	if h.window != nil {
		h.window.Stop()
		h.window = nil
	}
}

// Write forwards input to the child. Writes to a child that has already gone
// are dropped without error.
func (h *Handle) Write(p []byte) error {
	h.mu.Lock()
	proc := h.proc
	h.mu.Unlock()
	if proc == nil {
		return nil
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	if _, err := proc.Write(p); err != nil {
		h.mu.Lock()
		gone := h.exited || h.proc != proc
		h.mu.Unlock()
		if gone {
			return nil
		}
		return fmt.Errorf("write to pid %d: %w", proc.Pid(), err)
	}
	return nil
}

// Resize changes the PTY size. A retry restart uses the latest size.
func (h *Handle) Resize(columns, rows int) error {
	if columns <= 0 || rows <= 0 {
		return fmt.Errorf("invalid terminal size %dx%d", columns, rows)
	}
	h.mu.Lock()
	h.session.Columns = columns
	h.session.Rows = rows
	proc := h.proc
	h.mu.Unlock()
	if proc == nil {
		return nil
	}
	return proc.Resize(columns, rows)
}

// Stop terminates the child: SIGTERM first, SIGKILL once the grace period or
// ctx runs out. It is safe to call repeatedly and after the child has exited,
// and never causes a second OnExit.
func (h *Handle) Stop(ctx context.Context) error {
	h.mu.Lock()
	if h.exited {
		h.mu.Unlock()
		return nil
	}
	first := !h.stopping
	h.stopping = true
	proc := h.proc
	h.stopWindowLocked()
	h.mu.Unlock()

	if first && proc != nil {
		if err := proc.Signal(terminateSignal); err != nil {
			log.Logger.Debug().Err(err).Int("pid", proc.Pid()).Msg("terminate signal failed")
		}
	}

	grace := time.NewTimer(h.opts.GracePeriod)
	defer grace.Stop()
	select {
	case <-h.done:
		return nil
	case <-grace.C:
	case <-ctx.Done():
	}

	h.kill()
	select {
	case <-h.done:
		return nil
	case <-time.After(h.opts.GracePeriod):
		return fmt.Errorf("session %s did not exit after kill", h.Session().SessionID)
	}
}

func (h *Handle) kill() {
	h.mu.Lock()
	proc := h.proc
	h.mu.Unlock()
	if proc == nil {
		return
	}
	log.WarningLog.Printf("pid %d ignored SIGTERM, killing", proc.Pid())
	_ = proc.Kill()
	_ = proc.Close()
}

// Done is closed after OnExit has returned.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// ExitStatus returns the terminal exit, if there has been one.
func (h *Handle) ExitStatus() (ExitStatus, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status, h.exited
}

// Session returns a copy of the session, including a replaced SessionID.
func (h *Handle) Session() Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.session
	s.Args = append([]string(nil), h.session.Args...)
	return s
}

func (h *Handle) Pid() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.proc == nil {
		return 0
	}
	return h.proc.Pid()
}

func (h *Handle) Phase() Phase {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.exited {
		return PhaseIdle
	}
	return h.retry.phase
}
