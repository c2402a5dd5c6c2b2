// Package host serves PTY sessions over websockets. Each connection owns one
// session.Terminal: the screen is streamed as styled runs and key, input and
// resize frames flow back to the child.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"claude-ptyhost/log"
	"claude-ptyhost/session"
)

const (
	defaultColumns = 80
	defaultRows    = 24

	writeTimeout = 10 * time.Second
	closeTimeout = 5 * time.Second
)

// Options configures a Server.
type Options struct {
	// Command and Args are what every connection launches.
	Command string
	Args    []string
	// Dir is used when the client sends no cwd.
	Dir      string
	Terminal session.TerminalOptions
}

// Server hosts one terminal per websocket connection.
type Server struct {
	opts     Options
	upgrader websocket.Upgrader

	mu    sync.Mutex
	terms map[*session.Terminal]struct{}
	wg    sync.WaitGroup
}

func NewServer(opts Options) *Server {
	if opts.Dir == "" {
		opts.Dir, _ = os.Getwd()
	}
	return &Server{
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		terms: make(map[*session.Terminal]struct{}),
	}
}

// Handler routes /v1/pty and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/pty", s.handlePTY)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// ListenAndServe serves on addr until ctx is done, then closes every terminal.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	log.InfoLog.Printf("pty host listening on %s", ln.Addr())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	s.Shutdown(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops every live terminal and waits for their connections to end.
func (s *Server) Shutdown(ctx context.Context) {
	s.mu.Lock()
	terms := make([]*session.Terminal, 0, len(s.terms))
	for t := range s.terms {
		terms = append(terms, t)
	}
	s.mu.Unlock()

	// Each Close can wait out a grace period, so stop them in parallel.
	var wg sync.WaitGroup
	sem := make(chan struct{}, runtime.NumCPU())
	for _, t := range terms {
		wg.Add(1)
		sem <- struct{}{}
		go func(t *session.Terminal) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := t.Close(ctx); err != nil {
				log.WarningLog.Printf("failed to stop terminal: %v", err)
			}
		}(t)
	}
	wg.Wait()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Active returns the number of live terminals.
func (s *Server) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.terms)
}

func (s *Server) sessionFromQuery(r *http.Request) (session.Session, error) {
	q := r.URL.Query()
	sess := session.Session{
		Command:          s.opts.Command,
		Args:             append([]string(nil), s.opts.Args...),
		WorkingDirectory: s.opts.Dir,
		Columns:          defaultColumns,
		Rows:             defaultRows,
		SessionID:        q.Get("session"),
	}
	if cwd := q.Get("cwd"); cwd != "" {
		sess.WorkingDirectory = cwd
	}
	if v := q.Get("new"); v != "" {
		isNew, err := strconv.ParseBool(v)
		if err != nil {
			return sess, fmt.Errorf("invalid new=%q", v)
		}
		sess.IsNewSession = isNew
		if isNew && sess.SessionID == "" {
			sess.SessionID = uuid.NewString()
		}
	}
	for name, dst := range map[string]*int{"cols": &sess.Columns, "rows": &sess.Rows} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return sess, fmt.Errorf("invalid %s=%q", name, v)
		}
		*dst = n
	}
	return sess, nil
}

func (s *Server) handlePTY(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WarningLog.Printf("websocket upgrade failed: %v", err)
		return
	}
	s.wg.Add(1)
	defer s.wg.Done()

	c := &connection{conn: conn}
	defer c.close()

	term, err := session.Open(sess, s.opts.Terminal)
	if err != nil {
		log.ErrorLog.Printf("failed to open session: %v", err)
		_ = c.send(errorFrame(err))
		return
	}
	s.track(term, true)
	defer s.track(term, false)

	log.Logger.Info().
		Str("remote", r.RemoteAddr).
		Str("session", sess.SessionID).
		Str("cwd", sess.WorkingDirectory).
		Msg("pty connection opened")

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		c.pump(term)
	}()

	c.readInput(term)

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := term.Close(ctx); err != nil {
		log.WarningLog.Printf("failed to stop session %s: %v", term.Session().SessionID, err)
	}
	select {
	case <-pumpDone:
	case <-ctx.Done():
	}
}

func (s *Server) track(t *session.Terminal, live bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if live {
		s.terms[t] = struct{}{}
	} else {
		delete(s.terms, t)
	}
}

// connection serializes writes; gorilla allows one concurrent writer.
type connection struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	once    sync.Once
}

func (c *connection) send(f ServerFrame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *connection) close() {
	c.once.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = c.conn.Close()
	})
}

// pump forwards terminal events until the exit event, then closes the
// connection so the read side ends too.
func (c *connection) pump(term *session.Terminal) {
	for {
		select {
		case ev := <-term.Events():
			if err := c.send(frameFor(ev)); err != nil {
				log.Logger.Debug().Err(err).Msg("websocket write failed")
			}
			if _, ok := ev.(session.ExitEvent); ok {
				c.close()
				return
			}
		case <-term.Done():
			// The exit event is queued before Done closes, unless Close
			// abandoned it.
			for {
				select {
				case ev := <-term.Events():
					_ = c.send(frameFor(ev))
				default:
					c.close()
					return
				}
			}
		}
	}
}

func (c *connection) readInput(term *session.Terminal) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Logger.Debug().Err(err).Msg("websocket read ended")
			}
			return
		}
		var f ClientFrame
		if err := json.Unmarshal(data, &f); err != nil {
			_ = c.send(errorFrame(fmt.Errorf("invalid frame: %w", err)))
			continue
		}
		if err := c.handle(term, f); err != nil {
			_ = c.send(errorFrame(err))
		}
	}
}

func (c *connection) handle(term *session.Terminal, f ClientFrame) error {
	switch f.Type {
	case FrameKey:
		if f.Key == nil {
			return errors.New("key frame without key")
		}
		return term.SendKey(*f.Key)
	case FrameInput:
		return term.SendBytes([]byte(f.Data))
	case FrameResize:
		return term.Resize(f.Cols, f.Rows)
	}
	return fmt.Errorf("unknown frame type %q", f.Type)
}
