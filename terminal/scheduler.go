package terminal

import (
	"sync"
	"time"

	"github.com/bep/debounce"

	"claude-ptyhost/log"
)

// DefaultDebounce is one frame at 60Hz.
const DefaultDebounce = 16 * time.Millisecond

// Scheduler coalesces bursts of Schedule calls into one render per window.
// Every call restarts the window and the most recent render func wins, so it
// sees the buffer as it is when the timer fires.
type Scheduler struct {
	mu        sync.Mutex
	debounced func(f func())
	stopped   bool
}

// NewScheduler debounces over window; zero or less means DefaultDebounce.
func NewScheduler(window time.Duration) *Scheduler {
	if window <= 0 {
		window = DefaultDebounce
	}
	return &Scheduler{debounced: debounce.New(window)}
}

// Schedule arms the timer for render, restarting it if one is pending. Only
// the render passed last runs when the timer fires.
func (s *Scheduler) Schedule(render func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.debounced(func() { s.fire(render) })
}

func (s *Scheduler) fire(render func()) {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return
	}
	done := log.GetProfiler().Start("render")
	defer done()
	render()
}

// Stop drops any pending render. Later Schedule calls are ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	s.debounced(func() {})
}
