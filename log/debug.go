package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SlowPassThreshold is one frame at 60Hz. Passes slower than this are logged.
const SlowPassThreshold = 16 * time.Millisecond

var (
	DebugEnabled bool
	DebugLog     = zerolog.Nop()
	debugLogFile *os.File
)

var debugLogFileName = filepath.Join(os.TempDir(), "claude-ptyhost-debug.log")

// InitDebug turns on the debug log and the render profiler when
// CLAUDE_PTYHOST_DEBUG=1. Call it after Initialize.
func InitDebug() {
	if os.Getenv("CLAUDE_PTYHOST_DEBUG") != "1" {
		DebugEnabled = false
		DebugLog = zerolog.Nop()
		return
	}

	f, err := os.OpenFile(debugLogFileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		ErrorLog.Printf("could not open debug log file: %s", err)
		return
	}
	debugLogFile = f
	DebugEnabled = true
	DebugLog = zerolog.New(zerolog.ConsoleWriter{Out: f, NoColor: true, TimeFormat: "15:04:05.000"}).
		With().Timestamp().Logger()
	DebugLog.Info().Str("file", debugLogFileName).Msg("debug mode enabled")
}

// CloseDebug writes the profile summary and closes the debug log.
func CloseDebug() {
	if debugLogFile == nil {
		return
	}
	profiler.LogStats()
	_ = debugLogFile.Close()
	debugLogFile = nil
	DebugEnabled = false
	DebugLog = zerolog.Nop()
}

// Debug logs when debug mode is on.
func Debug(format string, v ...interface{}) {
	if DebugEnabled {
		DebugLog.Debug().Msgf(format, v...)
	}
}

// RenderProfiler times compositor passes and scheduler fires per stage.
type RenderProfiler struct {
	mu     sync.Mutex
	stages map[string]*StageMetrics
	passes int64
	total  time.Duration
	recent []time.Duration
	slow   int64
}

// StageMetrics holds timings for one named stage such as "extract".
type StageMetrics struct {
	Name  string
	Count int64
	Total time.Duration
	Min   time.Duration
	Max   time.Duration
}

const recentWindow = 100

var profiler = NewRenderProfiler()

func NewRenderProfiler() *RenderProfiler {
	return &RenderProfiler{
		stages: make(map[string]*StageMetrics),
		recent: make([]time.Duration, 0, recentWindow),
	}
}

// GetProfiler returns the process-wide profiler.
func GetProfiler() *RenderProfiler {
	return profiler
}

// Start times one stage. The returned func stops the clock.
func (p *RenderProfiler) Start(stage string) func() {
	if !DebugEnabled {
		return func() {}
	}
	start := time.Now()
	return func() {
		p.record(stage, time.Since(start))
	}
}

func (p *RenderProfiler) record(stage string, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.stages[stage]
	if !ok {
		m = &StageMetrics{Name: stage, Min: elapsed, Max: elapsed}
		p.stages[stage] = m
	}
	m.Count++
	m.Total += elapsed
	if elapsed < m.Min {
		m.Min = elapsed
	}
	if elapsed > m.Max {
		m.Max = elapsed
	}
}

// RecordPass records one complete compositor pass.
func (p *RenderProfiler) RecordPass(elapsed time.Duration) {
	if !DebugEnabled {
		return
	}

	p.mu.Lock()
	p.passes++
	p.total += elapsed
	if len(p.recent) >= recentWindow {
		p.recent = p.recent[1:]
	}
	p.recent = append(p.recent, elapsed)
	slow := elapsed > SlowPassThreshold
	if slow {
		p.slow++
	}
	p.mu.Unlock()

	if slow {
		DebugLog.Warn().Dur("elapsed", elapsed).Msg("slow compositor pass")
	}
}

// Stage returns a copy of the metrics for a stage.
func (p *RenderProfiler) Stage(name string) (StageMetrics, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.stages[name]
	if !ok {
		return StageMetrics{}, false
	}
	return *m, true
}

// Passes returns the number of recorded passes and how many were slow.
func (p *RenderProfiler) Passes() (total, slow int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.passes, p.slow
}

// Stats renders a human readable summary.
func (p *RenderProfiler) Stats() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var sb strings.Builder
	sb.WriteString("=== Render Profile ===\n")
	fmt.Fprintf(&sb, "passes: %d (slow: %d)\n", p.passes, p.slow)
	if p.passes > 0 {
		fmt.Fprintf(&sb, "avg pass: %v\n", p.total/time.Duration(p.passes))
	}
	if len(p.recent) > 0 {
		lo, hi := p.recent[0], p.recent[0]
		for _, d := range p.recent {
			lo = min(lo, d)
			hi = max(hi, d)
		}
		fmt.Fprintf(&sb, "recent %d: min=%v max=%v\n", len(p.recent), lo, hi)
	}

	stages := make([]*StageMetrics, 0, len(p.stages))
	for _, m := range p.stages {
		stages = append(stages, m)
	}
	sort.Slice(stages, func(i, j int) bool {
		return stages[i].Total > stages[j].Total
	})
	for _, m := range stages {
		fmt.Fprintf(&sb, "  %s: count=%d total=%v avg=%v min=%v max=%v\n",
			m.Name, m.Count, m.Total, m.Total/time.Duration(m.Count), m.Min, m.Max)
	}
	return sb.String()
}

// LogStats writes Stats to the debug log.
func (p *RenderProfiler) LogStats() {
	if DebugEnabled {
		DebugLog.Info().Msg(p.Stats())
	}
}

// Reset clears all profiling data.
func (p *RenderProfiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stages = make(map[string]*StageMetrics)
	p.passes = 0
	p.slow = 0
	p.total = 0
	p.recent = p.recent[:0]
}

// InputTrace logs key routing decisions.
func InputTrace(format string, v ...interface{}) {
	if DebugEnabled {
		DebugLog.Debug().Str("component", "input").Msgf(format, v...)
	}
}
