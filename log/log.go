// Package log wires the process-wide loggers. Call sites use InfoLog, WarningLog
// and ErrorLog with Printf-style formatting; structured fields go through Logger.
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

var (
	// Logger is the structured logger. It discards everything until Initialize runs.
	Logger = zerolog.Nop()

	InfoLog    = stdlog.New(levelWriter{zerolog.InfoLevel}, "", 0)
	WarningLog = stdlog.New(levelWriter{zerolog.WarnLevel}, "", 0)
	ErrorLog   = stdlog.New(levelWriter{zerolog.ErrorLevel}, "", 0)
)

var (
	logFileName   = filepath.Join(os.TempDir(), "claude-ptyhost.log")
	globalLogFile *os.File
)

// levelWriter turns one stdlib log line into one zerolog event at a fixed level.
type levelWriter struct {
	level zerolog.Level
}

func (w levelWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	Logger.WithLevel(w.level).Msg(msg)
	return len(p), nil
}

// Initialize opens the log file. daemon marks lines written by the headless host.
func Initialize(daemon bool) {
	f, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		panic(fmt.Sprintf("could not open log file: %s", err))
	}
	globalLogFile = f
	configure(f, daemon)
}

func configure(w io.Writer, daemon bool) {
	level := zerolog.InfoLevel
	if v := strings.ToLower(os.Getenv("DEBUG")); v == "1" || v == "true" {
		level = zerolog.DebugLevel
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	ctx := zerolog.New(w).Level(level).With().Timestamp().Int("pid", os.Getpid())
	if daemon {
		ctx = ctx.Str("mode", "daemon")
	}
	Logger = ctx.Logger()
}

// Close flushes and closes the log file.
func Close() {
	if globalLogFile == nil {
		return
	}
	_ = globalLogFile.Close()
	globalLogFile = nil
	Logger = zerolog.Nop()
	fmt.Println("wrote logs to " + logFileName)
}

// SetOutput points every logger at w. Tests use it to capture log lines.
func SetOutput(w io.Writer) {
	configure(w, false)
}
