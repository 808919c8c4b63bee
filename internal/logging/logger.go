package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Output targets accepted by Config.Output.
const (
	OutputStderr = "stderr"
	OutputStdout = "stdout"
	OutputFile   = "file"
)

// Formats accepted by Config.Format.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Config describes how a logger is built.
type Config struct {
	// Level is a zerolog level name (trace, debug, info, warn, error).
	// Unknown values fall back to info.
	Level string

	// Format is "json" or "console".
	Format string

	// Output is "stderr", "stdout" or "file".
	Output string

	// File is the log file path when Output is "file".
	File string

	// Caller adds file:line to every event.
	Caller bool
}

// Result carries the built logger plus the file handle it writes to, if any.
type Result struct {
	Logger zerolog.Logger

	// FilePath is set when the logger writes to a file.
	FilePath string

	// FallbackReason explains why a requested file could not be opened
	// and stderr was used instead.
	FallbackReason string

	closer io.Closer
}

// Close releases the log file, if one was opened.
func (r *Result) Close() error {
	if r == nil || r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

//nolint:gochecknoglobals // process-wide default used when a context carries no logger
var (
	globalMu     sync.RWMutex
	globalLogger = zerolog.New(os.Stderr).With().Timestamp().Logger().Hook(TraceHook{})
)

// NewLogger builds a zerolog logger from cfg. If the configured file cannot
// be opened the logger falls back to stderr and records the reason.
func NewLogger(cfg Config) *Result {
	res := &Result{}

	var out io.Writer = os.Stderr
	switch strings.ToLower(cfg.Output) {
	case OutputStdout:
		out = os.Stdout
	case OutputFile:
		if cfg.File == "" {
			res.FallbackReason = "no log file configured"
			break
		}
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			res.FallbackReason = fmt.Sprintf("open %s: %v", cfg.File, err)
			break
		}
		out = f
		res.FilePath = cfg.File
		res.closer = f
	}

	if strings.EqualFold(cfg.Format, FormatConsole) {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		lvl = zerolog.InfoLevel
	}

	zctx := zerolog.New(out).Level(lvl).With().Timestamp()
	if cfg.Caller {
		zctx = zctx.Caller()
	}
	res.Logger = zctx.Logger().Hook(TraceHook{})
	return res
}

// SetGlobal replaces the logger returned by FromContext for contexts that
// carry none.
func SetGlobal(l zerolog.Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// Global returns the process-wide default logger.
func Global() zerolog.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// FromContext returns the logger stored in ctx, or the global logger when
// ctx has none.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
			return l
		}
	}
	l := Global()
	return &l
}

// ComponentLogger returns a child logger tagged with component.
func ComponentLogger(l zerolog.Logger, component string) zerolog.Logger {
	return l.With().Str("component", component).Logger()
}
