// Package logging provides structured logging for MirseoDB's components
// on top of log/slog.
//
// Init configures the process-wide root logger once at startup;
// GetLogger hands each component (engine, codec, planner, analyzer, api)
// a named logger whose entries carry a "component" attribute. Component
// loggers resolve the root lazily, so loggers created before Init pick
// up the configured handler instead of the bootstrap default.
//
// The logging conventions are: mutating statements log at Info with
// their operation and row counts (Statement), planner decisions log at
// Debug, parse failures log at Warn, and I/O or shutdown problems log at
// Error.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Config selects the root logger's level, format, and destination.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // console, json
	Output string // stderr, stdout, or a file path
}

var root atomic.Pointer[slog.Logger]

func init() {
	// Bootstrap logger until Init runs: console at Info on stderr.
	root.Store(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))
}

// Init installs the configured root logger. Called once at startup;
// safe to call again (tests, config reload).
func Init(cfg Config) {
	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{
		Level: level,
		// Source locations are only worth the noise when debugging.
		AddSource: level == slog.LevelDebug,
	}

	out := resolveOutput(cfg.Output)
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	root.Store(slog.New(handler))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func resolveOutput(output string) io.Writer {
	switch strings.ToLower(output) {
	case "stdout":
		return os.Stdout
	case "", "stderr":
		return os.Stderr
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return os.Stderr
		}
		return f
	}
}

// Logger is a component-scoped view of the root logger.
type Logger struct {
	component string
}

// GetLogger returns the logger for a named component. The component name
// is attached to every entry.
func GetLogger(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) slog() *slog.Logger {
	return root.Load().With("component", l.component)
}

// Debug logs at debug level
func (l *Logger) Debug(msg string, args ...any) {
	l.slog().Debug(msg, args...)
}

// Info logs at info level
func (l *Logger) Info(msg string, args ...any) {
	l.slog().Info(msg, args...)
}

// Warn logs at warn level
func (l *Logger) Warn(msg string, args ...any) {
	l.slog().Warn(msg, args...)
}

// Error logs at error level
func (l *Logger) Error(msg string, args ...any) {
	l.slog().Error(msg, args...)
}

// Statement logs one successfully executed SQL statement at Info, keyed
// by its operation name (SELECT, INSERT, DROP TABLE, ...).
func (l *Logger) Statement(operation string, args ...any) {
	all := append([]any{"operation", operation}, args...)
	l.slog().Info("statement executed", all...)
}
