package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Leveled logger used across the panel API. The printf-style helpers render
// through a slog handler so output can be switched to JSON for log shipping.

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var (
	mu     sync.RWMutex
	level  Level        = LevelInfo
	format string       = "text"
	out    io.Writer    = os.Stdout
	logger *slog.Logger = newLogger(os.Stdout, "text")
)

func newLogger(w io.Writer, f string) *slog.Logger {
	// the package filters levels itself; the handler accepts everything
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	if f == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Init sets the global log level (case-insensitive: debug, info, warn, error, fatal).
// Call early during startup. Default level is Info.
func Init(l string) {
	mu.Lock()
	defer mu.Unlock()
	s := strings.ToLower(strings.TrimSpace(l))
	switch s {
	case "debug":
		level = LevelDebug
	case "warn", "warning":
		level = LevelWarn
	case "error":
		level = LevelError
	case "fatal":
		level = LevelFatal
	default:
		level = LevelInfo
	}
}

// SetFormat selects "json" or "text" output.
func SetFormat(f string) {
	mu.Lock()
	defer mu.Unlock()
	f = strings.ToLower(strings.TrimSpace(f))
	if f != "json" {
		f = "text"
	}
	format = f
	logger = newLogger(out, format)
}

// SetOutput redirects log output; used by tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	logger = newLogger(out, format)
}

// Slog exposes the underlying structured logger for callers that log key/value pairs.
func Slog() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func shouldLog(l Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return l >= level
}

func emit(l slog.Level, msg string) {
	Slog().Log(context.Background(), l, msg)
}

func Debugf(format string, v ...interface{}) {
	if !shouldLog(LevelDebug) {
		return
	}
	emit(slog.LevelDebug, fmt.Sprintf(format, v...))
}

func Infof(format string, v ...interface{}) {
	if !shouldLog(LevelInfo) {
		return
	}
	emit(slog.LevelInfo, fmt.Sprintf(format, v...))
}

func Warnf(format string, v ...interface{}) {
	if !shouldLog(LevelWarn) {
		return
	}
	emit(slog.LevelWarn, fmt.Sprintf(format, v...))
}

func Errorf(format string, v ...interface{}) {
	if !shouldLog(LevelError) {
		return
	}
	emit(slog.LevelError, fmt.Sprintf(format, v...))
}

func Fatalf(format string, v ...interface{}) {
	emit(slog.LevelError+4, fmt.Sprintf(format, v...))
	os.Exit(1)
}

// With logs msg at level l together with structured attributes.
func With(l Level, msg string, attrs ...any) {
	if !shouldLog(l) {
		return
	}
	var sl slog.Level
	switch l {
	case LevelDebug:
		sl = slog.LevelDebug
	case LevelWarn:
		sl = slog.LevelWarn
	case LevelError, LevelFatal:
		sl = slog.LevelError
	default:
		sl = slog.LevelInfo
	}
	Slog().Log(context.Background(), sl, msg, attrs...)
}

// Debug/Info/Warn/Error helpers that accept a single string
func Debug(v string) { Debugf("%s", v) }
func Info(v string)  { Infof("%s", v) }
func Warn(v string)  { Warnf("%s", v) }
func Error(v string) { Errorf("%s", v) }

// LevelString returns the current level as text.
func LevelString() string {
	mu.RLock()
	defer mu.RUnlock()
	switch level {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	}
	return "info"
}
