package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Leveled logger shared by the client, the CLI and the devbackend.
// - package-global, safe for concurrent use
// - Debug/Info/Warn/Error/Fatal variants, Init(level) and SetFormat(json|console)
// - backed by zerolog

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
	out    io.Writer = os.Stderr
	format           = "json"
	level  Level     = LevelInfo
	zl               = build(out, format, level)
)

func build(w io.Writer, f string, l Level) zerolog.Logger {
	if f == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}
	return zerolog.New(w).Level(toZerolog(l)).With().Timestamp().Logger()
}

func toZerolog(l Level) zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	case LevelFatal:
		return zerolog.FatalLevel
	}
	return zerolog.InfoLevel
}

// Init sets the global log level (case-insensitive: debug, info, warn, error, fatal).
// Call early during startup. Default level is Info.
func Init(l string) {
	mu.Lock()
	defer mu.Unlock()
	switch strings.ToLower(strings.TrimSpace(l)) {
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
	zl = build(out, format, level)
}

// SetFormat switches between "json" (default) and "console" output.
func SetFormat(f string) {
	mu.Lock()
	defer mu.Unlock()
	if strings.ToLower(strings.TrimSpace(f)) == "console" {
		format = "console"
	} else {
		format = "json"
	}
	zl = build(out, format, level)
}

// SetOutput redirects log output; nil restores stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	out = w
	zl = build(out, format, level)
}

func current() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := zl
	return &l
}

func Debugf(f string, v ...interface{}) { current().Debug().Msgf(f, v...) }
func Infof(f string, v ...interface{})  { current().Info().Msgf(f, v...) }
func Warnf(f string, v ...interface{})  { current().Warn().Msgf(f, v...) }
func Errorf(f string, v ...interface{}) { current().Error().Msgf(f, v...) }

// Fatalf logs and exits with status 1 regardless of level.
func Fatalf(f string, v ...interface{}) {
	l := current().Level(zerolog.DebugLevel)
	l.WithLevel(zerolog.FatalLevel).Msgf(f, v...)
	os.Exit(1)
}

func Info(v string) { Infof("%s", v) }
func Warn(v string) { Warnf("%s", v) }

// LevelString returns the current level as text.
func LevelString() string {
	mu.RLock()
	defer mu.RUnlock()
	switch level {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	}
	return "info"
}

// Redact keeps the first few characters of a secret so log lines stay correlatable.
func Redact(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 6 {
		return "***"
	}
	return secret[:6] + "…"
}
