// Package logging provides the audit logger for the moderation store.
//
// Log writes are best-effort: a broken or panicking sink never fails the
// operation being logged.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Flag tags every audit entry written by the store.
const Flag = "MODERATIONS"

// Logger is the audit log consumed by the engine.
type Logger interface {
	// WriteLog records a structured audit entry under the MODERATIONS flag.
	WriteLog(action string, data map[string]any)
	// DebugLog records a free-form debug message.
	DebugLog(msg string)
}

// ZerologLogger writes audit entries through zerolog.
type ZerologLogger struct {
	log zerolog.Logger
}

// New wraps a zerolog logger.
func New(log zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{log: log}
}

// NewConsole builds a human-readable logger for CLI use.
func NewConsole(w io.Writer) *ZerologLogger {
	if w == nil {
		w = os.Stderr
	}
	return &ZerologLogger{
		log: zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger(),
	}
}

// WriteLog implements Logger. Failures in the underlying writer are
// swallowed by zerolog; panics are swallowed here.
func (l *ZerologLogger) WriteLog(action string, data map[string]any) {
	defer func() { _ = recover() }()
	ev := l.log.Info().Str("flag", Flag).Str("action", action)
	if len(data) > 0 {
		ev = ev.Interface("data", data)
	}
	ev.Send()
}

// DebugLog implements Logger.
func (l *ZerologLogger) DebugLog(msg string) {
	defer func() { _ = recover() }()
	l.log.Debug().Str("flag", Flag).Msg(msg)
}

// Nop is a Logger that discards everything.
type Nop struct{}

// WriteLog implements Logger.
func (Nop) WriteLog(string, map[string]any) {}

// DebugLog implements Logger.
func (Nop) DebugLog(string) {}
