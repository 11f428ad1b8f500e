// Package logging wraps the standard library's log.Logger with the
// level-style prefixes the teacher library's example binaries use
// (log.New(os.Stderr, "", 0) plus ad-hoc "> phase" lines), rather than
// introducing a structured-logging dependency the core itself never needed.
package logging

import (
	"log"
	"os"
)

// Logger is a minimal leveled wrapper; the core never logs on behalf of the
// caller except for the keyword-database build diagnostics named in
// SPEC_FULL.md (pir.BuildKeywordDatabase progress and expansion warnings).
type Logger struct {
	l *log.Logger
}

// Default writes to stderr with no timestamp prefix, matching the teacher's
// example binaries.
func Default() *Logger {
	return &Logger{l: log.New(os.Stderr, "", 0)}
}

func (lg *Logger) Info(msg string, args ...any) {
	lg.l.Printf("[info] "+msg, args...)
}

func (lg *Logger) Warn(msg string, args ...any) {
	lg.l.Printf("[warn] "+msg, args...)
}
