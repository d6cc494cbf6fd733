// Package diag provides verbosity-gated diagnostic logging.
package diag

import (
	"log"
	"os"
)

// Logger prints debug lines only when the message's level is at or below
// the configured verbosity, mirroring the original tool's -v repeat flag.
type Logger struct {
	verbosity int
	quiet     bool
	out       *log.Logger
}

// New creates a Logger writing to stderr.
func New(verbosity int, quiet bool) *Logger {
	return &Logger{
		verbosity: verbosity,
		quiet:     quiet,
		out:       log.New(os.Stderr, "", 0),
	}
}

// Debugf logs a formatted message if level <= the configured verbosity.
func (l *Logger) Debugf(level int, format string, args ...interface{}) {
	if l == nil || l.verbosity < level {
		return
	}
	l.out.Printf(format, args...)
}

// Printf logs a line unless the logger is quiet.
func (l *Logger) Printf(format string, args ...interface{}) {
	if l == nil || l.quiet {
		return
	}
	l.out.Printf(format, args...)
}

// Errorf always logs, regardless of quiet or verbosity.
func (l *Logger) Errorf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.out.Printf(format, args...)
}
