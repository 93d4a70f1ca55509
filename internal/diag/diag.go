// Package diag reports user-facing diagnostics in the style of a compiler
// driver: "fanout: error: ..." lines followed by a count of what was reported.
package diag

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrAborted is returned when configuration errors stop a run before any
// unit is analyzed.
var ErrAborted = errors.New("aborted: invalid configuration")

// Level is the severity of a diagnostic.
type Level int

const (
	Note Level = iota
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Warning:
		return "warning"
	case Error:
		return "error"
	}
	return "note"
}

// Engine writes diagnostics and counts them. It is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	w        io.Writer
	prog     string
	errors   int
	warnings int
}

// New returns an Engine writing to w with prog as the line prefix.
func New(w io.Writer, prog string) *Engine {
	return &Engine{w: w, prog: prog}
}

// Report writes one diagnostic.
func (e *Engine) Report(level Level, msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch level {
	case Error:
		e.errors++
	case Warning:
		e.warnings++
	}
	_, _ = fmt.Fprintf(e.w, "%s: %s: %s\n", e.prog, level, msg)
}

func (e *Engine) Errorf(format string, args ...any) { e.Report(Error, fmt.Sprintf(format, args...)) }
func (e *Engine) Warnf(format string, args ...any)  { e.Report(Warning, fmt.Sprintf(format, args...)) }
func (e *Engine) Notef(format string, args ...any)  { e.Report(Note, fmt.Sprintf(format, args...)) }

// ErrorCount returns the number of errors reported so far.
func (e *Engine) ErrorCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errors
}

// WarningCount returns the number of warnings reported so far.
func (e *Engine) WarningCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.warnings
}

// Finish writes the closing tally, e.g. "1 warning and 2 errors generated.",
// when anything was reported.
func (e *Engine) Finish() {
	e.mu.Lock()
	defer e.mu.Unlock()
	var msg string
	switch {
	case e.warnings > 0 && e.errors > 0:
		msg = plural(e.warnings, "warning") + " and " + plural(e.errors, "error")
	case e.warnings > 0:
		msg = plural(e.warnings, "warning")
	case e.errors > 0:
		msg = plural(e.errors, "error")
	default:
		return
	}
	_, _ = fmt.Fprintf(e.w, "%s generated.\n", msg)
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
