// Package report writes and reads fanout documents.
//
// A document is a JSON array of definition records, each carrying its callee
// records. The Writer emits it incrementally; the only state it keeps is the
// nesting position, so any flushed prefix is a prefix of a well-formed
// document.
package report

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/phobologic/fanout/internal/model"
)

// State is the Writer's nesting position.
type State int

const (
	NotStarted State = iota
	SourceOpen
	DefinitionOpen
	SourceClosed
)

var stateNames = [...]string{
	NotStarted:     "NotStarted",
	SourceOpen:     "SourceOpen",
	DefinitionOpen: "DefinitionOpen",
	SourceClosed:   "SourceClosed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// UsageError is the panic value for an operation invoked out of sequence.
// It signals a defect in the caller, never bad input.
type UsageError struct {
	Op    string
	State State
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("report: %s called in state %s", e.Op, e.State)
}

// Writer streams one document. It is not safe for concurrent use.
type Writer struct {
	w       *bufio.Writer
	state   State
	defs    int
	callees int
	err     error
	scratch bytes.Buffer
	enc     *json.Encoder
}

// NewWriter returns a Writer emitting to w.
func NewWriter(w io.Writer) *Writer {
	rw := &Writer{w: bufio.NewWriter(w)}
	rw.enc = json.NewEncoder(&rw.scratch)
	rw.enc.SetEscapeHTML(false)
	return rw
}

// State returns the current nesting position.
func (w *Writer) State() State { return w.state }

// Err returns the first I/O error encountered, if any.
func (w *Writer) Err() error { return w.err }

// BeginSource opens the top-level container.
func (w *Writer) BeginSource() error {
	w.expect("BeginSource", NotStarted)
	w.state = SourceOpen
	w.write("[")
	return w.err
}

// AddDefinition opens a definition record and its empty callee list.
func (w *Writer) AddDefinition(sig model.Signature) error {
	w.expect("AddDefinition", SourceOpen)
	w.state = DefinitionOpen
	if w.defs > 0 {
		w.write(",")
	}
	w.defs++
	w.callees = 0
	w.write("\n  ")
	w.record(sig)
	w.write(`, "callees": [`)
	return w.err
}

// AddCallee appends one callee record to the open definition.
func (w *Writer) AddCallee(sig model.Signature) error {
	w.expect("AddCallee", DefinitionOpen)
	if w.callees > 0 {
		w.write(",")
	}
	w.callees++
	w.write("\n    ")
	w.record(sig)
	w.write("}")
	return w.err
}

// EndDefinition closes the open definition's callee list and record.
func (w *Writer) EndDefinition() error {
	w.expect("EndDefinition", DefinitionOpen)
	w.state = SourceOpen
	if w.callees > 0 {
		w.write("\n  ")
	}
	w.write("]}")
	return w.err
}

// EndSource closes the top-level container and flushes.
func (w *Writer) EndSource() error {
	w.expect("EndSource", SourceOpen)
	w.state = SourceClosed
	if w.defs > 0 {
		w.write("\n")
	}
	w.write("]\n")
	return w.Flush()
}

// Flush writes buffered output to the underlying writer.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	if err := w.w.Flush(); err != nil {
		w.err = fmt.Errorf("flushing report: %w", err)
	}
	return w.err
}

func (w *Writer) expect(op string, want State) {
	if w.state != want {
		panic(&UsageError{Op: op, State: w.state})
	}
}

// record writes the signature fields and leaves the object open.
func (w *Writer) record(sig model.Signature) {
	w.write(`{"name": `)
	w.quote(sig.Name)
	w.write(`, "returnType": `)
	w.quote(sig.ReturnType)
	w.write(`, "params": [`)
	for i, p := range sig.Params {
		if i > 0 {
			w.write(", ")
		}
		w.quote(p)
	}
	w.write("]")
}

func (w *Writer) quote(s string) {
	if w.err != nil {
		return
	}
	w.scratch.Reset()
	if err := w.enc.Encode(s); err != nil {
		w.err = fmt.Errorf("encoding %q: %w", s, err)
		return
	}
	// Encode terminates each value with a newline.
	w.write(string(bytes.TrimSuffix(w.scratch.Bytes(), []byte("\n"))))
}

func (w *Writer) write(s string) {
	if w.err != nil {
		return
	}
	if _, err := w.w.WriteString(s); err != nil {
		w.err = fmt.Errorf("writing report: %w", err)
	}
}
