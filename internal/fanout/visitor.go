// Package fanout decides which declarations and call sites make up a unit's
// fanout report and drives a report sink accordingly.
package fanout

import (
	"fmt"
	"log/slog"

	"github.com/phobologic/fanout/internal/ast"
	"github.com/phobologic/fanout/internal/model"
)

// Sink receives the report operations. *report.Writer implements it.
type Sink interface {
	AddDefinition(sig model.Signature) error
	AddCallee(sig model.Signature) error
	EndDefinition() error
	EndSource() error
	Flush() error
}

// Stats counts what the visitor saw.
type Stats struct {
	Definitions int
	Callees     int
	Prototypes  int // declarations without a body
	System      int // definitions skipped for system-header provenance
	Indirect    int // calls without a direct target
}

// Visitor walks declaration batches of one compilation unit.
// The sink's source scope must already be open.
type Visitor struct {
	sink      Sink
	log       *slog.Logger
	stats     Stats
	finalized bool
}

// New returns a Visitor driving sink. A nil logger discards debug output.
func New(sink Sink, logger *slog.Logger) *Visitor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Visitor{sink: sink, log: logger}
}

// Stats returns the counts accumulated so far.
func (v *Visitor) Stats() Stats { return v.stats }

// HandleBatch implements frontend.Consumer.
func (v *Visitor) HandleBatch(batch ast.Batch) error {
	return v.ProcessBatch(batch)
}

// ProcessBatch reports every unit-local function definition in batch and
// flushes the sink once the batch is done.
func (v *Visitor) ProcessBatch(batch ast.Batch) error {
	if v.finalized {
		return fmt.Errorf("fanout: batch delivered after finalize")
	}
	for _, d := range batch {
		fd, ok := d.(*ast.FuncDecl)
		if !ok {
			continue
		}
		if !fd.HasBody() {
			v.stats.Prototypes++
			continue
		}
		if fd.Provenance == ast.System {
			v.stats.System++
			continue
		}
		if err := v.definition(fd); err != nil {
			return err
		}
	}
	return v.sink.Flush()
}

// definition emits one definition record. EndDefinition is attempted even
// after a sink error so the sink's nesting stays consistent.
func (v *Visitor) definition(fd *ast.FuncDecl) error {
	if err := v.sink.AddDefinition(fd.Signature); err != nil {
		_ = v.sink.EndDefinition()
		return err
	}
	v.stats.Definitions++

	err := v.collect(fd)
	if endErr := v.sink.EndDefinition(); err == nil {
		err = endErr
	}
	return err
}

// collect walks fd's body depth-first and emits a callee for every call
// with a direct target, in encounter order.
func (v *Visitor) collect(fd *ast.FuncDecl) error {
	var err error
	ast.Inspect(fd.Body, func(n ast.Node) bool {
		if err != nil {
			return false
		}
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		if call.Callee == nil {
			v.stats.Indirect++
			v.log.Debug("call without direct target",
				slog.String("function", fd.Name),
				slog.String("pos", call.Position.String()))
			return true
		}
		if err = v.sink.AddCallee(call.Callee.Signature); err != nil {
			return false
		}
		v.stats.Callees++
		return true
	})
	return err
}

// Finalize closes the unit's source scope. Calls after the first are no-ops.
func (v *Visitor) Finalize() error {
	if v.finalized {
		return nil
	}
	v.finalized = true
	return v.sink.EndSource()
}
