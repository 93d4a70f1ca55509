// Package unit owns the per-unit analysis context: the output file, the
// report writer and the visitor driving it.
package unit

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/phobologic/fanout/internal/ast"
	"github.com/phobologic/fanout/internal/fanout"
	"github.com/phobologic/fanout/internal/frontend"
	"github.com/phobologic/fanout/internal/report"
)

// Options controls where a unit's report goes.
type Options struct {
	// OutputDir receives reports under the unit's path relative to the
	// working directory. Empty writes each report next to its unit.
	OutputDir string
	Suffix    string
	Logger    *slog.Logger
}

// OutputPath returns the report path for the unit at path.
func OutputPath(path, outDir, suffix string) string {
	if outDir == "" {
		return path + suffix
	}
	rel := path
	if filepath.IsAbs(path) {
		rel = strings.TrimPrefix(path, filepath.VolumeName(path))
		if wd, err := os.Getwd(); err == nil {
			if r, err := filepath.Rel(wd, path); err == nil && !escapes(r) {
				rel = r
			}
		}
	} else {
		rel = filepath.Clean(path)
		for escapes(rel) {
			rel = strings.TrimPrefix(strings.TrimPrefix(rel, ".."), string(filepath.Separator))
		}
	}
	return filepath.Join(outDir, rel+suffix)
}

func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Unit is an open report for one compilation unit. It implements
// frontend.Consumer.
type Unit struct {
	path   string
	target string
	file   *os.File
	w      *report.Writer
	v      *fanout.Visitor
	closed bool
}

// Open creates the unit's output file and opens its source scope.
func Open(path string, opts Options) (*Unit, error) {
	target := OutputPath(path, opts.OutputDir, opts.Suffix)
	if opts.OutputDir != "" {
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, fmt.Errorf("cannot open output file %s: %w", target, err)
		}
	}
	f, err := os.Create(target)
	if err != nil {
		return nil, fmt.Errorf("cannot open output file %s: %w", target, err)
	}

	w := report.NewWriter(f)
	if err := w.BeginSource(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Unit{
		path:   path,
		target: target,
		file:   f,
		w:      w,
		v:      fanout.New(w, opts.Logger),
	}, nil
}

// Target returns the report path.
func (u *Unit) Target() string { return u.target }

// Stats returns the visitor's counts.
func (u *Unit) Stats() fanout.Stats { return u.v.Stats() }

// HandleBatch implements frontend.Consumer.
func (u *Unit) HandleBatch(batch ast.Batch) error {
	return u.v.HandleBatch(batch)
}

// Close finalizes the report and closes the file. Calls after the first
// are no-ops.
func (u *Unit) Close() error {
	if u.closed {
		return nil
	}
	u.closed = true
	// a panic inside a definition leaves its record open
	if u.w.State() == report.DefinitionOpen {
		_ = u.w.EndDefinition()
	}
	err := u.v.Finalize()
	if cerr := u.file.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("closing %s: %w", u.target, cerr)
	}
	return err
}

// Result describes one analyzed unit.
type Result struct {
	Target   string
	Fanout   fanout.Stats
	Frontend frontend.Stats
}

// Analyze parses the unit at path and writes its report. The report is
// finalized even when parsing fails part way.
func Analyze(ctx context.Context, fe *frontend.Frontend, path string, opts Options) (res Result, err error) {
	if _, err := fe.LanguageFor(path); err != nil {
		return res, err
	}
	u, err := Open(path, opts)
	if err != nil {
		return res, err
	}
	defer func() {
		if cerr := u.Close(); err == nil {
			err = cerr
		}
		res.Fanout = u.Stats()
	}()

	res.Target = u.Target()
	res.Frontend, err = fe.ParseUnit(ctx, path, u)
	return res, err
}
