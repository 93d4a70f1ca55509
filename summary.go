package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/phobologic/fanout/internal/config"
	"github.com/phobologic/fanout/internal/discover"
	"github.com/phobologic/fanout/internal/graph"
	"github.com/phobologic/fanout/internal/model"
	"github.com/phobologic/fanout/internal/ranking"
	"github.com/phobologic/fanout/internal/report"
	"github.com/phobologic/fanout/internal/toon"
)

// reportFile is a report on disk and the unit it describes.
type reportFile struct {
	path   string
	source string
}

// runSummary implements the `fanout summary` subcommand, which joins the
// reports of many units into one ranked call graph printed as TOON.
func runSummary(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("fanout summary", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		maxFunctions int
		suffix       string
		symbol       string
		unitFilter   string
		noTests      bool
	)
	fs.IntVar(&maxFunctions, "n", 0, "max functions in output (0 = all)")
	fs.IntVar(&maxFunctions, "max-functions", 0, "max functions in output (0 = all)")
	fs.StringVar(&suffix, "suffix", config.DefaultSuffix, "report file suffix")
	fs.StringVar(&symbol, "s", "", "only functions whose name contains this, with their callers and callees")
	fs.StringVar(&symbol, "symbol", "", "only functions whose name contains this, with their callers and callees")
	fs.StringVar(&unitFilter, "unit", "", "only functions defined in units whose path contains this")
	fs.BoolVar(&noTests, "no-tests", false, "skip reports of test units")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: fanout summary [flags] [report|dir]...

Read fanout reports and print the combined call graph as TOON, functions
ranked by PageRank. Directories are searched for files ending in the
report suffix. Inputs default to the current directory.

Flags:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(reorderArgs(args)); err != nil {
		return err
	}
	if suffix == "" {
		return errors.New("suffix must not be empty")
	}

	inputs := fs.Args()
	if len(inputs) == 0 {
		inputs = []string{"."}
	}

	files, err := collectReports(inputs, suffix)
	if err != nil {
		return err
	}

	var reports []model.UnitReport
	for _, rf := range files {
		if noTests && discover.IsTestFile(rf.source) {
			continue
		}
		r, err := report.ReadFile(rf.path, rf.source)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Warning: %v\n", err)
			continue
		}
		reports = append(reports, r)
	}
	if len(reports) == 0 {
		return fmt.Errorf("no fanout reports found (suffix %q)", suffix)
	}

	functions, calls := graph.BuildCallGraph(reports)
	graph.Rank(functions, calls)

	s := &model.Summary{
		Root:      summaryRoot(inputs),
		Units:     len(reports),
		Functions: functions,
		Calls:     calls,
	}
	if symbol != "" {
		s = ranking.FilterByName(s, symbol)
	}
	if unitFilter != "" {
		s = ranking.FilterByUnit(s, unitFilter)
	}
	s = ranking.SelectFunctions(s, maxFunctions)

	_, err = fmt.Fprintln(stdout, toon.Encode(s))
	return err
}

// collectReports expands directory inputs into the reports below them.
// Report files named directly are taken as is.
func collectReports(inputs []string, suffix string) ([]reportFile, error) {
	var files []reportFile
	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, reportFile{path: in, source: strings.TrimSuffix(in, suffix)})
			continue
		}
		found, err := discover.Reports(in, suffix)
		if err != nil {
			return nil, fmt.Errorf("discovering reports in %s: %w", in, err)
		}
		for _, rel := range found {
			files = append(files, reportFile{
				path:   filepath.Join(in, rel),
				source: strings.TrimSuffix(rel, suffix),
			})
		}
	}
	return files, nil
}

// summaryRoot names the summary after its single directory input.
func summaryRoot(inputs []string) string {
	if len(inputs) == 1 {
		if abs, err := filepath.Abs(inputs[0]); err == nil {
			if info, err := os.Stat(abs); err == nil && info.IsDir() {
				return filepath.Base(abs)
			}
		}
	}
	return "."
}
