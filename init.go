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
)

const (
	sentinelStart = "# fanout:start"
	sentinelEnd   = "# fanout:end"
)

// runInit implements the `fanout init` subcommand. It writes a starter
// config file when none exists and keeps a sentinel-wrapped block in
// .gitignore that ignores report files.
func runInit(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("fanout init", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		dryRun bool
		suffix string
	)
	fs.BoolVar(&dryRun, "dry-run", false, "print what would be written without modifying any file")
	fs.StringVar(&suffix, "suffix", config.DefaultSuffix, "report file suffix to ignore")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: fanout init [flags] [dir]

Write a starter %s to dir unless one exists, and add a block to
dir/.gitignore that ignores report files. The block is wrapped in sentinel
comments so later runs update it in place without touching surrounding lines.

dir defaults to the current directory.

Flags:
`, config.DefaultFile)
		fs.PrintDefaults()
	}

	if err := fs.Parse(reorderArgs(args)); err != nil {
		return err
	}
	if suffix == "" || strings.ContainsRune(suffix, filepath.Separator) {
		return fmt.Errorf("invalid suffix %q", suffix)
	}

	dir := "."
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}
	cfgPath := filepath.Join(dir, config.DefaultFile)
	ignorePath := filepath.Join(dir, ".gitignore")

	writeConfig := true
	if _, err := os.Stat(cfgPath); err == nil {
		writeConfig = false
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", cfgPath, err)
	}

	existing, err := os.ReadFile(ignorePath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading %s: %w", ignorePath, err)
	}
	updated := applySection(string(existing), generateSection(suffix))

	if dryRun {
		if writeConfig {
			_, _ = fmt.Fprintf(stdout, "--- %s\n%s", cfgPath, generateConfig(suffix))
		}
		_, _ = fmt.Fprintf(stdout, "--- %s\n%s", ignorePath, updated)
		return nil
	}

	if writeConfig {
		if err := os.WriteFile(cfgPath, []byte(generateConfig(suffix)), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", cfgPath, err)
		}
		_, _ = fmt.Fprintf(stderr, "wrote %s\n", cfgPath)
	} else {
		_, _ = fmt.Fprintf(stderr, "kept existing %s\n", cfgPath)
	}

	if err := os.WriteFile(ignorePath, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", ignorePath, err)
	}
	_, _ = fmt.Fprintf(stderr, "wrote fanout section to %s\n", ignorePath)
	return nil
}

// generateConfig returns a starter config file. Settings that depend on
// the machine are left commented out.
func generateConfig(suffix string) string {
	def := config.Default()
	return fmt.Sprintf(`# fanout settings. Environment variables (FANOUT_*) and flags override these.

# Reports are written next to each unit unless output_dir is set.
# output_dir: reports
suffix: %q

# Searched for #include "..." after the including file's directory.
include_dirs: []
# Headers found here are treated as system headers and never reported.
system_include_dirs: []

# Force every unit to parse as c or cpp instead of going by extension.
# language: cpp

# Defaults to the number of CPUs.
# workers: 8

header_cache_size: %d
max_include_depth: %d
verbose: false
`, suffix, def.HeaderCacheSize, def.MaxIncludeDepth)
}

// generateSection returns the sentinel-wrapped .gitignore block.
func generateSection(suffix string) string {
	return sentinelStart + "\n*" + suffix + "\n" + sentinelEnd
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or appending if not. It is a pure function for easy testing.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	if content == "" {
		return section + "\n"
	}
	// Append, ensuring a blank line separator.
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "\n" + section + "\n"
}
