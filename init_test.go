package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phobologic/fanout/internal/config"
)

// TestApplySectionCreate verifies that applySection on empty content yields
// just the section with a trailing newline.
func TestApplySectionCreate(t *testing.T) {
	t.Parallel()
	section := generateSection(".fanout")
	got := applySection("", section)
	if got != sentinelStart+"\n*.fanout\n"+sentinelEnd+"\n" {
		t.Errorf("unexpected content:\n%s", got)
	}
}

// TestApplySectionAppend verifies that existing content without a sentinel block
// is preserved and the section is appended.
func TestApplySectionAppend(t *testing.T) {
	t.Parallel()
	existing := "build/\n*.o"
	got := applySection(existing, generateSection(".fanout"))

	if !strings.HasPrefix(got, existing+"\n\n") {
		t.Errorf("existing content should be preserved at start:\n%s", got)
	}
	if !strings.Contains(got, "*.fanout") {
		t.Error("ignore pattern missing")
	}
}

// TestApplySectionUpdate verifies that an existing sentinel block is replaced
// precisely, leaving surrounding content intact.
func TestApplySectionUpdate(t *testing.T) {
	t.Parallel()
	before := "build/\n\n"
	after := "\n\n*.o\n"
	old := before + sentinelStart + "\n*.calls\n" + sentinelEnd + after

	got := applySection(old, generateSection(".fanout"))

	if !strings.HasPrefix(got, before) {
		t.Errorf("content before sentinel should be preserved:\n%s", got)
	}
	if !strings.HasSuffix(got, after) {
		t.Errorf("content after sentinel should be preserved:\n%s", got)
	}
	if strings.Contains(got, "*.calls") {
		t.Error("old pattern should be replaced")
	}
	if !strings.Contains(got, "*.fanout") {
		t.Error("new pattern missing")
	}
}

// TestGenerateConfigLoads verifies the starter config is accepted by the
// config loader and keeps the requested suffix.
func TestGenerateConfigLoads(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), config.DefaultFile)
	if err := os.WriteFile(path, []byte(generateConfig(".calls")), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	if err := config.LoadFile(path, false, &cfg); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Suffix != ".calls" {
		t.Errorf("suffix = %q, want .calls", cfg.Suffix)
	}
	if cfg.Workers != config.Default().Workers {
		t.Errorf("workers = %d, should keep the default", cfg.Workers)
	}
}

// TestInitCreatesFiles verifies that runInit writes the config and .gitignore.
func TestInitCreatesFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	var stdout, stderr bytes.Buffer
	if err := runInit([]string{dir}, &stdout, &stderr); err != nil {
		t.Fatalf("runInit: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, config.DefaultFile)); err != nil {
		t.Errorf("config not created: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	if err != nil {
		t.Fatalf(".gitignore not created: %v", err)
	}
	if !strings.Contains(string(data), "*.fanout") {
		t.Errorf(".gitignore missing report pattern:\n%s", data)
	}
}

// TestInitKeepsExistingConfig verifies that an existing config file is never
// overwritten.
func TestInitKeepsExistingConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, config.DefaultFile)
	if err := os.WriteFile(cfgPath, []byte("workers: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if err := runInit([]string{dir}, &stdout, &stderr); err != nil {
		t.Fatalf("runInit: %v", err)
	}

	data, _ := os.ReadFile(cfgPath)
	if string(data) != "workers: 2\n" {
		t.Errorf("existing config was modified:\n%s", data)
	}
	if !strings.Contains(stderr.String(), "kept existing") {
		t.Errorf("stderr should mention the kept config: %s", stderr.String())
	}
}

// TestInitDryRun verifies that -dry-run prints both files to stdout and does
// not create either.
func TestInitDryRun(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	existing := "build/\n"
	ignorePath := filepath.Join(dir, ".gitignore")
	if err := os.WriteFile(ignorePath, []byte(existing), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if err := runInit([]string{"--dry-run", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("runInit: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, config.DefaultFile)); err == nil {
		t.Error("-dry-run should not create the config")
	}
	data, _ := os.ReadFile(ignorePath)
	if string(data) != existing {
		t.Error("-dry-run must not modify .gitignore")
	}

	out := stdout.String()
	for _, want := range []string{"suffix: \".fanout\"", "build/", sentinelStart, sentinelEnd} {
		if !strings.Contains(out, want) {
			t.Errorf("dry-run output missing %q:\n%s", want, out)
		}
	}
}

// TestInitIdempotent verifies that running init twice produces identical files.
func TestInitIdempotent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ignorePath := filepath.Join(dir, ".gitignore")

	var buf bytes.Buffer
	if err := runInit([]string{dir}, &buf, &buf); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first, _ := os.ReadFile(ignorePath)

	if err := runInit([]string{dir}, &buf, &buf); err != nil {
		t.Fatalf("second run: %v", err)
	}
	second, _ := os.ReadFile(ignorePath)

	if string(first) != string(second) {
		t.Errorf("init is not idempotent:\nfirst:\n%s\nsecond:\n%s", first, second)
	}
}

// TestInitSuffix verifies that -suffix changes the ignored pattern.
func TestInitSuffix(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	var stdout, stderr bytes.Buffer
	if err := runInit([]string{"-suffix", ".calls", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("runInit: %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(dir, ".gitignore"))
	if !strings.Contains(string(data), "*.calls") {
		t.Errorf(".gitignore missing custom pattern:\n%s", data)
	}

	if err := runInit([]string{"-suffix", "", dir}, &stdout, &stderr); err == nil {
		t.Error("expected error for empty suffix")
	}
}
