// Package config resolves fanout settings from defaults, a YAML file, a
// dotenv file and the process environment. Command-line flags are applied
// last by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/fanout/internal/lang"
)

const (
	// DefaultFile is read when present and no file is named explicitly.
	DefaultFile = ".fanout.yaml"
	// DefaultEnvFile is read when present and no dotenv file is named explicitly.
	DefaultEnvFile = ".env"
	// DefaultSuffix is appended to a unit's path to name its report.
	DefaultSuffix = ".fanout"

	envPrefix = "FANOUT_"
)

// Config holds every setting of an analysis run.
type Config struct {
	OutputDir         string   `yaml:"output_dir"`
	Suffix            string   `yaml:"suffix"`
	IncludeDirs       []string `yaml:"include_dirs"`
	SystemIncludeDirs []string `yaml:"system_include_dirs"`
	Language          string   `yaml:"language"`
	Workers           int      `yaml:"workers"`
	HeaderCacheSize   int      `yaml:"header_cache_size"`
	MaxIncludeDepth   int      `yaml:"max_include_depth"`
	Verbose           bool     `yaml:"verbose"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Suffix:          DefaultSuffix,
		Workers:         runtime.GOMAXPROCS(0),
		HeaderCacheSize: 256,
		MaxIncludeDepth: 64,
	}
}

// LoadFile overlays the YAML file at path onto cfg. Unknown keys are errors.
// When optional is set a missing file is not an error.
func LoadFile(path string, optional bool, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// LoadDotenv reads a dotenv file. When optional is set a missing file
// yields an empty map.
func LoadDotenv(path string, optional bool) (map[string]string, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading env file: %w", err)
	}
	return vars, nil
}

// Lookup returns an environment lookup in which the process environment
// takes precedence over dotenv values.
func Lookup(dotenv map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
}

// ApplyEnv overlays FANOUT_* variables onto cfg.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(envPrefix + name)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}

	if v, ok := get("OUTPUT_DIR"); ok {
		cfg.OutputDir = v
	}
	if v, ok := get("SUFFIX"); ok {
		cfg.Suffix = v
	}
	if v, ok := get("INCLUDE"); ok {
		cfg.IncludeDirs = append(cfg.IncludeDirs, filepath.SplitList(v)...)
	}
	if v, ok := get("SYSTEM_INCLUDE"); ok {
		cfg.SystemIncludeDirs = append(cfg.SystemIncludeDirs, filepath.SplitList(v)...)
	}
	if v, ok := get("LANG"); ok {
		cfg.Language = v
	}
	if v, ok := get("WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sWORKERS: %w", envPrefix, err)
		}
		cfg.Workers = n
	}
	if v, ok := get("VERBOSE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sVERBOSE: %w", envPrefix, err)
		}
		cfg.Verbose = b
	}
	return nil
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if c.Suffix == "" {
		return errors.New("suffix must not be empty")
	}
	if strings.ContainsRune(c.Suffix, filepath.Separator) {
		return fmt.Errorf("suffix %q must not contain a path separator", c.Suffix)
	}
	if c.Language != "" {
		if _, ok := lang.Languages[c.Language]; !ok {
			return fmt.Errorf("unsupported language %q", c.Language)
		}
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.HeaderCacheSize < 0 {
		return fmt.Errorf("header cache size must not be negative, got %d", c.HeaderCacheSize)
	}
	if c.MaxIncludeDepth < 1 {
		return fmt.Errorf("max include depth must be at least 1, got %d", c.MaxIncludeDepth)
	}
	return nil
}
