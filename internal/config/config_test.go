package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func mapLookup(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ".fanout", cfg.Suffix)
	assert.GreaterOrEqual(t, cfg.Workers, 1)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "fanout.yaml", `
output_dir: reports
suffix: .calls
include_dirs: [include, third_party/include]
system_include_dirs:
  - /usr/include
language: cpp
workers: 3
header_cache_size: 0
max_include_depth: 10
verbose: true
`)
	cfg := Default()
	require.NoError(t, LoadFile(path, false, &cfg))

	assert.Equal(t, Config{
		OutputDir:         "reports",
		Suffix:            ".calls",
		IncludeDirs:       []string{"include", "third_party/include"},
		SystemIncludeDirs: []string{"/usr/include"},
		Language:          "cpp",
		Workers:           3,
		HeaderCacheSize:   0,
		MaxIncludeDepth:   10,
		Verbose:           true,
	}, cfg)
}

func TestLoadFileKeepsUnsetKeys(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "fanout.yaml", "workers: 2\n")
	cfg := Default()
	require.NoError(t, LoadFile(path, false, &cfg))
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, DefaultSuffix, cfg.Suffix)
}

func TestLoadFileEmpty(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "fanout.yaml", "")
	cfg := Default()
	require.NoError(t, LoadFile(path, false, &cfg))
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileErrors(t *testing.T) {
	t.Parallel()

	cfg := Default()
	err := LoadFile(writeFile(t, "fanout.yaml", "an_error: true\n"), false, &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "an_error")

	err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), false, &cfg)
	assert.ErrorIs(t, err, os.ErrNotExist)

	assert.NoError(t, LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), true, &cfg))
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.IncludeDirs = []string{"from-file"}
	err := ApplyEnv(&cfg, mapLookup(map[string]string{
		"FANOUT_OUTPUT_DIR":     "out",
		"FANOUT_SUFFIX":         " .fo ",
		"FANOUT_INCLUDE":        strings.Join([]string{"a", "b"}, string(os.PathListSeparator)),
		"FANOUT_SYSTEM_INCLUDE": "/opt/sdk/include",
		"FANOUT_LANG":           "c",
		"FANOUT_WORKERS":        "7",
		"FANOUT_VERBOSE":        "true",
		"FANOUT_UNRELATED":      "ignored",
	}))
	require.NoError(t, err)

	assert.Equal(t, "out", cfg.OutputDir)
	assert.Equal(t, ".fo", cfg.Suffix)
	assert.Equal(t, []string{"from-file", "a", "b"}, cfg.IncludeDirs)
	assert.Equal(t, []string{"/opt/sdk/include"}, cfg.SystemIncludeDirs)
	assert.Equal(t, "c", cfg.Language)
	assert.Equal(t, 7, cfg.Workers)
	assert.True(t, cfg.Verbose)
}

func TestApplyEnvErrors(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.ErrorContains(t, ApplyEnv(&cfg, mapLookup(map[string]string{"FANOUT_WORKERS": "many"})), "FANOUT_WORKERS")
	assert.ErrorContains(t, ApplyEnv(&cfg, mapLookup(map[string]string{"FANOUT_VERBOSE": "loud"})), "FANOUT_VERBOSE")

	// Empty values are treated as unset
	before := cfg
	require.NoError(t, ApplyEnv(&cfg, mapLookup(map[string]string{"FANOUT_SUFFIX": "  "})))
	assert.Equal(t, before, cfg)
}

func TestLoadDotenv(t *testing.T) {
	t.Parallel()

	path := writeFile(t, ".env", "# settings\nFANOUT_WORKERS=5\nFANOUT_LANG=\"cpp\"\n")
	vars, err := LoadDotenv(path, false)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"FANOUT_WORKERS": "5", "FANOUT_LANG": "cpp"}, vars)

	vars, err = LoadDotenv(filepath.Join(t.TempDir(), ".env"), true)
	require.NoError(t, err)
	assert.Empty(t, vars)

	_, err = LoadDotenv(filepath.Join(t.TempDir(), ".env"), false)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLookupPrefersProcessEnv(t *testing.T) {
	t.Setenv("FANOUT_TEST_LOOKUP", "process")

	lookup := Lookup(map[string]string{"FANOUT_TEST_LOOKUP": "dotenv", "FANOUT_TEST_ONLY_DOTENV": "dotenv"})
	v, ok := lookup("FANOUT_TEST_LOOKUP")
	assert.True(t, ok)
	assert.Equal(t, "process", v)

	v, ok = lookup("FANOUT_TEST_ONLY_DOTENV")
	assert.True(t, ok)
	assert.Equal(t, "dotenv", v)

	_, ok = lookup("FANOUT_TEST_MISSING")
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty suffix", func(c *Config) { c.Suffix = "" }, "suffix must not be empty"},
		{"separator in suffix", func(c *Config) { c.Suffix = "a" + string(filepath.Separator) + "b" }, "path separator"},
		{"language", func(c *Config) { c.Language = "rust" }, `unsupported language "rust"`},
		{"workers", func(c *Config) { c.Workers = 0 }, "workers must be at least 1"},
		{"cache", func(c *Config) { c.HeaderCacheSize = -1 }, "header cache size"},
		{"depth", func(c *Config) { c.MaxIncludeDepth = 0 }, "max include depth"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
