// fanout writes a function fanout report for each C or C++ compilation unit:
// every function the unit defines, with the functions it calls directly.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"github.com/phobologic/fanout/internal/config"
	"github.com/phobologic/fanout/internal/diag"
	"github.com/phobologic/fanout/internal/discover"
	"github.com/phobologic/fanout/internal/frontend"
	"github.com/phobologic/fanout/internal/unit"
)

var version = "dev"

// errUnitsFailed is returned after per-unit errors have been reported.
var errUnitsFailed = errors.New("one or more units failed")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, diag.ErrAborted) && !errors.Is(err, errUnitsFailed) {
			fmt.Fprintf(os.Stderr, "fanout: error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		switch args[0] {
		case "summary":
			return runSummary(args[1:], stdout, stderr)
		case "init":
			return runInit(args[1:], stdout, stderr)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return analyze(ctx, args, stdout, stderr)
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, string(os.PathListSeparator)) }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

type cliFlags struct {
	outputDir   string
	suffix      string
	include     stringList
	sysInclude  stringList
	language    string
	workers     int
	configPath  string
	envPath     string
	verbose     bool
	help        bool
	showVersion bool
}

func newFlagSet(f *cliFlags) *flag.FlagSet {
	fs := flag.NewFlagSet("fanout", flag.ContinueOnError)

	fs.StringVar(&f.outputDir, "o", "", "write reports under this directory")
	fs.StringVar(&f.outputDir, "output-dir", "", "write reports under this directory")
	fs.StringVar(&f.suffix, "suffix", config.DefaultSuffix, "report file suffix")
	fs.Var(&f.include, "I", "add a user include directory (repeatable)")
	fs.Var(&f.sysInclude, "isystem", "add a system include directory (repeatable)")
	fs.StringVar(&f.language, "x", "", "parse every unit as this language (c, cpp)")
	fs.StringVar(&f.language, "lang", "", "parse every unit as this language (c, cpp)")
	fs.IntVar(&f.workers, "j", 0, "number of units analyzed in parallel")
	fs.IntVar(&f.workers, "workers", 0, "number of units analyzed in parallel")
	fs.StringVar(&f.configPath, "config", "", "YAML config file (default "+config.DefaultFile+" when present)")
	fs.StringVar(&f.envPath, "env", "", "dotenv file (default "+config.DefaultEnvFile+" when present)")
	fs.BoolVar(&f.verbose, "v", false, "log debug detail to stderr")
	fs.BoolVar(&f.verbose, "verbose", false, "log debug detail to stderr")
	fs.BoolVar(&f.help, "h", false, "print usage and continue")
	fs.BoolVar(&f.help, "help", false, "print usage and continue")
	fs.BoolVar(&f.showVersion, "V", false, "show version and exit")
	fs.BoolVar(&f.showVersion, "version", false, "show version and exit")
	return fs
}

func printUsage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintf(w, `Usage: fanout [flags] <file|dir>...
       fanout summary [flags] [report|dir]...
       fanout init [flags] [path]

Write <unit>%s next to each C or C++ compilation unit, listing every
function the unit defines and the functions it calls directly. Directories
are searched for units, honoring .gitignore.

Flags:
`, config.DefaultSuffix)
	fs.SetOutput(w)
	fs.PrintDefaults()
	fs.SetOutput(io.Discard)
}

func analyze(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	diags := diag.New(stderr, "fanout")

	var f cliFlags
	fs := newFlagSet(&f)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(reorderArgs(args)); err != nil {
		diags.Errorf("%v", err)
		diags.Notef("use -help for usage")
		diags.Finish()
		return diag.ErrAborted
	}

	if f.showVersion {
		_, _ = fmt.Fprintf(stdout, "fanout %s\n", version)
		return nil
	}
	if f.help {
		printUsage(fs, stderr)
	}

	cfg, err := loadConfig(fs, &f)
	if err != nil {
		diags.Errorf("%v", err)
		diags.Finish()
		return diag.ErrAborted
	}

	if fs.NArg() == 0 {
		if f.help {
			return nil
		}
		diags.Errorf("no input files")
		diags.Finish()
		return diag.ErrAborted
	}

	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	units := collectUnits(fs.Args(), diags)

	fe := frontend.New(frontend.Options{
		IncludeDirs:       cfg.IncludeDirs,
		SystemIncludeDirs: cfg.SystemIncludeDirs,
		Language:          cfg.Language,
		MaxIncludeDepth:   cfg.MaxIncludeDepth,
		Logger:            logger,
		Cache:             frontend.NewHeaderCache(cfg.HeaderCacheSize),
	})
	opts := unit.Options{OutputDir: cfg.OutputDir, Suffix: cfg.Suffix, Logger: logger}
	analyzeConcurrent(ctx, fe, units, opts, cfg.Workers, diags, logger)

	diags.Finish()
	if diags.ErrorCount() > 0 {
		return errUnitsFailed
	}
	return nil
}

// loadConfig layers defaults, the config file, the environment and finally
// the flags that were set explicitly.
func loadConfig(fs *flag.FlagSet, f *cliFlags) (config.Config, error) {
	cfg := config.Default()

	path, optional := f.configPath, false
	if path == "" {
		path, optional = config.DefaultFile, true
	}
	if err := config.LoadFile(path, optional, &cfg); err != nil {
		return cfg, err
	}

	envPath, envOptional := f.envPath, false
	if envPath == "" {
		envPath, envOptional = config.DefaultEnvFile, true
	}
	dotenv, err := config.LoadDotenv(envPath, envOptional)
	if err != nil {
		return cfg, err
	}
	if err := config.ApplyEnv(&cfg, config.Lookup(dotenv)); err != nil {
		return cfg, err
	}

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "o", "output-dir":
			cfg.OutputDir = f.outputDir
		case "suffix":
			cfg.Suffix = f.suffix
		case "x", "lang":
			cfg.Language = f.language
		case "j", "workers":
			cfg.Workers = f.workers
		case "v", "verbose":
			cfg.Verbose = f.verbose
		}
	})
	// command-line directories are searched first
	cfg.IncludeDirs = append([]string(f.include), cfg.IncludeDirs...)
	cfg.SystemIncludeDirs = append([]string(f.sysInclude), cfg.SystemIncludeDirs...)

	return cfg, cfg.Validate()
}

// collectUnits expands directories into their units. Missing inputs are
// reported and skipped.
func collectUnits(inputs []string, diags *diag.Engine) []string {
	var units []string
	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			diags.Errorf("no such file or directory: '%s'", in)
			continue
		}
		if !info.IsDir() {
			units = append(units, in)
			continue
		}
		entries, err := discover.Units(in, nil)
		if err != nil {
			diags.Errorf("discovering units in %s: %v", in, err)
			continue
		}
		if len(entries) == 0 {
			diags.Warnf("%s: no compilation units found", in)
		}
		for _, e := range entries {
			units = append(units, filepath.Join(in, e.Path))
		}
	}
	return units
}

func analyzeConcurrent(
	ctx context.Context,
	fe *frontend.Frontend,
	units []string,
	opts unit.Options,
	workers int,
	diags *diag.Engine,
	logger *slog.Logger,
) {
	if workers > len(units) {
		workers = len(units)
	}

	work := make(chan string, len(units))
	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Each unit gets its own parser inside ParseUnit
			for path := range work {
				if ctx.Err() != nil {
					return
				}
				res, err := unit.Analyze(ctx, fe, path, opts)
				if err != nil {
					diags.Errorf("%s: %v", path, err)
					continue
				}
				logger.Debug("unit analyzed",
					slog.String("unit", path),
					slog.String("report", res.Target),
					slog.Int("definitions", res.Fanout.Definitions),
					slog.Int("callees", res.Fanout.Callees),
					slog.Int("indirect", res.Fanout.Indirect),
					slog.Int("headers", res.Frontend.Headers),
					slog.Int("cached_headers", res.Frontend.CachedHeaders),
					slog.Int("missing_headers", res.Frontend.MissingHeaders))
			}
		}()
	}

	for _, u := range units {
		work <- u
	}
	close(work)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		diags.Errorf("interrupted: %v", err)
	}
}

// flagsWithValue lists flags that take a value argument.
var flagsWithValue = map[string]bool{
	"-o": true, "--o": true,
	"-output-dir": true, "--output-dir": true,
	"-suffix": true, "--suffix": true,
	"-I": true, "--I": true,
	"-isystem": true, "--isystem": true,
	"-x": true, "--x": true,
	"-lang": true, "--lang": true,
	"-j": true, "--j": true,
	"-workers": true, "--workers": true,
	"-config": true, "--config": true,
	"-env": true, "--env": true,
	"-n": true, "--n": true,
	"-max-functions": true, "--max-functions": true,
	"-s": true, "--s": true,
	"-symbol": true, "--symbol": true,
	"-unit": true, "--unit": true,
}

// reorderArgs moves positional arguments after all flags so Go's flag package
// can parse them correctly (it stops at the first non-flag arg). Compiler
// style joined include flags (-Idir) are split.
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--" {
			// keep the terminator so positionals after it stay positional
			return append(append(flags, "--"), append(positional, args[i+1:]...)...)
		}
		if len(args[i]) > 2 && strings.HasPrefix(args[i], "-I") {
			flags = append(flags, "-I", args[i][2:])
			continue
		}
		if len(args[i]) > 1 && args[i][0] == '-' {
			flags = append(flags, args[i])
			if flagsWithValue[args[i]] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	return append(flags, positional...)
}
