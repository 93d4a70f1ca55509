// Package discover finds compilation units and fanout reports in a tree.
package discover

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/fanout/internal/lang"
)

// FileEntry represents a discovered compilation unit.
type FileEntry struct {
	Path     string // Relative to root
	Language string
}

var skipDirs = map[string]struct{}{
	"node_modules": {},
	".git":         {},
	".hg":          {},
	".svn":         {},
	"build":        {},
	"dist":         {},
	"out":          {},
	"CMakeFiles":   {},
	".cache":       {},
}

// Units discovers compilation units under root. Headers are never units.
// If languages is non-empty, only files matching one of the listed languages are returned.
func Units(root string, languages []string) ([]FileEntry, error) {
	langSet := make(map[string]struct{}, len(languages))
	for _, l := range languages {
		langSet[l] = struct{}{}
	}
	gitFiles := gitLsFiles(root)
	var gi *ignore.GitIgnore
	if gitFiles == nil {
		gi = loadGitignore(root)
	}

	var results []FileEntry
	err := walk(root, true, func(rel, name string) {
		if gitFiles != nil {
			if _, ok := gitFiles[rel]; !ok {
				return
			}
		} else if gi != nil && gi.MatchesPath(rel) {
			return
		}

		ext := strings.ToLower(filepath.Ext(name))
		if lang.IsHeader(ext) {
			return
		}
		langName := lang.ForExtension(ext)
		if langName == "" {
			return
		}
		if len(langSet) > 0 {
			if _, ok := langSet[langName]; !ok {
				return
			}
		}
		results = append(results, FileEntry{Path: rel, Language: langName})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})
	return results, nil
}

// Reports finds fanout documents under root by suffix. Reports are build
// output, so ignore rules and build directories do not apply.
func Reports(root, suffix string) ([]string, error) {
	var results []string
	err := walk(root, false, func(rel, name string) {
		if strings.HasSuffix(name, suffix) && name != suffix {
			results = append(results, rel)
		}
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(results)
	return results, nil
}

// walk visits regular, non-hidden files below root. Hidden and VCS
// directories are always skipped; build directories only when skipBuild is set.
func walk(root string, skipBuild bool, visit func(rel, name string)) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip errors
		}

		name := d.Name()

		if d.IsDir() {
			if path == root {
				return nil
			}
			if strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if _, skip := skipDirs[name]; skip && skipBuild {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}

		// Skip symlinks
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		visit(rel, name)
		return nil
	})
}

var testDirs = map[string]struct{}{
	"test":      {},
	"tests":     {},
	"testing":   {},
	"unittest":  {},
	"unittests": {},
	"testsuite": {},
}

// IsTestFile reports whether a unit path looks like test code, by directory
// component or by file name convention (foo_test.cc, foo_unittest.cpp,
// test_foo.c).
func IsTestFile(path string) bool {
	path = filepath.ToSlash(path)
	parts := strings.Split(path, "/")
	for _, dir := range parts[:len(parts)-1] {
		if _, ok := testDirs[strings.ToLower(dir)]; ok {
			return true
		}
	}
	name := parts[len(parts)-1]
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	// reports carry the unit's own extension before the suffix
	if ext := filepath.Ext(stem); ext != "" && lang.ForExtension(ext) != "" {
		stem = strings.TrimSuffix(stem, ext)
	}
	switch {
	case strings.HasSuffix(stem, "_test"), strings.HasSuffix(stem, "_tests"),
		strings.HasSuffix(stem, "_unittest"), strings.HasSuffix(stem, "Test"):
		return true
	case strings.HasPrefix(stem, "test_"):
		return true
	}
	return false
}

func gitLsFiles(root string) map[string]struct{} {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[filepath.FromSlash(line)] = struct{}{}
		}
	}
	return files
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
