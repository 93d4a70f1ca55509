// Package lang provides a language registry mapping file extensions to
// tree-sitter grammars.
package lang

import (
	"regexp"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Language holds tree-sitter configuration for a supported language.
type Language struct {
	Name string
	// Extensions are compilation-unit extensions.
	Extensions []string
	// HeaderExtensions are recognized but never analyzed as units.
	HeaderExtensions []string
	// Overloads is true when calls must be matched to declarations by arity.
	Overloads bool
	lang      *sitter.Language
}

// GetLanguage returns the tree-sitter Language pointer.
func (l *Language) GetLanguage() *sitter.Language {
	return l.lang
}

// NewParser creates a fresh tree-sitter parser for this language.
// Each goroutine must use its own parser (not thread-safe).
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.lang)
	return p
}

// Languages maps language names to their configuration.
// Populated by init() functions in per-language files.
var Languages = map[string]*Language{}

type extInfo struct {
	lang   string
	header bool
}

// extensionMap is built lazily after all init() functions have run.
var extensionMap map[string]extInfo
var extensionOnce sync.Once

func getExtensionMap() map[string]extInfo {
	extensionOnce.Do(func() {
		extensionMap = make(map[string]extInfo)
		for _, l := range Languages {
			for _, ext := range l.Extensions {
				extensionMap[ext] = extInfo{lang: l.Name}
			}
		}
		// Headers shared between languages resolve to the first registrant
		// in name order; c wins for ".h".
		for _, name := range []string{"c", "cpp"} {
			l, ok := Languages[name]
			if !ok {
				continue
			}
			for _, ext := range l.HeaderExtensions {
				if _, taken := extensionMap[ext]; !taken {
					extensionMap[ext] = extInfo{lang: l.Name, header: true}
				}
			}
		}
	})
	return extensionMap
}

// ForExtension returns the language name for a file extension, or "" if unsupported.
// Header extensions map to a language too.
func ForExtension(ext string) string {
	return getExtensionMap()[ext].lang
}

// IsHeader reports whether ext is a header extension.
func IsHeader(ext string) bool {
	return getExtensionMap()[ext].header
}

// NodeText returns the source text of a tree-sitter node.
func NodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

// CollapseWhitespace replaces runs of whitespace with a single space and trims.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
