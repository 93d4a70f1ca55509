package lang

import (
	"github.com/smacker/go-tree-sitter/cpp"
)

func init() {
	Languages["cpp"] = &Language{
		Name:             "cpp",
		Extensions:       []string{".cc", ".cpp", ".cxx", ".c++"},
		HeaderExtensions: []string{".h", ".hh", ".hpp", ".hxx", ".h++"},
		Overloads:        true,
		lang:             cpp.GetLanguage(),
	}
}
