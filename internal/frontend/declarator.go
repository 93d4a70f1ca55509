package frontend

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/fanout/internal/lang"
)

// declaratorTypes are the node kinds that can fill a declarator field.
var declaratorTypes = map[string]bool{
	"identifier":                    true,
	"field_identifier":              true,
	"qualified_identifier":          true,
	"destructor_name":               true,
	"operator_name":                 true,
	"template_function":             true,
	"pointer_declarator":            true,
	"function_declarator":           true,
	"array_declarator":              true,
	"parenthesized_declarator":      true,
	"init_declarator":               true,
	"reference_declarator":          true,
	"attributed_declarator":         true,
	"structured_binding_declarator": true,
}

var recordTypes = map[string]bool{
	"struct_specifier": true,
	"union_specifier":  true,
	"class_specifier":  true,
	"enum_specifier":   true,
}

func sameNode(a, b *sitter.Node) bool {
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

func firstNamed(n *sitter.Node) *sitter.Node {
	if n == nil || n.NamedChildCount() == 0 {
		return nil
	}
	return n.NamedChild(0)
}

// declarators returns the declarator children of a declaration-like node,
// stopping at an initializer so default values are never mistaken for names.
func declarators(n *sitter.Node) []*sitter.Node {
	typ := n.ChildByFieldName("type")
	var out []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if !c.IsNamed() {
			if c.Type() == "=" {
				break
			}
			continue
		}
		if typ != nil && sameNode(c, typ) {
			continue
		}
		if declaratorTypes[c.Type()] {
			out = append(out, c)
		}
	}
	return out
}

// inner steps one level into a declarator.
func inner(n *sitter.Node) *sitter.Node {
	switch n.Type() {
	case "pointer_declarator", "array_declarator", "function_declarator", "init_declarator",
		"abstract_pointer_declarator", "abstract_array_declarator", "abstract_function_declarator":
		return n.ChildByFieldName("declarator")
	case "parenthesized_declarator", "reference_declarator", "attributed_declarator",
		"abstract_parenthesized_declarator", "abstract_reference_declarator", "variadic_declarator":
		return firstNamed(n)
	}
	return nil
}

// functionDeclarator returns the function declarator applied directly to the
// declared name, or nil when the declarator does not declare a function
// (a function pointer, an array of them, a plain variable).
func functionDeclarator(d *sitter.Node) *sitter.Node {
	var fn *sitter.Node
	for n := d; n != nil; {
		switch n.Type() {
		case "function_declarator":
			fn = n
		case "parenthesized_declarator", "init_declarator", "attributed_declarator":
		case "pointer_declarator", "array_declarator", "reference_declarator":
			fn = nil
		default:
			return fn
		}
		n = inner(n)
	}
	return nil
}

// nameNode descends a declarator to the declared name.
func nameNode(d *sitter.Node) *sitter.Node {
	for n := d; n != nil; n = inner(n) {
		if declaratorTypes[n.Type()] && inner(n) == nil {
			return n
		}
	}
	return nil
}

// declaredName is the normalized name a declarator introduces, or "".
func declaredName(d *sitter.Node, src []byte) string {
	n := nameNode(d)
	if n == nil {
		return ""
	}
	return normalizeName(lang.NodeText(n, src))
}

// normalizeName collapses whitespace and the spacing around "::". A symbolic
// operator name is written without a space, e.g. "operator+".
func normalizeName(s string) string {
	s = lang.CollapseWhitespace(s)
	s = strings.ReplaceAll(s, " ::", "::")
	s = strings.ReplaceAll(s, ":: ", "::")
	if i := strings.Index(s, "operator "); i >= 0 {
		rest := s[i+len("operator "):]
		if rest != "" && !isIdentByte(rest[0]) {
			s = s[:i] + "operator" + rest
		}
	}
	return s
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// stripTemplateArgs drops template argument lists from a callee name.
func stripTemplateArgs(s string) string {
	if !strings.Contains(s, "<") || strings.Contains(s, "operator") {
		return s
	}
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '<':
			depth++
		case r == '>' && depth > 0:
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// baseType renders the qualifiers and type specifier of a declaration-like
// node, e.g. "const char". Storage classes and function specifiers are dropped.
func baseType(spec *sitter.Node, src []byte) string {
	var parts []string
	for i := 0; i < int(spec.NamedChildCount()); i++ {
		c := spec.NamedChild(i)
		if c.Type() == "type_qualifier" {
			parts = append(parts, lang.NodeText(c, src))
		}
	}
	if t := spec.ChildByFieldName("type"); t != nil {
		parts = append(parts, specifierText(t, src))
	}
	return strings.Join(parts, " ")
}

// specifierText renders a type specifier. An inline record definition is
// reduced to its keyword and tag.
func specifierText(t *sitter.Node, src []byte) string {
	if recordTypes[t.Type()] && t.ChildByFieldName("body") != nil {
		kw := strings.TrimSuffix(t.Type(), "_specifier")
		if name := t.ChildByFieldName("name"); name != nil {
			return kw + " " + normalizeName(lang.NodeText(name, src))
		}
		return kw + " (anonymous)"
	}
	return normalizeName(lang.NodeText(t, src))
}

// abstractDeclarator renders the type derivations of a declarator with the
// name removed, e.g. "*", "[10]", "(*)(int)". Rendering stops at stop, which
// stands in for the name.
func abstractDeclarator(n, stop *sitter.Node, src []byte) string {
	if n == nil || (stop != nil && sameNode(n, stop)) {
		return ""
	}
	switch n.Type() {
	case "pointer_declarator", "abstract_pointer_declarator":
		s := "*" + qualifiers(n, src)
		rest := abstractDeclarator(n.ChildByFieldName("declarator"), stop, src)
		if s != "*" && rest != "" {
			s += " "
		}
		return s + rest
	case "reference_declarator", "abstract_reference_declarator":
		op := "&"
		if n.ChildCount() > 0 && n.Child(0).Type() == "&&" {
			op = "&&"
		}
		return op + abstractDeclarator(firstNamed(n), stop, src)
	case "array_declarator", "abstract_array_declarator":
		size := ""
		if s := n.ChildByFieldName("size"); s != nil {
			size = lang.CollapseWhitespace(lang.NodeText(s, src))
		}
		return abstractDeclarator(n.ChildByFieldName("declarator"), stop, src) + "[" + size + "]"
	case "function_declarator", "abstract_function_declarator":
		params, variadic, _ := paramTypes(n.ChildByFieldName("parameters"), src)
		if variadic {
			params = append(params, "...")
		}
		return abstractDeclarator(n.ChildByFieldName("declarator"), stop, src) + "(" + strings.Join(params, ", ") + ")"
	case "parenthesized_declarator", "abstract_parenthesized_declarator":
		rest := abstractDeclarator(firstNamed(n), stop, src)
		if rest == "" {
			return ""
		}
		return "(" + rest + ")"
	case "init_declarator":
		return abstractDeclarator(n.ChildByFieldName("declarator"), stop, src)
	case "attributed_declarator":
		return abstractDeclarator(firstNamed(n), stop, src)
	}
	return ""
}

func qualifiers(n *sitter.Node, src []byte) string {
	var qs []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "type_qualifier" {
			qs = append(qs, lang.NodeText(c, src))
		}
	}
	return strings.Join(qs, " ")
}

func joinType(base, derived string) string {
	switch {
	case derived == "":
		return base
	case base == "":
		return derived
	}
	return base + " " + derived
}

// declType is the type descriptor of the entity declared by d in spec.
func declType(spec, d *sitter.Node, src []byte) string {
	return joinType(baseType(spec, src), abstractDeclarator(d, nil, src))
}

// returnType renders the return type of the function declared by fn within d.
// Constructors and destructors have none and report "void".
func returnType(spec, d, fn *sitter.Node, src []byte) string {
	for i := 0; i < int(fn.NamedChildCount()); i++ {
		c := fn.NamedChild(i)
		if c.Type() == "trailing_return_type" {
			return strings.TrimSpace(strings.TrimPrefix(lang.CollapseWhitespace(lang.NodeText(c, src)), "->"))
		}
	}
	rt := joinType(baseType(spec, src), abstractDeclarator(d, fn, src))
	if rt == "" {
		return "void"
	}
	return rt
}

// paramTypes renders a parameter list. "(void)" has no parameters and
// "..." is reported through variadic rather than as a parameter.
func paramTypes(list *sitter.Node, src []byte) (types []string, variadic bool, required int) {
	if list == nil {
		return nil, false, 0
	}
	for i := 0; i < int(list.ChildCount()); i++ {
		c := list.Child(i)
		switch c.Type() {
		case "parameter_declaration":
			types = append(types, declType(c, c.ChildByFieldName("declarator"), src))
			required++
		case "optional_parameter_declaration":
			types = append(types, declType(c, c.ChildByFieldName("declarator"), src))
		case "variadic_parameter_declaration":
			types = append(types, baseType(c, src)+"...")
			variadic = true
		case "variadic_parameter", "...":
			variadic = true
		}
	}
	if len(types) == 1 && types[0] == "void" && !variadic {
		return nil, false, 0
	}
	return types, variadic, required
}

type param struct {
	name, typ string
}

// paramList lists the names a parameter list binds with their types.
func paramList(list *sitter.Node, src []byte) []param {
	if list == nil {
		return nil
	}
	var out []param
	for i := 0; i < int(list.NamedChildCount()); i++ {
		c := list.NamedChild(i)
		switch c.Type() {
		case "parameter_declaration", "optional_parameter_declaration", "variadic_parameter_declaration":
			d := c.ChildByFieldName("declarator")
			if name := declaredName(d, src); name != "" {
				out = append(out, param{name: name, typ: declType(c, d, src)})
			}
		}
	}
	return out
}

// isVirtual reports a virtual specifier on the declaration or an
// override/final specifier on its function declarator.
func isVirtual(spec, fn *sitter.Node) bool {
	for i := 0; i < int(spec.ChildCount()); i++ {
		switch spec.Child(i).Type() {
		case "virtual", "virtual_function_specifier":
			return true
		}
	}
	for i := 0; i < int(fn.ChildCount()); i++ {
		if fn.Child(i).Type() == "virtual_specifier" {
			return true
		}
	}
	return false
}
