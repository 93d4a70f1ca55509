package frontend

import (
	"strings"

	"github.com/phobologic/fanout/internal/ast"
)

// scope is the lexical position of a declaration: the qualified namespace
// or class it lives in.
type scope struct {
	prefix string
	class  string // qualified class for this-> lookups
}

func (s scope) qualify(name string) string {
	return qualify(s.prefix, name)
}

func qualify(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "::" + name
}

func (s scope) enter(name string) scope {
	return scope{prefix: s.qualify(name)}
}

func enterClass(qualified string) scope {
	return scope{prefix: qualified, class: qualified}
}

// prefixes lists the lookup prefixes from innermost to the global scope.
func (s scope) prefixes() []string {
	parts := splitQualified(s.prefix)
	out := make([]string, 0, len(parts)+1)
	for i := len(parts); i >= 0; i-- {
		out = append(out, strings.Join(parts[:i], "::"))
	}
	return out
}

// splitQualified splits a qualified name on "::" outside template arguments.
func splitQualified(name string) []string {
	if name == "" {
		return nil
	}
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(name); i++ {
		switch name[i] {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case ':':
			if depth == 0 && i+1 < len(name) && name[i+1] == ':' {
				parts = append(parts, name[start:i])
				start = i + 2
				i++
			}
		}
	}
	return append(parts, name[start:])
}

// qualifierOf returns everything before the last component of name.
func qualifierOf(name string) string {
	parts := splitQualified(name)
	if len(parts) < 2 {
		return ""
	}
	return strings.Join(parts[:len(parts)-1], "::")
}

type entry struct {
	decl    *ast.FuncDecl
	key     string
	virtual bool
}

// symtab is the unit's file-scope symbol table. It never holds locals.
type symtab struct {
	overloads bool
	funcs     map[string][]entry
	vars      map[string]string   // qualified name to type descriptor
	types     map[string][]string // qualified class to its bases
}

func newSymtab(overloads bool) *symtab {
	return &symtab{
		overloads: overloads,
		funcs:     make(map[string][]entry),
		vars:      make(map[string]string),
		types:     make(map[string][]string),
	}
}

// declare records a replayed declaration.
func (t *symtab) declare(d ast.Decl) {
	switch v := d.(type) {
	case *ast.FuncDecl:
		t.declareFunc(v)
	case *ast.VarDecl:
		t.declareVar(v.Name, v.Type)
	case *ast.TypeDecl:
		if v.Name != "" && v.Kind != "enum" && v.Kind != "typedef" {
			t.declareType(v.Name, v.Bases)
		}
	}
}

// declareFunc merges d with earlier redeclarations of the same function.
// The newest declaration wins; virtual-ness is sticky.
func (t *symtab) declareFunc(d *ast.FuncDecl) {
	key := strings.Join(d.Params, ",")
	list := t.funcs[d.Name]
	for i, e := range list {
		if !t.overloads || e.key == key {
			list[i] = entry{decl: d, key: key, virtual: d.Virtual || e.virtual}
			return
		}
	}
	t.funcs[d.Name] = append(list, entry{decl: d, key: key, virtual: d.Virtual})
}

func (t *symtab) declareVar(name, typ string) {
	t.vars[name] = typ
}

// declareType records a class. A forward declaration keeps known bases.
func (t *symtab) declareType(name string, bases []string) {
	if len(bases) == 0 {
		if _, ok := t.types[name]; ok {
			return
		}
	}
	t.types[name] = bases
}

// lookup resolves name against each prefix in turn. The first prefix that
// declares the name decides; a variable there means an indirect call.
// Qualified calls pass allowVirtual since they bypass dynamic dispatch.
func (t *symtab) lookup(name string, prefixes []string, nargs int, allowVirtual bool) *ast.FuncDecl {
	for _, p := range prefixes {
		qn := qualify(p, name)
		if _, ok := t.vars[qn]; ok {
			return nil
		}
		list, ok := t.funcs[qn]
		if !ok {
			continue
		}
		e, ok := t.pick(list, nargs)
		if !ok || (e.virtual && !allowVirtual) {
			return nil
		}
		return e.decl
	}
	return nil
}

// varType finds the variable name would denote from prefixes, following the
// same first-match rule as lookup.
func (t *symtab) varType(name string, prefixes []string) (string, bool) {
	for _, p := range prefixes {
		qn := qualify(p, name)
		if typ, ok := t.vars[qn]; ok {
			return typ, true
		}
		if _, ok := t.funcs[qn]; ok {
			return "", false
		}
	}
	return "", false
}

func (t *symtab) pick(list []entry, nargs int) (entry, bool) {
	if !t.overloads {
		return list[0], true
	}
	var found entry
	n := 0
	for _, e := range list {
		d := e.decl
		if nargs < d.Required {
			continue
		}
		if nargs > len(d.Params) && !d.Variadic {
			continue
		}
		found = e
		n++
	}
	return found, n == 1
}

// chain lists cls followed by its bases, breadth first. Members are looked
// up along it.
func (t *symtab) chain(cls string) []string {
	out := []string{cls}
	seen := map[string]bool{cls: true}
	for i := 0; i < len(out); i++ {
		for _, b := range t.types[out[i]] {
			if !seen[b] {
				seen[b] = true
				out = append(out, b)
			}
		}
	}
	return out
}

// class resolves a type name against prefixes to a known class, or "".
func (t *symtab) class(name string, prefixes []string) string {
	if strings.HasPrefix(name, "::") {
		prefixes, name = []string{""}, name[2:]
	}
	for _, p := range prefixes {
		qn := qualify(p, name)
		if _, ok := t.types[qn]; ok {
			return qn
		}
	}
	return ""
}

// classOf returns the class an expression of type typ has members of:
// the class itself, or the class a pointer or reference refers to.
// Pointers to pointers, arrays and function types yield "".
func (t *symtab) classOf(typ string, prefixes []string) string {
	name := className(typ)
	if name == "" {
		return ""
	}
	return t.class(name, prefixes)
}

// className strips qualifiers, one level of indirection and template
// arguments from a type descriptor.
func className(typ string) string {
	if strings.ContainsAny(typ, "([") {
		return ""
	}
	typ = stripTemplateArgs(typ)
	typ = strings.TrimSuffix(trimQualifiers(typ), "&&")
	typ = strings.TrimSuffix(typ, "&")
	typ = strings.TrimSuffix(trimQualifiers(typ), "*")
	typ = trimQualifiers(typ)
	if strings.ContainsAny(typ, "*&") {
		return ""
	}
	var kept []string
	for _, w := range strings.Fields(typ) {
		switch w {
		case "const", "volatile", "struct", "class", "union", "typename":
			continue
		}
		kept = append(kept, w)
	}
	if len(kept) != 1 {
		return ""
	}
	return kept[0]
}

// trimQualifiers drops trailing cv-qualifiers.
func trimQualifiers(s string) string {
	s = strings.TrimSpace(s)
	for _, q := range []string{"const", "volatile", "const", "volatile"} {
		rest, ok := strings.CutSuffix(s, q)
		if !ok {
			continue
		}
		if rest == "" || strings.HasSuffix(rest, " ") || strings.HasSuffix(rest, "*") {
			s = strings.TrimSpace(rest)
		}
	}
	return s
}

// deref is the type a pointer type points to, or "".
func deref(typ string) string {
	typ = trimQualifiers(typ)
	if !strings.HasSuffix(typ, "*") {
		return ""
	}
	return strings.TrimSpace(strings.TrimSuffix(typ, "*"))
}
