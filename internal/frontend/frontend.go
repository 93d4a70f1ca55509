// Package frontend parses C and C++ compilation units with tree-sitter and
// lowers them into ast batches for a Consumer.
//
// The frontend plays the role of a compiler host: it follows #include
// directives, keeps a file-scope symbol table, and resolves every call whose
// target can be named statically. Everything else is left unresolved.
package frontend

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/fanout/internal/ast"
	"github.com/phobologic/fanout/internal/lang"
)

// DefaultMaxIncludeDepth bounds #include nesting when Options leaves it unset.
const DefaultMaxIncludeDepth = 64

// Consumer receives the declarations of one unit in source order.
type Consumer interface {
	HandleBatch(batch ast.Batch) error
}

// Options configures a Frontend.
type Options struct {
	IncludeDirs       []string
	SystemIncludeDirs []string
	// Language forces "c" or "cpp"; empty selects by file extension.
	Language        string
	MaxIncludeDepth int
	Logger          *slog.Logger
	// Cache is shared between units. Nil disables header caching.
	Cache *HeaderCache
}

// Stats counts the files a unit pulled in.
type Stats struct {
	Headers        int // headers parsed or replayed
	CachedHeaders  int // headers replayed from the cache
	MissingHeaders int // includes that could not be resolved
}

// Frontend is safe for concurrent use; each ParseUnit call owns its parser.
type Frontend struct {
	opts Options
	log  *slog.Logger
}

// New returns a Frontend for opts.
func New(opts Options) *Frontend {
	if opts.MaxIncludeDepth <= 0 {
		opts.MaxIncludeDepth = DefaultMaxIncludeDepth
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Frontend{opts: opts, log: logger}
}

// LanguageFor returns the language a unit at path is parsed as.
func (fe *Frontend) LanguageFor(path string) (*lang.Language, error) {
	name := fe.opts.Language
	if name == "" {
		ext := strings.ToLower(filepath.Ext(path))
		name = lang.ForExtension(ext)
		if name == "" {
			return nil, fmt.Errorf("%s: unsupported file extension %q", path, ext)
		}
	}
	l, ok := lang.Languages[name]
	if !ok {
		return nil, fmt.Errorf("unknown language %q", name)
	}
	return l, nil
}

// ParseUnit parses the unit at path and delivers its declarations to c,
// one batch per top-level declaration group. Declarations from included
// headers are delivered where the #include appears.
func (fe *Frontend) ParseUnit(ctx context.Context, path string, c Consumer) (Stats, error) {
	l, err := fe.LanguageFor(path)
	if err != nil {
		return Stats{}, err
	}
	parser := l.NewParser()
	defer parser.Close()

	u := &unitParser{
		fe:       fe,
		ctx:      ctx,
		lang:     l,
		parser:   parser,
		consumer: c,
		table:    newSymtab(l.Overloads),
		seen:     make(map[string]bool),
	}
	if abs, err := filepath.Abs(path); err == nil {
		u.seen[abs] = true
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return u.stats, fmt.Errorf("reading %s: %w", path, err)
	}
	err = u.parse(path, src, ast.Local, 0, nil)
	return u.stats, err
}

type unitParser struct {
	fe       *Frontend
	ctx      context.Context
	lang     *lang.Language
	parser   *sitter.Parser
	consumer Consumer
	table    *symtab
	seen     map[string]bool
	stats    Stats
}

// parse walks one file. When rec is non-nil everything delivered is also
// recorded for the header cache.
func (u *unitParser) parse(path string, src []byte, prov ast.Provenance, depth int, rec *header) error {
	tree, err := u.parser.ParseCtx(u.ctx, nil, src)
	if err != nil {
		if ctxErr := u.ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	defer tree.Close()

	f := &fileParser{
		u:           u,
		path:        path,
		dir:         filepath.Dir(path),
		src:         src,
		prov:        prov,
		depth:       depth,
		bodies:      prov == ast.Local,
		predeclared: make(map[uint32]*ast.FuncDecl),
	}
	f.emit = func(b ast.Batch) error {
		if rec != nil {
			rec.items = append(rec.items, headerItem{batch: b})
		}
		return u.consumer.HandleBatch(b)
	}
	f.include = func(name string, angled bool) error {
		if rec != nil {
			rec.items = append(rec.items, headerItem{include: name, angled: angled})
		}
		return u.include(f.dir, f.prov, f.depth, name, angled)
	}
	if f.bodies {
		f.prescan(tree.RootNode(), scope{})
	}
	return f.items(tree.RootNode(), scope{})
}

// fileParser walks the top level of one parsed file.
type fileParser struct {
	u      *unitParser
	path   string
	dir    string
	src    []byte
	prov   ast.Provenance
	depth  int
	bodies bool // false for system headers, whose bodies are never reported

	emit    func(ast.Batch) error
	include func(name string, angled bool) error

	// functions declared ahead of their definitions, by declarator offset
	predeclared map[uint32]*ast.FuncDecl
}

func (f *fileParser) pos(n *sitter.Node) ast.Position {
	p := n.StartPoint()
	return ast.Position{File: f.path, Line: int(p.Row) + 1, Column: int(p.Column) + 1}
}

func (f *fileParser) items(n *sitter.Node, sc scope) error {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if err := f.u.ctx.Err(); err != nil {
			return err
		}
		if err := f.item(n.NamedChild(i), sc); err != nil {
			return err
		}
	}
	return nil
}

func (f *fileParser) item(n *sitter.Node, sc scope) error {
	switch n.Type() {
	case "preproc_include":
		return f.includeDirective(n)
	case "preproc_if", "preproc_ifdef", "preproc_else", "preproc_elif", "preproc_elifdef":
		return f.items(n, sc)
	case "linkage_specification":
		body := n.ChildByFieldName("body")
		if body == nil {
			return nil
		}
		if body.Type() == "declaration_list" {
			return f.items(body, sc)
		}
		return f.item(body, sc)
	case "namespace_definition":
		body := n.ChildByFieldName("body")
		if body == nil {
			return nil
		}
		name := "(anonymous namespace)"
		if nn := n.ChildByFieldName("name"); nn != nil {
			name = normalizeName(lang.NodeText(nn, f.src))
		}
		return f.items(body, sc.enter(name))
	case "template_declaration", "friend_declaration":
		inner := sc
		if n.Type() == "friend_declaration" {
			inner = f.namespace(sc)
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if c.Type() == "template_parameter_list" {
				continue
			}
			if err := f.item(c, inner); err != nil {
				return err
			}
		}
		return nil
	case "function_definition":
		return f.definition(n, sc)
	case "declaration", "field_declaration":
		return f.declaration(n, sc)
	case "type_definition":
		return f.typedef(n, sc)
	case "struct_specifier", "union_specifier", "class_specifier", "enum_specifier":
		return f.record(n, sc)
	}
	return nil
}

func (f *fileParser) includeDirective(n *sitter.Node) error {
	p := n.ChildByFieldName("path")
	if p == nil {
		return nil
	}
	text := lang.NodeText(p, f.src)
	switch p.Type() {
	case "system_lib_string":
		return f.include(strings.Trim(text, "<>"), true)
	case "string_literal":
		return f.include(strings.Trim(text, `"`), false)
	}
	// computed includes (#include MACRO) cannot be followed
	return nil
}

// prescan declares every function of the file before any body is lowered,
// so a call may name a function defined further down without a prototype.
func (f *fileParser) prescan(n *sitter.Node, sc scope) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "preproc_if", "preproc_ifdef", "preproc_else", "preproc_elif", "preproc_elifdef",
			"template_declaration":
			f.prescan(c, sc)
		case "linkage_specification":
			if body := c.ChildByFieldName("body"); body != nil && body.Type() == "declaration_list" {
				f.prescan(body, sc)
			} else if body != nil {
				f.prescanFunc(body, sc)
			}
		case "namespace_definition":
			body := c.ChildByFieldName("body")
			if body == nil {
				continue
			}
			name := "(anonymous namespace)"
			if nn := c.ChildByFieldName("name"); nn != nil {
				name = normalizeName(lang.NodeText(nn, f.src))
			}
			f.prescan(body, sc.enter(name))
		default:
			f.prescanFunc(c, sc)
		}
	}
}

func (f *fileParser) prescanFunc(n *sitter.Node, sc scope) {
	switch n.Type() {
	case "function_definition":
		d := n.ChildByFieldName("declarator")
		if fn := functionDeclarator(d); fn != nil {
			f.predeclareFunc(n, d, fn, sc)
		}
	case "declaration":
		for _, d := range declarators(n) {
			if fn := functionDeclarator(d); fn != nil {
				f.predeclareFunc(n, d, fn, sc)
			}
		}
	}
}

// namespace is the innermost non-class scope around sc.
func (f *fileParser) namespace(sc scope) scope {
	if sc.class == "" {
		return sc
	}
	return scope{prefix: qualifierOf(sc.class)}
}

// newFunc builds the declaration for function declarator fn within d,
// declared by spec in scope sc. It returns nil for nameless declarators.
func (f *fileParser) newFunc(spec, d, fn *sitter.Node, sc scope) *ast.FuncDecl {
	name := declaredName(fn.ChildByFieldName("declarator"), f.src)
	if name == "" {
		return nil
	}
	if strings.HasPrefix(name, "::") {
		name = name[2:]
	} else {
		name = sc.qualify(name)
	}
	params, variadic, required := paramTypes(fn.ChildByFieldName("parameters"), f.src)
	fd := &ast.FuncDecl{
		Position:   f.pos(spec),
		Provenance: f.prov,
		Variadic:   variadic,
		Required:   required,
		Virtual:    isVirtual(spec, fn),
	}
	fd.Name = name
	fd.ReturnType = returnType(spec, d, fn, f.src)
	fd.Params = params
	return fd
}

// funcFor returns the predeclared member for d, or a new declaration.
func (f *fileParser) funcFor(spec, d, fn *sitter.Node, sc scope) *ast.FuncDecl {
	if fd, ok := f.predeclared[d.StartByte()]; ok {
		return fd
	}
	return f.newFunc(spec, d, fn, sc)
}

func (f *fileParser) definition(n *sitter.Node, sc scope) error {
	d := n.ChildByFieldName("declarator")
	fn := functionDeclarator(d)
	if fn == nil {
		return nil
	}
	fd := f.funcFor(n, d, fn, sc)
	if fd == nil {
		return nil
	}
	f.u.table.declareFunc(fd)

	body := n.ChildByFieldName("body")
	if body == nil {
		// = default, = delete
		return f.emit(ast.Batch{fd})
	}
	if !f.bodies {
		fd.Body = &ast.Block{}
		return f.emit(ast.Batch{fd})
	}

	qual := qualifierOf(fd.Name)
	bodyScope := scope{prefix: qual}
	if sc.class != "" || qual != sc.prefix {
		bodyScope.class = qual
	}
	fd.Body = f.lowerBody(body, fn.ChildByFieldName("parameters"), bodyScope)
	return f.emit(ast.Batch{fd})
}

func (f *fileParser) declaration(n *sitter.Node, sc scope) error {
	if t := n.ChildByFieldName("type"); t != nil && recordTypes[t.Type()] && t.ChildByFieldName("body") != nil {
		if err := f.record(t, sc); err != nil {
			return err
		}
	}
	var batch ast.Batch
	for _, d := range declarators(n) {
		if fn := functionDeclarator(d); fn != nil {
			fd := f.funcFor(n, d, fn, sc)
			if fd == nil {
				continue
			}
			f.u.table.declareFunc(fd)
			batch = append(batch, fd)
			continue
		}
		name := declaredName(d, f.src)
		if name == "" {
			continue
		}
		vd := &ast.VarDecl{
			Name:       sc.qualify(name),
			Type:       declType(n, d, f.src),
			Position:   f.pos(d),
			Provenance: f.prov,
		}
		f.u.table.declareVar(vd.Name, vd.Type)
		batch = append(batch, vd)
	}
	if len(batch) == 0 {
		return nil
	}
	return f.emit(batch)
}

func (f *fileParser) typedef(n *sitter.Node, sc scope) error {
	if t := n.ChildByFieldName("type"); t != nil && recordTypes[t.Type()] && t.ChildByFieldName("body") != nil {
		if err := f.record(t, sc); err != nil {
			return err
		}
	}
	var batch ast.Batch
	for _, d := range declarators(n) {
		if name := declaredName(d, f.src); name != "" {
			batch = append(batch, &ast.TypeDecl{
				Kind:       "typedef",
				Name:       sc.qualify(name),
				Position:   f.pos(d),
				Provenance: f.prov,
			})
		}
	}
	if len(batch) == 0 {
		return nil
	}
	return f.emit(batch)
}

// record delivers a struct, union, class or enum. In C++ the body of a
// class-like record is walked as a scope of its own.
func (f *fileParser) record(n *sitter.Node, sc scope) error {
	kind := strings.TrimSuffix(n.Type(), "_specifier")
	body := n.ChildByFieldName("body")
	name := ""
	if nn := n.ChildByFieldName("name"); nn != nil {
		name = stripTemplateArgs(normalizeName(lang.NodeText(nn, f.src)))
	}
	if body == nil && name == "" {
		return nil
	}
	td := &ast.TypeDecl{Kind: kind, Position: f.pos(n), Provenance: f.prov}
	if name != "" {
		td.Name = sc.qualify(name)
		td.Bases = f.bases(n, sc)
		f.u.table.declare(td)
	}
	if err := f.emit(ast.Batch{td}); err != nil {
		return err
	}
	if f.u.lang.Name != "cpp" || body == nil || kind == "enum" {
		return nil
	}

	inner := sc
	if name != "" {
		inner = enterClass(td.Name)
	}
	f.predeclare(body, inner)
	return f.items(body, inner)
}

// predeclare declares every member of a class body so inline bodies can call
// members declared after them.
func (f *fileParser) predeclare(body *sitter.Node, sc scope) {
	for i := 0; i < int(body.NamedChildCount()); i++ {
		c := body.NamedChild(i)
		switch c.Type() {
		case "template_declaration":
			f.predeclare(c, sc)
		case "function_definition":
			d := c.ChildByFieldName("declarator")
			if fn := functionDeclarator(d); fn != nil {
				f.predeclareFunc(c, d, fn, sc)
			}
		case "field_declaration", "declaration":
			for _, d := range declarators(c) {
				if fn := functionDeclarator(d); fn != nil {
					f.predeclareFunc(c, d, fn, sc)
					continue
				}
				if name := declaredName(d, f.src); name != "" {
					f.u.table.declareVar(sc.qualify(name), declType(c, d, f.src))
				}
			}
		}
	}
}

// bases resolves the base class clause of a record against sc.
func (f *fileParser) bases(n *sitter.Node, sc scope) []string {
	var out []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		clause := n.NamedChild(i)
		if clause.Type() != "base_class_clause" {
			continue
		}
		for j := 0; j < int(clause.NamedChildCount()); j++ {
			b := clause.NamedChild(j)
			switch b.Type() {
			case "type_identifier", "qualified_identifier", "template_type":
				name := stripTemplateArgs(normalizeName(lang.NodeText(b, f.src)))
				if qn := f.u.table.class(name, sc.prefixes()); qn != "" {
					out = append(out, qn)
				}
			}
		}
	}
	return out
}

func (f *fileParser) predeclareFunc(spec, d, fn *sitter.Node, sc scope) {
	if fd := f.newFunc(spec, d, fn, sc); fd != nil {
		f.predeclared[d.StartByte()] = fd
		f.u.table.declareFunc(fd)
	}
}
