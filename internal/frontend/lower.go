package frontend

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/fanout/internal/ast"
	"github.com/phobologic/fanout/internal/lang"
)

// scopedKinds open a block scope for declarations in their header.
var scopedKinds = map[string]bool{
	"for_statement":    true,
	"for_range_loop":   true,
	"while_statement":  true,
	"if_statement":     true,
	"switch_statement": true,
	"catch_clause":     true,
}

// lowerer converts one function body into ast nodes, resolving calls as it
// goes. Subtrees without calls or callable literals are dropped.
type lowerer struct {
	f      *fileParser
	sc     scope
	locals []map[string]string // name to type descriptor

	// result types of resolved calls and operators, by span
	types map[uint64]string
}

func (f *fileParser) lowerBody(body, params *sitter.Node, sc scope) *ast.Block {
	l := &lowerer{f: f, sc: sc, types: make(map[uint64]string)}
	l.push()
	l.bindParams(params)
	if body.Type() == "compound_statement" {
		return l.block(body)
	}
	// function-try-block and similar forms
	b := &ast.Block{}
	if n := l.node(body); n != nil {
		b.Stmts = []ast.Node{n}
	}
	return b
}

func (l *lowerer) push() { l.locals = append(l.locals, make(map[string]string)) }
func (l *lowerer) pop()  { l.locals = l.locals[:len(l.locals)-1] }

func (l *lowerer) bind(name, typ string) {
	if name != "" {
		l.locals[len(l.locals)-1][name] = typ
	}
}

func (l *lowerer) bindParams(list *sitter.Node) {
	for _, p := range paramList(list, l.f.src) {
		l.bind(p.name, p.typ)
	}
}

func (l *lowerer) local(name string) (string, bool) {
	for i := len(l.locals) - 1; i >= 0; i-- {
		if typ, ok := l.locals[i][name]; ok {
			return typ, true
		}
	}
	return "", false
}

// prefixes are the lookup prefixes for unqualified names in the body. In a
// member function the class and its bases come first.
func (l *lowerer) prefixes() []string {
	if l.sc.class == "" {
		return l.sc.prefixes()
	}
	out := l.f.u.table.chain(l.sc.class)
	return append(out, scope{prefix: qualifierOf(l.sc.class)}.prefixes()...)
}

func span(n *sitter.Node) uint64 {
	return uint64(n.StartByte())<<32 | uint64(n.EndByte())
}

func (l *lowerer) block(n *sitter.Node) *ast.Block {
	l.push()
	defer l.pop()
	return &ast.Block{Stmts: l.children(n)}
}

func (l *lowerer) children(n *sitter.Node) []ast.Node {
	var out []ast.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if x := l.node(n.NamedChild(i)); x != nil {
			out = append(out, x)
		}
	}
	return out
}

func generic(kind string, kids []ast.Node) ast.Node {
	if len(kids) == 0 {
		return nil
	}
	return &ast.Generic{Kind: kind, Kids: kids}
}

func (l *lowerer) node(n *sitter.Node) ast.Node {
	if n.NamedChildCount() == 0 {
		return nil
	}
	kind := n.Type()
	switch kind {
	case "call_expression":
		return l.call(n)
	case "binary_expression", "assignment_expression", "unary_expression", "update_expression",
		"subscript_expression":
		return l.operator(n)
	case "lambda_expression":
		return l.lambda(n)
	case "function_definition":
		return l.nested(n)
	case "compound_statement":
		b := l.block(n)
		if len(b.Stmts) == 0 {
			return nil
		}
		return b
	case "declaration":
		kids := l.children(n)
		l.bindDeclaration(n)
		return generic(kind, kids)
	}
	if scopedKinds[kind] {
		l.push()
		defer l.pop()
		switch kind {
		case "for_range_loop":
			if d := n.ChildByFieldName("declarator"); d != nil {
				l.bind(declaredName(d, l.f.src), declType(n, d, l.f.src))
			}
		case "catch_clause":
			l.bindParams(n.ChildByFieldName("parameters"))
		}
	}
	return generic(kind, l.children(n))
}

// bindDeclaration binds local names. A block-scope prototype declares a
// function instead.
func (l *lowerer) bindDeclaration(n *sitter.Node) {
	for _, d := range declarators(n) {
		if fn := functionDeclarator(d); fn != nil {
			if fd := l.f.newFunc(n, d, fn, l.f.namespace(l.sc)); fd != nil {
				l.f.u.table.declareFunc(fd)
			}
			continue
		}
		l.bind(declaredName(d, l.f.src), declType(n, d, l.f.src))
	}
}

func (l *lowerer) call(n *sitter.Node) ast.Node {
	ce := &ast.CallExpr{Position: l.f.pos(n)}
	args := n.ChildByFieldName("arguments")
	nargs := 0
	if args != nil {
		for i := 0; i < int(args.NamedChildCount()); i++ {
			if args.NamedChild(i).Type() != "comment" {
				nargs++
			}
		}
	}
	if fn := n.ChildByFieldName("function"); fn != nil {
		ce.Fun = l.node(fn)
		ce.Callee = l.resolve(fn, nargs)
	}
	if args != nil {
		ce.Args = l.children(args)
	}
	if ce.Callee != nil {
		l.types[span(n)] = ce.Callee.ReturnType
	}
	return ce
}

// resolve finds the direct target of a callee expression, or nil.
func (l *lowerer) resolve(fn *sitter.Node, nargs int) *ast.FuncDecl {
	t := l.f.u.table
	src := l.f.src
	switch fn.Type() {
	case "parenthesized_expression":
		if in := firstNamed(fn); in != nil {
			return l.resolve(in, nargs)
		}
	case "identifier":
		name := lang.NodeText(fn, src)
		if typ, ok := l.local(name); ok {
			return l.functor(typ, nargs)
		}
		if typ, ok := t.varType(name, l.prefixes()); ok {
			return l.functor(typ, nargs)
		}
		return t.lookup(name, l.prefixes(), nargs, false)
	case "template_function":
		if name := fn.ChildByFieldName("name"); name != nil {
			return l.resolve(name, nargs)
		}
	case "qualified_identifier":
		name := stripTemplateArgs(normalizeName(lang.NodeText(fn, src)))
		if strings.HasPrefix(name, "::") {
			return t.lookup(name[2:], []string{""}, nargs, true)
		}
		return t.lookup(name, l.sc.prefixes(), nargs, true)
	case "field_expression":
		field := fn.ChildByFieldName("field")
		if field == nil || field.Type() != "field_identifier" {
			return nil
		}
		cls := l.classOf(fn.ChildByFieldName("argument"))
		if cls == "" {
			return nil
		}
		return t.lookup(lang.NodeText(field, src), t.chain(cls), nargs, false)
	}
	return nil
}

// object is the class of an expression of type typ used as an object
// rather than through a pointer, or "".
func (l *lowerer) object(typ string) string {
	if strings.HasSuffix(trimQualifiers(typ), "*") {
		return ""
	}
	return l.f.u.table.classOf(typ, l.sc.prefixes())
}

// functor resolves a call through an object of class type to its
// operator(). Anything else called through a variable is indirect.
func (l *lowerer) functor(typ string, nargs int) *ast.FuncDecl {
	cls := l.object(typ)
	if cls == "" {
		return nil
	}
	t := l.f.u.table
	return t.lookup("operator()", t.chain(cls), nargs, false)
}

// classOf is the class whose members n selects with "." or "->".
func (l *lowerer) classOf(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return l.f.u.table.classOf(l.typeOf(n), l.sc.prefixes())
}

// typeOf is the static type of an expression as far as it is known, or "".
func (l *lowerer) typeOf(n *sitter.Node) string {
	t := l.f.u.table
	switch n.Type() {
	case "identifier":
		name := lang.NodeText(n, l.f.src)
		if typ, ok := l.local(name); ok {
			return typ
		}
		typ, _ := t.varType(name, l.prefixes())
		return typ
	case "qualified_identifier":
		name := normalizeName(lang.NodeText(n, l.f.src))
		if strings.HasPrefix(name, "::") {
			typ, _ := t.varType(name[2:], []string{""})
			return typ
		}
		typ, _ := t.varType(name, l.sc.prefixes())
		return typ
	case "this":
		if l.sc.class != "" {
			return l.sc.class + " *"
		}
		return ""
	case "parenthesized_expression":
		if in := firstNamed(n); in != nil {
			return l.typeOf(in)
		}
		return ""
	case "pointer_expression":
		arg := n.ChildByFieldName("argument")
		if arg == nil {
			return ""
		}
		typ := l.typeOf(arg)
		if n.Child(0).Type() == "*" {
			return deref(typ)
		}
		if typ == "" {
			return ""
		}
		return typ + " *"
	case "field_expression":
		field := n.ChildByFieldName("field")
		cls := l.classOf(n.ChildByFieldName("argument"))
		if field == nil || cls == "" {
			return ""
		}
		typ, _ := t.varType(lang.NodeText(field, l.f.src), t.chain(cls))
		return typ
	}
	return l.types[span(n)]
}

// operator lowers an expression that may call an overloaded operator. It
// becomes a call only when an operand has class type and a matching
// operator function is declared.
func (l *lowerer) operator(n *sitter.Node) ast.Node {
	kids := l.children(n)
	fd := l.resolveOperator(n)
	if fd == nil {
		return generic(n.Type(), kids)
	}
	l.types[span(n)] = fd.ReturnType
	return &ast.CallExpr{Args: kids, Callee: fd, Position: l.f.pos(n)}
}

func (l *lowerer) resolveOperator(n *sitter.Node) *ast.FuncDecl {
	if l.f.u.lang.Name != "cpp" {
		return nil
	}
	op := ""
	if o := n.ChildByFieldName("operator"); o != nil {
		op = o.Type()
	}
	var operands []*sitter.Node
	extra := 0
	switch n.Type() {
	case "binary_expression", "assignment_expression":
		operands = []*sitter.Node{n.ChildByFieldName("left"), n.ChildByFieldName("right")}
	case "unary_expression":
		operands = []*sitter.Node{n.ChildByFieldName("argument")}
	case "update_expression":
		arg := n.ChildByFieldName("argument")
		operands = []*sitter.Node{arg}
		if arg != nil && sameNode(n.Child(0), arg) {
			// postfix forms take a dummy int
			extra = 1
		}
	case "subscript_expression":
		op = "[]"
		operands = []*sitter.Node{n.ChildByFieldName("argument")}
		if idx := firstNamed(n.ChildByFieldName("indices")); idx != nil {
			operands = append(operands, idx)
		}
	}
	if op == "" || len(operands) == 0 {
		return nil
	}
	classes := make([]string, len(operands))
	found := false
	for i, o := range operands {
		if o == nil {
			return nil
		}
		if cls := l.object(l.typeOf(o)); cls != "" {
			classes[i] = cls
			found = true
		}
	}
	if !found {
		return nil
	}

	t := l.f.u.table
	name := "operator" + op
	if classes[0] != "" {
		if fd := t.lookup(name, t.chain(classes[0]), len(operands)-1+extra, false); fd != nil {
			return fd
		}
	}
	if op == "[]" || op == "=" {
		// members only
		return nil
	}
	// free operators are found in the caller's scope and the operands' namespaces
	prefixes := l.sc.prefixes()
	seen := make(map[string]bool)
	for _, p := range prefixes {
		seen[p] = true
	}
	for _, cls := range classes {
		if cls == "" {
			continue
		}
		for _, p := range (scope{prefix: qualifierOf(cls)}).prefixes() {
			if !seen[p] {
				seen[p] = true
				prefixes = append(prefixes, p)
			}
		}
	}
	return t.lookup(name, prefixes, len(operands)+extra, false)
}

func (l *lowerer) lambda(n *sitter.Node) ast.Node {
	l.push()
	defer l.pop()
	if d := n.ChildByFieldName("declarator"); d != nil {
		l.bindParams(d.ChildByFieldName("parameters"))
	}
	lit := &ast.FuncLit{}
	if body := n.ChildByFieldName("body"); body != nil {
		lit.Body = l.block(body)
	}
	return lit
}

// nested handles a function defined inside a body: a GNU nested function or
// a local class method. Its calls belong to the enclosing definition.
func (l *lowerer) nested(n *sitter.Node) ast.Node {
	body := n.ChildByFieldName("body")
	if body == nil {
		return nil
	}
	l.push()
	defer l.pop()
	if fn := functionDeclarator(n.ChildByFieldName("declarator")); fn != nil {
		l.bindParams(fn.ChildByFieldName("parameters"))
	}
	return &ast.FuncLit{Body: l.block(body)}
}
