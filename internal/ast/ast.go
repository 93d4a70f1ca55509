// Package ast is the host-neutral syntax tree handed to the fanout visitor.
//
// A frontend lowers its own parse tree into these types: top-level
// declarations become Decl values grouped into batches, and function bodies
// become trees of Node values that keep only what can contribute fanout.
// Call resolution is done by the frontend; CallExpr.Callee is nil when the
// call has no statically known target.
package ast

import (
	"fmt"

	"github.com/phobologic/fanout/internal/model"
)

// Provenance says where a declaration's defining location lives.
type Provenance int

const (
	Local  Provenance = iota // the unit's own source or a user header
	System                   // a system or library header
)

func (p Provenance) String() string {
	if p == System {
		return "system"
	}
	return "local"
}

// Position is a 1-based source location.
type Position struct {
	File   string
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Decl is a top-level declaration.
type Decl interface {
	Pos() Position
	Origin() Provenance
	declNode()
}

// Batch is an ordered group of declarations delivered together by the host.
type Batch []Decl

// FuncDecl is a function declaration, with or without a body.
type FuncDecl struct {
	model.Signature
	Position   Position
	Provenance Provenance
	Body       *Block // nil for prototypes

	// Variadic and Required drive call-site arity matching.
	Variadic bool
	Required int
	Virtual  bool
}

// HasBody reports whether d is a definition.
func (d *FuncDecl) HasBody() bool { return d.Body != nil }

func (d *FuncDecl) Pos() Position      { return d.Position }
func (d *FuncDecl) Origin() Provenance { return d.Provenance }
func (*FuncDecl) declNode()            {}

// VarDecl is a file-scope variable.
type VarDecl struct {
	Name       string
	Type       string
	Position   Position
	Provenance Provenance
}

func (d *VarDecl) Pos() Position      { return d.Position }
func (d *VarDecl) Origin() Provenance { return d.Provenance }
func (*VarDecl) declNode()            {}

// TypeDecl is a typedef or record, enum, or class declaration.
type TypeDecl struct {
	Kind       string
	Name       string
	// Bases lists the qualified base classes of a C++ class, in order.
	Bases      []string
	Position   Position
	Provenance Provenance
}

func (d *TypeDecl) Pos() Position      { return d.Position }
func (d *TypeDecl) Origin() Provenance { return d.Provenance }
func (*TypeDecl) declNode()            {}

// Node is a statement or expression inside a function body.
type Node interface {
	// Children returns the direct sub-nodes in source order.
	Children() []Node
}

// Block is a compound statement.
type Block struct {
	Stmts []Node
}

func (b *Block) Children() []Node { return b.Stmts }

// CallExpr is a call. Fun is the callee expression, which may itself contain
// calls; it is nil for an overloaded operator, whose operands are Args.
// Callee is the resolved direct target, or nil.
type CallExpr struct {
	Fun      Node
	Args     []Node
	Callee   *FuncDecl
	Position Position
}

func (c *CallExpr) Children() []Node {
	kids := make([]Node, 0, len(c.Args)+1)
	if c.Fun != nil {
		kids = append(kids, c.Fun)
	}
	return append(kids, c.Args...)
}

// FuncLit is a callable literal nested in a body (a lambda, a nested
// function, a local class method). It is traversed but never reported.
type FuncLit struct {
	Body *Block
}

func (f *FuncLit) Children() []Node {
	if f.Body == nil {
		return nil
	}
	return []Node{f.Body}
}

// Generic is any other statement or expression, named by the host's kind.
type Generic struct {
	Kind string
	Kids []Node
}

func (g *Generic) Children() []Node { return g.Kids }
