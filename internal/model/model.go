// Package model defines core data structures for fanout.
package model

import "strings"

// Signature identifies a function by qualified name and type descriptors.
type Signature struct {
	Name       string   `json:"name"`
	ReturnType string   `json:"returnType"`
	Params     []string `json:"params"`
}

// String renders the signature C style, e.g. "int add(int, int)".
func (s Signature) String() string {
	return s.ReturnType + " " + s.Name + "(" + strings.Join(s.Params, ", ") + ")"
}

// Definition is one reported function definition with its direct callees
// in encounter order.
type Definition struct {
	Signature
	Callees []Signature `json:"callees"`
}

// UnitReport is the decoded fanout document of one compilation unit.
type UnitReport struct {
	Source      string
	Definitions []Definition
}

// FunctionInfo is a function node in the cross-unit call graph.
type FunctionInfo struct {
	Name      string
	Unit      string
	Signature string
	Fanout    int
	Fanin     int
	Rank      float64
}

// CallEdge is a deduplicated caller -> callee edge.
// Count is the number of call sites folded into the edge.
type CallEdge struct {
	Caller string
	Callee string
	Count  int
}

// Summary is the ranked cross-unit view, ready for serialization.
type Summary struct {
	Root      string
	Units     int
	Functions []FunctionInfo
	Calls     []CallEdge
}
