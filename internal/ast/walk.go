package ast

// Inspect traverses the tree rooted at n depth-first in pre-order, calling f
// for each node before its children. If f returns false the node's children
// are skipped. Nil nodes are ignored.
func Inspect(n Node, f func(Node) bool) {
	if isNil(n) {
		return
	}
	if !f(n) {
		return
	}
	for _, c := range n.Children() {
		Inspect(c, f)
	}
}

// isNil catches typed nil pointers stored in a Node.
func isNil(n Node) bool {
	switch v := n.(type) {
	case nil:
		return true
	case *Block:
		return v == nil
	case *CallExpr:
		return v == nil
	case *FuncLit:
		return v == nil
	case *Generic:
		return v == nil
	}
	return false
}
