package decl

import (
	"fmt"
	"sync/atomic"
)

// Node is any node of the syntax tree.
type Node interface {
	Pos() int // Starting byte offset
	End() int // Ending byte offset
	Location() Location
	ID() int
	Parent() Node
	Children() []Node
	String() string

	info() *NodeInfo
}

// Location is a 1-based line/column position.
type Location struct {
	Line int
	Col  int
}

func (l Location) String() string { return fmt.Sprintf("%d:%d", l.Line, l.Col) }

// NodeInfo is embedded in every node for position tracking, identity and
// the parent link.
type NodeInfo struct {
	StartPos, StopPos int
	Line, Col         int

	id     int
	parent Node
}

func (n *NodeInfo) Pos() int           { return n.StartPos }
func (n *NodeInfo) End() int           { return n.StopPos }
func (n *NodeInfo) Location() Location { return Location{n.Line, n.Col} }
func (n *NodeInfo) ID() int            { return n.id }
func (n *NodeInfo) Parent() Node       { return n.parent }
func (n *NodeInfo) info() *NodeInfo    { return n }

// NodeInfoFrom copies the start position of another node.
func NodeInfoFrom(n Node, end int) NodeInfo {
	info := n.info()
	return NodeInfo{StartPos: info.StartPos, StopPos: end, Line: info.Line, Col: info.Col}
}

var lastNodeID atomic.Int64

// Finalize assigns ids and parent links to every node under root. It must
// be called once a tree (or a synthesized fragment) is complete.
func Finalize(root Node) {
	var visit func(n, parent Node)
	visit = func(n, parent Node) {
		info := n.info()
		info.id = int(lastNodeID.Add(1))
		info.parent = parent
		for _, c := range n.Children() {
			if c != nil {
				visit(c, n)
			}
		}
	}
	visit(root, nil)
}

// Walk calls fn for n and its descendants in pre-order. Returning false
// skips the children of a node.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children() {
		if c != nil {
			Walk(c, fn)
		}
	}
}

// IsNodeContainedWithin reports whether node is root or one of its
// descendants.
func IsNodeContainedWithin(node, root Node) bool {
	for cur := node; cur != nil; cur = cur.Parent() {
		if cur == root {
			return true
		}
	}
	return false
}

// EnclosingScopeNode returns the nearest function, class or module that
// contains n (excluding n itself).
func EnclosingScopeNode(n Node) Node {
	for cur := n.Parent(); cur != nil; cur = cur.Parent() {
		switch cur.(type) {
		case *FunctionDef, *ClassDef, *Module:
			return cur
		}
	}
	return nil
}

func exprNodes[T Node](items []T) []Node {
	out := make([]Node, 0, len(items))
	for _, i := range items {
		out = append(out, i)
	}
	return out
}
