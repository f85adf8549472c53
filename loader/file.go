package loader

import "github.com/hashicorp/go-set/v3"

// File is a parsed and bound source file.
type File struct {
	ErrorCollector

	Path   string
	Module *Module
	Scope  *Scope

	lastFlowID  int
	unreachable *FlowNode

	// Keyed by node id.
	flowNodes map[int]*FlowNode
	scopes    map[int]*Scope
	ownScopes map[int]*Scope
	starts    map[int]*FlowNode
	decls     map[int]*Declaration
}

func newFile(path string, mod *Module) *File {
	return &File{
		Path:        path,
		Module:      mod,
		unreachable: &FlowNode{Kind: FlowUnreachable},
		flowNodes:   map[int]*FlowNode{},
		scopes:      map[int]*Scope{},
		ownScopes:   map[int]*Scope{},
		starts:      map[int]*FlowNode{},
		decls:       map[int]*Declaration{},
	}
}

// FlowNode returns the flow node in effect when n is evaluated.
func (f *File) FlowNode(n Node) *FlowNode {
	return f.flowNodes[n.ID()]
}

// ScopeOf returns the scope in which n is evaluated.
func (f *File) ScopeOf(n Node) *Scope {
	if s := f.scopes[n.ID()]; s != nil {
		return s
	}
	return f.Scope
}

// ScopeFor returns the scope created by a module, class or function node.
func (f *File) ScopeFor(def Node) *Scope {
	return f.ownScopes[def.ID()]
}

// StartNode returns the start flow node of a module or function.
func (f *File) StartNode(def Node) *FlowNode {
	return f.starts[def.ID()]
}

// DeclarationOf returns the declaration made by a target name, parameter,
// class or function node.
func (f *File) DeclarationOf(n Node) *Declaration {
	return f.decls[n.ID()]
}

// IsNodeReachable reports whether node can execute after source has
// executed. Unknown nodes are treated as reachable.
func (f *File) IsNodeReachable(node, source Node) bool {
	from, target := f.FlowNode(node), f.FlowNode(source)
	if from == nil || target == nil {
		return true
	}
	return IsFlowNodeReachable(from, target)
}

// IsReachable reports whether some path from the start of the enclosing
// scope reaches n.
func (f *File) IsReachable(n Node) bool {
	from := f.FlowNode(n)
	if from == nil {
		return true
	}
	visited := set.New[int](16)
	stack := []*FlowNode{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch {
		case cur.Kind == FlowStart:
			return true
		case cur.Kind == FlowUnreachable || !visited.Insert(cur.ID):
			continue
		}
		stack = append(stack, cur.Antecedents...)
	}
	return false
}
