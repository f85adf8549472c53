package loader

import (
	"fmt"

	"github.com/hashicorp/go-set/v3"
)

type FlowKind int

const (
	FlowStart FlowKind = iota
	FlowAssignment
	FlowCondition
	FlowBranchLabel
	FlowLoopLabel
	FlowUnreachable
)

var flowKindNames = []string{"start", "assignment", "condition", "branch", "loop", "unreachable"}

func (k FlowKind) String() string { return flowKindNames[k] }

// FlowNode is a node of the backward-linked code flow graph of one
// execution scope.
type FlowNode struct {
	ID          int
	Kind        FlowKind
	Antecedents []*FlowNode

	// Node is the statement of an assignment or the test of a condition.
	Node Node

	// Target is the assigned reference; it is nil for imported names.
	// Key identifies the assigned reference (see narrowing.ReferenceKey).
	Target Expr
	Key    string

	// IsPositive is the polarity of a condition.
	IsPositive bool
}

func (f *FlowNode) String() string {
	switch f.Kind {
	case FlowAssignment:
		return fmt.Sprintf("#%d assign %s", f.ID, f.Key)
	case FlowCondition:
		return fmt.Sprintf("#%d cond %s %v", f.ID, f.Node, f.IsPositive)
	}
	return fmt.Sprintf("#%d %s", f.ID, f.Kind)
}

// Antecedent returns the single predecessor of a non-label node.
func (f *FlowNode) Antecedent() *FlowNode {
	if len(f.Antecedents) == 0 {
		return nil
	}
	return f.Antecedents[0]
}

// IsFlowNodeReachable reports whether target lies on some backward path
// from from, following loop back edges.
func IsFlowNodeReachable(from, target *FlowNode) bool {
	if from == nil || target == nil {
		return false
	}
	visited := set.New[int](16)
	stack := []*FlowNode{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == target {
			return true
		}
		if cur.Kind == FlowUnreachable || !visited.Insert(cur.ID) {
			continue
		}
		stack = append(stack, cur.Antecedents...)
	}
	return false
}
