// Package narrowing turns a condition expression into a callback that
// refines the declared type of a reference expression along one branch of
// that condition.
//
// The entry point is GetTypeNarrowingCallback. It matches the condition
// against an ordered list of recognizers and, on a match, returns a
// Callback that captures the rule and any operand types evaluated while
// matching. Applying the callback to the reference's incoming type yields
// the narrowed type. Every narrowing function in this package is a pure
// function of its inputs.
package narrowing

import (
	"log/slog"

	"github.com/panyam/pynarrow/decl"
	"github.com/panyam/pynarrow/types"
)

// MaxRecursion bounds how deeply matching may recurse through walrus,
// "not" and aliased conditions.
const MaxRecursion = 64

// LocalDecl is one declaration of a local variable or parameter.
type LocalDecl struct {
	Node        decl.Node
	IsParameter bool

	// InferredTypeSource is the expression assigned by a variable
	// declaration, nil when the declaration has no initializer.
	InferredTypeSource decl.Expr
}

// Evaluator is the part of the type evaluator that narrowing needs.
type Evaluator interface {
	Model() *types.Model

	// GetTypeOfExpression evaluates an operand of a condition.
	GetTypeOfExpression(node decl.Expr, expected types.Type) types.TypeResult

	// LocalDeclarations returns the declarations of name reachable from
	// reachableFrom. It returns nil unless name is a variable or parameter
	// declared entirely within one function or module scope. With
	// requireUnique, names with more than one declaration are rejected.
	LocalDeclarations(name *decl.NameExpr, reachableFrom decl.Node, requireUnique bool) []LocalDecl

	// IsNodeReachable reports whether node can execute after source.
	IsNodeReachable(node, source decl.Node) bool
}

// GetTypeNarrowingCallback returns the callback that narrows reference
// when test evaluates to isPositive, or nil when test says nothing about
// reference.
func GetTypeNarrowingCallback(ev Evaluator, reference, test decl.Expr, isPositive bool) *Callback {
	return getCallback(ev, reference, test, isPositive, 0)
}

func getCallback(ev Evaluator, reference, test decl.Expr, isPositive bool, depth int) *Callback {
	if depth > MaxRecursion {
		slog.Debug("narrowing recursion limit reached", "reference", reference.String(), "test", test.String())
		return nil
	}
	depth++
	req := &matchRequest{ev: ev, reference: reference, test: test, isPositive: isPositive, depth: depth}
	for _, match := range matchers {
		if cb := match(req); cb != nil {
			return cb
		}
	}
	return nil
}

// matchRequest carries one attempt to match a condition.
type matchRequest struct {
	ev         Evaluator
	reference  decl.Expr
	test       decl.Expr
	isPositive bool
	depth      int
}

func (r *matchRequest) recurse(test decl.Expr, isPositive bool) *Callback {
	return getCallback(r.ev, r.reference, test, isPositive, r.depth)
}

func (r *matchRequest) typeOf(e decl.Expr) types.TypeResult {
	return r.ev.GetTypeOfExpression(e, nil)
}

func (r *matchRequest) callback(rule Rule, isPositive bool, incomplete bool) *Callback {
	return &Callback{Rule: rule, IsPositive: isPositive, IsIncomplete: incomplete}
}
