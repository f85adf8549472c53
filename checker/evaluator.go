// Package checker evaluates the types of expressions in a bound file. It
// walks the code flow graph built by the loader, applies the narrowing
// callbacks of the narrowing package at condition nodes and records
// speculative results through the speculative tracker while overloads and
// expected types are being tried.
package checker

import (
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-set/v3"
	"github.com/panyam/pynarrow/decl"
	"github.com/panyam/pynarrow/loader"
	"github.com/panyam/pynarrow/narrowing"
	"github.com/panyam/pynarrow/speculative"
	"github.com/panyam/pynarrow/types"
)

const (
	// DefaultMaxLoopIterations bounds the fixed point computed at a loop label.
	DefaultMaxLoopIterations = 16

	// MaxEvaluationDepth bounds nested expression evaluation.
	MaxEvaluationDepth = 256
)

// Revealed is the result of one reveal_type call.
type Revealed struct {
	Location decl.Location
	Expr     string
	Type     string
}

type cacheEntry struct {
	result     types.TypeResult
	generation int
}

// Evaluator computes the types of expressions of one file. It implements
// narrowing.Evaluator. An Evaluator is not safe for concurrent use.
type Evaluator struct {
	file     *loader.File
	model    *types.Model
	builtins *Builtins
	tracker  *speculative.Tracker

	MaxLoopIterations int

	typeCache            speculative.MapCache[cacheEntry]
	incompleteGeneration int

	classes   map[int]*types.ClassType
	functions map[int]*types.FunctionType
	typeVars  map[int]*types.TypeVarType

	functionDefs     map[*types.FunctionDetails]*decl.FunctionDef
	inferredReturns  map[int]types.Type
	inferringReturns *set.Set[int]

	lazyFields map[*types.Field]*lazyField
	enumValues map[string]decl.Expr

	// Partial types of loop labels under evaluation, keyed by loop node
	// and reference key.
	loopPending map[string]types.Type

	depth     int
	inferring *set.Set[*loader.Symbol]
	reported  *set.Set[string]

	// unbound marks a name read before any assignment reached it.
	unbound *types.ClassType

	revealed []Revealed
}

var _ narrowing.Evaluator = (*Evaluator)(nil)

// NewEvaluator creates an evaluator for a bound file.
func NewEvaluator(file *loader.File, model *types.Model) *Evaluator {
	if model == nil {
		model = types.NewModel()
	}
	unboundClass := types.NewClass("Unbound", "Unbound", 0)
	types.ComputeMRO(unboundClass)
	return &Evaluator{
		file:              file,
		model:             model,
		builtins:          newBuiltins(model),
		tracker:           speculative.NewTracker(),
		MaxLoopIterations: DefaultMaxLoopIterations,
		typeCache:         speculative.MapCache[cacheEntry]{},
		classes:           map[int]*types.ClassType{},
		functions:         map[int]*types.FunctionType{},
		typeVars:          map[int]*types.TypeVarType{},
		functionDefs:      map[*types.FunctionDetails]*decl.FunctionDef{},
		inferredReturns:   map[int]types.Type{},
		inferringReturns:  set.New[int](4),
		lazyFields:        map[*types.Field]*lazyField{},
		enumValues:        map[string]decl.Expr{},
		loopPending:       map[string]types.Type{},
		inferring:         set.New[*loader.Symbol](8),
		reported:          set.New[string](16),
		unbound:           unboundClass.CloneAsInstance(false),
	}
}

func (ev *Evaluator) Model() *types.Model { return ev.model }

func (ev *Evaluator) File() *loader.File { return ev.file }

func (ev *Evaluator) Tracker() *speculative.Tracker { return ev.tracker }

// Revealed returns the reveal_type results recorded so far.
func (ev *Evaluator) Revealed() []Revealed { return ev.revealed }

// GetTypeOfExpression returns the type of node. When expected is given the
// expression is inferred bidirectionally against it.
func (ev *Evaluator) GetTypeOfExpression(node decl.Expr, expected types.Type) types.TypeResult {
	if cached, ok := ev.readCache(node, expected); ok {
		return cached
	}
	if ev.depth >= MaxEvaluationDepth {
		slog.Debug("evaluation depth exceeded", "expr", node.String(), "id", node.ID())
		return types.TypeResult{Type: types.Unknown(), IsIncomplete: true}
	}
	ev.depth++
	result := ev.evaluate(node, expected)
	ev.depth--
	if result.Type == nil {
		result.Type = types.Unknown()
	}
	ev.writeCache(node, result, expected)
	return result
}

func (ev *Evaluator) readCache(node decl.Expr, expected types.Type) (types.TypeResult, bool) {
	if expected != nil && ev.tracker.IsSpeculative(node, false) {
		if e := ev.tracker.GetSpeculativeType(node, expected); e != nil && !e.IsStale(ev.incompleteGeneration) {
			return e.Result, true
		}
		return types.TypeResult{}, false
	}
	if expected != nil {
		return types.TypeResult{}, false
	}
	entry, ok := ev.typeCache[node.ID()]
	if !ok || (entry.result.IsIncomplete && entry.generation != ev.incompleteGeneration) {
		return types.TypeResult{}, false
	}
	return entry.result, true
}

func (ev *Evaluator) writeCache(node decl.Expr, result types.TypeResult, expected types.Type) {
	if expected != nil {
		if ev.tracker.IsSpeculative(node, false) {
			ev.tracker.AddSpeculativeType(node, result, ev.incompleteGeneration, expected)
		}
		return
	}
	ev.typeCache[node.ID()] = cacheEntry{result: result, generation: ev.incompleteGeneration}
	ev.tracker.Track(ev.typeCache, node.ID())
}

func (ev *Evaluator) evaluate(node decl.Expr, expected types.Type) types.TypeResult {
	switch e := node.(type) {
	case *decl.NameExpr:
		return ev.typeOfName(e)
	case *decl.ConstantExpr:
		return ev.result(ev.typeOfConstant(e))
	case *decl.NumberExpr:
		if e.IsBig {
			return ev.result(ev.model.Instance("int"))
		}
		if e.IsInt {
			return ev.result(ev.model.LiteralInstance(types.IntLiteral(e.IntValue)))
		}
		return ev.result(ev.model.Instance("float"))
	case *decl.StringExpr:
		if e.IsBytes {
			return ev.result(ev.model.LiteralInstance(types.BytesLiteral(e.Value)))
		}
		return ev.result(ev.model.LiteralInstance(types.StrLiteral(e.Value)))
	case *decl.MemberAccessExpr:
		return ev.typeOfMemberAccess(e)
	case *decl.IndexExpr:
		return ev.typeOfIndex(e)
	case *decl.CallExpr:
		return ev.typeOfCall(e, expected)
	case *decl.TupleExpr:
		return ev.typeOfTuple(e, expected)
	case *decl.ListExpr:
		return ev.typeOfCollection(e, e.Elements, ev.model.List, expected)
	case *decl.SetExpr:
		return ev.typeOfCollection(e, e.Elements, ev.model.Set, expected)
	case *decl.BinaryExpr:
		return ev.typeOfBinary(e, expected)
	case *decl.UnaryExpr:
		return ev.typeOfUnary(e)
	case *decl.AssignmentExpr:
		return ev.GetTypeOfExpression(e.Value, expected)
	}
	ev.addError(node, "unsupported expression %s", node)
	return ev.result(types.Unknown())
}

func (ev *Evaluator) result(t types.Type) types.TypeResult {
	return types.TypeResult{Type: t}
}

func (ev *Evaluator) typeOfConstant(e *decl.ConstantExpr) types.Type {
	switch e.Kind {
	case decl.ConstTrue:
		return ev.model.BoolLiteral(true)
	case decl.ConstFalse:
		return ev.model.BoolLiteral(false)
	case decl.ConstEllipsis:
		return ev.model.Ellipsis.CloneAsInstance(false)
	}
	return ev.model.NoneInstance()
}

// LocalDeclarations returns the variable and parameter declarations of
// name when all of them live in the execution scope that reads it.
func (ev *Evaluator) LocalDeclarations(name *decl.NameExpr, reachableFrom decl.Node, requireUnique bool) []narrowing.LocalDecl {
	scope := ev.file.ScopeOf(name)
	sym := scope.LookUp(name.Name)
	if sym == nil || sym.Scope.Kind == loader.ScopeClass || sym.Scope != scope.ExecutionScope() {
		return nil
	}
	if requireUnique && len(sym.Decls) > 1 {
		return nil
	}
	var out []narrowing.LocalDecl
	for _, d := range sym.Decls {
		switch d.Kind {
		case loader.DeclParameter:
			out = append(out, narrowing.LocalDecl{Node: d.Node, IsParameter: true})
		case loader.DeclVariable:
			if !ev.file.IsNodeReachable(reachableFrom, d.Node) {
				continue
			}
			out = append(out, narrowing.LocalDecl{Node: d.Node, InferredTypeSource: d.InferredTypeSource})
		default:
			return nil
		}
	}
	return out
}

func (ev *Evaluator) IsNodeReachable(node, source decl.Node) bool {
	return ev.file.IsNodeReachable(node, source)
}

// NarrowingCallback matches test against reference as a condition that
// evaluated to isPositive.
func (ev *Evaluator) NarrowingCallback(reference, test decl.Expr, isPositive bool) *narrowing.Callback {
	return narrowing.GetTypeNarrowingCallback(ev, reference, test, isPositive)
}

func (ev *Evaluator) addError(node decl.Node, format string, args ...any) {
	ev.report(node, loader.SeverityError, format, args...)
}

func (ev *Evaluator) addWarning(node decl.Node, format string, args ...any) {
	ev.report(node, loader.SeverityWarning, format, args...)
}

func (ev *Evaluator) report(node decl.Node, severity loader.Severity, format string, args ...any) {
	if ev.tracker.IsSpeculative(node, true) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if !ev.reported.Insert(fmt.Sprintf("%d:%s", node.ID(), msg)) {
		return
	}
	ev.file.AddErrors(&loader.Diagnostic{Pos: node.Location(), Severity: severity, Msg: msg})
}

// reveal records the type of a reveal_type argument once per call.
// Speculative evaluations are not recorded.
func (ev *Evaluator) reveal(call *decl.CallExpr, arg decl.Expr, t types.Type, expectedText string) {
	if ev.tracker.IsSpeculative(call, true) {
		return
	}
	text := t.String()
	if !ev.reported.Insert(fmt.Sprintf("%d:reveal", call.ID())) {
		return
	}
	ev.revealed = append(ev.revealed, Revealed{Location: call.Location(), Expr: arg.String(), Type: text})
	ev.file.AddErrors(loader.Infof(call.Location(), "Type of %q is %q", arg.String(), text))
	if expectedText != "" && expectedText != text {
		ev.addError(call, "Type text mismatch; expected %q but received %q", expectedText, text)
	}
}

// bumpGeneration invalidates every incomplete cache entry.
func (ev *Evaluator) bumpGeneration() {
	ev.incompleteGeneration++
}
