package checker

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/panyam/pynarrow/decl"
	"github.com/panyam/pynarrow/loader"
	"github.com/panyam/pynarrow/types"
)

// flowReference is an expression whose type is refined by walking the code
// flow graph backwards from the point where it is read.
type flowReference struct {
	expr decl.Expr
	key  string

	// scope owns the symbol of a name reference. Class bodies share the
	// flow graph of their execution scope, so an assignment with the same
	// key may bind a different symbol.
	scope *loader.Scope

	// declared is the explicit type of the reference. Assigned values are
	// narrowed to it.
	declared types.Type

	// start is the type where the flow graph begins or where the reference
	// was invalidated by an assignment to one of its prefixes.
	start func() types.Type
}

// flowAnalyzer evaluates one reference. Complete results are memoized per
// flow node; incomplete results depend on a pending loop and are recomputed.
type flowAnalyzer struct {
	ev   *Evaluator
	ref  *flowReference
	memo map[int]types.TypeResult
}

// flowTypeOf returns the type of ref at node.
func (ev *Evaluator) flowTypeOf(ref *flowReference, node *loader.FlowNode) types.TypeResult {
	a := &flowAnalyzer{ev: ev, ref: ref, memo: map[int]types.TypeResult{}}
	return a.typeAt(node)
}

func (a *flowAnalyzer) remember(node *loader.FlowNode, r types.TypeResult) types.TypeResult {
	if !r.IsIncomplete {
		a.memo[node.ID] = r
	}
	return r
}

func (a *flowAnalyzer) typeAt(node *loader.FlowNode) types.TypeResult {
	for node != nil {
		if r, ok := a.memo[node.ID]; ok && node.Kind != loader.FlowUnreachable {
			return r
		}
		switch node.Kind {
		case loader.FlowUnreachable:
			return types.TypeResult{Type: types.Never()}

		case loader.FlowStart:
			return types.TypeResult{Type: a.ref.start()}

		case loader.FlowAssignment:
			if node.Key == a.ref.key && a.bindsReference(node) {
				return a.remember(node, a.assignment(node))
			}
			if isPrefixKey(node.Key, a.ref.key) {
				return types.TypeResult{Type: a.ref.start()}
			}

		case loader.FlowCondition:
			if r, ok := a.condition(node); ok {
				return a.remember(node, r)
			}

		case loader.FlowBranchLabel:
			return a.remember(node, a.branch(node))

		case loader.FlowLoopLabel:
			return a.loop(node)
		}
		node = node.Antecedent()
	}
	return types.TypeResult{Type: a.ref.start()}
}

func (a *flowAnalyzer) bindsReference(node *loader.FlowNode) bool {
	if a.ref.scope == nil {
		return true
	}
	var target decl.Node = node.Node
	if node.Target != nil {
		target = node.Target
	}
	return a.ev.file.ScopeOf(target) == a.ref.scope
}

// isPrefixKey reports whether assigning prefix invalidates key, as an
// assignment to a invalidates a.b and a[0].
func isPrefixKey(prefix, key string) bool {
	return strings.HasPrefix(key, prefix+".") || strings.HasPrefix(key, prefix+"[")
}

func (a *flowAnalyzer) assignment(node *loader.FlowNode) types.TypeResult {
	var r types.TypeResult
	if aug, ok := node.Node.(*decl.AugAssignStmt); ok {
		left := a.typeAt(node.Antecedent())
		right := a.ev.GetTypeOfExpression(aug.Value, nil)
		incomplete := left.IsIncomplete || right.IsIncomplete
		r = types.TypeResult{
			Type:         a.ev.binaryOperation(aug, aug.Operator, left.Type, right.Type, incomplete),
			IsIncomplete: incomplete,
		}
	} else {
		r = a.ev.assignedTypeOf(node)
	}
	r.Type = a.ev.narrowTypeForAssignment(a.ref.declared, r.Type)
	return r
}

func (a *flowAnalyzer) condition(node *loader.FlowNode) (types.TypeResult, bool) {
	test, ok := node.Node.(decl.Expr)
	if !ok {
		return types.TypeResult{}, false
	}
	cb := a.ev.NarrowingCallback(a.ref.expr, test, node.IsPositive)
	if cb == nil {
		return types.TypeResult{}, false
	}
	in := a.typeAt(node.Antecedent())
	out := cb.Apply(a.ev, in.Type)
	return types.TypeResult{Type: out.Type, IsIncomplete: in.IsIncomplete || out.IsIncomplete}, true
}

func (a *flowAnalyzer) branch(node *loader.FlowNode) types.TypeResult {
	var ts []types.Type
	incomplete := false
	for _, ant := range node.Antecedents {
		r := a.typeAt(ant)
		ts = append(ts, r.Type)
		incomplete = incomplete || r.IsIncomplete
	}
	return types.TypeResult{Type: types.CombineTypes(ts...), IsIncomplete: incomplete}
}

// loop computes a fixed point over the antecedents of a loop label. While
// it runs, reads of the same reference at the label see the partial type
// and are marked incomplete.
func (a *flowAnalyzer) loop(node *loader.FlowNode) types.TypeResult {
	ev := a.ev
	key := fmt.Sprintf("%d:%s", node.ID, a.ref.key)
	if partial, ok := ev.loopPending[key]; ok {
		return types.TypeResult{Type: partial, IsIncomplete: true}
	}
	if len(node.Antecedents) == 0 {
		return types.TypeResult{Type: types.Never()}
	}

	ev.loopPending[key] = types.Never()
	var result types.TypeResult
	converged := false
	for i := 0; i < ev.MaxLoopIterations; i++ {
		result = a.branch(node)
		if !result.IsIncomplete || types.IsSameType(result.Type, ev.loopPending[key]) {
			converged = true
			break
		}
		ev.loopPending[key] = result.Type
		ev.bumpGeneration()
	}
	delete(ev.loopPending, key)
	ev.bumpGeneration()

	if !converged {
		slog.Debug("loop analysis stopped before a fixed point", "loop", node.ID, "reference", a.ref.key, "type", result.Type.String())
	}
	result.IsIncomplete = result.IsIncomplete && len(ev.loopPending) > 0
	return a.remember(node, result)
}

// assignedTypeOf returns the type an assignment flow node gives its target.
func (ev *Evaluator) assignedTypeOf(node *loader.FlowNode) types.TypeResult {
	switch st := node.Node.(type) {
	case *decl.AssignStmt:
		var expected types.Type
		if st.Annotation != nil {
			if !isFinalAnnotation(st.Annotation) {
				expected = ev.typeOfAnnotation(st.Annotation)
			}
		} else {
			expected = ev.declaredTypeOfTarget(st.Target)
		}
		if expected != nil && types.IsAnyOrUnknown(expected) {
			expected = nil
		}
		src := ev.GetTypeOfExpression(st.Value, expected)
		return ev.destructure(st.Target, node.Target, src)

	case *decl.AssignmentExpr:
		return ev.GetTypeOfExpression(st.Value, nil)

	case *decl.AugAssignStmt:
		left := ev.GetTypeOfExpression(st.Target, nil)
		right := ev.GetTypeOfExpression(st.Value, nil)
		incomplete := left.IsIncomplete || right.IsIncomplete
		return types.TypeResult{Type: ev.binaryOperation(st, st.Operator, left.Type, right.Type, incomplete), IsIncomplete: incomplete}

	case *decl.ForStmt:
		iter := ev.GetTypeOfExpression(st.Iter, nil)
		elem := types.TypeResult{Type: ev.iteratedType(iter.Type, st.Iter), IsIncomplete: iter.IsIncomplete}
		return ev.destructure(st.Target, node.Target, elem)

	case *decl.ImportStmt:
		sym := ev.file.ScopeOf(st).LookUpLocal(node.Key)
		if sym == nil {
			return ev.result(types.Unknown())
		}
		for i := len(sym.Decls) - 1; i >= 0; i-- {
			if sym.Decls[i].Node == decl.Node(st) {
				return ev.result(ev.typeOfImport(sym.Decls[i]))
			}
		}

	case *decl.FunctionDef:
		if sym, i := ev.symbolOfDefinition(st.Name); i >= 0 {
			return ev.result(ev.typeOfFunctionDeclaration(sym, i))
		}
		return ev.result(ev.functionOf(st))

	case *decl.ClassDef:
		return ev.result(ev.classOf(st))
	}
	return ev.result(types.Unknown())
}

// declaredTypeOfTarget returns the explicit type of an assignment target
// that has no annotation of its own, or nil.
func (ev *Evaluator) declaredTypeOfTarget(target decl.Expr) types.Type {
	switch t := target.(type) {
	case *decl.NameExpr:
		if sym := ev.file.ScopeOf(t).LookUp(t.Name); sym != nil {
			return ev.declaredTypeOf(sym)
		}
	case *decl.MemberAccessExpr:
		recv := ev.GetTypeOfExpression(t.Receiver, nil).Type
		return ev.declaredMemberType(recv, t.Member.Name)
	}
	return nil
}

// destructure picks the part of an assigned value that reaches wanted,
// which is target itself or an element of a tuple or list target.
func (ev *Evaluator) destructure(target, wanted decl.Expr, src types.TypeResult) types.TypeResult {
	if wanted == nil || target == wanted {
		return src
	}
	var elems []decl.Expr
	switch t := target.(type) {
	case *decl.TupleExpr:
		elems = t.Elements
	case *decl.ListExpr:
		elems = t.Elements
	default:
		return types.TypeResult{Type: types.Unknown(), IsIncomplete: src.IsIncomplete}
	}
	for i, el := range elems {
		if el != wanted && !decl.IsNodeContainedWithin(wanted, el) {
			continue
		}
		elem := ev.elementTypeAt(src.Type, i, len(elems), target)
		return ev.destructure(el, wanted, types.TypeResult{Type: elem, IsIncomplete: src.IsIncomplete})
	}
	return types.TypeResult{Type: types.Unknown(), IsIncomplete: src.IsIncomplete}
}

// elementTypeAt returns the type of the i-th of n targets unpacked from t.
func (ev *Evaluator) elementTypeAt(t types.Type, i, n int, at decl.Node) types.Type {
	return types.MapSubtypes(t, func(s types.Type) types.Type {
		c, ok := s.(*types.ClassType)
		if !ok || !c.IsInstance || !types.IsTupleClass(c) {
			return ev.iteratedType(s, at)
		}
		args := types.SpecializedTupleArgs(c)
		switch {
		case args == nil || types.UnboundedIndex(args) >= 0:
			return ev.iteratedType(s, at)
		case len(args) != n:
			ev.addError(at, "Expression with type %q cannot be assigned to target tuple; size mismatch: expected %d but received %d", c.String(), n, len(args))
			return types.Unknown()
		}
		return args[i].Type
	})
}

// iteratedType returns the element type produced by iterating over t.
func (ev *Evaluator) iteratedType(t types.Type, at decl.Node) types.Type {
	m := ev.model
	return types.MapSubtypes(t, func(s types.Type) types.Type {
		c, ok := m.MakeTopLevelTypeVarsConcrete(s).(*types.ClassType)
		if !ok {
			return types.Unknown()
		}
		if !c.IsInstance {
			if c.IsEnum() {
				return c.CloneAsInstance(false)
			}
			ev.addError(at, "%q is not iterable", c.String())
			return types.Unknown()
		}
		if types.IsTupleClass(c) {
			if args := types.SpecializedTupleArgs(c); args != nil {
				return types.TupleElementType(args)
			}
		}
		for _, base := range []*types.ClassType{m.Sequence, m.Mapping, m.Set, m.FrozenSet, m.Iterable} {
			if e := types.DerivedClassEntry(c, base); e != nil {
				if len(e.TypeArgs) > 0 {
					return e.TypeArgs[0]
				}
				return types.Unknown()
			}
		}
		if types.LookUpObjectMember(c, "__iter__") != nil || types.DerivesFromAnyClass(c) {
			return types.Unknown()
		}
		ev.addError(at, "%q is not iterable", c.String())
		return types.Unknown()
	})
}

// narrowTypeForAssignment is the type a reference with declared type holds
// after assigned is stored into it.
func (ev *Evaluator) narrowTypeForAssignment(declared, assigned types.Type) types.Type {
	if declared == nil || types.IsAnyOrUnknown(declared) {
		return assigned
	}
	if types.IsAnyOrUnknown(assigned) {
		return declared
	}
	if !ev.model.AssignType(declared, assigned, nil) {
		return declared
	}
	if types.IsLiteralTypeOrUnion(declared) || containsLiteral(declared) {
		return assigned
	}
	return widenLiterals(assigned)
}

func containsLiteral(t types.Type) bool {
	found := false
	types.DoForEachSubtype(t, func(s types.Type) {
		if c, ok := s.(*types.ClassType); ok && c.IsInstance && c.Literal != nil {
			found = true
		}
	})
	return found
}
