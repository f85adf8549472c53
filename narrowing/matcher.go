package narrowing

import (
	"github.com/panyam/pynarrow/decl"
	"github.com/panyam/pynarrow/types"
)

// matcher recognizes one form of condition and returns nil when the
// condition does not have that form.
type matcher func(r *matchRequest) *Callback

// matchers are tried in order; the first callback returned wins. The
// table is filled in init because several matchers recurse through
// getCallback, which reads it.
var matchers []matcher

func init() {
	matchers = []matcher{
		matchAssignmentExpr,
		matchEqualityComparison,
		matchLenComparison,
		matchCall,
		matchMembership,
		matchReference,
		matchAliasedCondition,
		matchNot,
	}
}

// equalityMatchers handle `is`, `is not`, `==` and `!=`.
var equalityMatchers = []func(r *matchRequest, b *decl.BinaryExpr, adjPositive bool) *Callback{
	matchNoneComparison,
	matchEllipsisComparison,
	matchTypeCallComparison,
	matchIsComparison,
	matchEqualsLiteral,
	matchMemberComparison,
}

// `(y := expr)` narrows through expr first, then through y itself.
func matchAssignmentExpr(r *matchRequest) *Callback {
	walrus, ok := r.test.(*decl.AssignmentExpr)
	if !ok {
		return nil
	}
	if cb := r.recurse(walrus.Value, r.isPositive); cb != nil {
		return cb
	}
	return r.recurse(walrus.Name, r.isPositive)
}

func matchEqualityComparison(r *matchRequest) *Callback {
	b, ok := r.test.(*decl.BinaryExpr)
	if !ok {
		return nil
	}
	var adjPositive bool
	switch b.Operator {
	case decl.OpIs, decl.OpEquals:
		adjPositive = r.isPositive
	case decl.OpIsNot, decl.OpNotEquals:
		adjPositive = !r.isPositive
	default:
		return nil
	}
	for _, match := range equalityMatchers {
		if cb := match(r, b, adjPositive); cb != nil {
			return cb
		}
	}
	return nil
}

func isConstant(e decl.Expr, kind decl.ConstantKind) bool {
	c, ok := e.(*decl.ConstantExpr)
	return ok && c.Kind == kind
}

// unwrapWalrus returns the target name of an assignment expression.
func unwrapWalrus(e decl.Expr) decl.Expr {
	if w, ok := e.(*decl.AssignmentExpr); ok {
		return w.Name
	}
	return e
}

// `x is None`, `x == None` and `x[N] is None`.
func matchNoneComparison(r *matchRequest, b *decl.BinaryExpr, adjPositive bool) *Callback {
	if !isConstant(b.Right, decl.ConstNone) {
		return nil
	}
	left := unwrapWalrus(b.Left)
	if IsMatchingExpression(r.reference, left) {
		return r.callback(RuleIsNone, adjPositive, false)
	}
	if idx, ok := left.(*decl.IndexExpr); ok && IsMatchingExpression(r.reference, idx.Base) {
		if n, ok := idx.SingleItem().(*decl.NumberExpr); ok && n.IsSmallInt() {
			cb := r.callback(RuleTupleIndexIsNone, adjPositive, false)
			cb.Index = n.IntValue
			return cb
		}
	}
	return nil
}

func matchEllipsisComparison(r *matchRequest, b *decl.BinaryExpr, adjPositive bool) *Callback {
	if !isConstant(b.Right, decl.ConstEllipsis) || !IsMatchingExpression(r.reference, unwrapWalrus(b.Left)) {
		return nil
	}
	return r.callback(RuleIsEllipsis, adjPositive, false)
}

// singleArgument returns the only argument of call when it is positional.
func singleArgument(call *decl.CallExpr) decl.Expr {
	if len(call.Args) != 1 || call.Args[0].Name != nil || call.Args[0].Category != decl.ArgSimple {
		return nil
	}
	return call.Args[0].Value
}

// `type(x) is C`.
func matchTypeCallComparison(r *matchRequest, b *decl.BinaryExpr, adjPositive bool) *Callback {
	call, ok := b.Left.(*decl.CallExpr)
	if !ok {
		return nil
	}
	arg := singleArgument(call)
	if arg == nil || !IsMatchingExpression(r.reference, arg) {
		return nil
	}
	callee := r.typeOf(call.Callee)
	if !isBuiltinClassObject(callee.Type, "type") {
		return nil
	}
	classResult := r.typeOf(b.Right)
	cls, ok := r.ev.Model().MakeTopLevelTypeVarsConcrete(classResult.Type).(*types.ClassType)
	if !ok || cls.IsInstance {
		return nil
	}
	cb := r.callback(RuleTypeIs, adjPositive, classResult.IsIncomplete)
	cb.Operand = cls
	return cb
}

func isBuiltinClassObject(t types.Type, name string) bool {
	c, ok := t.(*types.ClassType)
	return ok && !c.IsInstance && c.IsBuiltIn(name)
}

// isEnumOrBoolLiteral reports a literal usable with `is`.
func isEnumOrBoolLiteral(t types.Type) (*types.ClassType, bool) {
	c, ok := t.(*types.ClassType)
	if !ok || !c.IsInstance || c.Literal == nil {
		return nil, false
	}
	if _, isEnum := c.Literal.(*types.EnumLiteral); isEnum || c.IsBuiltIn("bool") {
		return c, true
	}
	return nil, false
}

func literalInstance(t types.Type) (*types.ClassType, bool) {
	c, ok := t.(*types.ClassType)
	return c, ok && c.IsInstance && c.Literal != nil
}

// `x is <enum or bool literal>`, `x is C`, and the discriminated
// `x["k"] is L` and `x[N] is L` forms.
func matchIsComparison(r *matchRequest, b *decl.BinaryExpr, adjPositive bool) *Callback {
	if b.Operator != decl.OpIs && b.Operator != decl.OpIsNot {
		return nil
	}
	if IsMatchingExpression(r.reference, b.Left) {
		right := r.typeOf(b.Right)
		if lit, ok := isEnumOrBoolLiteral(right.Type); ok {
			cb := r.callback(RuleLiteralComparison, adjPositive, right.IsIncomplete)
			cb.Operand = lit
			cb.IsIsOperator = true
			return cb
		}
		if cls, ok := right.Type.(*types.ClassType); ok && !cls.IsInstance {
			cb := r.callback(RuleClassComparison, adjPositive, right.IsIncomplete)
			cb.Operand = cls
			return cb
		}
	}

	idx, ok := b.Left.(*decl.IndexExpr)
	if !ok || idx.SingleItem() == nil || !IsMatchingExpression(r.reference, idx.Base) {
		return nil
	}
	key, ok := literalInstance(r.typeOf(idx.SingleItem()).Type)
	if !ok {
		return nil
	}
	switch {
	case key.IsBuiltIn("str"):
		right := r.typeOf(b.Right)
		if lit, ok := literalInstance(right.Type); ok {
			cb := r.callback(RuleDictEntryComparison, adjPositive, false)
			cb.Key, cb.Operand = key, lit
			return cb
		}
	case key.IsBuiltIn("int"):
		right := r.typeOf(b.Right)
		if lit, ok := isEnumOrBoolLiteral(right.Type); ok {
			cb := r.callback(RuleTupleEntryComparison, adjPositive, right.IsIncomplete)
			cb.Key, cb.Operand = key, lit
			return cb
		}
	}
	return nil
}

// `x == L`, `L == x` and `x[K] == L` where L is a literal or a union of
// literals.
func matchEqualsLiteral(r *matchRequest, b *decl.BinaryExpr, adjPositive bool) *Callback {
	if b.Operator != decl.OpEquals && b.Operator != decl.OpNotEquals {
		return nil
	}
	if IsMatchingExpression(r.reference, b.Left) {
		right := r.typeOf(b.Right)
		if lit, ok := literalInstance(right.Type); ok {
			cb := r.callback(RuleLiteralComparison, adjPositive, right.IsIncomplete)
			cb.Operand = lit
			return cb
		}
	}
	if IsMatchingExpression(r.reference, b.Right) {
		left := r.typeOf(b.Left)
		if lit, ok := literalInstance(left.Type); ok {
			cb := r.callback(RuleLiteralComparison, adjPositive, left.IsIncomplete)
			cb.Operand = lit
			return cb
		}
	}

	idx, ok := b.Left.(*decl.IndexExpr)
	if !ok || idx.SingleItem() == nil || !IsMatchingExpression(r.reference, idx.Base) {
		return nil
	}
	keyResult := r.typeOf(idx.SingleItem())
	key, ok := literalInstance(keyResult.Type)
	if !ok || !key.IsBuiltIn("str", "int") {
		return nil
	}
	right := r.typeOf(b.Right)
	if !types.IsLiteralTypeOrUnion(right.Type) {
		return nil
	}
	rule := RuleTupleEntryComparison
	if key.IsBuiltIn("str") {
		rule = RuleDictEntryComparison
	}
	cb := r.callback(rule, adjPositive, keyResult.IsIncomplete || right.IsIncomplete)
	cb.Key, cb.Operand = key, right.Type
	return cb
}

// `x.attr == L`, `x.attr is <enum or bool literal>` and `x.attr is None`.
func matchMemberComparison(r *matchRequest, b *decl.BinaryExpr, adjPositive bool) *Callback {
	member, ok := b.Left.(*decl.MemberAccessExpr)
	if !ok || !IsMatchingExpression(r.reference, member.Receiver) {
		return nil
	}
	name := member.Member.Name
	if b.Operator == decl.OpEquals || b.Operator == decl.OpNotEquals {
		right := r.typeOf(b.Right)
		if c, ok := right.Type.(*types.ClassType); ok && c.IsInstance && (c.Literal != nil || types.IsNoneInstance(c)) {
			cb := r.callback(RuleMemberLiteralComparison, adjPositive, right.IsIncomplete)
			cb.Member, cb.Operand = name, c
			return cb
		}
		return nil
	}
	if isConstant(b.Right, decl.ConstNone) {
		cb := r.callback(RuleMemberIsNone, adjPositive, false)
		cb.Member = name
		return cb
	}
	right := r.typeOf(b.Right)
	if lit, ok := isEnumOrBoolLiteral(right.Type); ok {
		cb := r.callback(RuleMemberLiteralComparison, adjPositive, right.IsIncomplete)
		cb.Member, cb.Operand = name, lit
		cb.IsIsOperator = true
		return cb
	}
	return nil
}

// `len(x) <op> N` for a non-negative int literal N.
func matchLenComparison(r *matchRequest) *Callback {
	b, ok := r.test.(*decl.BinaryExpr)
	if !ok {
		return nil
	}
	switch b.Operator {
	case decl.OpEquals, decl.OpNotEquals, decl.OpLessThan, decl.OpLessThanOrEqual,
		decl.OpGreaterThan, decl.OpGreaterThanOrEqual:
	default:
		return nil
	}
	call, ok := b.Left.(*decl.CallExpr)
	if !ok {
		return nil
	}
	arg := singleArgument(call)
	if arg == nil || !IsMatchingExpression(r.reference, arg) {
		return nil
	}
	callee := r.typeOf(call.Callee)
	fn, ok := callee.Type.(*types.FunctionType)
	if !ok || !fn.IsBuiltIn("len") {
		return nil
	}
	right := r.typeOf(b.Right)
	lit, ok := literalInstance(right.Type)
	if !ok {
		return nil
	}
	n, ok := lit.Literal.(types.IntLiteral)
	if !ok || n < 0 || lit.IsBuiltIn("bool") {
		return nil
	}

	length := int64(n)
	// <, <= and == are positive forms; >=, > and != are their negations.
	adjPositive := r.isPositive
	switch b.Operator {
	case decl.OpNotEquals, decl.OpGreaterThan, decl.OpGreaterThanOrEqual:
		adjPositive = !r.isPositive
	}
	if b.Operator == decl.OpLessThanOrEqual || b.Operator == decl.OpGreaterThan {
		length++
	}
	cb := r.callback(RuleTupleLength, adjPositive, callee.IsIncomplete || right.IsIncomplete)
	cb.Index = length
	cb.IsLessThan = b.Operator != decl.OpEquals && b.Operator != decl.OpNotEquals
	return cb
}

// isinstance, issubclass, bool and user-defined type guard calls.
func matchCall(r *matchRequest) *Callback {
	call, ok := r.test.(*decl.CallExpr)
	if !ok || len(call.Args) == 0 {
		return nil
	}
	first := call.Args[0]
	if first.Name != nil || first.Category != decl.ArgSimple || !IsMatchingExpression(r.reference, first.Value) {
		return nil
	}
	callee := r.typeOf(call.Callee)

	if len(call.Args) == 2 {
		if fn, ok := callee.Type.(*types.FunctionType); ok && (fn.IsBuiltIn("isinstance") || fn.IsBuiltIn("issubclass")) {
			filterResult := r.typeOf(call.Args[1].Value)
			incomplete := callee.IsIncomplete || filterResult.IsIncomplete
			filters, ok := GetIsInstanceClassTypes(filterResult.Type)
			if !ok {
				if incomplete {
					return r.callback(RuleUnchanged, r.isPositive, true)
				}
				return nil
			}
			cb := r.callback(RuleIsInstance, r.isPositive, incomplete)
			cb.Filters = filters
			cb.IsInstanceCheck = fn.IsBuiltIn("isinstance")
			return cb
		}
	}

	if len(call.Args) == 1 && isBuiltinClassObject(callee.Type, "bool") {
		return r.callback(RuleTruthiness, r.isPositive, callee.IsIncomplete)
	}

	if !isPossiblyTypeGuard(callee.Type) {
		return nil
	}
	result := r.typeOf(call)
	ret, ok := result.Type.(*types.ClassType)
	if !ok || !ret.IsInstance || !ret.IsBuiltIn("bool") || ret.TypeGuard == nil {
		return nil
	}
	cb := r.callback(RuleTypeGuard, r.isPositive, callee.IsIncomplete || result.IsIncomplete)
	cb.Operand = ret.TypeGuard.Type
	cb.IsStrict = ret.TypeGuard.IsStrict
	return cb
}

func returnsTypeGuard(fn *types.FunctionType) bool {
	ret, ok := fn.Details.DeclaredReturnType.(*types.ClassType)
	return ok && ret.IsInstance && ret.IsBuiltIn("TypeGuard", "TypeIs")
}

func isPossiblyTypeGuard(callee types.Type) bool {
	switch v := callee.(type) {
	case *types.FunctionType:
		return returnsTypeGuard(v)
	case *types.OverloadedType:
		for _, o := range v.Overloads {
			if returnsTypeGuard(o) {
				return true
			}
		}
	case *types.ClassType:
		return v.IsInstance
	}
	return false
}

// `x in y` narrows x by the container's element type; `"k" in x` narrows
// a TypedDict x by key presence.
func matchMembership(r *matchRequest) *Callback {
	b, ok := r.test.(*decl.BinaryExpr)
	if !ok || (b.Operator != decl.OpIn && b.Operator != decl.OpNotIn) {
		return nil
	}
	adjPositive := r.isPositive
	if b.Operator == decl.OpNotIn {
		adjPositive = !adjPositive
	}
	if IsMatchingExpression(r.reference, b.Left) {
		right := r.typeOf(b.Right)
		cb := r.callback(RuleContainer, adjPositive, right.IsIncomplete)
		cb.Operand = right.Type
		return cb
	}
	if IsMatchingExpression(r.reference, b.Right) {
		left := r.typeOf(b.Left)
		if key, ok := literalInstance(left.Type); ok && key.IsBuiltIn("str") {
			cb := r.callback(RuleTypedDictKey, adjPositive, left.IsIncomplete)
			cb.Key = key
			return cb
		}
	}
	return nil
}

// A bare reference narrows by truthiness.
func matchReference(r *matchRequest) *Callback {
	if !IsMatchingExpression(r.reference, r.test) {
		return nil
	}
	return r.callback(RuleTruthiness, r.isPositive, false)
}

// `not expr` inverts polarity when the reference is a name.
func matchNot(r *matchRequest) *Callback {
	if _, ok := r.reference.(*decl.NameExpr); !ok {
		return nil
	}
	u, ok := r.test.(*decl.UnaryExpr)
	if !ok || u.Operator != decl.OpNot {
		return nil
	}
	return r.recurse(u.Operand, !r.isPositive)
}
