package checker

import (
	"github.com/panyam/pynarrow/decl"
	"github.com/panyam/pynarrow/narrowing"
	"github.com/panyam/pynarrow/speculative"
	"github.com/panyam/pynarrow/types"
)

// maxLiteralMathSubtypes caps the literal combinations evaluated by one
// arithmetic operation before the operands are widened.
const maxLiteralMathSubtypes = 64

func (ev *Evaluator) typeOfMemberAccess(e *decl.MemberAccessExpr) types.TypeResult {
	recv := ev.GetTypeOfExpression(e.Receiver, nil)
	name := e.Member.Name
	flow := ev.file.FlowNode(e)
	if flow == nil || !isNarrowable(e) {
		return types.TypeResult{Type: ev.memberOfType(recv.Type, name, e), IsIncomplete: recv.IsIncomplete}
	}
	ref := &flowReference{
		expr:     e,
		key:      narrowing.ReferenceKey(e),
		declared: ev.declaredMemberType(recv.Type, name),
		start:    func() types.Type { return ev.memberOfType(recv.Type, name, e) },
	}
	r := ev.flowTypeOf(ref, flow)
	r.IsIncomplete = r.IsIncomplete || recv.IsIncomplete
	return r
}

// memberOfType returns the type of attribute name accessed on t.
func (ev *Evaluator) memberOfType(t types.Type, name string, at decl.Node) types.Type {
	return types.MapSubtypes(t, func(s types.Type) types.Type {
		switch v := s.(type) {
		case *types.AnyType:
			return types.Unknown()
		case *types.NeverType:
			return s
		case *types.ModuleType:
			if f, ok := v.Fields[name]; ok {
				return f
			}
			ev.addError(at, "%q is not a known attribute of module %q", name, v.Name)
			return types.Unknown()
		case *types.TypeVarType:
			return ev.memberOfType(ev.model.MakeTopLevelTypeVarsConcrete(v), name, at)
		case *types.ClassType:
			if t, ok := ev.classMember(v, name); ok {
				return t
			}
			if v.IsInstance && v.IsBuiltIn("NoneType") {
				ev.addError(at, "%q is not a known attribute of \"None\"", name)
			} else {
				ev.addError(at, "Cannot access attribute %q for class %q", name, v.String())
			}
			return types.Unknown()
		}
		ev.addError(at, "Cannot access attribute %q for type %q", name, s.String())
		return types.Unknown()
	})
}

// classMember looks name up on an instance or a class object, binding
// methods to it.
func (ev *Evaluator) classMember(c *types.ClassType, name string) (types.Type, bool) {
	if c.IsInstance {
		if lit, ok := c.Literal.(*types.EnumLiteral); ok {
			switch name {
			case "value":
				if t, ok := ev.enumValueType(lit); ok {
					return t, true
				}
			case "name":
				return ev.model.LiteralInstance(types.StrLiteral(lit.ItemName)), true
			}
		}
		if member := types.LookUpObjectMember(c, name); member != nil {
			ev.resolveField(member.Field)
			return bindMember(types.TypeOfMember(member), true), true
		}
		return nil, false
	}
	if member := types.LookUpClassMember(c, name, false); member != nil {
		ev.resolveField(member.Field)
		return bindMember(types.TypeOfMember(member), false), true
	}
	if meta := c.Details.Metaclass; meta != nil {
		if member := types.LookUpObjectMember(meta.CloneAsInstance(false), name); member != nil {
			ev.resolveField(member.Field)
			return bindMember(types.TypeOfMember(member), true), true
		}
	}
	return nil, false
}

// declaredMemberType returns the declared type of an attribute when the
// receiver is a single class or instance, or nil.
func (ev *Evaluator) declaredMemberType(recv types.Type, name string) types.Type {
	c, ok := ev.model.MakeTopLevelTypeVarsConcrete(recv).(*types.ClassType)
	if !ok {
		return nil
	}
	var member *types.ClassMember
	if c.IsInstance {
		member = types.LookUpObjectMember(c, name)
	} else {
		member = types.LookUpClassMember(c, name, false)
	}
	if member == nil || !member.Field.HasDeclaredType {
		return nil
	}
	switch member.Field.Type.(type) {
	case *types.FunctionType, *types.OverloadedType:
		return nil
	}
	return types.TypeOfMember(member)
}

func (ev *Evaluator) typeOfIndex(e *decl.IndexExpr) types.TypeResult {
	base := ev.GetTypeOfExpression(e.Base, nil)
	if c, ok := base.Type.(*types.ClassType); ok && !c.IsInstance {
		t := ev.subscriptedAnnotation(e, annotationContext{scope: ev.file.ScopeOf(e)})
		return types.TypeResult{Type: types.ConvertToInstantiable(t), IsIncomplete: base.IsIncomplete}
	}
	for _, item := range e.Items {
		ev.GetTypeOfExpression(item, nil)
	}
	flow := ev.file.FlowNode(e)
	if flow == nil || !isNarrowable(e) {
		return types.TypeResult{Type: ev.indexedType(base.Type, e), IsIncomplete: base.IsIncomplete}
	}
	ref := &flowReference{
		expr:  e,
		key:   narrowing.ReferenceKey(e),
		start: func() types.Type { return ev.indexedType(base.Type, e) },
	}
	r := ev.flowTypeOf(ref, flow)
	r.IsIncomplete = r.IsIncomplete || base.IsIncomplete
	return r
}

// indexedType returns the type of base[e.Items].
func (ev *Evaluator) indexedType(base types.Type, e *decl.IndexExpr) types.Type {
	item := e.SingleItem()
	return types.MapSubtypes(base, func(s types.Type) types.Type {
		concrete := ev.model.MakeTopLevelTypeVarsConcrete(s)
		c, ok := concrete.(*types.ClassType)
		if !ok {
			if types.IsAnyOrUnknown(concrete) {
				return types.Unknown()
			}
			ev.addError(e, "Type %q is not subscriptable", s.String())
			return types.Unknown()
		}
		if c.IsInstance && c.IsBuiltIn("NoneType") {
			ev.addError(e, "Object of type \"None\" is not subscriptable")
			return types.Unknown()
		}
		if item != nil && c.IsInstance {
			if t, ok := ev.tupleIndex(c, item); ok {
				return t
			}
			if c.IsTypedDict() {
				return ev.typedDictIndex(c, item, e)
			}
		}
		if member := types.LookUpObjectMember(c, "__getitem__"); member != nil && c.IsInstance {
			switch fn := types.TypeOfMember(member).(type) {
			case *types.FunctionType:
				return fn.ReturnType()
			case *types.AnyType:
				return types.Unknown()
			}
		}
		if types.DerivesFromAnyClass(c) {
			return types.Unknown()
		}
		ev.addError(e, "__getitem__ method not defined on type %q", c.String())
		return types.Unknown()
	})
}

// tupleIndex resolves a constant index into a tuple of known shape.
func (ev *Evaluator) tupleIndex(c *types.ClassType, item decl.Expr) (types.Type, bool) {
	if !types.IsTupleClass(c) {
		return nil, false
	}
	args := types.SpecializedTupleArgs(c)
	if args == nil {
		return nil, false
	}
	lit, ok := ev.GetTypeOfExpression(item, nil).Type.(*types.ClassType)
	if !ok || lit.Literal == nil {
		return types.TupleElementType(args), true
	}
	idx, ok := lit.Literal.(types.IntLiteral)
	if !ok {
		return types.TupleElementType(args), true
	}
	if types.UnboundedIndex(args) >= 0 {
		return types.TupleElementType(args), true
	}
	i := int(idx)
	if i < 0 {
		i += len(args)
	}
	if i < 0 || i >= len(args) {
		ev.addError(item, "Index %d is out of range for type %q", int64(idx), c.String())
		return types.Unknown(), true
	}
	return args[i].Type, true
}

func (ev *Evaluator) typedDictIndex(c *types.ClassType, item decl.Expr, at decl.Node) types.Type {
	key, ok := ev.GetTypeOfExpression(item, nil).Type.(*types.ClassType)
	lit, isStr := types.StrLiteral(""), false
	if ok && key.Literal != nil {
		lit, isStr = key.Literal.(types.StrLiteral)
	}
	if !isStr {
		return ev.model.ObjectInstance()
	}
	entry, found := c.Details.TypedDictEntries[string(lit)]
	if !found {
		ev.addError(at, "%q is not a defined key in %q", string(lit), c.Details.Name)
		return types.Unknown()
	}
	if !entry.IsRequired {
		if narrowed, ok := c.TypedDictNarrowedEntries[string(lit)]; !ok || !narrowed.IsProvided {
			ev.addError(at, "%q is not a required key in %q, so access may result in runtime exception", string(lit), c.Details.Name)
		}
	}
	return entry.ValueType
}

func (ev *Evaluator) typeOfTuple(e *decl.TupleExpr, expected types.Type) types.TypeResult {
	expectedArgs := ev.expectedTupleArgs(expected, len(e.Elements))
	args := make([]types.TupleArg, len(e.Elements))
	incomplete := false
	for i, el := range e.Elements {
		var want types.Type
		if expectedArgs != nil {
			want = expectedArgs[i]
		}
		r := ev.GetTypeOfExpression(el, want)
		args[i] = types.TupleArg{Type: r.Type}
		incomplete = incomplete || r.IsIncomplete
	}
	return types.TypeResult{Type: ev.model.MakeTuple(args), IsIncomplete: incomplete}
}

// expectedTupleArgs returns per-element expected types when expected is a
// single tuple whose shape fits n elements.
func (ev *Evaluator) expectedTupleArgs(expected types.Type, n int) []types.Type {
	c, ok := expected.(*types.ClassType)
	if !ok || !c.IsInstance || !types.IsTupleClass(c) {
		return nil
	}
	args := types.SpecializedTupleArgs(c)
	if args == nil {
		return nil
	}
	out := make([]types.Type, n)
	if len(args) == 1 && args[0].IsUnbounded {
		for i := range out {
			out[i] = args[0].Type
		}
		return out
	}
	if len(args) != n || types.UnboundedIndex(args) >= 0 {
		return nil
	}
	for i, a := range args {
		out[i] = a.Type
	}
	return out
}

// typeOfCollection infers a list or set display. An expected type whose
// element type accepts every entry wins; otherwise the entries are widened
// and joined.
func (ev *Evaluator) typeOfCollection(e decl.Expr, elems []decl.Expr, cls *types.ClassType, expected types.Type) types.TypeResult {
	if expected != nil {
		for _, candidate := range types.Subtypes(expected) {
			elemType := ev.expectedElementType(candidate, cls)
			if elemType == nil {
				continue
			}
			fits := true
			ev.tracker.Use(e, speculative.Options{DependentType: candidate}, func() {
				for _, el := range elems {
					if !ev.model.AssignType(elemType, ev.GetTypeOfExpression(el, elemType).Type, nil) {
						fits = false
					}
				}
			})
			if !fits {
				continue
			}
			incomplete := false
			for _, el := range elems {
				incomplete = ev.GetTypeOfExpression(el, elemType).IsIncomplete || incomplete
			}
			return types.TypeResult{Type: ev.specializeInstance(cls, elemType), IsIncomplete: incomplete}
		}
	}

	var ts []types.Type
	incomplete := false
	for _, el := range elems {
		r := ev.GetTypeOfExpression(el, nil)
		ts = append(ts, widenLiterals(r.Type))
		incomplete = incomplete || r.IsIncomplete
	}
	var elem types.Type = types.Unknown()
	if len(ts) > 0 {
		elem = types.CombineTypes(ts...)
	}
	return types.TypeResult{Type: ev.specializeInstance(cls, elem), IsIncomplete: incomplete}
}

func (ev *Evaluator) specializeInstance(cls *types.ClassType, args ...types.Type) *types.ClassType {
	return cls.CloneForSpecialization(args, true).CloneAsInstance(false)
}

// expectedElementType returns the element type a display of cls must
// produce to satisfy expected, or nil when expected is not a fit.
func (ev *Evaluator) expectedElementType(expected types.Type, cls *types.ClassType) types.Type {
	c, ok := expected.(*types.ClassType)
	if !ok || !c.IsInstance || len(c.TypeArgs) != 1 {
		return nil
	}
	m := ev.model
	switch {
	case c.IsSameGenericClass(cls):
	case c.IsSameGenericClass(m.Iterable):
	case c.IsSameGenericClass(m.Sequence) && types.IsDerivedFrom(cls, m.Sequence):
	default:
		return nil
	}
	if types.IsAnyOrUnknown(c.TypeArgs[0]) {
		return nil
	}
	return c.TypeArgs[0]
}

func (ev *Evaluator) typeOfBinary(e *decl.BinaryExpr, expected types.Type) types.TypeResult {
	m := ev.model
	switch e.Operator {
	case decl.OpAnd, decl.OpOr:
		left := ev.GetTypeOfExpression(e.Left, expected)
		right := ev.GetTypeOfExpression(e.Right, expected)
		var kept types.Type
		if e.Operator == decl.OpAnd {
			kept = m.RemoveTruthinessFromType(left.Type)
		} else {
			kept = m.RemoveFalsinessFromType(left.Type)
		}
		return types.TypeResult{
			Type:         types.CombineTypes(kept, right.Type),
			IsIncomplete: left.IsIncomplete || right.IsIncomplete,
		}
	}

	left := ev.GetTypeOfExpression(e.Left, nil)
	right := ev.GetTypeOfExpression(e.Right, nil)
	incomplete := left.IsIncomplete || right.IsIncomplete
	if e.Operator.IsComparison() {
		return types.TypeResult{Type: m.Instance("bool"), IsIncomplete: incomplete}
	}
	if e.Operator == decl.OpBitwiseOr && (isTypeValue(left.Type) || isTypeValue(right.Type)) {
		return types.TypeResult{
			Type:         types.CombineTypes(types.ConvertToInstantiable(left.Type), types.ConvertToInstantiable(right.Type)),
			IsIncomplete: incomplete,
		}
	}
	return types.TypeResult{Type: ev.binaryOperation(e, e.Operator, left.Type, right.Type, incomplete), IsIncomplete: incomplete}
}

// isTypeValue reports a class object, as on either side of `int | None`.
func isTypeValue(t types.Type) bool {
	switch v := t.(type) {
	case *types.ClassType:
		return !v.IsInstance
	case *types.TypeVarType:
		return v.IsInstantiable
	}
	return false
}

// binaryOperation applies an arithmetic or bitwise operator to every pair
// of operand subtypes. Literal operands produce literal results unless
// the operands are incomplete.
func (ev *Evaluator) binaryOperation(at decl.Node, op decl.Operator, left, right types.Type, incomplete bool) types.Type {
	literalMath := !incomplete && len(types.Subtypes(left))*len(types.Subtypes(right)) <= maxLiteralMathSubtypes
	var out []types.Type
	for _, l := range types.Subtypes(left) {
		for _, r := range types.Subtypes(right) {
			out = append(out, ev.binaryOperationOnSubtypes(at, op, l, r, literalMath))
		}
	}
	return types.CombineTypes(out...)
}

func (ev *Evaluator) binaryOperationOnSubtypes(at decl.Node, op decl.Operator, l, r types.Type, literalMath bool) types.Type {
	m := ev.model
	if types.IsAnyOrUnknown(l) || types.IsAnyOrUnknown(r) {
		return types.Unknown()
	}
	if types.IsNever(l) || types.IsNever(r) {
		return types.Never()
	}
	lc, lok := m.MakeTopLevelTypeVarsConcrete(l).(*types.ClassType)
	rc, rok := m.MakeTopLevelTypeVarsConcrete(r).(*types.ClassType)
	if lok && rok && lc.IsInstance && rc.IsInstance {
		if literalMath {
			if t := ev.literalMath(op, lc, rc); t != nil {
				return t
			}
		}
		if t := ev.builtinOperation(op, lc, rc); t != nil {
			return t
		}
		if types.DerivesFromAnyClass(lc) || types.DerivesFromAnyClass(rc) {
			return types.Unknown()
		}
	}
	ev.addError(at, "Operator %q not supported for types %q and %q", op.String(), l.String(), r.String())
	return types.Unknown()
}

func (ev *Evaluator) literalMath(op decl.Operator, l, r *types.ClassType) types.Type {
	m := ev.model
	switch lv := l.Literal.(type) {
	case types.IntLiteral:
		rv, ok := r.Literal.(types.IntLiteral)
		if !ok || l.IsBuiltIn("bool") || r.IsBuiltIn("bool") {
			return nil
		}
		switch op {
		case decl.OpAdd:
			return m.LiteralInstance(lv + rv)
		case decl.OpSubtract:
			return m.LiteralInstance(lv - rv)
		case decl.OpMultiply:
			return m.LiteralInstance(lv * rv)
		case decl.OpMod:
			if rv != 0 {
				return m.LiteralInstance(((lv % rv) + rv) % rv)
			}
		case decl.OpBitwiseAnd:
			return m.LiteralInstance(lv & rv)
		case decl.OpBitwiseOr:
			return m.LiteralInstance(lv | rv)
		}
	case types.StrLiteral:
		if rv, ok := r.Literal.(types.StrLiteral); ok && op == decl.OpAdd {
			return m.LiteralInstance(lv + rv)
		}
	case types.BytesLiteral:
		if rv, ok := r.Literal.(types.BytesLiteral); ok && op == decl.OpAdd {
			return m.LiteralInstance(lv + rv)
		}
	}
	return nil
}

// numericRank orders the builtin numeric classes for promotion.
var numericRank = map[string]int{"bool": 0, "int": 1, "float": 2, "complex": 3}

func (ev *Evaluator) builtinOperation(op decl.Operator, l, r *types.ClassType) types.Type {
	m := ev.model
	lr, lnum := numericRank[l.Details.Name]
	rr, rnum := numericRank[r.Details.Name]
	lnum, rnum = lnum && l.IsBuiltIn(), rnum && r.IsBuiltIn()
	switch {
	case lnum && rnum:
		rank := max(lr, rr, 1)
		if op == decl.OpDivide {
			rank = max(rank, 2)
		}
		if op == decl.OpBitwiseAnd || op == decl.OpBitwiseOr {
			if rank > 1 {
				return nil
			}
			if lr == 0 && rr == 0 {
				return m.Instance("bool")
			}
		}
		for name, n := range numericRank {
			if n == rank {
				return m.Instance(name)
			}
		}
	case l.IsBuiltIn("str") && r.IsBuiltIn("str") && op == decl.OpAdd,
		l.IsBuiltIn("str") && op == decl.OpMod,
		l.IsBuiltIn("str") && rnum && rr <= 1 && op == decl.OpMultiply:
		return m.Instance("str")
	case l.IsBuiltIn("bytes") && r.IsBuiltIn("bytes") && op == decl.OpAdd:
		return m.Instance("bytes")
	case op == decl.OpAdd && l.IsBuiltIn("list") && r.IsBuiltIn("list"):
		return ev.specializeInstance(m.List, types.CombineTypes(elementArg(l), elementArg(r)))
	case op == decl.OpAdd && types.IsTupleClass(l) && types.IsTupleClass(r):
		la, ra := types.SpecializedTupleArgs(l), types.SpecializedTupleArgs(r)
		if la != nil && ra != nil && types.UnboundedIndex(la) < 0 && types.UnboundedIndex(ra) < 0 {
			return m.MakeTuple(append(append([]types.TupleArg{}, la...), ra...))
		}
		return m.MakeHomogeneousTuple(types.CombineTypes(elementArg(l), elementArg(r)))
	case (op == decl.OpBitwiseOr || op == decl.OpBitwiseAnd || op == decl.OpSubtract) && l.IsBuiltIn("set") && r.IsBuiltIn("set"):
		if op == decl.OpBitwiseOr {
			return ev.specializeInstance(m.Set, types.CombineTypes(elementArg(l), elementArg(r)))
		}
		return l.CloneWithLiteral(nil)
	case op == decl.OpBitwiseOr && l.IsBuiltIn("dict") && r.IsBuiltIn("dict"):
		return l.CloneWithLiteral(nil)
	}
	return nil
}

func elementArg(c *types.ClassType) types.Type {
	if len(c.TypeArgs) > 0 {
		return c.TypeArgs[0]
	}
	return types.Unknown()
}

func (ev *Evaluator) typeOfUnary(e *decl.UnaryExpr) types.TypeResult {
	m := ev.model
	operand := ev.GetTypeOfExpression(e.Operand, nil)
	switch e.Operator {
	case decl.OpNot:
		var t types.Type = m.Instance("bool")
		switch {
		case !m.CanBeFalsy(operand.Type):
			t = m.BoolLiteral(false)
		case !m.CanBeTruthy(operand.Type):
			t = m.BoolLiteral(true)
		}
		return types.TypeResult{Type: t, IsIncomplete: operand.IsIncomplete}
	case decl.OpNegate:
		t := types.MapSubtypes(operand.Type, func(s types.Type) types.Type {
			c, ok := m.MakeTopLevelTypeVarsConcrete(s).(*types.ClassType)
			if !ok || !c.IsInstance {
				if types.IsAnyOrUnknown(s) {
					return types.Unknown()
				}
				ev.addError(e, "Operator \"-\" not supported for type %q", s.String())
				return types.Unknown()
			}
			if lit, ok := c.Literal.(types.IntLiteral); ok && !c.IsBuiltIn("bool") && !operand.IsIncomplete {
				return m.LiteralInstance(-lit)
			}
			switch {
			case c.IsBuiltIn("bool", "int"):
				return m.Instance("int")
			case c.IsBuiltIn("float", "complex"):
				return c.CloneWithLiteral(nil)
			}
			ev.addError(e, "Operator \"-\" not supported for type %q", s.String())
			return types.Unknown()
		})
		return types.TypeResult{Type: t, IsIncomplete: operand.IsIncomplete}
	}
	ev.addError(e, "unsupported unary operator %s", e.Operator.String())
	return ev.result(types.Unknown())
}
