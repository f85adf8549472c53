package checker

import (
	"fmt"
	"strings"

	"github.com/panyam/pynarrow/decl"
	"github.com/panyam/pynarrow/narrowing"
	"github.com/panyam/pynarrow/speculative"
	"github.com/panyam/pynarrow/types"
)

func (ev *Evaluator) typeOfCall(e *decl.CallExpr, expected types.Type) types.TypeResult {
	callee := ev.GetTypeOfExpression(e.Callee, nil)
	var r types.TypeResult
	if fn, ok := callee.Type.(*types.FunctionType); ok && fn.Details.BuiltInName != "" {
		if br, handled := ev.builtinCall(e, fn); handled {
			r = br
		} else {
			r = ev.callType(e, callee.Type, expected)
		}
	} else {
		r = ev.callType(e, callee.Type, expected)
	}
	r.IsIncomplete = r.IsIncomplete || callee.IsIncomplete
	return r
}

// builtinCall evaluates the builtins whose result depends on the form of
// their arguments rather than on a signature.
func (ev *Evaluator) builtinCall(e *decl.CallExpr, fn *types.FunctionType) (types.TypeResult, bool) {
	args := e.PositionalArgs()
	switch fn.Details.BuiltInName {
	case builtinRevealType:
		if len(args) != 1 {
			ev.addError(e, "Expected a single positional argument for \"reveal_type\" call")
			return ev.result(types.Unknown()), true
		}
		return ev.GetTypeOfExpression(args[0], nil), true

	case builtinAssertType:
		if len(args) != 2 {
			ev.addError(e, "\"assert_type\" expects two positional arguments")
			return ev.result(types.Unknown()), true
		}
		r := ev.GetTypeOfExpression(args[0], nil)
		want := ev.typeOfAnnotation(args[1])
		if !r.IsIncomplete && !types.IsSameType(r.Type, want) && r.Type.String() != want.String() {
			ev.addError(e, "\"assert_type\" mismatch: expected %q but received %q", want.String(), r.Type.String())
		}
		return r, true

	case builtinAssertNever:
		if len(args) == 1 {
			r := ev.GetTypeOfExpression(args[0], nil)
			if !r.IsIncomplete && !types.IsNever(r.Type) {
				ev.addError(args[0], "Argument of type %q cannot be assigned to parameter \"arg\" of type \"Never\"", r.Type.String())
			}
		}
		return ev.result(types.Never()), true

	case builtinCast:
		if len(args) != 2 {
			ev.addError(e, "\"cast\" expects two positional arguments")
			return ev.result(types.Unknown()), true
		}
		r := ev.GetTypeOfExpression(args[1], nil)
		return types.TypeResult{Type: ev.typeOfAnnotation(args[0]), IsIncomplete: r.IsIncomplete}, true

	case builtinTypeVar:
		return ev.result(ev.typeVarOf(e)), true

	case builtinIsInstance, builtinIsSubclass:
		if len(args) != 2 || len(e.Args) != 2 {
			return types.TypeResult{}, false
		}
		obj := ev.GetTypeOfExpression(args[0], nil)
		filter := ev.GetTypeOfExpression(args[1], nil)
		if _, ok := narrowing.GetIsInstanceClassTypes(filter.Type); !ok && !types.IsAnyOrUnknown(filter.Type) && !filter.IsIncomplete {
			ev.addError(args[1], "Second argument to %q must be a class or tuple of classes", fn.Details.BuiltInName)
		}
		return types.TypeResult{Type: ev.model.Instance("bool"), IsIncomplete: obj.IsIncomplete || filter.IsIncomplete}, true

	case builtinOverload, builtinFinal, builtinRuntimeCheck, builtinStaticMethod, builtinClassMethod:
		if len(args) == 1 {
			return ev.GetTypeOfExpression(args[0], nil), true
		}
	}
	return types.TypeResult{}, false
}

// typeVarOf creates the type variable declared by a TypeVar call.
func (ev *Evaluator) typeVarOf(e *decl.CallExpr) types.Type {
	if tv, ok := ev.typeVars[e.ID()]; ok {
		return tv
	}
	args := e.PositionalArgs()
	if len(args) == 0 {
		ev.addError(e, "Expected name of TypeVar as first argument")
		return types.Unknown()
	}
	name, ok := args[0].(*decl.StringExpr)
	if !ok || name.IsBytes {
		ev.addError(args[0], "Expected name of TypeVar as first argument")
		return types.Unknown()
	}
	tv := types.NewTypeVar(name.Value).CloneAsInstantiable()
	ev.typeVars[e.ID()] = tv

	if as, ok := e.Parent().(*decl.AssignStmt); ok {
		if target, ok := as.Target.(*decl.NameExpr); ok && target.Name != name.Value {
			ev.addError(args[0], "TypeVar must be assigned to a variable named %q", name.Value)
		}
	}
	for _, c := range args[1:] {
		tv.Details.Constraints = append(tv.Details.Constraints, ev.typeOfAnnotation(c))
	}
	if len(tv.Details.Constraints) == 1 {
		ev.addError(args[1], "TypeVar must have at least two constrained types")
		tv.Details.Constraints = nil
	}
	for _, a := range e.Args {
		if a.Name == nil || a.Name.Name != "bound" {
			continue
		}
		if len(tv.Details.Constraints) > 0 {
			ev.addError(a.Value, "TypeVar cannot be both bound and constrained")
			continue
		}
		tv.Details.Bound = ev.typeOfAnnotation(a.Value)
	}
	return tv
}

// callType evaluates a call against every subtype of the callee.
func (ev *Evaluator) callType(e *decl.CallExpr, callee types.Type, expected types.Type) types.TypeResult {
	incomplete := false
	t := types.MapSubtypes(callee, func(s types.Type) types.Type {
		r := ev.callSubtype(e, s, expected)
		incomplete = incomplete || r.IsIncomplete
		return r.Type
	})
	return types.TypeResult{Type: t, IsIncomplete: incomplete}
}

func (ev *Evaluator) callSubtype(e *decl.CallExpr, callee types.Type, expected types.Type) types.TypeResult {
	switch v := callee.(type) {
	case *types.AnyType:
		return ev.evaluateArgs(e, types.Unknown())
	case *types.NeverType:
		return ev.evaluateArgs(e, types.Never())
	case *types.FunctionType:
		return ev.callFunction(e, v, nil, true)
	case *types.OverloadedType:
		return ev.callOverloaded(e, v)
	case *types.TypeVarType:
		if v.IsInstantiable {
			return ev.evaluateArgs(e, v.CloneAsInstance())
		}
		return ev.callType(e, ev.model.MakeTopLevelTypeVarsConcrete(v), expected)
	case *types.ClassType:
		if !v.IsInstance {
			return ev.construct(e, v, expected)
		}
		if v.IsBuiltIn("NoneType") {
			ev.addError(e, "Object of type \"None\" cannot be called")
			return ev.evaluateArgs(e, types.Unknown())
		}
		if member := types.LookUpObjectMember(v, "__call__"); member != nil {
			ev.resolveField(member.Field)
			switch fn := bindMember(types.TypeOfMember(member), true).(type) {
			case *types.FunctionType:
				return ev.callFunction(e, fn, nil, true)
			case *types.OverloadedType:
				return ev.callOverloaded(e, fn)
			}
			return ev.evaluateArgs(e, types.Unknown())
		}
	}
	ev.addError(e, "Object of type %q is not callable", callee.String())
	return ev.evaluateArgs(e, types.Unknown())
}

// evaluateArgs evaluates every argument for its diagnostics and returns
// result unchanged.
func (ev *Evaluator) evaluateArgs(e *decl.CallExpr, result types.Type) types.TypeResult {
	incomplete := false
	for _, a := range e.Args {
		incomplete = ev.GetTypeOfExpression(a.Value, nil).IsIncomplete || incomplete
	}
	return types.TypeResult{Type: result, IsIncomplete: incomplete}
}

// callOverloaded picks the first overload whose parameters accept the
// arguments. Each attempt is evaluated speculatively.
func (ev *Evaluator) callOverloaded(e *decl.CallExpr, ov *types.OverloadedType) types.TypeResult {
	for _, o := range ov.Overloads {
		matched := false
		ev.tracker.Use(e, speculative.Options{DependentType: o}, func() {
			matched = ev.matchArgs(e, o, types.NewSolution(), false).ok
		})
		if matched {
			return ev.callFunction(e, o, nil, true)
		}
	}
	ev.addError(e, "No overloads for %q match the provided arguments", overloadName(ov))
	return ev.evaluateArgs(e, types.Unknown())
}

func overloadName(ov *types.OverloadedType) string {
	if len(ov.Overloads) == 0 {
		return ""
	}
	return ov.Overloads[0].Details.Name
}

// callFunction validates the arguments of a call to fn and returns its
// result type with solved type variables applied.
func (ev *Evaluator) callFunction(e *decl.CallExpr, fn *types.FunctionType, sol *types.Solution, report bool) types.TypeResult {
	if sol == nil {
		sol = types.NewSolution()
	}
	m := ev.matchArgs(e, fn, sol, report)
	ret := ev.returnTypeOf(fn)
	ret = types.ApplySolution(ret, sol, true)
	return types.TypeResult{Type: ev.callResult(ret), IsIncomplete: m.incomplete}
}

// callResult turns a TypeGuard[X] or TypeIs[X] return into the bool that
// carries it.
func (ev *Evaluator) callResult(ret types.Type) types.Type {
	c, ok := ret.(*types.ClassType)
	if !ok || !c.IsInstance || !c.IsBuiltIn("TypeGuard", "TypeIs") {
		return ret
	}
	var guarded types.Type = types.Unknown()
	if len(c.TypeArgs) > 0 {
		guarded = c.TypeArgs[0]
	}
	return ev.model.Instance("bool").CloneForTypeGuard(&types.TypeGuardInfo{Type: guarded, IsStrict: c.IsBuiltIn("TypeIs")})
}

type argMatchResult struct {
	ok         bool
	incomplete bool
}

// matchArgs assigns arguments to the parameters of fn and checks their
// types, solving type variables into sol.
func (ev *Evaluator) matchArgs(e *decl.CallExpr, fn *types.FunctionType, sol *types.Solution, report bool) argMatchResult {
	params := fn.EffectiveParams()
	result := argMatchResult{ok: true}
	fail := func(at decl.Node, format string, args ...any) {
		result.ok = false
		if report {
			ev.addError(at, format, args...)
		}
	}

	type pair struct {
		paramType types.Type
		paramName string
		arg       *decl.Argument
	}
	var pairs []pair
	assigned := make([]bool, len(params))
	unpacked := false
	next := 0
	for _, a := range e.Args {
		switch {
		case a.Category == decl.ArgUnpackedList || a.Category == decl.ArgUnpackedDict:
			unpacked = true
			result.incomplete = ev.GetTypeOfExpression(a.Value, nil).IsIncomplete || result.incomplete

		case a.Name == nil:
			for next < len(params) && params[next].Category == types.ParamKwargsDict {
				next++
			}
			if next >= len(params) {
				fail(a, "Expected %d positional arguments", countPositional(params))
				result.incomplete = ev.GetTypeOfExpression(a.Value, nil).IsIncomplete || result.incomplete
				continue
			}
			p := params[next]
			pairs = append(pairs, pair{p.Type, p.Name, a})
			if p.Category != types.ParamArgsList {
				assigned[next] = true
				next++
			}

		default:
			idx := -1
			for i, p := range params {
				if p.Category == types.ParamSimple && p.Name == a.Name.Name {
					idx = i
					break
				}
			}
			switch {
			case idx >= 0 && assigned[idx]:
				fail(a, "Multiple values for parameter %q", a.Name.Name)
			case idx >= 0:
				assigned[idx] = true
				pairs = append(pairs, pair{params[idx].Type, params[idx].Name, a})
			case hasKwargs(params) >= 0:
				p := params[hasKwargs(params)]
				pairs = append(pairs, pair{p.Type, p.Name, a})
			default:
				fail(a.Name, "No parameter named %q", a.Name.Name)
				result.incomplete = ev.GetTypeOfExpression(a.Value, nil).IsIncomplete || result.incomplete
			}
		}
	}

	if !unpacked {
		var missing []string
		for i, p := range params {
			if p.Category == types.ParamSimple && !assigned[i] && !p.HasDefault {
				missing = append(missing, fmt.Sprintf("%q", p.Name))
			}
		}
		switch len(missing) {
		case 0:
		case 1:
			fail(e, "Argument missing for parameter %s", missing[0])
		default:
			fail(e, "Arguments missing for parameters %s", strings.Join(missing, ", "))
		}
	}

	for _, p := range pairs {
		var expected types.Type
		if p.paramType != nil && !types.RequiresSpecialization(p.paramType) {
			expected = p.paramType
		}
		r := ev.GetTypeOfExpression(p.arg.Value, expected)
		result.incomplete = result.incomplete || r.IsIncomplete
		if p.paramType == nil || r.IsIncomplete {
			continue
		}
		if !ev.model.AssignType(p.paramType, r.Type, sol) {
			fail(p.arg, "Argument of type %q cannot be assigned to parameter %q of type %q",
				r.Type.String(), p.paramName, types.ApplySolution(p.paramType, sol, false).String())
		}
	}
	return result
}

func countPositional(params []types.FunctionParam) int {
	n := 0
	for _, p := range params {
		if p.Category == types.ParamSimple {
			n++
		}
	}
	return n
}

func hasKwargs(params []types.FunctionParam) int {
	for i, p := range params {
		if p.Category == types.ParamKwargsDict {
			return i
		}
	}
	return -1
}

// construct evaluates a call to a class object.
func (ev *Evaluator) construct(e *decl.CallExpr, cls *types.ClassType, expected types.Type) types.TypeResult {
	m := ev.model
	args := e.PositionalArgs()
	switch {
	case cls.IsBuiltIn("type") && len(e.Args) == 1 && len(args) == 1:
		r := ev.GetTypeOfExpression(args[0], nil)
		t := types.MapSubtypes(r.Type, func(s types.Type) types.Type {
			if c, ok := s.(*types.ClassType); ok && c.IsInstance {
				return c.CloneWithLiteral(nil).CloneAsInstantiable(false)
			}
			return types.ConvertToInstantiable(s)
		})
		return types.TypeResult{Type: t, IsIncomplete: r.IsIncomplete}
	case cls.IsBuiltIn("bool") && len(args) <= 1:
		return ev.evaluateArgs(e, m.Instance("bool"))
	case cls.IsSpecialForm() && !cls.IsBuiltIn("TypedDict"):
		ev.addError(e, "%q cannot be instantiated", cls.Details.Name)
		return ev.evaluateArgs(e, types.Unknown())
	case cls.IsProtocol():
		ev.addError(e, "Cannot instantiate protocol class %q", cls.Details.Name)
		return ev.evaluateArgs(e, types.Unknown())
	case cls.IsEnum() && len(args) == 1:
		return ev.evaluateArgs(e, cls.CloneAsInstance(false))
	}

	instance := cls.CloneAsInstance(false)
	if init := types.LookUpClassMember(cls, "__init__", true); init != nil {
		ev.resolveField(init.Field)
		if fn, ok := types.TypeOfMember(init).(*types.FunctionType); ok {
			sol := types.NewSolution()
			self := types.SelfSpecialize(cls).CloneAsInstance(false)
			if t := ev.expectedSpecialization(cls, expected); t != nil {
				self = t
				ev.model.AssignType(types.SelfSpecialize(cls).CloneAsInstance(false), t, sol)
			}
			r := ev.callFunction(e, fn.CloneAsBound(), sol, true)
			return types.TypeResult{Type: types.ApplySolution(self, sol, true), IsIncomplete: r.IsIncomplete}
		}
	}

	if len(cls.Details.TypeParams) > 0 {
		if t := ev.expectedSpecialization(cls, expected); t != nil {
			instance = t
		} else if cls.TypeArgs == nil {
			instance = types.SpecializeWithUnknown(cls).CloneAsInstance(false)
		}
	}
	if len(e.Args) > 0 && !cls.IsBuiltIn() && !cls.IsTypedDict() && !cls.IsEnum() && !types.DerivesFromAnyClass(cls) {
		ev.addError(e, "Expected 0 positional arguments")
	}
	return ev.evaluateArgs(e, instance)
}

// expectedSpecialization returns the instance of cls that expected asks
// for, when expected names the same generic class.
func (ev *Evaluator) expectedSpecialization(cls *types.ClassType, expected types.Type) *types.ClassType {
	if expected == nil || len(cls.Details.TypeParams) == 0 {
		return nil
	}
	for _, s := range types.Subtypes(expected) {
		if c, ok := s.(*types.ClassType); ok && c.IsInstance && c.IsSameGenericClass(cls) && c.TypeArgs != nil {
			return c.CloneIncludeSubclasses(false)
		}
	}
	return nil
}

// returnTypeOf returns the declared return type of fn, or the type
// inferred from the return statements of its definition.
func (ev *Evaluator) returnTypeOf(fn *types.FunctionType) types.Type {
	if fn.Details.DeclaredReturnType != nil {
		return fn.Details.DeclaredReturnType
	}
	fd, ok := ev.functionDefs[fn.Details]
	if !ok {
		return types.Unknown()
	}
	if t, ok := ev.inferredReturns[fd.ID()]; ok {
		return t
	}
	if !ev.inferringReturns.Insert(fd.ID()) {
		return types.Unknown()
	}
	defer ev.inferringReturns.Remove(fd.ID())

	var ts []types.Type
	incomplete := false
	decl.Walk(fd, func(n decl.Node) bool {
		switch x := n.(type) {
		case *decl.FunctionDef:
			return x == fd
		case *decl.ClassDef:
			return false
		case *decl.ReturnStmt:
			if !ev.file.IsReachable(x) {
				return false
			}
			if x.Value == nil {
				ts = append(ts, ev.model.NoneInstance())
				return false
			}
			r := ev.GetTypeOfExpression(x.Value, nil)
			incomplete = incomplete || r.IsIncomplete
			ts = append(ts, r.Type)
			return false
		}
		return true
	})
	if !alwaysExits(fd.Body) {
		ts = append(ts, ev.model.NoneInstance())
	}
	t := types.CombineTypes(ts...)
	if !incomplete {
		ev.inferredReturns[fd.ID()] = t
	}
	return t
}

// alwaysExits reports whether a block cannot complete normally.
func alwaysExits(stmts []decl.Stmt) bool {
	for _, s := range stmts {
		switch x := s.(type) {
		case *decl.ReturnStmt:
			return true
		case *decl.IfStmt:
			if len(x.Else) > 0 && alwaysExits(x.Body) && alwaysExits(x.Else) {
				return true
			}
		case *decl.WhileStmt:
			if c, ok := x.Test.(*decl.ConstantExpr); ok && c.Kind == decl.ConstTrue && !containsBreak(x.Body) {
				return true
			}
		case *decl.AssertStmt:
			if c, ok := x.Test.(*decl.ConstantExpr); ok && (c.Kind == decl.ConstFalse || c.Kind == decl.ConstNone) {
				return true
			}
		}
	}
	return false
}

func containsBreak(stmts []decl.Stmt) bool {
	found := false
	for _, s := range stmts {
		decl.Walk(s, func(n decl.Node) bool {
			switch n.(type) {
			case *decl.BreakStmt:
				found = true
			case *decl.WhileStmt, *decl.ForStmt, *decl.FunctionDef, *decl.ClassDef:
				return false
			}
			return !found
		})
	}
	return found
}
