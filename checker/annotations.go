package checker

import (
	"fmt"

	"github.com/panyam/pynarrow/decl"
	"github.com/panyam/pynarrow/loader"
	"github.com/panyam/pynarrow/parser"
	"github.com/panyam/pynarrow/types"
)

// maxForwardReferenceDepth bounds string annotations nested in strings.
const maxForwardReferenceDepth = 8

// annotationContext carries what a type expression is resolved against.
// Nodes of a parsed forward reference have no scope or flow node of their
// own, so they use the scope of the string and report at it.
type annotationContext struct {
	scope *loader.Scope
	at    decl.Node
	depth int
}

func (c annotationContext) reportAt(n decl.Node) decl.Node {
	if c.at != nil {
		return c.at
	}
	return n
}

// typeOfAnnotation converts a type expression into the type of the values
// it describes.
func (ev *Evaluator) typeOfAnnotation(e decl.Expr) types.Type {
	return ev.annotationType(e, annotationContext{scope: ev.file.ScopeOf(e)})
}

func (ev *Evaluator) annotationType(e decl.Expr, ctx annotationContext) types.Type {
	switch x := e.(type) {
	case *decl.ConstantExpr:
		if x.Kind == decl.ConstNone {
			return ev.model.NoneInstance()
		}
	case *decl.StringExpr:
		if !x.IsBytes {
			return ev.forwardReference(x, ctx)
		}
	case *decl.BinaryExpr:
		if x.Operator == decl.OpBitwiseOr {
			return types.CombineTypes(ev.annotationType(x.Left, ctx), ev.annotationType(x.Right, ctx))
		}
	case *decl.IndexExpr:
		return ev.subscriptedAnnotation(x, ctx)
	case *decl.NameExpr, *decl.MemberAccessExpr:
		return ev.instanceOfTypeValue(ev.typeValueOf(x, ctx), ctx.reportAt(x))
	}
	ev.addError(ctx.reportAt(e), "Invalid expression form for type annotation: %s", e)
	return types.Unknown()
}

// forwardReference parses and resolves a quoted annotation.
func (ev *Evaluator) forwardReference(s *decl.StringExpr, ctx annotationContext) types.Type {
	at := ctx.reportAt(s)
	if ctx.depth >= maxForwardReferenceDepth {
		ev.addError(at, "Forward reference is nested too deeply")
		return types.Unknown()
	}
	parsed, err := parser.ParseExpression(s.Value)
	if err != nil {
		ev.addError(at, "Invalid forward reference %q: %v", s.Value, err)
		return types.Unknown()
	}
	return ev.annotationType(parsed, annotationContext{scope: ctx.scope, at: at, depth: ctx.depth + 1})
}

// typeValueOf evaluates the value of a name or member used in a type
// expression, such as a class object or a special form.
func (ev *Evaluator) typeValueOf(e decl.Expr, ctx annotationContext) types.Type {
	switch x := e.(type) {
	case *decl.NameExpr:
		if ctx.at == nil && ev.file.FlowNode(x) != nil {
			return ev.GetTypeOfExpression(x, nil).Type
		}
		return ev.typeOfNameInScope(x.Name, ctx.scope, ctx.reportAt(x))
	case *decl.MemberAccessExpr:
		recv := ev.typeValueOf(x.Receiver, ctx)
		return ev.memberOfType(recv, x.Member.Name, ctx.reportAt(x))
	case *decl.IndexExpr:
		return types.ConvertToInstantiable(ev.subscriptedAnnotation(x, ctx))
	}
	if ctx.at == nil {
		return ev.GetTypeOfExpression(e, nil).Type
	}
	return types.Unknown()
}

// instanceOfTypeValue converts a class object (or a union of them, as
// produced by a type alias) into the instance type it denotes.
func (ev *Evaluator) instanceOfTypeValue(t types.Type, at decl.Node) types.Type {
	return types.MapSubtypes(t, func(s types.Type) types.Type {
		switch v := s.(type) {
		case *types.AnyType:
			return s
		case *types.TypeVarType:
			if v.IsInstantiable {
				return v.CloneAsInstance()
			}
		case *types.FunctionType:
			return s
		case *types.ClassType:
			if v.IsInstance {
				if v.IsBuiltIn("NoneType") {
					return s
				}
				break
			}
			if v.IsSpecialForm() && v.IsBuiltIn() {
				return ev.bareSpecialForm(v, at)
			}
			if v.IsBuiltIn("NoneType") {
				return ev.model.NoneInstance()
			}
			return v.CloneAsInstance(true)
		}
		ev.addError(at, "Variable not allowed in type expression")
		return types.Unknown()
	})
}

// bareSpecialForm is the meaning of a special form used without a
// subscript.
func (ev *Evaluator) bareSpecialForm(c *types.ClassType, at decl.Node) types.Type {
	switch c.Details.Name {
	case "Any":
		return types.Any()
	case "Never", "NoReturn":
		return types.Never()
	case "Final", "ClassVar", "Required", "NotRequired", "ReadOnly":
		return types.Unknown()
	case "Callable":
		return ev.callableType(nil, types.Unknown(), true)
	case "Protocol", "Generic", "TypedDict":
		ev.addError(at, "%q is not allowed in this context", c.Details.Name)
		return types.Unknown()
	case "TypeGuard", "TypeIs":
		ev.addError(at, "Expected a type argument for %q", c.Details.Name)
		return ev.model.Instance("bool")
	}
	ev.addError(at, "%q requires a type argument", c.Details.Name)
	return types.Unknown()
}

// subscriptedAnnotation handles Optional[X], Union[...], Literal[...],
// qualifiers, Callable, tuple and generic class specialization.
func (ev *Evaluator) subscriptedAnnotation(x *decl.IndexExpr, ctx annotationContext) types.Type {
	at := ctx.reportAt(x)
	base := ev.typeValueOf(x.Base, ctx)
	c, ok := base.(*types.ClassType)
	if !ok || c.IsInstance {
		if types.IsAnyOrUnknown(base) {
			return base
		}
		ev.addError(at, "Type %q is not subscriptable", base.String())
		return types.Unknown()
	}

	items := x.Items
	argTypes := func() []types.Type {
		out := make([]types.Type, len(items))
		for i, item := range items {
			out[i] = ev.annotationType(item, ctx)
		}
		return out
	}

	if c.IsSpecialForm() {
		switch c.Details.Name {
		case "Optional":
			if len(items) != 1 {
				ev.addError(at, "Expected one type argument for \"Optional\"")
				return types.Unknown()
			}
			return types.CombineTypes(ev.annotationType(items[0], ctx), ev.model.NoneInstance())
		case "Union":
			return types.CombineTypes(argTypes()...)
		case "Literal":
			return ev.literalAnnotation(items, ctx)
		case "Final", "ClassVar", "Required", "NotRequired", "ReadOnly":
			if len(items) != 1 {
				ev.addError(at, "Expected one type argument for %q", c.Details.Name)
				return types.Unknown()
			}
			return ev.annotationType(items[0], ctx)
		case "Annotated":
			if len(items) < 2 {
				ev.addError(at, "Expected at least two arguments for \"Annotated\"")
			}
			if len(items) == 0 {
				return types.Unknown()
			}
			return ev.annotationType(items[0], ctx)
		case "TypeGuard", "TypeIs":
			if len(items) != 1 {
				ev.addError(at, "Expected one type argument for %q", c.Details.Name)
				return ev.model.Instance("bool")
			}
			return c.CloneForSpecialization([]types.Type{ev.annotationType(items[0], ctx)}, true).CloneAsInstance(false)
		case "Callable":
			return ev.callableAnnotation(items, ctx)
		case "Generic", "Protocol":
			ev.addError(at, "%q is not allowed in this context", c.Details.Name)
			return types.Unknown()
		}
		ev.addError(at, "%q does not accept type arguments", c.Details.Name)
		return types.Unknown()
	}

	switch {
	case c.IsBuiltIn("tuple"):
		return ev.tupleAnnotation(items, ctx)
	case c.IsBuiltIn("type"):
		if len(items) != 1 {
			ev.addError(at, "Expected one type argument for \"type\"")
			return ev.model.Instance("type")
		}
		return ev.typeOfTypeAnnotation(ev.annotationType(items[0], ctx), at)
	}

	params := c.Details.TypeParams
	if len(params) == 0 {
		ev.addError(at, "Expected no type arguments for class %q", c.Details.Name)
		return c.CloneAsInstance(true)
	}
	args := argTypes()
	if len(args) > len(params) {
		ev.addError(at, "Expected no more than %d type arguments for class %q but received %d", len(params), c.Details.Name, len(args))
		args = args[:len(params)]
	}
	for len(args) < len(params) {
		args = append(args, types.Unknown())
	}
	return c.CloneForSpecialization(args, true).CloneAsInstance(true)
}

// typeOfTypeAnnotation builds type[X].
func (ev *Evaluator) typeOfTypeAnnotation(arg types.Type, at decl.Node) types.Type {
	return types.MapSubtypes(arg, func(s types.Type) types.Type {
		switch v := s.(type) {
		case *types.AnyType:
			return ev.model.Instance("type")
		case *types.TypeVarType:
			return v.CloneAsInstantiable()
		case *types.ClassType:
			if v.IsInstance {
				return v.CloneAsInstantiable(true)
			}
		}
		ev.addError(at, "Type argument for \"type\" must be a class")
		return types.Unknown()
	})
}

func (ev *Evaluator) tupleAnnotation(items []decl.Expr, ctx annotationContext) types.Type {
	if len(items) == 1 {
		if empty, ok := items[0].(*decl.TupleExpr); ok && len(empty.Elements) == 0 {
			return ev.model.MakeTuple([]types.TupleArg{})
		}
	}
	if len(items) == 2 && isEllipsis(items[1]) {
		return ev.model.MakeHomogeneousTuple(ev.annotationType(items[0], ctx))
	}
	args := make([]types.TupleArg, 0, len(items))
	for _, item := range items {
		if isEllipsis(item) {
			ev.addError(ctx.reportAt(item), "\"...\" is allowed only as the second of two arguments")
			continue
		}
		args = append(args, types.TupleArg{Type: ev.annotationType(item, ctx)})
	}
	return ev.model.MakeTuple(args)
}

func isEllipsis(e decl.Expr) bool {
	c, ok := e.(*decl.ConstantExpr)
	return ok && c.Kind == decl.ConstEllipsis
}

// callableAnnotation builds Callable[[params], ret] and Callable[..., ret].
func (ev *Evaluator) callableAnnotation(items []decl.Expr, ctx annotationContext) types.Type {
	if len(items) != 2 {
		ev.addError(ctx.reportAt(items[0]), "Expected parameter type list and return type for \"Callable\"")
		return ev.callableType(nil, types.Unknown(), true)
	}
	ret := ev.annotationType(items[1], ctx)
	if isEllipsis(items[0]) {
		return ev.callableType(nil, ret, true)
	}
	list, ok := items[0].(*decl.ListExpr)
	if !ok {
		ev.addError(ctx.reportAt(items[0]), "Expected parameter type list or \"...\"")
		return ev.callableType(nil, ret, true)
	}
	params := make([]types.Type, len(list.Elements))
	for i, el := range list.Elements {
		params[i] = ev.annotationType(el, ctx)
	}
	return ev.callableType(params, ret, false)
}

// callableType synthesizes the function type of a Callable annotation.
// A gradual signature accepts any arguments.
func (ev *Evaluator) callableType(params []types.Type, ret types.Type, gradual bool) *types.FunctionType {
	var fps []types.FunctionParam
	if gradual {
		fps = []types.FunctionParam{
			{Category: types.ParamArgsList, Name: "args", Type: types.Any()},
			{Category: types.ParamKwargsDict, Name: "kwargs", Type: types.Any()},
		}
	}
	for i, p := range params {
		fps = append(fps, types.FunctionParam{Name: fmt.Sprintf("__p%d", i), Type: p})
	}
	fn := types.NewFunction("", fps, ret)
	fn.Details.FullName = "Callable"
	return fn
}

// literalAnnotation builds Literal[...] from its literal arguments.
func (ev *Evaluator) literalAnnotation(items []decl.Expr, ctx annotationContext) types.Type {
	var out []types.Type
	for _, item := range items {
		if t := ev.literalValue(item, ctx); t != nil {
			out = append(out, t)
			continue
		}
		ev.addError(ctx.reportAt(item), "Type arguments for \"Literal\" must be None, a literal value (int, bool, str, or bytes), or an enum value")
		out = append(out, types.Unknown())
	}
	return types.CombineTypes(out...)
}

func (ev *Evaluator) literalValue(e decl.Expr, ctx annotationContext) types.Type {
	m := ev.model
	switch x := e.(type) {
	case *decl.NumberExpr:
		if x.IsSmallInt() {
			return m.LiteralInstance(types.IntLiteral(x.IntValue))
		}
	case *decl.UnaryExpr:
		if n, ok := x.Operand.(*decl.NumberExpr); ok && x.Operator == decl.OpNegate && n.IsSmallInt() {
			return m.LiteralInstance(types.IntLiteral(-n.IntValue))
		}
	case *decl.StringExpr:
		if x.IsBytes {
			return m.LiteralInstance(types.BytesLiteral(x.Value))
		}
		return m.LiteralInstance(types.StrLiteral(x.Value))
	case *decl.ConstantExpr:
		switch x.Kind {
		case decl.ConstTrue:
			return m.BoolLiteral(true)
		case decl.ConstFalse:
			return m.BoolLiteral(false)
		case decl.ConstNone:
			return m.NoneInstance()
		}
	case *decl.MemberAccessExpr:
		v := ev.typeValueOf(x, ctx)
		if c, ok := v.(*types.ClassType); ok && c.IsInstance && c.Literal != nil {
			if _, isEnum := c.Literal.(*types.EnumLiteral); isEnum {
				return c
			}
		}
	case *decl.IndexExpr:
		if isSpecialForm(ev.typeValueOf(x.Base, ctx), "Literal") {
			return ev.literalAnnotation(x.Items, ctx)
		}
	}
	return nil
}

// annotationQualifiers strips Required, NotRequired and ReadOnly from a
// TypedDict entry annotation.
func (ev *Evaluator) annotationQualifiers(e decl.Expr) (inner decl.Expr, required, notRequired, readOnly bool) {
	inner = e
	for {
		x, ok := inner.(*decl.IndexExpr)
		if !ok || x.SingleItem() == nil {
			return
		}
		base := ev.typeValueOf(x.Base, annotationContext{scope: ev.file.ScopeOf(x)})
		switch {
		case isSpecialForm(base, "Required"):
			required = true
		case isSpecialForm(base, "NotRequired"):
			notRequired = true
		case isSpecialForm(base, "ReadOnly"):
			readOnly = true
		case isSpecialForm(base, "Annotated"):
		default:
			return
		}
		inner = x.Items[0]
	}
}

// isClassVarAnnotation reports ClassVar or ClassVar[...].
func (ev *Evaluator) isClassVarAnnotation(e decl.Expr) bool {
	if x, ok := e.(*decl.IndexExpr); ok {
		e = x.Base
	}
	switch e.(type) {
	case *decl.NameExpr, *decl.MemberAccessExpr:
		return isSpecialForm(ev.typeValueOf(e, annotationContext{scope: ev.file.ScopeOf(e)}), "ClassVar")
	}
	return false
}
