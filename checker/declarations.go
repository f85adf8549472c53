package checker

import (
	"strings"

	"github.com/panyam/pynarrow/decl"
	"github.com/panyam/pynarrow/loader"
	"github.com/panyam/pynarrow/narrowing"
	"github.com/panyam/pynarrow/types"
)

// typeOfName resolves a name through its scope and, when the symbol lives
// in the execution scope that reads it, through code flow analysis.
func (ev *Evaluator) typeOfName(n *decl.NameExpr) types.TypeResult {
	scope := ev.file.ScopeOf(n)
	sym := scope.LookUp(n.Name)
	if sym == nil {
		if t, ok := ev.builtins.Lookup(n.Name); ok {
			return ev.result(t)
		}
		ev.addError(n, "%q is not defined", n.Name)
		return ev.result(types.Unknown())
	}
	if ev.file.FlowNode(n) == nil || sym.Scope.ExecutionScope() != scope.ExecutionScope() {
		return ev.result(ev.effectiveTypeOf(sym))
	}

	ref := &flowReference{
		expr:     n,
		key:      n.Name,
		scope:    sym.Scope,
		declared: ev.declaredTypeOf(sym),
		start:    func() types.Type { return ev.startTypeOfSymbol(sym) },
	}
	return ev.checkUnbound(n, ev.flowTypeOf(ref, ev.file.FlowNode(n)))
}

// checkUnbound reports reads of names that no assignment reaches and
// removes the unbound marker from the result.
func (ev *Evaluator) checkUnbound(n *decl.NameExpr, r types.TypeResult) types.TypeResult {
	found := false
	rest := types.MapSubtypes(r.Type, func(s types.Type) types.Type {
		if ev.isUnbound(s) {
			found = true
			return nil
		}
		return s
	})
	if !found {
		return r
	}
	if types.IsNever(rest) {
		if !r.IsIncomplete {
			ev.addError(n, "%q is unbound", n.Name)
		}
		return types.TypeResult{Type: types.Unknown(), IsIncomplete: r.IsIncomplete}
	}
	if !r.IsIncomplete {
		ev.addWarning(n, "%q is possibly unbound", n.Name)
	}
	return types.TypeResult{Type: rest, IsIncomplete: r.IsIncomplete}
}

func (ev *Evaluator) isUnbound(t types.Type) bool {
	c, ok := t.(*types.ClassType)
	return ok && c.Details == ev.unbound.Details
}

// typeOfNameInScope resolves a name that has no flow node of its own, such
// as a name inside a string annotation.
func (ev *Evaluator) typeOfNameInScope(name string, scope *loader.Scope, at decl.Node) types.Type {
	if sym := scope.LookUp(name); sym != nil {
		return ev.effectiveTypeOf(sym)
	}
	if t, ok := ev.builtins.Lookup(name); ok {
		return t
	}
	ev.addError(at, "%q is not defined", name)
	return types.Unknown()
}

// startTypeOfSymbol is the type of a symbol where its scope begins.
func (ev *Evaluator) startTypeOfSymbol(sym *loader.Symbol) types.Type {
	for _, d := range sym.Decls {
		if d.Kind == loader.DeclParameter {
			return ev.parameterType(d)
		}
	}
	return ev.unbound
}

// declaredTypeOf returns the type of the last declaration of sym that
// carries an explicit type, or nil when the symbol is inferred.
func (ev *Evaluator) declaredTypeOf(sym *loader.Symbol) types.Type {
	for i := len(sym.Decls) - 1; i >= 0; i-- {
		d := sym.Decls[i]
		if !d.HasTypeAnnotation() {
			continue
		}
		if t := ev.typeOfDeclaration(sym, i); t != nil {
			return t
		}
	}
	return nil
}

// effectiveTypeOf is the type of sym seen from another execution scope:
// its declared type, or the union of its inferred assignments with the
// literal values widened.
func (ev *Evaluator) effectiveTypeOf(sym *loader.Symbol) types.Type {
	if t := ev.declaredTypeOf(sym); t != nil {
		return t
	}
	if !ev.inferring.Insert(sym) {
		return types.Unknown()
	}
	defer ev.inferring.Remove(sym)

	var inferred []types.Type
	for _, d := range sym.Decls {
		switch d.Kind {
		case loader.DeclParameter:
			inferred = append(inferred, ev.parameterType(d))
		case loader.DeclVariable:
			if d.InferredTypeSource != nil && isFinalAnnotation(d.Annotation) {
				inferred = append(inferred, ev.GetTypeOfExpression(d.InferredTypeSource, nil).Type)
				continue
			}
			flow := ev.file.FlowNode(d.Node)
			if flow == nil || flow.Kind != loader.FlowAssignment || flow.Target != d.Node {
				continue
			}
			inferred = append(inferred, widenLiterals(ev.assignedTypeOf(flow).Type))
		}
	}
	if len(inferred) == 0 {
		return types.Unknown()
	}
	return types.CombineTypes(inferred...)
}

// widenLiterals strips literal values from instances, leaving literal
// class objects such as type[Literal["a"]] alone.
func widenLiterals(t types.Type) types.Type {
	return types.MapSubtypes(t, func(s types.Type) types.Type {
		if c, ok := s.(*types.ClassType); ok && c.IsInstance && c.Literal != nil && c.TypeGuard == nil {
			return c.CloneWithLiteral(nil)
		}
		return s
	})
}

func isFinalAnnotation(e decl.Expr) bool {
	n, ok := e.(*decl.NameExpr)
	return ok && n.Name == "Final"
}

// typeOfDeclaration returns the explicit type of the i-th declaration of
// sym, or nil when it has none.
func (ev *Evaluator) typeOfDeclaration(sym *loader.Symbol, i int) types.Type {
	d := sym.Decls[i]
	switch d.Kind {
	case loader.DeclVariable:
		if d.Annotation == nil || isFinalAnnotation(d.Annotation) {
			return nil
		}
		return ev.typeOfAnnotation(d.Annotation)
	case loader.DeclParameter:
		return ev.parameterType(d)
	case loader.DeclClass:
		return ev.classOf(d.Node.(*decl.ClassDef))
	case loader.DeclFunction:
		return ev.typeOfFunctionDeclaration(sym, i)
	case loader.DeclImport:
		return ev.typeOfImport(d)
	}
	return nil
}

// typeOfFunctionDeclaration gathers the @overload declarations that
// precede the i-th declaration into one overloaded type.
func (ev *Evaluator) typeOfFunctionDeclaration(sym *loader.Symbol, i int) types.Type {
	fn := ev.functionOf(sym.Decls[i].Node.(*decl.FunctionDef))
	var overloads []*types.FunctionType
	for j := i - 1; j >= 0; j-- {
		prev := sym.Decls[j]
		if prev.Kind != loader.DeclFunction {
			break
		}
		pf := ev.functionOf(prev.Node.(*decl.FunctionDef))
		if pf.Details.Flags&types.FunctionOverloaded == 0 {
			break
		}
		overloads = append([]*types.FunctionType{pf}, overloads...)
	}
	if fn.Details.Flags&types.FunctionOverloaded != 0 {
		overloads = append(overloads, fn)
	}
	switch len(overloads) {
	case 0:
		return fn
	case 1:
		last := i == len(sym.Decls)-1 || sym.Decls[i+1].Kind != loader.DeclFunction
		if overloads[0] == fn && last {
			ev.addError(sym.Decls[i].Node.(*decl.FunctionDef).Name, "%q is marked as overload, but additional overloads are missing", sym.Name)
		}
	}
	return &types.OverloadedType{Overloads: overloads}
}

func (ev *Evaluator) typeOfImport(d *loader.Declaration) types.Type {
	mod := ev.builtins.Module(d.ImportModule)
	if mod == nil {
		ev.addError(d.Node, "Import %q could not be resolved", d.ImportModule)
		return types.Unknown()
	}
	if d.ImportName == "" {
		return mod
	}
	if t, ok := mod.Fields[d.ImportName]; ok {
		return t
	}
	ev.addError(d.Node, "%q is unknown import symbol", d.ImportName)
	return types.Unknown()
}

// parameterType is the type of a parameter as seen inside the function
// body.
func (ev *Evaluator) parameterType(d *loader.Declaration) types.Type {
	p := d.Node.(*decl.Parameter)
	fd := d.Stmt.(*decl.FunctionDef)
	fn := ev.functionOf(fd)
	for i, q := range fd.Params {
		if q != p || i >= len(fn.Details.Params) {
			continue
		}
		param := fn.Details.Params[i]
		t := param.Type
		if t == nil {
			t = types.Unknown()
		}
		switch param.Category {
		case types.ParamArgsList:
			return ev.model.MakeHomogeneousTuple(t)
		case types.ParamKwargsDict:
			return ev.model.Specialize("dict", ev.model.Instance("str"), t)
		}
		return t
	}
	return types.Unknown()
}

// functionOf builds the function type of a def statement.
func (ev *Evaluator) functionOf(fd *decl.FunctionDef) *types.FunctionType {
	if fn, ok := ev.functions[fd.ID()]; ok {
		return fn
	}
	fn := types.NewFunction(fd.Name.Name, nil, nil)
	fn.Details.FullName = ev.qualifiedName(fd)
	ev.functions[fd.ID()] = fn
	ev.functionDefs[fn.Details] = fd

	for _, dec := range fd.Decorators {
		switch builtinFunctionName(ev.GetTypeOfExpression(dec, nil).Type) {
		case builtinOverload:
			fn.Details.Flags |= types.FunctionOverloaded
		case builtinStaticMethod:
			fn.Details.Flags |= types.FunctionStaticMethod
		case builtinClassMethod:
			fn.Details.Flags |= types.FunctionClassMethod
		}
	}

	cd, isMethod := decl.EnclosingScopeNode(fd).(*decl.ClassDef)
	params := make([]types.FunctionParam, len(fd.Params))
	for i, p := range fd.Params {
		param := types.FunctionParam{Name: p.Name.Name, HasDefault: p.Default != nil}
		switch p.Category {
		case decl.ParamArgsList:
			param.Category = types.ParamArgsList
		case decl.ParamKwargsDict:
			param.Category = types.ParamKwargsDict
		}
		switch {
		case p.Annotation != nil:
			param.Type = ev.typeOfAnnotation(p.Annotation)
		case i == 0 && isMethod && fn.Details.Flags&types.FunctionStaticMethod == 0:
			self := types.SelfSpecialize(ev.classOf(cd))
			if fn.Details.Flags&types.FunctionClassMethod != 0 {
				param.Type = self.CloneAsInstantiable(true)
			} else {
				param.Type = self.CloneAsInstance(true)
			}
		case p.Default != nil:
			if def := ev.GetTypeOfExpression(p.Default, nil).Type; !types.IsNoneInstance(def) {
				param.Type = widenLiterals(def)
			}
		}
		params[i] = param
	}
	fn.Details.Params = params
	if fd.Returns != nil {
		fn.Details.DeclaredReturnType = ev.typeOfAnnotation(fd.Returns)
	}
	return fn
}

// qualifiedName joins the names of the classes and functions enclosing a
// definition with its own.
func (ev *Evaluator) qualifiedName(n decl.Node) string {
	var parts []string
	for cur := n; cur != nil; cur = decl.EnclosingScopeNode(cur) {
		switch v := cur.(type) {
		case *decl.ClassDef:
			parts = append([]string{v.Name.Name}, parts...)
		case *decl.FunctionDef:
			parts = append([]string{v.Name.Name}, parts...)
		}
	}
	return strings.Join(parts, ".")
}

// symbolOfDefinition returns the symbol a def or class statement binds.
func (ev *Evaluator) symbolOfDefinition(name *decl.NameExpr) (*loader.Symbol, int) {
	sym := ev.file.ScopeOf(name).LookUpLocal(name.Name)
	if sym == nil {
		return nil, -1
	}
	d := ev.file.DeclarationOf(name)
	for i, candidate := range sym.Decls {
		if candidate == d {
			return sym, i
		}
	}
	return sym, -1
}

// isNarrowable reports whether flow analysis can refine e.
func isNarrowable(e decl.Expr) bool {
	return narrowing.IsSupportedReference(e)
}
