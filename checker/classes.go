package checker

import (
	"strings"

	"github.com/hashicorp/go-set/v3"
	"github.com/panyam/pynarrow/decl"
	"github.com/panyam/pynarrow/loader"
	"github.com/panyam/pynarrow/types"
)

// classOf builds the class object of a class statement. The class is
// cached before its bases and fields are computed so that references to
// it from its own body resolve.
func (ev *Evaluator) classOf(cd *decl.ClassDef) *types.ClassType {
	if c, ok := ev.classes[cd.ID()]; ok {
		return c
	}
	m := ev.model
	cls := types.NewClass(cd.Name.Name, ev.qualifiedName(cd), 0)
	cls.Details.Metaclass = m.TypeClass
	ev.classes[cd.ID()] = cls

	for _, dec := range cd.Decorators {
		switch builtinFunctionName(ev.GetTypeOfExpression(dec, nil).Type) {
		case builtinFinal:
			cls.Details.Flags |= types.ClassFinal
		case builtinRuntimeCheck:
			cls.Details.Flags |= types.ClassRuntimeCheckable
		}
	}

	var explicitParams, implicitParams []*types.TypeVarType
	hasExplicitParams := false
	for _, arg := range cd.Arguments {
		if arg.Name != nil || arg.Category != decl.ArgSimple {
			continue
		}
		if params, form, ok := ev.genericBase(arg.Value); ok {
			if form == "Protocol" {
				cls.Details.Flags |= types.ClassProtocol
			}
			if params != nil {
				hasExplicitParams = true
				explicitParams = appendTypeVars(explicitParams, params...)
			}
			continue
		}

		base := ev.GetTypeOfExpression(arg.Value, nil).Type
		switch b := base.(type) {
		case *types.AnyType:
			cls.Details.BaseClasses = append(cls.Details.BaseClasses, types.Unknown())
			continue
		case *types.ClassType:
			if !b.IsInstance && !(b.IsSpecialForm() && !b.IsBuiltIn("TypedDict")) {
				ev.addBaseClass(cls, b, arg.Value)
				implicitParams = appendTypeVars(implicitParams, typeVarsIn(b)...)
				continue
			}
		}
		ev.addError(arg.Value, "Argument to class must be a base class")
	}
	if hasExplicitParams {
		for _, tv := range implicitParams {
			if !containsTypeVar(explicitParams, tv) {
				ev.addError(cd.Name, "Type variable %q is not included in Generic", tv.Name())
			}
		}
		cls.Details.TypeParams = explicitParams
	} else {
		cls.Details.TypeParams = implicitParams
	}

	if mc := cd.Keyword("metaclass"); mc != nil {
		if meta, ok := ev.GetTypeOfExpression(mc, nil).Type.(*types.ClassType); ok && !meta.IsInstance {
			cls.Details.Metaclass = meta
		}
	}
	if len(cls.Details.BaseClasses) == 0 {
		cls.Details.BaseClasses = []types.Type{m.Object}
	}
	if !types.ComputeMRO(cls) {
		ev.addError(cd.Name, "Cannot create consistent method ordering")
	}

	ev.populateFields(cls, cd)
	if cls.IsTypedDict() {
		ev.computeTypedDictEntries(cls, cd)
	}
	return cls
}

// genericBase recognizes Generic[...], Protocol and Protocol[...] bases.
func (ev *Evaluator) genericBase(e decl.Expr) (params []*types.TypeVarType, form string, ok bool) {
	target := e
	x, isIndex := e.(*decl.IndexExpr)
	if isIndex {
		target = x.Base
	}
	switch target.(type) {
	case *decl.NameExpr, *decl.MemberAccessExpr:
	default:
		return nil, "", false
	}
	base := ev.GetTypeOfExpression(target, nil).Type
	switch {
	case isSpecialForm(base, "Generic"):
		form = "Generic"
	case isSpecialForm(base, "Protocol"):
		form = "Protocol"
	default:
		return nil, "", false
	}
	if !isIndex {
		if form == "Generic" {
			ev.addError(e, "\"Generic\" requires at least one type argument")
		}
		return nil, form, true
	}
	params = []*types.TypeVarType{}
	for _, item := range x.Items {
		tv, isTypeVar := ev.GetTypeOfExpression(item, nil).Type.(*types.TypeVarType)
		if !isTypeVar {
			ev.addError(item, "Type argument for %q must be a type variable", form)
			continue
		}
		if containsTypeVar(params, tv) {
			ev.addError(item, "Type arguments for %q must be unique", form)
			continue
		}
		params = append(params, tv.CloneAsInstance())
	}
	return params, form, true
}

func (ev *Evaluator) addBaseClass(cls, base *types.ClassType, at decl.Node) {
	m := ev.model
	if base.IsFinal() {
		ev.addError(at, "Base class %q is marked final and cannot be subclassed", base.Name())
	}
	if base.IsBuiltIn("TypedDict") || base.IsTypedDict() {
		cls.Details.Flags |= types.ClassTypedDict
	}
	if base.IsEnum() {
		cls.Details.Flags |= types.ClassEnum
	}
	if base.Details.Metaclass != nil && base.Details.Metaclass != m.TypeClass {
		cls.Details.Metaclass = base.Details.Metaclass
	}
	cls.Details.BaseClasses = append(cls.Details.BaseClasses, base.CloneAsInstantiable(false))
}

// typeVarsIn lists the type variables used as type arguments of a base.
func typeVarsIn(c *types.ClassType) []*types.TypeVarType {
	var out []*types.TypeVarType
	for _, arg := range c.TypeArgs {
		types.DoForEachSubtype(arg, func(s types.Type) {
			if tv, ok := s.(*types.TypeVarType); ok && !containsTypeVar(out, tv) {
				out = append(out, tv.CloneAsInstance())
			}
		})
	}
	return out
}

func containsTypeVar(list []*types.TypeVarType, tv *types.TypeVarType) bool {
	for _, t := range list {
		if t.Details == tv.Details {
			return true
		}
	}
	return false
}

func appendTypeVars(list []*types.TypeVarType, tvs ...*types.TypeVarType) []*types.TypeVarType {
	for _, tv := range tvs {
		if !containsTypeVar(list, tv) {
			list = append(list, tv)
		}
	}
	return list
}

// lazyField computes the inferred type of a field on first use.
type lazyField struct {
	resolve   func() types.Type
	resolving bool
}

// populateFields declares the fields of a class body and the attributes
// its methods assign through self.
func (ev *Evaluator) populateFields(cls *types.ClassType, cd *decl.ClassDef) {
	scope := ev.file.ScopeFor(cd)
	for _, name := range scope.Symbols.Keys() {
		sym := scope.LookUpLocal(name)
		if sym == nil || len(sym.Decls) == 0 {
			continue
		}
		if cls.IsEnum() && ev.addEnumMember(cls, sym.Name, sym.Decls[len(sym.Decls)-1].InferredTypeSource, sym.Decls[len(sym.Decls)-1].Annotation) {
			continue
		}

		field := &types.Field{Name: name}
		for _, d := range sym.Decls {
			if d.Annotation != nil && ev.isClassVarAnnotation(d.Annotation) {
				field.IsClassVar = true
			}
		}
		if declared := ev.declaredTypeOf(sym); declared != nil {
			field.Type = declared
			field.HasDeclaredType = true
			switch sym.Decls[len(sym.Decls)-1].Kind {
			case loader.DeclFunction, loader.DeclClass:
				field.IsClassVar = true
			}
		} else {
			s := sym
			ev.deferField(field, func() types.Type { return ev.effectiveTypeOf(s) })
		}
		cls.AddField(field)
	}

	ev.addSelfAttributes(cls, cd)
}

func (ev *Evaluator) deferField(f *types.Field, resolve func() types.Type) {
	ev.lazyFields[f] = &lazyField{resolve: resolve}
}

// resolveField fills in a deferred field type.
func (ev *Evaluator) resolveField(f *types.Field) {
	lf, ok := ev.lazyFields[f]
	if !ok || lf.resolving {
		return
	}
	lf.resolving = true
	f.Type = lf.resolve()
	delete(ev.lazyFields, f)
}

// addSelfAttributes declares attributes assigned as self.name inside
// methods that are not declared in the class body.
func (ev *Evaluator) addSelfAttributes(cls *types.ClassType, cd *decl.ClassDef) {
	type assignment struct {
		annotation decl.Expr
		value      decl.Expr
		target     decl.Expr
	}
	found := map[string][]assignment{}
	var order []string

	for _, stmt := range cd.Body {
		fd, ok := stmt.(*decl.FunctionDef)
		if !ok || len(fd.Params) == 0 || fd.Params[0].Category != decl.ParamSimple {
			continue
		}
		self := fd.Params[0].Name.Name
		decl.Walk(fd, func(n decl.Node) bool {
			switch x := n.(type) {
			case *decl.FunctionDef:
				return x == fd
			case *decl.ClassDef:
				return false
			case *decl.AssignStmt:
				for _, t := range assignedMembers(x.Target, self) {
					if _, seen := found[t.Member.Name]; !seen {
						order = append(order, t.Member.Name)
					}
					a := assignment{target: t}
					if decl.Expr(t) == x.Target {
						a.annotation, a.value = x.Annotation, x.Value
					}
					found[t.Member.Name] = append(found[t.Member.Name], a)
				}
			}
			return true
		})
	}

	for _, name := range order {
		if cls.LookUpField(name) != nil {
			continue
		}
		assigns := found[name]
		field := &types.Field{Name: name}
		for _, a := range assigns {
			if a.annotation != nil {
				field.Type = ev.typeOfAnnotation(a.annotation)
				field.HasDeclaredType = true
				break
			}
		}
		if !field.HasDeclaredType {
			ev.deferField(field, func() types.Type {
				var ts []types.Type
				for _, a := range assigns {
					if a.value == nil {
						ts = append(ts, types.Unknown())
						continue
					}
					ts = append(ts, widenLiterals(ev.GetTypeOfExpression(a.value, nil).Type))
				}
				return types.CombineTypes(ts...)
			})
		}
		cls.AddField(field)
	}
}

// assignedMembers lists the self.name targets of an assignment target.
func assignedMembers(target decl.Expr, self string) []*decl.MemberAccessExpr {
	switch t := target.(type) {
	case *decl.MemberAccessExpr:
		if recv, ok := t.Receiver.(*decl.NameExpr); ok && recv.Name == self {
			return []*decl.MemberAccessExpr{t}
		}
	case *decl.TupleExpr:
		var out []*decl.MemberAccessExpr
		for _, el := range t.Elements {
			out = append(out, assignedMembers(el, self)...)
		}
		return out
	case *decl.ListExpr:
		var out []*decl.MemberAccessExpr
		for _, el := range t.Elements {
			out = append(out, assignedMembers(el, self)...)
		}
		return out
	}
	return nil
}

// addEnumMember declares name as a member of an enum class when it is
// assigned a value in the class body. It reports false for names that
// are not members.
func (ev *Evaluator) addEnumMember(cls *types.ClassType, name string, value, annotation decl.Expr) bool {
	if value == nil || annotation != nil || strings.HasPrefix(name, "_") {
		return false
	}
	switch ev.GetTypeOfExpression(value, nil).Type.(type) {
	case *types.FunctionType, *types.OverloadedType:
		return false
	}
	lit := &types.EnumLiteral{
		ClassFullName: cls.Details.FullName,
		ClassName:     cls.Details.Name,
		ItemName:      name,
		ItemType:      cls,
	}
	member := cls.CloneAsInstance(false).CloneWithLiteral(lit)
	cls.AddField(&types.Field{Name: name, Type: member, HasDeclaredType: true, IsClassVar: true})
	ev.enumValues[cls.Details.FullName+"."+name] = value
	return true
}

// enumValueType returns the type of the value assigned to an enum member.
func (ev *Evaluator) enumValueType(lit *types.EnumLiteral) (types.Type, bool) {
	value, ok := ev.enumValues[lit.ClassFullName+"."+lit.ItemName]
	if !ok {
		return nil, false
	}
	return ev.GetTypeOfExpression(value, nil).Type, true
}

// computeTypedDictEntries merges the entries of TypedDict bases with the
// annotated names of this class body.
func (ev *Evaluator) computeTypedDictEntries(cls *types.ClassType, cd *decl.ClassDef) {
	entries := map[string]*types.TypedDictEntry{}
	mro := cls.Details.MRO
	for i := len(mro) - 1; i > 0; i-- {
		if base, ok := mro[i].(*types.ClassType); ok && base.IsTypedDict() {
			for k, e := range base.Details.TypedDictEntries {
				entries[k] = e
			}
		}
	}

	total := true
	if t := cd.Keyword("total"); t != nil {
		if c, ok := t.(*decl.ConstantExpr); ok && c.Kind == decl.ConstFalse {
			total = false
			cls.Details.Flags |= types.ClassCanOmitDictValues
		}
	}

	declared := set.New[string](len(cd.Body))
	for _, stmt := range cd.Body {
		as, ok := stmt.(*decl.AssignStmt)
		if !ok {
			continue
		}
		name, ok := as.Target.(*decl.NameExpr)
		if !ok || as.Annotation == nil {
			continue
		}
		if as.Value != nil {
			ev.addError(as.Value, "TypedDict classes can contain only type annotations")
		}
		if !declared.Insert(name.Name) {
			continue
		}
		inner, required, notRequired, readOnly := ev.annotationQualifiers(as.Annotation)
		entries[name.Name] = &types.TypedDictEntry{
			ValueType:  ev.typeOfAnnotation(inner),
			IsRequired: required || (total && !notRequired),
			IsReadOnly: readOnly,
		}
	}
	cls.Details.TypedDictEntries = entries
}

// bindMember binds a function found on a class to the object it was
// accessed through.
func bindMember(t types.Type, throughInstance bool) types.Type {
	bind := func(fn *types.FunctionType) *types.FunctionType {
		switch {
		case fn.Details.Flags&types.FunctionStaticMethod != 0:
			return fn
		case fn.Details.Flags&types.FunctionClassMethod != 0, throughInstance:
			return fn.CloneAsBound()
		}
		return fn
	}
	switch v := t.(type) {
	case *types.FunctionType:
		return bind(v)
	case *types.OverloadedType:
		out := &types.OverloadedType{Overloads: make([]*types.FunctionType, len(v.Overloads))}
		for i, o := range v.Overloads {
			out.Overloads[i] = bind(o)
		}
		return out
	}
	return t
}
