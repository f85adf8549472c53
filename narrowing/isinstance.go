package narrowing

import (
	"log/slog"

	"github.com/panyam/pynarrow/types"
)

// GetIsInstanceClassTypes flattens the second argument of isinstance or
// issubclass, including nested tuples, into its filter classes. It
// reports false when some part of the argument is not a class.
func GetIsInstanceClassTypes(filter types.Type) ([]types.Type, bool) {
	out := []types.Type{}
	ok := true
	var add func(t types.Type, depth int)
	add = func(t types.Type, depth int) {
		if depth > MaxRecursion {
			return
		}
		if c, isClass := t.(*types.ClassType); isClass && c.IsInstance && types.IsTupleClass(c) {
			for _, a := range types.SpecializedTupleArgs(c) {
				add(a.Type, depth+1)
			}
			return
		}
		for _, s := range types.Subtypes(t) {
			switch v := s.(type) {
			case *types.ClassType:
				if v.IsInstance {
					ok = false
					continue
				}
				out = append(out, types.SpecializeWithUnknown(v))
			case *types.TypeVarType:
				if !v.IsInstantiable {
					ok = false
					continue
				}
				out = append(out, v)
			default:
				ok = false
			}
		}
	}
	add(filter, 0)
	if !ok {
		return nil, false
	}
	return out, true
}

// NarrowTypeForIsInstance narrows t for isinstance (or, without
// isInstanceCheck, issubclass) against filters. A first pass never
// synthesizes intersection classes; if it leaves nothing, the whole type
// is retried with intersections allowed.
func NarrowTypeForIsInstance(m *types.Model, t types.Type, filters []types.Type, isInstanceCheck, isPositive bool) types.Type {
	f := &isInstanceFilter{m: m, filters: filters, isInstanceCheck: isInstanceCheck, isPositive: isPositive}
	narrowed := f.narrow(t)
	if !types.IsNever(narrowed) {
		return narrowed
	}
	f.allowIntersections = true
	return f.narrow(t)
}

type isInstanceFilter struct {
	m                  *types.Model
	filters            []types.Type
	isInstanceCheck    bool
	isPositive         bool
	allowIntersections bool
}

func instanceOf(c *types.ClassType) *types.ClassType { return c.CloneAsInstance(false) }

func (f *isInstanceFilter) narrow(t types.Type) types.Type {
	m := f.m
	var anyOrUnknown, substitutions []types.Type
	expand := func(x types.Type) types.Type { return expandPromotionTypes(m, x) }

	filtered := mapSubtypesExpandTypeVars(m, expandPromotionTypes(m, t), expand, func(subtype, unexpanded types.Type) types.Type {
		// Constrained type variables narrow through their expanded
		// alternatives; everything else falls back to the original.
		negativeFallback := unexpanded
		if len(types.GetCondition(subtype)) > 0 {
			negativeFallback = subtype
		}

		if f.isPositive && types.IsAnyOrUnknown(subtype) {
			subs := make([]types.Type, 0, len(f.filters))
			for _, ft := range f.filters {
				if f.isInstanceCheck {
					subs = append(subs, types.ConvertToInstance(ft))
				} else {
					subs = append(subs, instantiableOf(ft))
				}
			}
			substitutions = append(substitutions, types.CombineTypes(subs...))
			anyOrUnknown = append(anyOrUnknown, subtype)
			return nil
		}
		if f.isInstanceCheck {
			return f.filterInstance(subtype, unexpanded, negativeFallback)
		}
		return f.filterSubclass(subtype, unexpanded, negativeFallback)
	})

	if types.IsNever(filtered) && len(substitutions) > 0 {
		return types.CombineTypes(substitutions...)
	}
	if len(anyOrUnknown) > 0 {
		return types.CombineTypes(append([]types.Type{filtered}, anyOrUnknown...)...)
	}
	return filtered
}

// instantiableOf converts a filter to a class object that no longer
// stands for its subclasses.
func instantiableOf(t types.Type) types.Type {
	if c, ok := t.(*types.ClassType); ok {
		return c.CloneAsInstantiable(false)
	}
	return types.ConvertToInstantiable(t)
}

// matchesNone reports whether some filter accepts None: NoneType itself
// or object.
func (f *isInstanceFilter) matchesNone() bool {
	for _, ft := range f.filters {
		if c, ok := ft.(*types.ClassType); ok && c.IsBuiltIn("NoneType", "object") {
			return true
		}
	}
	return false
}

func (f *isInstanceFilter) isMetaclassInstance(c *types.ClassType) bool {
	return c.IsInstance && types.IsDerivedFrom(c, f.m.TypeClass)
}

func (f *isInstanceFilter) includesMetaclass() bool {
	for _, ft := range f.filters {
		if c, ok := ft.(*types.ClassType); ok && !c.IsInstance && types.IsDerivedFrom(c, f.m.TypeClass) {
			return true
		}
	}
	return false
}

func (f *isInstanceFilter) protocolFilters() []types.Type {
	var out []types.Type
	for _, ft := range f.filters {
		if c, ok := f.m.MakeTopLevelTypeVarsConcrete(ft).(*types.ClassType); ok && !c.IsInstance && c.IsProtocol() {
			out = append(out, ft)
		}
	}
	return out
}

func (f *isInstanceFilter) filterInstance(subtype, unexpanded, negativeFallback types.Type) types.Type {
	if types.IsNoneInstance(subtype) {
		if f.matchesNone() == f.isPositive {
			return subtype
		}
		return nil
	}
	switch v := subtype.(type) {
	case *types.ModuleType:
		if protos := f.protocolFilters(); f.isPositive && len(protos) > 0 {
			return types.ConvertToInstance(types.CombineTypes(protos...))
		}
	case *types.ClassType:
		if v.IsInstance {
			if protos := f.protocolFilters(); f.isPositive && v.IsBuiltIn("ModuleType") && len(protos) > 0 {
				return types.ConvertToInstance(types.CombineTypes(protos...))
			}
			cond := narrowedCondition(subtype, unexpanded)
			return types.CombineTypes(f.filterClass(unexpanded, subtype, v.CloneAsInstantiable(false), cond, negativeFallback)...)
		}
		// isinstance(cls, SomeMetaclass)
		if f.includesMetaclass() == f.isPositive {
			return negativeFallback
		}
		return nil
	case *types.FunctionType, *types.OverloadedType:
		return types.CombineTypes(f.filterFunction(subtype, types.ConvertToInstance(unexpanded))...)
	}
	if f.isPositive {
		return nil
	}
	return negativeFallback
}

func (f *isInstanceFilter) filterSubclass(subtype, unexpanded, negativeFallback types.Type) types.Type {
	if types.IsNoneTypeClass(subtype) {
		if f.matchesNone() == f.isPositive {
			return subtype
		}
		return nil
	}
	if c, ok := subtype.(*types.ClassType); ok {
		if !c.IsInstance {
			cond := narrowedCondition(subtype, unexpanded)
			return types.CombineTypes(f.filterClass(unexpanded, subtype, c, cond, negativeFallback)...)
		}
		if f.isMetaclassInstance(c) {
			return types.CombineTypes(f.filterMetaclass(c, negativeFallback)...)
		}
	}
	if f.isPositive {
		return nil
	}
	return negativeFallback
}

// filterClass narrows one class against every filter. varType is the
// unexpanded subtype, subtype its concrete form and concreteVar the class
// object of subtype.
func (f *isInstanceFilter) filterClass(varType, subtype types.Type, concreteVar *types.ClassType,
	cond []types.TypeCondition, negativeFallback types.Type) []types.Type {
	m := f.m
	var out []types.Type
	foundSuperclass, indeterminate := false, false

	for _, filter := range f.filters {
		cf, ok := m.MakeTopLevelTypeVarsConcrete(filter).(*types.ClassType)
		if !ok || cf.IsInstance {
			continue
		}
		isSuper := isIsinstanceFilterSuperclass(m, varType, concreteVar, filter, cf, f.isInstanceCheck)
		isSub := isIsinstanceFilterSubclass(m, concreteVar, cf, f.isInstanceCheck)
		if isSuper {
			foundSuperclass = true
		}
		// Both at once only happens when a class derives from Unknown.
		if isSuper && isSub && !concreteVar.IsSameGenericClass(cf) {
			indeterminate = true
		}
		if !f.isPositive {
			continue
		}

		switch {
		case isSuper:
			out = append(out, types.AddConditionToType(f.keptVarType(varType, subtype), cond))
		case isSub:
			if _, isTypeVar := filter.(*types.TypeVarType); isTypeVar {
				out = append(out, types.AddConditionToType(filter, cond))
				continue
			}
			specialized := cf
			if len(cf.Details.TypeParams) > 0 && !cf.IsSameGenericClass(concreteVar) {
				if cf.IsTypeArgExplicit {
					if !m.AssignType(instanceOf(concreteVar), instanceOf(cf), nil) {
						continue
					}
				} else {
					specialized = m.InferTypeArgsFromBase(cf.CloneForSpecialization(nil, false), concreteVar)
				}
			}
			out = append(out, types.AddConditionToType(specialized, cond))
		case concreteVar.IsSameGenericClass(cf):
			if concreteVar.Literal == nil && cf.Literal == nil {
				if inter := intersectSameClass(m, concreteVar, cf); inter != nil {
					out = append(out, inter)
				} else {
					out = append(out, varType)
				}
				indeterminate = true
			}
		case f.allowIntersections && !concreteVar.IsFinal() && !cf.IsFinal():
			inter := types.NewIntersectionClass(concreteVar, cf)
			slog.Debug("synthesized isinstance intersection", "class", inter.Name())
			out = append(out, types.AddConditionToType(inter, types.CombineConditions(cf.Condition, cond)))
		}
	}

	if f.isInstanceCheck {
		for i, t := range out {
			out[i] = types.ConvertToInstance(t)
		}
	} else {
		for i, t := range out {
			if c, ok := t.(*types.ClassType); ok && !c.IsInstance {
				out[i] = c.CloneAsInstantiable(false)
			}
		}
	}
	// With no filter that always matches, the negative branch keeps the
	// original type.
	if !f.isPositive && (!foundSuperclass || indeterminate) {
		out = append(out, negativeFallback)
	}
	return out
}

// keptVarType is the result when a filter is a superclass of the
// variable's type. Only a type variable that keepsTypeVar accepts is kept
// as is; anything else, including a promoted numeric member, narrows to
// the matching expanded subtype.
func (f *isInstanceFilter) keptVarType(varType, subtype types.Type) types.Type {
	if keepsTypeVar(varType) {
		return varType
	}
	return subtype
}

func intersectSameClass(m *types.Model, a, b *types.ClassType) types.Type {
	if m.AssignType(instanceOf(a), instanceOf(b), nil) {
		return b
	}
	if m.AssignType(instanceOf(b), instanceOf(a), nil) {
		return a
	}
	return nil
}

// filterFunction narrows a function or overload. A function passes a
// filter it can be assigned to, such as object, Callable or a protocol
// with only __call__.
func (f *isInstanceFilter) filterFunction(subtype, unexpanded types.Type) []types.Type {
	matched := false
	for _, filter := range f.filters {
		concrete := types.ConvertToInstance(f.m.MakeTopLevelTypeVarsConcrete(filter))
		if f.m.AssignType(concrete, subtype, nil) {
			matched = true
			break
		}
	}
	if matched == f.isPositive {
		return []types.Type{unexpanded}
	}
	return nil
}

// filterMetaclass narrows an instance of a metaclass (such as `type`)
// for issubclass.
func (f *isInstanceFilter) filterMetaclass(metaclass *types.ClassType, negativeFallback types.Type) []types.Type {
	m := f.m
	var out []types.Type
	foundPositive, indeterminate := false, false
	for _, filter := range f.filters {
		cf, ok := m.MakeTopLevelTypeVarsConcrete(filter).(*types.ClassType)
		if !ok || cf.IsInstance || cf.Details.Metaclass == nil {
			out = append(out, metaclass)
			indeterminate = true
			continue
		}
		meta := cf.Details.Metaclass
		overlap := m.AssignType(metaclass, instanceOf(meta), nil)
		if meta.IsBuiltIn("type") && !metaclass.IsBuiltIn("type") {
			overlap = false
		}
		if !overlap {
			continue
		}
		if f.isPositive {
			out = append(out, filter)
			foundPositive = true
		} else if !metaclass.IsSameGenericClass(meta) {
			out = append(out, metaclass)
			indeterminate = true
		}
	}
	for i, t := range out {
		if c, ok := t.(*types.ClassType); ok && !c.IsInstance {
			out[i] = c.CloneAsInstantiable(false)
		}
	}
	if !f.isPositive && (!foundPositive || indeterminate) {
		out = append(out, negativeFallback)
	}
	return out
}

func isIsinstanceFilterSuperclass(m *types.Model, varType types.Type, concreteVar *types.ClassType,
	filter types.Type, concreteFilter *types.ClassType, isInstanceCheck bool) bool {
	if _, isTypeVar := filter.(*types.TypeVarType); isTypeVar || concreteFilter.Literal != nil {
		return types.IsSameType(types.ConvertToInstance(filter), varType)
	}
	// A filter standing for all subclasses of a class says nothing about
	// its superclass relationship.
	if concreteFilter.IncludeSubclasses {
		return false
	}
	if types.IsDerivedFrom(concreteVar, concreteFilter) || types.DerivesFromAnyClass(concreteVar) {
		return true
	}
	if isInstanceCheck && concreteFilter.IsProtocol() && m.AssignType(instanceOf(concreteFilter), instanceOf(concreteVar), nil) {
		return true
	}
	// isinstance(td, dict) is true at runtime for a TypedDict.
	return concreteFilter.IsBuiltIn("dict") && concreteVar.IsTypedDict()
}

func isIsinstanceFilterSubclass(m *types.Model, concreteVar, concreteFilter *types.ClassType, isInstanceCheck bool) bool {
	if types.IsDerivedFrom(concreteFilter, concreteVar) || types.DerivesFromAnyClass(concreteFilter) {
		return true
	}
	return isInstanceCheck && concreteVar.IsProtocol() && m.AssignType(instanceOf(concreteVar), instanceOf(concreteFilter), nil)
}

// NarrowTypeForTypeGuard narrows t after a call to a user-defined type
// guard. A TypeGuard replaces the type on the positive branch and leaves
// it alone otherwise. A TypeIs narrows both branches the way isinstance
// does, with type variables kept bound.
func NarrowTypeForTypeGuard(m *types.Model, t types.Type, guard types.Type, isPositive, isStrict bool) types.Type {
	if !isStrict {
		if !isPositive {
			return t
		}
		result := guard
		for _, s := range types.Subtypes(t) {
			result = types.AddConditionToType(result, typeVarCondition(s))
		}
		return result
	}
	filters := make([]types.Type, 0, len(types.Subtypes(guard)))
	for _, s := range types.Subtypes(guard) {
		filters = append(filters, instantiableOf(s))
	}
	return NarrowTypeForIsInstance(m, t, filters, true, isPositive)
}
