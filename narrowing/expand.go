package narrowing

import "github.com/panyam/pynarrow/types"

// mapSubtypesExpandTypeVars calls fn for each member of t after top-level
// type variables are made concrete. fn also receives the member of t the
// expanded subtype came from. Members for which fn returns nil are
// dropped.
func mapSubtypesExpandTypeVars(m *types.Model, t types.Type, expand func(types.Type) types.Type,
	fn func(subtype, unexpanded types.Type) types.Type) types.Type {
	var out []types.Type
	changed := false
	for _, unexpanded := range types.Subtypes(t) {
		expanded := m.MakeTopLevelTypeVarsConcrete(unexpanded)
		if expand != nil {
			expanded = expand(expanded)
		}
		for _, s := range types.Subtypes(expanded) {
			r := fn(s, unexpanded)
			if r != unexpanded {
				changed = true
			}
			if r != nil {
				out = append(out, r)
			}
		}
	}
	if !changed {
		return t
	}
	return types.CombineTypes(out...)
}

// promotions lists the implicit promotions of numeric builtins.
var promotions = map[string][]string{
	"float":   {"int"},
	"complex": {"float", "int"},
}

// expandPromotionTypes widens float to float | int and complex to
// complex | float | int so isinstance can tell the alternatives apart.
func expandPromotionTypes(m *types.Model, t types.Type) types.Type {
	return types.MapSubtypes(t, func(s types.Type) types.Type {
		c, ok := s.(*types.ClassType)
		if !ok || !c.IsInstance || c.Literal != nil || !c.IsBuiltIn() {
			return s
		}
		names, ok := promotions[c.Details.Name]
		if !ok {
			return s
		}
		members := []types.Type{s}
		for _, name := range names {
			members = append(members, types.AddConditionToType(m.Instance(name), c.Condition))
		}
		return types.CombineTypes(members...)
	})
}

// keepsTypeVar reports whether narrowing keeps t unexpanded: t is a type
// variable with no constraints and a bound that is not a union.
func keepsTypeVar(t types.Type) bool {
	tv, ok := t.(*types.TypeVarType)
	return ok && !tv.HasConstraints() && !types.IsUnion(tv.Details.Bound)
}

// typeVarCondition returns the condition recording that a value came from
// narrowing the unconstrained type variable tv.
func typeVarCondition(t types.Type) []types.TypeCondition {
	tv, ok := t.(*types.TypeVarType)
	if !ok || tv.HasConstraints() {
		return nil
	}
	return []types.TypeCondition{{TypeVar: tv.CloneAsInstance(), ConstraintIndex: 0}}
}
