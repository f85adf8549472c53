package narrowing

import "github.com/panyam/pynarrow/types"

// adjustedSubtype keeps an unconstrained type variable with a non-union
// bound in its unexpanded form. Any other subtype uses its expanded form
// tagged with the variable it came from.
func adjustedSubtype(subtype, unexpanded types.Type) types.Type {
	if keepsTypeVar(unexpanded) {
		return unexpanded
	}
	return types.AddConditionToType(subtype, typeVarCondition(unexpanded))
}

// narrowedCondition combines the conditions of an expanded subtype with
// the condition implied by the type variable it came from.
func narrowedCondition(subtype, unexpanded types.Type) []types.TypeCondition {
	return types.CombineConditions(types.GetCondition(subtype), typeVarCondition(unexpanded))
}

// NarrowTypeForIsNone narrows t for `x is None` (positive) or
// `x is not None` (negative).
func NarrowTypeForIsNone(m *types.Model, t types.Type, isPositive bool) types.Type {
	includesNone := false
	result := mapSubtypesExpandTypeVars(m, t, nil, func(subtype, unexpanded types.Type) types.Type {
		if types.IsAnyOrUnknown(subtype) {
			// Any may or may not be None.
			return subtype
		}
		adjusted := adjustedSubtype(subtype, unexpanded)
		c, isInstance := subtype.(*types.ClassType)
		isInstance = isInstance && c.IsInstance

		if isInstance && c.IsBuiltIn("object") {
			includesNone = true
			if isPositive {
				return types.AddConditionToType(m.NoneInstance(), narrowedCondition(subtype, unexpanded))
			}
			return adjusted
		}
		if types.IsNoneInstance(subtype) == isPositive {
			includesNone = true
			return adjusted
		}
		if isInstance && c.IsProtocol() && m.AssignType(c, m.NoneInstance(), nil) {
			if isPositive {
				return types.AddConditionToType(m.NoneInstance(), narrowedCondition(subtype, unexpanded))
			}
			return adjusted
		}
		return nil
	})

	// Once None is known to be possible, a positive test leaves only None.
	if isPositive && includesNone {
		return types.MapSubtypes(result, func(s types.Type) types.Type {
			if types.IsNoneInstance(s) {
				return s
			}
			return nil
		})
	}
	return result
}

// NarrowTupleTypeForIsNone narrows tuples for `x[index] is None`. Tuples
// whose slot cannot be None are dropped on the positive branch; tuples
// whose slot is exactly None are dropped on the negative branch.
func NarrowTupleTypeForIsNone(m *types.Model, t types.Type, isPositive bool, index int64) types.Type {
	return mapSubtypesExpandTypeVars(m, t, nil, func(subtype, unexpanded types.Type) types.Type {
		c, ok := subtype.(*types.ClassType)
		if !ok || !c.IsInstance || !types.IsTupleClass(c) {
			return subtype
		}
		args := types.SpecializedTupleArgs(c)
		if args == nil || types.UnboundedIndex(args) >= 0 || index < 0 || index >= int64(len(args)) {
			return subtype
		}
		entry := m.MakeTopLevelTypeVarsConcrete(args[index].Type)
		if isPositive {
			if !m.AssignType(entry, m.NoneInstance(), nil) {
				return nil
			}
		} else if types.IsNoneInstance(entry) {
			return nil
		}
		return subtype
	})
}

// NarrowTypeForIsEllipsis narrows t for `x is ...`.
func NarrowTypeForIsEllipsis(m *types.Model, t types.Type, isPositive bool) types.Type {
	return mapSubtypesExpandTypeVars(m, t, nil, func(subtype, unexpanded types.Type) types.Type {
		if types.IsAnyOrUnknown(subtype) {
			return subtype
		}
		adjusted := adjustedSubtype(subtype, unexpanded)
		c, ok := subtype.(*types.ClassType)
		if ok && c.IsInstance && c.IsBuiltIn("object") {
			if isPositive {
				return types.AddConditionToType(m.Instance("EllipsisType"), narrowedCondition(subtype, unexpanded))
			}
			return adjusted
		}
		isEllipsis := ok && c.IsInstance && c.IsBuiltIn("EllipsisType")
		if isEllipsis == isPositive {
			return adjusted
		}
		return nil
	})
}

// NarrowTypeForFieldIsNone narrows t for `x.member is None` using the
// declared type of member on each subtype.
func NarrowTypeForFieldIsNone(m *types.Model, t types.Type, member string, isPositive bool) types.Type {
	return types.MapSubtypes(t, func(subtype types.Type) types.Type {
		info := lookUpMember(subtype, member)
		if info == nil || !info.Field.HasDeclaredType {
			return subtype
		}
		memberType := m.MakeTopLevelTypeVarsConcrete(types.TypeOfMember(info))
		if isPositive {
			if m.AssignType(memberType, m.NoneInstance(), nil) {
				return subtype
			}
			return nil
		}
		if types.IsNoneInstance(memberType) {
			return nil
		}
		return subtype
	})
}

// lookUpMember finds member on an instance or class object.
func lookUpMember(t types.Type, member string) *types.ClassMember {
	c, ok := t.(*types.ClassType)
	if !ok {
		return nil
	}
	if c.IsInstance {
		return types.LookUpObjectMember(c, member)
	}
	return types.LookUpClassMember(c, member, false)
}
