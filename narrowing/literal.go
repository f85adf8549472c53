package narrowing

import (
	"github.com/hashicorp/go-set/v3"
	"github.com/panyam/pynarrow/types"
)

// EnumerateLiteralsForType lists every literal value of a bool or enum
// type, or returns nil when the values cannot be enumerated. Flag enums
// are not enumerable.
func EnumerateLiteralsForType(m *types.Model, c *types.ClassType) []*types.ClassType {
	if c.IsBuiltIn("bool") {
		return []*types.ClassType{m.BoolLiteral(true), m.BoolLiteral(false)}
	}
	if !c.IsEnum() {
		return nil
	}
	for _, base := range c.Details.MRO {
		if bc, ok := base.(*types.ClassType); ok && bc.IsBuiltIn("Flag") {
			return nil
		}
	}
	seen := set.New[string](len(c.Details.Fields))
	var out []*types.ClassType
	for _, f := range c.Details.Fields {
		member, ok := f.Type.(*types.ClassType)
		if !ok || !member.IsInstance || !member.IsSameGenericClass(c) {
			continue
		}
		lit, ok := member.Literal.(*types.EnumLiteral)
		if !ok || !seen.Insert(lit.ItemName) {
			continue
		}
		out = append(out, member.CloneForCondition(c.Condition))
	}
	return out
}

func isSameLiteral(a, b *types.ClassType) bool {
	return a.IsSameGenericClass(b) && types.LiteralEqual(a.Literal, b.Literal)
}

// NarrowTypeForLiteralComparison narrows t for `x == L` or, with
// isIsOperator, `x is L`.
func NarrowTypeForLiteralComparison(m *types.Model, t types.Type, literal *types.ClassType, isPositive, isIsOperator bool) types.Type {
	return types.MapSubtypes(t, func(subtype types.Type) types.Type {
		subtype = m.MakeTopLevelTypeVarsConcrete(subtype)
		if types.IsAnyOrUnknown(subtype) {
			if isPositive {
				return literal
			}
			return subtype
		}
		c, ok := subtype.(*types.ClassType)
		if ok && c.IsInstance && c.IsSameGenericClass(literal) {
			if c.Literal != nil {
				if isSameLiteral(c, literal) != isPositive {
					return nil
				}
				return subtype
			}
			if isPositive {
				return literal
			}
			// With every value enumerable, the negative branch keeps the
			// values other than L.
			if all := EnumerateLiteralsForType(m, c); len(all) > 0 {
				var rest []types.Type
				for _, lit := range all {
					if !isSameLiteral(lit, literal) {
						rest = append(rest, lit)
					}
				}
				return types.CombineTypes(rest...)
			}
			return subtype
		}
		if isPositive && (isIsOperator || types.IsNoneInstance(subtype)) {
			if m.AssignType(subtype, literal, nil) {
				return literal
			}
			return nil
		}
		return subtype
	})
}

// NarrowTypeForTypeIs narrows t for `type(x) is C`.
func NarrowTypeForTypeIs(m *types.Model, t types.Type, cls *types.ClassType, isPositive bool) types.Type {
	return mapSubtypesExpandTypeVars(m, t, nil, func(subtype, unexpanded types.Type) types.Type {
		switch {
		case types.IsAnyOrUnknown(subtype):
			if isPositive {
				return cls.CloneAsInstance(false)
			}
			return subtype
		case types.IsClassInstance(subtype):
			c := subtype.(*types.ClassType)
			matches := types.IsDerivedFrom(cls, c)
			if isPositive {
				if matches {
					if c.IsSameGenericClass(cls) {
						return subtype
					}
					return cls.CloneAsInstance(false)
				}
				if !cls.IncludeSubclasses {
					return nil
				}
			} else if !cls.IncludeSubclasses {
				// A subclass instance still passes `type(x) is not C`, so
				// only final classes can be eliminated.
				if matches && c.IsFinal() {
					return nil
				}
				return subtype
			}
		}
		return unexpanded
	})
}

// NarrowTypeForClassComparison narrows a class-object reference for
// `x is C`.
func NarrowTypeForClassComparison(m *types.Model, t types.Type, cls *types.ClassType, isPositive bool) types.Type {
	return types.MapSubtypes(t, func(subtype types.Type) types.Type {
		if !isPositive {
			return subtype
		}
		concrete := m.MakeTopLevelTypeVarsConcrete(subtype)
		if types.IsNoneInstance(concrete) {
			if types.IsNoneTypeClass(cls) {
				return cls
			}
			return nil
		}
		if c, ok := concrete.(*types.ClassType); ok && c.IsInstance && c.IsBuiltIn("type") {
			if len(c.TypeArgs) > 0 {
				concrete = types.ConvertToInstantiable(c.TypeArgs[0])
			} else {
				concrete = types.Unknown()
			}
		}
		if types.IsAnyOrUnknown(concrete) {
			return cls
		}
		c, ok := concrete.(*types.ClassType)
		if !ok {
			return subtype
		}
		if c.IsInstance {
			if c.IsBuiltIn("object") {
				return cls
			}
			return nil
		}
		isSuper := isIsinstanceFilterSuperclass(m, subtype, c, cls, cls, false)
		if !cls.IncludeSubclasses {
			if !c.IncludeSubclasses {
				if c.IsSameGenericClass(cls) {
					return cls
				}
				return nil
			}
			if isSuper {
				return cls
			}
			if isIsinstanceFilterSubclass(m, c, cls, false) {
				return types.AddConditionToType(cls, c.Condition)
			}
			return nil
		}
		if c.IsFinal() && !isSuper {
			return nil
		}
		return subtype
	})
}

// NarrowTypeForDiscriminatedTupleEntry narrows tuples for `x[N] == L`
// when slot N of the tuple holds literal types.
func NarrowTypeForDiscriminatedTupleEntry(m *types.Model, t types.Type, index *types.ClassType, literal types.Type, isPositive bool) types.Type {
	n, ok := index.Literal.(types.IntLiteral)
	if !ok {
		return t
	}
	return types.MapSubtypes(t, func(subtype types.Type) types.Type {
		c, ok := subtype.(*types.ClassType)
		if !ok || !c.IsInstance || !types.IsTupleClass(c) {
			return subtype
		}
		args := types.SpecializedTupleArgs(c)
		if args == nil || types.UnboundedIndex(args) >= 0 || n < 0 || int(n) >= len(args) {
			return subtype
		}
		entry := args[n].Type
		if !types.IsLiteralTypeOrUnion(entry) {
			return subtype
		}
		if isPositive {
			if m.AssignType(entry, literal, nil) {
				return subtype
			}
			return nil
		}
		if m.AssignType(literal, entry, nil) {
			return nil
		}
		return subtype
	})
}

// TypedDictEntries returns the entries of a TypedDict instance with any
// narrowed entries applied.
func TypedDictEntries(c *types.ClassType) map[string]*types.TypedDictEntry {
	out := make(map[string]*types.TypedDictEntry, len(c.Details.TypedDictEntries))
	for k, v := range c.Details.TypedDictEntries {
		out[k] = v
	}
	for k, v := range c.TypedDictNarrowedEntries {
		out[k] = v
	}
	return out
}

// NarrowTypeForDiscriminatedDictEntry narrows TypedDicts for
// `x["key"] == L`. If any member is not a TypedDict with a literal entry
// for key, t is returned unchanged.
func NarrowTypeForDiscriminatedDictEntry(m *types.Model, t types.Type, key *types.ClassType, literal types.Type, isPositive bool) types.Type {
	name, ok := key.Literal.(types.StrLiteral)
	if !ok {
		return t
	}
	canNarrow := true
	narrowed := types.MapSubtypes(t, func(subtype types.Type) types.Type {
		c, ok := subtype.(*types.ClassType)
		if ok && c.IsInstance && c.IsTypedDict() {
			entry := TypedDictEntries(c)[string(name)]
			if entry != nil && types.IsLiteralTypeOrUnion(entry.ValueType) {
				found := false
				for _, lit := range types.Subtypes(literal) {
					if isPositive && m.AssignType(entry.ValueType, lit, nil) {
						found = true
					}
					if !isPositive && !m.AssignType(lit, entry.ValueType, nil) {
						found = true
					}
				}
				if found {
					return subtype
				}
				return nil
			}
		}
		canNarrow = false
		return subtype
	})
	if !canNarrow {
		return t
	}
	return narrowed
}

// isLiteralOrNoneUnion reports whether every member of t is a literal or
// None.
func isLiteralOrNoneUnion(t types.Type) bool {
	members := types.Subtypes(t)
	for _, s := range members {
		if !types.IsLiteralType(s) && !types.IsNoneInstance(s) {
			return false
		}
	}
	return len(members) > 0
}

// NarrowTypeForDiscriminatedField narrows t for `x.member == L` (or
// `x.member is L`) using the declared literal type of member on each
// subtype.
func NarrowTypeForDiscriminatedField(m *types.Model, t types.Type, member string, literal types.Type, isPositive, isIsOperator bool) types.Type {
	return types.MapSubtypes(t, func(subtype types.Type) types.Type {
		info := lookUpMember(subtype, member)
		if info == nil || !info.Field.HasDeclaredType {
			return subtype
		}
		memberType := types.TypeOfMember(info)
		if !isLiteralOrNoneUnion(memberType) {
			return subtype
		}
		if isPositive {
			if m.AssignType(memberType, literal, nil) {
				return subtype
			}
			return nil
		}
		if m.AssignType(literal, memberType, nil) {
			return nil
		}
		return subtype
	})
}
