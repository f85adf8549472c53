package narrowing

import "github.com/panyam/pynarrow/types"

// NarrowTypeForTupleLength narrows tuples for `len(x) == length` or, with
// isLessThan, `len(x) < length`. Fixed-length tuples are kept or dropped
// outright. Tuples with an unbounded element are expanded into the
// fixed-length shapes the test allows.
func NarrowTypeForTupleLength(m *types.Model, t types.Type, length int64, isPositive, isLessThan bool) types.Type {
	return types.MapSubtypes(t, func(subtype types.Type) types.Type {
		c, ok := m.MakeTopLevelTypeVarsConcrete(subtype).(*types.ClassType)
		if !ok || !c.IsInstance || !types.IsTupleClass(c) {
			return subtype
		}
		args := types.SpecializedTupleArgs(c)
		if args == nil {
			return subtype
		}
		if types.UnboundedIndex(args) < 0 {
			matches := int64(len(args)) == length
			if isLessThan {
				matches = int64(len(args)) < length
			}
			if matches == isPositive {
				return subtype
			}
			return nil
		}

		// Number of copies of the unbounded element needed to reach length.
		toAdd := length - int64(len(args)) + 1
		if !isLessThan {
			if toAdd < 0 {
				if isPositive {
					return nil
				}
				return subtype
			}
			if !isPositive || toAdd > types.MaxTupleExpansion {
				return subtype
			}
			return expandUnboundedTuple(c, args, int(toAdd), false)
		}

		if toAdd > types.MaxTupleExpansion {
			return subtype
		}
		if isPositive {
			if toAdd < 1 {
				return nil
			}
			members := make([]types.Type, 0, toAdd)
			for i := 0; i < int(toAdd); i++ {
				members = append(members, expandUnboundedTuple(c, args, i, false))
			}
			return types.CombineTypes(members...)
		}
		if toAdd < 1 {
			return subtype
		}
		return expandUnboundedTuple(c, args, int(toAdd), true)
	})
}

// expandUnboundedTuple replaces the unbounded element of a tuple shape
// with count fixed copies, keeping the unbounded element after them when
// keepUnbounded is set.
func expandUnboundedTuple(c *types.ClassType, args []types.TupleArg, count int, keepUnbounded bool) *types.ClassType {
	out := make([]types.TupleArg, 0, len(args)+count)
	for _, a := range args {
		if !a.IsUnbounded {
			out = append(out, a)
			continue
		}
		for i := 0; i < count; i++ {
			out = append(out, types.TupleArg{Type: a.Type})
		}
		if keepUnbounded {
			out = append(out, a)
		}
	}
	return types.SpecializeTupleClass(c, out)
}

// NarrowTypeForTruthiness narrows t for `if x` (positive) or `if not x`.
func NarrowTypeForTruthiness(m *types.Model, t types.Type, isPositive bool) types.Type {
	return types.MapSubtypes(t, func(subtype types.Type) types.Type {
		if isPositive {
			if m.CanBeTruthy(subtype) {
				return m.RemoveFalsinessFromType(subtype)
			}
			return nil
		}
		if m.CanBeFalsy(subtype) {
			return m.RemoveTruthinessFromType(subtype)
		}
		return nil
	})
}

// containerClasses are the builtin containers whose element type can
// narrow an `in` test.
var containerClasses = []string{"list", "set", "frozenset", "deque", "tuple", "dict", "defaultdict", "OrderedDict"}

// ContainerElementType returns the element type of a specialized builtin
// container, or nil.
func ContainerElementType(container types.Type) types.Type {
	c, ok := container.(*types.ClassType)
	if !ok || !c.IsInstance || !c.IsBuiltIn(containerClasses...) {
		return nil
	}
	if types.IsTupleClass(c) {
		if args := types.SpecializedTupleArgs(c); args != nil {
			return types.TupleElementType(args)
		}
	}
	if len(c.TypeArgs) < 1 {
		return nil
	}
	return c.TypeArgs[0]
}

// NarrowTypeForContainer narrows t for `x in container`. The negative
// branch can only narrow against fixed-length tuples of literals or None.
func NarrowTypeForContainer(m *types.Model, t types.Type, container types.Type, isPositive bool) types.Type {
	if isPositive {
		elem := ContainerElementType(container)
		if elem == nil {
			return t
		}
		return narrowTypeForContainerElement(m, t, m.MakeTopLevelTypeVarsConcrete(elem))
	}

	c, ok := container.(*types.ClassType)
	if !ok || !c.IsInstance || c.TupleArgs == nil {
		return t
	}
	var eliminate []types.Type
	for _, a := range c.TupleArgs {
		if !a.IsUnbounded && (types.IsNoneInstance(a.Type) || types.IsLiteralType(a.Type)) {
			eliminate = append(eliminate, a.Type)
		}
	}
	if len(eliminate) == 0 {
		return t
	}
	eliminated := func(s types.Type) bool {
		for _, e := range eliminate {
			if types.IsSameType(e, s) {
				return true
			}
		}
		return false
	}
	return types.MapSubtypes(t, func(subtype types.Type) types.Type {
		subtype = m.MakeTopLevelTypeVarsConcrete(subtype)
		if sc, ok := subtype.(*types.ClassType); ok && sc.IsInstance && sc.Literal == nil {
			if all := EnumerateLiteralsForType(m, sc); len(all) > 0 {
				var rest []types.Type
				for _, lit := range all {
					if !eliminated(lit) {
						rest = append(rest, lit)
					}
				}
				return types.CombineTypes(rest...)
			}
		}
		if eliminated(subtype) {
			return nil
		}
		return subtype
	})
}

// narrowTypeForContainerElement keeps the parts of t that may equal some
// element. Reference subtypes narrower than the element type are kept;
// element subtypes narrower than the reference replace it.
func narrowTypeForContainerElement(m *types.Model, t types.Type, elem types.Type) types.Type {
	canNarrow := true
	elemWithoutLiteral := types.StripLiteral(elem)

	supertypes := mapSubtypesExpandTypeVars(m, t, nil, func(subtype, _ types.Type) types.Type {
		if types.IsAnyOrUnknown(subtype) {
			canNarrow = false
			return subtype
		}
		if c, ok := subtype.(*types.ClassType); ok && c.IsInstance && c.IsBuiltIn("type") {
			canNarrow = false
			return subtype
		}
		if m.AssignType(elem, subtype, nil) {
			return subtype
		}
		if m.AssignType(elemWithoutLiteral, subtype, nil) {
			return types.MapSubtypes(elem, func(e types.Type) types.Type {
				ec, ok := e.(*types.ClassType)
				sc, _ := subtype.(*types.ClassType)
				if ok && ec.IsInstance && sc != nil && ec.IsSameGenericClass(sc) {
					return e
				}
				return nil
			})
		}
		return nil
	})

	subtypes := mapSubtypesExpandTypeVars(m, elem, nil, func(e, _ types.Type) types.Type {
		if types.IsAnyOrUnknown(e) {
			canNarrow = false
			return t
		}
		if m.AssignType(t, e, nil) {
			return e
		}
		return nil
	})

	if !canNarrow {
		return t
	}
	return types.CombineTypes(supertypes, subtypes)
}

// NarrowTypeForTypedDictKey narrows TypedDicts for `"key" in x`. The
// positive branch marks a non-required entry as provided and drops final
// TypedDicts that lack the key. The negative branch drops TypedDicts where
// the key is required or already provided.
func NarrowTypeForTypedDictKey(m *types.Model, t types.Type, key *types.ClassType, isPositive bool) types.Type {
	name, ok := key.Literal.(types.StrLiteral)
	if !ok {
		return t
	}
	return mapSubtypesExpandTypeVars(m, t, nil, func(subtype, _ types.Type) types.Type {
		c, ok := subtype.(*types.ClassType)
		if !ok || !c.IsInstance || !c.IsTypedDict() {
			return subtype
		}
		entries := TypedDictEntries(c)
		entry := entries[string(name)]
		if !isPositive {
			if entry != nil && (entry.IsRequired || entry.IsProvided) {
				return nil
			}
			return subtype
		}
		if entry == nil {
			if c.IsFinal() {
				return nil
			}
			return subtype
		}
		if entry.IsRequired || entry.IsProvided {
			return subtype
		}
		narrowed := make(map[string]*types.TypedDictEntry, len(c.TypedDictNarrowedEntries)+1)
		for k, v := range c.TypedDictNarrowedEntries {
			narrowed[k] = v
		}
		narrowed[string(name)] = &types.TypedDictEntry{
			ValueType:  entry.ValueType,
			IsReadOnly: entry.IsReadOnly,
			IsProvided: true,
		}
		return c.CloneForNarrowedEntries(narrowed)
	})
}
