package types

// MakeTopLevelTypeVarsConcrete replaces each top-level type variable by
// its concrete form: the union of its constraints (each conditioned on the
// variable), its bound, or object.
func (m *Model) MakeTopLevelTypeVarsConcrete(t Type) Type {
	return MapSubtypes(t, func(s Type) Type {
		if tv, ok := s.(*TypeVarType); ok {
			return m.concretizeTypeVar(tv)
		}
		return s
	})
}

func (m *Model) concretizeTypeVar(tv *TypeVarType) Type {
	if tv.HasConstraints() {
		members := make([]Type, 0, len(tv.Details.Constraints))
		for i, c := range tv.Details.Constraints {
			ct := AddConditionToType(c, []TypeCondition{{TypeVar: tv.CloneAsInstance(), ConstraintIndex: i}})
			if tv.IsInstantiable {
				ct = ConvertToInstantiable(ct)
			}
			members = append(members, ct)
		}
		return CombineTypes(members...)
	}
	var bound Type = m.ObjectInstance()
	if tv.Details.Bound != nil {
		bound = tv.Details.Bound
	}
	if tv.IsInstantiable {
		return ConvertToInstantiable(bound)
	}
	return bound
}

// TupleElementType returns the union of element types of a tuple shape.
func TupleElementType(args []TupleArg) Type {
	elems := make([]Type, len(args))
	for i, a := range args {
		elems[i] = a.Type
	}
	return CombineTypes(elems...)
}
