package types

// CombineTypes builds the union of the given types. Nested unions are
// flattened, Never members dropped, duplicates removed and literal members
// absorbed by a non-literal member of the same class. Any and Unknown
// absorb everything.
func CombineTypes(in ...Type) Type {
	var flat []Type
	for _, t := range in {
		if t == nil {
			continue
		}
		switch v := t.(type) {
		case *UnionType:
			flat = append(flat, v.Members...)
		case *NeverType:
		default:
			flat = append(flat, t)
		}
	}
	if len(flat) == 0 {
		return Never()
	}

	var anyType *AnyType
	for _, t := range flat {
		if a, ok := t.(*AnyType); ok {
			if anyType == nil || a.IsUnknown {
				anyType = a
			}
		}
	}
	if anyType != nil {
		return anyType
	}

	var members []Type
	for _, t := range flat {
		if !containsSameType(members, t) {
			members = append(members, t)
		}
	}
	members = mergeBoolLiterals(members)

	out := members[:0:0]
	for _, t := range members {
		if isLiteralAbsorbed(t, members) {
			continue
		}
		out = append(out, t)
	}
	if len(out) == 1 {
		return out[0]
	}
	return &UnionType{Members: out}
}

func containsSameType(list []Type, t Type) bool {
	for _, e := range list {
		if IsSameType(e, t) {
			return true
		}
	}
	return false
}

// isLiteralAbsorbed reports whether t is a literal instance whose
// non-literal class instance is also present.
func isLiteralAbsorbed(t Type, members []Type) bool {
	c, ok := t.(*ClassType)
	if !ok || c.Literal == nil {
		return false
	}
	for _, m := range members {
		mc, ok := m.(*ClassType)
		if !ok || mc.Literal != nil || !mc.IsInstance || !c.IsInstance {
			continue
		}
		if mc.IsSameGenericClass(c) && conditionsEqual(mc.Condition, c.Condition) {
			return true
		}
	}
	return false
}

// mergeBoolLiterals replaces Literal[True] together with Literal[False] by
// the first of them widened to bool.
func mergeBoolLiterals(members []Type) []Type {
	trueIdx, falseIdx := -1, -1
	for i, m := range members {
		c, ok := m.(*ClassType)
		if !ok || !c.IsInstance || !c.IsBuiltIn("bool") || len(c.Condition) > 0 || c.TypeGuard != nil {
			continue
		}
		if b, ok := c.Literal.(BoolLiteral); ok {
			if b {
				trueIdx = i
			} else {
				falseIdx = i
			}
		}
	}
	if trueIdx < 0 || falseIdx < 0 {
		return members
	}
	first, second := trueIdx, falseIdx
	if second < first {
		first, second = second, first
	}
	out := append([]Type{}, members[:second]...)
	out = append(out, members[second+1:]...)
	out[first] = members[first].(*ClassType).CloneWithLiteral(nil)
	return out
}

// MapSubtypes applies fn to each member of t. A nil result drops the member.
// When no member changes the original type is returned.
func MapSubtypes(t Type, fn func(Type) Type) Type {
	u, ok := t.(*UnionType)
	if !ok {
		out := fn(t)
		if out == nil {
			return Never()
		}
		return out
	}
	changed := false
	results := make([]Type, 0, len(u.Members))
	for _, m := range u.Members {
		r := fn(m)
		if r != m {
			changed = true
		}
		if r != nil {
			results = append(results, r)
		}
	}
	if !changed {
		return t
	}
	return CombineTypes(results...)
}

// DoForEachSubtype calls fn for every member of t.
func DoForEachSubtype(t Type, fn func(Type)) {
	if u, ok := t.(*UnionType); ok {
		for _, m := range u.Members {
			fn(m)
		}
		return
	}
	fn(t)
}

// Subtypes returns the members of t (t itself when not a union).
func Subtypes(t Type) []Type {
	if u, ok := t.(*UnionType); ok {
		return u.Members
	}
	if IsNever(t) {
		return nil
	}
	return []Type{t}
}

// IsSameType compares two types structurally, including conditions.
func IsSameType(a, b Type) bool {
	if a == b {
		return true
	}
	switch av := a.(type) {
	case *AnyType:
		_, ok := b.(*AnyType)
		return ok
	case *NeverType:
		_, ok := b.(*NeverType)
		return ok
	case *ModuleType:
		bv, ok := b.(*ModuleType)
		return ok && av.Name == bv.Name
	case *ClassType:
		bv, ok := b.(*ClassType)
		return ok && isSameClass(av, bv)
	case *FunctionType:
		bv, ok := b.(*FunctionType)
		return ok && av.Details == bv.Details && av.BoundToSelf == bv.BoundToSelf && conditionsEqual(av.Condition, bv.Condition)
	case *OverloadedType:
		bv, ok := b.(*OverloadedType)
		if !ok || len(av.Overloads) != len(bv.Overloads) {
			return false
		}
		for i := range av.Overloads {
			if !IsSameType(av.Overloads[i], bv.Overloads[i]) {
				return false
			}
		}
		return true
	case *TypeVarType:
		bv, ok := b.(*TypeVarType)
		return ok && av.key() == bv.key() && av.IsInstantiable == bv.IsInstantiable
	case *UnionType:
		bv, ok := b.(*UnionType)
		if !ok || len(av.Members) != len(bv.Members) {
			return false
		}
		for _, m := range av.Members {
			if !containsSameType(bv.Members, m) {
				return false
			}
		}
		return true
	}
	return false
}

func isSameClass(a, b *ClassType) bool {
	if a.Details != b.Details || a.IsInstance != b.IsInstance {
		return false
	}
	if !LiteralEqual(a.Literal, b.Literal) || !conditionsEqual(a.Condition, b.Condition) {
		return false
	}
	if (a.TypeGuard == nil) != (b.TypeGuard == nil) {
		return false
	}
	if a.TypeGuard != nil && (a.TypeGuard.IsStrict != b.TypeGuard.IsStrict || !IsSameType(a.TypeGuard.Type, b.TypeGuard.Type)) {
		return false
	}
	if !sameTypedDictEntries(a.TypedDictNarrowedEntries, b.TypedDictNarrowedEntries) {
		return false
	}
	if a.TupleArgs != nil || b.TupleArgs != nil {
		if len(a.TupleArgs) != len(b.TupleArgs) || (a.TupleArgs == nil) != (b.TupleArgs == nil) {
			return false
		}
		for i := range a.TupleArgs {
			if a.TupleArgs[i].IsUnbounded != b.TupleArgs[i].IsUnbounded || !IsSameType(a.TupleArgs[i].Type, b.TupleArgs[i].Type) {
				return false
			}
		}
		return true
	}
	if len(a.TypeArgs) != len(b.TypeArgs) {
		return false
	}
	for i := range a.TypeArgs {
		if !IsSameType(a.TypeArgs[i], b.TypeArgs[i]) {
			return false
		}
	}
	return true
}

func sameTypedDictEntries(a, b map[string]*TypedDictEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || av.IsProvided != bv.IsProvided || av.IsRequired != bv.IsRequired {
			return false
		}
	}
	return true
}

// ConvertToInstance converts class objects to instances (type[C] -> C).
func ConvertToInstance(t Type) Type {
	return MapSubtypes(t, func(s Type) Type {
		switch v := s.(type) {
		case *ClassType:
			if !v.IsInstance {
				return v.CloneAsInstance(true)
			}
		case *TypeVarType:
			if v.IsInstantiable {
				return v.CloneAsInstance()
			}
		}
		return s
	})
}

// ConvertToInstantiable converts instances to class objects (C -> type[C]).
func ConvertToInstantiable(t Type) Type {
	return MapSubtypes(t, func(s Type) Type {
		switch v := s.(type) {
		case *ClassType:
			if v.IsInstance {
				return v.CloneAsInstantiable(true)
			}
		case *TypeVarType:
			if !v.IsInstantiable {
				return v.CloneAsInstantiable()
			}
		}
		return s
	})
}

// StripLiteral widens literal instances to their class.
func StripLiteral(t Type) Type {
	return MapSubtypes(t, func(s Type) Type {
		if c, ok := s.(*ClassType); ok && c.Literal != nil {
			return c.CloneWithLiteral(nil)
		}
		return s
	})
}

// IsLiteralType reports a class instance pinned to a literal value.
func IsLiteralType(t Type) bool {
	c, ok := t.(*ClassType)
	return ok && c.IsInstance && c.Literal != nil
}

// IsLiteralTypeOrUnion reports whether every member of t is a literal.
func IsLiteralTypeOrUnion(t Type) bool {
	members := Subtypes(t)
	if len(members) == 0 {
		return false
	}
	for _, m := range members {
		if !IsLiteralType(m) {
			return false
		}
	}
	return true
}

func IsNoneInstance(t Type) bool {
	c, ok := t.(*ClassType)
	return ok && c.IsInstance && c.IsBuiltIn("NoneType")
}

func IsNoneTypeClass(t Type) bool {
	c, ok := t.(*ClassType)
	return ok && !c.IsInstance && c.IsBuiltIn("NoneType")
}

// IsInstantiableClass reports a class object (not an instance).
func IsInstantiableClass(t Type) bool {
	c, ok := t.(*ClassType)
	return ok && !c.IsInstance
}

func IsClassInstance(t Type) bool {
	c, ok := t.(*ClassType)
	return ok && c.IsInstance
}

// ContainsNone reports whether any member of t is None.
func ContainsNone(t Type) bool {
	for _, m := range Subtypes(t) {
		if IsNoneInstance(m) {
			return true
		}
	}
	return false
}
