package types

// CanBeFalsy reports whether some value of t may evaluate false.
func (m *Model) CanBeFalsy(t Type) bool {
	for _, s := range Subtypes(t) {
		if m.subtypeCanBeFalsy(s) {
			return true
		}
	}
	return false
}

// CanBeTruthy reports whether some value of t may evaluate true.
func (m *Model) CanBeTruthy(t Type) bool {
	for _, s := range Subtypes(t) {
		if m.subtypeCanBeTruthy(s) {
			return true
		}
	}
	return false
}

func (m *Model) subtypeCanBeFalsy(t Type) bool {
	switch v := t.(type) {
	case *AnyType:
		return true
	case *TypeVarType:
		return m.CanBeFalsy(m.concretizeTypeVar(v))
	case *FunctionType, *OverloadedType, *ModuleType:
		return false
	case *ClassType:
		if !v.IsInstance {
			return false
		}
		if v.TypeGuard != nil {
			return true
		}
		if IsTupleClass(v) {
			if args := SpecializedTupleArgs(v); args != nil {
				return len(args) == 0 || UnboundedIndex(args) >= 0
			}
		}
		if v.Literal != nil {
			return IsFalsyLiteral(v.Literal)
		}
		if v.IsBuiltIn("NoneType") || v.IsBuiltIn("object") || v.IsProtocol() {
			return true
		}
		if boolMember := LookUpObjectMember(v, "__bool__"); boolMember != nil {
			if fn, ok := TypeOfMember(boolMember).(*FunctionType); ok {
				if lit, ok := fn.ReturnType().(*ClassType); ok && lit.Literal == BoolLiteral(true) {
					return false
				}
			}
			return true
		}
		return LookUpObjectMember(v, "__len__") != nil
	}
	return false
}

func (m *Model) subtypeCanBeTruthy(t Type) bool {
	switch v := t.(type) {
	case *AnyType:
		return true
	case *NeverType:
		return false
	case *TypeVarType:
		return m.CanBeTruthy(m.concretizeTypeVar(v))
	case *ClassType:
		if !v.IsInstance || v.TypeGuard != nil {
			return true
		}
		if IsTupleClass(v) {
			if args := SpecializedTupleArgs(v); args != nil && len(args) == 0 {
				return false
			}
		}
		if v.Literal != nil {
			return !IsFalsyLiteral(v.Literal)
		}
		if v.IsBuiltIn("NoneType") {
			return false
		}
		if boolMember := LookUpObjectMember(v, "__bool__"); boolMember != nil {
			if fn, ok := TypeOfMember(boolMember).(*FunctionType); ok {
				if lit, ok := fn.ReturnType().(*ClassType); ok && lit.Literal == BoolLiteral(false) {
					return false
				}
			}
		}
		return true
	}
	return true
}

// RemoveFalsinessFromType keeps the part of t that can be truthy.
func (m *Model) RemoveFalsinessFromType(t Type) Type {
	return MapSubtypes(t, func(s Type) Type {
		concrete := m.MakeTopLevelTypeVarsConcrete(s)
		if c, ok := concrete.(*ClassType); ok && c.IsInstance && c.TypeGuard == nil {
			if c.Literal != nil {
				if IsFalsyLiteral(c.Literal) {
					return nil
				}
				return s
			}
			if c.IsBuiltIn("bool") {
				return m.BoolLiteral(true).CloneForCondition(c.Condition)
			}
		}
		if m.CanBeTruthy(concrete) {
			return s
		}
		return nil
	})
}

// RemoveTruthinessFromType keeps the part of t that can be falsy.
func (m *Model) RemoveTruthinessFromType(t Type) Type {
	return MapSubtypes(t, func(s Type) Type {
		concrete := m.MakeTopLevelTypeVarsConcrete(s)
		if c, ok := concrete.(*ClassType); ok && c.IsInstance && c.TypeGuard == nil {
			if c.Literal != nil {
				if IsFalsyLiteral(c.Literal) {
					return s
				}
				return nil
			}
			if c.IsBuiltIn("bool") {
				return m.BoolLiteral(false).CloneForCondition(c.Condition)
			}
		}
		if m.CanBeFalsy(concrete) {
			return s
		}
		return nil
	})
}
