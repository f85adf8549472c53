package types

import "sort"

// TypeCondition records that a type was produced by narrowing a type
// variable to one of its constrained alternatives (or to its bound, with
// ConstraintIndex 0).
type TypeCondition struct {
	TypeVar         *TypeVarType
	ConstraintIndex int
}

func (c TypeCondition) same(o TypeCondition) bool {
	return c.TypeVar.key() == o.TypeVar.key() && c.ConstraintIndex == o.ConstraintIndex
}

// CombineConditions unions two condition lists. The result is sorted by
// type variable name so equal sets compare equal.
func CombineConditions(a, b []TypeCondition) []TypeCondition {
	if len(b) == 0 {
		return a
	}
	if len(a) == 0 {
		return b
	}
	out := append([]TypeCondition{}, a...)
	for _, c := range b {
		found := false
		for _, e := range out {
			if e.same(c) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TypeVar.key() != out[j].TypeVar.key() {
			return out[i].TypeVar.key() < out[j].TypeVar.key()
		}
		return out[i].ConstraintIndex < out[j].ConstraintIndex
	})
	return out
}

func conditionsEqual(a, b []TypeCondition) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].same(b[i]) {
			return false
		}
	}
	return true
}

// GetCondition returns the conditions attached to a non-union type.
func GetCondition(t Type) []TypeCondition {
	switch v := t.(type) {
	case *ClassType:
		return v.Condition
	case *FunctionType:
		return v.Condition
	}
	return nil
}

// AddConditionToType attaches conditions to t, merging with any that are
// already present. Unions receive the conditions on every member.
func AddConditionToType(t Type, cond []TypeCondition) Type {
	if len(cond) == 0 {
		return t
	}
	switch v := t.(type) {
	case *ClassType:
		return v.CloneForCondition(CombineConditions(v.Condition, cond))
	case *FunctionType:
		out := *v
		out.Condition = CombineConditions(v.Condition, cond)
		return &out
	case *UnionType:
		return MapSubtypes(v, func(s Type) Type { return AddConditionToType(s, cond) })
	}
	return t
}
