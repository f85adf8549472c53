package types

// Solution maps type variables (by name and scope) to solved types.
type Solution struct {
	entries map[string]Type
	order   []*TypeVarType
}

func NewSolution() *Solution {
	return &Solution{entries: map[string]Type{}}
}

func (s *Solution) Set(tv *TypeVarType, t Type) {
	if _, ok := s.entries[tv.key()]; !ok {
		s.order = append(s.order, tv)
	}
	s.entries[tv.key()] = t
}

func (s *Solution) Get(tv *TypeVarType) (Type, bool) {
	if s == nil {
		return nil, false
	}
	t, ok := s.entries[tv.key()]
	return t, ok
}

func (s *Solution) IsEmpty() bool { return s == nil || len(s.entries) == 0 }

// ApplySolution replaces solved type variables in t. Unsolved variables are
// left in place unless unknownIfUnsolved is set.
func ApplySolution(t Type, sol *Solution, unknownIfUnsolved bool) Type {
	if sol.IsEmpty() && !unknownIfUnsolved {
		return t
	}
	return applySolution(t, sol, unknownIfUnsolved, 0)
}

const maxApplyDepth = 32

func applySolution(t Type, sol *Solution, unknownIfUnsolved bool, depth int) Type {
	if depth > maxApplyDepth {
		return t
	}
	switch v := t.(type) {
	case *TypeVarType:
		if solved, ok := sol.Get(v); ok {
			if v.IsInstantiable {
				return ConvertToInstantiable(solved)
			}
			return solved
		}
		if unknownIfUnsolved {
			return Unknown()
		}
		return v
	case *UnionType:
		members := make([]Type, len(v.Members))
		for i, m := range v.Members {
			members[i] = applySolution(m, sol, unknownIfUnsolved, depth+1)
		}
		return CombineTypes(members...)
	case *ClassType:
		if len(v.TypeArgs) == 0 && len(v.TupleArgs) == 0 && v.TypeGuard == nil {
			return v
		}
		out := v.clone()
		if v.TypeArgs != nil {
			out.TypeArgs = make([]Type, len(v.TypeArgs))
			for i, a := range v.TypeArgs {
				out.TypeArgs[i] = applySolution(a, sol, unknownIfUnsolved, depth+1)
			}
		}
		if v.TupleArgs != nil {
			out.TupleArgs = make([]TupleArg, len(v.TupleArgs))
			for i, a := range v.TupleArgs {
				out.TupleArgs[i] = TupleArg{Type: applySolution(a.Type, sol, unknownIfUnsolved, depth+1), IsUnbounded: a.IsUnbounded}
			}
		}
		if v.TypeGuard != nil {
			out.TypeGuard = &TypeGuardInfo{Type: applySolution(v.TypeGuard.Type, sol, unknownIfUnsolved, depth+1), IsStrict: v.TypeGuard.IsStrict}
		}
		return out
	case *FunctionType:
		details := *v.Details
		details.Params = make([]FunctionParam, len(v.Details.Params))
		for i, p := range v.Details.Params {
			p.Type = applySolution(orUnknown(p.Type), sol, unknownIfUnsolved, depth+1)
			details.Params[i] = p
		}
		if v.Details.DeclaredReturnType != nil {
			details.DeclaredReturnType = applySolution(v.Details.DeclaredReturnType, sol, unknownIfUnsolved, depth+1)
		}
		out := *v
		out.Details = &details
		return &out
	}
	return t
}

func orUnknown(t Type) Type {
	if t == nil {
		return Unknown()
	}
	return t
}

// RequiresSpecialization reports whether t refers to any type variable.
func RequiresSpecialization(t Type) bool {
	return requiresSpecialization(t, 0)
}

func requiresSpecialization(t Type, depth int) bool {
	if depth > maxApplyDepth {
		return false
	}
	switch v := t.(type) {
	case *TypeVarType:
		return true
	case *UnionType:
		for _, m := range v.Members {
			if requiresSpecialization(m, depth+1) {
				return true
			}
		}
	case *ClassType:
		for _, a := range v.TypeArgs {
			if requiresSpecialization(a, depth+1) {
				return true
			}
		}
		for _, a := range v.TupleArgs {
			if requiresSpecialization(a.Type, depth+1) {
				return true
			}
		}
	case *FunctionType:
		for _, p := range v.Details.Params {
			if p.Type != nil && requiresSpecialization(p.Type, depth+1) {
				return true
			}
		}
		if v.Details.DeclaredReturnType != nil {
			return requiresSpecialization(v.Details.DeclaredReturnType, depth+1)
		}
	}
	return false
}

// SelfSpecialize specializes a generic class with its own type parameters.
func SelfSpecialize(c *ClassType) *ClassType {
	if len(c.Details.TypeParams) == 0 || c.TypeArgs != nil {
		return c
	}
	args := make([]Type, len(c.Details.TypeParams))
	for i, tp := range c.Details.TypeParams {
		args[i] = tp
	}
	return c.CloneForSpecialization(args, false)
}

// SpecializeWithUnknown fills every type parameter of an unspecialized
// class with Unknown.
func SpecializeWithUnknown(c *ClassType) *ClassType {
	if len(c.Details.TypeParams) == 0 || c.TypeArgs != nil || c.TupleArgs != nil {
		return c
	}
	args := make([]Type, len(c.Details.TypeParams))
	for i := range args {
		args[i] = Unknown()
	}
	return c.CloneForSpecialization(args, false)
}
