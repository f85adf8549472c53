package types

import "strings"

const maxAssignDepth = 24

// AssignType reports whether a value of type src may be assigned to a
// location declared as dest. Type variables in dest are solved into sol
// when it is non-nil.
func (m *Model) AssignType(dest, src Type, sol *Solution) bool {
	return m.assign(dest, src, sol, 0)
}

func (m *Model) assign(dest, src Type, sol *Solution, depth int) bool {
	if depth > maxAssignDepth {
		return true
	}
	if dest == src {
		return true
	}
	if IsAnyOrUnknown(dest) || IsAnyOrUnknown(src) || IsNever(src) {
		return true
	}
	if IsNever(dest) {
		return false
	}

	if su, ok := src.(*UnionType); ok {
		for _, s := range su.Members {
			if !m.assign(dest, s, sol, depth+1) {
				return false
			}
		}
		return true
	}

	if dtv, ok := dest.(*TypeVarType); ok {
		if stv, ok := src.(*TypeVarType); ok && IsSameType(dtv, stv) {
			return true
		}
		if sol != nil {
			return m.assignToTypeVar(dtv, src, sol, depth)
		}
		return false
	}

	if du, ok := dest.(*UnionType); ok {
		for _, d := range du.Members {
			if IsSameType(d, src) {
				return true
			}
		}
		for _, d := range du.Members {
			if !RequiresSpecialization(d) && m.assign(d, src, nil, depth+1) {
				return true
			}
		}
		for _, d := range du.Members {
			if RequiresSpecialization(d) && m.assign(d, src, sol, depth+1) {
				return true
			}
		}
		return false
	}

	if stv, ok := src.(*TypeVarType); ok {
		return m.assign(dest, m.concretizeTypeVar(stv), sol, depth+1)
	}

	switch d := dest.(type) {
	case *ClassType:
		return m.assignToClass(d, src, sol, depth)
	case *FunctionType:
		return m.assignToFunction(d, src, sol, depth)
	case *OverloadedType:
		for _, o := range d.Overloads {
			if !m.assign(o, src, sol, depth+1) {
				return false
			}
		}
		return true
	case *ModuleType:
		s, ok := src.(*ModuleType)
		return ok && s.Name == d.Name
	}
	return false
}

func (m *Model) assignToTypeVar(dtv *TypeVarType, src Type, sol *Solution, depth int) bool {
	if dtv.IsInstantiable {
		switch s := src.(type) {
		case *ClassType:
			if s.IsInstance {
				if s.IsBuiltIn("type") {
					return m.assignToTypeVar(dtv.CloneAsInstance(), m.ObjectInstance(), sol, depth)
				}
				return false
			}
			return m.assignToTypeVar(dtv.CloneAsInstance(), ConvertToInstance(s), sol, depth)
		case *TypeVarType:
			if s.IsInstantiable {
				return m.assignToTypeVar(dtv.CloneAsInstance(), s.CloneAsInstance(), sol, depth)
			}
		}
		return false
	}

	if existing, ok := sol.Get(dtv); ok {
		if m.assign(existing, src, nil, depth+1) {
			return true
		}
		if m.assign(src, existing, nil, depth+1) {
			sol.Set(dtv, src)
			return true
		}
		if dtv.HasConstraints() {
			return false
		}
		widened := CombineTypes(existing, src)
		if dtv.Details.Bound != nil && !m.assign(dtv.Details.Bound, widened, nil, depth+1) {
			return false
		}
		sol.Set(dtv, widened)
		return true
	}

	if dtv.HasConstraints() {
		for _, c := range dtv.Details.Constraints {
			if m.assign(c, src, nil, depth+1) {
				sol.Set(dtv, c)
				return true
			}
		}
		return false
	}
	if dtv.Details.Bound != nil && !m.assign(dtv.Details.Bound, src, nil, depth+1) {
		return false
	}
	sol.Set(dtv, src)
	return true
}

func (m *Model) assignToClass(d *ClassType, src Type, sol *Solution, depth int) bool {
	switch s := src.(type) {
	case *ClassType:
		if d.IsInstance == s.IsInstance {
			return m.assignClassToClass(d, s, sol, depth)
		}
		if d.IsInstance {
			// A class object assigned to an instance of object, type, its
			// metaclass or Callable.
			if d.IsBuiltIn("object", "type", "Callable") {
				return true
			}
			if meta := s.Details.Metaclass; meta != nil && IsDerivedFrom(meta, d) {
				return true
			}
			return false
		}
		return s.IsBuiltIn("type") && d.IsBuiltIn("object")
	case *FunctionType, *OverloadedType:
		if !d.IsInstance {
			return false
		}
		if d.IsBuiltIn("object", "Callable") {
			return true
		}
		if d.IsProtocol() {
			for _, name := range protocolMemberNames(d) {
				if name != "__call__" {
					return false
				}
			}
			return true
		}
		return false
	case *ModuleType:
		if !d.IsInstance {
			return false
		}
		if d.IsBuiltIn("object", "ModuleType") {
			return true
		}
		if d.IsProtocol() {
			for _, name := range protocolMemberNames(d) {
				if _, ok := s.Fields[name]; !ok {
					return false
				}
			}
			return true
		}
	}
	return false
}

func (m *Model) assignClassToClass(d, s *ClassType, sol *Solution, depth int) bool {
	if d.IsBuiltIn("object") {
		return true
	}
	if d.Literal != nil {
		return s.Literal != nil && d.Details == s.Details && LiteralEqual(d.Literal, s.Literal)
	}
	if d.IsInstance {
		if d.IsBuiltIn("float") && m.derivesFromBuiltin(s, "int") {
			return true
		}
		if d.IsBuiltIn("complex") && (m.derivesFromBuiltin(s, "int") || m.derivesFromBuiltin(s, "float")) {
			return true
		}
	}
	if d.IsBuiltIn("tuple") && IsTupleClass(s) {
		dArgs := SpecializedTupleArgs(d)
		sArgs := SpecializedTupleArgs(s)
		if dArgs == nil {
			if len(d.TypeArgs) == 1 && sArgs != nil {
				for _, a := range sArgs {
					if !m.assign(d.TypeArgs[0], a.Type, sol, depth+1) {
						return false
					}
				}
			}
			return true
		}
		if sArgs == nil {
			return IsTupleGradualForm(d)
		}
		return m.assignTupleArgs(dArgs, sArgs, sol, depth)
	}

	entry := DerivedClassEntry(s, d)
	if entry == nil {
		if d.IsProtocol() && d.IsInstance {
			return m.assignToProtocol(d, s, sol, depth)
		}
		return DerivesFromAnyClass(s)
	}
	return m.assignTypeArgs(d, entry, sol, depth)
}

func (m *Model) derivesFromBuiltin(c *ClassType, name string) bool {
	if cls := m.classes[name]; cls != nil {
		return IsDerivedFrom(c, cls)
	}
	return false
}

func (m *Model) assignTypeArgs(d, entry *ClassType, sol *Solution, depth int) bool {
	if d.TypeArgs == nil {
		return true
	}
	params := d.Details.TypeParams
	for i, destArg := range d.TypeArgs {
		var srcArg Type = Unknown()
		if i < len(entry.TypeArgs) {
			srcArg = entry.TypeArgs[i]
		}
		if !m.assign(destArg, srcArg, sol, depth+1) {
			return false
		}
		covariant := i < len(params) && strings.HasSuffix(params[i].Name(), "_co")
		if !covariant && !RequiresSpecialization(destArg) && !m.assign(srcArg, destArg, nil, depth+1) {
			return false
		}
	}
	return true
}

func (m *Model) assignTupleArgs(dArgs, sArgs []TupleArg, sol *Solution, depth int) bool {
	dUnb := UnboundedIndex(dArgs)
	sUnb := UnboundedIndex(sArgs)
	if dUnb < 0 {
		if sUnb >= 0 || len(dArgs) != len(sArgs) {
			return false
		}
		for i := range dArgs {
			if !m.assign(dArgs[i].Type, sArgs[i].Type, sol, depth+1) {
				return false
			}
		}
		return true
	}

	prefix, suffix := dUnb, len(dArgs)-dUnb-1
	if sUnb >= 0 && (sUnb < prefix || len(sArgs)-sUnb-1 < suffix) {
		return false
	}
	if sUnb < 0 && len(sArgs) < prefix+suffix {
		return false
	}
	for i := 0; i < prefix; i++ {
		if !m.assign(dArgs[i].Type, sArgs[i].Type, sol, depth+1) {
			return false
		}
	}
	for j := 0; j < suffix; j++ {
		if !m.assign(dArgs[len(dArgs)-1-j].Type, sArgs[len(sArgs)-1-j].Type, sol, depth+1) {
			return false
		}
	}
	for _, a := range sArgs[prefix : len(sArgs)-suffix] {
		if !m.assign(dArgs[dUnb].Type, a.Type, sol, depth+1) {
			return false
		}
	}
	return true
}

// protocolMemberNames lists the members a protocol class requires.
func protocolMemberNames(p *ClassType) []string {
	var names []string
	seen := map[string]bool{}
	for _, e := range p.Details.MRO {
		ec, ok := e.(*ClassType)
		if !ok || !ec.IsProtocol() {
			continue
		}
		for _, f := range ec.Details.Fields {
			if !seen[f.Name] {
				seen[f.Name] = true
				names = append(names, f.Name)
			}
		}
	}
	return names
}

func (m *Model) assignToProtocol(d, s *ClassType, sol *Solution, depth int) bool {
	for _, name := range protocolMemberNames(d) {
		srcMember := LookUpClassMember(s, name, false)
		if srcMember == nil {
			return false
		}
		destMember := LookUpClassMember(d, name, false)
		if destMember == nil {
			continue
		}
		destType := TypeOfMember(destMember)
		if _, isFunc := destType.(*FunctionType); isFunc {
			continue
		}
		if !m.assign(destType, TypeOfMember(srcMember), sol, depth+1) {
			return false
		}
	}
	return true
}

func (m *Model) assignToFunction(d *FunctionType, src Type, sol *Solution, depth int) bool {
	switch s := src.(type) {
	case *FunctionType:
		return m.assign(d.ReturnType(), s.ReturnType(), sol, depth+1)
	case *OverloadedType:
		for _, o := range s.Overloads {
			if m.assign(d, o, sol, depth+1) {
				return true
			}
		}
	case *ClassType:
		if !s.IsInstance {
			return m.assign(d.ReturnType(), ConvertToInstance(s), sol, depth+1)
		}
		if call := LookUpClassMember(s, "__call__", true); call != nil {
			if fn, ok := TypeOfMember(call).(*FunctionType); ok {
				return m.assign(d.ReturnType(), fn.ReturnType(), sol, depth+1)
			}
			return true
		}
	}
	return false
}

// InferTypeArgsFromBase specializes an unparameterized generic filter class
// so that it derives from the specialized base. Unsolved parameters become
// Unknown.
func (m *Model) InferTypeArgsFromBase(filter *ClassType, base *ClassType) *ClassType {
	if len(filter.Details.TypeParams) == 0 {
		return filter
	}
	self := SelfSpecialize(filter)
	entry := DerivedClassEntry(self, base)
	sol := NewSolution()
	if entry != nil && m.assign(entry.CloneAsInstance(false), base.CloneAsInstance(false), sol, 0) {
		specialized := ApplySolution(self, sol, true).(*ClassType)
		return m.NormalizeTuple(specialized)
	}
	return m.NormalizeTuple(SpecializeWithUnknown(filter))
}

// NormalizeTuple gives a tuple class specialized only through its generic
// parameter an explicit tuple[X, ...] shape.
func (m *Model) NormalizeTuple(c *ClassType) *ClassType {
	if !c.IsBuiltIn("tuple") || c.TupleArgs != nil {
		return c
	}
	var elem Type = Unknown()
	if len(c.TypeArgs) == 1 {
		elem = c.TypeArgs[0]
	}
	out := SpecializeTupleClass(c, []TupleArg{{Type: elem, IsUnbounded: true}})
	return out
}
