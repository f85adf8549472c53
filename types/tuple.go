package types

// MaxTupleExpansion caps the number of union members produced when an
// unbounded tuple is expanded into fixed-length alternatives.
const MaxTupleExpansion = 32

// SpecializeTupleClass gives a tuple class an explicit element shape. The
// generic type argument is the union of the element types.
func SpecializeTupleClass(cls *ClassType, args []TupleArg) *ClassType {
	elems := make([]Type, 0, len(args))
	for _, a := range args {
		elems = append(elems, a.Type)
	}
	elem := CombineTypes(elems...)
	out := cls.CloneForSpecialization([]Type{elem}, true)
	out.TupleArgs = args
	if out.TupleArgs == nil {
		out.TupleArgs = []TupleArg{}
	}
	return out
}

// IsTupleClass reports whether c is the builtin tuple or derives from it.
func IsTupleClass(c *ClassType) bool {
	for _, e := range c.Details.MRO {
		if ec, ok := e.(*ClassType); ok && ec.IsBuiltIn("tuple") {
			return true
		}
	}
	return false
}

// SpecializedTupleArgs returns the element shape of a tuple instance, or nil
// when the shape is unknown.
func SpecializedTupleArgs(c *ClassType) []TupleArg {
	if c.TupleArgs != nil {
		return c.TupleArgs
	}
	if entry := findTupleEntry(c); entry != nil && entry != c {
		return entry.TupleArgs
	}
	return nil
}

func findTupleEntry(c *ClassType) *ClassType {
	for _, e := range c.Details.MRO {
		if ec, ok := e.(*ClassType); ok && ec.IsBuiltIn("tuple") {
			return specializeMROClass(c, ec)
		}
	}
	return nil
}

// IsUnboundedTupleClass reports a tuple whose shape includes a variadic
// element.
func IsUnboundedTupleClass(c *ClassType) bool {
	for _, a := range c.TupleArgs {
		if a.IsUnbounded {
			return true
		}
	}
	return false
}

// UnboundedIndex returns the index of the variadic element, or -1.
func UnboundedIndex(args []TupleArg) int {
	for i, a := range args {
		if a.IsUnbounded {
			return i
		}
	}
	return -1
}

// IsTupleGradualForm reports tuple[Any, ...].
func IsTupleGradualForm(c *ClassType) bool {
	return len(c.TupleArgs) == 1 && c.TupleArgs[0].IsUnbounded && IsAnyOrUnknown(c.TupleArgs[0].Type)
}
