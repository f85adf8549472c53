package types

import (
	"fmt"
	"strings"

	gfn "github.com/panyam/goutils/fn"
)

// Print renders t the way it is written in Python annotations.
func Print(t Type) string {
	return printType(t, 0)
}

const maxPrintDepth = 16

func printType(t Type, depth int) string {
	if depth > maxPrintDepth {
		return "..."
	}
	switch v := t.(type) {
	case nil:
		return "Unknown"
	case *AnyType:
		if v.IsUnknown {
			return "Unknown"
		}
		return "Any"
	case *NeverType:
		return "Never"
	case *ModuleType:
		return fmt.Sprintf("Module(%q)", v.Name)
	case *TypeVarType:
		if v.IsInstantiable {
			return "type[" + v.Details.Name + "]"
		}
		return v.Details.Name
	case *FunctionType:
		return printFunction(v, depth) + conditionSuffix(v.Condition)
	case *OverloadedType:
		parts := gfn.Map(v.Overloads, func(f *FunctionType) string { return printFunction(f, depth+1) })
		return "Overload[" + strings.Join(parts, ", ") + "]"
	case *ClassType:
		return printClass(v, depth)
	case *UnionType:
		return printUnion(v, depth)
	}
	return fmt.Sprintf("%T", t)
}

func conditionSuffix(cond []TypeCondition) string {
	if len(cond) > 0 {
		return "*"
	}
	return ""
}

func printFunction(f *FunctionType, depth int) string {
	params := f.EffectiveParams()
	parts := make([]string, 0, len(params))
	for _, p := range params {
		prefix := ""
		switch p.Category {
		case ParamArgsList:
			prefix = "*"
		case ParamKwargsDict:
			prefix = "**"
		}
		s := prefix + p.Name
		if p.Type != nil {
			s += ": " + printType(p.Type, depth+1)
		}
		if p.HasDefault {
			s += " = ..."
		}
		parts = append(parts, s)
	}
	return "(" + strings.Join(parts, ", ") + ") -> " + printType(f.ReturnType(), depth+1)
}

func printClass(c *ClassType, depth int) string {
	s := printClassInstance(c, depth)
	if !c.IsInstance {
		s = "type[" + s + "]"
	}
	return s + conditionSuffix(c.Condition)
}

func printClassInstance(c *ClassType, depth int) string {
	if c.Literal != nil {
		return "Literal[" + printLiteral(c.Literal) + "]"
	}
	if c.TypeGuard != nil {
		name := "TypeGuard"
		if c.TypeGuard.IsStrict {
			name = "TypeIs"
		}
		return name + "[" + printType(c.TypeGuard.Type, depth+1) + "]"
	}
	if c.IsBuiltIn("NoneType") && c.IsInstance {
		return "None"
	}
	if c.IsBuiltIn("tuple") {
		return "tuple[" + printTupleArgs(c, depth) + "]"
	}
	if len(c.Details.TypeParams) == 0 {
		return c.Details.Name
	}
	args := c.TypeArgs
	if args == nil {
		args = make([]Type, len(c.Details.TypeParams))
		for i := range args {
			args[i] = Unknown()
		}
	}
	parts := gfn.Map(args, func(a Type) string { return printType(a, depth+1) })
	return c.Details.Name + "[" + strings.Join(parts, ", ") + "]"
}

func printTupleArgs(c *ClassType, depth int) string {
	args := c.TupleArgs
	if args == nil {
		var elem Type = Unknown()
		if len(c.TypeArgs) == 1 {
			elem = c.TypeArgs[0]
		}
		return printType(elem, depth+1) + ", ..."
	}
	if len(args) == 0 {
		return "()"
	}
	if len(args) == 1 && args[0].IsUnbounded {
		return printType(args[0].Type, depth+1) + ", ..."
	}
	parts := make([]string, len(args))
	for i, a := range args {
		if a.IsUnbounded {
			parts[i] = "*tuple[" + printType(a.Type, depth+1) + ", ...]"
		} else {
			parts[i] = printType(a.Type, depth+1)
		}
	}
	return strings.Join(parts, ", ")
}

// printUnion groups literal members into one Literal[...] at the position
// of the first literal and moves None to the end.
func printUnion(u *UnionType, depth int) string {
	var parts []string
	var literals []string
	literalIdx := -1
	hasNone := false
	for _, m := range u.Members {
		if IsNoneInstance(m) && len(GetCondition(m)) == 0 {
			hasNone = true
			continue
		}
		if c, ok := m.(*ClassType); ok && c.IsInstance && c.Literal != nil && len(c.Condition) == 0 {
			if literalIdx < 0 {
				literalIdx = len(parts)
				parts = append(parts, "")
			}
			literals = append(literals, printLiteral(c.Literal))
			continue
		}
		parts = append(parts, printType(m, depth+1))
	}
	if literalIdx >= 0 {
		parts[literalIdx] = "Literal[" + strings.Join(literals, ", ") + "]"
	}
	if hasNone {
		parts = append(parts, "None")
	}
	return strings.Join(parts, " | ")
}
