package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lit(m *Model, v Literal) Type { return m.LiteralInstance(v) }

func TestCombineTypes(t *testing.T) {
	m := NewModel()
	intT := m.Instance("int")
	strT := m.Instance("str")

	tests := []struct {
		name     string
		in       []Type
		expected string
	}{
		{"empty is never", nil, "Never"},
		{"single", []Type{intT}, "int"},
		{"none last", []Type{m.NoneInstance(), intT}, "int | None"},
		{"dedupe", []Type{intT, strT, intT}, "int | str"},
		{"flatten", []Type{CombineTypes(intT, strT), m.NoneInstance()}, "int | str | None"},
		{"never dropped", []Type{Never(), intT}, "int"},
		{"any absorbs", []Type{intT, Any()}, "Any"},
		{"unknown wins", []Type{Any(), Unknown()}, "Unknown"},
		{"literals grouped", []Type{lit(m, IntLiteral(1)), strT, lit(m, IntLiteral(3))}, "Literal[1, 3] | str"},
		{"literal absorbed", []Type{lit(m, IntLiteral(1)), intT}, "int"},
		{"bool literals merge", []Type{m.BoolLiteral(true), m.BoolLiteral(false)}, "bool"},
		{"string literal", []Type{lit(m, StrLiteral("a"))}, "Literal['a']"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Print(CombineTypes(tc.in...)))
		})
	}
}

func TestMapSubtypesKeepsIdentity(t *testing.T) {
	m := NewModel()
	u := CombineTypes(m.Instance("int"), m.NoneInstance())
	out := MapSubtypes(u, func(s Type) Type { return s })
	assert.Same(t, u, out)

	dropped := MapSubtypes(u, func(s Type) Type {
		if IsNoneInstance(s) {
			return nil
		}
		return s
	})
	assert.Equal(t, "int", Print(dropped))
	assert.True(t, IsNever(MapSubtypes(u, func(Type) Type { return nil })))
}

func TestPrintTuplesAndClasses(t *testing.T) {
	m := NewModel()
	intT := m.Instance("int")
	strT := m.Instance("str")

	assert.Equal(t, "tuple[int, str]", Print(m.MakeTuple([]TupleArg{{Type: intT}, {Type: strT}})))
	assert.Equal(t, "tuple[int, ...]", Print(m.MakeHomogeneousTuple(intT)))
	assert.Equal(t, "tuple[()]", Print(m.MakeTuple(nil)))
	assert.Equal(t, "tuple[int, *tuple[str, ...]]", Print(m.MakeTuple([]TupleArg{{Type: intT}, {Type: strT, IsUnbounded: true}})))
	assert.Equal(t, "type[int]", Print(m.Int))
	assert.Equal(t, "list[int]", Print(m.Specialize("list", intT)))
	assert.Equal(t, "list[Unknown]", Print(m.Instance("list")))
	assert.Equal(t, "None", Print(m.NoneInstance()))

	tv := NewTypeVar("T").CloneForScope("f")
	conditioned := AddConditionToType(intT, []TypeCondition{{TypeVar: tv}})
	assert.Equal(t, "int*", Print(conditioned))
}

func TestAssignType(t *testing.T) {
	m := NewModel()
	intT := m.Instance("int")
	floatT := m.Instance("float")

	tests := []struct {
		name     string
		dest     Type
		src      Type
		expected bool
	}{
		{"int to float promotes", floatT, intT, true},
		{"float to int", intT, floatT, false},
		{"bool to int", intT, m.Instance("bool"), true},
		{"literal to class", intT, lit(m, IntLiteral(3)), true},
		{"class to literal", lit(m, IntLiteral(3)), intT, false},
		{"literal match", lit(m, IntLiteral(3)), lit(m, IntLiteral(3)), true},
		{"anything to object", m.ObjectInstance(), m.NoneInstance(), true},
		{"invariant list", m.Specialize("list", floatT), m.Specialize("list", intT), false},
		{"covariant sequence", m.Specialize("Sequence", floatT), m.Specialize("list", intT), true},
		{"unbounded accepts fixed", m.MakeHomogeneousTuple(intT), m.MakeTuple([]TupleArg{{Type: intT}, {Type: intT}}), true},
		{"fixed rejects unbounded", m.MakeTuple([]TupleArg{{Type: intT}, {Type: intT}}), m.MakeHomogeneousTuple(intT), false},
		{"none into optional", CombineTypes(intT, m.NoneInstance()), m.NoneInstance(), true},
		{"protocol accepts none", m.Hashable.CloneAsInstance(false), m.NoneInstance(), true},
		{"class object to type", m.Instance("type"), m.Int, true},
		{"any", intT, Any(), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, m.AssignType(tc.dest, tc.src, nil))
		})
	}
}

func TestAssignSolvesTypeVars(t *testing.T) {
	m := NewModel()
	tv := NewTypeVar("T").CloneForScope("f")
	sol := NewSolution()
	require.True(t, m.AssignType(m.Specialize("list", tv), m.Specialize("list", m.Instance("int")), sol))
	solved, ok := sol.Get(tv)
	require.True(t, ok)
	assert.Equal(t, "int", Print(solved))

	bounded := &TypeVarType{Details: &TypeVarDetails{Name: "B", Bound: m.Instance("int")}, ScopeID: "f"}
	assert.False(t, m.AssignType(bounded, m.Instance("str"), NewSolution()))
}

func TestComputeMRO(t *testing.T) {
	m := NewModel()
	names := func(c *ClassType) []string {
		var out []string
		for _, e := range c.Details.MRO {
			out = append(out, e.(*ClassType).Details.Name)
		}
		return out
	}
	assert.Equal(t, []string{"IntEnum", "int", "Enum", "object"}, names(m.IntEnum))
	assert.Equal(t, []string{"bool", "int", "object"}, names(m.Bool))

	a := NewClass("A", "", 0)
	a.Details.BaseClasses = []Type{m.Object}
	ComputeMRO(a)
	b := NewClass("B", "", 0)
	b.Details.BaseClasses = []Type{m.Object}
	ComputeMRO(b)
	inter := NewIntersectionClass(a, b)
	assert.Equal(t, "<subclass of A and B>", inter.Details.Name)
	assert.True(t, IsDerivedFrom(inter, a))
	assert.True(t, IsDerivedFrom(inter, b))
}

func TestTruthiness(t *testing.T) {
	m := NewModel()
	intT := m.Instance("int")
	none := m.NoneInstance()

	assert.True(t, m.CanBeFalsy(none))
	assert.False(t, m.CanBeTruthy(none))
	assert.False(t, m.CanBeTruthy(m.MakeTuple(nil)))
	assert.False(t, m.CanBeFalsy(m.MakeTuple([]TupleArg{{Type: intT}})))
	assert.True(t, m.CanBeFalsy(m.MakeHomogeneousTuple(intT)))
	assert.False(t, m.CanBeFalsy(lit(m, IntLiteral(3))))
	assert.True(t, m.CanBeFalsy(lit(m, StrLiteral(""))))

	assert.Equal(t, "Literal[True]", Print(m.RemoveFalsinessFromType(m.Instance("bool"))))
	assert.Equal(t, "int", Print(m.RemoveFalsinessFromType(CombineTypes(intT, none))))
	assert.Equal(t, "int | None", Print(m.RemoveTruthinessFromType(CombineTypes(intT, none))))
	assert.Equal(t, "Literal[0]", Print(m.RemoveTruthinessFromType(CombineTypes(lit(m, IntLiteral(0)), lit(m, IntLiteral(2))))))
}

func TestInferTypeArgsFromBase(t *testing.T) {
	m := NewModel()
	seqInt := m.Specialize("Sequence", m.Instance("int"))
	assert.Equal(t, "type[list[int]]", Print(m.InferTypeArgsFromBase(m.List, seqInt)))
	assert.Equal(t, "type[tuple[int, ...]]", Print(m.InferTypeArgsFromBase(m.Tuple, seqInt)))
	assert.Equal(t, "type[dict[Unknown, Unknown]]", Print(m.InferTypeArgsFromBase(m.Dict, seqInt)))
}

func TestConcretizeConstrainedTypeVar(t *testing.T) {
	m := NewModel()
	tv := &TypeVarType{Details: &TypeVarDetails{Name: "S", Constraints: []Type{m.Instance("str"), m.Instance("bytes")}}, ScopeID: "f"}
	concrete := m.MakeTopLevelTypeVarsConcrete(tv)
	assert.Equal(t, "str* | bytes*", Print(concrete))
	for _, s := range Subtypes(concrete) {
		require.Len(t, GetCondition(s), 1)
	}
}
