package narrowing

import (
	"testing"

	"github.com/panyam/pynarrow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userClass(m *types.Model, name string, flags types.ClassFlags, bases ...types.Type) *types.ClassType {
	cls := types.NewClass(name, "test."+name, flags)
	if len(bases) == 0 {
		bases = []types.Type{m.Object}
	}
	cls.Details.BaseClasses = bases
	cls.Details.Metaclass = m.TypeClass
	types.ComputeMRO(cls)
	return cls
}

func intLit(m *types.Model, v int64) types.Type { return m.LiteralInstance(types.IntLiteral(v)) }
func strLit(m *types.Model, v string) types.Type { return m.LiteralInstance(types.StrLiteral(v)) }

func TestNarrowTypeForIsNone(t *testing.T) {
	m := types.NewModel()
	optInt := types.CombineTypes(m.Instance("int"), m.NoneInstance())

	assert.Equal(t, "None", NarrowTypeForIsNone(m, optInt, true).String())
	assert.Equal(t, "int", NarrowTypeForIsNone(m, optInt, false).String())
	assert.Equal(t, "None", NarrowTypeForIsNone(m, m.ObjectInstance(), true).String())
	assert.Equal(t, "object", NarrowTypeForIsNone(m, m.ObjectInstance(), false).String())
	assert.Equal(t, "Never", NarrowTypeForIsNone(m, m.Instance("str"), true).String())
	assert.Equal(t, "Any", NarrowTypeForIsNone(m, types.Any(), true).String())
}

func TestNarrowTypeForIsNoneTypeVars(t *testing.T) {
	m := types.NewModel()

	optBound := types.NewTypeVar("T")
	optBound.Details.Bound = types.CombineTypes(m.Instance("int"), m.NoneInstance())
	optBound = optBound.CloneForScope("f")

	intBound := types.NewTypeVar("U")
	intBound.Details.Bound = m.Instance("int")
	intBound = intBound.CloneForScope("f")

	constrained := types.NewTypeVar("S")
	constrained.Details.Constraints = []types.Type{m.Instance("int"), m.NoneInstance()}
	constrained = constrained.CloneForScope("f")

	tests := []struct {
		name     string
		in       types.Type
		positive bool
		expected string
	}{
		{"bound includes None positive", optBound, true, "None*"},
		{"bound includes None negative", optBound, false, "int*"},
		{"bound without None positive", intBound, true, "Never"},
		{"bound without None negative", intBound, false, "U"},
		{"unbounded negative", types.NewTypeVar("V").CloneForScope("f"), false, "V"},
		{"constrained positive", constrained, true, "None*"},
		{"constrained negative", constrained, false, "int*"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, NarrowTypeForIsNone(m, tc.in, tc.positive).String())
		})
	}
}

func TestNarrowTupleTypeForIsNone(t *testing.T) {
	m := types.NewModel()
	a := m.MakeTuple([]types.TupleArg{{Type: m.Instance("int")}, {Type: m.NoneInstance()}})
	b := m.MakeTuple([]types.TupleArg{{Type: m.Instance("int")}, {Type: m.Instance("str")}})
	u := types.CombineTypes(a, b)

	assert.Equal(t, "tuple[int, None]", NarrowTupleTypeForIsNone(m, u, true, 1).String())
	assert.Equal(t, "tuple[int, str]", NarrowTupleTypeForIsNone(m, u, false, 1).String())
	assert.Equal(t, u.String(), NarrowTupleTypeForIsNone(m, u, true, 5).String())
}

func TestNarrowTypeForLiteralComparison(t *testing.T) {
	m := types.NewModel()
	two := intLit(m, 2).(*types.ClassType)
	oneToThree := types.CombineTypes(intLit(m, 1), two, intLit(m, 3))

	tests := []struct {
		name     string
		in       types.Type
		lit      *types.ClassType
		positive bool
		expected string
	}{
		{"literal union positive", oneToThree, two, true, "Literal[2]"},
		{"literal union negative", oneToThree, two, false, "Literal[1, 3]"},
		{"wide positive", m.Instance("int"), two, true, "Literal[2]"},
		{"wide negative", m.Instance("int"), two, false, "int"},
		{"bool negative enumerates", m.Instance("bool"), m.BoolLiteral(true), false, "Literal[False]"},
		{"other class kept", types.CombineTypes(m.Instance("str"), two), two, true, "str | Literal[2]"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, NarrowTypeForLiteralComparison(m, tc.in, tc.lit, tc.positive, false).String())
		})
	}
}

func TestNarrowTypeForEnumLiteral(t *testing.T) {
	m := types.NewModel()
	color := userClass(m, "Color", types.ClassEnum, m.Enum)
	for _, item := range []string{"RED", "GREEN", "BLUE"} {
		lit := &types.EnumLiteral{ClassFullName: "test.Color", ClassName: "Color", ItemName: item, ItemType: color}
		color.AddField(&types.Field{Name: item, Type: color.CloneAsInstance(false).CloneWithLiteral(lit)})
	}
	red := color.Details.Fields[0].Type.(*types.ClassType)

	got := NarrowTypeForLiteralComparison(m, color.CloneAsInstance(false), red, false, true)
	assert.Equal(t, "Literal[Color.GREEN, Color.BLUE]", got.String())
	assert.Len(t, EnumerateLiteralsForType(m, color.CloneAsInstance(false)), 3)
}

func TestNarrowTypeForTupleLength(t *testing.T) {
	m := types.NewModel()
	intT := m.Instance("int")
	one := m.MakeTuple([]types.TupleArg{{Type: intT}})
	two := m.MakeTuple([]types.TupleArg{{Type: intT}, {Type: m.Instance("str")}})
	unbounded := m.MakeHomogeneousTuple(intT)

	assert.Equal(t, "tuple[int, str]", NarrowTypeForTupleLength(m, types.CombineTypes(one, two), 2, true, false).String())
	assert.Equal(t, "tuple[int]", NarrowTypeForTupleLength(m, types.CombineTypes(one, two), 2, false, false).String())
	assert.Equal(t, "tuple[int, int]", NarrowTypeForTupleLength(m, unbounded, 2, true, false).String())
	assert.Equal(t, "tuple[int, ...]", NarrowTypeForTupleLength(m, unbounded, 2, false, false).String())

	lessThan := NarrowTypeForTupleLength(m, unbounded, 3, true, true)
	assert.Equal(t, "tuple[()] | tuple[int] | tuple[int, int]", lessThan.String())
	atLeast := NarrowTypeForTupleLength(m, unbounded, 3, false, true)
	assert.Equal(t, "tuple[int, int, int, *tuple[int, ...]]", atLeast.String())
}

func TestTupleLengthExpansionIsCapped(t *testing.T) {
	m := types.NewModel()
	unbounded := m.MakeHomogeneousTuple(m.Instance("int"))

	expanded := NarrowTypeForTupleLength(m, unbounded, types.MaxTupleExpansion, true, true)
	assert.Len(t, types.Subtypes(expanded), types.MaxTupleExpansion)

	tests := []struct {
		name       string
		length     int64
		isLessThan bool
	}{
		{"less than just over the cap", types.MaxTupleExpansion + 1, true},
		{"equal just over the cap", types.MaxTupleExpansion + 1, false},
		{"equal to a huge length", 1 << 40, false},
		{"less than a huge length", 1 << 40, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NarrowTypeForTupleLength(m, unbounded, tt.length, true, tt.isLessThan)
			assert.Same(t, unbounded, got)
		})
	}

	exact := NarrowTypeForTupleLength(m, unbounded, types.MaxTupleExpansion, true, false)
	assert.Len(t, types.SpecializedTupleArgs(exact.(*types.ClassType)), types.MaxTupleExpansion)
}

func TestNarrowTypeForTruthiness(t *testing.T) {
	m := types.NewModel()
	optStr := types.CombineTypes(m.Instance("str"), m.NoneInstance())
	assert.Equal(t, "str", NarrowTypeForTruthiness(m, optStr, true).String())
	assert.Equal(t, "Literal[True]", NarrowTypeForTruthiness(m, m.Instance("bool"), true).String())
	assert.Equal(t, "Literal[False]", NarrowTypeForTruthiness(m, m.Instance("bool"), false).String())
}

func TestNarrowTypeForContainer(t *testing.T) {
	m := types.NewModel()
	optStr := types.CombineTypes(m.Instance("str"), m.NoneInstance())
	container := m.MakeTuple([]types.TupleArg{{Type: strLit(m, "a")}, {Type: strLit(m, "b")}})

	assert.Equal(t, "Literal['a', 'b']", NarrowTypeForContainer(m, optStr, container, true).String())

	withNone := m.MakeTuple([]types.TupleArg{{Type: m.NoneInstance()}})
	assert.Equal(t, "str", NarrowTypeForContainer(m, optStr, withNone, false).String())

	list := m.Specialize("list", m.Instance("int"))
	assert.Equal(t, optStr.String(), NarrowTypeForContainer(m, optStr, list, false).String())
}

func TestNarrowTypeForTypedDictKey(t *testing.T) {
	m := types.NewModel()
	td := userClass(m, "Movie", types.ClassTypedDict, m.TypedDict)
	td.Details.TypedDictEntries = map[string]*types.TypedDictEntry{
		"title": {ValueType: m.Instance("str"), IsRequired: true},
		"year":  {ValueType: m.Instance("int")},
	}
	inst := td.CloneAsInstance(false)
	key := strLit(m, "year").(*types.ClassType)

	narrowed, ok := NarrowTypeForTypedDictKey(m, inst, key, true).(*types.ClassType)
	require.True(t, ok)
	assert.True(t, TypedDictEntries(narrowed)["year"].IsProvided)
	assert.False(t, TypedDictEntries(inst)["year"].IsProvided)

	assert.Equal(t, "Movie", NarrowTypeForTypedDictKey(m, inst, key, false).String())
	assert.Equal(t, "Never", NarrowTypeForTypedDictKey(m, narrowed, key, false).String())

	title := strLit(m, "title").(*types.ClassType)
	assert.Equal(t, "Never", NarrowTypeForTypedDictKey(m, inst, title, false).String())
}

func TestNarrowTypeForIsInstance(t *testing.T) {
	m := types.NewModel()
	intT, strT := m.Instance("int"), m.Instance("str")
	intOrStrOrNone := types.CombineTypes(intT, strT, m.NoneInstance())

	tests := []struct {
		name     string
		in       types.Type
		filters  []types.Type
		positive bool
		expected string
	}{
		{"union positive", intOrStrOrNone, []types.Type{m.Int}, true, "int"},
		{"union negative", intOrStrOrNone, []types.Type{m.Int}, false, "str | None"},
		{"tuple of filters", intOrStrOrNone, []types.Type{m.Int, m.Str}, true, "int | str"},
		{"none filter", intOrStrOrNone, []types.Type{m.NoneType}, true, "None"},
		{"subclass filter", intT, []types.Type{m.Bool}, true, "bool"},
		{"subclass filter negative", intT, []types.Type{m.Bool}, false, "int"},
		{"float promotion positive", m.Instance("float"), []types.Type{m.Int}, true, "int"},
		{"float promotion negative", m.Instance("float"), []types.Type{m.Int}, false, "float"},
		{"any positive", types.Any(), []types.Type{m.Int}, true, "int"},
		{"any negative", types.Any(), []types.Type{m.Int}, false, "Any"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, NarrowTypeForIsInstance(m, tc.in, tc.filters, true, tc.positive).String())
		})
	}
}

func TestIsInstancePartitionsUnion(t *testing.T) {
	m := types.NewModel()
	in := types.CombineTypes(m.Instance("int"), m.Instance("str"), m.Instance("bytes"), m.NoneInstance())
	for _, filters := range [][]types.Type{{m.Int}, {m.Str, m.Bytes}, {m.NoneType}, {m.Object}} {
		pos := NarrowTypeForIsInstance(m, in, filters, true, true)
		neg := NarrowTypeForIsInstance(m, in, filters, true, false)
		assert.True(t, types.IsSameType(in, types.CombineTypes(pos, neg)), "filters %v: %s + %s", filters, pos, neg)
	}
}

func TestIsInstanceTypeVars(t *testing.T) {
	m := types.NewModel()
	unbounded := types.NewTypeVar("T").CloneForScope("f")
	assert.Equal(t, "int*", NarrowTypeForIsInstance(m, unbounded, []types.Type{m.Int}, true, true).String())
	assert.Equal(t, "T", NarrowTypeForIsInstance(m, unbounded, []types.Type{m.Int}, true, false).String())

	constrained := types.NewTypeVar("S")
	constrained.Details.Constraints = []types.Type{m.Instance("int"), m.Instance("str")}
	constrained = constrained.CloneForScope("f")
	assert.Equal(t, "int*", NarrowTypeForIsInstance(m, constrained, []types.Type{m.Int}, true, true).String())
	assert.Equal(t, "str*", NarrowTypeForIsInstance(m, constrained, []types.Type{m.Int}, true, false).String())
}

func TestIsInstanceSynthesizesIntersection(t *testing.T) {
	m := types.NewModel()
	a := userClass(m, "A", 0)
	b := userClass(m, "B", 0)
	final := userClass(m, "F", types.ClassFinal)

	got := NarrowTypeForIsInstance(m, a.CloneAsInstance(false), []types.Type{b}, true, true)
	c, ok := got.(*types.ClassType)
	require.True(t, ok)
	assert.True(t, c.IsInstance)
	assert.True(t, c.IsIntersection())
	assert.Equal(t, "<subclass of A and B>", c.Name())

	assert.Equal(t, "Never", NarrowTypeForIsInstance(m, a.CloneAsInstance(false), []types.Type{final}, true, true).String())
	assert.Equal(t, "A", NarrowTypeForIsInstance(m, a.CloneAsInstance(false), []types.Type{b}, true, false).String())
}

func TestIsInstanceIsIdempotent(t *testing.T) {
	m := types.NewModel()
	a := userClass(m, "A", 0)
	b := userClass(m, "B", 0)
	optBound := types.NewTypeVar("T")
	optBound.Details.Bound = types.CombineTypes(m.Instance("int"), m.Instance("str"))
	optBound = optBound.CloneForScope("f")

	tests := []struct {
		name     string
		in       types.Type
		filters  []types.Type
		positive bool
	}{
		{"union positive", types.CombineTypes(m.Instance("int"), m.Instance("str"), m.NoneInstance()), []types.Type{m.Int}, true},
		{"union negative", types.CombineTypes(m.Instance("int"), m.Instance("str"), m.NoneInstance()), []types.Type{m.Int}, false},
		{"float promotion", m.Instance("float"), []types.Type{m.Int}, true},
		{"unbounded type variable", types.NewTypeVar("V").CloneForScope("f"), []types.Type{m.Int}, true},
		{"union bound", optBound, []types.Type{m.Str}, true},
		{"intersection", a.CloneAsInstance(false), []types.Type{b}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			once := NarrowTypeForIsInstance(m, tc.in, tc.filters, true, tc.positive)
			twice := NarrowTypeForIsInstance(m, once, tc.filters, true, tc.positive)
			assert.Equal(t, once.String(), twice.String())
		})
	}
}

func TestIsSubclass(t *testing.T) {
	m := types.NewModel()
	classes := types.CombineTypes(m.Int.CloneAsInstantiable(false), m.Str.CloneAsInstantiable(false))
	assert.Equal(t, "type[int]", NarrowTypeForIsInstance(m, classes, []types.Type{m.Int}, false, true).String())
	assert.Equal(t, "type[str]", NarrowTypeForIsInstance(m, classes, []types.Type{m.Int}, false, false).String())
}

func TestGetIsInstanceClassTypes(t *testing.T) {
	m := types.NewModel()
	nested := m.MakeTuple([]types.TupleArg{
		{Type: m.Int},
		{Type: m.MakeTuple([]types.TupleArg{{Type: m.Str}, {Type: m.NoneType}})},
	})
	filters, ok := GetIsInstanceClassTypes(nested)
	require.True(t, ok)
	assert.Equal(t, "type[int] | type[str] | type[NoneType]", types.CombineTypes(filters...).String())

	_, ok = GetIsInstanceClassTypes(m.Instance("int"))
	assert.False(t, ok)

	list, ok := GetIsInstanceClassTypes(m.List)
	require.True(t, ok)
	assert.Equal(t, "type[list[Unknown]]", list[0].String())
}

func TestNarrowTypeForTypeGuard(t *testing.T) {
	m := types.NewModel()
	intOrStr := types.CombineTypes(m.Instance("int"), m.Instance("str"))

	assert.Equal(t, "str", NarrowTypeForTypeGuard(m, intOrStr, m.Instance("str"), true, false).String())
	assert.Same(t, intOrStr, NarrowTypeForTypeGuard(m, intOrStr, m.Instance("str"), false, false))

	assert.Equal(t, "int", NarrowTypeForTypeGuard(m, intOrStr, m.Instance("int"), true, true).String())
	assert.Equal(t, "str", NarrowTypeForTypeGuard(m, intOrStr, m.Instance("int"), false, true).String())
}

func TestNarrowTypeForTypeIs(t *testing.T) {
	m := types.NewModel()
	intOrStr := types.CombineTypes(m.Instance("int"), m.Instance("str"))
	assert.Equal(t, "int", NarrowTypeForTypeIs(m, intOrStr, m.Int, true).String())
	// int may be a subclass instance, so the negative branch keeps it.
	assert.Equal(t, "int | str", NarrowTypeForTypeIs(m, intOrStr, m.Int, false).String())
	assert.Equal(t, "str", NarrowTypeForTypeIs(m, types.CombineTypes(m.Instance("bool"), m.Instance("str")), m.Bool, false).String())
}
