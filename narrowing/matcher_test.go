package narrowing

import (
	"strings"
	"testing"

	"github.com/panyam/pynarrow/decl"
	"github.com/panyam/pynarrow/parser"
	"github.com/panyam/pynarrow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEvaluator types names from a fixed table and literals directly.
type stubEvaluator struct {
	m     *types.Model
	names map[string]types.Type
	decls map[string][]LocalDecl

	incomplete bool
}

func newStubEvaluator() *stubEvaluator {
	m := types.NewModel()
	ev := &stubEvaluator{m: m, names: map[string]types.Type{}, decls: map[string][]LocalDecl{}}
	for _, name := range []string{"isinstance", "issubclass", "len"} {
		fn := types.NewFunction(name, nil, m.Instance("bool"))
		fn.Details.BuiltInName = name
		ev.names[name] = fn
	}
	for _, name := range []string{"int", "str", "bool", "float", "list", "dict", "type"} {
		ev.names[name] = m.Class(name)
	}
	return ev
}

func (s *stubEvaluator) Model() *types.Model { return s.m }

func (s *stubEvaluator) GetTypeOfExpression(node decl.Expr, expected types.Type) types.TypeResult {
	return types.TypeResult{Type: s.typeOf(node), IsIncomplete: s.incomplete}
}

func (s *stubEvaluator) typeOf(node decl.Expr) types.Type {
	switch e := node.(type) {
	case *decl.NameExpr:
		if t, ok := s.names[e.Name]; ok {
			return t
		}
	case *decl.ConstantExpr:
		switch e.Kind {
		case decl.ConstNone:
			return s.m.NoneInstance()
		case decl.ConstTrue:
			return s.m.BoolLiteral(true)
		case decl.ConstFalse:
			return s.m.BoolLiteral(false)
		}
	case *decl.NumberExpr:
		if e.IsInt {
			return s.m.LiteralInstance(types.IntLiteral(e.IntValue))
		}
		return s.m.Instance("float")
	case *decl.StringExpr:
		return s.m.LiteralInstance(types.StrLiteral(e.Value))
	case *decl.TupleExpr:
		args := make([]types.TupleArg, len(e.Elements))
		for i, el := range e.Elements {
			args[i] = types.TupleArg{Type: s.typeOf(el)}
		}
		return s.m.MakeTuple(args)
	case *decl.AssignmentExpr:
		return s.typeOf(e.Value)
	case *decl.CallExpr:
		if fn, ok := s.typeOf(e.Callee).(*types.FunctionType); ok {
			return fn.ReturnType()
		}
	}
	return types.Unknown()
}

func (s *stubEvaluator) LocalDeclarations(name *decl.NameExpr, reachableFrom decl.Node, requireUnique bool) []LocalDecl {
	decls := s.decls[name.Name]
	if requireUnique && len(decls) > 1 {
		return nil
	}
	return decls
}

func (s *stubEvaluator) IsNodeReachable(node, source decl.Node) bool { return true }

func mustParse(t *testing.T, src string) decl.Expr {
	t.Helper()
	e, err := parser.ParseExpression(src)
	require.NoError(t, err, src)
	return e
}

// narrow matches test against reference and applies the callback to the
// declared type of reference.
func narrow(t *testing.T, ev *stubEvaluator, reference, test string, isPositive bool) types.TypeResult {
	t.Helper()
	ref := mustParse(t, reference)
	cb := GetTypeNarrowingCallback(ev, ref, mustParse(t, test), isPositive)
	require.NotNil(t, cb, "no narrowing for %q", test)
	return cb.Apply(ev, ev.typeOf(ref))
}

func TestConditionForms(t *testing.T) {
	ev := newStubEvaluator()
	m := ev.m
	ev.names["x"] = types.CombineTypes(m.Instance("int"), m.Instance("str"), m.NoneInstance())
	ev.names["n"] = types.CombineTypes(intLit(m, 1), intLit(m, 2), intLit(m, 3))
	ev.names["t"] = types.CombineTypes(
		m.MakeTuple([]types.TupleArg{{Type: m.Instance("int")}}),
		m.MakeTuple([]types.TupleArg{{Type: m.Instance("int")}, {Type: m.Instance("str")}}))
	ev.names["s"] = types.CombineTypes(m.Instance("str"), m.NoneInstance())

	tests := []struct {
		name      string
		reference string
		test      string
		positive  string
		negative  string
	}{
		{"is none", "x", "x is None", "None", "int | str"},
		{"is not none", "x", "x is not None", "int | str", "None"},
		{"equals none", "x", "x == None", "None", "int | str"},
		{"literal equals", "n", "n == 2", "Literal[2]", "Literal[1, 3]"},
		{"literal on the left", "n", "2 != n", "Literal[1, 3]", "Literal[2]"},
		{"isinstance", "x", "isinstance(x, int)", "int", "str | None"},
		{"isinstance tuple", "x", "isinstance(x, (int, str))", "int | str", "None"},
		{"not isinstance", "x", "not isinstance(x, int)", "str | None", "int"},
		{"double not", "x", "not not (x is None)", "None", "int | str"},
		{"len equals", "t", "len(t) == 2", "tuple[int, str]", "tuple[int]"},
		{"len greater", "t", "len(t) > 1", "tuple[int, str]", "tuple[int]"},
		{"truthiness", "s", "s", "str", "str | None"},
		{"bool call", "s", "bool(s)", "str", "str | None"},
		{"membership", "s", "s in ('a', 'b')", "Literal['a', 'b']", "str | None"},
		{"walrus", "x", "(x := x) is None", "None", "int | str"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.positive, narrow(t, ev, tc.reference, tc.test, true).Type.String())
			assert.Equal(t, tc.negative, narrow(t, ev, tc.reference, tc.test, false).Type.String())
		})
	}
}

func TestRecursionLimit(t *testing.T) {
	ev := newStubEvaluator()
	ev.names["x"] = types.CombineTypes(ev.m.Instance("int"), ev.m.NoneInstance())

	nots := func(n int) string { return strings.Repeat("not ", n) + "(x is None)" }
	walruses := func(n int) string {
		return strings.Repeat("(y := ", n) + "x is None" + strings.Repeat(")", n)
	}

	tests := []struct {
		name    string
		test    string
		matches bool
	}{
		{"not chain at the limit", nots(MaxRecursion), true},
		{"not chain past the limit", nots(MaxRecursion + 1), false},
		{"long not chain", nots(200), false},
		{"walrus chain at the limit", walruses(MaxRecursion), true},
		{"walrus chain past the limit", walruses(MaxRecursion + 1), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cb := GetTypeNarrowingCallback(ev, mustParse(t, "x"), mustParse(t, tc.test), true)
			if !tc.matches {
				assert.Nil(t, cb)
				return
			}
			require.NotNil(t, cb)
			assert.Equal(t, RuleIsNone, cb.Rule)
		})
	}
}

func TestUnrelatedConditionsDoNotNarrow(t *testing.T) {
	ev := newStubEvaluator()
	ev.names["x"] = ev.m.Instance("int")
	ev.names["y"] = ev.m.Instance("int")

	for _, test := range []string{"y is None", "isinstance(y, int)", "len(y) == 2", "x < 3", "not x.attr"} {
		cb := GetTypeNarrowingCallback(ev, mustParse(t, "x"), mustParse(t, test), true)
		assert.Nil(t, cb, test)
	}
}

func TestMemberAndSubscriptReferences(t *testing.T) {
	ev := newStubEvaluator()
	cb := GetTypeNarrowingCallback(ev, mustParse(t, "a.b"), mustParse(t, "a.b is not None"), true)
	require.NotNil(t, cb)
	assert.Equal(t, RuleIsNone, cb.Rule)
	assert.False(t, cb.IsPositive)

	cb = GetTypeNarrowingCallback(ev, mustParse(t, "a[0]"), mustParse(t, "a[0] is None"), true)
	require.NotNil(t, cb)
	assert.Equal(t, RuleIsNone, cb.Rule)

	cb = GetTypeNarrowingCallback(ev, mustParse(t, "a"), mustParse(t, "a[1] is None"), true)
	require.NotNil(t, cb)
	assert.Equal(t, RuleTupleIndexIsNone, cb.Rule)
	assert.Equal(t, int64(1), cb.Index)

	// `not` only inverts for plain names.
	assert.Nil(t, GetTypeNarrowingCallback(ev, mustParse(t, "a.b"), mustParse(t, "not a.b"), true))
}

func TestAliasedCondition(t *testing.T) {
	ev := newStubEvaluator()
	m := ev.m
	ev.names["x"] = types.CombineTypes(m.Instance("int"), m.NoneInstance())
	initializer := mustParse(t, "x is None")
	ev.decls["is_none"] = []LocalDecl{{Node: initializer, InferredTypeSource: initializer}}
	ev.decls["x"] = []LocalDecl{{Node: &decl.NameExpr{Name: "x"}, IsParameter: true}}

	assert.Equal(t, "None", narrow(t, ev, "x", "is_none", true).Type.String())
	assert.Equal(t, "int", narrow(t, ev, "x", "not is_none", true).Type.String())

	// Two declarations of the alias name disqualify it.
	ev.decls["is_none"] = append(ev.decls["is_none"], LocalDecl{Node: initializer, InferredTypeSource: initializer})
	assert.Nil(t, GetTypeNarrowingCallback(ev, mustParse(t, "x"), mustParse(t, "is_none"), true))
}

func TestIncompleteOperandsPropagate(t *testing.T) {
	ev := newStubEvaluator()
	ev.names["x"] = types.CombineTypes(ev.m.Instance("int"), ev.m.NoneInstance())
	ev.incomplete = true

	result := narrow(t, ev, "x", "isinstance(x, int)", true)
	assert.True(t, result.IsIncomplete)
	assert.Equal(t, "int", result.Type.String())

	// An unevaluable filter yields a pass-through callback while incomplete.
	cb := GetTypeNarrowingCallback(ev, mustParse(t, "x"), mustParse(t, "isinstance(x, y)"), true)
	require.NotNil(t, cb)
	assert.Equal(t, RuleUnchanged, cb.Rule)
	assert.Equal(t, "int | None", cb.Apply(ev, ev.names["x"]).Type.String())

	ev.incomplete = false
	assert.Nil(t, GetTypeNarrowingCallback(ev, mustParse(t, "x"), mustParse(t, "isinstance(x, y)"), true))
}

func TestCallbackString(t *testing.T) {
	ev := newStubEvaluator()
	cb := GetTypeNarrowingCallback(ev, mustParse(t, "x"), mustParse(t, "not isinstance(x, (int, str))"), true)
	require.NotNil(t, cb)
	assert.Equal(t, "isinstance(type[int] | type[str]) negative", cb.String())
}

func TestReferenceKeys(t *testing.T) {
	tests := []struct {
		expr      string
		supported bool
		key       string
	}{
		{"a", true, "a"},
		{"a.b.c", true, "a.b.c"},
		{"a['k'][0]", true, `a["k"][0]`},
		{"a[-1]", true, "a[-1]"},
		{"a[i]", false, ""},
		{"f(x)", false, ""},
	}
	for _, tc := range tests {
		t.Run(tc.expr, func(t *testing.T) {
			e := mustParse(t, tc.expr)
			assert.Equal(t, tc.supported, IsSupportedReference(e))
			if tc.supported {
				assert.Equal(t, tc.key, ReferenceKey(e))
				assert.Equal(t, "a", ReferenceRoot(e).Name)
			}
		})
	}
}
