package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/panyam/pynarrow/decl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIdentifier(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		expected      string
		expectError   bool
		errorContains string
	}{
		{"simple identifier", "myVar", "myVar", false, ""},
		{"identifier with underscore", "_another_var", "_another_var", false, ""},
		{"empty input", "", "", true, "expected IDENTIFIER"},
		{"number as identifier", "123", "", true, "expected IDENTIFIER"},
		{"keyword", "None", "", true, "expected IDENTIFIER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual, err := parseFragment(t, tt.input, func(p *LLParser) (*decl.NameExpr, error) {
				return p.ParseIdentifier()
			})
			assertError(t, tt.input, err, tt.expectError, tt.errorContains)
			if !tt.expectError {
				assertNodeEqual(t, tt.input, tt.expected, actual)
			}
		})
	}
}

func TestParseExpressions(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"is none", "x is None", "x is None"},
		{"boolean chain", "x is not None and y or z", "x is not None and y or z"},
		{"not isinstance", "not isinstance(x, (int, str))", "not isinstance(x, (int, str))"},
		{"len compare", "len(t) == 2", "len(t) == 2"},
		{"member and index", "a.b[0]", "a.b[0]"},
		{"in string", "'a' in td", `"a" in td`},
		{"not in", "x not in (1, 2)", "x not in (1, 2)"},
		{"walrus", "(y := f(1))", "(y := f(1))"},
		{"negative", "-1", "-1"},
		{"big int", "123456789012345678901234567890", "123456789012345678901234567890"},
		{"big hex", "0xFFFFFFFFFFFFFFFFFF", "0xFFFFFFFFFFFFFFFFFF"},
		{"ellipsis subscript", "tuple[int, ...]", "tuple[int, ...]"},
		{"call arguments", "f(*a, **k, key=1)", "f(*a, **k, key=1)"},
		{"bare tuple", "1, 2", "(1, 2)"},
		{"empty tuple", "()", "()"},
		{"singleton tuple", "(1,)", "(1,)"},
		{"parenthesized", "(x)", "x"},
		{"list", "[1, 2]", "[1, 2]"},
		{"set", "{1}", "{1}"},
		{"union annotation", "int | None", "int | None"},
		{"arith", "a + b * c", "a + b * c"},
		{"string concat", "'a' 'b'", `"ab"`},
		{"bytes", "b'x'", `b"x"`},
		{"constants", "(True, False, ...)", "(True, False, ...)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual, err := parseFragment(t, tt.input, func(p *LLParser) (decl.Expr, error) {
				return p.ParseTestList()
			})
			require.NoError(t, err)
			assertNodeEqual(t, tt.input, tt.expected, actual)
		})
	}
}

func TestParsePrecedence(t *testing.T) {
	e, err := ParseExpression("not a and b or c")
	require.NoError(t, err)
	or, ok := e.(*decl.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, decl.OpOr, or.Operator)
	and, ok := or.Left.(*decl.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, decl.OpAnd, and.Operator)
	not, ok := and.Left.(*decl.UnaryExpr)
	require.True(t, ok)
	assert.Equal(t, decl.OpNot, not.Operator)

	e, err = ParseExpression("a == b | c")
	require.NoError(t, err)
	cmpExpr := e.(*decl.BinaryExpr)
	assert.Equal(t, decl.OpEquals, cmpExpr.Operator)
	assert.Equal(t, "b | c", cmpExpr.Right.String())
	assert.Same(t, cmpExpr, cmpExpr.Right.Parent())
}

func TestParseExpressionErrors(t *testing.T) {
	tests := []struct {
		input         string
		errorContains string
	}{
		{"x +", "unexpected"},
		{"f(1", "expected"},
		{"{}", "dict displays"},
		{"(1,\n", "unexpected"},
		{"a.b := 1", "assignment expression"},
		{"x[]", "empty subscript"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := ParseExpression(tt.input)
			assertError(t, tt.input, err, true, tt.errorContains)
		})
	}
}

const sampleModule = `from typing import Literal, TypeGuard as TG
import typing

class A(Base, metaclass=Meta):
    x: int = 1
    def m(self, *args: int, key: str = "a", **kw) -> None: ...

@decorator
def f(a, /, b, *, c):
    if a is None:
        return 1
    elif b:
        pass
    else:
        a += 1
    while a:
        break
    else:
        continue
    for i, j in pairs:
        assert i, "msg"
`

func TestParseModule(t *testing.T) {
	mod, err := ParseString(sampleModule, "sample")
	require.NoError(t, err)
	require.Len(t, mod.Body, 4)

	imp := mod.Body[0].(*decl.ImportStmt)
	assert.Equal(t, "typing", imp.Module)
	if diff := cmp.Diff([]string{"Literal", "TypeGuard"}, imp.Names); diff != "" {
		t.Errorf("import names mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "TG", imp.BoundName(1))
	assert.Equal(t, "Literal", imp.BoundName(0))
	assert.Equal(t, "import typing", mod.Body[1].String())

	cls := mod.Body[2].(*decl.ClassDef)
	assert.Equal(t, "A", cls.Name.Name)
	require.Len(t, cls.Bases(), 1)
	assert.Equal(t, "Meta", cls.Keyword("metaclass").String())
	require.Len(t, cls.Body, 2)
	field := cls.Body[0].(*decl.AssignStmt)
	assert.Equal(t, "x: int = 1", field.String())
	m := cls.Body[1].(*decl.FunctionDef)
	assert.Equal(t, `def m(self, *args: int, key: str = "a", **kw)`, m.String())
	assert.Equal(t, "None", m.Returns.String())
	require.Len(t, m.Body, 1)
	assert.Equal(t, "...", m.Body[0].String())

	f := mod.Body[3].(*decl.FunctionDef)
	require.Len(t, f.Decorators, 1)
	assert.Equal(t, "def f(a, b, c)", f.String())
	assert.Same(t, f, f.Params[0].Parent())
	require.Len(t, f.Body, 3)

	ifStmt := f.Body[0].(*decl.IfStmt)
	assert.Equal(t, "a is None", ifStmt.Test.String())
	elif := ifStmt.Else[0].(*decl.IfStmt)
	assert.True(t, elif.IsElif)
	aug := elif.Else[0].(*decl.AugAssignStmt)
	assert.Equal(t, "a += 1", aug.String())

	loop := f.Body[1].(*decl.WhileStmt)
	assert.IsType(t, &decl.BreakStmt{}, loop.Body[0])
	assert.IsType(t, &decl.ContinueStmt{}, loop.Else[0])

	forStmt := f.Body[2].(*decl.ForStmt)
	assert.Equal(t, "(i, j)", forStmt.Target.String())
	assert.Equal(t, "pairs", forStmt.Iter.String())
	assertStmt := forStmt.Body[0].(*decl.AssertStmt)
	assert.Equal(t, `"msg"`, assertStmt.Message.String())
}

func TestParsePositions(t *testing.T) {
	mod, err := ParseString("x = 1\nif y:\n    z; w\n", "pos")
	require.NoError(t, err)
	require.Len(t, mod.Body, 2)
	assert.Equal(t, decl.Location{Line: 1, Col: 1}, mod.Body[0].Location())
	ifStmt := mod.Body[1].(*decl.IfStmt)
	assert.Equal(t, decl.Location{Line: 2, Col: 1}, ifStmt.Location())
	require.Len(t, ifStmt.Body, 2)
	assert.Equal(t, decl.Location{Line: 3, Col: 8}, ifStmt.Body[1].Location())
	assert.Less(t, ifStmt.Pos(), ifStmt.End())
}

func TestParseModuleErrors(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		errorContains string
	}{
		{"unexpected indent", "  x = 1\n", "unexpected indent"},
		{"missing colon", "if x\n    pass\n", "expected ':'"},
		{"missing block", "if x:\npass\n", "expected INDENT"},
		{"chained assign", "a = b = 1\n", "chained assignment"},
		{"bad dedent", "if x:\n        a\n    b\n", "unindent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString(tt.input, "bad")
			assertError(t, tt.input, err, true, tt.errorContains)
		})
	}
}
