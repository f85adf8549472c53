package checker

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/panyam/pynarrow/decl"
	"github.com/panyam/pynarrow/loader"
	"github.com/panyam/pynarrow/speculative"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func check(t *testing.T, src string) *Result {
	t.Helper()
	fs := loader.NewMemoryFS()
	fs.PreloadFiles(map[string]string{"main.py": src})
	f, err := loader.NewLoader(fs, 0).LoadFile("main.py")
	require.NoError(t, err)
	return NewChecker(f, nil).Check()
}

func errorMessages(r *Result) []string {
	var out []string
	for _, d := range r.Diagnostics {
		if d.Severity == loader.SeverityError {
			out = append(out, d.Msg)
		}
	}
	return out
}

// assertReveals compares the revealed types, as "expr: type", and fails on
// any error diagnostic.
func assertReveals(t *testing.T, r *Result, want ...string) {
	t.Helper()
	var got []string
	for _, rv := range r.Revealed {
		got = append(got, rv.Expr+": "+rv.Type)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("revealed types mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, errorMessages(r))
}

func TestNoneNarrowing(t *testing.T) {
	r := check(t, `
def f(x: int | None):
    if x is None:
        reveal_type(x, expected_text="None")
    else:
        reveal_type(x, expected_text="int")
    reveal_type(x, expected_text="int | None")
`)
	assertReveals(t, r, "x: None", "x: int", "x: int | None")
}

func TestIsInstanceNarrowing(t *testing.T) {
	r := check(t, `
def g(v: int | str | list[int]):
    if isinstance(v, (int, str)):
        reveal_type(v, expected_text="int | str")
    else:
        reveal_type(v, expected_text="list[int]")
`)
	assertReveals(t, r, "v: int | str", "v: list[int]")
}

func TestLiteralComparisonNarrowing(t *testing.T) {
	r := check(t, `
from typing import Literal

def h(mode: Literal["r", "w", "a"]):
    if mode == "r":
        reveal_type(mode, expected_text="Literal['r']")
    else:
        reveal_type(mode, expected_text="Literal['w', 'a']")
`)
	assertReveals(t, r, "mode: Literal['r']", "mode: Literal['w', 'a']")
}

func TestTruthinessNarrowing(t *testing.T) {
	r := check(t, `
def t(s: str | None):
    if s:
        reveal_type(s, expected_text="str")
    else:
        reveal_type(s, expected_text="str | None")
`)
	assertReveals(t, r, "s: str", "s: str | None")
}

func TestLoopJoinsAssignments(t *testing.T) {
	r := check(t, `
def loop(n: int):
    x = None
    while n > 0:
        reveal_type(x, expected_text="int | None")
        x = n
        n -= 1
    reveal_type(x, expected_text="int | None")
`)
	assertReveals(t, r, "x: int | None", "x: int | None")
}

func TestUserDefinedTypeGuard(t *testing.T) {
	r := check(t, `
from typing import TypeGuard

def is_str_list(val: list[object]) -> TypeGuard[list[str]]:
    return True

def use(val: list[object]):
    if is_str_list(val):
        reveal_type(val, expected_text="list[str]")
    else:
        reveal_type(val, expected_text="list[object]")
`)
	assertReveals(t, r, "val: list[str]", "val: list[object]")
}

func TestEnumLiteralNarrowing(t *testing.T) {
	r := check(t, `
from enum import Enum

class Color(Enum):
    RED = 1
    GREEN = 2

def e(c: Color):
    if c is Color.RED:
        reveal_type(c, expected_text="Literal[Color.RED]")
    else:
        reveal_type(c, expected_text="Literal[Color.GREEN]")
`)
	assertReveals(t, r, "c: Literal[Color.RED]", "c: Literal[Color.GREEN]")
}

func TestTupleLengthNarrowing(t *testing.T) {
	r := check(t, `
def f(t: tuple[int] | tuple[int, str]):
    if len(t) == 2:
        reveal_type(t, expected_text="tuple[int, str]")
    else:
        reveal_type(t, expected_text="tuple[int]")
`)
	assertReveals(t, r, "t: tuple[int, str]", "t: tuple[int]")
}

func TestBigIntegerLiterals(t *testing.T) {
	r := check(t, `
def f(t: tuple[int, ...]):
    reveal_type(123456789012345678901234567890, expected_text="int")
    if len(t) == 123456789012345678901234567890:
        reveal_type(t, expected_text="tuple[int, ...]")
    if len(t) == 1099511627776:
        reveal_type(t, expected_text="tuple[int, ...]")
`)
	assertReveals(t, r,
		"123456789012345678901234567890: int",
		"t: tuple[int, ...]",
		"t: tuple[int, ...]",
	)
}

func TestOverloadSelection(t *testing.T) {
	r := check(t, `
from typing import overload

@overload
def conv(x: int) -> str: ...
@overload
def conv(x: str) -> int: ...
def conv(x):
    return x

reveal_type(conv(1), expected_text="str")
reveal_type(conv("a"), expected_text="int")
`)
	assertReveals(t, r, "conv(1): str", `conv("a"): int`)
}

func TestRevealSkipsSpeculativeEvaluation(t *testing.T) {
	src := `
def f(x: int | None):
    reveal_type(x)
`
	want := check(t, src)

	fs := loader.NewMemoryFS()
	fs.PreloadFiles(map[string]string{"main.py": src})
	f, err := loader.NewLoader(fs, 0).LoadFile("main.py")
	require.NoError(t, err)
	c := NewChecker(f, nil)
	ev := c.Evaluator()

	fn := f.Module.Body[0].(*decl.FunctionDef)
	call := fn.Body[0].(*decl.ExprStmt).Expr.(*decl.CallExpr)
	str := ev.model.Instance("str")
	ev.tracker.Use(call, speculative.Options{DependentType: str}, func() {
		ev.reveal(call, call.PositionalArgs()[0], str, "")
	})
	assert.Empty(t, ev.Revealed())

	got := c.Check()
	assertReveals(t, got, "x: int | None")
	if diff := cmp.Diff(want.Diagnostics, got.Diagnostics); diff != "" {
		t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
	}
}

func TestNoMatchingOverload(t *testing.T) {
	r := check(t, `
from typing import overload

@overload
def conv(x: int) -> str: ...
@overload
def conv(x: str) -> int: ...
def conv(x):
    return x

conv(None)
`)
	assert.Equal(t, []string{`No overloads for "conv" match the provided arguments`}, errorMessages(r))
}

func TestConstructorAndSelfAttributes(t *testing.T) {
	r := check(t, `
class Box:
    def __init__(self, v: int):
        self.v = v

b = Box(3)
reveal_type(b, expected_text="Box")
reveal_type(b.v, expected_text="int")
`)
	assertReveals(t, r, "b: Box", "b.v: int")
}

func TestArgumentErrors(t *testing.T) {
	r := check(t, `
def two(a: int, b: str) -> None:
    pass

two(1)
two(1, "x", 3)
two("x", "y")
two(1, b="y", c=2)
`)
	msgs := errorMessages(r)
	assert.Equal(t, []string{
		`Argument missing for parameter "b"`,
		"Expected 2 positional arguments",
		`Argument of type "Literal['x']" cannot be assigned to parameter "a" of type "int"`,
		`No parameter named "c"`,
	}, msgs)
}

func TestUnreachableCodeIsNotChecked(t *testing.T) {
	r := check(t, `
def u() -> int:
    return 1
    reveal_type(undefined_name)
`)
	assert.Empty(t, r.Revealed)
	assert.Empty(t, errorMessages(r))
}

func TestDeclaredTypeMismatch(t *testing.T) {
	r := check(t, `
x: int = "s"
`)
	assert.Equal(t, []string{`Type "Literal['s']" is not assignable to declared type "int"`}, errorMessages(r))
}

func TestReturnTypeMismatch(t *testing.T) {
	r := check(t, `
def f() -> str:
    return 1
`)
	assert.Equal(t, []string{`Type "Literal[1]" is not assignable to return type "str"`}, errorMessages(r))
}

func TestAssertTypeAndUndefinedNames(t *testing.T) {
	r := check(t, `
assert_type(1, str)
reveal_type(undefined_name)
`)
	msgs := errorMessages(r)
	require.Len(t, msgs, 2)
	assert.Equal(t, `"assert_type" mismatch: expected "str" but received "Literal[1]"`, msgs[0])
	assert.Equal(t, `"undefined_name" is not defined`, msgs[1])
}

func TestRevealTextMismatchIsReported(t *testing.T) {
	r := check(t, `
def f(x: int | None):
    if x is not None:
        reveal_type(x, expected_text="str")
`)
	require.Len(t, r.Revealed, 1)
	assert.Equal(t, "int", r.Revealed[0].Type)
	msgs := errorMessages(r)
	require.Len(t, msgs, 1)
	assert.True(t, strings.HasPrefix(msgs[0], "Type text mismatch"), msgs[0])
}

func TestLiteralMath(t *testing.T) {
	r := check(t, `
x = 1 + 2
reveal_type(x, expected_text="Literal[3]")
`)
	assertReveals(t, r, "x: Literal[3]")
}

func TestRevealsAreOrderedByLocation(t *testing.T) {
	r := check(t, `
def f(a: int, b: str):
    reveal_type(b)
    reveal_type(a)
`)
	require.Len(t, r.Revealed, 2)
	assert.Equal(t, 3, r.Revealed[0].Location.Line)
	assert.Equal(t, 4, r.Revealed[1].Location.Line)
	assert.Equal(t, "str", r.Revealed[0].Type)
	assert.Equal(t, "int", r.Revealed[1].Type)
}
