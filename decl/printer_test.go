package decl_test

import (
	"testing"

	"github.com/panyam/pynarrow/decl"
	"github.com/panyam/pynarrow/parser"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func TestFormatRoundTrip(t *testing.T) {
	src := `from typing import Literal
@dataclass
class Point(Base, total=False):
    x: int
    y: int = 0
def f(p: Point | None, mode: Literal["r", "w"]) -> int:
    if p is None:
        return 0
    elif mode == "r":
        assert p.x > 0, "positive"
    else:
        pass
    while p.x < 10:
        p.x += 1
    for i in [1, 2]:
        reveal_type(i)
    return p.x
`
	mod, err := parser.ParseString(src, "main.py")
	assert.NilError(t, err)
	assert.Equal(t, decl.Format(mod.Body...), src)
}

func TestFormatEmptyBlock(t *testing.T) {
	cp := decl.NewCodePrinter()
	decl.PrintStmt(cp, &decl.IfStmt{Test: &decl.NameExpr{Name: "flag"}})
	assert.Equal(t, cp.String(), "if flag:\n    pass\n")
}

func TestCodePrinterIndent(t *testing.T) {
	cp := decl.NewCodePrinter()
	cp.Println("def f():")
	decl.WithIndent(1, cp, func(cp decl.CodePrinter) {
		cp.Printf("return %d", 1)
	})
	cp.Print("\n\nx")
	assert.Check(t, is.Equal(cp.String(), "def f():\n    return 1\n\nx"))
}
