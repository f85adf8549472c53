package loader

import (
	"bytes"
	"errors"
	"testing"

	"github.com/panyam/pynarrow/decl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
def f(x: int | None, y: int):
    is_none = x is None
    if y > 0:
        x = 3
    if is_none:
        return x
    while True:
        if x:
            break
    return y

def g():
    return 1
    z = 2

class C:
    attr: int = 0
    def method(self):
        return attr
`

func load(t *testing.T, src string) *File {
	t.Helper()
	fs := NewMemoryFS()
	fs.PreloadFiles(map[string]string{"main.py": src})
	f, err := NewLoader(fs, 0).LoadFile("main.py")
	require.NoError(t, err)
	return f
}

// names returns every NameExpr called name, in source order.
func names(root decl.Node, name string) []*decl.NameExpr {
	var out []*decl.NameExpr
	decl.Walk(root, func(n decl.Node) bool {
		if ne, ok := n.(*decl.NameExpr); ok && ne.Name == name {
			out = append(out, ne)
		}
		return true
	})
	return out
}

func TestScopesAndDeclarations(t *testing.T) {
	f := load(t, sample)
	assert.False(t, f.HasErrors())

	assert.Equal(t, []string{"f", "g", "C"}, f.Scope.Symbols.Keys())
	fn := f.Module.Body[0].(*decl.FunctionDef)
	fscope := f.ScopeFor(fn)
	require.NotNil(t, fscope)
	assert.Equal(t, ScopeFunction, fscope.Kind)
	assert.Equal(t, []string{"x", "y", "is_none"}, fscope.Symbols.Keys())

	x := fscope.LookUpLocal("x")
	require.Len(t, x.Decls, 2)
	assert.Equal(t, DeclParameter, x.Decls[0].Kind)
	assert.NotNil(t, x.Decls[0].Annotation)
	assert.Equal(t, DeclVariable, x.Decls[1].Kind)
	assert.Equal(t, "3", x.Decls[1].InferredTypeSource.String())

	isNone := fscope.LookUpLocal("is_none")
	require.Len(t, isNone.Decls, 1)
	assert.Equal(t, "x is None", isNone.Decls[0].InferredTypeSource.String())

	// Functions see module names through the outer environment.
	assert.NotNil(t, fscope.LookUp("g"))
}

func TestClassScopeIsNotVisibleFromMethods(t *testing.T) {
	f := load(t, sample)
	cls := f.Module.Body[2].(*decl.ClassDef)
	cscope := f.ScopeFor(cls)
	require.NotNil(t, cscope)
	assert.NotNil(t, cscope.LookUpLocal("attr"))
	assert.NotNil(t, cscope.LookUpLocal("method"))

	ref := names(cls, "attr")
	use := ref[len(ref)-1]
	scope := f.ScopeOf(use)
	assert.Equal(t, ScopeFunction, scope.Kind)
	assert.Nil(t, scope.LookUp("attr"))
	assert.Same(t, f.Scope, cscope.ExecutionScope())
}

func TestReachability(t *testing.T) {
	f := load(t, sample)

	z := names(f.Module, "z")
	require.Len(t, z, 1)
	assert.False(t, f.IsReachable(z[0]))

	xs := names(f.Module.Body[0], "x")
	// x (param), x (in test), x = 3, return x, if x
	require.Len(t, xs, 5)
	param, assigned, returned, loopTest := xs[0], xs[2], xs[3], xs[4]
	assert.True(t, f.IsReachable(returned))
	assert.True(t, f.IsNodeReachable(returned, assigned))
	assert.True(t, f.IsNodeReachable(returned, param))
	assert.True(t, f.IsNodeReachable(loopTest, assigned))
	assert.False(t, f.IsNodeReachable(param, assigned))

	// Only the break leaves `while True`.
	ys := names(f.Module.Body[0], "y")
	finalReturn := ys[len(ys)-1]
	assert.True(t, f.IsReachable(finalReturn))
	flow := f.FlowNode(finalReturn)
	require.NotNil(t, flow)
	assert.Equal(t, FlowCondition, flow.Kind)
	assert.True(t, flow.IsPositive)
	assert.Equal(t, "x", flow.Node.String())
}

func TestConditionsAreDecomposed(t *testing.T) {
	f := load(t, `
def f(a: int | None, b: int | None):
    if not (a is None or b is None):
        return a
`)
	as := names(f.Module, "a")
	ret := as[len(as)-1]
	flow := f.FlowNode(ret)
	require.NotNil(t, flow)

	// Both disjuncts were false on the way in.
	require.Equal(t, FlowCondition, flow.Kind)
	assert.Equal(t, "b is None", flow.Node.String())
	assert.False(t, flow.IsPositive)
	prev := flow.Antecedent()
	require.Equal(t, FlowCondition, prev.Kind)
	assert.Equal(t, "a is None", prev.Node.String())
	assert.False(t, prev.IsPositive)
}

func TestAssignmentFlowNodes(t *testing.T) {
	f := load(t, `
def f(o):
    o.value = 1
    (n := o.value)
    return n
`)
	ns := names(f.Module, "n")
	flow := f.FlowNode(ns[len(ns)-1])
	require.Equal(t, FlowAssignment, flow.Kind)
	assert.Equal(t, "n", flow.Key)
	member := flow.Antecedent()
	require.Equal(t, FlowAssignment, member.Kind)
	assert.Equal(t, "o.value", member.Key)
}

func TestLoaderErrors(t *testing.T) {
	fs := NewMemoryFS()
	fs.PreloadFiles(map[string]string{
		"bad.py":   "def f(:\n",
		"break.py": "break\n",
	})
	l := NewLoader(fs, 0)

	_, err := l.LoadFile("missing.py")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = l.LoadFile("bad.py")
	assert.Error(t, err)

	f, err := l.LoadFile("break.py")
	require.NoError(t, err)
	assert.True(t, f.HasErrors())
	var buf bytes.Buffer
	f.PrintErrors(&buf)
	assert.Contains(t, buf.String(), "'break' outside loop")

	again, err := l.LoadFile("break.py")
	require.NoError(t, err)
	assert.Same(t, f, again)
}

func TestErrorCollectorCap(t *testing.T) {
	c := &ErrorCollector{MaxErrors: 2}
	for i := 0; i < 5; i++ {
		c.Errorf(Location{Line: i + 1, Col: 1}, "problem %d", i)
	}
	assert.Len(t, c.Errors, 2)
	assert.True(t, c.Truncated)

	info := &ErrorCollector{}
	info.AddErrors(Infof(Location{Line: 1, Col: 1}, "revealed"))
	assert.False(t, info.HasErrors())
	assert.Equal(t, "1:1: info: revealed", info.Errors[0].Error())
}
