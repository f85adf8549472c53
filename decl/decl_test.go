package decl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func name(n string) *NameExpr { return &NameExpr{Name: n} }

func TestFinalizeAssignsParentsAndIDs(t *testing.T) {
	test := &BinaryExpr{Left: name("x"), Operator: OpIs, Right: &ConstantExpr{Kind: ConstNone}}
	stmt := &IfStmt{Test: test, Body: []Stmt{&PassStmt{}}}
	mod := &Module{Name: "m", Body: []Stmt{stmt}}
	Finalize(mod)

	assert.Nil(t, mod.Parent())
	assert.Same(t, mod, stmt.Parent())
	assert.Same(t, stmt, test.Parent())
	assert.Same(t, test, test.Left.Parent())
	assert.NotEqual(t, test.ID(), test.Left.ID())
	assert.NotZero(t, mod.ID())

	assert.True(t, IsNodeContainedWithin(test.Left, stmt))
	assert.True(t, IsNodeContainedWithin(stmt, stmt))
	assert.False(t, IsNodeContainedWithin(stmt, test))
	assert.Same(t, mod, EnclosingScopeNode(test.Left))
}

func TestExprStrings(t *testing.T) {
	call := &CallExpr{Callee: name("isinstance"), Args: []*Argument{{Value: name("x")}, {Value: &TupleExpr{Elements: []Expr{name("int"), name("str")}}}}}
	assert.Equal(t, "isinstance(x, (int, str))", call.String())
	assert.Equal(t, "x.y[0]", (&IndexExpr{Base: &MemberAccessExpr{Receiver: name("x"), Member: name("y")}, Items: []Expr{&NumberExpr{IsInt: true}}}).String())
	assert.Equal(t, "not a is not None", (&UnaryExpr{Operator: OpNot, Operand: &BinaryExpr{Left: name("a"), Operator: OpIsNot, Right: &ConstantExpr{}}}).String())
	assert.Equal(t, "(y := f(1))", (&AssignmentExpr{Name: name("y"), Value: &CallExpr{Callee: name("f"), Args: []*Argument{{Value: &NumberExpr{IsInt: true, IntValue: 1}}}}}).String())
}

func TestWalkSkipsChildren(t *testing.T) {
	inner := &FunctionDef{Name: name("f"), Body: []Stmt{&ExprStmt{Expr: name("hidden")}}}
	mod := &Module{Body: []Stmt{inner, &ExprStmt{Expr: name("visible")}}}
	Finalize(mod)

	var seen []string
	Walk(mod, func(n Node) bool {
		if ne, ok := n.(*NameExpr); ok {
			seen = append(seen, ne.Name)
		}
		_, isFunc := n.(*FunctionDef)
		return !isFunc
	})
	assert.Equal(t, []string{"visible"}, seen)
}

func TestEnvScoping(t *testing.T) {
	outer := NewEnv[int](nil)
	outer.Set("a", 1)
	inner := outer.Push()
	inner.Set("b", 2)

	v, ok := inner.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, owner := inner.Lookup("a")
	assert.Same(t, outer, owner)

	_, ok = inner.GetLocal("a")
	assert.False(t, ok)
	_, ok = outer.Get("b")
	assert.False(t, ok)

	inner.Set("c", 3)
	inner.Set("b", 4)
	assert.Equal(t, []string{"b", "c"}, inner.Keys())
}
