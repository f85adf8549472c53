package speculative

import (
	"testing"

	"github.com/panyam/pynarrow/decl"
	"github.com/panyam/pynarrow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleTree builds `f(x)` and `y` as two statements of a module.
func sampleTree() (mod *decl.Module, call *decl.CallExpr, arg *decl.NameExpr, other *decl.NameExpr) {
	arg = &decl.NameExpr{Name: "x"}
	call = &decl.CallExpr{Callee: &decl.NameExpr{Name: "f"}, Args: []*decl.Argument{{Value: arg}}}
	other = &decl.NameExpr{Name: "y"}
	mod = &decl.Module{Body: []decl.Stmt{&decl.ExprStmt{Expr: call}, &decl.ExprStmt{Expr: other}}}
	decl.Finalize(mod)
	return
}

func intResult(m *types.Model) types.TypeResult {
	return types.TypeResult{Type: m.Instance("int")}
}

func TestSpeculativeIsolation(t *testing.T) {
	m := types.NewModel()
	_, call, arg, _ := sampleTree()
	tr := NewTracker()

	tr.Enter(call, Options{})
	tr.AddSpeculativeType(arg, intResult(m), 0, nil)
	entry := tr.GetSpeculativeType(arg, nil)
	require.NotNil(t, entry)
	assert.Equal(t, "int", entry.Result.Type.String())
	tr.Leave()

	assert.Nil(t, tr.GetSpeculativeType(arg, nil))
	assert.Empty(t, tr.entries)

	// Re-entering does not resurrect the rolled back entry.
	tr.Enter(call, Options{})
	assert.Nil(t, tr.GetSpeculativeType(arg, nil))
	tr.Leave()
}

func TestGetRequiresActiveRoot(t *testing.T) {
	m := types.NewModel()
	_, call, arg, other := sampleTree()
	tr := NewTracker()
	tr.Enter(call, Options{})
	defer tr.Leave()

	tr.AddSpeculativeType(arg, intResult(m), 0, nil)
	assert.NotNil(t, tr.GetSpeculativeType(arg, nil))
	assert.Nil(t, tr.GetSpeculativeType(other, nil))
}

func TestLeaveUndoesTrackedEntries(t *testing.T) {
	_, call, _, _ := sampleTree()
	tr := NewTracker()
	cache := MapCache[string]{}

	cache[1] = "permanent"
	tr.Track(cache, 1)

	tr.Enter(call, Options{})
	cache[2] = "speculative"
	tr.Track(cache, 2)
	tr.Leave()

	assert.Equal(t, MapCache[string]{1: "permanent"}, cache)
}

func TestUseLeavesOnPanic(t *testing.T) {
	m := types.NewModel()
	_, call, arg, _ := sampleTree()
	tr := NewTracker()
	cache := MapCache[types.Type]{}

	func() {
		defer func() {
			assert.Equal(t, "boom", recover())
		}()
		tr.Use(call, Options{}, func() {
			cache[arg.ID()] = m.Instance("str")
			tr.Track(cache, arg.ID())
			tr.AddSpeculativeType(arg, intResult(m), 0, nil)
			panic("boom")
		})
	}()

	assert.Equal(t, 0, tr.Depth())
	assert.Empty(t, cache)
	assert.Empty(t, tr.entries)
}

func TestUseScopesContext(t *testing.T) {
	_, call, arg, _ := sampleTree()
	tr := NewTracker()

	tests := []struct {
		name        string
		diagnostics bool
		ignore      bool
		speculative bool
	}{
		{"plain context", false, false, true},
		{"plain context ignoring diagnostics", false, true, true},
		{"diagnostics allowed", true, false, true},
		{"diagnostics allowed and ignored", true, true, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tr.Use(call, Options{AllowDiagnostics: tc.diagnostics}, func() {
				assert.Equal(t, 1, tr.Depth())
				assert.Equal(t, tc.speculative, tr.IsSpeculative(arg, tc.ignore))
			})
			assert.Equal(t, 0, tr.Depth())
			assert.False(t, tr.IsSpeculative(arg, false))
		})
	}
}

func TestExpectedTypeKeys(t *testing.T) {
	m := types.NewModel()
	_, call, arg, _ := sampleTree()
	tr := NewTracker()
	tr.Enter(call, Options{})
	defer tr.Leave()

	listOfInt := m.Specialize("list", m.Instance("int"))
	tr.AddSpeculativeType(arg, types.TypeResult{Type: m.Instance("str")}, 0, nil)
	tr.AddSpeculativeType(arg, types.TypeResult{Type: listOfInt}, 0, listOfInt)

	assert.Equal(t, "str", tr.GetSpeculativeType(arg, nil).Result.Type.String())
	assert.Equal(t, "list[int]", tr.GetSpeculativeType(arg, m.Specialize("list", m.Instance("int"))).Result.Type.String())
	assert.Nil(t, tr.GetSpeculativeType(arg, m.Instance("int")))

	// Same expected type replaces rather than duplicates.
	tr.AddSpeculativeType(arg, types.TypeResult{Type: m.Instance("bytes")}, 0, nil)
	assert.Len(t, tr.entries[arg.ID()], 2)
	assert.Equal(t, "bytes", tr.GetSpeculativeType(arg, nil).Result.Type.String())
}

func TestDependentTypesDoNotCrossHit(t *testing.T) {
	m := types.NewModel()
	_, call, arg, _ := sampleTree()
	tr := NewTracker()

	tr.Enter(call, Options{DependentType: m.Instance("int")})
	tr.AddSpeculativeType(arg, types.TypeResult{Type: m.Instance("int")}, 0, nil)
	require.NotNil(t, tr.GetSpeculativeType(arg, nil))

	// A nested context with a different dependent type misses.
	tr.Enter(call, Options{DependentType: m.Instance("str")})
	assert.Nil(t, tr.GetSpeculativeType(arg, nil))
	tr.AddSpeculativeType(arg, types.TypeResult{Type: m.Instance("str")}, 0, nil)
	assert.Equal(t, "str", tr.GetSpeculativeType(arg, nil).Result.Type.String())
	tr.Leave()

	entry := tr.GetSpeculativeType(arg, nil)
	require.NotNil(t, entry)
	assert.Equal(t, "int", entry.Result.Type.String())
	tr.Leave()

	tr.Enter(call, Options{DependentType: m.Instance("str")})
	assert.Nil(t, tr.GetSpeculativeType(arg, nil))
	tr.Leave()
}

func TestEvictionCap(t *testing.T) {
	m := types.NewModel()
	_, call, arg, _ := sampleTree()
	tr := NewTracker()
	tr.Enter(call, Options{})
	defer tr.Leave()

	for i := 0; i < 12; i++ {
		lit := m.LiteralInstance(types.IntLiteral(i))
		tr.AddSpeculativeType(arg, types.TypeResult{Type: lit}, 0, lit)
	}
	assert.Len(t, tr.entries[arg.ID()], MaxEntriesPerNode)
	assert.Nil(t, tr.GetSpeculativeType(arg, m.LiteralInstance(types.IntLiteral(0))))
	assert.NotNil(t, tr.GetSpeculativeType(arg, m.LiteralInstance(types.IntLiteral(11))))
}

func TestStaleIncompleteEntriesAreFiltered(t *testing.T) {
	m := types.NewModel()
	_, call, arg, _ := sampleTree()
	tr := NewTracker()
	tr.Enter(call, Options{})
	defer tr.Leave()

	intType := m.Instance("int")
	tr.AddSpeculativeType(arg, types.TypeResult{Type: intType, IsIncomplete: true}, 1, intType)
	entry := tr.GetSpeculativeType(arg, intType)
	require.NotNil(t, entry)
	assert.False(t, entry.IsStale(1))
	assert.True(t, entry.IsStale(2))

	tr.AddSpeculativeType(arg, types.TypeResult{Type: m.Instance("str")}, 2, nil)
	assert.Len(t, tr.entries[arg.ID()], 1)
	assert.Nil(t, tr.GetSpeculativeType(arg, intType))
}

func TestIsSpeculative(t *testing.T) {
	_, call, arg, other := sampleTree()
	tr := NewTracker()
	assert.False(t, tr.IsSpeculative(nil, false))

	tr.Enter(call, Options{AllowDiagnostics: true})
	assert.True(t, tr.IsSpeculative(nil, false))
	assert.True(t, tr.IsSpeculative(arg, false))
	assert.False(t, tr.IsSpeculative(arg, true))
	assert.False(t, tr.IsSpeculative(other, false))

	tr.Enter(arg, Options{})
	assert.True(t, tr.IsSpeculative(arg, true))
	tr.Leave()
	tr.Leave()
}

func TestDisableEnable(t *testing.T) {
	_, call, arg, _ := sampleTree()
	tr := NewTracker()
	tr.Enter(call, Options{})

	tr.WithDisabled(func() {
		assert.False(t, tr.IsSpeculative(arg, false))
		assert.Equal(t, 0, tr.Depth())
	})
	assert.True(t, tr.IsSpeculative(arg, false))

	saved := tr.Disable()
	tr.Enter(call, Options{})
	assert.Panics(t, func() { tr.Enable(saved) })
	tr.Leave()
	tr.Enable(saved)
	assert.Equal(t, 1, tr.Depth())
	tr.Leave()
}

func TestMisusePanics(t *testing.T) {
	m := types.NewModel()
	_, _, arg, _ := sampleTree()
	tr := NewTracker()
	assert.Panics(t, func() { tr.Leave() })
	assert.Panics(t, func() { tr.AddSpeculativeType(arg, intResult(m), 0, nil) })
	assert.Panics(t, func() { tr.Enter(nil, Options{}) })
}
