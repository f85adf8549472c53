// Package speculative scopes cache entries to tentative evaluation attempts
// so that everything computed during a rejected attempt can be rolled back.
package speculative

import (
	"fmt"
	"log/slog"

	"github.com/panyam/pynarrow/decl"
	"github.com/panyam/pynarrow/types"
)

// MaxEntriesPerNode bounds the speculative results kept for a single node.
const MaxEntriesPerNode = 8

// Cache is a keyed store whose entries can be deleted on rollback.
type Cache interface {
	Delete(key int)
}

// MapCache adapts a plain map to Cache.
type MapCache[V any] map[int]V

func (m MapCache[V]) Delete(key int) { delete(m, key) }

// Options configure a speculative context.
type Options struct {
	// DependentType is an ambient expected type that results computed under
	// this context depend on.
	DependentType types.Type

	// AllowDiagnostics lets diagnostics be reported for nodes under this
	// root even though it is speculative.
	AllowDiagnostics bool
}

// DependentType pairs a speculative root with the dependent type it was
// entered with.
type DependentType struct {
	Root decl.Node
	Type types.Type
}

// Entry is a memoized result of evaluating a node speculatively.
type Entry struct {
	Result               types.TypeResult
	ExpectedType         types.Type
	IncompleteGeneration int
	DependentTypes       []DependentType
}

// IsStale reports whether an incomplete result was produced under a
// different incomplete generation.
func (e *Entry) IsStale(generation int) bool {
	return e.Result.IsIncomplete && e.IncompleteGeneration != generation
}

type undoEntry struct {
	cache Cache
	key   int
}

type addedEntry struct {
	nodeID int
	entry  *Entry
}

type context struct {
	root             decl.Node
	undo             []undoEntry
	added            []addedEntry
	dependentType    types.Type
	allowDiagnostics bool
}

// SavedStack is an opaque context stack returned by Disable.
type SavedStack struct {
	contexts []*context
}

// Tracker holds the speculative context stack and the speculative type
// cache. A Tracker belongs to a single evaluator and is not safe for
// concurrent use.
type Tracker struct {
	stack   []*context
	entries map[int][]*Entry
}

func NewTracker() *Tracker {
	return &Tracker{entries: map[int][]*Entry{}}
}

// Depth returns the number of active speculative contexts.
func (t *Tracker) Depth() int { return len(t.stack) }

// Enter pushes a new speculative context rooted at root.
func (t *Tracker) Enter(root decl.Node, opts Options) {
	if root == nil {
		panic("speculative: Enter called with a nil root")
	}
	t.stack = append(t.stack, &context{
		root:             root,
		dependentType:    opts.DependentType,
		allowDiagnostics: opts.AllowDiagnostics,
	})
}

// Leave pops the top context and deletes every cache entry recorded while
// it was active.
func (t *Tracker) Leave() {
	if len(t.stack) == 0 {
		panic("speculative: Leave called with an empty context stack")
	}
	ctx := t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
	for _, u := range ctx.undo {
		u.cache.Delete(u.key)
	}
	for _, a := range ctx.added {
		t.removeEntry(a.nodeID, a.entry)
	}
}

// Use runs fn inside a speculative context rooted at root. The context is
// left on every exit path, including a panic in fn.
func (t *Tracker) Use(root decl.Node, opts Options, fn func()) {
	t.Enter(root, opts)
	defer t.Leave()
	fn()
}

// IsSpeculative reports whether node lies under any active speculative
// root. A nil node asks whether any context is active at all. With
// ignoreIfDiagnosticsAllowed, roots that permit diagnostics are skipped.
func (t *Tracker) IsSpeculative(node decl.Node, ignoreIfDiagnosticsAllowed bool) bool {
	if len(t.stack) == 0 {
		return false
	}
	if node == nil {
		return true
	}
	for i := len(t.stack) - 1; i >= 0; i-- {
		ctx := t.stack[i]
		if decl.IsNodeContainedWithin(node, ctx.root) {
			if !ignoreIfDiagnosticsAllowed || !ctx.allowDiagnostics {
				return true
			}
		}
	}
	return false
}

// Track records that cache[key] was written under the current context so
// it is deleted when that context is left. Writes outside any context are
// permanent.
func (t *Tracker) Track(cache Cache, key int) {
	if len(t.stack) == 0 {
		return
	}
	top := t.stack[len(t.stack)-1]
	top.undo = append(top.undo, undoEntry{cache: cache, key: key})
}

func (t *Tracker) dependentTypes() (out []DependentType) {
	for _, ctx := range t.stack {
		if ctx.dependentType != nil {
			out = append(out, DependentType{Root: ctx.root, Type: ctx.dependentType})
		}
	}
	return
}

func expectedTypesMatch(a, b types.Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return types.IsSameType(a, b)
}

func dependentTypesMatch(a, b []DependentType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Root != b[i].Root || !types.IsSameType(a[i].Type, b[i].Type) {
			return false
		}
	}
	return true
}

// AddSpeculativeType memoizes result for node under the current context.
// Stale incomplete entries and entries with the same expected and
// dependent types are replaced; the oldest entry is evicted past
// MaxEntriesPerNode.
func (t *Tracker) AddSpeculativeType(node decl.Node, result types.TypeResult, incompleteGeneration int, expected types.Type) {
	if len(t.stack) == 0 {
		panic("speculative: AddSpeculativeType called outside a speculative context")
	}
	id := node.ID()
	deps := t.dependentTypes()
	kept := t.entries[id][:0:0]
	for _, e := range t.entries[id] {
		if e.IsStale(incompleteGeneration) {
			continue
		}
		if expectedTypesMatch(e.ExpectedType, expected) && dependentTypesMatch(e.DependentTypes, deps) {
			continue
		}
		kept = append(kept, e)
	}
	if len(kept) >= MaxEntriesPerNode {
		slog.Debug("speculative cache eviction", "node", id, "entries", len(kept))
		kept = kept[len(kept)-MaxEntriesPerNode+1:]
	}
	entry := &Entry{
		Result:               result,
		ExpectedType:         expected,
		IncompleteGeneration: incompleteGeneration,
		DependentTypes:       deps,
	}
	t.entries[id] = append(kept, entry)
	top := t.stack[len(t.stack)-1]
	top.added = append(top.added, addedEntry{nodeID: id, entry: entry})
}

// GetSpeculativeType returns the newest entry for node whose expected type
// and dependent types match the current context, or nil.
func (t *Tracker) GetSpeculativeType(node decl.Node, expected types.Type) *Entry {
	if !t.isUnderActiveRoot(node) {
		return nil
	}
	entries := t.entries[node.ID()]
	current := t.dependentTypes()
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if expectedTypesMatch(e.ExpectedType, expected) && dependentTypesMatch(e.DependentTypes, current) {
			return e
		}
	}
	return nil
}

func (t *Tracker) isUnderActiveRoot(node decl.Node) bool {
	for _, ctx := range t.stack {
		if decl.IsNodeContainedWithin(node, ctx.root) {
			return true
		}
	}
	return false
}

func (t *Tracker) removeEntry(nodeID int, entry *Entry) {
	entries := t.entries[nodeID]
	for i, e := range entries {
		if e == entry {
			entries = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	if len(entries) == 0 {
		delete(t.entries, nodeID)
	} else {
		t.entries[nodeID] = entries
	}
}

// Disable swaps out the whole context stack so that a nested evaluation
// runs in non-speculative mode. It must be paired with Enable.
func (t *Tracker) Disable() SavedStack {
	saved := SavedStack{contexts: t.stack}
	t.stack = nil
	return saved
}

// Enable restores a stack returned by Disable.
func (t *Tracker) Enable(saved SavedStack) {
	if len(t.stack) != 0 {
		panic(fmt.Sprintf("speculative: Enable called with %d active contexts", len(t.stack)))
	}
	t.stack = saved.contexts
}

// WithDisabled runs fn with speculation disabled and restores the stack
// afterwards.
func (t *Tracker) WithDisabled(fn func()) {
	saved := t.Disable()
	defer t.Enable(saved)
	fn()
}
