package decl

import (
	"fmt"
	"sort"
)

// References to values
type Ref[T any] struct {
	Value T
}

// Env[T] is a scoped symbol environment. Lookups fall through to the outer
// environment; writes always land in the innermost one.
type Env[T any] struct {
	store map[string]*Ref[T]
	order []string
	outer *Env[T]
}

// NewEnv[T] creates a new environment nested within an outer one.
// If outer is nil then returns a fresh top-level environment.
func NewEnv[T any](outer *Env[T]) *Env[T] {
	return &Env[T]{store: map[string]*Ref[T]{}, outer: outer}
}

func (e *Env[T]) Outer() *Env[T] { return e.outer }

// GetRef retrieves a reference by name, checking outer environments.
func (e *Env[T]) GetRef(name string) *Ref[T] {
	if ref, ok := e.store[name]; ok && ref != nil {
		return ref
	}
	if e.outer != nil {
		return e.outer.GetRef(name)
	}
	return nil
}

func (e *Env[T]) Get(name string) (out T, found bool) {
	if ref := e.GetRef(name); ref != nil {
		return ref.Value, true
	}
	return
}

// GetLocal looks up name in this environment only.
func (e *Env[T]) GetLocal(name string) (out T, found bool) {
	if ref, ok := e.store[name]; ok && ref != nil {
		return ref.Value, true
	}
	return
}

// Lookup returns the value and the environment that holds it.
func (e *Env[T]) Lookup(name string) (out T, owner *Env[T]) {
	for cur := e; cur != nil; cur = cur.outer {
		if ref, ok := cur.store[name]; ok && ref != nil {
			return ref.Value, cur
		}
	}
	return
}

func (e *Env[T]) Set(key string, value T) {
	if _, exists := e.store[key]; !exists {
		e.order = append(e.order, key)
	}
	e.store[key] = &Ref[T]{Value: value}
}

// Push creates a child environment.
func (e *Env[T]) Push() *Env[T] {
	return NewEnv(e)
}

// Keys returns the names declared in this environment in declaration order.
func (e *Env[T]) Keys() []string {
	return append([]string{}, e.order...)
}

// String representation for debugging
func (e *Env[T]) String() string {
	keys := e.Keys()
	sort.Strings(keys)
	return fmt.Sprintf("Env{store: %v, outer: %v}", keys, e.outer != nil)
}
