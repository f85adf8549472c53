package loader

import "github.com/panyam/pynarrow/decl"

type ScopeKind int

const (
	ScopeModule ScopeKind = iota
	ScopeClass
	ScopeFunction
)

// Scope is a module, class or function namespace.
type Scope struct {
	Kind   ScopeKind
	Node   Node
	Parent *Scope

	// Symbols declared in this scope. The outer environment skips class
	// scopes, so lookups from a method never see class-level names.
	Symbols *Env[*Symbol]
}

func newScope(kind ScopeKind, node Node, parent *Scope) *Scope {
	var outer *Env[*Symbol]
	if visible := parent.ExecutionScope(); visible != nil {
		outer = visible.Symbols
	}
	return &Scope{Kind: kind, Node: node, Parent: parent, Symbols: decl.NewEnv(outer)}
}

// ExecutionScope returns the nearest function or module scope. Class
// bodies execute within it.
func (s *Scope) ExecutionScope() *Scope {
	for cur := s; cur != nil; cur = cur.Parent {
		if cur.Kind != ScopeClass {
			return cur
		}
	}
	return nil
}

// LookUp finds name in this scope or an enclosing one visible from it.
func (s *Scope) LookUp(name string) *Symbol {
	sym, _ := s.Symbols.Get(name)
	return sym
}

// LookUpLocal finds name declared directly in this scope.
func (s *Scope) LookUpLocal(name string) *Symbol {
	sym, _ := s.Symbols.GetLocal(name)
	return sym
}

func (s *Scope) declare(name string) *Symbol {
	if sym := s.LookUpLocal(name); sym != nil {
		return sym
	}
	sym := &Symbol{Name: name, Scope: s}
	s.Symbols.Set(name, sym)
	return sym
}

// Symbol is a name with its declarations in source order.
type Symbol struct {
	Name  string
	Scope *Scope
	Decls []*Declaration
}

// HasTypedDecls reports whether some declaration carries an explicit type.
func (s *Symbol) HasTypedDecls() bool {
	for _, d := range s.Decls {
		if d.HasTypeAnnotation() {
			return true
		}
	}
	return false
}

type DeclKind int

const (
	DeclVariable DeclKind = iota
	DeclParameter
	DeclClass
	DeclFunction
	DeclImport
)

// Declaration is one binding of a symbol.
type Declaration struct {
	Kind DeclKind

	// Node is the target name of a variable, the Parameter of a
	// parameter, the ClassDef or FunctionDef, or the ImportStmt.
	Node Node

	// Stmt is the statement that performs the binding.
	Stmt Node

	Annotation Expr

	// InferredTypeSource is the assigned value of a variable declaration
	// with a simple target, nil otherwise.
	InferredTypeSource Expr

	// ImportName is the imported name of a DeclImport.
	ImportName   string
	ImportModule string
}

func (d *Declaration) HasTypeAnnotation() bool {
	switch d.Kind {
	case DeclClass, DeclFunction, DeclImport:
		return true
	}
	return d.Annotation != nil
}
