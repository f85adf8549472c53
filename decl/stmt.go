package decl

import (
	"fmt"
	"strings"

	gfn "github.com/panyam/goutils/fn"
)

// Stmt represents a statement node.
type Stmt interface {
	Node
	stmtNode() // Marker method for statements
}

type StmtBase struct {
	NodeInfo
}

func (s *StmtBase) stmtNode() {}

// Module is the root of a parsed source file.
type Module struct {
	NodeInfo
	Name string
	Body []Stmt
}

func (m *Module) String() string   { return fmt.Sprintf("module %s", m.Name) }
func (m *Module) Children() []Node { return exprNodes(m.Body) }

// ExprStmt is an expression evaluated for its effect.
type ExprStmt struct {
	StmtBase
	Expr Expr
}

func (e *ExprStmt) String() string   { return e.Expr.String() }
func (e *ExprStmt) Children() []Node { return []Node{e.Expr} }

// AssignStmt is `target = value`, `target: annotation = value` or the bare
// declaration `target: annotation`.
type AssignStmt struct {
	StmtBase
	Target     Expr
	Annotation Expr
	Value      Expr
}

func (a *AssignStmt) String() string {
	out := a.Target.String()
	if a.Annotation != nil {
		out += ": " + a.Annotation.String()
	}
	if a.Value != nil {
		out += " = " + a.Value.String()
	}
	return out
}
func (a *AssignStmt) Children() []Node {
	out := []Node{a.Target}
	if a.Annotation != nil {
		out = append(out, a.Annotation)
	}
	if a.Value != nil {
		out = append(out, a.Value)
	}
	return out
}

// AugAssignStmt is `target op= value`.
type AugAssignStmt struct {
	StmtBase
	Target   Expr
	Operator Operator
	Value    Expr
}

func (a *AugAssignStmt) String() string   { return fmt.Sprintf("%s %s= %s", a.Target, a.Operator, a.Value) }
func (a *AugAssignStmt) Children() []Node { return []Node{a.Target, a.Value} }

// IfStmt is an if statement. An elif chain is represented by a nested
// IfStmt as the only statement of Else.
type IfStmt struct {
	StmtBase
	Test   Expr
	Body   []Stmt
	Else   []Stmt
	IsElif bool
}

func (i *IfStmt) String() string { return fmt.Sprintf("if %s: ...", i.Test) }
func (i *IfStmt) Children() []Node {
	return append(append([]Node{i.Test}, exprNodes(i.Body)...), exprNodes(i.Else)...)
}

type WhileStmt struct {
	StmtBase
	Test Expr
	Body []Stmt
	Else []Stmt
}

func (w *WhileStmt) String() string { return fmt.Sprintf("while %s: ...", w.Test) }
func (w *WhileStmt) Children() []Node {
	return append(append([]Node{w.Test}, exprNodes(w.Body)...), exprNodes(w.Else)...)
}

// ForStmt is `for target in iter:`.
type ForStmt struct {
	StmtBase
	Target Expr
	Iter   Expr
	Body   []Stmt
	Else   []Stmt
}

func (f *ForStmt) String() string { return fmt.Sprintf("for %s in %s: ...", f.Target, f.Iter) }
func (f *ForStmt) Children() []Node {
	return append(append([]Node{f.Target, f.Iter}, exprNodes(f.Body)...), exprNodes(f.Else)...)
}

type AssertStmt struct {
	StmtBase
	Test    Expr
	Message Expr
}

func (a *AssertStmt) String() string { return fmt.Sprintf("assert %s", a.Test) }
func (a *AssertStmt) Children() []Node {
	if a.Message != nil {
		return []Node{a.Test, a.Message}
	}
	return []Node{a.Test}
}

type ReturnStmt struct {
	StmtBase
	Value Expr
}

func (r *ReturnStmt) String() string {
	if r.Value == nil {
		return "return"
	}
	return fmt.Sprintf("return %s", r.Value)
}
func (r *ReturnStmt) Children() []Node {
	if r.Value == nil {
		return nil
	}
	return []Node{r.Value}
}

type PassStmt struct{ StmtBase }

func (p *PassStmt) String() string   { return "pass" }
func (p *PassStmt) Children() []Node { return nil }

type BreakStmt struct{ StmtBase }

func (b *BreakStmt) String() string   { return "break" }
func (b *BreakStmt) Children() []Node { return nil }

type ContinueStmt struct{ StmtBase }

func (c *ContinueStmt) String() string   { return "continue" }
func (c *ContinueStmt) Children() []Node { return nil }

// ImportStmt records `import m` or `from m import a, b as c`. Imports are
// resolved against the builtin typing namespace only. Aliases parallels
// Names and holds "" where no alias was given.
type ImportStmt struct {
	StmtBase
	Module  string
	Names   []string
	Aliases []string
}

// BoundName returns the local name the i-th imported name is bound to.
func (i *ImportStmt) BoundName(idx int) string {
	if idx < len(i.Aliases) && i.Aliases[idx] != "" {
		return i.Aliases[idx]
	}
	return i.Names[idx]
}

func (i *ImportStmt) String() string {
	if len(i.Names) == 0 {
		return "import " + i.Module
	}
	parts := make([]string, len(i.Names))
	for idx, n := range i.Names {
		parts[idx] = n
		if b := i.BoundName(idx); b != n {
			parts[idx] += " as " + b
		}
	}
	return fmt.Sprintf("from %s import %s", i.Module, strings.Join(parts, ", "))
}
func (i *ImportStmt) Children() []Node { return nil }

type ParamCategory int

const (
	ParamSimple ParamCategory = iota
	ParamArgsList
	ParamKwargsDict
)

// Parameter is one parameter of a function definition.
type Parameter struct {
	NodeInfo
	Name       *NameExpr
	Category   ParamCategory
	Annotation Expr
	Default    Expr
}

func (p *Parameter) String() string {
	out := p.Name.String()
	switch p.Category {
	case ParamArgsList:
		out = "*" + out
	case ParamKwargsDict:
		out = "**" + out
	}
	if p.Annotation != nil {
		out += ": " + p.Annotation.String()
	}
	if p.Default != nil {
		out += " = " + p.Default.String()
	}
	return out
}
func (p *Parameter) Children() []Node {
	out := []Node{p.Name}
	if p.Annotation != nil {
		out = append(out, p.Annotation)
	}
	if p.Default != nil {
		out = append(out, p.Default)
	}
	return out
}

// FunctionDef is a `def` statement with its decorators.
type FunctionDef struct {
	StmtBase
	Name       *NameExpr
	Decorators []Expr
	Params     []*Parameter
	Returns    Expr
	Body       []Stmt
}

func (f *FunctionDef) String() string {
	return fmt.Sprintf("def %s(%s)", f.Name, strings.Join(gfn.Map(f.Params, func(p *Parameter) string { return p.String() }), ", "))
}
func (f *FunctionDef) Children() []Node {
	out := append(exprNodes(f.Decorators), f.Name)
	out = append(out, exprNodes(f.Params)...)
	if f.Returns != nil {
		out = append(out, f.Returns)
	}
	return append(out, exprNodes(f.Body)...)
}

// ClassDef is a `class` statement. Arguments hold the bases and keywords
// such as metaclass= or total=.
type ClassDef struct {
	StmtBase
	Name       *NameExpr
	Decorators []Expr
	Arguments  []*Argument
	Body       []Stmt
}

func (c *ClassDef) String() string { return fmt.Sprintf("class %s", c.Name) }
func (c *ClassDef) Children() []Node {
	out := append(exprNodes(c.Decorators), c.Name)
	out = append(out, exprNodes(c.Arguments)...)
	return append(out, exprNodes(c.Body)...)
}

// Keyword returns the value of a keyword argument of the class statement.
func (c *ClassDef) Keyword(name string) Expr {
	for _, a := range c.Arguments {
		if a.Name != nil && a.Name.Name == name {
			return a.Value
		}
	}
	return nil
}

// Bases returns the positional arguments of the class statement.
func (c *ClassDef) Bases() []Expr {
	var out []Expr
	for _, a := range c.Arguments {
		if a.Name == nil {
			out = append(out, a.Value)
		}
	}
	return out
}
