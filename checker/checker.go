package checker

import (
	"cmp"
	"errors"
	"slices"

	"github.com/panyam/pynarrow/decl"
	"github.com/panyam/pynarrow/loader"
	"github.com/panyam/pynarrow/types"
)

// Result is the outcome of checking one file.
type Result struct {
	Path        string
	Revealed    []Revealed
	Diagnostics []*loader.Diagnostic
	Truncated   bool
}

// HasErrors reports whether any diagnostic is an error.
func (r *Result) HasErrors() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == loader.SeverityError {
			return true
		}
	}
	return false
}

// Checker evaluates every reachable statement of a bound file.
type Checker struct {
	file *loader.File
	ev   *Evaluator
}

func NewChecker(file *loader.File, model *types.Model) *Checker {
	return &Checker{file: file, ev: NewEvaluator(file, model)}
}

func (c *Checker) Evaluator() *Evaluator { return c.ev }

// Check walks the module and returns the revealed types and diagnostics.
// Checking is idempotent; a second call reports the same result.
func (c *Checker) Check() *Result {
	c.checkBlock(c.file.Module.Body)

	res := &Result{Path: c.file.Path, Truncated: c.file.Truncated}
	res.Revealed = slices.Clone(c.ev.Revealed())
	slices.SortStableFunc(res.Revealed, func(a, b Revealed) int {
		return compareLocations(a.Location, b.Location)
	})
	for _, err := range c.file.Errors {
		var d *loader.Diagnostic
		if !errors.As(err, &d) {
			d = &loader.Diagnostic{Msg: err.Error()}
		}
		res.Diagnostics = append(res.Diagnostics, d)
	}
	slices.SortStableFunc(res.Diagnostics, func(a, b *loader.Diagnostic) int {
		return compareLocations(a.Pos, b.Pos)
	})
	return res
}

func compareLocations(a, b decl.Location) int {
	if a.Line != b.Line {
		return cmp.Compare(a.Line, b.Line)
	}
	return cmp.Compare(a.Col, b.Col)
}

func (c *Checker) checkBlock(stmts []decl.Stmt) {
	for _, s := range stmts {
		if !c.file.IsReachable(s) {
			continue
		}
		c.checkStmt(s)
	}
}

func (c *Checker) checkStmt(s decl.Stmt) {
	ev := c.ev
	switch st := s.(type) {
	case *decl.ExprStmt:
		c.checkExpr(st.Expr)

	case *decl.AssignStmt:
		c.checkAssign(st)

	case *decl.AugAssignStmt:
		left := c.checkExpr(st.Target)
		right := c.checkExpr(st.Value)
		if !left.IsIncomplete && !right.IsIncomplete {
			ev.binaryOperation(st, st.Operator, left.Type, right.Type, false)
		}

	case *decl.IfStmt:
		c.checkExpr(st.Test)
		c.checkBlock(st.Body)
		c.checkBlock(st.Else)

	case *decl.WhileStmt:
		c.checkExpr(st.Test)
		c.checkBlock(st.Body)
		c.checkBlock(st.Else)

	case *decl.ForStmt:
		iter := c.checkExpr(st.Iter)
		ev.iteratedType(iter.Type, st.Iter)
		c.checkTarget(st.Target)
		c.checkBlock(st.Body)
		c.checkBlock(st.Else)

	case *decl.AssertStmt:
		c.checkExpr(st.Test)
		if st.Message != nil {
			c.checkExpr(st.Message)
		}

	case *decl.ReturnStmt:
		c.checkReturn(st)

	case *decl.ImportStmt:
		scope := ev.file.ScopeOf(st)
		for _, name := range scope.Symbols.Keys() {
			for _, d := range scope.LookUpLocal(name).Decls {
				if d.Stmt == decl.Node(st) {
					ev.typeOfImport(d)
				}
			}
		}

	case *decl.FunctionDef:
		ev.functionOf(st)
		if sym, i := ev.symbolOfDefinition(st.Name); i >= 0 {
			ev.typeOfFunctionDeclaration(sym, i)
		}
		for _, p := range st.Params {
			if p.Default != nil {
				c.checkExpr(p.Default)
			}
		}
		c.checkBlock(st.Body)

	case *decl.ClassDef:
		ev.classOf(st)
		c.checkBlock(st.Body)
	}
}

func (c *Checker) checkAssign(st *decl.AssignStmt) {
	ev := c.ev
	var declared types.Type
	if st.Annotation != nil {
		if !isFinalAnnotation(st.Annotation) {
			declared = ev.typeOfAnnotation(st.Annotation)
		}
	} else {
		declared = ev.declaredTypeOfTarget(st.Target)
	}
	c.checkTarget(st.Target)
	if st.Value == nil {
		return
	}
	if declared != nil && types.IsAnyOrUnknown(declared) {
		declared = nil
	}
	c.checkExpr(st.Value)
	if declared == nil {
		return
	}
	src := ev.GetTypeOfExpression(st.Value, declared)
	if !src.IsIncomplete && !ev.model.AssignType(declared, src.Type, nil) {
		ev.addError(st.Value, "Type %q is not assignable to declared type %q", src.Type.String(), declared.String())
	}
}

// checkTarget evaluates the subexpressions read by an assignment target.
func (c *Checker) checkTarget(target decl.Expr) {
	switch t := target.(type) {
	case *decl.MemberAccessExpr:
		c.checkExpr(t.Receiver)
	case *decl.IndexExpr:
		c.checkExpr(t.Base)
		for _, item := range t.Items {
			c.checkExpr(item)
		}
	case *decl.TupleExpr:
		for _, el := range t.Elements {
			c.checkTarget(el)
		}
	case *decl.ListExpr:
		for _, el := range t.Elements {
			c.checkTarget(el)
		}
	}
}

func (c *Checker) checkReturn(st *decl.ReturnStmt) {
	ev := c.ev
	fd, ok := decl.EnclosingScopeNode(st).(*decl.FunctionDef)
	if !ok {
		ev.addError(st, "\"return\" can be used only within a function")
		if st.Value != nil {
			c.checkExpr(st.Value)
		}
		return
	}
	declared := c.returnCheckType(ev.functionOf(fd).Details.DeclaredReturnType)
	var src types.TypeResult
	if st.Value == nil {
		src = ev.result(ev.model.NoneInstance())
	} else {
		c.checkExpr(st.Value)
		src = ev.GetTypeOfExpression(st.Value, declared)
	}
	if declared == nil || src.IsIncomplete {
		return
	}
	if !ev.model.AssignType(declared, src.Type, nil) {
		at := decl.Node(st)
		if st.Value != nil {
			at = st.Value
		}
		ev.addError(at, "Type %q is not assignable to return type %q", src.Type.String(), declared.String())
	}
}

// returnCheckType is the type return values are checked against, or nil
// when they are not checked.
func (c *Checker) returnCheckType(declared types.Type) types.Type {
	if declared == nil || types.IsAnyOrUnknown(declared) || types.RequiresSpecialization(declared) {
		return nil
	}
	if cls, ok := declared.(*types.ClassType); ok && cls.IsInstance && cls.IsBuiltIn("TypeGuard", "TypeIs") {
		return c.ev.model.Instance("bool")
	}
	return declared
}

// checkExpr evaluates e and records the reveal_type calls it contains.
func (c *Checker) checkExpr(e decl.Expr) types.TypeResult {
	ev := c.ev
	r := ev.GetTypeOfExpression(e, nil)
	decl.Walk(e, func(n decl.Node) bool {
		call, ok := n.(*decl.CallExpr)
		if !ok {
			return true
		}
		if builtinFunctionName(ev.GetTypeOfExpression(call.Callee, nil).Type) != builtinRevealType {
			return true
		}
		args := call.PositionalArgs()
		if len(args) != 1 {
			return true
		}
		expectedText := ""
		for _, a := range call.Args {
			if a.Name != nil && a.Name.Name == "expected_text" {
				if s, ok := a.Value.(*decl.StringExpr); ok {
					expectedText = s.Value
				}
			}
		}
		ev.reveal(call, args[0], ev.GetTypeOfExpression(args[0], nil).Type, expectedText)
		return true
	})
	return r
}
