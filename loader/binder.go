package loader

import (
	"log/slog"

	"github.com/panyam/pynarrow/decl"
	"github.com/panyam/pynarrow/narrowing"
)

type loopTargets struct {
	continueTo *FlowNode
	breakTo    *FlowNode
}

// Binder builds scopes, declarations and the code flow graph of a module.
type Binder struct {
	file    *File
	scope   *Scope
	current *FlowNode
	loops   []loopTargets

	// Function bodies are bound after the enclosing scope so that every
	// outer name is declared when a body refers to it.
	deferred []func()
}

// Bind binds mod into a new File.
func Bind(path string, mod *Module, maxErrors int) *File {
	f := newFile(path, mod)
	f.MaxErrors = maxErrors
	b := &Binder{file: f}

	b.scope = newScope(ScopeModule, mod, nil)
	f.Scope = b.scope
	f.ownScopes[mod.ID()] = b.scope
	b.current = b.newNode(FlowStart)
	f.starts[mod.ID()] = b.current
	b.bindBlock(mod.Body)

	for len(b.deferred) > 0 {
		next := b.deferred[0]
		b.deferred = b.deferred[1:]
		next()
	}
	return f
}

func (b *Binder) newNode(kind FlowKind, antecedents ...*FlowNode) *FlowNode {
	b.file.lastFlowID++
	return &FlowNode{ID: b.file.lastFlowID, Kind: kind, Antecedents: antecedents}
}

func (b *Binder) unreachable() *FlowNode {
	return b.file.unreachable
}

func (b *Binder) newLabel() *FlowNode { return b.newNode(FlowBranchLabel) }

func addAntecedent(label, node *FlowNode) {
	if node.Kind == FlowUnreachable {
		return
	}
	for _, a := range label.Antecedents {
		if a == node {
			return
		}
	}
	label.Antecedents = append(label.Antecedents, node)
}

// finishLabel collapses a label with no antecedents into the unreachable
// node and a label with one antecedent into that antecedent.
func (b *Binder) finishLabel(label *FlowNode) *FlowNode {
	switch len(label.Antecedents) {
	case 0:
		return b.unreachable()
	case 1:
		return label.Antecedents[0]
	}
	return label
}

func (b *Binder) record(n Node) {
	b.file.flowNodes[n.ID()] = b.current
	b.file.scopes[n.ID()] = b.scope
}

func (b *Binder) bindBlock(stmts []Stmt) {
	for _, s := range stmts {
		b.bindStmt(s)
	}
}

func (b *Binder) bindStmt(s Stmt) {
	b.record(s)
	switch st := s.(type) {
	case *ExprStmt:
		b.walkExpr(st.Expr)
	case *AssignStmt:
		b.bindAssign(st)
	case *AugAssignStmt:
		b.walkExpr(st.Value)
		b.walkExpr(st.Target)
		b.bindTarget(st.Target, st, nil, nil)
	case *IfStmt:
		b.bindIf(st)
	case *WhileStmt:
		b.bindWhile(st)
	case *ForStmt:
		b.bindFor(st)
	case *AssertStmt:
		pass, fail := b.newLabel(), b.newLabel()
		b.bindCondition(st.Test, pass, fail)
		if st.Message != nil {
			b.current = b.finishLabel(fail)
			b.walkExpr(st.Message)
		}
		b.current = b.finishLabel(pass)
	case *ReturnStmt:
		if st.Value != nil {
			b.walkExpr(st.Value)
		}
		b.current = b.unreachable()
	case *decl.BreakStmt:
		if len(b.loops) == 0 {
			b.file.Errorf(st.Location(), "'break' outside loop")
			return
		}
		addAntecedent(b.loops[len(b.loops)-1].breakTo, b.current)
		b.current = b.unreachable()
	case *decl.ContinueStmt:
		if len(b.loops) == 0 {
			b.file.Errorf(st.Location(), "'continue' not properly in loop")
			return
		}
		addAntecedent(b.loops[len(b.loops)-1].continueTo, b.current)
		b.current = b.unreachable()
	case *decl.PassStmt:
	case *ImportStmt:
		b.bindImport(st)
	case *FunctionDef:
		b.bindFunction(st)
	case *ClassDef:
		b.bindClass(st)
	default:
		slog.Debug("binder skipped statement", "stmt", s.String())
	}
}

func (b *Binder) bindAssign(st *AssignStmt) {
	if st.Value != nil {
		b.walkExpr(st.Value)
	}
	if st.Annotation != nil {
		b.walkExpr(st.Annotation)
	}
	if st.Value == nil {
		// A bare annotation declares without assigning.
		if name, ok := st.Target.(*NameExpr); ok {
			b.record(name)
			sym := b.scope.declare(name.Name)
			d := &Declaration{Kind: DeclVariable, Node: name, Stmt: st, Annotation: st.Annotation}
			sym.Decls = append(sym.Decls, d)
			b.file.decls[name.ID()] = d
			return
		}
		b.walkExpr(st.Target)
		return
	}
	b.bindTarget(st.Target, st, st.Annotation, st.Value)
}

// bindTarget declares and assigns an assignment target. source is the
// assigned value when target receives it whole.
func (b *Binder) bindTarget(target Expr, stmt Node, annotation, source Expr) {
	switch t := target.(type) {
	case *NameExpr:
		sym := b.scope.declare(t.Name)
		d := &Declaration{Kind: DeclVariable, Node: t, Stmt: stmt, Annotation: annotation, InferredTypeSource: source}
		sym.Decls = append(sym.Decls, d)
		b.file.decls[t.ID()] = d
		b.assign(t, stmt)
	case *decl.MemberAccessExpr:
		b.walkExpr(t.Receiver)
		b.assign(t, stmt)
	case *decl.IndexExpr:
		b.walkExpr(t.Base)
		for _, item := range t.Items {
			b.walkExpr(item)
		}
		b.assign(t, stmt)
	case *decl.TupleExpr:
		for _, el := range t.Elements {
			b.bindTarget(el, stmt, nil, nil)
		}
	case *decl.ListExpr:
		for _, el := range t.Elements {
			b.bindTarget(el, stmt, nil, nil)
		}
	default:
		b.file.Errorf(target.Location(), "%s: %s", ErrNoBindingTarget, target)
	}
}

// assign adds an assignment flow node for target.
func (b *Binder) assign(target Expr, stmt Node) {
	if b.current.Kind != FlowUnreachable {
		node := b.newNode(FlowAssignment, b.current)
		node.Node, node.Target, node.Key = stmt, target, narrowing.ReferenceKey(target)
		b.current = node
	}
	if _, aug := stmt.(*AugAssignStmt); !aug {
		// The target of an augmented assignment is read before it is written.
		b.record(target)
	}
}

func (b *Binder) assignName(name string, stmt Node) {
	if b.current.Kind == FlowUnreachable {
		return
	}
	node := b.newNode(FlowAssignment, b.current)
	node.Node, node.Key = stmt, name
	b.current = node
}

func (b *Binder) bindIf(st *IfStmt) {
	then, orElse, post := b.newLabel(), b.newLabel(), b.newLabel()
	b.bindCondition(st.Test, then, orElse)

	b.current = b.finishLabel(then)
	b.bindBlock(st.Body)
	addAntecedent(post, b.current)

	b.current = b.finishLabel(orElse)
	b.bindBlock(st.Else)
	addAntecedent(post, b.current)

	b.current = b.finishLabel(post)
}

func (b *Binder) bindWhile(st *WhileStmt) {
	loop := b.newNode(FlowLoopLabel)
	addAntecedent(loop, b.current)
	b.current = loop

	body, orElse, post := b.newLabel(), b.newLabel(), b.newLabel()
	b.bindCondition(st.Test, body, orElse)

	b.current = b.finishLabel(body)
	b.loops = append(b.loops, loopTargets{continueTo: loop, breakTo: post})
	b.bindBlock(st.Body)
	b.loops = b.loops[:len(b.loops)-1]
	addAntecedent(loop, b.current)

	b.current = b.finishLabel(orElse)
	b.bindBlock(st.Else)
	addAntecedent(post, b.current)
	b.current = b.finishLabel(post)
}

func (b *Binder) bindFor(st *ForStmt) {
	b.walkExpr(st.Iter)
	loop := b.newNode(FlowLoopLabel)
	addAntecedent(loop, b.current)
	b.current = loop

	exhausted, post := b.newLabel(), b.newLabel()
	addAntecedent(exhausted, b.current)
	b.bindTarget(st.Target, st, nil, nil)

	b.loops = append(b.loops, loopTargets{continueTo: loop, breakTo: post})
	b.bindBlock(st.Body)
	b.loops = b.loops[:len(b.loops)-1]
	addAntecedent(loop, b.current)

	b.current = b.finishLabel(exhausted)
	b.bindBlock(st.Else)
	addAntecedent(post, b.current)
	b.current = b.finishLabel(post)
}

func (b *Binder) bindImport(st *ImportStmt) {
	if len(st.Names) == 0 {
		sym := b.scope.declare(st.Module)
		sym.Decls = append(sym.Decls, &Declaration{Kind: DeclImport, Node: st, Stmt: st, ImportModule: st.Module})
		b.assignName(st.Module, st)
		return
	}
	for i, name := range st.Names {
		bound := st.BoundName(i)
		sym := b.scope.declare(bound)
		sym.Decls = append(sym.Decls, &Declaration{Kind: DeclImport, Node: st, Stmt: st, ImportName: name, ImportModule: st.Module})
		b.assignName(bound, st)
	}
}

func (b *Binder) bindFunction(st *FunctionDef) {
	for _, d := range st.Decorators {
		b.walkExpr(d)
	}
	for _, p := range st.Params {
		if p.Default != nil {
			b.walkExpr(p.Default)
		}
		if p.Annotation != nil {
			b.walkExpr(p.Annotation)
		}
	}
	if st.Returns != nil {
		b.walkExpr(st.Returns)
	}

	sym := b.scope.declare(st.Name.Name)
	d := &Declaration{Kind: DeclFunction, Node: st, Stmt: st}
	sym.Decls = append(sym.Decls, d)
	b.file.decls[st.ID()] = d
	b.file.decls[st.Name.ID()] = d
	b.record(st.Name)
	b.assignName(st.Name.Name, st)

	scope := newScope(ScopeFunction, st, b.scope)
	b.file.ownScopes[st.ID()] = scope
	b.deferred = append(b.deferred, func() {
		saved := b.saveState()
		defer b.restoreState(saved)

		b.scope = scope
		b.loops = nil
		b.current = b.newNode(FlowStart)
		b.file.starts[st.ID()] = b.current
		for _, p := range st.Params {
			psym := scope.declare(p.Name.Name)
			pd := &Declaration{Kind: DeclParameter, Node: p, Stmt: st, Annotation: p.Annotation}
			psym.Decls = append(psym.Decls, pd)
			b.file.decls[p.ID()] = pd
			b.file.decls[p.Name.ID()] = pd
			b.record(p)
			b.record(p.Name)
		}
		b.bindBlock(st.Body)
	})
}

func (b *Binder) bindClass(st *ClassDef) {
	for _, d := range st.Decorators {
		b.walkExpr(d)
	}
	for _, a := range st.Arguments {
		b.walkExpr(a.Value)
	}

	scope := newScope(ScopeClass, st, b.scope)
	b.file.ownScopes[st.ID()] = scope
	outer := b.scope
	b.scope = scope
	b.bindBlock(st.Body)
	b.scope = outer

	sym := b.scope.declare(st.Name.Name)
	d := &Declaration{Kind: DeclClass, Node: st, Stmt: st}
	sym.Decls = append(sym.Decls, d)
	b.file.decls[st.ID()] = d
	b.file.decls[st.Name.ID()] = d
	b.record(st.Name)
	b.assignName(st.Name.Name, st)
}

type binderState struct {
	scope   *Scope
	current *FlowNode
	loops   []loopTargets
}

func (b *Binder) saveState() binderState {
	return binderState{b.scope, b.current, b.loops}
}

func (b *Binder) restoreState(s binderState) {
	b.scope, b.current, b.loops = s.scope, s.current, s.loops
}

// bindCondition routes the flow of test to onTrue and onFalse, splitting
// `and`, `or` and `not` into separate condition edges.
func (b *Binder) bindCondition(test Expr, onTrue, onFalse *FlowNode) {
	switch e := test.(type) {
	case *decl.UnaryExpr:
		if e.Operator == decl.OpNot {
			b.record(e)
			b.bindCondition(e.Operand, onFalse, onTrue)
			return
		}
	case *decl.BinaryExpr:
		switch e.Operator {
		case decl.OpAnd:
			b.record(e)
			mid := b.newLabel()
			b.bindCondition(e.Left, mid, onFalse)
			b.current = b.finishLabel(mid)
			b.bindCondition(e.Right, onTrue, onFalse)
			return
		case decl.OpOr:
			b.record(e)
			mid := b.newLabel()
			b.bindCondition(e.Left, onTrue, mid)
			b.current = b.finishLabel(mid)
			b.bindCondition(e.Right, onTrue, onFalse)
			return
		}
	case *decl.ConstantExpr:
		b.record(e)
		switch e.Kind {
		case decl.ConstTrue:
			addAntecedent(onTrue, b.current)
			return
		case decl.ConstFalse, decl.ConstNone:
			addAntecedent(onFalse, b.current)
			return
		}
	}

	b.walkExpr(test)
	addAntecedent(onTrue, b.condition(test, true))
	addAntecedent(onFalse, b.condition(test, false))
}

func (b *Binder) condition(test Expr, isPositive bool) *FlowNode {
	if b.current.Kind == FlowUnreachable {
		return b.current
	}
	node := b.newNode(FlowCondition, b.current)
	node.Node, node.IsPositive = test, isPositive
	return node
}

// walkExpr records the flow node and scope of every expression. Short
// circuit operators route their right operand through a condition edge.
func (b *Binder) walkExpr(e Expr) {
	if e == nil {
		return
	}
	switch x := e.(type) {
	case *decl.BinaryExpr:
		if x.Operator == decl.OpAnd || x.Operator == decl.OpOr {
			b.record(x)
			right, post := b.newLabel(), b.newLabel()
			if x.Operator == decl.OpAnd {
				b.bindCondition(x.Left, right, post)
			} else {
				b.bindCondition(x.Left, post, right)
			}
			b.current = b.finishLabel(right)
			b.walkExpr(x.Right)
			addAntecedent(post, b.current)
			b.current = b.finishLabel(post)
			return
		}
		b.walkExpr(x.Left)
		b.walkExpr(x.Right)
	case *decl.AssignmentExpr:
		b.walkExpr(x.Value)
		b.record(x)
		b.bindTarget(x.Name, x, nil, x.Value)
		return
	case *decl.MemberAccessExpr:
		b.walkExpr(x.Receiver)
	case *decl.IndexExpr:
		b.walkExpr(x.Base)
		for _, item := range x.Items {
			b.walkExpr(item)
		}
	case *decl.CallExpr:
		b.walkExpr(x.Callee)
		for _, a := range x.Args {
			b.walkExpr(a.Value)
		}
	case *decl.UnaryExpr:
		b.walkExpr(x.Operand)
	case *decl.TupleExpr:
		for _, el := range x.Elements {
			b.walkExpr(el)
		}
	case *decl.ListExpr:
		for _, el := range x.Elements {
			b.walkExpr(el)
		}
	case *decl.SetExpr:
		for _, el := range x.Elements {
			b.walkExpr(el)
		}
	}
	b.record(e)
}
