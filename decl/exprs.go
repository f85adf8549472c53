package decl

import (
	"fmt"
	"strconv"
	"strings"

	gfn "github.com/panyam/goutils/fn"
)

// Expr represents an expression node.
type Expr interface {
	Node
	exprNode() // Marker method for expressions
}

type ExprBase struct {
	NodeInfo
}

func (e *ExprBase) exprNode() {}

type Operator int

const (
	OpNone Operator = iota
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpMod
	OpBitwiseOr
	OpBitwiseAnd
	OpEquals
	OpNotEquals
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpIs
	OpIsNot
	OpIn
	OpNotIn
	OpAnd
	OpOr
	OpNot
	OpNegate
)

var operatorText = map[Operator]string{
	OpAdd: "+", OpSubtract: "-", OpMultiply: "*", OpDivide: "/", OpMod: "%",
	OpBitwiseOr: "|", OpBitwiseAnd: "&",
	OpEquals: "==", OpNotEquals: "!=", OpLessThan: "<", OpLessThanOrEqual: "<=",
	OpGreaterThan: ">", OpGreaterThanOrEqual: ">=",
	OpIs: "is", OpIsNot: "is not", OpIn: "in", OpNotIn: "not in",
	OpAnd: "and", OpOr: "or", OpNot: "not", OpNegate: "-",
}

func (o Operator) String() string {
	if s, ok := operatorText[o]; ok {
		return s
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// IsComparison reports operators that produce a bool from two operands.
func (o Operator) IsComparison() bool {
	return o >= OpEquals && o <= OpNotIn
}

// NameExpr is a reference to a variable, function or class.
type NameExpr struct {
	ExprBase
	Name string
}

func (n *NameExpr) String() string   { return n.Name }
func (n *NameExpr) Children() []Node { return nil }

type ConstantKind int

const (
	ConstNone ConstantKind = iota
	ConstTrue
	ConstFalse
	ConstEllipsis
)

// ConstantExpr is one of None, True, False or "...".
type ConstantExpr struct {
	ExprBase
	Kind ConstantKind
}

func (c *ConstantExpr) String() string {
	switch c.Kind {
	case ConstTrue:
		return "True"
	case ConstFalse:
		return "False"
	case ConstEllipsis:
		return "..."
	}
	return "None"
}
func (c *ConstantExpr) Children() []Node { return nil }

// NumberExpr is an int or float literal.
type NumberExpr struct {
	ExprBase
	IsInt      bool
	IntValue   int64
	FloatValue float64

	// IsBig marks an int too large for IntValue; Text holds its source.
	IsBig bool
	Text  string
}

// IsSmallInt reports an int literal whose value is in IntValue.
func (n *NumberExpr) IsSmallInt() bool { return n.IsInt && !n.IsBig }

func (n *NumberExpr) String() string {
	if n.IsBig {
		return n.Text
	}
	if n.IsInt {
		return strconv.FormatInt(n.IntValue, 10)
	}
	return strconv.FormatFloat(n.FloatValue, 'g', -1, 64)
}
func (n *NumberExpr) Children() []Node { return nil }

// StringExpr is a str (or bytes) literal.
type StringExpr struct {
	ExprBase
	Value   string
	IsBytes bool
}

func (s *StringExpr) String() string {
	q := strconv.Quote(s.Value)
	if s.IsBytes {
		return "b" + q
	}
	return q
}
func (s *StringExpr) Children() []Node { return nil }

// MemberAccessExpr is `receiver.member`.
type MemberAccessExpr struct {
	ExprBase
	Receiver Expr
	Member   *NameExpr
}

func (m *MemberAccessExpr) String() string   { return fmt.Sprintf("%s.%s", m.Receiver, m.Member) }
func (m *MemberAccessExpr) Children() []Node { return []Node{m.Receiver, m.Member} }

// IndexExpr is `base[items]`. Several comma separated items form a tuple
// subscript.
type IndexExpr struct {
	ExprBase
	Base  Expr
	Items []Expr
}

func (i *IndexExpr) String() string {
	return fmt.Sprintf("%s[%s]", i.Base, strings.Join(gfn.Map(i.Items, func(e Expr) string { return e.String() }), ", "))
}
func (i *IndexExpr) Children() []Node { return append([]Node{i.Base}, exprNodes(i.Items)...) }

// SingleItem returns the subscript when exactly one item was given.
func (i *IndexExpr) SingleItem() Expr {
	if len(i.Items) == 1 {
		return i.Items[0]
	}
	return nil
}

type ArgCategory int

const (
	ArgSimple ArgCategory = iota
	ArgUnpackedList
	ArgUnpackedDict
)

// Argument is one argument of a call or class definition.
type Argument struct {
	NodeInfo
	Name     *NameExpr // set for keyword arguments
	Category ArgCategory
	Value    Expr
}

func (a *Argument) String() string {
	prefix := ""
	switch a.Category {
	case ArgUnpackedList:
		prefix = "*"
	case ArgUnpackedDict:
		prefix = "**"
	}
	if a.Name != nil {
		return fmt.Sprintf("%s=%s", a.Name, a.Value)
	}
	return prefix + a.Value.String()
}
func (a *Argument) Children() []Node {
	if a.Name != nil {
		return []Node{a.Name, a.Value}
	}
	return []Node{a.Value}
}

// CallExpr is `callee(args...)`.
type CallExpr struct {
	ExprBase
	Callee Expr
	Args   []*Argument
}

func (c *CallExpr) String() string {
	return fmt.Sprintf("%s(%s)", c.Callee, strings.Join(gfn.Map(c.Args, func(a *Argument) string { return a.String() }), ", "))
}
func (c *CallExpr) Children() []Node { return append([]Node{c.Callee}, exprNodes(c.Args)...) }

// PositionalArgs returns the values of the leading positional arguments.
func (c *CallExpr) PositionalArgs() []Expr {
	var out []Expr
	for _, a := range c.Args {
		if a.Name != nil || a.Category != ArgSimple {
			break
		}
		out = append(out, a.Value)
	}
	return out
}

// TupleExpr is a parenthesized or bare comma separated tuple.
type TupleExpr struct {
	ExprBase
	Elements []Expr
}

func (t *TupleExpr) String() string {
	if len(t.Elements) == 1 {
		return fmt.Sprintf("(%s,)", t.Elements[0])
	}
	return fmt.Sprintf("(%s)", strings.Join(gfn.Map(t.Elements, func(e Expr) string { return e.String() }), ", "))
}
func (t *TupleExpr) Children() []Node { return exprNodes(t.Elements) }

// ListExpr is `[a, b, ...]`.
type ListExpr struct {
	ExprBase
	Elements []Expr
}

func (l *ListExpr) String() string {
	return fmt.Sprintf("[%s]", strings.Join(gfn.Map(l.Elements, func(e Expr) string { return e.String() }), ", "))
}
func (l *ListExpr) Children() []Node { return exprNodes(l.Elements) }

// SetExpr is `{a, b, ...}`.
type SetExpr struct {
	ExprBase
	Elements []Expr
}

func (s *SetExpr) String() string {
	return fmt.Sprintf("{%s}", strings.Join(gfn.Map(s.Elements, func(e Expr) string { return e.String() }), ", "))
}
func (s *SetExpr) Children() []Node { return exprNodes(s.Elements) }

// BinaryExpr is `left operator right`, including comparisons and the
// boolean operators.
type BinaryExpr struct {
	ExprBase
	Left     Expr
	Operator Operator
	Right    Expr
}

func (b *BinaryExpr) String() string   { return fmt.Sprintf("%s %s %s", b.Left, b.Operator, b.Right) }
func (b *BinaryExpr) Children() []Node { return []Node{b.Left, b.Right} }

// UnaryExpr is `not operand` or `-operand`.
type UnaryExpr struct {
	ExprBase
	Operator Operator
	Operand  Expr
}

func (u *UnaryExpr) String() string {
	if u.Operator == OpNot {
		return fmt.Sprintf("not %s", u.Operand)
	}
	return fmt.Sprintf("%s%s", u.Operator, u.Operand)
}
func (u *UnaryExpr) Children() []Node { return []Node{u.Operand} }

// AssignmentExpr is the walrus form `name := value`.
type AssignmentExpr struct {
	ExprBase
	Name  *NameExpr
	Value Expr
}

func (a *AssignmentExpr) String() string   { return fmt.Sprintf("(%s := %s)", a.Name, a.Value) }
func (a *AssignmentExpr) Children() []Node { return []Node{a.Name, a.Value} }

// IsExpressionNode reports whether n is an expression.
func IsExpressionNode(n Node) bool {
	_, ok := n.(Expr)
	return ok
}
