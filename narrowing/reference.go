package narrowing

import (
	"fmt"
	"strconv"

	"github.com/panyam/pynarrow/decl"
)

// IsMatchingExpression reports whether expr refers to the same storage as
// reference: the same name in the same execution scope, the same member of
// a matching receiver, or the same constant subscript of a matching base.
// A walrus on the expression side matches through its target name.
func IsMatchingExpression(reference, expr decl.Expr) bool {
	switch ref := reference.(type) {
	case *decl.NameExpr:
		var name *decl.NameExpr
		switch e := expr.(type) {
		case *decl.NameExpr:
			name = e
		case *decl.AssignmentExpr:
			name = e.Name
		default:
			return false
		}
		return ref.Name == name.Name && sameScope(ref, name)
	case *decl.MemberAccessExpr:
		e, ok := expr.(*decl.MemberAccessExpr)
		return ok && ref.Member.Name == e.Member.Name && IsMatchingExpression(ref.Receiver, e.Receiver)
	case *decl.IndexExpr:
		e, ok := expr.(*decl.IndexExpr)
		if !ok {
			return false
		}
		refKey, ok1 := subscriptKey(ref)
		exprKey, ok2 := subscriptKey(e)
		return ok1 && ok2 && refKey == exprKey && IsMatchingExpression(ref.Base, e.Base)
	}
	return false
}

// sameScope compares the execution scopes of two names. Detached names
// (as produced by parsing a lone expression) have no scope and match.
func sameScope(a, b decl.Node) bool {
	sa, sb := decl.EnclosingScopeNode(a), decl.EnclosingScopeNode(b)
	if sa == nil || sb == nil {
		return true
	}
	return sa == sb
}

// subscriptKey returns a printable key for a single constant subscript:
// an int (possibly negated) or a string.
func subscriptKey(e *decl.IndexExpr) (string, bool) {
	item := e.SingleItem()
	if item == nil {
		return "", false
	}
	if v, ok := intConstant(item); ok {
		return strconv.FormatInt(v, 10), true
	}
	if s, ok := item.(*decl.StringExpr); ok && !s.IsBytes {
		return strconv.Quote(s.Value), true
	}
	return "", false
}

// intConstant evaluates an int literal or a negated int literal.
func intConstant(e decl.Expr) (int64, bool) {
	switch v := e.(type) {
	case *decl.NumberExpr:
		if v.IsSmallInt() {
			return v.IntValue, true
		}
	case *decl.UnaryExpr:
		if v.Operator == decl.OpNegate {
			if n, ok := v.Operand.(*decl.NumberExpr); ok && n.IsSmallInt() {
				return -n.IntValue, true
			}
		}
	}
	return 0, false
}

// IsSupportedReference reports whether e can be the subject of narrowing:
// a name, or a member access or constant subscript chain rooted at a name.
func IsSupportedReference(e decl.Expr) bool {
	switch v := e.(type) {
	case *decl.NameExpr:
		return true
	case *decl.MemberAccessExpr:
		return IsSupportedReference(v.Receiver)
	case *decl.IndexExpr:
		if _, ok := subscriptKey(v); !ok {
			return false
		}
		return IsSupportedReference(v.Base)
	}
	return false
}

// ReferenceKey returns a key that identifies a supported reference, for
// example "a", "a.b" or `a["k"][0]`.
func ReferenceKey(e decl.Expr) string {
	switch v := e.(type) {
	case *decl.NameExpr:
		return v.Name
	case *decl.AssignmentExpr:
		return v.Name.Name
	case *decl.MemberAccessExpr:
		return ReferenceKey(v.Receiver) + "." + v.Member.Name
	case *decl.IndexExpr:
		key, _ := subscriptKey(v)
		return fmt.Sprintf("%s[%s]", ReferenceKey(v.Base), key)
	}
	return ""
}

// ReferenceRoot returns the leftmost name of a supported reference.
func ReferenceRoot(e decl.Expr) *decl.NameExpr {
	switch v := e.(type) {
	case *decl.NameExpr:
		return v
	case *decl.AssignmentExpr:
		return v.Name
	case *decl.MemberAccessExpr:
		return ReferenceRoot(v.Receiver)
	case *decl.IndexExpr:
		return ReferenceRoot(v.Base)
	}
	return nil
}
