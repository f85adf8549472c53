package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Literal is the value a literal type is pinned to.
type Literal interface {
	literal()
}

type BoolLiteral bool
type IntLiteral int64
type StrLiteral string
type BytesLiteral string

// EnumLiteral identifies one member of an enum class.
type EnumLiteral struct {
	ClassFullName string
	ClassName     string
	ItemName      string
	ItemType      Type
}

func (BoolLiteral) literal()  {}
func (IntLiteral) literal()   {}
func (StrLiteral) literal()   {}
func (BytesLiteral) literal() {}
func (*EnumLiteral) literal() {}

// LiteralEqual compares two literal values structurally.
func LiteralEqual(a, b Literal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case *EnumLiteral:
		bv, ok := b.(*EnumLiteral)
		return ok && av.ClassFullName == bv.ClassFullName && av.ItemName == bv.ItemName
	default:
		return a == b
	}
}

// IsFalsyLiteral reports whether the runtime value of a literal is falsy.
func IsFalsyLiteral(l Literal) bool {
	switch v := l.(type) {
	case BoolLiteral:
		return !bool(v)
	case IntLiteral:
		return v == 0
	case StrLiteral:
		return v == ""
	case BytesLiteral:
		return v == ""
	}
	return false
}

func printLiteral(l Literal) string {
	switch v := l.(type) {
	case BoolLiteral:
		if v {
			return "True"
		}
		return "False"
	case IntLiteral:
		return strconv.FormatInt(int64(v), 10)
	case StrLiteral:
		return quoteLiteral(string(v))
	case BytesLiteral:
		return "b" + quoteLiteral(string(v))
	case *EnumLiteral:
		return v.ClassName + "." + v.ItemName
	}
	return fmt.Sprintf("%v", l)
}

func quoteLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	if strings.Contains(s, "'") && !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}
