package narrowing

import (
	"fmt"
	"strings"

	"github.com/panyam/pynarrow/types"
)

// Rule names the narrowing form a condition matched.
type Rule int

const (
	// RuleUnchanged passes the type through. It is produced when an
	// isinstance filter could not be evaluated yet.
	RuleUnchanged Rule = iota
	RuleIsNone
	RuleTupleIndexIsNone
	RuleIsEllipsis
	RuleTypeIs
	RuleLiteralComparison
	RuleClassComparison
	RuleDictEntryComparison
	RuleTupleEntryComparison
	RuleMemberLiteralComparison
	RuleMemberIsNone
	RuleTupleLength
	RuleTruthiness
	RuleContainer
	RuleTypedDictKey
	RuleIsInstance
	RuleTypeGuard
)

var ruleNames = map[Rule]string{
	RuleUnchanged:               "unchanged",
	RuleIsNone:                  "is-none",
	RuleTupleIndexIsNone:        "tuple-index-is-none",
	RuleIsEllipsis:              "is-ellipsis",
	RuleTypeIs:                  "type-is",
	RuleLiteralComparison:       "literal-comparison",
	RuleClassComparison:         "class-comparison",
	RuleDictEntryComparison:     "typeddict-entry-comparison",
	RuleTupleEntryComparison:    "tuple-entry-comparison",
	RuleMemberLiteralComparison: "member-literal-comparison",
	RuleMemberIsNone:            "member-is-none",
	RuleTupleLength:             "tuple-length",
	RuleTruthiness:              "truthiness",
	RuleContainer:               "container",
	RuleTypedDictKey:            "typeddict-key",
	RuleIsInstance:              "isinstance",
	RuleTypeGuard:               "type-guard",
}

func (r Rule) String() string {
	if s, ok := ruleNames[r]; ok {
		return s
	}
	return fmt.Sprintf("Rule(%d)", int(r))
}

// Callback is a matched narrowing rule together with the operands that
// were evaluated while matching. Which operand fields are set depends on
// Rule.
type Callback struct {
	Rule       Rule
	IsPositive bool

	// IsIncomplete is set when an operand was evaluated from incomplete
	// information; every result of Apply carries it.
	IsIncomplete bool

	// Operand is the literal, class, container or type guard type the
	// reference is compared against.
	Operand types.Type

	// Key is the literal subscript of a discriminated comparison or the
	// key of a TypedDict membership test.
	Key *types.ClassType

	// Index is the tuple slot of RuleTupleIndexIsNone or the length of
	// RuleTupleLength.
	Index int64

	Member  string
	Filters []types.Type

	IsIsOperator    bool
	IsLessThan      bool
	IsInstanceCheck bool
	IsStrict        bool
}

// Apply narrows t according to the matched rule.
func (c *Callback) Apply(ev Evaluator, t types.Type) types.TypeResult {
	m := ev.Model()
	var out types.Type
	switch c.Rule {
	case RuleIsNone:
		out = NarrowTypeForIsNone(m, t, c.IsPositive)
	case RuleTupleIndexIsNone:
		out = NarrowTupleTypeForIsNone(m, t, c.IsPositive, c.Index)
	case RuleIsEllipsis:
		out = NarrowTypeForIsEllipsis(m, t, c.IsPositive)
	case RuleTypeIs:
		out = NarrowTypeForTypeIs(m, t, c.Operand.(*types.ClassType), c.IsPositive)
	case RuleLiteralComparison:
		out = NarrowTypeForLiteralComparison(m, t, c.Operand.(*types.ClassType), c.IsPositive, c.IsIsOperator)
	case RuleClassComparison:
		out = NarrowTypeForClassComparison(m, t, c.Operand.(*types.ClassType), c.IsPositive)
	case RuleDictEntryComparison:
		out = NarrowTypeForDiscriminatedDictEntry(m, t, c.Key, c.Operand, c.IsPositive)
	case RuleTupleEntryComparison:
		out = NarrowTypeForDiscriminatedTupleEntry(m, t, c.Key, c.Operand, c.IsPositive)
	case RuleMemberLiteralComparison:
		out = NarrowTypeForDiscriminatedField(m, t, c.Member, c.Operand, c.IsPositive, c.IsIsOperator)
	case RuleMemberIsNone:
		out = NarrowTypeForFieldIsNone(m, t, c.Member, c.IsPositive)
	case RuleTupleLength:
		out = NarrowTypeForTupleLength(m, t, c.Index, c.IsPositive, c.IsLessThan)
	case RuleTruthiness:
		out = NarrowTypeForTruthiness(m, t, c.IsPositive)
	case RuleContainer:
		out = NarrowTypeForContainer(m, t, c.Operand, c.IsPositive)
	case RuleTypedDictKey:
		out = NarrowTypeForTypedDictKey(m, t, c.Key, c.IsPositive)
	case RuleIsInstance:
		out = NarrowTypeForIsInstance(m, t, c.Filters, c.IsInstanceCheck, c.IsPositive)
	case RuleTypeGuard:
		out = NarrowTypeForTypeGuard(m, t, c.Operand, c.IsPositive, c.IsStrict)
	default:
		out = t
	}
	return types.TypeResult{Type: out, IsIncomplete: c.IsIncomplete}
}

// String describes the callback, e.g. "isinstance(int | str) negative".
func (c *Callback) String() string {
	var sb strings.Builder
	sb.WriteString(c.Rule.String())
	var args []string
	if c.Key != nil {
		args = append(args, c.Key.String())
	}
	if c.Member != "" {
		args = append(args, "."+c.Member)
	}
	switch c.Rule {
	case RuleTupleIndexIsNone, RuleTupleLength:
		args = append(args, fmt.Sprint(c.Index))
	}
	if c.Operand != nil {
		args = append(args, c.Operand.String())
	}
	if len(c.Filters) > 0 {
		args = append(args, types.CombineTypes(c.Filters...).String())
	}
	if len(args) > 0 {
		sb.WriteString("(" + strings.Join(args, ", ") + ")")
	}
	if c.IsPositive {
		sb.WriteString(" positive")
	} else {
		sb.WriteString(" negative")
	}
	if c.IsIncomplete {
		sb.WriteString(" incomplete")
	}
	return sb.String()
}
