package types

import "strings"

type ClassFlags uint32

const (
	ClassBuiltIn ClassFlags = 1 << iota
	ClassFinal
	ClassProtocol
	ClassRuntimeCheckable
	ClassEnum
	ClassTypedDict
	ClassCanOmitDictValues
	ClassSpecialForm
	ClassSynthesizedIntersection
)

// Field is a symbol declared in a class body (or synthesized for a builtin).
type Field struct {
	Name            string
	Type            Type
	HasDeclaredType bool
	IsClassVar      bool
}

// TypedDictEntry describes one key of a TypedDict.
type TypedDictEntry struct {
	ValueType  Type
	IsRequired bool
	IsReadOnly bool

	// IsProvided is set by narrowing once a "key in td" test proves presence.
	IsProvided bool
}

// ClassDetails is shared by every specialization of one class.
type ClassDetails struct {
	Name       string
	FullName   string
	Flags      ClassFlags
	BaseClasses []Type
	MRO         []Type
	Fields      []*Field
	TypeParams  []*TypeVarType
	Metaclass   *ClassType

	// TypedDictEntries holds the merged entries of a TypedDict class.
	TypedDictEntries map[string]*TypedDictEntry
}

// TypeGuardInfo is carried by the bool result of a call to a user-defined
// type guard.
type TypeGuardInfo struct {
	Type     Type
	IsStrict bool
}

// TupleArg is one element of a tuple specialization.
type TupleArg struct {
	Type        Type
	IsUnbounded bool
}

// ClassType is either an instance of a class or the class object itself
// (IsInstance false, printed as type[C]).
type ClassType struct {
	Details           *ClassDetails
	IsInstance        bool
	TypeArgs          []Type
	IsTypeArgExplicit bool
	TupleArgs         []TupleArg
	Literal           Literal
	IncludeSubclasses bool
	Condition         []TypeCondition
	TypeGuard         *TypeGuardInfo

	TypedDictNarrowedEntries map[string]*TypedDictEntry
}

// NewClass returns the class object of a fresh class with no bases.
func NewClass(name, fullName string, flags ClassFlags) *ClassType {
	if fullName == "" {
		fullName = name
	}
	return &ClassType{Details: &ClassDetails{Name: name, FullName: fullName, Flags: flags}}
}

func (c *ClassType) clone() *ClassType {
	out := *c
	return &out
}

func (c *ClassType) Name() string { return c.Details.Name }

func (c *ClassType) IsBuiltIn(names ...string) bool {
	if c.Details.Flags&ClassBuiltIn == 0 {
		return false
	}
	if len(names) == 0 {
		return true
	}
	for _, n := range names {
		if c.Details.Name == n {
			return true
		}
	}
	return false
}

func (c *ClassType) IsFinal() bool        { return c.Details.Flags&ClassFinal != 0 }
func (c *ClassType) IsProtocol() bool     { return c.Details.Flags&ClassProtocol != 0 }
func (c *ClassType) IsEnum() bool         { return c.Details.Flags&ClassEnum != 0 }
func (c *ClassType) IsTypedDict() bool    { return c.Details.Flags&ClassTypedDict != 0 }
func (c *ClassType) IsSpecialForm() bool  { return c.Details.Flags&ClassSpecialForm != 0 }
func (c *ClassType) IsIntersection() bool { return c.Details.Flags&ClassSynthesizedIntersection != 0 }

// IsSameGenericClass reports whether both refer to the same class,
// ignoring specialization.
func (c *ClassType) IsSameGenericClass(o *ClassType) bool {
	return c.Details == o.Details
}

func (c *ClassType) CloneAsInstance(includeSubclasses bool) *ClassType {
	out := c.clone()
	out.IsInstance = true
	out.IncludeSubclasses = includeSubclasses
	return out
}

func (c *ClassType) CloneAsInstantiable(includeSubclasses bool) *ClassType {
	out := c.clone()
	out.IsInstance = false
	out.IncludeSubclasses = includeSubclasses
	out.TypeGuard = nil
	return out
}

func (c *ClassType) CloneWithLiteral(lit Literal) *ClassType {
	out := c.clone()
	out.Literal = lit
	return out
}

func (c *ClassType) CloneForSpecialization(typeArgs []Type, explicit bool) *ClassType {
	out := c.clone()
	out.TypeArgs = typeArgs
	out.IsTypeArgExplicit = explicit
	return out
}

func (c *ClassType) CloneForCondition(cond []TypeCondition) *ClassType {
	out := c.clone()
	out.Condition = cond
	return out
}

func (c *ClassType) CloneIncludeSubclasses(include bool) *ClassType {
	if c.IncludeSubclasses == include {
		return c
	}
	out := c.clone()
	out.IncludeSubclasses = include
	return out
}

func (c *ClassType) CloneForTypeGuard(info *TypeGuardInfo) *ClassType {
	out := c.clone()
	out.TypeGuard = info
	return out
}

func (c *ClassType) CloneForNarrowedEntries(entries map[string]*TypedDictEntry) *ClassType {
	out := c.clone()
	out.TypedDictNarrowedEntries = entries
	return out
}

// IsUnspecialized reports a generic class referenced without type arguments.
func (c *ClassType) IsUnspecialized() bool {
	return len(c.Details.TypeParams) > 0 && c.TypeArgs == nil && c.TupleArgs == nil
}

// LookUpField finds a field declared directly on this class.
func (c *ClassType) LookUpField(name string) *Field {
	for _, f := range c.Details.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// AddField declares (or redeclares) a field on the class.
func (c *ClassType) AddField(f *Field) {
	for i, existing := range c.Details.Fields {
		if existing.Name == f.Name {
			c.Details.Fields[i] = f
			return
		}
	}
	c.Details.Fields = append(c.Details.Fields, f)
}

// ClassMember is the result of a member lookup along the MRO.
type ClassMember struct {
	Field *Field

	// ClassType is the MRO class that declares the field, specialized
	// relative to the class the lookup started from.
	ClassType *ClassType
}

// LookUpClassMember walks the MRO of c looking for name. When skipObject is
// set the lookup stops before the builtin object class.
func LookUpClassMember(c *ClassType, name string, skipObject bool) *ClassMember {
	for _, mroEntry := range c.Details.MRO {
		mroClass, ok := mroEntry.(*ClassType)
		if !ok {
			continue
		}
		if skipObject && mroClass.IsBuiltIn("object") {
			continue
		}
		if f := mroClass.LookUpField(name); f != nil {
			return &ClassMember{Field: f, ClassType: specializeMROClass(c, mroClass)}
		}
	}
	return nil
}

// LookUpObjectMember looks up an attribute on an instance.
func LookUpObjectMember(c *ClassType, name string) *ClassMember {
	return LookUpClassMember(c, name, false)
}

// TypeOfMember returns the declared type of a member specialized for the
// class it was found through.
func TypeOfMember(m *ClassMember) Type {
	if m.Field.Type == nil {
		return Unknown()
	}
	return ApplySolution(m.Field.Type, BuildSolutionFromClass(m.ClassType), false)
}

// specializeMROClass specializes an MRO entry (expressed in terms of c's
// own type parameters) using c's type arguments.
func specializeMROClass(c *ClassType, mroClass *ClassType) *ClassType {
	if mroClass.Details == c.Details {
		return c
	}
	return ApplySolution(mroClass, BuildSolutionFromClass(c), false).(*ClassType)
}

// BuildSolutionFromClass maps the type parameters of c to its type
// arguments (Unknown when c is unspecialized).
func BuildSolutionFromClass(c *ClassType) *Solution {
	sol := NewSolution()
	for i, tp := range c.Details.TypeParams {
		var arg Type = Unknown()
		if i < len(c.TypeArgs) {
			arg = c.TypeArgs[i]
		}
		sol.Set(tp, arg)
	}
	return sol
}

// DerivedClassEntry returns the entry for ancestor in c's MRO, specialized
// for c, or nil when c does not derive from it.
func DerivedClassEntry(c *ClassType, ancestor *ClassType) *ClassType {
	for _, mroEntry := range c.Details.MRO {
		if mroClass, ok := mroEntry.(*ClassType); ok && mroClass.Details == ancestor.Details {
			return specializeMROClass(c, mroClass)
		}
	}
	return nil
}

// IsDerivedFrom reports whether ancestor appears in c's MRO.
func IsDerivedFrom(c *ClassType, ancestor *ClassType) bool {
	return DerivedClassEntry(c, ancestor) != nil
}

// DerivesFromAnyClass reports whether the MRO contains an Unknown entry,
// in which case any subclass test is indeterminate.
func DerivesFromAnyClass(c *ClassType) bool {
	for _, mroEntry := range c.Details.MRO {
		if IsAnyOrUnknown(mroEntry) {
			return true
		}
	}
	return false
}

// ComputeMRO computes a C3 linearization for c from its base classes. When
// the bases cannot be linearized it falls back to depth-first order and
// reports false.
func ComputeMRO(c *ClassType) bool {
	var seqs [][]Type
	for _, base := range c.Details.BaseClasses {
		if bc, ok := base.(*ClassType); ok {
			mro := make([]Type, 0, len(bc.Details.MRO))
			for _, e := range bc.Details.MRO {
				if ec, ok := e.(*ClassType); ok {
					mro = append(mro, specializeMROClass(bc, ec))
				} else {
					mro = append(mro, e)
				}
			}
			seqs = append(seqs, mro)
		} else {
			seqs = append(seqs, []Type{base})
		}
	}
	seqs = append(seqs, append([]Type{}, c.Details.BaseClasses...))

	result := []Type{c}
	isConsistent := true
	for {
		seqs = dropEmpty(seqs)
		if len(seqs) == 0 {
			break
		}
		var head Type
		for _, seq := range seqs {
			candidate := seq[0]
			if !appearsInTail(candidate, seqs) {
				head = candidate
				break
			}
		}
		if head == nil {
			isConsistent = false
			head = seqs[0][0]
		}
		result = append(result, head)
		for i, seq := range seqs {
			if sameMROEntry(seq[0], head) {
				seqs[i] = seq[1:]
			}
		}
		if !isConsistent {
			for i, seq := range seqs {
				seqs[i] = removeEntry(seq, head)
			}
		}
	}
	c.Details.MRO = result
	return isConsistent
}

func dropEmpty(seqs [][]Type) [][]Type {
	out := seqs[:0]
	for _, s := range seqs {
		if len(s) > 0 {
			out = append(out, s)
		}
	}
	return out
}

func appearsInTail(t Type, seqs [][]Type) bool {
	for _, seq := range seqs {
		for _, e := range seq[1:] {
			if sameMROEntry(e, t) {
				return true
			}
		}
	}
	return false
}

func removeEntry(seq []Type, t Type) []Type {
	out := seq[:0]
	for _, e := range seq {
		if !sameMROEntry(e, t) {
			out = append(out, e)
		}
	}
	return out
}

func sameMROEntry(a, b Type) bool {
	ac, aok := a.(*ClassType)
	bc, bok := b.(*ClassType)
	if aok && bok {
		return ac.Details == bc.Details
	}
	return IsAnyOrUnknown(a) && IsAnyOrUnknown(b)
}

// NewIntersectionClass synthesizes the class "<subclass of A and B>" used
// when an isinstance filter is unrelated to the narrowed type.
func NewIntersectionClass(a, b *ClassType) *ClassType {
	names := []string{a.Details.Name, b.Details.Name}
	name := "<subclass of " + strings.Join(names, " and ") + ">"
	cls := NewClass(name, name, ClassSynthesizedIntersection)
	if a.IsProtocol() && b.IsProtocol() {
		cls.Details.Flags |= ClassProtocol
	}
	cls.Details.BaseClasses = []Type{a.CloneAsInstantiable(false), b.CloneAsInstantiable(false)}
	cls.Details.Metaclass = a.Details.Metaclass
	ComputeMRO(cls)
	return cls
}
