package types

// Type is a static type. Values are immutable once constructed; every
// refinement produces a clone.
type Type interface {
	isType()
	String() string
}

// TypeResult pairs a type with the incompleteness flag produced while
// evaluating it.
type TypeResult struct {
	Type         Type
	IsIncomplete bool
}

// AnyType is the gradual type. IsUnknown marks an Any that was inferred
// rather than written.
type AnyType struct {
	IsUnknown bool
}

// NeverType is the empty union.
type NeverType struct{}

// ModuleType is the type of an imported module object.
type ModuleType struct {
	Name   string
	Fields map[string]Type
}

// UnionType holds two or more distinct members. Members are never unions
// and never Never.
type UnionType struct {
	Members []Type
}

var (
	anySingleton     = &AnyType{}
	unknownSingleton = &AnyType{IsUnknown: true}
	neverSingleton   = &NeverType{}
)

func Any() *AnyType       { return anySingleton }
func Unknown() *AnyType   { return unknownSingleton }
func Never() *NeverType   { return neverSingleton }
func (*AnyType) isType()  {}
func (*NeverType) isType() {}
func (*ModuleType) isType() {}
func (*UnionType) isType() {}
func (*ClassType) isType() {}
func (*FunctionType) isType() {}
func (*OverloadedType) isType() {}
func (*TypeVarType) isType() {}

func (t *AnyType) String() string        { return Print(t) }
func (t *NeverType) String() string      { return Print(t) }
func (t *ModuleType) String() string     { return Print(t) }
func (t *UnionType) String() string      { return Print(t) }
func (t *ClassType) String() string      { return Print(t) }
func (t *FunctionType) String() string   { return Print(t) }
func (t *OverloadedType) String() string { return Print(t) }
func (t *TypeVarType) String() string    { return Print(t) }

func IsAnyOrUnknown(t Type) bool {
	_, ok := t.(*AnyType)
	return ok
}

func IsUnknown(t Type) bool {
	a, ok := t.(*AnyType)
	return ok && a.IsUnknown
}

func IsNever(t Type) bool {
	_, ok := t.(*NeverType)
	return ok
}

func IsUnion(t Type) bool {
	_, ok := t.(*UnionType)
	return ok
}

// ParamCategory distinguishes simple, *args and **kwargs parameters.
type ParamCategory int

const (
	ParamSimple ParamCategory = iota
	ParamArgsList
	ParamKwargsDict
)

type FunctionParam struct {
	Category   ParamCategory
	Name       string
	Type       Type
	HasDefault bool
}

type FunctionFlags uint32

const (
	FunctionOverloaded FunctionFlags = 1 << iota
	FunctionStaticMethod
	FunctionClassMethod
)

type FunctionDetails struct {
	Name               string
	FullName           string
	Params             []FunctionParam
	DeclaredReturnType Type
	Flags              FunctionFlags
	TypeVarScopeID     string

	// BuiltInName is set for functions the evaluator special-cases
	// (isinstance, issubclass, len, type, bool, reveal_type, ...).
	BuiltInName string
}

// FunctionType is a callable. BoundToSelf is set when the function was
// accessed through an instance or class so its first parameter is implied.
type FunctionType struct {
	Details     *FunctionDetails
	BoundToSelf bool
	Condition   []TypeCondition
}

func NewFunction(name string, params []FunctionParam, ret Type) *FunctionType {
	return &FunctionType{Details: &FunctionDetails{Name: name, FullName: name, Params: params, DeclaredReturnType: ret}}
}

func (f *FunctionType) IsBuiltIn(name string) bool {
	return f.Details.BuiltInName == name
}

// EffectiveParams skips the implied self/cls parameter of a bound method.
func (f *FunctionType) EffectiveParams() []FunctionParam {
	if f.BoundToSelf && len(f.Details.Params) > 0 && f.Details.Flags&FunctionStaticMethod == 0 {
		return f.Details.Params[1:]
	}
	return f.Details.Params
}

func (f *FunctionType) ReturnType() Type {
	if f.Details.DeclaredReturnType == nil {
		return Unknown()
	}
	return f.Details.DeclaredReturnType
}

func (f *FunctionType) CloneAsBound() *FunctionType {
	out := *f
	out.BoundToSelf = true
	return &out
}

type OverloadedType struct {
	Overloads []*FunctionType
}

type TypeVarDetails struct {
	Name        string
	Bound       Type
	Constraints []Type
}

// TypeVarType is a reference to a type variable within a scope.
type TypeVarType struct {
	Details *TypeVarDetails

	// ScopeID names the class or function that binds the variable.
	ScopeID string

	// IsInstantiable marks type[T].
	IsInstantiable bool
}

func NewTypeVar(name string) *TypeVarType {
	return &TypeVarType{Details: &TypeVarDetails{Name: name}}
}

func (tv *TypeVarType) Name() string { return tv.Details.Name }

func (tv *TypeVarType) key() string { return tv.Details.Name + "@" + tv.ScopeID }

func (tv *TypeVarType) HasConstraints() bool { return len(tv.Details.Constraints) > 0 }

func (tv *TypeVarType) CloneForScope(scopeID string) *TypeVarType {
	out := *tv
	out.ScopeID = scopeID
	return &out
}

func (tv *TypeVarType) CloneAsInstantiable() *TypeVarType {
	out := *tv
	out.IsInstantiable = true
	return &out
}

func (tv *TypeVarType) CloneAsInstance() *TypeVarType {
	out := *tv
	out.IsInstantiable = false
	return &out
}
