package types

// Model owns the builtin class universe and the semantic operations that
// depend on it (assignability, concretization, truthiness).
type Model struct {
	classes map[string]*ClassType

	Object, TypeClass, NoneType, Ellipsis     *ClassType
	Bool, Int, Float, Complex, Str, Bytes     *ClassType
	Tuple, List, Set, FrozenSet, Dict, Deque  *ClassType
	DefaultDict, OrderedDict                  *ClassType
	Sequence, Mapping, Iterable, Sized        *ClassType
	Hashable, Callable                        *ClassType
	EnumMeta, Enum, Flag, IntEnum             *ClassType
	TypedDict, Protocol, Generic              *ClassType
	TypeGuard, TypeIs, ModuleTypeClass        *ClassType
}

// NewModel builds the builtin classes.
func NewModel() *Model {
	m := &Model{classes: map[string]*ClassType{}}

	m.Object = m.define("object", 0, nil)
	m.TypeClass = m.define("type", 0, nil, m.Object)
	m.Object.Details.Metaclass = m.TypeClass
	m.TypeClass.Details.Metaclass = m.TypeClass

	m.Hashable = m.define("Hashable", ClassProtocol|ClassRuntimeCheckable, nil, m.Object)
	m.Sized = m.define("Sized", ClassProtocol|ClassRuntimeCheckable, nil, m.Object)
	m.Iterable = m.define("Iterable", ClassProtocol|ClassRuntimeCheckable, []string{"T_co"}, m.Object)
	m.Callable = m.define("Callable", ClassProtocol|ClassRuntimeCheckable|ClassSpecialForm, nil, m.Object)

	m.NoneType = m.define("NoneType", ClassFinal, nil, m.Object)
	m.Ellipsis = m.define("EllipsisType", ClassFinal, nil, m.Object)
	m.Int = m.define("int", 0, nil, m.Object)
	m.Bool = m.define("bool", ClassFinal, nil, m.Int)
	m.Float = m.define("float", 0, nil, m.Object)
	m.Complex = m.define("complex", 0, nil, m.Object)

	m.Sequence = m.define("Sequence", 0, []string{"T_co"}, m.Object)
	m.Mapping = m.define("Mapping", 0, []string{"KT", "VT_co"}, m.Object)
	m.Str = m.define("str", 0, nil, m.Object)
	m.setBases(m.Str, m.Sequence.CloneForSpecialization([]Type{m.Str.CloneAsInstance(false)}, true))
	m.Bytes = m.define("bytes", 0, nil, m.Sequence.CloneForSpecialization([]Type{m.Int.CloneAsInstance(false)}, true))

	m.Tuple = m.define("tuple", 0, []string{"T_co"}, m.Object)
	m.setBases(m.Tuple, m.specialize(m.Sequence, m.Tuple.Details.TypeParams))
	m.List = m.define("list", 0, []string{"T"}, m.Object)
	m.setBases(m.List, m.specialize(m.Sequence, m.List.Details.TypeParams))
	m.Deque = m.define("deque", 0, []string{"T"}, m.Object)
	m.setBases(m.Deque, m.specialize(m.Sequence, m.Deque.Details.TypeParams))
	m.Set = m.define("set", 0, []string{"T"}, m.Object)
	m.FrozenSet = m.define("frozenset", 0, []string{"T_co"}, m.Object)
	m.Dict = m.define("dict", 0, []string{"KT", "VT"}, m.Object)
	m.setBases(m.Dict, m.specialize(m.Mapping, m.Dict.Details.TypeParams))
	m.DefaultDict = m.define("defaultdict", 0, []string{"KT", "VT"}, m.Object)
	m.setBases(m.DefaultDict, m.specialize(m.Dict, m.DefaultDict.Details.TypeParams))
	m.OrderedDict = m.define("OrderedDict", 0, []string{"KT", "VT"}, m.Object)
	m.setBases(m.OrderedDict, m.specialize(m.Dict, m.OrderedDict.Details.TypeParams))

	m.EnumMeta = m.define("EnumMeta", 0, nil, m.TypeClass)
	m.Enum = m.define("Enum", ClassEnum, nil, m.Object)
	m.Enum.Details.Metaclass = m.EnumMeta
	m.Flag = m.define("Flag", ClassEnum, nil, m.Enum)
	m.Flag.Details.Metaclass = m.EnumMeta
	m.IntEnum = m.define("IntEnum", ClassEnum, nil, m.Int, m.Enum)
	m.IntEnum.Details.Metaclass = m.EnumMeta

	m.TypedDict = m.define("TypedDict", ClassSpecialForm, nil,
		m.Mapping.CloneForSpecialization([]Type{m.Str.CloneAsInstance(false), m.Object.CloneAsInstance(false)}, true))
	m.Protocol = m.define("Protocol", ClassSpecialForm, nil, m.Object)
	m.Generic = m.define("Generic", ClassSpecialForm, nil, m.Object)
	m.TypeGuard = m.define("TypeGuard", ClassSpecialForm, []string{"T"}, m.Object)
	m.TypeIs = m.define("TypeIs", ClassSpecialForm, []string{"T"}, m.Object)
	m.ModuleTypeClass = m.define("ModuleType", 0, nil, m.Object)

	m.addBuiltinMembers()
	return m
}

func (m *Model) define(name string, flags ClassFlags, typeParams []string, bases ...Type) *ClassType {
	cls := NewClass(name, "builtins."+name, flags|ClassBuiltIn)
	for _, tp := range typeParams {
		cls.Details.TypeParams = append(cls.Details.TypeParams, NewTypeVar(tp).CloneForScope(cls.Details.FullName))
	}
	cls.Details.BaseClasses = bases
	cls.Details.Metaclass = m.TypeClass
	ComputeMRO(cls)
	m.classes[name] = cls
	return cls
}

func (m *Model) setBases(cls *ClassType, bases ...Type) {
	cls.Details.BaseClasses = bases
	ComputeMRO(cls)
}

func (m *Model) specialize(cls *ClassType, params []*TypeVarType) *ClassType {
	args := make([]Type, len(params))
	for i, p := range params {
		args[i] = p
	}
	if len(args) == 0 {
		args = nil
	}
	return cls.CloneForSpecialization(args, true)
}

func (m *Model) method(cls *ClassType, name string, ret Type, params ...FunctionParam) {
	all := append([]FunctionParam{{Name: "self"}}, params...)
	fn := NewFunction(name, all, ret)
	fn.Details.FullName = cls.Details.FullName + "." + name
	cls.AddField(&Field{Name: name, Type: fn, HasDeclaredType: true, IsClassVar: true})
}

func (m *Model) addBuiltinMembers() {
	boolInst := m.Instance("bool")
	intInst := m.Instance("int")
	strInst := m.Instance("str")
	objInst := m.ObjectInstance()

	m.method(m.Object, "__eq__", boolInst, FunctionParam{Name: "other", Type: objInst})
	m.method(m.Object, "__hash__", intInst)
	m.method(m.Hashable, "__hash__", intInst)
	m.method(m.Sized, "__len__", intInst)
	m.method(m.Iterable, "__iter__", Unknown())
	m.method(m.Callable, "__call__", Unknown())
	m.TypeClass.AddField(&Field{Name: "__name__", Type: strInst, HasDeclaredType: true})

	m.method(m.NoneType, "__bool__", m.BoolLiteral(false))
	for _, cls := range []*ClassType{m.Int, m.Bool, m.Float, m.Complex} {
		m.method(cls, "__bool__", boolInst)
	}
	for _, cls := range []*ClassType{m.Str, m.Bytes, m.Sequence, m.Mapping, m.Tuple, m.List, m.Deque, m.Set, m.FrozenSet, m.Dict} {
		m.method(cls, "__len__", intInst)
		m.method(cls, "__iter__", Unknown())
	}
	m.method(m.Sequence, "__getitem__", m.Sequence.Details.TypeParams[0], FunctionParam{Name: "index", Type: intInst})
	m.method(m.Mapping, "__getitem__", m.Mapping.Details.TypeParams[1], FunctionParam{Name: "key", Type: m.Mapping.Details.TypeParams[0]})
	m.method(m.List, "append", m.NoneInstance(), FunctionParam{Name: "item", Type: m.List.Details.TypeParams[0]})

	m.Enum.AddField(&Field{Name: "name", Type: strInst, HasDeclaredType: true})
	m.Enum.AddField(&Field{Name: "value", Type: Any(), HasDeclaredType: true})
}

// Class returns the class object for a builtin name, or nil.
func (m *Model) Class(name string) *ClassType {
	return m.classes[name]
}

// Instance returns an instance of the named builtin class.
func (m *Model) Instance(name string) *ClassType {
	cls := m.classes[name]
	if cls == nil {
		return nil
	}
	return cls.CloneAsInstance(false)
}

func (m *Model) ObjectInstance() *ClassType { return m.Object.CloneAsInstance(true) }
func (m *Model) NoneInstance() *ClassType   { return m.NoneType.CloneAsInstance(false) }

func (m *Model) BoolLiteral(v bool) *ClassType {
	return m.Bool.CloneAsInstance(false).CloneWithLiteral(BoolLiteral(v))
}

// LiteralInstance returns the literal type for a literal value.
func (m *Model) LiteralInstance(lit Literal) Type {
	switch v := lit.(type) {
	case BoolLiteral:
		return m.BoolLiteral(bool(v))
	case IntLiteral:
		return m.Int.CloneAsInstance(false).CloneWithLiteral(v)
	case StrLiteral:
		return m.Str.CloneAsInstance(false).CloneWithLiteral(v)
	case BytesLiteral:
		return m.Bytes.CloneAsInstance(false).CloneWithLiteral(v)
	case *EnumLiteral:
		if c, ok := v.ItemType.(*ClassType); ok {
			return c.CloneAsInstance(false).CloneWithLiteral(v)
		}
	}
	return Unknown()
}

// MakeTuple returns a tuple instance with the given element shape.
func (m *Model) MakeTuple(args []TupleArg) *ClassType {
	return SpecializeTupleClass(m.Tuple.CloneAsInstance(false), args)
}

// MakeHomogeneousTuple returns tuple[elem, ...].
func (m *Model) MakeHomogeneousTuple(elem Type) *ClassType {
	return m.MakeTuple([]TupleArg{{Type: elem, IsUnbounded: true}})
}

// Specialize returns an instance of a builtin generic class.
func (m *Model) Specialize(name string, args ...Type) *ClassType {
	cls := m.classes[name]
	if cls == nil {
		return nil
	}
	return cls.CloneForSpecialization(args, true).CloneAsInstance(false)
}
