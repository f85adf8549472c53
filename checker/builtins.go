package checker

import (
	"github.com/panyam/pynarrow/types"
)

// Names of the builtin functions the evaluator special-cases.
const (
	builtinIsInstance      = "isinstance"
	builtinIsSubclass      = "issubclass"
	builtinLen             = "len"
	builtinRevealType      = "reveal_type"
	builtinTypeVar         = "TypeVar"
	builtinCast            = "cast"
	builtinOverload        = "overload"
	builtinFinal           = "final"
	builtinRuntimeCheck    = "runtime_checkable"
	builtinStaticMethod    = "staticmethod"
	builtinClassMethod     = "classmethod"
	builtinAssertNever     = "assert_never"
	builtinAssertType      = "assert_type"
	builtinCallableBuiltin = "callable"
)

// knownModules are the modules an import may name. They all resolve
// against the single builtin namespace.
var knownModules = map[string]bool{
	"builtins":          true,
	"typing":            true,
	"typing_extensions": true,
	"enum":              true,
	"collections":       true,
	"collections.abc":   true,
	"types":             true,
}

// Builtins is the namespace consulted after every user scope.
type Builtins struct {
	model *types.Model
	names map[string]types.Type
}

func newBuiltins(m *types.Model) *Builtins {
	b := &Builtins{model: m, names: map[string]types.Type{}}

	for _, name := range []string{
		"object", "type", "int", "bool", "float", "complex", "str", "bytes",
		"tuple", "list", "set", "frozenset", "dict", "deque", "defaultdict", "OrderedDict",
		"Sequence", "Mapping", "Iterable", "Sized", "Hashable", "Callable",
		"Enum", "Flag", "IntEnum", "EnumMeta",
		"TypedDict", "Protocol", "Generic", "TypeGuard", "TypeIs", "ModuleType",
	} {
		b.names[name] = m.Class(name)
	}
	b.names["NoneType"] = m.NoneType
	b.names["EllipsisType"] = m.Ellipsis

	// typing aliases of the builtin collections
	for alias, name := range map[string]string{
		"List": "list", "Dict": "dict", "Set": "set", "FrozenSet": "frozenset",
		"Tuple": "tuple", "Type": "type", "Deque": "deque", "DefaultDict": "defaultdict",
	} {
		b.names[alias] = m.Class(name)
	}

	for _, name := range []string{
		"Any", "Optional", "Union", "Literal", "Final", "ClassVar",
		"Required", "NotRequired", "ReadOnly", "Annotated", "Never", "NoReturn",
	} {
		b.names[name] = types.NewClass(name, "typing."+name, types.ClassBuiltIn|types.ClassSpecialForm)
	}

	boolInst := m.Instance("bool")
	b.function(builtinIsInstance, boolInst, param("obj", nil), param("class_or_tuple", nil))
	b.function(builtinIsSubclass, boolInst, param("cls", nil), param("class_or_tuple", nil))
	b.function(builtinCallableBuiltin, boolInst, param("obj", nil))
	b.function(builtinLen, m.Instance("int"), param("obj", m.Sized.CloneAsInstance(true)))
	b.function(builtinRevealType, nil, param("obj", nil))
	b.function(builtinAssertType, nil, param("val", nil), param("typ", nil))
	b.function(builtinAssertNever, types.Never(), param("arg", types.Never()))
	b.function(builtinTypeVar, nil, param("name", m.Instance("str")))
	b.function(builtinCast, nil, param("typ", nil), param("val", nil))
	b.function("auto", m.Instance("int"))
	for _, name := range []string{builtinOverload, builtinFinal, builtinRuntimeCheck, builtinStaticMethod, builtinClassMethod} {
		b.function(name, nil, param("fn", nil))
	}
	return b
}

func param(name string, t types.Type) types.FunctionParam {
	return types.FunctionParam{Name: name, Type: t}
}

func (b *Builtins) function(name string, ret types.Type, params ...types.FunctionParam) {
	fn := types.NewFunction(name, params, ret)
	fn.Details.FullName = "builtins." + name
	fn.Details.BuiltInName = name
	b.names[name] = fn
}

// Lookup returns the builtin bound to name.
func (b *Builtins) Lookup(name string) (types.Type, bool) {
	t, ok := b.names[name]
	return t, ok
}

// Module returns the module object for an importable module, or nil.
func (b *Builtins) Module(name string) *types.ModuleType {
	if !knownModules[name] {
		return nil
	}
	return &types.ModuleType{Name: name, Fields: b.names}
}

// isSpecialForm reports whether t is the typing special form called name.
func isSpecialForm(t types.Type, names ...string) bool {
	c, ok := t.(*types.ClassType)
	return ok && !c.IsInstance && c.IsSpecialForm() && c.IsBuiltIn(names...)
}

// builtinFunctionName returns the special-cased name of a builtin function.
func builtinFunctionName(t types.Type) string {
	if fn, ok := t.(*types.FunctionType); ok {
		return fn.Details.BuiltInName
	}
	return ""
}
