package data

// Modifier is a named transformation applied to a value through the pipe
// syntax, e.g. {$x|truncate:30}.  The result may alias the input.
type Modifier interface {
	Modify(input Value, params Parameters) Value
}

// ModifierFunc adapts a function to the Modifier interface.
type ModifierFunc func(input Value, params Parameters) Value

func (f ModifierFunc) Modify(input Value, params Parameters) Value {
	return f(input, params)
}

// Parameters is the ordered sequence of already-evaluated values that were
// syntactically attached to a pipe.
type Parameters []Value

// At returns the i-th parameter, or Empty when absent.
func (p Parameters) At(i int) Value {
	if !(0 <= i && i < len(p)) {
		return Empty
	}
	return p[i]
}

// NumericAt returns the i-th parameter as an integer, or def when absent.
func (p Parameters) NumericAt(i int, def int64) int64 {
	if !(0 <= i && i < len(p)) {
		return def
	}
	return p[i].Numeric()
}

// StringAt returns the i-th parameter as a string, or def when absent.
func (p Parameters) StringAt(i int, def string) string {
	if !(0 <= i && i < len(p)) {
		return def
	}
	return p[i].String()
}

// builtinModifiers is the process-wide modifier registry.  It is filled
// during init (see the modifiers package) and read-only afterwards.
var builtinModifiers = make(map[string]Modifier)

// RegisterBuiltinModifier adds a modifier to the process-wide registry.
// It must be called during initialization, before any render starts.
func RegisterBuiltinModifier(name string, m Modifier) {
	builtinModifiers[name] = m
}

// BuiltinModifier looks a modifier up in the process-wide registry.
func BuiltinModifier(name string) Modifier {
	return builtinModifiers[name]
}

// Data is the caller-supplied binding a template is rendered against: a
// mapping from variable name to value, plus the modifiers available to
// this render.  Names are compared as raw bytes; assignment is last-wins.
type Data struct {
	variables map[string]Value
	modifiers map[string]Modifier
}

// NewData returns an empty data object.
func NewData() *Data {
	return &Data{
		variables: make(map[string]Value),
		modifiers: make(map[string]Modifier),
	}
}

// Assign binds a variable.  The value may be a Value or any Go value
// convertible by New.  It returns the data object for chaining.
func (d *Data) Assign(name string, value interface{}) *Data {
	d.variables[name] = New(value)
	return d
}

// Modifier registers a modifier for this data object, shadowing a builtin
// of the same name.  It returns the data object for chaining.
func (d *Data) Modifier(name string, m Modifier) *Data {
	d.modifiers[name] = m
	return d
}

// ModifierFunc registers a function as a modifier.
func (d *Data) ModifierFunc(name string, f func(Value, Parameters) Value) *Data {
	return d.Modifier(name, ModifierFunc(f))
}

// Value retrieves a variable by name.  Missing names resolve to the
// shared Empty value, never nil.
func (d *Data) Value(name string) Value {
	if v, ok := d.variables[name]; ok {
		return v
	}
	return Empty
}

// Has reports whether the variable is bound.
func (d *Data) Has(name string) bool {
	_, ok := d.variables[name]
	return ok
}

// FindModifier retrieves a modifier by name: this data object's own
// registrations first, then the process-wide builtins.  nil when unknown.
func (d *Data) FindModifier(name string) Modifier {
	if m, ok := d.modifiers[name]; ok {
		return m
	}
	return builtinModifiers[name]
}
