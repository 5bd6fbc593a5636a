package runtime

// The callback ABI: the fixed set of free functions that generated code
// calls to perform variable lookup, member access, conversion, iteration,
// assignment, output and modifier application.  The same set serves every
// backend: the VM calls these functions directly, the emitted C declares
// them in its ABI header, and the JavaScript executor binds them into the
// script environment under the smart_tpl_* names.
//
// Value, iterator and modifier pointers are int64 handles owned by the
// Handler; handle 0 is the shared Empty value.  Every function returning a
// value handle returns a usable one - missing lookups resolve to Empty -
// so generated code never needs a null check.  Assigning value handle 0
// to a name removes the local binding; the foreach lowering uses this to
// drop its induction variables after the loop.
//
// Modifier parameters are transported through explicit parameter lists:
// the generated code creates one with CreateParams, appends each
// evaluated parameter in order, and passes the list to ModifyVariable.

import (
	"strconv"

	"github.com/smarttpl/smarttpl/data"
)

// Write appends raw bytes to the output.
func Write(h *Handler, p []byte) {
	h.Write(p)
}

// Output appends a value's string form to the output, escaped by the
// active escaper when escape is non-zero.
func Output(h *Handler, value int64, escape int64) {
	h.OutputValue(h.ValueOf(value), escape != 0)
}

// Variable resolves a variable name to a value handle.  A missing name
// resolves to Empty and records a warning.
func Variable(h *Handler, name string) int64 {
	var v = h.Variable(name)
	if v == data.Empty {
		h.Warn("unknown variable " + strconv.Quote(name))
	}
	return h.ValueHandle(v)
}

// Member resolves a member of a parent value by name.  A missing member
// resolves to Empty and records a warning.
func Member(h *Handler, parent int64, name string) int64 {
	var v = h.ValueOf(parent).Member(name)
	if v == data.Empty {
		h.Warn("unknown member " + strconv.Quote(name))
	}
	return h.ValueHandle(v)
}

// MemberAt resolves a member of a parent value by position.
func MemberAt(h *Handler, parent int64, index int64) int64 {
	return h.ValueHandle(h.ValueOf(parent).MemberAt(int(index)))
}

// ToString converts a value to its string form.
func ToString(h *Handler, value int64) string {
	return h.ValueOf(value).String()
}

// ToNumeric converts a value to an integer.
func ToNumeric(h *Handler, value int64) int64 {
	return h.ValueOf(value).Numeric()
}

// ToBoolean converts a value to a boolean, reported as 0 or 1.
func ToBoolean(h *Handler, value int64) int64 {
	if h.ValueOf(value).Boolean() {
		return 1
	}
	return 0
}

// ToDouble converts a value to a float.
func ToDouble(h *Handler, value int64) float64 {
	return h.ValueOf(value).Double()
}

// Size returns the length of a value's string form.
func Size(h *Handler, value int64) int64 {
	return int64(h.ValueOf(value).Size())
}

// StrCompare compares two strings: 0 when equal, non-zero otherwise.
func StrCompare(h *Handler, a, b string) int64 {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

// CreateIterator creates an iterator over a value.  Non-iterable values
// produce handle 0, which is never valid.
func CreateIterator(h *Handler, value int64) int64 {
	var v = h.ValueOf(value)
	if v.MemberCount() == 0 {
		return 0
	}
	return h.IteratorHandle(v.Iterator())
}

// ValidIterator reports whether the iterator has a current member.
func ValidIterator(h *Handler, it int64) int64 {
	var iter = h.IteratorOf(it)
	if iter != nil && iter.Valid() {
		return 1
	}
	return 0
}

// IteratorNext advances the iterator.
func IteratorNext(h *Handler, it int64) {
	if iter := h.IteratorOf(it); iter != nil {
		iter.Next()
	}
}

// IteratorKey returns the key of the current member.
func IteratorKey(h *Handler, it int64) int64 {
	if iter := h.IteratorOf(it); iter != nil {
		return h.ValueHandle(iter.Key())
	}
	return 0
}

// IteratorValue returns the current member.
func IteratorValue(h *Handler, it int64) int64 {
	if iter := h.IteratorOf(it); iter != nil {
		return h.ValueHandle(iter.Value())
	}
	return 0
}

// GetModifier resolves a modifier name to a handle.  An unresolved name
// is a runtime error; the returned handle 0 makes the subsequent
// ModifyVariable a no-op so the render can unwind.
func GetModifier(h *Handler, name string) int64 {
	var m = h.Modifier(name)
	if m == nil {
		h.Error("unknown modifier " + strconv.Quote(name))
		return 0
	}
	return h.ModifierHandle(m)
}

// CreateParams creates an empty modifier parameter list.
func CreateParams(h *Handler) int64 {
	return h.ParamsHandle()
}

// ParamsAppendValue appends a value parameter to a parameter list and
// returns the list, so appends compose as nested expressions.
func ParamsAppendValue(h *Handler, params int64, value int64) int64 {
	h.AppendParam(params, h.ValueOf(value))
	return params
}

// ParamsAppendNumeric appends an integer parameter.
func ParamsAppendNumeric(h *Handler, params int64, v int64) int64 {
	h.AppendParam(params, data.Numeric(v))
	return params
}

// ParamsAppendDouble appends a float parameter.
func ParamsAppendDouble(h *Handler, params int64, v float64) int64 {
	h.AppendParam(params, data.Double(v))
	return params
}

// ParamsAppendBoolean appends a boolean parameter.
func ParamsAppendBoolean(h *Handler, params int64, v int64) int64 {
	h.AppendParam(params, data.NewBool(v != 0))
	return params
}

// ParamsAppendString appends a string parameter.
func ParamsAppendString(h *Handler, params int64, s string) int64 {
	h.AppendParam(params, data.String(s))
	return params
}

// ModifyVariable applies a modifier to a value with the given parameter
// list (handle 0 for none) and returns the result.  Modifier handle 0
// passes the input through.
func ModifyVariable(h *Handler, modifier int64, value int64, params int64) int64 {
	var m = h.ModifierOf(modifier)
	if m == nil {
		return value
	}
	return h.ValueHandle(m.Modify(h.ValueOf(value), h.ParamsOf(params)))
}

// Assign binds a value to a local variable.  Value handle 0 removes the
// binding instead.
func Assign(h *Handler, name string, value int64) {
	if value == 0 {
		h.RemoveLocal(name)
		return
	}
	h.Assign(name, h.ValueOf(value))
}

// AssignBoolean binds a boolean to a local variable.
func AssignBoolean(h *Handler, name string, v int64) {
	h.Assign(name, data.NewBool(v != 0))
}

// AssignNumeric binds an integer to a local variable.
func AssignNumeric(h *Handler, name string, v int64) {
	h.Assign(name, data.Numeric(v))
}

// AssignString binds a string to a local variable.  The string is copied
// into a value owned by the Handler.
func AssignString(h *Handler, name string, s string) {
	h.Assign(name, data.String(s))
}
