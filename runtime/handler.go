// Package runtime holds the per-render state and the callback ABI that
// generated code uses to talk to the engine.
package runtime

import (
	"bytes"

	"github.com/smarttpl/smarttpl/data"
	"github.com/smarttpl/smarttpl/errortypes"
)

// outputReserve is the initial capacity of a render's output buffer.
const outputReserve = 4096

// Handler is the per-render controller.  It owns the output buffer, the
// local variable bindings and every value created during the render, and
// borrows the Data binding and the active escaper.  A Handler serves
// exactly one render; a compiled template may be executed from many
// goroutines concurrently as long as each uses its own Handler.
type Handler struct {
	buf     bytes.Buffer
	data    *data.Data
	escaper Escaper

	// locals are the variables assigned during the render: {assign},
	// inline assignments, and foreach induction variables.
	locals map[string]data.Value

	// handles pins every value exposed to generated code for the duration
	// of the render.  Handle n refers to handles[n-1]; handle 0 is the
	// shared Empty value.
	handles   []data.Value
	iterators []data.Iterator
	modifiers []data.Modifier
	params    []data.Parameters

	warnings []string
	err      error
}

// NewHandler creates the state for one render.  A nil Data renders
// against an empty binding; a nil escaper means no escaping.
func NewHandler(d *data.Data, escaper Escaper) *Handler {
	if d == nil {
		d = data.NewData()
	}
	var h = &Handler{
		data:    d,
		escaper: escaper,
		locals:  make(map[string]data.Value),
	}
	h.buf.Grow(outputReserve)
	return h
}

// Variable looks a name up in the locals first, then in the Data binding.
// Missing names resolve to the shared Empty value.
func (h *Handler) Variable(name string) data.Value {
	if v, ok := h.locals[name]; ok {
		return v
	}
	return h.data.Value(name)
}

// Assign binds a value to a local variable, overwriting a previous
// binding of the same name.
func (h *Handler) Assign(name string, v data.Value) {
	h.locals[name] = v
}

// RemoveLocal drops a local binding, re-exposing whatever the Data
// binding holds under that name.
func (h *Handler) RemoveLocal(name string) {
	delete(h.locals, name)
}

// Modifier resolves a modifier name through the Data binding and the
// process-wide registry.  nil when unknown.
func (h *Handler) Modifier(name string) data.Modifier {
	return h.data.FindModifier(name)
}

// Write appends raw bytes to the output.  The buffer is append-only.
func (h *Handler) Write(p []byte) {
	h.buf.Write(p)
}

// WriteString appends a string to the output.
func (h *Handler) WriteString(s string) {
	h.buf.WriteString(s)
}

// OutputValue converts a value to its string form and appends it,
// passing it through the active escaper when escape is set.
func (h *Handler) OutputValue(v data.Value, escape bool) {
	var s = v.String()
	if escape && h.escaper != nil {
		s = h.escaper.Escape(s)
	}
	h.buf.WriteString(s)
}

// Error records a render failure.  The first error wins; the render is
// aborted by the executor and the partial output discarded by the caller.
func (h *Handler) Error(msg string) {
	if h.err == nil {
		h.err = errortypes.NewRuntimeErrorf("%s", msg)
	}
}

// Warn records a non-fatal condition, such as a missing variable.  The
// render continues; the lookup resolves to Empty.
func (h *Handler) Warn(msg string) {
	h.warnings = append(h.warnings, msg)
}

// Warnings returns the non-fatal conditions recorded during the render.
func (h *Handler) Warnings() []string { return h.warnings }

// Failed reports whether the render hit an error.
func (h *Handler) Failed() bool { return h.err != nil }

// Err returns the recorded error, nil if the render succeeded.
func (h *Handler) Err() error { return h.err }

// Output returns the rendered output collected so far.
func (h *Handler) Output() string { return h.buf.String() }

// Value handles ----------

// ValueHandle pins a value for the duration of the render and returns its
// handle.  The Empty value is always handle 0.
func (h *Handler) ValueHandle(v data.Value) int64 {
	if v == nil || v == data.Empty {
		return 0
	}
	h.handles = append(h.handles, v)
	return int64(len(h.handles))
}

// ValueOf resolves a handle.  Handle 0 and out-of-range handles resolve
// to Empty so generated code never sees a nil value.
func (h *Handler) ValueOf(handle int64) data.Value {
	if handle < 1 || handle > int64(len(h.handles)) {
		return data.Empty
	}
	return h.handles[handle-1]
}

// IteratorHandle pins an iterator and returns its handle.  A nil iterator
// (non-iterable source) is handle 0, which is never valid.
func (h *Handler) IteratorHandle(it data.Iterator) int64 {
	if it == nil {
		return 0
	}
	h.iterators = append(h.iterators, it)
	return int64(len(h.iterators))
}

// IteratorOf resolves an iterator handle, nil for handle 0.
func (h *Handler) IteratorOf(handle int64) data.Iterator {
	if handle < 1 || handle > int64(len(h.iterators)) {
		return nil
	}
	return h.iterators[handle-1]
}

// ModifierHandle pins a resolved modifier and returns its handle.
func (h *Handler) ModifierHandle(m data.Modifier) int64 {
	if m == nil {
		return 0
	}
	h.modifiers = append(h.modifiers, m)
	return int64(len(h.modifiers))
}

// ModifierOf resolves a modifier handle, nil for handle 0.
func (h *Handler) ModifierOf(handle int64) data.Modifier {
	if handle < 1 || handle > int64(len(h.modifiers)) {
		return nil
	}
	return h.modifiers[handle-1]
}

// ParamsHandle creates an empty modifier parameter list and returns its
// handle.
func (h *Handler) ParamsHandle() int64 {
	h.params = append(h.params, nil)
	return int64(len(h.params))
}

// AppendParam adds a value to a parameter list.
func (h *Handler) AppendParam(handle int64, v data.Value) {
	if 1 <= handle && handle <= int64(len(h.params)) {
		h.params[handle-1] = append(h.params[handle-1], v)
	}
}

// ParamsOf resolves a parameter list handle; handle 0 is an empty list.
func (h *Handler) ParamsOf(handle int64) data.Parameters {
	if handle < 1 || handle > int64(len(h.params)) {
		return nil
	}
	return h.params[handle-1]
}
