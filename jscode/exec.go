package jscode

import (
	"bytes"
	"strings"

	"github.com/robertkrimen/otto"

	"github.com/smarttpl/smarttpl/ast"
	rt "github.com/smarttpl/smarttpl/runtime"
)

// Program is a loaded JavaScript rendition of a template.  It renders by
// running show_template inside a JavaScript VM whose smart_tpl_*
// functions are bound to the callback ABI.
type Program struct {
	Name   string
	Source string
}

// Compile generates the JavaScript for a tree and wraps it as a loaded
// program.
func Compile(tree *ast.SyntaxTree) (*Program, error) {
	var buf bytes.Buffer
	if err := Generate(&buf, tree); err != nil {
		return nil, err
	}
	return &Program{Name: tree.Name, Source: buf.String()}, nil
}

// Load wraps previously generated JavaScript source as an executable
// program, the way a compiled shared object would be re-loaded.
func Load(name, source string) *Program {
	return &Program{Name: name, Source: source}
}

// Execute runs the program against the given handler.
func (p *Program) Execute(h *rt.Handler) error {
	var vm = otto.New()
	bind(vm, h)
	if _, err := vm.Run(p.Source); err != nil {
		h.Error(jsError(err))
		return h.Err()
	}
	if _, err := vm.Run("show_template(0);"); err != nil {
		h.Error(jsError(err))
	}
	return h.Err()
}

// jsError strips the JavaScript Error prefix so the message matches the
// other backends.
func jsError(err error) string {
	return strings.TrimPrefix(err.Error(), "Error: ")
}

// bind installs the callback ABI into the VM.  The userdata argument of
// every callback is ignored; the handler is captured instead.  Value,
// iterator, modifier and parameter pointers cross the boundary as the
// handler's int64 handles.
func bind(vm *otto.Otto, h *rt.Handler) {
	var set = func(name string, fn func(call otto.FunctionCall) otto.Value) {
		vm.Set(name, fn)
	}
	var num = func(call otto.FunctionCall, i int) int64 {
		n, _ := call.Argument(i).ToInteger()
		return n
	}
	var str = func(call otto.FunctionCall, i int) string {
		s, _ := call.Argument(i).ToString()
		return s
	}
	var float = func(call otto.FunctionCall, i int) float64 {
		f, _ := call.Argument(i).ToFloat()
		return f
	}
	var ret = func(v interface{}) otto.Value {
		value, _ := otto.ToValue(v)
		return value
	}

	set("smart_tpl_write", func(call otto.FunctionCall) otto.Value {
		rt.Write(h, []byte(str(call, 1)))
		return otto.UndefinedValue()
	})
	set("smart_tpl_output", func(call otto.FunctionCall) otto.Value {
		rt.Output(h, num(call, 1), num(call, 2))
		return otto.UndefinedValue()
	})
	set("smart_tpl_variable", func(call otto.FunctionCall) otto.Value {
		return ret(rt.Variable(h, str(call, 1)))
	})
	set("smart_tpl_member", func(call otto.FunctionCall) otto.Value {
		return ret(rt.Member(h, num(call, 1), str(call, 2)))
	})
	set("smart_tpl_member_at", func(call otto.FunctionCall) otto.Value {
		return ret(rt.MemberAt(h, num(call, 1), num(call, 2)))
	})
	set("smart_tpl_to_string", func(call otto.FunctionCall) otto.Value {
		return ret(rt.ToString(h, num(call, 1)))
	})
	set("smart_tpl_to_numeric", func(call otto.FunctionCall) otto.Value {
		return ret(rt.ToNumeric(h, num(call, 1)))
	})
	set("smart_tpl_to_boolean", func(call otto.FunctionCall) otto.Value {
		return ret(rt.ToBoolean(h, num(call, 1)))
	})
	set("smart_tpl_to_double", func(call otto.FunctionCall) otto.Value {
		return ret(rt.ToDouble(h, num(call, 1)))
	})
	set("smart_tpl_size", func(call otto.FunctionCall) otto.Value {
		return ret(rt.Size(h, num(call, 1)))
	})
	set("smart_tpl_strcmp", func(call otto.FunctionCall) otto.Value {
		return ret(rt.StrCompare(h, str(call, 1), str(call, 3)))
	})
	set("smart_tpl_create_iterator", func(call otto.FunctionCall) otto.Value {
		return ret(rt.CreateIterator(h, num(call, 1)))
	})
	set("smart_tpl_valid_iterator", func(call otto.FunctionCall) otto.Value {
		return ret(rt.ValidIterator(h, num(call, 1)))
	})
	set("smart_tpl_iterator_next", func(call otto.FunctionCall) otto.Value {
		rt.IteratorNext(h, num(call, 1))
		return otto.UndefinedValue()
	})
	set("smart_tpl_iterator_key", func(call otto.FunctionCall) otto.Value {
		return ret(rt.IteratorKey(h, num(call, 1)))
	})
	set("smart_tpl_iterator_value", func(call otto.FunctionCall) otto.Value {
		return ret(rt.IteratorValue(h, num(call, 1)))
	})
	set("smart_tpl_modifier", func(call otto.FunctionCall) otto.Value {
		return ret(rt.GetModifier(h, str(call, 1)))
	})
	set("smart_tpl_create_params", func(call otto.FunctionCall) otto.Value {
		return ret(rt.CreateParams(h))
	})
	set("smart_tpl_params_append_value", func(call otto.FunctionCall) otto.Value {
		return ret(rt.ParamsAppendValue(h, num(call, 1), num(call, 2)))
	})
	set("smart_tpl_params_append_numeric", func(call otto.FunctionCall) otto.Value {
		return ret(rt.ParamsAppendNumeric(h, num(call, 1), num(call, 2)))
	})
	set("smart_tpl_params_append_double", func(call otto.FunctionCall) otto.Value {
		return ret(rt.ParamsAppendDouble(h, num(call, 1), float(call, 2)))
	})
	set("smart_tpl_params_append_boolean", func(call otto.FunctionCall) otto.Value {
		return ret(rt.ParamsAppendBoolean(h, num(call, 1), num(call, 2)))
	})
	set("smart_tpl_params_append_string", func(call otto.FunctionCall) otto.Value {
		return ret(rt.ParamsAppendString(h, num(call, 1), str(call, 2)))
	})
	set("smart_tpl_modify_variable", func(call otto.FunctionCall) otto.Value {
		return ret(rt.ModifyVariable(h, num(call, 1), num(call, 2), num(call, 3)))
	})
	set("smart_tpl_assign", func(call otto.FunctionCall) otto.Value {
		rt.Assign(h, str(call, 1), num(call, 3))
		return otto.UndefinedValue()
	})
	set("smart_tpl_assign_boolean", func(call otto.FunctionCall) otto.Value {
		rt.AssignBoolean(h, str(call, 1), num(call, 3))
		return otto.UndefinedValue()
	})
	set("smart_tpl_assign_numeric", func(call otto.FunctionCall) otto.Value {
		rt.AssignNumeric(h, str(call, 1), num(call, 3))
		return otto.UndefinedValue()
	})
	set("smart_tpl_assign_string", func(call otto.FunctionCall) otto.Value {
		rt.AssignString(h, str(call, 1), str(call, 3))
		return otto.UndefinedValue()
	})
}
