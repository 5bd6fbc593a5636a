// Package ccode turns a syntax tree into portable C source.  The emitted
// file includes the engine's callback ABI header and defines a single
// entry point, show_template, that performs all runtime interaction
// through the smart_tpl_* callbacks.  Compiled against the ABI header,
// the result can be built into a shared library and loaded later as an
// alternative executor.
package ccode

import (
	"fmt"
	"io"
	"strconv"

	"github.com/smarttpl/smarttpl/ast"
	"github.com/smarttpl/smarttpl/errortypes"
)

// Generate writes the C rendition of the tree to w.
func Generate(w io.Writer, tree *ast.SyntaxTree) (err error) {
	var c = &state{wr: w, name: tree.Name}
	defer c.recover(&err)
	c.ln("// Generated from template ", tree.Name, ".")
	c.ln("// Do not edit this file by hand.")
	c.ln("")
	c.ln("#include <smarttpl/callbacks.h>")
	c.ln("#include <stdint.h>")
	c.ln("#include <stdio.h>")
	c.ln("#include <stdlib.h>")
	c.ln("")
	c.ln("void show_template(void *userdata) {")
	c.indentLevels++
	tree.Generate(c)
	c.indentLevels--
	c.ln("}")
	return nil
}

// state implements ast.Generator.  Statement hooks write C statements to
// the output; expression hooks build C expressions on a private text
// stack.  String-typed expressions occupy two stack entries, the buffer
// and its size, matching the value stack discipline of the VM backend.
type state struct {
	wr           io.Writer
	name         string
	indentLevels int
	exprs        []string
}

func (c *state) push(s string) {
	c.exprs = append(c.exprs, s)
}

func (c *state) pop() string {
	var s = c.exprs[len(c.exprs)-1]
	c.exprs = c.exprs[:len(c.exprs)-1]
	return s
}

// popPair pops a (buffer, size) string expression.
func (c *state) popPair() (buf, size string) {
	size = c.pop()
	buf = c.pop()
	return buf, size
}

func (c *state) errorf(format string, args ...interface{}) {
	panic(errortypes.NewCompileErrorf(c.name, 0, 0, format, args...))
}

func (c *state) recover(errp *error) {
	if e := recover(); e != nil {
		if err, ok := e.(error); ok && errortypes.IsCompileError(err) {
			*errp = err
			return
		}
		*errp = errortypes.NewCompileErrorf(c.name, 0, 0, "%v", e)
	}
}

func (c *state) indent() {
	for i := 0; i < c.indentLevels; i++ {
		io.WriteString(c.wr, "    ")
	}
}

func (c *state) w(args ...string) {
	for _, arg := range args {
		io.WriteString(c.wr, arg)
	}
}

// ln writes one indented line.
func (c *state) ln(args ...string) {
	c.indent()
	c.w(args...)
	c.w("\n")
}

// Output ----------

func (c *state) Raw(text []byte) {
	c.ln("smart_tpl_write(userdata,", cstring(string(text)), ",", itoa(len(text)), ");")
}

func (c *state) OutputVariable(v *ast.VariableNode, escape bool) {
	v.Pointer(c)
	c.ln("smart_tpl_output(userdata,", c.pop(), ",", cbool(escape), ");")
}

func (c *state) OutputFilter(f *ast.FilterNode, escape bool) {
	c.Modifiers(f)
	c.ln("smart_tpl_output(userdata,", c.pop(), ",", cbool(escape), ");")
}

func (c *state) Write(e ast.Expression) {
	switch e.Type() {
	case ast.TypeNumeric:
		e.Numeric(c)
		c.writeFormatted("%lld", "(long long)("+c.pop()+")", 32)
	case ast.TypeDouble:
		e.Double(c)
		c.writeFormatted("%.6f", c.pop(), 64)
	case ast.TypeBoolean:
		e.Boolean(c)
		var b = c.pop()
		c.ln("smart_tpl_write(userdata,(", b, `) ? "true" : "false",(`, b, ") ? 4 : 5);")
	default:
		e.EmitString(c)
		var buf, size = c.popPair()
		c.ln("smart_tpl_write(userdata,", buf, ",", size, ");")
	}
}

// writeFormatted emits a block that renders a primitive through snprintf
// and writes the result.
func (c *state) writeFormatted(format, expr string, bufsize int) {
	c.ln("{")
	c.indentLevels++
	c.ln("char buffer[", itoa(bufsize), "];")
	c.ln("int size = snprintf(buffer,sizeof(buffer),\"", format, "\",", expr, ");")
	c.ln("smart_tpl_write(userdata,buffer,size);")
	c.indentLevels--
	c.ln("}")
}

// Variable pointers ----------

func (c *state) VarPointer(name string) {
	c.push("smart_tpl_variable(userdata," + cstring(name) + "," + itoa(len(name)) + ")")
}

func (c *state) MemberPointer(name string) {
	var parent = c.pop()
	c.push("smart_tpl_member(userdata," + parent + "," + cstring(name) + "," + itoa(len(name)) + ")")
}

func (c *state) MemberAtPointer(index ast.Expression) {
	switch index.Type() {
	case ast.TypeNumeric:
		index.Numeric(c)
		var i = c.pop()
		var parent = c.pop()
		c.push("smart_tpl_member_at(userdata," + parent + "," + i + ")")
	case ast.TypeDouble:
		index.Double(c)
		var i = c.pop()
		var parent = c.pop()
		c.push("smart_tpl_member_at(userdata," + parent + ",(int64_t)(" + i + "))")
	case ast.TypeBoolean:
		c.errorf("a boolean cannot be used as an index")
	default:
		index.EmitString(c)
		var buf, size = c.popPair()
		var parent = c.pop()
		c.push("smart_tpl_member(userdata," + parent + "," + buf + "," + size + ")")
	}
}

// Literals ----------

func (c *state) StringLiteral(value string) {
	c.push(cstring(value))
	c.push(itoa(len(value)))
}

func (c *state) NumericLiteral(value int64) {
	c.push(strconv.FormatInt(value, 10) + "LL")
}

func (c *state) DoubleLiteral(value float64) {
	var s = strconv.FormatFloat(value, 'g', -1, 64)
	if !containsAny(s, ".e") {
		s += ".0"
	}
	c.push(s)
}

func (c *state) BooleanLiteral(value bool) {
	c.push(cbool(value))
}

// Variable conversions ----------

func (c *state) StringVariable(v *ast.VariableNode) {
	v.Pointer(c)
	var value = c.pop()
	c.push("smart_tpl_to_string(userdata," + value + ")")
	c.push("smart_tpl_size(userdata," + value + ")")
}

func (c *state) NumericVariable(v *ast.VariableNode) {
	v.Pointer(c)
	c.push("smart_tpl_to_numeric(userdata," + c.pop() + ")")
}

func (c *state) BooleanVariable(v *ast.VariableNode) {
	v.Pointer(c)
	c.push("smart_tpl_to_boolean(userdata," + c.pop() + ")")
}

func (c *state) DoubleVariable(v *ast.VariableNode) {
	v.Pointer(c)
	c.push("smart_tpl_to_double(userdata," + c.pop() + ")")
}

// Filter conversions ----------

func (c *state) StringFilter(f *ast.FilterNode) {
	c.Modifiers(f)
	var value = c.pop()
	c.push("smart_tpl_to_string(userdata," + value + ")")
	c.push("smart_tpl_size(userdata," + value + ")")
}

func (c *state) NumericFilter(f *ast.FilterNode) {
	c.Modifiers(f)
	c.push("smart_tpl_to_numeric(userdata," + c.pop() + ")")
}

func (c *state) BooleanFilter(f *ast.FilterNode) {
	c.Modifiers(f)
	c.push("smart_tpl_to_boolean(userdata," + c.pop() + ")")
}

func (c *state) DoubleFilter(f *ast.FilterNode) {
	c.Modifiers(f)
	c.push("smart_tpl_to_double(userdata," + c.pop() + ")")
}

// Primitive conversions ----------

// The primitive-to-string conversions have no C expression form; they
// only arise in statement contexts, which Write and Assign lower through
// snprintf blocks instead.

func (c *state) NumericToString(e ast.Expression) {
	c.errorf("internal: numeric-to-string is not lowerable inside a C expression")
}

func (c *state) DoubleToString(e ast.Expression) {
	c.errorf("internal: double-to-string is not lowerable inside a C expression")
}

func (c *state) BooleanToString(e ast.Expression) {
	c.errorf("internal: boolean-to-string is not lowerable inside a C expression")
}

func (c *state) StringToNumeric(e ast.Expression) {
	e.EmitString(c)
	var buf, _ = c.popPair()
	c.push("((int64_t)strtoll(" + buf + ",0,10))")
}

func (c *state) NumericToBoolean(e ast.Expression) {
	e.Numeric(c)
	c.push("((" + c.pop() + ") != 0)")
}

// Arithmetic ----------

func (c *state) op(symbol string, left, right ast.Expression) {
	if ast.ArithmeticType(left, right) == ast.TypeDouble {
		left.Double(c)
		right.Double(c)
	} else {
		left.Numeric(c)
		right.Numeric(c)
	}
	var r = c.pop()
	var l = c.pop()
	c.push("(" + l + " " + symbol + " " + r + ")")
}

func (c *state) Plus(left, right ast.Expression)     { c.op("+", left, right) }
func (c *state) Minus(left, right ast.Expression)    { c.op("-", left, right) }
func (c *state) Multiply(left, right ast.Expression) { c.op("*", left, right) }
func (c *state) Divide(left, right ast.Expression)   { c.op("/", left, right) }

func (c *state) Modulo(left, right ast.Expression) {
	left.Numeric(c)
	right.Numeric(c)
	var r = c.pop()
	var l = c.pop()
	c.push("(" + l + " % " + r + ")")
}

// Comparison ----------

func (c *state) comparison(symbol string, ordered bool, left, right ast.Expression) {
	kind, err := ast.CompareType(left, right)
	if err != nil {
		c.errorf("%s", err)
	}
	switch kind {
	case ast.TypeNumeric:
		left.Numeric(c)
		right.Numeric(c)
	case ast.TypeDouble:
		left.Double(c)
		right.Double(c)
	case ast.TypeString:
		if ordered {
			c.errorf("strings have no ordering comparison")
		}
		left.EmitString(c)
		right.EmitString(c)
		var rbuf, rsize = c.popPair()
		var lbuf, lsize = c.popPair()
		c.push("(smart_tpl_strcmp(userdata," + lbuf + "," + lsize + "," +
			rbuf + "," + rsize + ") " + symbol + " 0)")
		return
	case ast.TypeBoolean:
		if ordered {
			c.errorf("booleans have no ordering comparison")
		}
		left.Boolean(c)
		right.Boolean(c)
	}
	var r = c.pop()
	var l = c.pop()
	c.push("(" + l + " " + symbol + " " + r + ")")
}

func (c *state) Equals(left, right ast.Expression)        { c.comparison("==", false, left, right) }
func (c *state) NotEquals(left, right ast.Expression)     { c.comparison("!=", false, left, right) }
func (c *state) Greater(left, right ast.Expression)       { c.comparison(">", true, left, right) }
func (c *state) GreaterEquals(left, right ast.Expression) { c.comparison(">=", true, left, right) }
func (c *state) Lesser(left, right ast.Expression)        { c.comparison("<", true, left, right) }
func (c *state) LesserEquals(left, right ast.Expression)  { c.comparison("<=", true, left, right) }

// Boolean ----------

func (c *state) boolOp(symbol string, left, right ast.Expression) {
	left.Boolean(c)
	right.Boolean(c)
	var r = c.pop()
	var l = c.pop()
	// the C operators short-circuit, like the VM lowering
	c.push("(" + l + " " + symbol + " " + r + ")")
}

func (c *state) BooleanAnd(left, right ast.Expression) { c.boolOp("&&", left, right) }
func (c *state) BooleanOr(left, right ast.Expression)  { c.boolOp("||", left, right) }

func (c *state) BooleanNot(e ast.Expression) {
	e.Boolean(c)
	c.push("(!(" + c.pop() + "))")
}

// Control flow ----------

func (c *state) Condition(cond ast.Expression, then, els *ast.Statements) {
	cond.Boolean(c)
	c.ln("if (", c.pop(), ") {")
	c.indentLevels++
	then.Generate(c)
	c.indentLevels--
	if els != nil {
		c.ln("} else {")
		c.indentLevels++
		els.Generate(c)
		c.indentLevels--
	}
	c.ln("}")
}

func (c *state) Foreach(n *ast.ForeachNode) {
	n.Source.Pointer(c)
	c.ln("{")
	c.indentLevels++
	c.ln("void *iterator = smart_tpl_create_iterator(userdata,", c.pop(), ");")
	if n.Else != nil {
		c.ln("if (smart_tpl_valid_iterator(userdata,iterator)) {")
		c.indentLevels++
	}
	c.ln("while (smart_tpl_valid_iterator(userdata,iterator)) {")
	c.indentLevels++
	if n.KeyName != "" {
		c.assignStmt(n.KeyName, "smart_tpl_iterator_key(userdata,iterator)")
	}
	c.assignStmt(n.ValueName, "smart_tpl_iterator_value(userdata,iterator)")
	n.Body.Generate(c)
	c.ln("smart_tpl_iterator_next(userdata,iterator);")
	c.indentLevels--
	c.ln("}")
	// the induction variables do not outlive the loop
	c.assignStmt(n.ValueName, "(void *)0")
	if n.KeyName != "" {
		c.assignStmt(n.KeyName, "(void *)0")
	}
	if n.Else != nil {
		c.indentLevels--
		c.ln("} else {")
		c.indentLevels++
		n.Else.Generate(c)
		c.indentLevels--
		c.ln("}")
	}
	c.indentLevels--
	c.ln("}")
}

func (c *state) assignStmt(name, value string) {
	c.ln("smart_tpl_assign(userdata,", cstring(name), ",", itoa(len(name)), ",", value, ");")
}

func (c *state) Assign(name string, e ast.Expression) {
	var cname = cstring(name) + "," + itoa(len(name))
	switch e.Type() {
	case ast.TypeNumeric:
		e.Numeric(c)
		c.ln("smart_tpl_assign_numeric(userdata,", cname, ",", c.pop(), ");")
	case ast.TypeDouble:
		// doubles are stored in their fixed-point string form so every
		// backend agrees on the representation
		e.Double(c)
		c.ln("{")
		c.indentLevels++
		c.ln("char buffer[64];")
		c.ln("int size = snprintf(buffer,sizeof(buffer),\"%.6f\",", c.pop(), ");")
		c.ln("smart_tpl_assign_string(userdata,", cname, ",buffer,size);")
		c.indentLevels--
		c.ln("}")
	case ast.TypeBoolean:
		e.Boolean(c)
		c.ln("smart_tpl_assign_boolean(userdata,", cname, ",", c.pop(), ");")
	case ast.TypeString:
		e.EmitString(c)
		var buf, size = c.popPair()
		c.ln("smart_tpl_assign_string(userdata,", cname, ",", buf, ",", size, ");")
	default:
		c.pointer(e)
		c.ln("smart_tpl_assign(userdata,", cname, ",", c.pop(), ");")
	}
}

// pointer emits a Value-typed expression as a value pointer.
func (c *state) pointer(e ast.Expression) {
	switch e := e.(type) {
	case *ast.VariableNode:
		e.Pointer(c)
	case *ast.FilterNode:
		c.Modifiers(e)
	case *ast.NullNode:
		c.push("(void *)0")
	default:
		c.errorf("expression %q has no value form", e)
	}
}

// Modifiers ----------

func (c *state) Modifiers(f *ast.FilterNode) {
	f.Base.Pointer(c)
	for _, m := range f.Mods {
		var value = c.pop()
		var params = "(void *)0"
		if len(m.Args) > 0 {
			params = "smart_tpl_create_params(userdata)"
			for _, arg := range m.Args {
				params = c.param(params, arg)
			}
		}
		c.push("smart_tpl_modify_variable(userdata,smart_tpl_modifier(userdata," +
			cstring(m.Name) + "," + itoa(len(m.Name)) + ")," + value + "," + params + ")")
	}
}

// param wraps the params expression in the append call for one argument.
func (c *state) param(params string, arg ast.Expression) string {
	switch arg.Type() {
	case ast.TypeNumeric:
		arg.Numeric(c)
		return "smart_tpl_params_append_numeric(userdata," + params + "," + c.pop() + ")"
	case ast.TypeDouble:
		arg.Double(c)
		return "smart_tpl_params_append_double(userdata," + params + "," + c.pop() + ")"
	case ast.TypeBoolean:
		arg.Boolean(c)
		return "smart_tpl_params_append_boolean(userdata," + params + "," + c.pop() + ")"
	case ast.TypeString:
		arg.EmitString(c)
		var buf, size = c.popPair()
		return "smart_tpl_params_append_string(userdata," + params + "," + buf + "," + size + ")"
	default:
		c.pointer(arg)
		return "smart_tpl_params_append_value(userdata," + params + "," + c.pop() + ")"
	}
}

var _ ast.Generator = (*state)(nil)

// Helpers ----------

// cstring renders a C string literal with the standard escapes; anything
// non-printable is emitted in octal.
func cstring(s string) string {
	var out = []byte{'"'}
	for i := 0; i < len(s); i++ {
		var b = s[i]
		switch b {
		case '"':
			out = append(out, '\\', '"')
		case '\\':
			out = append(out, '\\', '\\')
		case '\n':
			out = append(out, '\\', 'n')
		case '\r':
			out = append(out, '\\', 'r')
		case '\t':
			out = append(out, '\\', 't')
		default:
			if b < 0x20 || b == 0x7f {
				out = append(out, fmt.Sprintf("\\%03o", b)...)
			} else {
				out = append(out, b)
			}
		}
	}
	return string(append(out, '"'))
}

func cbool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func itoa(i int) string {
	return strconv.Itoa(i)
}

func containsAny(s, chars string) bool {
	for i := 0; i < len(s); i++ {
		for j := 0; j < len(chars); j++ {
			if s[i] == chars[j] {
				return true
			}
		}
	}
	return false
}
