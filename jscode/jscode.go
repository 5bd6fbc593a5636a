// Package jscode turns a syntax tree into a JavaScript program that is
// equivalent to the C rendition: a single show_template function doing
// all runtime interaction through the smart_tpl_* callback ABI.  Unlike
// the C output, the JavaScript program can be loaded and executed
// directly (see Load), which makes it the engine's stand-in for loading
// a compiled shared object.
package jscode

import (
	"io"
	"strconv"

	"github.com/smarttpl/smarttpl/ast"
	"github.com/smarttpl/smarttpl/errortypes"
)

// prelude defines the arithmetic helpers the generated code uses for the
// operations JavaScript numbers do not provide natively: truncating
// integer division, and the zero-divisor check.
const prelude = `function __div(l,r) { if (r === 0) throw new Error("division by zero"); var q = l / r; return q < 0 ? Math.ceil(q) : Math.floor(q); }
function __mod(l,r) { if (r === 0) throw new Error("modulo by zero"); return l % r; }
function __fdiv(l,r) { if (r === 0) throw new Error("division by zero"); return l / r; }
function __num(s) { var n = parseInt(s,10); return isNaN(n) ? 0 : n; }
`

// Generate writes the JavaScript rendition of the tree to w.
func Generate(w io.Writer, tree *ast.SyntaxTree) (err error) {
	var c = &state{wr: w, name: tree.Name}
	defer c.recover(&err)
	c.ln("// Generated from template ", tree.Name, ".")
	c.ln("// Do not edit this file by hand.")
	c.ln("")
	c.w(prelude)
	c.ln("")
	c.ln("function show_template(userdata) {")
	c.indentLevels++
	tree.Generate(c)
	c.indentLevels--
	c.ln("}")
	return nil
}

// state implements ast.Generator the same way the C emitter does:
// statement hooks write lines, expression hooks build expression text on
// a private stack, strings counted as a (buffer, size) pair.
type state struct {
	wr           io.Writer
	name         string
	indentLevels int
	exprs        []string
	varnum       int
}

func (c *state) push(s string) {
	c.exprs = append(c.exprs, s)
}

func (c *state) pop() string {
	var s = c.exprs[len(c.exprs)-1]
	c.exprs = c.exprs[:len(c.exprs)-1]
	return s
}

func (c *state) popPair() (buf, size string) {
	size = c.pop()
	buf = c.pop()
	return buf, size
}

// makevar returns a fresh generated variable name.  JavaScript var
// declarations are function scoped, so nested loops cannot shadow.
func (c *state) makevar(prefix string) string {
	c.varnum++
	return prefix + strconv.Itoa(c.varnum)
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
		io.WriteString(c.wr, "  ")
	}
}

func (c *state) w(args ...string) {
	for _, arg := range args {
		io.WriteString(c.wr, arg)
	}
}

func (c *state) ln(args ...string) {
	c.indent()
	c.w(args...)
	c.w("\n")
}

// Output ----------

func (c *state) Raw(text []byte) {
	c.ln("smart_tpl_write(userdata,", jsstring(string(text)), ",", itoa(len(text)), ");")
}

func (c *state) OutputVariable(v *ast.VariableNode, escape bool) {
	v.Pointer(c)
	c.ln("smart_tpl_output(userdata,", c.pop(), ",", jsbool(escape), ");")
}

func (c *state) OutputFilter(f *ast.FilterNode, escape bool) {
	c.Modifiers(f)
	c.ln("smart_tpl_output(userdata,", c.pop(), ",", jsbool(escape), ");")
}

func (c *state) Write(e ast.Expression) {
	switch e.Type() {
	case ast.TypeNumeric:
		e.Numeric(c)
		var n = c.pop()
		c.ln("smart_tpl_write(userdata,String(", n, "),0);")
	case ast.TypeDouble:
		e.Double(c)
		c.ln("smart_tpl_write(userdata,(", c.pop(), ").toFixed(6),0);")
	case ast.TypeBoolean:
		e.Boolean(c)
		var b = c.pop()
		c.ln("smart_tpl_write(userdata,(", b, `) ? "true" : "false",0);`)
	default:
		e.EmitString(c)
		var buf, size = c.popPair()
		c.ln("smart_tpl_write(userdata,", buf, ",", size, ");")
	}
}

// Variable pointers ----------

func (c *state) VarPointer(name string) {
	c.push("smart_tpl_variable(userdata," + jsstring(name) + "," + itoa(len(name)) + ")")
}

func (c *state) MemberPointer(name string) {
	var parent = c.pop()
	c.push("smart_tpl_member(userdata," + parent + "," + jsstring(name) + "," + itoa(len(name)) + ")")
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
		c.push("smart_tpl_member_at(userdata," + parent + ",Math.floor(" + i + "))")
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
	c.push(jsstring(value))
	c.push(itoa(len(value)))
}

func (c *state) NumericLiteral(value int64) {
	c.push(strconv.FormatInt(value, 10))
}

func (c *state) DoubleLiteral(value float64) {
	c.push(strconv.FormatFloat(value, 'g', -1, 64))
}

func (c *state) BooleanLiteral(value bool) {
	if value {
		c.push("true")
	} else {
		c.push("false")
	}
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
	c.push("(smart_tpl_to_boolean(userdata," + c.pop() + ") != 0)")
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
	c.push("(smart_tpl_to_boolean(userdata," + c.pop() + ") != 0)")
}

func (c *state) DoubleFilter(f *ast.FilterNode) {
	c.Modifiers(f)
	c.push("smart_tpl_to_double(userdata," + c.pop() + ")")
}

// Primitive conversions ----------

func (c *state) NumericToString(e ast.Expression) {
	e.Numeric(c)
	c.push("String(" + c.pop() + ")")
	c.push("0")
}

func (c *state) DoubleToString(e ast.Expression) {
	e.Double(c)
	c.push("(" + c.pop() + ").toFixed(6)")
	c.push("0")
}

func (c *state) BooleanToString(e ast.Expression) {
	e.Boolean(c)
	var b = c.pop()
	c.push("((" + b + `) ? "true" : "false")`)
	c.push("0")
}

func (c *state) StringToNumeric(e ast.Expression) {
	e.EmitString(c)
	var buf, _ = c.popPair()
	c.push("__num(" + buf + ")")
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

func (c *state) Divide(left, right ast.Expression) {
	var fn = "__div"
	if ast.ArithmeticType(left, right) == ast.TypeDouble {
		fn = "__fdiv"
		left.Double(c)
		right.Double(c)
	} else {
		left.Numeric(c)
		right.Numeric(c)
	}
	var r = c.pop()
	var l = c.pop()
	c.push(fn + "(" + l + "," + r + ")")
}

func (c *state) Modulo(left, right ast.Expression) {
	left.Numeric(c)
	right.Numeric(c)
	var r = c.pop()
	var l = c.pop()
	c.push("__mod(" + l + "," + r + ")")
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
	var iter = c.makevar("iter")
	c.ln("var ", iter, " = smart_tpl_create_iterator(userdata,", c.pop(), ");")
	if n.Else != nil {
		c.ln("if (smart_tpl_valid_iterator(userdata,", iter, ") != 0) {")
		c.indentLevels++
	}
	c.ln("while (smart_tpl_valid_iterator(userdata,", iter, ") != 0) {")
	c.indentLevels++
	if n.KeyName != "" {
		c.assignStmt(n.KeyName, "smart_tpl_iterator_key(userdata,"+iter+")")
	}
	c.assignStmt(n.ValueName, "smart_tpl_iterator_value(userdata,"+iter+")")
	n.Body.Generate(c)
	c.ln("smart_tpl_iterator_next(userdata,", iter, ");")
	c.indentLevels--
	c.ln("}")
	// the induction variables do not outlive the loop
	c.assignStmt(n.ValueName, "0")
	if n.KeyName != "" {
		c.assignStmt(n.KeyName, "0")
	}
	if n.Else != nil {
		c.indentLevels--
		c.ln("} else {")
		c.indentLevels++
		n.Else.Generate(c)
		c.indentLevels--
		c.ln("}")
	}
}

func (c *state) assignStmt(name, value string) {
	c.ln("smart_tpl_assign(userdata,", jsstring(name), ",", itoa(len(name)), ",", value, ");")
}

func (c *state) Assign(name string, e ast.Expression) {
	var jname = jsstring(name) + "," + itoa(len(name))
	switch e.Type() {
	case ast.TypeNumeric:
		e.Numeric(c)
		c.ln("smart_tpl_assign_numeric(userdata,", jname, ",", c.pop(), ");")
	case ast.TypeDouble:
		e.Double(c)
		c.ln("smart_tpl_assign_string(userdata,", jname, ",(", c.pop(), ").toFixed(6),0);")
	case ast.TypeBoolean:
		e.Boolean(c)
		c.ln("smart_tpl_assign_boolean(userdata,", jname, ",(", c.pop(), ") ? 1 : 0);")
	case ast.TypeString:
		e.EmitString(c)
		var buf, size = c.popPair()
		c.ln("smart_tpl_assign_string(userdata,", jname, ",", buf, ",", size, ");")
	default:
		c.pointer(e)
		c.ln("smart_tpl_assign(userdata,", jname, ",", c.pop(), ");")
	}
}

func (c *state) pointer(e ast.Expression) {
	switch e := e.(type) {
	case *ast.VariableNode:
		e.Pointer(c)
	case *ast.FilterNode:
		c.Modifiers(e)
	case *ast.NullNode:
		c.push("0")
	default:
		c.errorf("expression %q has no value form", e)
	}
}

// Modifiers ----------

func (c *state) Modifiers(f *ast.FilterNode) {
	f.Base.Pointer(c)
	for _, m := range f.Mods {
		var value = c.pop()
		var params = "0"
		if len(m.Args) > 0 {
			params = "smart_tpl_create_params(userdata)"
			for _, arg := range m.Args {
				params = c.param(params, arg)
			}
		}
		c.push("smart_tpl_modify_variable(userdata,smart_tpl_modifier(userdata," +
			jsstring(m.Name) + "," + itoa(len(m.Name)) + ")," + value + "," + params + ")")
	}
}

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
		return "smart_tpl_params_append_boolean(userdata," + params + ",(" + c.pop() + ") ? 1 : 0)"
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

func jsstring(s string) string {
	return strconv.Quote(s)
}

func jsbool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
