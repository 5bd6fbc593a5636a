// Package bytecode compiles a syntax tree into virtual machine
// instructions and executes them against a Handler.  It is the in-memory
// backend: templates compiled here render immediately, without going
// through a generated source file.
package bytecode

import (
	"fmt"

	"github.com/smarttpl/smarttpl/ast"
	"github.com/smarttpl/smarttpl/errortypes"
)

// Instr is one instruction.  The operand fields used depend on the opcode.
type Instr struct {
	Op    Opcode
	Num   int64
	Float float64
	Str   string
}

// Program holds a compiled template.
type Program struct {
	Name  string
	Instr []Instr
}

// Compile lowers a syntax tree into a program.  Emit-time failures (such
// as a comparison between incompatible static types) are reported as
// compile errors.
func Compile(tree *ast.SyntaxTree) (prog *Program, err error) {
	var c = &compiler{prog: &Program{Name: tree.Name}}
	defer c.recover(&err)
	tree.Generate(c)
	c.add(Instr{Op: Return})
	return c.prog, nil
}

// compiler implements ast.Generator.  The instructions it emits follow
// the value stack discipline documented on the opcodes: every expression
// hook leaves exactly one operand on the runtime stack.
type compiler struct {
	prog *Program
}

func (c *compiler) add(in Instr) int {
	c.prog.Instr = append(c.prog.Instr, in)
	return len(c.prog.Instr) - 1
}

// pc is the index the next instruction will get.
func (c *compiler) pc() int {
	return len(c.prog.Instr)
}

// patch points a previously emitted jump at the current pc.
func (c *compiler) patch(at int) {
	c.prog.Instr[at].Num = int64(c.pc())
}

func (c *compiler) errorf(format string, args ...interface{}) {
	panic(errortypes.NewCompileErrorf(c.prog.Name, 0, 0, format, args...))
}

// recover turns emit-time panics into a returned error.
func (c *compiler) recover(errp *error) {
	if e := recover(); e != nil {
		if err, ok := e.(error); ok && errortypes.IsCompileError(err) {
			*errp = err
			return
		}
		*errp = errortypes.NewCompileErrorf(c.prog.Name, 0, 0, "%v", e)
	}
}

// Output ----------

func (c *compiler) Raw(text []byte) {
	c.add(Instr{Op: RawText, Str: string(text)})
}

func (c *compiler) OutputVariable(v *ast.VariableNode, escape bool) {
	v.Pointer(c)
	c.add(Instr{Op: OutputVal, Num: boolNum(escape)})
}

func (c *compiler) OutputFilter(f *ast.FilterNode, escape bool) {
	c.Modifiers(f)
	c.add(Instr{Op: OutputVal, Num: boolNum(escape)})
}

func (c *compiler) Write(e ast.Expression) {
	e.EmitString(c)
	c.add(Instr{Op: WriteStr})
}

// Variable pointers ----------

func (c *compiler) VarPointer(name string) {
	c.add(Instr{Op: LookupVar, Str: name})
}

func (c *compiler) MemberPointer(name string) {
	c.add(Instr{Op: LookupMember, Str: name})
}

func (c *compiler) MemberAtPointer(index ast.Expression) {
	switch index.Type() {
	case ast.TypeNumeric:
		index.Numeric(c)
		c.add(Instr{Op: LookupMemberAt})
	case ast.TypeDouble:
		index.Double(c)
		c.add(Instr{Op: DoubleToNum})
		c.add(Instr{Op: LookupMemberAt})
	case ast.TypeBoolean:
		c.errorf("a boolean cannot be used as an index")
	default:
		index.EmitString(c)
		c.add(Instr{Op: LookupMemberExpr})
	}
}

// Literals ----------

func (c *compiler) StringLiteral(value string) {
	c.add(Instr{Op: PushStr, Str: value})
}

func (c *compiler) NumericLiteral(value int64) {
	c.add(Instr{Op: PushNum, Num: value})
}

func (c *compiler) DoubleLiteral(value float64) {
	c.add(Instr{Op: PushDouble, Float: value})
}

func (c *compiler) BooleanLiteral(value bool) {
	c.add(Instr{Op: PushBool, Num: boolNum(value)})
}

// Variable conversions ----------

func (c *compiler) StringVariable(v *ast.VariableNode) {
	v.Pointer(c)
	c.add(Instr{Op: ToStr})
}

func (c *compiler) NumericVariable(v *ast.VariableNode) {
	v.Pointer(c)
	c.add(Instr{Op: ToNum})
}

func (c *compiler) BooleanVariable(v *ast.VariableNode) {
	v.Pointer(c)
	c.add(Instr{Op: ToBool})
}

func (c *compiler) DoubleVariable(v *ast.VariableNode) {
	v.Pointer(c)
	c.add(Instr{Op: ToDouble})
}

// Filter conversions ----------

func (c *compiler) StringFilter(f *ast.FilterNode) {
	c.Modifiers(f)
	c.add(Instr{Op: ToStr})
}

func (c *compiler) NumericFilter(f *ast.FilterNode) {
	c.Modifiers(f)
	c.add(Instr{Op: ToNum})
}

func (c *compiler) BooleanFilter(f *ast.FilterNode) {
	c.Modifiers(f)
	c.add(Instr{Op: ToBool})
}

func (c *compiler) DoubleFilter(f *ast.FilterNode) {
	c.Modifiers(f)
	c.add(Instr{Op: ToDouble})
}

// Primitive conversions ----------

func (c *compiler) NumericToString(e ast.Expression) {
	e.Numeric(c)
	c.add(Instr{Op: NumToStr})
}

func (c *compiler) DoubleToString(e ast.Expression) {
	e.Double(c)
	c.add(Instr{Op: DoubleToStr})
}

func (c *compiler) BooleanToString(e ast.Expression) {
	e.Boolean(c)
	c.add(Instr{Op: BoolToStr})
}

func (c *compiler) StringToNumeric(e ast.Expression) {
	e.EmitString(c)
	c.add(Instr{Op: StrToNum})
}

func (c *compiler) NumericToBoolean(e ast.Expression) {
	e.Numeric(c)
	c.add(Instr{Op: NumToBool})
}

// Arithmetic ----------

func (c *compiler) arithmetic(left, right ast.Expression, numOp, doubleOp Opcode) {
	if ast.ArithmeticType(left, right) == ast.TypeDouble {
		left.Double(c)
		right.Double(c)
		c.add(Instr{Op: doubleOp})
	} else {
		left.Numeric(c)
		right.Numeric(c)
		c.add(Instr{Op: numOp})
	}
}

func (c *compiler) Plus(left, right ast.Expression)     { c.arithmetic(left, right, Add, AddF) }
func (c *compiler) Minus(left, right ast.Expression)    { c.arithmetic(left, right, Sub, SubF) }
func (c *compiler) Multiply(left, right ast.Expression) { c.arithmetic(left, right, Mul, MulF) }
func (c *compiler) Divide(left, right ast.Expression)   { c.arithmetic(left, right, Div, DivF) }

func (c *compiler) Modulo(left, right ast.Expression) {
	left.Numeric(c)
	right.Numeric(c)
	c.add(Instr{Op: Mod})
}

// Comparison ----------

// comparison lowers both operands by the resolved compare type and emits
// the matching compare instruction.
func (c *compiler) comparison(left, right ast.Expression, ordered bool,
	numOp, doubleOp, strOp, boolOp Opcode) {
	kind, err := ast.CompareType(left, right)
	if err != nil {
		c.errorf("%s", err)
	}
	switch kind {
	case ast.TypeNumeric:
		left.Numeric(c)
		right.Numeric(c)
		c.add(Instr{Op: numOp})
	case ast.TypeDouble:
		left.Double(c)
		right.Double(c)
		c.add(Instr{Op: doubleOp})
	case ast.TypeString:
		if ordered {
			c.errorf("strings have no ordering comparison")
		}
		left.EmitString(c)
		right.EmitString(c)
		c.add(Instr{Op: strOp})
	case ast.TypeBoolean:
		if ordered {
			c.errorf("booleans have no ordering comparison")
		}
		left.Boolean(c)
		right.Boolean(c)
		c.add(Instr{Op: boolOp})
	default:
		c.errorf("comparison between incompatible static types")
	}
}

func (c *compiler) Equals(left, right ast.Expression) {
	c.comparison(left, right, false, EqNum, EqF, EqStr, EqBool)
}

func (c *compiler) NotEquals(left, right ast.Expression) {
	c.comparison(left, right, false, NeqNum, NeqF, NeqStr, NeqBool)
}

func (c *compiler) Greater(left, right ast.Expression) {
	c.comparison(left, right, true, GtNum, GtF, 0, 0)
}

func (c *compiler) GreaterEquals(left, right ast.Expression) {
	c.comparison(left, right, true, GteNum, GteF, 0, 0)
}

func (c *compiler) Lesser(left, right ast.Expression) {
	c.comparison(left, right, true, LtNum, LtF, 0, 0)
}

func (c *compiler) LesserEquals(left, right ast.Expression) {
	c.comparison(left, right, true, LteNum, LteF, 0, 0)
}

// Boolean ----------

func (c *compiler) BooleanAnd(left, right ast.Expression) {
	left.Boolean(c)
	var toFalse = c.add(Instr{Op: JumpIfFalse})
	right.Boolean(c)
	var toEnd = c.add(Instr{Op: Jump})
	c.patch(toFalse)
	c.add(Instr{Op: PushBool, Num: 0})
	c.patch(toEnd)
}

func (c *compiler) BooleanOr(left, right ast.Expression) {
	left.Boolean(c)
	var toTrue = c.add(Instr{Op: JumpIfTrue})
	right.Boolean(c)
	var toEnd = c.add(Instr{Op: Jump})
	c.patch(toTrue)
	c.add(Instr{Op: PushBool, Num: 1})
	c.patch(toEnd)
}

func (c *compiler) BooleanNot(e ast.Expression) {
	e.Boolean(c)
	c.add(Instr{Op: Not})
}

// Control flow ----------

func (c *compiler) Condition(cond ast.Expression, then, els *ast.Statements) {
	cond.Boolean(c)
	var toElse = c.add(Instr{Op: JumpIfFalse})
	then.Generate(c)
	if els == nil {
		c.patch(toElse)
		return
	}
	var toEnd = c.add(Instr{Op: Jump})
	c.patch(toElse)
	els.Generate(c)
	c.patch(toEnd)
}

func (c *compiler) Foreach(n *ast.ForeachNode) {
	n.Source.Pointer(c)
	c.add(Instr{Op: IterCreate})

	// with a foreachelse, divert to it when there is nothing to iterate
	var toElse = -1
	if n.Else != nil {
		c.add(Instr{Op: IterValid})
		toElse = c.add(Instr{Op: JumpIfFalse})
	}

	var head = c.pc()
	c.add(Instr{Op: IterValid})
	var toCleanup = c.add(Instr{Op: JumpIfFalse})
	if n.KeyName != "" {
		c.add(Instr{Op: IterKey})
		c.add(Instr{Op: AssignVal, Str: n.KeyName})
	}
	c.add(Instr{Op: IterValue})
	c.add(Instr{Op: AssignVal, Str: n.ValueName})
	n.Body.Generate(c)
	c.add(Instr{Op: IterNext})
	c.add(Instr{Op: Jump, Num: int64(head)})

	// the induction variables do not outlive the loop
	c.patch(toCleanup)
	c.add(Instr{Op: RemoveVar, Str: n.ValueName})
	if n.KeyName != "" {
		c.add(Instr{Op: RemoveVar, Str: n.KeyName})
	}
	c.add(Instr{Op: IterPop})

	if n.Else != nil {
		var toEnd = c.add(Instr{Op: Jump})
		c.patch(toElse)
		c.add(Instr{Op: IterPop})
		n.Else.Generate(c)
		c.patch(toEnd)
	}
}

func (c *compiler) Assign(name string, e ast.Expression) {
	switch e.Type() {
	case ast.TypeNumeric:
		e.Numeric(c)
		c.add(Instr{Op: AssignNum, Str: name})
	case ast.TypeDouble:
		// doubles are assigned in their fixed-point string form so every
		// backend agrees on the stored representation
		e.EmitString(c)
		c.add(Instr{Op: AssignStr, Str: name})
	case ast.TypeBoolean:
		e.Boolean(c)
		c.add(Instr{Op: AssignBool, Str: name})
	case ast.TypeString:
		e.EmitString(c)
		c.add(Instr{Op: AssignStr, Str: name})
	default:
		c.pointer(e)
		c.add(Instr{Op: AssignVal, Str: name})
	}
}

// pointer emits a Value-typed expression as a value handle.
func (c *compiler) pointer(e ast.Expression) {
	switch e := e.(type) {
	case *ast.VariableNode:
		e.Pointer(c)
	case *ast.FilterNode:
		c.Modifiers(e)
	case *ast.NullNode:
		c.add(Instr{Op: PushEmpty})
	default:
		c.errorf("expression %q has no value form", e)
	}
}

// Modifiers ----------

func (c *compiler) Modifiers(f *ast.FilterNode) {
	f.Base.Pointer(c)
	for _, m := range f.Mods {
		c.add(Instr{Op: Modifier, Str: m.Name})
		c.add(Instr{Op: NewParams})
		for _, arg := range m.Args {
			c.param(arg)
		}
		c.add(Instr{Op: ModifyVar})
	}
}

func (c *compiler) param(arg ast.Expression) {
	switch arg.Type() {
	case ast.TypeNumeric:
		arg.Numeric(c)
		c.add(Instr{Op: ParamNum})
	case ast.TypeDouble:
		arg.Double(c)
		c.add(Instr{Op: ParamF})
	case ast.TypeBoolean:
		arg.Boolean(c)
		c.add(Instr{Op: ParamBool})
	case ast.TypeString:
		arg.EmitString(c)
		c.add(Instr{Op: ParamStr})
	default:
		c.pointer(arg)
		c.add(Instr{Op: ParamVal})
	}
}

func boolNum(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

var _ ast.Generator = (*compiler)(nil)

// String renders the program's instruction listing, for tests and
// debugging.
func (p *Program) String() string {
	var out string
	for i, in := range p.Instr {
		out += fmt.Sprintf("%03d %s", i, in.Op)
		switch in.Op {
		case RawText, PushStr, LookupVar, LookupMember, AssignVal, AssignNum,
			AssignStr, AssignBool, RemoveVar, Modifier:
			out += fmt.Sprintf(" %q", in.Str)
		case PushNum, PushBool, Jump, JumpIfFalse, JumpIfTrue, OutputVal:
			out += fmt.Sprintf(" %d", in.Num)
		case PushDouble:
			out += fmt.Sprintf(" %v", in.Float)
		}
		out += "\n"
	}
	return out
}
