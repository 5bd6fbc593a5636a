package bytecode

import (
	"strconv"

	rt "github.com/smarttpl/smarttpl/runtime"
)

// operand is one entry on the VM's runtime value stack.  The compiler
// emits typed instructions, so each instruction knows which field of the
// operands it consumes is live.
type operand struct {
	num int64 // integers, value/iterator/modifier handles
	f   float64
	str string
	b   bool
}

// Execute runs the program against the given handler.  The first runtime
// failure aborts execution; the error is also recorded on the handler.
func (p *Program) Execute(h *rt.Handler) error {
	var s = &state{prog: p, h: h}
	s.run()
	return h.Err()
}

// state represents the state of one execution.
type state struct {
	prog  *Program
	h     *rt.Handler
	stack []operand
}

func (s *state) push(op operand) {
	s.stack = append(s.stack, op)
}

func (s *state) pop() operand {
	var op = s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	return op
}

// top peeks at the top of the stack, used by the iterator instructions
// that keep their handle live across the loop body.
func (s *state) top() operand {
	return s.stack[len(s.stack)-1]
}

func (s *state) pushNum(v int64)    { s.push(operand{num: v}) }
func (s *state) pushF(v float64)    { s.push(operand{f: v}) }
func (s *state) pushStr(v string)   { s.push(operand{str: v}) }
func (s *state) pushBool(v bool)    { s.push(operand{b: v}) }
func (s *state) pushHandle(v int64) { s.push(operand{num: v}) }

func (s *state) run() {
	var code = s.prog.Instr
	var h = s.h
	for ip := 0; ip < len(code); ip++ {
		if h.Failed() {
			return
		}
		var in = code[ip]
		switch in.Op {
		case Nop:

		// Output ----------
		case RawText:
			h.WriteString(in.Str)
		case OutputVal:
			rt.Output(h, s.pop().num, in.Num)
		case WriteStr:
			h.WriteString(s.pop().str)

		// Stack pushes ----------
		case PushNum:
			s.pushNum(in.Num)
		case PushDouble:
			s.pushF(in.Float)
		case PushBool:
			s.pushBool(in.Num != 0)
		case PushStr:
			s.pushStr(in.Str)
		case PushEmpty:
			s.pushHandle(0)

		// Variable lookup ----------
		case LookupVar:
			s.pushHandle(rt.Variable(h, in.Str))
		case LookupMember:
			s.pushHandle(rt.Member(h, s.pop().num, in.Str))
		case LookupMemberAt:
			var index = s.pop().num
			s.pushHandle(rt.MemberAt(h, s.pop().num, index))
		case LookupMemberExpr:
			var key = s.pop().str
			s.pushHandle(rt.Member(h, s.pop().num, key))

		// Conversions ----------
		case ToStr:
			s.pushStr(rt.ToString(h, s.pop().num))
		case ToNum:
			s.pushNum(rt.ToNumeric(h, s.pop().num))
		case ToBool:
			s.pushBool(rt.ToBoolean(h, s.pop().num) != 0)
		case ToDouble:
			s.pushF(rt.ToDouble(h, s.pop().num))
		case NumToStr:
			s.pushStr(strconv.FormatInt(s.pop().num, 10))
		case DoubleToStr:
			s.pushStr(strconv.FormatFloat(s.pop().f, 'f', 6, 64))
		case BoolToStr:
			if s.pop().b {
				s.pushStr("true")
			} else {
				s.pushStr("false")
			}
		case StrToNum:
			s.pushStr2num(s.pop().str)
		case NumToBool:
			s.pushBool(s.pop().num != 0)
		case DoubleToNum:
			s.pushNum(int64(s.pop().f))

		// Arithmetic ----------
		case Add:
			var r = s.pop().num
			s.pushNum(s.pop().num + r)
		case Sub:
			var r = s.pop().num
			s.pushNum(s.pop().num - r)
		case Mul:
			var r = s.pop().num
			s.pushNum(s.pop().num * r)
		case Div:
			var r = s.pop().num
			if r == 0 {
				h.Error("division by zero")
				return
			}
			s.pushNum(s.pop().num / r)
		case Mod:
			var r = s.pop().num
			if r == 0 {
				h.Error("modulo by zero")
				return
			}
			s.pushNum(s.pop().num % r)
		case AddF:
			var r = s.pop().f
			s.pushF(s.pop().f + r)
		case SubF:
			var r = s.pop().f
			s.pushF(s.pop().f - r)
		case MulF:
			var r = s.pop().f
			s.pushF(s.pop().f * r)
		case DivF:
			var r = s.pop().f
			if r == 0 {
				h.Error("division by zero")
				return
			}
			s.pushF(s.pop().f / r)

		// Comparison ----------
		case EqNum:
			var r = s.pop().num
			s.pushBool(s.pop().num == r)
		case NeqNum:
			var r = s.pop().num
			s.pushBool(s.pop().num != r)
		case GtNum:
			var r = s.pop().num
			s.pushBool(s.pop().num > r)
		case GteNum:
			var r = s.pop().num
			s.pushBool(s.pop().num >= r)
		case LtNum:
			var r = s.pop().num
			s.pushBool(s.pop().num < r)
		case LteNum:
			var r = s.pop().num
			s.pushBool(s.pop().num <= r)
		case EqF:
			var r = s.pop().f
			s.pushBool(s.pop().f == r)
		case NeqF:
			var r = s.pop().f
			s.pushBool(s.pop().f != r)
		case GtF:
			var r = s.pop().f
			s.pushBool(s.pop().f > r)
		case GteF:
			var r = s.pop().f
			s.pushBool(s.pop().f >= r)
		case LtF:
			var r = s.pop().f
			s.pushBool(s.pop().f < r)
		case LteF:
			var r = s.pop().f
			s.pushBool(s.pop().f <= r)
		case EqStr:
			var r = s.pop().str
			s.pushBool(rt.StrCompare(h, s.pop().str, r) == 0)
		case NeqStr:
			var r = s.pop().str
			s.pushBool(rt.StrCompare(h, s.pop().str, r) != 0)
		case EqBool:
			var r = s.pop().b
			s.pushBool(s.pop().b == r)
		case NeqBool:
			var r = s.pop().b
			s.pushBool(s.pop().b != r)

		// Boolean ----------
		case Not:
			s.pushBool(!s.pop().b)

		// Control flow ----------
		case Jump:
			ip = int(in.Num) - 1
		case JumpIfFalse:
			if !s.pop().b {
				ip = int(in.Num) - 1
			}
		case JumpIfTrue:
			if s.pop().b {
				ip = int(in.Num) - 1
			}

		// Assignment ----------
		case AssignVal:
			rt.Assign(h, in.Str, s.pop().num)
		case AssignNum:
			rt.AssignNumeric(h, in.Str, s.pop().num)
		case AssignStr:
			rt.AssignString(h, in.Str, s.pop().str)
		case AssignBool:
			rt.AssignBoolean(h, in.Str, boolNum(s.pop().b))
		case RemoveVar:
			h.RemoveLocal(in.Str)

		// Iteration ----------
		case IterCreate:
			s.pushHandle(rt.CreateIterator(h, s.pop().num))
		case IterValid:
			s.pushBool(rt.ValidIterator(h, s.top().num) != 0)
		case IterKey:
			s.pushHandle(rt.IteratorKey(h, s.top().num))
		case IterValue:
			s.pushHandle(rt.IteratorValue(h, s.top().num))
		case IterNext:
			rt.IteratorNext(h, s.top().num)
		case IterPop:
			s.pop()

		// Modifiers ----------
		case Modifier:
			s.pushHandle(rt.GetModifier(h, in.Str))
		case NewParams:
			s.pushHandle(rt.CreateParams(h))
		case ParamVal:
			var v = s.pop().num
			rt.ParamsAppendValue(h, s.top().num, v)
		case ParamNum:
			var v = s.pop().num
			rt.ParamsAppendNumeric(h, s.top().num, v)
		case ParamF:
			var v = s.pop().f
			rt.ParamsAppendDouble(h, s.top().num, v)
		case ParamBool:
			var v = s.pop().b
			rt.ParamsAppendBoolean(h, s.top().num, boolNum(v))
		case ParamStr:
			var v = s.pop().str
			rt.ParamsAppendString(h, s.top().num, v)
		case ModifyVar:
			var params = s.pop().num
			var mod = s.pop().num
			s.pushHandle(rt.ModifyVariable(h, mod, s.pop().num, params))

		case Return:
			return
		default:
			h.Error("unknown instruction " + in.Op.String())
			return
		}
	}
}

func (s *state) pushStr2num(str string) {
	// same best-effort parse the string value kind uses
	n, _ := strconv.ParseInt(leadingInt(str), 10, 64)
	s.pushNum(n)
}

// leadingInt extracts the leading optionally-signed decimal integer of s.
func leadingInt(s string) string {
	var i = 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	var start = i
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	for i < len(s) && '0' <= s[i] && s[i] <= '9' {
		i++
	}
	return s[start:i]
}
