package bytecode

import "strconv"

// Opcode identifies one virtual machine instruction.
type Opcode int32

const (
	Nop Opcode = iota

	// Output
	RawText   // write Str to the output
	OutputVal // pop a value handle, output it; Num is the escape flag
	WriteStr  // pop a string, write it

	// Stack pushes
	PushNum    // push Num
	PushDouble // push Float
	PushBool   // push Num != 0
	PushStr    // push Str
	PushEmpty  // push the empty value handle

	// Variable lookup
	LookupVar        // push the value handle for variable Str
	LookupMember     // pop a parent handle, push its member named Str
	LookupMemberAt   // pop an index, pop a parent handle, push the positional member
	LookupMemberExpr // pop a key string, pop a parent handle, push the named member

	// Conversions
	ToStr       // pop a value handle, push its string form
	ToNum       // pop a value handle, push its integer form
	ToBool      // pop a value handle, push its boolean form
	ToDouble    // pop a value handle, push its float form
	NumToStr    // pop an integer, push its decimal form
	DoubleToStr // pop a float, push its fixed-point form
	BoolToStr   // pop a boolean, push "true" or "false"
	StrToNum    // pop a string, push its integer prefix
	NumToBool   // pop an integer, push it compared against zero
	DoubleToNum // pop a float, push it truncated to an integer

	// Arithmetic; pop two, push one
	Add
	Sub
	Mul
	Div // zero divisor raises a runtime error
	Mod // zero divisor raises a runtime error
	AddF
	SubF
	MulF
	DivF

	// Comparison; pop two, push a boolean
	EqNum
	NeqNum
	GtNum
	GteNum
	LtNum
	LteNum
	EqF
	NeqF
	GtF
	GteF
	LtF
	LteF
	EqStr
	NeqStr
	EqBool
	NeqBool

	// Boolean
	Not // pop a boolean, push its negation

	// Control flow
	Jump        // continue at Num
	JumpIfFalse // pop a boolean; continue at Num when false
	JumpIfTrue  // pop a boolean; continue at Num when true

	// Assignment; Str is the variable name
	AssignVal  // pop a value handle (handle 0 removes the binding)
	AssignNum  // pop an integer
	AssignStr  // pop a string
	AssignBool // pop a boolean
	RemoveVar  // remove the local binding

	// Iteration.  The iterator handle stays on the stack for the duration
	// of the loop; these instructions peek at it.
	IterCreate // pop a value handle, push an iterator handle
	IterValid  // push whether the iterator has a current member
	IterKey    // push the current member's key handle
	IterValue  // push the current member handle
	IterNext   // advance the iterator
	IterPop    // drop the iterator handle

	// Modifiers
	Modifier  // push the modifier handle for name Str; unknown names fail the render
	NewParams // push a fresh parameter list handle
	ParamVal  // pop a value handle, append it to the parameter list on top
	ParamNum  // pop an integer, append it to the parameter list on top
	ParamF    // pop a float, append it to the parameter list on top
	ParamBool // pop a boolean, append it to the parameter list on top
	ParamStr  // pop a string, append it to the parameter list on top
	ModifyVar // pop params, modifier and value handles, push the modified value

	Return

	endOpcode
)

var opcodeNames = [...]string{
	Nop:              "Nop",
	RawText:          "RawText",
	OutputVal:        "OutputVal",
	WriteStr:         "WriteStr",
	PushNum:          "PushNum",
	PushDouble:       "PushDouble",
	PushBool:         "PushBool",
	PushStr:          "PushStr",
	PushEmpty:        "PushEmpty",
	LookupVar:        "LookupVar",
	LookupMember:     "LookupMember",
	LookupMemberAt:   "LookupMemberAt",
	LookupMemberExpr: "LookupMemberExpr",
	ToStr:            "ToStr",
	ToNum:            "ToNum",
	ToBool:           "ToBool",
	ToDouble:         "ToDouble",
	NumToStr:         "NumToStr",
	DoubleToStr:      "DoubleToStr",
	BoolToStr:        "BoolToStr",
	StrToNum:         "StrToNum",
	NumToBool:        "NumToBool",
	DoubleToNum:      "DoubleToNum",
	Add:              "Add",
	Sub:              "Sub",
	Mul:              "Mul",
	Div:              "Div",
	Mod:              "Mod",
	AddF:             "AddF",
	SubF:             "SubF",
	MulF:             "MulF",
	DivF:             "DivF",
	EqNum:            "EqNum",
	NeqNum:           "NeqNum",
	GtNum:            "GtNum",
	GteNum:           "GteNum",
	LtNum:            "LtNum",
	LteNum:           "LteNum",
	EqF:              "EqF",
	NeqF:             "NeqF",
	GtF:              "GtF",
	GteF:             "GteF",
	LtF:              "LtF",
	LteF:             "LteF",
	EqStr:            "EqStr",
	NeqStr:           "NeqStr",
	EqBool:           "EqBool",
	NeqBool:          "NeqBool",
	Not:              "Not",
	Jump:             "Jump",
	JumpIfFalse:      "JumpIfFalse",
	JumpIfTrue:       "JumpIfTrue",
	AssignVal:        "AssignVal",
	AssignNum:        "AssignNum",
	AssignStr:        "AssignStr",
	AssignBool:       "AssignBool",
	RemoveVar:        "RemoveVar",
	IterCreate:       "IterCreate",
	IterValid:        "IterValid",
	IterKey:          "IterKey",
	IterValue:        "IterValue",
	IterNext:         "IterNext",
	IterPop:          "IterPop",
	Modifier:         "Modifier",
	NewParams:        "NewParams",
	ModifyVar:        "ModifyVar",
	ParamVal:         "ParamVal",
	ParamNum:         "ParamNum",
	ParamF:           "ParamF",
	ParamBool:        "ParamBool",
	ParamStr:         "ParamStr",
	Return:           "Return",
}

func (op Opcode) String() string {
	if 0 <= op && op < endOpcode && opcodeNames[op] != "" {
		return opcodeNames[op]
	}
	return "Opcode(" + strconv.Itoa(int(op)) + ")"
}
