// Package data holds the value model of the template engine: the Value
// capability set, the concrete value kinds, and the Data object that binds
// variable names and modifiers for a render.
package data

import (
	"strconv"
)

// Value is a polymorphic template variable value.  Every value answers the
// full conversion set; a value whose MemberCount is zero need not provide
// an iterator (Iterator may return nil).
type Value interface {
	// String formats this value for output in a template.
	String() string

	// Numeric converts this value to a 64-bit signed integer.
	Numeric() int64

	// Double converts this value to a 64-bit float.
	Double() float64

	// Boolean converts this value to a boolean.
	Boolean() bool

	// Size is the length of the string form.
	Size() int

	// MemberCount is the number of members, zero for non-iterable values.
	MemberCount() int

	// Member returns the member stored under the given name, or Empty.
	Member(name string) Value

	// MemberAt returns the member at the given position, or Empty.
	MemberAt(i int) Value

	// KeyAt returns the key at the given position as a value, or Empty.
	KeyAt(i int) Value

	// Iterator returns a new iterator over the members, front to back.
	Iterator() Iterator
}

// Iterator walks the members of a value.  It produces a finite sequence
// and is not restartable.
type Iterator interface {
	Valid() bool
	Next()
	Key() Value
	Value() Value
}

// Shared singletons.  They carry no per-render state and are safe to share
// between concurrent renders.
var (
	Empty Value = Null{}
	True  Value = Bool(true)
	False Value = Bool(false)
)

// Null ----------

// Null is the empty value.  Missing variables and members resolve to it.
type Null struct{}

func (Null) String() string  { return "" }
func (Null) Numeric() int64  { return 0 }
func (Null) Double() float64 { return 0 }
func (Null) Boolean() bool   { return false }
func (Null) Size() int       { return 0 }

func (Null) MemberCount() int    { return 0 }
func (Null) Member(string) Value { return Empty }
func (Null) MemberAt(int) Value  { return Empty }
func (Null) KeyAt(int) Value     { return Empty }
func (Null) Iterator() Iterator  { return nil }

// Bool ----------

// Bool is a boolean value.  Use the True and False singletons.
type Bool bool

func (v Bool) String() string {
	if v {
		return "true"
	}
	return "false"
}

func (v Bool) Numeric() int64 {
	if v {
		return 1
	}
	return 0
}

func (v Bool) Double() float64 { return float64(v.Numeric()) }
func (v Bool) Boolean() bool   { return bool(v) }
func (v Bool) Size() int       { return len(v.String()) }

func (Bool) MemberCount() int    { return 0 }
func (Bool) Member(string) Value { return Empty }
func (Bool) MemberAt(int) Value  { return Empty }
func (Bool) KeyAt(int) Value     { return Empty }
func (Bool) Iterator() Iterator  { return nil }

// NewBool returns the boolean singleton for b.
func NewBool(b bool) Value {
	if b {
		return True
	}
	return False
}

// Numeric ----------

// Numeric is a 64-bit signed integer value.
type Numeric int64

func (v Numeric) String() string  { return strconv.FormatInt(int64(v), 10) }
func (v Numeric) Numeric() int64  { return int64(v) }
func (v Numeric) Double() float64 { return float64(v) }
func (v Numeric) Boolean() bool   { return v != 0 }
func (v Numeric) Size() int       { return len(v.String()) }

func (Numeric) MemberCount() int    { return 0 }
func (Numeric) Member(string) Value { return Empty }
func (Numeric) MemberAt(int) Value  { return Empty }
func (Numeric) KeyAt(int) Value     { return Empty }
func (Numeric) Iterator() Iterator  { return nil }

// Double ----------

// Double is an IEEE-754 64-bit float value.  Its string form is fixed
// point with six fractional digits.
type Double float64

func (v Double) String() string  { return strconv.FormatFloat(float64(v), 'f', 6, 64) }
func (v Double) Numeric() int64  { return int64(v) }
func (v Double) Double() float64 { return float64(v) }
func (v Double) Boolean() bool   { return v != 0 }
func (v Double) Size() int       { return len(v.String()) }

func (Double) MemberCount() int    { return 0 }
func (Double) Member(string) Value { return Empty }
func (Double) MemberAt(int) Value  { return Empty }
func (Double) KeyAt(int) Value     { return Empty }
func (Double) Iterator() Iterator  { return nil }

// String ----------

// String is a byte string value.
type String string

func (v String) String() string  { return string(v) }
func (v String) Numeric() int64  { return parseNumericPrefix(string(v)) }
func (v String) Double() float64 { return parseDoublePrefix(string(v)) }
func (v String) Boolean() bool   { return len(v) != 0 }
func (v String) Size() int       { return len(v) }

func (String) MemberCount() int    { return 0 }
func (String) Member(string) Value { return Empty }
func (String) MemberAt(int) Value  { return Empty }
func (String) KeyAt(int) Value     { return Empty }
func (String) Iterator() Iterator  { return nil }

// parseNumericPrefix is a best-effort base-10 parse of the leading integer
// in s, zero when there is none.  Matches the C strtoll behavior the
// generated code relies on.
func parseNumericPrefix(s string) int64 {
	var i = 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	var start = i
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	var digits = i
	for i < len(s) && '0' <= s[i] && s[i] <= '9' {
		i++
	}
	if i == digits {
		return 0
	}
	n, err := strconv.ParseInt(s[start:i], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// parseDoublePrefix is the floating point analogue of parseNumericPrefix.
func parseDoublePrefix(s string) float64 {
	var i = 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	var start = i
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	var seenDigit, seenDot, seenExp bool
	for ; i < len(s); i++ {
		var c = s[i]
		switch {
		case '0' <= c && c <= '9':
			seenDigit = true
		case c == '.' && !seenDot && !seenExp:
			seenDot = true
		case (c == 'e' || c == 'E') && seenDigit && !seenExp:
			seenExp = true
			if i+1 < len(s) && (s[i+1] == '+' || s[i+1] == '-') {
				i++
			}
		default:
			goto done
		}
	}
done:
	if !seenDigit {
		return 0
	}
	for i > start {
		f, err := strconv.ParseFloat(s[start:i], 64)
		if err == nil {
			return f
		}
		i--
	}
	return 0
}
