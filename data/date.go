package data

import (
	"errors"
	"time"

	"github.com/araddon/dateparse"
)

// DefaultDateFormat is the layout used when a caller supplies a time
// without choosing one.
const DefaultDateFormat = time.RFC1123

// Date is a formatted timestamp value.  It stores a Go time layout and a
// fixed epoch seconds value; a zero epoch means "now at render time".
// Its boolean form is false.
type Date struct {
	format string
	when   int64
}

// NewDate creates a date value.  An empty format is a construction error.
func NewDate(format string, epoch int64) (*Date, error) {
	if format == "" {
		return nil, errors.New("date value requires a format")
	}
	return &Date{format: format, when: epoch}, nil
}

// ParseDate creates a date value from a free-form date string.
func ParseDate(format, s string) (*Date, error) {
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return nil, err
	}
	return NewDate(format, t.Unix())
}

func (v *Date) resolve() time.Time {
	if v.when == 0 {
		return time.Now()
	}
	return time.Unix(v.when, 0).UTC()
}

func (v *Date) String() string  { return v.resolve().Format(v.format) }
func (v *Date) Numeric() int64  { return v.resolve().Unix() }
func (v *Date) Double() float64 { return float64(v.Numeric()) }
func (v *Date) Boolean() bool   { return false }
func (v *Date) Size() int       { return len(v.String()) }

func (*Date) MemberCount() int    { return 0 }
func (*Date) Member(string) Value { return Empty }
func (*Date) MemberAt(int) Value  { return Empty }
func (*Date) KeyAt(int) Value     { return Empty }
func (*Date) Iterator() Iterator  { return nil }
