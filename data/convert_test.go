package data

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestNewScalars(t *testing.T) {
	var tests = []struct {
		input    interface{}
		expected Value
	}{
		{nil, Empty},
		{true, True},
		{false, False},
		{42, Numeric(42)},
		{int8(1), Numeric(1)},
		{uint16(7), Numeric(7)},
		{int64(1) << 40, Numeric(1 << 40)},
		{3.5, Double(3.5)},
		{float32(0.5), Double(0.5)},
		{"hello", String("hello")},
	}
	for _, test := range tests {
		if got := New(test.input); got != test.expected {
			t.Errorf("New(%v): got %#v, expected %#v", test.input, got, test.expected)
		}
	}
}

func TestNewPassthrough(t *testing.T) {
	var v Value = String("x")
	if New(v) != v {
		t.Error("existing values pass through")
	}
}

func TestNewSlice(t *testing.T) {
	var got = New([]interface{}{0, "a", true})
	list, ok := got.(List)
	if !ok {
		t.Fatalf("got %T", got)
	}
	if list.MemberCount() != 3 ||
		list.MemberAt(0) != Numeric(0) ||
		list.MemberAt(1) != String("a") ||
		list.MemberAt(2) != True {
		t.Errorf("got %#v", list)
	}

	if New([]int(nil)) != Empty {
		t.Error("nil slices convert to Empty")
	}
}

func TestNewMapSortsKeys(t *testing.T) {
	var got = New(map[string]interface{}{"b": 2, "a": 1, "c": 3})
	m, ok := got.(*Map)
	if !ok {
		t.Fatalf("got %T", got)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, m.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
	if m.Member("b") != Numeric(2) {
		t.Error("member values")
	}
}

func TestNewStruct(t *testing.T) {
	type Person struct {
		FirstName string
		Age       int
	}
	var got = New(Person{"Rob", 40})
	m, ok := got.(*Map)
	if !ok {
		t.Fatalf("got %T", got)
	}
	if diff := cmp.Diff([]string{"firstName", "age"}, m.Keys()); diff != "" {
		t.Errorf("field order and lowerCamel naming (-want +got):\n%s", diff)
	}
	if m.Member("firstName") != String("Rob") || m.Member("age") != Numeric(40) {
		t.Errorf("got %v / %v", m.Member("firstName"), m.Member("age"))
	}
}

func TestNewPointerAndInterface(t *testing.T) {
	var n = 7
	if New(&n) != Numeric(7) {
		t.Error("pointers are dereferenced")
	}
	var empty *int
	if New(empty) != Empty {
		t.Error("nil pointers convert to Empty")
	}
}

func TestNewTime(t *testing.T) {
	var when = time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC)
	var got = New(when)
	d, ok := got.(*Date)
	if !ok {
		t.Fatalf("got %T", got)
	}
	if d.Numeric() != 86400 {
		t.Errorf("timestamp %d", d.Numeric())
	}
}
