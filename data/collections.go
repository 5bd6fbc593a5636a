package data

import "strconv"

// List ----------

// List is an ordered sequence of values.  It iterates front to back and
// has positional members only.
type List []Value

func (v List) String() string  { return "" }
func (v List) Numeric() int64  { return 0 }
func (v List) Double() float64 { return 0 }
func (v List) Boolean() bool   { return len(v) != 0 }
func (v List) Size() int       { return 0 }

func (v List) MemberCount() int { return len(v) }

// Member treats a numeric name as a position, so $list[$i] resolves even
// though the generated code looks the evaluated index up as a string key.
func (v List) Member(name string) Value {
	if i, err := strconv.Atoi(name); err == nil {
		return v.MemberAt(i)
	}
	return Empty
}

func (v List) MemberAt(i int) Value {
	if !(0 <= i && i < len(v)) {
		return Empty
	}
	return v[i]
}

func (v List) KeyAt(i int) Value { return Empty }

func (v List) Iterator() Iterator { return &listIterator{list: v} }

type listIterator struct {
	list List
	i    int
}

func (it *listIterator) Valid() bool  { return it.i < len(it.list) }
func (it *listIterator) Next()        { it.i++ }
func (it *listIterator) Key() Value   { return Empty }
func (it *listIterator) Value() Value { return it.list[it.i] }

// Map ----------

// Map is a stable, insertion-ordered association from string keys to
// values.  Members are reachable both by name and by position; KeyAt
// returns the i-th key as a string value.
type Map struct {
	keys  []string
	items map[string]Value
}

// NewMap returns an empty map.
func NewMap() *Map {
	return &Map{items: make(map[string]Value)}
}

// Set binds key to value.  A key set twice keeps its original position;
// assignment is last-wins.  It returns the map for chaining.
func (v *Map) Set(key string, value interface{}) *Map {
	if _, ok := v.items[key]; !ok {
		v.keys = append(v.keys, key)
	}
	v.items[key] = New(value)
	return v
}

// Keys returns the keys in insertion order.
func (v *Map) Keys() []string { return v.keys }

func (v *Map) String() string  { return "" }
func (v *Map) Numeric() int64  { return 0 }
func (v *Map) Double() float64 { return 0 }
func (v *Map) Boolean() bool   { return len(v.keys) != 0 }
func (v *Map) Size() int       { return 0 }

func (v *Map) MemberCount() int { return len(v.keys) }

func (v *Map) Member(name string) Value {
	if item, ok := v.items[name]; ok {
		return item
	}
	return Empty
}

func (v *Map) MemberAt(i int) Value {
	if !(0 <= i && i < len(v.keys)) {
		return Empty
	}
	return v.items[v.keys[i]]
}

func (v *Map) KeyAt(i int) Value {
	if !(0 <= i && i < len(v.keys)) {
		return Empty
	}
	return String(v.keys[i])
}

func (v *Map) Iterator() Iterator {
	return &mapIterator{m: v, keys: v.keys}
}

type mapIterator struct {
	m    *Map
	keys []string
	i    int
}

func (it *mapIterator) Valid() bool  { return it.i < len(it.keys) }
func (it *mapIterator) Next()        { it.i++ }
func (it *mapIterator) Key() Value   { return String(it.keys[it.i]) }
func (it *mapIterator) Value() Value { return it.m.items[it.keys[it.i]] }
