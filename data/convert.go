package data

import (
	"fmt"
	"reflect"
	"sort"
	"time"
	"unicode"
	"unicode/utf8"
)

var timeType = reflect.TypeOf(time.Time{})

// New converts the given Go value into a template value, using
// DefaultStructOptions for structs.
func New(value interface{}) Value {
	return NewWith(DefaultStructOptions, value)
}

// NewWith converts the given Go value into a template value, using the
// provided StructOptions for any structs encountered.  Go maps have no
// insertion order, so their keys are sorted to keep iteration stable.
func NewWith(convert StructOptions, value interface{}) Value {
	// quick return if we're passed an existing Value
	if val, ok := value.(Value); ok {
		return val
	}

	if value == nil {
		return Empty
	}

	// drill through pointers and interfaces to the underlying type
	var v = reflect.ValueOf(value)
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if !v.IsValid() {
		return Empty
	}

	if v.Type() == timeType {
		var t = v.Interface().(time.Time)
		var d, _ = NewDate(convert.TimeFormat, t.Unix())
		return d
	}

	switch v.Kind() {
	case reflect.Bool:
		return NewBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Numeric(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Numeric(v.Uint())
	case reflect.Float32, reflect.Float64:
		return Double(v.Float())
	case reflect.String:
		return String(v.String())
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return Empty
		}
		var list = make(List, v.Len())
		for i := 0; i < v.Len(); i++ {
			list[i] = NewWith(convert, v.Index(i).Interface())
		}
		return list
	case reflect.Map:
		var keys = make([]string, 0, v.Len())
		for _, key := range v.MapKeys() {
			if key.Kind() != reflect.String {
				panic("map keys must be strings")
			}
			keys = append(keys, key.String())
		}
		sort.Strings(keys)
		var m = NewMap()
		for _, key := range keys {
			m.Set(key, v.MapIndex(reflect.ValueOf(key)).Interface())
		}
		return m
	case reflect.Struct:
		return convert.Data(v.Interface())
	default:
		panic(fmt.Errorf("unexpected data type: %T (%v)", value, value))
	}
}

// DefaultStructOptions are used by New.
var DefaultStructOptions = StructOptions{
	LowerCamel: true,
	TimeFormat: DefaultDateFormat,
}

// StructOptions provides flexibility in conversion of structs to the
// engine's map values.
type StructOptions struct {
	LowerCamel bool   // if true, convert field names to lowerCamel.
	TimeFormat string // layout for time.Time values.
}

// Data converts the given struct into an ordered map value, field order
// preserved.
func (c StructOptions) Data(obj interface{}) *Map {
	var m = NewMap()
	var v = reflect.ValueOf(obj)
	var valType = v.Type()
	for i := 0; i < valType.NumField(); i++ {
		if !v.Field(i).CanInterface() {
			continue
		}
		var key = valType.Field(i).Name
		if c.LowerCamel {
			var firstRune, size = utf8.DecodeRuneInString(key)
			key = string(unicode.ToLower(firstRune)) + key[size:]
		}
		m.Set(key, NewWith(c, v.Field(i).Interface()))
	}
	return m
}
