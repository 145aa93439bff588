package jsbind

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/pkg/errors"

	"github.com/buke/jsbind/native"
)

// Marshaler is the interface implemented by types that can marshal themselves into a JavaScript value.
type Marshaler interface {
	MarshalJS(s *Scope) (Value, error)
}

// Marshal returns the JavaScript value encoding of v.
//
// Marshal uses the following type mappings:
//   - nil, nil pointers -> null
//   - Value -> itself
//   - HostFunc -> function
//   - error -> Error
//   - bool -> boolean
//   - integers and floats -> number
//   - string -> string
//   - []byte -> ArrayBuffer
//   - slice/array -> Array
//   - map -> Object, keys formatted with %v
//   - struct -> Object of exported fields, named by their "js" or "json" tag
//
// Types implementing Marshaler are marshaled using their MarshalJS method.
func (s *Scope) Marshal(v interface{}) (Value, error) {
	switch x := v.(type) {
	case nil:
		return s.Null()
	case Value:
		return x, nil
	case HostFunc:
		return s.Function("", x)
	case func(*CallbackArgs) (Value, error):
		return s.Function("", x)
	case Marshaler:
		return x.MarshalJS(s)
	case error:
		return s.Error("Error", x.Error())
	}
	return s.marshal(reflect.ValueOf(v))
}

func (s *Scope) marshal(rv reflect.Value) (Value, error) {
	if rv.Kind() == reflect.Interface && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.CanInterface() {
		if m, ok := rv.Interface().(Marshaler); ok {
			return m.MarshalJS(s)
		}
	}

	switch rv.Kind() {
	case reflect.Invalid:
		return s.Null()
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return s.Null()
		}
		return s.marshal(rv.Elem())
	case reflect.Bool:
		return s.Bool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return s.Int(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return s.Number(float64(rv.Uint()))
	case reflect.Float32, reflect.Float64:
		return s.Number(rv.Float())
	case reflect.String:
		return s.String(rv.String())
	case reflect.Slice:
		if rv.IsNil() {
			return s.Null()
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return s.ArrayBuffer(rv.Bytes())
		}
		return s.marshalList(rv)
	case reflect.Array:
		return s.marshalList(rv)
	case reflect.Map:
		if rv.IsNil() {
			return s.Null()
		}
		return s.marshalMap(rv)
	case reflect.Struct:
		return s.marshalStruct(rv)
	}
	return Value{}, errors.Errorf("jsbind: cannot marshal %v", rv.Type())
}

func (s *Scope) marshalList(rv reflect.Value) (Value, error) {
	elems := make([]Value, rv.Len())
	for i := range elems {
		el, err := s.marshal(rv.Index(i))
		if err != nil {
			return Value{}, err
		}
		elems[i] = el
	}
	return s.Array(elems...)
}

func (s *Scope) marshalMap(rv reflect.Value) (Value, error) {
	obj, err := s.Object()
	if err != nil {
		return Value{}, err
	}
	iter := rv.MapRange()
	for iter.Next() {
		val, err := s.marshal(iter.Value())
		if err != nil {
			return Value{}, err
		}
		if err := obj.Set(Key(fmt.Sprintf("%v", iter.Key().Interface())), val); err != nil {
			return Value{}, err
		}
	}
	return obj, nil
}

func (s *Scope) marshalStruct(rv reflect.Value) (Value, error) {
	obj, err := s.Object()
	if err != nil {
		return Value{}, err
	}
	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name, skip := fieldName(field)
		if skip {
			continue
		}
		val, err := s.marshal(rv.Field(i))
		if err != nil {
			return Value{}, errors.Wrapf(err, "field %s", field.Name)
		}
		if err := obj.Set(Key(name), val); err != nil {
			return Value{}, err
		}
	}
	return obj, nil
}

// fieldName returns the JS property name of a struct field from its "js" or "json" tag.
func fieldName(field reflect.StructField) (string, bool) {
	for _, key := range []string{"js", "json"} {
		tag := field.Tag.Get(key)
		if tag == "" {
			continue
		}
		if tag == "-" {
			return "", true
		}
		if idx := strings.Index(tag, ","); idx != -1 {
			tag = tag[:idx]
		}
		if tag != "" {
			return tag, false
		}
	}
	return field.Name, false
}

// Export converts v into plain Go data:
//   - undefined and null -> nil
//   - boolean -> bool
//   - number -> int64 when integral and exactly representable, float64 otherwise
//   - string -> string
//   - Array -> []interface{}
//   - ArrayBuffer -> []byte
//   - external -> the wrapped Go value
//   - function, symbol -> the Value itself
//   - other objects -> map[string]interface{} of own enumerable properties
func (v Value) Export() (interface{}, error) {
	return v.export(0)
}

const maxExportDepth = 64

func (v Value) export(depth int) (interface{}, error) {
	if depth > maxExportDepth {
		return nil, errors.New("jsbind: value nested too deeply to export")
	}
	t, err := v.TypeOf()
	if err != nil {
		return nil, err
	}
	switch t {
	case native.Undefined, native.Null:
		return nil, nil
	case native.Boolean:
		return v.ToBool()
	case native.Number:
		f, err := v.ToFloat64()
		if err != nil {
			return nil, err
		}
		if f == math.Trunc(f) && math.Abs(f) <= 1<<53 {
			return int64(f), nil
		}
		return f, nil
	case native.String:
		return v.ToString()
	case native.External:
		return v.External()
	case native.Function, native.Symbol, native.BigInt:
		return v, nil
	}

	if v.IsArray() {
		elems, err := Array{arrayValue: v}.Values()
		if err != nil {
			return nil, err
		}
		out := make([]interface{}, len(elems))
		for i, el := range elems {
			if out[i], err = el.export(depth + 1); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	if b, err := v.Bytes(); err == nil {
		return b, nil
	}
	keys, err := v.Keys()
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		prop, err := v.Get(Key(k))
		if err != nil {
			return nil, err
		}
		if out[k], err = prop.export(depth + 1); err != nil {
			return nil, err
		}
	}
	return out, nil
}
