package jsbind

import (
	"github.com/buke/jsbind/native"
)

// Undefined returns an undefined value bound to the current scope.
func (s *Scope) Undefined() (Value, error) {
	return s.create("get undefined", func(n native.Env) (native.Handle, native.Status) {
		return n.GetUndefined()
	})
}

// Null returns a null value.
func (s *Scope) Null() (Value, error) {
	return s.create("get null", func(n native.Env) (native.Handle, native.Status) {
		return n.GetNull()
	})
}

// Global returns the global object.
func (s *Scope) Global() (Value, error) {
	return s.create("get global", func(n native.Env) (native.Handle, native.Status) {
		return n.GetGlobal()
	})
}

// Bool returns a bool value with given bool.
func (s *Scope) Bool(b bool) (Value, error) {
	return s.create("get boolean", func(n native.Env) (native.Handle, native.Status) {
		return n.GetBoolean(b)
	})
}

// Number returns a number value with given float64.
func (s *Scope) Number(f float64) (Value, error) {
	return s.create("create number", func(n native.Env) (native.Handle, native.Status) {
		return n.CreateNumber(f)
	})
}

// Int returns a number value with given int64. Values beyond 2^53 lose precision.
func (s *Scope) Int(i int64) (Value, error) {
	return s.Number(float64(i))
}

// String returns a string value with given string.
func (s *Scope) String(str string) (Value, error) {
	return s.create("create string", func(n native.Env) (native.Handle, native.Status) {
		return n.CreateString(str)
	})
}

// StringUTF16 returns a string value from UTF-16 code units.
func (s *Scope) StringUTF16(str []uint16) (Value, error) {
	return s.create("create string", func(n native.Env) (native.Handle, native.Status) {
		return n.CreateStringUTF16(str)
	})
}

// Object returns a new empty object.
func (s *Scope) Object() (Value, error) {
	return s.create("create object", func(n native.Env) (native.Handle, native.Status) {
		return n.CreateObject()
	})
}

// Array returns a new array with the given elements.
func (s *Scope) Array(elements ...Value) (Value, error) {
	arr, err := s.create("create array", func(n native.Env) (native.Handle, native.Status) {
		return n.CreateArray(len(elements))
	})
	if err != nil {
		return Value{}, err
	}
	for i, el := range elements {
		if err := arr.SetIndex(uint32(i), el); err != nil {
			return Value{}, err
		}
	}
	return arr, nil
}

// Symbol returns a new unique symbol.
func (s *Scope) Symbol(description string) (Value, error) {
	return s.create("create symbol", func(n native.Env) (native.Handle, native.Status) {
		return n.CreateSymbol(description)
	})
}

// Error returns a new error object. An empty name means "Error"; names of the built-in
// error constructors such as "TypeError" create instances of that constructor.
func (s *Scope) Error(name, message string) (Value, error) {
	return s.create("create error", func(n native.Env) (native.Handle, native.Status) {
		return n.CreateError(name, message)
	})
}

// External wraps a Go value in an opaque JS value. The Go value stays reachable until the
// root scope closes.
func (s *Scope) External(v interface{}) (Value, error) {
	if s.rc == nil {
		return Value{}, ErrNoContext
	}
	id := s.rc.Store(v)
	return s.create("create external", func(n native.Env) (native.Handle, native.Status) {
		return n.CreateExternal(id)
	})
}

// ArrayBuffer returns an ArrayBuffer holding a copy of data.
func (s *Scope) ArrayBuffer(data []byte) (Value, error) {
	return s.create("create array buffer", func(n native.Env) (native.Handle, native.Status) {
		return n.CreateArrayBuffer(data)
	})
}
