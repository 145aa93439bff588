package jsbind

import (
	"math"

	"github.com/buke/jsbind/native"
)

// Value is a JavaScript value bound to the scope that was current when it was created.
//
// The zero Value is the undefined sentinel: it is bound to no scope, reads as undefined from
// any goroutine, and resolves to the engine's undefined in whatever scope is current when
// it is passed to an operation.
type Value struct {
	scope  *Scope
	handle native.Handle
}

// Undefined is the unbound undefined sentinel.
var Undefined = Value{}

// IsBound reports whether v was minted in a scope, as opposed to being the sentinel.
func (v Value) IsBound() bool {
	return v.scope != nil
}

// Scope returns the scope v is bound to, or nil for the sentinel.
func (v Value) Scope() *Scope {
	return v.scope
}

// Handle returns the engine handle of v. The sentinel resolves to undefined in the current
// scope; a bound value is first checked for a closed scope and then for the owner goroutine.
func (v Value) Handle() (native.Handle, error) {
	if v.scope == nil {
		cur, err := CurrentScope()
		if err != nil {
			return 0, err
		}
		if cur.env == nil {
			return 0, ErrNoContext
		}
		h, st := cur.env.native.GetUndefined()
		if st != native.OK {
			return 0, &NativeError{Op: "get undefined", Status: st}
		}
		return h, nil
	}
	if err := v.scope.CheckDisposed(); err != nil {
		return 0, err
	}
	if err := v.scope.CheckThreadAccess(); err != nil {
		return 0, err
	}
	return v.handle, nil
}

// operand validates v and returns the scope results are bound to together with v's handle.
func (v Value) operand() (*Scope, native.Handle, error) {
	h, err := v.Handle()
	if err != nil {
		return nil, 0, err
	}
	cur, err := CurrentScope()
	if err != nil {
		return nil, 0, err
	}
	if cur.env == nil {
		return nil, 0, ErrNoContext
	}
	if v.scope != nil && v.scope.env != cur.env {
		return nil, 0, ErrEnvironmentMismatch
	}
	if cur.env.closed {
		return nil, 0, ErrEnvironmentClosed
	}
	return cur, h, nil
}

func handles(cur *Scope, vals []Value) ([]native.Handle, error) {
	hs := make([]native.Handle, len(vals))
	for i, a := range vals {
		if a.scope != nil && a.scope.env != cur.env {
			return nil, ErrEnvironmentMismatch
		}
		h, err := a.Handle()
		if err != nil {
			return nil, err
		}
		hs[i] = h
	}
	return hs, nil
}

// TypeOf returns the JS type of v. The sentinel is undefined without consulting any scope.
func (v Value) TypeOf() (native.ValueType, error) {
	if v.scope == nil {
		return native.Undefined, nil
	}
	cur, h, err := v.operand()
	if err != nil {
		return native.Undefined, err
	}
	t, st := cur.env.native.TypeOf(h)
	if st != native.OK {
		return native.Undefined, cur.env.statusError("typeof", st)
	}
	return t, nil
}

func (v Value) is(t native.ValueType) bool {
	got, err := v.TypeOf()
	return err == nil && got == t
}

// IsUndefined returns true if the value is undefined.
func (v Value) IsUndefined() bool { return v.is(native.Undefined) }

// IsNull returns true if the value is null.
func (v Value) IsNull() bool { return v.is(native.Null) }

// IsBool returns true if the value is a boolean.
func (v Value) IsBool() bool { return v.is(native.Boolean) }

// IsNumber returns true if the value is a number.
func (v Value) IsNumber() bool { return v.is(native.Number) }

// IsString returns true if the value is a string.
func (v Value) IsString() bool { return v.is(native.String) }

// IsSymbol returns true if the value is a symbol.
func (v Value) IsSymbol() bool { return v.is(native.Symbol) }

// IsBigInt returns true if the value is a BigInt.
func (v Value) IsBigInt() bool { return v.is(native.BigInt) }

// IsFunction returns true if the value is callable.
func (v Value) IsFunction() bool { return v.is(native.Function) }

// IsExternal returns true if the value wraps a Go value.
func (v Value) IsExternal() bool { return v.is(native.External) }

// IsObject returns true if the value is an object, functions included.
func (v Value) IsObject() bool {
	t, err := v.TypeOf()
	return err == nil && (t == native.Object || t == native.Function || t == native.External)
}

func (v Value) predicate(f func(n native.Env, h native.Handle) (bool, native.Status)) bool {
	if v.scope == nil {
		return false
	}
	cur, h, err := v.operand()
	if err != nil {
		return false
	}
	ok, st := f(cur.env.native, h)
	return st == native.OK && ok
}

// IsArray returns true if the value is an array.
func (v Value) IsArray() bool {
	return v.predicate(native.Env.IsArray)
}

// IsError returns true if the value is an Error instance.
func (v Value) IsError() bool {
	return v.predicate(native.Env.IsError)
}

// IsPromise returns true if the value is a promise.
func (v Value) IsPromise() bool {
	return v.predicate(native.Env.IsPromise)
}

// ToBool returns the value of a boolean.
func (v Value) ToBool() (bool, error) {
	cur, h, err := v.operand()
	if err != nil {
		return false, err
	}
	b, st := cur.env.native.GetValueBool(h)
	if st != native.OK {
		return false, cur.env.statusError("get bool", st)
	}
	return b, nil
}

// ToFloat64 returns the value of a number.
func (v Value) ToFloat64() (float64, error) {
	cur, h, err := v.operand()
	if err != nil {
		return 0, err
	}
	f, st := cur.env.native.GetValueDouble(h)
	if st != native.OK {
		return 0, cur.env.statusError("get double", st)
	}
	return f, nil
}

// ToInt64 returns the value of a number truncated toward zero. NaN becomes 0 and
// out-of-range values saturate.
func (v Value) ToInt64() (int64, error) {
	f, err := v.ToFloat64()
	if err != nil {
		return 0, err
	}
	switch {
	case math.IsNaN(f):
		return 0, nil
	case f >= math.MaxInt64:
		return math.MaxInt64, nil
	case f <= math.MinInt64:
		return math.MinInt64, nil
	}
	return int64(f), nil
}

// ToString converts the value to a string the way String(v) does in JS.
func (v Value) ToString() (string, error) {
	cur, h, err := v.operand()
	if err != nil {
		return "", err
	}
	n := cur.env.native
	sh, st := n.CoerceToString(h)
	if st != native.OK {
		return "", cur.env.statusError("coerce to string", st)
	}
	s, st := n.GetValueString(sh)
	if st != native.OK {
		return "", cur.env.statusError("get string", st)
	}
	return s, nil
}

// ToStringUTF16 converts the value to a string and returns its UTF-16 code units.
func (v Value) ToStringUTF16() ([]uint16, error) {
	cur, h, err := v.operand()
	if err != nil {
		return nil, err
	}
	n := cur.env.native
	sh, st := n.CoerceToString(h)
	if st != native.OK {
		return nil, cur.env.statusError("coerce to string", st)
	}
	u, st := n.GetValueStringUTF16(sh)
	if st != native.OK {
		return nil, cur.env.statusError("get string", st)
	}
	return u, nil
}

// String returns the string representation of the value.
// This method implements the fmt.Stringer interface.
func (v Value) String() string {
	if v.scope == nil {
		return "undefined"
	}
	s, err := v.ToString()
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return s
}

// External returns the Go value wrapped by Scope.External.
func (v Value) External() (interface{}, error) {
	cur, h, err := v.operand()
	if err != nil {
		return nil, err
	}
	id, st := cur.env.native.GetValueExternal(h)
	if st != native.OK {
		return nil, cur.env.statusError("get external", st)
	}
	if cur.rc == nil {
		return nil, ErrNoContext
	}
	ext, ok := cur.rc.Load(id)
	if !ok {
		return nil, ErrExternalReleased
	}
	return ext, nil
}

// Bytes returns a copy of an ArrayBuffer's contents.
func (v Value) Bytes() ([]byte, error) {
	cur, h, err := v.operand()
	if err != nil {
		return nil, err
	}
	b, st := cur.env.native.GetArrayBufferBytes(h)
	if st != native.OK {
		return nil, cur.env.statusError("get array buffer", st)
	}
	return b, nil
}

// Len returns the length of an array.
func (v Value) Len() (int, error) {
	cur, h, err := v.operand()
	if err != nil {
		return 0, err
	}
	n, st := cur.env.native.GetArrayLength(h)
	if st != native.OK {
		return 0, cur.env.statusError("get array length", st)
	}
	return int(n), nil
}

// Keys returns the own enumerable string keys of an object.
func (v Value) Keys() ([]string, error) {
	cur, h, err := v.operand()
	if err != nil {
		return nil, err
	}
	keys, st := cur.env.native.GetPropertyNames(h)
	if st != native.OK {
		return nil, cur.env.statusError("get property names", st)
	}
	return keys, nil
}

// StrictEquals compares with ===.
func (v Value) StrictEquals(other Value) (bool, error) {
	cur, h, err := v.operand()
	if err != nil {
		return false, err
	}
	oh, err := handles(cur, []Value{other})
	if err != nil {
		return false, err
	}
	eq, st := cur.env.native.StrictEquals(h, oh[0])
	if st != native.OK {
		return false, cur.env.statusError("strict equals", st)
	}
	return eq, nil
}

// Get returns the property key of an object.
func (v Value) Get(key PropertyKey) (Value, error) {
	cur, h, err := v.operand()
	if err != nil {
		return Value{}, err
	}
	n := cur.env.native
	var (
		res native.Handle
		st  native.Status
	)
	switch key.kind {
	case keyName:
		res, st = n.GetNamedProperty(h, key.name)
	case keyIndex:
		res, st = n.GetElement(h, key.index)
	default:
		kh, err := key.handle(cur)
		if err != nil {
			return Value{}, err
		}
		res, st = n.GetProperty(h, kh)
	}
	if st != native.OK {
		return Value{}, cur.env.statusError("get property", st)
	}
	return Value{scope: cur, handle: res}, nil
}

// Set assigns the property key of an object.
func (v Value) Set(key PropertyKey, val Value) error {
	cur, h, err := v.operand()
	if err != nil {
		return err
	}
	vh, err := handles(cur, []Value{val})
	if err != nil {
		return err
	}
	n := cur.env.native
	var st native.Status
	switch key.kind {
	case keyName:
		st = n.SetNamedProperty(h, key.name, vh[0])
	case keyIndex:
		st = n.SetElement(h, key.index, vh[0])
	default:
		kh, err := key.handle(cur)
		if err != nil {
			return err
		}
		st = n.SetProperty(h, kh, vh[0])
	}
	if st != native.OK {
		return cur.env.statusError("set property", st)
	}
	return nil
}

// Has reports whether key is in the object, including inherited properties.
func (v Value) Has(key PropertyKey) (bool, error) {
	cur, h, err := v.operand()
	if err != nil {
		return false, err
	}
	kh, err := key.handle(cur)
	if err != nil {
		return false, err
	}
	ok, st := cur.env.native.HasProperty(h, kh)
	if st != native.OK {
		return false, cur.env.statusError("has property", st)
	}
	return ok, nil
}

// Delete removes an own property; it reports whether the property is gone.
func (v Value) Delete(key PropertyKey) (bool, error) {
	cur, h, err := v.operand()
	if err != nil {
		return false, err
	}
	kh, err := key.handle(cur)
	if err != nil {
		return false, err
	}
	ok, st := cur.env.native.DeleteProperty(h, kh)
	if st != native.OK {
		return false, cur.env.statusError("delete property", st)
	}
	return ok, nil
}

// GetIndex returns the element at index i.
func (v Value) GetIndex(i uint32) (Value, error) {
	return v.Get(Index(i))
}

// SetIndex assigns the element at index i.
func (v Value) SetIndex(i uint32, val Value) error {
	return v.Set(Index(i), val)
}

// Call invokes the function v with the given receiver and arguments.
func (v Value) Call(this Value, args ...Value) (Value, error) {
	cur, h, err := v.operand()
	if err != nil {
		return Value{}, err
	}
	hs, err := handles(cur, append([]Value{this}, args...))
	if err != nil {
		return Value{}, err
	}
	res, st := cur.env.native.CallFunction(hs[0], h, hs[1:])
	if st != native.OK {
		return Value{}, cur.env.statusError("call function", st)
	}
	return Value{scope: cur, handle: res}, nil
}

// CallMethod invokes the method name of v with v as receiver.
func (v Value) CallMethod(name string, args ...Value) (Value, error) {
	fn, err := v.Get(Key(name))
	if err != nil {
		return Value{}, err
	}
	return fn.Call(v, args...)
}

// New invokes v as a constructor.
func (v Value) New(args ...Value) (Value, error) {
	cur, h, err := v.operand()
	if err != nil {
		return Value{}, err
	}
	hs, err := handles(cur, args)
	if err != nil {
		return Value{}, err
	}
	res, st := cur.env.native.NewInstance(h, hs)
	if st != native.OK {
		return Value{}, cur.env.statusError("new instance", st)
	}
	return Value{scope: cur, handle: res}, nil
}
