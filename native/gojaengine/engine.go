// Package gojaengine implements native.Env on top of the goja pure-Go JavaScript engine.
//
// goja has no notion of handles, so this package keeps an arena of goja values: a Handle
// is an index into the arena and a handle scope remembers the arena length when it was
// opened. Closing the scope truncates the arena, which is what makes stale handles
// meaningless at the engine level.
package gojaengine

import (
	stderrors "errors"
	"strconv"
	"unicode/utf16"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
	"github.com/pkg/errors"

	"github.com/buke/jsbind/native"
)

type frame struct {
	id         native.HandleScope
	base       int
	escapeSlot int // -1 unless escapable
	escaped    bool
}

type deferred struct {
	resolve func(v interface{})
	reject  func(v interface{})
}

// external is the Go-side payload of values created by CreateExternal.
type external struct {
	data uintptr
}

type callbackInfo struct {
	this native.Handle
	args []native.Handle
	data uintptr
}

func (c *callbackInfo) This() native.Handle   { return c.this }
func (c *callbackInfo) Args() []native.Handle { return c.args }
func (c *callbackInfo) Data() uintptr         { return c.data }

// Env is a goja-backed engine realm.
type Env struct {
	vm *goja.Runtime

	arena     []goja.Value
	frames    []frame
	nextScope native.HandleScope

	refs    map[native.Ref]goja.Value
	nextRef native.Ref

	deferreds    map[native.Deferred]*deferred
	nextDeferred native.Deferred

	exception goja.Value
	post      native.TaskPoster

	typeOf  goja.Callable
	hasProp goja.Callable
	flush   *goja.Program
	closed  bool
}

var _ native.Env = (*Env)(nil)

// New creates a goja environment. It satisfies native.Factory.
func New(opts native.Options) (native.Env, error) {
	vm := goja.New()
	if opts.MaxCallStackSize > 0 {
		vm.SetMaxCallStackSize(opts.MaxCallStackSize)
	}

	e := &Env{
		vm:        vm,
		refs:      make(map[native.Ref]goja.Value),
		deferreds: make(map[native.Deferred]*deferred),
	}

	var err error
	if e.typeOf, err = e.helper(`(function (v) { return v === null ? "null" : typeof v; })`); err != nil {
		return nil, errors.Wrap(err, "gojaengine: compiling typeof helper")
	}
	if e.hasProp, err = e.helper(`(function (o, k) { return k in o; })`); err != nil {
		return nil, errors.Wrap(err, "gojaengine: compiling has helper")
	}
	if e.flush, err = goja.Compile("microtasks", "void 0", true); err != nil {
		return nil, errors.Wrap(err, "gojaengine: compiling microtask checkpoint")
	}

	if opts.Console != nil {
		registry := require.NewRegistry()
		registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(opts.Console))
		registry.Enable(vm)
		console.Enable(vm)
	}

	return e, nil
}

func (e *Env) helper(src string) (goja.Callable, error) {
	v, err := e.vm.RunString(src)
	if err != nil {
		return nil, err
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, errors.Errorf("helper %q is not a function", src)
	}
	return fn, nil
}

// Runtime exposes the underlying goja runtime for engine-specific use.
func (e *Env) Runtime() *goja.Runtime {
	return e.vm
}

func (e *Env) alloc(v goja.Value) native.Handle {
	if v == nil {
		v = goja.Undefined()
	}
	e.arena = append(e.arena, v)
	return native.Handle(len(e.arena))
}

func (e *Env) get(h native.Handle) (goja.Value, native.Status) {
	if e.closed {
		return nil, native.Closing
	}
	idx := int(h) - 1
	if idx < 0 || idx >= len(e.arena) {
		return nil, native.InvalidArg
	}
	return e.arena[idx], native.OK
}

func (e *Env) object(h native.Handle) (*goja.Object, native.Status) {
	v, st := e.get(h)
	if st != native.OK {
		return nil, st
	}
	if obj, ok := v.(*goja.Object); ok {
		return obj, native.OK
	}
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, native.ObjectExpected
	}
	// primitives are boxed like property access in JS does
	return v.ToObject(e.vm), native.OK
}

func (e *Env) values(hs []native.Handle) ([]goja.Value, native.Status) {
	out := make([]goja.Value, len(hs))
	for i, h := range hs {
		v, st := e.get(h)
		if st != native.OK {
			return nil, st
		}
		out[i] = v
	}
	return out, native.OK
}

// fail records err as the pending exception.
func (e *Env) fail(err error) native.Status {
	if err == nil {
		return native.OK
	}
	var ex *goja.Exception
	if stderrors.As(err, &ex) {
		e.exception = ex.Value()
	} else {
		e.exception = e.vm.NewGoError(err)
	}
	return native.PendingException
}

// catch runs f, converting a thrown JS exception into a pending one.
func (e *Env) catch(f func()) native.Status {
	if ex := e.vm.Try(f); ex != nil {
		e.exception = ex.Value()
		return native.PendingException
	}
	return native.OK
}

func (e *Env) pushFrame(escapeSlot int) native.HandleScope {
	e.nextScope++
	e.frames = append(e.frames, frame{
		id:         e.nextScope,
		base:       len(e.arena),
		escapeSlot: escapeSlot,
	})
	return e.nextScope
}

func (e *Env) popFrame(scope native.HandleScope, escapable bool) native.Status {
	if e.closed {
		return native.Closing
	}
	n := len(e.frames)
	if n == 0 || e.frames[n-1].id != scope {
		return native.HandleScopeMismatch
	}
	f := e.frames[n-1]
	if escapable != (f.escapeSlot >= 0) {
		return native.InvalidArg
	}
	clear(e.arena[f.base:])
	e.arena = e.arena[:f.base]
	e.frames = e.frames[:n-1]
	return native.OK
}

func (e *Env) OpenHandleScope() (native.HandleScope, native.Status) {
	if e.closed {
		return 0, native.Closing
	}
	return e.pushFrame(-1), native.OK
}

func (e *Env) CloseHandleScope(scope native.HandleScope) native.Status {
	return e.popFrame(scope, false)
}

func (e *Env) OpenEscapableHandleScope() (native.HandleScope, native.Status) {
	if e.closed {
		return 0, native.Closing
	}
	slot := len(e.arena)
	e.arena = append(e.arena, goja.Undefined())
	return e.pushFrame(slot), native.OK
}

func (e *Env) CloseEscapableHandleScope(scope native.HandleScope) native.Status {
	return e.popFrame(scope, true)
}

func (e *Env) EscapeHandle(scope native.HandleScope, h native.Handle) (native.Handle, native.Status) {
	v, st := e.get(h)
	if st != native.OK {
		return 0, st
	}
	for i := len(e.frames) - 1; i >= 0; i-- {
		f := &e.frames[i]
		if f.id != scope {
			continue
		}
		if f.escapeSlot < 0 {
			return 0, native.InvalidArg
		}
		if f.escaped {
			return 0, native.EscapeCalledTwice
		}
		f.escaped = true
		e.arena[f.escapeSlot] = v
		return native.Handle(f.escapeSlot + 1), native.OK
	}
	return 0, native.HandleScopeMismatch
}

func (e *Env) create(v goja.Value) (native.Handle, native.Status) {
	if e.closed {
		return 0, native.Closing
	}
	return e.alloc(v), native.OK
}

func (e *Env) GetUndefined() (native.Handle, native.Status) { return e.create(goja.Undefined()) }
func (e *Env) GetNull() (native.Handle, native.Status)      { return e.create(goja.Null()) }
func (e *Env) GetGlobal() (native.Handle, native.Status)    { return e.create(e.vm.GlobalObject()) }

func (e *Env) GetBoolean(b bool) (native.Handle, native.Status) {
	return e.create(e.vm.ToValue(b))
}

func (e *Env) CreateNumber(f float64) (native.Handle, native.Status) {
	return e.create(e.vm.ToValue(f))
}

func (e *Env) CreateString(s string) (native.Handle, native.Status) {
	return e.create(e.vm.ToValue(s))
}

// CreateStringUTF16 decodes s; unpaired surrogates become U+FFFD.
func (e *Env) CreateStringUTF16(s []uint16) (native.Handle, native.Status) {
	return e.create(e.vm.ToValue(string(utf16.Decode(s))))
}

func (e *Env) CreateObject() (native.Handle, native.Status) {
	return e.create(e.vm.NewObject())
}

func (e *Env) CreateArray(length int) (native.Handle, native.Status) {
	if length < 0 {
		return 0, native.InvalidArg
	}
	arr := e.vm.NewArray()
	if length > 0 {
		if err := arr.Set("length", length); err != nil {
			return 0, e.fail(err)
		}
	}
	return e.create(arr)
}

func (e *Env) CreateSymbol(description string) (native.Handle, native.Status) {
	return e.create(goja.NewSymbol(description))
}

func (e *Env) CreateError(name, message string) (native.Handle, native.Status) {
	if e.closed {
		return 0, native.Closing
	}
	if name == "" {
		name = "Error"
	}
	ctor := e.vm.Get(name)
	if ctor == nil || goja.IsUndefined(ctor) {
		ctor = e.vm.Get("Error")
	}
	obj, err := e.vm.New(ctor, e.vm.ToValue(message))
	if err != nil {
		return 0, e.fail(err)
	}
	return e.alloc(obj), native.OK
}

func (e *Env) CreateFunction(name string, cb native.Callback, data uintptr) (native.Handle, native.Status) {
	if cb == nil {
		return 0, native.InvalidArg
	}
	if e.closed {
		return 0, native.Closing
	}
	fn := e.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		return e.invoke(cb, data, call.This, call.Arguments)
	}).(*goja.Object)
	if name != "" {
		_ = fn.DefineDataProperty("name", e.vm.ToValue(name), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE)
	}
	return e.alloc(fn), native.OK
}

// invoke runs a host callback inside its own handle scope and rethrows any exception the
// callback left pending.
func (e *Env) invoke(cb native.Callback, data uintptr, this goja.Value, args []goja.Value) goja.Value {
	scope := e.pushFrame(-1)
	result := goja.Undefined()
	func() {
		defer e.popFrame(scope, false)
		info := &callbackInfo{
			this: e.alloc(this),
			args: make([]native.Handle, len(args)),
			data: data,
		}
		for i, a := range args {
			info.args[i] = e.alloc(a)
		}
		if h := cb(e, info); h != 0 {
			if v, st := e.get(h); st == native.OK {
				result = v
			}
		}
	}()
	if exc := e.exception; exc != nil {
		e.exception = nil
		panic(exc)
	}
	return result
}

func (e *Env) CreateExternal(data uintptr) (native.Handle, native.Status) {
	return e.create(e.vm.ToValue(&external{data: data}))
}

func (e *Env) CreateArrayBuffer(data []byte) (native.Handle, native.Status) {
	buf := make([]byte, len(data))
	copy(buf, data)
	return e.create(e.vm.ToValue(e.vm.NewArrayBuffer(buf)))
}

func (e *Env) CreatePromise() (native.Deferred, native.Handle, native.Status) {
	if e.closed {
		return 0, 0, native.Closing
	}
	p, resolve, reject := e.vm.NewPromise()
	e.nextDeferred++
	e.deferreds[e.nextDeferred] = &deferred{
		resolve: func(v interface{}) { resolve(v) },
		reject:  func(v interface{}) { reject(v) },
	}
	return e.nextDeferred, e.alloc(e.vm.ToValue(p)), native.OK
}

func (e *Env) settle(d native.Deferred, h native.Handle, fulfil bool) native.Status {
	v, st := e.get(h)
	if st != native.OK {
		return st
	}
	pending, ok := e.deferreds[d]
	if !ok {
		return native.InvalidArg
	}
	delete(e.deferreds, d)
	st = e.catch(func() {
		if fulfil {
			pending.resolve(v)
		} else {
			pending.reject(v)
		}
	})
	if e.post != nil {
		e.post(func() { e.RunMicrotasks() })
	}
	return st
}

func (e *Env) ResolveDeferred(d native.Deferred, value native.Handle) native.Status {
	return e.settle(d, value, true)
}

func (e *Env) RejectDeferred(d native.Deferred, reason native.Handle) native.Status {
	return e.settle(d, reason, false)
}

func (e *Env) TypeOf(h native.Handle) (native.ValueType, native.Status) {
	v, st := e.get(h)
	if st != native.OK {
		return native.Undefined, st
	}
	if obj, ok := v.(*goja.Object); ok {
		if _, ok := obj.Export().(*external); ok {
			return native.External, native.OK
		}
	}
	res, err := e.typeOf(goja.Undefined(), v)
	if err != nil {
		return native.Undefined, e.fail(err)
	}
	switch res.String() {
	case "undefined":
		return native.Undefined, native.OK
	case "null":
		return native.Null, native.OK
	case "boolean":
		return native.Boolean, native.OK
	case "number":
		return native.Number, native.OK
	case "string":
		return native.String, native.OK
	case "symbol":
		return native.Symbol, native.OK
	case "function":
		return native.Function, native.OK
	case "bigint":
		return native.BigInt, native.OK
	default:
		return native.Object, native.OK
	}
}

func (e *Env) GetValueBool(h native.Handle) (bool, native.Status) {
	v, st := e.get(h)
	if st != native.OK {
		return false, st
	}
	b, ok := v.Export().(bool)
	if !ok {
		return false, native.BooleanExpected
	}
	return b, native.OK
}

func (e *Env) GetValueDouble(h native.Handle) (float64, native.Status) {
	v, st := e.get(h)
	if st != native.OK {
		return 0, st
	}
	switch n := v.Export().(type) {
	case int64:
		return float64(n), native.OK
	case float64:
		return n, native.OK
	default:
		return 0, native.NumberExpected
	}
}

func (e *Env) GetValueString(h native.Handle) (string, native.Status) {
	v, st := e.get(h)
	if st != native.OK {
		return "", st
	}
	if _, ok := v.(*goja.Object); ok {
		return "", native.StringExpected
	}
	s, ok := v.Export().(string)
	if !ok {
		return "", native.StringExpected
	}
	return s, native.OK
}

func (e *Env) GetValueStringUTF16(h native.Handle) ([]uint16, native.Status) {
	s, st := e.GetValueString(h)
	if st != native.OK {
		return nil, st
	}
	return utf16.Encode([]rune(s)), native.OK
}

func (e *Env) GetValueExternal(h native.Handle) (uintptr, native.Status) {
	obj, st := e.object(h)
	if st != native.OK {
		return 0, st
	}
	ext, ok := obj.Export().(*external)
	if !ok {
		return 0, native.InvalidArg
	}
	return ext.data, native.OK
}

func (e *Env) GetArrayBufferBytes(h native.Handle) ([]byte, native.Status) {
	obj, st := e.object(h)
	if st != native.OK {
		return nil, st
	}
	if obj.ClassName() != "ArrayBuffer" {
		return nil, native.InvalidArg
	}
	ab, ok := obj.Export().(goja.ArrayBuffer)
	if !ok {
		return nil, native.InvalidArg
	}
	src := ab.Bytes()
	out := make([]byte, len(src))
	copy(out, src)
	return out, native.OK
}

func (e *Env) GetArrayLength(h native.Handle) (uint32, native.Status) {
	obj, st := e.object(h)
	if st != native.OK {
		return 0, st
	}
	if obj.ClassName() != "Array" {
		return 0, native.ArrayExpected
	}
	var n int64
	st = e.catch(func() { n = obj.Get("length").ToInteger() })
	return uint32(n), st
}

func (e *Env) GetPropertyNames(h native.Handle) ([]string, native.Status) {
	obj, st := e.object(h)
	if st != native.OK {
		return nil, st
	}
	var keys []string
	st = e.catch(func() { keys = obj.Keys() })
	return keys, st
}

func (e *Env) CoerceToString(h native.Handle) (native.Handle, native.Status) {
	v, st := e.get(h)
	if st != native.OK {
		return 0, st
	}
	var s goja.Value
	if st = e.catch(func() { s = v.ToString() }); st != native.OK {
		return 0, st
	}
	return e.alloc(s), native.OK
}

func (e *Env) IsArray(h native.Handle) (bool, native.Status) {
	v, st := e.get(h)
	if st != native.OK {
		return false, st
	}
	obj, ok := v.(*goja.Object)
	return ok && obj.ClassName() == "Array", native.OK
}

func (e *Env) IsError(h native.Handle) (bool, native.Status) {
	v, st := e.get(h)
	if st != native.OK {
		return false, st
	}
	obj, ok := v.(*goja.Object)
	return ok && obj.ClassName() == "Error", native.OK
}

func (e *Env) IsPromise(h native.Handle) (bool, native.Status) {
	v, st := e.get(h)
	if st != native.OK {
		return false, st
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return false, native.OK
	}
	_, ok = obj.Export().(*goja.Promise)
	return ok, native.OK
}

func (e *Env) StrictEquals(a, b native.Handle) (bool, native.Status) {
	va, st := e.get(a)
	if st != native.OK {
		return false, st
	}
	vb, st := e.get(b)
	if st != native.OK {
		return false, st
	}
	return va.StrictEquals(vb), native.OK
}

func (e *Env) GetProperty(objH, keyH native.Handle) (native.Handle, native.Status) {
	obj, st := e.object(objH)
	if st != native.OK {
		return 0, st
	}
	key, st := e.get(keyH)
	if st != native.OK {
		return 0, st
	}
	var v goja.Value
	st = e.catch(func() {
		if sym, ok := key.(*goja.Symbol); ok {
			v = obj.GetSymbol(sym)
		} else {
			v = obj.Get(key.String())
		}
	})
	if st != native.OK {
		return 0, st
	}
	return e.alloc(v), native.OK
}

func (e *Env) SetProperty(objH, keyH, valueH native.Handle) native.Status {
	obj, st := e.object(objH)
	if st != native.OK {
		return st
	}
	key, st := e.get(keyH)
	if st != native.OK {
		return st
	}
	v, st := e.get(valueH)
	if st != native.OK {
		return st
	}
	if sym, ok := key.(*goja.Symbol); ok {
		return e.fail(obj.SetSymbol(sym, v))
	}
	var name string
	if st = e.catch(func() { name = key.String() }); st != native.OK {
		return st
	}
	return e.fail(obj.Set(name, v))
}

func (e *Env) HasProperty(objH, keyH native.Handle) (bool, native.Status) {
	obj, st := e.object(objH)
	if st != native.OK {
		return false, st
	}
	key, st := e.get(keyH)
	if st != native.OK {
		return false, st
	}
	res, err := e.hasProp(goja.Undefined(), obj, key)
	if err != nil {
		return false, e.fail(err)
	}
	return res.ToBoolean(), native.OK
}

func (e *Env) DeleteProperty(objH, keyH native.Handle) (bool, native.Status) {
	obj, st := e.object(objH)
	if st != native.OK {
		return false, st
	}
	key, st := e.get(keyH)
	if st != native.OK {
		return false, st
	}
	var err error
	if sym, ok := key.(*goja.Symbol); ok {
		err = obj.DeleteSymbol(sym)
	} else {
		err = obj.Delete(key.String())
	}
	return err == nil, native.OK
}

func (e *Env) GetNamedProperty(objH native.Handle, name string) (native.Handle, native.Status) {
	obj, st := e.object(objH)
	if st != native.OK {
		return 0, st
	}
	var v goja.Value
	if st = e.catch(func() { v = obj.Get(name) }); st != native.OK {
		return 0, st
	}
	return e.alloc(v), native.OK
}

func (e *Env) SetNamedProperty(objH native.Handle, name string, valueH native.Handle) native.Status {
	obj, st := e.object(objH)
	if st != native.OK {
		return st
	}
	v, st := e.get(valueH)
	if st != native.OK {
		return st
	}
	return e.fail(obj.Set(name, v))
}

func (e *Env) GetElement(objH native.Handle, index uint32) (native.Handle, native.Status) {
	return e.GetNamedProperty(objH, strconv.FormatUint(uint64(index), 10))
}

func (e *Env) SetElement(objH native.Handle, index uint32, valueH native.Handle) native.Status {
	return e.SetNamedProperty(objH, strconv.FormatUint(uint64(index), 10), valueH)
}

func (e *Env) CallFunction(recvH, fnH native.Handle, argHs []native.Handle) (native.Handle, native.Status) {
	fnV, st := e.get(fnH)
	if st != native.OK {
		return 0, st
	}
	fn, ok := goja.AssertFunction(fnV)
	if !ok {
		return 0, native.FunctionExpected
	}
	recv, st := e.get(recvH)
	if st != native.OK {
		return 0, st
	}
	args, st := e.values(argHs)
	if st != native.OK {
		return 0, st
	}
	res, err := fn(recv, args...)
	if err != nil {
		return 0, e.fail(err)
	}
	return e.alloc(res), native.OK
}

func (e *Env) NewInstance(ctorH native.Handle, argHs []native.Handle) (native.Handle, native.Status) {
	ctor, st := e.object(ctorH)
	if st != native.OK {
		return 0, st
	}
	args, st := e.values(argHs)
	if st != native.OK {
		return 0, st
	}
	obj, err := e.vm.New(ctor, args...)
	if err != nil {
		return 0, e.fail(err)
	}
	return e.alloc(obj), native.OK
}

func (e *Env) RunScript(source, name string) (native.Handle, native.Status) {
	if e.closed {
		return 0, native.Closing
	}
	v, err := e.vm.RunScript(name, source)
	if err != nil {
		return 0, e.fail(err)
	}
	return e.alloc(v), native.OK
}

func (e *Env) Throw(h native.Handle) native.Status {
	v, st := e.get(h)
	if st != native.OK {
		return st
	}
	e.exception = v
	return native.OK
}

func (e *Env) IsExceptionPending() bool {
	return e.exception != nil
}

func (e *Env) GetAndClearLastException() (native.Handle, native.Status) {
	if e.closed {
		return 0, native.Closing
	}
	exc := e.exception
	e.exception = nil
	return e.alloc(exc), native.OK
}

func (e *Env) CreateReference(h native.Handle) (native.Ref, native.Status) {
	v, st := e.get(h)
	if st != native.OK {
		return 0, st
	}
	e.nextRef++
	e.refs[e.nextRef] = v
	return e.nextRef, native.OK
}

func (e *Env) DeleteReference(ref native.Ref) native.Status {
	if e.closed {
		return native.Closing
	}
	if _, ok := e.refs[ref]; !ok {
		return native.InvalidArg
	}
	delete(e.refs, ref)
	return native.OK
}

func (e *Env) GetReferenceValue(ref native.Ref) (native.Handle, native.Status) {
	if e.closed {
		return 0, native.Closing
	}
	v, ok := e.refs[ref]
	if !ok {
		return 0, native.InvalidArg
	}
	return e.alloc(v), native.OK
}

// RunMicrotasks drains goja's job queue, which runs whenever the outermost script returns.
func (e *Env) RunMicrotasks() native.Status {
	if e.closed {
		return native.Closing
	}
	if _, err := e.vm.RunProgram(e.flush); err != nil {
		return e.fail(err)
	}
	return native.OK
}

func (e *Env) SetTaskPoster(post native.TaskPoster) {
	e.post = post
}

func (e *Env) Close() native.Status {
	if e.closed {
		return native.OK
	}
	e.closed = true
	e.arena = nil
	e.frames = nil
	e.refs = nil
	e.deferreds = nil
	e.exception = nil
	e.post = nil
	return native.OK
}

// Len reports the number of live handles, for tests.
func (e *Env) Len() int {
	return len(e.arena)
}
