//go:build v8

// Package v8engine implements native.Env on V8 through github.com/tommie/v8go.
//
// v8go keeps every *Value alive until its context closes, so handle scopes here only bound
// the validity of handles; they do not free engine memory early. Operations v8go does not
// expose directly go through small compiled helper functions.
package v8engine

import (
	"strings"
	"unicode/utf16"

	"github.com/pkg/errors"
	v8 "github.com/tommie/v8go"

	"github.com/buke/jsbind/native"
)

const helperSource = `({
	symbol: (d) => Symbol(d),
	array: (n) => new Array(n),
	keys: (o) => Object.keys(o),
	get: (o, k) => o[k],
	set: (o, k, v) => { o[k] = v; },
	has: (o, k) => k in o,
	del: (o, k) => delete o[k],
	eq: (a, b) => a === b,
	str: (v) => String(v),
	name: (f, n) => Object.defineProperty(f, "name", { value: n, configurable: true }),
	error: (n, m) => { const C = typeof globalThis[n] === "function" ? globalThis[n] : Error; return new C(m); },
	fromJSError: (m, st) => {
		const r = /^(\w*Error): ([\s\S]*)$/.exec(m);
		const C = r && typeof globalThis[r[1]] === "function" ? globalThis[r[1]] : Error;
		const e = new C(r ? r[2] : m);
		if (st) e.stack = st;
		return e;
	},
	bufFrom: (s) => { const u = new Uint8Array(s.length); for (let i = 0; i < s.length; i++) u[i] = s.charCodeAt(i); return u.buffer; },
	bufTo: (b) => { let s = ""; for (const x of new Uint8Array(b)) s += String.fromCharCode(x); return s; },
	isBuf: (b) => b instanceof ArrayBuffer,
})`

type frame struct {
	id         native.HandleScope
	base       int
	escapeSlot int
	escaped    bool
}

type callbackInfo struct {
	this native.Handle
	args []native.Handle
	data uintptr
}

func (c *callbackInfo) This() native.Handle   { return c.this }
func (c *callbackInfo) Args() []native.Handle { return c.args }
func (c *callbackInfo) Data() uintptr         { return c.data }

// Env is a V8-backed engine realm.
type Env struct {
	iso *v8.Isolate
	ctx *v8.Context

	external *v8.ObjectTemplate
	helpers  map[string]*v8.Function

	arena     []*v8.Value
	frames    []frame
	nextScope native.HandleScope

	refs    map[native.Ref]*v8.Value
	nextRef native.Ref

	deferreds    map[native.Deferred]*v8.PromiseResolver
	nextDeferred native.Deferred

	exception *v8.Value
	post      native.TaskPoster
	closed    bool
}

var _ native.Env = (*Env)(nil)

// New creates a V8 isolate with one context. It satisfies native.Factory.
// MaxCallStackSize is not supported by V8 and is ignored.
func New(opts native.Options) (native.Env, error) {
	iso := v8.NewIsolate()
	e := &Env{
		iso:       iso,
		ctx:       v8.NewContext(iso),
		refs:      make(map[native.Ref]*v8.Value),
		deferreds: make(map[native.Deferred]*v8.PromiseResolver),
		helpers:   make(map[string]*v8.Function),
	}
	e.external = v8.NewObjectTemplate(iso)
	if err := e.external.SetInternalFieldCount(1); err != nil {
		e.Close()
		return nil, errors.Wrap(err, "v8engine: external template")
	}

	hv, err := e.ctx.RunScript(helperSource, "v8engine-helpers.js")
	if err != nil {
		e.Close()
		return nil, errors.Wrap(err, "v8engine: compiling helpers")
	}
	hobj, err := hv.AsObject()
	if err != nil {
		e.Close()
		return nil, errors.Wrap(err, "v8engine: helpers")
	}
	for _, name := range []string{"symbol", "array", "keys", "get", "set", "has", "del", "eq", "str", "name", "error", "fromJSError", "bufFrom", "bufTo", "isBuf"} {
		v, err := hobj.Get(name)
		if err != nil {
			e.Close()
			return nil, errors.Wrapf(err, "v8engine: helper %s", name)
		}
		fn, err := v.AsFunction()
		if err != nil {
			e.Close()
			return nil, errors.Wrapf(err, "v8engine: helper %s", name)
		}
		e.helpers[name] = fn
	}

	if opts.Console != nil {
		if err := e.installConsole(opts.Console); err != nil {
			e.Close()
			return nil, err
		}
	}
	return e, nil
}

func (e *Env) installConsole(p native.Printer) error {
	console := v8.NewObjectTemplate(e.iso)
	for name, out := range map[string]func(string){"log": p.Log, "info": p.Log, "warn": p.Warn, "error": p.Error} {
		out := out
		fn := v8.NewFunctionTemplate(e.iso, func(info *v8.FunctionCallbackInfo) *v8.Value {
			parts := make([]string, len(info.Args()))
			for i, a := range info.Args() {
				parts[i] = a.String()
			}
			out(strings.Join(parts, " "))
			return nil
		})
		if err := console.Set(name, fn); err != nil {
			return errors.Wrap(err, "v8engine: console")
		}
	}
	obj, err := console.NewInstance(e.ctx)
	if err != nil {
		return errors.Wrap(err, "v8engine: console")
	}
	return e.ctx.Global().Set("console", obj)
}

func (e *Env) helper(name string, args ...v8.Valuer) (*v8.Value, native.Status) {
	v, err := e.helpers[name].Call(v8.Undefined(e.iso), args...)
	if err != nil {
		return nil, e.fail(err)
	}
	return v, native.OK
}

func (e *Env) fail(err error) native.Status {
	if err == nil {
		return native.OK
	}
	msg, stack := err.Error(), ""
	var jsErr *v8.JSError
	if errors.As(err, &jsErr) {
		msg, stack = jsErr.Message, jsErr.StackTrace
	}
	m, _ := v8.NewValue(e.iso, msg)
	s, _ := v8.NewValue(e.iso, stack)
	exc, herr := e.helpers["fromJSError"].Call(v8.Undefined(e.iso), m, s)
	if herr != nil {
		exc = m
	}
	e.exception = exc
	return native.PendingException
}

func (e *Env) alloc(v *v8.Value) native.Handle {
	if v == nil {
		v = v8.Undefined(e.iso)
	}
	e.arena = append(e.arena, v)
	return native.Handle(len(e.arena))
}

func (e *Env) get(h native.Handle) (*v8.Value, native.Status) {
	if e.closed {
		return nil, native.Closing
	}
	idx := int(h) - 1
	if idx < 0 || idx >= len(e.arena) {
		return nil, native.InvalidArg
	}
	return e.arena[idx], native.OK
}

func (e *Env) object(h native.Handle) (*v8.Object, native.Status) {
	v, st := e.get(h)
	if st != native.OK {
		return nil, st
	}
	if v.IsUndefined() || v.IsNull() {
		return nil, native.ObjectExpected
	}
	if !v.IsObject() {
		// primitives are boxed like property access in JS does
		return v.Object(), native.OK
	}
	obj, err := v.AsObject()
	if err != nil {
		return nil, native.ObjectExpected
	}
	return obj, native.OK
}

func (e *Env) values(hs []native.Handle) ([]v8.Valuer, native.Status) {
	out := make([]v8.Valuer, len(hs))
	for i, h := range hs {
		v, st := e.get(h)
		if st != native.OK {
			return nil, st
		}
		out[i] = v
	}
	return out, native.OK
}

func (e *Env) create(v *v8.Value, err error) (native.Handle, native.Status) {
	if e.closed {
		return 0, native.Closing
	}
	if err != nil {
		return 0, e.fail(err)
	}
	return e.alloc(v), native.OK
}

func (e *Env) pushFrame(escapeSlot int) native.HandleScope {
	e.nextScope++
	e.frames = append(e.frames, frame{id: e.nextScope, base: len(e.arena), escapeSlot: escapeSlot})
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
	e.arena = append(e.arena, v8.Undefined(e.iso))
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

func (e *Env) GetUndefined() (native.Handle, native.Status) {
	return e.create(v8.Undefined(e.iso), nil)
}

func (e *Env) GetNull() (native.Handle, native.Status) {
	return e.create(v8.Null(e.iso), nil)
}

func (e *Env) GetGlobal() (native.Handle, native.Status) {
	return e.create(e.ctx.Global().Value, nil)
}

func (e *Env) GetBoolean(b bool) (native.Handle, native.Status) {
	return e.create(v8.NewValue(e.iso, b))
}

func (e *Env) CreateNumber(f float64) (native.Handle, native.Status) {
	return e.create(v8.NewValue(e.iso, f))
}

func (e *Env) CreateString(s string) (native.Handle, native.Status) {
	return e.create(v8.NewValue(e.iso, s))
}

func (e *Env) CreateStringUTF16(s []uint16) (native.Handle, native.Status) {
	return e.create(v8.NewValue(e.iso, string(utf16.Decode(s))))
}

func (e *Env) CreateObject() (native.Handle, native.Status) {
	obj, err := v8.NewObjectTemplate(e.iso).NewInstance(e.ctx)
	if err != nil {
		return e.create(nil, err)
	}
	return e.create(obj.Value, nil)
}

func (e *Env) CreateArray(length int) (native.Handle, native.Status) {
	if length < 0 {
		return 0, native.InvalidArg
	}
	n, err := v8.NewValue(e.iso, uint32(length))
	if err != nil {
		return e.create(nil, err)
	}
	v, st := e.helper("array", n)
	if st != native.OK {
		return 0, st
	}
	return e.create(v, nil)
}

func (e *Env) CreateSymbol(description string) (native.Handle, native.Status) {
	d, err := v8.NewValue(e.iso, description)
	if err != nil {
		return e.create(nil, err)
	}
	v, st := e.helper("symbol", d)
	if st != native.OK {
		return 0, st
	}
	return e.create(v, nil)
}

func (e *Env) CreateError(name, message string) (native.Handle, native.Status) {
	if name == "" {
		name = "Error"
	}
	n, _ := v8.NewValue(e.iso, name)
	m, _ := v8.NewValue(e.iso, message)
	v, st := e.helper("error", n, m)
	if st != native.OK {
		return 0, st
	}
	return e.create(v, nil)
}

func (e *Env) CreateFunction(name string, cb native.Callback, data uintptr) (native.Handle, native.Status) {
	if cb == nil {
		return 0, native.InvalidArg
	}
	if e.closed {
		return 0, native.Closing
	}
	tmpl := v8.NewFunctionTemplate(e.iso, func(info *v8.FunctionCallbackInfo) *v8.Value {
		return e.invoke(cb, data, info)
	})
	fn := tmpl.GetFunction(e.ctx)
	if name != "" {
		n, _ := v8.NewValue(e.iso, name)
		if _, st := e.helper("name", fn, n); st != native.OK {
			return 0, st
		}
	}
	return e.alloc(fn.Value), native.OK
}

func (e *Env) invoke(cb native.Callback, data uintptr, info *v8.FunctionCallbackInfo) *v8.Value {
	scope := e.pushFrame(-1)
	var result *v8.Value
	func() {
		defer e.popFrame(scope, false)
		ci := &callbackInfo{this: e.alloc(info.This().Value), data: data}
		for _, a := range info.Args() {
			ci.args = append(ci.args, e.alloc(a))
		}
		if h := cb(e, ci); h != 0 {
			if v, st := e.get(h); st == native.OK {
				result = v
			}
		}
	}()
	if exc := e.exception; exc != nil {
		e.exception = nil
		return e.iso.ThrowException(exc)
	}
	return result
}

func (e *Env) CreateExternal(data uintptr) (native.Handle, native.Status) {
	obj, err := e.external.NewInstance(e.ctx)
	if err != nil {
		return e.create(nil, err)
	}
	if err := obj.SetInternalField(0, uint32(data)); err != nil {
		return e.create(nil, err)
	}
	return e.create(obj.Value, nil)
}

func (e *Env) CreateArrayBuffer(data []byte) (native.Handle, native.Status) {
	var sb strings.Builder
	for _, b := range data {
		sb.WriteRune(rune(b))
	}
	s, err := v8.NewValue(e.iso, sb.String())
	if err != nil {
		return e.create(nil, err)
	}
	v, st := e.helper("bufFrom", s)
	if st != native.OK {
		return 0, st
	}
	return e.create(v, nil)
}

func (e *Env) CreatePromise() (native.Deferred, native.Handle, native.Status) {
	if e.closed {
		return 0, 0, native.Closing
	}
	resolver, err := v8.NewPromiseResolver(e.ctx)
	if err != nil {
		return 0, 0, e.fail(err)
	}
	e.nextDeferred++
	e.deferreds[e.nextDeferred] = resolver
	return e.nextDeferred, e.alloc(resolver.GetPromise().Value), native.OK
}

func (e *Env) settle(d native.Deferred, h native.Handle, fulfil bool) native.Status {
	v, st := e.get(h)
	if st != native.OK {
		return st
	}
	resolver, ok := e.deferreds[d]
	if !ok {
		return native.InvalidArg
	}
	delete(e.deferreds, d)
	if fulfil {
		resolver.Resolve(v)
	} else {
		resolver.Reject(v)
	}
	if e.post != nil {
		e.post(func() { e.RunMicrotasks() })
	}
	return native.OK
}

func (e *Env) ResolveDeferred(d native.Deferred, value native.Handle) native.Status {
	return e.settle(d, value, true)
}

func (e *Env) RejectDeferred(d native.Deferred, reason native.Handle) native.Status {
	return e.settle(d, reason, false)
}

func isExternal(v *v8.Value) bool {
	if !v.IsObject() {
		return false
	}
	obj, err := v.AsObject()
	return err == nil && obj.InternalFieldCount() == 1
}

func (e *Env) TypeOf(h native.Handle) (native.ValueType, native.Status) {
	v, st := e.get(h)
	if st != native.OK {
		return native.Undefined, st
	}
	switch {
	case v.IsUndefined():
		return native.Undefined, native.OK
	case v.IsNull():
		return native.Null, native.OK
	case v.IsBoolean():
		return native.Boolean, native.OK
	case v.IsNumber():
		return native.Number, native.OK
	case v.IsString():
		return native.String, native.OK
	case v.IsSymbol():
		return native.Symbol, native.OK
	case v.IsBigInt():
		return native.BigInt, native.OK
	case v.IsFunction():
		return native.Function, native.OK
	case isExternal(v):
		return native.External, native.OK
	}
	return native.Object, native.OK
}

func (e *Env) GetValueBool(h native.Handle) (bool, native.Status) {
	v, st := e.get(h)
	if st != native.OK {
		return false, st
	}
	if !v.IsBoolean() {
		return false, native.BooleanExpected
	}
	return v.Boolean(), native.OK
}

func (e *Env) GetValueDouble(h native.Handle) (float64, native.Status) {
	v, st := e.get(h)
	if st != native.OK {
		return 0, st
	}
	if !v.IsNumber() {
		return 0, native.NumberExpected
	}
	return v.Number(), native.OK
}

func (e *Env) GetValueString(h native.Handle) (string, native.Status) {
	v, st := e.get(h)
	if st != native.OK {
		return "", st
	}
	if !v.IsString() {
		return "", native.StringExpected
	}
	return v.String(), native.OK
}

func (e *Env) GetValueStringUTF16(h native.Handle) ([]uint16, native.Status) {
	s, st := e.GetValueString(h)
	if st != native.OK {
		return nil, st
	}
	return utf16.Encode([]rune(s)), native.OK
}

func (e *Env) GetValueExternal(h native.Handle) (uintptr, native.Status) {
	v, st := e.get(h)
	if st != native.OK {
		return 0, st
	}
	if !isExternal(v) {
		return 0, native.InvalidArg
	}
	obj, _ := v.AsObject()
	return uintptr(obj.GetInternalField(0).Uint32()), native.OK
}

func (e *Env) GetArrayBufferBytes(h native.Handle) ([]byte, native.Status) {
	v, st := e.get(h)
	if st != native.OK {
		return nil, st
	}
	ok, st := e.helper("isBuf", v)
	if st != native.OK {
		return nil, st
	}
	if !ok.Boolean() {
		return nil, native.InvalidArg
	}
	s, st := e.helper("bufTo", v)
	if st != native.OK {
		return nil, st
	}
	out := make([]byte, 0, len(s.String()))
	for _, r := range s.String() {
		out = append(out, byte(r))
	}
	return out, native.OK
}

func (e *Env) GetArrayLength(h native.Handle) (uint32, native.Status) {
	obj, st := e.object(h)
	if st != native.OK {
		return 0, st
	}
	if !obj.IsArray() {
		return 0, native.ArrayExpected
	}
	l, err := obj.Get("length")
	if err != nil {
		return 0, e.fail(err)
	}
	return l.Uint32(), native.OK
}

func (e *Env) GetPropertyNames(h native.Handle) ([]string, native.Status) {
	v, st := e.get(h)
	if st != native.OK {
		return nil, st
	}
	if !v.IsObject() {
		return nil, native.ObjectExpected
	}
	keys, st := e.helper("keys", v)
	if st != native.OK {
		return nil, st
	}
	arr, _ := keys.AsObject()
	n, _ := arr.Get("length")
	out := make([]string, n.Uint32())
	for i := range out {
		k, err := arr.GetIdx(uint32(i))
		if err != nil {
			return nil, e.fail(err)
		}
		out[i] = k.String()
	}
	return out, native.OK
}

func (e *Env) CoerceToString(h native.Handle) (native.Handle, native.Status) {
	v, st := e.get(h)
	if st != native.OK {
		return 0, st
	}
	s, st := e.helper("str", v)
	if st != native.OK {
		return 0, st
	}
	return e.alloc(s), native.OK
}

func (e *Env) IsArray(h native.Handle) (bool, native.Status) {
	v, st := e.get(h)
	if st != native.OK {
		return false, st
	}
	return v.IsArray(), native.OK
}

func (e *Env) IsError(h native.Handle) (bool, native.Status) {
	v, st := e.get(h)
	if st != native.OK {
		return false, st
	}
	return v.IsNativeError(), native.OK
}

func (e *Env) IsPromise(h native.Handle) (bool, native.Status) {
	v, st := e.get(h)
	if st != native.OK {
		return false, st
	}
	return v.IsPromise(), native.OK
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
	res, st := e.helper("eq", va, vb)
	if st != native.OK {
		return false, st
	}
	return res.Boolean(), native.OK
}

func (e *Env) keyed(name string, hs ...native.Handle) (*v8.Value, native.Status) {
	vals, st := e.values(hs)
	if st != native.OK {
		return nil, st
	}
	if v := vals[0].(*v8.Value); !v.IsObject() {
		return nil, native.ObjectExpected
	}
	return e.helper(name, vals...)
}

func (e *Env) GetProperty(obj, key native.Handle) (native.Handle, native.Status) {
	v, st := e.keyed("get", obj, key)
	if st != native.OK {
		return 0, st
	}
	return e.alloc(v), native.OK
}

func (e *Env) SetProperty(obj, key, value native.Handle) native.Status {
	_, st := e.keyed("set", obj, key, value)
	return st
}

func (e *Env) HasProperty(obj, key native.Handle) (bool, native.Status) {
	v, st := e.keyed("has", obj, key)
	if st != native.OK {
		return false, st
	}
	return v.Boolean(), native.OK
}

func (e *Env) DeleteProperty(obj, key native.Handle) (bool, native.Status) {
	v, st := e.keyed("del", obj, key)
	if st != native.OK {
		return false, st
	}
	return v.Boolean(), native.OK
}

func (e *Env) GetNamedProperty(objH native.Handle, name string) (native.Handle, native.Status) {
	obj, st := e.object(objH)
	if st != native.OK {
		return 0, st
	}
	v, err := obj.Get(name)
	if err != nil {
		return 0, e.fail(err)
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
	obj, st := e.object(objH)
	if st != native.OK {
		return 0, st
	}
	v, err := obj.GetIdx(index)
	if err != nil {
		return 0, e.fail(err)
	}
	return e.alloc(v), native.OK
}

func (e *Env) SetElement(objH native.Handle, index uint32, valueH native.Handle) native.Status {
	obj, st := e.object(objH)
	if st != native.OK {
		return st
	}
	v, st := e.get(valueH)
	if st != native.OK {
		return st
	}
	return e.fail(obj.SetIdx(index, v))
}

func (e *Env) CallFunction(recvH, fnH native.Handle, argHs []native.Handle) (native.Handle, native.Status) {
	fv, st := e.get(fnH)
	if st != native.OK {
		return 0, st
	}
	if !fv.IsFunction() {
		return 0, native.FunctionExpected
	}
	fn, err := fv.AsFunction()
	if err != nil {
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
	res, err := fn.Call(recv, args...)
	if err != nil {
		return 0, e.fail(err)
	}
	return e.alloc(res), native.OK
}

func (e *Env) NewInstance(ctorH native.Handle, argHs []native.Handle) (native.Handle, native.Status) {
	cv, st := e.get(ctorH)
	if st != native.OK {
		return 0, st
	}
	if !cv.IsFunction() {
		return 0, native.FunctionExpected
	}
	ctor, err := cv.AsFunction()
	if err != nil {
		return 0, native.FunctionExpected
	}
	args, st := e.values(argHs)
	if st != native.OK {
		return 0, st
	}
	obj, err := ctor.NewInstance(args...)
	if err != nil {
		return 0, e.fail(err)
	}
	return e.alloc(obj.Value), native.OK
}

func (e *Env) RunScript(source, name string) (native.Handle, native.Status) {
	if e.closed {
		return 0, native.Closing
	}
	v, err := e.ctx.RunScript(source, name)
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

func (e *Env) RunMicrotasks() native.Status {
	if e.closed {
		return native.Closing
	}
	e.ctx.PerformMicrotaskCheckpoint()
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
	e.arena, e.frames, e.refs, e.deferreds, e.exception, e.post = nil, nil, nil, nil, nil, nil
	e.ctx.Close()
	e.iso.Dispose()
	return native.OK
}
