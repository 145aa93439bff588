package jsbind

import (
	"github.com/pkg/errors"

	"github.com/buke/jsbind/native"
)

// HostFunc implements a JS function in Go. A returned error is thrown into JS: use Throw to
// throw a specific value, an *Error to pick the error constructor, or any other error for a
// plain Error carrying its message.
type HostFunc func(args *CallbackArgs) (Value, error)

// CallbackArgs describes one call of a host function. Its values are bound to Scope and
// become invalid when the host function returns.
type CallbackArgs struct {
	Scope *Scope
	This  Value
	Args  []Value
}

// Arg returns argument i, or the undefined sentinel when fewer arguments were passed.
func (a *CallbackArgs) Arg(i int) Value {
	if i < 0 || i >= len(a.Args) {
		return Value{}
	}
	return a.Args[i]
}

// Function returns a JS function that calls fn. The closure is registered in the scope's
// RuntimeContext and released when the root scope closes.
func (s *Scope) Function(name string, fn HostFunc) (Value, error) {
	if fn == nil {
		return Value{}, errors.New("jsbind: nil host function")
	}
	cur, err := s.target()
	if err != nil {
		return Value{}, err
	}
	id := cur.rc.Store(fn)
	h, st := cur.env.native.CreateFunction(name, cur.env.trampoline, id)
	if st != native.OK {
		cur.rc.Delete(id)
		return Value{}, cur.env.statusError("create function", st)
	}
	return Value{scope: cur, handle: h}, nil
}

// trampoline is the single native.Callback behind every host function.
func (e *Environment) trampoline(_ native.Env, info native.CallbackInfo) native.Handle {
	scope, err := e.OpenScope(ScopeCallback)
	if err != nil {
		e.throw(err)
		return 0
	}
	defer scope.Close()

	stored, ok := scope.rc.Load(info.Data())
	fn, isFunc := stored.(HostFunc)
	if !ok || !isFunc {
		e.throw(&Error{Name: "ReferenceError", Message: "host function has been released"})
		return 0
	}

	args := &CallbackArgs{
		Scope: scope,
		This:  Value{scope: scope, handle: info.This()},
		Args:  make([]Value, len(info.Args())),
	}
	for i, h := range info.Args() {
		args.Args[i] = Value{scope: scope, handle: h}
	}

	res, err := e.callHost(fn, args)
	if err != nil {
		e.throw(err)
		return 0
	}
	if !res.IsBound() {
		return 0
	}
	if res.scope.env != e {
		e.throw(ErrEnvironmentMismatch)
		return 0
	}
	h, err := res.Handle()
	if err != nil {
		e.throw(err)
		return 0
	}
	return h
}

// callHost runs fn, turning a panic into an error so it surfaces as a JS exception.
func (e *Environment) callHost(fn HostFunc, args *CallbackArgs) (res Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Msg("host function panicked")
			err = errors.Errorf("host function panicked: %v", r)
		}
	}()
	return fn(args)
}
