package jsbind

import (
	"github.com/pkg/errors"

	"github.com/buke/jsbind/native"
)

// ErrPromiseSettled is returned when resolving or rejecting a promise twice.
var ErrPromiseSettled = errors.New("jsbind: promise already settled")

// Deferred settles a promise created by Scope.NewPromise.
type Deferred struct {
	env     *Environment
	d       native.Deferred
	settled bool
}

// NewPromise returns a pending promise together with the Deferred that settles it.
func (s *Scope) NewPromise() (*Deferred, Value, error) {
	cur, err := s.target()
	if err != nil {
		return nil, Value{}, err
	}
	d, h, st := cur.env.native.CreatePromise()
	if st != native.OK {
		return nil, Value{}, cur.env.statusError("create promise", st)
	}
	return &Deferred{env: cur.env, d: d}, Value{scope: cur, handle: h}, nil
}

// Resolve fulfils the promise with v.
func (d *Deferred) Resolve(v Value) error {
	return d.settle(v, true)
}

// Reject rejects the promise with reason.
func (d *Deferred) Reject(reason Value) error {
	return d.settle(reason, false)
}

func (d *Deferred) settle(v Value, fulfil bool) error {
	if !d.env.HasThreadAccess() {
		return ErrInvalidThreadAccess
	}
	if d.env.closed {
		return ErrEnvironmentClosed
	}
	if d.settled {
		return ErrPromiseSettled
	}
	cur, err := CurrentScope()
	if err != nil {
		return err
	}
	if cur.env != d.env {
		return ErrEnvironmentMismatch
	}
	hs, err := handles(cur, []Value{v})
	if err != nil {
		return err
	}
	var st native.Status
	if fulfil {
		st = d.env.native.ResolveDeferred(d.d, hs[0])
	} else {
		st = d.env.native.RejectDeferred(d.d, hs[0])
	}
	d.settled = true
	if st != native.OK {
		return d.env.statusError("settle promise", st)
	}
	return nil
}

// Then attaches host reactions to the promise v. Either reaction may be nil.
func (v Value) Then(onFulfilled, onRejected HostFunc) (Value, error) {
	cur, _, err := v.operand()
	if err != nil {
		return Value{}, err
	}
	reactions := make([]Value, 2)
	for i, fn := range []HostFunc{onFulfilled, onRejected} {
		if fn == nil {
			continue
		}
		if reactions[i], err = cur.Function("", fn); err != nil {
			return Value{}, err
		}
	}
	return v.CallMethod("then", reactions...)
}
