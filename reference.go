package jsbind

import (
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/buke/jsbind/native"
)

// Reference keeps a value alive across scopes. The value can be read back in any later
// scope of the same environment until the reference is released.
type Reference struct {
	env      *Environment
	ref      native.Ref
	released atomic.Bool
}

// NewReference creates a strong reference to v, which must be a bound, live value.
func NewReference(v Value) (*Reference, error) {
	if !v.IsBound() {
		return nil, errors.Wrap(ErrNoContext, "jsbind: cannot reference the undefined sentinel")
	}
	h, err := v.Handle()
	if err != nil {
		return nil, err
	}
	env := v.scope.env
	if env == nil {
		return nil, ErrNoContext
	}
	if env.closed {
		return nil, ErrEnvironmentClosed
	}
	ref, st := env.native.CreateReference(h)
	if st != native.OK {
		return nil, env.statusError("create reference", st)
	}
	r := &Reference{env: env, ref: ref}
	trackLeak(r, "reference", env.log, (*Reference).isReleased)
	return r, nil
}

func (r *Reference) isReleased() bool {
	return r.released.Load()
}

// Value materialises the referenced value in the current scope.
func (r *Reference) Value() (Value, error) {
	if r.released.Load() {
		return Value{}, ErrReferenceReleased
	}
	if !r.env.HasThreadAccess() {
		return Value{}, ErrInvalidThreadAccess
	}
	if r.env.closed {
		return Value{}, ErrEnvironmentClosed
	}
	cur, err := CurrentScope()
	if err != nil {
		return Value{}, err
	}
	if cur.env != r.env {
		return Value{}, ErrEnvironmentMismatch
	}
	h, st := r.env.native.GetReferenceValue(r.ref)
	if st != native.OK {
		return Value{}, r.env.statusError("get reference value", st)
	}
	return Value{scope: cur, handle: h}, nil
}

// Release drops the strong reference. Only the first call has an effect. Off the owner
// goroutine the release is posted to the environment's dispatcher queue; without a queue
// it fails with ErrInvalidThreadAccess.
func (r *Reference) Release() error {
	if r.released.Load() {
		return nil
	}
	if r.env.HasThreadAccess() {
		r.release()
		return nil
	}
	q := r.env.queue
	if q == nil {
		return ErrInvalidThreadAccess
	}
	if !r.released.CompareAndSwap(false, true) {
		return nil
	}
	// On a completed queue the native reference lives until the environment closes.
	q.TryEnqueue(r.deleteNative)
	return nil
}

func (r *Reference) release() {
	if r.released.CompareAndSwap(false, true) {
		r.deleteNative()
	}
}

func (r *Reference) deleteNative() {
	if r.env.closed {
		return
	}
	if st := r.env.native.DeleteReference(r.ref); st != native.OK {
		r.env.log.Warn().Stringer("status", st).Msg("releasing reference failed")
	}
}
