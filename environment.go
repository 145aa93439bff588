package jsbind

import (
	"github.com/petermattis/goid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/buke/jsbind/native"
)

// Environment is one engine realm owned by the goroutine that created it. Every value,
// scope and reference of the environment may only be used on that goroutine.
type Environment struct {
	native native.Env
	owner  int64
	log    zerolog.Logger
	queue  *DispatcherQueue
	root   *Scope
	open   []*Scope
	timers *hostTimers
	closed bool
}

// NewEnvironment creates an environment owned by the calling goroutine and opens its root
// scope, which becomes current. When called on a goroutine running a DispatcherQueue, the
// environment uses that queue for work posted by the engine, foreign reference releases and
// host timers.
func NewEnvironment(opts ...Option) (*Environment, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	nopts := native.Options{MaxCallStackSize: o.maxCallStackSize}
	if o.console {
		nopts.Console = consolePrinter{log: o.log.With().Str("component", "console").Logger()}
	}
	n, err := o.engine(nopts)
	if err != nil {
		return nil, errors.Wrapf(err, "jsbind: creating %s engine", o.engineName)
	}

	e := &Environment{
		native: n,
		owner:  goid.Get(),
		log:    o.log.With().Str("component", "environment").Logger(),
		queue:  CurrentDispatcherQueue(),
	}
	if e.queue != nil {
		n.SetTaskPoster(e.queue.TryEnqueue)
	}

	e.root, err = e.OpenScope(ScopeRoot)
	if err != nil {
		n.Close()
		return nil, err
	}

	if o.timers {
		if e.queue == nil {
			e.log.Warn().Msg("host timers need a dispatcher queue, not installing them")
		} else if err := e.installTimers(); err != nil {
			e.Close()
			return nil, err
		}
	}

	e.log.Debug().Str("engine", o.engineName).Msg("environment created")
	return e, nil
}

// Native returns the engine environment.
func (e *Environment) Native() native.Env {
	return e.native
}

// Queue returns the dispatcher queue the environment was created on, or nil.
func (e *Environment) Queue() *DispatcherQueue {
	return e.queue
}

// RootScope returns the scope opened by NewEnvironment.
func (e *Environment) RootScope() *Scope {
	return e.root
}

// HasThreadAccess reports whether the caller is the owner goroutine.
func (e *Environment) HasThreadAccess() bool {
	return goid.Get() == e.owner
}

// OpenScope opens a scope of the given kind on the owner goroutine and makes it current.
// Every kind but ScopeRoot and ScopeNoContext must be opened while a scope of this
// environment is current.
func (e *Environment) OpenScope(kind ScopeKind) (*Scope, error) {
	if !e.HasThreadAccess() {
		return nil, ErrInvalidThreadAccess
	}
	if e.closed {
		return nil, ErrEnvironmentClosed
	}
	if kind == ScopeNoContext {
		return NewNoContextScope(), nil
	}

	prev := currentScope.get()
	s := &Scope{kind: kind, env: e, owner: e.owner, prev: prev}
	if kind == ScopeRoot {
		s.rc = NewRuntimeContext()
	} else {
		if prev == nil {
			return nil, ErrNoCurrentScope
		}
		if prev.env != e {
			return nil, ErrEnvironmentMismatch
		}
		s.rc = prev.rc
	}

	st := native.OK
	switch kind {
	case ScopeRoot, ScopeHandle:
		s.handle, st = e.native.OpenHandleScope()
	case ScopeEscapable:
		s.handle, st = e.native.OpenEscapableHandleScope()
	}
	if st != native.OK {
		return nil, &NativeError{Op: "open " + kind.String() + " scope", Status: st}
	}

	e.open = append(e.open, s)
	currentScope.set(s)
	return s, nil
}

func (e *Environment) forget(s *Scope) {
	for i := len(e.open) - 1; i >= 0; i-- {
		if e.open[i] == s {
			e.open = append(e.open[:i], e.open[i+1:]...)
			return
		}
	}
}

// RunMicrotasks drains the engine's promise job queue.
func (e *Environment) RunMicrotasks() error {
	if !e.HasThreadAccess() {
		return ErrInvalidThreadAccess
	}
	if e.closed {
		return ErrEnvironmentClosed
	}
	if st := e.native.RunMicrotasks(); st != native.OK {
		return e.statusError("run microtasks", st)
	}
	return nil
}

// checkpoint runs microtasks, logging instead of returning failures.
func (e *Environment) checkpoint() {
	if e.closed {
		return
	}
	if err := e.RunMicrotasks(); err != nil {
		e.log.Error().Err(err).Msg("microtask checkpoint failed")
	}
}

// Close closes every open scope innermost first, drops the host objects registered with
// the engine and closes the engine. Closing twice is a no-op.
func (e *Environment) Close() error {
	if !e.HasThreadAccess() {
		return ErrInvalidThreadAccess
	}
	if e.closed {
		return nil
	}
	if e.timers != nil {
		e.timers.stopAll()
	}
	for len(e.open) > 0 {
		e.open[len(e.open)-1].Close()
	}
	e.closed = true
	e.native.SetTaskPoster(nil)
	if st := e.native.Close(); st != native.OK {
		return &NativeError{Op: "close environment", Status: st}
	}
	e.log.Debug().Msg("environment closed")
	return nil
}

// statusError turns a failed engine call into an error, taking the pending exception for
// native.PendingException.
func (e *Environment) statusError(op string, st native.Status) error {
	if st == native.PendingException {
		return e.takeException()
	}
	return &NativeError{Op: op, Status: st}
}

func (e *Environment) takeException() error {
	h, st := e.native.GetAndClearLastException()
	if st != native.OK {
		return &NativeError{Op: "get exception", Status: st}
	}
	return e.errorFromHandle(h)
}

func (e *Environment) errorFromHandle(h native.Handle) *Error {
	if isErr, _ := e.native.IsError(h); !isErr {
		return &Error{Value: e.coerce(h)}
	}
	return &Error{
		Name:    e.stringProperty(h, "name"),
		Message: e.stringProperty(h, "message"),
		Cause:   e.stringProperty(h, "cause"),
		Stack:   e.stringProperty(h, "stack"),
	}
}

func (e *Environment) stringProperty(obj native.Handle, name string) string {
	h, st := e.native.GetNamedProperty(obj, name)
	if st != native.OK {
		e.clearException()
		return ""
	}
	if t, _ := e.native.TypeOf(h); t == native.Undefined {
		return ""
	}
	return e.coerce(h)
}

func (e *Environment) coerce(h native.Handle) string {
	sh, st := e.native.CoerceToString(h)
	if st != native.OK {
		e.clearException()
		return ""
	}
	s, _ := e.native.GetValueString(sh)
	return s
}

func (e *Environment) clearException() {
	if e.native.IsExceptionPending() {
		e.native.GetAndClearLastException()
	}
}

// throw leaves err pending as a JS exception.
func (e *Environment) throw(err error) {
	var tv *thrownValue
	if errors.As(err, &tv) {
		if h, herr := tv.value.Handle(); herr == nil {
			e.native.Throw(h)
			return
		}
	}
	name, msg := "Error", err.Error()
	var jsErr *Error
	if errors.As(err, &jsErr) && jsErr.Name != "" {
		name, msg = jsErr.Name, jsErr.Message
	}
	h, st := e.native.CreateError(name, msg)
	if st != native.OK {
		e.log.Error().Err(err).Stringer("status", st).Msg("creating thrown error failed")
		return
	}
	e.native.Throw(h)
}

type thrownValue struct {
	value Value
}

func (t *thrownValue) Error() string {
	return "jsbind: thrown " + t.value.String()
}

// Throw returns an error that, when returned from a host function, throws v itself
// instead of an Error built from the message.
func Throw(v Value) error {
	return &thrownValue{value: v}
}
