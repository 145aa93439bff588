package jsbind

import (
	"sync/atomic"

	"github.com/petermattis/goid"
	"github.com/rs/zerolog"

	"github.com/buke/jsbind/native"
)

// ScopeKind selects how a scope interacts with the engine's handle scopes.
type ScopeKind int

const (
	// ScopeRoot opens a handle scope and a fresh RuntimeContext.
	ScopeRoot ScopeKind = iota
	// ScopeHandle opens a plain nested handle scope.
	ScopeHandle
	// ScopeCallback wraps a host function invocation; the engine owns its handle scope.
	ScopeCallback
	// ScopeEscapable opens a handle scope from which one value may escape to the parent.
	ScopeEscapable
	// ScopeNoContext is not bound to any environment.
	ScopeNoContext
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeRoot:
		return "root"
	case ScopeHandle:
		return "handle"
	case ScopeCallback:
		return "callback"
	case ScopeEscapable:
		return "escapable"
	case ScopeNoContext:
		return "no-context"
	}
	return "unknown"
}

// Scope bounds the lifetime of the values minted while it is current. Scopes nest per
// goroutine: opening one makes it current, closing it restores the scope that was current
// before. Once a scope or any of its ancestors is closed, every value bound to it fails
// with ErrScopeClosed.
type Scope struct {
	kind   ScopeKind
	env    *Environment
	owner  int64
	prev   *Scope
	rc     *RuntimeContext
	handle native.HandleScope

	closed  atomic.Bool
	escaped bool
}

// NewNoContextScope opens a scope that is bound to no environment, on the calling goroutine.
// It inherits the RuntimeContext of the current scope, if any.
func NewNoContextScope() *Scope {
	prev := currentScope.get()
	s := &Scope{kind: ScopeNoContext, owner: goid.Get(), prev: prev}
	if prev != nil {
		s.rc = prev.rc
	}
	currentScope.set(s)
	return s
}

// Kind returns the scope kind.
func (s *Scope) Kind() ScopeKind {
	return s.kind
}

// Environment returns the environment the scope belongs to, or nil for a no-context scope.
func (s *Scope) Environment() *Environment {
	return s.env
}

// Parent returns the scope that was current when s was opened.
func (s *Scope) Parent() *Scope {
	return s.prev
}

// RuntimeContext returns the registry shared by s and the other scopes under its root.
func (s *Scope) RuntimeContext() *RuntimeContext {
	return s.rc
}

// IsClosed reports whether s itself was closed.
func (s *Scope) IsClosed() bool {
	return s.closed.Load()
}

// CheckDisposed returns ErrScopeClosed if s or one of its ancestors was closed.
func (s *Scope) CheckDisposed() error {
	for p := s; p != nil; p = p.prev {
		if p.closed.Load() {
			return ErrScopeClosed
		}
	}
	return nil
}

// CheckThreadAccess returns ErrInvalidThreadAccess off the goroutine that owns s.
func (s *Scope) CheckThreadAccess() error {
	if goid.Get() != s.owner {
		return ErrInvalidThreadAccess
	}
	return nil
}

func (s *Scope) validate() error {
	if err := s.CheckDisposed(); err != nil {
		return err
	}
	return s.CheckThreadAccess()
}

func (s *Scope) logger() zerolog.Logger {
	if s.env != nil {
		return s.env.log
	}
	return zerolog.Nop()
}

// Close closes the scope and restores the previous scope as current. Closing a scope twice
// is a no-op. Scopes opened inside s that are still open are closed first, innermost first.
func (s *Scope) Close() error {
	if s.closed.Load() {
		return nil
	}
	if err := s.CheckThreadAccess(); err != nil {
		return err
	}
	if s.encloses(currentScope.get()) {
		for cur := currentScope.get(); cur != s; cur = currentScope.get() {
			log := s.logger()
			log.Warn().
				Str("kind", cur.kind.String()).
				Str("closing", s.kind.String()).
				Msg("scope closed out of order, closing nested scope first")
			cur.closeOne()
		}
	}
	s.closeOne()
	return nil
}

// encloses reports whether s is cur or one of its ancestors.
func (s *Scope) encloses(cur *Scope) bool {
	for p := cur; p != nil; p = p.prev {
		if p == s {
			return true
		}
	}
	return false
}

func (s *Scope) closeOne() {
	s.closed.Store(true)
	if s.env != nil {
		s.env.forget(s)
		var st native.Status
		switch s.kind {
		case ScopeRoot, ScopeHandle:
			st = s.env.native.CloseHandleScope(s.handle)
		case ScopeEscapable:
			st = s.env.native.CloseEscapableHandleScope(s.handle)
		}
		if st != native.OK && st != native.Closing {
			s.env.log.Warn().Str("kind", s.kind.String()).Stringer("status", st).Msg("closing engine handle scope failed")
		}
		if s.kind == ScopeRoot {
			s.rc.Clear()
		}
	}
	if currentScope.get() == s {
		currentScope.set(s.prev)
	}
}

// Escape promotes v to the parent scope so it outlives s. Only escapable scopes support it,
// and only once.
func (s *Scope) Escape(v Value) (Value, error) {
	if err := s.validate(); err != nil {
		return Value{}, err
	}
	if s.kind != ScopeEscapable {
		return Value{}, ErrNotEscapable
	}
	if s.escaped {
		return Value{}, ErrEscapeCalledTwice
	}
	if v.scope != nil && v.scope.env != s.env {
		return Value{}, ErrEnvironmentMismatch
	}
	h, err := v.Handle()
	if err != nil {
		return Value{}, err
	}
	escaped, st := s.env.native.EscapeHandle(s.handle, h)
	switch st {
	case native.OK:
	case native.EscapeCalledTwice:
		return Value{}, ErrEscapeCalledTwice
	default:
		return Value{}, &NativeError{Op: "escape handle", Status: st}
	}
	s.escaped = true
	return Value{scope: s.prev, handle: escaped}, nil
}

// target returns the scope new values are bound to: the goroutine's current scope, which
// must belong to the same environment as s.
func (s *Scope) target() (*Scope, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	if s.env == nil {
		return nil, ErrNoContext
	}
	if s.env.closed {
		return nil, ErrEnvironmentClosed
	}
	cur, err := CurrentScope()
	if err != nil {
		return nil, err
	}
	if cur.env != s.env {
		return nil, ErrEnvironmentMismatch
	}
	return cur, nil
}

func (s *Scope) create(op string, f func(n native.Env) (native.Handle, native.Status)) (Value, error) {
	cur, err := s.target()
	if err != nil {
		return Value{}, err
	}
	h, st := f(cur.env.native)
	if st != native.OK {
		return Value{}, cur.env.statusError(op, st)
	}
	return Value{scope: cur, handle: h}, nil
}
