package jsbind

import (
	"sync"

	"github.com/petermattis/goid"
)

// goroutineLocal holds one value per goroutine, keyed by goroutine id.
// Entries are removed when set to the zero value so finished goroutines do not leak slots.
type goroutineLocal[T comparable] struct {
	m sync.Map // map[int64]T
}

func (l *goroutineLocal[T]) get() T {
	if v, ok := l.m.Load(goid.Get()); ok {
		return v.(T)
	}
	var zero T
	return zero
}

func (l *goroutineLocal[T]) set(v T) {
	var zero T
	if v == zero {
		l.m.Delete(goid.Get())
		return
	}
	l.m.Store(goid.Get(), v)
}

var (
	currentScope goroutineLocal[*Scope]
	currentQueue goroutineLocal[*DispatcherQueue]
)

// CurrentScope returns the innermost open scope of the calling goroutine.
func CurrentScope() (*Scope, error) {
	if s := currentScope.get(); s != nil {
		return s, nil
	}
	return nil, ErrNoCurrentScope
}

// CurrentDispatcherQueue returns the queue being run by the calling goroutine, or nil.
func CurrentDispatcherQueue() *DispatcherQueue {
	return currentQueue.get()
}
