package jsbind

import (
	"math"
	"sync"
)

// RuntimeContext maps integer tokens to host objects handed to the engine, such as the
// closures behind host functions and the payloads of external values. The engine only ever
// sees the token. Zero is reserved as invalid.
type RuntimeContext struct {
	mu      sync.Mutex
	handles map[uintptr]interface{}
	nextID  uintptr
}

// NewRuntimeContext creates an empty registry.
func NewRuntimeContext() *RuntimeContext {
	return &RuntimeContext{handles: make(map[uintptr]interface{})}
}

// Store stores a value and returns its token.
func (rc *RuntimeContext) Store(value interface{}) uintptr {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.nextID++
	if rc.nextID == math.MaxUint32 {
		panic("jsbind: RuntimeContext token overflow")
	}
	rc.handles[rc.nextID] = value
	return rc.nextID
}

// Load loads value by token.
func (rc *RuntimeContext) Load(id uintptr) (interface{}, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	v, ok := rc.handles[id]
	return v, ok
}

// Delete releases the token; it reports whether the token was live.
func (rc *RuntimeContext) Delete(id uintptr) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if _, ok := rc.handles[id]; !ok {
		return false
	}
	delete(rc.handles, id)
	return true
}

// Clear drops every stored value (called when the environment closes).
func (rc *RuntimeContext) Clear() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	clear(rc.handles)
}

// Count returns number of stored values (for debugging)
func (rc *RuntimeContext) Count() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.handles)
}
