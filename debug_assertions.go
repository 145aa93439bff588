//go:build debug

// Debug-only assertions for the dispatcher queue lock discipline and for leaked
// references and deferrals.
//
// To enable: go build -tags debug ./...
// To test: go test -tags debug ./...
package jsbind

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/petermattis/goid"
	"github.com/rs/zerolog"
)

func debugLockAcquired(owner *atomic.Int64) {
	owner.Store(goid.Get())
}

func debugLockReleased(owner *atomic.Int64) {
	owner.Store(0)
}

// debugAssertLockHeld panics unless the calling goroutine holds the lock.
func debugAssertLockHeld(owner *atomic.Int64, msg string) {
	if owner.Load() != goid.Get() {
		buf := make([]byte, 4096)
		n := runtime.Stack(buf, false)
		panic(fmt.Sprintf("INVALID MUTATION: %s - called without queue lock\nStack:\n%s", msg, buf[:n]))
	}
}

// debugAssertLockNotHeld panics if the calling goroutine holds the lock.
func debugAssertLockNotHeld(owner *atomic.Int64, msg string) {
	if owner.Load() == goid.Get() {
		buf := make([]byte, 4096)
		n := runtime.Stack(buf, false)
		panic(fmt.Sprintf("DEADLOCK RISK: %s - called while holding queue lock\nStack:\n%s", msg, buf[:n]))
	}
}

// trackLeak logs obj when it is collected before released reports true.
func trackLeak[T any](obj *T, what string, log zerolog.Logger, released func(*T) bool) {
	runtime.SetFinalizer(obj, func(o *T) {
		if !released(o) {
			log.Warn().Str("kind", what).Msg("collected without being released")
		}
	})
}
