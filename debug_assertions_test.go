//go:build debug

package jsbind

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDebugAssertLockHeld(t *testing.T) {
	q := NewDispatcherQueue()

	require.Panics(t, func() { q.tryEnqueueLocked(func() {}) })
	require.Panics(t, func() { q.pushTimerLocked(&timerJob{}) })
	require.Panics(t, func() { q.createDeferralLocked() })

	q.lock()
	require.NotPanics(t, func() { q.tryEnqueueLocked(func() {}) })
	q.unlock()
}

func TestDebugAssertLockNotHeld(t *testing.T) {
	q := NewDispatcherQueue()
	q.lock()
	defer q.unlock()
	require.Panics(t, func() { debugAssertLockNotHeld(&q.debugLockOwner, "test") })
	require.Panics(t, func() { q.releaseDeferral() })
}
