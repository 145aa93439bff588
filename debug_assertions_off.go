//go:build !debug

package jsbind

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

func debugLockAcquired(*atomic.Int64)                            {}
func debugLockReleased(*atomic.Int64)                            {}
func debugAssertLockHeld(*atomic.Int64, string)                  {}
func debugAssertLockNotHeld(*atomic.Int64, string)               {}
func trackLeak[T any](*T, string, zerolog.Logger, func(*T) bool) {}
