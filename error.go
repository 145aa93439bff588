package jsbind

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/buke/jsbind/native"
)

var (
	// ErrScopeClosed is returned when a value is used after its scope, or an ancestor of it, was closed.
	ErrScopeClosed = errors.New("jsbind: scope closed")
	// ErrInvalidThreadAccess is returned when a value or queue is touched off its owner goroutine.
	ErrInvalidThreadAccess = errors.New("jsbind: invalid thread access")
	// ErrQueueCompleted is returned by helpers that enqueue onto a queue that finished shutting down.
	ErrQueueCompleted = errors.New("jsbind: dispatcher queue completed")
	// ErrNoCurrentScope is returned when an operation needs an ambient scope and none is open.
	ErrNoCurrentScope = errors.New("jsbind: no current scope")
	ErrNoContext      = errors.New("jsbind: scope has no engine context")

	ErrEscapeCalledTwice   = errors.New("jsbind: escape called twice")
	ErrNotEscapable        = errors.New("jsbind: scope is not escapable")
	ErrEnvironmentMismatch = errors.New("jsbind: value belongs to another environment")
	ErrReferenceReleased   = errors.New("jsbind: reference released")
	ErrEnvironmentClosed   = errors.New("jsbind: environment closed")
	// ErrExternalReleased is returned when the Go value behind an external is no longer registered.
	ErrExternalReleased = errors.New("jsbind: external released")
)

// NativeError reports an engine call that returned a non-OK status.
type NativeError struct {
	Op     string
	Status native.Status
}

func (e *NativeError) Error() string {
	return fmt.Sprintf("jsbind: %s: %s", e.Op, e.Status)
}

// Error represents a JavaScript error with detailed information.
type Error struct {
	Name    string // Error name (e.g., "TypeError", "ReferenceError")
	Message string // Error message
	Cause   string // Error cause
	Stack   string // Stack trace
	// Value is the thrown value for non-Error throws such as `throw 42`.
	Value string
}

// Error implements the error interface.
func (err *Error) Error() string {
	if err.Name == "" && err.Message == "" {
		return fmt.Sprintf("uncaught %s", err.Value)
	}
	if err.Cause != "" {
		return fmt.Sprintf("%s: %s (cause: %s)", err.Name, err.Message, err.Cause)
	}
	return fmt.Sprintf("%s: %s", err.Name, err.Message)
}

// IsNativeStatus reports whether err is a NativeError carrying status.
func IsNativeStatus(err error, status native.Status) bool {
	var ne *NativeError
	return errors.As(err, &ne) && ne.Status == status
}
