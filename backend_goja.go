//go:build !v8

package jsbind

// DefaultEngine is the engine used when no other is configured.
const DefaultEngine = "goja"
