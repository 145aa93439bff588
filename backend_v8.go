//go:build v8

package jsbind

import "github.com/buke/jsbind/native/v8engine"

// DefaultEngine is the engine used when no other is configured.
const DefaultEngine = "v8"

func init() {
	RegisterEngine("v8", v8engine.New)
}
