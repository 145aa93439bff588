package jsbind

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/buke/jsbind/native"
	"github.com/buke/jsbind/native/gojaengine"
)

var (
	enginesMu sync.RWMutex
	engines   = map[string]native.Factory{
		"goja": gojaengine.New,
	}
)

// RegisterEngine makes an engine available to WithEngineName and Config.Engine.
func RegisterEngine(name string, factory native.Factory) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	engines[name] = factory
}

// Engines returns the names of the registered engines.
func Engines() []string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupEngine(name string) (native.Factory, error) {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	f, ok := engines[name]
	if !ok || f == nil {
		return nil, errors.Errorf("jsbind: unknown engine %q", name)
	}
	return f, nil
}
