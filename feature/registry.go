package feature

import (
	"sort"
	"sync"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Factory builds a backend from a config.
type Factory func(cfg *Config, logger golog.Logger) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a backend available under the given name. Backends call
// this from init; registering the same name twice panics.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[name]; ok {
		panic("feature backend already registered: " + name)
	}
	registry[name] = factory
}

// Backends lists the registered backend names.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := lo.Keys(registry)
	sort.Strings(names)
	return names
}

// Select builds the backend with the given name. An empty name picks the
// accelerated backend when one is compiled in and falls back to the pure-Go
// one otherwise.
func Select(name string, cfg *Config, logger golog.Logger) (Backend, error) {
	registryMu.RLock()
	if name == "" {
		if _, ok := registry[BackendOpenCV]; ok {
			name = BackendOpenCV
		} else {
			name = BackendCPU
		}
	}
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.Errorf("unknown feature backend %q, have %v", name, Backends())
	}
	return factory(cfg, logger)
}

// Names of the built-in backends.
const (
	BackendCPU    = "cpu"
	BackendOpenCV = "opencv"
)
