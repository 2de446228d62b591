package runtime

import (
	"fmt"
	"sort"
	"sync"

	"github.com/webext-labs/webext/internal/extension"
	"github.com/webext-labs/webext/internal/manifest"
)

// Factory creates a fresh Go module instance.
type Factory func() extension.Module

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// Register makes a Go module available under an entrypoint name. It is meant
// to be called from an init function. Register panics if called twice with
// the same name or with a nil factory.
func Register(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if f == nil {
		panic("runtime: Register factory is nil")
	}
	if _, dup := factories[name]; dup {
		panic(fmt.Sprintf("runtime: Register called twice for %q", name))
	}
	factories[name] = f
}

// Factories returns the sorted list of registered Go entrypoints.
func Factories() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GoEntrypoint returns the factory name a go runtime descriptor loads: its
// entrypoint, or its name when the entrypoint is empty.
func GoEntrypoint(desc *manifest.Descriptor) string {
	if desc.Entrypoint != "" {
		return desc.Entrypoint
	}
	return desc.Name
}

func loadGo(desc *manifest.Descriptor) (mod extension.Module, err error) {
	entry := GoEntrypoint(desc)
	factoriesMu.RLock()
	f, ok := factories[entry]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no go module registered for entrypoint %q", entry)
	}

	defer func() {
		if r := recover(); r != nil {
			mod, err = nil, fmt.Errorf("go module %q panicked during construction: %v", entry, r)
		}
	}()
	mod = f()
	if mod == nil {
		return nil, fmt.Errorf("go module %q factory returned nil", entry)
	}
	return mod, nil
}
