package backend

import (
	"fmt"
	"slices"
	"sync"
)

// Factory opens a new backend instance.
type Factory func() (Backend, error)

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
	// priority is the selection order for Default (first that opens wins).
	priority = []string{Native, Software}
)

// Register registers a backend factory under name.
// This is typically called from init functions in backend packages.
// A factory already registered under name is replaced.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = f
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// Available returns the registered backend names, sorted.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered reports whether a backend is registered under name.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[name]
	return ok
}

// Get opens the backend registered under name.
func Get(name string) (Backend, error) {
	registryMu.RLock()
	f, ok := factories[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
	}
	b, err := f()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBackendNotAvailable, name, err)
	}
	return b, nil
}

// Default opens the best available backend: native first, then software,
// then any other registered backend.
func Default() (Backend, error) {
	names := slices.Clone(priority)
	for _, name := range Available() {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}

	var errs []error
	for _, name := range names {
		if !IsRegistered(name) {
			continue
		}
		b, err := Get(name)
		if err == nil {
			return b, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, ErrBackendNotAvailable
	}
	return nil, errs[0]
}
