package decode

import "sync"

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a decoder factory available under the given codec
// identifier, replacing any previous registration. Built-in decoders
// register themselves at init.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = f
}

// Lookup returns the factory registered under name.
func Lookup(name string) (Factory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := factories[name]
	return f, ok
}

// Names lists the registered codec identifiers.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	return names
}
