package sqlgen

import (
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/leapmetric/pkg/core"
)

// Factory creates a Generator.
type Factory func() Generator

// Generator registry
var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a generator factory under a data source type.
// Called by generator implementations in their init() functions.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(name)] = factory
}

// RegisterDialect registers the shared SQL generator for a dialect under its
// name and every alias.
func RegisterDialect(d *Dialect) {
	factory := func() Generator { return NewSQLGenerator(d) }
	Register(d.Name, factory)
	for _, alias := range d.Aliases {
		Register(alias, factory)
	}
}

// Get retrieves a generator factory by data source type.
func Get(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[strings.ToLower(name)]
	return f, ok
}

// New creates the generator registered for a data source type.
func New(t core.DataSourceType) (Generator, error) {
	key := t.Normalize()
	if key == "" {
		return nil, ErrGeneratorRequired
	}

	factory, ok := Get(string(key))
	if !ok {
		return nil, &UnknownGeneratorError{
			Type:      string(t),
			Available: List(),
		}
	}
	return factory(), nil
}

// List returns all registered data source types (sorted).
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a data source type has a generator.
func IsRegistered(name string) bool {
	_, ok := Get(name)
	return ok
}
