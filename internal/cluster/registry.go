package cluster

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds all known algorithm implementations keyed by their
// versioned identifier and resolves lookups by family name or identifier.
type Registry struct {
	mu         sync.RWMutex
	algorithms map[string]Algorithm // versioned id -> algorithm
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{algorithms: make(map[string]Algorithm)}
}

// DefaultRegistry returns a registry with both built-in algorithms,
// the model-assisted one wired to the given reasoning client.
func DefaultRegistry(deps PatternDeps) *Registry {
	r := NewRegistry()
	r.Register(NewKeywordAlgorithm())
	r.Register(NewPatternAlgorithm(deps))
	return r
}

// Register adds an algorithm under its versioned identifier.
// Re-registering the same identifier replaces the previous instance.
func (r *Registry) Register(a Algorithm) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.algorithms[a.Meta().ID] = a
}

// Resolve looks up an algorithm by versioned identifier or by family name.
// A family-name lookup returns the newest registered version.
func (r *Registry) Resolve(nameOrID string) (Algorithm, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if a, ok := r.algorithms[nameOrID]; ok {
		return a, nil
	}

	// Family name: pick the highest version
	var best Algorithm
	for _, a := range r.algorithms {
		if a.Meta().Name != nameOrID {
			continue
		}
		if best == nil || a.Meta().Version > best.Meta().Version {
			best = a
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%q: %w", nameOrID, ErrUnknownAlgorithm)
	}
	return best, nil
}

// All returns the newest version of each algorithm family, ordered by name
func (r *Registry) All() []Algorithm {
	r.mu.RLock()
	defer r.mu.RUnlock()

	newest := make(map[string]Algorithm)
	for _, a := range r.algorithms {
		name := a.Meta().Name
		if cur, ok := newest[name]; !ok || a.Meta().Version > cur.Meta().Version {
			newest[name] = a
		}
	}

	names := make([]string, 0, len(newest))
	for name := range newest {
		names = append(names, name)
	}
	sort.Strings(names)

	all := make([]Algorithm, 0, len(names))
	for _, name := range names {
		all = append(all, newest[name])
	}
	return all
}
