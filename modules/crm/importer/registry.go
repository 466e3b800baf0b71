package importer

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the importable entity profiles, keyed by entity kind.
// Populated once at module registration; read-only afterwards.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

func NewRegistry() *Registry {
	return &Registry{profiles: make(map[string]Profile)}
}

func (r *Registry) Register(p Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.EntityKind()] = p
}

func (r *Registry) Get(entityKind string) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[entityKind]
	if !ok {
		return nil, fmt.Errorf("unknown entity kind %q", entityKind)
	}
	return p, nil
}

func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.profiles))
	for kind := range r.profiles {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
