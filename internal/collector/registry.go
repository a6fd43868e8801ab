package collector

import (
	"fmt"
	"sync"

	"github.com/newthinker/tally/internal/core"
	"github.com/newthinker/tally/internal/pricing"
)

// Registry manages named price sources
type Registry struct {
	mu      sync.RWMutex
	sources map[string]pricing.Source
	order   []string
}

// NewRegistry creates a new source registry
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]pricing.Source),
	}
}

// Register adds a source to the registry. Registering a name twice replaces
// the source but keeps its original position.
func (r *Registry) Register(s pricing.Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sources[s.Name()]; !ok {
		r.order = append(r.order, s.Name())
	}
	r.sources[s.Name()] = s
}

// Get retrieves a source by name
func (r *Registry) Get(name string) (pricing.Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[name]
	return s, ok
}

// GetAll returns all registered sources in registration order
func (r *Registry) GetAll() []pricing.Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]pricing.Source, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.sources[name])
	}
	return result
}

// Ranked returns the named sources in the given priority order
func (r *Registry) Ranked(names []string) ([]pricing.Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]pricing.Source, 0, len(names))
	for _, name := range names {
		s, ok := r.sources[name]
		if !ok {
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown price source %q", name))
		}
		result = append(result, s)
	}
	return result, nil
}
