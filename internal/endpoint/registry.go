package endpoint

import (
	"fmt"
	"sync"
)

// Factory creates an endpoint instance from configuration.
type Factory func(config map[string]any) (Endpoint, error)

// Registry holds endpoint factories indexed by endpoint ID.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry creates an empty endpoint registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory for the given endpoint ID.
// Panics if the ID is already registered.
func (r *Registry) Register(endpointID string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[endpointID]; exists {
		panic(fmt.Sprintf("endpoint factory already registered: %s", endpointID))
	}
	r.factories[endpointID] = factory
}

// Get returns the factory for the given endpoint ID.
func (r *Registry) Get(endpointID string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[endpointID]
	return factory, ok
}

// List returns all registered endpoint IDs.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	return ids
}

// Create instantiates an endpoint from the given ID and config.
func (r *Registry) Create(endpointID string, config map[string]any) (Endpoint, error) {
	factory, ok := r.Get(endpointID)
	if !ok {
		return nil, fmt.Errorf("unknown endpoint: %s", endpointID)
	}
	return factory(config)
}

// CreateSink instantiates an endpoint and asserts it is a sink.
func (r *Registry) CreateSink(endpointID string, config map[string]any) (SinkEndpoint, error) {
	ep, err := r.Create(endpointID, config)
	if err != nil {
		return nil, err
	}
	sink, ok := ep.(SinkEndpoint)
	if !ok {
		ep.Close()
		return nil, fmt.Errorf("endpoint %s is not a sink", endpointID)
	}
	return sink, nil
}

// CreateSource instantiates an endpoint and asserts it is a source.
func (r *Registry) CreateSource(endpointID string, config map[string]any) (SourceEndpoint, error) {
	ep, err := r.Create(endpointID, config)
	if err != nil {
		return nil, err
	}
	src, ok := ep.(SourceEndpoint)
	if !ok {
		ep.Close()
		return nil, fmt.Errorf("endpoint %s is not a source", endpointID)
	}
	return src, nil
}

// --- Default Global Registry ---

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the global endpoint registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds a factory to the default registry.
func Register(endpointID string, factory Factory) {
	defaultRegistry.Register(endpointID, factory)
}
