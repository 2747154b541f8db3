package tools

import "sync"

// Registry holds tool registrations keyed by descriptor id.
// Re-registration with the same id replaces the prior binding, and
// List/Get return a stable descriptor+impl pair for the duration of a
// caller's use even if a concurrent Register is in flight for a
// different id.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Registration
	order []string // insertion order, for deterministic List()
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Registration)}
}

// Register installs or replaces a tool.
func (r *Registry) Register(reg Registration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[reg.Descriptor.ID]; !exists {
		r.order = append(r.order, reg.Descriptor.ID)
	}
	r.tools[reg.Descriptor.ID] = reg
}

// Unregister removes a tool, if present.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[id]; !exists {
		return
	}
	delete(r.tools, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
}

// List enumerates descriptors in registration order. Never exposes the
// implementation.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.tools[id].Descriptor)
	}
	return out
}

// Get returns the registration for id, if any.
func (r *Registry) Get(id string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.tools[id]
	return reg, ok
}
