package config

import (
	"fmt"
	"sort"
	"sync"
)

// AgentRegistry is the read-only agent catalog. It is populated once at
// startup and hands out defensive copies, so callers can never mutate the
// shared configuration.
type AgentRegistry struct {
	agents map[string]*AgentSpec
	mu     sync.RWMutex
}

// NewAgentRegistry creates a registry over the given agent map.
func NewAgentRegistry(agents map[string]*AgentSpec) *AgentRegistry {
	copied := make(map[string]*AgentSpec, len(agents))
	for id, spec := range agents {
		c := spec.clone()
		c.ID = id
		copied[id] = c
	}
	return &AgentRegistry{agents: copied}
}

// Get retrieves an agent by id.
func (r *AgentRegistry) Get(id string) (*AgentSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	spec, exists := r.agents[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	return spec.clone(), nil
}

// Has reports whether an agent with the given id exists.
func (r *AgentRegistry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.agents[id]
	return exists
}

// GetAll returns all agents as defensive copies.
func (r *AgentRegistry) GetAll() map[string]*AgentSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*AgentSpec, len(r.agents))
	for id, spec := range r.agents {
		result[id] = spec.clone()
	}
	return result
}

// List returns all agents sorted by id.
func (r *AgentRegistry) List() []*AgentSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*AgentSpec, 0, len(r.agents))
	for _, spec := range r.agents {
		out = append(out, spec.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Names returns all agent ids sorted.
func (r *AgentRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.agents))
	for id := range r.agents {
		names = append(names, id)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered agents.
func (r *AgentRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
