package llm

import (
	"fmt"
	"sort"
	"sync"
)

// ClientRegistry holds the constructed provider clients keyed by provider
// name. It is populated once at startup and read-only afterwards; the lock
// exists so misuse is harmless rather than a data race.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]ProviderClient
}

// NewClientRegistry creates a registry from the given clients. Later clients
// with a duplicate name replace earlier ones.
func NewClientRegistry(clients ...ProviderClient) *ClientRegistry {
	m := make(map[string]ProviderClient, len(clients))
	for _, c := range clients {
		m[c.Name()] = c
	}
	return &ClientRegistry{clients: m}
}

// Get returns the client for the given provider name.
func (r *ClientRegistry) Get(name string) (ProviderClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return c, nil
}

// Has reports whether a provider with the given name is registered.
func (r *ClientRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.clients[name]
	return ok
}

// Names returns the sorted provider names.
func (r *ClientRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered providers.
func (r *ClientRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.clients)
}
