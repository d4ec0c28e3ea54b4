package config

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ProviderRegistry is the read-only provider catalog. Besides lookups it
// resolves routing candidate strings to concrete (provider, model) pairs.
type ProviderRegistry struct {
	providers map[string]*ProviderConfig
	mu        sync.RWMutex
}

// NewProviderRegistry creates a registry over the given provider map.
func NewProviderRegistry(providers map[string]*ProviderConfig) *ProviderRegistry {
	copied := make(map[string]*ProviderConfig, len(providers))
	for name, p := range providers {
		c := p.clone()
		c.Name = name
		if c.Kind == "" {
			c.Kind = ProviderKindOpenAIChat
		}
		copied[name] = c
	}
	return &ProviderRegistry{providers: copied}
}

// Get retrieves a provider by name.
func (r *ProviderRegistry) Get(name string) (*ProviderConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.providers[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	return p.clone(), nil
}

// Has reports whether a provider with the given name exists.
func (r *ProviderRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.providers[name]
	return exists
}

// GetAll returns all providers as defensive copies.
func (r *ProviderRegistry) GetAll() map[string]*ProviderConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*ProviderConfig, len(r.providers))
	for name, p := range r.providers {
		result[name] = p.clone()
	}
	return result
}

// Names returns all provider names sorted.
func (r *ProviderRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered providers.
func (r *ProviderRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// ResolveCandidate maps a routing candidate string to a (provider, model)
// pair. Three forms are accepted:
//
//   - "provider:model" — explicit; the provider must be registered
//   - "model" — searched in provider model lists, local providers first
//   - "provider" — that provider's default model
//
// Anything else fails with ErrUnknownCandidate.
func (r *ProviderRegistry) ResolveCandidate(candidate string) (provider, model string, err error) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return "", "", fmt.Errorf("%w: empty candidate", ErrUnknownCandidate)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if name, m, found := strings.Cut(candidate, ":"); found {
		if _, exists := r.providers[name]; !exists {
			return "", "", fmt.Errorf("%w: provider %q in candidate %q", ErrProviderNotFound, name, candidate)
		}
		if m == "" {
			return "", "", fmt.Errorf("%w: candidate %q names no model", ErrUnknownCandidate, candidate)
		}
		return name, m, nil
	}

	// Bare provider name resolves to its default model.
	if p, exists := r.providers[candidate]; exists {
		if p.DefaultModel == "" {
			return "", "", fmt.Errorf("%w: provider %q has no default model", ErrUnknownCandidate, candidate)
		}
		return candidate, p.DefaultModel, nil
	}

	// Bare model name: search model lists, local providers first so that a
	// model served both locally and remotely prefers the local endpoint.
	for _, p := range r.ordered() {
		for _, m := range p.Models {
			if m == candidate {
				return p.Name, candidate, nil
			}
		}
	}

	return "", "", fmt.Errorf("%w: %q matches no provider or model", ErrUnknownCandidate, candidate)
}

// ordered returns providers sorted by name with local providers first.
// Callers must hold the read lock.
func (r *ProviderRegistry) ordered() []*ProviderConfig {
	out := make([]*ProviderConfig, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Local != out[j].Local {
			return out[i].Local
		}
		return out[i].Name < out[j].Name
	})
	return out
}
