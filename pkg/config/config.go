package config

import (
	"github.com/guildworks/guildhall/pkg/cost"
)

// Config is the umbrella configuration object returned by Initialize().
// It holds the read-only registries, runtime limits, and notifier settings
// the composition root wires into the rest of the runtime.
type Config struct {
	configDir string // Configuration directory path (for reference)

	// System-wide defaults (default agent, generation fallbacks)
	Defaults Defaults

	// Runtime capacity limits
	Limits Limits

	// Optional plan-completion notifier settings
	Slack SlackConfig

	// Pricing overrides merged over the built-in table
	Pricing map[string]cost.Pricing

	// Component registries
	AgentRegistry    *AgentRegistry
	ProviderRegistry *ProviderRegistry
}

// Stats contains statistics about loaded configuration
type Stats struct {
	Agents    int
	Providers int
}

// Stats returns configuration statistics for logging/monitoring
func (c *Config) Stats() Stats {
	s := Stats{}
	if c.AgentRegistry != nil {
		s.Agents = c.AgentRegistry.Len()
	}
	if c.ProviderRegistry != nil {
		s.Providers = c.ProviderRegistry.Len()
	}
	return s
}

// ConfigDir returns the configuration directory path
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetAgent retrieves an agent by id.
// Convenience wrapper around AgentRegistry.Get().
func (c *Config) GetAgent(id string) (*AgentSpec, error) {
	return c.AgentRegistry.Get(id)
}

// GetProvider retrieves a provider by name.
// Convenience wrapper around ProviderRegistry.Get().
func (c *Config) GetProvider(name string) (*ProviderConfig, error) {
	return c.ProviderRegistry.Get(name)
}

// DefaultAgent returns the agent id that handles workflow steps without an
// explicit agent prefix.
func (c *Config) DefaultAgent() string {
	if c.Defaults.DefaultAgent != "" {
		return c.Defaults.DefaultAgent
	}
	return "svc"
}
