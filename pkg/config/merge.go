package config

import (
	"dario.cat/mergo"
)

// mergeAgents merges built-in and user-defined agents.
// User-defined agents override built-in agents with the same id.
func mergeAgents(builtinAgents map[string]AgentSpec, userAgents map[string]AgentSpec) map[string]*AgentSpec {
	result := make(map[string]*AgentSpec, len(builtinAgents)+len(userAgents))

	for id, spec := range builtinAgents {
		specCopy := spec
		result[id] = &specCopy
	}
	for id, spec := range userAgents {
		specCopy := spec
		result[id] = &specCopy
	}

	return result
}

// mergeProviders merges built-in and user-defined providers.
// User-defined providers override built-in providers with the same name.
func mergeProviders(builtinProviders map[string]ProviderConfig, userProviders map[string]ProviderConfig) map[string]*ProviderConfig {
	result := make(map[string]*ProviderConfig, len(builtinProviders)+len(userProviders))

	for name, provider := range builtinProviders {
		providerCopy := provider
		result[name] = &providerCopy
	}
	for name, provider := range userProviders {
		providerCopy := provider
		result[name] = &providerCopy
	}

	return result
}

// mergeLimits fills unset user limits from the defaults.
func mergeLimits(user *Limits) Limits {
	limits := Limits{}
	if user != nil {
		limits = *user
	}
	defaults := Limits{
		MaxStoredPlans: 100,
		MaxCostEntries: 10000,
		ExampleMaxLen:  1200,
	}
	// mergo fills only zero-valued fields, so user values win.
	_ = mergo.Merge(&limits, defaults)
	return limits
}

// applyAgentDefaults fills unset routing fields from the system defaults.
func applyAgentDefaults(agents map[string]*AgentSpec, defaults Defaults) {
	fallback := RoutingConfig{
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
	if defaults.Temperature != 0 {
		fallback.Temperature = defaults.Temperature
	}
	if defaults.MaxTokens != 0 {
		fallback.MaxTokens = defaults.MaxTokens
	}
	if defaults.Timeout != "" {
		fallback.Timeout = defaults.Timeout
	}

	for _, spec := range agents {
		if spec.Routing.Temperature == 0 {
			spec.Routing.Temperature = fallback.Temperature
		}
		if spec.Routing.MaxTokens == 0 {
			spec.Routing.MaxTokens = fallback.MaxTokens
		}
		if spec.Routing.Timeout == "" {
			spec.Routing.Timeout = fallback.Timeout
		}
	}
}
