package config

import (
	"sync"
)

// BuiltinConfig holds the built-in catalog: the fallback agent and the
// standard provider endpoints. User YAML overrides entries by id.
type BuiltinConfig struct {
	Agents    map[string]AgentSpec
	Providers map[string]ProviderConfig
}

var (
	builtinConfig     *BuiltinConfig
	builtinConfigOnce sync.Once
)

// GetBuiltinConfig returns the singleton built-in configuration
// (thread-safe, lazy-initialized).
func GetBuiltinConfig() *BuiltinConfig {
	builtinConfigOnce.Do(initBuiltinConfig)
	return builtinConfig
}

func initBuiltinConfig() {
	builtinConfig = &BuiltinConfig{
		Agents:    initBuiltinAgents(),
		Providers: initBuiltinProviders(),
	}
}

func initBuiltinAgents() map[string]AgentSpec {
	return map[string]AgentSpec{
		// svc is the general-purpose fallback agent; workflow steps with no
		// explicit agent prefix land here unless guildhall.yaml says otherwise.
		"svc": {
			Title: "Service Agent",
			Guild: "core",
			Responsibilities: []string{
				"Execute general development and operations tasks",
				"Summarize results clearly and concisely",
			},
			KPIs: []string{"correctness", "latency"},
			Routing: RoutingConfig{
				LocalCandidates:  []string{"ollama:qwen2.5-coder"},
				RemoteCandidates: []string{"openai", "anthropic"},
				DefaultModel:     "ollama:qwen2.5-coder",
			},
		},
	}
}

func initBuiltinProviders() map[string]ProviderConfig {
	return map[string]ProviderConfig{
		"ollama": {
			Kind:         ProviderKindOpenAIChat,
			BaseURL:      "http://localhost:11434/v1",
			DefaultModel: "qwen2.5-coder",
			Models:       []string{"qwen2.5-coder", "llama3.1", "mistral"},
			Local:        true,
		},
		"openai": {
			Kind:         ProviderKindOpenAIChat,
			BaseURL:      "https://api.openai.com/v1",
			APIKeyEnv:    "OPENAI_API_KEY",
			DefaultModel: "gpt-4o",
			Models:       []string{"gpt-4", "gpt-4o", "gpt-4o-mini"},
		},
		"gemini": {
			Kind:         ProviderKindOpenAIChat,
			BaseURL:      "https://generativelanguage.googleapis.com/v1beta/openai",
			APIKeyEnv:    "GEMINI_API_KEY",
			DefaultModel: "gemini-2.0-flash",
			Models:       []string{"gemini-2.0-flash", "gemini-2.5-pro"},
		},
		"anthropic": {
			Kind:         ProviderKindAnthropic,
			APIKeyEnv:    "ANTHROPIC_API_KEY",
			DefaultModel: "claude-sonnet-4-5",
			Models:       []string{"claude-sonnet-4-5", "claude-haiku-4-5"},
		},
	}
}
