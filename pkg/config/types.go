// Package config loads and validates the guildhall catalog: agent
// definitions with their model routing, provider endpoints, runtime limits,
// and notification settings. Registries built here are immutable after
// startup; the rest of the runtime only reads from them.
package config

import (
	"time"
)

// DefaultAgentTimeout bounds one dispatch when an agent specifies none.
const DefaultAgentTimeout = 30 * time.Second

// Generation defaults applied when an agent's routing leaves them unset.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2048
)

// ProviderKind selects the adapter used to talk to a provider endpoint.
type ProviderKind string

const (
	// ProviderKindOpenAIChat is any OpenAI-compatible chat completions
	// endpoint (OpenAI itself, Gemini's compatibility surface, ollama /v1).
	ProviderKindOpenAIChat ProviderKind = "openai-chat"

	// ProviderKindAnthropic is the Anthropic Messages API.
	ProviderKindAnthropic ProviderKind = "anthropic"
)

// IsValid reports whether the kind names a known adapter.
func (k ProviderKind) IsValid() bool {
	switch k {
	case ProviderKindOpenAIChat, ProviderKindAnthropic:
		return true
	}
	return false
}

// AgentSpec defines one guild agent: identity, prompt material, and the
// routing configuration the dispatcher uses to pick a model per request.
type AgentSpec struct {
	// ID is the stable agent identifier (the map key in guildhall.yaml).
	ID string `yaml:"-"`

	// Display title, e.g. "Frontend Websmith".
	Title string `yaml:"title"`

	// Guild groups agents for cost rollups.
	Guild string `yaml:"guild"`

	// Responsibility strings woven into the synthesized system prompt.
	Responsibilities []string `yaml:"responsibilities,omitempty"`

	// KPI labels the agent is asked to optimize for.
	KPIs []string `yaml:"kpis,omitempty"`

	// Routing selects models for this agent's requests.
	Routing RoutingConfig `yaml:"routing"`

	// SystemPrompt overrides the synthesized default when set.
	SystemPrompt string `yaml:"system_prompt,omitempty"`

	// Guidelines are appended to the system prompt as a "Guidelines:" block.
	Guidelines []string `yaml:"guidelines,omitempty"`

	// Examples are few-shot pairs included as prior conversation turns.
	Examples []ExamplePair `yaml:"examples,omitempty"`
}

// ExamplePair is one few-shot user/assistant exchange.
type ExamplePair struct {
	User      string `yaml:"user"`
	Assistant string `yaml:"assistant"`
}

// RoutingConfig is an agent's model selection configuration.
// Candidate strings take three forms: "provider:model", a bare model name
// (looked up in provider model lists), or a bare provider name (resolved to
// that provider's default model).
type RoutingConfig struct {
	// LocalCandidates are tried for low-complexity requests, in order.
	LocalCandidates []string `yaml:"local_candidates,omitempty"`

	// RemoteCandidates are tried for high-complexity requests, in order.
	RemoteCandidates []string `yaml:"remote_candidates,omitempty"`

	// DefaultModel handles medium complexity and heads the fallback chain.
	DefaultModel string `yaml:"default_model,omitempty"`

	// Temperature for generation; 0 means "use the default".
	Temperature float32 `yaml:"temperature,omitempty"`

	// MaxTokens caps the response length; 0 means "use the default".
	MaxTokens int `yaml:"max_tokens,omitempty"`

	// Timeout bounds one dispatch, e.g. "45s". Empty means the 30s default.
	Timeout string `yaml:"timeout,omitempty"`

	// Policy tunes the complexity estimator for this agent.
	Policy *RoutingPolicy `yaml:"policy,omitempty"`
}

// TimeoutOrDefault parses the configured timeout, falling back to
// DefaultAgentTimeout when unset. Malformed values are rejected by the
// validator, so parse failures here also yield the default.
func (r RoutingConfig) TimeoutOrDefault() time.Duration {
	if r.Timeout == "" {
		return DefaultAgentTimeout
	}
	d, err := time.ParseDuration(r.Timeout)
	if err != nil || d <= 0 {
		return DefaultAgentTimeout
	}
	return d
}

// RoutingPolicy holds per-agent complexity estimator overrides.
type RoutingPolicy struct {
	// LowWordMax is the word count under which a task is "low" (default 80).
	LowWordMax int `yaml:"low_word_max,omitempty"`

	// HighWordMin is the word count over which a task is "high" (default 300).
	HighWordMin int `yaml:"high_word_min,omitempty"`

	// Keyword hints that force local/remote preference when present.
	PreferLocalKeywords  []string `yaml:"prefer_local_keywords,omitempty"`
	PreferRemoteKeywords []string `yaml:"prefer_remote_keywords,omitempty"`
}

// ProviderConfig describes one model provider endpoint.
type ProviderConfig struct {
	// Name is the registry key (the map key in providers.yaml).
	Name string `yaml:"-"`

	// Kind selects the adapter; defaults to openai-chat.
	Kind ProviderKind `yaml:"kind,omitempty"`

	// BaseURL of the endpoint; empty uses the SDK default.
	BaseURL string `yaml:"base_url,omitempty"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env,omitempty"`

	// DefaultModel is used when a candidate names only the provider.
	DefaultModel string `yaml:"default_model,omitempty"`

	// Models this provider serves; used to resolve bare model candidates.
	Models []string `yaml:"models,omitempty"`

	// Local marks zero-cost in-house endpoints (ollama). Local providers
	// are searched first when resolving bare model candidates.
	Local bool `yaml:"local,omitempty"`
}

// Limits holds the runtime capacity knobs from guildhall.yaml.
type Limits struct {
	MaxStoredPlans int `yaml:"max_stored_plans,omitempty"`
	MaxCostEntries int `yaml:"max_cost_entries,omitempty"`
	ExampleMaxLen  int `yaml:"example_max_len,omitempty"`
}

// SlackConfig holds the optional plan-completion notifier settings.
type SlackConfig struct {
	Enabled  *bool  `yaml:"enabled,omitempty"`
	TokenEnv string `yaml:"token_env,omitempty"` // Defaults to "SLACK_BOT_TOKEN" if omitted
	Channel  string `yaml:"channel,omitempty"`
}

// IsEnabled reports whether notifications are switched on.
func (s SlackConfig) IsEnabled() bool {
	return s.Enabled != nil && *s.Enabled
}

// Defaults holds system-wide fallbacks applied to agents that leave the
// corresponding routing fields unset.
type Defaults struct {
	// DefaultAgent handles workflow steps with no explicit agent prefix.
	DefaultAgent string `yaml:"default_agent,omitempty"`

	Temperature float32 `yaml:"temperature,omitempty"`
	MaxTokens   int     `yaml:"max_tokens,omitempty"`
	Timeout     string  `yaml:"timeout,omitempty"`
}

// clone returns a deep copy so registry consumers cannot mutate shared state.
func (a *AgentSpec) clone() *AgentSpec {
	if a == nil {
		return nil
	}
	out := *a
	out.Responsibilities = append([]string(nil), a.Responsibilities...)
	out.KPIs = append([]string(nil), a.KPIs...)
	out.Guidelines = append([]string(nil), a.Guidelines...)
	out.Examples = append([]ExamplePair(nil), a.Examples...)
	out.Routing = a.Routing.clone()
	return &out
}

func (r RoutingConfig) clone() RoutingConfig {
	out := r
	out.LocalCandidates = append([]string(nil), r.LocalCandidates...)
	out.RemoteCandidates = append([]string(nil), r.RemoteCandidates...)
	if r.Policy != nil {
		policy := *r.Policy
		policy.PreferLocalKeywords = append([]string(nil), r.Policy.PreferLocalKeywords...)
		policy.PreferRemoteKeywords = append([]string(nil), r.Policy.PreferRemoteKeywords...)
		out.Policy = &policy
	}
	return out
}

func (p *ProviderConfig) clone() *ProviderConfig {
	if p == nil {
		return nil
	}
	out := *p
	out.Models = append([]string(nil), p.Models...)
	return &out
}
