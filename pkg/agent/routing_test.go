package agent

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildworks/guildhall/pkg/config"
	"github.com/guildworks/guildhall/pkg/llm"
)

func routingSpec() *config.AgentSpec {
	return &config.AgentSpec{
		ID:    "websmith",
		Guild: "artificers",
		Routing: config.RoutingConfig{
			LocalCandidates:  []string{"ollama:qwen2.5-coder", "ollama:llama3.1"},
			RemoteCandidates: []string{"openai:gpt-4o", "anthropic"},
			DefaultModel:     "ollama:qwen2.5-coder",
		},
	}
}

func routingProviders() *config.ProviderRegistry {
	return config.NewProviderRegistry(map[string]*config.ProviderConfig{
		"ollama":    {DefaultModel: "qwen2.5-coder", Models: []string{"qwen2.5-coder", "llama3.1"}, Local: true},
		"openai":    {DefaultModel: "gpt-4o", Models: []string{"gpt-4", "gpt-4o"}},
		"anthropic": {Kind: config.ProviderKindAnthropic, DefaultModel: "claude-sonnet-4-5"},
	})
}

func TestSelectCandidate(t *testing.T) {
	spec := routingSpec()

	t.Run("model override wins", func(t *testing.T) {
		selected, _ := selectCandidate(spec, "redesign everything", "", &RoutingOverride{Model: "openai:gpt-4"})
		assert.Equal(t, "openai:gpt-4", selected)
	})

	t.Run("preference picks first candidate of that kind", func(t *testing.T) {
		selected, _ := selectCandidate(spec, "redesign everything", "", &RoutingOverride{Preference: "local"})
		assert.Equal(t, "ollama:qwen2.5-coder", selected)

		selected, _ = selectCandidate(spec, "fix typo", "", &RoutingOverride{Preference: "remote"})
		assert.Equal(t, "openai:gpt-4o", selected)
	})

	t.Run("low complexity routes to first local", func(t *testing.T) {
		selected, complexity := selectCandidate(spec, "fix a typo", "", nil)
		assert.Equal(t, ComplexityLow, complexity)
		assert.Equal(t, "ollama:qwen2.5-coder", selected)
	})

	t.Run("high complexity routes to first remote", func(t *testing.T) {
		selected, complexity := selectCandidate(spec, "redesign the service architecture", "", nil)
		assert.Equal(t, ComplexityHigh, complexity)
		assert.Equal(t, "openai:gpt-4o", selected)
	})

	t.Run("medium complexity routes to the default", func(t *testing.T) {
		mid := strings.Repeat("neutral words here ", 40)
		selected, complexity := selectCandidate(spec, mid, "", nil)
		assert.Equal(t, ComplexityMedium, complexity)
		assert.Equal(t, "ollama:qwen2.5-coder", selected)
	})

	t.Run("complexity override forces the class", func(t *testing.T) {
		selected, complexity := selectCandidate(spec, "fix a typo", "", &RoutingOverride{Complexity: "high"})
		assert.Equal(t, ComplexityHigh, complexity)
		assert.Equal(t, "openai:gpt-4o", selected)
	})

	t.Run("no candidates of the preferred kind falls through", func(t *testing.T) {
		bare := &config.AgentSpec{ID: "bare", Routing: config.RoutingConfig{DefaultModel: "openai:gpt-4o"}}
		selected, _ := selectCandidate(bare, "fix a typo", "", &RoutingOverride{Preference: "local"})
		assert.Equal(t, "openai:gpt-4o", selected)
	})
}

func TestBuildChain(t *testing.T) {
	providers := routingProviders()
	logger := slog.Default()

	t.Run("selected first, then default, locals, remotes, deduped", func(t *testing.T) {
		chain, err := buildChain(routingSpec(), providers, "openai:gpt-4o", logger)
		require.NoError(t, err)

		assert.Equal(t, []llm.Candidate{
			{Provider: "openai", Model: "gpt-4o"},
			{Provider: "ollama", Model: "qwen2.5-coder"},
			{Provider: "ollama", Model: "llama3.1"},
			{Provider: "anthropic", Model: "claude-sonnet-4-5"},
		}, chain)
	})

	t.Run("bare provider candidates map to their default model", func(t *testing.T) {
		chain, err := buildChain(routingSpec(), providers, "anthropic", logger)
		require.NoError(t, err)
		assert.Equal(t, llm.Candidate{Provider: "anthropic", Model: "claude-sonnet-4-5"}, chain[0])
	})

	t.Run("unresolvable candidates are skipped", func(t *testing.T) {
		spec := routingSpec()
		spec.Routing.RemoteCandidates = []string{"made-up-model", "openai:gpt-4o"}
		chain, err := buildChain(spec, providers, "", logger)
		require.NoError(t, err)
		for _, cand := range chain {
			assert.NotEqual(t, "made-up-model", cand.Model)
		}
	})

	t.Run("nothing resolvable is a config error", func(t *testing.T) {
		spec := &config.AgentSpec{ID: "ghostly", Routing: config.RoutingConfig{DefaultModel: "no-such-model"}}
		_, err := buildChain(spec, providers, "", logger)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}
