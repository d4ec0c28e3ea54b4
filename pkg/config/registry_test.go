package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProviders() map[string]*ProviderConfig {
	return map[string]*ProviderConfig{
		"ollama": {
			Kind:         ProviderKindOpenAIChat,
			DefaultModel: "qwen2.5-coder",
			Models:       []string{"qwen2.5-coder", "llama3.1"},
			Local:        true,
		},
		"openai": {
			Kind:         ProviderKindOpenAIChat,
			DefaultModel: "gpt-4o",
			Models:       []string{"gpt-4", "gpt-4o"},
		},
		"anthropic": {
			Kind:         ProviderKindAnthropic,
			DefaultModel: "claude-sonnet-4-5",
			Models:       []string{"claude-sonnet-4-5", "qwen2.5-coder"},
		},
	}
}

func TestAgentRegistry(t *testing.T) {
	registry := NewAgentRegistry(map[string]*AgentSpec{
		"websmith": {
			Title:   "Frontend Websmith",
			Guild:   "artificers",
			Routing: RoutingConfig{DefaultModel: "ollama:qwen2.5-coder"},
		},
	})

	t.Run("get fills the id from the map key", func(t *testing.T) {
		spec, err := registry.Get("websmith")
		require.NoError(t, err)
		assert.Equal(t, "websmith", spec.ID)
	})

	t.Run("unknown agent", func(t *testing.T) {
		_, err := registry.Get("stranger")
		assert.ErrorIs(t, err, ErrAgentNotFound)
	})

	t.Run("callers get defensive copies", func(t *testing.T) {
		spec, err := registry.Get("websmith")
		require.NoError(t, err)
		spec.Title = "Mutated"
		spec.Routing.LocalCandidates = append(spec.Routing.LocalCandidates, "garage:model")

		again, err := registry.Get("websmith")
		require.NoError(t, err)
		assert.Equal(t, "Frontend Websmith", again.Title)
		assert.Empty(t, again.Routing.LocalCandidates)
	})

	t.Run("list is sorted by id", func(t *testing.T) {
		r := NewAgentRegistry(map[string]*AgentSpec{
			"zeta": {Title: "Z"}, "alpha": {Title: "A"},
		})
		list := r.List()
		require.Len(t, list, 2)
		assert.Equal(t, "alpha", list[0].ID)
		assert.Equal(t, []string{"alpha", "zeta"}, r.Names())
	})
}

func TestProviderRegistry(t *testing.T) {
	registry := NewProviderRegistry(testProviders())

	t.Run("get and has", func(t *testing.T) {
		p, err := registry.Get("ollama")
		require.NoError(t, err)
		assert.Equal(t, "ollama", p.Name)
		assert.True(t, registry.Has("openai"))

		_, err = registry.Get("ghost")
		assert.ErrorIs(t, err, ErrProviderNotFound)
	})

	t.Run("empty kind defaults to openai-chat", func(t *testing.T) {
		r := NewProviderRegistry(map[string]*ProviderConfig{"bare": {DefaultModel: "m"}})
		p, err := r.Get("bare")
		require.NoError(t, err)
		assert.Equal(t, ProviderKindOpenAIChat, p.Kind)
	})

	t.Run("callers get defensive copies", func(t *testing.T) {
		p, err := registry.Get("ollama")
		require.NoError(t, err)
		p.Models[0] = "mutated"

		again, err := registry.Get("ollama")
		require.NoError(t, err)
		assert.Equal(t, "qwen2.5-coder", again.Models[0])
	})
}

func TestResolveCandidate(t *testing.T) {
	registry := NewProviderRegistry(testProviders())

	t.Run("explicit provider:model", func(t *testing.T) {
		provider, model, err := registry.ResolveCandidate("openai:gpt-4")
		require.NoError(t, err)
		assert.Equal(t, "openai", provider)
		assert.Equal(t, "gpt-4", model)
	})

	t.Run("explicit form may name models outside the list", func(t *testing.T) {
		provider, model, err := registry.ResolveCandidate("openai:gpt-4.1-nano")
		require.NoError(t, err)
		assert.Equal(t, "openai", provider)
		assert.Equal(t, "gpt-4.1-nano", model)
	})

	t.Run("explicit form with unknown provider fails", func(t *testing.T) {
		_, _, err := registry.ResolveCandidate("ghost:model-x")
		assert.ErrorIs(t, err, ErrProviderNotFound)
	})

	t.Run("bare provider resolves to its default model", func(t *testing.T) {
		provider, model, err := registry.ResolveCandidate("anthropic")
		require.NoError(t, err)
		assert.Equal(t, "anthropic", provider)
		assert.Equal(t, "claude-sonnet-4-5", model)
	})

	t.Run("bare model prefers local providers", func(t *testing.T) {
		// qwen2.5-coder is served by both ollama (local) and anthropic here.
		provider, model, err := registry.ResolveCandidate("qwen2.5-coder")
		require.NoError(t, err)
		assert.Equal(t, "ollama", provider)
		assert.Equal(t, "qwen2.5-coder", model)
	})

	t.Run("bare model found only remotely", func(t *testing.T) {
		provider, _, err := registry.ResolveCandidate("gpt-4")
		require.NoError(t, err)
		assert.Equal(t, "openai", provider)
	})

	t.Run("unresolvable tokens fail", func(t *testing.T) {
		_, _, err := registry.ResolveCandidate("made-up-model")
		assert.ErrorIs(t, err, ErrUnknownCandidate)

		_, _, err = registry.ResolveCandidate("")
		assert.ErrorIs(t, err, ErrUnknownCandidate)

		_, _, err = registry.ResolveCandidate("openai:")
		assert.ErrorIs(t, err, ErrUnknownCandidate)
	})
}
