package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildworks/guildhall/pkg/config"
	"github.com/guildworks/guildhall/pkg/llm"
)

func testSpec() *config.AgentSpec {
	return &config.AgentSpec{
		ID:               "websmith",
		Title:            "Frontend Websmith",
		Guild:            "artificers",
		Responsibilities: []string{"Build user interfaces", "Review component designs"},
		KPIs:             []string{"accessibility", "bundle size"},
	}
}

func TestSystemPrompt(t *testing.T) {
	b := NewBuilder(0)

	t.Run("synthesized from identity fields", func(t *testing.T) {
		got := b.SystemPrompt(testSpec())
		assert.Contains(t, got, "You are Frontend Websmith, a member of the artificers guild.")
		assert.Contains(t, got, "- Build user interfaces")
		assert.Contains(t, got, "Optimize for: accessibility, bundle size.")
	})

	t.Run("configured prompt wins", func(t *testing.T) {
		spec := testSpec()
		spec.SystemPrompt = "You are a terse reviewer."
		got := b.SystemPrompt(spec)
		assert.True(t, strings.HasPrefix(got, "You are a terse reviewer."))
		assert.NotContains(t, got, "responsibilities")
	})

	t.Run("guidelines appended in both modes", func(t *testing.T) {
		spec := testSpec()
		spec.Guidelines = []string{"Prefer small diffs"}
		assert.Contains(t, b.SystemPrompt(spec), "Guidelines:\n- Prefer small diffs")

		spec.SystemPrompt = "Custom."
		assert.Contains(t, b.SystemPrompt(spec), "Guidelines:\n- Prefer small diffs")
	})

	t.Run("falls back to id without a title", func(t *testing.T) {
		spec := &config.AgentSpec{ID: "svc"}
		assert.Contains(t, b.SystemPrompt(spec), "You are svc.")
	})
}

func TestBuildMessages(t *testing.T) {
	b := NewBuilder(0)

	t.Run("shape is system, examples, user", func(t *testing.T) {
		spec := testSpec()
		spec.Examples = []config.ExamplePair{
			{User: "add a button", Assistant: `{"description":"add button","steps":["edit"],"estimatedComplexity":"low"}`},
		}

		messages := b.BuildMessages(spec, "build the nav bar", nil, nil)
		require.Len(t, messages, 4)
		assert.Equal(t, llm.RoleSystem, messages[0].Role)
		assert.Equal(t, llm.RoleUser, messages[1].Role)
		assert.Equal(t, "add a button", messages[1].Content)
		assert.Equal(t, llm.RoleAssistant, messages[2].Role)
		assert.Equal(t, llm.RoleUser, messages[3].Role)
		assert.Contains(t, messages[3].Content, "build the nav bar")
	})

	t.Run("empty example sides are dropped", func(t *testing.T) {
		spec := testSpec()
		spec.Examples = []config.ExamplePair{
			{User: "", Assistant: "answer"},
			{User: "question", Assistant: "  "},
			{User: "kept", Assistant: "kept too"},
		}
		messages := b.BuildMessages(spec, "task", nil, nil)
		require.Len(t, messages, 4, "only the complete pair survives")
		assert.Equal(t, "kept", messages[1].Content)
	})

	t.Run("oversized examples are kept", func(t *testing.T) {
		b := NewBuilder(10)
		spec := testSpec()
		spec.Examples = []config.ExamplePair{
			{User: strings.Repeat("x", 50), Assistant: "short"},
		}
		messages := b.BuildMessages(spec, "task", nil, nil)
		require.Len(t, messages, 4)
	})

	t.Run("user message carries context, constraints, and format instruction", func(t *testing.T) {
		messages := b.BuildMessages(testSpec(), "deploy the site",
			map[string]any{"branch": "main"},
			map[string]any{"budget": "low"})

		last := messages[len(messages)-1].Content
		assert.True(t, strings.HasPrefix(last, "deploy the site"))
		assert.Contains(t, last, "Context:")
		assert.Contains(t, last, `"branch": "main"`)
		assert.Contains(t, last, "Constraints:")
		assert.Contains(t, last, `"budget": "low"`)
		assert.True(t, strings.HasSuffix(last, ResponseFormatInstruction))
	})

	t.Run("no context blocks when maps are empty", func(t *testing.T) {
		messages := b.BuildMessages(testSpec(), "task", nil, map[string]any{})
		last := messages[len(messages)-1].Content
		assert.NotContains(t, last, "Context:")
		assert.NotContains(t, last, "Constraints:")
	})
}
