// Package prompt composes the conversation sent to a provider for one
// dispatch: the agent's system message, sanitized few-shot examples, and
// the user message carrying the task, its context, and the response-format
// instruction.
package prompt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/guildworks/guildhall/pkg/config"
	"github.com/guildworks/guildhall/pkg/llm"
)

// DefaultExampleMaxLen bounds one few-shot example side before a warning is
// logged. Oversized examples are kept; the warning flags prompt bloat.
const DefaultExampleMaxLen = 1200

// ResponseFormatInstruction is appended to every user message so replies can
// be parsed into the structured task result.
const ResponseFormatInstruction = `Respond with a single JSON object of the form:
{"description": "<one-line summary>", "steps": ["<step>", ...], "estimatedComplexity": "low|medium|high"}`

// Builder composes conversations for agent dispatches. Stateless apart from
// configuration; safe for concurrent use.
type Builder struct {
	exampleMaxLen int
	logger        *slog.Logger
}

// NewBuilder creates a Builder. exampleMaxLen <= 0 selects the default.
func NewBuilder(exampleMaxLen int) *Builder {
	if exampleMaxLen <= 0 {
		exampleMaxLen = DefaultExampleMaxLen
	}
	return &Builder{
		exampleMaxLen: exampleMaxLen,
		logger:        slog.Default().With("component", "prompt-builder"),
	}
}

// BuildMessages builds the full conversation for one dispatch: system
// message, few-shot example turns, then the user message.
func (b *Builder) BuildMessages(spec *config.AgentSpec, task string, taskContext, constraints map[string]any) []llm.Message {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: b.SystemPrompt(spec)},
	}

	for _, pair := range b.sanitizeExamples(spec) {
		messages = append(messages,
			llm.Message{Role: llm.RoleUser, Content: pair.User},
			llm.Message{Role: llm.RoleAssistant, Content: pair.Assistant},
		)
	}

	messages = append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: b.userMessage(task, taskContext, constraints),
	})
	return messages
}

// SystemPrompt returns the agent's system message: the configured prompt
// when set, otherwise a default synthesized from title, responsibilities,
// and KPIs. Style guidelines are appended either way.
func (b *Builder) SystemPrompt(spec *config.AgentSpec) string {
	var sb strings.Builder

	if spec.SystemPrompt != "" {
		sb.WriteString(spec.SystemPrompt)
	} else {
		title := spec.Title
		if title == "" {
			title = spec.ID
		}
		fmt.Fprintf(&sb, "You are %s", title)
		if spec.Guild != "" {
			fmt.Fprintf(&sb, ", a member of the %s guild", spec.Guild)
		}
		sb.WriteString(".")

		if len(spec.Responsibilities) > 0 {
			sb.WriteString("\n\nYour responsibilities:")
			for _, r := range spec.Responsibilities {
				sb.WriteString("\n- " + r)
			}
		}
		if len(spec.KPIs) > 0 {
			sb.WriteString("\n\nOptimize for: " + strings.Join(spec.KPIs, ", ") + ".")
		}
		sb.WriteString("\n\nComplete the task you are given and report the result precisely.")
	}

	if len(spec.Guidelines) > 0 {
		sb.WriteString("\n\nGuidelines:")
		for _, g := range spec.Guidelines {
			sb.WriteString("\n- " + g)
		}
	}

	return sb.String()
}

// sanitizeExamples drops pairs with an empty side and warns on oversized
// ones so misconfigured catalogs are visible in the logs.
func (b *Builder) sanitizeExamples(spec *config.AgentSpec) []config.ExamplePair {
	out := make([]config.ExamplePair, 0, len(spec.Examples))
	for i, pair := range spec.Examples {
		if strings.TrimSpace(pair.User) == "" || strings.TrimSpace(pair.Assistant) == "" {
			b.logger.Warn("Dropping few-shot example with empty side",
				"agent_id", spec.ID, "example", i)
			continue
		}
		if len(pair.User) > b.exampleMaxLen || len(pair.Assistant) > b.exampleMaxLen {
			b.logger.Warn("Few-shot example exceeds configured length",
				"agent_id", spec.ID, "example", i, "max_len", b.exampleMaxLen)
		}
		out = append(out, pair)
	}
	return out
}

// userMessage renders the task plus serialized context and constraints,
// terminated by the response-format instruction.
func (b *Builder) userMessage(task string, taskContext, constraints map[string]any) string {
	var sb strings.Builder
	sb.WriteString(task)

	if block := jsonBlock(taskContext); block != "" {
		sb.WriteString("\n\nContext:\n" + block)
	}
	if block := jsonBlock(constraints); block != "" {
		sb.WriteString("\n\nConstraints:\n" + block)
	}

	sb.WriteString("\n\n" + ResponseFormatInstruction)
	return sb.String()
}

func jsonBlock(m map[string]any) string {
	if len(m) == 0 {
		return ""
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", m)
	}
	return string(data)
}
