package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/guildworks/guildhall/pkg/agent/prompt"
	"github.com/guildworks/guildhall/pkg/config"
	"github.com/guildworks/guildhall/pkg/cost"
	"github.com/guildworks/guildhall/pkg/llm"
)

// StreamSink receives response fragments as they arrive. A nil sink selects
// the blocking call path.
type StreamSink func(content string)

// Constraints are the caller-side knobs for one dispatch.
type Constraints struct {
	// Routing overrides model selection.
	Routing *RoutingOverride `json:"routing,omitempty"`

	// Extra is serialized into the user message verbatim.
	Extra map[string]any `json:"extra,omitempty"`
}

// TaskResult is the outcome of one successful dispatch.
type TaskResult struct {
	AgentID    string            `json:"agentId"`
	Task       string            `json:"task"`
	Output     string            `json:"output"`
	Parsed     *StructuredResult `json:"parsed,omitempty"`
	Provider   string            `json:"provider"`
	Model      string            `json:"model"`
	Tokens     cost.TokenUsage   `json:"tokens"`
	DurationMs int64             `json:"durationMs"`
}

// ChainInvoker is the provider-chain capability the dispatcher consumes.
// *llm.FallbackChain implements it; tests script it.
type ChainInvoker interface {
	Chat(ctx context.Context, candidates []llm.Candidate, req *llm.Request) (*llm.Response, error)
	Stream(ctx context.Context, candidates []llm.Candidate, req *llm.Request) (<-chan llm.Chunk, error)
}

// Dispatcher resolves one agent invocation end to end: prompt, routing,
// provider call, cost entry, structured-response parsing.
type Dispatcher struct {
	catalog   *config.AgentRegistry
	providers *config.ProviderRegistry
	chain     ChainInvoker
	tracker   *cost.Tracker
	prompts   *prompt.Builder
	parser    *ResponseParser
	logger    *slog.Logger
}

// NewDispatcher wires a dispatcher over the catalog, provider registry,
// fallback chain, and cost tracker.
func NewDispatcher(catalog *config.AgentRegistry, providers *config.ProviderRegistry, chain ChainInvoker, tracker *cost.Tracker, prompts *prompt.Builder) *Dispatcher {
	return &Dispatcher{
		catalog:   catalog,
		providers: providers,
		chain:     chain,
		tracker:   tracker,
		prompts:   prompts,
		parser:    NewResponseParser(),
		logger:    slog.Default().With("component", "dispatcher"),
	}
}

// Dispatch runs one task against one agent. A cost entry is recorded for
// every call that reaches a provider, success or failure. With a non-nil
// sink the response is streamed; otherwise the call blocks for the final
// response.
func (d *Dispatcher) Dispatch(ctx context.Context, agentID, task string, taskContext map[string]any, constraints *Constraints, sink StreamSink) (*TaskResult, error) {
	spec, err := d.catalog.Get(agentID)
	if err != nil {
		return nil, err
	}

	var routing *RoutingOverride
	var extra map[string]any
	if constraints != nil {
		routing = constraints.Routing
		extra = constraints.Extra
	}

	messages := d.prompts.BuildMessages(spec, task, taskContext, extra)
	promptText := joinedContent(messages)

	selected, complexity := selectCandidate(spec, task, promptText, routing)
	candidates, err := buildChain(spec, d.providers, selected, d.logger)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("Dispatching task",
		"agent_id", spec.ID,
		"complexity", complexity,
		"primary", candidates[0].String(),
		"candidates", len(candidates))

	req := &llm.Request{
		Messages:    messages,
		Temperature: spec.Routing.Temperature,
		MaxTokens:   spec.Routing.MaxTokens,
	}

	callCtx, cancel := context.WithTimeout(ctx, spec.Routing.TimeoutOrDefault())
	defer cancel()

	started := time.Now()
	provider, model := candidates[0].Provider, candidates[0].Model

	var output string
	var usage *llm.Usage
	var callErr error
	if sink == nil {
		var resp *llm.Response
		resp, callErr = d.chain.Chat(callCtx, candidates, req)
		if callErr == nil {
			output = resp.Content
			usage = resp.Usage
			provider, model = resp.Provider, resp.Model
		}
	} else {
		var served llm.Candidate
		output, usage, served, callErr = d.consumeStream(callCtx, candidates, req, sink)
		if served.Provider != "" {
			provider, model = served.Provider, served.Model
		}
	}
	durationMs := time.Since(started).Milliseconds()

	// Cost is recorded for failures too; failed calls still consumed tokens.
	tokens := tokenUsage(usage, promptText, output)
	d.tracker.Record(cost.RecordInput{
		AgentID:    spec.ID,
		Guild:      spec.Guild,
		Provider:   provider,
		Model:      model,
		Task:       task,
		Tokens:     tokens,
		DurationMs: durationMs,
		Success:    callErr == nil,
	})

	if callErr != nil {
		return nil, callErr
	}

	result := &TaskResult{
		AgentID:    spec.ID,
		Task:       task,
		Output:     output,
		Provider:   provider,
		Model:      model,
		Tokens:     tokens,
		DurationMs: durationMs,
	}
	if parsed, perr := d.parser.Parse(output); perr == nil {
		result.Parsed = parsed
	} else {
		d.logger.Debug("Response did not match the structured schema",
			"agent_id", spec.ID, "error", perr)
	}
	return result, nil
}

// consumeStream drains one streaming call, forwarding text fragments to the
// sink. The returned candidate is the one the chain's AttemptChunk named as
// actually serving; zero when nothing streamed. A terminal ErrorChunk
// becomes the call error.
func (d *Dispatcher) consumeStream(ctx context.Context, candidates []llm.Candidate, req *llm.Request, sink StreamSink) (string, *llm.Usage, llm.Candidate, error) {
	var served llm.Candidate

	stream, err := d.chain.Stream(ctx, candidates, req)
	if err != nil {
		return "", nil, served, err
	}

	var sb strings.Builder
	var usage *llm.Usage
	for chunk := range stream {
		switch c := chunk.(type) {
		case *llm.AttemptChunk:
			served = llm.Candidate{Provider: c.Provider, Model: c.Model}
		case *llm.TextChunk:
			sb.WriteString(c.Content)
			sink(c.Content)
		case *llm.UsageChunk:
			usage = &llm.Usage{
				InputTokens:  c.InputTokens,
				OutputTokens: c.OutputTokens,
				TotalTokens:  c.TotalTokens,
			}
		case *llm.ErrorChunk:
			if c.Code == "exhausted" {
				return sb.String(), usage, served, fmt.Errorf("%w: %s", llm.ErrProviderExhausted, c.Message)
			}
			return sb.String(), usage, served, fmt.Errorf("%w: %s", llm.ErrProvider, c.Message)
		}
	}
	if err := ctx.Err(); err != nil {
		return sb.String(), usage, served, err
	}
	return sb.String(), usage, served, nil
}

// tokenUsage converts provider-reported usage, falling back to a length
// estimate when the provider reported none.
func tokenUsage(usage *llm.Usage, promptText, output string) cost.TokenUsage {
	if usage != nil {
		total := usage.TotalTokens
		if total == 0 {
			total = usage.InputTokens + usage.OutputTokens
		}
		return cost.TokenUsage{
			Input:  usage.InputTokens,
			Output: usage.OutputTokens,
			Total:  total,
		}
	}
	in := llm.EstimateTokens(promptText)
	out := llm.EstimateTokens(output)
	return cost.TokenUsage{Input: in, Output: out, Total: in + out}
}

func joinedContent(messages []llm.Message) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n")
}
