// Package cost tracks per-call token usage and money spent on model
// providers. A static pricing table maps (provider, model) to per-1K USD
// rates; the tracker keeps a bounded ring of immutable entries and answers
// aggregation queries over it.
package cost

import (
	"log/slog"
	"strings"
)

// Pricing is the per-1K-token USD rate pair for one provider or model.
type Pricing struct {
	InputPer1K  float64 `yaml:"input_per_1k"`
	OutputPer1K float64 `yaml:"output_per_1k"`
}

// zeroCostKey is the terminal fallback for pricing resolution. Local models
// served by an ollama daemon cost nothing.
const zeroCostKey = "ollama"

// builtinPricing ships rates for the standard providers. Model-level keys win
// over provider-level keys; user config may override either.
var builtinPricing = map[string]Pricing{
	"openai:gpt-4":                {InputPer1K: 0.03, OutputPer1K: 0.06},
	"openai:gpt-4o":               {InputPer1K: 0.0025, OutputPer1K: 0.01},
	"openai:gpt-4o-mini":          {InputPer1K: 0.00015, OutputPer1K: 0.0006},
	"openai":                      {InputPer1K: 0.0025, OutputPer1K: 0.01},
	"gemini:gemini-2.0-flash":     {InputPer1K: 0.0005, OutputPer1K: 0.0005},
	"gemini:gemini-2.5-pro":       {InputPer1K: 0.00125, OutputPer1K: 0.01},
	"gemini":                      {InputPer1K: 0.0005, OutputPer1K: 0.0005},
	"anthropic:claude-sonnet-4-5": {InputPer1K: 0.003, OutputPer1K: 0.015},
	"anthropic:claude-haiku-4-5":  {InputPer1K: 0.001, OutputPer1K: 0.005},
	"anthropic":                   {InputPer1K: 0.003, OutputPer1K: 0.015},
	"ollama":                      {InputPer1K: 0, OutputPer1K: 0},
}

// PricingTable resolves per-1K rates for (provider, model) pairs.
// Immutable after construction; safe for concurrent reads.
type PricingTable struct {
	entries map[string]Pricing
	logger  *slog.Logger
}

// NewPricingTable builds a table from the built-in rates plus user overrides.
// Override keys are "provider" or "provider:model", matched case-insensitively.
func NewPricingTable(overrides map[string]Pricing) *PricingTable {
	entries := make(map[string]Pricing, len(builtinPricing)+len(overrides))
	for k, v := range builtinPricing {
		entries[strings.ToLower(k)] = v
	}
	for k, v := range overrides {
		entries[strings.ToLower(k)] = v
	}
	return &PricingTable{
		entries: entries,
		logger:  slog.Default().With("component", "pricing"),
	}
}

// Resolve returns the pricing entry for a (provider, model) pair.
// Lookup order: "provider:model", then "provider", then the zero-cost entry.
func (t *PricingTable) Resolve(provider, model string) Pricing {
	provider = strings.ToLower(provider)
	model = strings.ToLower(model)

	if model != "" {
		if p, ok := t.entries[provider+":"+model]; ok {
			return p
		}
	}
	if p, ok := t.entries[provider]; ok {
		return p
	}

	t.logger.Warn("No pricing entry for provider, assuming zero cost",
		"provider", provider, "model", model)
	return t.entries[zeroCostKey]
}

// Cost computes the USD cost of a call per the resolved entry:
// (input/1000)·inputPer1K + (output/1000)·outputPer1K.
func (t *PricingTable) Cost(provider, model string, inputTokens, outputTokens int) float64 {
	p := t.Resolve(provider, model)
	return float64(inputTokens)/1000*p.InputPer1K + float64(outputTokens)/1000*p.OutputPer1K
}
