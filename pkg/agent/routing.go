package agent

import (
	"fmt"
	"log/slog"

	"github.com/guildworks/guildhall/pkg/config"
	"github.com/guildworks/guildhall/pkg/llm"
)

// RoutingOverride carries caller-side routing constraints for one dispatch.
type RoutingOverride struct {
	// Model pins an exact candidate ("provider:model", bare model, or
	// bare provider); it wins over everything else.
	Model string `json:"model,omitempty"`

	// Preference selects the first candidate of one kind: "local"/"remote".
	Preference string `json:"preference,omitempty"`

	// Complexity forces the estimator's class: "low"/"medium"/"high".
	Complexity string `json:"complexity,omitempty"`
}

// selectCandidate picks the primary routing candidate token for one request.
// Caller override wins, then kind preference, then complexity routing.
func selectCandidate(spec *config.AgentSpec, task, prompt string, override *RoutingOverride) (string, Complexity) {
	r := spec.Routing

	var forced Complexity
	if override != nil {
		if override.Model != "" {
			return override.Model, ""
		}
		switch override.Preference {
		case "local":
			if len(r.LocalCandidates) > 0 {
				return r.LocalCandidates[0], ""
			}
		case "remote":
			if len(r.RemoteCandidates) > 0 {
				return r.RemoteCandidates[0], ""
			}
		}
		forced = Complexity(override.Complexity)
	}

	complexity := Estimate(task, prompt, r.Policy, forced)
	switch {
	case complexity == ComplexityLow && len(r.LocalCandidates) > 0:
		return r.LocalCandidates[0], complexity
	case complexity == ComplexityHigh && len(r.RemoteCandidates) > 0:
		return r.RemoteCandidates[0], complexity
	case r.DefaultModel != "":
		return r.DefaultModel, complexity
	case len(r.LocalCandidates) > 0:
		return r.LocalCandidates[0], complexity
	case len(r.RemoteCandidates) > 0:
		return r.RemoteCandidates[0], complexity
	}
	return "", complexity
}

// buildChain resolves the ordered fallback chain for one dispatch: the
// selected candidate first, then the default model, remaining local
// candidates, and remote candidates, de-duplicated in order. Unresolvable
// tokens are logged and skipped; an empty result is a configuration error.
func buildChain(spec *config.AgentSpec, providers *config.ProviderRegistry, selected string, logger *slog.Logger) ([]llm.Candidate, error) {
	r := spec.Routing

	tokens := make([]string, 0, len(r.LocalCandidates)+len(r.RemoteCandidates)+2)
	if selected != "" {
		tokens = append(tokens, selected)
	}
	if r.DefaultModel != "" {
		tokens = append(tokens, r.DefaultModel)
	}
	tokens = append(tokens, r.LocalCandidates...)
	tokens = append(tokens, r.RemoteCandidates...)

	seen := make(map[string]bool, len(tokens))
	chain := make([]llm.Candidate, 0, len(tokens))
	for _, token := range tokens {
		provider, model, err := providers.ResolveCandidate(token)
		if err != nil {
			logger.Warn("Skipping unresolvable routing candidate",
				"agent_id", spec.ID, "candidate", token, "error", err)
			continue
		}
		cand := llm.Candidate{Provider: provider, Model: model}
		if seen[cand.String()] {
			continue
		}
		seen[cand.String()] = true
		chain = append(chain, cand)
	}

	if len(chain) == 0 {
		return nil, fmt.Errorf("%w: agent %q has no resolvable routing candidates", ErrInvalidConfig, spec.ID)
	}
	return chain, nil
}
