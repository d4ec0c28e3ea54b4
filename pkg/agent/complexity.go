// Package agent dispatches tasks to guild agents: it builds the prompt,
// estimates task complexity, selects a model from the agent's routing
// configuration, invokes the provider fallback chain, and records a cost
// entry for every call.
package agent

import (
	"strings"

	"github.com/guildworks/guildhall/pkg/config"
	"github.com/guildworks/guildhall/pkg/llm"
)

// Complexity classifies one request for model routing.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// IsValid reports whether the value is a known complexity class.
func (c Complexity) IsValid() bool {
	switch c {
	case ComplexityLow, ComplexityMedium, ComplexityHigh:
		return true
	}
	return false
}

// Routing thresholds when the agent's policy leaves them unset.
const (
	defaultLowWordMax  = 80
	defaultHighWordMin = 300

	// tokenGateFactor scales highWordMin into the token-count gate:
	// estimated tokens above 0.8·highWordMin also classify as high.
	tokenGateFactor = 0.8
)

// Keyword hints baked into the estimator; per-agent policy keywords extend
// these lists.
var (
	highKeywords = []string{"design", "architecture", "rewrite", "refactor", "end-to-end", "full", "spec"}
	lowKeywords  = []string{"typo", "rename", "format", "lint", "small", "quick"}
)

// Estimate classifies a request as low, medium, or high complexity.
// A valid override wins outright. Otherwise the decision is keyword hits
// first, then word and token counts against the policy thresholds.
func Estimate(task, prompt string, policy *config.RoutingPolicy, override Complexity) Complexity {
	if override.IsValid() {
		return override
	}

	text := strings.ToLower(task + "\n" + prompt)
	words := len(strings.Fields(text))
	tokens := llm.EstimateTokens(text)

	lowMax := defaultLowWordMax
	highMin := defaultHighWordMin
	var preferLocal, preferRemote []string
	if policy != nil {
		if policy.LowWordMax > 0 {
			lowMax = policy.LowWordMax
		}
		if policy.HighWordMin > 0 {
			highMin = policy.HighWordMin
		}
		preferLocal = policy.PreferLocalKeywords
		preferRemote = policy.PreferRemoteKeywords
	}

	hiHit := containsAny(text, highKeywords) || containsAny(text, preferRemote)
	loHit := containsAny(text, lowKeywords) || containsAny(text, preferLocal)

	switch {
	case hiHit || words > highMin || float64(tokens) > tokenGateFactor*float64(highMin):
		return ComplexityHigh
	case loHit || words < lowMax:
		return ComplexityLow
	default:
		return ComplexityMedium
	}
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
