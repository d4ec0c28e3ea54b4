package config

import (
	"fmt"
	"strings"
	"time"
)

// validate performs comprehensive validation (fail-fast, stops at first
// error). Providers are validated before agents so candidate references
// check against a known-good registry.
func validate(cfg *Config) error {
	v := &validator{cfg: cfg}

	if err := v.validateProviders(); err != nil {
		return fmt.Errorf("provider validation failed: %w", err)
	}
	if err := v.validateAgents(); err != nil {
		return fmt.Errorf("agent validation failed: %w", err)
	}
	if err := v.validateSlack(); err != nil {
		return fmt.Errorf("slack validation failed: %w", err)
	}
	return nil
}

type validator struct {
	cfg *Config
}

func (v *validator) validateProviders() error {
	for name, p := range v.cfg.ProviderRegistry.GetAll() {
		if !p.Kind.IsValid() {
			return NewValidationError("provider", name, "kind",
				fmt.Errorf("%w: unknown kind %q", ErrInvalidConfig, p.Kind))
		}
		if p.DefaultModel == "" && len(p.Models) == 0 {
			return NewValidationError("provider", name, "models",
				fmt.Errorf("%w: neither default_model nor models configured", ErrInvalidConfig))
		}
	}
	return nil
}

func (v *validator) validateAgents() error {
	for id, agent := range v.cfg.AgentRegistry.GetAll() {
		r := agent.Routing

		// An agent must have somewhere to route to.
		if r.DefaultModel == "" && len(r.LocalCandidates) == 0 && len(r.RemoteCandidates) == 0 {
			return NewValidationError("agent", id, "routing",
				fmt.Errorf("%w: neither candidates nor a default model configured", ErrInvalidConfig))
		}

		// Explicit provider references must exist in the registry; bare
		// model/provider tokens are resolved lazily at dispatch time.
		for _, candidate := range allCandidates(r) {
			if name, _, found := strings.Cut(candidate, ":"); found {
				if !v.cfg.ProviderRegistry.Has(name) {
					return NewValidationError("agent", id, "routing",
						fmt.Errorf("%w: candidate %q references unknown provider %q", ErrInvalidConfig, candidate, name))
				}
			}
		}

		if r.Timeout != "" {
			if d, err := time.ParseDuration(r.Timeout); err != nil || d <= 0 {
				return NewValidationError("agent", id, "timeout",
					fmt.Errorf("%w: invalid duration %q", ErrInvalidConfig, r.Timeout))
			}
		}

		if r.Temperature < 0 || r.Temperature > 2 {
			return NewValidationError("agent", id, "temperature",
				fmt.Errorf("%w: temperature %v outside [0, 2]", ErrInvalidConfig, r.Temperature))
		}
		if r.MaxTokens < 0 {
			return NewValidationError("agent", id, "max_tokens",
				fmt.Errorf("%w: max_tokens must not be negative", ErrInvalidConfig))
		}

		if p := r.Policy; p != nil {
			if p.LowWordMax < 0 || p.HighWordMin < 0 {
				return NewValidationError("agent", id, "policy",
					fmt.Errorf("%w: word thresholds must not be negative", ErrInvalidConfig))
			}
			if p.LowWordMax > 0 && p.HighWordMin > 0 && p.HighWordMin <= p.LowWordMax {
				return NewValidationError("agent", id, "policy",
					fmt.Errorf("%w: high_word_min (%d) must exceed low_word_max (%d)",
						ErrInvalidConfig, p.HighWordMin, p.LowWordMax))
			}
		}
	}
	return nil
}

func (v *validator) validateSlack() error {
	if v.cfg.Slack.IsEnabled() && v.cfg.Slack.Channel == "" {
		return NewValidationError("slack", "notifier", "channel",
			fmt.Errorf("%w: channel required when slack is enabled", ErrInvalidConfig))
	}
	return nil
}

func allCandidates(r RoutingConfig) []string {
	out := make([]string, 0, len(r.LocalCandidates)+len(r.RemoteCandidates)+1)
	if r.DefaultModel != "" {
		out = append(out, r.DefaultModel)
	}
	out = append(out, r.LocalCandidates...)
	out = append(out, r.RemoteCandidates...)
	return out
}
