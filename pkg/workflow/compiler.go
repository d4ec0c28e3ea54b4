package workflow

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// maxAgentPrefixLen bounds the "agent:" prefix of a task token. A colon past
// this position, or a prefix containing spaces, is treated as task text
// (timestamps, URLs) rather than an agent reference.
const maxAgentPrefixLen = 30

// stepDurationEstimate is the per-batch duration used for the plan's
// estimated duration metadata.
const stepDurationEstimate = 2 * time.Second

var (
	thenSplit     = regexp.MustCompile(`(?i)\bTHEN\b`)
	andSplit      = regexp.MustCompile(`(?i)\bAND\b`)
	leadingOpRe   = regexp.MustCompile(`(?i)^\s*(THEN|AND|IF)\b`)
	adjacentOpsRe = regexp.MustCompile(`(?i)\b(THEN|AND)\s+(THEN|AND)\b`)

	ifContainsRe = regexp.MustCompile(`(?i)\s+IF_CONTAINS\(\s*"([^"]*)"\s*\)\s*$`)
	ifSuccessRe  = regexp.MustCompile(`(?i)\s+IF_SUCCESS\s*$`)
	ifFailureRe  = regexp.MustCompile(`(?i)\s+IF_FAILURE\s*$`)
	ifNaturalRe  = regexp.MustCompile(`(?i)\s+IF\s+(success|passing|failure|failing)\s*$`)
)

// Compile parses workflow text into a plan. Steps in one phase run in
// parallel; every step depends on all steps of the preceding phase.
// defaultAgentID handles tokens without an explicit "agent:" prefix.
func Compile(text, defaultAgentID string) (*Plan, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty workflow text", ErrInvalidSyntax)
	}
	if leadingOpRe.MatchString(trimmed) {
		return nil, fmt.Errorf("%w: workflow must not start with an operator", ErrInvalidSyntax)
	}
	if loc := adjacentOpsRe.FindString(trimmed); loc != "" {
		return nil, fmt.Errorf("%w: adjacent operators %q", ErrInvalidSyntax, loc)
	}

	plan := &Plan{
		ID:          NewPlanID(),
		Description: trimmed,
		CreatedAt:   time.Now(),
		Status:      PlanPending,
	}

	var prevPhaseIDs []string
	ordinal := 0
	phases := thenSplit.Split(trimmed, -1)
	for _, phase := range phases {
		var phaseIDs []string
		inherited := defaultAgentID

		tokens := andSplit.Split(phase, -1)
		for _, token := range tokens {
			token = strings.TrimSpace(token)
			if token == "" {
				return nil, fmt.Errorf("%w: empty task between operators", ErrInvalidSyntax)
			}

			task, condition := stripCondition(token)
			if task == "" {
				return nil, fmt.Errorf("%w: condition without a task", ErrInvalidSyntax)
			}

			agentID, task := splitAgentPrefix(task, inherited)
			inherited = agentID

			ordinal++
			step := &Step{
				ID:           newStepID(ordinal),
				AgentID:      agentID,
				Task:         task,
				Dependencies: append([]string(nil), prevPhaseIDs...),
				Condition:    condition,
				Status:       StepPending,
			}
			plan.Steps = append(plan.Steps, step)
			phaseIDs = append(phaseIDs, step.ID)
		}

		prevPhaseIDs = phaseIDs
	}

	batches := len(phases)
	plan.Metadata = PlanMetadata{
		TotalSteps:          len(plan.Steps),
		ParallelBatches:     batches,
		EstimatedDurationMs: int64(batches) * stepDurationEstimate.Milliseconds(),
		OriginalText:        trimmed,
	}
	return plan, nil
}

// stripCondition removes a trailing conditional suffix from a task token.
// Explicit forms win over the natural-language "IF success" forms.
func stripCondition(token string) (string, *Condition) {
	if m := ifContainsRe.FindStringSubmatchIndex(token); m != nil {
		value := token[m[2]:m[3]]
		return strings.TrimSpace(token[:m[0]]), &Condition{
			TargetStepID: ConditionTargetPrevious,
			Operator:     IfContains,
			Value:        value,
		}
	}
	if m := ifSuccessRe.FindStringIndex(token); m != nil {
		return strings.TrimSpace(token[:m[0]]), &Condition{
			TargetStepID: ConditionTargetPrevious,
			Operator:     IfSuccess,
		}
	}
	if m := ifFailureRe.FindStringIndex(token); m != nil {
		return strings.TrimSpace(token[:m[0]]), &Condition{
			TargetStepID: ConditionTargetPrevious,
			Operator:     IfFailure,
		}
	}
	if m := ifNaturalRe.FindStringSubmatchIndex(token); m != nil {
		op := IfSuccess
		switch strings.ToLower(token[m[2]:m[3]]) {
		case "failure", "failing":
			op = IfFailure
		}
		return strings.TrimSpace(token[:m[0]]), &Condition{
			TargetStepID: ConditionTargetPrevious,
			Operator:     op,
		}
	}
	return token, nil
}

// splitAgentPrefix splits "agent: task" tokens. The colon must sit within
// the first 30 characters and the prefix must contain no spaces; anything
// else keeps the token intact under the inherited agent.
func splitAgentPrefix(token, inherited string) (agentID, task string) {
	idx := strings.Index(token, ":")
	if idx <= 0 || idx >= maxAgentPrefixLen {
		return inherited, token
	}
	prefix := token[:idx]
	if strings.ContainsAny(prefix, " \t") {
		return inherited, token
	}
	task = strings.TrimSpace(token[idx+1:])
	if task == "" {
		return inherited, token
	}
	return prefix, task
}
