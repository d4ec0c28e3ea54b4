// Package workflow compiles the textual workflow DSL into typed execution
// plans and keeps the bounded in-memory plan catalog. Plans are created
// here, mutated only by the executor, and read through store snapshots.
package workflow

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"
)

// PlanStatus is the lifecycle state of a plan.
type PlanStatus string

const (
	PlanPending   PlanStatus = "pending"
	PlanRunning   PlanStatus = "running"
	PlanCompleted PlanStatus = "completed"
	PlanFailed    PlanStatus = "failed"
	PlanCancelled PlanStatus = "cancelled"
)

// IsValid reports whether the value is a known plan status.
func (s PlanStatus) IsValid() bool {
	switch s {
	case PlanPending, PlanRunning, PlanCompleted, PlanFailed, PlanCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether the plan can no longer change state.
func (s PlanStatus) IsTerminal() bool {
	return s == PlanCompleted || s == PlanFailed || s == PlanCancelled
}

// StepStatus is the lifecycle state of a step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// IsTerminal reports whether the step can no longer change state.
func (s StepStatus) IsTerminal() bool {
	return s == StepCompleted || s == StepFailed || s == StepSkipped
}

// ConditionOperator gates a conditional step on a prior step's outcome.
type ConditionOperator string

const (
	IfSuccess  ConditionOperator = "IF_SUCCESS"
	IfFailure  ConditionOperator = "IF_FAILURE"
	IfContains ConditionOperator = "IF_CONTAINS"
)

// ConditionTargetPrevious is the compile-time condition target; the executor
// resolves it to the step's most recently added dependency.
const ConditionTargetPrevious = "previous"

// Condition is a gate evaluated when a step is about to start.
type Condition struct {
	TargetStepID string            `json:"targetStepId"`
	Operator     ConditionOperator `json:"operator"`
	Value        string            `json:"value,omitempty"`
}

// StepResult records the outcome of one executed step.
type StepResult struct {
	Output      string    `json:"output"`
	Error       string    `json:"error,omitempty"`
	DurationMs  int64     `json:"durationMs"`
	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`
}

// Step is one node in a plan's dependency graph.
type Step struct {
	ID           string      `json:"id"`
	AgentID      string      `json:"agentId"`
	Task         string      `json:"task"`
	Dependencies []string    `json:"dependencies"`
	Condition    *Condition  `json:"condition,omitempty"`
	Status       StepStatus  `json:"status"`
	Result       *StepResult `json:"result,omitempty"`
}

// PlanMetadata carries compile-time plan statistics.
type PlanMetadata struct {
	TotalSteps          int    `json:"totalSteps"`
	ParallelBatches     int    `json:"parallelBatches"`
	EstimatedDurationMs int64  `json:"estimatedDurationMs"`
	OriginalText        string `json:"originalText"`
}

// Plan is a compiled workflow.
type Plan struct {
	ID          string       `json:"id"`
	Description string       `json:"description"`
	CreatedAt   time.Time    `json:"createdAt"`
	Status      PlanStatus   `json:"status"`
	Steps       []*Step      `json:"steps"`
	Metadata    PlanMetadata `json:"metadata"`
}

// Step returns the step with the given id, or nil.
func (p *Plan) Step(id string) *Step {
	for _, s := range p.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// Clone returns a deep copy. The store hands clones out so readers never
// observe the executor's in-place mutations.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	out := *p
	out.Steps = make([]*Step, len(p.Steps))
	for i, s := range p.Steps {
		step := *s
		step.Dependencies = append([]string(nil), s.Dependencies...)
		if s.Condition != nil {
			cond := *s.Condition
			step.Condition = &cond
		}
		if s.Result != nil {
			res := *s.Result
			step.Result = &res
		}
		out.Steps[i] = &step
	}
	return &out
}

// Counts tallies the steps by terminal disposition.
func (p *Plan) Counts() (completed, failed, skipped int) {
	for _, s := range p.Steps {
		switch s.Status {
		case StepCompleted:
			completed++
		case StepFailed:
			failed++
		case StepSkipped:
			skipped++
		}
	}
	return completed, failed, skipped
}

// NewPlanID builds "plan_<unix-ms>_<6 chars base36>" ids.
func NewPlanID() string {
	return fmt.Sprintf("plan_%d_%s", time.Now().UnixMilli(), randBase36(6))
}

// newStepID builds "step_<ordinal>_<6 chars base36>" ids; the ordinal is the
// step's 1-based position in the plan.
func newStepID(ordinal int) string {
	return fmt.Sprintf("step_%d_%s", ordinal, randBase36(6))
}

func randBase36(n int) string {
	max := uint64(1)
	for i := 0; i < n; i++ {
		max *= 36
	}
	s := strconv.FormatUint(rand.Uint64()%max, 36)
	for len(s) < n {
		s = "0" + s
	}
	return s
}
