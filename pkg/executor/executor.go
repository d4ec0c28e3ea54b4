// Package executor runs compiled plans: it schedules steps in
// dependency-respecting parallel batches, evaluates conditional gates,
// enforces cancellation, and emits progress after every state transition.
package executor

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/guildworks/guildhall/pkg/workflow"
)

// Dispatch runs one step's task on an agent and returns the raw output.
// Supplied by the agent dispatcher; scripted in tests.
type Dispatch func(ctx context.Context, agentID, task string) (string, error)

// Progress is one executor progress snapshot.
type Progress struct {
	PlanID         string              `json:"planId"`
	CurrentStep    int                 `json:"currentStep"`
	TotalSteps     int                 `json:"totalSteps"`
	CompletedCount int                 `json:"completedCount"`
	FailedCount    int                 `json:"failedCount"`
	SkippedCount   int                 `json:"skippedCount"`
	Status         workflow.PlanStatus `json:"status"`
}

// ProgressSink receives progress snapshots in transition order.
type ProgressSink func(Progress)

// Executor executes plans. The plan object is single-writer for the
// duration of Execute; readers observe it through store snapshots saved
// after every transition.
type Executor struct {
	store  *workflow.Store
	logger *slog.Logger
}

// New creates an executor. The store may be nil; snapshots are then skipped.
func New(store *workflow.Store) *Executor {
	return &Executor{
		store:  store,
		logger: slog.Default().With("component", "executor"),
	}
}

// Execute runs the plan to a terminal state, mutating it in place and
// returning it. Steps whose dependencies are all processed run as one
// concurrent batch; the batch joins before the next is scheduled. Progress
// is emitted after every transition; onProgress may be nil.
func (e *Executor) Execute(ctx context.Context, plan *workflow.Plan, dispatch Dispatch, onProgress ProgressSink) *workflow.Plan {
	run := &planRun{
		exec:       e,
		plan:       plan,
		dispatch:   dispatch,
		onProgress: onProgress,
	}
	return run.execute(ctx)
}

// planRun is the per-execution state; the mutex serializes step transitions
// and progress emission across the batch's goroutines.
type planRun struct {
	exec       *Executor
	plan       *workflow.Plan
	dispatch   Dispatch
	onProgress ProgressSink
	mu         sync.Mutex
}

func (r *planRun) execute(ctx context.Context) *workflow.Plan {
	r.transitionPlan(workflow.PlanRunning)

	processed := make(map[string]bool, len(r.plan.Steps))
	for len(processed) < len(r.plan.Steps) {
		batch := r.nextBatch(processed)
		if len(batch) == 0 {
			// Unreachable for compiler-produced plans; guards hand-built
			// plans with dangling dependencies.
			r.exec.logger.Error("No schedulable steps remain, aborting plan",
				"plan_id", r.plan.ID, "processed", len(processed))
			r.skipUnprocessed(processed)
			r.transitionPlan(workflow.PlanFailed)
			return r.plan
		}

		r.runBatch(ctx, batch)
		for _, step := range batch {
			processed[step.ID] = true
		}

		if ctx.Err() != nil {
			r.skipUnprocessed(processed)
			r.transitionPlan(workflow.PlanCancelled)
			return r.plan
		}
		if r.criticalFailure(batch) {
			r.skipUnprocessed(processed)
			r.transitionPlan(workflow.PlanFailed)
			return r.plan
		}
	}

	r.transitionPlan(workflow.PlanCompleted)
	return r.plan
}

// nextBatch selects every unprocessed step whose dependencies are all
// processed.
func (r *planRun) nextBatch(processed map[string]bool) []*workflow.Step {
	var batch []*workflow.Step
	for _, step := range r.plan.Steps {
		if processed[step.ID] {
			continue
		}
		ready := true
		for _, dep := range step.Dependencies {
			if !processed[dep] {
				ready = false
				break
			}
		}
		if ready {
			batch = append(batch, step)
		}
	}
	return batch
}

// runBatch evaluates gates, then runs the surviving steps concurrently and
// joins.
func (r *planRun) runBatch(ctx context.Context, batch []*workflow.Step) {
	var runnable []*workflow.Step
	for _, step := range batch {
		if step.Condition != nil && !r.gatePasses(step) {
			r.transitionStep(step, workflow.StepSkipped)
			continue
		}
		runnable = append(runnable, step)
	}

	var wg sync.WaitGroup
	for _, step := range runnable {
		wg.Add(1)
		go func(step *workflow.Step) {
			defer wg.Done()
			r.runStep(ctx, step)
		}(step)
	}
	wg.Wait()
}

func (r *planRun) runStep(ctx context.Context, step *workflow.Step) {
	r.transitionStep(step, workflow.StepRunning)
	started := time.Now()

	output, err := r.dispatch(ctx, step.AgentID, step.Task)

	result := &workflow.StepResult{
		Output:      output,
		DurationMs:  time.Since(started).Milliseconds(),
		StartedAt:   started,
		CompletedAt: time.Now(),
	}
	status := workflow.StepCompleted
	if err != nil {
		result.Error = err.Error()
		status = workflow.StepFailed
	}

	r.mu.Lock()
	step.Result = result
	r.mu.Unlock()
	r.transitionStep(step, status)
}

// skipUnprocessed marks every never-scheduled step skipped. Terminal plans
// carry only terminal steps, even when a failure or cancellation cuts the
// schedule short.
func (r *planRun) skipUnprocessed(processed map[string]bool) {
	for _, step := range r.plan.Steps {
		if processed[step.ID] {
			continue
		}
		processed[step.ID] = true
		r.transitionStep(step, workflow.StepSkipped)
	}
}

// gatePasses evaluates a step's condition against the resolved target.
// "previous" resolves to the most recently added dependency; a missing
// target or a target without a recorded result fails the gate.
func (r *planRun) gatePasses(step *workflow.Step) bool {
	targetID := step.Condition.TargetStepID
	if targetID == workflow.ConditionTargetPrevious {
		if len(step.Dependencies) == 0 {
			return false
		}
		targetID = step.Dependencies[len(step.Dependencies)-1]
	}

	target := r.plan.Step(targetID)
	if target == nil || target.Result == nil {
		return false
	}

	switch step.Condition.Operator {
	case workflow.IfSuccess:
		return target.Status == workflow.StepCompleted
	case workflow.IfFailure:
		return target.Status == workflow.StepFailed
	case workflow.IfContains:
		return strings.Contains(target.Result.Output, step.Condition.Value)
	}
	return false
}

// criticalFailure reports whether the batch contains a failed step without
// a condition. Conditional-step failures are non-fatal.
func (r *planRun) criticalFailure(batch []*workflow.Step) bool {
	for _, step := range batch {
		if step.Status == workflow.StepFailed && step.Condition == nil {
			return true
		}
	}
	return false
}

func (r *planRun) transitionStep(step *workflow.Step, status workflow.StepStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	step.Status = status
	r.notifyLocked()
}

func (r *planRun) transitionPlan(status workflow.PlanStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plan.Status = status
	r.notifyLocked()
}

// notifyLocked snapshots the plan to the store and emits one progress
// event. The run mutex is held through emission so sinks observe
// transitions in order.
func (r *planRun) notifyLocked() {
	if r.exec.store != nil {
		r.exec.store.Save(r.plan)
	}
	if r.onProgress != nil {
		r.onProgress(r.snapshotLocked())
	}
}

func (r *planRun) snapshotLocked() Progress {
	completed, failed, skipped := r.plan.Counts()

	currentStep := 0
	for i, step := range r.plan.Steps {
		if step.Status == workflow.StepRunning {
			currentStep = i + 1
			break
		}
	}

	return Progress{
		PlanID:         r.plan.ID,
		CurrentStep:    currentStep,
		TotalSteps:     len(r.plan.Steps),
		CompletedCount: completed,
		FailedCount:    failed,
		SkippedCount:   skipped,
		Status:         r.plan.Status,
	}
}
