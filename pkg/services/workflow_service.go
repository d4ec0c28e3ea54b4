package services

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/guildworks/guildhall/pkg/agent"
	"github.com/guildworks/guildhall/pkg/cost"
	"github.com/guildworks/guildhall/pkg/events"
	"github.com/guildworks/guildhall/pkg/executor"
	"github.com/guildworks/guildhall/pkg/workflow"
)

// Broadcaster publishes events to a named channel. Satisfied by
// events.ConnectionManager.
type Broadcaster interface {
	Broadcast(channel string, event any)
}

// PlanNotifier is told about plans reaching a terminal state. Satisfied by
// notify.Notifier.
type PlanNotifier interface {
	NotifyPlanCompleted(plan *workflow.Plan, costUSD float64)
}

// WorkflowService compiles DSL text into plans and drives their execution.
type WorkflowService struct {
	defaultAgent string
	store        *workflow.Store
	exec         *executor.Executor
	registry     *executor.Registry
	dispatcher   *agent.Dispatcher
	pricing      *cost.PricingTable
	broadcaster  Broadcaster
	notifier     PlanNotifier
	logger       *slog.Logger
}

// NewWorkflowService creates a new WorkflowService. broadcaster and
// notifier may be nil.
func NewWorkflowService(defaultAgent string, store *workflow.Store, exec *executor.Executor, registry *executor.Registry, dispatcher *agent.Dispatcher, pricing *cost.PricingTable) *WorkflowService {
	return &WorkflowService{
		defaultAgent: defaultAgent,
		store:        store,
		exec:         exec,
		registry:     registry,
		dispatcher:   dispatcher,
		pricing:      pricing,
		logger:       slog.Default().With("component", "workflow-service"),
	}
}

// SetBroadcaster wires plan progress broadcasting.
func (s *WorkflowService) SetBroadcaster(b Broadcaster) { s.broadcaster = b }

// SetNotifier wires terminal-plan notifications.
func (s *WorkflowService) SetNotifier(n PlanNotifier) { s.notifier = n }

// Compile parses DSL text into a plan without executing it. An empty
// defaultAgentID falls back to the catalog default.
func (s *WorkflowService) Compile(text, defaultAgentID string) (*workflow.Plan, error) {
	if text == "" {
		return nil, NewValidationError("text", "required")
	}
	if defaultAgentID == "" {
		defaultAgentID = s.defaultAgent
	}
	return workflow.Compile(text, defaultAgentID)
}

// Execute compiles and runs a plan, blocking until it reaches a terminal
// state. The returned plan carries final step statuses and results.
func (s *WorkflowService) Execute(ctx context.Context, text, defaultAgentID string) (*workflow.Plan, error) {
	plan, err := s.Compile(text, defaultAgentID)
	if err != nil {
		return nil, err
	}

	s.store.Save(plan)

	runCtx, done := s.registry.Track(ctx, plan.ID)
	defer done()

	// Accumulate the plan's spend across step dispatches for the
	// terminal notification.
	var costMillicents atomic.Int64
	dispatch := func(ctx context.Context, agentID, task string) (string, error) {
		result, err := s.dispatcher.Dispatch(ctx, agentID, task, nil, nil, nil)
		if err != nil {
			return "", err
		}
		stepCost := s.pricing.Cost(result.Provider, result.Model, result.Tokens.Input, result.Tokens.Output)
		costMillicents.Add(int64(stepCost * 1e5))
		return result.Output, nil
	}

	terminal := s.exec.Execute(runCtx, plan, dispatch, s.broadcastProgress)

	totalCost := float64(costMillicents.Load()) / 1e5
	s.logger.Info("Plan finished",
		"plan_id", terminal.ID,
		"status", terminal.Status,
		"steps", len(terminal.Steps),
		"cost_usd", totalCost)

	if s.notifier != nil {
		s.notifier.NotifyPlanCompleted(terminal, totalCost)
	}
	return terminal, nil
}

// List returns stored plans, newest first, optionally filtered by status.
func (s *WorkflowService) List(status string) ([]*workflow.Plan, error) {
	if status != "" && !workflow.PlanStatus(status).IsValid() {
		return nil, NewValidationError("status", "invalid plan status")
	}
	return s.store.List(workflow.PlanStatus(status)), nil
}

// Get returns one stored plan by id.
func (s *WorkflowService) Get(planID string) (*workflow.Plan, error) {
	if planID == "" {
		return nil, NewValidationError("planId", "required")
	}
	return s.store.Get(planID)
}

// Cancel requests cancellation of one in-flight plan.
func (s *WorkflowService) Cancel(planID string) error {
	if planID == "" {
		return NewValidationError("planId", "required")
	}
	if s.registry.Cancel(planID) {
		return nil
	}

	// Not active: distinguish unknown plans from already-terminal ones.
	if _, err := s.store.Get(planID); err != nil {
		return err
	}
	return ErrNotCancellable
}

func (s *WorkflowService) broadcastProgress(p executor.Progress) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Broadcast(events.PlansChannel, events.NewPlanProgressEvent(p))
}
