package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildworks/guildhall/pkg/events"
	"github.com/guildworks/guildhall/pkg/workflow"
)

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []any
}

func (b *recordingBroadcaster) Broadcast(channel string, event any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBroadcaster) snapshot() []any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]any(nil), b.events...)
}

type recordingNotifier struct {
	mu    sync.Mutex
	plans []*workflow.Plan
	costs []float64
}

func (n *recordingNotifier) NotifyPlanCompleted(plan *workflow.Plan, costUSD float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.plans = append(n.plans, plan)
	n.costs = append(n.costs, costUSD)
}

func TestWorkflowServiceCompile(t *testing.T) {
	env := newTestEnv(nil)

	plan, err := env.workflows.Compile("build THEN test", "")
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, "svc", plan.Steps[0].AgentID, "default agent fills in")
	assert.Equal(t, workflow.PlanPending, plan.Status)
	assert.Equal(t, 0, env.store.Len(), "compile does not store the plan")
}

func TestWorkflowServiceCompileErrors(t *testing.T) {
	env := newTestEnv(nil)

	_, err := env.workflows.Compile("", "")
	assert.True(t, IsValidationError(err))

	_, err = env.workflows.Compile("a THEN THEN b", "")
	assert.ErrorIs(t, err, workflow.ErrInvalidSyntax)
}

func TestWorkflowServiceExecute(t *testing.T) {
	env := newTestEnv(&fakeChain{outputs: map[string]string{"build": "built fine"}})

	plan, err := env.workflows.Execute(context.Background(), "build THEN test", "")
	require.NoError(t, err)

	assert.Equal(t, workflow.PlanCompleted, plan.Status)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, "built fine", plan.Steps[0].Result.Output)
	assert.Equal(t, "ok", plan.Steps[1].Result.Output)

	stored, err := env.store.Get(plan.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.PlanCompleted, stored.Status)
	assert.Zero(t, env.registry.ActiveCount())
	assert.Equal(t, int64(1), env.registry.ExecutedTotal())
}

func TestWorkflowServiceExecuteUnknownAgentFailsStep(t *testing.T) {
	env := newTestEnv(nil)

	plan, err := env.workflows.Execute(context.Background(), "ghost: conjure", "")
	require.NoError(t, err, "unknown agents fail the step, not the request")

	assert.Equal(t, workflow.PlanFailed, plan.Status)
	require.NotNil(t, plan.Steps[0].Result)
	assert.Contains(t, plan.Steps[0].Result.Error, "agent not found")
}

func TestWorkflowServiceExecuteBroadcastsProgress(t *testing.T) {
	env := newTestEnv(nil)
	broadcaster := &recordingBroadcaster{}
	env.workflows.SetBroadcaster(broadcaster)

	_, err := env.workflows.Execute(context.Background(), "build THEN test", "")
	require.NoError(t, err)

	got := broadcaster.snapshot()
	require.NotEmpty(t, got)

	first, ok := got[0].(events.PlanProgressEvent)
	require.True(t, ok)
	assert.Equal(t, events.EventTypePlanProgress, first.Type)
	assert.Equal(t, workflow.PlanRunning, first.Progress.Status)

	last := got[len(got)-1].(events.PlanProgressEvent)
	assert.Equal(t, workflow.PlanCompleted, last.Progress.Status)
	assert.Equal(t, 2, last.Progress.CompletedCount)
}

func TestWorkflowServiceExecuteNotifies(t *testing.T) {
	env := newTestEnv(nil)
	notifier := &recordingNotifier{}
	env.workflows.SetNotifier(notifier)

	plan, err := env.workflows.Execute(context.Background(), "build", "")
	require.NoError(t, err)

	require.Len(t, notifier.plans, 1)
	assert.Equal(t, plan.ID, notifier.plans[0].ID)
	assert.Equal(t, workflow.PlanCompleted, notifier.plans[0].Status)
}

func TestWorkflowServiceListAndGet(t *testing.T) {
	env := newTestEnv(nil)

	_, err := env.workflows.Execute(context.Background(), "build", "")
	require.NoError(t, err)

	plans, err := env.workflows.List("")
	require.NoError(t, err)
	require.Len(t, plans, 1)

	completed, err := env.workflows.List("completed")
	require.NoError(t, err)
	assert.Len(t, completed, 1)

	failed, err := env.workflows.List("failed")
	require.NoError(t, err)
	assert.Empty(t, failed)

	_, err = env.workflows.List("bogus")
	assert.True(t, IsValidationError(err))

	got, err := env.workflows.Get(plans[0].ID)
	require.NoError(t, err)
	assert.Equal(t, plans[0].ID, got.ID)

	_, err = env.workflows.Get("plan_ghost")
	assert.ErrorIs(t, err, workflow.ErrPlanNotFound)
}

func TestWorkflowServiceCancel(t *testing.T) {
	env := newTestEnv(nil)

	t.Run("unknown plan", func(t *testing.T) {
		err := env.workflows.Cancel("plan_ghost")
		assert.ErrorIs(t, err, workflow.ErrPlanNotFound)
	})

	t.Run("terminal plan is not cancellable", func(t *testing.T) {
		plan, err := env.workflows.Execute(context.Background(), "build", "")
		require.NoError(t, err)
		assert.ErrorIs(t, env.workflows.Cancel(plan.ID), ErrNotCancellable)
	})

	t.Run("in-flight plan cancels", func(t *testing.T) {
		done := make(chan *workflow.Plan, 1)
		go func() {
			plan, _ := env.workflows.Execute(context.Background(), "hang forever", "")
			done <- plan
		}()

		require.Eventually(t, func() bool {
			return env.registry.ActiveCount() == 1
		}, 2*time.Second, 5*time.Millisecond)

		running, err := env.workflows.List("running")
		require.NoError(t, err)
		require.Len(t, running, 1)
		require.NoError(t, env.workflows.Cancel(running[0].ID))

		select {
		case plan := <-done:
			require.NotNil(t, plan)
			assert.Equal(t, workflow.PlanCancelled, plan.Status)
		case <-time.After(2 * time.Second):
			t.Fatal("execution did not finish after cancel")
		}
	})
}
