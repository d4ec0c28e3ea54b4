package e2e

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildworks/guildhall/pkg/workflow"
)

func TestChainedWorkflow(t *testing.T) {
	app := StartTestApp(t)
	app.Local().
		Reply("build the service", "artifact ready").
		Reply("test the service", "all 42 tests passed").
		Reply("deploy the service", "released v1.2.3")

	plan := app.ExecuteWorkflow(t, "build the service THEN test the service THEN deploy the service")

	assert.Equal(t, "completed", plan["status"])
	assert.Equal(t, 3, parallelBatches(t, plan))

	steps := planSteps(t, plan)
	require.Len(t, steps, 3)
	for _, step := range steps {
		assert.Equal(t, "completed", step["status"])
		assert.Equal(t, "svc", step["agentId"])
	}
	assert.Equal(t, "artifact ready", stepOutput(stepByTask(t, plan, "build the service")))
	assert.Equal(t, "released v1.2.3", stepOutput(stepByTask(t, plan, "deploy the service")))

	// The stored plan matches what execute returned.
	stored := app.GetPlan(t, plan["id"].(string))
	assert.Equal(t, "completed", stored["status"])
}

func TestParallelWorkflow(t *testing.T) {
	app := StartTestApp(t)

	plan := app.ExecuteWorkflow(t, "lint AND format AND typecheck")

	assert.Equal(t, "completed", plan["status"])
	assert.Equal(t, 1, parallelBatches(t, plan), "independent steps form one batch")
	for _, step := range planSteps(t, plan) {
		assert.Equal(t, "completed", step["status"])
	}
}

func TestConditionalDeployGate(t *testing.T) {
	const text = "svc: build THEN test AND lint THEN deploy IF success"

	t.Run("all steps succeed, deploy runs", func(t *testing.T) {
		app := StartTestApp(t)
		app.Local().Reply("deploy", "shipped")

		plan := app.ExecuteWorkflow(t, text)

		assert.Equal(t, "completed", plan["status"])
		deploy := stepByTask(t, plan, "deploy")
		assert.Equal(t, "completed", deploy["status"])
		assert.Equal(t, "shipped", stepOutput(deploy))
	})

	t.Run("test failure fails the plan before deploy", func(t *testing.T) {
		app := StartTestApp(t)
		// Both routing candidates must fail or the chain falls back.
		app.Local().Fail("test", errors.New("unit tests exploded"))
		app.Remote().Fail("test", errors.New("unit tests exploded"))

		plan := app.ExecuteWorkflow(t, text)

		assert.Equal(t, "failed", plan["status"])
		assert.Contains(t, stepError(stepByTask(t, plan, "test")), "unit tests exploded")
		deploy := stepByTask(t, plan, "deploy")
		assert.Equal(t, "skipped", deploy["status"],
			"deploy is skipped, never dispatched, once a predecessor fails the plan")
		assert.Nil(t, deploy["result"])
	})

	t.Run("unmet gate skips the step without failing the plan", func(t *testing.T) {
		app := StartTestApp(t)

		plan := app.ExecuteWorkflow(t, "build THEN rollback IF_FAILURE")

		assert.Equal(t, "completed", plan["status"])
		rollback := stepByTask(t, plan, "rollback")
		assert.Equal(t, "skipped", rollback["status"])
		assert.Nil(t, rollback["result"], "skipped steps never run")
	})
}

func TestMultiAgentWorkflow(t *testing.T) {
	app := StartTestApp(t)
	app.Local().
		Reply("build frontend", "bundle emitted").
		Reply("design review", "looks sharp").
		Reply("security scan", "no findings")

	plan := app.ExecuteWorkflow(t,
		"websmith: build frontend THEN crafter: design review AND huntress: security scan")

	assert.Equal(t, "completed", plan["status"])
	assert.Equal(t, "websmith", stepByTask(t, plan, "build frontend")["agentId"])
	assert.Equal(t, "crafter", stepByTask(t, plan, "design review")["agentId"])
	assert.Equal(t, "huntress", stepByTask(t, plan, "security scan")["agentId"])
	assert.Equal(t, "no findings", stepOutput(stepByTask(t, plan, "security scan")))
}

func TestContainsGate(t *testing.T) {
	const text = `svc: analyze logs THEN svc: page on-call IF_CONTAINS("ERROR")`

	t.Run("clean output skips the alert", func(t *testing.T) {
		app := StartTestApp(t)
		app.Local().Reply("analyze logs", "no warnings found")

		plan := app.ExecuteWorkflow(t, text)

		assert.Equal(t, "completed", plan["status"])
		assert.Equal(t, "skipped", stepByTask(t, plan, "page on-call")["status"])
	})

	t.Run("matching output runs the alert", func(t *testing.T) {
		app := StartTestApp(t)
		app.Local().
			Reply("analyze logs", "ERROR 500 on checkout").
			Reply("page on-call", "paged sre rotation")

		plan := app.ExecuteWorkflow(t, text)

		assert.Equal(t, "completed", plan["status"])
		alert := stepByTask(t, plan, "page on-call")
		assert.Equal(t, "completed", alert["status"])
		assert.Equal(t, "paged sre rotation", stepOutput(alert))
	})
}

func TestCompileRejectsInvalidSyntax(t *testing.T) {
	app := StartTestApp(t)

	for name, text := range map[string]string{
		"empty":            "",
		"leading operator": "THEN build",
		"double operator":  "a THEN THEN b",
		"trailing AND":     "build AND",
	} {
		t.Run(name, func(t *testing.T) {
			body := app.CompileWorkflow(t, text, http.StatusBadRequest)
			assert.NotEmpty(t, body["message"])
		})
	}

	// Nothing invalid is ever stored.
	assert.Empty(t, app.ListPlans(t, ""))
}

func TestUnknownAgentCompilesButFailsAtRuntime(t *testing.T) {
	app := StartTestApp(t)

	compiled := app.CompileWorkflow(t, "ghostwriter: haunt the docs", http.StatusOK)
	assert.Equal(t, "ghostwriter", planSteps(t, compiled)[0]["agentId"])

	plan := app.ExecuteWorkflow(t, "ghostwriter: haunt the docs")
	assert.Equal(t, "failed", plan["status"])
	assert.Contains(t, stepError(planSteps(t, plan)[0]), "agent not found")
}

func TestPlanListingAndFilters(t *testing.T) {
	app := StartTestApp(t)

	app.ExecuteWorkflow(t, "first task")
	failText := "doomed task"
	app.Local().Fail(failText, errors.New("nope"))
	app.Remote().Fail(failText, errors.New("nope"))
	app.ExecuteWorkflow(t, failText)

	all := app.ListPlans(t, "")
	assert.Len(t, all, 2)

	completed := app.ListPlans(t, string(workflow.PlanCompleted))
	require.Len(t, completed, 1)
	failed := app.ListPlans(t, string(workflow.PlanFailed))
	require.Len(t, failed, 1)

	app.getJSON(t, "/api/v1/plans?status=bogus", http.StatusBadRequest)
	app.getJSON(t, "/api/v1/plans/plan_0_zzzzzz", http.StatusNotFound)
}

func TestHealthReflectsActivity(t *testing.T) {
	app := StartTestApp(t)
	app.ExecuteWorkflow(t, "quick check")

	health := app.GetHealth(t)
	assert.Equal(t, "healthy", health["status"])

	cfg, ok := health["configuration"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(4), cfg["agents"])
	assert.Equal(t, float64(3), cfg["providers"])

	plans, ok := health["plans"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(0), plans["active"])
	assert.Equal(t, float64(1), plans["executedTotal"])
}

func TestDirectExecuteRoutesLocally(t *testing.T) {
	app := StartTestApp(t)
	app.Local().Reply("triage this ticket", "duplicate of #42")

	result := app.ExecuteAgent(t, "svc", "triage this ticket")

	assert.Equal(t, "duplicate of #42", result["output"])
	assert.Equal(t, "ollama", result["provider"], "short tasks route to the local candidate")
	assert.Equal(t, "qwen2.5-coder", result["model"])
}
