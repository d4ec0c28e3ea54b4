package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/guildworks/guildhall/pkg/workflow"
)

// ────────────────────────────────────────────────────────────
// HTTP Client Helpers
// ────────────────────────────────────────────────────────────

// ExecuteAgent posts a direct task execution and returns the parsed result.
func (app *TestApp) ExecuteAgent(t *testing.T, agentID, task string) map[string]any {
	t.Helper()
	body := map[string]any{"agentId": agentID, "task": task}
	return app.postJSON(t, "/api/v1/execute", body, http.StatusOK)
}

// CompileWorkflow posts DSL text to the compile endpoint and returns the plan.
func (app *TestApp) CompileWorkflow(t *testing.T, text string, expectedStatus int) map[string]any {
	t.Helper()
	return app.postJSON(t, "/api/v1/workflows/compile", map[string]any{"text": text}, expectedStatus)
}

// ExecuteWorkflow posts DSL text to the execute endpoint and blocks until the
// returned plan is terminal.
func (app *TestApp) ExecuteWorkflow(t *testing.T, text string) map[string]any {
	t.Helper()
	return app.postJSON(t, "/api/v1/workflows/execute", map[string]any{"text": text}, http.StatusOK)
}

// GetPlan retrieves a plan by ID.
func (app *TestApp) GetPlan(t *testing.T, planID string) map[string]any {
	t.Helper()
	return app.getJSON(t, "/api/v1/plans/"+planID, http.StatusOK)
}

// ListPlans calls GET /api/v1/plans with an optional status filter.
func (app *TestApp) ListPlans(t *testing.T, status string) []any {
	t.Helper()
	path := "/api/v1/plans"
	if status != "" {
		path += "?status=" + status
	}
	return app.getJSONArray(t, path, http.StatusOK)
}

// CancelPlan sends POST /api/v1/plans/:id/cancel.
func (app *TestApp) CancelPlan(t *testing.T, planID string, expectedStatus int) map[string]any {
	t.Helper()
	return app.postJSON(t, "/api/v1/plans/"+planID+"/cancel", nil, expectedStatus)
}

// GetCostSummary calls GET /api/v1/costs with optional query params.
func (app *TestApp) GetCostSummary(t *testing.T, queryParams string) map[string]any {
	t.Helper()
	path := "/api/v1/costs/summary"
	if queryParams != "" {
		path += "?" + queryParams
	}
	return app.getJSON(t, path, http.StatusOK)
}

// GetHealth calls GET /api/v1/health.
func (app *TestApp) GetHealth(t *testing.T) map[string]any {
	t.Helper()
	return app.getJSON(t, "/api/v1/health", http.StatusOK)
}

// ExportCSV fetches the cost export and returns its body.
func (app *TestApp) ExportCSV(t *testing.T) string {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, app.BaseURL+"/api/v1/costs/export", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func (app *TestApp) postJSON(t *testing.T, path string, body any, expectedStatus int) map[string]any {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, app.BaseURL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, expectedStatus, resp.StatusCode, "POST %s: unexpected status", path)
	var result map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

func (app *TestApp) getJSON(t *testing.T, path string, expectedStatus int) map[string]any {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, app.BaseURL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, expectedStatus, resp.StatusCode, "GET %s: unexpected status", path)
	var result map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

func (app *TestApp) getJSONArray(t *testing.T, path string, expectedStatus int) []any {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, app.BaseURL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, expectedStatus, resp.StatusCode, "GET %s: unexpected status", path)
	var result []any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

// ────────────────────────────────────────────────────────────
// Plan JSON Projections
// ────────────────────────────────────────────────────────────

// planSteps returns the steps array of a plan response.
func planSteps(t *testing.T, plan map[string]any) []map[string]any {
	t.Helper()
	raw, ok := plan["steps"].([]any)
	require.True(t, ok, "plan has no steps array")
	steps := make([]map[string]any, len(raw))
	for i, s := range raw {
		step, ok := s.(map[string]any)
		require.True(t, ok)
		steps[i] = step
	}
	return steps
}

// stepByTask finds the step whose task matches exactly.
func stepByTask(t *testing.T, plan map[string]any, task string) map[string]any {
	t.Helper()
	for _, step := range planSteps(t, plan) {
		if step["task"] == task {
			return step
		}
	}
	t.Fatalf("no step with task %q in plan", task)
	return nil
}

// stepOutput returns the result.output of a step, or "".
func stepOutput(step map[string]any) string {
	result, _ := step["result"].(map[string]any)
	out, _ := result["output"].(string)
	return out
}

// stepError returns the result.error of a step, or "".
func stepError(step map[string]any) string {
	result, _ := step["result"].(map[string]any)
	msg, _ := result["error"].(string)
	return msg
}

// parallelBatches returns metadata.parallelBatches of a plan response.
func parallelBatches(t *testing.T, plan map[string]any) int {
	t.Helper()
	meta, ok := plan["metadata"].(map[string]any)
	require.True(t, ok, "plan has no metadata")
	n, ok := meta["parallelBatches"].(float64)
	require.True(t, ok, "metadata has no parallelBatches")
	return int(n)
}

// ────────────────────────────────────────────────────────────
// Polling Helpers
// ────────────────────────────────────────────────────────────

// WaitForPlanStatus polls the store until the plan reaches one of the
// expected statuses.
func (app *TestApp) WaitForPlanStatus(t *testing.T, planID string, expected ...workflow.PlanStatus) workflow.PlanStatus {
	t.Helper()
	var actual workflow.PlanStatus
	require.Eventually(t, func() bool {
		plan, err := app.Store.Get(planID)
		if err != nil {
			return false
		}
		actual = plan.Status
		for _, exp := range expected {
			if actual == exp {
				return true
			}
		}
		return false
	}, 10*time.Second, 25*time.Millisecond,
		"plan %s did not reach status %v (last: %s)", planID, expected, actual)
	return actual
}

// WaitForActivePlan polls until exactly one plan is tracked as in flight and
// returns its ID from the running plans list.
func (app *TestApp) WaitForActivePlan(t *testing.T) string {
	t.Helper()
	var planID string
	require.Eventually(t, func() bool {
		if app.Registry.ActiveCount() != 1 {
			return false
		}
		running := app.Store.List(workflow.PlanRunning)
		if len(running) != 1 {
			return false
		}
		planID = running[0].ID
		return true
	}, 10*time.Second, 25*time.Millisecond, "no active plan appeared")
	return planID
}
