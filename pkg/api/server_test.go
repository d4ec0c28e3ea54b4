package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildworks/guildhall/pkg/agent"
	"github.com/guildworks/guildhall/pkg/agent/prompt"
	"github.com/guildworks/guildhall/pkg/config"
	"github.com/guildworks/guildhall/pkg/cost"
	"github.com/guildworks/guildhall/pkg/events"
	"github.com/guildworks/guildhall/pkg/executor"
	"github.com/guildworks/guildhall/pkg/llm"
	"github.com/guildworks/guildhall/pkg/services"
	"github.com/guildworks/guildhall/pkg/workflow"
)

// scriptedChain answers every provider call with canned content keyed by a
// substring of the user message.
type scriptedChain struct {
	outputs map[string]string
	errs    map[string]error
}

func (f *scriptedChain) respond(userMsg string, candidates []llm.Candidate) (*llm.Response, error) {
	for key, err := range f.errs {
		if strings.Contains(userMsg, key) {
			return nil, err
		}
	}
	content := "ok"
	for key, out := range f.outputs {
		if strings.Contains(userMsg, key) {
			content = out
		}
	}
	return &llm.Response{
		Content:  content,
		Provider: candidates[0].Provider,
		Model:    candidates[0].Model,
		Usage:    &llm.Usage{InputTokens: 100, OutputTokens: 50, TotalTokens: 150},
	}, nil
}

func (f *scriptedChain) Chat(ctx context.Context, candidates []llm.Candidate, req *llm.Request) (*llm.Response, error) {
	return f.respond(req.Messages[len(req.Messages)-1].Content, candidates)
}

func (f *scriptedChain) Stream(ctx context.Context, candidates []llm.Candidate, req *llm.Request) (<-chan llm.Chunk, error) {
	resp, err := f.respond(req.Messages[len(req.Messages)-1].Content, candidates)
	if err != nil {
		return nil, err
	}
	out := make(chan llm.Chunk, 2)
	out <- &llm.TextChunk{Content: resp.Content}
	out <- &llm.UsageChunk{InputTokens: 100, OutputTokens: 50, TotalTokens: 150}
	close(out)
	return out, nil
}

type testServer struct {
	*httptest.Server
	tracker  *cost.Tracker
	store    *workflow.Store
	registry *executor.Registry
}

func newTestServer(t *testing.T, chain *scriptedChain) *testServer {
	t.Helper()
	if chain == nil {
		chain = &scriptedChain{}
	}

	catalog := config.NewAgentRegistry(map[string]*config.AgentSpec{
		"svc": {
			Title: "Service Agent",
			Guild: "core",
			Routing: config.RoutingConfig{
				LocalCandidates:  []string{"ollama:qwen2.5-coder"},
				RemoteCandidates: []string{"openai"},
				DefaultModel:     "openai:gpt-4o",
			},
		},
	})
	providers := config.NewProviderRegistry(map[string]*config.ProviderConfig{
		"ollama": {Local: true, DefaultModel: "qwen2.5-coder", Models: []string{"qwen2.5-coder"}},
		"openai": {DefaultModel: "gpt-4o", Models: []string{"gpt-4", "gpt-4o"}},
	})
	cfg := &config.Config{AgentRegistry: catalog, ProviderRegistry: providers}

	pricing := cost.NewPricingTable(nil)
	tracker := cost.NewTracker(pricing, 0)
	dispatcher := agent.NewDispatcher(catalog, providers, chain, tracker, prompt.NewBuilder(0))

	store := workflow.NewStore(0)
	registry := executor.NewRegistry()
	agentService := services.NewAgentService(cfg, dispatcher, tracker)
	workflowService := services.NewWorkflowService("svc", store, executor.New(store), registry, dispatcher, pricing)
	costService := services.NewCostService(tracker)

	runner := func(ctx context.Context, agentID, task string, taskContext map[string]any, sink func(string)) (any, error) {
		return agentService.ExecuteStreaming(ctx, services.ExecuteInput{
			AgentID: agentID, Task: task, Context: taskContext,
		}, sink)
	}
	connManager := events.NewConnectionManager(runner, 0)

	server := NewServer(cfg, agentService, workflowService, costService, connManager, registry)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return &testServer{Server: ts, tracker: tracker, store: store, registry: registry}
}

func (ts *testServer) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	return resp, decodeObject(t, resp)
}

func (ts *testServer) post(t *testing.T, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp, decodeObject(t, resp)
}

func decodeObject(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) == 0 || data[0] != '{' {
		return nil
	}
	var obj map[string]any
	require.NoError(t, json.Unmarshal(data, &obj))
	return obj
}

func decodeArray(t *testing.T, resp *http.Response) []any {
	t.Helper()
	defer resp.Body.Close()
	var arr []any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&arr))
	return arr
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.get(t, "/api/v1/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["initialized"])
	assert.NotEmpty(t, body["timestamp"])

	cfg := body["configuration"].(map[string]any)
	assert.Equal(t, float64(1), cfg["agents"])
	assert.Equal(t, float64(2), cfg["providers"])

	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestListAgents(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/api/v1/agents")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	agents := decodeArray(t, resp)
	require.Len(t, agents, 1)
	assert.Equal(t, "svc", agents[0].(map[string]any)["id"])
}

func TestExecuteEndpoint(t *testing.T) {
	ts := newTestServer(t, &scriptedChain{outputs: map[string]string{"summarize": "the summary"}})

	resp, body := ts.post(t, "/api/v1/execute", ExecuteRequest{AgentID: "svc", Task: "summarize this"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "the summary", body["output"])
	assert.Equal(t, "svc", body["agentId"])

	resp, _ = ts.post(t, "/api/v1/execute", ExecuteRequest{AgentID: "svc"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.post(t, "/api/v1/execute", ExecuteRequest{AgentID: "ghost", Task: "anything"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAgentHistoryAndStats(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, task := range []string{"first", "second"} {
		resp, _ := ts.post(t, "/api/v1/execute", ExecuteRequest{AgentID: "svc", Task: task})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, err := http.Get(ts.URL + "/api/v1/agents/svc/history?limit=1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	history := decodeArray(t, resp)
	require.Len(t, history, 1)
	assert.Equal(t, "second", history[0].(map[string]any)["task"])

	resp, _ = ts.get(t, "/api/v1/agents/svc/history?limit=zero")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := ts.get(t, "/api/v1/agents/svc/stats")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["totalTasks"])
	assert.Equal(t, float64(1), body["successRate"])

	resp, _ = ts.get(t, "/api/v1/agents/ghost/stats")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCompileWorkflow(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.post(t, "/api/v1/workflows/compile", WorkflowRequest{Text: "build THEN test AND lint"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	steps := body["steps"].([]any)
	assert.Len(t, steps, 3)
	metadata := body["metadata"].(map[string]any)
	assert.Equal(t, float64(2), metadata["parallelBatches"])

	resp, _ = ts.post(t, "/api/v1/workflows/compile", WorkflowRequest{Text: "THEN build"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.post(t, "/api/v1/workflows/compile", WorkflowRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExecuteWorkflowAndPlans(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.post(t, "/api/v1/workflows/execute", WorkflowRequest{Text: "build THEN test"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", body["status"])
	planID := body["id"].(string)

	resp, err := http.Get(ts.URL + "/api/v1/plans")
	require.NoError(t, err)
	plans := decodeArray(t, resp)
	require.Len(t, plans, 1)

	resp, body = ts.get(t, "/api/v1/plans/"+planID)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, planID, body["id"])

	resp, _ = ts.get(t, "/api/v1/plans/plan_ghost")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = ts.get(t, "/api/v1/plans?status=bogus")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Terminal plans cannot be cancelled.
	resp, _ = ts.post(t, "/api/v1/plans/"+planID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = ts.post(t, "/api/v1/plans/plan_ghost/cancel", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCostEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)

	ts.tracker.Record(cost.RecordInput{
		AgentID: "svc", Guild: "core", Provider: "openai", Model: "gpt-4",
		Tokens: cost.TokenUsage{Input: 1000, Output: 500, Total: 1500}, Success: true,
	})

	resp, body := ts.get(t, "/api/v1/costs/summary")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 0.060, body["totalCost"].(float64), 1e-9)

	resp, body = ts.get(t, "/api/v1/costs/agents/svc")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["tasks"])

	resp, body = ts.get(t, "/api/v1/costs/guilds/core")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 0.060, body["cost"].(float64), 1e-9)

	resp, err := http.Get(ts.URL + "/api/v1/costs/export")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.True(t, strings.HasPrefix(string(data), "id,"))

	resp, _ = ts.get(t, "/api/v1/costs/summary?limit=-1")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
