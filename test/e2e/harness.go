// Package e2e exercises the full composition: HTTP server, services,
// dispatcher, executor, and the WebSocket surface, with only the provider
// SDKs replaced by scripted stubs.
package e2e

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/guildworks/guildhall/pkg/agent"
	"github.com/guildworks/guildhall/pkg/agent/prompt"
	"github.com/guildworks/guildhall/pkg/api"
	"github.com/guildworks/guildhall/pkg/config"
	"github.com/guildworks/guildhall/pkg/cost"
	"github.com/guildworks/guildhall/pkg/events"
	"github.com/guildworks/guildhall/pkg/executor"
	"github.com/guildworks/guildhall/pkg/llm"
	"github.com/guildworks/guildhall/pkg/services"
	"github.com/guildworks/guildhall/pkg/workflow"
)

// TestApp is one fully wired guildhall instance on a random port.
type TestApp struct {
	Config    *config.Config
	Tracker   *cost.Tracker
	Store     *workflow.Store
	Registry  *executor.Registry
	Providers map[string]*ScriptedProvider

	BaseURL string
	WSURL   string

	t *testing.T
}

// testCatalog is the inline agent catalog every scenario runs against.
func testCatalog() (*config.AgentRegistry, *config.ProviderRegistry) {
	routing := config.RoutingConfig{
		LocalCandidates:  []string{"ollama:qwen2.5-coder"},
		RemoteCandidates: []string{"openai"},
		DefaultModel:     "openai:gpt-4o",
	}
	agents := config.NewAgentRegistry(map[string]*config.AgentSpec{
		"svc":      {Title: "Service Agent", Guild: "core", Routing: routing},
		"websmith": {Title: "Websmith", Guild: "frontend", Routing: routing},
		"crafter":  {Title: "Crafter", Guild: "design", Routing: routing},
		"huntress": {Title: "Huntress", Guild: "security", Routing: routing},
	})
	providers := config.NewProviderRegistry(map[string]*config.ProviderConfig{
		"ollama": {Local: true, DefaultModel: "qwen2.5-coder", Models: []string{"qwen2.5-coder"}},
		"openai": {DefaultModel: "gpt-4o", Models: []string{"gpt-4", "gpt-4o"}},
		"gemini": {DefaultModel: "gemini-2.0-flash", Models: []string{"gemini-2.0-flash"}},
	})
	return agents, providers
}

// StartTestApp wires the full stack over scripted providers and serves it
// from an httptest server. Cleanup is registered on t.
func StartTestApp(t *testing.T) *TestApp {
	t.Helper()

	catalog, providerRegistry := testCatalog()
	cfg := &config.Config{
		AgentRegistry:    catalog,
		ProviderRegistry: providerRegistry,
	}

	stubs := map[string]*ScriptedProvider{}
	var clients []llm.ProviderClient
	for _, name := range providerRegistry.Names() {
		stub := NewScriptedProvider(name)
		stubs[name] = stub
		clients = append(clients, stub)
	}
	chain := llm.NewFallbackChain(llm.NewClientRegistry(clients...))

	pricing := cost.NewPricingTable(nil)
	tracker := cost.NewTracker(pricing, 0)
	dispatcher := agent.NewDispatcher(catalog, providerRegistry, chain, tracker, prompt.NewBuilder(0))

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
	workflowService.SetBroadcaster(connManager)

	server := api.NewServer(cfg, agentService, workflowService, costService, connManager, registry)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return &TestApp{
		Config:    cfg,
		Tracker:   tracker,
		Store:     store,
		Registry:  registry,
		Providers: stubs,
		BaseURL:   ts.URL,
		WSURL:     strings.Replace(ts.URL, "http://", "ws://", 1) + "/api/v1/ws",
		t:         t,
	}
}

// Local returns the ollama stub (serves low-complexity tasks).
func (app *TestApp) Local() *ScriptedProvider { return app.Providers["ollama"] }

// Remote returns the openai stub (serves high-complexity and default routes).
func (app *TestApp) Remote() *ScriptedProvider { return app.Providers["openai"] }
