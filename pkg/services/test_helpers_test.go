package services

import (
	"context"
	"strings"
	"sync"

	"github.com/guildworks/guildhall/pkg/agent"
	"github.com/guildworks/guildhall/pkg/agent/prompt"
	"github.com/guildworks/guildhall/pkg/config"
	"github.com/guildworks/guildhall/pkg/cost"
	"github.com/guildworks/guildhall/pkg/executor"
	"github.com/guildworks/guildhall/pkg/llm"
	"github.com/guildworks/guildhall/pkg/workflow"
)

// fakeChain scripts provider responses by task keyword. Tasks matching a
// key in errs fail; tasks matching outputs return that content; everything
// else returns "ok".
type fakeChain struct {
	mu      sync.Mutex
	outputs map[string]string
	errs    map[string]error
	calls   int
}

func (f *fakeChain) respond(userMsg string, candidates []llm.Candidate) (*llm.Response, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

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

func (f *fakeChain) Chat(ctx context.Context, candidates []llm.Candidate, req *llm.Request) (*llm.Response, error) {
	userMsg := req.Messages[len(req.Messages)-1].Content
	if strings.Contains(userMsg, "hang") {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.respond(userMsg, candidates)
}

func (f *fakeChain) Stream(ctx context.Context, candidates []llm.Candidate, req *llm.Request) (<-chan llm.Chunk, error) {
	resp, err := f.respond(req.Messages[len(req.Messages)-1].Content, candidates)
	if err != nil {
		return nil, err
	}
	out := make(chan llm.Chunk, 4)
	out <- &llm.TextChunk{Content: resp.Content}
	out <- &llm.UsageChunk{InputTokens: 100, OutputTokens: 50, TotalTokens: 150}
	close(out)
	return out, nil
}

func (f *fakeChain) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type testEnv struct {
	cfg       *config.Config
	chain     *fakeChain
	tracker   *cost.Tracker
	pricing   *cost.PricingTable
	store     *workflow.Store
	registry  *executor.Registry
	agents    *AgentService
	workflows *WorkflowService
	costs     *CostService
}

// newTestEnv wires the full service stack over an inline catalog and a
// scripted provider chain.
func newTestEnv(chain *fakeChain) *testEnv {
	if chain == nil {
		chain = &fakeChain{}
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
		"scout": {
			Title: "Scout",
			Guild: "field",
			Routing: config.RoutingConfig{
				DefaultModel: "openai:gpt-4o-mini",
			},
		},
	})
	providers := config.NewProviderRegistry(map[string]*config.ProviderConfig{
		"ollama": {Local: true, DefaultModel: "qwen2.5-coder", Models: []string{"qwen2.5-coder"}},
		"openai": {DefaultModel: "gpt-4o", Models: []string{"gpt-4", "gpt-4o", "gpt-4o-mini"}},
	})
	cfg := &config.Config{
		AgentRegistry:    catalog,
		ProviderRegistry: providers,
	}

	pricing := cost.NewPricingTable(nil)
	tracker := cost.NewTracker(pricing, 0)
	dispatcher := agent.NewDispatcher(catalog, providers, chain, tracker, prompt.NewBuilder(0))

	store := workflow.NewStore(0)
	registry := executor.NewRegistry()
	workflows := NewWorkflowService("svc", store, executor.New(store), registry, dispatcher, pricing)

	return &testEnv{
		cfg:       cfg,
		chain:     chain,
		tracker:   tracker,
		pricing:   pricing,
		store:     store,
		registry:  registry,
		agents:    NewAgentService(cfg, dispatcher, tracker),
		workflows: workflows,
		costs:     NewCostService(tracker),
	}
}
