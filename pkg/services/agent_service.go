// Package services contains business logic service layer implementations.
package services

import (
	"context"

	"github.com/guildworks/guildhall/pkg/agent"
	"github.com/guildworks/guildhall/pkg/config"
	"github.com/guildworks/guildhall/pkg/cost"
)

// AgentService exposes agent catalog queries and task execution.
type AgentService struct {
	cfg        *config.Config
	dispatcher *agent.Dispatcher
	tracker    *cost.Tracker
}

// NewAgentService creates a new AgentService.
func NewAgentService(cfg *config.Config, dispatcher *agent.Dispatcher, tracker *cost.Tracker) *AgentService {
	return &AgentService{cfg: cfg, dispatcher: dispatcher, tracker: tracker}
}

// ExecuteInput carries one task execution request.
type ExecuteInput struct {
	AgentID string
	Task    string
	Context map[string]any
}

// AgentSummary is the catalog view of one agent.
type AgentSummary struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Guild            string   `json:"guild"`
	Responsibilities []string `json:"responsibilities,omitempty"`
	LocalCandidates  []string `json:"localCandidates,omitempty"`
	RemoteCandidates []string `json:"remoteCandidates,omitempty"`
	DefaultModel     string   `json:"defaultModel,omitempty"`
}

// Execute runs one task against one agent and blocks until the terminal
// result.
func (s *AgentService) Execute(ctx context.Context, in ExecuteInput) (*agent.TaskResult, error) {
	return s.ExecuteStreaming(ctx, in, nil)
}

// ExecuteStreaming runs one task, delivering response fragments to sink as
// they arrive. A nil sink selects the blocking provider call.
func (s *AgentService) ExecuteStreaming(ctx context.Context, in ExecuteInput, sink agent.StreamSink) (*agent.TaskResult, error) {
	if in.AgentID == "" {
		return nil, NewValidationError("agentId", "required")
	}
	if in.Task == "" {
		return nil, NewValidationError("task", "required")
	}

	return s.dispatcher.Dispatch(ctx, in.AgentID, in.Task, in.Context, nil, sink)
}

// ListAgents returns the catalog, sorted by agent id.
func (s *AgentService) ListAgents() []AgentSummary {
	specs := s.cfg.AgentRegistry.List()
	summaries := make([]AgentSummary, 0, len(specs))
	for _, spec := range specs {
		summaries = append(summaries, AgentSummary{
			ID:               spec.ID,
			Title:            spec.Title,
			Guild:            spec.Guild,
			Responsibilities: spec.Responsibilities,
			LocalCandidates:  spec.Routing.LocalCandidates,
			RemoteCandidates: spec.Routing.RemoteCandidates,
			DefaultModel:     spec.Routing.DefaultModel,
		})
	}
	return summaries
}

// History returns the most recent dispatch records for an agent, newest
// first. limit <= 0 selects the default.
func (s *AgentService) History(agentID string, limit int) ([]cost.Entry, error) {
	if agentID == "" {
		return nil, NewValidationError("agentId", "required")
	}
	if !s.cfg.AgentRegistry.Has(agentID) {
		return nil, config.ErrAgentNotFound
	}
	return s.tracker.Recent(agentID, limit), nil
}

// Stats aggregates dispatch statistics for one agent.
func (s *AgentService) Stats(agentID string) (cost.AgentStats, error) {
	if agentID == "" {
		return cost.AgentStats{}, NewValidationError("agentId", "required")
	}
	if !s.cfg.AgentRegistry.Has(agentID) {
		return cost.AgentStats{}, config.ErrAgentNotFound
	}
	return s.tracker.Stats(agentID), nil
}
