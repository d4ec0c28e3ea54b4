package services

import (
	"github.com/guildworks/guildhall/pkg/cost"
)

// CostService exposes cost aggregation and export over the tracker ring.
type CostService struct {
	tracker *cost.Tracker
}

// NewCostService creates a new CostService.
func NewCostService(tracker *cost.Tracker) *CostService {
	return &CostService{tracker: tracker}
}

// Summary aggregates recorded costs under the given filter.
func (s *CostService) Summary(f cost.Filter) cost.Summary {
	return s.tracker.Summary(f)
}

// ByAgent aggregates cost for one agent.
func (s *CostService) ByAgent(agentID string) (cost.Breakdown, error) {
	if agentID == "" {
		return cost.Breakdown{}, NewValidationError("agentId", "required")
	}
	return s.tracker.ByAgent(agentID), nil
}

// ByGuild aggregates cost for one guild.
func (s *CostService) ByGuild(guild string) (cost.Breakdown, error) {
	if guild == "" {
		return cost.Breakdown{}, NewValidationError("guild", "required")
	}
	return s.tracker.ByGuild(guild), nil
}

// ExportCSV renders every recorded entry as CSV.
func (s *CostService) ExportCSV() string {
	return s.tracker.ExportCSV()
}
