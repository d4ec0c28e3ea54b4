package workflow

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// DefaultMaxStoredPlans bounds the store when no limit is configured.
const DefaultMaxStoredPlans = 100

// Store is the bounded in-memory plan catalog. Writers save clones and
// readers receive clones, so the executor's in-place mutations stay
// invisible until the next save.
type Store struct {
	mu     sync.RWMutex
	plans  map[string]*Plan
	max    int
	logger *slog.Logger
}

// NewStore creates a plan store. maxPlans <= 0 selects the default bound.
func NewStore(maxPlans int) *Store {
	if maxPlans <= 0 {
		maxPlans = DefaultMaxStoredPlans
	}
	return &Store{
		plans:  make(map[string]*Plan),
		max:    maxPlans,
		logger: slog.Default().With("component", "plan-store"),
	}
}

// Save stores a snapshot of the plan, overwriting any previous version.
// Over the bound, the oldest plans by creation time are evicted.
func (s *Store) Save(plan *Plan) {
	snapshot := plan.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.plans[snapshot.ID] = snapshot
	if len(s.plans) <= s.max {
		return
	}

	ordered := s.sortedLocked()
	for i := s.max; i < len(ordered); i++ {
		delete(s.plans, ordered[i].ID)
	}
	s.logger.Warn("Plan store capacity exceeded, evicted oldest plans",
		"evicted", len(ordered)-s.max, "max_plans", s.max)
}

// Get returns a snapshot of one plan.
func (s *Store) Get(id string) (*Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plan, exists := s.plans[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	return plan.Clone(), nil
}

// List returns plan snapshots, newest first. An empty status matches all.
func (s *Store) List(status PlanStatus) []*Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Plan, 0, len(s.plans))
	for _, plan := range s.sortedLocked() {
		if status != "" && plan.Status != status {
			continue
		}
		out = append(out, plan.Clone())
	}
	return out
}

// Delete removes one plan.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.plans[id]; !exists {
		return fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	delete(s.plans, id)
	return nil
}

// Clear removes all plans.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans = make(map[string]*Plan)
}

// Len returns the number of stored plans.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.plans)
}

// sortedLocked returns the plans newest first. Ties break on id so the
// ordering is stable. Callers must hold a lock.
func (s *Store) sortedLocked() []*Plan {
	out := make([]*Plan, 0, len(s.plans))
	for _, plan := range s.plans {
		out = append(out, plan)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}
