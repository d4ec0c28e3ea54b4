package cost

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"strconv"
	"sync"
	"time"
)

// DefaultMaxEntries bounds the entry ring when no limit is configured.
const DefaultMaxEntries = 10000

// DefaultRecentLimit is the number of entries returned in Summary.Recent
// when the filter does not say otherwise.
const DefaultRecentLimit = 10

// TokenUsage is the token accounting of one recorded call.
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Total  int `json:"total"`
}

// Entry is one immutable cost record.
type Entry struct {
	ID         string     `json:"id"`
	AgentID    string     `json:"agentId"`
	Guild      string     `json:"guild"`
	Provider   string     `json:"provider"`
	Model      string     `json:"model"`
	Task       string     `json:"task"`
	Tokens     TokenUsage `json:"tokens"`
	CostUSD    float64    `json:"costUSD"`
	Timestamp  time.Time  `json:"timestamp"`
	DurationMs int64      `json:"durationMs"`
	Success    bool       `json:"success"`
}

// RecordInput carries the fields the caller knows about one finished call.
type RecordInput struct {
	AgentID    string
	Guild      string
	Provider   string
	Model      string
	Task       string
	Tokens     TokenUsage
	DurationMs int64
	Success    bool
}

// Filter narrows Summary queries. Zero values mean "no constraint".
type Filter struct {
	AgentID   string
	Guild     string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
}

// Breakdown aggregates cost over one grouping key.
type Breakdown struct {
	Cost   float64 `json:"cost"`
	Tasks  int     `json:"tasks"`
	Tokens int     `json:"tokens"`
}

// Summary is the aggregation result for one filter.
type Summary struct {
	TotalCost      float64              `json:"totalCost"`
	TotalTasks     int                  `json:"totalTasks"`
	AvgCostPerTask float64              `json:"avgCostPerTask"`
	ByProvider     map[string]Breakdown `json:"byProvider"`
	ByAgent        map[string]Breakdown `json:"byAgent"`
	ByGuild        map[string]Breakdown `json:"byGuild"`
	Recent         []Entry              `json:"recent"`
}

// AgentStats is the per-agent rollup served by the stats endpoint.
type AgentStats struct {
	AgentID       string    `json:"agentId"`
	TotalTasks    int       `json:"totalTasks"`
	SuccessRate   float64   `json:"successRate"`
	TotalCost     float64   `json:"totalCost"`
	AvgCost       float64   `json:"avgCost"`
	AvgDurationMs int64     `json:"avgDurationMs"`
	TotalTokens   int       `json:"totalTokens"`
	ModelsUsed    []string  `json:"modelsUsed"`
	LastActive    time.Time `json:"lastActive"`
}

// Tracker keeps a bounded, append-only ring of cost entries.
// Record and read paths are mutually exclusive via a reader-writer lock.
type Tracker struct {
	mu      sync.RWMutex
	entries []Entry
	max     int

	pricing *PricingTable
	logger  *slog.Logger
}

// NewTracker creates a tracker over the given pricing table.
// maxEntries <= 0 selects DefaultMaxEntries.
func NewTracker(pricing *PricingTable, maxEntries int) *Tracker {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Tracker{
		entries: make([]Entry, 0, 64),
		max:     maxEntries,
		pricing: pricing,
		logger:  slog.Default().With("component", "cost-tracker"),
	}
}

// Record computes the cost of one call from the pricing table and appends an
// immutable entry. When the ring exceeds its bound, the oldest entries are
// evicted (logged, never surfaced).
func (t *Tracker) Record(in RecordInput) Entry {
	entry := Entry{
		ID:         newEntryID(),
		AgentID:    in.AgentID,
		Guild:      in.Guild,
		Provider:   in.Provider,
		Model:      in.Model,
		Task:       in.Task,
		Tokens:     in.Tokens,
		CostUSD:    t.pricing.Cost(in.Provider, in.Model, in.Tokens.Input, in.Tokens.Output),
		Timestamp:  time.Now(),
		DurationMs: in.DurationMs,
		Success:    in.Success,
	}

	t.mu.Lock()
	t.entries = append(t.entries, entry)
	if over := len(t.entries) - t.max; over > 0 {
		t.entries = append(t.entries[:0:0], t.entries[over:]...)
		t.logger.Warn("Cost ring capacity exceeded, evicted oldest entries",
			"evicted", over, "max_entries", t.max)
	}
	t.mu.Unlock()

	return entry
}

// Summary aggregates entries matching the filter. Recent holds the newest
// matching entries, newest first, capped at Filter.Limit.
func (t *Tracker) Summary(f Filter) Summary {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	out := Summary{
		ByProvider: make(map[string]Breakdown),
		ByAgent:    make(map[string]Breakdown),
		ByGuild:    make(map[string]Breakdown),
		Recent:     []Entry{},
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, e := range t.entries {
		if !f.matches(e) {
			continue
		}
		out.TotalCost += e.CostUSD
		out.TotalTasks++
		accumulate(out.ByProvider, e.Provider, e)
		accumulate(out.ByAgent, e.AgentID, e)
		accumulate(out.ByGuild, e.Guild, e)
	}
	if out.TotalTasks > 0 {
		out.AvgCostPerTask = out.TotalCost / float64(out.TotalTasks)
	}

	// Entries are appended in time order; walk backwards for the newest.
	for i := len(t.entries) - 1; i >= 0 && len(out.Recent) < limit; i-- {
		if f.matches(t.entries[i]) {
			out.Recent = append(out.Recent, t.entries[i])
		}
	}

	return out
}

// ByAgent returns the rollup for one agent id.
func (t *Tracker) ByAgent(agentID string) Breakdown {
	return t.breakdown(Filter{AgentID: agentID})
}

// ByGuild returns the rollup for one guild.
func (t *Tracker) ByGuild(guild string) Breakdown {
	return t.breakdown(Filter{Guild: guild})
}

func (t *Tracker) breakdown(f Filter) Breakdown {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var b Breakdown
	for _, e := range t.entries {
		if f.matches(e) {
			b.Cost += e.CostUSD
			b.Tasks++
			b.Tokens += e.Tokens.Total
		}
	}
	return b
}

// Recent returns the newest entries for one agent, newest first.
// Used by the history endpoint.
func (t *Tracker) Recent(agentID string, limit int) []Entry {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Entry, 0, limit)
	for i := len(t.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if agentID == "" || t.entries[i].AgentID == agentID {
			out = append(out, t.entries[i])
		}
	}
	return out
}

// Stats aggregates the per-agent rollup served by the stats endpoint.
func (t *Tracker) Stats(agentID string) AgentStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := AgentStats{AgentID: agentID, ModelsUsed: []string{}}
	models := make(map[string]bool)
	var succeeded int
	var totalDuration int64

	for _, e := range t.entries {
		if e.AgentID != agentID {
			continue
		}
		stats.TotalTasks++
		stats.TotalCost += e.CostUSD
		stats.TotalTokens += e.Tokens.Total
		totalDuration += e.DurationMs
		if e.Success {
			succeeded++
		}
		if e.Model != "" && !models[e.Model] {
			models[e.Model] = true
			stats.ModelsUsed = append(stats.ModelsUsed, e.Model)
		}
		if e.Timestamp.After(stats.LastActive) {
			stats.LastActive = e.Timestamp
		}
	}

	if stats.TotalTasks > 0 {
		stats.SuccessRate = float64(succeeded) / float64(stats.TotalTasks)
		stats.AvgCost = stats.TotalCost / float64(stats.TotalTasks)
		stats.AvgDurationMs = totalDuration / int64(stats.TotalTasks)
	}
	sort.Strings(stats.ModelsUsed)
	return stats
}

// Len returns the current number of entries.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Entries returns a snapshot copy of the ring, oldest first.
func (t *Tracker) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Entry(nil), t.entries...)
}

func (f Filter) matches(e Entry) bool {
	if f.AgentID != "" && e.AgentID != f.AgentID {
		return false
	}
	if f.Guild != "" && e.Guild != f.Guild {
		return false
	}
	if f.StartTime != nil && e.Timestamp.Before(*f.StartTime) {
		return false
	}
	if f.EndTime != nil && e.Timestamp.After(*f.EndTime) {
		return false
	}
	return true
}

func accumulate(m map[string]Breakdown, key string, e Entry) {
	b := m[key]
	b.Cost += e.CostUSD
	b.Tasks++
	b.Tokens += e.Tokens.Total
	m[key] = b
}

// newEntryID builds "cost_<unix-ms>_<9 chars base36>" ids.
func newEntryID() string {
	suffix := strconv.FormatUint(rand.Uint64()%pow36(9), 36)
	for len(suffix) < 9 {
		suffix = "0" + suffix
	}
	return fmt.Sprintf("cost_%d_%s", time.Now().UnixMilli(), suffix)
}

func pow36(n int) uint64 {
	out := uint64(1)
	for i := 0; i < n; i++ {
		out *= 36
	}
	return out
}
