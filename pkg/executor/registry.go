package executor

import (
	"context"
	"sync"
)

// Registry tracks in-flight plan executions for cancellation and health
// reporting.
type Registry struct {
	mu       sync.Mutex
	active   map[string]context.CancelFunc
	executed int64
}

// NewRegistry creates an empty active-plan registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[string]context.CancelFunc)}
}

// Track derives a cancellable context for one plan execution and registers
// it. The returned done func must be called when execution finishes.
func (r *Registry) Track(ctx context.Context, planID string) (context.Context, func()) {
	runCtx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.active[planID] = cancel
	r.mu.Unlock()

	var once sync.Once
	done := func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.active, planID)
			r.executed++
			r.mu.Unlock()
			cancel()
		})
	}
	return runCtx, done
}

// Cancel signals one in-flight plan. Reports whether the plan was active.
func (r *Registry) Cancel(planID string) bool {
	r.mu.Lock()
	cancel, exists := r.active[planID]
	r.mu.Unlock()

	if exists {
		cancel()
	}
	return exists
}

// ActiveCount returns the number of in-flight plans.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// ExecutedTotal returns the number of finished executions since startup.
func (r *Registry) ExecutedTotal() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.executed
}
