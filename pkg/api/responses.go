package api

// HealthResponse is returned by GET /api/v1/health.
type HealthResponse struct {
	Status        string             `json:"status"`
	Initialized   bool               `json:"initialized"`
	Timestamp     string             `json:"timestamp"`
	Version       string             `json:"version"`
	Configuration ConfigurationStats `json:"configuration"`
	Plans         PlanStats          `json:"plans"`
}

// ConfigurationStats contains counts of loaded configuration items.
type ConfigurationStats struct {
	Agents    int `json:"agents"`
	Providers int `json:"providers"`
}

// PlanStats reports executor activity for the health endpoint.
type PlanStats struct {
	Active        int   `json:"active"`
	ExecutedTotal int64 `json:"executedTotal"`
}

// CancelResponse is returned by POST /api/v1/plans/:id/cancel.
type CancelResponse struct {
	Success bool   `json:"success"`
	PlanID  string `json:"planId"`
}
