package api

// ExecuteRequest is the body of POST /api/v1/execute.
type ExecuteRequest struct {
	AgentID string         `json:"agentId"`
	Task    string         `json:"task"`
	Context map[string]any `json:"context,omitempty"`
}

// WorkflowRequest is the body of POST /api/v1/workflows/compile and
// /api/v1/workflows/execute.
type WorkflowRequest struct {
	Text           string `json:"text"`
	DefaultAgentID string `json:"defaultAgentId,omitempty"`
}
