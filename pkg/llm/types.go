package llm

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn sent to a provider.
type Message struct {
	Role    Role
	Content string
}

// Request is one chat call against a resolved (provider, model) pair.
// Provider and Model are filled in by the fallback chain per attempt;
// callers populate the conversation and generation parameters.
type Request struct {
	Provider    string
	Model       string
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

// Usage reports provider-side token accounting for one call.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Response is the final result of one chat call.
type Response struct {
	Content  string
	Model    string // model identifier the provider actually served
	Provider string
	Usage    *Usage // nil when the provider reported no usage
}
