// Package events provides the duplex streaming surface: WebSocket
// connection management, per-agent task execution lanes, and the event
// payloads streamed to clients.
//
// Ordering contract: per connection and agentId, a task produces exactly
// one "start", zero or more "chunk", then exactly one of "complete" or
// "error". Tasks for the same agentId on one connection run strictly in
// submission order; tasks for different agentIds may interleave.
package events

// Outbound task event types.
const (
	EventTypeStart    = "start"
	EventTypeChunk    = "chunk"
	EventTypeComplete = "complete"
	EventTypeError    = "error"
)

// EventTypePlanProgress is broadcast on the plans channel for every plan
// state transition.
const EventTypePlanProgress = "plan.progress"

// PlansChannel is the broadcast channel carrying plan lifecycle events.
const PlansChannel = "plans"

// Client → server actions.
const (
	ActionExecute     = "execute"
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionPing        = "ping"
)

// ClientMessage is the JSON structure for client → server WebSocket
// messages.
type ClientMessage struct {
	Action  string         `json:"action"`
	AgentID string         `json:"agentId,omitempty"` // for "execute"
	Task    string         `json:"task,omitempty"`    // for "execute"
	Context map[string]any `json:"context,omitempty"` // for "execute"
	Channel string         `json:"channel,omitempty"` // for "subscribe"/"unsubscribe"
}
