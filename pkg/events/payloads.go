package events

import (
	"time"

	"github.com/guildworks/guildhall/pkg/executor"
)

// TaskEvent is the outbound wire format for per-task stream events.
type TaskEvent struct {
	Type      string `json:"type"`
	AgentID   string `json:"agentId"`
	Task      string `json:"task,omitempty"`
	Data      string `json:"data,omitempty"`     // chunk content
	Response  any    `json:"response,omitempty"` // terminal result on "complete"
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// PlanProgressEvent is broadcast on the plans channel after every plan
// state transition.
type PlanProgressEvent struct {
	Type      string            `json:"type"`
	Progress  executor.Progress `json:"progress"`
	Timestamp int64             `json:"timestamp"`
}

func now() int64 { return time.Now().UnixMilli() }

// NewStartEvent marks the beginning of one task execution.
func NewStartEvent(agentID, task string) TaskEvent {
	return TaskEvent{Type: EventTypeStart, AgentID: agentID, Task: task, Timestamp: now()}
}

// NewChunkEvent carries one response fragment.
func NewChunkEvent(agentID, content string) TaskEvent {
	return TaskEvent{Type: EventTypeChunk, AgentID: agentID, Data: content, Timestamp: now()}
}

// NewCompleteEvent carries the terminal result of one task.
func NewCompleteEvent(agentID, task string, response any) TaskEvent {
	return TaskEvent{Type: EventTypeComplete, AgentID: agentID, Task: task, Response: response, Timestamp: now()}
}

// NewErrorEvent is the terminal event for a failed task.
func NewErrorEvent(agentID, task, message string) TaskEvent {
	return TaskEvent{Type: EventTypeError, AgentID: agentID, Task: task, Error: message, Timestamp: now()}
}

// NewPlanProgressEvent wraps one executor progress snapshot.
func NewPlanProgressEvent(p executor.Progress) PlanProgressEvent {
	return PlanProgressEvent{Type: EventTypePlanProgress, Progress: p, Timestamp: now()}
}
