// Package llm defines the provider capability the runtime consumes: one chat
// call against one model, in blocking or streaming form, plus the fallback
// chain that walks an ordered candidate list until a provider answers.
//
// Concrete adapters live under providers/. They translate the SDK surface of
// each vendor into the Chunk stream defined here; everything above this
// package is provider-agnostic.
package llm

import "context"

// ProviderClient is the capability contract for a single provider endpoint.
// Implementations must be safe for concurrent use.
type ProviderClient interface {
	// Name returns the provider registry key ("openai", "ollama", ...).
	Name() string

	// Chat sends one blocking chat request and returns the final response.
	Chat(ctx context.Context, req *Request) (*Response, error)

	// Stream sends one chat request and returns a stream of chunks.
	// The channel is closed when the stream completes; failures are
	// delivered as a terminal ErrorChunk. Producers must block on the
	// channel rather than drop chunks when the consumer is slow.
	Stream(ctx context.Context, req *Request) (<-chan Chunk, error)
}

// Chunk is the interface for all streaming chunk types.
type Chunk interface {
	chunkType() ChunkType
}

// ChunkType identifies the kind of streaming chunk.
type ChunkType string

const (
	ChunkTypeText    ChunkType = "text"
	ChunkTypeUsage   ChunkType = "usage"
	ChunkTypeError   ChunkType = "error"
	ChunkTypeAttempt ChunkType = "attempt"
)

// TextChunk is a fragment of the model's text response.
type TextChunk struct{ Content string }

// UsageChunk reports token consumption for the call; providers that report
// usage emit it once, near the end of the stream.
type UsageChunk struct{ InputTokens, OutputTokens, TotalTokens int }

// ErrorChunk signals a provider failure; it is always the last chunk.
type ErrorChunk struct {
	Message   string
	Code      string
	Retryable bool
}

// AttemptChunk identifies the candidate actually serving the stream. The
// fallback chain injects it ahead of an attempt's first forwarded chunk;
// provider clients never emit it. Consumers attribute output, model
// identity, and cost to the candidate it names.
type AttemptChunk struct {
	Provider string
	Model    string
}

func (c *TextChunk) chunkType() ChunkType    { return ChunkTypeText }
func (c *UsageChunk) chunkType() ChunkType   { return ChunkTypeUsage }
func (c *ErrorChunk) chunkType() ChunkType   { return ChunkTypeError }
func (c *AttemptChunk) chunkType() ChunkType { return ChunkTypeAttempt }
