// Package openaichat adapts any OpenAI-compatible chat completion endpoint to
// the llm.ProviderClient capability. OpenAI itself, Gemini's OpenAI-compat
// surface, and a local ollama daemon (/v1) all speak this protocol; only the
// base URL and API key differ per provider.
package openaichat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/guildworks/guildhall/pkg/llm"
)

// chunkBuffer bounds the chunk channel; the pump blocks rather than drops
// when the consumer falls behind.
const chunkBuffer = 32

// ChatClient captures the subset of the go-openai client used by the adapter,
// so tests can substitute a scripted fake.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (ChatStream, error)
}

// ChatStream is the streaming half of a chat completion.
// *openai.ChatCompletionStream satisfies it.
type ChatStream interface {
	Recv() (openai.ChatCompletionStreamResponse, error)
	Close() error
}

// sdkClient wraps *openai.Client behind ChatClient; the SDK method returns
// the concrete stream type, which must not leak through as a typed nil.
type sdkClient struct{ api *openai.Client }

func (c sdkClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return c.api.CreateChatCompletion(ctx, req)
}

func (c sdkClient) CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (ChatStream, error) {
	stream, err := c.api.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// Options configures the adapter endpoint.
type Options struct {
	// Name is the provider registry key ("openai", "gemini", "ollama").
	Name string
	// BaseURL overrides the endpoint; empty means api.openai.com.
	BaseURL string
	// APIKey may be empty for local daemons that accept anonymous calls.
	APIKey string
	// HTTPClient overrides the SDK transport; nil uses the default.
	HTTPClient *http.Client
}

// Client is an llm.ProviderClient backed by an OpenAI-compatible endpoint.
type Client struct {
	name   string
	api    ChatClient
	logger *slog.Logger
}

// New creates a client for the configured endpoint.
func New(opts Options) *Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}
	return NewFromChatClient(opts.Name, sdkClient{api: openai.NewClientWithConfig(cfg)})
}

// NewFromChatClient wires an existing ChatClient; tests use this with fakes.
func NewFromChatClient(name string, api ChatClient) *Client {
	return &Client{
		name:   name,
		api:    api,
		logger: slog.Default().With("component", "openaichat", "provider", name),
	}
}

// Name returns the provider registry key.
func (c *Client) Name() string { return c.name }

// Chat sends one blocking chat completion.
func (c *Client) Chat(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	resp, err := c.api.CreateChatCompletion(ctx, c.buildRequest(req, false))
	if err != nil {
		return nil, c.wrapError(req, err)
	}
	if len(resp.Choices) == 0 {
		return nil, llm.ProviderErrorf(c.name, req.Model, 0, llm.ErrEmptyResponse)
	}

	out := &llm.Response{
		Content:  resp.Choices[0].Message.Content,
		Model:    resp.Model,
		Provider: c.name,
	}
	if resp.Usage.TotalTokens > 0 {
		out.Usage = &llm.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		}
	}
	return out, nil
}

// Stream opens a streaming completion and pumps SDK deltas into the shared
// chunk form. The channel closes when the stream ends; failures arrive as a
// terminal ErrorChunk.
func (c *Client) Stream(ctx context.Context, req *llm.Request) (<-chan llm.Chunk, error) {
	stream, err := c.api.CreateChatCompletionStream(ctx, c.buildRequest(req, true))
	if err != nil {
		return nil, c.wrapError(req, err)
	}

	ch := make(chan llm.Chunk, chunkBuffer)
	go func() {
		defer close(ch)
		defer func() {
			if closeErr := stream.Close(); closeErr != nil {
				c.logger.Warn("Failed to close completion stream", "error", closeErr)
			}
		}()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				c.send(ctx, ch, &llm.ErrorChunk{
					Message:   err.Error(),
					Code:      errorCode(err),
					Retryable: retryable(err),
				})
				return
			}

			// With IncludeUsage the final data frame carries usage and no choices.
			if resp.Usage != nil && resp.Usage.TotalTokens > 0 {
				if !c.send(ctx, ch, &llm.UsageChunk{
					InputTokens:  resp.Usage.PromptTokens,
					OutputTokens: resp.Usage.CompletionTokens,
					TotalTokens:  resp.Usage.TotalTokens,
				}) {
					return
				}
			}
			if len(resp.Choices) == 0 {
				continue
			}
			if delta := resp.Choices[0].Delta.Content; delta != "" {
				if !c.send(ctx, ch, &llm.TextChunk{Content: delta}) {
					return
				}
			}
		}
	}()
	return ch, nil
}

// send blocks until the chunk is consumed or the context ends.
func (c *Client) send(ctx context.Context, ch chan<- llm.Chunk, chunk llm.Chunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Client) buildRequest(req *llm.Request, stream bool) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    mapRole(m.Role),
			Content: m.Content,
		})
	}

	out := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if stream {
		out.Stream = true
		out.StreamOptions = &openai.StreamOptions{IncludeUsage: true}
	}
	return out
}

// wrapError classifies an SDK error into the shared provider error shape.
func (c *Client) wrapError(req *llm.Request, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return llm.ProviderErrorf(c.name, req.Model, apiErr.HTTPStatusCode, err)
	}
	return llm.ProviderErrorf(c.name, req.Model, 0, err)
}

func mapRole(r llm.Role) string {
	switch r {
	case llm.RoleSystem:
		return openai.ChatMessageRoleSystem
	case llm.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

func errorCode(err error) string {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("http_%d", apiErr.HTTPStatusCode)
	}
	return "stream_error"
}

func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	return false
}
