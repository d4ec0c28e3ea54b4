// Package anthropic adapts the Anthropic Messages API to the
// llm.ProviderClient capability using github.com/anthropics/anthropic-sdk-go.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/guildworks/guildhall/pkg/llm"
)

// chunkBuffer bounds the chunk channel; the pump blocks rather than drops
// when the consumer falls behind.
const chunkBuffer = 32

// defaultMaxTokens is used when the request carries no completion cap; the
// Messages API rejects requests without one.
const defaultMaxTokens = 4096

// MessagesClient captures the subset of the Anthropic SDK client used by the
// adapter. *sdk.MessageService satisfies it, so tests can pass a scripted fake.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
	NewStreaming(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion]
}

// Options configures the adapter endpoint.
type Options struct {
	// Name is the provider registry key (normally "anthropic").
	Name string
	// APIKey authenticates against the Messages API.
	APIKey string
	// BaseURL overrides the endpoint; empty means api.anthropic.com.
	BaseURL string
}

// Client is an llm.ProviderClient backed by the Anthropic Messages API.
type Client struct {
	name   string
	msg    MessagesClient
	logger *slog.Logger
}

// New creates a client for the configured endpoint.
func New(opts Options) *Client {
	sdkOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		sdkOpts = append(sdkOpts, option.WithBaseURL(opts.BaseURL))
	}
	ac := sdk.NewClient(sdkOpts...)
	return NewFromMessagesClient(opts.Name, &ac.Messages)
}

// NewFromMessagesClient wires an existing MessagesClient; tests use this with fakes.
func NewFromMessagesClient(name string, msg MessagesClient) *Client {
	if name == "" {
		name = "anthropic"
	}
	return &Client{
		name:   name,
		msg:    msg,
		logger: slog.Default().With("component", "anthropic", "provider", name),
	}
}

// Name returns the provider registry key.
func (c *Client) Name() string { return c.name }

// Chat sends one blocking Messages request.
func (c *Client) Chat(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	msg, err := c.msg.New(ctx, c.buildParams(req))
	if err != nil {
		return nil, c.wrapError(req, err)
	}

	content := textContent(msg)
	if content == "" {
		return nil, llm.ProviderErrorf(c.name, req.Model, 0, llm.ErrEmptyResponse)
	}

	out := &llm.Response{
		Content:  content,
		Model:    string(msg.Model),
		Provider: c.name,
	}
	if msg.Usage.InputTokens > 0 || msg.Usage.OutputTokens > 0 {
		out.Usage = &llm.Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
			TotalTokens:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		}
	}
	return out, nil
}

// Stream opens a streaming Messages request and pumps SSE events into the
// shared chunk form. The channel closes when the stream ends; failures arrive
// as a terminal ErrorChunk.
func (c *Client) Stream(ctx context.Context, req *llm.Request) (<-chan llm.Chunk, error) {
	stream := c.msg.NewStreaming(ctx, c.buildParams(req))
	if err := stream.Err(); err != nil {
		_ = stream.Close()
		return nil, c.wrapError(req, err)
	}

	ch := make(chan llm.Chunk, chunkBuffer)
	go func() {
		defer close(ch)
		defer func() {
			if closeErr := stream.Close(); closeErr != nil {
				c.logger.Warn("Failed to close message stream", "error", closeErr)
			}
		}()

		// Input tokens arrive on message_start; output tokens on the final
		// message_delta. Combined into one UsageChunk at stream end.
		var inputTokens, outputTokens int

		for stream.Next() {
			event := stream.Current()
			switch ev := event.AsAny().(type) {
			case sdk.MessageStartEvent:
				inputTokens = int(ev.Message.Usage.InputTokens)
			case sdk.ContentBlockDeltaEvent:
				if delta, ok := ev.Delta.AsAny().(sdk.TextDelta); ok && delta.Text != "" {
					if !c.send(ctx, ch, &llm.TextChunk{Content: delta.Text}) {
						return
					}
				}
			case sdk.MessageDeltaEvent:
				outputTokens = int(ev.Usage.OutputTokens)
			}
		}

		if err := stream.Err(); err != nil {
			c.send(ctx, ch, &llm.ErrorChunk{
				Message:   err.Error(),
				Code:      errorCode(err),
				Retryable: retryable(err),
			})
			return
		}

		if inputTokens > 0 || outputTokens > 0 {
			c.send(ctx, ch, &llm.UsageChunk{
				InputTokens:  inputTokens,
				OutputTokens: outputTokens,
				TotalTokens:  inputTokens + outputTokens,
			})
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

// buildParams translates the shared request into Messages API parameters.
// System messages map to the params-level System field; user and assistant
// turns become conversation messages.
func (c *Client) buildParams(req *llm.Request) sdk.MessageNewParams {
	var system []sdk.TextBlockParam
	conversation := make([]sdk.MessageParam, 0, len(req.Messages))

	for _, m := range req.Messages {
		if m.Content == "" {
			continue
		}
		switch m.Role {
		case llm.RoleSystem:
			system = append(system, sdk.TextBlockParam{Text: m.Content})
		case llm.RoleAssistant:
			conversation = append(conversation, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
		default:
			conversation = append(conversation, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages:  conversation,
	}
	if len(system) > 0 {
		params.System = system
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(float64(req.Temperature))
	}
	return params
}

// wrapError classifies an SDK error into the shared provider error shape.
func (c *Client) wrapError(req *llm.Request, err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return llm.ProviderErrorf(c.name, req.Model, apiErr.StatusCode, err)
	}
	return llm.ProviderErrorf(c.name, req.Model, 0, err)
}

// textContent concatenates the text blocks of a response message.
func textContent(msg *sdk.Message) string {
	if msg == nil {
		return ""
	}
	var out string
	for _, block := range msg.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	return out
}

func errorCode(err error) string {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("http_%d", apiErr.StatusCode)
	}
	return "stream_error"
}

func retryable(err error) bool {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return false
}
