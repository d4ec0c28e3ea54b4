package e2e

import (
	"context"
	"strings"
	"sync"

	"github.com/guildworks/guildhall/pkg/llm"
)

// ScriptedProvider is an llm.ProviderClient with canned behavior. Replies
// are keyed by a substring of the user message; unmatched requests answer
// with "done: <model>". A task containing "hang" blocks until cancellation.
type ScriptedProvider struct {
	name string

	mu      sync.Mutex
	replies map[string]string
	errs    map[string]error
	calls   []llm.Request
}

// NewScriptedProvider creates a provider stub for the given registry key.
func NewScriptedProvider(name string) *ScriptedProvider {
	return &ScriptedProvider{
		name:    name,
		replies: make(map[string]string),
		errs:    make(map[string]error),
	}
}

// Reply registers canned content for user messages containing key.
func (p *ScriptedProvider) Reply(key, content string) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies[key] = content
	return p
}

// Fail registers an error for user messages containing key.
func (p *ScriptedProvider) Fail(key string, err error) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs[key] = err
	return p
}

// Calls returns a snapshot of every request this provider served.
func (p *ScriptedProvider) Calls() []llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llm.Request(nil), p.calls...)
}

func (p *ScriptedProvider) Name() string { return p.name }

func (p *ScriptedProvider) resolve(ctx context.Context, req *llm.Request) (string, error) {
	userMsg := ""
	if len(req.Messages) > 0 {
		userMsg = req.Messages[len(req.Messages)-1].Content
	}

	if strings.Contains(userMsg, "hang") {
		<-ctx.Done()
		return "", ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, *req)

	for key, err := range p.errs {
		if strings.Contains(userMsg, key) {
			return "", err
		}
	}
	for key, content := range p.replies {
		if strings.Contains(userMsg, key) {
			return content, nil
		}
	}
	return "done: " + req.Model, nil
}

func (p *ScriptedProvider) Chat(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	content, err := p.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	return &llm.Response{
		Content:  content,
		Model:    req.Model,
		Provider: p.name,
		Usage:    &llm.Usage{InputTokens: 100, OutputTokens: 50, TotalTokens: 150},
	}, nil
}

func (p *ScriptedProvider) Stream(ctx context.Context, req *llm.Request) (<-chan llm.Chunk, error) {
	content, err := p.resolve(ctx, req)
	out := make(chan llm.Chunk, 8)
	if err != nil {
		out <- &llm.ErrorChunk{Message: err.Error(), Code: "provider_error"}
		close(out)
		return out, nil
	}

	// Split the reply into a few fragments to exercise chunk handling.
	half := len(content) / 2
	if half > 0 {
		out <- &llm.TextChunk{Content: content[:half]}
		out <- &llm.TextChunk{Content: content[half:]}
	} else {
		out <- &llm.TextChunk{Content: content}
	}
	out <- &llm.UsageChunk{InputTokens: 100, OutputTokens: 50, TotalTokens: 150}
	close(out)
	return out, nil
}
