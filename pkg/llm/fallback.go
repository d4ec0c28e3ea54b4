package llm

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Candidate is one (provider, model) pair in resolution order.
type Candidate struct {
	Provider string
	Model    string
}

func (c Candidate) String() string { return c.Provider + ":" + c.Model }

// streamBuffer bounds the outbound chunk channel. Producers block once the
// consumer falls this far behind; chunks are never dropped.
const streamBuffer = 32

// ChainOption configures a FallbackChain.
type ChainOption func(*FallbackChain)

// WithTracer overrides the tracer used for per-attempt spans.
func WithTracer(t trace.Tracer) ChainOption {
	return func(c *FallbackChain) { c.tracer = t }
}

// WithLogger overrides the chain's logger.
func WithLogger(l *slog.Logger) ChainOption {
	return func(c *FallbackChain) { c.logger = l }
}

// FallbackChain walks an ordered candidate list until a provider answers.
// Every attempt is recorded as its own span and attached as a link on the
// caller's span, so one dispatch trace shows every model tried.
type FallbackChain struct {
	registry *ClientRegistry
	tracer   trace.Tracer
	logger   *slog.Logger
}

// NewFallbackChain creates a chain over the given client registry.
func NewFallbackChain(registry *ClientRegistry, opts ...ChainOption) *FallbackChain {
	c := &FallbackChain{
		registry: registry,
		tracer:   otel.Tracer("guildhall/llm"),
		logger:   slog.Default().With("component", "fallback-chain"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chat tries each candidate in order until one succeeds. Provider failures
// fall through to the next candidate; context cancellation and deadline
// expiry abort immediately with the context's error.
func (c *FallbackChain) Chat(ctx context.Context, candidates []Candidate, req *Request) (*Response, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: empty candidate list", ErrProviderExhausted)
	}

	caller := trace.SpanFromContext(ctx)
	var lastErr error

	for i, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		client, err := c.registry.Get(cand.Provider)
		if err != nil {
			lastErr = err
			c.logger.Warn("Skipping candidate with unknown provider",
				"provider", cand.Provider,
				"model", cand.Model)
			continue
		}

		attempt := *req
		attempt.Provider = cand.Provider
		attempt.Model = cand.Model

		attemptCtx, span := c.tracer.Start(ctx, "llm.chat",
			trace.WithAttributes(attemptAttrs(i+1, cand)...))
		resp, err := client.Chat(attemptCtx, &attempt)
		linkAttempt(caller, span, i+1, cand)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "attempt failed")
			span.End()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			lastErr = err
			c.logger.Warn("Provider attempt failed, falling back",
				"provider", cand.Provider,
				"model", cand.Model,
				"attempt", i+1,
				"remaining", len(candidates)-i-1,
				"error", err)
			continue
		}

		span.SetStatus(codes.Ok, "")
		span.End()

		resp.Provider = cand.Provider
		if resp.Model == "" {
			resp.Model = cand.Model
		}
		return resp, nil
	}

	return nil, fmt.Errorf("%w: %d candidates tried, last error: %v",
		ErrProviderExhausted, len(candidates), lastErr)
}

// Stream tries candidates until one opens a stream and produces output. Once
// any chunk has been forwarded the attempt is final: a later failure becomes
// a terminal ErrorChunk instead of a retry, so consumers never see duplicated
// partial output.
func (c *FallbackChain) Stream(ctx context.Context, candidates []Candidate, req *Request) (<-chan Chunk, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: empty candidate list", ErrProviderExhausted)
	}

	out := make(chan Chunk, streamBuffer)
	go func() {
		defer close(out)

		caller := trace.SpanFromContext(ctx)
		var lastErr error

		for i, cand := range candidates {
			if err := ctx.Err(); err != nil {
				c.emit(ctx, out, &ErrorChunk{Message: err.Error(), Code: "cancelled"})
				return
			}

			client, err := c.registry.Get(cand.Provider)
			if err != nil {
				lastErr = err
				c.logger.Warn("Skipping candidate with unknown provider",
					"provider", cand.Provider,
					"model", cand.Model)
				continue
			}

			attempt := *req
			attempt.Provider = cand.Provider
			attempt.Model = cand.Model

			attemptCtx, span := c.tracer.Start(ctx, "llm.stream",
				trace.WithAttributes(attemptAttrs(i+1, cand)...))
			in, err := client.Stream(attemptCtx, &attempt)
			linkAttempt(caller, span, i+1, cand)

			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "stream open failed")
				span.End()
				lastErr = err
				c.logger.Warn("Stream open failed, falling back",
					"provider", cand.Provider,
					"model", cand.Model,
					"attempt", i+1,
					"error", err)
				continue
			}

			emitted, failure := c.pump(ctx, cand, in, out)
			switch {
			case failure == nil:
				span.SetStatus(codes.Ok, "")
				span.End()
				return
			case !emitted:
				// Nothing reached the consumer; safe to try the next model.
				span.RecordError(failure)
				span.SetStatus(codes.Error, "stream failed before output")
				span.End()
				lastErr = failure
				c.logger.Warn("Stream failed before first chunk, falling back",
					"provider", cand.Provider,
					"model", cand.Model,
					"attempt", i+1,
					"error", failure)
			default:
				span.RecordError(failure)
				span.SetStatus(codes.Error, "stream failed mid-output")
				span.End()
				c.emit(ctx, out, &ErrorChunk{Message: failure.Error(), Code: "provider_error"})
				return
			}
		}

		msg := fmt.Sprintf("all %d stream candidates failed", len(candidates))
		if lastErr != nil {
			msg = fmt.Sprintf("%s, last error: %v", msg, lastErr)
		}
		c.emit(ctx, out, &ErrorChunk{Message: msg, Code: "exhausted"})
	}()

	return out, nil
}

// pump forwards chunks from one attempt to the outbound channel. An
// AttemptChunk naming the serving candidate precedes the attempt's first
// forwarded chunk, so consumers attribute the stream to the candidate that
// actually produced it rather than the chain's primary. It reports whether
// any chunk reached the consumer and the failure that ended the attempt,
// if any.
func (c *FallbackChain) pump(ctx context.Context, cand Candidate, in <-chan Chunk, out chan<- Chunk) (emitted bool, failure error) {
	for {
		select {
		case chunk, ok := <-in:
			if !ok {
				return emitted, nil
			}
			if errChunk, isErr := chunk.(*ErrorChunk); isErr {
				return emitted, fmt.Errorf("%w: %s", ErrProvider, errChunk.Message)
			}
			if !emitted {
				select {
				case out <- &AttemptChunk{Provider: cand.Provider, Model: cand.Model}:
				case <-ctx.Done():
					return emitted, ctx.Err()
				}
			}
			select {
			case out <- chunk:
				emitted = true
			case <-ctx.Done():
				return emitted, ctx.Err()
			}
		case <-ctx.Done():
			return emitted, ctx.Err()
		}
	}
}

// emit delivers a terminal chunk unless the consumer's context is gone.
func (c *FallbackChain) emit(ctx context.Context, out chan<- Chunk, chunk Chunk) {
	select {
	case out <- chunk:
	case <-ctx.Done():
	}
}

func attemptAttrs(attempt int, cand Candidate) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int("llm.attempt", attempt),
		attribute.String("llm.provider", cand.Provider),
		attribute.String("llm.model", cand.Model),
	}
}

// linkAttempt attaches the attempt span as a link on the caller's span.
// No-op when the caller has no recording span.
func linkAttempt(caller trace.Span, attempt trace.Span, n int, cand Candidate) {
	if caller == nil || !caller.SpanContext().IsValid() {
		return
	}
	caller.AddLink(trace.Link{
		SpanContext: attempt.SpanContext(),
		Attributes:  attemptAttrs(n, cand),
	})
}
