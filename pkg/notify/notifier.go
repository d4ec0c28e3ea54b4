package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/guildworks/guildhall/pkg/workflow"
)

// postTimeout bounds one notification delivery.
const postTimeout = 10 * time.Second

// Config holds the parameters needed to construct a Notifier.
type Config struct {
	Token   string
	Channel string
}

// Notifier delivers terminal-plan notifications to Slack.
// Nil-safe: all methods are no-ops when the notifier is nil.
type Notifier struct {
	client *Client
	logger *slog.Logger
}

// New creates a new plan notifier. Returns nil if Token or Channel is empty.
func New(cfg Config) *Notifier {
	if cfg.Token == "" || cfg.Channel == "" {
		return nil
	}
	return &Notifier{
		client: NewClient(cfg.Token, cfg.Channel),
		logger: slog.Default().With("component", "notifier"),
	}
}

// NewWithClient creates a Notifier backed by a pre-built Client.
// Useful for testing with a mock API server.
func NewWithClient(client *Client) *Notifier {
	return &Notifier{
		client: client,
		logger: slog.Default().With("component", "notifier"),
	}
}

// NotifyPlanCompleted posts a summary of a terminal plan.
// Fire-and-forget: delivery happens in the background with a timeout, and
// failures are logged, never returned.
func (n *Notifier) NotifyPlanCompleted(plan *workflow.Plan, costUSD float64) {
	if n == nil {
		return
	}

	blocks := BuildPlanMessage(plan, costUSD)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), postTimeout)
		defer cancel()

		if err := n.client.PostMessage(ctx, blocks, postTimeout); err != nil {
			n.logger.Error("Failed to send plan notification",
				"plan_id", plan.ID,
				"status", plan.Status,
				"error", err)
		}
	}()
}
