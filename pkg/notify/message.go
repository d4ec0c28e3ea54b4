package notify

import (
	"fmt"
	"time"

	goslack "github.com/slack-go/slack"

	"github.com/guildworks/guildhall/pkg/workflow"
)

const maxBlockTextLength = 2900

var statusEmoji = map[workflow.PlanStatus]string{
	workflow.PlanCompleted: ":white_check_mark:",
	workflow.PlanFailed:    ":x:",
	workflow.PlanCancelled: ":no_entry_sign:",
}

var statusLabel = map[workflow.PlanStatus]string{
	workflow.PlanCompleted: "Plan Completed",
	workflow.PlanFailed:    "Plan Failed",
	workflow.PlanCancelled: "Plan Cancelled",
}

// BuildPlanMessage creates Block Kit blocks for a terminal plan notification.
func BuildPlanMessage(plan *workflow.Plan, costUSD float64) []goslack.Block {
	emoji := statusEmoji[plan.Status]
	if emoji == "" {
		emoji = ":question:"
	}
	label := statusLabel[plan.Status]
	if label == "" {
		label = "Plan " + string(plan.Status)
	}

	header := fmt.Sprintf("%s *%s*", emoji, label)
	if plan.Description != "" {
		header += "\n" + truncateForSlack(plan.Description)
	}

	completed, failed, skipped := plan.Counts()
	fields := []*goslack.TextBlockObject{
		goslack.NewTextBlockObject(goslack.MarkdownType,
			fmt.Sprintf("*Steps:*\n%d completed, %d failed, %d skipped of %d", completed, failed, skipped, len(plan.Steps)), false, false),
		goslack.NewTextBlockObject(goslack.MarkdownType,
			fmt.Sprintf("*Duration:*\n%s", planDuration(plan).Round(time.Millisecond)), false, false),
		goslack.NewTextBlockObject(goslack.MarkdownType,
			fmt.Sprintf("*Cost:*\n$%.4f", costUSD), false, false),
		goslack.NewTextBlockObject(goslack.MarkdownType,
			fmt.Sprintf("*Plan:*\n`%s`", plan.ID), false, false),
	}

	return []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, header, false, false),
			nil, nil,
		),
		goslack.NewSectionBlock(nil, fields, nil),
	}
}

// planDuration spans the earliest step start to the latest step completion.
func planDuration(plan *workflow.Plan) time.Duration {
	var start, end time.Time
	for _, step := range plan.Steps {
		if step.Result == nil {
			continue
		}
		if !step.Result.StartedAt.IsZero() && (start.IsZero() || step.Result.StartedAt.Before(start)) {
			start = step.Result.StartedAt
		}
		if step.Result.CompletedAt.After(end) {
			end = step.Result.CompletedAt
		}
	}
	if start.IsZero() || end.IsZero() {
		return 0
	}
	return end.Sub(start)
}

func truncateForSlack(text string) string {
	if len(text) <= maxBlockTextLength {
		return text
	}
	return text[:maxBlockTextLength] + "\n\n_... (truncated)_"
}
