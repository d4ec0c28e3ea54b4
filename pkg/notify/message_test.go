package notify

import (
	"testing"
	"time"

	goslack "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildworks/guildhall/pkg/workflow"
)

func terminalPlan(status workflow.PlanStatus) *workflow.Plan {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &workflow.Plan{
		ID:          "plan_123_abc",
		Description: "build THEN test",
		Status:      status,
		Steps: []*workflow.Step{
			{
				ID: "step_1", Status: workflow.StepCompleted,
				Result: &workflow.StepResult{Output: "done", StartedAt: base, CompletedAt: base.Add(2 * time.Second)},
			},
			{
				ID: "step_2", Status: workflow.StepFailed,
				Result: &workflow.StepResult{Error: "boom", StartedAt: base.Add(2 * time.Second), CompletedAt: base.Add(5 * time.Second)},
			},
			{ID: "step_3", Status: workflow.StepSkipped},
		},
	}
}

func sectionText(t *testing.T, block goslack.Block) string {
	t.Helper()
	section, ok := block.(*goslack.SectionBlock)
	require.True(t, ok)
	require.NotNil(t, section.Text)
	return section.Text.Text
}

func TestBuildPlanMessage(t *testing.T) {
	blocks := BuildPlanMessage(terminalPlan(workflow.PlanFailed), 0.062)
	require.Len(t, blocks, 2)

	header := sectionText(t, blocks[0])
	assert.Contains(t, header, ":x:")
	assert.Contains(t, header, "Plan Failed")
	assert.Contains(t, header, "build THEN test")

	fields, ok := blocks[1].(*goslack.SectionBlock)
	require.True(t, ok)
	require.Len(t, fields.Fields, 4)
	assert.Contains(t, fields.Fields[0].Text, "1 completed, 1 failed, 1 skipped of 3")
	assert.Contains(t, fields.Fields[1].Text, "5s")
	assert.Contains(t, fields.Fields[2].Text, "$0.0620")
	assert.Contains(t, fields.Fields[3].Text, "plan_123_abc")
}

func TestBuildPlanMessageStatusFallback(t *testing.T) {
	plan := terminalPlan("archived")
	blocks := BuildPlanMessage(plan, 0)

	header := sectionText(t, blocks[0])
	assert.Contains(t, header, ":question:")
	assert.Contains(t, header, "Plan archived")
}

func TestPlanDurationWithoutResults(t *testing.T) {
	plan := &workflow.Plan{Steps: []*workflow.Step{{ID: "s1"}}}
	assert.Zero(t, planDuration(plan))
}
