package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msato/dayplan/internal/model"
)

func modifiablePlan(t *testing.T) model.Plan {
	t.Helper()
	a := testAssembler()
	plan, err := a.Assemble("2026-03-02", []model.Classification{
		eligible("PROJ-1", "todo", "High", 0.25),
		eligible("PROJ-2", "todo", "High", 0.5),
		eligible("PROJ-3", "todo", "Medium", 0.5),
		eligible("PROJ-4", "todo", "Low", 1.0),
		adminItem("PROJ-20", 40),
		adminItem("PROJ-21", 30),
	}, nil)
	require.NoError(t, err)
	return plan
}

func TestApplyModifications_ReplacePriorities(t *testing.T) {
	plan := modifiablePlan(t)

	got, err := ApplyModifications(plan, map[string]any{
		"priorities": []string{"PROJ-4", "PROJ-1"},
	}, model.DefaultMinutesPerDay)
	require.NoError(t, err)

	require.Len(t, got.Priorities, 2)
	assert.Equal(t, "PROJ-4", got.Priorities[0].Item.ID)
	assert.Equal(t, "PROJ-1", got.Priorities[1].Item.ID)
	assert.Equal(t, model.PlanStateModified, got.State)

	// the draft itself is never mutated
	assert.Equal(t, model.PlanStateDraft, plan.State)
	assert.Equal(t, "PROJ-1", plan.Priorities[0].Item.ID)
}

func TestApplyModifications_TooManyPriorities(t *testing.T) {
	plan := modifiablePlan(t)

	_, err := ApplyModifications(plan, map[string]any{
		"priorities": []string{"PROJ-1", "PROJ-2", "PROJ-3", "PROJ-4"},
	}, model.DefaultMinutesPerDay)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cap")
}

func TestApplyModifications_UnknownItem(t *testing.T) {
	plan := modifiablePlan(t)

	_, err := ApplyModifications(plan, map[string]any{
		"priorities": []string{"PROJ-404"},
	}, model.DefaultMinutesPerDay)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROJ-404")
}

func TestApplyModifications_UnknownKey(t *testing.T) {
	plan := modifiablePlan(t)

	_, err := ApplyModifications(plan, map[string]any{"rename": "x"}, model.DefaultMinutesPerDay)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown modification")
}

func TestApplyModifications_DuplicatePriority(t *testing.T) {
	plan := modifiablePlan(t)

	_, err := ApplyModifications(plan, map[string]any{
		"priorities": []string{"PROJ-1", "PROJ-1", "PROJ-1"},
	}, model.DefaultMinutesPerDay)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "more than once")
	assert.Equal(t, model.PlanStateDraft, plan.State)
}

func TestApplyModifications_RemoveAdmin(t *testing.T) {
	plan := modifiablePlan(t)
	require.Len(t, plan.Admin.Items, 2)

	got, err := ApplyModifications(plan, map[string]any{
		"remove_admin": []string{"PROJ-21"},
	}, model.DefaultMinutesPerDay)
	require.NoError(t, err)

	require.Len(t, got.Admin.Items, 1)
	assert.Equal(t, "PROJ-20", got.Admin.Items[0].Item.ID)
	assert.Equal(t, 40, got.Admin.TotalMinutes)
}

func TestApplyModifications_AnySliceFromYAML(t *testing.T) {
	plan := modifiablePlan(t)

	// decoded YAML/JSON hands []any, not []string
	got, err := ApplyModifications(plan, map[string]any{
		"priorities": []any{"PROJ-2"},
	}, model.DefaultMinutesPerDay)
	require.NoError(t, err)
	require.Len(t, got.Priorities, 1)
	assert.Equal(t, "PROJ-2", got.Priorities[0].Item.ID)
}

func TestApplyModifications_InvariantViolationKeepsOriginal(t *testing.T) {
	plan := modifiablePlan(t)

	// an admin item can never be promoted to a priority
	_, err := ApplyModifications(plan, map[string]any{
		"priorities": []string{"PROJ-20"},
	}, model.DefaultMinutesPerDay)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "administrative")
	assert.Equal(t, model.PlanStateDraft, plan.State)
}
