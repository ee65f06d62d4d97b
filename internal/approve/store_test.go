package approve

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msato/dayplan/internal/model"
)

func testPlan(t *testing.T, date string) model.Plan {
	t.Helper()
	id, err := model.GenerateID(model.IDTypePlan)
	require.NoError(t, err)
	now := time.Now().Format(time.RFC3339)
	return model.Plan{
		ID:        id,
		Date:      date,
		State:     model.PlanStateDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	store := NewStore(t.TempDir())
	plan := testPlan(t, "2026-08-29")

	require.NoError(t, store.Save(plan))

	loaded, err := store.Load("2026-08-29")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, plan.ID, loaded.ID)
	assert.Equal(t, model.PlanStateDraft, loaded.State)
	assert.Equal(t, model.PlanFileType, loaded.FileType)
}

func TestStore_LoadAbsent(t *testing.T) {
	store := NewStore(t.TempDir())

	loaded, err := store.Load("2026-08-29")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStore_Transition(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Save(testPlan(t, "2026-08-29")))

	plan, err := store.Transition("2026-08-29", model.PlanStatePresented)
	require.NoError(t, err)
	assert.Equal(t, model.PlanStatePresented, plan.State)

	plan, err = store.Transition("2026-08-29", model.PlanStateApproved)
	require.NoError(t, err)
	assert.Equal(t, model.PlanStateApproved, plan.State)

	// approved is terminal
	_, err = store.Transition("2026-08-29", model.PlanStateRejected)
	require.Error(t, err)

	loaded, err := store.Load("2026-08-29")
	require.NoError(t, err)
	assert.Equal(t, model.PlanStateApproved, loaded.State)
}

func TestStore_TransitionInvalidSkipsWrite(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Save(testPlan(t, "2026-08-29")))

	_, err := store.Transition("2026-08-29", model.PlanStateApproved)
	require.Error(t, err)

	loaded, err := store.Load("2026-08-29")
	require.NoError(t, err)
	assert.Equal(t, model.PlanStateDraft, loaded.State)
}

func TestStore_TransitionNoPlan(t *testing.T) {
	store := NewStore(t.TempDir())

	_, err := store.Transition("2026-08-29", model.PlanStatePresented)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no plan stored")
}

func TestStore_ExpiredCanRePresent(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Save(testPlan(t, "2026-08-29")))

	_, err := store.Transition("2026-08-29", model.PlanStatePresented)
	require.NoError(t, err)
	_, err = store.Transition("2026-08-29", model.PlanStateExpired)
	require.NoError(t, err)

	plan, err := store.Transition("2026-08-29", model.PlanStatePresented)
	require.NoError(t, err)
	assert.Equal(t, model.PlanStatePresented, plan.State)
}

func TestStore_Supersede(t *testing.T) {
	store := NewStore(t.TempDir())
	old := testPlan(t, "2026-08-29")
	require.NoError(t, store.Save(old))

	next := testPlan(t, "2026-08-29")
	require.NoError(t, store.Supersede("2026-08-29", "PROJ-99", next))

	current, err := store.Load("2026-08-29")
	require.NoError(t, err)
	assert.Equal(t, next.ID, current.ID)
	assert.False(t, current.Interrupted)

	archived, err := store.Archived("2026-08-29")
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, old.ID, archived[0].ID)
	assert.True(t, archived[0].Interrupted)
	require.NotNil(t, archived[0].InterruptedBy)
	assert.Equal(t, "PROJ-99", *archived[0].InterruptedBy)
}

func TestStore_SupersedeWithoutCurrent(t *testing.T) {
	store := NewStore(t.TempDir())
	next := testPlan(t, "2026-08-29")

	require.NoError(t, store.Supersede("2026-08-29", "PROJ-99", next))

	current, err := store.Load("2026-08-29")
	require.NoError(t, err)
	assert.Equal(t, next.ID, current.ID)

	archived, err := store.Archived("2026-08-29")
	require.NoError(t, err)
	assert.Empty(t, archived)
}

func TestStore_RegenerateArchivesSupersededPlan(t *testing.T) {
	store := NewStore(t.TempDir())
	first := testPlan(t, "2026-08-29")
	first.State = model.PlanStateRejected
	require.NoError(t, store.Save(first))

	next := testPlan(t, "2026-08-29")
	require.NoError(t, store.Regenerate(next))

	current, err := store.Load("2026-08-29")
	require.NoError(t, err)
	assert.Equal(t, next.ID, current.ID)

	archived, err := store.Archived("2026-08-29")
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, first.ID, archived[0].ID)
	assert.Equal(t, model.PlanStateRejected, archived[0].State)
}

func TestStore_RegenerateRefusesAcceptedPlan(t *testing.T) {
	for _, state := range []model.PlanState{model.PlanStateApproved, model.PlanStateModified} {
		store := NewStore(t.TempDir())
		current := testPlan(t, "2026-08-29")
		current.State = state
		require.NoError(t, store.Save(current))

		err := store.Regenerate(testPlan(t, "2026-08-29"))
		require.Error(t, err, "state %s", state)
		assert.Contains(t, err.Error(), "refusing to replace")

		kept, err := store.Load("2026-08-29")
		require.NoError(t, err)
		assert.Equal(t, current.ID, kept.ID)
	}
}

func TestStore_RegenerateWithoutCurrent(t *testing.T) {
	store := NewStore(t.TempDir())

	next := testPlan(t, "2026-08-29")
	require.NoError(t, store.Regenerate(next))

	current, err := store.Load("2026-08-29")
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, next.ID, current.ID)
}

func TestStore_SaveModifiedRequiresState(t *testing.T) {
	store := NewStore(t.TempDir())
	plan := testPlan(t, "2026-08-29")

	err := store.SaveModified(plan)
	require.Error(t, err)

	plan.State = model.PlanStateModified
	require.NoError(t, store.SaveModified(plan))

	loaded, err := store.Load("2026-08-29")
	require.NoError(t, err)
	assert.Equal(t, model.PlanStateModified, loaded.State)
}

func TestStore_LoadCorruptQuarantines(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "plans"), 0755))
	path := filepath.Join(dir, "plans", "2026-08-29.yaml")
	require.NoError(t, os.WriteFile(path, []byte("file_type: wrong\n"), 0644))

	loaded, err := store.Load("2026-08-29")
	require.NoError(t, err)
	assert.Nil(t, loaded)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestAutoApprover(t *testing.T) {
	var approver Approver = AutoApprover{}
	plan := testPlan(t, "2026-08-29")

	result, err := approver.PresentPlan(context.Background(), plan, "rendered")
	require.NoError(t, err)
	assert.True(t, result.Approved)

	result, err = approver.PresentSubtasks(context.Background(), model.WorkItem{ID: "PROJ-1"}, nil, "rendered")
	require.NoError(t, err)
	assert.True(t, result.Approved)
}
