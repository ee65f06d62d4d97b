package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msato/dayplan/internal/model"
)

func classifyCfg() model.ClassifyConfig {
	var cfg model.Config
	cfg.Normalize()
	return cfg.Classify
}

func eligible(id, status, priority string, days float64) model.Classification {
	return model.Classification{
		Item:             model.WorkItem{ID: id, Title: id, Status: status, Priority: priority, Type: "bug"},
		Category:         model.CategoryPriorityEligible,
		PriorityEligible: true,
		EstimatedDays:    days,
	}
}

func TestSelect_TakesTopThreeOfFiveEligible(t *testing.T) {
	s := NewSelector(classifyCfg())

	cls := []model.Classification{
		eligible("PROJ-1", "todo", "Medium", 0.25),
		eligible("PROJ-2", "todo", "Medium", 0.5),
		eligible("PROJ-3", "todo", "Medium", 0.5),
		eligible("PROJ-4", "todo", "Medium", 1.0),
		eligible("PROJ-5", "todo", "Medium", 1.0),
	}

	got := s.Select(cls)
	require.Len(t, got, 3)
	assert.Equal(t, "PROJ-1", got[0].Item.ID)
	assert.Equal(t, "PROJ-2", got[1].Item.ID)
	assert.Equal(t, "PROJ-3", got[2].Item.ID)
}

func TestSelect_FiltersIneligible(t *testing.T) {
	s := NewSelector(classifyCfg())

	dependent := eligible("PROJ-9", "todo", "High", 0.5)
	dependent.Category = model.CategoryDependent
	dependent.PriorityEligible = false
	dependent.HasDependencies = true

	got := s.Select([]model.Classification{dependent, eligible("PROJ-1", "todo", "Low", 1.0)})
	require.Len(t, got, 1)
	assert.Equal(t, "PROJ-1", got[0].Item.ID)
}

func TestSelect_EmptyInput(t *testing.T) {
	s := NewSelector(classifyCfg())
	assert.Empty(t, s.Select(nil))
	assert.Empty(t, s.Select([]model.Classification{}))
}

func TestRank_StatusBeforePriority(t *testing.T) {
	s := NewSelector(classifyCfg())

	cls := []model.Classification{
		eligible("PROJ-1", "todo", "Blocker", 0.1),
		eligible("PROJ-2", "in_progress", "Low", 1.0),
	}
	s.Rank(cls)
	assert.Equal(t, "PROJ-2", cls[0].Item.ID, "in-progress work ranks before any not-started work")
}

func TestRank_PriorityLadder(t *testing.T) {
	s := NewSelector(classifyCfg())

	cls := []model.Classification{
		eligible("PROJ-1", "todo", "Low", 0.5),
		eligible("PROJ-2", "todo", "something_else", 0.5),
		eligible("PROJ-3", "todo", "High", 0.5),
		eligible("PROJ-4", "todo", "Medium", 0.5),
	}
	s.Rank(cls)
	assert.Equal(t, "PROJ-3", cls[0].Item.ID)
	assert.Equal(t, "PROJ-4", cls[1].Item.ID)
	assert.Equal(t, "PROJ-1", cls[2].Item.ID)
	assert.Equal(t, "PROJ-2", cls[3].Item.ID, "unknown labels rank last")
}

func TestRank_EffortBreaksTies(t *testing.T) {
	s := NewSelector(classifyCfg())

	cls := []model.Classification{
		eligible("PROJ-1", "todo", "Medium", 1.0),
		eligible("PROJ-2", "todo", "Medium", 0.25),
	}
	s.Rank(cls)
	assert.Equal(t, "PROJ-2", cls[0].Item.ID)
}

func TestRank_AgeProxyOldestFirst(t *testing.T) {
	s := NewSelector(classifyCfg())

	older := eligible("PROJ-100", "todo", "Medium", 0.5)
	older.Item.CreatedAt = "2026-02-01T09:00:00+09:00"
	newer := eligible("PROJ-101", "todo", "Medium", 0.5)
	newer.Item.CreatedAt = "2026-02-20T09:00:00+09:00"

	cls := []model.Classification{newer, older}
	s.Rank(cls)
	assert.Equal(t, "PROJ-100", cls[0].Item.ID)
}

func TestRank_NumericSuffixFallback(t *testing.T) {
	s := NewSelector(classifyCfg())

	cls := []model.Classification{
		eligible("PROJ-42", "todo", "Medium", 0.5),
		eligible("PROJ-7", "todo", "Medium", 0.5),
	}
	s.Rank(cls)
	assert.Equal(t, "PROJ-7", cls[0].Item.ID, "lower sequence assumed older")
}

func TestRank_NoAgeSignalSortsLast(t *testing.T) {
	s := NewSelector(classifyCfg())

	cls := []model.Classification{
		eligible("zzz", "todo", "Medium", 0.5),
		eligible("PROJ-3", "todo", "Medium", 0.5),
	}
	s.Rank(cls)
	assert.Equal(t, "PROJ-3", cls[0].Item.ID)
}
