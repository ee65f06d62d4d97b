package model

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestPlanMarshalUnmarshal(t *testing.T) {
	rate := 2.0 / 3.0
	plan := Plan{
		SchemaVersion: 1,
		FileType:      PlanFileType,
		ID:            "plan_1700000000_0a1b2c3d",
		Date:          "2026-03-02",
		State:         PlanStateDraft,
		Priorities: []Classification{
			{
				Item:             WorkItem{ID: "PROJ-12", Title: "Fix login redirect", Type: "bug", Priority: "High", Status: "in_progress"},
				Category:         CategoryPriorityEligible,
				PriorityEligible: true,
				EstimatedDays:    0.5,
			},
		},
		Admin: AdminBlock{
			Items: []Classification{
				{
					Item:          WorkItem{ID: "PROJ-40", Title: "Expense report", Type: "chore"},
					Category:      CategoryAdministrative,
					EstimatedDays: 0.125,
				},
			},
			TotalMinutes: 60,
		},
		PrevClosureRate: &rate,
		CreatedAt:       "2026-03-02T09:00:00+09:00",
		UpdatedAt:       "2026-03-02T09:00:00+09:00",
	}

	data, err := yaml.Marshal(&plan)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Plan
	if err := yaml.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got.ID != plan.ID || got.State != plan.State || got.Date != plan.Date {
		t.Errorf("round trip mismatch: got %+v", got)
	}
	if len(got.Priorities) != 1 || got.Priorities[0].Item.ID != "PROJ-12" {
		t.Errorf("priorities not preserved: %+v", got.Priorities)
	}
	if got.PrevClosureRate == nil || *got.PrevClosureRate != rate {
		t.Errorf("closure rate not preserved: %v", got.PrevClosureRate)
	}
}

func TestConfigNormalizeDefaults(t *testing.T) {
	var cfg Config
	cfg.Normalize()

	if cfg.Plan.AdminBlockMinutes != DefaultAdminBlockMin {
		t.Errorf("admin block minutes = %d, want %d", cfg.Plan.AdminBlockMinutes, DefaultAdminBlockMin)
	}
	if cfg.Classify.MinutesPerDay != DefaultMinutesPerDay {
		t.Errorf("minutes per day = %d, want %d", cfg.Classify.MinutesPerDay, DefaultMinutesPerDay)
	}
	if cfg.Classify.DefaultEstimateDays != DefaultEstimateDays {
		t.Errorf("default estimate = %v, want %v", cfg.Classify.DefaultEstimateDays, DefaultEstimateDays)
	}
	if len(cfg.Classify.BlockingPriorities) == 0 {
		t.Error("blocking priorities not defaulted")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("log level = %q, want info", cfg.Logging.Level)
	}
}

func TestConfigNormalizeKeepsExplicitValues(t *testing.T) {
	cfg := Config{}
	cfg.Plan.AdminBlockMinutes = 45
	cfg.Classify.PointsPerDay = 2.0
	cfg.Normalize()

	if cfg.Plan.AdminBlockMinutes != 45 {
		t.Errorf("explicit admin block overwritten: %d", cfg.Plan.AdminBlockMinutes)
	}
	if cfg.Classify.PointsPerDay != 2.0 {
		t.Errorf("explicit ratio overwritten: %v", cfg.Classify.PointsPerDay)
	}
}
