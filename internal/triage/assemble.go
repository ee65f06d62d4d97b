package triage

import (
	"fmt"
	"time"

	"github.com/msato/dayplan/internal/model"
)

// Assembler composes classifications into one immutable Plan value.
type Assembler struct {
	cfg model.Config
}

func NewAssembler(cfg model.Config) *Assembler {
	return &Assembler{cfg: cfg}
}

// Assemble builds a draft plan for date from one consistent snapshot of
// classifications, carrying the previous day's closure rate when known.
func (a *Assembler) Assemble(date string, cls []model.Classification, prevRate *float64) (model.Plan, error) {
	priorities := NewSelector(a.cfg.Classify).Select(cls)
	return a.compose(date, priorities, cls, prevRate)
}

// Replan merges a blocking classification into a new plan built from a
// fresh snapshot. The blocking item is unconditionally priority #1; the
// remaining slots are filled by normal selection over every other item.
// The caller owns tagging the superseded plan as interrupted.
func (a *Assembler) Replan(blocking model.Classification, fresh []model.Classification, current *model.Plan) (model.Plan, error) {
	if blocking.Category != model.CategoryBlocking {
		return model.Plan{}, fmt.Errorf("item %s is not blocking (category %s)", blocking.Item.ID, blocking.Category)
	}

	others := make([]model.Classification, 0, len(fresh))
	for _, c := range fresh {
		if c.Item.ID != blocking.Item.ID {
			others = append(others, c)
		}
	}

	priorities := []model.Classification{blocking}
	fill := NewSelector(a.cfg.Classify).Select(others)
	if len(fill) > model.MaxPriorities-1 {
		fill = fill[:model.MaxPriorities-1]
	}
	priorities = append(priorities, fill...)

	var prevRate *float64
	date := time.Now().Format("2006-01-02")
	if current != nil {
		prevRate = current.PrevClosureRate
		date = current.Date
	}

	return a.compose(date, priorities, others, prevRate)
}

func (a *Assembler) compose(date string, priorities, cls []model.Classification, prevRate *float64) (model.Plan, error) {
	id, err := model.GenerateID(model.IDTypePlan)
	if err != nil {
		return model.Plan{}, fmt.Errorf("generate plan ID: %w", err)
	}

	chosen := make(map[string]bool, len(priorities))
	for _, p := range priorities {
		chosen[p.Item.ID] = true
	}

	admin := GroupAdministrative(cls, a.cfg.Classify, a.cfg.Plan.AdminBlockMinutes)

	var blocked, other []model.Classification
	for _, c := range cls {
		switch {
		case chosen[c.Item.ID]:
		case c.Category == model.CategoryAdministrative:
			// already in the admin block or its deferred list
		case c.Category == model.CategoryDependent:
			blocked = append(blocked, c)
		default:
			other = append(other, c)
		}
	}

	now := time.Now().Format(time.RFC3339)
	plan := model.Plan{
		SchemaVersion:   1,
		FileType:        model.PlanFileType,
		ID:              id,
		Date:            date,
		State:           model.PlanStateDraft,
		Priorities:      priorities,
		Admin:           admin,
		Blocked:         blocked,
		Other:           other,
		PrevClosureRate: prevRate,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if errs := CheckPlanInvariants(plan); errs != nil {
		return model.Plan{}, fmt.Errorf("assembled plan violates invariants: %w", errs)
	}
	return plan, nil
}

// CheckPlanInvariants verifies the correctness contract every plan must
// satisfy. The single blocking priority forced by re-planning is the one
// allowed exception, and only in slot #1.
func CheckPlanInvariants(plan model.Plan) *ValidationErrors {
	errs := &ValidationErrors{}

	if len(plan.Priorities) > model.MaxPriorities {
		errs.Add("priorities", fmt.Sprintf("%d priorities exceed the cap of %d", len(plan.Priorities), model.MaxPriorities))
	}
	for i, p := range plan.Priorities {
		path := fmt.Sprintf("priorities[%d]", i)
		if p.Category == model.CategoryBlocking {
			if i != 0 {
				errs.Add(path, "blocking item only allowed in slot 1")
			}
			continue
		}
		if p.HasDependencies {
			errs.Add(path, "priority has unresolved dependencies")
		}
		if p.EstimatedDays > 1.0 {
			errs.Add(path, fmt.Sprintf("priority estimated at %.2f days exceeds 1.0", p.EstimatedDays))
		}
		if p.Category == model.CategoryAdministrative {
			errs.Add(path, "administrative item cannot be a priority")
		}
	}
	if plan.Admin.TotalMinutes > model.DefaultAdminBlockMin {
		errs.Add("admin.total_minutes", fmt.Sprintf("%d minutes exceed the %d-minute cap", plan.Admin.TotalMinutes, model.DefaultAdminBlockMin))
	}
	if plan.Admin.TotalMinutes < 0 {
		errs.Add("admin.total_minutes", "negative administrative block")
	}
	if plan.PrevClosureRate != nil {
		if r := *plan.PrevClosureRate; r < 0 || r > 1 {
			errs.Add("prev_closure_rate", fmt.Sprintf("closure rate %v outside [0,1]", r))
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
