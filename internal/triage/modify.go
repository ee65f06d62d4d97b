package triage

import (
	"fmt"
	"time"

	"github.com/msato/dayplan/internal/model"
)

// ApplyModifications builds a modified copy of plan from caller-supplied
// modifications. A modification that violates a plan invariant is
// rejected with the specific violation and the original plan is left
// untouched. Accepted modifications are adopted verbatim.
//
// Recognized keys:
//
//	priorities:   []string of item IDs from any plan section, replacing
//	              the priority list in the given order
//	remove_admin: []string of item IDs dropped from the admin block
//
// minutesPerDay is the working-day length used when recomputing the
// admin block total.
func ApplyModifications(plan model.Plan, mods map[string]any, minutesPerDay int) (model.Plan, error) {
	errs := &ValidationErrors{}

	index := make(map[string]model.Classification)
	for _, group := range [][]model.Classification{
		plan.Priorities, plan.Admin.Items, plan.Admin.Deferred, plan.Blocked, plan.Other,
	} {
		for _, c := range group {
			index[c.Item.ID] = c
		}
	}

	modified := plan

	for key, value := range mods {
		switch key {
		case "priorities":
			ids, ok := toStringSlice(value)
			if !ok {
				errs.Add("modifications.priorities", "must be a list of item IDs")
				continue
			}
			if len(ids) > model.MaxPriorities {
				errs.Add("modifications.priorities", fmt.Sprintf("%d priorities exceed the cap of %d", len(ids), model.MaxPriorities))
				continue
			}
			priorities := make([]model.Classification, 0, len(ids))
			seen := make(map[string]bool, len(ids))
			for i, id := range ids {
				if seen[id] {
					errs.Add(fmt.Sprintf("modifications.priorities[%d]", i), fmt.Sprintf("item %s listed more than once", id))
					continue
				}
				seen[id] = true
				c, found := index[id]
				if !found {
					errs.Add(fmt.Sprintf("modifications.priorities[%d]", i), fmt.Sprintf("item %s is not in the plan", id))
					continue
				}
				priorities = append(priorities, c)
			}
			modified.Priorities = priorities
		case "remove_admin":
			ids, ok := toStringSlice(value)
			if !ok {
				errs.Add("modifications.remove_admin", "must be a list of item IDs")
				continue
			}
			drop := make(map[string]bool, len(ids))
			for _, id := range ids {
				drop[id] = true
			}
			kept := make([]model.Classification, 0, len(modified.Admin.Items))
			total := 0
			for _, c := range modified.Admin.Items {
				if drop[c.Item.ID] {
					continue
				}
				kept = append(kept, c)
				total += c.Minutes(minutesPerDay)
			}
			modified.Admin.Items = kept
			modified.Admin.TotalMinutes = total
		default:
			errs.Add("modifications."+key, "unknown modification")
		}
	}

	if errs.HasErrors() {
		return plan, errs
	}
	if invErrs := CheckPlanInvariants(modified); invErrs != nil {
		return plan, invErrs
	}

	modified.State = model.PlanStateModified
	modified.UpdatedAt = time.Now().Format(time.RFC3339)
	return modified, nil
}

func toStringSlice(v any) ([]string, bool) {
	switch vv := v.(type) {
	case []string:
		return vv, true
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
