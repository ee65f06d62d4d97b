package triage

import "github.com/msato/dayplan/internal/model"

// GroupAdministrative batches administrative items into one time block
// capped at capMinutes. Items are taken in selector rank order; once the
// next item would push the block over the cap, it and everything after it
// is deferred to the next cycle.
func GroupAdministrative(cls []model.Classification, cfg model.ClassifyConfig, capMinutes int) model.AdminBlock {
	if capMinutes <= 0 {
		capMinutes = model.DefaultAdminBlockMin
	}

	admin := make([]model.Classification, 0, len(cls))
	for _, c := range cls {
		if c.Category == model.CategoryAdministrative {
			admin = append(admin, c)
		}
	}
	NewSelector(cfg).Rank(admin)

	block := model.AdminBlock{}
	for i, c := range admin {
		minutes := c.Minutes(cfg.MinutesPerDay)
		if block.TotalMinutes+minutes > capMinutes {
			block.Deferred = append(block.Deferred, admin[i:]...)
			break
		}
		block.Items = append(block.Items, c)
		block.TotalMinutes += minutes
	}
	return block
}
