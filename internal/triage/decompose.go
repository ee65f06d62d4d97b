package triage

import (
	"fmt"
	"math"

	"github.com/msato/dayplan/internal/model"
)

// ProposeDecomposition slices a long-running classification into
// ceil(estimated_days) ordered day-sized subtask specs. Every spec is at
// most 1.0 day; the last one absorbs the remainder so the sum
// approximates the parent estimate.
func ProposeDecomposition(c model.Classification) ([]model.SubtaskSpec, error) {
	if c.Category != model.CategoryLongRunning {
		return nil, fmt.Errorf("item %s is not long-running (category %s)", c.Item.ID, c.Category)
	}
	days := c.EstimatedDays
	if days <= 0 {
		return nil, fmt.Errorf("item %s has no usable estimate (%v days)", c.Item.ID, days)
	}

	count := int(math.Ceil(days))
	specs := make([]model.SubtaskSpec, 0, count)
	for i := 1; i <= count; i++ {
		spec := model.SubtaskSpec{
			Summary:       fmt.Sprintf("%s (day %d/%d)", c.Item.Title, i, count),
			Description:   fmt.Sprintf("Day %d of %d for %s: %s", i, count, c.Item.ID, c.Item.Title),
			EstimatedDays: 1.0,
			Order:         i,
		}
		if i == count {
			remainder := days - float64(count-1)
			if remainder > 0 && remainder <= 1.0 {
				spec.EstimatedDays = remainder
			}
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
