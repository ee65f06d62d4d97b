package closure

import (
	"fmt"
	"time"

	"github.com/msato/dayplan/internal/model"
)

// Tracker records how a day's priorities closed out. It only records:
// carry-forward decisions for incomplete items belong to the approval
// collaborator.
type Tracker struct {
	store *Store
}

func NewTracker(store *Store) *Tracker {
	return &Tracker{store: store}
}

// Record persists the closure record for date. flags[i] reports whether
// priorities[i] was completed; missing flags count as incomplete, extra
// flags are ignored.
func (t *Tracker) Record(date string, priorities []model.Classification, flags []bool) (model.ClosureRecord, error) {
	total := len(priorities)
	completed := 0
	var incomplete []string

	for i, p := range priorities {
		done := i < len(flags) && flags[i]
		if done {
			completed++
		} else {
			incomplete = append(incomplete, p.Item.ID)
		}
	}

	rec := model.ClosureRecord{
		Date:            date,
		TotalPriorities: total,
		CompletedCount:  completed,
		IncompleteIDs:   incomplete,
		RecordedAt:      time.Now().Format(time.RFC3339),
	}
	if total > 0 {
		rate := float64(completed) / float64(total)
		rec.ClosureRate = &rate
	}

	if err := t.store.Save(rec); err != nil {
		return model.ClosureRecord{}, fmt.Errorf("save closure record: %w", err)
	}
	return rec, nil
}

// Previous returns the closure record immediately preceding date, or nil
// when no earlier day was recorded.
func (t *Tracker) Previous(date string) (*model.ClosureRecord, error) {
	return t.store.Previous(date)
}
