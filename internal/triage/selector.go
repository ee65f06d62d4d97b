// Package triage turns classified work items into a bounded daily plan:
// priority selection, administrative grouping, decomposition of
// multi-day items, and re-planning around blocking interrupts.
package triage

import (
	"sort"
	"strings"
	"time"

	"github.com/msato/dayplan/internal/model"
)

const (
	statusRankInProgress = 0
	statusRankNotStarted = 1
	statusRankOther      = 2
)

// Selector ranks priority-eligible items and picks the day's top slots.
type Selector struct {
	cfg model.ClassifyConfig
}

func NewSelector(cfg model.ClassifyConfig) *Selector {
	return &Selector{cfg: cfg}
}

// Select filters to priority-eligible classifications, ranks them, and
// returns at most model.MaxPriorities in rank order. Empty input yields
// an empty slice, not an error.
func (s *Selector) Select(cls []model.Classification) []model.Classification {
	eligible := make([]model.Classification, 0, len(cls))
	for _, c := range cls {
		if c.PriorityEligible {
			eligible = append(eligible, c)
		}
	}
	s.Rank(eligible)

	if len(eligible) > model.MaxPriorities {
		eligible = eligible[:model.MaxPriorities]
	}
	return eligible
}

// Rank sorts classifications in place by the selection tuple: status rank,
// priority-label ordinal, estimated days, then an age proxy (oldest
// first).
func (s *Selector) Rank(cls []model.Classification) {
	sort.SliceStable(cls, func(i, j int) bool {
		return s.less(cls[i], cls[j])
	})
}

func (s *Selector) less(a, b model.Classification) bool {
	if ra, rb := s.statusRank(a.Item.Status), s.statusRank(b.Item.Status); ra != rb {
		return ra < rb
	}
	if pa, pb := s.priorityOrdinal(a.Item.Priority), s.priorityOrdinal(b.Item.Priority); pa != pb {
		return pa < pb
	}
	if a.EstimatedDays != b.EstimatedDays {
		return a.EstimatedDays < b.EstimatedDays
	}
	aKey, aOK := ageKey(a.Item)
	bKey, bOK := ageKey(b.Item)
	switch {
	case aOK && bOK && aKey != bKey:
		return aKey < bKey
	case aOK != bOK:
		// items with no age signal sort last
		return aOK
	}
	return a.Item.ID < b.Item.ID
}

func (s *Selector) statusRank(status string) int {
	status = strings.ToLower(strings.TrimSpace(status))
	for _, v := range s.cfg.InProgressStatuses {
		if status == strings.ToLower(v) {
			return statusRankInProgress
		}
	}
	for _, v := range s.cfg.NotStartedStatuses {
		if status == strings.ToLower(v) {
			return statusRankNotStarted
		}
	}
	return statusRankOther
}

func (s *Selector) priorityOrdinal(priority string) int {
	for i, v := range s.cfg.PriorityLadder {
		if strings.EqualFold(strings.TrimSpace(priority), v) {
			return i
		}
	}
	return len(s.cfg.PriorityLadder)
}

// ageKey returns a monotonic creation proxy. An explicit created_at
// timestamp is authoritative; a numeric ID suffix is only a fallback and
// assumes the tracker hands out sequential identifiers.
func ageKey(item model.WorkItem) (int64, bool) {
	if item.CreatedAt != "" {
		if ts, err := time.Parse(time.RFC3339, item.CreatedAt); err == nil {
			return ts.Unix(), true
		}
	}
	if model.ValidateID(item.ID) {
		if ts, err := model.ParseIDTimestamp(item.ID); err == nil {
			return ts.Unix(), true
		}
	}
	if seq, ok := model.TrailingSequence(item.ID); ok {
		return seq, true
	}
	return 0, false
}
