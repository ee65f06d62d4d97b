// Package classify labels work items with a triage category and
// eligibility flags. Classification is a pure function of the item and
// the vocabulary config: the same item always yields an equal result.
package classify

import (
	"fmt"
	"log"
	"strings"

	"github.com/msato/dayplan/internal/model"
)

type Classifier struct {
	cfg    model.ClassifyConfig
	logger *log.Logger
}

func New(cfg model.ClassifyConfig, logger *log.Logger) *Classifier {
	return &Classifier{cfg: cfg, logger: logger}
}

// Classify derives the triage attributes for one item. Malformed fields
// never raise; they degrade to conservative defaults and are logged.
func (c *Classifier) Classify(item model.WorkItem) model.Classification {
	cl := model.Classification{Item: item}

	cl.HasDependencies = c.hasDependencies(item)
	cl.EstimatedDays, cl.EstimateDegraded = c.estimateDays(item)

	if reason, ok := c.blockingReason(item); ok {
		cl.BlockingReason = &reason
	}

	switch {
	case cl.BlockingReason != nil:
		cl.Category = model.CategoryBlocking
	case c.isAdministrative(item):
		cl.Category = model.CategoryAdministrative
	case cl.EstimatedDays > 1.0:
		cl.Category = model.CategoryLongRunning
	case cl.HasDependencies:
		cl.Category = model.CategoryDependent
	default:
		cl.Category = model.CategoryPriorityEligible
	}

	cl.PriorityEligible = cl.Category == model.CategoryPriorityEligible &&
		!cl.HasDependencies &&
		cl.EstimatedDays <= 1.0 &&
		!cl.EstimateDegraded

	return cl
}

// ClassifyAll classifies a snapshot of items. Each item is independent;
// order is preserved.
func (c *Classifier) ClassifyAll(items []model.WorkItem) []model.Classification {
	out := make([]model.Classification, 0, len(items))
	for _, item := range items {
		out = append(out, c.Classify(item))
	}
	return out
}

func (c *Classifier) hasDependencies(item model.WorkItem) bool {
	for _, link := range item.Links {
		if link.Resolved {
			continue
		}
		for _, dep := range c.cfg.DependencyLinkTypes {
			if string(link.Type) == dep {
				return true
			}
		}
	}
	if v, ok := item.Metadata[c.cfg.ExternalDependencyKey]; ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "1":
			return true
		}
	}
	return false
}

// estimateDays prefers a direct time estimate, then a points conversion,
// then the configured default. The second return is true when the value
// came from an ambiguous conversion; such items fall out of priority
// eligibility rather than carrying a guessed estimate into the plan.
func (c *Classifier) estimateDays(item model.WorkItem) (float64, bool) {
	if item.EstimateMinutes != nil {
		minutes := *item.EstimateMinutes
		if minutes < 0 {
			c.logf("classify_degrade item=%s field=estimate_minutes value=%d", item.ID, minutes)
			return c.cfg.DefaultEstimateDays, true
		}
		perDay := c.cfg.MinutesPerDay
		if perDay <= 0 {
			perDay = model.DefaultMinutesPerDay
		}
		return float64(minutes) / float64(perDay), false
	}

	if item.Points != nil {
		points := *item.Points
		if points < 0 {
			c.logf("classify_degrade item=%s field=points value=%v", item.ID, points)
			return c.cfg.DefaultEstimateDays, true
		}
		if c.cfg.PointsPerDay <= 0 {
			// Points present but the ratio is uncalibrated.
			c.logf("classify_degrade item=%s field=points reason=uncalibrated_ratio", item.ID)
			return c.cfg.DefaultEstimateDays, true
		}
		return points / c.cfg.PointsPerDay, false
	}

	return c.cfg.DefaultEstimateDays, false
}

func (c *Classifier) isAdministrative(item model.WorkItem) bool {
	itemType := strings.ToLower(strings.TrimSpace(item.Type))
	for _, t := range c.cfg.AdministrativeTypes {
		if itemType == strings.ToLower(t) {
			return true
		}
	}
	for _, label := range item.Labels {
		label = strings.ToLower(strings.TrimSpace(label))
		for _, a := range c.cfg.AdministrativeLabels {
			if label == strings.ToLower(a) {
				return true
			}
		}
	}
	return false
}

func (c *Classifier) blockingReason(item model.WorkItem) (string, bool) {
	priority := strings.TrimSpace(item.Priority)
	for _, b := range c.cfg.BlockingPriorities {
		if strings.EqualFold(priority, b) {
			return fmt.Sprintf("urgency label %q", item.Priority), true
		}
	}
	return "", false
}

func (c *Classifier) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf("[WARN] "+format, args...)
	}
}
