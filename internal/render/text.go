// Package render produces the canonical text form of a plan. Downstream
// presentation channels (chat, CLI) depend on this exact structure, so
// the output is a contract: change it and every consumer changes.
package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/msato/dayplan/internal/model"
)

// Plan renders the canonical text for a plan. prev is the previous
// day's closure record when one exists; the fallback to the plan's bare
// rate covers re-rendering a stored plan without store access.
func Plan(plan model.Plan, prev *model.ClosureRecord, cfg model.Config) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Daily Plan: %s\n", plan.Date)

	switch {
	case prev != nil:
		fmt.Fprintf(&sb, "\nPrevious day: %s\n", ClosureLine(*prev))
	case plan.PrevClosureRate != nil:
		fmt.Fprintf(&sb, "\nPrevious day: %.0f%% of priorities completed\n", *plan.PrevClosureRate*100)
	}

	sb.WriteString("\n## Priorities\n\n")
	if len(plan.Priorities) == 0 {
		sb.WriteString("(none)\n")
	}
	for i, p := range plan.Priorities {
		fmt.Fprintf(&sb, "%d. %s: %s (%s, %s)\n",
			i+1, p.Item.ID, p.Item.Title,
			humanEffort(p.EstimatedDays, cfg.Classify.MinutesPerDay),
			itemType(p.Item))
	}

	if len(plan.Admin.Items) > 0 {
		start, end := adminRange(cfg.Plan.AdminBlockStart, plan.Admin.TotalMinutes)
		fmt.Fprintf(&sb, "\n## Admin Block (%s-%s)\n\n", start, end)
		for _, c := range plan.Admin.Items {
			fmt.Fprintf(&sb, "- [ ] %s: %s (%s)\n",
				c.Item.ID, c.Item.Title,
				humanEffort(c.EstimatedDays, cfg.Classify.MinutesPerDay))
		}
	}

	if len(plan.Blocked) > 0 {
		sb.WriteString("\n## Blocked / Waiting\n\n")
		for _, c := range plan.Blocked {
			fmt.Fprintf(&sb, "- %s: %s (blocked by dependencies)\n", c.Item.ID, c.Item.Title)
		}
	}

	if len(plan.Other) > 0 {
		sb.WriteString("\n## Other Active Tasks\n\n")
		for _, c := range plan.Other {
			fmt.Fprintf(&sb, "- %s: %s (%s)\n",
				c.Item.ID, c.Item.Title,
				humanEffort(c.EstimatedDays, cfg.Classify.MinutesPerDay))
		}
	}

	return sb.String()
}

// ClosureLine renders the optional previous-closure summary from the
// actual record, with exact counts.
func ClosureLine(rec model.ClosureRecord) string {
	if rec.ClosureRate == nil {
		return fmt.Sprintf("%d/%d tasks completed", rec.CompletedCount, rec.TotalPriorities)
	}
	return fmt.Sprintf("%d/%d tasks completed (%.0f%%)",
		rec.CompletedCount, rec.TotalPriorities, *rec.ClosureRate*100)
}

// Subtasks renders a decomposition proposal for approval.
func Subtasks(parent model.WorkItem, specs []model.SubtaskSpec) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Decomposition: %s: %s\n\n", parent.ID, parent.Title)
	for _, spec := range specs {
		fmt.Fprintf(&sb, "%d. %s (%sd)\n", spec.Order, spec.Summary,
			strconv.FormatFloat(spec.EstimatedDays, 'g', -1, 64))
	}
	return sb.String()
}

func itemType(item model.WorkItem) string {
	if item.Type == "" {
		return "task"
	}
	return item.Type
}

func humanEffort(days float64, minutesPerDay int) string {
	if minutesPerDay <= 0 {
		minutesPerDay = model.DefaultMinutesPerDay
	}
	minutes := days * float64(minutesPerDay)
	switch {
	case minutes < 60:
		return fmt.Sprintf("%.0fm", minutes)
	case days < 1.0:
		return strconv.FormatFloat(minutes/60, 'g', -1, 64) + "h"
	default:
		return strconv.FormatFloat(days, 'g', -1, 64) + "d"
	}
}

func adminRange(start string, totalMinutes int) (string, string) {
	h, m, ok := parseClock(start)
	if !ok {
		h, m = 16, 0
	}
	endMinutes := h*60 + m + totalMinutes
	endMinutes %= 24 * 60
	return fmt.Sprintf("%02d:%02d", h, m), fmt.Sprintf("%02d:%02d", endMinutes/60, endMinutes%60)
}

func parseClock(s string) (int, int, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}
