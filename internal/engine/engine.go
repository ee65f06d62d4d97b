// Package engine wires the classifier, selector, assembler, closure
// tracker, and the source/approval collaborators into the operations of
// a planning cycle. All state changes pass through here and land in the
// audit log.
package engine

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/msato/dayplan/internal/approve"
	"github.com/msato/dayplan/internal/classify"
	"github.com/msato/dayplan/internal/closure"
	"github.com/msato/dayplan/internal/events"
	"github.com/msato/dayplan/internal/model"
	"github.com/msato/dayplan/internal/render"
	"github.com/msato/dayplan/internal/source"
	"github.com/msato/dayplan/internal/triage"
)

type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Engine executes planning cycles against a work item source and an
// approval collaborator.
type Engine struct {
	dayplanDir string
	cfg        model.Config
	logger     *log.Logger
	logLevel   LogLevel

	src      source.Source
	approver approve.Approver

	classifier *classify.Classifier
	assembler  *triage.Assembler
	plans      *approve.Store
	tracker    *closure.Tracker
	audit      *events.AuditLog
}

func New(dayplanDir string, cfg model.Config, src source.Source, approver approve.Approver, logger *log.Logger) (*Engine, error) {
	audit, err := events.NewAuditLog(filepath.Join(dayplanDir, "logs", "audit.jsonl"), 0)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	return &Engine{
		dayplanDir: dayplanDir,
		cfg:        cfg,
		logger:     logger,
		logLevel:   ParseLogLevel(cfg.Logging.Level),
		src:        src,
		approver:   approver,
		classifier: classify.New(cfg.Classify, logger),
		assembler:  triage.NewAssembler(cfg),
		plans:      approve.NewStore(dayplanDir),
		tracker:    closure.NewTracker(closure.NewStore(dayplanDir)),
		audit:      audit,
	}, nil
}

func (e *Engine) Close() error {
	return e.audit.Close()
}

// Plans exposes the plan store for read-only callers (status output).
func (e *Engine) Plans() *approve.Store { return e.plans }

// Tracker exposes the closure tracker for read-only callers.
func (e *Engine) Tracker() *closure.Tracker { return e.tracker }

// Generate runs a full cycle for date: fetch, classify, assemble,
// persist, present. A source failure defers planning entirely; the
// failure class survives unwrapping.
func (e *Engine) Generate(ctx context.Context, date string) (*model.Plan, error) {
	items, err := e.src.FetchActiveItems(ctx)
	if err != nil {
		e.auditSourceError(date, err)
		return nil, fmt.Errorf("fetch active items: %w", err)
	}
	e.log(LogLevelDebug, "generate date=%s items=%d", date, len(items))

	cls := e.classifier.ClassifyAll(items)

	prev, err := e.tracker.Previous(date)
	if err != nil {
		return nil, fmt.Errorf("load previous closure: %w", err)
	}
	var prevRate *float64
	if prev != nil {
		prevRate = prev.ClosureRate
	}

	plan, err := e.assembler.Assemble(date, cls, prevRate)
	if err != nil {
		return nil, fmt.Errorf("assemble plan: %w", err)
	}
	if err := e.plans.Regenerate(plan); err != nil {
		return nil, err
	}
	e.auditEvent(events.EventPlanGenerated, map[string]any{
		"plan_id":    plan.ID,
		"date":       date,
		"priorities": len(plan.Priorities),
		"admin_min":  plan.Admin.TotalMinutes,
	})
	e.log(LogLevelInfo, "plan_generated id=%s date=%s priorities=%d", plan.ID, date, len(plan.Priorities))

	return e.present(ctx, plan, prev)
}

// Replan interrupts the current plan for date with a blocking item. The
// superseded plan is archived; the new plan carries the blocking item
// as its first priority.
func (e *Engine) Replan(ctx context.Context, blocking model.WorkItem, date string) (*model.Plan, error) {
	current, err := e.plans.Load(date)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("no current plan for %s to interrupt", date)
	}

	items, err := e.src.FetchActiveItems(ctx)
	if err != nil {
		e.auditSourceError(date, err)
		return nil, fmt.Errorf("fetch active items: %w", err)
	}

	blockingCls := e.classifier.Classify(blocking)
	fresh := e.classifier.ClassifyAll(items)

	plan, err := e.assembler.Replan(blockingCls, fresh, current)
	if err != nil {
		return nil, fmt.Errorf("replan: %w", err)
	}
	if err := e.plans.Supersede(date, blocking.ID, plan); err != nil {
		return nil, err
	}
	e.auditEvent(events.EventReplanTriggered, map[string]any{
		"plan_id":    plan.ID,
		"date":       date,
		"item_id":    blocking.ID,
		"superseded": current.ID,
	})
	e.log(LogLevelWarn, "replan_triggered date=%s blocking=%s superseded=%s", date, blocking.ID, current.ID)

	prev, err := e.tracker.Previous(date)
	if err != nil {
		return nil, fmt.Errorf("load previous closure: %w", err)
	}
	return e.present(ctx, plan, prev)
}

// present moves a plan to presented, hands it to the approver, and
// applies the decision.
func (e *Engine) present(ctx context.Context, plan model.Plan, prev *model.ClosureRecord) (*model.Plan, error) {
	presented, err := e.plans.Transition(plan.Date, model.PlanStatePresented)
	if err != nil {
		return nil, err
	}
	e.auditEvent(events.EventPlanPresented, map[string]any{"plan_id": presented.ID, "date": presented.Date})

	rendering := render.Plan(*presented, prev, e.cfg)
	result, err := e.approver.PresentPlan(ctx, *presented, rendering)
	if err != nil {
		return presented, fmt.Errorf("present plan: %w", err)
	}

	return e.applyDecision(presented, result)
}

func (e *Engine) applyDecision(presented *model.Plan, result model.ApprovalResult) (*model.Plan, error) {
	switch {
	case result.Expired:
		expired, err := e.plans.Transition(presented.Date, model.PlanStateExpired)
		if err != nil {
			return presented, err
		}
		e.auditEvent(events.EventPlanExpired, map[string]any{"plan_id": expired.ID, "date": expired.Date})
		e.log(LogLevelWarn, "plan_expired id=%s date=%s", expired.ID, expired.Date)
		return expired, nil

	case result.Approved:
		approved, err := e.plans.Transition(presented.Date, model.PlanStateApproved)
		if err != nil {
			return presented, err
		}
		if result.Feedback != nil {
			approved.Feedback = result.Feedback
			if err := e.plans.Save(*approved); err != nil {
				return approved, err
			}
		}
		e.auditEvent(events.EventPlanApproved, map[string]any{"plan_id": approved.ID, "date": approved.Date})
		e.log(LogLevelInfo, "plan_approved id=%s date=%s", approved.ID, approved.Date)
		return approved, nil

	case len(result.Modifications) > 0:
		modified, err := e.modify(*presented, result.Modifications)
		if err != nil {
			return presented, err
		}
		return modified, nil

	default:
		if result.Feedback == nil || strings.TrimSpace(*result.Feedback) == "" {
			return presented, approve.ErrFeedbackRequired
		}
		rejected, err := e.plans.Transition(presented.Date, model.PlanStateRejected)
		if err != nil {
			return presented, err
		}
		rejected.Feedback = result.Feedback
		if err := e.plans.Save(*rejected); err != nil {
			return rejected, err
		}
		e.auditEvent(events.EventPlanRejected, map[string]any{
			"plan_id":  rejected.ID,
			"date":     rejected.Date,
			"feedback": *result.Feedback,
		})
		e.log(LogLevelInfo, "plan_rejected id=%s date=%s", rejected.ID, rejected.Date)
		return rejected, nil
	}
}

func (e *Engine) modify(presented model.Plan, mods map[string]any) (*model.Plan, error) {
	if err := model.ValidatePlanStateTransition(presented.State, model.PlanStateModified); err != nil {
		return nil, err
	}
	modified, err := triage.ApplyModifications(presented, mods, e.cfg.Classify.MinutesPerDay)
	if err != nil {
		return nil, fmt.Errorf("apply modifications: %w", err)
	}
	if err := e.plans.SaveModified(modified); err != nil {
		return nil, err
	}
	e.auditEvent(events.EventPlanModified, map[string]any{
		"plan_id": modified.ID,
		"date":    modified.Date,
		"keys":    modKeys(mods),
	})
	e.log(LogLevelInfo, "plan_modified id=%s date=%s", modified.ID, modified.Date)
	return &modified, nil
}

// Approve approves the stored plan for date. An expired plan is
// re-presented first, so a decision deferred past the approval window
// still lands.
func (e *Engine) Approve(date string) (*model.Plan, error) {
	plan, err := e.reopen(date)
	if err != nil {
		return nil, err
	}
	return e.applyDecision(plan, model.ApprovalResult{Approved: true})
}

// Reject rejects the stored plan for date. Feedback is mandatory.
func (e *Engine) Reject(date, feedback string) (*model.Plan, error) {
	if strings.TrimSpace(feedback) == "" {
		return nil, approve.ErrFeedbackRequired
	}
	plan, err := e.reopen(date)
	if err != nil {
		return nil, err
	}
	return e.applyDecision(plan, model.ApprovalResult{Approved: false, Feedback: &feedback})
}

// reopen loads the plan for date and re-presents it if expired.
func (e *Engine) reopen(date string) (*model.Plan, error) {
	plan, err := e.plans.Load(date)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, fmt.Errorf("no plan stored for %s", date)
	}
	if plan.State == model.PlanStateExpired {
		plan, err = e.plans.Transition(date, model.PlanStatePresented)
		if err != nil {
			return nil, err
		}
		e.auditEvent(events.EventPlanPresented, map[string]any{"plan_id": plan.ID, "date": plan.Date})
	}
	return plan, nil
}

// ApplyModifications modifies the plan for date outside the approval
// round-trip (CLI editing). Only a presented plan can be modified; an
// expired one is re-presented first, and accepted plans stay immutable.
func (e *Engine) ApplyModifications(date string, mods map[string]any) (*model.Plan, error) {
	plan, err := e.reopen(date)
	if err != nil {
		return nil, err
	}
	return e.modify(*plan, mods)
}

// ProposeDecomposition splits a long-running item into day-sized
// subtask proposals and, on approval, creates them at the source.
func (e *Engine) ProposeDecomposition(ctx context.Context, item model.WorkItem) ([]model.SubtaskSpec, []string, error) {
	cls := e.classifier.Classify(item)
	specs, err := triage.ProposeDecomposition(cls)
	if err != nil {
		return nil, nil, err
	}

	rendering := render.Subtasks(item, specs)
	result, err := e.approver.PresentSubtasks(ctx, item, specs, rendering)
	if err != nil {
		return specs, nil, fmt.Errorf("present subtasks: %w", err)
	}
	e.auditEvent(events.EventDecompositionOffered, map[string]any{
		"item_id":  item.ID,
		"subtasks": len(specs),
		"approved": result.Approved,
	})

	if !result.Approved {
		e.log(LogLevelInfo, "decomposition_declined item=%s", item.ID)
		return specs, nil, nil
	}

	ids, err := e.src.CreateSubtasks(ctx, item.ID, specs)
	if err != nil {
		e.auditSourceError("", err)
		return specs, nil, fmt.Errorf("create subtasks: %w", err)
	}
	e.auditEvent(events.EventSubtasksCreated, map[string]any{
		"item_id": item.ID,
		"created": len(ids),
	})
	e.log(LogLevelInfo, "subtasks_created item=%s count=%d", item.ID, len(ids))
	return specs, ids, nil
}

// RecordCompletion records end-of-day completion flags against the
// plan's priorities. Flags are positional; missing flags count as
// incomplete.
func (e *Engine) RecordCompletion(date string, flags []bool) (model.ClosureRecord, error) {
	plan, err := e.plans.Load(date)
	if err != nil {
		return model.ClosureRecord{}, err
	}
	if plan == nil {
		return model.ClosureRecord{}, fmt.Errorf("no plan stored for %s", date)
	}

	rec, err := e.tracker.Record(date, plan.Priorities, flags)
	if err != nil {
		return model.ClosureRecord{}, err
	}
	e.auditEvent(events.EventClosureRecorded, map[string]any{
		"date":      date,
		"completed": rec.CompletedCount,
		"total":     rec.TotalPriorities,
	})
	e.log(LogLevelInfo, "closure_recorded date=%s completed=%d total=%d", date, rec.CompletedCount, rec.TotalPriorities)
	return rec, nil
}

// RenderPlan renders the stored plan for date with its preceding
// closure line.
func (e *Engine) RenderPlan(date string) (string, error) {
	plan, err := e.plans.Load(date)
	if err != nil {
		return "", err
	}
	if plan == nil {
		return "", fmt.Errorf("no plan stored for %s", date)
	}
	prev, err := e.tracker.Previous(date)
	if err != nil {
		return "", err
	}
	return render.Plan(*plan, prev, e.cfg), nil
}

func (e *Engine) auditSourceError(date string, err error) {
	details := map[string]any{"error": err.Error()}
	if date != "" {
		details["date"] = date
	}
	if aerr := e.audit.Log(events.EventSourceError, details); aerr != nil {
		e.log(LogLevelError, "audit_write error=%v", aerr)
	}
	e.log(LogLevelError, "source_error error=%v", err)
}

func (e *Engine) auditEvent(eventType string, details map[string]any) {
	if err := e.audit.Log(eventType, details); err != nil {
		e.log(LogLevelError, "audit_write event=%s error=%v", eventType, err)
	}
}

func modKeys(mods map[string]any) []string {
	keys := make([]string, 0, len(mods))
	for k := range mods {
		keys = append(keys, k)
	}
	return keys
}

func (e *Engine) log(level LogLevel, format string, args ...any) {
	if level < e.logLevel {
		return
	}
	levelStr := "INFO"
	switch level {
	case LogLevelDebug:
		levelStr = "DEBUG"
	case LogLevelWarn:
		levelStr = "WARN"
	case LogLevelError:
		levelStr = "ERROR"
	}
	msg := fmt.Sprintf(format, args...)
	e.logger.Printf("%s %s engine: %s", time.Now().Format(time.RFC3339), levelStr, msg)
}
