package model

import "fmt"

type PlanState string

const (
	PlanStateDraft     PlanState = "draft"
	PlanStatePresented PlanState = "presented"
	PlanStateApproved  PlanState = "approved"
	PlanStateRejected  PlanState = "rejected"
	PlanStateModified  PlanState = "modified"
	PlanStateExpired   PlanState = "expired"
)

// MaxPriorities is the hard cap on a plan's priority list.
const MaxPriorities = 3

// AdminBlock is the time-boxed batch of administrative items.
type AdminBlock struct {
	Items        []Classification `yaml:"items"`
	TotalMinutes int              `yaml:"total_minutes"`
	// Deferred holds admin items that did not fit under the cap. They are
	// re-offered next cycle, never dropped.
	Deferred []Classification `yaml:"deferred"`
}

// Plan is one day's execution plan. Created once per cycle, immutable;
// re-planning supersedes a plan by tagging it interrupted and writing a
// new one.
type Plan struct {
	SchemaVersion int    `yaml:"schema_version"`
	FileType      string `yaml:"file_type"`
	ID            string `yaml:"id"`
	Date          string `yaml:"date"`

	State           PlanState        `yaml:"state"`
	Priorities      []Classification `yaml:"priorities"`
	Admin           AdminBlock       `yaml:"admin"`
	Blocked         []Classification `yaml:"blocked"`
	Other           []Classification `yaml:"other"`
	PrevClosureRate *float64         `yaml:"prev_closure_rate"`

	// Interrupted marks a plan superseded by re-planning. InterruptedBy
	// holds the blocking item's ID.
	Interrupted   bool    `yaml:"interrupted"`
	InterruptedBy *string `yaml:"interrupted_by"`

	Feedback  *string `yaml:"feedback"`
	CreatedAt string  `yaml:"created_at"`
	UpdatedAt string  `yaml:"updated_at"`
}

const PlanFileType = "plan"

var terminalPlanStates = map[PlanState]bool{
	PlanStateApproved: true,
	PlanStateRejected: true,
	PlanStateModified: true,
}

// expired is not terminal: the plan stays eligible for re-presentation.
var validPlanStateTransitions = map[PlanState]map[PlanState]bool{
	PlanStateDraft: {
		PlanStatePresented: true,
	},
	PlanStatePresented: {
		PlanStateApproved: true,
		PlanStateRejected: true,
		PlanStateModified: true,
		PlanStateExpired:  true,
	},
	PlanStateExpired: {
		PlanStatePresented: true,
	},
}

func IsPlanStateTerminal(s PlanState) bool {
	return terminalPlanStates[s]
}

func ValidatePlanStateTransition(from, to PlanState) error {
	if IsPlanStateTerminal(from) {
		return fmt.Errorf("cannot transition from terminal plan state %q", from)
	}
	allowed, ok := validPlanStateTransitions[from]
	if !ok {
		return fmt.Errorf("unknown plan state %q", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid plan transition: %q → %q", from, to)
	}
	return nil
}
