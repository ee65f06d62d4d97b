package model

type TaskCategory string

const (
	CategoryPriorityEligible TaskCategory = "priority_eligible"
	CategoryAdministrative   TaskCategory = "administrative"
	CategoryLongRunning      TaskCategory = "long_running"
	CategoryBlocking         TaskCategory = "blocking"
	CategoryDependent        TaskCategory = "dependent"
)

// Classification wraps a WorkItem with the triage attributes derived from
// it. It is a pure function of the item and the classification config:
// recomputed fresh each cycle, never mutated.
type Classification struct {
	Item             WorkItem     `yaml:"item"`
	Category         TaskCategory `yaml:"category"`
	PriorityEligible bool         `yaml:"priority_eligible"`
	HasDependencies  bool         `yaml:"has_dependencies"`
	EstimatedDays    float64      `yaml:"estimated_days"`
	EstimateDegraded bool         `yaml:"estimate_degraded"`
	BlockingReason   *string      `yaml:"blocking_reason"`
}

// Minutes converts the estimate to whole minutes at the configured
// working-day length.
func (c Classification) Minutes(minutesPerDay int) int {
	if minutesPerDay <= 0 {
		minutesPerDay = DefaultMinutesPerDay
	}
	return int(c.EstimatedDays*float64(minutesPerDay) + 0.5)
}
