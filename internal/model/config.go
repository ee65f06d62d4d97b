package model

const (
	DefaultMinutesPerDay    = 480
	DefaultAdminBlockMin    = 90
	DefaultEstimateDays     = 1.0
	DefaultBlockingCheckSec = 60
)

type Config struct {
	Project  ProjectConfig  `yaml:"project"`
	Dayplan  DayplanConfig  `yaml:"dayplan"`
	Classify ClassifyConfig `yaml:"classify"`
	Plan     PlanConfig     `yaml:"plan"`
	Runner   RunnerConfig   `yaml:"runner"`
	Notify   NotifyConfig   `yaml:"notify"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ProjectConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type DayplanConfig struct {
	Version     string `yaml:"version"`
	Created     string `yaml:"created"`
	WorkspaceID string `yaml:"workspace_id"`
}

type ClassifyConfig struct {
	// Administrative vocabulary: an item is administrative when its type
	// or any label matches.
	AdministrativeTypes  []string `yaml:"administrative_types"`
	AdministrativeLabels []string `yaml:"administrative_labels"`

	// BlockingPriorities is the urgency tier that forces re-planning.
	BlockingPriorities []string `yaml:"blocking_priorities"`

	// PriorityLadder orders priority labels best-first; labels outside
	// the ladder rank after all listed ones.
	PriorityLadder []string `yaml:"priority_ladder"`

	DependencyLinkTypes   []string `yaml:"dependency_link_types"`
	ExternalDependencyKey string   `yaml:"external_dependency_key"`

	InProgressStatuses []string `yaml:"in_progress_statuses"`
	NotStartedStatuses []string `yaml:"not_started_statuses"`

	// PointsPerDay converts a points hint to days. Zero means the ratio
	// is uncalibrated: a points-only estimate then degrades to the
	// default and the item falls out of priority eligibility.
	PointsPerDay        float64 `yaml:"points_per_day"`
	MinutesPerDay       int     `yaml:"minutes_per_day"`
	DefaultEstimateDays float64 `yaml:"default_estimate_days"`
}

type PlanConfig struct {
	AdminBlockMinutes int    `yaml:"admin_block_minutes"`
	AdminBlockStart   string `yaml:"admin_block_start"`
}

type RunnerConfig struct {
	DailyRunTime       string  `yaml:"daily_run_time"`
	BlockingCheckSec   int     `yaml:"blocking_check_sec"`
	DebounceSec        float64 `yaml:"debounce_sec"`
	ShutdownTimeoutSec int     `yaml:"shutdown_timeout_sec"`
	ApprovalTimeoutSec int     `yaml:"approval_timeout_sec"`
}

type NotifyConfig struct {
	Enabled bool `yaml:"enabled"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Normalize fills zero-valued fields with workable defaults so malformed
// or partial config degrades instead of failing.
func (c *Config) Normalize() {
	if len(c.Classify.AdministrativeTypes) == 0 {
		c.Classify.AdministrativeTypes = []string{"chore", "admin"}
	}
	if len(c.Classify.AdministrativeLabels) == 0 {
		c.Classify.AdministrativeLabels = []string{"admin", "paperwork", "ops"}
	}
	if len(c.Classify.BlockingPriorities) == 0 {
		c.Classify.BlockingPriorities = []string{"Blocker"}
	}
	if len(c.Classify.PriorityLadder) == 0 {
		c.Classify.PriorityLadder = []string{"Blocker", "High", "Medium", "Low"}
	}
	if len(c.Classify.DependencyLinkTypes) == 0 {
		c.Classify.DependencyLinkTypes = []string{string(LinkBlockedBy), string(LinkDependsOn)}
	}
	if c.Classify.ExternalDependencyKey == "" {
		c.Classify.ExternalDependencyKey = "external_dependency"
	}
	if len(c.Classify.InProgressStatuses) == 0 {
		c.Classify.InProgressStatuses = []string{"in_progress", "in progress", "started"}
	}
	if len(c.Classify.NotStartedStatuses) == 0 {
		c.Classify.NotStartedStatuses = []string{"not_started", "not started", "todo", "open", "backlog"}
	}
	if c.Classify.MinutesPerDay <= 0 {
		c.Classify.MinutesPerDay = DefaultMinutesPerDay
	}
	if c.Classify.DefaultEstimateDays <= 0 {
		c.Classify.DefaultEstimateDays = DefaultEstimateDays
	}
	if c.Plan.AdminBlockMinutes <= 0 || c.Plan.AdminBlockMinutes > DefaultAdminBlockMin {
		c.Plan.AdminBlockMinutes = DefaultAdminBlockMin
	}
	if c.Plan.AdminBlockStart == "" {
		c.Plan.AdminBlockStart = "16:00"
	}
	if c.Runner.BlockingCheckSec <= 0 {
		c.Runner.BlockingCheckSec = DefaultBlockingCheckSec
	}
	if c.Runner.DebounceSec <= 0 {
		c.Runner.DebounceSec = 0.3
	}
	if c.Runner.ShutdownTimeoutSec <= 0 {
		c.Runner.ShutdownTimeoutSec = 10
	}
	if c.Runner.DailyRunTime == "" {
		c.Runner.DailyRunTime = "09:00"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
