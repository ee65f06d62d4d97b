package model

// ClosureRecord captures how much of one day's priority list was closed
// out. One record per date, append-only.
type ClosureRecord struct {
	SchemaVersion   int      `yaml:"schema_version"`
	FileType        string   `yaml:"file_type"`
	Date            string   `yaml:"date"`
	TotalPriorities int      `yaml:"total_priorities"`
	CompletedCount  int      `yaml:"completed_count"`
	ClosureRate     *float64 `yaml:"closure_rate"`
	IncompleteIDs   []string `yaml:"incomplete_ids"`
	RecordedAt      string   `yaml:"recorded_at"`
}

const ClosureFileType = "closure_record"

// ApprovalResult is what the approval collaborator hands back. The engine
// only consumes it.
type ApprovalResult struct {
	Approved      bool           `yaml:"approved"`
	Feedback      *string        `yaml:"feedback"`
	Modifications map[string]any `yaml:"modifications"`
	Expired       bool           `yaml:"expired"`
}
