// Package model defines the data structures for dayplan's work items,
// classifications, plans, closure records, and configuration.
package model

type LinkType string

const (
	LinkBlockedBy LinkType = "blocked_by"
	LinkBlocks    LinkType = "blocks"
	LinkDependsOn LinkType = "depends_on"
	LinkRelatesTo LinkType = "relates_to"
	LinkParentOf  LinkType = "parent_of"
	LinkChildOf   LinkType = "child_of"
)

// Link is a typed reference from one work item to another.
type Link struct {
	Type     LinkType `yaml:"type"`
	TargetID string   `yaml:"target_id"`
	// Resolved is true when the linked item is known to be in a terminal
	// status. An unresolved blocked_by/depends_on link makes the item
	// dependent.
	Resolved bool `yaml:"resolved"`
}

// WorkItem is an immutable snapshot of one externally tracked unit of work.
// The source collaborator owns it; the engine never mutates it.
type WorkItem struct {
	ID              string            `yaml:"id"`
	Title           string            `yaml:"title"`
	Description     string            `yaml:"description"`
	Type            string            `yaml:"type"`
	Priority        string            `yaml:"priority"`
	Status          string            `yaml:"status"`
	Assignee        string            `yaml:"assignee"`
	Points          *float64          `yaml:"points"`
	EstimateMinutes *int              `yaml:"estimate_minutes"`
	Labels          []string          `yaml:"labels"`
	Links           []Link            `yaml:"links"`
	Metadata        map[string]string `yaml:"metadata"`
	CreatedAt       string            `yaml:"created_at"`
	UpdatedAt       string            `yaml:"updated_at"`
}

// SubtaskSpec describes one day-sized slice of a long-running item.
type SubtaskSpec struct {
	Summary       string  `yaml:"summary"`
	Description   string  `yaml:"description"`
	EstimatedDays float64 `yaml:"estimated_days"`
	Order         int     `yaml:"order"`
}
