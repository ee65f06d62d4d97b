// Package setup handles dayplan workspace initialization.
package setup

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/msato/dayplan/internal/model"
	"github.com/msato/dayplan/internal/source"
	atomicyaml "github.com/msato/dayplan/internal/yaml"
)

const dayplanDir = ".dayplan"

// Run initializes the .dayplan/ directory structure in the given project
// directory. projectName overrides the auto-detected name (defaults to
// the directory basename if empty).
func Run(projectDir, projectName string) error {
	absDir, err := filepath.Abs(projectDir)
	if err != nil {
		return fmt.Errorf("resolve project dir: %w", err)
	}

	base := filepath.Join(absDir, dayplanDir)

	if _, err := os.Stat(base); err == nil {
		return fmt.Errorf("%s already exists", base)
	}

	dirs := []string{
		"items",
		"plans/archive",
		"closure",
		"locks",
		"logs",
		"quarantine",
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(base, d), 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", d, err)
		}
	}

	cfg := generateConfig(absDir, projectName)
	if err := atomicyaml.AtomicWrite(filepath.Join(base, "config.yaml"), cfg); err != nil {
		return fmt.Errorf("write config.yaml: %w", err)
	}

	if err := writeExampleItem(filepath.Join(base, "items", "example.yaml")); err != nil {
		return fmt.Errorf("write example item: %w", err)
	}

	// runner.lock (empty)
	if err := os.WriteFile(filepath.Join(base, "locks", "runner.lock"), nil, 0600); err != nil {
		return fmt.Errorf("create runner.lock: %w", err)
	}

	return nil
}

func generateConfig(projectDir, projectName string) *model.Config {
	var cfg model.Config
	cfg.Normalize()

	if projectName != "" {
		cfg.Project.Name = projectName
	} else {
		cfg.Project.Name = filepath.Base(projectDir)
	}
	cfg.Dayplan.Version = "1.0.0"
	cfg.Dayplan.Created = time.Now().Format(time.RFC3339)
	cfg.Dayplan.WorkspaceID = newWorkspaceID()

	return &cfg
}

func newWorkspaceID() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%08x", time.Now().UnixNano()&0xffffffff)
	}
	return hex.EncodeToString(buf)
}

type exampleItemFile struct {
	SchemaVersion int            `yaml:"schema_version"`
	FileType      string         `yaml:"file_type"`
	Item          model.WorkItem `yaml:"item"`
}

// writeExampleItem drops a sample work item so the on-disk format is
// visible without reading docs.
func writeExampleItem(path string) error {
	minutes := 120
	now := time.Now().Format(time.RFC3339)
	item := exampleItemFile{
		SchemaVersion: atomicyaml.CurrentSchemaVersion,
		FileType:      source.ItemFileType,
		Item: model.WorkItem{
			ID:              "EXAMPLE-1",
			Title:           "Replace me with a real task",
			Description:     "Delete this file or edit it into a task you actually track.",
			Type:            "task",
			Priority:        "Medium",
			Status:          "todo",
			EstimateMinutes: &minutes,
			CreatedAt:       now,
			UpdatedAt:       now,
		},
	}
	return atomicyaml.AtomicWrite(path, item)
}
