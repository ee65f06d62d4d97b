package source

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	yamlv3 "gopkg.in/yaml.v3"

	"github.com/msato/dayplan/internal/model"
	planyaml "github.com/msato/dayplan/internal/yaml"
)

// itemFile is the on-disk shape of one work item under
// <dayplanDir>/items/.
type itemFile struct {
	SchemaVersion int            `yaml:"schema_version"`
	FileType      string         `yaml:"file_type"`
	Item          model.WorkItem `yaml:"item"`
}

const ItemFileType = "work_item"

var terminalItemStatuses = map[string]bool{
	"done":      true,
	"completed": true,
	"closed":    true,
	"cancelled": true,
	"canceled":  true,
}

// DirSource serves work items from YAML files in a directory. It backs
// the CLI and the watch daemon when no remote tracker is wired in.
type DirSource struct {
	dayplanDir string
	cfg        model.ClassifyConfig
	logger     *log.Logger
}

func NewDirSource(dayplanDir string, cfg model.ClassifyConfig, logger *log.Logger) *DirSource {
	return &DirSource{dayplanDir: dayplanDir, cfg: cfg, logger: logger}
}

// ItemsDir is the watched directory.
func (s *DirSource) ItemsDir() string {
	return filepath.Join(s.dayplanDir, "items")
}

func (s *DirSource) FetchActiveItems(ctx context.Context) ([]model.WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, Failure(ErrUnavailable, err)
	}

	entries, err := os.ReadDir(s.ItemsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, Failure(ErrUnavailable, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".yaml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	items := make([]model.WorkItem, 0, len(names))
	for _, name := range names {
		path := filepath.Join(s.ItemsDir(), name)
		item, err := s.readItem(path)
		if err != nil {
			// one bad file never aborts the whole fetch
			s.logf("item_file_skip file=%s error=%v", name, err)
			if qerr := planyaml.Quarantine(s.dayplanDir, path); qerr != nil {
				s.logf("item_file_quarantine_failed file=%s error=%v", name, qerr)
			}
			continue
		}
		if terminalItemStatuses[strings.ToLower(strings.TrimSpace(item.Status))] {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *DirSource) FetchBlockingItems(ctx context.Context) ([]model.WorkItem, error) {
	items, err := s.FetchActiveItems(ctx)
	if err != nil {
		return nil, err
	}

	var blocking []model.WorkItem
	for _, item := range items {
		for _, b := range s.cfg.BlockingPriorities {
			if strings.EqualFold(strings.TrimSpace(item.Priority), b) {
				blocking = append(blocking, item)
				break
			}
		}
	}
	return blocking, nil
}

// CreateSubtasks writes one item file per spec, chaining each subtask
// behind its predecessor so only the first is immediately workable.
func (s *DirSource) CreateSubtasks(ctx context.Context, parentID string, specs []model.SubtaskSpec) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, Failure(ErrUnavailable, err)
	}
	if parentID == "" {
		return nil, Failure(ErrInvalidQuery, fmt.Errorf("empty parent ID"))
	}
	if err := os.MkdirAll(s.ItemsDir(), 0755); err != nil {
		return nil, Failure(ErrUnavailable, err)
	}

	ids := make([]string, 0, len(specs))
	var prevID string
	for _, spec := range specs {
		id, err := model.GenerateID(model.IDTypeItem)
		if err != nil {
			return ids, fmt.Errorf("generate subtask ID: %w", err)
		}

		minutes := int(spec.EstimatedDays*float64(s.cfg.MinutesPerDay) + 0.5)
		item := model.WorkItem{
			ID:              id,
			Title:           spec.Summary,
			Description:     spec.Description,
			Type:            "task",
			Status:          "not_started",
			EstimateMinutes: &minutes,
			Links:           []model.Link{{Type: model.LinkChildOf, TargetID: parentID, Resolved: true}},
			CreatedAt:       time.Now().Format(time.RFC3339),
		}
		if prevID != "" {
			item.Links = append(item.Links, model.Link{Type: model.LinkBlockedBy, TargetID: prevID})
		}

		file := itemFile{
			SchemaVersion: planyaml.CurrentSchemaVersion,
			FileType:      ItemFileType,
			Item:          item,
		}
		if err := planyaml.AtomicWrite(filepath.Join(s.ItemsDir(), id+".yaml"), &file); err != nil {
			return ids, Failure(ErrUnavailable, err)
		}
		ids = append(ids, id)
		prevID = id
	}
	return ids, nil
}

func (s *DirSource) readItem(path string) (model.WorkItem, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return model.WorkItem{}, err
	}
	if err := planyaml.ValidateSchemaHeaderFromBytes(content, ItemFileType); err != nil {
		return model.WorkItem{}, err
	}
	var file itemFile
	if err := yamlv3.Unmarshal(content, &file); err != nil {
		return model.WorkItem{}, fmt.Errorf("parse item file: %w", err)
	}
	if file.Item.ID == "" {
		// fall back to the filename so the item stays addressable
		file.Item.ID = strings.TrimSuffix(filepath.Base(path), ".yaml")
	}
	return file.Item, nil
}

func (s *DirSource) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf("[WARN] "+format, args...)
	}
}
