package approve

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	yamlv3 "gopkg.in/yaml.v3"

	"github.com/msato/dayplan/internal/lock"
	"github.com/msato/dayplan/internal/model"
	planyaml "github.com/msato/dayplan/internal/yaml"
)

// Store persists the current plan per date under
// <dayplanDir>/plans/<date>.yaml. Superseded plans move to
// plans/archive/ tagged interrupted; nothing is destroyed.
type Store struct {
	dayplanDir string
	lockMap    *lock.MutexMap
}

func NewStore(dayplanDir string) *Store {
	return &Store{dayplanDir: dayplanDir, lockMap: lock.NewMutexMap()}
}

func (s *Store) plansDir() string   { return filepath.Join(s.dayplanDir, "plans") }
func (s *Store) archiveDir() string { return filepath.Join(s.plansDir(), "archive") }

func (s *Store) path(date string) string {
	return filepath.Join(s.plansDir(), date+".yaml")
}

func (s *Store) Save(plan model.Plan) error {
	if plan.Date == "" {
		return fmt.Errorf("plan has no date")
	}
	if err := os.MkdirAll(s.plansDir(), 0755); err != nil {
		return fmt.Errorf("create plans dir: %w", err)
	}

	s.lockMap.Lock(plan.Date)
	defer s.lockMap.Unlock(plan.Date)

	plan.SchemaVersion = planyaml.CurrentSchemaVersion
	plan.FileType = model.PlanFileType
	if err := planyaml.AtomicWrite(s.path(plan.Date), &plan); err != nil {
		return fmt.Errorf("write plan: %w", err)
	}
	return nil
}

// Regenerate installs next as the current plan for its date. An accepted
// plan (approved or modified) is never replaced; a superseded draft,
// presented, rejected, or expired plan moves to the archive first, so
// regeneration never destroys history.
func (s *Store) Regenerate(next model.Plan) error {
	current, err := s.Load(next.Date)
	if err != nil {
		return err
	}
	if current != nil {
		if current.State == model.PlanStateApproved || current.State == model.PlanStateModified {
			return fmt.Errorf("plan %s for %s is %s; refusing to replace an accepted plan", current.ID, next.Date, current.State)
		}
		if err := s.archive(*current); err != nil {
			return err
		}
	}
	return s.Save(next)
}

// Load returns the current plan for date, or nil when none exists.
func (s *Store) Load(date string) (*model.Plan, error) {
	content, err := os.ReadFile(s.path(date))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read plan: %w", err)
	}
	if err := planyaml.ValidateSchemaHeaderFromBytes(content, model.PlanFileType); err != nil {
		if qerr := planyaml.RecoverCorruptedFile(s.dayplanDir, s.path(date)); qerr != nil {
			return nil, fmt.Errorf("recover plan: %w", qerr)
		}
		return s.loadOnce(date)
	}
	var plan model.Plan
	if err := yamlv3.Unmarshal(content, &plan); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	return &plan, nil
}

func (s *Store) loadOnce(date string) (*model.Plan, error) {
	content, err := os.ReadFile(s.path(date))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read plan after recovery: %w", err)
	}
	var plan model.Plan
	if err := yamlv3.Unmarshal(content, &plan); err != nil {
		return nil, fmt.Errorf("parse plan after recovery: %w", err)
	}
	return &plan, nil
}

// Transition moves the stored plan for date into a new lifecycle state
// and persists it. Invalid transitions are rejected without touching the
// file.
func (s *Store) Transition(date string, to model.PlanState) (*model.Plan, error) {
	plan, err := s.Load(date)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, fmt.Errorf("no plan stored for %s", date)
	}
	if err := model.ValidatePlanStateTransition(plan.State, to); err != nil {
		return nil, err
	}
	plan.State = to
	plan.UpdatedAt = time.Now().Format(time.RFC3339)
	if err := s.Save(*plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// SaveModified adopts a modified plan verbatim, replacing the stored
// plan for its date.
func (s *Store) SaveModified(plan model.Plan) error {
	if plan.State != model.PlanStateModified {
		return fmt.Errorf("plan %s is not in modified state", plan.ID)
	}
	return s.Save(plan)
}

// Supersede tags the current plan for date as interrupted by itemID,
// archives it, and installs next as the current plan.
func (s *Store) Supersede(date string, itemID string, next model.Plan) error {
	current, err := s.Load(date)
	if err != nil {
		return err
	}
	if current != nil {
		current.Interrupted = true
		current.InterruptedBy = &itemID
		current.UpdatedAt = time.Now().Format(time.RFC3339)
		if err := s.archive(*current); err != nil {
			return err
		}
	}
	return s.Save(next)
}

func (s *Store) archive(plan model.Plan) error {
	if err := os.MkdirAll(s.archiveDir(), 0755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	plan.SchemaVersion = planyaml.CurrentSchemaVersion
	plan.FileType = model.PlanFileType
	name := fmt.Sprintf("%s_%s.yaml", plan.Date, plan.ID)
	if err := planyaml.AtomicWrite(filepath.Join(s.archiveDir(), name), &plan); err != nil {
		return fmt.Errorf("archive plan: %w", err)
	}
	return nil
}

// Archived lists the archived plans for date, oldest first.
func (s *Store) Archived(date string) ([]model.Plan, error) {
	entries, err := os.ReadDir(s.archiveDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read archive dir: %w", err)
	}

	var plans []model.Plan
	for _, e := range entries {
		name := e.Name()
		if len(name) < len(date)+1 || name[:len(date)+1] != date+"_" {
			continue
		}
		content, err := os.ReadFile(filepath.Join(s.archiveDir(), name))
		if err != nil {
			return nil, fmt.Errorf("read archived plan: %w", err)
		}
		var plan model.Plan
		if err := yamlv3.Unmarshal(content, &plan); err != nil {
			return nil, fmt.Errorf("parse archived plan %s: %w", name, err)
		}
		plans = append(plans, plan)
	}
	return plans, nil
}
