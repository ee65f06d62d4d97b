// Package closure records per-day completion counts for the plan's
// priority list and serves the closure rate that feeds the next plan.
package closure

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	yamlv3 "gopkg.in/yaml.v3"

	"github.com/msato/dayplan/internal/lock"
	"github.com/msato/dayplan/internal/model"
	planyaml "github.com/msato/dayplan/internal/yaml"
)

// Store persists one ClosureRecord per calendar date under
// <dayplanDir>/closure/<date>.yaml. Writes on the same date are
// serialized; records are append-only (a re-record for the same date
// replaces the file, matching the one-record-per-date contract).
type Store struct {
	dayplanDir string
	lockMap    *lock.MutexMap
}

func NewStore(dayplanDir string) *Store {
	return &Store{
		dayplanDir: dayplanDir,
		lockMap:    lock.NewMutexMap(),
	}
}

func (s *Store) dir() string {
	return filepath.Join(s.dayplanDir, "closure")
}

func (s *Store) path(date string) string {
	return filepath.Join(s.dir(), date+".yaml")
}

func (s *Store) Save(rec model.ClosureRecord) error {
	if err := validDate(rec.Date); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir(), 0755); err != nil {
		return fmt.Errorf("create closure dir: %w", err)
	}

	s.lockMap.Lock(rec.Date)
	defer s.lockMap.Unlock(rec.Date)

	rec.SchemaVersion = planyaml.CurrentSchemaVersion
	rec.FileType = model.ClosureFileType
	if err := planyaml.AtomicWrite(s.path(rec.Date), &rec); err != nil {
		return fmt.Errorf("write closure record: %w", err)
	}
	return nil
}

// Load returns the record for date, or nil when none exists. A corrupt
// file is quarantined (restoring the backup when possible) and loading
// is retried once.
func (s *Store) Load(date string) (*model.ClosureRecord, error) {
	if err := validDate(date); err != nil {
		return nil, err
	}
	rec, err := s.read(s.path(date))
	if err == nil || os.IsNotExist(err) {
		return rec, nil
	}

	if qerr := planyaml.RecoverCorruptedFile(s.dayplanDir, s.path(date)); qerr != nil {
		return nil, fmt.Errorf("recover closure record: %w", qerr)
	}
	rec, err = s.read(s.path(date))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read closure record after recovery: %w", err)
	}
	return rec, nil
}

// Previous returns the record immediately preceding date, or nil when no
// earlier record exists.
func (s *Store) Previous(date string) (*model.ClosureRecord, error) {
	if err := validDate(date); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read closure dir: %w", err)
	}

	dates := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".yaml") {
			continue
		}
		d := strings.TrimSuffix(name, ".yaml")
		if validDate(d) != nil {
			continue
		}
		// ISO dates order lexicographically
		if d < date {
			dates = append(dates, d)
		}
	}
	if len(dates) == 0 {
		return nil, nil
	}
	sort.Strings(dates)
	return s.Load(dates[len(dates)-1])
}

func (s *Store) read(path string) (*model.ClosureRecord, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := planyaml.ValidateSchemaHeaderFromBytes(content, model.ClosureFileType); err != nil {
		return nil, fmt.Errorf("invalid closure record %s: %w", path, err)
	}
	var rec model.ClosureRecord
	if err := yamlv3.Unmarshal(content, &rec); err != nil {
		return nil, fmt.Errorf("parse closure record %s: %w", path, err)
	}
	return &rec, nil
}

func validDate(date string) error {
	if len(date) != 10 || date[4] != '-' || date[7] != '-' {
		return fmt.Errorf("invalid date %q (want YYYY-MM-DD)", date)
	}
	for i, r := range date {
		if i == 4 || i == 7 {
			continue
		}
		if r < '0' || r > '9' {
			return fmt.Errorf("invalid date %q (want YYYY-MM-DD)", date)
		}
	}
	return nil
}
