// Package events provides an append-only JSONL audit log of planning
// decisions. Every state change in a plan's lifecycle lands here so a
// cycle can be reconstructed after the fact.
package events

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// DefaultMaxLogSize caps a log file at 10MB before rotation.
	DefaultMaxLogSize = 10 * 1024 * 1024
	LogFileExtension  = ".jsonl"
	ArchiveDir        = "archive"
)

// Event types emitted over a planning cycle.
const (
	EventPlanGenerated        = "plan_generated"
	EventPlanPresented        = "plan_presented"
	EventPlanApproved         = "plan_approved"
	EventPlanRejected         = "plan_rejected"
	EventPlanModified         = "plan_modified"
	EventPlanExpired          = "plan_expired"
	EventReplanTriggered      = "replan_triggered"
	EventDecompositionOffered = "decomposition_offered"
	EventSubtasksCreated      = "subtasks_created"
	EventClosureRecorded      = "closure_recorded"
	EventSourceError          = "source_error"
)

// Entry is a single audit log line.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	EventType string         `json:"event_type"`
	PlanID    string         `json:"plan_id,omitempty"`
	ItemID    string         `json:"item_id,omitempty"`
	Date      string         `json:"date,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// AuditLog appends entries to a JSONL file, rotating into an archive
// directory when the file exceeds maxSize.
type AuditLog struct {
	mu              sync.Mutex
	file            *os.File
	currentSize     int64
	maxSize         int64
	logPath         string
	rotationCounter int
}

func NewAuditLog(logPath string, maxSize int64) (*AuditLog, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxLogSize
	}

	l := &AuditLog{
		logPath: logPath,
		maxSize: maxSize,
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if err := l.openLogFile(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *AuditLog) openLogFile() error {
	file, err := os.OpenFile(l.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat log file: %w", err)
	}

	l.file = file
	l.currentSize = stat.Size()
	return nil
}

// Log appends an event. Well-known keys (plan_id, item_id, date) are
// lifted out of details into top-level fields.
func (l *AuditLog) Log(eventType string, details map[string]any) error {
	entry := Entry{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Details:   details,
	}

	if planID, ok := details["plan_id"].(string); ok {
		entry.PlanID = planID
		delete(details, "plan_id")
	}
	if itemID, ok := details["item_id"].(string); ok {
		entry.ItemID = itemID
		delete(details, "item_id")
	}
	if date, ok := details["date"].(string); ok {
		entry.Date = date
		delete(details, "date")
	}
	if len(details) == 0 {
		entry.Details = nil
	}

	return l.WriteEntry(&entry)
}

func (l *AuditLog) WriteEntry(entry *Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}
	data = append(data, '\n')

	if l.currentSize+int64(len(data)) > l.maxSize {
		if err := l.rotate(); err != nil {
			return fmt.Errorf("rotate log: %w", err)
		}
	}

	n, err := l.file.Write(data)
	if err != nil {
		return fmt.Errorf("write log entry: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync log file: %w", err)
	}

	l.currentSize += int64(n)
	return nil
}

func (l *AuditLog) rotate() error {
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close current log file: %w", err)
	}

	archiveDir := filepath.Join(filepath.Dir(l.logPath), ArchiveDir)
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	l.rotationCounter++
	baseName := filepath.Base(l.logPath)
	archiveName := fmt.Sprintf("%s.%s.%d%s",
		baseName[:len(baseName)-len(LogFileExtension)],
		timestamp,
		l.rotationCounter,
		LogFileExtension)

	if err := os.Rename(l.logPath, filepath.Join(archiveDir, archiveName)); err != nil {
		return fmt.Errorf("archive log file: %w", err)
	}

	return l.openLogFile()
}

// ReadEntries parses a JSONL log file, skipping malformed lines. Used
// by status reporting and in tests.
func ReadEntries(logPath string) ([]Entry, error) {
	file, err := os.Open(logPath)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("scan log file: %w", err)
	}
	return entries, nil
}

func (l *AuditLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		if err := l.file.Sync(); err != nil {
			return err
		}
		return l.file.Close()
	}
	return nil
}

func (l *AuditLog) CurrentSize() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentSize
}
