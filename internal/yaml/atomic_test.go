package yaml

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	yamlv3 "gopkg.in/yaml.v3"
)

type closureDoc struct {
	SchemaVersion int     `yaml:"schema_version"`
	FileType      string  `yaml:"file_type"`
	Date          string  `yaml:"date"`
	Rate          float64 `yaml:"rate"`
}

func TestAtomicWrite_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "2026-03-02.yaml")

	doc := closureDoc{SchemaVersion: 1, FileType: "closure_record", Date: "2026-03-02", Rate: 0.5}
	if err := AtomicWrite(path, &doc); err != nil {
		t.Fatalf("AtomicWrite failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	var got closureDoc
	if err := yamlv3.Unmarshal(content, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got != doc {
		t.Errorf("round trip: got %+v, want %+v", got, doc)
	}
}

func TestAtomicWrite_KeepsPreviousAsBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "2026-03-02.yaml")

	if err := AtomicWrite(path, map[string]string{"state": "draft"}); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := AtomicWrite(path, map[string]string{"state": "presented"}); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	bak, err := os.ReadFile(path + ".bak")
	if err != nil {
		t.Fatalf("ReadFile .bak failed: %v", err)
	}
	if !strings.Contains(string(bak), "draft") {
		t.Errorf(".bak should hold the first write, got %q", bak)
	}

	cur, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(cur), "presented") {
		t.Errorf("current file should hold the second write, got %q", cur)
	}
}

func TestAtomicWriteRaw_RejectsInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "2026-03-02.yaml")

	if err := AtomicWriteRaw(path, []byte(":\n  broken: [\n")); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("target must not exist after a rejected write")
	}

	// nothing else may be left behind either
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("directory not clean after failed write: %v", entries)
	}
}

func TestAtomicWriteRaw_FailedWriteLeavesOldContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "2026-03-02.yaml")

	if err := AtomicWriteRaw(path, []byte("state: approved\n")); err != nil {
		t.Fatalf("valid write failed: %v", err)
	}
	if err := AtomicWriteRaw(path, []byte(":\n  broken: [\n")); err == nil {
		t.Fatal("expected error for invalid YAML")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(content) != "state: approved\n" {
		t.Errorf("old content must survive a failed write, got %q", content)
	}
}
