package status

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func writeClosureFile(t *testing.T, dir, date string, completed, total int) {
	t.Helper()
	rate := ""
	if total > 0 {
		rate = fmt.Sprintf("closure_rate: %f\n", float64(completed)/float64(total))
	} else {
		rate = "closure_rate: null\n"
	}
	content := fmt.Sprintf(
		"schema_version: 1\nfile_type: \"closure_record\"\ndate: %q\ntotal_priorities: %d\ncompleted_count: %d\n%s",
		date, total, completed, rate)
	if err := os.WriteFile(filepath.Join(dir, date+".yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestReadPlan_Absent(t *testing.T) {
	if p := readPlan(t.TempDir(), "2026-08-29"); p != nil {
		t.Fatalf("expected nil for missing plan, got %+v", p)
	}
}

func TestReadPlan_Valid(t *testing.T) {
	dir := t.TempDir()
	plansDir := filepath.Join(dir, "plans")
	os.Mkdir(plansDir, 0755)

	content := `schema_version: 1
file_type: "plan"
id: "plan_1756400000_deadbeef"
date: "2026-08-29"
state: "approved"
priorities:
  - item:
      id: "PROJ-1"
admin:
  total_minutes: 45
`
	os.WriteFile(filepath.Join(plansDir, "2026-08-29.yaml"), []byte(content), 0644)

	p := readPlan(dir, "2026-08-29")
	if p == nil {
		t.Fatal("expected plan status")
	}
	if p.State != "approved" {
		t.Errorf("state: got %q", p.State)
	}
	if p.Priorities != 1 {
		t.Errorf("priorities: got %d", p.Priorities)
	}
	if p.AdminMinutes != 45 {
		t.Errorf("admin_minutes: got %d", p.AdminMinutes)
	}
}

func TestReadPlan_WrongFileType(t *testing.T) {
	dir := t.TempDir()
	plansDir := filepath.Join(dir, "plans")
	os.Mkdir(plansDir, 0755)
	os.WriteFile(filepath.Join(plansDir, "2026-08-29.yaml"),
		[]byte("schema_version: 1\nfile_type: \"work_item\"\n"), 0644)

	if p := readPlan(dir, "2026-08-29"); p != nil {
		t.Fatalf("expected nil for wrong file type, got %+v", p)
	}
}

func TestReadClosures_NewestFirstCapped(t *testing.T) {
	dir := t.TempDir()
	closureDir := filepath.Join(dir, "closure")
	os.Mkdir(closureDir, 0755)

	for day := 1; day <= 9; day++ {
		writeClosureFile(t, closureDir, fmt.Sprintf("2026-08-%02d", day), 2, 3)
	}

	closures := readClosures(dir)
	if len(closures) != recentClosureDays {
		t.Fatalf("expected %d closures, got %d", recentClosureDays, len(closures))
	}
	if closures[0].Date != "2026-08-09" {
		t.Errorf("newest first: got %q", closures[0].Date)
	}
	if closures[0].Rate != "67%" {
		t.Errorf("rate: got %q", closures[0].Rate)
	}
}

func TestReadClosures_NilRate(t *testing.T) {
	dir := t.TempDir()
	closureDir := filepath.Join(dir, "closure")
	os.Mkdir(closureDir, 0755)
	writeClosureFile(t, closureDir, "2026-08-29", 0, 0)

	closures := readClosures(dir)
	if len(closures) != 1 {
		t.Fatalf("expected 1 closure, got %d", len(closures))
	}
	if closures[0].Rate != "n/a" {
		t.Errorf("rate: got %q", closures[0].Rate)
	}
}

func TestCountItems(t *testing.T) {
	dir := t.TempDir()
	itemsDir := filepath.Join(dir, "items")
	os.Mkdir(itemsDir, 0755)
	os.WriteFile(filepath.Join(itemsDir, "a.yaml"), []byte("x: 1\n"), 0644)
	os.WriteFile(filepath.Join(itemsDir, "b.yaml"), []byte("x: 2\n"), 0644)
	os.WriteFile(filepath.Join(itemsDir, "notes.txt"), []byte("ignore"), 0644)

	if n := countItems(dir); n != 2 {
		t.Errorf("items: got %d, want 2", n)
	}
}

func TestCollect_RunnerDown(t *testing.T) {
	s := Collect(t.TempDir(), "2026-08-29")
	if s.Runner.Running {
		t.Error("runner should be reported stopped")
	}
	if s.Plan != nil {
		t.Error("plan should be nil")
	}
	if s.Items != 0 {
		t.Errorf("items: got %d", s.Items)
	}
}
