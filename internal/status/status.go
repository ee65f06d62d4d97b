package status

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/msato/dayplan/internal/model"
	"github.com/msato/dayplan/internal/uds"
	planyaml "github.com/msato/dayplan/internal/yaml"
)

type WorkspaceStatus struct {
	Runner  RunnerStatus    `json:"runner"`
	Plan    *PlanStatus     `json:"plan,omitempty"`
	Closure []ClosureStatus `json:"closure,omitempty"`
	Items   int             `json:"items"`
}

type RunnerStatus struct {
	Running bool `json:"running"`
}

type PlanStatus struct {
	ID           string `json:"id"`
	Date         string `json:"date"`
	State        string `json:"state"`
	Priorities   int    `json:"priorities"`
	AdminMinutes int    `json:"admin_minutes"`
	Interrupted  bool   `json:"interrupted,omitempty"`
}

type ClosureStatus struct {
	Date      string `json:"date"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Rate      string `json:"rate"`
}

// recentClosureDays caps how many closure records status shows.
const recentClosureDays = 7

// Run collects workspace status for date and prints it.
func Run(dayplanDir, date string, jsonOutput bool) error {
	status := Collect(dayplanDir, date)

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	printStatus(status)
	return nil
}

func Collect(dayplanDir, date string) WorkspaceStatus {
	status := WorkspaceStatus{}
	status.Runner = checkRunner(filepath.Join(dayplanDir, uds.DefaultSocketName))
	status.Plan = readPlan(dayplanDir, date)
	status.Closure = readClosures(dayplanDir)
	status.Items = countItems(dayplanDir)
	return status
}

func checkRunner(sockPath string) RunnerStatus {
	client := uds.NewClient(sockPath)
	resp, err := client.SendCommand("ping", nil)
	if err != nil {
		return RunnerStatus{Running: false}
	}
	return RunnerStatus{Running: resp.Success}
}

func readPlan(dayplanDir, date string) *PlanStatus {
	data, err := os.ReadFile(filepath.Join(dayplanDir, "plans", date+".yaml"))
	if err != nil {
		return nil
	}
	if err := planyaml.ValidateSchemaHeaderFromBytes(data, model.PlanFileType); err != nil {
		log.Printf("status: invalid plan file for %s: %v", date, err)
		return nil
	}

	var plan model.Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		log.Printf("status: failed to parse plan for %s: %v", date, err)
		return nil
	}

	return &PlanStatus{
		ID:           plan.ID,
		Date:         plan.Date,
		State:        string(plan.State),
		Priorities:   len(plan.Priorities),
		AdminMinutes: plan.Admin.TotalMinutes,
		Interrupted:  plan.Interrupted,
	}
}

func readClosures(dayplanDir string) []ClosureStatus {
	closureDir := filepath.Join(dayplanDir, "closure")
	entries, err := os.ReadDir(closureDir)
	if err != nil {
		return nil
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		names = append(names, entry.Name())
	}
	// newest first; date-named files sort lexicographically
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	if len(names) > recentClosureDays {
		names = names[:recentClosureDays]
	}

	var closures []ClosureStatus
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(closureDir, name))
		if err != nil {
			log.Printf("status: failed to read %s: %v", name, err)
			continue
		}
		if err := planyaml.ValidateSchemaHeaderFromBytes(data, model.ClosureFileType); err != nil {
			log.Printf("status: invalid schema in %s: %v", name, err)
			continue
		}

		var rec model.ClosureRecord
		if err := yaml.Unmarshal(data, &rec); err != nil {
			log.Printf("status: failed to parse %s: %v", name, err)
			continue
		}

		rate := "n/a"
		if rec.ClosureRate != nil {
			rate = fmt.Sprintf("%.0f%%", *rec.ClosureRate*100)
		}
		closures = append(closures, ClosureStatus{
			Date:      rec.Date,
			Completed: rec.CompletedCount,
			Total:     rec.TotalPriorities,
			Rate:      rate,
		})
	}

	return closures
}

func countItems(dayplanDir string) int {
	entries, err := os.ReadDir(filepath.Join(dayplanDir, "items"))
	if err != nil {
		return 0
	}
	count := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		count++
	}
	return count
}

func printStatus(s WorkspaceStatus) {
	if s.Runner.Running {
		fmt.Println("Runner: running")
	} else {
		fmt.Println("Runner: stopped")
	}

	if s.Plan != nil {
		fmt.Printf("\nPlan %s (%s): %s\n", s.Plan.Date, s.Plan.ID, s.Plan.State)
		fmt.Printf("  priorities=%d admin_minutes=%d", s.Plan.Priorities, s.Plan.AdminMinutes)
		if s.Plan.Interrupted {
			fmt.Print(" interrupted")
		}
		fmt.Println()
	} else {
		fmt.Println("\nPlan: none")
	}

	if len(s.Closure) > 0 {
		fmt.Println("\nClosure:")
		fmt.Printf("  %-12s  %9s  %5s\n", "DATE", "COMPLETED", "RATE")
		for _, c := range s.Closure {
			fmt.Printf("  %-12s  %4d of %d  %5s\n", c.Date, c.Completed, c.Total, c.Rate)
		}
	}

	fmt.Printf("\nItems tracked: %d\n", s.Items)
}
