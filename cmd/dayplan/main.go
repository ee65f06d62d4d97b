package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/msato/dayplan/internal/approve"
	"github.com/msato/dayplan/internal/engine"
	"github.com/msato/dayplan/internal/model"
	"github.com/msato/dayplan/internal/runner"
	"github.com/msato/dayplan/internal/setup"
	"github.com/msato/dayplan/internal/source"
	"github.com/msato/dayplan/internal/status"
	"github.com/msato/dayplan/internal/uds"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "setup":
		runSetup(os.Args[2:])
	case "generate":
		runGenerate(os.Args[2:])
	case "replan":
		runReplan(os.Args[2:])
	case "decompose":
		runDecompose(os.Args[2:])
	case "record":
		runRecord(os.Args[2:])
	case "modify":
		runModify(os.Args[2:])
	case "show":
		runShow(os.Args[2:])
	case "approve":
		runApprove(os.Args[2:])
	case "reject":
		runReject(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "watch":
		runWatch(os.Args[2:])
	case "trigger":
		runTrigger(os.Args[2:])
	case "stop":
		runStop(os.Args[2:])
	case "version":
		fmt.Printf("dayplan %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runSetup(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: dayplan setup <project_dir> [--name <name>]")
		os.Exit(1)
	}

	projectDir := args[0]
	var name string
	for i := 1; i < len(args); i++ {
		switch args[i] {
		case "--name":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--name requires a value")
				os.Exit(1)
			}
			i++
			name = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: dayplan setup <project_dir> [--name <name>]\n", args[i])
			os.Exit(1)
		}
	}

	if err := setup.Run(projectDir, name); err != nil {
		fmt.Fprintf(os.Stderr, "setup: %v\n", err)
		os.Exit(1)
	}
	absDir, _ := filepath.Abs(projectDir)
	fmt.Printf("Initialized .dayplan/ in %s\n", absDir)
}

func runGenerate(args []string) {
	date, autoApprove := parseDateYes(args, "generate")

	eng, _ := mustEngine(pickApprover(autoApprove))
	defer eng.Close()

	plan, err := eng.Generate(context.Background(), date)
	if err != nil {
		fail("generate", err)
	}

	fmt.Printf("plan %s for %s: %s\n", plan.ID, plan.Date, plan.State)
}

func runReplan(args []string) {
	var itemID string
	var rest []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--item" {
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--item requires a value")
				os.Exit(1)
			}
			i++
			itemID = args[i]
			continue
		}
		rest = append(rest, args[i])
	}
	if itemID == "" {
		fmt.Fprintln(os.Stderr, "usage: dayplan replan --item <id> [--date <date>] [--yes]")
		os.Exit(1)
	}
	date, autoApprove := parseDateYes(rest, "replan")

	eng, src := mustEngine(pickApprover(autoApprove))
	defer eng.Close()

	item, err := findItem(src, itemID)
	if err != nil {
		fail("replan", err)
	}

	plan, err := eng.Replan(context.Background(), item, date)
	if err != nil {
		fail("replan", err)
	}
	fmt.Printf("plan %s for %s: %s (interrupting for %s)\n", plan.ID, plan.Date, plan.State, itemID)
}

func runDecompose(args []string) {
	var itemID string
	var rest []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--item" {
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--item requires a value")
				os.Exit(1)
			}
			i++
			itemID = args[i]
			continue
		}
		rest = append(rest, args[i])
	}
	if itemID == "" {
		fmt.Fprintln(os.Stderr, "usage: dayplan decompose --item <id> [--yes]")
		os.Exit(1)
	}
	_, autoApprove := parseDateYes(rest, "decompose")

	eng, src := mustEngine(pickApprover(autoApprove))
	defer eng.Close()

	item, err := findItem(src, itemID)
	if err != nil {
		fail("decompose", err)
	}

	specs, ids, err := eng.ProposeDecomposition(context.Background(), item)
	if err != nil {
		fail("decompose", err)
	}
	if len(ids) == 0 {
		fmt.Printf("proposed %d subtasks for %s; none created\n", len(specs), itemID)
		return
	}
	fmt.Printf("created %d subtasks for %s:\n", len(ids), itemID)
	for _, id := range ids {
		fmt.Printf("  %s\n", id)
	}
}

func runRecord(args []string) {
	date := today()
	var completed []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--date" {
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--date requires a value")
				os.Exit(1)
			}
			i++
			date = args[i]
			continue
		}
		completed = append(completed, args[i])
	}

	eng, _ := mustEngine(approve.AutoApprover{})
	defer eng.Close()

	plan, err := eng.Plans().Load(date)
	if err != nil {
		fail("record", err)
	}
	if plan == nil {
		fail("record", fmt.Errorf("no plan stored for %s", date))
	}

	done := make(map[string]bool, len(completed))
	for _, id := range completed {
		done[id] = true
	}
	flags := make([]bool, len(plan.Priorities))
	for i, p := range plan.Priorities {
		flags[i] = done[p.Item.ID]
		delete(done, p.Item.ID)
	}
	for id := range done {
		fmt.Fprintf(os.Stderr, "warning: %s is not a priority of plan %s\n", id, date)
	}

	rec, err := eng.RecordCompletion(date, flags)
	if err != nil {
		fail("record", err)
	}
	if rec.ClosureRate != nil {
		fmt.Printf("recorded %s: %d/%d completed (%.0f%%)\n",
			date, rec.CompletedCount, rec.TotalPriorities, *rec.ClosureRate*100)
	} else {
		fmt.Printf("recorded %s: no priorities to close\n", date)
	}
}

func runModify(args []string) {
	date := today()
	mods := map[string]any{}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--date":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--date requires a value")
				os.Exit(1)
			}
			i++
			date = args[i]
		case "--priorities":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--priorities requires a comma-separated list")
				os.Exit(1)
			}
			i++
			mods["priorities"] = strings.Split(args[i], ",")
		case "--remove-admin":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--remove-admin requires a value")
				os.Exit(1)
			}
			i++
			ids, _ := mods["remove_admin"].([]string)
			mods["remove_admin"] = append(ids, args[i])
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: dayplan modify [--date <date>] [--priorities a,b,c] [--remove-admin <id>]...\n", args[i])
			os.Exit(1)
		}
	}
	if len(mods) == 0 {
		fmt.Fprintln(os.Stderr, "usage: dayplan modify [--date <date>] [--priorities a,b,c] [--remove-admin <id>]...")
		os.Exit(1)
	}

	eng, _ := mustEngine(approve.AutoApprover{})
	defer eng.Close()

	plan, err := eng.ApplyModifications(date, mods)
	if err != nil {
		fail("modify", err)
	}
	fmt.Printf("plan %s for %s: %s\n", plan.ID, plan.Date, plan.State)
}

func runShow(args []string) {
	date, _ := parseDateYes(args, "show")

	eng, _ := mustEngine(approve.AutoApprover{})
	defer eng.Close()

	out, err := eng.RenderPlan(date)
	if err != nil {
		fail("show", err)
	}
	fmt.Print(out)
}

func runApprove(args []string) {
	date, _ := parseDateYes(args, "approve")

	eng, _ := mustEngine(approve.AutoApprover{})
	defer eng.Close()

	plan, err := eng.Approve(date)
	if err != nil {
		fail("approve", err)
	}
	fmt.Printf("plan %s for %s: %s\n", plan.ID, plan.Date, plan.State)
}

func runReject(args []string) {
	date := today()
	var feedback string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--date":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--date requires a value")
				os.Exit(1)
			}
			i++
			date = args[i]
		case "--feedback":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--feedback requires a value")
				os.Exit(1)
			}
			i++
			feedback = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: dayplan reject [--date <date>] --feedback <text>\n", args[i])
			os.Exit(1)
		}
	}

	eng, _ := mustEngine(approve.AutoApprover{})
	defer eng.Close()

	plan, err := eng.Reject(date, feedback)
	if err != nil {
		fail("reject", err)
	}
	fmt.Printf("plan %s for %s: %s\n", plan.ID, plan.Date, plan.State)
}

func runStatus(args []string) {
	date := today()
	jsonOutput := false
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--json":
			jsonOutput = true
		case "--date":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--date requires a value")
				os.Exit(1)
			}
			i++
			date = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: dayplan status [--json] [--date <date>]\n", args[i])
			os.Exit(1)
		}
	}

	dayplanDir := mustFindDayplanDir()
	if err := status.Run(dayplanDir, date, jsonOutput); err != nil {
		fail("status", err)
	}
}

func runWatch(_ []string) {
	dayplanDir := mustFindDayplanDir()
	cfg, err := loadConfig(dayplanDir)
	if err != nil {
		fail("watch", err)
	}

	src := source.NewDirSource(dayplanDir, cfg.Classify, log.New(os.Stderr, "", 0))
	r, err := runner.New(dayplanDir, cfg, src, deferredApprover{})
	if err != nil {
		fail("watch", err)
	}
	if err := r.Run(); err != nil {
		fail("watch", err)
	}
}

func runTrigger(args []string) {
	date, _ := parseDateYes(args, "trigger")

	dayplanDir := mustFindDayplanDir()
	client := uds.NewClient(filepath.Join(dayplanDir, uds.DefaultSocketName))
	resp, err := client.SendCommand("trigger", map[string]string{"date": date})
	if err != nil {
		fail("trigger", err)
	}
	if !resp.Success {
		code := ""
		msg := "unknown error"
		if resp.Error != nil {
			code = resp.Error.Code
			msg = resp.Error.Message
		}
		fmt.Fprintf(os.Stderr, "trigger failed [%s]: %s\n", code, msg)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(json.RawMessage(resp.Data), "", "  ")
	fmt.Println(string(out))
}

func runStop(_ []string) {
	dayplanDir := mustFindDayplanDir()
	client := uds.NewClient(filepath.Join(dayplanDir, uds.DefaultSocketName))
	resp, err := client.SendCommand("shutdown", nil)
	if err != nil {
		fail("stop", err)
	}
	if !resp.Success {
		fmt.Fprintln(os.Stderr, "stop: runner refused shutdown")
		os.Exit(1)
	}
	fmt.Println("runner stopping")
}

// parseDateYes handles the flags shared by most subcommands.
func parseDateYes(args []string, cmd string) (date string, yes bool) {
	date = today()
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--date":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--date requires a value")
				os.Exit(1)
			}
			i++
			date = args[i]
		case "--yes":
			yes = true
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: dayplan %s [--date <date>] [--yes]\n", args[i], cmd)
			os.Exit(1)
		}
	}
	return date, yes
}

func pickApprover(autoApprove bool) approve.Approver {
	if autoApprove {
		return approve.AutoApprover{}
	}
	return &consoleApprover{in: os.Stdin, out: os.Stdout}
}

func mustEngine(approver approve.Approver) (*engine.Engine, source.Source) {
	dayplanDir := mustFindDayplanDir()
	cfg, err := loadConfig(dayplanDir)
	if err != nil {
		fail("load config", err)
	}

	logger := log.New(os.Stderr, "", 0)
	src := source.NewDirSource(dayplanDir, cfg.Classify, logger)
	eng, err := engine.New(dayplanDir, cfg, src, approver, logger)
	if err != nil {
		fail("init engine", err)
	}
	return eng, src
}

func findItem(src source.Source, itemID string) (model.WorkItem, error) {
	items, err := src.FetchActiveItems(context.Background())
	if err != nil {
		return model.WorkItem{}, err
	}
	for _, item := range items {
		if item.ID == itemID {
			return item, nil
		}
	}
	return model.WorkItem{}, fmt.Errorf("item %s not found among active items", itemID)
}

func today() string {
	return time.Now().Format("2006-01-02")
}

func fail(op string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", op, err)
	os.Exit(1)
}

// mustFindDayplanDir searches for .dayplan/ in the current directory and
// ancestors.
func mustFindDayplanDir() string {
	dir, err := os.Getwd()
	if err == nil {
		for {
			candidate := filepath.Join(dir, ".dayplan")
			if info, statErr := os.Stat(candidate); statErr == nil && info.IsDir() {
				return candidate
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	fmt.Fprintln(os.Stderr, "error: .dayplan/ directory not found. Run 'dayplan setup <dir>' first.")
	os.Exit(1)
	return ""
}

func loadConfig(dayplanDir string) (model.Config, error) {
	data, err := os.ReadFile(filepath.Join(dayplanDir, "config.yaml"))
	if err != nil {
		return model.Config{}, fmt.Errorf("read config.yaml: %w", err)
	}
	var cfg model.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return model.Config{}, fmt.Errorf("parse config.yaml: %w", err)
	}
	cfg.Normalize()
	return cfg, nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `dayplan %s - task triage and daily plan generation

Usage: dayplan <command> [options]

Workspace:
  setup <dir> [--name <name>]   Initialize .dayplan/ directory
  status [--json] [--date <d>]  Show runner, plan, and closure status

Planning:
  generate [--date <d>] [--yes]          Generate and present today's plan
  replan --item <id> [--date <d>]        Interrupt the plan for a blocking item
  decompose --item <id> [--yes]          Split a long task into day-sized subtasks
  modify [--priorities a,b,c] [--remove-admin <id>]  Edit the presented plan
  show [--date <d>]                      Print the stored plan
  approve [--date <d>]                   Approve the presented plan
  reject [--date <d>] --feedback <text>  Reject with feedback
  record [--date <d>] [id]...            Record completed priorities

Runner:
  watch             Run the background runner (schedule + blocking watch)
  trigger [--date <d>]  Ask the runner to generate now
  stop              Ask the runner to shut down

  version           Show version
  help              Show this help

`, version)
}
