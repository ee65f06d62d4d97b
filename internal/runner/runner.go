// Package runner is the background process that drives planning: a
// daily generation schedule, a blocking-item watch over the item
// source, and a UDS control surface for the CLI.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/singleflight"

	"github.com/msato/dayplan/internal/approve"
	"github.com/msato/dayplan/internal/engine"
	"github.com/msato/dayplan/internal/lock"
	"github.com/msato/dayplan/internal/model"
	"github.com/msato/dayplan/internal/notify"
	"github.com/msato/dayplan/internal/source"
	"github.com/msato/dayplan/internal/uds"
)

// Runner owns the engine, the item-source watcher, and the UDS server.
// Planning runs are serialized through a singleflight group: overlapping
// triggers for the same date collapse into one run.
type Runner struct {
	dayplanDir string
	config     model.Config
	logLevel   engine.LogLevel
	logger     *log.Logger
	logFile    io.Closer

	fileLock *lock.FileLock
	server   *uds.Server
	watcher  *fsnotify.Watcher
	ticker   *time.Ticker

	eng   *engine.Engine
	src   source.Source
	runs  singleflight.Group
	clock func() time.Time

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	shutdown sync.Once

	forceExit atomic.Bool
}

// New creates a Runner logging to <dayplanDir>/logs/runner.log.
func New(dayplanDir string, cfg model.Config, src source.Source, approver approve.Approver) (*Runner, error) {
	logPath := filepath.Join(dayplanDir, "logs", "runner.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open runner log: %w", err)
	}

	return newRunner(dayplanDir, cfg, src, approver, logFile, logFile)
}

// newRunner is the internal constructor for testing.
func newRunner(dayplanDir string, cfg model.Config, src source.Source, approver approve.Approver, w io.Writer, closer io.Closer) (*Runner, error) {
	ctx, cancel := context.WithCancel(context.Background())

	logger := log.New(w, "", 0)
	eng, err := engine.New(dayplanDir, cfg, src, approver, logger)
	if err != nil {
		cancel()
		return nil, err
	}

	checkInterval := cfg.Runner.BlockingCheckSec
	if checkInterval <= 0 {
		checkInterval = model.DefaultBlockingCheckSec
	}

	r := &Runner{
		dayplanDir: dayplanDir,
		config:     cfg,
		logLevel:   engine.ParseLogLevel(cfg.Logging.Level),
		logger:     logger,
		logFile:    closer,
		fileLock:   lock.NewFileLock(filepath.Join(dayplanDir, "locks", "runner.lock")),
		server:     uds.NewServer(filepath.Join(dayplanDir, uds.DefaultSocketName)),
		ticker:     time.NewTicker(time.Duration(checkInterval) * time.Second),
		eng:        eng,
		src:        src,
		clock:      time.Now,
	}
	r.ctx = ctx
	r.cancel = cancel

	return r, nil
}

// Run starts the runner and blocks until shutdown completes.
func (r *Runner) Run() error {
	if err := r.fileLock.TryLock(); err != nil {
		return fmt.Errorf("runner lock: %w", err)
	}
	r.log(engine.LogLevelInfo, "runner starting pid=%d", os.Getpid())

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		r.cleanup()
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	r.watcher = watcher

	itemsDir := filepath.Join(r.dayplanDir, "items")
	if err := os.MkdirAll(itemsDir, 0755); err != nil {
		r.cleanup()
		return fmt.Errorf("ensure items dir: %w", err)
	}
	if err := watcher.Add(itemsDir); err != nil {
		r.cleanup()
		return fmt.Errorf("watch %s: %w", itemsDir, err)
	}

	r.registerHandlers()
	if err := r.server.Start(); err != nil {
		r.cleanup()
		return fmt.Errorf("start UDS server: %w", err)
	}
	r.log(engine.LogLevelInfo, "UDS server listening on %s", filepath.Join(r.dayplanDir, uds.DefaultSocketName))

	r.wg.Add(3)
	go r.fsnotifyLoop()
	go r.blockingCheckLoop()
	go r.scheduleLoop()

	// initial pass so a restart mid-day catches pending blockers
	r.checkBlocking()
	r.log(engine.LogLevelInfo, "runner ready")

	r.waitSignals()
	return nil
}

func (r *Runner) registerHandlers() {
	r.server.Handle("ping", func(req *uds.Request) *uds.Response {
		return uds.SuccessResponse(map[string]string{"status": "ok"})
	})

	r.server.Handle("status", r.handleStatus)
	r.server.Handle("trigger", r.handleTrigger)

	r.server.Handle("shutdown", func(req *uds.Request) *uds.Response {
		r.log(engine.LogLevelInfo, "shutdown requested via UDS")
		go r.Shutdown()
		return uds.SuccessResponse(map[string]string{"status": "shutdown_accepted"})
	})
}

type statusData struct {
	Status    string  `json:"status"`
	PID       int     `json:"pid"`
	Date      string  `json:"date"`
	PlanID    string  `json:"plan_id,omitempty"`
	PlanState string  `json:"plan_state,omitempty"`
	PrevRate  *string `json:"prev_closure,omitempty"`
}

func (r *Runner) handleStatus(req *uds.Request) *uds.Response {
	date := r.today()
	data := statusData{
		Status: "running",
		PID:    os.Getpid(),
		Date:   date,
	}

	plan, err := r.eng.Plans().Load(date)
	if err != nil {
		return uds.ErrorResponse(uds.ErrCodeInternal, err.Error())
	}
	if plan != nil {
		data.PlanID = plan.ID
		data.PlanState = string(plan.State)
	}

	if prev, err := r.eng.Tracker().Previous(date); err == nil && prev != nil && prev.ClosureRate != nil {
		rate := fmt.Sprintf("%.0f%%", *prev.ClosureRate*100)
		data.PrevRate = &rate
	}

	return uds.SuccessResponse(data)
}

type triggerParams struct {
	Date string `json:"date"`
}

func (r *Runner) handleTrigger(req *uds.Request) *uds.Response {
	var params triggerParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return uds.ErrorResponse(uds.ErrCodeValidation, err.Error())
		}
	}
	date := params.Date
	if date == "" {
		date = r.today()
	}

	plan, err := r.generate(date)
	if err != nil {
		return triggerError(err)
	}
	return uds.SuccessResponse(map[string]string{
		"plan_id": plan.ID,
		"date":    plan.Date,
		"state":   string(plan.State),
	})
}

func triggerError(err error) *uds.Response {
	switch {
	case source.IsSourceFailure(err):
		return uds.ErrorResponse(uds.ErrCodeSourceFailure, err.Error())
	case err == approve.ErrFeedbackRequired:
		return uds.ErrorResponse(uds.ErrCodeFeedbackRequired, err.Error())
	default:
		return uds.ErrorResponse(uds.ErrCodeInternal, err.Error())
	}
}

// generate runs one planning cycle for date; concurrent triggers for
// the same date share a single run.
func (r *Runner) generate(date string) (*model.Plan, error) {
	v, err, shared := r.runs.Do("generate:"+date, func() (any, error) {
		return r.eng.Generate(r.ctx, date)
	})
	if shared {
		r.log(engine.LogLevelDebug, "generate_coalesced date=%s", date)
	}
	if err != nil {
		return nil, err
	}
	plan := v.(*model.Plan)
	r.notifyPlan(plan)
	return plan, nil
}

func (r *Runner) notifyPlan(plan *model.Plan) {
	if !r.config.Notify.Enabled {
		return
	}
	msg := fmt.Sprintf("Plan for %s is %s (%d priorities)", plan.Date, plan.State, len(plan.Priorities))
	if plan.State == model.PlanStatePresented || plan.State == model.PlanStateExpired {
		msg = fmt.Sprintf("Plan for %s awaits approval (%d priorities). Run: dayplan approve", plan.Date, len(plan.Priorities))
	}
	if err := notify.Send("dayplan", msg); err != nil {
		r.log(engine.LogLevelWarn, "notify error=%v", err)
	}
}

// checkBlocking scans the source for blocking-tier items and replans
// when one is not already leading today's plan.
func (r *Runner) checkBlocking() {
	date := r.today()

	items, err := r.src.FetchBlockingItems(r.ctx)
	if err != nil {
		r.log(engine.LogLevelWarn, "blocking_check fetch error=%v", err)
		return
	}
	if len(items) == 0 {
		return
	}

	plan, err := r.eng.Plans().Load(date)
	if err != nil {
		r.log(engine.LogLevelError, "blocking_check load_plan error=%v", err)
		return
	}
	if plan == nil {
		// no plan yet today; the blocking item will lead the scheduled run
		return
	}

	blocking := items[0]
	if len(plan.Priorities) > 0 && plan.Priorities[0].Item.ID == blocking.ID {
		return
	}

	_, err, _ = r.runs.Do("replan:"+date+":"+blocking.ID, func() (any, error) {
		return r.eng.Replan(r.ctx, blocking, date)
	})
	if err != nil {
		r.log(engine.LogLevelError, "replan error=%v item=%s", err, blocking.ID)
		return
	}
	r.log(engine.LogLevelWarn, "replan_complete date=%s item=%s", date, blocking.ID)
}

// fsnotifyLoop reacts to item file changes, debounced so a burst of
// writes triggers one blocking check.
func (r *Runner) fsnotifyLoop() {
	defer r.wg.Done()

	debounce := time.Duration(r.config.Runner.DebounceSec * float64(time.Second))
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-r.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				r.log(engine.LogLevelDebug, "fsnotify event=%s file=%s", event.Op, event.Name)
				if timer == nil {
					timer = time.NewTimer(debounce)
					timerC = timer.C
				} else {
					timer.Reset(debounce)
				}
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.log(engine.LogLevelError, "fsnotify error=%v", err)
		case <-timerC:
			r.checkBlocking()
		}
	}
}

// blockingCheckLoop polls the source on a fixed interval as a backstop
// for sources fsnotify cannot see.
func (r *Runner) blockingCheckLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.ticker.C:
			r.checkBlocking()
		}
	}
}

// scheduleLoop fires the daily generation once the configured run time
// passes, skipping dates that already have a plan.
func (r *Runner) scheduleLoop() {
	defer r.wg.Done()

	check := time.NewTicker(30 * time.Second)
	defer check.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-check.C:
			r.maybeRunScheduled()
		}
	}
}

func (r *Runner) maybeRunScheduled() {
	now := r.clock()
	runAt, err := time.ParseInLocation("15:04", r.config.Runner.DailyRunTime, now.Location())
	if err != nil {
		r.log(engine.LogLevelError, "bad daily_run_time %q: %v", r.config.Runner.DailyRunTime, err)
		return
	}
	today := now.Format("2006-01-02")
	threshold := time.Date(now.Year(), now.Month(), now.Day(), runAt.Hour(), runAt.Minute(), 0, 0, now.Location())
	if now.Before(threshold) {
		return
	}

	plan, err := r.eng.Plans().Load(today)
	if err != nil {
		r.log(engine.LogLevelError, "scheduled_run load_plan error=%v", err)
		return
	}
	if plan != nil {
		return
	}

	r.log(engine.LogLevelInfo, "scheduled_run date=%s", today)
	if _, err := r.generate(today); err != nil {
		r.log(engine.LogLevelError, "scheduled_run error=%v", err)
	}
}

func (r *Runner) today() string {
	return r.clock().Format("2006-01-02")
}

// waitSignals blocks until a shutdown signal is received.
func (r *Runner) waitSignals() {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigCh
	r.log(engine.LogLevelInfo, "received signal=%s, initiating graceful shutdown", sig)

	// second signal forces exit
	go func() {
		<-sigCh
		r.log(engine.LogLevelWarn, "received second signal, forcing exit")
		r.forceExit.Store(true)
		os.Exit(1)
	}()

	r.Shutdown()
}

// Shutdown performs graceful shutdown (idempotent via sync.Once).
func (r *Runner) Shutdown() {
	r.shutdown.Do(func() {
		r.log(engine.LogLevelInfo, "shutdown started")

		r.cancel()
		r.ticker.Stop()
		if r.watcher != nil {
			r.watcher.Close()
		}
		if r.server != nil {
			r.server.Stop()
		}

		timeout := r.config.Runner.ShutdownTimeoutSec
		if timeout <= 0 {
			timeout = 10
		}

		done := make(chan struct{})
		go func() {
			r.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			r.log(engine.LogLevelInfo, "all goroutines drained")
		case <-time.After(time.Duration(timeout) * time.Second):
			r.log(engine.LogLevelWarn, "shutdown timeout after %ds, some operations may be incomplete", timeout)
		}

		r.cleanup()
		r.log(engine.LogLevelInfo, "runner stopped")
	})
}

func (r *Runner) cleanup() {
	os.Remove(filepath.Join(r.dayplanDir, uds.DefaultSocketName))
	r.fileLock.Unlock()
	r.eng.Close()
	if r.logFile != nil {
		r.logFile.Close()
	}
}

func (r *Runner) log(level engine.LogLevel, format string, args ...any) {
	if level < r.logLevel {
		return
	}
	levelStr := "INFO"
	switch level {
	case engine.LogLevelDebug:
		levelStr = "DEBUG"
	case engine.LogLevelWarn:
		levelStr = "WARN"
	case engine.LogLevelError:
		levelStr = "ERROR"
	}
	msg := fmt.Sprintf(format, args...)
	r.logger.Printf("%s %s runner: %s", time.Now().Format(time.RFC3339), levelStr, msg)
}
