// internal/orchestrator/orchestrator.go

// Package orchestrator drives the plan/execute/verify loop: it decomposes a
// task into subgoals, requests bounded step batches for one subgoal at a
// time, hands them to an executor and uses verification verdicts to decide
// whether to advance, retry or stop.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/EasyByteRu/adpilot/api/schemas"
	"github.com/EasyByteRu/adpilot/internal/config"
	"github.com/EasyByteRu/adpilot/internal/vars"
)

// State is the orchestrator's current phase, exposed for status reporting.
type State string

const (
	StateIdle              State = "idle"
	StateOutlining         State = "outlining"
	StateSubgoalPlanning   State = "subgoal_planning"
	StateAwaitingExecution State = "awaiting_execution"
	StateVerifying         State = "verifying"
	StateRetrying          State = "retrying"
	StateDone              State = "done"
	StateBlocked           State = "blocked"
)

// TaskPlanner is the slice of the planner the orchestrator consumes.
type TaskPlanner interface {
	PlanFull(ctx context.Context, env schemas.EnvContext) ([]schemas.Step, error)
	RepairStep(ctx context.Context, env schemas.EnvContext, failing schemas.Step, execErr string) (schemas.Step, error)
	PlanOutline(ctx context.Context, env schemas.EnvContext) (schemas.Outline, error)
	PlanSubgoalSteps(ctx context.Context, env schemas.EnvContext, sg schemas.Subgoal) ([]schemas.Step, error)
	VerifyOrAdjust(ctx context.Context, env schemas.EnvContext, sg schemas.Subgoal, lastExecuted []schemas.Step) (schemas.VerifyVerdict, error)
}

// RunStats counts what happened during one run.
type RunStats struct {
	StepsExecuted     int `json:"steps_executed"`
	StepsFailed       int `json:"steps_failed"`
	StepsSkipped      int `json:"steps_skipped"`
	RepairsAttempted  int `json:"repairs_attempted"`
	VerifyRetries     int `json:"verify_retries"`
	SubgoalsCompleted int `json:"subgoals_completed"`
}

// RunResult is the terminal outcome of one task run.
type RunResult struct {
	RunID             string            `json:"run_id"`
	State             State             `json:"state"`
	CompletedSubgoals []schemas.Subgoal `json:"completed_subgoals"`
	BlockedSubgoal    *schemas.Subgoal  `json:"blocked_subgoal,omitempty"`
	BlockedReason     string            `json:"blocked_reason,omitempty"`
	History           []schemas.Step    `json:"history"`
	Stats             RunStats          `json:"stats"`
}

// Orchestrator runs one task at a time. Not safe for concurrent runs; create
// one per task.
type Orchestrator struct {
	planner  TaskPlanner
	executor schemas.Executor
	vars     *vars.Store
	cfg      config.OrchestratorConfig
	logger   *zap.Logger
	sink     schemas.StatusSink

	runID   string
	state   State
	task    string
	dom     string
	history []schemas.Step
	stats   RunStats
}

// New creates an orchestrator. sink may be nil.
func New(planner TaskPlanner, executor schemas.Executor, store *vars.Store, cfg config.OrchestratorConfig, logger *zap.Logger, sink schemas.StatusSink) *Orchestrator {
	if store == nil {
		store = vars.NewStore(nil)
	}
	runID := uuid.NewString()
	return &Orchestrator{
		planner:  planner,
		executor: executor,
		vars:     store,
		cfg:      cfg,
		logger:   logger.Named("orchestrator").With(zap.String("run_id", runID)),
		sink:     sink,
		runID:    runID,
		state:    StateIdle,
	}
}

// State returns the current phase.
func (o *Orchestrator) State() State {
	return o.state
}

// RunIncremental executes the task in outline mode: decompose into subgoals,
// then plan, execute and verify each one before moving on. An empty outline
// falls back to flat mode when configured, otherwise the run is blocked.
// Returned errors are transport-level only; planning failures surface as a
// blocked result.
func (o *Orchestrator) RunIncremental(ctx context.Context, task string, initialDOM string) (RunResult, error) {
	o.begin(task, initialDOM)

	o.setState(StateOutlining, "Breaking the task into subgoals")
	outline, err := o.planner.PlanOutline(ctx, o.env())
	if err != nil {
		return o.result(), fmt.Errorf("outline planning: %w", err)
	}

	if len(outline.Subgoals) == 0 {
		if o.cfg.FallbackToFlat {
			o.logger.Info("Empty outline, falling back to flat planning")
			o.emit("Task did not decompose; planning it in one pass")
			return o.runFlatLocked(ctx)
		}
		return o.block(nil, "task did not decompose into subgoals"), nil
	}

	completed := make([]schemas.Subgoal, 0, len(outline.Subgoals))
	for _, sg := range outline.Subgoals {
		ok, reason, err := o.runSubgoal(ctx, sg)
		if err != nil {
			res := o.result()
			res.CompletedSubgoals = completed
			return res, err
		}
		if !ok {
			res := o.block(&sg, reason)
			res.CompletedSubgoals = completed
			return res, nil
		}
		completed = append(completed, sg)
		o.stats.SubgoalsCompleted++
		o.emit(fmt.Sprintf("Subgoal %s complete: %s", sg.ID, sg.Title))
	}

	o.setState(StateDone, "Task complete")
	res := o.result()
	res.CompletedSubgoals = completed
	return res, nil
}

// RunFlat executes the task in legacy one-shot mode: a single full plan, with
// isolated per-step repair on failure. Irreparable steps are skipped and
// counted rather than aborting the run.
func (o *Orchestrator) RunFlat(ctx context.Context, task string, initialDOM string) (RunResult, error) {
	o.begin(task, initialDOM)
	return o.runFlatLocked(ctx)
}

// runSubgoal plans, executes and verifies one subgoal. Returns ok=false with
// a reason when the subgoal is blocked.
func (o *Orchestrator) runSubgoal(ctx context.Context, sg schemas.Subgoal) (bool, string, error) {
	o.setState(StateSubgoalPlanning, fmt.Sprintf("Planning subgoal %s: %s", sg.ID, sg.Title))
	steps, err := o.planner.PlanSubgoalSteps(ctx, o.env(), sg)
	if err != nil {
		return false, "", fmt.Errorf("planning subgoal %s: %w", sg.ID, err)
	}

	lastExecuted := steps
	if len(steps) > 0 {
		o.setState(StateAwaitingExecution, fmt.Sprintf("Executing %d steps for %s", len(steps), sg.ID))
		o.execute(ctx, steps)
	}

	// Verification loop. Each retry verdict consumes one unit of the
	// budget; once spent, the run blocks on the last reason without
	// another verifier call.
	for attempt := 1; ; attempt++ {
		o.setState(StateVerifying, fmt.Sprintf("Verifying subgoal %s (attempt %d/%d)", sg.ID, attempt, o.cfg.VerifyBudget))
		verdict, err := o.planner.VerifyOrAdjust(ctx, o.env(), sg, lastExecuted)
		if err != nil {
			return false, "", fmt.Errorf("verifying subgoal %s: %w", sg.ID, err)
		}

		switch verdict.Status {
		case schemas.VerdictOK:
			return true, "", nil
		case schemas.VerdictBlocked:
			return false, verdict.Reason, nil
		}

		o.stats.VerifyRetries++
		if attempt >= o.cfg.VerifyBudget {
			o.logger.Warn("Verify budget exhausted",
				zap.String("subgoal", sg.ID),
				zap.Int("budget", o.cfg.VerifyBudget),
				zap.String("reason", verdict.Reason),
			)
			return false, verdict.Reason, nil
		}

		fixes := verdict.FixSteps
		if len(fixes) > o.cfg.MaxFixSteps {
			fixes = fixes[:o.cfg.MaxFixSteps]
		}
		o.setState(StateRetrying, fmt.Sprintf("Retrying subgoal %s (%d/%d): %s", sg.ID, attempt, o.cfg.VerifyBudget, verdict.Reason))
		if len(fixes) > 0 {
			o.execute(ctx, fixes)
			lastExecuted = fixes
		}
	}
}

// runFlatLocked assumes begin() has been called.
func (o *Orchestrator) runFlatLocked(ctx context.Context) (RunResult, error) {
	o.setState(StateSubgoalPlanning, "Planning the full task")
	plan, err := o.planner.PlanFull(ctx, o.env())
	if err != nil {
		return o.result(), fmt.Errorf("flat planning: %w", err)
	}
	if len(plan) == 0 {
		return o.block(nil, "planner produced no steps"), nil
	}

	o.setState(StateAwaitingExecution, fmt.Sprintf("Executing %d steps", len(plan)))
	for _, step := range plan {
		if err := ctx.Err(); err != nil {
			return o.result(), err
		}
		if !o.executeWithRepair(ctx, step) {
			o.stats.StepsSkipped++
			o.emit(fmt.Sprintf("Skipping irreparable step %q", step.Type()))
		}
	}

	o.setState(StateDone, "Task complete")
	return o.result(), nil
}

// executeWithRepair runs one step, asking for a replacement step on failure,
// bounded by MaxRepairsPerStep. Returns false when the step and all repair
// attempts failed.
func (o *Orchestrator) executeWithRepair(ctx context.Context, step schemas.Step) bool {
	failMsg, ok := o.executeOne(ctx, step)
	if ok {
		return true
	}

	current := step
	for repair := 0; repair < o.cfg.MaxRepairsPerStep; repair++ {
		o.stats.RepairsAttempted++
		replacement, err := o.planner.RepairStep(ctx, o.env(), current, failMsg)
		if err != nil || replacement == nil {
			return false
		}
		failMsg, ok = o.executeOne(ctx, replacement)
		if ok {
			return true
		}
		current = replacement
	}
	return false
}

// executeOne submits a single step and reports its failure message, if any.
func (o *Orchestrator) executeOne(ctx context.Context, step schemas.Step) (string, bool) {
	report := o.execute(ctx, []schemas.Step{step})
	for _, r := range report.Results {
		if !r.OK {
			return r.Error, false
		}
	}
	return "", len(report.Results) > 0
}

// execute submits a batch to the executor and folds its report back into the
// run: history, refreshed DOM and captured variables. Partial completion is
// tolerated; an executor error is recorded, not propagated, because the
// verifier judges the page state either way.
func (o *Orchestrator) execute(ctx context.Context, steps []schemas.Step) schemas.ExecutionReport {
	rendered := make([]schemas.Step, len(steps))
	for i, s := range steps {
		rendered[i], _ = o.vars.Render(map[string]any(s)).(map[string]any)
	}

	report, err := o.executor.Execute(ctx, rendered)
	if err != nil {
		o.logger.Warn("Executor returned an error, keeping partial results",
			zap.Int("submitted", len(steps)),
			zap.Int("completed", len(report.Results)),
			zap.Error(err),
		)
	}

	for _, r := range report.Results {
		o.stats.StepsExecuted++
		if !r.OK {
			o.stats.StepsFailed++
		}
		o.history = append(o.history, r.Step)
	}
	if report.DOM != "" {
		o.dom = report.DOM
	}
	o.vars.Merge(report.Vars)
	return report
}

func (o *Orchestrator) begin(task, initialDOM string) {
	o.task = task
	o.dom = initialDOM
	o.history = nil
	o.stats = RunStats{}
	o.state = StateIdle
	o.logger.Info("Run starting", zap.Int("task_len", len(task)))
}

func (o *Orchestrator) env() schemas.EnvContext {
	return schemas.EnvContext{
		Task:    o.task,
		DOM:     o.dom,
		History: o.history,
		Vars:    o.vars.Snapshot(),
	}
}

func (o *Orchestrator) setState(s State, msg string) {
	o.state = s
	o.logger.Debug("State change", zap.String("state", string(s)))
	o.emit(msg)
}

func (o *Orchestrator) block(sg *schemas.Subgoal, reason string) RunResult {
	o.setState(StateBlocked, fmt.Sprintf("Blocked: %s", reason))
	res := o.result()
	res.BlockedSubgoal = sg
	res.BlockedReason = reason
	return res
}

func (o *Orchestrator) result() RunResult {
	return RunResult{
		RunID:             o.runID,
		State:             o.state,
		CompletedSubgoals: []schemas.Subgoal{},
		History:           o.history,
		Stats:             o.stats,
	}
}

// emit sends a status line to the sink. A panicking sink is disarmed; status
// reporting must never abort a run.
func (o *Orchestrator) emit(msg string) {
	if o.sink == nil || msg == "" {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("Status sink panicked, disabling it", zap.Any("panic", r))
			o.sink = nil
		}
	}()
	o.sink(msg)
}
