// api/schemas/planning.go
package schemas

import "context"

// Subgoal is a named, independently verifiable unit of work within a larger
// task. Produced by outline planning, consumed by per-subgoal step planning
// and verification. ID and Title are always populated (synthesized by the
// normalizer when the model omits them); identity is opaque to the
// orchestrator and never re-derived.
type Subgoal struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Goal     string `json:"goal,omitempty"`
	DoneWhen string `json:"done_when,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// Outline is the ordered set of subgoals produced for a top-level goal.
// Subgoals is always non-nil, possibly empty.
type Outline struct {
	Subgoals []Subgoal `json:"subgoals"`
}

// VerdictStatus is the tri-state judgment produced after executing a
// subgoal's steps.
type VerdictStatus string

const (
	VerdictOK      VerdictStatus = "ok"
	VerdictRetry   VerdictStatus = "retry"
	VerdictBlocked VerdictStatus = "blocked"
)

// VerifyVerdict reports whether a subgoal was achieved. Status outside the
// closed set is coerced to retry by the normalizer; FixSteps only ever
// contains objects carrying a type field.
type VerifyVerdict struct {
	Status   VerdictStatus `json:"status"`
	Reason   string        `json:"reason"`
	FixSteps []Step        `json:"fix_steps"`
}

// EnvContext is the immutable environment snapshot threaded into every
// planning prompt. The planner and orchestrator only read it; accumulating
// History across calls is the caller's responsibility.
type EnvContext struct {
	Task    string         // top-level goal, length-capped at prompt build time
	DOM     string         // visible DOM snapshot, independently length-capped
	History []Step         // previously executed steps, in order
	Vars    map[string]any // known variable values referenced via ${name}
}

// StepResult is the executor's per-step outcome.
type StepResult struct {
	Step  Step   `json:"step"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// ExecutionReport is what an executor returns for one batch of steps. The
// orchestrator tolerates partial completion: Results may be shorter than the
// submitted plan when the executor aborted mid-batch.
type ExecutionReport struct {
	Results []StepResult   `json:"results"`
	DOM     string         `json:"dom"`  // refreshed DOM snapshot after the batch
	Vars    map[string]any `json:"vars"` // updated variable values (extract steps etc.)
}

// Executor performs validated steps against a live environment and reports
// outcomes. It is a consumed interface; the orchestrator treats it as a
// black box.
type Executor interface {
	Execute(ctx context.Context, steps []Step) (ExecutionReport, error)
}

// StatusSink receives short human-readable progress lines. Best effort: the
// orchestrator swallows panics from the sink and never lets it abort a run.
type StatusSink func(msg string)
