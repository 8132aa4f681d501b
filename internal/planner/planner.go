// internal/planner/planner.go
package planner

import (
	"context"

	"go.uber.org/zap"

	"github.com/EasyByteRu/adpilot/api/schemas"
	"github.com/EasyByteRu/adpilot/internal/config"
)

// JSONGenerator is the slice of the model gateway the planner consumes.
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, prompt string) (any, error)
}

// Planner turns environment snapshots into validated plans, outlines and
// verdicts. It owns prompt construction and response normalization; every
// method is total with respect to model output and only propagates
// transport-level errors.
type Planner struct {
	gateway  JSONGenerator
	prompts  *PromptBuilder
	maxSteps int
	logger   *zap.Logger
}

// New builds a planner over a gateway.
func New(gateway JSONGenerator, cfg config.PlannerConfig, logger *zap.Logger) *Planner {
	return &Planner{
		gateway:  gateway,
		prompts:  NewPromptBuilder(cfg),
		maxSteps: ClampMaxSteps(cfg.MaxStepsPerSubgoal),
		logger:   logger.Named("planner"),
	}
}

// PlanFull produces a complete flat plan for the whole task. An empty plan
// means the model produced nothing usable; the caller decides what that
// implies.
func (p *Planner) PlanFull(ctx context.Context, env schemas.EnvContext) ([]schemas.Step, error) {
	raw, err := p.gateway.GenerateJSON(ctx, p.prompts.PlanPrompt(env))
	if err != nil {
		return nil, err
	}
	plan := AsStepList(raw)
	p.logger.Debug("Flat plan produced", zap.Int("steps", len(plan)))
	return plan, nil
}

// RepairStep asks for a single replacement for a failing step. Returns nil
// when the model produced nothing usable.
func (p *Planner) RepairStep(ctx context.Context, env schemas.EnvContext, failing schemas.Step, execErr string) (schemas.Step, error) {
	raw, err := p.gateway.GenerateJSON(ctx, p.prompts.RepairStepPrompt(env, failing, execErr))
	if err != nil {
		return nil, err
	}
	step := AsStepOrNone(raw)
	if step == nil {
		p.logger.Warn("Repair produced no usable step", zap.String("failing_type", failing.Type()))
	}
	return step, nil
}

// PlanOutline produces the subgoal outline for the task. Subgoals is always
// non-nil; an empty outline signals the task did not decompose.
func (p *Planner) PlanOutline(ctx context.Context, env schemas.EnvContext) (schemas.Outline, error) {
	raw, err := p.gateway.GenerateJSON(ctx, p.prompts.OutlinePrompt(env))
	if err != nil {
		return schemas.Outline{Subgoals: []schemas.Subgoal{}}, err
	}
	outline := NormalizeOutline(raw)
	p.logger.Debug("Outline produced", zap.Int("subgoals", len(outline.Subgoals)))
	return outline, nil
}

// PlanSubgoalSteps produces the next bounded batch of steps for one subgoal.
func (p *Planner) PlanSubgoalSteps(ctx context.Context, env schemas.EnvContext, sg schemas.Subgoal) ([]schemas.Step, error) {
	raw, err := p.gateway.GenerateJSON(ctx, p.prompts.SubgoalStepsPrompt(env, sg, p.maxSteps))
	if err != nil {
		return nil, err
	}
	steps := AsStepList(raw)
	if len(steps) > p.maxSteps {
		steps = steps[:p.maxSteps]
	}
	p.logger.Debug("Subgoal steps produced",
		zap.String("subgoal", sg.ID),
		zap.Int("steps", len(steps)),
	)
	return steps, nil
}

// VerifyOrAdjust judges whether a subgoal was achieved. The verdict is always
// well-formed; unreadable model output comes back as retry.
func (p *Planner) VerifyOrAdjust(ctx context.Context, env schemas.EnvContext, sg schemas.Subgoal, lastExecuted []schemas.Step) (schemas.VerifyVerdict, error) {
	raw, err := p.gateway.GenerateJSON(ctx, p.prompts.VerifyOrAdjustPrompt(env, sg, lastExecuted))
	if err != nil {
		return schemas.VerifyVerdict{}, err
	}
	verdict := NormalizeVerify(raw)
	p.logger.Debug("Verdict produced",
		zap.String("subgoal", sg.ID),
		zap.String("status", string(verdict.Status)),
		zap.Int("fix_steps", len(verdict.FixSteps)),
	)
	return verdict, nil
}
