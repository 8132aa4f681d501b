// internal/orchestrator/mocks_test.go
package orchestrator

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/EasyByteRu/adpilot/api/schemas"
)

// mockPlanner is a testify mock of the TaskPlanner interface.
type mockPlanner struct {
	mock.Mock
}

func (m *mockPlanner) PlanFull(ctx context.Context, env schemas.EnvContext) ([]schemas.Step, error) {
	args := m.Called(ctx, env)
	return stepsArg(args.Get(0)), args.Error(1)
}

func (m *mockPlanner) RepairStep(ctx context.Context, env schemas.EnvContext, failing schemas.Step, execErr string) (schemas.Step, error) {
	args := m.Called(ctx, env, failing, execErr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(schemas.Step), args.Error(1)
}

func (m *mockPlanner) PlanOutline(ctx context.Context, env schemas.EnvContext) (schemas.Outline, error) {
	args := m.Called(ctx, env)
	return args.Get(0).(schemas.Outline), args.Error(1)
}

func (m *mockPlanner) PlanSubgoalSteps(ctx context.Context, env schemas.EnvContext, sg schemas.Subgoal) ([]schemas.Step, error) {
	args := m.Called(ctx, env, sg)
	return stepsArg(args.Get(0)), args.Error(1)
}

func (m *mockPlanner) VerifyOrAdjust(ctx context.Context, env schemas.EnvContext, sg schemas.Subgoal, lastExecuted []schemas.Step) (schemas.VerifyVerdict, error) {
	args := m.Called(ctx, env, sg, lastExecuted)
	return args.Get(0).(schemas.VerifyVerdict), args.Error(1)
}

func stepsArg(v any) []schemas.Step {
	if v == nil {
		return nil
	}
	return v.([]schemas.Step)
}

// fakeExecutor records every submitted batch. By default every step
// succeeds; handle overrides the report per batch.
type fakeExecutor struct {
	batches [][]schemas.Step
	handle  func(steps []schemas.Step) schemas.ExecutionReport
}

func (f *fakeExecutor) Execute(_ context.Context, steps []schemas.Step) (schemas.ExecutionReport, error) {
	f.batches = append(f.batches, steps)
	if f.handle != nil {
		return f.handle(steps), nil
	}
	return allOK(steps), nil
}

func allOK(steps []schemas.Step) schemas.ExecutionReport {
	results := make([]schemas.StepResult, len(steps))
	for i, s := range steps {
		results[i] = schemas.StepResult{Step: s, OK: true}
	}
	return schemas.ExecutionReport{Results: results}
}

func allFail(steps []schemas.Step, msg string) schemas.ExecutionReport {
	results := make([]schemas.StepResult, len(steps))
	for i, s := range steps {
		results[i] = schemas.StepResult{Step: s, OK: false, Error: msg}
	}
	return schemas.ExecutionReport{Results: results}
}
