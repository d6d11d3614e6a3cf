package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furkankose/katmer/core/module"
	"github.com/furkankose/katmer/core/types"
)

type engineTestModule struct {
	name    string
	execute func(ctx context.Context, mc *module.Context) (types.ModuleResult, error)
}

func (m *engineTestModule) Name() string                     { return m.name }
func (m *engineTestModule) Constraints() *module.Constraints  { return nil }
func (m *engineTestModule) Schema() map[string]any            { return nil }
func (m *engineTestModule) Check(ctx context.Context, mc *module.Context) error      { return nil }
func (m *engineTestModule) Initialize(ctx context.Context, mc *module.Context) error { return nil }
func (m *engineTestModule) Cleanup(ctx context.Context, mc *module.Context) error    { return nil }
func (m *engineTestModule) Execute(ctx context.Context, mc *module.Context) (types.ModuleResult, error) {
	return m.execute(ctx, mc)
}

func init() {
	module.Register("engine_test_ok", func() module.Module {
		return &engineTestModule{name: "engine_test_ok", execute: func(ctx context.Context, mc *module.Context) (types.ModuleResult, error) {
			return types.ModuleResult{Changed: true, Msg: "ok"}, nil
		}}
	})
	module.Register("engine_test_fail", func() module.Module {
		return &engineTestModule{name: "engine_test_fail", execute: func(ctx context.Context, mc *module.Context) (types.ModuleResult, error) {
			return types.ModuleResult{Failed: true, Msg: "boom"}, nil
		}}
	})
}

func localCfg() TargetsConfig {
	return TargetsConfig{
		"hosts": map[string]any{
			"h1": map[string]any{"connection": "local"},
		},
	}
}

func TestRunExecutesTasksAcrossTargets(t *testing.T) {
	files := []TaskFile{
		{Tasks: []types.Task{{Name: "one", Targets: []string{"all"}, Module: "engine_test_ok"}}},
	}
	report, err := Run(context.Background(), nil, localCfg(), files)
	require.NoError(t, err)
	assert.False(t, report.Failed)
	require.Len(t, report.TaskRuns, 1)
	require.Len(t, report.TaskRuns[0].Targets, 1)
	assert.Equal(t, "h1", report.TaskRuns[0].Targets[0].Target)
	assert.True(t, report.TaskRuns[0].Targets[0].Result.Changed)
}

func TestRunStopsAtFirstFailingTask(t *testing.T) {
	files := []TaskFile{
		{Tasks: []types.Task{
			{Name: "boom", Targets: []string{"all"}, Module: "engine_test_fail"},
			{Name: "never", Targets: []string{"all"}, Module: "engine_test_ok"},
		}},
	}
	report, err := Run(context.Background(), nil, localCfg(), files)
	require.Error(t, err)
	assert.True(t, report.Failed)
	assert.Len(t, report.TaskRuns, 1)
}

func TestRunHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	files := []TaskFile{
		{Tasks: []types.Task{{Name: "one", Targets: []string{"all"}, Module: "engine_test_ok"}}},
	}
	_, err := Run(ctx, nil, localCfg(), files)
	assert.Error(t, err)
}
