package task

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furkankose/katmer/core/module"
	"github.com/furkankose/katmer/core/provider"
	"github.com/furkankose/katmer/core/types"
)

func TestWhenFalseSkipsWithoutRunningModule(t *testing.T) {
	calls := 0
	mod := &fakeModule{name: "noop", executeFn: func(ctx context.Context, mc *module.Context) (types.ModuleResult, error) {
		calls++
		return types.ModuleResult{Changed: true}, nil
	}}
	tsk := types.Task{Module: "noop", When: "false"}
	p := &fakeProvider{}
	tc := newTestContext(tsk, p, mod, map[string]any{})

	pipeline := BuildPipeline(tc, moduleCore(mod, tc))
	res, err := pipeline(context.Background(), tc)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.False(t, res.Changed)
	assert.Equal(t, 0, calls)
}

func TestRegisterStoresFinalResult(t *testing.T) {
	mod := &fakeModule{name: "noop", executeFn: func(ctx context.Context, mc *module.Context) (types.ModuleResult, error) {
		return types.ModuleResult{Changed: true, Msg: "done"}, nil
	}}
	tsk := types.Task{Module: "noop", Register: "out"}
	p := &fakeProvider{}
	vars := map[string]any{}
	tc := newTestContext(tsk, p, mod, vars)

	pipeline := BuildPipeline(tc, moduleCore(mod, tc))
	_, err := pipeline(context.Background(), tc)
	require.NoError(t, err)

	stored, ok := vars["out"].(types.ModuleResult)
	require.True(t, ok)
	assert.True(t, stored.Changed)
	assert.Equal(t, "done", stored.Msg)
}

// TestUntilRetriesExhausted mirrors the spec's scenario 5: a module that
// always reports failed:true, condition "result.failed == false",
// retries:2, delay:0. Exactly 3 module executions occur; the final
// result is {failed:true, attempts:2, retries:2}.
func TestUntilRetriesExhausted(t *testing.T) {
	calls := 0
	mod := &fakeModule{name: "flaky", executeFn: func(ctx context.Context, mc *module.Context) (types.ModuleResult, error) {
		calls++
		return types.ModuleResult{Failed: true}, nil
	}}
	tsk := types.Task{
		Module:  "flaky",
		Until:   "result.failed == false",
		Retries: 2,
	}
	p := &fakeProvider{}
	tc := newTestContext(tsk, p, mod, map[string]any{})

	pipeline := BuildPipeline(tc, moduleCore(mod, tc))
	res, err := pipeline(context.Background(), tc)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, res.Failed)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 2, res.Retries)
}

func TestUntilSucceedsBeforeExhaustion(t *testing.T) {
	calls := 0
	mod := &fakeModule{name: "eventually", executeFn: func(ctx context.Context, mc *module.Context) (types.ModuleResult, error) {
		calls++
		return types.ModuleResult{Failed: calls < 2}, nil
	}}
	tsk := types.Task{
		Module:  "eventually",
		Until:   "result.failed == false",
		Retries: 5,
	}
	p := &fakeProvider{}
	tc := newTestContext(tsk, p, mod, map[string]any{})

	pipeline := BuildPipeline(tc, moduleCore(mod, tc))
	res, err := pipeline(context.Background(), tc)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.False(t, res.Failed)
	assert.Equal(t, 1, res.Attempts)
}

func TestLoopIteratesOverItemsAndAggregates(t *testing.T) {
	var seenItems []any
	mod := &fakeModule{name: "looper", executeFn: func(ctx context.Context, mc *module.Context) (types.ModuleResult, error) {
		seenItems = append(seenItems, mc.Variables["item"])
		return types.ModuleResult{Changed: mc.Variables["item"] == "b"}, nil
	}}
	tsk := types.Task{Module: "looper", Loop: []any{"a", "b", "c"}}
	p := &fakeProvider{}
	vars := map[string]any{}
	tc := newTestContext(tsk, p, mod, vars)

	pipeline := BuildPipeline(tc, moduleCore(mod, tc))
	res, err := pipeline(context.Background(), tc)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b", "c"}, seenItems)
	assert.True(t, res.Changed)
	results, ok := res.Extra["results"].([]types.ModuleResult)
	require.True(t, ok)
	assert.Len(t, results, 3)
}

func TestLoopBreakWhenStopsEarly(t *testing.T) {
	calls := 0
	mod := &fakeModule{name: "breaker", executeFn: func(ctx context.Context, mc *module.Context) (types.ModuleResult, error) {
		calls++
		return types.ModuleResult{Msg: mc.Variables["item"].(string)}, nil
	}}
	tsk := types.Task{Module: "breaker", Loop: []any{"a", "b", "c"}, LoopBreakWhen: `result.msg == "b"`}
	p := &fakeProvider{}
	tc := newTestContext(tsk, p, mod, map[string]any{})

	pipeline := BuildPipeline(tc, moduleCore(mod, tc))
	_, err := pipeline(context.Background(), tc)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestBecomeRewritesCommandWithSudoAndMarker(t *testing.T) {
	var capturedCmd string
	p := &fakeProvider{
		exec: func(ctx context.Context, command string, perCall provider.ExecOptions) (provider.ExecResult, error) {
			capturedCmd = command
			return provider.ExecResult{Command: command}, nil
		},
	}
	mod := &fakeModule{name: "priv", executeFn: func(ctx context.Context, mc *module.Context) (types.ModuleResult, error) {
		_, err := mc.Exec(context.Background(), "apt-get update", provider.ExecOptions{})
		return types.ModuleResult{}, err
	}}
	tsk := types.Task{Module: "priv", Become: true}
	tc := newTestContext(tsk, p, mod, map[string]any{})

	pipeline := BuildPipeline(tc, moduleCore(mod, tc))
	_, err := pipeline(context.Background(), tc)
	require.NoError(t, err)
	assert.Contains(t, capturedCmd, "sudo -S -p 'KATMER_SUDO_PROMPT:'")
	assert.Contains(t, capturedCmd, "apt-get update")
	assert.NotNil(t, p.lastOpts.Become)
	assert.Equal(t, "KATMER_SUDO_PROMPT:", p.lastOpts.Become.PromptMarker)
}
