package task

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/furkankose/katmer/core/errs"
	"github.com/furkankose/katmer/core/inventory"
	"github.com/furkankose/katmer/core/module"
	"github.com/furkankose/katmer/core/types"
)

// TargetResult is one target's outcome within a task run.
type TargetResult struct {
	Target string
	Result types.ModuleResult
	Err    error
}

// Run resolves task.Targets through resolver, then drives the control
// pipeline and module lifecycle for each resolved target in sequence,
// per the executor contract in spec §4.6. Execution stops at the first
// target whose result is Failed without AllowFailure, returning a
// TaskExecutionFailedError; every target result gathered up to and
// including the failure is still returned.
func Run(ctx context.Context, runID uuid.UUID, logger hclog.Logger, resolver *inventory.Resolver, t types.Task, baseVariables map[string]any) ([]TargetResult, error) {
	targets, err := resolveTaskTargets(resolver, t.Targets)
	if err != nil {
		return nil, err
	}

	results := make([]TargetResult, 0, len(targets))
	for _, target := range targets {
		res, runErr := runOnTarget(ctx, runID, logger, resolver, t, target, baseVariables)
		results = append(results, TargetResult{Target: target.Name, Result: res, Err: runErr})

		if res.Failed && !t.AllowFailure {
			return results, &errs.TaskExecutionFailedError{Task: t.Name, Module: t.Module, Msg: res.Msg}
		}
		if runErr != nil && !t.AllowFailure {
			return results, runErr
		}
	}
	return results, nil
}

// resolveTaskTargets expands every pattern in patterns and returns the
// deduplicated, insertion-ordered union of resolved targets.
func resolveTaskTargets(resolver *inventory.Resolver, patterns []string) ([]types.Target, error) {
	seen := make(map[string]bool)
	var out []types.Target
	for _, pattern := range patterns {
		resolved, err := resolver.ResolveTargets(pattern)
		if err != nil {
			return nil, err
		}
		for _, t := range resolved {
			if seen[t.Name] {
				continue
			}
			seen[t.Name] = true
			out = append(out, t)
		}
	}
	return out, nil
}

func runOnTarget(ctx context.Context, runID uuid.UUID, logger hclog.Logger, resolver *inventory.Resolver, t types.Task, target types.Target, baseVariables map[string]any) (types.ModuleResult, error) {
	p, err := resolver.ResolveProvider(target)
	if err != nil {
		return types.ModuleResult{Failed: true, Msg: err.Error()}, err
	}
	if err := p.EnsureReady(ctx); err != nil {
		return types.ModuleResult{Failed: true, Msg: err.Error()}, err
	}

	mod, ok := module.Lookup(t.Module)
	if !ok {
		err := &errs.ConfigError{Detail: "unknown module: " + t.Module}
		return types.ModuleResult{Failed: true, Msg: err.Error()}, err
	}

	variables := mergeVariableLayers(p.Variables(), baseVariables, t.Variables)

	tc := NewContext(runID, logger.Named(t.Module), t, target, p, variables)
	tc.Module = mod
	tc.ModuleCtx = &module.Context{
		Task:      t,
		Target:    target,
		Provider:  p,
		Variables: variables,
		Params:    t.Params,
		Exec:      tc.Exec,
	}

	core := moduleCore(mod, tc)
	pipeline := BuildPipeline(tc, core)
	return pipeline(ctx, tc)
}

func mergeVariableLayers(layers ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}

// moduleCore is the innermost ExecuteFunc: constraint solve, then the
// check/initialize/execute/cleanup lifecycle with timing. Controls wrap
// around this; it never sees loop/until/when/register/environment
// directly, only their effects on tc.
func moduleCore(mod module.Module, tc *Context) ExecuteFunc {
	return func(ctx context.Context, tc *Context) (types.ModuleResult, error) {
		start := time.Now().UTC()

		fail := func(err error) (types.ModuleResult, error) {
			end := time.Now().UTC()
			return types.ModuleResult{
				Failed: true,
				Msg:    err.Error(),
				Start:  start,
				End:    end,
				Delta:  types.DeltaString(end.Sub(start)),
			}, err
		}

		if err := module.Solve(ctx, mod.Name(), mod.Constraints(), tc.Target, tc.Provider); err != nil {
			return fail(err)
		}
		if err := module.ValidateParams(mod.Schema(), tc.ModuleCtx.Params); err != nil {
			return fail(err)
		}
		if err := mod.Check(ctx, tc.ModuleCtx); err != nil {
			return fail(err)
		}
		if err := mod.Initialize(ctx, tc.ModuleCtx); err != nil {
			return fail(err)
		}
		res, err := mod.Execute(ctx, tc.ModuleCtx)
		if cleanupErr := mod.Cleanup(ctx, tc.ModuleCtx); cleanupErr != nil && err == nil {
			err = cleanupErr
		}
		if err != nil && !res.Failed {
			res.Failed = true
			res.Msg = err.Error()
		}

		end := time.Now().UTC()
		res.Start = start
		res.End = end
		res.Delta = types.DeltaString(end.Sub(start))
		return res, err
	}
}
