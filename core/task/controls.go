package task

import (
	"context"
	"sort"

	"github.com/furkankose/katmer/core/types"
)

// ExecuteFunc is the signature every control wraps: run the rest of the
// pipeline (eventually the module itself) and produce a result.
type ExecuteFunc func(ctx context.Context, tc *Context) (types.ModuleResult, error)

// control is one cross-cutting wrapper. Order is ascending: the
// lowest-order active control becomes the outermost wrapper, so it runs
// its pre-logic first and its post-logic last.
type control struct {
	order   int
	applies func(t types.Task) bool
	wrap    func(next ExecuteFunc) ExecuteFunc
}

// Fixed order per the task-controls contract: loop wraps everything
// (each iteration is a full pipeline re-run), environment next (so every
// call within an iteration, including retries, sees the merged env),
// then when (skip before any module work), then register (capture the
// final result), then until (retry the module call), and finally become
// innermost, directly adjacent to the module call it rewrites ctx.exec
// for.
const (
	orderLoop        = 5
	orderEnvironment = 10
	orderWhen        = 20
	orderRegister    = 30
	orderUntil       = 50
	orderBecome      = 90
)

func standardControls(tc *Context) []control {
	return []control{
		{order: orderLoop, applies: func(t types.Task) bool { return t.Loop != nil }, wrap: loopControl(tc)},
		{order: orderEnvironment, applies: func(t types.Task) bool { return t.Environment != nil }, wrap: environmentControl(tc)},
		{order: orderWhen, applies: func(t types.Task) bool { return t.When != "" }, wrap: whenControl(tc)},
		{order: orderRegister, applies: func(t types.Task) bool { return t.Register != "" }, wrap: registerControl(tc)},
		{order: orderUntil, applies: func(t types.Task) bool { return t.Until != "" }, wrap: untilControl(tc)},
		{order: orderBecome, applies: func(t types.Task) bool { return t.Become }, wrap: becomeControl(tc)},
	}
}

// BuildPipeline composes the active controls for tc.Task around core
// (the module check/initialize/execute/cleanup sequence) in fixed
// order, and returns the resulting entry point.
func BuildPipeline(tc *Context, core ExecuteFunc) ExecuteFunc {
	all := standardControls(tc)
	active := make([]control, 0, len(all))
	for _, c := range all {
		if c.applies(tc.Task) {
			active = append(active, c)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].order < active[j].order })

	wrapped := core
	for i := len(active) - 1; i >= 0; i-- {
		wrapped = active[i].wrap(wrapped)
	}
	return wrapped
}
