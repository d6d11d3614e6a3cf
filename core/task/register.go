package task

import (
	"context"

	"github.com/furkankose/katmer/core/types"
)

// registerControl writes the task's final ModuleResult into
// variables[name] after execution, success or failure, so later tasks
// can reference it by name.
func registerControl(_ *Context) func(next ExecuteFunc) ExecuteFunc {
	return func(next ExecuteFunc) ExecuteFunc {
		return func(ctx context.Context, tc *Context) (types.ModuleResult, error) {
			res, err := next(ctx, tc)
			tc.Variables[tc.Task.Register] = res
			return res, err
		}
	}
}
