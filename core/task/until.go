package task

import (
	"context"
	"time"

	"github.com/furkankose/katmer/core/template"
	"github.com/furkankose/katmer/core/types"
)

// untilControl re-runs the wrapped execute in a do-while until
// Task.Until evaluates truthy against {result: <last ModuleResult>} or
// Retries is exhausted, waiting Delay between attempts. attempts counts
// retries actually performed (not the initial run), so retries:2 means
// up to 3 module executions with a final attempts value of 2.
func untilControl(_ *Context) func(next ExecuteFunc) ExecuteFunc {
	return func(next ExecuteFunc) ExecuteFunc {
		return func(ctx context.Context, tc *Context) (types.ModuleResult, error) {
			retries := tc.Task.Retries
			var res types.ModuleResult
			var err error

			for executions := 1; ; executions++ {
				res, err = next(ctx, tc)
				attempts := executions - 1
				res.Attempts = attempts
				res.Retries = retries

				met, condErr := evalUntilCondition(tc.Task.Until, tc.Variables, res)
				if condErr == nil && met {
					return res, err
				}
				if attempts >= retries {
					res.Failed = true
					return res, err
				}
				if tc.Task.Delay > 0 {
					t := time.NewTimer(tc.Task.Delay)
					select {
					case <-t.C:
					case <-ctx.Done():
						t.Stop()
						return res, ctx.Err()
					}
				}
			}
		}
	}
}

func evalUntilCondition(expr string, variables map[string]any, res types.ModuleResult) (bool, error) {
	scope := make(template.Scope, len(variables)+1)
	for k, v := range variables {
		scope[k] = v
	}
	scope["result"] = res
	val, err := template.EvalExpression(expr, scope)
	if err != nil {
		return false, err
	}
	return truthy(val), nil
}
