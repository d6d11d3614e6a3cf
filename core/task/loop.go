package task

import (
	"context"
	"fmt"
	"time"

	"github.com/furkankose/katmer/core/template"
	"github.com/furkankose/katmer/core/types"
)

func timeNow() time.Time { return time.Now().UTC() }

func errLoopNotAList(v any) error {
	return fmt.Errorf("loop did not evaluate to a list, got %T", v)
}

// loopControl re-runs the full wrapped pipeline once per item of
// Task.Loop (a literal list or an expression evaluating to one),
// exposing loop_var (default "item") and, when configured, index_var
// plus Ansible-style "ansible_loop" bookkeeping in variables. The aggregate
// result is changed/failed if any iteration was, with per-iteration
// results under Extra["results"]; a LoopBreakWhen match stops early.
func loopControl(_ *Context) func(next ExecuteFunc) ExecuteFunc {
	return func(next ExecuteFunc) ExecuteFunc {
		return func(ctx context.Context, tc *Context) (types.ModuleResult, error) {
			items, err := resolveLoopItems(tc.Task.Loop, tc.Variables)
			if err != nil {
				return types.ModuleResult{Failed: true, Msg: err.Error()}, err
			}

			loopVar := tc.Task.LoopVar
			if loopVar == "" {
				loopVar = "item"
			}
			indexVar := tc.Task.IndexVar

			results := make([]types.ModuleResult, 0, len(items))
			aggregate := types.ModuleResult{Start: timeNow()}
			var lastErr error

			for i, item := range items {
				tc.Variables[loopVar] = item
				if indexVar != "" {
					tc.Variables[indexVar] = i
				}
				tc.Variables["ansible_loop"] = map[string]any{
					"index":      i + 1,
					"index0":     i,
					"first":      i == 0,
					"last":       i == len(items)-1,
					"length":     len(items),
					"allitems":   items,
					"nextitem":   peekNext(items, i),
					"previtem":   peekPrev(items, i),
				}

				res, err := next(ctx, tc)
				results = append(results, res)
				if err != nil {
					lastErr = err
				}
				if res.Changed {
					aggregate.Changed = true
				}
				if res.Failed {
					aggregate.Failed = true
				}

				if tc.Task.LoopBreakWhen != "" {
					brk, condErr := evalUntilCondition(tc.Task.LoopBreakWhen, tc.Variables, res)
					if condErr == nil && brk {
						break
					}
				}
				if i < len(items)-1 && tc.Task.LoopPause > 0 {
					t := time.NewTimer(tc.Task.LoopPause)
					select {
					case <-t.C:
					case <-ctx.Done():
						t.Stop()
						aggregate.End = timeNow()
						aggregate.Extra = map[string]any{"results": results}
						return aggregate, ctx.Err()
					}
				}
			}

			aggregate.End = timeNow()
			aggregate.Delta = types.DeltaString(aggregate.End.Sub(aggregate.Start))
			aggregate.Extra = map[string]any{"results": results}
			return aggregate, lastErr
		}
	}
}

func peekNext(items []any, i int) any {
	if i+1 < len(items) {
		return items[i+1]
	}
	return nil
}

func peekPrev(items []any, i int) any {
	if i > 0 {
		return items[i-1]
	}
	return nil
}

// resolveLoopItems accepts a literal list or an expression string
// evaluating to one.
func resolveLoopItems(raw any, scope map[string]any) ([]any, error) {
	switch v := raw.(type) {
	case []any:
		return v, nil
	case string:
		val, err := template.EvalExpression(v, template.Scope(scope))
		if err != nil {
			return nil, err
		}
		items, ok := val.([]any)
		if !ok {
			return nil, errLoopNotAList(val)
		}
		return items, nil
	default:
		return nil, errLoopNotAList(raw)
	}
}
