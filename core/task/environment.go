package task

import (
	"context"
	"fmt"

	"github.com/furkankose/katmer/core/template"
	"github.com/furkankose/katmer/core/types"
)

// environmentControl merges ctx.provider.environment with the task's
// configured environment (literal map or an expression evaluating to
// one) ahead of every module call, template-evaluating string values
// and dropping nulls.
func environmentControl(_ *Context) func(next ExecuteFunc) ExecuteFunc {
	return func(next ExecuteFunc) ExecuteFunc {
		return func(ctx context.Context, tc *Context) (types.ModuleResult, error) {
			env, err := resolveEnvironment(tc.Task.Environment, tc.Variables)
			if err != nil {
				return types.ModuleResult{Failed: true, Msg: err.Error()}, err
			}
			tc.execOpts.Env = mergeEnvMaps(tc.Provider.Environment(), env)
			tc.rebuildExec()
			return next(ctx, tc)
		}
	}
}

// resolveEnvironment evaluates raw (a literal map or a string expression
// that must evaluate to one) into a map[string]string, rendering any
// string values as templates and dropping nil entries.
func resolveEnvironment(raw any, scope map[string]any) (map[string]string, error) {
	if raw == nil {
		return nil, nil
	}
	var m map[string]any
	switch v := raw.(type) {
	case string:
		val, err := template.EvalExpression(v, template.Scope(scope))
		if err != nil {
			return nil, fmt.Errorf("environment expression: %w", err)
		}
		mm, ok := val.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("environment expression did not evaluate to a map, got %T", val)
		}
		m = mm
	case map[string]any:
		m = v
	default:
		return nil, fmt.Errorf("unsupported environment value type %T", raw)
	}

	out := make(map[string]string, len(m))
	for k, val := range m {
		if val == nil {
			continue
		}
		if s, ok := val.(string); ok {
			rendered, err := template.RenderTemplate(s, template.Scope(scope))
			if err != nil {
				return nil, fmt.Errorf("environment.%s: %w", k, err)
			}
			out[k] = rendered
			continue
		}
		out[k] = fmt.Sprint(val)
	}
	return out, nil
}

func mergeEnvMaps(layers ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}
