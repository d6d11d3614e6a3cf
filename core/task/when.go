package task

import (
	"context"
	"reflect"

	"github.com/furkankose/katmer/core/template"
	"github.com/furkankose/katmer/core/types"
)

// whenControl evaluates Task.When against the current variables before
// the module runs; a falsy result short-circuits with a skipped,
// unchanged result.
func whenControl(_ *Context) func(next ExecuteFunc) ExecuteFunc {
	return func(next ExecuteFunc) ExecuteFunc {
		return func(ctx context.Context, tc *Context) (types.ModuleResult, error) {
			val, err := template.EvalExpression(tc.Task.When, template.Scope(tc.Variables))
			if err != nil {
				return types.ModuleResult{Failed: true, Msg: err.Error()}, err
			}
			if !truthy(val) {
				return types.ModuleResult{Changed: false, Skipped: true}, nil
			}
			return next(ctx, tc)
		}
	}
}

// truthy mirrors the evaluator's own falsy rules (nil, false, "", 0, and
// empty collections are falsy) for the handful of places outside the
// expression evaluator that need the same verdict.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	case int:
		return x != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	}
	return true
}
