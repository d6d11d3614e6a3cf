// Package setfact implements the "set_fact" module: deep-merges
// literal or templated values into the task's variable scope.
package setfact

import (
	"context"
	"fmt"

	"github.com/furkankose/katmer/core/module"
	"github.com/furkankose/katmer/core/template"
	"github.com/furkankose/katmer/core/types"
)

func init() {
	module.Register("setfact", func() module.Module { return &Module{} })
	module.Register("set_fact", func() module.Module { return &Module{} })
}

// Module renders every param value as a template against the current
// scope (string leaves only) and deep-merges the result into
// ctx.Variables in place.
type Module struct{}

func (m *Module) Name() string { return "set_fact" }

func (m *Module) Constraints() *module.Constraints { return nil }

func (m *Module) Schema() map[string]any { return nil }

func (m *Module) Check(ctx context.Context, mc *module.Context) error      { return nil }
func (m *Module) Initialize(ctx context.Context, mc *module.Context) error { return nil }
func (m *Module) Cleanup(ctx context.Context, mc *module.Context) error    { return nil }

func (m *Module) Execute(ctx context.Context, mc *module.Context) (types.ModuleResult, error) {
	scope := template.Scope(mc.Variables)

	rendered := make(map[string]any, len(mc.Params))
	for k, v := range mc.Params {
		rv, err := template.EvalObjectValues(v, scope)
		if err != nil {
			return types.ModuleResult{Failed: true, Msg: fmt.Sprintf("render %s: %v", k, err)}, nil
		}
		rendered[k] = rv
	}

	if mc.Variables != nil {
		deepMerge(mc.Variables, rendered)
	}

	return types.ModuleResult{Changed: len(rendered) > 0, Msg: fmt.Sprintf("set %d fact(s)", len(rendered))}, nil
}

// deepMerge merges src into dst in place: nested maps are merged
// key-by-key; any other value (including a slice) replaces the
// destination entry wholesale.
func deepMerge(dst, src map[string]any) {
	for k, v := range src {
		if srcMap, ok := v.(map[string]any); ok {
			if dstMap, ok := dst[k].(map[string]any); ok {
				deepMerge(dstMap, srcMap)
				continue
			}
		}
		dst[k] = v
	}
}
