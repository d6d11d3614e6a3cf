// Package debug implements the "debug" module: prints a literal message
// or a rendered variable expression, for inspecting task-scope state.
package debug

import (
	"context"
	"fmt"

	"github.com/furkankose/katmer/core/module"
	"github.com/furkankose/katmer/core/template"
	"github.com/furkankose/katmer/core/types"
)

func init() {
	module.Register("debug", func() module.Module { return &Module{} })
}

// Module never contacts the target: it only renders msg or evaluates
// var against the task's variable scope and surfaces the result.
type Module struct{}

func (m *Module) Name() string { return "debug" }

func (m *Module) Constraints() *module.Constraints { return nil }

func (m *Module) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"msg": map[string]any{"type": "string"}, "var": map[string]any{"type": "string"}},
	}
}

func (m *Module) Check(ctx context.Context, mc *module.Context) error      { return nil }
func (m *Module) Initialize(ctx context.Context, mc *module.Context) error { return nil }
func (m *Module) Cleanup(ctx context.Context, mc *module.Context) error    { return nil }

func (m *Module) Execute(ctx context.Context, mc *module.Context) (types.ModuleResult, error) {
	scope := template.Scope(mc.Variables)

	if varExpr, ok := mc.Params["var"].(string); ok && varExpr != "" {
		v, err := template.EvalExpression(varExpr, scope)
		if err != nil {
			return types.ModuleResult{Failed: true, Msg: fmt.Sprintf("evaluate var %q: %v", varExpr, err)}, nil
		}
		return types.ModuleResult{Changed: false, Msg: fmt.Sprintf("%v", v), Extra: map[string]any{"value": v}}, nil
	}

	msg, _ := mc.Params["msg"].(string)
	rendered, err := template.RenderTemplate(msg, scope)
	if err != nil {
		return types.ModuleResult{Failed: true, Msg: fmt.Sprintf("render msg: %v", err)}, nil
	}
	return types.ModuleResult{Changed: false, Msg: rendered}, nil
}
