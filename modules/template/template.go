// Package template implements the "template" module: renders a local
// Jinja/Twig-like template file through the core evaluator and delivers
// the result via the copy module, exactly as Ansible's template module
// is "copy plus rendering" in spirit.
package template

import (
	"context"
	"fmt"
	"os"

	"github.com/furkankose/katmer/core/module"
	"github.com/furkankose/katmer/core/types"
	coretemplate "github.com/furkankose/katmer/core/template"
	"github.com/furkankose/katmer/modules/copy"
)

func init() {
	module.Register("template", func() module.Module { return &Module{} })
}

// Module renders src against the task's merged variable scope and
// writes the result to dest, idempotent via the delegate copy module.
type Module struct {
	delegate copy.Module
}

func (m *Module) Name() string { return "template" }

func (m *Module) Constraints() *module.Constraints { return nil }

func (m *Module) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"src", "dest"},
		"properties": map[string]any{
			"src":   map[string]any{"type": "string"},
			"dest":  map[string]any{"type": "string"},
			"mode":  map[string]any{"type": "string"},
			"owner": map[string]any{"type": "string"},
			"group": map[string]any{"type": "string"},
		},
	}
}

func (m *Module) Check(ctx context.Context, mc *module.Context) error { return nil }
func (m *Module) Initialize(ctx context.Context, mc *module.Context) error { return nil }
func (m *Module) Cleanup(ctx context.Context, mc *module.Context) error    { return nil }

func (m *Module) Execute(ctx context.Context, mc *module.Context) (types.ModuleResult, error) {
	src, _ := mc.Params["src"].(string)
	raw, err := os.ReadFile(src)
	if err != nil {
		return types.ModuleResult{Failed: true, Msg: fmt.Sprintf("read template %s: %v", src, err)}, nil
	}

	rendered, err := coretemplate.RenderTemplate(string(raw), coretemplate.Scope(mc.Variables))
	if err != nil {
		return types.ModuleResult{Failed: true, Msg: fmt.Sprintf("render %s: %v", src, err)}, nil
	}

	copyMc := &module.Context{
		Task:      mc.Task,
		Target:    mc.Target,
		Provider:  mc.Provider,
		Variables: mc.Variables,
		Exec:      mc.Exec,
		Params: map[string]any{
			"content": rendered,
			"dest":    mc.Params["dest"],
			"mode":    mc.Params["mode"],
			"owner":   mc.Params["owner"],
			"group":   mc.Params["group"],
		},
	}
	return m.delegate.Execute(ctx, copyMc)
}
