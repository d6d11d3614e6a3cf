// Package systemd implements the "systemd" module: enable/disable and
// start/stop/restart a unit, idempotent on its current ActiveState and
// UnitFileState as reported by systemctl.
package systemd

import (
	"context"
	"fmt"
	"strings"

	"github.com/furkankose/katmer/core/module"
	"github.com/furkankose/katmer/core/provider"
	"github.com/furkankose/katmer/core/types"
)

func init() {
	module.Register("systemd", func() module.Module { return &Module{} })
}

// Module manages one systemd unit's enabled state and run state.
type Module struct{}

func (m *Module) Name() string { return "systemd" }

func (m *Module) Constraints() *module.Constraints {
	return &module.Constraints{
		Binaries: []module.BinaryConstraint{{Names: []string{"systemctl"}}},
	}
}

func (m *Module) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"name"},
		"properties": map[string]any{
			"name":    map[string]any{"type": "string"},
			"state":   map[string]any{"type": "string", "enum": []any{"started", "stopped", "restarted"}},
			"enabled": map[string]any{"type": "boolean"},
		},
	}
}

func (m *Module) Check(ctx context.Context, mc *module.Context) error      { return nil }
func (m *Module) Initialize(ctx context.Context, mc *module.Context) error { return nil }
func (m *Module) Cleanup(ctx context.Context, mc *module.Context) error    { return nil }

func (m *Module) Execute(ctx context.Context, mc *module.Context) (types.ModuleResult, error) {
	unit, _ := mc.Params["name"].(string)
	state, _ := mc.Params["state"].(string)
	enabled, enabledSet := mc.Params["enabled"].(bool)

	var changed bool
	var actions []string

	if enabledSet {
		currentlyEnabled := unitFileState(ctx, mc.Exec, unit) == "enabled"
		if enabled && !currentlyEnabled {
			if _, err := mc.Exec(ctx, "systemctl enable "+unit, provider.ExecOptions{}); err != nil {
				return types.ModuleResult{Failed: true, Msg: fmt.Sprintf("enable %s: %v", unit, err)}, nil
			}
			changed = true
			actions = append(actions, "enabled")
		} else if !enabled && currentlyEnabled {
			if _, err := mc.Exec(ctx, "systemctl disable "+unit, provider.ExecOptions{}); err != nil {
				return types.ModuleResult{Failed: true, Msg: fmt.Sprintf("disable %s: %v", unit, err)}, nil
			}
			changed = true
			actions = append(actions, "disabled")
		}
	}

	switch state {
	case "":
		// no run-state change requested
	case "started":
		if activeState(ctx, mc.Exec, unit) != "active" {
			if _, err := mc.Exec(ctx, "systemctl start "+unit, provider.ExecOptions{}); err != nil {
				return types.ModuleResult{Failed: true, Msg: fmt.Sprintf("start %s: %v", unit, err)}, nil
			}
			changed = true
			actions = append(actions, "started")
		}
	case "stopped":
		if activeState(ctx, mc.Exec, unit) == "active" {
			if _, err := mc.Exec(ctx, "systemctl stop "+unit, provider.ExecOptions{}); err != nil {
				return types.ModuleResult{Failed: true, Msg: fmt.Sprintf("stop %s: %v", unit, err)}, nil
			}
			changed = true
			actions = append(actions, "stopped")
		}
	case "restarted":
		if _, err := mc.Exec(ctx, "systemctl restart "+unit, provider.ExecOptions{}); err != nil {
			return types.ModuleResult{Failed: true, Msg: fmt.Sprintf("restart %s: %v", unit, err)}, nil
		}
		changed = true
		actions = append(actions, "restarted")
	default:
		return types.ModuleResult{Failed: true, Msg: "state must be started, stopped, or restarted, got " + state}, nil
	}

	msg := unit
	if len(actions) > 0 {
		msg = fmt.Sprintf("%s: %s", unit, strings.Join(actions, ", "))
	}
	return types.ModuleResult{Changed: changed, Msg: msg}, nil
}

func activeState(ctx context.Context, exec provider.Executor, unit string) string {
	res, err := exec(ctx, "systemctl is-active "+unit, provider.ExecOptions{})
	if err != nil {
		return strings.TrimSpace(res.Stdout)
	}
	return strings.TrimSpace(res.Stdout)
}

func unitFileState(ctx context.Context, exec provider.Executor, unit string) string {
	res, err := exec(ctx, "systemctl is-enabled "+unit, provider.ExecOptions{})
	if err != nil {
		return strings.TrimSpace(res.Stdout)
	}
	return strings.TrimSpace(res.Stdout)
}
