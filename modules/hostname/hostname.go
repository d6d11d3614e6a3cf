// Package hostname implements the "hostname" module: idempotently sets
// the target's hostname via hostnamectl (or scutil on macOS).
package hostname

import (
	"context"
	"fmt"
	"strings"

	"github.com/furkankose/katmer/core/module"
	"github.com/furkankose/katmer/core/provider"
	"github.com/furkankose/katmer/core/types"
)

func init() {
	module.Register("hostname", func() module.Module { return &Module{} })
}

// Module sets the target's hostname to name if it differs from the
// current value.
type Module struct{}

func (m *Module) Name() string { return "hostname" }

func (m *Module) Constraints() *module.Constraints { return nil }

func (m *Module) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"required":   []any{"name"},
		"properties": map[string]any{"name": map[string]any{"type": "string"}},
	}
}

func (m *Module) Check(ctx context.Context, mc *module.Context) error      { return nil }
func (m *Module) Initialize(ctx context.Context, mc *module.Context) error { return nil }
func (m *Module) Cleanup(ctx context.Context, mc *module.Context) error    { return nil }

func (m *Module) Execute(ctx context.Context, mc *module.Context) (types.ModuleResult, error) {
	name, _ := mc.Params["name"].(string)
	family := mc.Provider.GetOsInfo().Family

	current, err := readCurrent(ctx, mc.Exec, family)
	if err != nil {
		return types.ModuleResult{Failed: true, Msg: fmt.Sprintf("read current hostname: %v", err)}, nil
	}
	if current == name {
		return types.ModuleResult{Changed: false, Msg: name + " already set"}, nil
	}

	if _, err := mc.Exec(ctx, setCommand(family, name), provider.ExecOptions{}); err != nil {
		return types.ModuleResult{Failed: true, Msg: fmt.Sprintf("set hostname: %v", err)}, nil
	}
	return types.ModuleResult{Changed: true, Msg: fmt.Sprintf("hostname changed from %s to %s", current, name)}, nil
}

func readCurrent(ctx context.Context, exec provider.Executor, family types.OSFamily) (string, error) {
	cmd := "hostname"
	if family == types.FamilyWindows {
		cmd = "$env:COMPUTERNAME"
	}
	res, err := exec(ctx, cmd, provider.ExecOptions{})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

func setCommand(family types.OSFamily, name string) string {
	switch family {
	case types.FamilyDarwin:
		return fmt.Sprintf("scutil --set HostName %s && scutil --set LocalHostName %s && scutil --set ComputerName %s", name, name, name)
	case types.FamilyWindows:
		return fmt.Sprintf("Rename-Computer -NewName %s -Force", name)
	default:
		return "hostnamectl set-hostname " + name
	}
}
