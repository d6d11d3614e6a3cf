// Package pkg implements the "pkg" module: present/absent package
// installation via whichever system package manager the target exposes.
// Grounded on core/module's constraint-solver package-manager probes
// (apt, dnf, yum, zypper, apk, pacman, brew, port, winget, choco) and
// the teacher's LocalSession exec-then-interpret pattern.
package pkg

import (
	"context"
	"fmt"
	"strings"

	"github.com/furkankose/katmer/core/module"
	"github.com/furkankose/katmer/core/provider"
	"github.com/furkankose/katmer/core/types"
)

func init() {
	module.Register("pkg", func() module.Module { return &Module{name: "pkg"} })
	// apt is a user-facing alias for the same module body: most task
	// files written against a specific distro family prefer the
	// familiar verb even though the implementation is manager-agnostic.
	module.Register("apt", func() module.Module { return &Module{name: "apt"} })
}

// Module installs or removes one or more packages, idempotent on the
// detected manager's own installed-version query.
type Module struct {
	name string
}

func (m *Module) Name() string { return m.name }

func (m *Module) Constraints() *module.Constraints { return nil }

func (m *Module) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"name"},
		"properties": map[string]any{
			"name":  map[string]any{},
			"state": map[string]any{"type": "string", "enum": []any{"present", "absent"}},
		},
	}
}

func (m *Module) Check(ctx context.Context, mc *module.Context) error      { return nil }
func (m *Module) Initialize(ctx context.Context, mc *module.Context) error { return nil }
func (m *Module) Cleanup(ctx context.Context, mc *module.Context) error    { return nil }

func (m *Module) Execute(ctx context.Context, mc *module.Context) (types.ModuleResult, error) {
	names, err := packageNames(mc.Params["name"])
	if err != nil {
		return types.ModuleResult{Failed: true, Msg: err.Error()}, nil
	}
	state, _ := mc.Params["state"].(string)
	if state == "" {
		state = "present"
	}

	family := mc.Provider.GetOsInfo().Family
	mgrName, ok := module.PackageManagerName(ctx, mc.Exec, family)
	if !ok {
		return types.ModuleResult{Failed: true, Msg: "no supported package manager detected"}, nil
	}

	var changedAny bool
	for _, name := range names {
		installed := isInstalled(ctx, mc.Exec, mgrName, name)
		switch state {
		case "present":
			if installed {
				continue
			}
			if _, err := mc.Exec(ctx, installCommand(mgrName, name), provider.ExecOptions{}); err != nil {
				return types.ModuleResult{Failed: true, Msg: fmt.Sprintf("install %s: %v", name, err)}, nil
			}
			changedAny = true
		case "absent":
			if !installed {
				continue
			}
			if _, err := mc.Exec(ctx, removeCommand(mgrName, name), provider.ExecOptions{}); err != nil {
				return types.ModuleResult{Failed: true, Msg: fmt.Sprintf("remove %s: %v", name, err)}, nil
			}
			changedAny = true
		default:
			return types.ModuleResult{Failed: true, Msg: "state must be present or absent, got " + state}, nil
		}
	}

	return types.ModuleResult{
		Changed: changedAny,
		Msg:     fmt.Sprintf("%s: %s (%s)", mgrName, strings.Join(names, ", "), state),
	}, nil
}

func packageNames(raw any) ([]string, error) {
	switch v := raw.(type) {
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("name entries must be strings")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("name must be a string or list of strings")
	}
}

var listCmds = map[string]string{
	"apt":    "dpkg-query -W -f='${Version}' %s",
	"dnf":    "rpm -q --qf '%%{VERSION}-%%{RELEASE}' %s",
	"yum":    "rpm -q --qf '%%{VERSION}-%%{RELEASE}' %s",
	"zypper": "rpm -q --qf '%%{VERSION}-%%{RELEASE}' %s",
	"apk":    "apk info -e %s",
	"pacman": "pacman -Q %s",
	"brew":   "brew list --versions %s",
	"port":   "port installed %s",
	"winget": "winget list --id %s",
	"choco":  "choco list --local-only %s",
}

func isInstalled(ctx context.Context, exec provider.Executor, mgr, name string) bool {
	cmd, ok := listCmds[mgr]
	if !ok {
		return false
	}
	res, err := exec(ctx, fmt.Sprintf(cmd, name), provider.ExecOptions{})
	return err == nil && strings.TrimSpace(res.Stdout) != ""
}

func installCommand(mgr, name string) string {
	switch mgr {
	case "apt":
		return "DEBIAN_FRONTEND=noninteractive apt-get install -y " + name
	case "dnf":
		return "dnf install -y " + name
	case "yum":
		return "yum install -y " + name
	case "zypper":
		return "zypper --non-interactive install " + name
	case "apk":
		return "apk add " + name
	case "pacman":
		return "pacman -S --noconfirm " + name
	case "brew":
		return "brew install " + name
	case "port":
		return "port install " + name
	case "winget":
		return "winget install --silent --id " + name
	case "choco":
		return "choco install -y " + name
	default:
		return ""
	}
}

func removeCommand(mgr, name string) string {
	switch mgr {
	case "apt":
		return "DEBIAN_FRONTEND=noninteractive apt-get remove -y " + name
	case "dnf":
		return "dnf remove -y " + name
	case "yum":
		return "yum remove -y " + name
	case "zypper":
		return "zypper --non-interactive remove " + name
	case "apk":
		return "apk del " + name
	case "pacman":
		return "pacman -R --noconfirm " + name
	case "brew":
		return "brew uninstall " + name
	case "port":
		return "port uninstall " + name
	case "winget":
		return "winget uninstall --silent --id " + name
	case "choco":
		return "choco uninstall -y " + name
	default:
		return ""
	}
}
