// Package gatherfacts implements the "gatherfacts" module: runs the
// provider's OS probe plus a handful of fact-gathering shell snippets
// and merges the result into ctx.variables["facts"], Ansible's
// ansible_facts equivalent.
package gatherfacts

import (
	"context"
	"strconv"
	"strings"

	"github.com/furkankose/katmer/core/module"
	"github.com/furkankose/katmer/core/provider"
	"github.com/furkankose/katmer/core/types"
)

func init() {
	module.Register("gatherfacts", func() module.Module { return &Module{} })
}

// Module probes the target for OS info, CPU count, memory, hostname,
// and IP addresses, and writes the result under variables["facts"].
type Module struct{}

func (m *Module) Name() string { return "gatherfacts" }

func (m *Module) Constraints() *module.Constraints { return nil }

func (m *Module) Schema() map[string]any { return nil }

func (m *Module) Check(ctx context.Context, mc *module.Context) error      { return nil }
func (m *Module) Initialize(ctx context.Context, mc *module.Context) error { return nil }
func (m *Module) Cleanup(ctx context.Context, mc *module.Context) error    { return nil }

func (m *Module) Execute(ctx context.Context, mc *module.Context) (types.ModuleResult, error) {
	osInfo := mc.Provider.GetOsInfo()

	facts := map[string]any{
		"family":       string(osInfo.Family),
		"distro":       osInfo.DistroID,
		"os_version":   osInfo.VersionID,
		"kernel":       osInfo.Kernel,
		"arch":         string(osInfo.Arch),
		"hostname":     shellOutput(ctx, mc.Exec, "hostname"),
		"cpu_count":    cpuCount(ctx, mc.Exec, osInfo.Family),
		"memory_mb":    memoryMB(ctx, mc.Exec, osInfo.Family),
		"ip_addresses": ipAddresses(ctx, mc.Exec, osInfo.Family),
	}

	if mc.Variables != nil {
		mc.Variables["facts"] = facts
	}

	return types.ModuleResult{Changed: false, Msg: "gathered facts", Extra: map[string]any{"facts": facts}}, nil
}

func shellOutput(ctx context.Context, exec provider.Executor, cmd string) string {
	res, err := exec(ctx, cmd, provider.ExecOptions{})
	if err != nil {
		return ""
	}
	return strings.TrimSpace(res.Stdout)
}

func cpuCount(ctx context.Context, exec provider.Executor, family types.OSFamily) int {
	cmd := "nproc"
	if family == types.FamilyDarwin {
		cmd = "sysctl -n hw.ncpu"
	} else if family == types.FamilyWindows {
		cmd = "(Get-CimInstance Win32_ComputerSystem).NumberOfLogicalProcessors"
	}
	n, _ := strconv.Atoi(shellOutput(ctx, exec, cmd))
	return n
}

func memoryMB(ctx context.Context, exec provider.Executor, family types.OSFamily) int {
	switch family {
	case types.FamilyDarwin:
		bytes, _ := strconv.Atoi(shellOutput(ctx, exec, "sysctl -n hw.memsize"))
		return bytes / (1024 * 1024)
	case types.FamilyWindows:
		kb, _ := strconv.Atoi(shellOutput(ctx, exec, "(Get-CimInstance Win32_ComputerSystem).TotalPhysicalMemory"))
		return kb / (1024 * 1024)
	default:
		kb, _ := strconv.Atoi(shellOutput(ctx, exec, "grep MemTotal /proc/meminfo | awk '{print $2}'"))
		return kb / 1024
	}
}

func ipAddresses(ctx context.Context, exec provider.Executor, family types.OSFamily) []string {
	cmd := "hostname -I"
	if family == types.FamilyDarwin {
		cmd = "ifconfig | grep 'inet ' | awk '{print $2}'"
	} else if family == types.FamilyWindows {
		cmd = "(Get-NetIPAddress -AddressFamily IPv4).IPAddress"
	}
	out := shellOutput(ctx, exec, cmd)
	if out == "" {
		return nil
	}
	return strings.Fields(out)
}
