package provider

import (
	"context"
	"strings"

	"github.com/furkankose/katmer/core/types"
)

// posixProbeScript emits five tagged lines that parsePosixProbe reads
// back. Run via `sh -c`, falling back to `bash -lc` if the first
// attempt fails or yields no parsable output.
const posixProbeScript = `
__os="$(uname -s 2>/dev/null)"
__arch="$(uname -m 2>/dev/null)"
__id=""
__ver=""
__pretty=""
if [ -r /etc/os-release ]; then
  . /etc/os-release 2>/dev/null
  __id="${ID:-}"
  __ver="${VERSION_ID:-}"
  __pretty="${PRETTY_NAME:-}"
elif [ -r /usr/lib/os-release ]; then
  . /usr/lib/os-release 2>/dev/null
  __id="${ID:-}"
  __ver="${VERSION_ID:-}"
  __pretty="${PRETTY_NAME:-}"
fi
echo "__os=$__os"
echo "__arch=$__arch"
echo "__id=$__id"
echo "__ver=$__ver"
echo "__pretty=$__pretty"
`

// powershellProbeScript is tried when the POSIX probe fails entirely
// (e.g. the target is Windows and has no POSIX shell).
const powershellProbeScript = `
$os = Get-CimInstance Win32_OperatingSystem
Write-Output "__os=Windows_NT"
Write-Output "__arch=$([System.Environment]::Is64BitOperatingSystem ? 'x64' : 'x86')"
Write-Output "__id=windows"
Write-Output ("__ver=" + $os.Version)
Write-Output ("__pretty=" + $os.Caption)
`

// probeOsInfo runs the POSIX probe via rawExec, retries it under
// `bash -lc`, then falls back to PowerShell, and finally to an unknown
// descriptor.
func probeOsInfo(ctx context.Context, rawExec func(ctx context.Context, shell, script string) (string, error)) types.OsInfo {
	if out, err := rawExec(ctx, "sh", posixProbeScript); err == nil {
		if info, ok := parsePosixProbe(out); ok {
			return info
		}
	}
	if out, err := rawExec(ctx, "bash", shellWrap(posixProbeScript, "", "bash", nil)); err == nil {
		if info, ok := parsePosixProbe(out); ok {
			return info
		}
	}
	if out, err := rawExec(ctx, "powershell", powershellProbeScript); err == nil {
		if info, ok := parsePosixProbe(out); ok {
			info.Source = types.SourcePowerShell
			return info
		}
	}
	return types.OsInfo{Family: types.FamilyUnknown, Arch: types.ArchUnknown, Source: types.SourceUnknown}
}

// parsePosixProbe reads the `__key=value` lines produced by either
// probe script. Unknown keys are ignored; empty values are tolerated.
func parsePosixProbe(output string) (types.OsInfo, bool) {
	vals := map[string]string{}
	found := false
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if !strings.HasPrefix(line, "__") {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			continue
		}
		key := line[:idx]
		val := line[idx+1:]
		switch key {
		case "__os", "__arch", "__id", "__ver", "__pretty":
			vals[key] = val
			found = true
		}
	}
	if !found {
		return types.OsInfo{}, false
	}
	return types.OsInfo{
		Family:     normalizeFamily(vals["__os"]),
		Arch:       normalizeArch(vals["__arch"]),
		Kernel:     vals["__os"],
		DistroID:   vals["__id"],
		VersionID:  vals["__ver"],
		PrettyName: vals["__pretty"],
		Source:     types.SourcePOSIX,
	}, true
}

func normalizeFamily(kernel string) types.OSFamily {
	switch strings.ToLower(strings.TrimSpace(kernel)) {
	case "linux":
		return types.FamilyLinux
	case "darwin":
		return types.FamilyDarwin
	case "windows_nt", "windows":
		return types.FamilyWindows
	case "freebsd":
		return types.FamilyFreeBSD
	case "openbsd":
		return types.FamilyOpenBSD
	case "netbsd":
		return types.FamilyNetBSD
	case "aix":
		return types.FamilyAIX
	case "sunos", "solaris":
		return types.FamilySolaris
	default:
		return types.FamilyUnknown
	}
}

func normalizeArch(arch string) types.Arch {
	switch strings.ToLower(strings.TrimSpace(arch)) {
	case "x64", "x86_64", "amd64":
		return types.ArchAMD64
	case "arm64", "aarch64":
		return types.ArchARM64
	case "armv7", "armv7l", "armhf":
		return types.ArchARMv7
	case "i386", "i686", "x86":
		return types.ArchI386
	default:
		return types.ArchUnknown
	}
}

// decideDefaultShellScript returns the POSIX probe used by
// decideDefaultShell for non-Windows targets.
const decideDefaultShellScript = `for s in bash zsh ksh mksh dash sh fish; do command -v "$s" >/dev/null 2>&1 && echo "$s" && exit 0; done; echo sh`

func decideDefaultShell(family types.OSFamily, rawExec func(ctx context.Context, shell, script string) (string, error)) string {
	if family == types.FamilyWindows {
		if out, err := rawExec(context.Background(), "cmd", "where powershell"); err == nil && strings.TrimSpace(out) != "" {
			return "powershell"
		}
		return "cmd"
	}
	out, err := rawExec(context.Background(), "sh", decideDefaultShellScript)
	if err != nil {
		return "sh"
	}
	shell := strings.TrimSpace(out)
	if shell == "" {
		return "sh"
	}
	return shell
}
