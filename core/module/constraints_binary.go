package module

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/furkankose/katmer/core/provider"
	"github.com/furkankose/katmer/core/types"
)

// checkBinary verifies one of b.Names is on PATH, and if b.Range or
// b.VersionRegex is set, that the discovered binary's reported version
// satisfies it.
func checkBinary(ctx context.Context, exec provider.Executor, family types.OSFamily, b BinaryConstraint) error {
	var found string
	for _, name := range b.Names {
		cmd := whichCommand(family, name)
		res, err := exec(ctx, cmd, provider.ExecOptions{})
		if err == nil && strings.TrimSpace(res.Stdout) != "" {
			found = name
			break
		}
	}
	if found == "" {
		return fmt.Errorf("none of %v found on PATH", b.Names)
	}
	if b.Range == "" && b.VersionRegex == "" {
		return nil
	}

	args := b.VersionArgs
	if len(args) == 0 {
		args = []string{"--version"}
	}
	cmd := found + " " + strings.Join(args, " ")
	res, err := exec(ctx, cmd, provider.ExecOptions{})
	if err != nil {
		return fmt.Errorf("%s version probe failed: %w", found, err)
	}

	ver := extractVersion(res.Stdout, b.VersionRegex)
	if ver == "" {
		return fmt.Errorf("could not parse version from %s output", found)
	}
	if b.Range != "" && !versionSatisfiesRange(ver, b.Range) {
		return fmt.Errorf("%s version %s does not satisfy %q", found, ver, b.Range)
	}
	return nil
}

func whichCommand(family types.OSFamily, name string) string {
	if family == types.FamilyWindows {
		return fmt.Sprintf("(Get-Command %s -ErrorAction SilentlyContinue).Source", name)
	}
	return "command -v " + name
}

var genericVersionRe = regexp.MustCompile(`(\d+(?:\.\d+){1,2})`)

func extractVersion(output, pattern string) string {
	re := genericVersionRe
	if pattern != "" {
		if compiled, err := regexp.Compile(pattern); err == nil {
			re = compiled
		}
	}
	m := re.FindStringSubmatch(output)
	if len(m) == 0 {
		return ""
	}
	if len(m) > 1 {
		return m[1]
	}
	return m[0]
}

// packageManager names a detected manager and its query/list verbs.
type packageManager struct {
	name       string
	listCmd    string // printf-style: %s is substituted with the package name
	notFoundOK bool   // true if a nonzero exit just means "not installed", not an error
}

var posixManagerProbes = []packageManager{
	{name: "apt", listCmd: "dpkg-query -W -f='${Version}' %s", notFoundOK: true},
	{name: "dnf", listCmd: "rpm -q --qf '%%{VERSION}-%%{RELEASE}' %s", notFoundOK: true},
	{name: "yum", listCmd: "rpm -q --qf '%%{VERSION}-%%{RELEASE}' %s", notFoundOK: true},
	{name: "zypper", listCmd: "rpm -q --qf '%%{VERSION}-%%{RELEASE}' %s", notFoundOK: true},
	{name: "apk", listCmd: "apk info -e %s", notFoundOK: true},
	{name: "pacman", listCmd: "pacman -Q %s", notFoundOK: true},
	{name: "brew", listCmd: "brew list --versions %s", notFoundOK: true},
	{name: "port", listCmd: "port installed %s", notFoundOK: true},
}

var windowsManagerProbes = []packageManager{
	{name: "winget", listCmd: "winget list --id %s", notFoundOK: true},
	{name: "choco", listCmd: "choco list --local-only %s", notFoundOK: true},
}

// detectPackageManager probes candidate managers in order and returns
// the first one present on the target, or the zero value if none are.
func detectPackageManager(ctx context.Context, exec provider.Executor, family types.OSFamily) packageManager {
	probes := posixManagerProbes
	if family == types.FamilyWindows {
		probes = windowsManagerProbes
	}
	for _, pm := range probes {
		cmd := whichCommand(family, pm.name)
		res, err := exec(ctx, cmd, provider.ExecOptions{})
		if err == nil && strings.TrimSpace(res.Stdout) != "" {
			return pm
		}
	}
	return packageManager{}
}

// PackageManagerName probes for the first supported manager present on
// the target and returns its name ("apt", "dnf", ...), exported for
// modules/pkg to reuse the same detection order as the constraint
// solver instead of re-probing independently.
func PackageManagerName(ctx context.Context, exec provider.Executor, family types.OSFamily) (string, bool) {
	pm := detectPackageManager(ctx, exec, family)
	return pm.name, pm.name != ""
}

func checkPackage(ctx context.Context, exec provider.Executor, mgr packageManager, pk PackageConstraint) error {
	if mgr.name == "" {
		return fmt.Errorf("no supported package manager detected")
	}

	names := append([]string{pk.Name}, pk.Alternatives...)
	var out string
	var installed bool
	for _, n := range names {
		cmd := pk.TestCmd
		if cmd == "" {
			cmd = fmt.Sprintf(mgr.listCmd, n)
		}
		res, err := exec(ctx, cmd, provider.ExecOptions{})
		if err == nil && strings.TrimSpace(res.Stdout) != "" {
			out, installed = res.Stdout, true
			break
		}
	}
	if !installed {
		return fmt.Errorf("package %v not installed (%s)", names, mgr.name)
	}
	if pk.Range == "" {
		return nil
	}
	ver := extractVersion(out, pk.VersionRegex)
	if ver == "" {
		return fmt.Errorf("could not parse installed version for %s", pk.Name)
	}
	if !versionSatisfiesRange(ver, pk.Range) {
		return fmt.Errorf("package %s version %s does not satisfy %q", pk.Name, ver, pk.Range)
	}
	return nil
}
