package module

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/furkankose/katmer/core/errs"
	"github.com/furkankose/katmer/core/provider"
	"github.com/furkankose/katmer/core/types"
)

// PlatformConstraint is the value type for one entry in Constraints.Platform.
type PlatformConstraint struct {
	Supported bool
	Arch      []string // "any" or a set of types.Arch values
	MinOsVersion string
	KernelRange  string
	RequireRoot  bool
}

// BinaryConstraint requires a binary to be present, optionally within
// a version range.
type BinaryConstraint struct {
	Names        []string // any-of candidate command names
	Range        string
	VersionRegex string
	VersionArgs  []string // args to invoke for a --version-style probe; default ["--version"]
}

// PackageConstraint requires a package to be installed via the
// detected package manager, optionally within a version range.
type PackageConstraint struct {
	Name         string
	Alternatives []string
	TestCmd      string
	VersionRegex string
	Range        string
}

// Constraints is the full gate one module declares. Platform is keyed
// by OS family ("any","linux","darwin","windows","freebsd",... ,"local").
// Distro overrides deep-merge: base platform entry, then distro.any,
// then distro.<normalizedId>.
type Constraints struct {
	Platform map[string]PlatformConstraint
	Distro   map[string]PlatformConstraint
	Binaries []BinaryConstraint
	Packages []PackageConstraint
}

// Solve runs the constraint solver for one module invocation: platform
// resolution, then arch/root/kernel/os-version/binaries/packages,
// short-circuiting on the first failure. moduleName is attached to
// every returned ConstraintError for diagnostics.
func Solve(ctx context.Context, moduleName string, c *Constraints, target types.Target, p provider.Provider) error {
	if c == nil {
		return nil
	}
	if err := p.EnsureReady(ctx); err != nil {
		return err
	}
	info := p.GetOsInfo()

	fail := func(format string, args ...any) error {
		return &errs.ConstraintError{Module: moduleName, Detail: fmt.Sprintf(format, args...)}
	}

	effective, err := resolveEffectivePlatform(c, target, info)
	if err != nil {
		return err
	}
	if !effective.Supported {
		return fail("platform %s not supported", info.Family)
	}

	if len(effective.Arch) > 0 && !archSatisfied(effective.Arch, info.Arch) {
		return fail("arch %s not in %v", info.Arch, effective.Arch)
	}

	exec := provider.ExecSafe(p.Executor(provider.ExecutorOptions{}))

	if effective.RequireRoot {
		if err := checkRoot(ctx, exec, info.Family); err != nil {
			return fail("%s", err.Error())
		}
	}

	if effective.KernelRange != "" && info.Family != types.FamilyWindows {
		if err := checkKernel(ctx, exec, effective.KernelRange); err != nil {
			return fail("%s", err.Error())
		}
	}

	if effective.MinOsVersion != "" {
		if !versionAtLeast(info.VersionID, effective.MinOsVersion) {
			return fail("os version %s < required %s", info.VersionID, effective.MinOsVersion)
		}
	}

	for _, b := range c.Binaries {
		if err := checkBinary(ctx, exec, info.Family, b); err != nil {
			return fail("%s", err.Error())
		}
	}

	if len(c.Packages) > 0 {
		mgr := detectPackageManager(ctx, exec, info.Family)
		for _, pk := range c.Packages {
			if err := checkPackage(ctx, exec, mgr, pk); err != nil {
				return fail("%s", err.Error())
			}
		}
	}

	return nil
}

func resolveEffectivePlatform(c *Constraints, target types.Target, info types.OsInfo) (PlatformConstraint, error) {
	var base PlatformConstraint
	found := false

	if target.Connection == types.ConnectionLocal {
		if pc, ok := c.Platform["local"]; ok {
			base, found = pc, true
		}
	}
	if !found {
		if pc, ok := c.Platform[string(info.Family)]; ok {
			base, found = pc, true
		}
	}
	if !found {
		if pc, ok := c.Platform["any"]; ok {
			base, found = pc, true
		}
	}
	if !found {
		return PlatformConstraint{Supported: false}, nil
	}

	if c.Distro != nil {
		if d, ok := c.Distro["any"]; ok {
			base = mergePlatform(base, d)
		}
		if norm := normalizeDistroID(info.DistroID); norm != "" {
			if d, ok := c.Distro[norm]; ok {
				base = mergePlatform(base, d)
			}
		}
	}
	return base, nil
}

func mergePlatform(base, overlay PlatformConstraint) PlatformConstraint {
	out := base
	if len(overlay.Arch) > 0 {
		out.Arch = overlay.Arch
	}
	if overlay.MinOsVersion != "" {
		out.MinOsVersion = overlay.MinOsVersion
	}
	if overlay.KernelRange != "" {
		out.KernelRange = overlay.KernelRange
	}
	if overlay.RequireRoot {
		out.RequireRoot = true
	}
	return out
}

func normalizeDistroID(id string) string {
	id = strings.ToLower(id)
	switch {
	case strings.Contains(id, "ubuntu"):
		return "ubuntu"
	case strings.Contains(id, "debian"):
		return "debian"
	case strings.Contains(id, "rhel"):
		return "rhel"
	case strings.Contains(id, "centos"):
		return "centos"
	case strings.Contains(id, "rocky"):
		return "rocky"
	case strings.Contains(id, "fedora"):
		return "fedora"
	case strings.Contains(id, "alpine"):
		return "alpine"
	case strings.Contains(id, "arch"):
		return "arch"
	case strings.Contains(id, "opensuse"), strings.Contains(id, "sles"), strings.Contains(id, "suse"):
		return "suse"
	case strings.Contains(id, "amazon"), strings.Contains(id, "amzn"):
		return "amazon"
	default:
		return id
	}
}

func archSatisfied(allowed []string, arch types.Arch) bool {
	for _, a := range allowed {
		if a == "any" || types.Arch(a) == arch {
			return true
		}
	}
	return false
}

func checkRoot(ctx context.Context, exec provider.Executor, family types.OSFamily) error {
	var cmd string
	if family == types.FamilyWindows {
		cmd = `[bool]([Security.Principal.WindowsPrincipal][Security.Principal.WindowsIdentity]::GetCurrent()).IsInRole([Security.Principal.WindowsBuiltinRole]::Administrator)`
	} else {
		cmd = "id -u"
	}
	res, err := exec(ctx, cmd, provider.ExecOptions{})
	if err != nil {
		return fmt.Errorf("root/admin check failed: %w", err)
	}
	out := strings.TrimSpace(res.Stdout)
	isRoot := out == "0" || strings.EqualFold(out, "true")
	if !isRoot {
		return fmt.Errorf("root/admin privileges required")
	}
	return nil
}

func checkKernel(ctx context.Context, exec provider.Executor, rng string) error {
	res, err := exec(ctx, "uname -r", provider.ExecOptions{})
	if err != nil {
		return fmt.Errorf("kernel version check failed: %w", err)
	}
	if !versionSatisfiesRange(coerceVersion(strings.TrimSpace(res.Stdout)), rng) {
		return fmt.Errorf("kernel %s does not satisfy %q", res.Stdout, rng)
	}
	return nil
}

func versionAtLeast(actual, min string) bool {
	if actual == "" {
		return false
	}
	return versionSatisfiesRange(coerceVersion(actual), ">="+min)
}

var dottedVersionRe = regexp.MustCompile(`\d+(?:\.\d+)+`)

// coerceVersion extracts the first dotted-number group from a distro
// version string, e.g. "2:1.17.3-1ubuntu1~22.04.1" -> "1.17.3".
func coerceVersion(s string) string {
	if m := dottedVersionRe.FindString(s); m != "" {
		return m
	}
	start := -1
	for i, r := range s {
		if r >= '0' && r <= '9' {
			start = i
			break
		}
	}
	if start < 0 {
		return s
	}
	end := len(s)
	for i := start; i < len(s); i++ {
		r := s[i]
		if !(r >= '0' && r <= '9' || r == '.') {
			end = i
			break
		}
	}
	return strings.Trim(s[start:end], ".")
}

// versionSatisfiesRange tries hashicorp/go-version's semver-style
// constraint parser first; if the candidate string can't be parsed as
// a semver, a small whitespace-separated clause fallback (the spec's
// "fallback engine") does an up-to-three-segment integer compare.
func versionSatisfiesRange(candidate, rng string) bool {
	v, err := version.NewVersion(candidate)
	if err == nil {
		c, err := version.NewConstraint(rng)
		if err == nil {
			return c.Check(v)
		}
	}
	return fallbackRangeCheck(candidate, rng)
}

func fallbackRangeCheck(candidate, rng string) bool {
	candParts := splitVersionSegments(candidate)
	for _, clause := range strings.Fields(rng) {
		op, verStr := splitClause(clause)
		cmpParts := splitVersionSegments(verStr)
		cmp := compareSegments(candParts, cmpParts)
		if !satisfiesOp(op, cmp) {
			return false
		}
	}
	return true
}

func splitClause(clause string) (op, ver string) {
	for _, candidate := range []string{">=", "<=", "==", "!=", ">", "<", "="} {
		if strings.HasPrefix(clause, candidate) {
			return candidate, strings.TrimSpace(clause[len(candidate):])
		}
	}
	return "=", clause
}

func splitVersionSegments(s string) [3]int {
	var out [3]int
	parts := strings.SplitN(s, ".", 3)
	for i := 0; i < len(parts) && i < 3; i++ {
		n := 0
		for _, r := range parts[i] {
			if r < '0' || r > '9' {
				break
			}
			n = n*10 + int(r-'0')
		}
		out[i] = n
	}
	return out
}

func compareSegments(a, b [3]int) int {
	for i := 0; i < 3; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func satisfiesOp(op string, cmp int) bool {
	switch op {
	case ">=":
		return cmp >= 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case "<":
		return cmp < 0
	case "==", "=":
		return cmp == 0
	case "!=":
		return cmp != 0
	default:
		return false
	}
}
