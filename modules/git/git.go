// Package git implements the "git" module: shallow clone or pull a
// repository to a path on the target via the git binary, idempotent on
// the checked-out HEAD sha matching the requested ref.
package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/furkankose/katmer/core/module"
	"github.com/furkankose/katmer/core/provider"
	"github.com/furkankose/katmer/core/types"
)

func init() {
	module.Register("git", func() module.Module { return &Module{} })
}

// Module clones repo into dest if absent, or fetches and checks out
// version if already present and not already at that ref.
type Module struct{}

func (m *Module) Name() string { return "git" }

func (m *Module) Constraints() *module.Constraints {
	return &module.Constraints{Binaries: []module.BinaryConstraint{{Names: []string{"git"}}}}
}

func (m *Module) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"repo", "dest"},
		"properties": map[string]any{
			"repo":    map[string]any{"type": "string"},
			"dest":    map[string]any{"type": "string"},
			"version": map[string]any{"type": "string"},
			"depth":   map[string]any{"type": "integer"},
		},
	}
}

func (m *Module) Check(ctx context.Context, mc *module.Context) error      { return nil }
func (m *Module) Initialize(ctx context.Context, mc *module.Context) error { return nil }
func (m *Module) Cleanup(ctx context.Context, mc *module.Context) error    { return nil }

func (m *Module) Execute(ctx context.Context, mc *module.Context) (types.ModuleResult, error) {
	repo, _ := mc.Params["repo"].(string)
	dest, _ := mc.Params["dest"].(string)
	version, _ := mc.Params["version"].(string)
	if version == "" {
		version = "HEAD"
	}
	depth := 1
	if d, ok := mc.Params["depth"]; ok {
		if n, ok := asInt(d); ok {
			depth = n
		}
	}

	if !isGitRepo(ctx, mc.Exec, dest) {
		cmd := fmt.Sprintf("git clone --depth %d --branch %s %s %s", depth, version, repo, dest)
		if version == "HEAD" {
			cmd = fmt.Sprintf("git clone --depth %d %s %s", depth, repo, dest)
		}
		if _, err := mc.Exec(ctx, cmd, provider.ExecOptions{}); err != nil {
			return types.ModuleResult{Failed: true, Msg: fmt.Sprintf("clone %s: %v", repo, err)}, nil
		}
		sha := headSha(ctx, mc.Exec, dest)
		return types.ModuleResult{Changed: true, Msg: fmt.Sprintf("cloned %s at %s", repo, sha)}, nil
	}

	currentSha := headSha(ctx, mc.Exec, dest)
	if _, err := mc.Exec(ctx, fmt.Sprintf("git -C %s fetch --depth %d origin %s", dest, depth, version), provider.ExecOptions{}); err != nil {
		return types.ModuleResult{Failed: true, Msg: fmt.Sprintf("fetch %s: %v", repo, err)}, nil
	}
	targetSha := resolveSha(ctx, mc.Exec, dest, version)
	if targetSha != "" && targetSha == currentSha {
		return types.ModuleResult{Changed: false, Msg: fmt.Sprintf("%s already at %s", dest, currentSha)}, nil
	}

	checkoutRef := version
	if targetSha != "" {
		checkoutRef = targetSha
	}
	if _, err := mc.Exec(ctx, fmt.Sprintf("git -C %s checkout %s", dest, checkoutRef), provider.ExecOptions{}); err != nil {
		return types.ModuleResult{Failed: true, Msg: fmt.Sprintf("checkout %s: %v", version, err)}, nil
	}
	newSha := headSha(ctx, mc.Exec, dest)
	return types.ModuleResult{Changed: newSha != currentSha, Msg: fmt.Sprintf("%s now at %s", dest, newSha)}, nil
}

func isGitRepo(ctx context.Context, exec provider.Executor, dest string) bool {
	res, err := exec(ctx, fmt.Sprintf("git -C %s rev-parse --is-inside-work-tree", dest), provider.ExecOptions{})
	return err == nil && strings.TrimSpace(res.Stdout) == "true"
}

func headSha(ctx context.Context, exec provider.Executor, dest string) string {
	res, err := exec(ctx, fmt.Sprintf("git -C %s rev-parse HEAD", dest), provider.ExecOptions{})
	if err != nil {
		return ""
	}
	return strings.TrimSpace(res.Stdout)
}

func resolveSha(ctx context.Context, exec provider.Executor, dest, ref string) string {
	res, err := exec(ctx, fmt.Sprintf("git -C %s rev-parse origin/%s 2>/dev/null || git -C %s rev-parse %s", dest, ref, dest, ref), provider.ExecOptions{})
	if err != nil {
		return ""
	}
	return strings.TrimSpace(res.Stdout)
}

func asInt(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
