// Package copy implements the "copy" module: reads local content (a
// source file or an inline string) and writes it to a path on the
// target, idempotent on a checksum comparison. Grounded on the
// teacher's LocalSession.Put/Get pattern, generalized to write through
// the remote-capable Provider.Executor instead of a direct filesystem
// call so it works identically over SSH.
package copy

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/furkankose/katmer/core/module"
	"github.com/furkankose/katmer/core/provider"
	"github.com/furkankose/katmer/core/types"
)

func init() {
	module.Register("copy", func() module.Module { return &Module{} })
}

// Module copies src (a local file path) or content (an inline string)
// to dest on the target, optionally setting mode/owner/group.
type Module struct{}

func (m *Module) Name() string { return "copy" }

func (m *Module) Constraints() *module.Constraints { return nil }

func (m *Module) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"dest"},
		"properties": map[string]any{
			"src":     map[string]any{"type": "string"},
			"content": map[string]any{"type": "string"},
			"dest":    map[string]any{"type": "string"},
			"mode":    map[string]any{"type": "string"},
			"owner":   map[string]any{"type": "string"},
			"group":   map[string]any{"type": "string"},
		},
	}
}

func (m *Module) Check(ctx context.Context, mc *module.Context) error {
	_, hasSrc := mc.Params["src"]
	_, hasContent := mc.Params["content"]
	if hasSrc == hasContent {
		return fmt.Errorf("copy requires exactly one of src or content")
	}
	return nil
}

func (m *Module) Initialize(ctx context.Context, mc *module.Context) error { return nil }
func (m *Module) Cleanup(ctx context.Context, mc *module.Context) error    { return nil }

func (m *Module) Execute(ctx context.Context, mc *module.Context) (types.ModuleResult, error) {
	dest, _ := mc.Params["dest"].(string)

	var body []byte
	if src, ok := mc.Params["src"].(string); ok {
		data, err := os.ReadFile(src)
		if err != nil {
			return types.ModuleResult{Failed: true, Msg: fmt.Sprintf("read src %s: %v", src, err)}, nil
		}
		body = data
	} else if content, ok := mc.Params["content"].(string); ok {
		body = []byte(content)
	}

	wantSum := sha256.Sum256(body)
	wantHex := hex.EncodeToString(wantSum[:])

	existing, existed := currentChecksum(ctx, mc.Exec, dest)
	if existed && existing == wantHex {
		if err := applyOwnership(ctx, mc.Exec, dest, mc.Params); err != nil {
			return types.ModuleResult{Failed: true, Msg: err.Error()}, nil
		}
		return types.ModuleResult{Changed: false, Msg: dest + " already up to date"}, nil
	}

	if err := writeFile(ctx, mc.Exec, dest, body, mc.Params); err != nil {
		return types.ModuleResult{Failed: true, Msg: err.Error()}, nil
	}
	if err := applyOwnership(ctx, mc.Exec, dest, mc.Params); err != nil {
		return types.ModuleResult{Failed: true, Msg: err.Error()}, nil
	}

	return types.ModuleResult{Changed: true, Msg: fmt.Sprintf("wrote %s (%d bytes)", dest, len(body))}, nil
}

func currentChecksum(ctx context.Context, exec provider.Executor, dest string) (string, bool) {
	res, err := exec(ctx, "sha256sum "+dest+" 2>/dev/null || shasum -a 256 "+dest, provider.ExecOptions{})
	if err != nil {
		return "", false
	}
	fields := strings.Fields(res.Stdout)
	if len(fields) == 0 {
		return "", false
	}
	return fields[0], true
}

func writeFile(ctx context.Context, exec provider.Executor, dest string, body []byte, params map[string]any) error {
	dir := parentDir(dest)
	if dir != "" && dir != "." {
		if _, err := exec(ctx, "mkdir -p "+dir, provider.ExecOptions{}); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	// base64-encode so arbitrary binary/multi-line content survives the
	// shell round trip, then decode on the target side.
	encoded := base64.StdEncoding.EncodeToString(body)
	cmd := fmt.Sprintf("printf '%%s' %s | base64 -d > %s", shellQuote(encoded), dest)
	if _, err := exec(ctx, cmd, provider.ExecOptions{}); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}

func applyOwnership(ctx context.Context, exec provider.Executor, dest string, params map[string]any) error {
	if mode, ok := params["mode"].(string); ok && mode != "" {
		if _, err := exec(ctx, fmt.Sprintf("chmod %s %s", mode, dest), provider.ExecOptions{}); err != nil {
			return fmt.Errorf("chmod %s: %w", dest, err)
		}
	}
	owner, hasOwner := params["owner"].(string)
	group, hasGroup := params["group"].(string)
	if hasOwner || hasGroup {
		spec := owner
		if hasGroup {
			spec = owner + ":" + group
		}
		if _, err := exec(ctx, fmt.Sprintf("chown %s %s", spec, dest), provider.ExecOptions{}); err != nil {
			return fmt.Errorf("chown %s: %w", dest, err)
		}
	}
	return nil
}

func parentDir(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx <= 0 {
		return ""
	}
	return path[:idx]
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
