// Package script implements the "script" module: uploads a local
// script file to the target and executes it, always reporting
// changed:true since a script's effects are opaque to the engine.
package script

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/furkankose/katmer/core/module"
	"github.com/furkankose/katmer/core/provider"
	"github.com/furkankose/katmer/core/types"
)

func init() {
	module.Register("script", func() module.Module { return &Module{} })
}

// Module uploads src to a temp path on the target and runs it with
// args, deleting the temp file afterward regardless of exit status.
type Module struct{}

func (m *Module) Name() string { return "script" }

func (m *Module) Constraints() *module.Constraints { return nil }

func (m *Module) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"src"},
		"properties": map[string]any{
			"src":  map[string]any{"type": "string"},
			"args": map[string]any{"type": "string"},
		},
	}
}

func (m *Module) Check(ctx context.Context, mc *module.Context) error      { return nil }
func (m *Module) Initialize(ctx context.Context, mc *module.Context) error { return nil }
func (m *Module) Cleanup(ctx context.Context, mc *module.Context) error    { return nil }

func (m *Module) Execute(ctx context.Context, mc *module.Context) (types.ModuleResult, error) {
	src, _ := mc.Params["src"].(string)
	args, _ := mc.Params["args"].(string)

	body, err := os.ReadFile(src)
	if err != nil {
		return types.ModuleResult{Failed: true, Msg: fmt.Sprintf("read script %s: %v", src, err)}, nil
	}

	remotePath := fmt.Sprintf("/tmp/katmer-script-%s", randomSuffix())
	encoded := base64.StdEncoding.EncodeToString(body)
	uploadCmd := fmt.Sprintf("printf '%%s' '%s' | base64 -d > %s && chmod +x %s", encoded, remotePath, remotePath)
	if _, err := mc.Exec(ctx, uploadCmd, provider.ExecOptions{}); err != nil {
		return types.ModuleResult{Failed: true, Msg: fmt.Sprintf("upload script: %v", err)}, nil
	}
	defer mc.Exec(ctx, "rm -f "+remotePath, provider.ExecOptions{})

	runCmd := remotePath
	if args != "" {
		runCmd = remotePath + " " + args
	}
	res, err := mc.Exec(ctx, runCmd, provider.ExecOptions{})
	if err != nil {
		return types.ModuleResult{Failed: true, Msg: err.Error(), Stdout: res.Stdout, Stderr: res.Stderr}, nil
	}
	return types.ModuleResult{Changed: true, Msg: fmt.Sprintf("ran %s", src), Stdout: res.Stdout, Stderr: res.Stderr}, nil
}

// randomSuffix gives each script run a distinct temp path, combining
// the controller pid and a nanosecond timestamp.
func randomSuffix() string {
	return fmt.Sprintf("%d-%d", os.Getpid(), time.Now().UnixNano())
}
