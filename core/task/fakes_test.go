package task

import (
	"context"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/furkankose/katmer/core/module"
	"github.com/furkankose/katmer/core/provider"
	"github.com/furkankose/katmer/core/types"
)

// fakeProvider is a minimal provider.Provider stub for control-stack
// tests: it records the ExecutorOptions used for the most recent
// Executor() call and returns a scripted Executor.
type fakeProvider struct {
	target      types.Target
	environment map[string]string
	variables   map[string]any
	exec        provider.Executor
	lastOpts    provider.ExecutorOptions
}

func (f *fakeProvider) Check() error                   { return nil }
func (f *fakeProvider) Initialize() error               { return nil }
func (f *fakeProvider) Connect(ctx context.Context) error { return nil }
func (f *fakeProvider) EnsureReady(ctx context.Context) error { return nil }
func (f *fakeProvider) GetOsInfo() types.OsInfo         { return types.OsInfo{Family: types.FamilyLinux} }
func (f *fakeProvider) DefaultShell() string            { return "bash" }
func (f *fakeProvider) Executor(opts provider.ExecutorOptions) provider.Executor {
	f.lastOpts = opts
	inner := f.exec
	if inner == nil {
		inner = func(ctx context.Context, command string, perCall provider.ExecOptions) (provider.ExecResult, error) {
			return provider.ExecResult{Command: command}, nil
		}
	}
	return func(ctx context.Context, command string, perCall provider.ExecOptions) (provider.ExecResult, error) {
		if opts.RewriteCommand != nil {
			command = opts.RewriteCommand(command)
		}
		return inner(ctx, command, perCall)
	}
}
func (f *fakeProvider) Type() types.ConnectionKind     { return f.target.Connection }
func (f *fakeProvider) Target() types.Target           { return f.target }
func (f *fakeProvider) Variables() map[string]any      { return f.variables }
func (f *fakeProvider) Environment() map[string]string { return f.environment }
func (f *fakeProvider) Destroy() error                 { return nil }
func (f *fakeProvider) Cleanup() error                 { return nil }
func (f *fakeProvider) SafeShutdown()                  {}
func (f *fakeProvider) Logger() hclog.Logger            { return hclog.NewNullLogger() }

// fakeModule is a module.Module stub whose Execute delegates to a
// caller-supplied function, so tests can script per-call results.
type fakeModule struct {
	name      string
	executeFn func(ctx context.Context, mc *module.Context) (types.ModuleResult, error)
}

func (m *fakeModule) Name() string                 { return m.name }
func (m *fakeModule) Constraints() *module.Constraints { return nil }
func (m *fakeModule) Schema() map[string]any       { return nil }
func (m *fakeModule) Check(ctx context.Context, mc *module.Context) error       { return nil }
func (m *fakeModule) Initialize(ctx context.Context, mc *module.Context) error  { return nil }
func (m *fakeModule) Cleanup(ctx context.Context, mc *module.Context) error     { return nil }
func (m *fakeModule) Execute(ctx context.Context, mc *module.Context) (types.ModuleResult, error) {
	return m.executeFn(ctx, mc)
}

func newTestContext(tsk types.Task, p *fakeProvider, mod module.Module, variables map[string]any) *Context {
	tc := NewContext(uuid.New(), hclog.NewNullLogger(), tsk, p.target, p, variables)
	tc.Module = mod
	tc.ModuleCtx = &module.Context{
		Task:      tsk,
		Target:    p.target,
		Provider:  p,
		Variables: variables,
		Params:    tsk.Params,
		Exec:      tc.Exec,
	}
	return tc
}
