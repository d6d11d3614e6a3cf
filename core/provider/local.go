package provider

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/furkankose/katmer/core/invariant"
	"github.com/furkankose/katmer/core/types"
)

// LocalProvider runs commands as child processes on the controller,
// grounded on the teacher's LocalSession (os/exec, environment
// copy-on-write).
type LocalProvider struct {
	target types.Target
	logger hclog.Logger

	mu          sync.Mutex
	initialized bool
	connected   bool
	osInfo      types.OsInfo
	shell       string
	variables   map[string]any
}

// NewLocalProvider constructs a provider for a local target. Called
// only by the resolver on provider-cache miss.
func NewLocalProvider(target types.Target, logger hclog.Logger) *LocalProvider {
	invariant.Precondition(target.Connection == types.ConnectionLocal, "NewLocalProvider requires a local target")
	return &LocalProvider{
		target:    target,
		logger:    childLogger(logger, target),
		variables: cloneAnyMap(target.Variables),
	}
}

func (p *LocalProvider) Type() types.ConnectionKind { return types.ConnectionLocal }
func (p *LocalProvider) Target() types.Target       { return p.target }
func (p *LocalProvider) Variables() map[string]any  { return p.variables }
func (p *LocalProvider) Logger() hclog.Logger        { return p.logger }

func (p *LocalProvider) Environment() map[string]string {
	return cloneStringMap(p.target.Environment)
}

func (p *LocalProvider) Check() error {
	return nil
}

func (p *LocalProvider) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.initialized = true
	return nil
}

func (p *LocalProvider) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = true
	return nil
}

func (p *LocalProvider) EnsureReady(ctx context.Context) error {
	p.mu.Lock()
	initialized := p.initialized
	connected := p.connected
	p.mu.Unlock()

	if !initialized {
		if err := p.Check(); err != nil {
			return err
		}
		if err := p.Initialize(); err != nil {
			return err
		}
	}
	if !connected {
		if err := p.Connect(ctx); err != nil {
			return err
		}
		info := probeOsInfo(ctx, p.rawExec)
		shell := decideDefaultShell(info.Family, p.rawExec)
		p.mu.Lock()
		p.osInfo = info
		p.shell = shell
		p.mu.Unlock()
	}
	return nil
}

func (p *LocalProvider) GetOsInfo() types.OsInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.osInfo
}

func (p *LocalProvider) DefaultShell() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shell
}

func (p *LocalProvider) Executor(opts ExecutorOptions) Executor {
	return func(ctx context.Context, command string, perCall ExecOptions) (ExecResult, error) {
		shell := opts.Shell
		if perCall.Shell != "" {
			shell = perCall.Shell
		}
		if shell == "" {
			shell = p.DefaultShell()
		}
		cwd := opts.Cwd
		if perCall.Cwd != "" {
			cwd = perCall.Cwd
		}
		env := mergeEnv(envToMap(os.Environ()), p.Environment(), opts.Env, perCall.Env)
		prepared := shellWrap(command, cwd, shell, opts.RewriteCommand)

		handle, err := p.spawn(ctx, prepared, cwd, env)
		if err != nil {
			res := ExecResult{Command: command, Code: 1, Stderr: err.Error()}
			return res, execFailed(res)
		}
		res := runExec(ctx, command, perCall.Timeout, opts.Become, perCall.OnStdout, perCall.OnStderr, handle)
		if res.Code != 0 {
			return res, execFailed(res)
		}
		return res, nil
	}
}

func (p *LocalProvider) spawn(ctx context.Context, prepared, cwd string, env map[string]string) (processHandle, error) {
	argv := []string{"/bin/sh", "-c", prepared}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if cwd != "" {
		cmd.Dir = cwd
	}
	cmd.Env = mapToEnv(env)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return processHandle{}, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return processHandle{}, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return processHandle{}, err
	}
	if err := cmd.Start(); err != nil {
		return processHandle{}, err
	}

	return processHandle{
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
		Wait: func() (int, error) {
			err := cmd.Wait()
			if err == nil {
				return 0, nil
			}
			var exitErr *exec.ExitError
			if ok := asExitError(err, &exitErr); ok {
				return exitErr.ExitCode(), nil
			}
			return -1, err
		},
		Kill: func() {
			if cmd.Process != nil {
				_ = cmd.Process.Kill()
			}
		},
	}, nil
}

// rawExec is used internally for OS probing and shell detection: it
// never shell-wraps (the script already targets a specific shell) and
// never treats non-zero exit as failure, since probes legitimately
// try one shell after another.
func (p *LocalProvider) rawExec(ctx context.Context, shell, script string) (string, error) {
	handle, err := p.spawn(ctx, script, "", envToMap(os.Environ()))
	if err != nil {
		return "", err
	}
	res := runExec(ctx, script, 10_000, nil, nil, nil, handle)
	return res.Stdout, nil
}

func (p *LocalProvider) Destroy() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
	return nil
}

func (p *LocalProvider) Cleanup() error {
	return nil
}

func (p *LocalProvider) SafeShutdown() {
	if err := p.Destroy(); err != nil {
		p.logger.Warn("destroy failed", "error", err)
	}
	if err := p.Cleanup(); err != nil {
		p.logger.Warn("cleanup failed", "error", err)
	}
}

func asExitError(err error, target **exec.ExitError) bool {
	if e, ok := err.(*exec.ExitError); ok {
		*target = e
		return true
	}
	return false
}

func envToMap(environ []string) map[string]string {
	out := make(map[string]string, len(environ))
	for _, kv := range environ {
		if idx := strings.IndexByte(kv, '='); idx > 0 {
			out[kv[:idx]] = kv[idx+1:]
		}
	}
	return out
}

func mapToEnv(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

func cloneStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneAnyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
