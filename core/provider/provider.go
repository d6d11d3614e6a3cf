// Package provider abstracts a single resolved target into a uniform
// command-execution surface. Two concrete variants exist: Local (child
// processes on the controller) and SSH (golang.org/x/crypto/ssh to a
// remote host). Both share the same Executor semantics: shell
// detection/wrapping, line-buffered streaming, a prompt-driven password
// pump for privilege escalation, and per-call timeouts.
package provider

import (
	"context"
	"errors"

	"github.com/hashicorp/go-hclog"

	"github.com/furkankose/katmer/core/errs"
	"github.com/furkankose/katmer/core/invariant"
	"github.com/furkankose/katmer/core/types"
)

// Executor is a bound callable returned by Provider.Executor: it runs
// one command against the provider's target using the options baked in
// at bind time, merged with any per-call overrides.
type Executor func(ctx context.Context, command string, perCall ExecOptions) (ExecResult, error)

// Provider is the runtime object bound to a single resolved target. The
// resolver owns provider instances; callers never construct one
// directly except through Resolve.
type Provider interface {
	// Check validates the host descriptor without opening a connection.
	Check() error
	// Initialize acquires client resources (e.g. parses SSH auth).
	Initialize() error
	// Connect opens the session.
	Connect(ctx context.Context) error
	// EnsureReady runs check/initialize once and connect/probe/shell
	// decision once, idempotently, in the order defined by the spec.
	EnsureReady(ctx context.Context) error

	// GetOsInfo returns the normalized OS descriptor probed during
	// EnsureReady. Safe to call only after EnsureReady.
	GetOsInfo() types.OsInfo
	// DefaultShell returns the shell chosen by decideDefaultShell
	// during EnsureReady.
	DefaultShell() string

	// Executor returns a bound callable for running commands against
	// this provider, with opts as the baseline for every call.
	Executor(opts ExecutorOptions) Executor

	// Type reports "ssh" or "local".
	Type() types.ConnectionKind
	// Target returns the underlying target descriptor.
	Target() types.Target
	// Variables returns the provider's merged variable bag (inventory
	// variables plus anything injected by the resolver at cache-miss
	// time).
	Variables() map[string]any
	// Environment returns the provider-level environment, rendered to
	// strings, that every Executor call layers underneath task/call
	// environment per the spec's merge order.
	Environment() map[string]string

	// Destroy tears the connection down; the provider may be
	// reconnected afterward via Connect.
	Destroy() error
	// Cleanup releases all resources permanently.
	Cleanup() error
	// SafeShutdown runs Destroy then Cleanup, logging and swallowing
	// any errors from either.
	SafeShutdown()

	Logger() hclog.Logger
}

// ExecutorOptions configures a bound Executor at Provider.Executor time.
type ExecutorOptions struct {
	Cwd    string
	Shell  string // "bash","zsh","sh","dash","ksh","mksh","fish","powershell","cmd","none"
	Env    map[string]string
	Become *BecomeOptions

	// RewriteCommand, when set, wraps the prepared command string
	// before shell-wrapping is applied. Task Controls (become) use
	// this to prepend `sudo -S -p '<marker>' [-u user]`.
	RewriteCommand func(prepared string) string
}

// BecomeOptions configures the prompt-driven password pump used by
// privilege escalation.
type BecomeOptions struct {
	User                string
	InteractivePassword string
	PromptMarker        string
	HidePromptLine       bool
}

// ExecOptions are the per-call overrides layered on top of
// ExecutorOptions for one Executor invocation.
type ExecOptions struct {
	Cwd      string
	Shell    string
	Timeout  int // milliseconds; 0 = no timeout
	Env      map[string]string
	OnStdout func(line string)
	OnStderr func(line string)
}

// ExecResult is the normalized outcome of one Executor call.
type ExecResult struct {
	Command string
	Code    int
	Stdout  string
	Stderr  string
}

// execFailed builds the typed error an Executor returns for a non-zero
// exit, carrying the full result so callers (execSafe, the task
// executor) can recover it without reparsing the error string.
func execFailed(res ExecResult) error {
	return &errs.ExecFailedError{Command: res.Command, Code: res.Code, Stderr: res.Stderr}
}

// ExecSafe wraps an Executor so it never returns an error: non-zero
// exits are returned as values in ExecResult instead.
func ExecSafe(exec Executor) Executor {
	return func(ctx context.Context, command string, perCall ExecOptions) (ExecResult, error) {
		res, err := exec(ctx, command, perCall)
		if err != nil {
			var failed *errs.ExecFailedError
			if errors.As(err, &failed) {
				return ExecResult{Command: command, Code: failed.Code, Stderr: failed.Stderr, Stdout: res.Stdout}, nil
			}
			return ExecResult{Command: command, Code: 1, Stderr: err.Error()}, nil
		}
		return res, nil
	}
}

func mergeEnv(layers ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}

func childLogger(base hclog.Logger, target types.Target) hclog.Logger {
	invariant.NotNil(base, "base logger")
	return base.Named("provider").With("target", target.Name, "connection", string(target.Connection))
}
