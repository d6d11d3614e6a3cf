// Package errs defines the typed error categories the engine raises.
// Each category is a distinct struct type so callers can recover it with
// errors.As instead of matching on string content.
package errs

import "fmt"

// ConfigError signals invalid inventory/task configuration: reserved
// keyword misuse, a reference to an undefined child group, and similar
// problems discovered before any task runs.
type ConfigError struct {
	Detail string
}

func (e *ConfigError) Error() string { return "config error: " + e.Detail }

// NoTargetsFoundError is raised when a selection pattern resolves to an
// empty host set.
type NoTargetsFoundError struct {
	Pattern string
}

func (e *NoTargetsFoundError) Error() string {
	return fmt.Sprintf("no targets found for pattern %q", e.Pattern)
}

// ConstraintError is raised by the module constraint solver when a
// platform/arch/root/kernel/binary/package requirement is unmet.
type ConstraintError struct {
	Module string
	Detail string
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("module %s: constraint not satisfied: %s", e.Module, e.Detail)
}

// ExecFailedError wraps a non-zero exit from Exec (never from ExecSafe).
type ExecFailedError struct {
	Command string
	Code    int
	Stderr  string
}

func (e *ExecFailedError) Error() string {
	return fmt.Sprintf("command failed (exit %d): %s: %s", e.Code, e.Command, e.Stderr)
}

// TaskExecutionFailedError is raised when a module returns failed:true
// and the task did not declare allow_failure.
type TaskExecutionFailedError struct {
	Task   string
	Module string
	Msg    string
}

func (e *TaskExecutionFailedError) Error() string {
	name := e.Task
	if name == "" {
		name = e.Module
	}
	return fmt.Sprintf("task %q failed: %s", name, e.Msg)
}

// ConnectionError is raised on transport failure (dial, session open).
type ConnectionError struct {
	Host  string
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.Host, e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }
