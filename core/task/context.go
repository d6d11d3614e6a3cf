// Package task implements Task Controls (the ordered cross-cutting
// wrapper stack: loop, environment, when, register, until, become) and
// the Task Executor that drives a module through its lifecycle against
// a resolved target. Grounded on the teacher's middleware-style
// decorator composition in core/decorator, reworked per REDESIGN FLAGS
// into explicit ordered wrapper functions instead of mutable rewriting.
package task

import (
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/furkankose/katmer/core/module"
	"github.com/furkankose/katmer/core/provider"
	"github.com/furkankose/katmer/core/types"
)

// Context carries everything one task-target execution needs across
// the control stack and into the module. Variables is task-local scope:
// controls read and mutate it (loop vars, registered results) between
// pipeline stages.
type Context struct {
	RunID  uuid.UUID
	Logger hclog.Logger

	Task     types.Task
	Target   types.Target
	Provider provider.Provider

	Variables map[string]any

	Module    module.Module
	ModuleCtx *module.Context

	Exec     provider.Executor
	ExecSafe provider.Executor

	execOpts provider.ExecutorOptions
}

// rebuildExec re-derives Exec/ExecSafe from the provider using the
// current execOpts. Controls that change shell/env/become settings call
// this after mutating execOpts so every subsequent ctx.exec call picks
// up the change.
func (c *Context) rebuildExec() {
	c.Exec = c.Provider.Executor(c.execOpts)
	c.ExecSafe = provider.ExecSafe(c.Exec)
	if c.ModuleCtx != nil {
		c.ModuleCtx.Exec = c.Exec
	}
}

// NewContext builds a fresh Context for one task-target pair. variables
// is the starting scope: a merge of provider variables, task variables,
// and any inherited run-level variables; callers own that merge.
func NewContext(runID uuid.UUID, logger hclog.Logger, t types.Task, target types.Target, p provider.Provider, variables map[string]any) *Context {
	c := &Context{
		RunID:     runID,
		Logger:    logger,
		Task:      t,
		Target:    target,
		Provider:  p,
		Variables: variables,
	}
	c.execOpts = provider.ExecutorOptions{}
	c.rebuildExec()
	return c
}
