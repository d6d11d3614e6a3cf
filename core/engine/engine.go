// Package engine is the core entry point: Run drives a sequence of task
// files against a normalized target inventory. It imports only
// core/inventory, core/task, and core/types from this module — config
// loading (YAML/JSON) and the CLI live above it in core/config and
// cmd/katmer respectively, per the spec's out-of-scope note.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/furkankose/katmer/core/inventory"
	"github.com/furkankose/katmer/core/task"
	"github.com/furkankose/katmer/core/types"
)

// TargetsConfig is the raw, normalized-on-demand inventory document:
// root form {hosts,...} or grouped form {<group>: {...}, ...}.
type TargetsConfig map[string]any

// TaskFile is one file's worth of tasks to run against the inventory,
// already decoded by core/config (or hand-built by a caller/test).
type TaskFile struct {
	Targets  []string
	Defaults types.Task
	Tasks    []types.Task
}

// TaskRunReport is one task's outcome across every target it resolved.
type TaskRunReport struct {
	Task    string
	Targets []task.TargetResult
	Err     error
}

// RunReport is the full outcome of Run: every task file's task reports
// in file and task order, plus the overall pass/fail verdict.
type RunReport struct {
	RunID    uuid.UUID
	Start    time.Time
	End      time.Time
	TaskRuns []TaskRunReport
	Failed   bool
}

// Run normalizes cfg into an inventory, builds a resolver, and executes
// every task file's tasks in declared order, stopping the whole run at
// the first TaskExecutionFailedError not suppressed by allow_failure.
// Providers constructed along the way are torn down via safeShutdown
// before Run returns, success or failure.
func Run(ctx context.Context, logger hclog.Logger, cfg TargetsConfig, files []TaskFile) (*RunReport, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	inv, err := inventory.Normalize(map[string]any(cfg))
	if err != nil {
		return nil, err
	}
	runID := uuid.New()
	logger = logger.With("run_id", runID.String())
	resolver := inventory.NewResolver(inv, logger.Named("resolver"))
	defer resolver.Dispose()

	report := &RunReport{RunID: runID, Start: time.Now().UTC()}
	runVariables := map[string]any{}

	for _, file := range files {
		for _, t := range file.Tasks {
			if err := ctx.Err(); err != nil {
				report.Failed = true
				report.End = time.Now().UTC()
				return report, err
			}
			results, runErr := task.Run(ctx, report.RunID, logger.Named("task").With("task", t.Name), resolver, t, runVariables)
			report.TaskRuns = append(report.TaskRuns, TaskRunReport{Task: t.Name, Targets: results, Err: runErr})
			if runErr != nil {
				report.Failed = true
				report.End = time.Now().UTC()
				return report, runErr
			}
		}
	}

	report.End = time.Now().UTC()
	return report, nil
}
