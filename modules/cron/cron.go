// Package cron implements the "cron" module: idempotent crontab line
// management. The schedule is validated with robfig/cron/v3's standard
// parser before ever touching the target, so a malformed expression
// fails fast in Check rather than after a crontab write.
package cron

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/furkankose/katmer/core/module"
	"github.com/furkankose/katmer/core/provider"
	"github.com/furkankose/katmer/core/types"
)

func init() {
	module.Register("cron", func() module.Module { return &Module{} })
}

// Module adds, updates, or removes one crontab entry, identified by a
// marker comment so re-runs can find and replace their own line.
type Module struct{}

func (m *Module) Name() string { return "cron" }

func (m *Module) Constraints() *module.Constraints {
	return &module.Constraints{Binaries: []module.BinaryConstraint{{Names: []string{"crontab"}}}}
}

func (m *Module) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"name", "job"},
		"properties": map[string]any{
			"name":     map[string]any{"type": "string"},
			"job":      map[string]any{"type": "string"},
			"schedule": map[string]any{"type": "string"},
			"state":    map[string]any{"type": "string", "enum": []any{"present", "absent"}},
		},
	}
}

func (m *Module) Check(ctx context.Context, mc *module.Context) error {
	state, _ := mc.Params["state"].(string)
	if state == "absent" {
		return nil
	}
	schedule, _ := mc.Params["schedule"].(string)
	if schedule == "" {
		return fmt.Errorf("schedule is required unless state is absent")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return nil
}

func (m *Module) Initialize(ctx context.Context, mc *module.Context) error { return nil }
func (m *Module) Cleanup(ctx context.Context, mc *module.Context) error    { return nil }

func marker(name string) string {
	return fmt.Sprintf("# katmer:cron:%s", name)
}

func (m *Module) Execute(ctx context.Context, mc *module.Context) (types.ModuleResult, error) {
	name, _ := mc.Params["name"].(string)
	job, _ := mc.Params["job"].(string)
	schedule, _ := mc.Params["schedule"].(string)
	state, _ := mc.Params["state"].(string)
	if state == "" {
		state = "present"
	}

	current, err := readCrontab(ctx, mc.Exec)
	if err != nil {
		return types.ModuleResult{Failed: true, Msg: fmt.Sprintf("read crontab: %v", err)}, nil
	}

	lines := strings.Split(current, "\n")
	out := make([]string, 0, len(lines)+2)
	found := false
	wantLine := marker(name)
	wantEntry := fmt.Sprintf("%s %s", schedule, job)

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if strings.TrimSpace(line) != wantLine {
			out = append(out, line)
			continue
		}
		// This marker owns the following line (the actual cron entry).
		found = true
		if i+1 < len(lines) {
			i++ // skip the old entry line; it is rewritten below if present
		}
		if state == "present" {
			out = append(out, wantLine, wantEntry)
		}
	}

	var changed bool
	switch state {
	case "present":
		if !found {
			out = append(out, wantLine, wantEntry)
			changed = true
		} else {
			changed = !containsEntry(current, wantEntry)
		}
	case "absent":
		changed = found
	default:
		return types.ModuleResult{Failed: true, Msg: "state must be present or absent, got " + state}, nil
	}

	if !changed {
		return types.ModuleResult{Changed: false, Msg: fmt.Sprintf("cron entry %q already up to date", name)}, nil
	}

	newCrontab := strings.TrimLeft(strings.Join(out, "\n"), "\n")
	if newCrontab != "" && !strings.HasSuffix(newCrontab, "\n") {
		newCrontab += "\n"
	}
	if err := writeCrontab(ctx, mc.Exec, newCrontab); err != nil {
		return types.ModuleResult{Failed: true, Msg: fmt.Sprintf("write crontab: %v", err)}, nil
	}
	return types.ModuleResult{Changed: true, Msg: fmt.Sprintf("cron entry %q %s", name, state)}, nil
}

func containsEntry(crontab, entry string) bool {
	return strings.Contains(crontab, entry)
}

func readCrontab(ctx context.Context, exec provider.Executor) (string, error) {
	res, err := exec(ctx, "crontab -l 2>/dev/null", provider.ExecOptions{})
	if err != nil {
		// An empty crontab makes `crontab -l` exit non-zero; treat that
		// as an empty table rather than a failure.
		return "", nil
	}
	return res.Stdout, nil
}

func writeCrontab(ctx context.Context, exec provider.Executor, contents string) error {
	encoded := base64.StdEncoding.EncodeToString([]byte(contents))
	cmd := fmt.Sprintf("printf '%%s' '%s' | base64 -d | crontab -", encoded)
	_, err := exec(ctx, cmd, provider.ExecOptions{})
	return err
}
