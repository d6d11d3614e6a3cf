// Package config loads inventory and task-file documents from YAML or
// JSON bytes into the raw maps and typed structures the core package
// consumes. It is the only layer between on-disk configuration and
// core/inventory, core/task, core/engine; none of those packages import
// encoding/json or gopkg.in/yaml.v3 directly.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/furkankose/katmer/core/errs"
	"github.com/furkankose/katmer/core/types"
)

// TaskFile is one parsed task file: an optional default target pattern
// list, optional per-field defaults merged into every task that omits
// them, and the ordered task list itself.
type TaskFile struct {
	Targets  []string
	Defaults types.Task
	Tasks    []types.Task
}

// taskControlKeys are stripped from a task document before whatever
// single key remains is treated as the module name and its value as
// the module's param bag.
var taskControlKeys = map[string]bool{
	"name": true, "targets": true, "variables": true,
	"register": true,
	"when":     true,
	"until": true, "retries": true, "delay": true,
	"environment": true,
	"become": true, "become_user": true, "become_password": true,
	"allow_failure": true,
	"loop":          true, "loop_var": true, "index_var": true,
	"loop_pause": true, "loop_break_when": true, "loop_label": true,
}

// LoadInventory decodes a YAML or JSON inventory document into the raw
// map[string]any form core/inventory.Normalize consumes.
func LoadInventory(data []byte) (map[string]any, error) {
	return decodeDocument(data)
}

// LoadTaskFile decodes a YAML or JSON task-file document.
func LoadTaskFile(data []byte) (*TaskFile, error) {
	raw, err := decodeDocument(data)
	if err != nil {
		return nil, err
	}

	tf := &TaskFile{}

	if rawTargets, ok := raw["targets"]; ok {
		tf.Targets, err = decodeTargetPatterns(rawTargets)
		if err != nil {
			return nil, &errs.ConfigError{Detail: "task file targets: " + err.Error()}
		}
	}

	if rawDefaults, ok := raw["defaults"].(map[string]any); ok {
		tf.Defaults, err = decodeTask(rawDefaults, types.Task{}, false)
		if err != nil {
			return nil, &errs.ConfigError{Detail: "task file defaults: " + err.Error()}
		}
	}

	rawTasks, _ := raw["tasks"].([]any)
	if len(rawTasks) == 0 {
		return nil, &errs.ConfigError{Detail: "task file declares no tasks"}
	}
	tf.Tasks = make([]types.Task, 0, len(rawTasks))
	for i, rt := range rawTasks {
		m, ok := rt.(map[string]any)
		if !ok {
			return nil, &errs.ConfigError{Detail: fmt.Sprintf("tasks[%d] is not a mapping", i)}
		}
		task, err := decodeTask(m, tf.Defaults, true)
		if err != nil {
			return nil, &errs.ConfigError{Detail: fmt.Sprintf("tasks[%d]: %s", i, err.Error())}
		}
		if len(task.Targets) == 0 {
			task.Targets = tf.Targets
		}
		tf.Tasks = append(tf.Tasks, task)
	}
	return tf, nil
}

func decodeDocument(data []byte) (map[string]any, error) {
	var out map[string]any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, &errs.ConfigError{Detail: "invalid document: " + err.Error()}
	}
	return out, nil
}

func decodeTargetPatterns(raw any) ([]string, error) {
	switch v := raw.(type) {
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("target pattern entries must be strings")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported targets type %T", raw)
	}
}

// decodeTask decodes one task document, layering it over defaults
// (fields the document omits fall back to the corresponding default
// field, module/params excluded — a task always declares its own
// module).
func decodeTask(m map[string]any, defaults types.Task, requireModule bool) (types.Task, error) {
	t := defaults
	t.Params = nil

	if v, ok := m["name"].(string); ok {
		t.Name = v
	}
	if v, ok := m["targets"]; ok {
		patterns, err := decodeTargetPatterns(v)
		if err != nil {
			return t, fmt.Errorf("targets: %w", err)
		}
		t.Targets = patterns
	}
	if v, ok := m["variables"].(map[string]any); ok {
		t.Variables = v
	}
	if v, ok := m["register"].(string); ok {
		t.Register = v
	}
	if v, ok := m["when"].(string); ok {
		t.When = v
	}
	if v, ok := m["until"].(string); ok {
		t.Until = v
	}
	if v, ok := m["retries"]; ok {
		n, err := asInt(v)
		if err != nil {
			return t, fmt.Errorf("retries: %w", err)
		}
		t.Retries = n
	}
	if v, ok := m["delay"]; ok {
		d, err := asDuration(v)
		if err != nil {
			return t, fmt.Errorf("delay: %w", err)
		}
		t.Delay = d
	}
	if v, ok := m["environment"]; ok {
		t.Environment = v
	}
	if err := decodeBecome(m, &t); err != nil {
		return t, err
	}
	if v, ok := m["allow_failure"].(bool); ok {
		t.AllowFailure = v
	}
	if err := decodeLoop(m, &t); err != nil {
		return t, err
	}

	module, params, err := extractModule(m)
	if err != nil {
		if !requireModule {
			return t, nil
		}
		return t, err
	}
	t.Module = module
	t.Params = params
	return t, nil
}

func decodeBecome(m map[string]any, t *types.Task) error {
	raw, ok := m["become"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case bool:
		t.Become = v
	case map[string]any:
		t.Become = true
		if u, ok := v["user"].(string); ok {
			t.BecomeUser = u
		}
		if p, ok := v["password"].(string); ok {
			t.BecomePass = types.NewSecret(p)
		}
	default:
		return fmt.Errorf("become: unsupported type %T", raw)
	}
	if u, ok := m["become_user"].(string); ok {
		t.BecomeUser = u
	}
	if p, ok := m["become_password"].(string); ok {
		t.BecomePass = types.NewSecret(p)
	}
	return nil
}

func decodeLoop(m map[string]any, t *types.Task) error {
	if v, ok := m["loop"]; ok {
		t.Loop = v
	}
	if v, ok := m["loop_var"].(string); ok {
		t.LoopVar = v
	}
	if v, ok := m["index_var"].(string); ok {
		t.IndexVar = v
	}
	if v, ok := m["loop_pause"]; ok {
		d, err := asDuration(v)
		if err != nil {
			return fmt.Errorf("loop_pause: %w", err)
		}
		t.LoopPause = d
	}
	if v, ok := m["loop_break_when"].(string); ok {
		t.LoopBreakWhen = v
	}
	if v, ok := m["loop_label"].(string); ok {
		t.LoopLabel = v
	}
	return nil
}

// extractModule returns the single non-control key remaining in m (the
// module name) and its value coerced to a param map.
func extractModule(m map[string]any) (string, map[string]any, error) {
	var moduleName string
	var rawParams any
	found := 0
	for k, v := range m {
		if taskControlKeys[k] {
			continue
		}
		moduleName = k
		rawParams = v
		found++
	}
	if found == 0 {
		return "", nil, fmt.Errorf("no module key found in task")
	}
	if found > 1 {
		return "", nil, fmt.Errorf("task declares more than one module")
	}

	switch p := rawParams.(type) {
	case nil:
		return moduleName, map[string]any{}, nil
	case map[string]any:
		return moduleName, p, nil
	default:
		return moduleName, map[string]any{"_primary": p}, nil
	}
}

func asInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

// asDuration accepts a millisecond integer or a Go duration string
// ("10ms","1s") — the task-file form favors plain milliseconds for
// until/loop timings (per the spec's worked examples), but either reads.
func asDuration(v any) (time.Duration, error) {
	switch x := v.(type) {
	case int:
		return time.Duration(x) * time.Millisecond, nil
	case int64:
		return time.Duration(x) * time.Millisecond, nil
	case float64:
		return time.Duration(x) * time.Millisecond, nil
	case string:
		d, err := time.ParseDuration(x)
		if err != nil {
			return 0, err
		}
		return d, nil
	default:
		return 0, fmt.Errorf("expected duration, got %T", v)
	}
}
