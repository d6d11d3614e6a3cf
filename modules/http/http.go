// Package http implements the "http" module: issues a GET or POST from
// the controller (not the target) and asserts on the response status
// and optionally its body, for webhook-style notification tasks.
package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/furkankose/katmer/core/module"
	"github.com/furkankose/katmer/core/types"
)

func init() {
	module.Register("http", func() module.Module { return &Module{} })
}

// httpDoer abstracts http.Client.Do so tests can substitute a fake
// round tripper without a real network call.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Module issues one HTTP request and reports changed:true whenever the
// request was actually sent (it has no target-side state to compare
// against, so every successful run is reported as a change).
type Module struct {
	Client httpDoer
}

func (m *Module) Name() string { return "http" }

func (m *Module) Constraints() *module.Constraints { return nil }

func (m *Module) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"url"},
		"properties": map[string]any{
			"url":             map[string]any{"type": "string"},
			"method":          map[string]any{"type": "string", "enum": []any{"GET", "POST", "PUT", "DELETE"}},
			"body":            map[string]any{"type": "string"},
			"headers":         map[string]any{"type": "object"},
			"expect_status":   map[string]any{"type": "integer"},
			"expect_contains": map[string]any{"type": "string"},
			"timeout_ms":      map[string]any{"type": "integer"},
		},
	}
}

func (m *Module) Check(ctx context.Context, mc *module.Context) error      { return nil }
func (m *Module) Initialize(ctx context.Context, mc *module.Context) error { return nil }
func (m *Module) Cleanup(ctx context.Context, mc *module.Context) error    { return nil }

func (m *Module) Execute(ctx context.Context, mc *module.Context) (types.ModuleResult, error) {
	url, _ := mc.Params["url"].(string)
	method, _ := mc.Params["method"].(string)
	if method == "" {
		method = "GET"
	}
	body, _ := mc.Params["body"].(string)

	timeoutMs, _ := asInt(mc.Params["timeout_ms"])
	if timeoutMs == 0 {
		timeoutMs = 30000
	}
	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, url, strings.NewReader(body))
	if err != nil {
		return types.ModuleResult{Failed: true, Msg: fmt.Sprintf("build request: %v", err)}, nil
	}
	if headers, ok := mc.Params["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.Header.Set(k, s)
			}
		}
	}

	client := m.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return types.ModuleResult{Failed: true, Msg: fmt.Sprintf("request failed: %v", err)}, nil
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if expect, ok := asInt(mc.Params["expect_status"]); ok && expect != 0 && resp.StatusCode != expect {
		return types.ModuleResult{
			Failed: true,
			Msg:    fmt.Sprintf("expected status %d, got %d", expect, resp.StatusCode),
			Stdout: string(respBody),
		}, nil
	}
	if needle, ok := mc.Params["expect_contains"].(string); ok && needle != "" && !strings.Contains(string(respBody), needle) {
		return types.ModuleResult{
			Failed: true,
			Msg:    fmt.Sprintf("response does not contain %q", needle),
			Stdout: string(respBody),
		}, nil
	}

	return types.ModuleResult{
		Changed: true,
		Msg:     fmt.Sprintf("%s %s -> %d", method, url, resp.StatusCode),
		Stdout:  string(respBody),
	}, nil
}

func asInt(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
