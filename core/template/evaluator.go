// Package template implements the Twig/Jinja2-like expression language
// used throughout task files: `{{ expr }}` interpolation inside strings,
// and bare expressions for `when`/`until` control keys.
package template

import (
	"fmt"
	"strings"
)

// RenderTemplate scans text for `{{ ... }}` spans, evaluates each as an
// expression against scope, and substitutes its stringified result. Text
// containing no `{{` is returned unchanged without invoking the parser.
func RenderTemplate(text string, scope Scope) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	var out strings.Builder
	rest := text
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			out.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], "}}")
		if end < 0 {
			return "", fmt.Errorf("unterminated {{ in template: %q", text)
		}
		end += start
		out.WriteString(rest[:start])
		body := strings.TrimSpace(rest[start+2 : end])
		v, err := EvalExpression(body, scope)
		if err != nil {
			return "", fmt.Errorf("evaluating %q: %w", body, err)
		}
		s, err := asString(v)
		if err != nil {
			return "", err
		}
		out.WriteString(s)
		rest = rest[end+2:]
	}
	return out.String(), nil
}

// EvalExpression parses and evaluates a single bare expression (no
// surrounding `{{ }}`) against scope, e.g. the body of a `when` key.
func EvalExpression(exprSrc string, scope Scope) (any, error) {
	e, err := parseExpr(exprSrc)
	if err != nil {
		return nil, fmt.Errorf("parsing expression %q: %w", exprSrc, err)
	}
	return evalNode(e, scope)
}

// EvalObjectValues walks a decoded YAML/JSON value (map[string]any,
// []any, string, or scalar) and renders every string leaf as a
// template against scope, returning a structurally identical copy.
// Non-string leaves pass through unchanged.
func EvalObjectValues(obj any, scope Scope) (any, error) {
	switch v := obj.(type) {
	case string:
		return RenderTemplate(v, scope)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			rv, err := EvalObjectValues(val, scope)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			out[k] = rv
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			rv, err := EvalObjectValues(val, scope)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}

// IterativeOptions configures EvalIterative.
type IterativeOptions struct {
	Scope Scope
	// Deep visits map keys in Go map iteration order, which is
	// unspecified (not the document's key order), merging each key's
	// rendered result into Scope before rendering the keys visited
	// after it; a key sees only the keys visited before it.
	Deep bool
}

// EvalIterative renders value the same way EvalObjectValues does, but
// fails open per leaf: a leaf whose template fails to evaluate is left
// untouched rather than aborting the whole walk. In Deep mode, map keys
// are rendered in the order they're visited and each result is folded
// into the scope under its key name before the next key is rendered,
// so later keys may reference earlier ones.
func EvalIterative(value any, opts IterativeOptions) any {
	scope := opts.Scope
	if scope == nil {
		scope = Scope{}
	}
	switch v := value.(type) {
	case string:
		rendered, err := RenderTemplate(v, scope)
		if err != nil {
			return v
		}
		return rendered
	case map[string]any:
		out := make(map[string]any, len(v))
		workScope := scope
		if opts.Deep {
			workScope = cloneScope(scope)
		}
		for k, val := range v {
			rv := EvalIterative(val, IterativeOptions{Scope: workScope, Deep: opts.Deep})
			out[k] = rv
			if opts.Deep {
				workScope[k] = rv
			}
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = EvalIterative(val, opts)
		}
		return out
	default:
		return v
	}
}

func cloneScope(s Scope) Scope {
	out := make(Scope, len(s)+4)
	for k, v := range s {
		out[k] = v
	}
	return out
}
