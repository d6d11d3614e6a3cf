package inventory

import (
	"sort"
	"strings"

	wildcard "github.com/IGLOU-EU/go-wildcard/v2"

	"github.com/furkankose/katmer/core/errs"
)

type patternToken struct {
	text string
	kind tokenKind
}

type tokenKind int

const (
	tokenInclude tokenKind = iota
	tokenExclude
	tokenIntersect
)

// parsePattern splits a comma/colon-delimited pattern string into its
// include/exclude/intersect tokens, rewriting the `all` keyword to `*`.
func parsePattern(pattern string) []patternToken {
	var toks []patternToken
	for _, part := range splitPattern(pattern) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		switch {
		case strings.HasPrefix(part, "!"):
			toks = append(toks, patternToken{rewriteAll(part[1:]), tokenExclude})
		case strings.HasPrefix(part, "@"):
			toks = append(toks, patternToken{rewriteAll(part[1:]), tokenIntersect})
		default:
			toks = append(toks, patternToken{rewriteAll(part), tokenInclude})
		}
	}
	return toks
}

func rewriteAll(s string) string {
	if s == "all" {
		return "*"
	}
	return s
}

func splitPattern(pattern string) []string {
	return strings.FieldsFunc(pattern, func(r rune) bool { return r == ',' || r == ':' })
}

// Resolve evaluates pattern against the inventory, returning the
// resolved set of hostnames in insertion-stable order. An empty result
// is a NoTargetsFoundError.
func (inv *Inventory) Resolve(pattern string) ([]string, error) {
	toks := parsePattern(pattern)

	var includes, excludes, intersects []string
	for _, t := range toks {
		switch t.kind {
		case tokenInclude:
			includes = append(includes, t.text)
		case tokenExclude:
			excludes = append(excludes, t.text)
		case tokenIntersect:
			intersects = append(intersects, t.text)
		}
	}

	matchesAny := func(name string, pats []string) bool {
		for _, p := range pats {
			if wildcard.Match(p, name) {
				return true
			}
		}
		return false
	}

	// 1. Candidate labels: every name not excluded, matching at least
	// one include (or all names, if no includes were given).
	var labels []string
	for _, name := range inv.AllNames {
		if matchesAny(name, excludes) {
			continue
		}
		if len(includes) == 0 || matchesAny(name, includes) {
			labels = append(labels, name)
		}
	}

	// 2. Expand labels to hostnames, then re-apply exclusions.
	hostSet := map[string]bool{}
	var order []string
	addHost := func(name string) {
		if hostSet[name] {
			return
		}
		hostSet[name] = true
		order = append(order, name)
	}
	for _, label := range labels {
		if g, ok := inv.Groups[label]; ok {
			names := make([]string, 0, len(g.Hosts))
			for h := range g.Hosts {
				names = append(names, h)
			}
			sort.Strings(names)
			for _, h := range names {
				addHost(h)
			}
			continue
		}
		if _, ok := inv.Hosts[label]; ok {
			addHost(label)
		}
	}
	if len(excludes) > 0 {
		filtered := order[:0:0]
		for _, h := range order {
			if !matchesAny(h, excludes) {
				filtered = append(filtered, h)
			}
		}
		order = filtered
	}

	// 3. Apply intersections on the final hostname set.
	if len(intersects) > 0 {
		filtered := order[:0:0]
		for _, h := range order {
			if matchesAny(h, intersects) {
				filtered = append(filtered, h)
			}
		}
		order = filtered
	}

	if len(order) == 0 {
		return nil, &errs.NoTargetsFoundError{Pattern: pattern}
	}
	return order, nil
}
