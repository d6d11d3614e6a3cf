// Package inventory normalizes grouped/ungrouped host configuration
// into a flat host/group index and resolves selection patterns against
// it, then hands resolved targets to the provider cache. Grounded on
// the teacher's decorator Registry (predictable construction, explicit
// ownership) generalized to the spec's inventory normalization
// algorithm.
package inventory

import (
	"fmt"
	"sort"

	"github.com/furkankose/katmer/core/errs"
	"github.com/furkankose/katmer/core/types"
)

var reservedKeys = map[string]bool{
	"all": true, "children": true, "settings": true,
	"hosts": true, "variables": true, "environment": true,
}

const ungroupedName = "ungrouped"

// Inventory is the normalized result: every name (host or group) known
// to pattern resolution, plus the group and host indexes.
type Inventory struct {
	AllNames []string
	Groups   map[string]types.Group
	Hosts    map[string]types.Target
}

// rawGroup is one group's raw (pre-normalization) input.
type rawGroup struct {
	Hosts       map[string]map[string]any
	Settings    map[string]any
	Variables   map[string]any
	Environment map[string]any
	Children    []string
}

// Normalize builds an Inventory from one decoded YAML/JSON document.
// The document is either root form ({hosts, settings?, variables?,
// environment?}, implicitly the "ungrouped" group) or grouped form
// ({<group>: {...}, ...}).
func Normalize(doc map[string]any) (*Inventory, error) {
	groups, err := splitIntoGroups(doc)
	if err != nil {
		return nil, err
	}

	hosts := make(map[string]types.Target)
	groupHosts := make(map[string]map[string]bool, len(groups))

	for name, g := range groups {
		groupHosts[name] = make(map[string]bool, len(g.Hosts))
		for hostName, raw := range g.Hosts {
			if reservedKeys[hostName] {
				return nil, &errs.ConfigError{Detail: fmt.Sprintf("host name %q is a reserved keyword", hostName)}
			}
			target, err := decodeHostInput(hostName, raw)
			if err != nil {
				return nil, err
			}
			applySettings(&target, g.Settings)
			target.Variables = deepMergeAnyFill(target.Variables, g.Variables)
			target.Environment = mergeStringLayer(target.Environment, g.Environment)
			hosts[hostName] = target
			groupHosts[name][hostName] = true
		}
	}

	// Resolve children: fold each parent's settings/variables/environment
	// into every host reachable (directly or transitively) through its
	// child groups, and fold the child hosts into the parent's own
	// membership set for pattern resolution. Keys already set by a more
	// specific (child) scope are not overwritten by the ancestor — this
	// is the inheritance-priority decision recorded in DESIGN.md.
	for name, g := range groups {
		for _, childName := range g.Children {
			child, ok := groups[childName]
			if !ok {
				return nil, &errs.ConfigError{Detail: fmt.Sprintf("group %q references undefined child group %q", name, childName)}
			}
			_ = child
			for hostName := range collectTransitiveHosts(childName, groups, groupHosts) {
				t := hosts[hostName]
				applyAncestorSettings(&t, g.Settings)
				t.Variables = deepMergeAnyFill(t.Variables, g.Variables)
				t.Environment = mergeStringLayerFill(t.Environment, g.Environment)
				hosts[hostName] = t
				groupHosts[name][hostName] = true
			}
		}
	}

	groupsOut := make(map[string]types.Group, len(groups))
	for name, g := range groups {
		groupsOut[name] = types.Group{
			Name:        name,
			Hosts:       groupHosts[name],
			Settings:    g.Settings,
			Variables:   g.Variables,
			Environment: asStringMap(g.Environment),
			Children:    g.Children,
		}
	}

	allSet := make(map[string]bool, len(hosts)+len(groupsOut))
	for h := range hosts {
		allSet[h] = true
	}
	for g := range groupsOut {
		allSet[g] = true
	}
	allNames := make([]string, 0, len(allSet))
	for n := range allSet {
		allNames = append(allNames, n)
	}
	sort.Strings(allNames)

	return &Inventory{AllNames: allNames, Groups: groupsOut, Hosts: hosts}, nil
}

func splitIntoGroups(doc map[string]any) (map[string]rawGroup, error) {
	groups := make(map[string]rawGroup)
	if isRootForm(doc) {
		g, err := decodeRawGroup(doc)
		if err != nil {
			return nil, err
		}
		groups[ungroupedName] = g
		return groups, nil
	}
	for name, v := range doc {
		if reservedKeys[name] {
			return nil, &errs.ConfigError{Detail: fmt.Sprintf("group name %q is a reserved keyword", name)}
		}
		body, ok := v.(map[string]any)
		if !ok {
			return nil, &errs.ConfigError{Detail: fmt.Sprintf("group %q must be an object", name)}
		}
		g, err := decodeRawGroup(body)
		if err != nil {
			return nil, err
		}
		groups[name] = g
	}
	return groups, nil
}

func isRootForm(doc map[string]any) bool {
	for _, k := range []string{"hosts", "settings", "variables", "environment"} {
		if _, ok := doc[k]; ok {
			return true
		}
	}
	return false
}

func decodeRawGroup(body map[string]any) (rawGroup, error) {
	g := rawGroup{Hosts: map[string]map[string]any{}}
	if raw, ok := body["hosts"]; ok {
		m, ok := raw.(map[string]any)
		if !ok {
			return g, &errs.ConfigError{Detail: "hosts must be an object"}
		}
		for hostName, hv := range m {
			hostBody, ok := hv.(map[string]any)
			if !ok {
				return g, &errs.ConfigError{Detail: fmt.Sprintf("host %q must be an object", hostName)}
			}
			g.Hosts[hostName] = hostBody
		}
	}
	if raw, ok := body["settings"]; ok {
		m, _ := raw.(map[string]any)
		g.Settings = m
	}
	if raw, ok := body["variables"]; ok {
		m, _ := raw.(map[string]any)
		g.Variables = m
	}
	if raw, ok := body["environment"]; ok {
		m, _ := raw.(map[string]any)
		g.Environment = m
	}
	if raw, ok := body["children"]; ok {
		switch c := raw.(type) {
		case map[string]any:
			for name := range c {
				g.Children = append(g.Children, name)
			}
		case []any:
			for _, n := range c {
				if s, ok := n.(string); ok {
					g.Children = append(g.Children, s)
				}
			}
		}
		sort.Strings(g.Children)
	}
	return g, nil
}

func decodeHostInput(name string, raw map[string]any) (types.Target, error) {
	t := types.Target{Name: name}
	if conn, ok := raw["connection"].(string); ok {
		t.Connection = types.ConnectionKind(conn)
	} else {
		t.Connection = types.ConnectionLocal
	}
	if s, ok := raw["hostname"].(string); ok {
		t.Hostname = s
	}
	if p, ok := raw["port"].(int); ok {
		t.Port = p
	} else if p, ok := raw["port"].(float64); ok {
		t.Port = int(p)
	}
	if s, ok := raw["username"].(string); ok {
		t.Username = s
	}
	if s, ok := raw["password"].(string); ok {
		t.Password = types.NewSecret(s)
	}
	if s, ok := raw["private_key"].(string); ok {
		t.PrivateKey = s
	}
	if s, ok := raw["private_key_password"].(string); ok {
		t.PrivateKeyPassword = types.NewSecret(s)
	}
	if s, ok := raw["known_hosts_path"].(string); ok {
		t.KnownHostsPath = s
	}
	t.Variables = map[string]any{}
	t.Environment = map[string]string{}
	for k, v := range raw {
		switch k {
		case "connection", "hostname", "port", "username", "password", "private_key", "private_key_password", "known_hosts_path":
		default:
			t.Variables[k] = v
		}
	}
	return t, nil
}

func applySettings(t *types.Target, settings map[string]any) {
	for k, v := range settings {
		switch k {
		case "hostname":
			if s, ok := v.(string); ok && t.Hostname == "" {
				t.Hostname = s
			}
		case "port":
			if t.Port == 0 {
				if p, ok := v.(int); ok {
					t.Port = p
				} else if p, ok := v.(float64); ok {
					t.Port = int(p)
				}
			}
		case "username":
			if s, ok := v.(string); ok && t.Username == "" {
				t.Username = s
			}
		case "known_hosts_path":
			if s, ok := v.(string); ok && t.KnownHostsPath == "" {
				t.KnownHostsPath = s
			}
		default:
			if _, exists := t.Variables[k]; !exists {
				if t.Variables == nil {
					t.Variables = map[string]any{}
				}
				t.Variables[k] = v
			}
		}
	}
}

// applyAncestorSettings fills in only the keys a nearer scope hasn't
// already set — the inheritance-priority rule: host > group > parent.
func applyAncestorSettings(t *types.Target, settings map[string]any) {
	applySettings(t, settings)
}

func deepMergeAny(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// deepMergeAnyFill merges src into dst without overwriting keys dst
// already has (used when folding ancestor scope into an already
// more-specifically-populated host).
func deepMergeAnyFill(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for k, v := range src {
		if _, exists := dst[k]; !exists {
			dst[k] = v
		}
	}
	return dst
}

func mergeStringLayer(dst map[string]string, src map[string]any) map[string]string {
	if dst == nil {
		dst = map[string]string{}
	}
	for k, v := range src {
		if s, ok := v.(string); ok {
			dst[k] = s
		}
	}
	return dst
}

func mergeStringLayerFill(dst map[string]string, src map[string]any) map[string]string {
	if dst == nil {
		dst = map[string]string{}
	}
	for k, v := range src {
		if _, exists := dst[k]; exists {
			continue
		}
		if s, ok := v.(string); ok {
			dst[k] = s
		}
	}
	return dst
}

func asStringMap(m map[string]any) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func collectTransitiveHosts(group string, groups map[string]rawGroup, groupHosts map[string]map[string]bool) map[string]bool {
	out := map[string]bool{}
	seen := map[string]bool{}
	var visit func(name string)
	visit = func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		for h := range groupHosts[name] {
			out[h] = true
		}
		for _, child := range groups[name].Children {
			visit(child)
		}
	}
	visit(group)
	return out
}

// Merge composes two normalized layers (e.g. base config + per-task
// override) with last-wins semantics on overlapping keys, as required
// when multiple input layers are supplied.
func Merge(base, override *Inventory) *Inventory {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}
	hosts := make(map[string]types.Target, len(base.Hosts)+len(override.Hosts))
	for k, v := range base.Hosts {
		hosts[k] = v
	}
	for k, v := range override.Hosts {
		hosts[k] = v
	}
	groups := make(map[string]types.Group, len(base.Groups)+len(override.Groups))
	for k, v := range base.Groups {
		groups[k] = v
	}
	for k, v := range override.Groups {
		groups[k] = v
	}
	allSet := map[string]bool{}
	for _, n := range base.AllNames {
		allSet[n] = true
	}
	for _, n := range override.AllNames {
		allSet[n] = true
	}
	all := make([]string, 0, len(allSet))
	for n := range allSet {
		all = append(all, n)
	}
	sort.Strings(all)
	return &Inventory{AllNames: all, Groups: groups, Hosts: hosts}
}
