package inventory

import (
	"github.com/hashicorp/go-hclog"

	"github.com/furkankose/katmer/core/provider"
	"github.com/furkankose/katmer/core/types"
)

// Resolver is the single owner of both the normalized inventory and
// the provider cache built from it: Pattern resolution turns a string
// into hostnames, and ResolveProvider turns a hostname into the
// provider bound to that host's descriptor.
type Resolver struct {
	inv   *Inventory
	cache *provider.Cache
}

func NewResolver(inv *Inventory, logger hclog.Logger) *Resolver {
	return &Resolver{inv: inv, cache: provider.NewCache(logger)}
}

func (r *Resolver) Inventory() *Inventory { return r.inv }

// ResolveTargets expands pattern into the ordered, deduplicated set of
// target descriptors it selects.
func (r *Resolver) ResolveTargets(pattern string) ([]types.Target, error) {
	names, err := r.inv.Resolve(pattern)
	if err != nil {
		return nil, err
	}
	out := make([]types.Target, 0, len(names))
	for _, name := range names {
		out = append(out, r.inv.Hosts[name])
	}
	return out, nil
}

// ResolveProvider returns the cached provider for target, constructing
// one on cache miss.
func (r *Resolver) ResolveProvider(target types.Target) (provider.Provider, error) {
	return r.cache.Resolve(target)
}

// Dispose shuts every provider constructed by this resolver down.
func (r *Resolver) Dispose() {
	r.cache.Dispose()
}
