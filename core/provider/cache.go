package provider

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/furkankose/katmer/core/types"
)

// Cache owns every Provider constructed during a run, keyed by a
// stable structural hash of the resolved target descriptor. Identical
// descriptors always resolve to the same Provider instance; ownership
// never escapes to callers, which only ever see the interface.
type Cache struct {
	logger hclog.Logger

	mu    sync.Mutex
	byKey map[string]Provider
}

func NewCache(logger hclog.Logger) *Cache {
	return &Cache{logger: logger, byKey: make(map[string]Provider)}
}

// Resolve returns the cached provider for target, constructing one on
// cache miss. Construction is serialized per cache (the spec requires
// serialization per key; a single mutex over the whole cache satisfies
// that without the complexity of per-key locks, since provider
// construction itself is cheap and never blocks on I/O).
func (c *Cache) Resolve(target types.Target) (Provider, error) {
	key := hostDescriptorHash(target)

	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.byKey[key]; ok {
		return p, nil
	}

	var p Provider
	switch target.Connection {
	case types.ConnectionLocal:
		p = NewLocalProvider(target, c.logger)
	case types.ConnectionSSH:
		p = NewSSHProvider(target, c.logger)
	default:
		return nil, &hostDescriptorError{target: target.Name}
	}
	c.byKey[key] = p
	return p, nil
}

// Dispose shuts every cached provider down via SafeShutdown and drops
// them from the cache.
func (c *Cache) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.byKey {
		p.SafeShutdown()
	}
	c.byKey = make(map[string]Provider)
}

type hostDescriptorError struct{ target string }

func (e *hostDescriptorError) Error() string {
	return "unknown connection kind for target " + e.target
}

// hostDescriptorHash produces a JSON-canonical (sorted-keys) structural
// hash of the fields that define a target's identity as a connection
// endpoint. Secret fields are hashed by their revealed value so that
// two descriptors differing only in, say, comment-only variables still
// collapse to the same provider, while a changed password or key does
// not collide with a stale cache entry.
func hostDescriptorHash(t types.Target) string {
	canon := map[string]any{
		"connection":           string(t.Connection),
		"hostname":             t.Hostname,
		"port":                 t.Port,
		"username":             t.Username,
		"password":             t.Password.Reveal(),
		"private_key":          t.PrivateKey,
		"private_key_password": t.PrivateKeyPassword.Reveal(),
	}
	b, _ := canonicalJSON(canon)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// canonicalJSON marshals v with object keys sorted at every level, so
// that structurally identical maps always produce byte-identical
// output regardless of Go's randomized map iteration order.
func canonicalJSON(v any) ([]byte, error) {
	normalized := normalizeForCanon(v)
	return json.Marshal(normalized)
}

func normalizeForCanon(v any) any {
	switch x := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]canonPair, 0, len(keys))
		for _, k := range keys {
			out = append(out, canonPair{K: k, V: normalizeForCanon(x[k])})
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeForCanon(e)
		}
		return out
	default:
		return x
	}
}

type canonPair struct {
	K string `json:"k"`
	V any    `json:"v"`
}
