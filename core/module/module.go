// Package module defines the module contract (check/initialize/execute/
// cleanup), the global module registry, and the constraint solver that
// gates every module invocation. Grounded on the teacher's
// core/decorator Registry (database/sql-style self-registration) and
// core/decorator/decorator.go's Descriptor vocabulary.
package module

import (
	"context"
	"fmt"
	"sync"

	"github.com/furkankose/katmer/core/provider"
	"github.com/furkankose/katmer/core/types"
)

// Context is passed to every lifecycle method. Modules read
// Params/Variables and call Exec to run commands against the target.
type Context struct {
	Task      types.Task
	Target    types.Target
	Provider  provider.Provider
	Variables map[string]any
	Params    map[string]any

	Exec provider.Executor
}

// Module is a typed unit of work: copy, apt, systemd, and so on.
// Concrete modules register themselves in init() via Register.
type Module interface {
	// Name is the module's static, user-facing identifier.
	Name() string
	// Constraints declares the platform/arch/root/binary/package gates
	// the constraint solver checks before Check runs. A nil
	// Constraints means "no additional constraints".
	Constraints() *Constraints
	// Schema optionally returns a JSON Schema (as a decoded document)
	// validating Params; nil means no schema validation.
	Schema() map[string]any

	Check(ctx context.Context, mc *Context) error
	Initialize(ctx context.Context, mc *Context) error
	Execute(ctx context.Context, mc *Context) (types.ModuleResult, error)
	Cleanup(ctx context.Context, mc *Context) error
}

// Internal, when implemented by a Module alongside Module, marks it as
// not user-selectable (e.g. "become").
type Internal interface {
	InternalOnly() bool
}

var (
	registryMu sync.RWMutex
	registry   = map[string]func() Module{}
)

// Register adds a module constructor to the global registry. Called
// from each concrete module package's init().
func Register(name string, ctor func() Module) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("module %q already registered", name))
	}
	registry[name] = ctor
}

// Lookup constructs a fresh instance of the named module.
func Lookup(name string) (Module, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	ctor, ok := registry[name]
	if !ok {
		return nil, false
	}
	return ctor(), true
}

// Names returns every registered module name, for `list-targets`-style
// introspection and validation.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	return out
}

// IsRegistered reports whether name has a registered module.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}
