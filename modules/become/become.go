// Package become registers the "become" name as an internal module:
// privilege escalation is implemented entirely as a task control
// (core/task/become.go rewrites the executor command), not as a
// module body. This registration exists so module.Names() and
// module.IsRegistered() reflect the full catalogue from spec §1
// without "become" ever being selectable as a task's module key — the
// config loader strips "become" as a control key before a module name
// is extracted, so Execute here is unreachable in normal operation.
package become

import (
	"context"
	"fmt"

	"github.com/furkankose/katmer/core/module"
	"github.com/furkankose/katmer/core/types"
)

func init() {
	module.Register("become", func() module.Module { return &Module{} })
}

// Module is a catalogue placeholder. It implements module.Internal so
// callers that list user-selectable modules can filter it out.
type Module struct{}

func (m *Module) Name() string                     { return "become" }
func (m *Module) Constraints() *module.Constraints  { return nil }
func (m *Module) Schema() map[string]any            { return nil }
func (m *Module) InternalOnly() bool                { return true }
func (m *Module) Check(ctx context.Context, mc *module.Context) error      { return nil }
func (m *Module) Initialize(ctx context.Context, mc *module.Context) error { return nil }
func (m *Module) Cleanup(ctx context.Context, mc *module.Context) error    { return nil }

func (m *Module) Execute(ctx context.Context, mc *module.Context) (types.ModuleResult, error) {
	return types.ModuleResult{}, fmt.Errorf("become is a control, not a directly executable module")
}
