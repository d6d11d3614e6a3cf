// Package invariant provides cheap, always-on precondition/postcondition
// checks used throughout the engine. A violation indicates a bug in the
// engine itself, not bad user input — those are reported as typed errors
// instead (see core/errs).
package invariant

import "fmt"

// NotNil panics if v is nil. v is typically an interface or pointer
// argument that every caller is expected to supply.
func NotNil(v any, name string) {
	if v == nil {
		panic(fmt.Sprintf("invariant: %s must not be nil", name))
	}
}

// Precondition panics with msg (formatted with args) if cond is false.
func Precondition(cond bool, format string, args ...any) {
	if !cond {
		panic("precondition violated: " + fmt.Sprintf(format, args...))
	}
}

// Postcondition panics with msg (formatted with args) if cond is false.
func Postcondition(cond bool, format string, args ...any) {
	if !cond {
		panic("postcondition violated: " + fmt.Sprintf(format, args...))
	}
}

// Invariant panics with msg (formatted with args) if cond is false.
// Used for "this should be unreachable" style assertions.
func Invariant(cond bool, format string, args ...any) {
	if !cond {
		panic("invariant violated: " + fmt.Sprintf(format, args...))
	}
}
