package executor

import "fmt"

// Internal reports an executor-invariant violation — a route mismatch,
// a fold-mode misuse, an access plan shape Open doesn't recognize.
// These are bug indicators, not recoverable conditions (spec.md §4.6.4).
type Internal struct {
	Reason string
}

func (e *Internal) Error() string {
	return fmt.Sprintf("executor: internal invariant violated: %s", e.Reason)
}

func newInternal(format string, args ...any) error {
	return &Internal{Reason: fmt.Sprintf(format, args...)}
}
