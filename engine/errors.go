package engine

import "fmt"

// AlreadyExists is returned by SaveExecutor.Insert when a row already
// occupies the target primary key, spec.md §7's "insert against an
// existing key is an expected user-visible error" distinguished from
// Replace's unconditional upsert.
type AlreadyExists struct {
	Entity string
}

func (e *AlreadyExists) Error() string {
	return fmt.Sprintf("engine: row already exists for entity %q", e.Entity)
}

// NotFound is returned by DeleteExecutor.ByUniqueIndex when no row
// matches the probe value under the named unique index.
type NotFound struct {
	Entity    string
	IndexName string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("engine: no row found for entity %q via index %q", e.Entity, e.IndexName)
}
