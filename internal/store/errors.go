package store

import "fmt"

// Corruption wraps a decode-time invariant violation: length mismatch,
// duplicate key in a posting, non-canonical padding, or a key count
// exceeding the bounded cap. It is returned unchanged up through the
// executor (spec.md §7) — never silently substituted.
type Corruption struct {
	Store  string
	Reason string
}

func (e *Corruption) Error() string {
	return fmt.Sprintf("store: corruption in %s: %s", e.Store, e.Reason)
}

func newCorruption(store, reason string) error {
	return &Corruption{Store: store, Reason: reason}
}

// UniqueViolation is returned by IndexStore.InsertIndexEntry when a
// unique index already holds a different key for the same index key.
type UniqueViolation struct {
	IndexName string
}

func (e *UniqueViolation) Error() string {
	return fmt.Sprintf("store: unique violation on index %q", e.IndexName)
}

// EntryTooLarge is returned when a non-unique posting's key set would
// exceed its bounded cap.
type EntryTooLarge struct {
	IndexName string
	Cap       int
}

func (e *EntryTooLarge) Error() string {
	return fmt.Sprintf("store: index %q posting exceeds the bounded cap of %d keys", e.IndexName, e.Cap)
}
