package commit

import (
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/canisterdb/engine/internal/store"
)

// AlreadyPresent is returned by Begin when a marker already occupies the
// well-known slot — spec.md §4.7's "attempting to begin a second commit
// while one is present is a contract violation". It is a contract
// violation, not a recoverable condition: callers must run Recover
// first.
type AlreadyPresent struct{}

func (e *AlreadyPresent) Error() string {
	return "commit: a marker is already present; recover before starting a new commit"
}

// Guard is the live handle on one in-flight commit, returned by Begin.
// The caller (SaveExecutor/DeleteExecutor) drives it through ApplyIndex,
// then ApplyData, then Clear; each of those applies its step's store
// mutations, records the checkpoint, and consults the failpoint.
type Guard struct {
	db     *badger.DB
	marker Marker
	fail   *FailPoint
}

// Present reports whether the commit-marker slot is currently occupied,
// the `commit_marker_present` primitive spec.md §6 names for tooling
// and tests.
func Present(db *badger.DB) (bool, error) {
	var present bool
	err := db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(store.CommitMarkerKey())
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		present = true
		return nil
	})
	return present, err
}

// Begin persists marker to the commit-marker slot, failing with
// AlreadyPresent if one already exists. fail may be nil; tests pass a
// *FailPoint to exercise forced failures at named checkpoints.
func Begin(db *badger.DB, marker Marker, fail *FailPoint) (*Guard, error) {
	present, err := Present(db)
	if err != nil {
		return nil, err
	}
	if present {
		return nil, &AlreadyPresent{}
	}
	if err := fail.check(LabelBeginCommit); err != nil {
		return nil, err
	}
	encoded := Encode(marker)
	if err := db.Update(func(txn *badger.Txn) error {
		return txn.Set(store.CommitMarkerKey(), encoded)
	}); err != nil {
		return nil, fmt.Errorf("commit: persist marker: %w", err)
	}
	return &Guard{db: db, marker: marker, fail: fail}, nil
}

// ApplyIndex applies the guard's index ops, then checks the
// mark_index_written checkpoint.
func (g *Guard) ApplyIndex() error {
	if err := ApplyOps(g.db, g.marker.IndexOps); err != nil {
		return err
	}
	return g.MarkIndexWritten()
}

// ApplyData applies the guard's data ops, then checks the
// mark_data_written checkpoint.
func (g *Guard) ApplyData() error {
	if err := ApplyOps(g.db, g.marker.DataOps); err != nil {
		return err
	}
	return g.MarkDataWritten()
}

// MarkIndexWritten is the checkpoint spec.md §6 names
// guard.mark_index_written(): a pure observability point a test's
// FailPoint can trip after index ops are durable but before data ops
// have started.
func (g *Guard) MarkIndexWritten() error {
	return g.fail.check(LabelIndexWritten)
}

// MarkDataWritten is guard.mark_data_written(): the matching checkpoint
// after data ops are durable but before the marker is cleared.
func (g *Guard) MarkDataWritten() error {
	return g.fail.check(LabelDataWritten)
}

// Clear deletes the marker, the final step of the write protocol
// (spec.md §4.7 step 5). Once this returns nil, the commit is complete
// and no longer subject to recovery replay.
func (g *Guard) Clear() error {
	if err := g.fail.check(LabelCleared); err != nil {
		return err
	}
	return clearMarker(g.db)
}

func clearMarker(db *badger.DB) error {
	return db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(store.CommitMarkerKey())
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}
