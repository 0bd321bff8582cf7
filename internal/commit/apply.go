package commit

import (
	badger "github.com/dgraph-io/badger/v4"

	"github.com/canisterdb/engine/internal/store"
)

// ApplyOps writes every op's final recorded bytes: Set(RawKey, New) when
// New is non-nil, Delete(RawKey) when it is nil. Because each op's New
// already IS the complete post-mutation value (a whole posting, a whole
// stored row) rather than a delta, applying it twice converges to the
// same state both times — the "insert-if-absent, remove-if-present"
// idempotency spec.md §4.7 asks recovery replay for follows directly
// from Set/Delete's own idempotency, with no extra bookkeeping needed.
func ApplyOps(db *badger.DB, ops []Op) error {
	if len(ops) == 0 {
		return nil
	}
	return db.Update(func(txn *badger.Txn) error {
		for _, op := range ops {
			if op.New == nil {
				if err := txn.Delete(op.RawKey); err != nil && err != badger.ErrKeyNotFound {
					return err
				}
				continue
			}
			if err := txn.Set(op.RawKey, op.New); err != nil {
				return err
			}
		}
		return nil
	})
}

// Recover implements ensure_recovered_for_write: if the commit-marker
// slot is populated, it replays the marker's index ops then its data
// ops and clears the marker, exactly mirroring the write protocol's
// own apply order so a half-applied commit and a from-scratch replay
// reach the identical final state. It is a no-op when no marker is
// present, and a no-op (beyond clearing the marker) when replaying an
// already fully-applied one, since ApplyOps is idempotent.
func Recover(db *badger.DB) error {
	present, err := Present(db)
	if err != nil {
		return err
	}
	if !present {
		return nil
	}
	var marker Marker
	err = db.View(func(txn *badger.Txn) error {
		item, getErr := txn.Get(store.CommitMarkerKey())
		if getErr != nil {
			return getErr
		}
		return item.Value(func(val []byte) error {
			decoded, decErr := Decode(val)
			if decErr != nil {
				return decErr
			}
			marker = decoded
			return nil
		})
	})
	if err != nil {
		return err
	}
	if err := ApplyOps(db, marker.IndexOps); err != nil {
		return err
	}
	if err := ApplyOps(db, marker.DataOps); err != nil {
		return err
	}
	return clearMarker(db)
}
