package engine

import (
	"fmt"

	"github.com/canisterdb/engine/internal/commit"
	"github.com/canisterdb/engine/internal/metrics"
	"github.com/canisterdb/engine/internal/predicate"
	"github.com/canisterdb/engine/internal/schema"
	"github.com/canisterdb/engine/internal/store"
	"github.com/canisterdb/engine/internal/value"
)

// SaveExecutor is spec.md §6's SaveExecutor: insert/replace against one
// entity, grounded on dynamodb/ddbstore/store_put_item.go's
// extract-key/serialize/diff-GSIs-against-the-old-item shape, replacing
// PutItem's single badger transaction with a commit.Marker built and
// validated (index ops' UniqueViolation/EntryTooLarge surfaced) before
// any byte is persisted.
type SaveExecutor struct {
	engine *Engine
	handle *EntityHandle
}

// Saver returns the SaveExecutor bound to h.
func (e *Engine) Saver(h *EntityHandle) *SaveExecutor {
	return &SaveExecutor{engine: e, handle: h}
}

// Insert saves row as a new record, failing with *AlreadyExists if its
// primary key already occupies a row.
func (s *SaveExecutor) Insert(row predicate.Row) error {
	return s.save(row, false)
}

// Replace saves row unconditionally, overwriting any existing record at
// the same primary key.
func (s *SaveExecutor) Replace(row predicate.Row) error {
	return s.save(row, true)
}

func (s *SaveExecutor) save(row predicate.Row, replace bool) error {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()

	pkName := s.handle.entity.PrimaryKey
	pkValue, ok := row[pkName]
	if !ok {
		return fmt.Errorf("engine: save row missing primary key field %q", pkName)
	}
	pk, err := value.NewKey(pkValue)
	if err != nil {
		return fmt.Errorf("engine: primary key field %q: %w", pkName, err)
	}
	dk := value.DataKey{Entity: s.handle.Name(), Key: pk}

	existingRaw, found, err := s.engine.primary.Get(dk)
	if err != nil {
		return err
	}
	if found && !replace {
		return &AlreadyExists{Entity: s.handle.Name()}
	}

	var oldRow predicate.Row
	if found {
		oldRow, err = s.handle.codec.Decode(existingRaw)
		if err != nil {
			return err
		}
	}

	newRaw, err := s.handle.codec.Encode(row)
	if err != nil {
		return err
	}

	dataRawKey, err := store.EncodeRawDataKey(dk)
	if err != nil {
		return err
	}
	var oldStored []byte
	if found {
		oldStored = store.EncodeStoredRow(pk, existingRaw)
	}
	newStored := store.EncodeStoredRow(pk, newRaw)
	dataOp := commit.Op{RawKey: dataRawKey, Old: oldStored, New: newStored}

	indexOps, err := indexOpsForSave(s.engine.index, s.handle.entity.Indexes, pk, oldRow, row)
	if err != nil {
		return err
	}

	marker := commit.Marker{Kind: commit.Save, IndexOps: indexOps, DataOps: []commit.Op{dataOp}}
	guard, err := commit.Begin(s.engine.db, marker, nil)
	if err != nil {
		return err
	}
	if err := guard.ApplyIndex(); err != nil {
		return err
	}
	if err := guard.ApplyData(); err != nil {
		return err
	}
	if err := guard.Clear(); err != nil {
		return err
	}
	s.engine.sink.Record(metrics.CommitApplied{Kind: "save", Replayed: false, IndexOps: len(indexOps), DataOps: 1})
	return nil
}

// fingerprintsForIndex projects row onto idx's field list, reporting
// ok=false when any field is absent from row (a partial row can't
// maintain that index's posting).
func fingerprintsForIndex(row predicate.Row, fields []string) ([]value.Fingerprint, bool) {
	fps := make([]value.Fingerprint, 0, len(fields))
	for _, f := range fields {
		v, ok := row[f]
		if !ok {
			return nil, false
		}
		fp, err := value.NewFingerprint(v)
		if err != nil {
			return nil, false
		}
		fps = append(fps, fp)
	}
	return fps, true
}

func fingerprintsEqual(a, b []value.Fingerprint) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// indexOpsForSave diffs a row's old and new field projections against
// every declared index, the same "compute GSI delta from old vs. new
// item" shape as ddbstore's updateGSI, except every posting mutation is
// first dry-run computed (store.ComputePostingAfterInsert/Remove) so a
// UniqueViolation or EntryTooLarge surfaces here, before any commit
// marker is built, per spec.md §7.
func indexOpsForSave(index *store.IndexStore, indexes []schema.Index, pk value.Key, oldRow, newRow predicate.Row) ([]commit.Op, error) {
	var ops []commit.Op
	for _, idx := range indexes {
		oldFps, oldOk := fingerprintsForIndex(oldRow, idx.Fields)
		newFps, newOk := fingerprintsForIndex(newRow, idx.Fields)
		if fingerprintSetsEqual(oldOk, newOk, oldFps, newFps) {
			continue
		}
		if oldOk {
			op, err := removeIndexOp(index, idx, oldFps, pk)
			if err != nil {
				return nil, err
			}
			if op != nil {
				ops = append(ops, *op)
			}
		}
		if newOk {
			op, err := insertIndexOp(index, idx, newFps, pk)
			if err != nil {
				return nil, err
			}
			if op != nil {
				ops = append(ops, *op)
			}
		}
	}
	return ops, nil
}

func fingerprintSetsEqual(oldOk, newOk bool, oldFps, newFps []value.Fingerprint) bool {
	return oldOk && newOk && fingerprintsEqual(oldFps, newFps)
}

func insertIndexOp(index *store.IndexStore, idx schema.Index, fps []value.Fingerprint, pk value.Key) (*commit.Op, error) {
	ik := value.IndexKey{IndexID: idx.Name, Arity: len(fps), Fingerprints: fps}
	existing, err := index.GetPosting(ik)
	if err != nil {
		return nil, err
	}
	newKeys, outcome, err := store.ComputePostingAfterInsert(existing, idx.Unique, idx.Name, pk)
	if err != nil {
		return nil, err
	}
	if outcome == store.Skipped {
		return nil, nil
	}
	rawKey, err := store.EncodeRawIndexKey(ik)
	if err != nil {
		return nil, err
	}
	var oldBytes []byte
	if existing != nil {
		oldBytes = store.EncodePosting(existing)
	}
	return &commit.Op{RawKey: rawKey, Old: oldBytes, New: store.EncodePosting(newKeys)}, nil
}

func removeIndexOp(index *store.IndexStore, idx schema.Index, fps []value.Fingerprint, pk value.Key) (*commit.Op, error) {
	ik := value.IndexKey{IndexID: idx.Name, Arity: len(fps), Fingerprints: fps}
	existing, err := index.GetPosting(ik)
	if err != nil {
		return nil, err
	}
	newKeys, outcome := store.ComputePostingAfterRemove(existing, idx.Unique, pk)
	if outcome == store.NotFound {
		return nil, nil
	}
	rawKey, err := store.EncodeRawIndexKey(ik)
	if err != nil {
		return nil, err
	}
	var newBytes []byte
	if len(newKeys) > 0 {
		newBytes = store.EncodePosting(newKeys)
	}
	return &commit.Op{RawKey: rawKey, Old: store.EncodePosting(existing), New: newBytes}, nil
}
