package engine

import (
	"github.com/canisterdb/engine/internal/commit"
	"github.com/canisterdb/engine/internal/executor"
	"github.com/canisterdb/engine/internal/metrics"
	"github.com/canisterdb/engine/internal/store"
	"github.com/canisterdb/engine/internal/value"
)

// DeleteExecutor is spec.md §6's DeleteExecutor: delete by predicate or
// by a unique index probe, both funneling through deleteByKey so every
// delete consults the reverse-relation guard and builds its commit
// marker the same way.
type DeleteExecutor struct {
	engine *Engine
	handle *EntityHandle
}

// Deleter returns the DeleteExecutor bound to h.
func (e *Engine) Deleter(h *EntityHandle) *DeleteExecutor {
	return &DeleteExecutor{engine: e, handle: h}
}

// Execute deletes every row of the handle's entity matching q.Predicate,
// returning the count removed. Matching keys are collected up front from
// a closed snapshot of the stream before any mutation starts, so a
// delete never observes its own in-flight writes.
func (d *DeleteExecutor) Execute(q Query) (int, error) {
	d.engine.mu.Lock()
	defer d.engine.mu.Unlock()

	normalized, plan, err := d.handle.prepare(q.Predicate)
	if err != nil {
		return 0, err
	}
	stream, err := executor.Open(d.handle.Name(), d.engine.stores(), plan, q.Dir)
	if err != nil {
		return 0, err
	}

	var pks []value.Key
	for {
		_, pk, ok, nextErr := nextAcceptedRow(stream, d.engine.primary, d.handle.codec.Decode, normalized, d.engine.missingRow)
		if nextErr != nil {
			stream.Close()
			return 0, nextErr
		}
		if !ok {
			break
		}
		pks = append(pks, pk)
	}
	stream.Close()

	var deleted int
	for _, pk := range pks {
		if err := d.deleteByKey(pk); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// ByUniqueIndex deletes the single row whose unique index indexName
// maps probe to, failing with *NotFound if no row matches.
func (d *DeleteExecutor) ByUniqueIndex(indexName string, probe value.Value) error {
	d.engine.mu.Lock()
	defer d.engine.mu.Unlock()

	fp, err := value.NewFingerprint(probe)
	if err != nil {
		return err
	}
	ik := value.IndexKey{IndexID: indexName, Arity: 1, Fingerprints: []value.Fingerprint{fp}}
	keys, err := d.engine.index.GetPosting(ik)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return &NotFound{Entity: d.handle.Name(), IndexName: indexName}
	}
	return d.deleteByKey(keys[0])
}

// deleteByKey removes pk's row and every index posting entry it holds,
// rejecting the delete with *commit.BlockedByStrongRelation if any
// other entity still holds a live strong relation onto pk (spec.md
// §4.7: the executor MUST consult the reverse index before issuing the
// delete's commit marker). A pk already absent from the primary store
// is treated as already deleted, not an error.
func (d *DeleteExecutor) deleteByKey(pk value.Key) error {
	dk := value.DataKey{Entity: d.handle.Name(), Key: pk}
	raw, found, err := d.engine.primary.Get(dk)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	row, err := d.handle.codec.Decode(raw)
	if err != nil {
		return err
	}

	for _, reverseIdx := range d.engine.reverseIndexesByTarget[d.handle.Name()] {
		if err := commit.EnforceNoReverseRelation(d.engine.index, reverseIdx, pk); err != nil {
			return err
		}
	}

	dataRawKey, err := store.EncodeRawDataKey(dk)
	if err != nil {
		return err
	}
	oldStored := store.EncodeStoredRow(pk, raw)
	dataOp := commit.Op{RawKey: dataRawKey, Old: oldStored, New: nil}

	var indexOps []commit.Op
	for _, idx := range d.handle.entity.Indexes {
		fps, ok := fingerprintsForIndex(row, idx.Fields)
		if !ok {
			continue
		}
		op, err := removeIndexOp(d.engine.index, idx, fps, pk)
		if err != nil {
			return err
		}
		if op != nil {
			indexOps = append(indexOps, *op)
		}
	}

	marker := commit.Marker{Kind: commit.Delete, IndexOps: indexOps, DataOps: []commit.Op{dataOp}}
	guard, err := commit.Begin(d.engine.db, marker, nil)
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
	d.engine.sink.Record(metrics.CommitApplied{Kind: "delete", Replayed: false, IndexOps: len(indexOps), DataOps: 1})
	return nil
}
