package commit

import (
	"testing"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"github.com/canisterdb/engine/internal/store"
	"github.com/canisterdb/engine/internal/value"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	return db
}

func getRaw(t *testing.T, db *badger.DB, key []byte) ([]byte, bool) {
	t.Helper()
	var val []byte
	var found bool
	err := db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(v []byte) error {
			val = append([]byte(nil), v...)
			return nil
		})
	})
	require.NoError(t, err)
	return val, found
}

func TestMarkerEncodeDecodeRoundTrips(t *testing.T) {
	m := Marker{
		Kind: Save,
		IndexOps: []Op{
			{RawKey: []byte("ik1"), Old: nil, New: []byte("posting-a")},
			{RawKey: []byte("ik2"), Old: []byte("posting-b"), New: nil},
		},
		DataOps: []Op{
			{RawKey: []byte("dk1"), Old: []byte("old-row"), New: []byte("new-row")},
		},
	}
	decoded, err := Decode(Encode(m))
	require.NoError(t, err)
	require.Equal(t, m, decoded)
}

func TestBeginPersistsMarkerAndRejectsSecond(t *testing.T) {
	db := openTestDB(t)
	m := Marker{Kind: Save, DataOps: []Op{{RawKey: []byte("k"), New: []byte("v")}}}

	present, err := Present(db)
	require.NoError(t, err)
	require.False(t, present)

	guard, err := Begin(db, m, nil)
	require.NoError(t, err)
	require.NotNil(t, guard)

	present, err = Present(db)
	require.NoError(t, err)
	require.True(t, present)

	_, err = Begin(db, m, nil)
	require.Error(t, err)
	var already *AlreadyPresent
	require.ErrorAs(t, err, &already)
}

func TestApplyOpsSetAndDelete(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, ApplyOps(db, []Op{{RawKey: []byte("k"), New: []byte("v1")}}))
	val, found := getRaw(t, db, []byte("k"))
	require.True(t, found)
	require.Equal(t, []byte("v1"), val)

	require.NoError(t, ApplyOps(db, []Op{{RawKey: []byte("k"), Old: []byte("v1"), New: nil}}))
	_, found = getRaw(t, db, []byte("k"))
	require.False(t, found)

	// Applying the same delete again (simulating a replay) is a no-op,
	// not an error.
	require.NoError(t, ApplyOps(db, []Op{{RawKey: []byte("k"), Old: []byte("v1"), New: nil}}))
}

func TestFullCommitLifecycle(t *testing.T) {
	db := openTestDB(t)
	m := Marker{
		Kind:     Save,
		IndexOps: []Op{{RawKey: []byte("ik"), New: []byte("posting")}},
		DataOps:  []Op{{RawKey: []byte("dk"), New: []byte("row")}},
	}
	guard, err := Begin(db, m, nil)
	require.NoError(t, err)
	require.NoError(t, guard.ApplyIndex())
	require.NoError(t, guard.ApplyData())
	require.NoError(t, guard.Clear())

	present, err := Present(db)
	require.NoError(t, err)
	require.False(t, present)

	_, found := getRaw(t, db, []byte("ik"))
	require.True(t, found)
	_, found = getRaw(t, db, []byte("dk"))
	require.True(t, found)
}

func TestForcedFailureAtEachCheckpoint(t *testing.T) {
	labels := []Label{LabelBeginCommit, LabelIndexWritten, LabelDataWritten, LabelCleared}
	for _, label := range labels {
		label := label
		t.Run(string(label), func(t *testing.T) {
			db := openTestDB(t)
			m := Marker{
				Kind:     Save,
				IndexOps: []Op{{RawKey: []byte("ik"), New: []byte("posting")}},
				DataOps:  []Op{{RawKey: []byte("dk"), New: []byte("row")}},
			}
			fail := &FailPoint{}
			fail.FailCheckpointLabel(label)

			guard, err := Begin(db, m, fail)
			if label == LabelBeginCommit {
				require.Error(t, err)
				var injected *Injected
				require.ErrorAs(t, err, &injected)
				require.Equal(t, label, injected.Label)
				return
			}
			require.NoError(t, err)

			err = guard.ApplyIndex()
			if label == LabelIndexWritten {
				require.Error(t, err)
				var injected *Injected
				require.ErrorAs(t, err, &injected)
				return
			}
			require.NoError(t, err)

			err = guard.ApplyData()
			if label == LabelDataWritten {
				require.Error(t, err)
				var injected *Injected
				require.ErrorAs(t, err, &injected)
				return
			}
			require.NoError(t, err)

			err = guard.Clear()
			require.Error(t, err)
			var injected *Injected
			require.ErrorAs(t, err, &injected)
			require.Equal(t, LabelCleared, injected.Label)
		})
	}
}

func TestRecoverCompletesHalfAppliedCommit(t *testing.T) {
	db := openTestDB(t)
	m := Marker{
		Kind:     Save,
		IndexOps: []Op{{RawKey: []byte("ik"), New: []byte("posting")}},
		DataOps:  []Op{{RawKey: []byte("dk"), New: []byte("row")}},
	}
	guard, err := Begin(db, m, nil)
	require.NoError(t, err)
	// Simulate a crash right after the index step durably lands, before
	// the data step ever runs.
	require.NoError(t, guard.ApplyIndex())

	_, found := getRaw(t, db, []byte("dk"))
	require.False(t, found)

	require.NoError(t, Recover(db))

	_, found = getRaw(t, db, []byte("ik"))
	require.True(t, found)
	_, found = getRaw(t, db, []byte("dk"))
	require.True(t, found)

	present, err := Present(db)
	require.NoError(t, err)
	require.False(t, present)
}

func TestRecoverIsNoOpOnFullyAppliedCommit(t *testing.T) {
	db := openTestDB(t)
	m := Marker{
		Kind:     Save,
		IndexOps: []Op{{RawKey: []byte("ik"), New: []byte("posting")}},
		DataOps:  []Op{{RawKey: []byte("dk"), New: []byte("row")}},
	}
	fail := &FailPoint{}
	fail.FailCheckpointLabel(LabelCleared)
	guard, err := Begin(db, m, fail)
	require.NoError(t, err)
	require.NoError(t, guard.ApplyIndex())
	require.NoError(t, guard.ApplyData())
	err = guard.Clear()
	require.Error(t, err) // simulated crash right before the marker clears

	require.NoError(t, Recover(db))

	_, found := getRaw(t, db, []byte("ik"))
	require.True(t, found)
	_, found = getRaw(t, db, []byte("dk"))
	require.True(t, found)
	present, err := Present(db)
	require.NoError(t, err)
	require.False(t, present)
}

func TestRecoverNoOpWhenNoMarkerPresent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Recover(db))
}

func TestEnforceNoReverseRelation(t *testing.T) {
	db := openTestDB(t)
	index := store.NewIndexStore(db)
	owner := value.MustKey(value.Int(1))
	fp, err := value.NewFingerprint(owner.Value())
	require.NoError(t, err)
	ik := value.IndexKey{IndexID: "by_owner", Arity: 1, Fingerprints: []value.Fingerprint{fp}}

	require.NoError(t, EnforceNoReverseRelation(index, "by_owner", owner))

	require.NoError(t, db.Update(func(txn *badger.Txn) error {
		_, err := index.InsertIndexEntry(txn, ik, "by_owner", false, value.MustKey(value.Int(2)))
		return err
	}))

	err = EnforceNoReverseRelation(index, "by_owner", owner)
	require.Error(t, err)
	var blocked *BlockedByStrongRelation
	require.ErrorAs(t, err, &blocked)
	require.Equal(t, "by_owner", blocked.ReverseIndexName)
}
