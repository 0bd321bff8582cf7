package store

import (
	"testing"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"github.com/canisterdb/engine/internal/value"
)

func TestPrimaryStoreInsertGetRemove(t *testing.T) {
	db := openTestDB(t)
	s := NewPrimaryStore(db)

	dk := value.DataKey{Entity: "widgets", Key: value.MustKey(value.Text("w1"))}

	_, found, err := s.Get(dk)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, s.WriteTxn(func(txn *badger.Txn) error {
		return s.Insert(txn, dk, RawRow("payload"))
	}))

	row, found, err := s.Get(dk)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, RawRow("payload"), row)

	require.NoError(t, s.WriteTxn(func(txn *badger.Txn) error {
		return s.Remove(txn, dk)
	}))

	_, found, err = s.Get(dk)
	require.NoError(t, err)
	require.False(t, found)
}

func TestPrimaryStoreInsertRejectsOversizedRow(t *testing.T) {
	db := openTestDB(t)
	s := NewPrimaryStore(db)
	dk := value.DataKey{Entity: "widgets", Key: value.MustKey(value.Text("w1"))}

	err := s.WriteTxn(func(txn *badger.Txn) error {
		return s.Insert(txn, dk, make(RawRow, MaxRowBytes+1))
	})
	require.Error(t, err)
}

func TestPrimaryStoreScanEntityOrdersByCanonicalKey(t *testing.T) {
	db := openTestDB(t)
	s := NewPrimaryStore(db)

	ids := []string{"c", "a", "b"}
	for _, id := range ids {
		dk := value.DataKey{Entity: "widgets", Key: value.MustKey(value.Text(id))}
		require.NoError(t, s.WriteTxn(func(txn *badger.Txn) error {
			return s.Insert(txn, dk, RawRow(id))
		}))
	}
	// An entity from a different namespace must never appear in the scan.
	other := value.DataKey{Entity: "gadgets", Key: value.MustKey(value.Text("z"))}
	require.NoError(t, s.WriteTxn(func(txn *badger.Txn) error {
		return s.Insert(txn, other, RawRow("z"))
	}))

	cur, err := s.ScanEntity("widgets", nil)
	require.NoError(t, err)
	defer cur.Close()

	var seen []string
	for {
		_, row, ok, err := cur.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		seen = append(seen, string(row))
	}
	require.Equal(t, []string{"a", "b", "c"}, seen)
}
