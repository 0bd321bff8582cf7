package store

import (
	"encoding/binary"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/canisterdb/engine/internal/value"
)

// RawRow is the opaque, length-bounded row payload the primary store
// persists under one DataKey. Its internal field layout belongs to a
// wire serializer outside this engine's scope (spec.md §1's
// "external collaborator owns row (de)serialization"); the store only
// needs it as a byte string it can round-trip and bound.
type RawRow []byte

// MaxRowBytes bounds a single row so a corrupt or adversarial length
// can never force an unbounded read.
const MaxRowBytes = 4 << 20

// PrimaryStore wraps the primary-data keyspace of a shared *badger.DB,
// namespaced under nsPrimaryData the way the teacher's ddbstore wraps
// one DynamoDB table's item collection behind Get/Put/Delete built on
// top of raw key bytes (dynamodb/ddbstore/store.go).
type PrimaryStore struct {
	db *badger.DB
}

// NewPrimaryStore adapts an already-open badger.DB. The engine façade
// owns opening/closing the database; stores never do so themselves.
func NewPrimaryStore(db *badger.DB) *PrimaryStore {
	return &PrimaryStore{db: db}
}

// storedValue wraps a row with a self-delimiting value.EncodeKey header
// so a bare key-order scan (which only has badger's raw key bytes —
// themselves built from the canonical ordering encoding, which is
// deliberately NOT invertible for most kinds per spec.md §4.1/§8's
// round-trip guarantee covering only big-int/big-nat) can still recover
// the original Key it belongs to, without touching the sort key itself.
func storedValue(k value.Key, row RawRow) []byte {
	keyFrame := value.EncodeKey(k)
	out := make([]byte, 0, 2+len(keyFrame)+len(row))
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(keyFrame)))
	out = append(out, lenBuf[:]...)
	out = append(out, keyFrame...)
	out = append(out, row...)
	return out
}

// EncodeStoredRow renders row as the exact bytes PrimaryStore persists
// under k's data key. The engine façade's commit-marker write path
// needs this to compute a data Op's final New bytes before the marker
// is ever persisted (internal/commit's Op carries whole post-mutation
// bytes, never a delta), so a replayed Set lands byte-identical to a
// direct Insert.
func EncodeStoredRow(k value.Key, row RawRow) []byte {
	return storedValue(k, row)
}

func splitStoredValue(val []byte) (value.Key, RawRow, error) {
	if len(val) < 2 {
		return value.Key{}, nil, newCorruption("primary", "stored value shorter than its key-header length")
	}
	n := int(binary.BigEndian.Uint16(val[0:2]))
	if len(val) < 2+n {
		return value.Key{}, nil, newCorruption("primary", "stored value truncated before its key header")
	}
	k, consumed, err := value.DecodeKey(val[2 : 2+n])
	if err != nil {
		return value.Key{}, nil, newCorruption("primary", "stored value key header: "+err.Error())
	}
	if consumed != n {
		return value.Key{}, nil, newCorruption("primary", "stored value key header has trailing bytes")
	}
	row := RawRow(append([]byte(nil), val[2+n:]...))
	if len(row) > MaxRowBytes {
		return value.Key{}, nil, newCorruption("primary", "row exceeds the bounded size cap")
	}
	return k, row, nil
}

// Get fetches the row stored under dk, reporting found=false when
// absent rather than an error — absence is an ordinary outcome here,
// distinct from MissingRowPolicy's handling of a dangling index
// posting (internal/executor).
func (s *PrimaryStore) Get(dk value.DataKey) (row RawRow, found bool, err error) {
	rawKey, err := EncodeRawDataKey(dk)
	if err != nil {
		return nil, false, err
	}
	err = s.db.View(func(txn *badger.Txn) error {
		item, getErr := txn.Get(rawKey)
		if getErr == badger.ErrKeyNotFound {
			return nil
		}
		if getErr != nil {
			return getErr
		}
		found = true
		return item.Value(func(val []byte) error {
			_, decoded, splitErr := splitStoredValue(val)
			if splitErr != nil {
				return splitErr
			}
			row = decoded
			return nil
		})
	})
	if err != nil {
		return nil, false, err
	}
	return row, found, nil
}

// Insert writes (or overwrites) the row stored under dk within an
// already-open write transaction, so callers (internal/commit) can
// group a data write with its index writes under one replay-safe
// checkpoint sequence.
func (s *PrimaryStore) Insert(txn *badger.Txn, dk value.DataKey, row RawRow) error {
	if len(row) > MaxRowBytes {
		return newCorruption("primary", "row exceeds the bounded size cap")
	}
	rawKey, err := EncodeRawDataKey(dk)
	if err != nil {
		return err
	}
	return txn.Set(rawKey, storedValue(dk.Key, row))
}

// Remove deletes the row stored under dk, a no-op if absent.
func (s *PrimaryStore) Remove(txn *badger.Txn, dk value.DataKey) error {
	rawKey, err := EncodeRawDataKey(dk)
	if err != nil {
		return err
	}
	return txn.Delete(rawKey)
}

// WriteTxn runs fn inside a new read-write transaction and commits it,
// the seam internal/commit drives each checkpoint through.
func (s *PrimaryStore) WriteTxn(fn func(txn *badger.Txn) error) error {
	return s.db.Update(fn)
}

// RowCursor yields (DataKey, RawRow) pairs in canonical key order (or
// its reverse) over one entity, backing FullScan and KeyRange access
// paths.
type RowCursor struct {
	txn    *badger.Txn
	it     *badger.Iterator
	prefix []byte
	done   bool
}

// ScanEntity opens an ascending ordered cursor over every row of
// entity, starting at or after fromKey when non-nil (KeyRange's lower
// bound) and stopping at the entity's prefix boundary.
func (s *PrimaryStore) ScanEntity(entity string, fromKey *value.Key) (*RowCursor, error) {
	return s.ScanEntityDir(entity, fromKey, false)
}

// ScanEntityDir is ScanEntity generalized with a direction flag: when
// reverse is true, rows are emitted in descending canonical key order
// and fromKey (when non-nil) is the upper bound to start at or before,
// the same opts.Reverse/incrementPrefix seek pattern the teacher's
// store_query.go uses for ScanIndexForward=false.
func (s *PrimaryStore) ScanEntityDir(entity string, fromKey *value.Key, reverse bool) (*RowCursor, error) {
	prefix := EntityDataPrefix(entity)
	seek := prefix
	if !reverse {
		if fromKey != nil {
			rawKey, err := EncodeRawDataKey(value.DataKey{Entity: entity, Key: *fromKey})
			if err != nil {
				return nil, err
			}
			seek = rawKey
		}
	} else {
		seek = incrementPrefix(prefix)
		if fromKey != nil {
			rawKey, err := EncodeRawDataKey(value.DataKey{Entity: entity, Key: *fromKey})
			if err != nil {
				return nil, err
			}
			seek = rawKey
		}
	}
	txn := s.db.NewTransaction(false)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	opts.Reverse = reverse
	it := txn.NewIterator(opts)
	it.Seek(seek)
	return &RowCursor{txn: txn, it: it, prefix: prefix}, nil
}

// Next advances the cursor, returning ok=false once the entity's key
// range is exhausted. Callers must call Close when done, whether or
// not the cursor was exhausted.
func (c *RowCursor) Next() (key value.Key, row RawRow, ok bool, err error) {
	if c.done {
		return value.Key{}, nil, false, nil
	}
	if !c.it.ValidForPrefix(c.prefix) {
		c.done = true
		return value.Key{}, nil, false, nil
	}
	item := c.it.Item()
	err = item.Value(func(val []byte) error {
		k, decoded, splitErr := splitStoredValue(val)
		if splitErr != nil {
			return splitErr
		}
		key, row = k, decoded
		return nil
	})
	if err != nil {
		return value.Key{}, nil, false, err
	}
	c.it.Next()
	return key, row, true, nil
}

// Close releases the cursor's underlying badger transaction.
func (c *RowCursor) Close() {
	c.it.Close()
	c.txn.Discard()
}
