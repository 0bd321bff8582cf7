package store

import (
	badger "github.com/dgraph-io/badger/v4"

	"github.com/canisterdb/engine/internal/value"
)

// IndexOutcome reports what InsertIndexEntry/RemoveIndexEntry actually
// did, distinct outcomes the commit layer logs and the idempotent
// replay path (spec.md §5's recovery) relies on to treat a repeated
// apply as a no-op rather than a double-count.
type IndexOutcome int

const (
	// Inserted means the key was newly added to the posting.
	Inserted IndexOutcome = iota
	// Skipped means the key was already present; no change made.
	Skipped
	// Removed means the key was present and has been deleted.
	Removed
	// NotFound means the key was absent from the posting on removal.
	NotFound
)

// IndexStore wraps the index keyspace of a shared *badger.DB, namespaced
// under nsIndex. Each IndexKey maps to a bounded posting of primary
// keys, built in memory with github.com/google/btree before being
// flattened to EncodePosting's wire form.
type IndexStore struct {
	db *badger.DB
}

// NewIndexStore adapts an already-open badger.DB.
func NewIndexStore(db *badger.DB) *IndexStore {
	return &IndexStore{db: db}
}

func (s *IndexStore) readPosting(txn *badger.Txn, rawKey []byte) ([]value.Key, error) {
	item, err := txn.Get(rawKey)
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var keys []value.Key
	err = item.Value(func(val []byte) error {
		decoded, decErr := DecodePosting(val)
		if decErr != nil {
			return decErr
		}
		keys = decoded
		return nil
	})
	return keys, err
}

// InsertIndexEntry adds pk to the posting at ik, enforcing uniqueness
// (UniqueViolation) for unique indexes and the bounded cap
// (EntryTooLarge) for non-unique ones. indexName identifies the index
// in error messages; unique selects which cap applies.
func (s *IndexStore) InsertIndexEntry(txn *badger.Txn, ik value.IndexKey, indexName string, unique bool, pk value.Key) (IndexOutcome, error) {
	rawKey, err := EncodeRawIndexKey(ik)
	if err != nil {
		return 0, err
	}
	existing, err := s.readPosting(txn, rawKey)
	if err != nil {
		return 0, err
	}
	p := newPosting(unique)
	for _, k := range existing {
		if _, insErr := p.insert(indexName, k); insErr != nil {
			return 0, insErr
		}
	}
	if unique && p.len() >= 1 {
		already := p.keys()
		if value.CanonicalCmp(already[0].Value(), pk.Value()) != value.Equal {
			return 0, &UniqueViolation{IndexName: indexName}
		}
		return Skipped, nil
	}
	added, err := p.insert(indexName, pk)
	if err != nil {
		return 0, err
	}
	if !added {
		return Skipped, nil
	}
	if err := txn.Set(rawKey, EncodePosting(p.keys())); err != nil {
		return 0, err
	}
	return Inserted, nil
}

// RemoveIndexEntry deletes pk from the posting at ik, deleting the
// badger key entirely once the posting empties out.
func (s *IndexStore) RemoveIndexEntry(txn *badger.Txn, ik value.IndexKey, unique bool, pk value.Key) (IndexOutcome, error) {
	rawKey, err := EncodeRawIndexKey(ik)
	if err != nil {
		return 0, err
	}
	existing, err := s.readPosting(txn, rawKey)
	if err != nil {
		return 0, err
	}
	if len(existing) == 0 {
		return NotFound, nil
	}
	p := newPosting(unique)
	for _, k := range existing {
		if _, insErr := p.insert("", k); insErr != nil {
			return 0, insErr
		}
	}
	if !p.remove(pk) {
		return NotFound, nil
	}
	if p.len() == 0 {
		if err := txn.Delete(rawKey); err != nil {
			return 0, err
		}
		return Removed, nil
	}
	if err := txn.Set(rawKey, EncodePosting(p.keys())); err != nil {
		return 0, err
	}
	return Removed, nil
}

// GetPosting reads the current posting at ik outside any write
// transaction, the read half of the same computation
// ComputePostingAfterInsert/ComputePostingAfterRemove need to produce a
// commit Op's final bytes before a write transaction ever opens.
func (s *IndexStore) GetPosting(ik value.IndexKey) ([]value.Key, error) {
	rawKey, err := EncodeRawIndexKey(ik)
	if err != nil {
		return nil, err
	}
	var keys []value.Key
	err = s.db.View(func(txn *badger.Txn) error {
		keys, err = s.readPosting(txn, rawKey)
		return err
	})
	return keys, err
}

// ResolveDataValues opens an ascending ordered cursor over every
// IndexKey whose leading fingerprints match prefix, yielding the
// posting's primary keys in the order their index keys sort — the
// primitive behind the IndexPrefix and IndexRange access paths.
func (s *IndexStore) ResolveDataValues(indexID string, prefix []value.Fingerprint) (*PostingCursor, error) {
	return s.ResolveDataValuesDir(indexID, prefix, false)
}

// ResolveDataValuesDir is ResolveDataValues generalized with a
// direction flag, mirroring PrimaryStore.ScanEntityDir.
func (s *IndexStore) ResolveDataValuesDir(indexID string, prefix []value.Fingerprint, reverse bool) (*PostingCursor, error) {
	prefixBytes := IndexPrefixBytes(indexID, prefix)
	seek := prefixBytes
	if reverse {
		seek = incrementPrefix(prefixBytes)
	}
	txn := s.db.NewTransaction(false)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	opts.Reverse = reverse
	it := txn.NewIterator(opts)
	it.Seek(seek)
	return &PostingCursor{txn: txn, it: it, prefix: prefixBytes}, nil
}

// PostingCursor yields (rawIndexKey, posting keys) pairs in ascending
// index-key order. Each call to Next may return several primary keys
// at once (one posting), unlike RowCursor's one-row-per-step shape.
type PostingCursor struct {
	txn    *badger.Txn
	it     *badger.Iterator
	prefix []byte
	done   bool
}

func (c *PostingCursor) Next() (rawIndexKey []byte, keys []value.Key, ok bool, err error) {
	if c.done {
		return nil, nil, false, nil
	}
	if !c.it.ValidForPrefix(c.prefix) {
		c.done = true
		return nil, nil, false, nil
	}
	item := c.it.Item()
	rawIndexKey = append([]byte(nil), item.Key()...)
	err = item.Value(func(val []byte) error {
		decoded, decErr := DecodePosting(val)
		if decErr != nil {
			return decErr
		}
		keys = decoded
		return nil
	})
	if err != nil {
		return nil, nil, false, err
	}
	c.it.Next()
	return rawIndexKey, keys, true, nil
}

// Close releases the cursor's underlying badger transaction.
func (c *PostingCursor) Close() {
	c.it.Close()
	c.txn.Discard()
}
