package store

import (
	"encoding/binary"
	"fmt"

	"github.com/google/btree"

	"github.com/canisterdb/engine/internal/value"
)

// Bounded caps on an index posting's key count (spec.md §4.3): a
// unique index holds at most one key, a non-unique index holds at most
// this many before InsertIndexEntry reports EntryTooLarge.
const (
	MaxUniquePostingKeys    = 1
	MaxNonUniquePostingKeys = 65535
)

// postingItem adapts a value.Key for ordering inside a btree.BTreeG,
// using CanonicalCmp so the in-memory set matches the same total order
// the rest of the engine relies on.
type postingItem struct {
	key value.Key
}

func postingLess(a, b postingItem) bool {
	return value.CanonicalCmp(a.key.Value(), b.key.Value()) == value.Less
}

// posting is the in-memory working form of one IndexEntry: a bounded,
// ordered set of primary keys built with github.com/google/btree before
// being flattened to its bounded wire form for storage. Mutating a
// posting via a btree keeps insert/remove over a few thousand keys fast
// without hand-rolling an ordered-slice splice on every write.
type posting struct {
	unique bool
	tree   *btree.BTreeG[postingItem]
}

func newPosting(unique bool) *posting {
	return &posting{unique: unique, tree: btree.NewG(32, postingLess)}
}

func (p *posting) cap() int {
	if p.unique {
		return MaxUniquePostingKeys
	}
	return MaxNonUniquePostingKeys
}

func (p *posting) len() int { return p.tree.Len() }

// insert adds k to the posting, returning false if it was already
// present (a no-op insert) and an error if the bounded cap would be
// exceeded by adding a genuinely new key.
func (p *posting) insert(indexName string, k value.Key) (bool, error) {
	item := postingItem{key: k}
	if _, found := p.tree.Get(item); found {
		return false, nil
	}
	if p.tree.Len() >= p.cap() {
		return false, &EntryTooLarge{IndexName: indexName, Cap: p.cap()}
	}
	p.tree.ReplaceOrInsert(item)
	return true, nil
}

// remove deletes k from the posting, returning true if it was present.
func (p *posting) remove(k value.Key) bool {
	_, found := p.tree.Delete(postingItem{key: k})
	return found
}

func (p *posting) keys() []value.Key {
	out := make([]value.Key, 0, p.tree.Len())
	p.tree.Ascend(func(item postingItem) bool {
		out = append(out, item.key)
		return true
	})
	return out
}

// ComputePostingAfterInsert returns the posting that would result from
// inserting pk into existing, without touching badger. The commit-marker
// write path (engine façade) calls this to learn a prospective index
// Op's final key set — and surface UniqueViolation/EntryTooLarge before
// ever persisting a marker, per spec.md §7's "expected user-visible
// errors ... do not leave a persisted commit marker" — before
// InsertIndexEntry ever opens a write transaction.
func ComputePostingAfterInsert(existing []value.Key, unique bool, indexName string, pk value.Key) ([]value.Key, IndexOutcome, error) {
	p := newPosting(unique)
	for _, k := range existing {
		if _, err := p.insert(indexName, k); err != nil {
			return nil, 0, err
		}
	}
	if unique && p.len() >= 1 {
		already := p.keys()
		if value.CanonicalCmp(already[0].Value(), pk.Value()) != value.Equal {
			return nil, 0, &UniqueViolation{IndexName: indexName}
		}
		return existing, Skipped, nil
	}
	added, err := p.insert(indexName, pk)
	if err != nil {
		return nil, 0, err
	}
	if !added {
		return existing, Skipped, nil
	}
	return p.keys(), Inserted, nil
}

// ComputePostingAfterRemove returns the posting that would result from
// removing pk from existing, without touching badger, mirroring
// ComputePostingAfterInsert for the delete side of the commit-marker
// write path.
func ComputePostingAfterRemove(existing []value.Key, unique bool, pk value.Key) ([]value.Key, IndexOutcome) {
	if len(existing) == 0 {
		return existing, NotFound
	}
	p := newPosting(unique)
	for _, k := range existing {
		_, _ = p.insert("", k)
	}
	if !p.remove(pk) {
		return existing, NotFound
	}
	return p.keys(), Removed
}

// EncodePosting flattens a posting's ordered key set to its bounded
// Storable wire form: a uint16 count followed by each key's
// self-delimiting value.EncodeKey frame, in ascending CanonicalCmp
// order so RemoveIndexEntry can binary-search equal frames without
// redecoding the whole set (internal/store callers currently decode in
// full, but the ordering is preserved for future refinement).
func EncodePosting(keys []value.Key) []byte {
	out := make([]byte, 2, 2+len(keys)*9)
	binary.BigEndian.PutUint16(out[0:2], uint16(len(keys)))
	for _, k := range keys {
		out = append(out, value.EncodeKey(k)...)
	}
	return out
}

// DecodePosting reverses EncodePosting, rejecting malformed frames with
// a *Corruption rather than a panic or a silently truncated read.
func DecodePosting(b []byte) ([]value.Key, error) {
	if len(b) < 2 {
		return nil, newCorruption("index", "posting frame shorter than its count header")
	}
	count := int(binary.BigEndian.Uint16(b[0:2]))
	if count > MaxNonUniquePostingKeys {
		return nil, newCorruption("index", fmt.Sprintf("posting claims %d keys, exceeding the bounded cap", count))
	}
	out := make([]value.Key, 0, count)
	pos := 2
	for i := 0; i < count; i++ {
		if pos >= len(b) {
			return nil, newCorruption("index", "posting frame truncated before declared key count was read")
		}
		k, n, err := value.DecodeKey(b[pos:])
		if err != nil {
			return nil, newCorruption("index", fmt.Sprintf("posting entry %d: %v", i, err))
		}
		out = append(out, k)
		pos += n
	}
	if pos != len(b) {
		return nil, newCorruption("index", "posting frame has trailing bytes past its declared keys")
	}
	return out, nil
}
