// Package executor turns a planner.AccessPlan into ordered key streams,
// materialized rows, and streaming aggregates, generalizing
// ddbstore/store_query.go's single prefix-seek iterator (partition
// prefix, ScanIndexForward, ExclusiveStartKey) to the planner's richer
// access-path vocabulary.
package executor

import (
	"github.com/canisterdb/engine/internal/planner"
	"github.com/canisterdb/engine/internal/store"
	"github.com/canisterdb/engine/internal/value"
)

// Direction is the emission order a KeyStream produces.
type Direction int

const (
	Asc Direction = iota
	Desc
)

// Stores bundles the two backing stores a KeyStream reads from. The
// executor never opens or closes these itself; the engine façade owns
// their lifecycle.
type Stores struct {
	Primary *store.PrimaryStore
	Index   *store.IndexStore
}

// KeyStream is a single-producer, pull-based, lazy, finite,
// non-restartable sequence of primary DataKeys in canonical order
// (spec.md §4.6.1). Implementations never materialize the full
// traversal; Next pulls exactly one element at a time from the
// underlying store cursors.
type KeyStream interface {
	// Next returns the next key in stream order, ok=false once
	// exhausted.
	Next() (value.DataKey, bool, error)
	// Close releases any cursors the stream holds open, whether or not
	// the stream was exhausted.
	Close()
}

// Open builds the KeyStream a plan describes, recursing through
// Union/Intersection into per-child streams merged with a canonical
// k-way merge. This is the one, single implementation every fast path
// in routing.go is a pure optimization of: Open always produces the
// plan-correct multiset and order, so a fast path can never diverge
// from it (spec.md §4.6.2's "MUST produce the same multiset and
// order").
func Open(entity string, s Stores, plan planner.AccessPlan, dir Direction) (KeyStream, error) {
	switch plan.Kind {
	case planner.KindPath:
		return openPath(entity, s, plan.Path, dir)
	case planner.KindUnion:
		children, err := openChildren(entity, s, plan.Children, dir)
		if err != nil {
			return nil, err
		}
		return newUnionStream(children, dir), nil
	case planner.KindIntersection:
		children, err := openChildren(entity, s, plan.Children, dir)
		if err != nil {
			return nil, err
		}
		return newIntersectionStream(children, dir), nil
	default:
		return nil, newInternal("unrecognized access plan kind %d", plan.Kind)
	}
}

func openChildren(entity string, s Stores, plans []planner.AccessPlan, dir Direction) ([]KeyStream, error) {
	streams := make([]KeyStream, 0, len(plans))
	for _, p := range plans {
		st, err := Open(entity, s, p, dir)
		if err != nil {
			closeAll(streams)
			return nil, err
		}
		streams = append(streams, st)
	}
	return streams, nil
}

func closeAll(streams []KeyStream) {
	for _, s := range streams {
		s.Close()
	}
}

func openPath(entity string, s Stores, p planner.Path, dir Direction) (KeyStream, error) {
	switch p.Kind {
	case planner.ByKey:
		return &sliceStream{entity: entity, keys: []value.Key{p.Key}}, nil
	case planner.ByKeys:
		return &sliceStream{entity: entity, keys: dedupAndOrder(p.Keys, dir)}, nil
	case planner.KeyRange:
		return newPrimaryScanStream(entity, s.Primary, p.Lower, p.Upper, dir)
	case planner.FullScan:
		return newPrimaryScanStream(entity, s.Primary, planner.Bound{}, planner.Bound{}, dir)
	case planner.IndexPrefix, planner.IndexRange:
		// IndexRange's own IndexLower/IndexUpper bound on the field
		// after the prefix has no current producer in internal/planner
		// (Lower only ever emits IndexPrefix); when one is introduced,
		// the posting stream still needs no change — the range bound
		// narrows which index keys ResolveDataValuesDir visits, not how
		// postings are flattened.
		return newIndexPostingStream(entity, s.Index, p.IndexName, p.Prefix, dir)
	default:
		return nil, newInternal("unrecognized path kind %d", p.Kind)
	}
}

func dedupAndOrder(keys []value.Key, dir Direction) []value.Key {
	seen := make(map[string]bool, len(keys))
	out := make([]value.Key, 0, len(keys))
	for _, k := range keys {
		enc, err := value.EncodeCanonicalIndexComponent(k.Value())
		tag := string(enc)
		if err != nil {
			tag = k.Value().Kind().String()
		}
		if seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, k)
	}
	sortKeys(out)
	if dir == Desc {
		reverseKeys(out)
	}
	return out
}

func sortKeys(keys []value.Key) {
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && value.CanonicalCmp(keys[j-1].Value(), keys[j].Value()) == value.Greater; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
}

func reverseKeys(keys []value.Key) {
	for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
		keys[i], keys[j] = keys[j], keys[i]
	}
}

// sliceStream serves a pre-ordered, already-materialized key slice —
// legitimate here because ByKey/ByKeys describe a bounded, caller-given
// key set, not a store traversal that must stay lazy.
type sliceStream struct {
	entity string
	keys   []value.Key
	pos    int
}

func (s *sliceStream) Next() (value.DataKey, bool, error) {
	if s.pos >= len(s.keys) {
		return value.DataKey{}, false, nil
	}
	k := s.keys[s.pos]
	s.pos++
	return value.DataKey{Entity: s.entity, Key: k}, true, nil
}

func (s *sliceStream) Close() {}

// primaryScanStream wraps a store.RowCursor, discarding the row payload
// to surface just the ordered DataKey sequence FullScan/KeyRange need,
// and applying the residual lower/upper bound the cursor's seek point
// alone cannot express (an exclusive bound, or the stop condition on
// the far side of the scan).
type primaryScanStream struct {
	entity       string
	cur          *store.RowCursor
	dir          Direction
	lower, upper planner.Bound
	done         bool
}

func newPrimaryScanStream(entity string, primary *store.PrimaryStore, lower, upper planner.Bound, dir Direction) (*primaryScanStream, error) {
	var fromKey *value.Key
	if dir == Asc && lower.Present {
		fromKey = &lower.Key
	} else if dir == Desc && upper.Present {
		fromKey = &upper.Key
	}
	cur, err := primary.ScanEntityDir(entity, fromKey, dir == Desc)
	if err != nil {
		return nil, err
	}
	return &primaryScanStream{entity: entity, cur: cur, dir: dir, lower: lower, upper: upper}, nil
}

func satisfiesLower(k value.Key, b planner.Bound) bool {
	if !b.Present {
		return true
	}
	cmp := value.CanonicalCmp(k.Value(), b.Key.Value())
	if b.Inclusive {
		return cmp != value.Less
	}
	return cmp == value.Greater
}

func satisfiesUpper(k value.Key, b planner.Bound) bool {
	if !b.Present {
		return true
	}
	cmp := value.CanonicalCmp(k.Value(), b.Key.Value())
	if b.Inclusive {
		return cmp != value.Greater
	}
	return cmp == value.Less
}

func (s *primaryScanStream) Next() (value.DataKey, bool, error) {
	if s.done {
		return value.DataKey{}, false, nil
	}
	for {
		k, _, ok, err := s.cur.Next()
		if err != nil {
			s.done = true
			return value.DataKey{}, false, err
		}
		if !ok {
			s.done = true
			return value.DataKey{}, false, nil
		}
		if s.dir == Asc {
			if !satisfiesLower(k, s.lower) {
				continue
			}
			if !satisfiesUpper(k, s.upper) {
				s.done = true
				return value.DataKey{}, false, nil
			}
		} else {
			if !satisfiesUpper(k, s.upper) {
				continue
			}
			if !satisfiesLower(k, s.lower) {
				s.done = true
				return value.DataKey{}, false, nil
			}
		}
		return value.DataKey{Entity: s.entity, Key: k}, true, nil
	}
}

func (s *primaryScanStream) Close() { s.cur.Close() }

// indexPostingStream wraps a store.PostingCursor, flattening each
// posting (a batch of primary keys sharing one index key) into the
// DataKey sequence IndexPrefix/IndexRange need. Postings are always
// stored in ascending canonical order (internal/store/posting.go), so
// Desc only needs to reverse each batch, not re-sort it.
type indexPostingStream struct {
	entity string
	cur    *store.PostingCursor
	dir    Direction
	buf    []value.Key
	pos    int
}

func newIndexPostingStream(entity string, index *store.IndexStore, indexName string, prefix []value.Value, dir Direction) (*indexPostingStream, error) {
	fps := make([]value.Fingerprint, len(prefix))
	for i, v := range prefix {
		fp, err := value.NewFingerprint(v)
		if err != nil {
			return nil, err
		}
		fps[i] = fp
	}
	cur, err := index.ResolveDataValuesDir(indexName, fps, dir == Desc)
	if err != nil {
		return nil, err
	}
	return &indexPostingStream{entity: entity, cur: cur, dir: dir}, nil
}

func (s *indexPostingStream) Next() (value.DataKey, bool, error) {
	for s.pos >= len(s.buf) {
		_, keys, ok, err := s.cur.Next()
		if err != nil {
			return value.DataKey{}, false, err
		}
		if !ok {
			return value.DataKey{}, false, nil
		}
		batch := make([]value.Key, len(keys))
		copy(batch, keys)
		if s.dir == Desc {
			reverseKeys(batch)
		}
		s.buf = batch
		s.pos = 0
	}
	k := s.buf[s.pos]
	s.pos++
	return value.DataKey{Entity: s.entity, Key: k}, true, nil
}

func (s *indexPostingStream) Close() { s.cur.Close() }
