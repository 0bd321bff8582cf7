package executor

import (
	"container/heap"

	"github.com/canisterdb/engine/internal/value"
)

// before reports whether a precedes b in the stream's emission order
// for the given direction (ascending canonical order, or its reverse).
func before(a, b value.Key, dir Direction) bool {
	cmp := value.CanonicalCmp(a.Value(), b.Value())
	if dir == Asc {
		return cmp == value.Less
	}
	return cmp == value.Greater
}

func equalKey(a, b value.Key) bool {
	return value.CanonicalCmp(a.Value(), b.Value()) == value.Equal
}

// mergeHeapItem is one child stream's current head, pending emission.
type mergeHeapItem struct {
	dataKey value.DataKey
	child   int
}

// mergeHeap orders heads by the stream's direction, tie-broken by child
// index so permutations of Union's children never change emission order
// (spec.md's Design Notes §9, "tie-break by child index").
type mergeHeap struct {
	items []mergeHeapItem
	dir   Direction
}

func (h *mergeHeap) Len() int { return len(h.items) }
func (h *mergeHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if equalKey(a.dataKey.Key, b.dataKey.Key) {
		return a.child < b.child
	}
	return before(a.dataKey.Key, b.dataKey.Key, h.dir)
}
func (h *mergeHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *mergeHeap) Push(x any)    { h.items = append(h.items, x.(mergeHeapItem)) }
func (h *mergeHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

// unionStream performs a lazy k-way merge over its children using a
// min-heap (max-heap under Desc) ordered by the canonical key
// comparator, emitting each distinct key at most once per logical
// position (spec.md §4.6.1's Union contract).
type unionStream struct {
	children []KeyStream
	dir      Direction
	h        *mergeHeap
	primed   bool
}

func newUnionStream(children []KeyStream, dir Direction) *unionStream {
	return &unionStream{children: children, dir: dir, h: &mergeHeap{dir: dir}}
}

func (s *unionStream) prime() error {
	for i, c := range s.children {
		dk, ok, err := c.Next()
		if err != nil {
			return err
		}
		if ok {
			heap.Push(s.h, mergeHeapItem{dataKey: dk, child: i})
		}
	}
	s.primed = true
	return nil
}

func (s *unionStream) pull(child int) error {
	dk, ok, err := s.children[child].Next()
	if err != nil {
		return err
	}
	if ok {
		heap.Push(s.h, mergeHeapItem{dataKey: dk, child: child})
	}
	return nil
}

func (s *unionStream) Next() (value.DataKey, bool, error) {
	if !s.primed {
		if err := s.prime(); err != nil {
			return value.DataKey{}, false, err
		}
	}
	if s.h.Len() == 0 {
		return value.DataKey{}, false, nil
	}
	top := heap.Pop(s.h).(mergeHeapItem)
	result := top.dataKey
	if err := s.pull(top.child); err != nil {
		return value.DataKey{}, false, err
	}
	for s.h.Len() > 0 && equalKey(s.h.items[0].dataKey.Key, result.Key) {
		dup := heap.Pop(s.h).(mergeHeapItem)
		if err := s.pull(dup.child); err != nil {
			return value.DataKey{}, false, err
		}
	}
	return result, true, nil
}

func (s *unionStream) Close() {
	for _, c := range s.children {
		c.Close()
	}
}

// intersectionStream emits only keys present in every child's stream.
// Unlike Union, a single minimum never suffices to decide a match — the
// whole head set must agree — so each step scans the active heads
// directly rather than going through the heap.
type intersectionStream struct {
	children []KeyStream
	dir      Direction
	heads    []*value.DataKey
	primed   bool
	done     bool
}

func newIntersectionStream(children []KeyStream, dir Direction) *intersectionStream {
	return &intersectionStream{children: children, dir: dir, heads: make([]*value.DataKey, len(children))}
}

func (s *intersectionStream) prime() error {
	for i, c := range s.children {
		dk, ok, err := c.Next()
		if err != nil {
			return err
		}
		if ok {
			cp := dk
			s.heads[i] = &cp
		}
	}
	s.primed = true
	if len(s.children) == 0 {
		s.done = true
	}
	return nil
}

func (s *intersectionStream) advance(i int) error {
	dk, ok, err := s.children[i].Next()
	if err != nil {
		return err
	}
	if !ok {
		s.heads[i] = nil
		return nil
	}
	s.heads[i] = &dk
	return nil
}

func (s *intersectionStream) Next() (value.DataKey, bool, error) {
	if !s.primed {
		if err := s.prime(); err != nil {
			return value.DataKey{}, false, err
		}
	}
	if s.done {
		return value.DataKey{}, false, nil
	}
	for {
		for _, h := range s.heads {
			if h == nil {
				s.done = true
				return value.DataKey{}, false, nil
			}
		}
		laggard := 0
		allEqual := true
		for i := 1; i < len(s.heads); i++ {
			if !equalKey(s.heads[i].Key, s.heads[laggard].Key) {
				allEqual = false
			}
			if before(s.heads[i].Key, s.heads[laggard].Key, s.dir) {
				laggard = i
			}
		}
		if allEqual {
			result := *s.heads[0]
			for i := range s.heads {
				if err := s.advance(i); err != nil {
					return value.DataKey{}, false, err
				}
			}
			return result, true, nil
		}
		for i := range s.heads {
			if equalKey(s.heads[i].Key, s.heads[laggard].Key) {
				if err := s.advance(i); err != nil {
					return value.DataKey{}, false, err
				}
			}
		}
	}
}

func (s *intersectionStream) Close() {
	for _, c := range s.children {
		c.Close()
	}
}
