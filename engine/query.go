package engine

import (
	"sort"

	"github.com/canisterdb/engine/internal/executor"
	"github.com/canisterdb/engine/internal/metrics"
	"github.com/canisterdb/engine/internal/predicate"
	"github.com/canisterdb/engine/internal/store"
	"github.com/canisterdb/engine/internal/value"
)

// Query bundles a predicate and emission direction, the arguments
// execute(plan) → Response takes per spec.md §6 once a predicate has
// replaced the literal "plan" argument with the validate-normalize-lower
// sequence EntityHandle.prepare runs on it.
type Query struct {
	Predicate predicate.Predicate
	Dir       executor.Direction
}

// Response is the materialized result of Execute: every row in the
// handle's entity matching the query, emitted in the plan's natural
// order.
type Response struct {
	Rows []predicate.Row
}

// Page is one page of ExecutePagedWithCursor's result: the accepted
// rows plus the cursor to resume from, nil when no further rows remain.
type Page struct {
	Rows []predicate.Row
	Next *executor.Cursor
}

// countingStream wraps a KeyStream to give an honest RowsScanned metric
// reflecting every key pulled off the stream, independent of how many
// of those keys survived the existence and residual-predicate filter
// nextAcceptedRow applies afterward.
type countingStream struct {
	inner executor.KeyStream
	count *int64
}

func (c *countingStream) Next() (value.DataKey, bool, error) {
	dk, ok, err := c.inner.Next()
	if err == nil && ok {
		*c.count++
	}
	return dk, ok, err
}

func (c *countingStream) Close() { c.inner.Close() }

// nextAcceptedRow pulls keys off stream until one both has a backing
// row (per missingRow's policy on a dangling index entry) and satisfies
// residual, or the stream is exhausted. This is the same residual-filter
// discipline internal/planner.Lower's doc comment demands of every
// caller: Lower is a sound over-approximation, so every row it admits
// must still be re-evaluated against the real predicate before being
// accepted.
func nextAcceptedRow(stream executor.KeyStream, primary *store.PrimaryStore, decode executor.RowDecoder, residual predicate.Predicate, missingRow executor.MissingRowPolicy) (predicate.Row, value.Key, bool, error) {
	for {
		dk, ok, err := stream.Next()
		if err != nil {
			return nil, value.Key{}, false, err
		}
		if !ok {
			return nil, value.Key{}, false, nil
		}
		raw, found, err := primary.Get(dk)
		if err != nil {
			return nil, value.Key{}, false, err
		}
		if !found {
			if missingRow == executor.Error {
				return nil, value.Key{}, false, &store.Corruption{Store: "engine", Reason: "query encountered a stale index entry with no backing row"}
			}
			continue
		}
		row, err := decode(raw)
		if err != nil {
			return nil, value.Key{}, false, err
		}
		if !predicate.Evaluate(row, residual) {
			continue
		}
		return row, dk.Key, true, nil
	}
}

// Execute materializes every row of h's entity matching q.Predicate, in
// q.Dir's order, recording RowsScanned and PlanStep metrics once the
// traversal completes.
func (e *Engine) Execute(h *EntityHandle, q Query) (Response, error) {
	normalized, plan, err := h.prepare(q.Predicate)
	if err != nil {
		return Response{}, err
	}
	stream, err := executor.Open(h.Name(), e.stores(), plan, q.Dir)
	if err != nil {
		return Response{}, err
	}
	var scanned int64
	cs := &countingStream{inner: stream, count: &scanned}
	defer cs.Close()

	var rows []predicate.Row
	for {
		row, _, ok, err := nextAcceptedRow(cs, e.primary, h.codec.Decode, normalized, e.missingRow)
		if err != nil {
			return Response{}, err
		}
		if !ok {
			break
		}
		rows = append(rows, row)
	}
	e.sink.Record(metrics.RowsScanned{EntityPath: h.Name(), RowsScanned: scanned})
	e.sink.Record(metrics.PlanStep{EntityPath: h.Name(), Route: executor.ClassifyRoute(plan).String(), KeysOut: int64(len(rows))})
	return Response{Rows: rows}, nil
}

// ExecutePagedWithCursor runs q against h, resuming from cursor (nil
// for a first page), skipping offset raw key-stream positions before
// accepting any row, and accepting up to limit rows (limit <= 0 means
// unbounded). Offset and limit mirror internal/executor.ExecuteAggregate's
// own semantics exactly: offset counts raw stream pulls, limit counts
// rows that survive the existence and residual-predicate filter.
func (e *Engine) ExecutePagedWithCursor(h *EntityHandle, q Query, cursor *executor.Cursor, offset, limit int) (Page, error) {
	normalized, plan, err := h.prepare(q.Predicate)
	if err != nil {
		return Page{}, err
	}
	stream, err := executor.Open(h.Name(), e.stores(), plan, q.Dir)
	if err != nil {
		return Page{}, err
	}
	var ks executor.KeyStream = stream
	if cursor != nil {
		ks = executor.Resume(ks, cursor.Last, q.Dir)
	}
	var scanned int64
	cs := &countingStream{inner: ks, count: &scanned}
	defer cs.Close()

	for i := 0; i < offset; i++ {
		_, ok, err := cs.Next()
		if err != nil {
			return Page{}, err
		}
		if !ok {
			e.sink.Record(metrics.RowsScanned{EntityPath: h.Name(), RowsScanned: scanned})
			return Page{}, nil
		}
	}

	var rows []predicate.Row
	var lastKey value.Key
	haveLast := false
	for limit <= 0 || len(rows) < limit {
		row, key, ok, err := nextAcceptedRow(cs, e.primary, h.codec.Decode, normalized, e.missingRow)
		if err != nil {
			return Page{}, err
		}
		if !ok {
			break
		}
		rows = append(rows, row)
		lastKey = key
		haveLast = true
	}

	var next *executor.Cursor
	if haveLast {
		_, _, more, err := nextAcceptedRow(cs, e.primary, h.codec.Decode, normalized, e.missingRow)
		if err != nil {
			return Page{}, err
		}
		if more {
			next = &executor.Cursor{Entity: h.Name(), Last: lastKey}
		}
	}
	e.sink.Record(metrics.RowsScanned{EntityPath: h.Name(), RowsScanned: scanned})
	return Page{Rows: rows, Next: next}, nil
}

// OrderField names one field to sort by, and whether descending.
type OrderField struct {
	Name string
	Desc bool
}

// OrderSpec is an ordered list of sort keys, applied in sequence: a tie
// on one field falls through to the next.
type OrderSpec struct {
	Fields []OrderField
}

// ExecuteOrdered materializes q against h via Execute, imposes order
// over the full result, then applies the offset/limit window as a plain
// slice operation (limit <= 0 means unbounded). internal/planner and
// internal/executor's public API has no order-by parameter of its own —
// only natural plan-emission order plus an order-pushdown flag the
// executor already exploits internally — so an explicit order-by
// request is served by materializing and sorting in memory, the same
// parity spec.md's streaming/materialized equivalence property
// guarantees: the fast-path result and the reduced-in-memory result over
// the same query are required to agree, so sorting the materialized
// form never produces an answer the streaming path couldn't also
// justify.
func (e *Engine) ExecuteOrdered(h *EntityHandle, q Query, order OrderSpec, offset, limit int) (Response, error) {
	resp, err := e.Execute(h, q)
	if err != nil {
		return Response{}, err
	}
	sortRows(resp.Rows, order, h.View().PrimaryKeyName())

	if offset > len(resp.Rows) {
		return Response{}, nil
	}
	windowed := resp.Rows[offset:]
	if limit > 0 && limit < len(windowed) {
		windowed = windowed[:limit]
	}
	return Response{Rows: windowed}, nil
}

// sortRows orders rows by order's fields in sequence, using
// value.StrictOrderCmp so a comparison across mismatched kinds (which
// returns ok=false) falls through to the next field rather than
// treating the rows as equal or panicking. A final tie-break on the
// primary key via value.CanonicalCmp (which is total over every Kind)
// keeps the sort fully deterministic even when every requested field
// ties or is incomparable.
func sortRows(rows []predicate.Row, order OrderSpec, pkName string) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, f := range order.Fields {
			av, aok := rows[i][f.Name]
			bv, bok := rows[j][f.Name]
			if !aok || !bok {
				continue
			}
			ord, ok := value.StrictOrderCmp(av, bv)
			if !ok || ord == value.Equal {
				continue
			}
			if f.Desc {
				return ord == value.Greater
			}
			return ord == value.Less
		}
		apk := rows[i][pkName]
		bpk := rows[j][pkName]
		return value.CanonicalCmp(apk, bpk) == value.Less
	})
}
