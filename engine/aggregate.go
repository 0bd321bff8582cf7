package engine

import (
	"github.com/canisterdb/engine/internal/executor"
	"github.com/canisterdb/engine/internal/metrics"
	"github.com/canisterdb/engine/internal/predicate"
)

// AggregateQuery is the façade-level argument to Engine.Aggregate,
// spec.md §6's aggregate_count/exists/min/max/first/last(plan) and
// aggregate_*_by(plan, field) collapsed into one entry point
// parameterized by executor.AggregateKind, since every one of those
// terminals shares the same validate-normalize-lower-then-fold pipeline
// and differs only in Kind and, for the field-target variants, Field.
type AggregateQuery struct {
	Predicate predicate.Predicate
	Dir       executor.Direction
	Field     string // FieldMin/FieldMax target field
	Offset    int
	Limit     int
	ZeroLimit bool
}

// Aggregate runs one streaming aggregate terminal against h.
func (e *Engine) Aggregate(h *EntityHandle, kind executor.AggregateKind, q AggregateQuery) (executor.AggregateResult, error) {
	normalized, plan, err := h.prepare(q.Predicate)
	if err != nil {
		return executor.AggregateResult{}, err
	}
	stream, err := executor.Open(h.Name(), e.stores(), plan, q.Dir)
	if err != nil {
		return executor.AggregateResult{}, err
	}

	aq := executor.AggregateQuery{
		Kind:        kind,
		Field:       q.Field,
		Offset:      q.Offset,
		Limit:       q.Limit,
		ZeroLimit:   q.ZeroLimit,
		Dir:         q.Dir,
		Residual:    normalized,
		HasResidual: normalized.Kind() != predicate.KindTrue,
		MissingRow:  e.missingRow,
		Decoder:     h.codec.Decode,
	}
	result, err := executor.ExecuteAggregate(stream, e.primary, aq)
	if err != nil {
		return executor.AggregateResult{}, err
	}
	e.sink.Record(metrics.PlanStep{EntityPath: h.Name(), Route: executor.ClassifyRoute(plan).String(), KeysOut: result.Count})
	return result, nil
}

// Count returns the number of rows matching q.
func (e *Engine) Count(h *EntityHandle, q AggregateQuery) (int64, error) {
	r, err := e.Aggregate(h, executor.Count, q)
	return r.Count, err
}

// Exists reports whether any row matches q.
func (e *Engine) Exists(h *EntityHandle, q AggregateQuery) (bool, error) {
	r, err := e.Aggregate(h, executor.Exists, q)
	return r.Exists, err
}

// Min returns the matching row with the smallest primary key in q.Dir's
// traversal order.
func (e *Engine) Min(h *EntityHandle, q AggregateQuery) (executor.AggregateResult, error) {
	return e.Aggregate(h, executor.MinID, q)
}

// Max returns the matching row with the largest primary key.
func (e *Engine) Max(h *EntityHandle, q AggregateQuery) (executor.AggregateResult, error) {
	return e.Aggregate(h, executor.MaxID, q)
}

// First returns the first matching row in q.Dir's traversal order.
func (e *Engine) First(h *EntityHandle, q AggregateQuery) (executor.AggregateResult, error) {
	return e.Aggregate(h, executor.First, q)
}

// Last returns the last matching row in q.Dir's traversal order.
func (e *Engine) Last(h *EntityHandle, q AggregateQuery) (executor.AggregateResult, error) {
	return e.Aggregate(h, executor.Last, q)
}

// FieldMin returns the matching row holding the smallest value of
// q.Field.
func (e *Engine) FieldMin(h *EntityHandle, q AggregateQuery) (executor.AggregateResult, error) {
	return e.Aggregate(h, executor.FieldMin, q)
}

// FieldMax returns the matching row holding the largest value of
// q.Field.
func (e *Engine) FieldMax(h *EntityHandle, q AggregateQuery) (executor.AggregateResult, error) {
	return e.Aggregate(h, executor.FieldMax, q)
}
