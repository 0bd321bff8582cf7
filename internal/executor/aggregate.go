package executor

import (
	"github.com/canisterdb/engine/internal/predicate"
	"github.com/canisterdb/engine/internal/store"
	"github.com/canisterdb/engine/internal/value"
)

// AggregateKind enumerates the streaming aggregate terminals spec.md
// §4.6.3 names. MinID/MaxID/First/Last are id-ordered terminals;
// FieldMin/FieldMax are the field-target variants, reduced over a named
// field rather than the primary key. There are no field-target
// First/Last terminals.
type AggregateKind int

const (
	Count AggregateKind = iota
	Exists
	MinID
	MaxID
	First
	Last
	FieldMin
	FieldMax
)

// FoldMode selects which reducer implementation drives a terminal:
// KeysOnly never touches the primary store (sound only when the key
// stream already bijects with rows, e.g. a primary scan's Count);
// ExistingRows probes the primary store for every key and applies
// MissingRowPolicy before the reducer observes the row (spec.md
// §4.6.3).
type FoldMode int

const (
	KeysOnly FoldMode = iota
	ExistingRows
)

// MissingRowPolicy governs what happens when an access path's key
// stream (typically an index posting) names a DataKey with no row in
// the primary store.
type MissingRowPolicy int

const (
	// Ignore silently skips the stale key.
	Ignore MissingRowPolicy = iota
	// Error surfaces the gap as a *store.Corruption.
	Error
)

// RowDecoder turns a raw stored row into the field map predicate
// evaluation and field-target aggregates consult. Row (de)serialization
// format is owned by the caller (spec.md §1's "external collaborator
// owns row (de)serialization"); the executor only needs this one seam.
type RowDecoder func(store.RawRow) (predicate.Row, error)

// AggregateQuery describes one streaming aggregate execution.
type AggregateQuery struct {
	Kind       AggregateKind
	Field      string // FieldMin/FieldMax target field
	Offset     int
	Limit      int // 0 means "unbounded" unless ZeroLimit is set
	ZeroLimit  bool
	Dir        Direction
	Residual   predicate.Predicate // evaluated against ExistingRows only
	HasResidual bool
	MissingRow MissingRowPolicy
	Decoder    RowDecoder
}

// AggregateResult is the terminal's output. Exactly one of the typed
// fields is meaningful, selected by the query's Kind.
type AggregateResult struct {
	Count    int64
	Exists   bool
	Key      *value.Key
	Row      predicate.Row
	HasValue bool
}

// foldMode reports which fold mode a terminal uses. Count is KeysOnly
// only when there's no residual predicate to apply (otherwise rows
// must still be probed to decide which keys survive); every other
// terminal is ExistingRows since it either needs the row's fields
// (FieldMin/FieldMax) or must apply MissingRowPolicy before counting a
// key as a real match.
func foldMode(q AggregateQuery) FoldMode {
	if q.Kind == Count && !q.HasResidual {
		return KeysOnly
	}
	return ExistingRows
}

// shortCircuits reports whether kind stops folding after the first
// accepted element, per spec.md §4.6.3 ("Exists, First, Min(asc),
// Max(desc) short-circuit after the first accepted row"). FieldMin/
// FieldMax never short-circuit here: the key stream's order tracks the
// primary key or an index prefix, not the target field, so the only
// way to find the true field extremum without an order-pushdown
// eligibility check is to scan the whole window and keep the best seen.
func shortCircuits(kind AggregateKind, dir Direction) bool {
	switch kind {
	case Exists, First:
		return true
	case MinID:
		return dir == Asc
	case MaxID:
		return dir == Desc
	default:
		return false
	}
}

// ExecuteAggregate folds stream according to q, applying the
// offset/limit pagination window before terminal production and
// short-circuiting where the terminal and direction allow.
func ExecuteAggregate(stream KeyStream, primary *store.PrimaryStore, q AggregateQuery) (AggregateResult, error) {
	defer stream.Close()

	if q.ZeroLimit {
		return zeroResult(q.Kind), nil
	}

	for i := 0; i < q.Offset; i++ {
		_, ok, err := stream.Next()
		if err != nil {
			return AggregateResult{}, err
		}
		if !ok {
			return zeroResult(q.Kind), nil
		}
	}

	mode := foldMode(q)
	var result AggregateResult
	var count int64
	seen := 0

	for q.Limit == 0 || seen < q.Limit {
		dk, ok, err := stream.Next()
		if err != nil {
			return AggregateResult{}, err
		}
		if !ok {
			break
		}

		if mode == KeysOnly {
			count++
			seen++
			continue
		}

		row, found, err := primary.Get(dk)
		if err != nil {
			return AggregateResult{}, err
		}
		if !found {
			if q.MissingRow == Error {
				return AggregateResult{}, &store.Corruption{Store: "executor", Reason: "aggregate encountered a stale index entry with no backing row"}
			}
			continue
		}
		decoded, err := q.Decoder(row)
		if err != nil {
			return AggregateResult{}, err
		}
		if q.HasResidual && !predicate.Evaluate(decoded, q.Residual) {
			continue
		}

		seen++
		k := dk.Key
		switch q.Kind {
		case Count:
			count++
		case Exists:
			result.Exists = true
		case MinID, MaxID, First, Last:
			result.Key = &k
			result.Row = decoded
			result.HasValue = true
		case FieldMin, FieldMax:
			if !result.HasValue || fieldBeats(decoded[q.Field], result.Row[q.Field], q.Kind) {
				result.Key = &k
				result.Row = decoded
				result.HasValue = true
			}
		}

		if shortCircuits(q.Kind, q.Dir) {
			break
		}
	}

	result.Count = count
	if q.Kind == Count {
		result.HasValue = count > 0
	}
	return result, nil
}

// fieldBeats reports whether candidate should replace current as the
// running FieldMin/FieldMax holder.
func fieldBeats(candidate, current value.Value, kind AggregateKind) bool {
	cmp := value.CanonicalCmp(candidate, current)
	if kind == FieldMin {
		return cmp == value.Less
	}
	return cmp == value.Greater
}

func zeroResult(kind AggregateKind) AggregateResult {
	switch kind {
	case Count:
		return AggregateResult{Count: 0}
	case Exists:
		return AggregateResult{Exists: false}
	default:
		return AggregateResult{HasValue: false}
	}
}
