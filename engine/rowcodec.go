package engine

import (
	"github.com/canisterdb/engine/internal/executor"
	"github.com/canisterdb/engine/internal/predicate"
	"github.com/canisterdb/engine/internal/store"
)

// RowCodec is the external collaborator's row (de)serializer, the seam
// spec.md §1 calls out as owned outside this engine: everything here
// treats a row as a store.RawRow byte string, and only Encode/Decode
// ever cross into the predicate.Row{field name -> value.Value} shape
// the predicate engine and planner understand.
type RowCodec struct {
	Encode func(predicate.Row) (store.RawRow, error)
	Decode executor.RowDecoder
}
