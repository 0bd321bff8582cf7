package commit

import (
	"github.com/canisterdb/engine/internal/store"
	"github.com/canisterdb/engine/internal/value"
)

// BlockedByStrongRelation is returned when a delete targets an entity
// that still has a live reverse-index entry from a strong relation
// field elsewhere — spec.md §4.7's "delete blocked by strong relation".
type BlockedByStrongRelation struct {
	ReverseIndexName string
}

func (e *BlockedByStrongRelation) Error() string {
	return "commit: delete blocked by strong relation: " + e.ReverseIndexName
}

// EnforceNoReverseRelation checks reverseIndexName's posting for
// target's fingerprint and fails with BlockedByStrongRelation if any
// entry exists. The executor must call this before building a delete's
// commit marker (spec.md §4.7: "the executor MUST consult the reverse
// index before issuing the delete's commit marker").
func EnforceNoReverseRelation(index *store.IndexStore, reverseIndexName string, target value.Key) error {
	fp, err := value.NewFingerprint(target.Value())
	if err != nil {
		return err
	}
	cur, err := index.ResolveDataValues(reverseIndexName, []value.Fingerprint{fp})
	if err != nil {
		return err
	}
	defer cur.Close()
	_, keys, ok, err := cur.Next()
	if err != nil {
		return err
	}
	if ok && len(keys) > 0 {
		return &BlockedByStrongRelation{ReverseIndexName: reverseIndexName}
	}
	return nil
}
