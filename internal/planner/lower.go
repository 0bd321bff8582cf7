package planner

import (
	"bytes"
	"sort"

	"github.com/canisterdb/engine/internal/predicate"
	"github.com/canisterdb/engine/internal/schema"
	"github.com/canisterdb/engine/internal/value"
)

// Lower lowers a normalized predicate into a sound (over-approximating)
// AccessPlan: every row the real predicate would match is reachable
// through the returned plan, though the plan may also admit extra rows
// the executor's residual-predicate pass then filters out. Callers
// should normalize p (predicate.Normalize) before calling Lower so
// equivalent predicates lower to equivalent plans.
func Lower(view schema.View, p predicate.Predicate) AccessPlan {
	return Normalize(lower(view, p))
}

func lower(view schema.View, p predicate.Predicate) AccessPlan {
	switch p.Kind() {
	case predicate.KindFalse:
		return pathPlan(Path{Kind: ByKeys})
	case predicate.KindTrue:
		return fullScanPlan()
	case predicate.KindAnd:
		return lowerAnd(view, p.Children())
	case predicate.KindOr:
		return lowerOr(view, p.Children())
	case predicate.KindCompare:
		return lowerCompare(view, p)
	default:
		return fullScanPlan()
	}
}

func lowerCompare(view schema.View, p predicate.Predicate) AccessPlan {
	switch p.Op() {
	case predicate.Eq:
		return lowerEq(view, p.Field(), p.Literal())
	case predicate.In:
		return lowerIn(view, p.Field(), p.Literals())
	default:
		return fullScanPlan()
	}
}

func lowerEq(view schema.View, field string, lit value.Value) AccessPlan {
	if field == view.PrimaryKeyName() {
		if k, err := value.NewKey(lit); err == nil {
			return pathPlan(Path{Kind: ByKey, Key: k})
		}
		return fullScanPlan()
	}
	if idx, ok := leadingIndexFor(view, field); ok {
		return pathPlan(Path{Kind: IndexPrefix, IndexName: idx.Name, Prefix: []value.Value{lit}})
	}
	return fullScanPlan()
}

func lowerIn(view schema.View, field string, lits []value.Value) AccessPlan {
	if field == view.PrimaryKeyName() {
		keys := dedupKeys(lits)
		if keys == nil {
			return fullScanPlan()
		}
		return pathPlan(Path{Kind: ByKeys, Keys: keys})
	}
	if idx, ok := leadingIndexFor(view, field); ok {
		children := make([]AccessPlan, 0, len(lits))
		for _, lit := range lits {
			children = append(children, pathPlan(Path{Kind: IndexPrefix, IndexName: idx.Name, Prefix: []value.Value{lit}}))
		}
		return AccessPlan{Kind: KindUnion, Children: children}
	}
	return fullScanPlan()
}

func dedupKeys(lits []value.Value) []value.Key {
	seen := make(map[value.Fingerprint]bool, len(lits))
	out := make([]value.Key, 0, len(lits))
	for _, lit := range lits {
		k, err := value.NewKey(lit)
		if err != nil {
			return nil
		}
		fp, err := value.NewFingerprint(lit)
		if err != nil {
			return nil
		}
		if seen[fp] {
			continue
		}
		seen[fp] = true
		out = append(out, k)
	}
	return out
}

// leadingIndexFor returns the lexicographically-smallest-named index
// whose leading field is field, for deterministic index selection when
// more than one index qualifies.
func leadingIndexFor(view schema.View, field string) (schema.Index, bool) {
	var best schema.Index
	found := false
	for _, idx := range view.Indexes() {
		if len(idx.Fields) == 0 || idx.Fields[0] != field {
			continue
		}
		if !found || idx.Name < best.Name {
			best = idx
			found = true
		}
	}
	return best, found
}

// lowerAnd detects the longest composite index prefix fully constrained
// by direct Eq children, emits it as one IndexPrefix, and intersects it
// with the lowered forms of whatever children the prefix did not
// consume.
func lowerAnd(view schema.View, children []predicate.Predicate) AccessPlan {
	eqByField := make(map[string]value.Value)
	eqConsumed := make(map[string]bool)
	for _, c := range children {
		if c.Kind() == predicate.KindCompare && c.Op() == predicate.Eq {
			if _, already := eqByField[c.Field()]; !already {
				eqByField[c.Field()] = c.Literal()
			}
		}
	}

	bestIdx, bestPrefix := bestCompositePrefix(view, eqByField)

	var plans []AccessPlan
	if bestIdx != nil {
		for _, f := range bestIdx.Fields[:len(bestPrefix)] {
			eqConsumed[f] = true
		}
		values := make([]value.Value, len(bestPrefix))
		copy(values, bestPrefix)
		plans = append(plans, pathPlan(Path{Kind: IndexPrefix, IndexName: bestIdx.Name, Prefix: values}))
	}

	for _, c := range children {
		if c.Kind() == predicate.KindCompare && c.Op() == predicate.Eq && eqConsumed[c.Field()] {
			continue
		}
		childPlan := lower(view, c)
		if childPlan.Kind == KindPath && childPlan.Path.Kind == FullScan {
			continue // a FullScan child imposes no extra narrowing; drop it
		}
		plans = append(plans, childPlan)
	}

	switch len(plans) {
	case 0:
		return fullScanPlan()
	case 1:
		return plans[0]
	default:
		return AccessPlan{Kind: KindIntersection, Children: plans}
	}
}

// bestCompositePrefix finds the index whose longest leading run of
// fields all have an Eq constraint in eqByField, preferring the longest
// match and breaking ties on index name for determinism.
func bestCompositePrefix(view schema.View, eqByField map[string]value.Value) (*schema.Index, []value.Value) {
	var bestIdx *schema.Index
	var bestVals []value.Value
	indexes := view.Indexes()
	for i := range indexes {
		idx := indexes[i]
		var vals []value.Value
		for _, f := range idx.Fields {
			v, ok := eqByField[f]
			if !ok {
				break
			}
			vals = append(vals, v)
		}
		if len(vals) == 0 {
			continue
		}
		if bestIdx == nil || len(vals) > len(bestVals) || (len(vals) == len(bestVals) && idx.Name < bestIdx.Name) {
			idxCopy := idx
			bestIdx = &idxCopy
			bestVals = vals
		}
	}
	return bestIdx, bestVals
}

func lowerOr(view schema.View, children []predicate.Predicate) AccessPlan {
	plans := make([]AccessPlan, 0, len(children))
	for _, c := range children {
		p := lower(view, c)
		if p.Kind == KindPath && p.Path.Kind == FullScan {
			return fullScanPlan() // any FullScan child dominates
		}
		plans = append(plans, p)
	}
	if len(plans) == 0 {
		return fullScanPlan()
	}
	if len(plans) == 1 {
		return plans[0]
	}
	return AccessPlan{Kind: KindUnion, Children: plans}
}

// Normalize flattens nested Union/Intersection nodes of the same kind,
// removes exact-duplicate children, and sorts children by a
// deterministic fingerprint so equivalent plans compare byte-equal.
func Normalize(p AccessPlan) AccessPlan {
	switch p.Kind {
	case KindUnion:
		return normalizeComposite(p, KindUnion)
	case KindIntersection:
		return normalizeComposite(p, KindIntersection)
	default:
		return p
	}
}

func normalizeComposite(p AccessPlan, kind PlanKind) AccessPlan {
	var flat []AccessPlan
	for _, c := range p.Children {
		nc := Normalize(c)
		if nc.Kind == kind {
			flat = append(flat, nc.Children...)
		} else {
			flat = append(flat, nc)
		}
	}

	seen := make(map[string]bool, len(flat))
	var deduped []AccessPlan
	for _, c := range flat {
		fp := string(Fingerprint(c))
		if seen[fp] {
			continue
		}
		seen[fp] = true
		deduped = append(deduped, c)
	}

	sort.Slice(deduped, func(i, j int) bool {
		return bytes.Compare(Fingerprint(deduped[i]), Fingerprint(deduped[j])) < 0
	})

	if len(deduped) == 1 {
		return deduped[0]
	}
	return AccessPlan{Kind: kind, Children: deduped}
}
