package predicate

import (
	"bytes"
	"sort"
)

// Normalize rewrites p into its canonical form: double negation is
// eliminated, De Morgan's laws push Not down to leaves, nested And/Or
// are flattened, constants (True/False) are propagated and short
// circuited, and And/Or children are sorted into a deterministic order.
// Two semantically equivalent predicates normalize to structurally
// (and, via Fingerprint, byte-) identical results.
//
// Grounded on original_source's db/primitives/filter/expr.rs Simplify,
// generalized with a commutative sort pass expr.rs does not need (its
// AST is never compared for byte-equality).
func Normalize(p Predicate) Predicate {
	switch p.kind {
	case KindNot:
		return normalizeNot(p.children[0])
	case KindAnd:
		return normalizeAnd(p.children)
	case KindOr:
		return normalizeOr(p.children)
	default:
		return p
	}
}

func normalizeNot(inner Predicate) Predicate {
	switch inner.kind {
	case KindTrue:
		return False()
	case KindFalse:
		return True()
	case KindNot:
		return Normalize(inner.children[0])
	case KindAnd:
		negated := make([]Predicate, len(inner.children))
		for i, c := range inner.children {
			negated[i] = normalizeNot(c)
		}
		return normalizeOr(negated)
	case KindOr:
		negated := make([]Predicate, len(inner.children))
		for i, c := range inner.children {
			negated[i] = normalizeNot(c)
		}
		return normalizeAnd(negated)
	default:
		return Not(Normalize(inner))
	}
}

func normalizeAnd(children []Predicate) Predicate {
	flat := flattenChildren(children, KindAnd)
	for _, c := range flat {
		if c.kind == KindFalse {
			return False()
		}
	}
	filtered := filterKind(flat, KindTrue)
	return collapse(filtered, KindAnd, True())
}

func normalizeOr(children []Predicate) Predicate {
	flat := flattenChildren(children, KindOr)
	for _, c := range flat {
		if c.kind == KindTrue {
			return True()
		}
	}
	filtered := filterKind(flat, KindFalse)
	return collapse(filtered, KindOr, False())
}

func flattenChildren(children []Predicate, flattenKind Kind) []Predicate {
	flat := make([]Predicate, 0, len(children))
	for _, c := range children {
		normalized := Normalize(c)
		if normalized.kind == flattenKind {
			flat = append(flat, normalized.children...)
		} else {
			flat = append(flat, normalized)
		}
	}
	return flat
}

func filterKind(children []Predicate, drop Kind) []Predicate {
	out := make([]Predicate, 0, len(children))
	for _, c := range children {
		if c.kind != drop {
			out = append(out, c)
		}
	}
	return out
}

func collapse(children []Predicate, kind Kind, whenEmpty Predicate) Predicate {
	switch len(children) {
	case 0:
		return whenEmpty
	case 1:
		return children[0]
	default:
		sortCommutative(children)
		return Predicate{kind: kind, children: children}
	}
}

// sortCommutative orders And/Or children by their canonical Fingerprint
// so structurally equal sets of children always produce the same slice
// order regardless of construction order.
func sortCommutative(children []Predicate) {
	sort.Slice(children, func(i, j int) bool {
		return bytes.Compare(Fingerprint(children[i]), Fingerprint(children[j])) < 0
	})
}
