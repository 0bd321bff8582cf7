// Package planner lowers a normalized predicate.Predicate into an
// AccessPlan: a description of which stores to touch and in what shape,
// generalizing dynamodb/ddbstore/expressionparser's
// partition-key/sort-key split (a fixed two-level key schema) to the
// spec's arbitrary-arity secondary indexes.
package planner

import "github.com/canisterdb/engine/internal/value"

// PathKind discriminates the leaf access-path shapes a Plan may bottom
// out in.
type PathKind int

const (
	ByKey PathKind = iota
	ByKeys
	KeyRange
	IndexPrefix
	IndexRange
	FullScan
)

// Bound describes one side of a KeyRange/IndexRange: present or not,
// and whether the bound itself is included in the range.
type Bound struct {
	Present   bool
	Inclusive bool
	Key       value.Key
}

// Path is one leaf access path.
type Path struct {
	Kind PathKind

	// ByKey
	Key value.Key
	// ByKeys (order preserved, duplicates already removed by the lowerer)
	Keys []value.Key
	// KeyRange (primary store)
	Lower, Upper Bound
	// IndexPrefix / IndexRange
	IndexName string
	Prefix    []value.Value
	// IndexRange's own lower/upper bound on the field after the prefix
	IndexLower, IndexUpper Bound

	// SecondaryOrderPushdown is true when this path's natural emission
	// order already matches the query's requested order-by, letting the
	// executor skip an explicit sort.
	SecondaryOrderPushdown bool
	// RangeLimitPushdown is true when Lower/Upper (or IndexLower/Upper)
	// bound the fetch tightly enough that the executor can stop early
	// rather than filtering a full traversal.
	RangeLimitPushdown bool
}

// PlanKind discriminates an AccessPlan node.
type PlanKind int

const (
	KindPath PlanKind = iota
	KindUnion
	KindIntersection
)

// AccessPlan is the closed sum Path | Union | Intersection.
type AccessPlan struct {
	Kind     PlanKind
	Path     Path
	Children []AccessPlan
}

func pathPlan(p Path) AccessPlan { return AccessPlan{Kind: KindPath, Path: p} }

func fullScanPlan() AccessPlan { return pathPlan(Path{Kind: FullScan}) }
