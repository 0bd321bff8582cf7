package executor

import "github.com/canisterdb/engine/internal/planner"

// Route classifies an AccessPlan into the fixed, canonically-ordered
// fast-path category it belongs to (spec.md §4.6.2), so callers (and
// explain.go) can report which named optimization a query took without
// re-implementing it: Open already produces the one correct key stream
// for every shape, so Route is purely a classifier over that same
// representation, never a second execution path that could diverge
// from it.
type Route int

const (
	// RoutePrimaryKey: ByKey/ByKeys — direct key lookups.
	RoutePrimaryKey Route = iota
	// RouteSecondaryPrefix: IndexPrefix with its natural order already
	// matching the query's requested order (pushdown-eligible).
	RouteSecondaryPrefix
	// RoutePrimaryScan: FullScan/KeyRange.
	RoutePrimaryScan
	// RouteIndexRange: IndexRange.
	RouteIndexRange
	// RouteComposite: Union/Intersection with no residual filter and no
	// post-access sort needed.
	RouteComposite
	// RouteGeneric is the fallback: the plan shape still executes
	// correctly through Open, just without a named fast-path label.
	RouteGeneric
)

func (r Route) String() string {
	switch r {
	case RoutePrimaryKey:
		return "primary_key"
	case RouteSecondaryPrefix:
		return "secondary_prefix"
	case RoutePrimaryScan:
		return "primary_scan"
	case RouteIndexRange:
		return "index_range"
	case RouteComposite:
		return "composite"
	default:
		return "generic"
	}
}

// ClassifyRoute walks the fixed ordering spec.md §4.6.2 names — primary
// key, secondary prefix, primary scan, index range, composite — in
// that sequence, returning the first that matches.
func ClassifyRoute(plan planner.AccessPlan) Route {
	switch plan.Kind {
	case planner.KindPath:
		switch plan.Path.Kind {
		case planner.ByKey, planner.ByKeys:
			return RoutePrimaryKey
		case planner.IndexPrefix:
			if plan.Path.SecondaryOrderPushdown {
				return RouteSecondaryPrefix
			}
			return RouteGeneric
		case planner.FullScan, planner.KeyRange:
			return RoutePrimaryScan
		case planner.IndexRange:
			return RouteIndexRange
		default:
			return RouteGeneric
		}
	case planner.KindUnion, planner.KindIntersection:
		if hasNoResidual(plan) {
			return RouteComposite
		}
		return RouteGeneric
	default:
		return RouteGeneric
	}
}

// hasNoResidual reports whether every leaf of a composite plan is
// already a narrowing access path (not a bare FullScan masquerading as
// one child), the precondition §4.6.2 names for the Composite fast
// path ("no residual filter and no post-access sort").
func hasNoResidual(plan planner.AccessPlan) bool {
	for _, c := range plan.Children {
		switch c.Kind {
		case planner.KindPath:
			if c.Path.Kind == planner.FullScan {
				return false
			}
		case planner.KindUnion, planner.KindIntersection:
			if !hasNoResidual(c) {
				return false
			}
		}
	}
	return true
}
