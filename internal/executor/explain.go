package executor

import "github.com/canisterdb/engine/internal/planner"

// Explanation reports, for one query, which Route it took and which
// pushdowns the plan carried — a diagnostic surface only, built purely
// from the plan shape the same way ClassifyRoute is, never by re-running
// the traversal.
type Explanation struct {
	Route           Route
	IndexName       string
	OrderPushdown   bool
	RangeLimit      bool
	ChildExplain    []Explanation
}

// Explain walks plan once, building the report a caller can log or
// surface to a caller debugging a slow query, the same shape the
// teacher's dynamodb/ddbui exposes for a table's expression plan but
// rebuilt here over AccessPlan instead of a DynamoDB expression tree.
func Explain(plan planner.AccessPlan) Explanation {
	e := Explanation{Route: ClassifyRoute(plan)}
	switch plan.Kind {
	case planner.KindPath:
		e.IndexName = plan.Path.IndexName
		e.OrderPushdown = plan.Path.SecondaryOrderPushdown
		e.RangeLimit = plan.Path.RangeLimitPushdown
	case planner.KindUnion, planner.KindIntersection:
		e.ChildExplain = make([]Explanation, len(plan.Children))
		for i, c := range plan.Children {
			e.ChildExplain[i] = Explain(c)
		}
	}
	return e
}
