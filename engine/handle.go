package engine

import (
	"github.com/canisterdb/engine/internal/planner"
	"github.com/canisterdb/engine/internal/predicate"
	"github.com/canisterdb/engine/internal/schema"
)

// EntityHandle is the per-entity seam every save/delete/query executor
// takes as their first argument, returned by Engine.RegisterEntity. It
// carries the validated schema.Entity, its schema.View for the
// predicate/planner layers, and the caller's RowCodec.
type EntityHandle struct {
	entity *schema.Entity
	view   schema.View
	codec  RowCodec
}

// Name returns the entity's name.
func (h *EntityHandle) Name() string { return h.entity.Name }

// View exposes the schema.View the predicate engine and planner
// validate and lower against.
func (h *EntityHandle) View() schema.View { return h.view }

// Entity exposes the underlying schema.Entity for callers that need the
// full field/index list rather than just the View surface.
func (h *EntityHandle) Entity() *schema.Entity { return h.entity }

// prepare validates p against the handle's view, normalizes it, and
// lowers it to an access plan. Every query/aggregate/delete-by-plan
// entry point runs a predicate through this same sequence so a
// predicate is always validated before it reaches the planner.
func (h *EntityHandle) prepare(p predicate.Predicate) (predicate.Predicate, planner.AccessPlan, error) {
	if err := predicate.Validate(h.view, p); err != nil {
		return predicate.Predicate{}, planner.AccessPlan{}, err
	}
	normalized := predicate.Normalize(p)
	plan := planner.Lower(h.view, normalized)
	return normalized, plan, nil
}
