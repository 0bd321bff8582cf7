package schema

import (
	"fmt"

	"github.com/canisterdb/engine/internal/value"
)

func fieldNotFoundErr(entity, field string) error {
	return fmt.Errorf("schema: entity %q has no field %q to attach a relation to", entity, field)
}

func nonKeyableRelationErr(entity, field string) error {
	return fmt.Errorf("schema: entity %q field %q must be a keyable scalar to hold a strong relation", entity, field)
}

// View is the narrow, read-only surface the predicate engine validates
// against: field existence, field kind, primary key name, and index
// iteration, without exposing the full Entity or letting predicate code
// mutate schema state.
type View interface {
	FieldType(name string) (FieldKind, bool)
	PrimaryKeyName() string
	Indexes() []Index
	EntityName() string
}

type entityView struct {
	e *Entity
}

// NewView adapts an Entity to the predicate engine's View contract.
func NewView(e *Entity) View {
	return entityView{e: e}
}

func (v entityView) FieldType(name string) (FieldKind, bool) { return v.e.FieldType(name) }
func (v entityView) PrimaryKeyName() string                  { return v.e.PrimaryKeyName() }
func (v entityView) Indexes() []Index                        { return v.e.Indexes }
func (v entityView) EntityName() string                      { return v.e.Name }

// StrongRelation marks a field as holding the primary key of another
// entity with "strong" reference semantics: the commit/recovery layer
// maintains a reverse index on the target entity, and deleting the
// target is rejected while any referrer exists (spec.md §4.7, §3
// "Lifecycle and ownership").
type StrongRelation struct {
	Field        string
	TargetEntity string
}

// RelationsOf returns the strong relations declared on an entity, read
// from the Fields' Kind via a side table rather than widening FieldKind
// itself — kept in a thin wrapper so Entity stays a plain data
// description and relation wiring lives where the commit layer (the
// only consumer) expects it.
func (e *Entity) RelationsOf() []StrongRelation {
	return e.relations
}

// WithRelations attaches strong-relation metadata to fields already
// present on the entity, validating that each referenced field exists
// and has a keyable scalar kind capable of holding a foreign primary
// key.
func (e *Entity) WithRelations(rels ...StrongRelation) (*Entity, error) {
	for _, r := range rels {
		f, ok := e.fieldsByName[r.Field]
		if !ok {
			return nil, fieldNotFoundErr(e.Name, r.Field)
		}
		if cap, ok := value.Capabilities(f.Kind.Scalar); !ok || !cap.StorageKey {
			return nil, nonKeyableRelationErr(e.Name, r.Field)
		}
	}
	clone := *e
	clone.relations = append(append([]StrongRelation(nil), e.relations...), rels...)
	return &clone, nil
}
