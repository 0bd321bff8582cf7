// Package schema holds the compile-time description of an entity —
// its fields, primary key, and indexes — and exposes a runtime view the
// predicate engine and planner consult for field lookups. Schemas are
// built and validated in Go code; there is no schema-derive tool here
// (that tooling is an external collaborator per spec.md §1).
package schema

import (
	"fmt"

	"github.com/canisterdb/engine/internal/value"
)

// FieldKind names the storable Kind a field holds, plus whether it is a
// List/Map wrapper around a scalar element kind.
type FieldKind struct {
	Scalar value.Kind
	// Collection is KindList, KindMap, or value.KindNull ("not a collection").
	Collection value.Kind
	// Element is the element Kind for List/Map collections; zero value
	// otherwise.
	Element value.Kind
}

// IsMap reports whether this field kind is a Map — map fields are never
// indexable and never queryable in predicates, per spec.md §3/§4.4.
func (k FieldKind) IsMap() bool { return k.Collection == value.KindMap }

// IsCollection reports whether this field kind is List or Map.
func (k FieldKind) IsCollection() bool {
	return k.Collection == value.KindList || k.Collection == value.KindMap
}

// Field describes one named, typed entity field.
type Field struct {
	Name string
	Kind FieldKind
}

// Index is an ordered list of field names on one entity, flagged unique
// or non-unique. It projects the entity into a key space over the
// fingerprints of those fields' canonical encodings, each key holding a
// posting of the primary keys that share it (see internal/store for the
// projection itself).
type Index struct {
	Name   string
	Fields []string
	Unique bool
}

const maxIndexNameLen = 128

// Entity is a named record with an ordered list of typed fields, one of
// which is the primary key, plus zero or more secondary indexes.
type Entity struct {
	Name       string
	PrimaryKey string
	Fields     []Field
	Indexes    []Index

	fieldsByName map[string]Field
	indexByName  map[string]Index
	relations    []StrongRelation
}

// NewEntity validates and builds an Entity. Validation enforces:
// unique field names; primary key exists and has a keyable kind; every
// index field exists and is queryable; no map field appears in any
// index; no duplicate index name; index names are non-empty and bounded.
func NewEntity(name, primaryKey string, fields []Field, indexes []Index) (*Entity, error) {
	if name == "" {
		return nil, fmt.Errorf("schema: entity name is required")
	}
	fieldsByName := make(map[string]Field, len(fields))
	for _, f := range fields {
		if _, dup := fieldsByName[f.Name]; dup {
			return nil, fmt.Errorf("schema: entity %q has duplicate field %q", name, f.Name)
		}
		fieldsByName[f.Name] = f
	}

	pk, ok := fieldsByName[primaryKey]
	if !ok {
		return nil, fmt.Errorf("schema: entity %q primary key %q is not a declared field", name, primaryKey)
	}
	if pk.Kind.IsCollection() {
		return nil, fmt.Errorf("schema: entity %q primary key %q must be a scalar keyable kind", name, primaryKey)
	}
	if cap, ok := value.Capabilities(pk.Kind.Scalar); !ok || !cap.StorageKey {
		return nil, fmt.Errorf("schema: entity %q primary key %q kind %s is not keyable", name, primaryKey, pk.Kind.Scalar)
	}

	indexByName := make(map[string]Index, len(indexes))
	for _, idx := range indexes {
		if idx.Name == "" {
			return nil, fmt.Errorf("schema: entity %q has an index with no name", name)
		}
		if len(idx.Name) > maxIndexNameLen {
			return nil, fmt.Errorf("schema: entity %q index name %q exceeds %d bytes", name, idx.Name, maxIndexNameLen)
		}
		if _, dup := indexByName[idx.Name]; dup {
			return nil, fmt.Errorf("schema: entity %q has duplicate index name %q", name, idx.Name)
		}
		if len(idx.Fields) == 0 {
			return nil, fmt.Errorf("schema: entity %q index %q has no fields", name, idx.Name)
		}
		for _, fname := range idx.Fields {
			f, ok := fieldsByName[fname]
			if !ok {
				return nil, fmt.Errorf("schema: entity %q index %q references unknown field %q", name, idx.Name, fname)
			}
			if f.Kind.IsMap() {
				return nil, fmt.Errorf("schema: entity %q index %q references map field %q, which is never indexable", name, idx.Name, fname)
			}
			if !isQueryable(f.Kind) {
				return nil, fmt.Errorf("schema: entity %q index %q references non-queryable field %q", name, idx.Name, fname)
			}
		}
		indexByName[idx.Name] = idx
	}

	return &Entity{
		Name:         name,
		PrimaryKey:   primaryKey,
		Fields:       fields,
		Indexes:      indexes,
		fieldsByName: fieldsByName,
		indexByName:  indexByName,
	}, nil
}

// isQueryable reports whether a field kind may appear in a predicate or
// an index: every scalar kind, plus List of a queryable element, but
// never Map.
func isQueryable(k FieldKind) bool {
	if k.IsMap() {
		return false
	}
	if k.Collection == value.KindList {
		_, ok := value.Capabilities(k.Element)
		return ok
	}
	_, ok := value.Capabilities(k.Scalar)
	return ok
}

// FieldType returns the declared kind of a field, or ok=false if the
// entity has no such field.
func (e *Entity) FieldType(name string) (FieldKind, bool) {
	f, ok := e.fieldsByName[name]
	return f.Kind, ok
}

// FieldKindOf is an alias of FieldType kept for readability at call
// sites that only care about the Kind, not the full Field.
func (e *Entity) FieldKindOf(name string) (FieldKind, bool) {
	return e.FieldType(name)
}

// PrimaryKeyName returns the entity's primary key field name.
func (e *Entity) PrimaryKeyName() string {
	return e.PrimaryKey
}

// Index looks up a declared index by name.
func (e *Entity) Index(name string) (Index, bool) {
	idx, ok := e.indexByName[name]
	return idx, ok
}

// IndexesLeadingWith returns every index whose field list begins with
// the given field name, used by the planner to find candidate
// IndexPrefix access paths for an equality predicate on that field.
func (e *Entity) IndexesLeadingWith(field string) []Index {
	var out []Index
	for _, idx := range e.Indexes {
		if idx.Fields[0] == field {
			out = append(out, idx)
		}
	}
	return out
}

// HasField reports whether name is a declared field.
func (e *Entity) HasField(name string) bool {
	_, ok := e.fieldsByName[name]
	return ok
}
