package schema

import (
	"testing"

	"github.com/canisterdb/engine/internal/value"
	"github.com/stretchr/testify/require"
)

func textField(name string) Field {
	return Field{Name: name, Kind: FieldKind{Scalar: value.KindText}}
}

func TestNewEntityValidatesPrimaryKey(t *testing.T) {
	_, err := NewEntity("Test", "missing", []Field{textField("id")}, nil)
	require.Error(t, err)

	e, err := NewEntity("Test", "id", []Field{textField("id")}, nil)
	require.NoError(t, err)
	require.Equal(t, "id", e.PrimaryKeyName())
}

func TestNewEntityRejectsDuplicateFields(t *testing.T) {
	_, err := NewEntity("Test", "id", []Field{textField("id"), textField("id")}, nil)
	require.Error(t, err)
}

func TestNewEntityRejectsMapIndexField(t *testing.T) {
	fields := []Field{
		textField("id"),
		{Name: "attrs", Kind: FieldKind{Collection: value.KindMap, Element: value.KindText}},
	}
	_, err := NewEntity("Test", "id", fields, []Index{{Name: "by_attrs", Fields: []string{"attrs"}}})
	require.Error(t, err)
}

func TestNewEntityRejectsDuplicateIndexNames(t *testing.T) {
	fields := []Field{textField("id"), textField("name")}
	indexes := []Index{
		{Name: "by_name", Fields: []string{"name"}},
		{Name: "by_name", Fields: []string{"name"}, Unique: true},
	}
	_, err := NewEntity("Test", "id", fields, indexes)
	require.Error(t, err)
}

func TestIndexesLeadingWith(t *testing.T) {
	fields := []Field{textField("id"), textField("name"), textField("email")}
	indexes := []Index{
		{Name: "by_name", Fields: []string{"name"}},
		{Name: "by_email", Fields: []string{"email"}},
	}
	e, err := NewEntity("Test", "id", fields, indexes)
	require.NoError(t, err)

	got := e.IndexesLeadingWith("name")
	require.Len(t, got, 1)
	require.Equal(t, "by_name", got[0].Name)
}

func TestWithRelationsValidatesField(t *testing.T) {
	fields := []Field{textField("id"), textField("ownerId")}
	e, err := NewEntity("Test", "id", fields, nil)
	require.NoError(t, err)

	e2, err := e.WithRelations(StrongRelation{Field: "ownerId", TargetEntity: "Owner"})
	require.NoError(t, err)
	require.Len(t, e2.RelationsOf(), 1)

	_, err = e.WithRelations(StrongRelation{Field: "missing", TargetEntity: "Owner"})
	require.Error(t, err)
}
