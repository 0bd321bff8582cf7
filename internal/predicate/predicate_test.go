package predicate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/canisterdb/engine/internal/schema"
	"github.com/canisterdb/engine/internal/value"
)

func testEntity(t *testing.T) *schema.Entity {
	t.Helper()
	fields := []schema.Field{
		{Name: "id", Kind: schema.FieldKind{Scalar: value.KindText}},
		{Name: "age", Kind: schema.FieldKind{Scalar: value.KindInt}},
		{Name: "tags", Kind: schema.FieldKind{Collection: value.KindList, Element: value.KindText}},
		{Name: "attrs", Kind: schema.FieldKind{Collection: value.KindMap, Element: value.KindText}},
	}
	e, err := schema.NewEntity("Person", "id", fields, nil)
	require.NoError(t, err)
	return e
}

func TestValidateRejectsUnknownField(t *testing.T) {
	view := schema.NewView(testEntity(t))
	err := Validate(view, Compare("nope", Eq, value.Text("x"), Strict))
	require.Error(t, err)
}

func TestValidateRejectsMapField(t *testing.T) {
	view := schema.NewView(testEntity(t))
	err := Validate(view, Compare("attrs", Eq, value.Text("x"), Strict))
	require.Error(t, err)
}

func TestValidateRejectsContainsOnText(t *testing.T) {
	view := schema.NewView(testEntity(t))
	err := Validate(view, Compare("id", Contains, value.Text("x"), Strict))
	require.Error(t, err)
}

func TestValidateAcceptsTextContains(t *testing.T) {
	view := schema.NewView(testEntity(t))
	require.NoError(t, Validate(view, TextContains("id", value.Text("sub"))))
}

func TestValidateRejectsOrderingWithCollectionElement(t *testing.T) {
	view := schema.NewView(testEntity(t))
	err := Validate(view, Compare("age", Lt, value.Int(5), CollectionElement))
	require.Error(t, err)
}

func TestValidateInRequiresNonEmptyList(t *testing.T) {
	view := schema.NewView(testEntity(t))
	err := Validate(view, CompareIn("age", In, nil, Strict))
	require.Error(t, err)
}

func TestEvaluateCompareEq(t *testing.T) {
	row := Row{"age": value.Int(30)}
	require.True(t, Evaluate(row, Compare("age", Eq, value.Int(30), Strict)))
	require.False(t, Evaluate(row, Compare("age", Eq, value.Int(31), Strict)))
}

func TestEvaluateIsMissing(t *testing.T) {
	row := Row{"age": value.Int(30)}
	require.True(t, Evaluate(row, IsMissing("id")))
	require.False(t, Evaluate(row, IsMissing("age")))
}

func TestEvaluateNumericWidenCrossesKinds(t *testing.T) {
	row := Row{"age": value.Int(30)}
	require.True(t, Evaluate(row, Compare("age", Eq, value.Uint(30), NumericWiden)))
}

func TestEvaluateCollectionElementContains(t *testing.T) {
	tags := value.List([]value.Value{value.Text("a"), value.Text("b")})
	row := Row{"tags": tags}
	require.True(t, Evaluate(row, Compare("tags", Contains, value.Text("a"), Strict)))
	require.False(t, Evaluate(row, Compare("tags", Contains, value.Text("z"), Strict)))
}

func TestEvaluateTextContainsCi(t *testing.T) {
	row := Row{"id": value.Text("Hello World")}
	require.True(t, Evaluate(row, TextContainsCi("id", value.Text("WORLD"))))
	require.False(t, Evaluate(row, TextContains("id", value.Text("WORLD"))))
}

func TestNormalizeFlattensAndEliminatesDoubleNegation(t *testing.T) {
	p := Not(Not(Compare("age", Eq, value.Int(1), Strict)))
	got := Normalize(p)
	require.Equal(t, KindCompare, got.Kind())
}

func TestNormalizeAppliesDeMorgan(t *testing.T) {
	p := Not(And(Compare("age", Eq, value.Int(1), Strict), Compare("id", Eq, value.Text("x"), Strict)))
	got := Normalize(p)
	require.Equal(t, KindOr, got.Kind())
	require.Len(t, got.Children(), 2)
}

func TestNormalizeShortCircuitsFalseInAnd(t *testing.T) {
	p := And(True(), False(), Compare("age", Eq, value.Int(1), Strict))
	require.Equal(t, KindFalse, Normalize(p).Kind())
}

func TestNormalizeIsDeterministicAcrossChildOrder(t *testing.T) {
	a := Normalize(And(Compare("age", Eq, value.Int(1), Strict), Compare("id", Eq, value.Text("x"), Strict)))
	b := Normalize(And(Compare("id", Eq, value.Text("x"), Strict), Compare("age", Eq, value.Int(1), Strict)))
	require.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestNormalizeFlattensNestedAnd(t *testing.T) {
	inner := And(Compare("age", Eq, value.Int(1), Strict), Compare("id", Eq, value.Text("x"), Strict))
	outer := And(inner, Compare("id", Eq, value.Text("y"), Strict))
	got := Normalize(outer)
	require.Equal(t, KindAnd, got.Kind())
	require.Len(t, got.Children(), 3)
}
