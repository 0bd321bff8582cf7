// Package predicate implements the structural predicate language
// validated against a schema.View and evaluated against a materialized
// row: no string grammar, no parser — predicates are built
// programmatically, the way dynamodb/ddbstore's expressionparser builds
// a condition AST except skipping the lexer entirely.
package predicate

import "github.com/canisterdb/engine/internal/value"

// Row is a materialized entity instance: field name to decoded value.
// Absence of a key models a missing field (IsMissing), distinct from a
// present Null value (IsNull).
type Row map[string]value.Value

// CompareOp enumerates the binary comparison operators a Compare leaf
// may use.
type CompareOp int

const (
	Eq CompareOp = iota
	Ne
	Lt
	Lte
	Gt
	Gte
	In
	NotIn
	Contains
	StartsWith
	EndsWith
)

func (op CompareOp) String() string {
	switch op {
	case Eq:
		return "Eq"
	case Ne:
		return "Ne"
	case Lt:
		return "Lt"
	case Lte:
		return "Lte"
	case Gt:
		return "Gt"
	case Gte:
		return "Gte"
	case In:
		return "In"
	case NotIn:
		return "NotIn"
	case Contains:
		return "Contains"
	case StartsWith:
		return "StartsWith"
	case EndsWith:
		return "EndsWith"
	default:
		return "CompareOp(?)"
	}
}

// Coercion selects how a literal is reconciled with a field's declared
// kind before comparison.
type Coercion int

const (
	// Strict requires the literal's kind to equal the field's kind.
	Strict Coercion = iota
	// NumericWiden permits any two FamilyNumeric kinds to compare by
	// converting both to an exact big.Rat (see valueToRat).
	NumericWiden
	// TextCasefold permits case-insensitive text comparison.
	TextCasefold
	// CollectionElement compares the literal against each element of a
	// List-typed field rather than the field as a whole.
	CollectionElement
)

// Kind discriminates the closed sum of predicate node shapes.
type Kind int

const (
	KindTrue Kind = iota
	KindFalse
	KindCompare
	KindIsNull
	KindIsMissing
	KindIsEmpty
	KindIsNotEmpty
	KindTextContains
	KindTextContainsCi
	KindAnd
	KindOr
	KindNot
)

// Predicate is the closed sum of predicate leaves and composites. Only
// one Kind-appropriate set of fields is populated per value; the zero
// value of every other field is ignored.
type Predicate struct {
	kind Kind

	field string
	op    CompareOp
	value value.Value
	lit   []value.Value // In/NotIn literal list
	coerc Coercion

	children []Predicate // And/Or/Not
}

func (p Predicate) Kind() Kind { return p.kind }

// True is the leaf that evaluates to true unconditionally.
func True() Predicate { return Predicate{kind: KindTrue} }

// False is the leaf that evaluates to false unconditionally.
func False() Predicate { return Predicate{kind: KindFalse} }

// Compare builds a field-vs-literal comparison leaf.
func Compare(field string, op CompareOp, lit value.Value, coerc Coercion) Predicate {
	return Predicate{kind: KindCompare, field: field, op: op, value: lit, coerc: coerc}
}

// CompareIn builds an In/NotIn leaf over a literal list.
func CompareIn(field string, op CompareOp, lits []value.Value, coerc Coercion) Predicate {
	return Predicate{kind: KindCompare, field: field, op: op, lit: lits, coerc: coerc}
}

func IsNull(field string) Predicate     { return Predicate{kind: KindIsNull, field: field} }
func IsMissing(field string) Predicate  { return Predicate{kind: KindIsMissing, field: field} }
func IsEmpty(field string) Predicate    { return Predicate{kind: KindIsEmpty, field: field} }
func IsNotEmpty(field string) Predicate { return Predicate{kind: KindIsNotEmpty, field: field} }

func TextContains(field string, lit value.Value) Predicate {
	return Predicate{kind: KindTextContains, field: field, value: lit}
}

func TextContainsCi(field string, lit value.Value) Predicate {
	return Predicate{kind: KindTextContainsCi, field: field, value: lit}
}

// And builds a conjunction of zero or more children ([] normalizes to
// True via Normalize, but the raw constructor accepts any arity).
func And(children ...Predicate) Predicate { return Predicate{kind: KindAnd, children: children} }

// Or builds a disjunction of zero or more children.
func Or(children ...Predicate) Predicate { return Predicate{kind: KindOr, children: children} }

// Not negates a single child.
func Not(child Predicate) Predicate { return Predicate{kind: KindNot, children: []Predicate{child}} }

// Field returns the leaf's target field name; empty for composites and
// for True/False.
func (p Predicate) Field() string { return p.field }

// Op returns a Compare leaf's operator.
func (p Predicate) Op() CompareOp { return p.op }

// Literal returns a Compare/TextContains leaf's scalar literal.
func (p Predicate) Literal() value.Value { return p.value }

// Literals returns an In/NotIn leaf's literal list.
func (p Predicate) Literals() []value.Value { return p.lit }

// CoercionSpec returns a Compare leaf's coercion spec.
func (p Predicate) CoercionSpec() Coercion { return p.coerc }

// Children returns an And/Or/Not node's operands.
func (p Predicate) Children() []Predicate { return p.children }
