package predicate

import (
	"fmt"

	"github.com/canisterdb/engine/internal/schema"
	"github.com/canisterdb/engine/internal/value"
)

// ValidationError reports a specific predicate-construction mistake,
// named so callers can branch on err.Kind instead of string-matching
// (spec.md §4.4's "rejected with a dedicated error kind").
type ValidationError struct {
	Kind   string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("predicate: %s: %s", e.Kind, e.Detail)
}

func invalid(kind, format string, args ...any) error {
	return &ValidationError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// coercionLegal is the matrix keyed on (field family, literal family,
// coercion spec). Only the pairs explicitly listed here are legal; every
// other combination is rejected by Validate. This is consulted, never
// re-derived ad hoc, per the registry-driven capability design the
// value package exposes (value.CoercionFamily).
func coercionLegal(fieldFamily, litFamily value.CoercionFamily, c Coercion) bool {
	switch c {
	case Strict:
		return fieldFamily == litFamily
	case NumericWiden:
		return fieldFamily == value.FamilyNumeric && litFamily == value.FamilyNumeric
	case TextCasefold:
		return fieldFamily == value.FamilyText && litFamily == value.FamilyText
	case CollectionElement:
		// Legality of the element's own family is checked by the caller
		// against the field's declared element kind, not the field's own
		// (collection) family.
		return true
	default:
		return false
	}
}

// Validate checks p against view, rejecting unknown/non-queryable
// fields, illegal coercions, and ops applied to fields that cannot
// support them (spec.md §4.4's validation rules).
func Validate(view schema.View, p Predicate) error {
	switch p.kind {
	case KindTrue, KindFalse:
		return nil
	case KindAnd, KindOr:
		for _, c := range p.children {
			if err := Validate(view, c); err != nil {
				return err
			}
		}
		return nil
	case KindNot:
		return Validate(view, p.children[0])
	case KindIsMissing, KindIsNull:
		_, ok := view.FieldType(p.field)
		if !ok {
			return invalid("UnknownField", "field %q is not declared on %q", p.field, view.EntityName())
		}
		return nil
	case KindIsEmpty, KindIsNotEmpty:
		fk, ok := view.FieldType(p.field)
		if !ok {
			return invalid("UnknownField", "field %q is not declared on %q", p.field, view.EntityName())
		}
		if !fk.IsCollection() && fk.Scalar != value.KindText {
			return invalid("NotEmptiable", "field %q is neither text nor a collection", p.field)
		}
		return nil
	case KindTextContains, KindTextContainsCi:
		fk, ok := view.FieldType(p.field)
		if !ok {
			return invalid("UnknownField", "field %q is not declared on %q", p.field, view.EntityName())
		}
		if fk.IsCollection() || fk.Scalar != value.KindText {
			return invalid("NotText", "field %q is not a text field", p.field)
		}
		if p.value.Kind() != value.KindText {
			return invalid("NotText", "TextContains literal must be text")
		}
		return nil
	case KindCompare:
		return validateCompare(view, p)
	default:
		return invalid("UnknownPredicateKind", "kind %d", p.kind)
	}
}

func validateCompare(view schema.View, p Predicate) error {
	fk, ok := view.FieldType(p.field)
	if !ok {
		return invalid("UnknownField", "field %q is not declared on %q", p.field, view.EntityName())
	}
	if fk.IsMap() {
		return invalid("NotQueryable", "map field %q cannot appear in a predicate", p.field)
	}

	switch p.op {
	case Contains:
		if !fk.IsCollection() {
			return invalid("UseTextContains", "Contains on a scalar text field is rejected; use TextContains/TextContainsCi")
		}
		return validateElementCoercion(view, p, fk)
	case StartsWith, EndsWith:
		if fk.IsCollection() || fk.Scalar != value.KindText {
			return invalid("NotText", "%s requires a text field", p.op)
		}
		if p.value.Kind() != value.KindText {
			return invalid("NotText", "%s requires a text literal", p.op)
		}
		return nil
	case In, NotIn:
		if len(p.lit) == 0 {
			return invalid("EmptyLiteralList", "%s requires a non-empty literal list", p.op)
		}
		elemKind := fk.Scalar
		for _, lit := range p.lit {
			if err := checkScalarCoercion(elemKind, lit, p.coerc); err != nil {
				return err
			}
		}
		return nil
	case Lt, Lte, Gt, Gte:
		cap, ok := value.Capabilities(fk.Scalar)
		if fk.IsCollection() || !ok || !cap.Orderable {
			return invalid("NotOrderable", "field %q does not support ordering comparisons", p.field)
		}
		if p.coerc == CollectionElement {
			return invalid("InvalidCoercion", "ordering ops forbid CollectionElement coercion")
		}
		return checkScalarCoercion(fk.Scalar, p.value, p.coerc)
	case Eq, Ne:
		if fk.IsCollection() && p.coerc == CollectionElement {
			return validateElementCoercion(view, p, fk)
		}
		return checkScalarCoercion(fk.Scalar, p.value, p.coerc)
	default:
		return invalid("UnknownOp", "op %v", p.op)
	}
}

func validateElementCoercion(view schema.View, p Predicate, fk schema.FieldKind) error {
	if !fk.IsCollection() {
		return invalid("NotCollection", "field %q is not a collection", p.field)
	}
	coerc := p.coerc
	if coerc == CollectionElement {
		// CollectionElement on the outer Compare already signals
		// "compare against each element"; the element-to-literal check
		// itself falls back to Strict kind matching.
		coerc = Strict
	}
	return checkScalarCoercion(fk.Element, p.value, coerc)
}

func checkScalarCoercion(fieldKind value.Kind, lit value.Value, c Coercion) error {
	fieldCap, ok := value.Capabilities(fieldKind)
	if !ok {
		return invalid("UnknownFieldKind", "field kind %s is not registered", fieldKind)
	}
	litCap, ok := value.Capabilities(lit.Kind())
	if !ok {
		return invalid("UnknownLiteralKind", "literal kind %s is not registered", lit.Kind())
	}
	if !coercionLegal(fieldCap.Family, litCap.Family, c) {
		return invalid("InvalidCoercion", "literal kind %s cannot coerce to field kind %s under %v", lit.Kind(), fieldKind, c)
	}
	return nil
}
