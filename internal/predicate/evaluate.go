package predicate

import (
	"math/big"
	"strings"

	"github.com/canisterdb/engine/internal/value"
)

// Evaluate applies p to row, returning the predicate's boolean result.
// p must already have passed Validate against the row's schema; Evaluate
// does not re-check field existence beyond what IsMissing needs.
func Evaluate(row Row, p Predicate) bool {
	switch p.kind {
	case KindTrue:
		return true
	case KindFalse:
		return false
	case KindAnd:
		for _, c := range p.children {
			if !Evaluate(row, c) {
				return false
			}
		}
		return true
	case KindOr:
		for _, c := range p.children {
			if Evaluate(row, c) {
				return true
			}
		}
		return false
	case KindNot:
		return !Evaluate(row, p.children[0])
	case KindIsMissing:
		_, present := row[p.field]
		return !present
	case KindIsNull:
		v, present := row[p.field]
		return present && v.Kind() == value.KindNull
	case KindIsEmpty:
		return evaluateEmptiness(row, p.field, true)
	case KindIsNotEmpty:
		return evaluateEmptiness(row, p.field, false)
	case KindTextContains:
		return evaluateTextContains(row, p, false)
	case KindTextContainsCi:
		return evaluateTextContains(row, p, true)
	case KindCompare:
		return evaluateCompare(row, p)
	default:
		return false
	}
}

func evaluateEmptiness(row Row, field string, wantEmpty bool) bool {
	v, present := row[field]
	if !present {
		return false
	}
	var empty bool
	switch v.Kind() {
	case value.KindText:
		s, _ := v.AsText()
		empty = s == ""
	case value.KindList:
		items, _ := v.AsList()
		empty = len(items) == 0
	case value.KindMap:
		entries, _ := v.AsMap()
		empty = len(entries) == 0
	default:
		return false
	}
	if wantEmpty {
		return empty
	}
	return !empty
}

func evaluateTextContains(row Row, p Predicate, caseInsensitive bool) bool {
	v, present := row[p.field]
	if !present || v.Kind() != value.KindText {
		return false
	}
	s, _ := v.AsText()
	lit, _ := p.value.AsText()
	if caseInsensitive {
		s = strings.ToLower(s)
		lit = strings.ToLower(lit)
	}
	return strings.Contains(s, lit)
}

func evaluateCompare(row Row, p Predicate) bool {
	v, present := row[p.field]
	if !present {
		return false
	}
	switch p.op {
	case Eq, Ne:
		if p.coerc == CollectionElement {
			found := elementMatches(v, p.value, func(a, b value.Value) bool {
				return scalarEquals(a, b, Strict)
			})
			if p.op == Eq {
				return found
			}
			return !found
		}
		eq := scalarEquals(v, p.value, p.coerc)
		if p.op == Eq {
			return eq
		}
		return !eq
	case Lt, Lte, Gt, Gte:
		ord, ok := compareOrdered(v, p.value, p.coerc)
		if !ok {
			return false
		}
		switch p.op {
		case Lt:
			return ord == value.Less
		case Lte:
			return ord != value.Greater
		case Gt:
			return ord == value.Greater
		case Gte:
			return ord != value.Less
		}
		return false
	case In, NotIn:
		found := false
		for _, lit := range p.lit {
			if scalarEquals(v, lit, p.coerc) {
				found = true
				break
			}
		}
		if p.op == In {
			return found
		}
		return !found
	case Contains:
		coerc := p.coerc
		if coerc == CollectionElement {
			coerc = Strict
		}
		return elementMatches(v, p.value, func(a, b value.Value) bool {
			return scalarEquals(a, b, coerc)
		})
	case StartsWith, EndsWith:
		if v.Kind() != value.KindText {
			return false
		}
		s, _ := v.AsText()
		lit, _ := p.value.AsText()
		if p.op == StartsWith {
			return strings.HasPrefix(s, lit)
		}
		return strings.HasSuffix(s, lit)
	default:
		return false
	}
}

func elementMatches(field, lit value.Value, eq func(a, b value.Value) bool) bool {
	if field.Kind() != value.KindList {
		return false
	}
	items, _ := field.AsList()
	for _, item := range items {
		if eq(item, lit) {
			return true
		}
	}
	return false
}

func scalarEquals(a, b value.Value, coerc Coercion) bool {
	switch coerc {
	case TextCasefold:
		if a.Kind() != value.KindText || b.Kind() != value.KindText {
			return false
		}
		sa, _ := a.AsText()
		sb, _ := b.AsText()
		return strings.EqualFold(sa, sb)
	case NumericWiden:
		ord, ok := numericOrder(a, b)
		return ok && ord == value.Equal
	default:
		return value.CanonicalCmp(a, b) == value.Equal
	}
}

func compareOrdered(a, b value.Value, coerc Coercion) (value.Ordering, bool) {
	if coerc == NumericWiden {
		return numericOrder(a, b)
	}
	return value.StrictOrderCmp(a, b)
}

// numericOrder compares two FamilyNumeric values by mathematical value
// rather than by CanonicalRank, so e.g. Int(1), Uint(1), and
// Decimal(1,0) all compare Equal under NumericWiden even though they
// rank differently under CanonicalCmp.
func numericOrder(a, b value.Value) (value.Ordering, bool) {
	ra, ok := valueToRat(a)
	if !ok {
		return value.Equal, false
	}
	rb, ok := valueToRat(b)
	if !ok {
		return value.Equal, false
	}
	switch ra.Cmp(rb) {
	case -1:
		return value.Less, true
	case 1:
		return value.Greater, true
	default:
		return value.Equal, true
	}
}

func valueToRat(v value.Value) (*big.Rat, bool) {
	switch v.Kind() {
	case value.KindInt:
		i, _ := v.AsInt()
		return new(big.Rat).SetInt64(i), true
	case value.KindUint:
		u, _ := v.AsUint()
		return new(big.Rat).SetInt(new(big.Int).SetUint64(u)), true
	case value.KindBigInt:
		bi, _ := v.AsBigInt()
		return new(big.Rat).SetInt(bi), true
	case value.KindBigUint:
		bi, _ := v.AsBigUint()
		return new(big.Rat).SetInt(bi), true
	case value.KindDecimal:
		d, _ := v.AsDecimal()
		if d.Exponent >= 0 {
			scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(d.Exponent)), nil)
			num := new(big.Int).Mul(d.Mantissa, scale)
			return new(big.Rat).SetInt(num), true
		}
		denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-d.Exponent)), nil)
		return new(big.Rat).SetFrac(d.Mantissa, denom), true
	case value.KindFloat32:
		f, _ := v.AsFloat32()
		return new(big.Rat).SetFloat64(float64(f)), true
	case value.KindFloat64:
		f, _ := v.AsFloat64()
		r := new(big.Rat).SetFloat64(f)
		return r, r != nil
	default:
		return nil, false
	}
}
