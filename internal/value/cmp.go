package value

import (
	"bytes"
	"math/big"
	"time"
)

// Ordering mirrors the three-way result of a comparison. It is returned
// as a plain int (negative/zero/positive) to match Go convention, but
// named constants make call sites read as spec.md's Less/Equal/Greater.
type Ordering int

const (
	Less    Ordering = -1
	Equal   Ordering = 0
	Greater Ordering = 1
)

func ord(i int) Ordering {
	switch {
	case i < 0:
		return Less
	case i > 0:
		return Greater
	default:
		return Equal
	}
}

// CanonicalCmp is the total order over every Value variant: first by
// CanonicalRank, then by a variant-specific total order. It never
// returns "incomparable" — every pair of values, including cross-kind
// pairs, has a defined order.
func CanonicalCmp(a, b Value) Ordering {
	ra, rb := CanonicalRank(a.Kind()), CanonicalRank(b.Kind())
	if ra != rb {
		return ord(int(ra) - int(rb))
	}
	return sameKindCmp(a, b)
}

// CanonicalCmpKey is CanonicalCmp restricted to the scalar, non-null
// kinds legal as Map keys. Behavior for list/map/null inputs is
// undefined by contract (callers must validate with NewMap first); it
// falls back to CanonicalCmp rather than panicking.
func CanonicalCmpKey(a, b Value) Ordering {
	return CanonicalCmp(a, b)
}

// StrictOrderCmp is CanonicalCmp restricted to same-variant pairs where
// the Kind is Orderable. It returns ok=false for cross-variant pairs or
// non-orderable kinds, where an implicit order would be unsafe (used by
// the predicate engine and multi-key ORDER BY fallthrough).
func StrictOrderCmp(a, b Value) (Ordering, bool) {
	if a.Kind() != b.Kind() {
		return Equal, false
	}
	cap, ok := Capabilities(a.Kind())
	if !ok || !cap.Orderable {
		return Equal, false
	}
	return sameKindCmp(a, b), true
}

func sameKindCmp(a, b Value) Ordering {
	switch a.Kind() {
	case KindNull, KindUnit:
		return Equal
	case KindBool:
		av, _ := a.AsBool()
		bv, _ := b.AsBool()
		return ord(boolToInt(av) - boolToInt(bv))
	case KindInt:
		av, _ := a.AsInt()
		bv, _ := b.AsInt()
		switch {
		case av < bv:
			return Less
		case av > bv:
			return Greater
		default:
			return Equal
		}
	case KindUint:
		av, _ := a.AsUint()
		bv, _ := b.AsUint()
		switch {
		case av < bv:
			return Less
		case av > bv:
			return Greater
		default:
			return Equal
		}
	case KindBigInt, KindBigUint:
		av, _ := a.AsBigInt()
		bv, _ := b.AsBigInt()
		return ord(av.Cmp(bv))
	case KindDecimal:
		return decimalCmp(a.decV, b.decV)
	case KindFloat32:
		av, _ := a.AsFloat32()
		bv, _ := b.AsFloat32()
		return ord(float32Cmp(av, bv))
	case KindFloat64:
		av, _ := a.AsFloat64()
		bv, _ := b.AsFloat64()
		return ord(float64Cmp(av, bv))
	case KindTimestamp:
		av, _ := a.AsTimestamp()
		bv, _ := b.AsTimestamp()
		return ord(timeCmp(av, bv))
	case KindDuration:
		av, _ := a.AsDuration()
		bv, _ := b.AsDuration()
		return ord(int(av - bv))
	case KindDate:
		av, _ := a.AsDate()
		bv, _ := b.AsDate()
		return dateCmp(av, bv)
	case KindUlid:
		av, _ := a.AsUlid()
		bv, _ := b.AsUlid()
		return ord(bytes.Compare(av[:], bv[:]))
	case KindPrincipal:
		av, _ := a.AsPrincipal()
		bv, _ := b.AsPrincipal()
		return ord(bytes.Compare(av.Bytes, bv.Bytes))
	case KindSubaccount:
		av, _ := a.AsSubaccount()
		bv, _ := b.AsSubaccount()
		return ord(bytes.Compare(av[:], bv[:]))
	case KindAccount:
		av, _ := a.AsAccount()
		bv, _ := b.AsAccount()
		if c := ord(bytes.Compare(av.Owner.Bytes, bv.Owner.Bytes)); c != Equal {
			return c
		}
		return subaccountPtrCmp(av.Subaccount, bv.Subaccount)
	case KindText:
		av, _ := a.AsText()
		bv, _ := b.AsText()
		return ord(bytes.Compare([]byte(av), []byte(bv)))
	case KindBlob:
		av, _ := a.AsBlob()
		bv, _ := b.AsBlob()
		return ord(bytes.Compare(av, bv))
	case KindList:
		return listCmp(a.listV, b.listV)
	case KindMap:
		return mapCmp(a.mapV, b.mapV)
	default:
		return Equal
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// decimalCmp compares two (already-normalized) decimals by aligning
// exponents, never by converting to float.
func decimalCmp(a, b Decimal) Ordering {
	if a.Exponent == b.Exponent {
		return ord(a.Mantissa.Cmp(b.Mantissa))
	}
	// Align the smaller exponent up to the larger by scaling its
	// mantissa, so comparison stays exact.
	lo, hi := a, b
	sign := 1
	if lo.Exponent > hi.Exponent {
		lo, hi = hi, lo
		sign = -1
	}
	scale := hi.Exponent - lo.Exponent
	factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(scale)), nil)
	scaledLo := new(big.Int).Mul(lo.Mantissa, factor)
	c := scaledLo.Cmp(hi.Mantissa)
	if sign < 0 {
		c = -c
	}
	return ord(c)
}

func float32Cmp(a, b float32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func float64Cmp(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func timeCmp(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

func dateCmp(a, b Date) Ordering {
	if a.Year != b.Year {
		return ord(int(a.Year) - int(b.Year))
	}
	if a.Month != b.Month {
		return ord(int(a.Month) - int(b.Month))
	}
	return ord(int(a.Day) - int(b.Day))
}

func subaccountPtrCmp(a, b *Subaccount) Ordering {
	switch {
	case a == nil && b == nil:
		return Equal
	case a == nil:
		return Less
	case b == nil:
		return Greater
	default:
		return ord(bytes.Compare(a[:], b[:]))
	}
}

func listCmp(a, b []Value) Ordering {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := CanonicalCmp(a[i], b[i]); c != Equal {
			return c
		}
	}
	return ord(len(a) - len(b))
}

func mapCmp(a, b []MapEntry) Ordering {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := CanonicalCmpKey(a[i].Key, b[i].Key); c != Equal {
			return c
		}
		if c := CanonicalCmp(a[i].Value, b[i].Value); c != Equal {
			return c
		}
	}
	return ord(len(a) - len(b))
}
