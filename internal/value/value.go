// Package value defines the closed scalar/compound value sum that backs
// every row field, index fingerprint, and key in the engine, along with
// the total canonical ordering used by the planner, predicate engine, and
// index encoder.
package value

import (
	"fmt"
	"math"
	"math/big"
	"time"
)

// Kind identifies one variant of the closed Value sum.
type Kind uint8

const (
	KindNull Kind = iota
	KindUnit
	KindBool
	KindInt
	KindUint
	KindBigInt
	KindBigUint
	KindDecimal
	KindFloat32
	KindFloat64
	KindTimestamp
	KindDuration
	KindDate
	KindPrincipal
	KindSubaccount
	KindAccount
	KindText
	KindUlid
	KindBlob
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindUnit:
		return "Unit"
	case KindBool:
		return "Bool"
	case KindInt:
		return "Int"
	case KindUint:
		return "Uint"
	case KindBigInt:
		return "BigInt"
	case KindBigUint:
		return "BigUint"
	case KindDecimal:
		return "Decimal"
	case KindFloat32:
		return "Float32"
	case KindFloat64:
		return "Float64"
	case KindTimestamp:
		return "Timestamp"
	case KindDuration:
		return "Duration"
	case KindDate:
		return "Date"
	case KindPrincipal:
		return "Principal"
	case KindSubaccount:
		return "Subaccount"
	case KindAccount:
		return "Account"
	case KindText:
		return "Text"
	case KindUlid:
		return "Ulid"
	case KindBlob:
		return "Blob"
	case KindList:
		return "List"
	case KindMap:
		return "Map"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Decimal is a fixed-scale decimal: value = Mantissa * 10^Exponent, with
// Mantissa held as a big.Int so precision is only bounded by the encoded
// frame (see encode.go).
type Decimal struct {
	Mantissa *big.Int
	Exponent int32
}

// Normalize strips trailing mantissa zeros by raising the exponent, and
// canonicalizes a zero mantissa's exponent to 0, so that equal decimal
// values always compare and encode identically.
func (d Decimal) Normalize() Decimal {
	m := new(big.Int).Set(d.Mantissa)
	exp := d.Exponent
	if m.Sign() == 0 {
		return Decimal{Mantissa: big.NewInt(0), Exponent: 0}
	}
	ten := big.NewInt(10)
	rem := new(big.Int)
	for {
		q, r := new(big.Int).QuoRem(m, ten, rem)
		if rem.Sign() != 0 {
			break
		}
		m = q
		exp++
	}
	return Decimal{Mantissa: m, Exponent: exp}
}

// Account is a principal plus an optional subaccount, mirroring the
// ICRC-1 account shape.
type Account struct {
	Owner      Principal
	Subaccount *Subaccount
}

// Principal is a variable-length (<=29 byte) identifier.
type Principal struct {
	Bytes []byte
}

// Subaccount is a fixed 32-byte identifier.
type Subaccount [32]byte

// Ulid is a 128-bit lexicographically-sortable identifier.
type Ulid [16]byte

// Value is the closed sum of every storable/queryable scalar and
// compound shape. Exactly one field is meaningful for a given Kind; the
// zero Value is KindNull.
type Value struct {
	kind Kind

	boolV    bool
	intV     int64
	uintV    uint64
	bigV     *big.Int
	decV     Decimal
	f32V     float32
	f64V     float64
	timeV    time.Time
	durV     time.Duration
	dateV    Date
	princV   Principal
	subV     Subaccount
	acctV    Account
	textV    string
	ulidV    Ulid
	blobV    []byte
	listV    []Value
	mapV     []MapEntry
}

// Date is a calendar date with no time-of-day or zone component.
type Date struct {
	Year  int32
	Month uint8
	Day   uint8
}

// MapEntry is one canonically-ordered key/value pair of a Map value. Keys
// are restricted to scalar, non-null values (enforced by NewMap).
type MapEntry struct {
	Key   Value
	Value Value
}

func Null() Value { return Value{kind: KindNull} }
func Unit() Value { return Value{kind: KindUnit} }
func Bool(b bool) Value { return Value{kind: KindBool, boolV: b} }
func Int(i int64) Value { return Value{kind: KindInt, intV: i} }
func Uint(u uint64) Value { return Value{kind: KindUint, uintV: u} }

func BigInt(b *big.Int) Value {
	return Value{kind: KindBigInt, bigV: new(big.Int).Set(b)}
}

func BigUint(b *big.Int) Value {
	if b.Sign() < 0 {
		panic("value: BigUint requires a non-negative magnitude")
	}
	return Value{kind: KindBigUint, bigV: new(big.Int).Set(b)}
}

func DecimalValue(d Decimal) Value { return Value{kind: KindDecimal, decV: d.Normalize()} }

// Float32/Float64 reject NaN and +/-Inf: the value model excludes
// non-finite floats outright, rather than merely rejecting them at
// encode time.
func Float32(f float32) (Value, error) {
	v := Value{kind: KindFloat32, f32V: f}
	if !v.IsFiniteFloat() {
		return Value{}, fmt.Errorf("value: non-finite float32 %v is not a legal value", f)
	}
	return v, nil
}

func Float64(f float64) (Value, error) {
	v := Value{kind: KindFloat64, f64V: f}
	if !v.IsFiniteFloat() {
		return Value{}, fmt.Errorf("value: non-finite float64 %v is not a legal value", f)
	}
	return v, nil
}
func Timestamp(t time.Time) Value  { return Value{kind: KindTimestamp, timeV: t.UTC()} }
func Duration(d time.Duration) Value { return Value{kind: KindDuration, durV: d} }
func DateValue(d Date) Value       { return Value{kind: KindDate, dateV: d} }
func PrincipalValue(p Principal) Value { return Value{kind: KindPrincipal, princV: p} }
func SubaccountValue(s Subaccount) Value { return Value{kind: KindSubaccount, subV: s} }
func AccountValue(a Account) Value { return Value{kind: KindAccount, acctV: a} }
func Text(s string) Value          { return Value{kind: KindText, textV: s} }
func UlidValue(u Ulid) Value       { return Value{kind: KindUlid, ulidV: u} }
func Blob(b []byte) Value          { return Value{kind: KindBlob, blobV: append([]byte(nil), b...)} }
func List(vs []Value) Value        { return Value{kind: KindList, listV: vs} }

// NewMap builds a canonically-normalized Map: entries sorted by key using
// CanonicalCmpKey, rejecting duplicate or non-scalar/null keys.
func NewMap(entries []MapEntry) (Value, error) {
	out := append([]MapEntry(nil), entries...)
	for _, e := range out {
		if e.Key.Kind() == KindNull || e.Key.Kind() == KindList || e.Key.Kind() == KindMap {
			return Value{}, fmt.Errorf("value: map key must be scalar and non-null, got %s", e.Key.Kind())
		}
	}
	sortMapEntries(out)
	for i := 1; i < len(out); i++ {
		if CanonicalCmpKey(out[i-1].Key, out[i].Key) == 0 {
			return Value{}, fmt.Errorf("value: duplicate map key %v", out[i].Key)
		}
	}
	return Value{kind: KindMap, mapV: out}, nil
}

func sortMapEntries(entries []MapEntry) {
	// insertion sort: map arities are small in practice, and this keeps
	// the dependency surface to the comparator alone.
	for i := 1; i < len(entries); i++ {
		j := i
		for j > 0 && CanonicalCmpKey(entries[j-1].Key, entries[j].Key) > 0 {
			entries[j-1], entries[j] = entries[j], entries[j-1]
			j--
		}
	}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsBool() (bool, bool)         { return v.boolV, v.kind == KindBool }
func (v Value) AsInt() (int64, bool)         { return v.intV, v.kind == KindInt }
func (v Value) AsUint() (uint64, bool)       { return v.uintV, v.kind == KindUint }
func (v Value) AsBigInt() (*big.Int, bool)   { return v.bigV, v.kind == KindBigInt }
func (v Value) AsBigUint() (*big.Int, bool)  { return v.bigV, v.kind == KindBigUint }
func (v Value) AsDecimal() (Decimal, bool)   { return v.decV, v.kind == KindDecimal }
func (v Value) AsFloat32() (float32, bool)   { return v.f32V, v.kind == KindFloat32 }
func (v Value) AsFloat64() (float64, bool)   { return v.f64V, v.kind == KindFloat64 }
func (v Value) AsTimestamp() (time.Time, bool) { return v.timeV, v.kind == KindTimestamp }
func (v Value) AsDuration() (time.Duration, bool) { return v.durV, v.kind == KindDuration }
func (v Value) AsDate() (Date, bool)         { return v.dateV, v.kind == KindDate }
func (v Value) AsPrincipal() (Principal, bool) { return v.princV, v.kind == KindPrincipal }
func (v Value) AsSubaccount() (Subaccount, bool) { return v.subV, v.kind == KindSubaccount }
func (v Value) AsAccount() (Account, bool)   { return v.acctV, v.kind == KindAccount }
func (v Value) AsText() (string, bool)       { return v.textV, v.kind == KindText }
func (v Value) AsUlid() (Ulid, bool)         { return v.ulidV, v.kind == KindUlid }
func (v Value) AsBlob() ([]byte, bool)       { return v.blobV, v.kind == KindBlob }
func (v Value) AsList() ([]Value, bool)      { return v.listV, v.kind == KindList }
func (v Value) AsMap() ([]MapEntry, bool)    { return v.mapV, v.kind == KindMap }

// IsFiniteFloat reports whether a Float32/Float64 value is neither NaN
// nor +/-Inf. Float32/Float64 never build a non-finite value; the
// canonical encoder checks again before encoding a float.
func (v Value) IsFiniteFloat() bool {
	switch v.kind {
	case KindFloat32:
		f := float64(v.f32V)
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	case KindFloat64:
		return !math.IsNaN(v.f64V) && !math.IsInf(v.f64V, 0)
	default:
		return true
	}
}
