package value

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
)

// OrderedValueEncodeError is returned by EncodeCanonicalIndexComponent
// for any Value that cannot legally appear in an index key: Null, Blob,
// List, Map, and any non-queryable structured shape.
type OrderedValueEncodeError struct {
	Kind   Kind
	Reason string
}

func (e *OrderedValueEncodeError) Error() string {
	return fmt.Sprintf("value: cannot encode %s as an index component: %s", e.Kind, e.Reason)
}

// EncodeCanonicalIndexComponent emits the prefix-free canonical byte
// encoding of v. For every pair a,b that both encode successfully,
// encode(a) <= encode(b) iff CanonicalCmp(a,b) is Less or Equal (see
// encode_test.go for the order-agreement tests and the golden-vector
// determinism test).
func EncodeCanonicalIndexComponent(v Value) ([]byte, error) {
	cap, ok := Capabilities(v.Kind())
	if !ok || !cap.StorageKey {
		return nil, &OrderedValueEncodeError{Kind: v.Kind(), Reason: "kind is not indexable"}
	}

	buf := make([]byte, 0, 16)
	buf = append(buf, CanonicalRank(v.Kind()))

	switch v.Kind() {
	case KindUnit:
		// rank byte alone is a complete, unambiguous frame.
	case KindBool:
		b, _ := v.AsBool()
		if b {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case KindInt:
		i, _ := v.AsInt()
		buf = append(buf, encodeSignedInt64(i)...)
	case KindUint:
		u, _ := v.AsUint()
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], u)
		buf = append(buf, b[:]...)
	case KindBigInt:
		bi, _ := v.AsBigInt()
		enc, err := encodeBigInt(bi, true)
		if err != nil {
			return nil, err
		}
		buf = append(buf, enc...)
	case KindBigUint:
		bi, _ := v.AsBigUint()
		enc, err := encodeBigInt(bi, false)
		if err != nil {
			return nil, err
		}
		buf = append(buf, enc...)
	case KindDecimal:
		d, _ := v.AsDecimal()
		enc, err := encodeDecimal(d)
		if err != nil {
			return nil, err
		}
		buf = append(buf, enc...)
	case KindFloat32:
		f, _ := v.AsFloat32()
		if !v.IsFiniteFloat() {
			return nil, &OrderedValueEncodeError{Kind: v.Kind(), Reason: "non-finite float"}
		}
		buf = append(buf, encodeFloatBits(uint64(math.Float32bits(f))<<32, math.Signbit(float64(f)))...)
	case KindFloat64:
		f, _ := v.AsFloat64()
		if !v.IsFiniteFloat() {
			return nil, &OrderedValueEncodeError{Kind: v.Kind(), Reason: "non-finite float"}
		}
		buf = append(buf, encodeFloatBits(math.Float64bits(f), math.Signbit(f))...)
	case KindTimestamp:
		t, _ := v.AsTimestamp()
		// UnixNano is signed; flip sign bit the same way Int does so
		// pre-epoch timestamps sort before the epoch.
		buf = append(buf, encodeSignedInt64(t.UnixNano())...)
	case KindDuration:
		d, _ := v.AsDuration()
		buf = append(buf, encodeSignedInt64(int64(d))...)
	case KindDate:
		d, _ := v.AsDate()
		var b [6]byte
		binary.BigEndian.PutUint32(b[0:4], uint32(d.Year)^0x80000000)
		b[4] = d.Month
		b[5] = d.Day
		buf = append(buf, b[:]...)
	case KindUlid:
		u, _ := v.AsUlid()
		buf = append(buf, u[:]...)
	case KindPrincipal:
		p, _ := v.AsPrincipal()
		buf = append(buf, encodeBytesFrame(p.Bytes)...)
	case KindSubaccount:
		s, _ := v.AsSubaccount()
		buf = append(buf, s[:]...)
	case KindAccount:
		a, _ := v.AsAccount()
		buf = append(buf, encodeBytesFrame(a.Owner.Bytes)...)
		if a.Subaccount != nil {
			buf = append(buf, 1)
			buf = append(buf, a.Subaccount[:]...)
		} else {
			buf = append(buf, 0)
		}
	case KindText:
		s, _ := v.AsText()
		buf = append(buf, encodeTextFrame(s)...)
	default:
		return nil, &OrderedValueEncodeError{Kind: v.Kind(), Reason: "not a queryable storage key kind"}
	}
	return buf, nil
}

// encodeSignedInt64 flips the sign bit before big-endian emission so
// negatives precede positives lexicographically.
func encodeSignedInt64(i int64) []byte {
	u := uint64(i) ^ (1 << 63)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], u)
	return b[:]
}

// encodeFloatBits applies the spec's float framing: if negative, invert
// all bits; else set the top bit. bits must already be the raw IEEE-754
// pattern (for float32, shifted into the high 32 bits by the caller).
func encodeFloatBits(bits uint64, negative bool) []byte {
	if negative {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], bits)
	return b[:]
}

// encodeBigInt frames a big integer as [marker][len16][digits], with
// negatives bit-inverted (digits and length) so more-negative (longer)
// magnitudes sort before less-negative ones. signed selects whether a
// negative marker is legal (BigUint values are never negative).
func encodeBigInt(b *big.Int, signed bool) ([]byte, error) {
	if !signed && b.Sign() < 0 {
		return nil, &OrderedValueEncodeError{Kind: KindBigUint, Reason: "negative magnitude"}
	}
	digits := []byte(b.Text(10))
	if b.Sign() < 0 {
		digits = []byte(b.Text(10))[1:] // strip leading '-'
	}
	if len(digits) > 0xFFFF {
		return nil, &OrderedValueEncodeError{Kind: KindBigInt, Reason: "digit string exceeds 65535 bytes"}
	}

	out := make([]byte, 0, 3+len(digits))
	switch {
	case b.Sign() < 0:
		out = append(out, 0x00)
		length := uint16(len(digits))
		length = ^length
		var lb [2]byte
		binary.BigEndian.PutUint16(lb[:], length)
		out = append(out, lb[:]...)
		for _, d := range digits {
			out = append(out, ^d)
		}
	case b.Sign() == 0:
		out = append(out, 0x01)
		var lb [2]byte
		binary.BigEndian.PutUint16(lb[:], uint16(len(digits)))
		out = append(out, lb[:]...)
		out = append(out, digits...)
	default:
		out = append(out, 0x02)
		var lb [2]byte
		binary.BigEndian.PutUint16(lb[:], uint16(len(digits)))
		out = append(out, lb[:]...)
		out = append(out, digits...)
	}
	return out, nil
}

// DecodeBigIntComponent reverses encodeBigInt, used by golden-vector
// round-trip tests (spec.md §8 property 4).
func DecodeBigIntComponent(enc []byte) (*big.Int, error) {
	if len(enc) < 3 {
		return nil, fmt.Errorf("value: truncated bigint frame")
	}
	marker := enc[0]
	length := binary.BigEndian.Uint16(enc[1:3])
	digits := enc[3:]
	switch marker {
	case 0x01:
		return big.NewInt(0), nil
	case 0x02:
		if int(length) != len(digits) {
			return nil, fmt.Errorf("value: bigint length mismatch")
		}
		n := new(big.Int)
		if _, ok := n.SetString(string(digits), 10); !ok {
			return nil, fmt.Errorf("value: invalid bigint digits")
		}
		return n, nil
	case 0x00:
		length = ^length
		if int(length) != len(digits) {
			return nil, fmt.Errorf("value: bigint length mismatch")
		}
		plain := make([]byte, len(digits))
		for i, d := range digits {
			plain[i] = ^d
		}
		n := new(big.Int)
		if _, ok := n.SetString(string(plain), 10); !ok {
			return nil, fmt.Errorf("value: invalid bigint digits")
		}
		return n.Neg(n), nil
	default:
		return nil, fmt.Errorf("value: unknown bigint marker 0x%02x", marker)
	}
}

// encodeDecimal frames a normalized decimal as
// (sign-marker, biased-exponent, digit-string).
func encodeDecimal(d Decimal) ([]byte, error) {
	digitsEnc, err := encodeBigInt(d.Mantissa, true)
	if err != nil {
		return nil, err
	}
	const bias = 1 << 31
	biased := uint32(int64(d.Exponent) + bias)
	var eb [4]byte
	binary.BigEndian.PutUint32(eb[:], biased)
	out := make([]byte, 0, 4+len(digitsEnc))
	out = append(out, eb[:]...)
	out = append(out, digitsEnc...)
	return out, nil
}

// encodeTextFrame emits s's bytes framed and terminated the way
// encodeBytesFrame does; kept as a named entry point since Text is the
// kind callers reach for most often.
func encodeTextFrame(s string) []byte {
	return encodeBytesFrame([]byte(s))
}

// encodeBytesFrame emits b then a 0x00 0x00 terminator, doubling any
// embedded 0x00 byte to 0x00 0xFF first. This is the only byte-string
// framing that preserves raw lexicographic order across differing
// lengths (a length-prefix or fixed-width pad does not: a terminator
// smaller than every continuation byte is what keeps a → ab's relative
// order correct). Used for Text and for any other variable-length byte
// string that must sort the same way its in-memory bytes.Compare does
// (Principal, and the owner component of Account).
func encodeBytesFrame(b []byte) []byte {
	out := make([]byte, 0, len(b)+2)
	for _, c := range b {
		out = append(out, c)
		if c == 0x00 {
			out = append(out, 0xFF)
		}
	}
	out = append(out, 0x00, 0x00)
	return out
}
