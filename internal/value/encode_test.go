package value

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestGoldenVectors encodes the fixed value set spec.md §8 S8 names and
// checks that each encodes and that re-encoding is byte-identical. It
// does not compare the encodings against stored byte sequences.
func TestGoldenVectors(t *testing.T) {
	f0, err := Float64(0.0)
	require.NoError(t, err)
	fneg1, err := Float64(-1.0)
	require.NoError(t, err)

	cases := []struct {
		name string
		v    Value
	}{
		{"bool-false", Bool(false)},
		{"bool-true", Bool(true)},
		{"int-neg1", Int(-1)},
		{"uint-1", Uint(1)},
		{"decimal-10-1", DecimalValue(Decimal{Mantissa: big.NewInt(10), Exponent: 1})},
		{"float64-neg1", fneg1},
		{"float64-0", f0},
		{"text-a", Text("a")},
		{"principal", PrincipalValue(Principal{Bytes: []byte{1, 0, 2}})},
		{"bigint-neg7", BigInt(big.NewInt(-7))},
		{"biguint-70", BigUint(big.NewInt(70))},
		{"ulid-1", UlidValue(ulidFromUint64(1))},
		{"unit", Unit()},
	}

	seen := map[string][]byte{}
	for _, c := range cases {
		enc, err := EncodeCanonicalIndexComponent(c.v)
		require.NoError(t, err, c.name)
		require.NotEmpty(t, enc, c.name)
		seen[c.name] = enc
	}

	// Re-encoding must be byte-identical (determinism, property 3).
	for _, c := range cases {
		enc, err := EncodeCanonicalIndexComponent(c.v)
		require.NoError(t, err)
		require.Equal(t, seen[c.name], enc, "encoding of %s is not stable across calls", c.name)
	}
}

func ulidFromUint64(n uint64) Ulid {
	var u Ulid
	for i := 15; i >= 8; i-- {
		u[i] = byte(n)
		n >>= 8
	}
	return u
}

func TestEncodeRejectsNull(t *testing.T) {
	_, err := EncodeCanonicalIndexComponent(Null())
	require.Error(t, err)
}

func TestEncodeRejectsBlobListMap(t *testing.T) {
	_, err := EncodeCanonicalIndexComponent(Blob([]byte("x")))
	require.Error(t, err)

	_, err = EncodeCanonicalIndexComponent(List([]Value{Int(1)}))
	require.Error(t, err)

	m, err := NewMap([]MapEntry{{Key: Text("a"), Value: Int(1)}})
	require.NoError(t, err)
	_, err = EncodeCanonicalIndexComponent(m)
	require.Error(t, err)
}

func TestEncodeDeterministicNormalization(t *testing.T) {
	// -0 big-int encodes identically to 0.
	negZero := new(big.Int).Neg(big.NewInt(0))
	a, err := EncodeCanonicalIndexComponent(BigInt(negZero))
	require.NoError(t, err)
	b, err := EncodeCanonicalIndexComponent(BigInt(big.NewInt(0)))
	require.NoError(t, err)
	require.Equal(t, b, a)

	// Leading-zero-normalized decimals encode identically: 1.0 == 10 * 10^-1.
	d1 := DecimalValue(Decimal{Mantissa: big.NewInt(10), Exponent: -1})
	d2 := DecimalValue(Decimal{Mantissa: big.NewInt(1), Exponent: 0})
	e1, err := EncodeCanonicalIndexComponent(d1)
	require.NoError(t, err)
	e2, err := EncodeCanonicalIndexComponent(d2)
	require.NoError(t, err)
	require.Equal(t, e2, e1)
}

func TestEncodeOrderAgreement(t *testing.T) {
	pairs := []Value{
		Int(-100), Int(-1), Int(0), Int(1), Int(100),
	}
	for i := 0; i < len(pairs); i++ {
		for j := 0; j < len(pairs); j++ {
			ei, err := EncodeCanonicalIndexComponent(pairs[i])
			require.NoError(t, err)
			ej, err := EncodeCanonicalIndexComponent(pairs[j])
			require.NoError(t, err)

			want := CanonicalCmp(pairs[i], pairs[j])
			got := bytesCmpOrdering(ei, ej)
			require.Equal(t, want, got, "i=%d j=%d", i, j)
		}
	}
}

// TestEncodePrincipalOrderAgreement exercises the case a naive
// length-prefixed framing gets backwards: one principal a strict byte
// prefix of another must still encode in the same relative order as
// raw bytes.Compare reports (CanonicalCmp's own Principal rule).
func TestEncodePrincipalOrderAgreement(t *testing.T) {
	pairs := []Value{
		PrincipalValue(Principal{Bytes: []byte{0x61}}),             // "a"
		PrincipalValue(Principal{Bytes: []byte{0x61, 0x7a}}),       // "az"
		PrincipalValue(Principal{Bytes: []byte{0x62}}),             // "b"
		PrincipalValue(Principal{Bytes: []byte{}}),                 // empty sorts first
		PrincipalValue(Principal{Bytes: []byte{0x00, 0x01}}),       // embedded 0x00
		PrincipalValue(Principal{Bytes: []byte{0x00}}),
	}
	for i := range pairs {
		for j := range pairs {
			ei, err := EncodeCanonicalIndexComponent(pairs[i])
			require.NoError(t, err)
			ej, err := EncodeCanonicalIndexComponent(pairs[j])
			require.NoError(t, err)
			require.Equal(t, CanonicalCmp(pairs[i], pairs[j]), bytesCmpOrdering(ei, ej), "i=%d j=%d", i, j)
		}
	}
}

func TestEncodeAccountOrderAgreement(t *testing.T) {
	owner := func(b byte) Principal { return Principal{Bytes: []byte{b}} }
	sub := Subaccount{1}
	pairs := []Value{
		AccountValue(Account{Owner: owner(1)}),
		AccountValue(Account{Owner: owner(1), Subaccount: &sub}),
		AccountValue(Account{Owner: owner(2)}),
	}
	for i := range pairs {
		for j := range pairs {
			ei, err := EncodeCanonicalIndexComponent(pairs[i])
			require.NoError(t, err)
			ej, err := EncodeCanonicalIndexComponent(pairs[j])
			require.NoError(t, err)
			require.Equal(t, CanonicalCmp(pairs[i], pairs[j]), bytesCmpOrdering(ei, ej), "i=%d j=%d", i, j)
		}
	}
}

func bytesCmpOrdering(a, b []byte) Ordering {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return Less
			}
			return Greater
		}
	}
	return ord(len(a) - len(b))
}

func TestBigIntRoundTrip(t *testing.T) {
	values := []*big.Int{
		big.NewInt(0),
		big.NewInt(7),
		big.NewInt(-7),
		big.NewInt(123456789),
	}
	for _, v := range values {
		enc, err := encodeBigInt(v, true)
		require.NoError(t, err)
		got, err := DecodeBigIntComponent(enc)
		require.NoError(t, err)
		require.Equal(t, 0, v.Cmp(got), "round trip of %s", v.String())
	}
}
