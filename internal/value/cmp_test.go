package value

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalCmpTotalOrder(t *testing.T) {
	f1, err := Float64(1.5)
	require.NoError(t, err)
	vals := []Value{
		Null(), Unit(), Bool(false), Bool(true),
		Int(-5), Int(5), Uint(5), Text("a"), Text("b"), f1,
	}
	for _, a := range vals {
		for _, b := range vals {
			c1 := CanonicalCmp(a, b)
			c2 := CanonicalCmp(b, a)
			require.Equal(t, -int(c1), int(c2), "antisymmetry: %v vs %v", a, b)
		}
	}
	for _, a := range vals {
		require.Equal(t, Equal, CanonicalCmp(a, a), "reflexivity: %v", a)
	}
}

func TestCanonicalCmpTransitivity(t *testing.T) {
	vals := []Value{Int(-5), Int(0), Int(5), Uint(0), Uint(10), Text("a"), Text("z")}
	for _, a := range vals {
		for _, b := range vals {
			for _, c := range vals {
				ab := CanonicalCmp(a, b)
				bc := CanonicalCmp(b, c)
				if ab == Less && bc == Less {
					require.Equal(t, Less, CanonicalCmp(a, c))
				}
			}
		}
	}
}

func TestStrictOrderCmpRejectsCrossVariant(t *testing.T) {
	_, ok := StrictOrderCmp(Int(1), Text("1"))
	require.False(t, ok)

	c, ok := StrictOrderCmp(Int(1), Int(2))
	require.True(t, ok)
	require.Equal(t, Less, c)
}

func TestStrictOrderCmpRejectsNonOrderable(t *testing.T) {
	_, ok := StrictOrderCmp(Null(), Null())
	require.False(t, ok)
}
