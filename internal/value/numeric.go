package value

import (
	"fmt"
	"math/big"

	"golang.org/x/exp/constraints"
)

// Numeric is the generic constraint spanning every bounded native
// numeric Go type the engine accepts as a field value or literal,
// mirrored on the teacher's val.Number[T Numeric] constructor.
type Numeric interface {
	constraints.Integer | constraints.Float
}

// FromNative builds the narrowest Value variant that exactly represents
// a bounded native numeric type T, used by schema-bound field setters
// and predicate literal construction so callers never hand-pick a Kind.
func FromNative[T Numeric](v T) (Value, error) {
	switch x := any(v).(type) {
	case int, int8, int16, int32, int64:
		return Int(toInt64(x)), nil
	case uint, uint8, uint16, uint32, uint64:
		return Uint(toUint64(x)), nil
	case float32:
		return Float32(x)
	case float64:
		return Float64(x)
	default:
		return Value{}, fmt.Errorf("value: unsupported native numeric type %T", v)
	}
}

func toInt64(x any) int64 {
	switch v := x.(type) {
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	default:
		panic("value: unreachable toInt64 case")
	}
}

func toUint64(x any) uint64 {
	switch v := x.(type) {
	case uint:
		return uint64(v)
	case uint8:
		return uint64(v)
	case uint16:
		return uint64(v)
	case uint32:
		return uint64(v)
	case uint64:
		return v
	default:
		panic("value: unreachable toUint64 case")
	}
}

// WidenToBig promotes an Int, Uint, BigInt or BigUint Value to a
// *big.Int without truncation; ok is false for every other kind. The
// predicate engine's NumericWiden comparison does not use it (it
// converts through big.Rat in internal/predicate).
func WidenToBig(v Value) (*big.Int, bool) {
	switch v.Kind() {
	case KindInt:
		i, _ := v.AsInt()
		return big.NewInt(i), true
	case KindUint:
		u, _ := v.AsUint()
		return new(big.Int).SetUint64(u), true
	case KindBigInt, KindBigUint:
		b, _ := v.AsBigInt()
		return new(big.Int).Set(b), true
	default:
		return nil, false
	}
}
