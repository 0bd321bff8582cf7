package value

import (
	"encoding/binary"
	"fmt"
	"time"
)

// EncodeKey renders a Key in a self-delimiting, tagged wire format used
// by store-level posting codecs (internal/store). This is deliberately
// distinct from EncodeCanonicalIndexComponent: that encoding exists to
// preserve sort order for seeking; this one exists only to round-trip a
// Key through a bounded on-disk record, and is never used for
// comparison.
func EncodeKey(k Key) []byte {
	v := k.Value()
	switch v.Kind() {
	case KindUnit:
		return []byte{byte(KindUnit)}
	case KindBool:
		b, _ := v.AsBool()
		if b {
			return []byte{byte(KindBool), 1}
		}
		return []byte{byte(KindBool), 0}
	case KindInt:
		i, _ := v.AsInt()
		out := make([]byte, 9)
		out[0] = byte(KindInt)
		binary.BigEndian.PutUint64(out[1:], uint64(i))
		return out
	case KindUint:
		u, _ := v.AsUint()
		out := make([]byte, 9)
		out[0] = byte(KindUint)
		binary.BigEndian.PutUint64(out[1:], u)
		return out
	case KindTimestamp:
		t, _ := v.AsTimestamp()
		out := make([]byte, 9)
		out[0] = byte(KindTimestamp)
		binary.BigEndian.PutUint64(out[1:], uint64(t.UnixNano()))
		return out
	case KindUlid:
		u, _ := v.AsUlid()
		out := make([]byte, 1+len(u))
		out[0] = byte(KindUlid)
		copy(out[1:], u[:])
		return out
	case KindSubaccount:
		s, _ := v.AsSubaccount()
		out := make([]byte, 1+len(s))
		out[0] = byte(KindSubaccount)
		copy(out[1:], s[:])
		return out
	case KindPrincipal:
		p, _ := v.AsPrincipal()
		out := make([]byte, 2+len(p.Bytes))
		out[0] = byte(KindPrincipal)
		out[1] = byte(len(p.Bytes))
		copy(out[2:], p.Bytes)
		return out
	case KindAccount:
		a, _ := v.AsAccount()
		owner := EncodeKey(MustKey(PrincipalValue(a.Owner)))
		hasSub := byte(0)
		var sub Subaccount
		if a.Subaccount != nil {
			hasSub = 1
			sub = *a.Subaccount
		}
		out := make([]byte, 0, 2+len(owner)+32)
		out = append(out, byte(KindAccount), byte(len(owner)))
		out = append(out, owner...)
		out = append(out, hasSub)
		if hasSub == 1 {
			out = append(out, sub[:]...)
		}
		return out
	default:
		panic(fmt.Sprintf("value: %s is not a Key variant", v.Kind()))
	}
}

// DecodeKey reverses EncodeKey, returning the number of bytes consumed
// so callers can decode a concatenated run of keys without an outer
// length table.
func DecodeKey(b []byte) (Key, int, error) {
	if len(b) == 0 {
		return Key{}, 0, fmt.Errorf("value: empty key frame")
	}
	kind := Kind(b[0])
	switch kind {
	case KindUnit:
		return MustKey(Unit()), 1, nil
	case KindBool:
		if len(b) < 2 {
			return Key{}, 0, fmt.Errorf("value: truncated bool key frame")
		}
		return MustKey(Bool(b[1] != 0)), 2, nil
	case KindInt:
		if len(b) < 9 {
			return Key{}, 0, fmt.Errorf("value: truncated int key frame")
		}
		return MustKey(Int(int64(binary.BigEndian.Uint64(b[1:9])))), 9, nil
	case KindUint:
		if len(b) < 9 {
			return Key{}, 0, fmt.Errorf("value: truncated uint key frame")
		}
		return MustKey(Uint(binary.BigEndian.Uint64(b[1:9]))), 9, nil
	case KindTimestamp:
		if len(b) < 9 {
			return Key{}, 0, fmt.Errorf("value: truncated timestamp key frame")
		}
		nanos := int64(binary.BigEndian.Uint64(b[1:9]))
		return MustKey(Timestamp(time.Unix(0, nanos).UTC())), 9, nil
	case KindUlid:
		if len(b) < 17 {
			return Key{}, 0, fmt.Errorf("value: truncated ulid key frame")
		}
		var u Ulid
		copy(u[:], b[1:17])
		return MustKey(UlidValue(u)), 17, nil
	case KindSubaccount:
		if len(b) < 33 {
			return Key{}, 0, fmt.Errorf("value: truncated subaccount key frame")
		}
		var s Subaccount
		copy(s[:], b[1:33])
		return MustKey(SubaccountValue(s)), 33, nil
	case KindPrincipal:
		if len(b) < 2 {
			return Key{}, 0, fmt.Errorf("value: truncated principal key frame")
		}
		n := int(b[1])
		if len(b) < 2+n {
			return Key{}, 0, fmt.Errorf("value: truncated principal key frame")
		}
		p := append([]byte(nil), b[2:2+n]...)
		return MustKey(PrincipalValue(Principal{Bytes: p})), 2 + n, nil
	case KindAccount:
		if len(b) < 2 {
			return Key{}, 0, fmt.Errorf("value: truncated account key frame")
		}
		ownerLen := int(b[1])
		if len(b) < 2+ownerLen+1 {
			return Key{}, 0, fmt.Errorf("value: truncated account key frame")
		}
		ownerKey, n, err := DecodeKey(b[2 : 2+ownerLen])
		if err != nil {
			return Key{}, 0, fmt.Errorf("value: decode account owner: %w", err)
		}
		if n != ownerLen {
			return Key{}, 0, fmt.Errorf("value: account owner frame length mismatch")
		}
		owner, _ := ownerKey.Value().AsPrincipal()
		pos := 2 + ownerLen
		hasSub := b[pos]
		pos++
		var subPtr *Subaccount
		if hasSub == 1 {
			if len(b) < pos+32 {
				return Key{}, 0, fmt.Errorf("value: truncated account subaccount frame")
			}
			var s Subaccount
			copy(s[:], b[pos:pos+32])
			subPtr = &s
			pos += 32
		}
		return MustKey(AccountValue(Account{Owner: owner, Subaccount: subPtr})), pos, nil
	default:
		return Key{}, 0, fmt.Errorf("value: unknown key kind tag %d", kind)
	}
}
