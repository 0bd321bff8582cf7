package predicate

import (
	"encoding/binary"

	"github.com/canisterdb/engine/internal/value"
)

// Fingerprint renders p as a deterministic byte string used to sort
// commutative And/Or children and to decide structural equality between
// two normalized predicates (Normalize's "byte-equal" guarantee).
// It is not an on-disk format and carries no ordering contract beyond
// "equal predicates fingerprint equal, and sorting by fingerprint is
// stable across calls."
func Fingerprint(p Predicate) []byte {
	var out []byte
	out = append(out, byte(p.kind))
	out = append(out, []byte(p.field)...)
	out = append(out, 0)
	if p.kind == KindCompare {
		out = append(out, byte(p.op), byte(p.coerc))
		if len(p.lit) > 0 {
			for _, l := range p.lit {
				out = appendValueFingerprint(out, l)
			}
		} else {
			out = appendValueFingerprint(out, p.value)
		}
	}
	if p.kind == KindTextContains || p.kind == KindTextContainsCi {
		out = appendValueFingerprint(out, p.value)
	}
	for _, c := range p.children {
		out = append(out, Fingerprint(c)...)
	}
	return out
}

// appendValueFingerprint extends out with a self-delimiting rendering
// of v, covering every Kind including the non-storage-key collection
// kinds EncodeCanonicalIndexComponent deliberately rejects (predicate
// literals may legally be Blob/List/Map, e.g. a CollectionElement
// literal compared against a List field).
func appendValueFingerprint(out []byte, v value.Value) []byte {
	out = append(out, byte(v.Kind()))
	switch v.Kind() {
	case value.KindNull, value.KindUnit:
	case value.KindBool:
		b, _ := v.AsBool()
		if b {
			out = append(out, 1)
		} else {
			out = append(out, 0)
		}
	case value.KindText:
		s, _ := v.AsText()
		out = append(out, []byte(s)...)
		out = append(out, 0)
	case value.KindBlob:
		b, _ := v.AsBlob()
		out = append(out, b...)
		out = append(out, 0)
	case value.KindList:
		items, _ := v.AsList()
		var lenBuf [8]byte
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(items)))
		out = append(out, lenBuf[:]...)
		for _, item := range items {
			out = appendValueFingerprint(out, item)
		}
	case value.KindMap:
		entries, _ := v.AsMap()
		var lenBuf [8]byte
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(entries)))
		out = append(out, lenBuf[:]...)
		for _, e := range entries {
			out = appendValueFingerprint(out, e.Key)
			out = appendValueFingerprint(out, e.Value)
		}
	default:
		// Every other kind is a storage key kind; the canonical index
		// encoder already gives it a prefix-free, order-preserving frame.
		enc, err := value.EncodeCanonicalIndexComponent(v)
		if err == nil {
			out = append(out, enc...)
		}
	}
	return out
}
