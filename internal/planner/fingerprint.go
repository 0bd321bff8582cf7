package planner

import (
	"encoding/binary"

	"github.com/canisterdb/engine/internal/value"
)

// Fingerprint renders p as a deterministic byte string, used to dedup
// and sort Union/Intersection children so equivalent plans normalize to
// the same structure (spec.md §4.5's "sort children deterministically").
func Fingerprint(p AccessPlan) []byte {
	out := []byte{byte(p.Kind)}
	if p.Kind == KindPath {
		out = appendPathFingerprint(out, p.Path)
	}
	for _, c := range p.Children {
		out = append(out, Fingerprint(c)...)
	}
	return out
}

func appendPathFingerprint(out []byte, p Path) []byte {
	out = append(out, byte(p.Kind))
	switch p.Kind {
	case ByKey:
		out = appendKeyFingerprint(out, p.Key)
	case ByKeys:
		var lenBuf [8]byte
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(p.Keys)))
		out = append(out, lenBuf[:]...)
		for _, k := range p.Keys {
			out = appendKeyFingerprint(out, k)
		}
	case KeyRange:
		out = appendBoundFingerprint(out, p.Lower)
		out = appendBoundFingerprint(out, p.Upper)
	case IndexPrefix, IndexRange:
		out = append(out, []byte(p.IndexName)...)
		out = append(out, 0)
		var lenBuf [8]byte
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(p.Prefix)))
		out = append(out, lenBuf[:]...)
		for _, v := range p.Prefix {
			out = appendValueFingerprint(out, v)
		}
		if p.Kind == IndexRange {
			out = appendBoundFingerprint(out, p.IndexLower)
			out = appendBoundFingerprint(out, p.IndexUpper)
		}
	case FullScan:
	}
	return out
}

func appendKeyFingerprint(out []byte, k value.Key) []byte {
	return appendValueFingerprint(out, k.Value())
}

func appendBoundFingerprint(out []byte, b Bound) []byte {
	if !b.Present {
		return append(out, 0)
	}
	out = append(out, 1)
	if b.Inclusive {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	return appendKeyFingerprint(out, b.Key)
}

func appendValueFingerprint(out []byte, v value.Value) []byte {
	enc, err := value.EncodeCanonicalIndexComponent(v)
	if err != nil {
		// Non-storage-key literals cannot appear in a Path's key/prefix
		// fields by construction (Lower only ever places Key-validated
		// values there); fall back to the kind tag alone so a malformed
		// plan still fingerprints deterministically instead of panicking.
		return append(out, byte(v.Kind()))
	}
	return append(out, enc...)
}
