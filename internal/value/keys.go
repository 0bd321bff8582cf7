package value

import "fmt"

// Key is the scalar identity sum legal as a primary-key or index-fingerprint
// source: a strict subset of Value restricted to the "keyable" kinds.
type Key struct {
	v Value
}

// NewKey wraps a Value as a Key, rejecting kinds the registry does not mark
// StorageKey (see registry.go).
func NewKey(v Value) (Key, error) {
	cap, ok := Capabilities(v.Kind())
	if !ok || !cap.StorageKey {
		return Key{}, fmt.Errorf("value: kind %s is not a valid key", v.Kind())
	}
	return Key{v: v}, nil
}

// MustKey panics on an invalid kind; used for literals built by callers
// that already validated the kind against a schema.
func MustKey(v Value) Key {
	k, err := NewKey(v)
	if err != nil {
		panic(err)
	}
	return k
}

func (k Key) Value() Value { return k.v }

// DataKey wraps a Key with the owning entity's name, forming the full
// identity of one primary-store row.
type DataKey struct {
	Entity string
	Key    Key
}

// Fingerprint is the 16-byte canonical summary of one field value used
// inside an IndexKey. Two values with equal canonical encodings of
// length <= 16 are fingerprinted identically only if they are
// CanonicalCmp-equal; longer encodings are folded with FNV-1a so
// fingerprints remain fixed-width while staying collision-resistant
// enough for index-key framing (full equality is still decided by the
// posting's stored Key values, not the fingerprint).
type Fingerprint [16]byte

// NewFingerprint derives a Fingerprint from a value's canonical encoding.
func NewFingerprint(v Value) (Fingerprint, error) {
	enc, err := EncodeCanonicalIndexComponent(v)
	if err != nil {
		return Fingerprint{}, err
	}
	return fingerprintBytes(enc), nil
}

func fingerprintBytes(b []byte) Fingerprint {
	var fp Fingerprint
	if len(b) <= 16 {
		copy(fp[16-len(b):], b)
		return fp
	}
	// FNV-1a 64-bit, doubled into both halves so the fixed-width frame
	// stays full even for long encodings (big decimals, long text).
	const (
		offset64 = 1469598103934665603
		prime64  = 1099511628211
	)
	var h1, h2 uint64 = offset64, offset64 ^ 0xff
	for _, c := range b {
		h1 ^= uint64(c)
		h1 *= prime64
		h2 ^= uint64(c) + 1
		h2 *= prime64
	}
	putUint64(fp[0:8], h1)
	putUint64(fp[8:16], h2)
	return fp
}

func putUint64(b []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}

// IndexKey is the raw key shape of one index entry: the index identity
// plus an ordered list of field fingerprints. The primary keys that
// share it are not part of the key; the store keeps them in the posting
// stored under it.
type IndexKey struct {
	IndexID      string
	Arity        int
	Fingerprints []Fingerprint
}
