package store

import (
	"fmt"

	"github.com/canisterdb/engine/internal/value"
)

// Badger backs every store-id's keyspace inside one shared *badger.DB,
// the way the teacher's encoding.go namespaces a GSI's keys under the
// base table's prefix ($gsi:<name>) rather than opening a second
// database. Each store-id gets a single leading byte so range scans
// over one store never cross into another's keys.
const (
	nsPrimaryData  byte = 0x01
	nsIndex        byte = 0x02
	nsCommitMarker byte = 0x03
	nsSchemaReg    byte = 0x04
)

const maxEntityNameLen = 255

// EncodeRawDataKey renders a DataKey as its badger key: namespace byte,
// length-prefixed entity name, canonical encoding of the primary key
// value. The canonical encoding is itself prefix-free (see
// internal/value/encode.go), so concatenating it after the
// length-prefixed entity name keeps the whole key prefix-free too.
func EncodeRawDataKey(dk value.DataKey) ([]byte, error) {
	if len(dk.Entity) == 0 || len(dk.Entity) > maxEntityNameLen {
		return nil, fmt.Errorf("store: entity name %q is empty or exceeds %d bytes", dk.Entity, maxEntityNameLen)
	}
	enc, err := value.EncodeCanonicalIndexComponent(dk.Key.Value())
	if err != nil {
		return nil, fmt.Errorf("store: encode data key: %w", err)
	}
	out := make([]byte, 0, 2+len(dk.Entity)+len(enc))
	out = append(out, nsPrimaryData, byte(len(dk.Entity)))
	out = append(out, dk.Entity...)
	out = append(out, enc...)
	return out, nil
}

// EntityDataPrefix returns the badger-key prefix for every row belonging
// to one entity, used by FullScan/KeyRange.
func EntityDataPrefix(entity string) []byte {
	out := make([]byte, 0, 2+len(entity))
	out = append(out, nsPrimaryData, byte(len(entity)))
	out = append(out, entity...)
	return out
}

// EncodeRawIndexKey renders an IndexKey as its badger key: namespace
// byte, length-prefixed index-id, then the concatenated 16-byte
// fingerprints. Arity is checked against the fingerprint count but not
// written, so IndexPrefixBytes builds a true prefix of every key of the
// index. Fixed-width fingerprints make this frame prefix-free by
// construction (§4.1's "composed" guarantee) without needing an
// explicit terminator between components.
func EncodeRawIndexKey(ik value.IndexKey) ([]byte, error) {
	if len(ik.IndexID) == 0 || len(ik.IndexID) > maxEntityNameLen {
		return nil, fmt.Errorf("store: index id %q is empty or exceeds %d bytes", ik.IndexID, maxEntityNameLen)
	}
	if ik.Arity != len(ik.Fingerprints) {
		return nil, fmt.Errorf("store: index key arity %d does not match %d fingerprints", ik.Arity, len(ik.Fingerprints))
	}
	out := make([]byte, 0, 2+len(ik.IndexID)+16*len(ik.Fingerprints))
	out = append(out, nsIndex, byte(len(ik.IndexID)))
	out = append(out, ik.IndexID...)
	for _, fp := range ik.Fingerprints {
		out = append(out, fp[:]...)
	}
	return out, nil
}

// IndexPrefixBytes returns the badger-key prefix matching every index
// key whose leading `len(fps)` fingerprints equal fps, for an index
// named indexID. Used by IndexPrefix/IndexRange access paths.
func IndexPrefixBytes(indexID string, fps []value.Fingerprint) []byte {
	out := make([]byte, 0, 2+len(indexID)+16*len(fps))
	out = append(out, nsIndex, byte(len(indexID)))
	out = append(out, indexID...)
	for _, fp := range fps {
		out = append(out, fp[:]...)
	}
	return out
}

// IndexEntityPrefix returns the prefix for every index key belonging to
// one indexID regardless of fingerprint, used for full index scans and
// for wiping an index's keys under schema migration tooling (out of
// scope for the core, but the prefix is a store-level primitive either
// way).
func IndexEntityPrefix(indexID string) []byte {
	out := make([]byte, 0, 2+len(indexID))
	out = append(out, nsIndex, byte(len(indexID)))
	out = append(out, indexID...)
	return out
}

// CommitMarkerKey is the single well-known slot the commit marker lives
// in. There is at most one marker at a time (spec.md §4.7/§5).
func CommitMarkerKey() []byte {
	return []byte{nsCommitMarker}
}

// incrementPrefix returns the smallest byte string greater than every
// string with prefix b, the seek target a reverse iterator needs to
// land on the last key within b's range (teacher's
// ddbstore/store_helpers.go incrementBytes).
func incrementPrefix(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] < 0xFF {
			out[i]++
			return out[:i+1]
		}
	}
	return append(out, 0x00)
}

// SchemaRegistryKey returns the well-known slot for one entity's
// persisted schema fingerprint, used to detect an incompatible schema
// change across restarts.
func SchemaRegistryKey(entity string) []byte {
	out := make([]byte, 0, 1+len(entity))
	out = append(out, nsSchemaReg)
	out = append(out, entity...)
	return out
}
