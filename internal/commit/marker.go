// Package commit implements the crash-safe multi-store mutation
// protocol: a CommitMarker bundling every data and index op is
// persisted to its own well-known slot before any mutation is applied,
// mutations are applied through labeled checkpoints, and the marker is
// cleared last. This replaces the teacher's reliance on Badger's native
// transaction atomicity (dynamodb/ddbstore/store_transact_write_items.go's
// two-pass validate-then-write inside one db.Update) with an explicit,
// replayable marker: the engine must tolerate the backing store
// becoming visible mid-write, so the marker — not a badger transaction
// boundary — is the unit of atomicity a reader observes.
package commit

import (
	"encoding/binary"
	"fmt"
)

// Kind discriminates which operation a Marker records.
type Kind int

const (
	Save Kind = iota
	Delete
)

// Op is one raw-key mutation: Old/New mirror the `old-bytes?`/`new-bytes?`
// pair spec.md §4.7 names. A nil New means removal; a nil Old means the
// key was absent beforehand. Both fields are the already-final encoded
// store bytes (a complete posting, a complete stored row) rather than a
// delta, which is what makes replaying New with Set, or deleting when
// New is nil, naturally idempotent — unlike the teacher's updateGSI,
// which mutates a GSI key relative to old/new item diffs, the ops
// recorded here are the post-diff result, ready to apply verbatim.
type Op struct {
	RawKey []byte
	Old    []byte
	New    []byte
}

// Marker is the persisted record of one in-flight commit: its kind, and
// the complete ordered list of index and data ops building toward it.
// Index ops are applied before data ops (spec.md §4.7 step 3), mirroring
// the teacher's updateGSI-before-main-write ordering in
// store_transact_write_items.go's second pass.
type Marker struct {
	Kind     Kind
	IndexOps []Op
	DataOps  []Op
}

// Encode renders a Marker as a self-delimiting byte string for the
// commit-marker slot.
func Encode(m Marker) []byte {
	out := []byte{byte(m.Kind)}
	out = appendOps(out, m.IndexOps)
	out = appendOps(out, m.DataOps)
	return out
}

func appendOps(out []byte, ops []Op) []byte {
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(ops)))
	out = append(out, countBuf[:]...)
	for _, op := range ops {
		out = appendFrame(out, op.RawKey)
		out = appendOptionalFrame(out, op.Old)
		out = appendOptionalFrame(out, op.New)
	}
	return out
}

func appendFrame(out []byte, b []byte) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	out = append(out, lenBuf[:]...)
	return append(out, b...)
}

func appendOptionalFrame(out []byte, b []byte) []byte {
	if b == nil {
		return append(out, 0)
	}
	out = append(out, 1)
	return appendFrame(out, b)
}

// Decode reverses Encode, rejecting a truncated or malformed marker.
func Decode(b []byte) (Marker, error) {
	if len(b) < 1 {
		return Marker{}, fmt.Errorf("commit: marker shorter than its kind byte")
	}
	kind := Kind(b[0])
	if kind != Save && kind != Delete {
		return Marker{}, fmt.Errorf("commit: marker has unrecognized kind %d", b[0])
	}
	rest := b[1:]
	indexOps, rest, err := readOps(rest)
	if err != nil {
		return Marker{}, fmt.Errorf("commit: marker index ops: %w", err)
	}
	dataOps, rest, err := readOps(rest)
	if err != nil {
		return Marker{}, fmt.Errorf("commit: marker data ops: %w", err)
	}
	if len(rest) != 0 {
		return Marker{}, fmt.Errorf("commit: marker has trailing bytes")
	}
	return Marker{Kind: kind, IndexOps: indexOps, DataOps: dataOps}, nil
}

func readOps(b []byte) ([]Op, []byte, error) {
	if len(b) < 4 {
		return nil, nil, fmt.Errorf("truncated before op count")
	}
	n := binary.BigEndian.Uint32(b[0:4])
	rest := b[4:]
	ops := make([]Op, 0, n)
	for i := uint32(0); i < n; i++ {
		var rawKey, oldVal, newVal []byte
		var err error
		rawKey, rest, err = readFrame(rest)
		if err != nil {
			return nil, nil, fmt.Errorf("op %d raw key: %w", i, err)
		}
		oldVal, rest, err = readOptionalFrame(rest)
		if err != nil {
			return nil, nil, fmt.Errorf("op %d old value: %w", i, err)
		}
		newVal, rest, err = readOptionalFrame(rest)
		if err != nil {
			return nil, nil, fmt.Errorf("op %d new value: %w", i, err)
		}
		ops = append(ops, Op{RawKey: rawKey, Old: oldVal, New: newVal})
	}
	return ops, rest, nil
}

func readFrame(b []byte) ([]byte, []byte, error) {
	if len(b) < 4 {
		return nil, nil, fmt.Errorf("truncated before frame length")
	}
	n := binary.BigEndian.Uint32(b[0:4])
	b = b[4:]
	if uint32(len(b)) < n {
		return nil, nil, fmt.Errorf("truncated before frame body")
	}
	return append([]byte(nil), b[:n]...), b[n:], nil
}

func readOptionalFrame(b []byte) ([]byte, []byte, error) {
	if len(b) < 1 {
		return nil, nil, fmt.Errorf("truncated before optional-frame tag")
	}
	tag, rest := b[0], b[1:]
	if tag == 0 {
		return nil, rest, nil
	}
	return readFrame(rest)
}
