package executor

import (
	"encoding/binary"
	"fmt"

	"github.com/canisterdb/engine/internal/value"
)

// Cursor is a deterministic function of the last emitted DataKey in a
// paginated traversal (spec.md §4.6.3's "ordering slots plus an
// optional index-range anchor" — the ordering slot here is the
// DataKey's own position in the stream's canonical order, since every
// access path this executor builds ultimately emits DataKeys in one
// total, deterministic order per direction).
type Cursor struct {
	Entity string
	Last   value.Key
}

// Encode renders a Cursor as an opaque, self-delimiting byte string
// using the same invertible codec internal/store uses for posting
// entries, so a cursor round-trips regardless of the key's Kind.
func Encode(c Cursor) []byte {
	keyFrame := value.EncodeKey(c.Last)
	out := make([]byte, 0, 2+len(c.Entity)+len(keyFrame))
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(c.Entity)))
	out = append(out, lenBuf[:]...)
	out = append(out, c.Entity...)
	out = append(out, keyFrame...)
	return out
}

// Decode reverses Encode, rejecting a malformed or truncated token.
func Decode(b []byte) (Cursor, error) {
	if len(b) < 2 {
		return Cursor{}, fmt.Errorf("executor: cursor shorter than its entity-length header")
	}
	n := int(binary.BigEndian.Uint16(b[0:2]))
	if len(b) < 2+n {
		return Cursor{}, fmt.Errorf("executor: cursor truncated before its entity name")
	}
	entity := string(b[2 : 2+n])
	k, consumed, err := value.DecodeKey(b[2+n:])
	if err != nil {
		return Cursor{}, fmt.Errorf("executor: cursor key: %w", err)
	}
	if 2+n+consumed != len(b) {
		return Cursor{}, fmt.Errorf("executor: cursor has trailing bytes past its key")
	}
	return Cursor{Entity: entity, Last: k}, nil
}

// resumeStream wraps a KeyStream, discarding every key at or before
// anchor (in the stream's own direction) so the first key it surfaces
// is the strict successor of a prior page's last key. This walks the
// same stream a fresh traversal would build rather than seeking
// natively into the middle of an index/composite traversal, trading a
// native-seek optimization for a resume rule that is correct by
// construction: it literally re-derives "the strict suffix of the full
// traversal from that point" (spec.md §4.6.3) instead of approximating
// it.
type resumeStream struct {
	inner  KeyStream
	anchor value.Key
	dir    Direction
	passed bool
}

// Resume wraps inner so its first surfaced key is the one strictly
// after anchor in dir's order. Resuming from the terminal cursor (an
// anchor past every key the stream holds) correctly yields an empty
// page with no further keys.
func Resume(inner KeyStream, anchor value.Key, dir Direction) KeyStream {
	return &resumeStream{inner: inner, anchor: anchor, dir: dir}
}

func (s *resumeStream) Next() (value.DataKey, bool, error) {
	if s.passed {
		return s.inner.Next()
	}
	for {
		dk, ok, err := s.inner.Next()
		if err != nil || !ok {
			return value.DataKey{}, false, err
		}
		if before(s.anchor, dk.Key, s.dir) {
			s.passed = true
			return dk, true, nil
		}
	}
}

func (s *resumeStream) Close() { s.inner.Close() }

// Page applies the offset/limit pagination window over stream in
// emission order: offset keys are skipped first, then up to limit are
// returned. It reports the Cursor to resume from (the last key it
// emitted) and whether more keys remain beyond the page.
func Page(stream KeyStream, offset, limit int) (keys []value.DataKey, next *Cursor, hasMore bool, err error) {
	for i := 0; i < offset; i++ {
		_, ok, nextErr := stream.Next()
		if nextErr != nil {
			return nil, nil, false, nextErr
		}
		if !ok {
			return nil, nil, false, nil
		}
	}
	if limit <= 0 {
		_, ok, nextErr := stream.Next()
		if nextErr != nil {
			return nil, nil, false, nextErr
		}
		return nil, nil, ok, nil
	}
	for len(keys) < limit {
		dk, ok, nextErr := stream.Next()
		if nextErr != nil {
			return nil, nil, false, nextErr
		}
		if !ok {
			return keys, nil, false, nil
		}
		keys = append(keys, dk)
	}
	_, ok, nextErr := stream.Next()
	if nextErr != nil {
		return nil, nil, false, nextErr
	}
	if ok {
		hasMore = true
	}
	last := keys[len(keys)-1]
	next = &Cursor{Entity: last.Entity, Last: last.Key}
	return keys, next, hasMore, nil
}
