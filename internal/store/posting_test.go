package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/canisterdb/engine/internal/value"
)

func TestPostingEncodeDecodeRoundTrip(t *testing.T) {
	keys := []value.Key{
		value.MustKey(value.Int(1)),
		value.MustKey(value.Int(2)),
		value.MustKey(value.Uint(7)),
	}

	enc := EncodePosting(keys)
	got, err := DecodePosting(enc)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := range keys {
		require.Equal(t, value.Equal, value.CanonicalCmp(keys[i].Value(), got[i].Value()))
	}
}

func TestDecodePostingRejectsTruncatedFrame(t *testing.T) {
	_, err := DecodePosting([]byte{0x00})
	require.Error(t, err)
	var corrupt *Corruption
	require.ErrorAs(t, err, &corrupt)
}

func TestDecodePostingRejectsTrailingBytes(t *testing.T) {
	enc := EncodePosting([]value.Key{value.MustKey(value.Int(1))})
	enc = append(enc, 0xFF)
	_, err := DecodePosting(enc)
	require.Error(t, err)
}

func TestPostingInsertEnforcesNonUniqueCap(t *testing.T) {
	p := newPosting(false)
	for i := 0; i < MaxNonUniquePostingKeys; i++ {
		_, err := p.insert("by_test", value.MustKey(value.Int(int64(i))))
		require.NoError(t, err)
	}
	_, err := p.insert("by_test", value.MustKey(value.Int(int64(MaxNonUniquePostingKeys))))
	require.Error(t, err)
	var tooLarge *EntryTooLarge
	require.ErrorAs(t, err, &tooLarge)
}

func TestPostingInsertIsIdempotent(t *testing.T) {
	p := newPosting(true)
	added, err := p.insert("by_id", value.MustKey(value.Int(1)))
	require.NoError(t, err)
	require.True(t, added)

	added, err = p.insert("by_id", value.MustKey(value.Int(1)))
	require.NoError(t, err)
	require.False(t, added)
	require.Equal(t, 1, p.len())
}
