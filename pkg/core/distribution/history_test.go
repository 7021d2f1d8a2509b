package distribution

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewHistory_IsIdentity(t *testing.T) {
	h := NewHistory()
	entries := h.Entries()
	require.Len(t, entries, HistorySize)
	for _, e := range entries {
		require.Equal(t, IdentityEntry, e)
	}
}

func TestHistory_RingOverwritesOldest(t *testing.T) {
	h := NewHistory()
	const inserted = HistorySize + 35
	for i := 0; i < inserted; i++ {
		h.Insert(Entry{Multiplier: 1, UBIPerHead: uint64(i)})
	}

	entries := h.Entries()
	require.Len(t, entries, HistorySize)
	for i, e := range entries {
		require.Equal(t, uint64(inserted-HistorySize+i), e.UBIPerHead)
	}
	require.Equal(t, uint64(inserted-1), h.Newest().UBIPerHead)
	require.Equal(t, inserted%HistorySize, h.OldestIndex())
}

func TestHistory_FoldRecent(t *testing.T) {
	h := NewHistory()
	for i := 1; i <= 5; i++ {
		h.Insert(Entry{Multiplier: 1, UBIPerHead: uint64(i)})
	}

	collect := func(n int) []uint64 {
		var out []uint64
		h.FoldRecent(n, func(e Entry) { out = append(out, e.UBIPerHead) })
		return out
	}

	require.Nil(t, collect(0))
	require.Equal(t, []uint64{5}, collect(1))
	require.Equal(t, []uint64{3, 4, 5}, collect(3))
	require.Len(t, collect(HistorySize), HistorySize)
	require.Len(t, collect(HistorySize+100), HistorySize)
}
