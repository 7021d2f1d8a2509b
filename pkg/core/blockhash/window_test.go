package blockhash

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/compto-com/comptoken-program/pkg/core/types"
)

const day = types.SecPerDay

var (
	hashA = types.ComputeSHA256([]byte("a"))
	hashB = types.ComputeSHA256([]byte("b"))
	hashC = types.ComputeSHA256([]byte("c"))
)

func TestWindow_InitialRefreshFillsBothStages(t *testing.T) {
	var w Window
	now := 100*day + 3600

	w.Refresh(hashA, now)

	require.Equal(t, hashA, w.AnnouncedHash)
	require.Equal(t, hashA, w.ValidHash)
	require.Equal(t, 100*day, w.ValidTime)
	require.Equal(t, 100*day-DefaultAnnouncementInterval, w.AnnouncedTime)
	require.False(t, w.IsValidStale(now))
}

func TestWindow_SameDayRefreshIsNoop(t *testing.T) {
	var w Window
	w.Refresh(hashA, 100*day+60)
	before := w

	w.Refresh(hashB, 100*day+day-1)
	require.Equal(t, before, w)
}

func TestWindow_DailyRotation(t *testing.T) {
	var w Window
	w.Refresh(hashA, 100*day+60)

	// Just before the next switchover the announcement is refreshed.
	now := 101*day - DefaultAnnouncementInterval + 1
	w.Refresh(hashB, now)
	require.Equal(t, hashB, w.AnnouncedHash)
	require.Equal(t, hashA, w.ValidHash, "valid hash must not change before the day ends")

	// After the day boundary the announced hash is promoted.
	now = 101*day + 61
	w.Refresh(hashC, now)
	require.Equal(t, hashB, w.ValidHash)
	require.Equal(t, hashB, w.AnnouncedHash)
	require.Equal(t, 101*day, w.ValidTime)
}

func TestWindow_CatchUpAfterLongGap(t *testing.T) {
	var w Window
	w.Refresh(hashA, 100*day+60)

	now := 110*day + 500
	w.Refresh(hashB, now)

	require.Equal(t, hashB, w.AnnouncedHash)
	require.Equal(t, hashB, w.ValidHash)
	require.Equal(t, 110*day, w.ValidTime)
	require.Equal(t, 110*day-DefaultAnnouncementInterval, w.AnnouncedTime)
	require.False(t, w.IsValidStale(now))
	require.False(t, w.IsAnnouncedStale(now))
}

func TestWindow_Staleness(t *testing.T) {
	w := Window{ValidTime: 10 * day}
	require.False(t, w.IsValidStale(11*day))
	require.True(t, w.IsValidStale(11*day+1))
}

func TestWindow_Blockhashes(t *testing.T) {
	w := Window{AnnouncedHash: hashB, ValidHash: hashA}
	out := w.Blockhashes()
	require.Equal(t, hashA[:], out[:32])
	require.Equal(t, hashB[:], out[32:])
}

func TestWindow_Codec(t *testing.T) {
	w := Window{AnnouncedHash: hashA, AnnouncedTime: 5*day - 300, ValidHash: hashB, ValidTime: 5 * day}
	data, err := w.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, EncodedSize)

	var decoded Window
	require.NoError(t, decoded.UnmarshalBinary(data))
	require.Equal(t, w, decoded)

	require.ErrorIs(t, decoded.UnmarshalBinary(data[:10]), ErrCorruptState)
}
