// Package blockhash tracks the pair of network blockhashes that proofs are
// mined against. A freshly observed hash is first announced, then promoted to
// valid at the next day boundary, so miners can learn tomorrow's hash before
// it becomes binding.
package blockhash

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/compto-com/comptoken-program/pkg/core/types"
)

// DefaultAnnouncementInterval is the lead time, in seconds, between the
// earliest possible announcement and the daily switchover.
const DefaultAnnouncementInterval int64 = 5 * 60

// EncodedSize is the size of an encoded Window.
const EncodedSize = 2 * (types.HashSize + 8)

var (
	ErrCorruptState = errors.New("blockhash window: corrupt state")
)

// Window holds the announced and valid blockhashes along with the
// normalized times at which each was last set.
type Window struct {
	AnnouncedHash types.Hash
	AnnouncedTime int64
	ValidHash     types.Hash
	ValidTime     int64

	// AnnouncementInterval is not persisted. Zero means DefaultAnnouncementInterval.
	AnnouncementInterval int64
}

func (w *Window) interval() int64 {
	if w.AnnouncementInterval > 0 {
		return w.AnnouncementInterval
	}
	return DefaultAnnouncementInterval
}

// Refresh rotates the window. The announcement and the promotion are checked
// independently on every call, which lets a window that missed any number of
// days catch up in a single call.
func (w *Window) Refresh(current types.Hash, now int64) {
	if w.IsAnnouncedStale(now) {
		w.AnnouncedHash = current
		// Anchored to the upcoming switchover so a skipped day does not drift.
		w.AnnouncedTime = types.NormalizeTime(now+w.interval()) - w.interval()
	}
	if w.IsValidStale(now) {
		w.ValidHash = w.AnnouncedHash
		w.ValidTime = types.NormalizeTime(now)
	}
}

// IsAnnouncedStale reports whether more than a day has passed since the
// announced hash was set.
func (w *Window) IsAnnouncedStale(now int64) bool {
	return now > w.AnnouncedTime+types.SecPerDay
}

// IsValidStale reports whether more than a day has passed since the valid
// hash was promoted.
func (w *Window) IsValidStale(now int64) bool {
	return now > w.ValidTime+types.SecPerDay
}

// Blockhashes returns valid_hash || announced_hash, the reply of the
// "get valid blockhashes" query.
func (w *Window) Blockhashes() [2 * types.HashSize]byte {
	var out [2 * types.HashSize]byte
	copy(out[:types.HashSize], w.ValidHash[:])
	copy(out[types.HashSize:], w.AnnouncedHash[:])
	return out
}

// MarshalBinary encodes the window as
// announced_hash(32) || announced_time(8) || valid_hash(32) || valid_time(8),
// integers little-endian.
func (w *Window) MarshalBinary() ([]byte, error) {
	buf := make([]byte, EncodedSize)
	w.encode(buf)
	return buf, nil
}

func (w *Window) encode(buf []byte) {
	copy(buf[0:32], w.AnnouncedHash[:])
	binary.LittleEndian.PutUint64(buf[32:40], uint64(w.AnnouncedTime))
	copy(buf[40:72], w.ValidHash[:])
	binary.LittleEndian.PutUint64(buf[72:80], uint64(w.ValidTime))
}

// UnmarshalBinary decodes a window written by MarshalBinary.
func (w *Window) UnmarshalBinary(data []byte) error {
	if len(data) != EncodedSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrCorruptState, len(data), EncodedSize)
	}
	copy(w.AnnouncedHash[:], data[0:32])
	w.AnnouncedTime = int64(binary.LittleEndian.Uint64(data[32:40]))
	copy(w.ValidHash[:], data[40:72])
	w.ValidTime = int64(binary.LittleEndian.Uint64(data[72:80]))
	return nil
}
