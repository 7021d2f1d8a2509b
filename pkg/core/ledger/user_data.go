// Package ledger holds the per-holder record of accepted proofs together with
// the holder's interest payout bookkeeping.
package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/compto-com/comptoken-program/pkg/core/types"
)

const (
	// HeaderSize is the encoded size of the fixed fields:
	// payout_day(8) || verified(1) || padding(7) || length(8) || tracked_hash(32).
	HeaderSize = 56

	// MinSize is the smallest valid account: the header plus one proof slot.
	MinSize = HeaderSize + types.HashSize

	// MaxPermittedDataIncrease is the most an account may grow in one call.
	MaxPermittedDataIncrease = 10 * 1024
)

var (
	ErrDuplicateProof = errors.New("proof already accepted for this blockhash")
	ErrStorageFull    = errors.New("user data storage is full, grow the account")
	ErrInvalidSpace   = errors.New("user data space must be at least the minimum size and hold whole proofs")
	ErrGrowthTooLarge = errors.New("user data growth exceeds the per-call limit")
	ErrCorruptAccount = errors.New("user data account is corrupt")
)

// UserData is one holder's proof ledger. Proofs are unique within the epoch
// of TrackedHash; the first insert under a different blockhash clears them.
type UserData struct {
	LastInterestPayoutDay int64
	IsVerifiedHuman       bool
	TrackedHash           types.Hash

	proofs []types.Hash // len(proofs) is the capacity
	count  int
}

// CapacityForSpace returns how many proofs an account of the given byte size
// holds.
func CapacityForSpace(space int) (int, error) {
	if space < MinSize || (space-HeaderSize)%types.HashSize != 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidSpace, space)
	}
	return (space - HeaderSize) / types.HashSize, nil
}

// SpaceForCapacity is the inverse of CapacityForSpace.
func SpaceForCapacity(capacity int) int {
	return HeaderSize + capacity*types.HashSize
}

// New creates an empty ledger sized to space bytes whose payout day is the
// day containing now.
func New(space int, now int64) (*UserData, error) {
	capacity, err := CapacityForSpace(space)
	if err != nil {
		return nil, err
	}
	return &UserData{
		LastInterestPayoutDay: types.NormalizeTime(now),
		proofs:                make([]types.Hash, capacity),
	}, nil
}

// Capacity returns the number of proof slots.
func (u *UserData) Capacity() int {
	return len(u.proofs)
}

// Len returns the number of proofs accepted in the current epoch.
func (u *UserData) Len() int {
	return u.count
}

// Space returns the encoded size of the account.
func (u *UserData) Space() int {
	return SpaceForCapacity(len(u.proofs))
}

// Proofs returns a copy of the accepted proofs in insertion order.
func (u *UserData) Proofs() []types.Hash {
	out := make([]types.Hash, u.count)
	copy(out, u.proofs[:u.count])
	return out
}

// Contains reports whether proof was accepted in the current epoch.
func (u *UserData) Contains(proof types.Hash) bool {
	for _, p := range u.proofs[:u.count] {
		if p == proof {
			return true
		}
	}
	return false
}

// Insert records a verified proof mined against blockhash. A blockhash
// different from TrackedHash starts a new epoch. Nothing is modified when an
// error is returned.
func (u *UserData) Insert(proof, blockhash types.Hash) error {
	count := u.count
	if blockhash != u.TrackedHash {
		count = 0
	}

	for _, p := range u.proofs[:count] {
		if p == proof {
			return ErrDuplicateProof
		}
	}
	if count >= len(u.proofs) {
		return ErrStorageFull
	}

	u.TrackedHash = blockhash
	u.proofs[count] = proof
	u.count = count + 1
	return nil
}

// IsCurrent reports whether interest and UBI have been claimed today.
func (u *UserData) IsCurrent(now int64) bool {
	return u.LastInterestPayoutDay == types.NormalizeTime(now)
}

// Grow reallocates the proof storage to newSpace bytes, keeping the
// accepted proofs.
func (u *UserData) Grow(newSpace int) error {
	capacity, err := CapacityForSpace(newSpace)
	if err != nil {
		return err
	}
	current := u.Space()
	if newSpace <= current {
		return fmt.Errorf("%w: new size %d is not larger than %d", ErrInvalidSpace, newSpace, current)
	}
	if newSpace > current+MaxPermittedDataIncrease {
		return fmt.Errorf("%w: %d -> %d", ErrGrowthTooLarge, current, newSpace)
	}

	proofs := make([]types.Hash, capacity)
	copy(proofs, u.proofs[:u.count])
	u.proofs = proofs
	return nil
}

// MarshalBinary encodes the account in the layout read by existing client
// tooling:
// payout_day(i64) || verified(u8) || padding(7) || length(u64) ||
// tracked_hash(32) || proofs(capacity*32). Integers are little-endian and
// unused proof slots are zero.
func (u *UserData) MarshalBinary() ([]byte, error) {
	buf := make([]byte, u.Space())
	binary.LittleEndian.PutUint64(buf[0:8], uint64(u.LastInterestPayoutDay))
	if u.IsVerifiedHuman {
		buf[8] = 1
	}
	binary.LittleEndian.PutUint64(buf[16:24], uint64(u.count))
	copy(buf[24:56], u.TrackedHash[:])
	for i, p := range u.proofs[:u.count] {
		off := HeaderSize + i*types.HashSize
		copy(buf[off:off+types.HashSize], p[:])
	}
	return buf, nil
}

// UnmarshalBinary decodes an account written by MarshalBinary. The capacity
// is derived from the data length.
func (u *UserData) UnmarshalBinary(data []byte) error {
	capacity, err := CapacityForSpace(len(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptAccount, err)
	}
	length := binary.LittleEndian.Uint64(data[16:24])
	if length > uint64(capacity) {
		return fmt.Errorf("%w: length %d exceeds capacity %d", ErrCorruptAccount, length, capacity)
	}
	if data[8] > 1 {
		return fmt.Errorf("%w: verified flag %d", ErrCorruptAccount, data[8])
	}

	u.LastInterestPayoutDay = int64(binary.LittleEndian.Uint64(data[0:8]))
	u.IsVerifiedHuman = data[8] == 1
	u.count = int(length)
	copy(u.TrackedHash[:], data[24:56])
	u.proofs = make([]types.Hash, capacity)
	for i := range u.proofs[:u.count] {
		off := HeaderSize + i*types.HashSize
		copy(u.proofs[i][:], data[off:off+types.HashSize])
	}
	return nil
}
