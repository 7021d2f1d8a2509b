package consensus

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"github.com/compto-com/comptoken-program/pkg/core/types"
)

// Hasher computes Proof-of-Work hashes of serialized proof headers.
type Hasher interface {
	// Hash computes the PoW hash of the given header bytes.
	Hash(headerBytes []byte) (types.Hash, error)

	// Close releases any resources held by the hasher.
	Close()
}

// DefaultTargetHex is the development target: 0x0eadd8 followed by zeros.
// It is intentionally easy so CPU miners find proofs quickly; production
// deployments configure their own target.
const DefaultTargetHex = "0eadd80000000000000000000000000000000000000000000000000000000000"

// Target is the 256-bit difficulty threshold. A proof is accepted when its
// hash, read as a big-endian integer, is strictly below the target.
type Target struct {
	v uint256.Int
}

// DefaultTarget returns the target described by DefaultTargetHex.
func DefaultTarget() Target {
	t, err := TargetFromHex(DefaultTargetHex)
	if err != nil {
		panic(err)
	}
	return t
}

// TargetFromHex parses a 64-character hex target, with or without 0x prefix.
func TargetFromHex(s string) (Target, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return Target{}, fmt.Errorf("invalid target hex: %w", err)
	}
	if len(b) != types.HashSize {
		return Target{}, fmt.Errorf("target must be %d bytes, got %d", types.HashSize, len(b))
	}
	var t Target
	t.v.SetBytes32(b)
	return t, nil
}

// TargetFromHash interprets a hash-sized big-endian value as a target.
func TargetFromHash(h types.Hash) Target {
	var t Target
	t.v.SetBytes32(h[:])
	return t
}

// Hex returns the target as 64 lowercase hex characters.
func (t Target) Hex() string {
	b := t.v.Bytes32()
	return hex.EncodeToString(b[:])
}

// String implements fmt.Stringer.
func (t Target) String() string {
	return t.Hex()
}

// IsMetBy reports whether hash < target.
func (t Target) IsMetBy(hash types.Hash) bool {
	var h uint256.Int
	h.SetBytes32(hash[:])
	return h.Lt(&t.v)
}

// MeetsTarget checks whether a PoW hash satisfies the given target.
func MeetsTarget(powHash types.Hash, target Target) bool {
	return target.IsMetBy(powHash)
}
