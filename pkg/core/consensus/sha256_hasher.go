package consensus

import (
	"github.com/compto-com/comptoken-program/pkg/core/types"
)

// SHA256Hasher implements Hasher using double-SHA256, the block header
// convention that off-chain mining tools already implement.
type SHA256Hasher struct{}

var _ Hasher = (*SHA256Hasher)(nil)

// NewSHA256Hasher returns a new SHA256Hasher.
func NewSHA256Hasher() *SHA256Hasher {
	return &SHA256Hasher{}
}

// Hash computes SHA256(SHA256(headerBytes)).
func (h *SHA256Hasher) Hash(headerBytes []byte) (types.Hash, error) {
	return types.ComputeDoubleSHA256(headerBytes), nil
}

// Close is a no-op for SHA256Hasher.
func (h *SHA256Hasher) Close() {}
