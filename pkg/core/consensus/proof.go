package consensus

import (
	"errors"
	"fmt"

	"github.com/compto-com/comptoken-program/pkg/core/blockhash"
	"github.com/compto-com/comptoken-program/pkg/core/types"
)

var (
	ErrInvalidPayloadSize = errors.New("proof payload has invalid size")
	ErrInvalidProof       = errors.New("proof hash does not meet target")
	ErrStaleBlockhash     = errors.New("valid blockhash is stale")
	ErrPubkeyMismatch     = errors.New("proof pubkey does not match submitting wallet")
)

// Proof is a parsed, hashed submission.
type Proof struct {
	Pubkey types.Pubkey
	Hash   types.Hash
}

// ComputeProof parses a payload and hashes its header against validHash.
func ComputeProof(data []byte, validHash types.Hash, hasher Hasher) (*Proof, error) {
	payload, err := ParsePayload(data)
	if err != nil {
		return nil, err
	}
	header := NewProofHeader(payload, validHash)
	hash, err := hasher.Hash(header.Serialize())
	if err != nil {
		return nil, fmt.Errorf("hash proof header: %w", err)
	}
	return &Proof{Pubkey: payload.Pubkey, Hash: hash}, nil
}

// Verifier checks submitted proofs against a fixed target.
type Verifier struct {
	Target Target
	Hasher Hasher
}

// NewVerifier returns a verifier using double-SHA256.
func NewVerifier(target Target) *Verifier {
	return &Verifier{Target: target, Hasher: NewSHA256Hasher()}
}

// VerifySubmittedProof recomputes the proof hash from data and the window's
// valid hash, then requires that the hash meets the target, the valid hash is
// not stale at now, and the proof was mined for wallet.
func (v *Verifier) VerifySubmittedProof(wallet types.Pubkey, data []byte, window *blockhash.Window, now int64) (*Proof, error) {
	proof, err := ComputeProof(data, window.ValidHash, v.Hasher)
	if err != nil {
		return nil, err
	}

	// 1. Difficulty gate.
	if !v.Target.IsMetBy(proof.Hash) {
		return nil, ErrInvalidProof
	}

	// 2. The hash the proof was mined against must still be current.
	if window.IsValidStale(now) {
		return nil, ErrStaleBlockhash
	}

	// 3. Proofs are bound to the wallet that receives the mint.
	if proof.Pubkey != wallet {
		return nil, ErrPubkeyMismatch
	}

	return proof, nil
}
