package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/mr-tron/base58"
)

// HashSize is the length of all hashes in bytes.
const HashSize = 32

// Hash represents a 32-byte SHA-256 digest. Network blockhashes and accepted
// proofs both use this type.
type Hash [HashSize]byte

// ZeroHash is the all-zeroes hash, held by a window or ledger that has never
// been refreshed.
var ZeroHash Hash

// HashFromBytes creates a Hash from a byte slice. Returns error if len != 32.
func HashFromBytes(b []byte) (Hash, error) {
	if len(b) != HashSize {
		return Hash{}, fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(b))
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// HashFromHex parses a hex-encoded string into a Hash.
func HashFromHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid hex: %w", err)
	}
	return HashFromBytes(b)
}

// HashFromBase58 parses the base58 form used by Solana tooling.
func HashFromBase58(s string) (Hash, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid base58: %w", err)
	}
	return HashFromBytes(b)
}

// Bytes returns the hash as a byte slice.
func (h Hash) Bytes() []byte {
	return h[:]
}

// Hex returns the lowercase hex-encoded string.
func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}

// Base58 returns the base58 encoding.
func (h Hash) Base58() string {
	return base58.Encode(h[:])
}

// String implements fmt.Stringer.
func (h Hash) String() string {
	return h.Base58()
}

// IsZero returns true if every byte is 0x00.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// Reversed returns the hash with its byte order flipped.
func (h Hash) Reversed() Hash {
	var r Hash
	for i := range h {
		r[HashSize-1-i] = h[i]
	}
	return r
}

// ComputeSHA256 computes SHA-256 of the concatenation of parts.
func ComputeSHA256(parts ...[]byte) Hash {
	hasher := sha256.New()
	for _, p := range parts {
		hasher.Write(p)
	}
	var h Hash
	copy(h[:], hasher.Sum(nil))
	return h
}

// ComputeDoubleSHA256 computes SHA256(SHA256(parts...)).
func ComputeDoubleSHA256(parts ...[]byte) Hash {
	first := ComputeSHA256(parts...)
	return sha256.Sum256(first[:])
}
