package types

import (
	"crypto/sha256"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// PubkeySize is the length of an account address in bytes.
const PubkeySize = 32

// Pubkey is an ed25519 account address. Token wallets, user data accounts and
// the program's bank accounts are all keyed by Pubkey.
type Pubkey [PubkeySize]byte

// PubkeyFromBase58 parses a base58 address.
func PubkeyFromBase58(s string) (Pubkey, error) {
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return Pubkey{}, fmt.Errorf("invalid pubkey %q: %w", s, err)
	}
	return Pubkey(pk), nil
}

// PubkeyFromBytes creates a Pubkey from a byte slice. Returns error if len != 32.
func PubkeyFromBytes(b []byte) (Pubkey, error) {
	if len(b) != PubkeySize {
		return Pubkey{}, fmt.Errorf("pubkey must be %d bytes, got %d", PubkeySize, len(b))
	}
	var pk Pubkey
	copy(pk[:], b)
	return pk, nil
}

// DeriveAddress returns a deterministic address for a program-owned account.
// The address is SHA-256(program || seed) and has no private key.
func DeriveAddress(program Pubkey, seed string) Pubkey {
	return Pubkey(sha256.Sum256(append(program[:], seed...)))
}

// Bytes returns the key as a byte slice.
func (pk Pubkey) Bytes() []byte {
	return pk[:]
}

// String returns the base58 address.
func (pk Pubkey) String() string {
	return solana.PublicKey(pk).String()
}

// IsZero reports whether the key is unset.
func (pk Pubkey) IsZero() bool {
	return pk == Pubkey{}
}
