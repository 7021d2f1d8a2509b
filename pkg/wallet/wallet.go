// Package wallet manages the ed25519 keys holders sign submissions with.
package wallet

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/cloudflare/circl/sign/ed25519"

	"github.com/compto-com/comptoken-program/pkg/core/types"
)

var (
	ErrInvalidKey       = errors.New("invalid private key")
	ErrInvalidSignature = errors.New("invalid signature")
)

// GenerateKeyPair generates a new Ed25519 keypair.
func GenerateKeyPair() (types.Pubkey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return types.Pubkey{}, nil, err
	}
	pk, err := types.PubkeyFromBytes(pub)
	return pk, priv, err
}

// SaveKey saves the private key to a file in hex format.
func SaveKey(filename string, privKey ed25519.PrivateKey) error {
	hexKey := hex.EncodeToString(privKey)
	return os.WriteFile(filename, []byte(hexKey), 0600)
}

// LoadKey loads a private key from a file (hex format).
func LoadKey(filename string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, len(key), ed25519.PrivateKeySize)
	}
	return ed25519.PrivateKey(key), nil
}

// Pubkey returns the address of a private key.
func Pubkey(privKey ed25519.PrivateKey) types.Pubkey {
	var pk types.Pubkey
	copy(pk[:], privKey[ed25519.SeedSize:])
	return pk
}

// Sign signs msg.
func Sign(privKey ed25519.PrivateKey, msg []byte) []byte {
	return ed25519.Sign(privKey, msg)
}

// Verify checks that sig is signer's signature over msg.
func Verify(signer types.Pubkey, msg, sig []byte) error {
	if len(sig) != ed25519.SignatureSize || !ed25519.Verify(ed25519.PublicKey(signer[:]), msg, sig) {
		return ErrInvalidSignature
	}
	return nil
}

// TransferMessage is the message a sender signs to authorize a transfer:
// from(32) || to(32) || amount(u64 little-endian).
func TransferMessage(from, to types.Pubkey, amount types.Amount) []byte {
	msg := make([]byte, 2*types.PubkeySize+8)
	copy(msg[0:32], from[:])
	copy(msg[32:64], to[:])
	binary.LittleEndian.PutUint64(msg[64:72], uint64(amount))
	return msg
}
