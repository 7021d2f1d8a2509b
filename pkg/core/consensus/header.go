package consensus

import (
	"encoding/binary"
	"fmt"

	"github.com/compto-com/comptoken-program/pkg/core/types"
)

// PayloadSize is the exact length of a proof submission payload:
// pubkey(32) || extra_data(32) || nonce(4) || version(4) || timestamp(4).
const PayloadSize = 76

// HeaderSize is the length of a serialized proof header.
const HeaderSize = 80

// HeaderBits is the fixed difficulty field written into every header. It is
// the compact encoding of DefaultTargetHex and does not change the target the
// verifier enforces.
const HeaderBits uint32 = 0x200eadd8

// Payload is the miner-submitted proof material.
type Payload struct {
	Pubkey    types.Pubkey
	ExtraData [32]byte
	Nonce     uint32
	Version   uint32
	Timestamp uint32
}

// Serialize returns the 76-byte wire form. Integers are little-endian.
func (p *Payload) Serialize() []byte {
	buf := make([]byte, PayloadSize)
	copy(buf[0:32], p.Pubkey[:])
	copy(buf[32:64], p.ExtraData[:])
	binary.LittleEndian.PutUint32(buf[64:68], p.Nonce)
	binary.LittleEndian.PutUint32(buf[68:72], p.Version)
	binary.LittleEndian.PutUint32(buf[72:76], p.Timestamp)
	return buf
}

// ParsePayload decodes the fixed-offset payload fields.
func ParsePayload(data []byte) (*Payload, error) {
	if len(data) != PayloadSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidPayloadSize, len(data), PayloadSize)
	}
	p := &Payload{
		Nonce:     binary.LittleEndian.Uint32(data[64:68]),
		Version:   binary.LittleEndian.Uint32(data[68:72]),
		Timestamp: binary.LittleEndian.Uint32(data[72:76]),
	}
	copy(p.Pubkey[:], data[0:32])
	copy(p.ExtraData[:], data[32:64])
	return p, nil
}

// CommitmentRoot computes the two-level commitment to the payload:
// the leaf SHA256(extra_data || pubkey), then the root SHA256(leaf).
func (p *Payload) CommitmentRoot() types.Hash {
	return types.ComputeDoubleSHA256(p.ExtraData[:], p.Pubkey[:])
}

// ProofHeader is the canonical 80-byte header a proof hash is computed over.
type ProofHeader struct {
	Version       uint32
	PrevBlockhash types.Hash // stored byte-reversed
	MerkleRoot    types.Hash
	Timestamp     uint32
	Bits          uint32
	Nonce         uint32
}

// NewProofHeader assembles the header for a payload mined against validHash.
func NewProofHeader(p *Payload, validHash types.Hash) ProofHeader {
	return ProofHeader{
		Version:       p.Version,
		PrevBlockhash: validHash.Reversed(),
		MerkleRoot:    p.CommitmentRoot(),
		Timestamp:     p.Timestamp,
		Bits:          HeaderBits,
		Nonce:         p.Nonce,
	}
}

// Serialize returns the header encoding.
// Field order: Version(4) || PrevBlockhash(32) || MerkleRoot(32) ||
//
//	Timestamp(4) || Bits(4) || Nonce(4)
func (h *ProofHeader) Serialize() []byte {
	buf := make([]byte, HeaderSize)
	h.SerializeInto(buf)
	return buf
}

// SerializeInto writes the header into buf, which must hold HeaderSize bytes.
func (h *ProofHeader) SerializeInto(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Version)
	copy(buf[4:36], h.PrevBlockhash[:])
	copy(buf[36:68], h.MerkleRoot[:])
	binary.LittleEndian.PutUint32(buf[68:72], h.Timestamp)
	binary.LittleEndian.PutUint32(buf[72:76], h.Bits)
	binary.LittleEndian.PutUint32(buf[76:80], h.Nonce)
}
