package consensus

import (
	"testing"

	"github.com/compto-com/comptoken-program/pkg/core/types"
)

func TestSHA256HasherImplementsHasher(t *testing.T) {
	var _ Hasher = (*SHA256Hasher)(nil)
}

func TestSHA256HasherDeterministic(t *testing.T) {
	h := NewSHA256Hasher()
	defer h.Close()

	input := []byte("comptoken test input")
	hash1, err := h.Hash(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hash2, err := h.Hash(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash1 != hash2 {
		t.Fatalf("same input produced different hashes: %s vs %s", hash1.Hex(), hash2.Hex())
	}
	if hash1 == types.ComputeSHA256(input) {
		t.Fatal("hasher must apply SHA-256 twice")
	}
}

func TestMeetsTarget_Default(t *testing.T) {
	target := DefaultTarget()

	tests := []struct {
		name string
		hash types.Hash
		want bool
	}{
		{
			name: "zero hash passes",
			hash: types.Hash{},
			want: true,
		},
		{
			name: "just below target",
			hash: types.Hash{0x0e, 0xad, 0xd7, 0xff, 0xff},
			want: true,
		},
		{
			name: "equal to target fails",
			hash: types.Hash{0x0e, 0xad, 0xd8},
			want: false,
		},
		{
			name: "just above target",
			hash: types.Hash{0x0e, 0xad, 0xd8, 0x00, 0x01},
			want: false,
		},
		{
			name: "high first byte fails",
			hash: types.Hash{0xff},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MeetsTarget(tt.hash, target)
			if got != tt.want {
				t.Errorf("MeetsTarget(%x) = %v, want %v", tt.hash[:4], got, tt.want)
			}
		})
	}
}

func TestTargetFromHex(t *testing.T) {
	target, err := TargetFromHex("0x" + DefaultTargetHex)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.Hex() != DefaultTargetHex {
		t.Errorf("Hex() = %s, want %s", target.Hex(), DefaultTargetHex)
	}

	if _, err := TargetFromHex("0eadd8"); err == nil {
		t.Error("short target should be rejected")
	}
	if _, err := TargetFromHex("zz"); err == nil {
		t.Error("non-hex target should be rejected")
	}
}

func TestTargetFromHash(t *testing.T) {
	ceiling := types.Hash{}
	for i := range ceiling {
		ceiling[i] = 0xff
	}
	target := TargetFromHash(ceiling)
	if !target.IsMetBy(types.Hash{0xfe}) {
		t.Error("everything below the maximum should pass")
	}
	if target.IsMetBy(ceiling) {
		t.Error("the target itself never passes")
	}
}
