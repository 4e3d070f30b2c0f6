package crypto

import (
	"encoding/hex"
	"testing"

	"github.com/Klingon-tech/klingvault/pkg/types"
)

func hexToHash(t *testing.T, s string) types.Hash {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex: %v", err)
	}
	var h types.Hash
	copy(h[:], b)
	return h
}

func TestFingerprint(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{
			name:  "empty input",
			input: []byte{},
			want:  "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262",
		},
		{
			name:  "hello",
			input: []byte("hello"),
			want:  "ea8f163db38682925e4491c5e58d4bb3506ef8c14eb78a86e908c5624a67200f",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fingerprint(tt.input)
			want := hexToHash(t, tt.want)
			if got != want {
				t.Errorf("Fingerprint(%q) = %x, want %x", tt.input, got, want)
			}
		})
	}
}

func TestDoubleSHA256(t *testing.T) {
	got := DoubleSHA256([]byte{})
	want := hexToHash(t, "5df6e0e2761359d30a8275058e299fcc0381534545f55cf43e41983f5d4c9456")
	if got != want {
		t.Errorf("DoubleSHA256(\"\") = %x, want %x", got, want)
	}
}

func TestHash160(t *testing.T) {
	// Compressed public key of private key 1.
	pub, _ := hex.DecodeString("0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798")
	got := hex.EncodeToString(Hash160(pub))
	if got != "751e76e8199196d454941c45d1b3a323f1433bd6" {
		t.Errorf("Hash160() = %s", got)
	}
}

func TestKeccak256(t *testing.T) {
	got := Keccak256([]byte{})
	want := hexToHash(t, "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470")
	if got != want {
		t.Errorf("Keccak256(\"\") = %x, want %x", got, want)
	}

	// Multiple slices hash as their concatenation.
	if Keccak256([]byte("ab"), []byte("c")) != Keccak256([]byte("abc")) {
		t.Error("Keccak256 should hash the concatenation of its arguments")
	}
}

func TestBlake2b224(t *testing.T) {
	h := Blake2b224([]byte("cardano"))
	if len(h) != 28 {
		t.Fatalf("Blake2b224() length = %d, want 28", len(h))
	}
	if hex.EncodeToString(h) == hex.EncodeToString(Blake2b224([]byte("cardanO"))) {
		t.Error("different inputs produced the same digest")
	}
}
