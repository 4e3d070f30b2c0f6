// Package crypto provides the hash and key helpers shared by the wallet engine.
package crypto

import (
	"crypto/sha256"

	"github.com/Klingon-tech/klingvault/pkg/types"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // required by address formats
	"golang.org/x/crypto/sha3"
)

// Fingerprint computes a BLAKE3-256 hash of the input data. It identifies raw
// transactions in the history journal and is never used on-chain.
func Fingerprint(data []byte) types.Hash {
	return blake3.Sum256(data)
}

// DoubleSHA256 computes SHA256(SHA256(data)).
func DoubleSHA256(data []byte) types.Hash {
	first := sha256.Sum256(data)
	return sha256.Sum256(first[:])
}

// Hash160 computes RIPEMD160(SHA256(data)).
func Hash160(data []byte) []byte {
	sum := sha256.Sum256(data)
	h := ripemd160.New()
	h.Write(sum[:])
	return h.Sum(nil)
}

// Keccak256 computes the legacy Keccak-256 hash used by Ethereum and Monero.
func Keccak256(data ...[]byte) types.Hash {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Blake2b224 computes a 28-byte BLAKE2b digest (Cardano key hashes).
func Blake2b224(data []byte) []byte {
	h, err := blake2b.New(28, nil)
	if err != nil {
		// Only fails for sizes > 64 or oversized keys.
		panic(err)
	}
	h.Write(data)
	return h.Sum(nil)
}
