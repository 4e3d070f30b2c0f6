package address

import (
	"crypto/ed25519"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// SolanaAddress returns the base58 encoding of an ed25519 public key.
func SolanaAddress(pub []byte) (string, error) {
	if len(pub) != ed25519.PublicKeySize {
		return "", fmt.Errorf("ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub))
	}
	return solana.PublicKeyFromBytes(pub).String(), nil
}

func validateSolana(addr string) error {
	_, err := solana.PublicKeyFromBase58(addr)
	return err
}
