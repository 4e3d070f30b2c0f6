package address

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingvault/pkg/crypto"
	"github.com/btcsuite/btcd/btcutil/bech32"
)

// Bech32 human-readable parts.
const (
	CardanoHRP = "addr"
	CosmosHRP  = "cosmos"
)

// Cardano Shelley header for an enterprise address on mainnet.
const cardanoEnterpriseMainnet = 0x61

// CardanoEnterpriseAddress returns the mainnet enterprise address (payment
// key only, no stake part) of an ed25519 public key.
func CardanoEnterpriseAddress(pub []byte) (string, error) {
	if len(pub) != ed25519.PublicKeySize {
		return "", fmt.Errorf("ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub))
	}
	payload := append([]byte{cardanoEnterpriseMainnet}, crypto.Blake2b224(pub)...)
	return encodeBech32(CardanoHRP, payload)
}

// CosmosAddress returns the cosmos1 address of a public key. A 33-byte
// compressed secp256k1 key hashes with RIPEMD160(SHA256); a 32-byte ed25519
// key uses the first 20 bytes of its SHA256.
func CosmosAddress(pub []byte) (string, error) {
	switch len(pub) {
	case 33:
		return encodeBech32(CosmosHRP, crypto.Hash160(pub))
	case ed25519.PublicKeySize:
		sum := sha256.Sum256(pub)
		return encodeBech32(CosmosHRP, sum[:20])
	default:
		return "", fmt.Errorf("unsupported cosmos public key length %d", len(pub))
	}
}

func encodeBech32(hrp string, payload []byte) (string, error) {
	data, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(hrp, data)
}

func decodeBech32(addr, wantHRP string) ([]byte, error) {
	hrp, data, err := bech32.DecodeNoLimit(addr)
	if err != nil {
		return nil, err
	}
	if hrp != wantHRP {
		return nil, fmt.Errorf("prefix %q, want %q", hrp, wantHRP)
	}
	return bech32.ConvertBits(data, 5, 8, false)
}

func validateCardano(addr string) error {
	payload, err := decodeBech32(addr, CardanoHRP)
	if err != nil {
		return err
	}
	if len(payload) < 29 {
		return errors.New("payload too short")
	}
	header := payload[0]
	if header>>4 > 7 {
		return fmt.Errorf("header type %d is not a payment address", header>>4)
	}
	if header&0x0f != 1 {
		return errors.New("not a mainnet address")
	}
	return nil
}

func validateCosmos(addr string) error {
	payload, err := decodeBech32(addr, CosmosHRP)
	if err != nil {
		return err
	}
	if len(payload) != 20 && len(payload) != 32 {
		return fmt.Errorf("payload length %d", len(payload))
	}
	return nil
}
