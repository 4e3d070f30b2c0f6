package address

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	tronaddr "github.com/fbsobreira/gotron-sdk/pkg/address"
)

const tronPrefix = 0x41

// TronAddress returns the base58check T-address of a secp256k1 public key.
func TronAddress(pub []byte) (string, error) {
	key, err := parseSecpPub(pub)
	if err != nil {
		return "", err
	}
	return tronaddr.PubkeyToAddress(*key).String(), nil
}

// DecodeTron validates a base58 Tron address and returns its 21 raw bytes.
func DecodeTron(addr string) (tronaddr.Address, error) {
	raw, err := tronaddr.Base58ToAddress(addr)
	if err != nil {
		return nil, err
	}
	if len(raw) != 21 || raw[0] != tronPrefix {
		return nil, errors.New("not a mainnet tron address")
	}
	return raw, nil
}

func parseSecpPub(pub []byte) (*ecdsa.PublicKey, error) {
	switch len(pub) {
	case 33:
		return ethcrypto.DecompressPubkey(pub)
	case 65:
		return ethcrypto.UnmarshalPubkey(pub)
	default:
		return nil, fmt.Errorf("secp256k1 public key must be 33 or 65 bytes, got %d", len(pub))
	}
}
