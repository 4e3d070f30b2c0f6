// Package address encodes and validates addresses for every supported chain.
package address

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingvault/pkg/chain"
)

// ErrInvalidAddress is returned when an address does not match the target
// chain's format rules.
var ErrInvalidAddress = errors.New("invalid address")

func invalid(desc *chain.Descriptor, addr string, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %q is not a %s address: %v", ErrInvalidAddress, addr, desc.ID, err)
	}
	return fmt.Errorf("%w: %q is not a %s address", ErrInvalidAddress, addr, desc.ID)
}

// FromPublicKey encodes the default address of a single public key.
// secp256k1 chains take a compressed key; ed25519 chains take 32 bytes.
// Monero addresses need both keys and use MoneroAddress instead.
func FromPublicKey(desc *chain.Descriptor, pub []byte) (string, error) {
	switch desc.AddressFormat {
	case chain.FormatP2PKH, chain.FormatCashAddr, chain.FormatZcashT:
		return UTXOAddress(desc.ID, pub)
	case chain.FormatEVM:
		return EVMAddress(pub)
	case chain.FormatTron:
		return TronAddress(pub)
	case chain.FormatSolana:
		return SolanaAddress(pub)
	case chain.FormatCardano:
		return CardanoEnterpriseAddress(pub)
	case chain.FormatCosmosBech32:
		return CosmosAddress(pub)
	default:
		return "", fmt.Errorf("no single-key address encoding for %s", desc.ID)
	}
}

// Validate checks addr against the chain's address format.
func Validate(desc *chain.Descriptor, addr string) error {
	if addr == "" {
		return invalid(desc, addr, errors.New("empty"))
	}
	var err error
	switch desc.AddressFormat {
	case chain.FormatP2PKH, chain.FormatCashAddr, chain.FormatZcashT:
		_, err = PayToAddrScript(desc.ID, addr)
		if errors.Is(err, ErrInvalidAddress) {
			return err
		}
	case chain.FormatEVM:
		err = validateEVM(addr)
	case chain.FormatTron:
		_, err = DecodeTron(addr)
	case chain.FormatSolana:
		err = validateSolana(addr)
	case chain.FormatMonero:
		err = validateMonero(addr)
	case chain.FormatCardano:
		err = validateCardano(addr)
	case chain.FormatCosmosBech32:
		err = validateCosmos(addr)
	default:
		return fmt.Errorf("no validator for %s", desc.ID)
	}
	if err != nil {
		return invalid(desc, addr, err)
	}
	return nil
}
