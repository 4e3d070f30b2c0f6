package address

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// EVMAddress returns the EIP-55 checksummed address of a secp256k1 public key
// (compressed or uncompressed).
func EVMAddress(pub []byte) (string, error) {
	key, err := parseSecpPub(pub)
	if err != nil {
		return "", err
	}
	return ethcrypto.PubkeyToAddress(*key).Hex(), nil
}

func validateEVM(addr string) error {
	if !common.IsHexAddress(addr) {
		return errors.New("not a 20-byte hex address")
	}
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return errors.New("missing 0x prefix")
	}
	body := addr[2:]
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return nil
	}
	// Mixed case must match the EIP-55 checksum.
	if common.HexToAddress(addr).Hex() != addr {
		return fmt.Errorf("bad EIP-55 checksum")
	}
	return nil
}

// ParseEVM validates addr and returns it as a go-ethereum address.
func ParseEVM(addr string) (common.Address, error) {
	if err := validateEVM(addr); err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return common.HexToAddress(addr), nil
}
