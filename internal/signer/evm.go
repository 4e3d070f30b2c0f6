package signer

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/Klingon-tech/klingvault/internal/wallet"
	"github.com/Klingon-tech/klingvault/pkg/tx"
)

// signEVM signs a legacy EIP-155 transaction.
func signEVM(u *tx.Unsigned, key *wallet.DerivedKey) (*tx.Signed, error) {
	p := u.EVM
	if !common.IsHexAddress(p.To) {
		return nil, fmt.Errorf("invalid destination %q", p.To)
	}
	to := common.HexToAddress(p.To)

	ecKey, err := ethcrypto.ToECDSA(key.Private)
	if err != nil {
		return nil, fmt.Errorf("load key: %w", err)
	}

	legacy := types.NewTx(&types.LegacyTx{
		Nonce:    u.Nonce,
		GasPrice: p.GasPrice,
		Gas:      p.GasLimit,
		To:       &to,
		Value:    p.Value,
		Data:     p.Data,
	})
	signer := types.NewEIP155Signer(big.NewInt(p.ChainID))
	signed, err := types.SignTx(legacy, signer, ecKey)
	if err != nil {
		return nil, err
	}

	// The recovered sender must be the origin address.
	sender, err := types.Sender(signer, signed)
	if err != nil {
		return nil, fmt.Errorf("recover sender: %w", err)
	}
	if sender != common.HexToAddress(u.From) {
		return nil, fmt.Errorf("%w: recovered %s", ErrKeyAddressMismatch, sender.Hex())
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	v, r, s := signed.RawSignatureValues()
	sig := append(append(common.LeftPadBytes(r.Bytes(), 32), common.LeftPadBytes(s.Bytes(), 32)...), v.Bytes()...)

	return &tx.Signed{
		Chain:      u.Chain,
		TxID:       signed.Hash().Hex(),
		Raw:        raw,
		Signatures: [][]byte{sig},
	}, nil
}
