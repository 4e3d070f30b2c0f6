package signer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/fbsobreira/gotron-sdk/pkg/proto/core"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"

	"github.com/Klingon-tech/klingvault/internal/address"
	"github.com/Klingon-tech/klingvault/internal/wallet"
	"github.com/Klingon-tech/klingvault/pkg/tx"
)

// TronTransaction assembles the protobuf transaction of a TRC20 call.
func TronTransaction(u *tx.Unsigned) (*core.Transaction, error) {
	p := u.Tron
	owner, err := address.DecodeTron(u.From)
	if err != nil {
		return nil, err
	}
	contract, err := address.DecodeTron(p.Contract)
	if err != nil {
		return nil, err
	}

	param, err := anypb.New(&core.TriggerSmartContract{
		OwnerAddress:    owner,
		ContractAddress: contract,
		Data:            p.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("wrap contract: %w", err)
	}

	return &core.Transaction{
		RawData: &core.TransactionRaw{
			RefBlockBytes: p.RefBlockBytes,
			RefBlockHash:  p.RefBlockHash,
			Expiration:    p.Expiration,
			Timestamp:     p.Timestamp,
			FeeLimit:      p.FeeLimit,
			Contract: []*core.Transaction_Contract{{
				Type:      core.Transaction_Contract_TriggerSmartContract,
				Parameter: param,
			}},
		},
	}, nil
}

// signTron signs sha256(raw_data) with a recoverable signature. The txid
// is the same digest.
func signTron(u *tx.Unsigned, key *wallet.DerivedKey) (*tx.Signed, error) {
	t, err := TronTransaction(u)
	if err != nil {
		return nil, err
	}
	rawData, err := proto.Marshal(t.RawData)
	if err != nil {
		return nil, fmt.Errorf("marshal raw data: %w", err)
	}
	hash := sha256.Sum256(rawData)

	ecKey, err := ethcrypto.ToECDSA(key.Private)
	if err != nil {
		return nil, fmt.Errorf("load key: %w", err)
	}
	sig, err := ethcrypto.Sign(hash[:], ecKey)
	if err != nil {
		return nil, err
	}
	t.Signature = [][]byte{sig}

	raw, err := proto.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal transaction: %w", err)
	}
	return &tx.Signed{
		Chain:      u.Chain,
		TxID:       hex.EncodeToString(hash[:]),
		Raw:        raw,
		Signatures: t.Signature,
	}, nil
}
