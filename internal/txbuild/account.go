package txbuild

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Klingon-tech/klingvault/internal/address"
	"github.com/Klingon-tech/klingvault/internal/network"
	"github.com/Klingon-tech/klingvault/pkg/chain"
	"github.com/Klingon-tech/klingvault/pkg/tx"
)

// buildEVM assembles a legacy transaction. The gas price is the quote's
// per-operation price and the nonce comes from the fresh account state.
func buildEVM(desc *chain.Descriptor, req Request) (*tx.Unsigned, error) {
	gasLimit := desc.BaseOperationCost
	gasPrice := req.Quote.OperationPrice
	maxFee := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gasLimit))

	params := tx.EVMParams{
		ChainID:  desc.EVMChainID,
		GasPrice: gasPrice,
		GasLimit: gasLimit,
	}

	native := balanceOf(req.State.Balance)
	if desc.IsToken() {
		to, err := address.ParseEVM(req.To)
		if err != nil {
			return nil, err
		}
		data, err := network.ParsedERC20.Pack("transfer", to, req.Amount)
		if err != nil {
			return nil, fmt.Errorf("pack transfer: %w", err)
		}
		if tokens := balanceOf(req.State.TokenBalance); tokens.Cmp(req.Amount) < 0 {
			return nil, needFunds("token", tokens, req.Amount)
		}
		if native.Cmp(maxFee) < 0 {
			return nil, needFunds(desc.FeeAsset, native, maxFee)
		}
		params.To = desc.Token.Contract
		params.Value = new(big.Int)
		params.Data = data
	} else {
		need := new(big.Int).Add(req.Amount, maxFee)
		if native.Cmp(need) < 0 {
			return nil, needFunds(desc.FeeAsset, native, need)
		}
		params.To = req.To
		params.Value = req.Amount
	}

	return tx.NewBuilder(desc.ID).
		SetFrom(req.From.Address, req.From.Index).
		AddOutput(req.To, req.Amount).
		SetNonce(req.State.Nonce).
		SetFee(maxFee).
		SetEVM(params).
		Build(), nil
}

// buildTron assembles a TRC20 transfer call. The quote's total becomes the
// fee limit.
func buildTron(desc *chain.Descriptor, req Request) (*tx.Unsigned, error) {
	if !desc.IsToken() {
		return nil, fmt.Errorf("%w: native TRX transfers", ErrUnsupportedChain)
	}
	block := req.State.TronBlock
	if block == nil || len(block.ID) != 32 {
		return nil, fmt.Errorf("%w: tron reference block", ErrMissingState)
	}
	if !req.Quote.TotalMinor.IsInt64() {
		return nil, fmt.Errorf("%w: fee limit out of range", ErrInvalidAmount)
	}
	feeLimit := req.Quote.TotalMinor

	to, err := address.DecodeTron(req.To)
	if err != nil {
		return nil, err
	}
	data, err := network.ParsedERC20.Pack("transfer", common.BytesToAddress(to[1:]), req.Amount)
	if err != nil {
		return nil, fmt.Errorf("pack transfer: %w", err)
	}

	if tokens := balanceOf(req.State.TokenBalance); tokens.Cmp(req.Amount) < 0 {
		return nil, needFunds("token", tokens, req.Amount)
	}
	if trx := balanceOf(req.State.Balance); trx.Cmp(feeLimit) < 0 {
		return nil, needFunds(desc.FeeAsset, trx, feeLimit)
	}

	return tx.NewBuilder(desc.ID).
		SetFrom(req.From.Address, req.From.Index).
		AddOutput(req.To, req.Amount).
		SetFee(feeLimit).
		SetTron(tronParams(block, desc.Token.Contract, feeLimit.Int64(), data)).
		Build(), nil
}

func tronParams(block *network.TronBlock, contract string, feeLimit int64, data []byte) tx.TronParams {
	var num [8]byte
	binary.BigEndian.PutUint64(num[:], uint64(block.Number))
	return tx.TronParams{
		RefBlockBytes: append([]byte(nil), num[6:8]...),
		RefBlockHash:  append([]byte(nil), block.ID[8:16]...),
		Timestamp:     block.Timestamp,
		Expiration:    block.Timestamp + tronExpiration,
		FeeLimit:      feeLimit,
		Contract:      contract,
		Data:          data,
	}
}

// buildSolana assembles a system transfer. The network charges a fixed
// signature fee; the quote must cover it.
func buildSolana(desc *chain.Descriptor, req Request) (*tx.Unsigned, error) {
	if req.State.RecentBlockhash == "" {
		return nil, fmt.Errorf("%w: recent blockhash", ErrMissingState)
	}
	sigFee := big.NewInt(SolanaSignatureFee)
	if req.Quote.TotalMinor.Cmp(sigFee) < 0 {
		return nil, fmt.Errorf("%w: quote %s lamports, network charges %d", ErrFeeTooLow, req.Quote.TotalMinor, SolanaSignatureFee)
	}
	need := new(big.Int).Add(req.Amount, sigFee)
	if bal := balanceOf(req.State.Balance); bal.Cmp(need) < 0 {
		return nil, needFunds(desc.FeeAsset, bal, need)
	}

	return tx.NewBuilder(desc.ID).
		SetFrom(req.From.Address, req.From.Index).
		AddOutput(req.To, req.Amount).
		SetFee(sigFee).
		SetSolana(tx.SolanaParams{RecentBlockhash: req.State.RecentBlockhash}).
		Build(), nil
}
