package txbuild

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/Klingon-tech/klingvault/internal/fee"
	klog "github.com/Klingon-tech/klingvault/internal/log"
	"github.com/Klingon-tech/klingvault/internal/wallet"
	"github.com/Klingon-tech/klingvault/pkg/chain"
	"github.com/Klingon-tech/klingvault/pkg/tx"
)

func buildUTXO(desc *chain.Descriptor, req Request) (*tx.Unsigned, error) {
	if !req.Amount.IsUint64() {
		return nil, fmt.Errorf("%w: amount out of range", ErrInvalidAmount)
	}
	amount := req.Amount.Uint64()
	if amount < desc.DustThreshold {
		return nil, fmt.Errorf("%w: %d is below the dust threshold %d", ErrInvalidAmount, amount, desc.DustThreshold)
	}

	// Only outputs locked to the origin address can be signed with its key.
	var utxos []wallet.UTXO
	for _, u := range req.State.UTXOs {
		if u.Address == "" || u.Address == req.From.Address {
			utxos = append(utxos, u)
		}
	}

	selection, feeAmt, err := selectWithFee(desc, req.Quote, utxos, amount)
	if err != nil {
		return nil, err
	}

	b := tx.NewBuilder(desc.ID).SetFrom(req.From.Address, req.From.Index)
	for _, u := range selection.Inputs {
		b.AddInput(tx.Input{PrevOut: u.Outpoint, Value: u.Value, Script: u.Script})
	}
	b.AddOutput(req.To, req.Amount)

	change := selection.Total - amount - feeAmt
	if change > desc.DustThreshold {
		b.AddChange(req.From.Address, new(big.Int).SetUint64(change))
	} else {
		// Dust change goes to the miner.
		feeAmt += change
	}
	b.SetFee(new(big.Int).SetUint64(feeAmt))

	outputs := 1
	if change > desc.DustThreshold {
		outputs = 2
	}
	klog.WithChain(klog.Build, string(desc.ID)).Debug().
		Int("inputs", len(selection.Inputs)).
		Uint64("fee", feeAmt).
		Uint64("fee_rate", tx.FeeRate(feeAmt, len(selection.Inputs), outputs)).
		Msg("Coins selected")
	return b.Build(), nil
}

// selectWithFee picks inputs covering amount plus fee. A units intent is a
// per-byte rate and the fee follows the input count; any other intent is a
// fixed total.
func selectWithFee(desc *chain.Descriptor, quote *fee.Quote, utxos []wallet.UTXO, amount uint64) (*wallet.CoinSelection, uint64, error) {
	if !quote.TotalMinor.IsUint64() {
		return nil, 0, fmt.Errorf("%w: fee out of range", fee.ErrInvalidIntent)
	}

	if quote.Intent.Kind != fee.IntentUnits {
		feeAmt := quote.TotalMinor.Uint64()
		sel, err := selectCoins(utxos, amount, feeAmt)
		return sel, feeAmt, err
	}

	rate := quote.OperationPrice.Uint64()
	feeAmt := tx.EstimateTxFee(1, 2, rate)
	sel, err := selectCoins(utxos, amount, feeAmt)
	if err != nil {
		return nil, 0, err
	}
	// Recalculate with the actual input count.
	feeAmt = tx.EstimateTxFee(len(sel.Inputs), 2, rate)
	if sel.Total < amount+feeAmt {
		sel, err = selectCoins(utxos, amount, feeAmt)
		if err != nil {
			return nil, 0, err
		}
		feeAmt = tx.EstimateTxFee(len(sel.Inputs), 2, rate)
		if sel.Total < amount+feeAmt {
			return nil, 0, fmt.Errorf("%w: selected %d, need %d", ErrInsufficientFunds, sel.Total, amount+feeAmt)
		}
	}
	return sel, feeAmt, nil
}

func selectCoins(utxos []wallet.UTXO, amount, feeAmt uint64) (*wallet.CoinSelection, error) {
	target := amount + feeAmt
	if target < amount {
		return nil, fmt.Errorf("%w: amount plus fee overflows", ErrInvalidAmount)
	}
	sel, err := wallet.SelectCoins(utxos, target)
	if errors.Is(err, wallet.ErrNoUTXOs) {
		return nil, fmt.Errorf("%w: no spendable outputs, need %d", ErrInsufficientFunds, target)
	}
	if err != nil {
		return nil, fmt.Errorf("coin selection: %w", err)
	}
	return sel, nil
}
