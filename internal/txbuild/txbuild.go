// Package txbuild turns a send request, a fee quote and fresh account state
// into an unsigned transaction.
package txbuild

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/Klingon-tech/klingvault/internal/address"
	"github.com/Klingon-tech/klingvault/internal/fee"
	klog "github.com/Klingon-tech/klingvault/internal/log"
	"github.com/Klingon-tech/klingvault/internal/network"
	"github.com/Klingon-tech/klingvault/internal/wallet"
	"github.com/Klingon-tech/klingvault/pkg/chain"
	"github.com/Klingon-tech/klingvault/pkg/tx"
)

// Builder errors.
var (
	ErrInsufficientFunds = wallet.ErrInsufficientFunds
	ErrInvalidAddress    = address.ErrInvalidAddress
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrUnsupportedChain  = errors.New("chain does not support sending")
	ErrQuoteMismatch     = errors.New("fee quote does not match chain")
	ErrFeeTooLow         = errors.New("fee below network minimum")
	ErrMissingState      = errors.New("missing account state")
)

// SolanaSignatureFee is the network fee of a single-signature transfer.
const SolanaSignatureFee = 5000

// tronExpiration is how long a Tron transaction stays valid after its
// reference block, in milliseconds.
const tronExpiration = 60_000

// Request is one send from an owned address.
type Request struct {
	From   wallet.DerivedAddress
	To     string
	Amount *big.Int // minor units of the transferred asset
	Quote  *fee.Quote
	State  *network.AccountState
}

// ParseAmount converts a decimal amount of the chain's asset into minor
// units. The amount must be positive and carry no more than the chain's
// decimals.
func ParseAmount(desc *chain.Descriptor, s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return AmountFromDecimal(desc, d)
}

// AmountFromDecimal is ParseAmount for an already parsed decimal.
func AmountFromDecimal(desc *chain.Descriptor, d decimal.Decimal) (*big.Int, error) {
	if !d.IsPositive() {
		return nil, fmt.Errorf("%w: %s must be positive", ErrInvalidAmount, d)
	}
	minor := d.Shift(desc.Decimals)
	if !minor.Equal(minor.Truncate(0)) {
		return nil, fmt.Errorf("%w: %s has more than %d decimals", ErrInvalidAmount, d, desc.Decimals)
	}
	return minor.BigInt(), nil
}

// FormatAmount renders minor units as a decimal of the chain's asset.
func FormatAmount(desc *chain.Descriptor, minor *big.Int) string {
	if minor == nil {
		return "0"
	}
	return decimal.NewFromBigInt(minor, -desc.Decimals).String()
}

// Build validates req against desc and assembles the unsigned transaction.
func Build(desc *chain.Descriptor, req Request) (*tx.Unsigned, error) {
	if !desc.CanSend {
		return nil, fmt.Errorf("%w: %s is receive-only", ErrUnsupportedChain, desc.ID)
	}
	if req.Quote == nil || req.Quote.Chain != desc.ID {
		return nil, fmt.Errorf("%w: %s", ErrQuoteMismatch, desc.ID)
	}
	if req.State == nil {
		return nil, ErrMissingState
	}
	if req.From.Address == "" {
		return nil, fmt.Errorf("%w: missing origin", ErrInvalidAddress)
	}
	if err := address.Validate(desc, req.To); err != nil {
		return nil, err
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}

	var (
		unsigned *tx.Unsigned
		err      error
	)
	switch desc.AddressFormat {
	case chain.FormatP2PKH, chain.FormatZcashT, chain.FormatCashAddr:
		unsigned, err = buildUTXO(desc, req)
	case chain.FormatEVM:
		unsigned, err = buildEVM(desc, req)
	case chain.FormatTron:
		unsigned, err = buildTron(desc, req)
	case chain.FormatSolana:
		unsigned, err = buildSolana(desc, req)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedChain, desc.ID)
	}
	if err != nil {
		return nil, err
	}
	if err := unsigned.Validate(); err != nil {
		return nil, fmt.Errorf("build %s: %w", desc.ID, err)
	}

	klog.WithChain(klog.Build, string(desc.ID)).Info().
		Str("from", req.From.Address).
		Str("to", req.To).
		Str("amount", req.Amount.String()).
		Str("fee", unsigned.Fee.String()).
		Msg("Transaction built")
	return unsigned, nil
}

// needFunds formats an insufficient-funds error.
func needFunds(what string, have, need *big.Int) error {
	return fmt.Errorf("%w: %s balance %s, need %s", ErrInsufficientFunds, what, have, need)
}

func balanceOf(b *big.Int) *big.Int {
	if b == nil {
		return new(big.Int)
	}
	return b
}
