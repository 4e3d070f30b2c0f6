package tx

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/Klingon-tech/klingvault/pkg/chain"
	"github.com/Klingon-tech/klingvault/pkg/types"
)

// Limits on transaction shape.
const (
	MaxInputs  = 500
	MaxOutputs = 2
)

// Validation errors.
var (
	ErrUnknownChain      = errors.New("unknown chain")
	ErrNoInputs          = errors.New("transaction has no inputs")
	ErrNoOutputs         = errors.New("transaction has no outputs")
	ErrDuplicateInput    = errors.New("duplicate input")
	ErrInputOverflow     = errors.New("input values overflow")
	ErrNonPositiveOutput = errors.New("output amount is not positive")
	ErrMissingFee        = errors.New("fee is missing or negative")
	ErrFeeMismatch       = errors.New("inputs do not equal outputs plus fee")
	ErrTooManyInputs     = errors.New("too many inputs")
	ErrTooManyOutputs    = errors.New("too many outputs")
	ErrMissingParams     = errors.New("missing chain parameters")
	ErrMissingFrom       = errors.New("missing origin address")
)

// Validate checks transaction structure for its chain family.
// It does not check balances or address formats.
func (u *Unsigned) Validate() error {
	desc, err := chain.Lookup(string(u.Chain))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownChain, u.Chain)
	}
	if u.From == "" {
		return ErrMissingFrom
	}
	if len(u.Outputs) == 0 {
		return ErrNoOutputs
	}
	if len(u.Outputs) > MaxOutputs {
		return fmt.Errorf("%w: %d outputs, max %d", ErrTooManyOutputs, len(u.Outputs), MaxOutputs)
	}
	for i, out := range u.Outputs {
		if out.Amount == nil || out.Amount.Sign() <= 0 {
			return fmt.Errorf("output %d: %w", i, ErrNonPositiveOutput)
		}
	}
	if u.Fee == nil || u.Fee.Sign() < 0 {
		return ErrMissingFee
	}

	switch desc.Family {
	case chain.FamilyUTXO:
		return u.validateUTXO()
	default:
		return u.validateAccount(desc)
	}
}

func (u *Unsigned) validateUTXO() error {
	if len(u.Inputs) == 0 {
		return ErrNoInputs
	}
	if len(u.Inputs) > MaxInputs {
		return fmt.Errorf("%w: %d inputs, max %d", ErrTooManyInputs, len(u.Inputs), MaxInputs)
	}
	seen := make(map[types.Outpoint]bool, len(u.Inputs))
	for i, in := range u.Inputs {
		if seen[in.PrevOut] {
			return fmt.Errorf("input %d: %w", i, ErrDuplicateInput)
		}
		seen[in.PrevOut] = true
	}

	in, err := u.TotalInput()
	if err != nil {
		return err
	}
	want := new(big.Int).Add(u.TotalOutput(), u.Fee)
	if new(big.Int).SetUint64(in).Cmp(want) != 0 {
		return fmt.Errorf("%w: inputs %d, outputs+fee %s", ErrFeeMismatch, in, want)
	}
	return nil
}

func (u *Unsigned) validateAccount(desc *chain.Descriptor) error {
	if len(u.Inputs) != 0 {
		return fmt.Errorf("%w: account transactions have no inputs", ErrTooManyInputs)
	}
	if len(u.Outputs) != 1 || u.Outputs[0].Change {
		return fmt.Errorf("%w: account transactions pay exactly one recipient", ErrTooManyOutputs)
	}

	switch desc.AddressFormat {
	case chain.FormatEVM:
		if u.EVM == nil || u.EVM.GasPrice == nil || u.EVM.GasLimit == 0 || u.EVM.Value == nil {
			return fmt.Errorf("%w: evm", ErrMissingParams)
		}
	case chain.FormatTron:
		if u.Tron == nil || len(u.Tron.RefBlockBytes) != 2 || len(u.Tron.RefBlockHash) != 8 || len(u.Tron.Data) == 0 {
			return fmt.Errorf("%w: tron", ErrMissingParams)
		}
	case chain.FormatSolana:
		if u.Solana == nil || u.Solana.RecentBlockhash == "" {
			return fmt.Errorf("%w: solana", ErrMissingParams)
		}
	}
	return nil
}
