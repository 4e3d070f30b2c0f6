package tx

import (
	"math/big"

	"github.com/Klingon-tech/klingvault/pkg/chain"
)

// Builder constructs unsigned transactions incrementally.
type Builder struct {
	tx *Unsigned
}

// NewBuilder creates a builder for a transaction on id.
func NewBuilder(id chain.ID) *Builder {
	return &Builder{
		tx: &Unsigned{Chain: id, Fee: new(big.Int)},
	}
}

// SetFrom sets the origin address and its derivation index.
func (b *Builder) SetFrom(addr string, index uint32) *Builder {
	b.tx.From = addr
	b.tx.FromIndex = index
	return b
}

// AddInput adds an input spending a previous output.
func (b *Builder) AddInput(in Input) *Builder {
	b.tx.Inputs = append(b.tx.Inputs, in)
	return b
}

// AddOutput adds a payment output.
func (b *Builder) AddOutput(addr string, amount *big.Int) *Builder {
	b.tx.Outputs = append(b.tx.Outputs, Output{Address: addr, Amount: new(big.Int).Set(amount)})
	return b
}

// AddChange adds a change output back to the origin.
func (b *Builder) AddChange(addr string, amount *big.Int) *Builder {
	b.tx.Outputs = append(b.tx.Outputs, Output{Address: addr, Amount: new(big.Int).Set(amount), Change: true})
	return b
}

// SetFee sets the fee in minor units of the fee asset.
func (b *Builder) SetFee(fee *big.Int) *Builder {
	b.tx.Fee = new(big.Int).Set(fee)
	return b
}

// SetNonce sets the account nonce.
func (b *Builder) SetNonce(nonce uint64) *Builder {
	b.tx.Nonce = nonce
	return b
}

// SetEVM attaches EVM parameters.
func (b *Builder) SetEVM(p EVMParams) *Builder {
	b.tx.EVM = &p
	return b
}

// SetTron attaches Tron parameters.
func (b *Builder) SetTron(p TronParams) *Builder {
	b.tx.Tron = &p
	return b
}

// SetSolana attaches Solana parameters.
func (b *Builder) SetSolana(p SolanaParams) *Builder {
	b.tx.Solana = &p
	return b
}

// Build returns the constructed transaction.
// Does NOT validate; call Validate separately.
func (b *Builder) Build() *Unsigned {
	return b.tx
}
