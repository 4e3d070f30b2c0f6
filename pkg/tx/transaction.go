// Package tx defines the chain-agnostic unsigned and signed transaction
// types passed between the builder, signer and broadcaster.
package tx

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"math/big"

	"github.com/Klingon-tech/klingvault/pkg/chain"
	"github.com/Klingon-tech/klingvault/pkg/crypto"
	"github.com/Klingon-tech/klingvault/pkg/types"
)

// Unsigned is a fully specified transaction that has not been signed yet.
// UTXO chains fill Inputs; account chains fill Nonce and their family
// parameters.
type Unsigned struct {
	Chain     chain.ID `json:"chain"`
	From      string   `json:"from"`
	FromIndex uint32   `json:"from_index"`
	Inputs    []Input  `json:"inputs,omitempty"`
	Outputs   []Output `json:"outputs"`
	Nonce     uint64   `json:"nonce,omitempty"`

	// Fee in minor units of the chain's fee asset. For account chains it is
	// the maximum the transaction may consume.
	Fee *big.Int `json:"fee"`

	EVM    *EVMParams    `json:"evm,omitempty"`
	Tron   *TronParams   `json:"tron,omitempty"`
	Solana *SolanaParams `json:"solana,omitempty"`
}

// Input references a previous output being spent.
type Input struct {
	PrevOut types.Outpoint `json:"prevout"`
	Value   uint64         `json:"value"`
	Script  []byte         `json:"script"`
}

type inputJSON struct {
	PrevOut types.Outpoint `json:"prevout"`
	Value   uint64         `json:"value"`
	Script  string         `json:"script"`
}

// MarshalJSON encodes the input with a hex-encoded script.
func (in Input) MarshalJSON() ([]byte, error) {
	return json.Marshal(inputJSON{
		PrevOut: in.PrevOut,
		Value:   in.Value,
		Script:  hex.EncodeToString(in.Script),
	})
}

// UnmarshalJSON decodes an input with a hex-encoded script.
func (in *Input) UnmarshalJSON(data []byte) error {
	var j inputJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	script, err := hex.DecodeString(j.Script)
	if err != nil {
		return fmt.Errorf("input script: %w", err)
	}
	in.PrevOut = j.PrevOut
	in.Value = j.Value
	in.Script = script
	return nil
}

// Output pays Amount minor units to Address.
type Output struct {
	Address string   `json:"address"`
	Amount  *big.Int `json:"amount"`
	Change  bool     `json:"change,omitempty"`
}

// EVMParams carries the fields of a legacy EIP-155 transaction. For token
// transfers To is the contract, Value is zero and Data holds the call.
type EVMParams struct {
	ChainID  int64    `json:"chain_id"`
	GasPrice *big.Int `json:"gas_price"`
	GasLimit uint64   `json:"gas_limit"`
	To       string   `json:"to"`
	Value    *big.Int `json:"value"`
	Data     []byte   `json:"data,omitempty"`
}

// TronParams carries the reference block and contract call of a TRC20
// transfer.
type TronParams struct {
	RefBlockBytes []byte `json:"ref_block_bytes"`
	RefBlockHash  []byte `json:"ref_block_hash"`
	Timestamp     int64  `json:"timestamp"`
	Expiration    int64  `json:"expiration"`
	FeeLimit      int64  `json:"fee_limit"`
	Contract      string `json:"contract"`
	Data          []byte `json:"data"`
}

// SolanaParams carries the recent blockhash a transfer is bound to.
type SolanaParams struct {
	RecentBlockhash string `json:"recent_blockhash"`
}

// TotalInput returns the sum of input values.
func (u *Unsigned) TotalInput() (uint64, error) {
	var total uint64
	for _, in := range u.Inputs {
		if total > math.MaxUint64-in.Value {
			return 0, ErrInputOverflow
		}
		total += in.Value
	}
	return total, nil
}

// TotalOutput returns the sum of output amounts.
func (u *Unsigned) TotalOutput() *big.Int {
	total := new(big.Int)
	for _, out := range u.Outputs {
		if out.Amount != nil {
			total.Add(total, out.Amount)
		}
	}
	return total
}

// Payment returns the first non-change output.
func (u *Unsigned) Payment() (Output, bool) {
	for _, out := range u.Outputs {
		if !out.Change {
			return out, true
		}
	}
	return Output{}, false
}

// Signed is a serialized, signed transaction ready for broadcast.
type Signed struct {
	Chain      chain.ID `json:"chain"`
	TxID       string   `json:"txid"`
	Raw        []byte   `json:"raw"`
	Signatures [][]byte `json:"signatures"`
}

// RawHex returns the raw transaction as lowercase hex.
func (s *Signed) RawHex() string {
	return hex.EncodeToString(s.Raw)
}

// Fingerprint identifies the raw bytes in the history journal.
func (s *Signed) Fingerprint() types.Hash {
	return crypto.Fingerprint(s.Raw)
}
