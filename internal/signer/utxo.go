package signer

import (
	"bytes"
	"fmt"
	"math"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/Klingon-tech/klingvault/internal/address"
	"github.com/Klingon-tech/klingvault/internal/wallet"
	"github.com/Klingon-tech/klingvault/pkg/tx"
)

// legacyTxVersion is accepted by every base58 P2PKH chain we sign for.
const legacyTxVersion = 1

// outputScripts resolves the locking script and value of each output.
func outputScripts(u *tx.Unsigned) ([][]byte, []int64, error) {
	scripts := make([][]byte, len(u.Outputs))
	values := make([]int64, len(u.Outputs))
	for i, out := range u.Outputs {
		if !out.Amount.IsInt64() {
			return nil, nil, fmt.Errorf("output %d: amount out of range", i)
		}
		script, err := address.PayToAddrScript(u.Chain, out.Address)
		if err != nil {
			return nil, nil, fmt.Errorf("output %d: %w", i, err)
		}
		scripts[i] = script
		values[i] = out.Amount.Int64()
	}
	return scripts, values, nil
}

// signLegacy signs BTC, LTC, DOGE and DASH spends with SIGHASH_ALL.
func signLegacy(u *tx.Unsigned, key *wallet.DerivedKey) (*tx.Signed, error) {
	scripts, values, err := outputScripts(u)
	if err != nil {
		return nil, err
	}

	msgTx := wire.NewMsgTx(legacyTxVersion)
	for _, in := range u.Inputs {
		prev := wire.NewOutPoint((*chainhash.Hash)(&in.PrevOut.TxID), in.PrevOut.Index)
		msgTx.AddTxIn(wire.NewTxIn(prev, nil, nil))
	}
	for i := range scripts {
		msgTx.AddTxOut(wire.NewTxOut(values[i], scripts[i]))
	}

	priv, _ := btcec.PrivKeyFromBytes(key.Private)
	defer priv.Zero()

	sigs := make([][]byte, len(u.Inputs))
	for i, in := range u.Inputs {
		if in.Value > math.MaxInt64 {
			return nil, fmt.Errorf("input %d: value out of range", i)
		}
		sigScript, err := txscript.SignatureScript(msgTx, i, in.Script, txscript.SigHashAll, priv, true)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		msgTx.TxIn[i].SignatureScript = sigScript
		sigs[i] = sigScript
	}

	var buf bytes.Buffer
	if err := msgTx.Serialize(&buf); err != nil {
		return nil, fmt.Errorf("serialize: %w", err)
	}
	return &tx.Signed{
		Chain:      u.Chain,
		TxID:       msgTx.TxHash().String(),
		Raw:        buf.Bytes(),
		Signatures: sigs,
	}, nil
}
