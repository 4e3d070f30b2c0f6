package signer

import (
	"bytes"
	"fmt"
	"math"

	"github.com/gcash/bchd/bchec"
	"github.com/gcash/bchd/chaincfg/chainhash"
	"github.com/gcash/bchd/txscript"
	"github.com/gcash/bchd/wire"

	"github.com/Klingon-tech/klingvault/internal/wallet"
	"github.com/Klingon-tech/klingvault/pkg/tx"
)

// bchHashType commits to input amounts (replay protected).
const bchHashType = txscript.SigHashAll | txscript.SigHashForkID

func signBCH(u *tx.Unsigned, key *wallet.DerivedKey) (*tx.Signed, error) {
	scripts, values, err := outputScripts(u)
	if err != nil {
		return nil, err
	}

	msgTx := wire.NewMsgTx(2)
	for _, in := range u.Inputs {
		prev := wire.NewOutPoint((*chainhash.Hash)(&in.PrevOut.TxID), in.PrevOut.Index)
		msgTx.AddTxIn(wire.NewTxIn(prev, nil))
	}
	for i := range scripts {
		msgTx.AddTxOut(wire.NewTxOut(values[i], scripts[i]))
	}

	priv, _ := bchec.PrivKeyFromBytes(bchec.S256(), key.Private)

	sigs := make([][]byte, len(u.Inputs))
	for i, in := range u.Inputs {
		if in.Value > math.MaxInt64 {
			return nil, fmt.Errorf("input %d: value out of range", i)
		}
		sigScript, err := txscript.SignatureScript(msgTx, i, int64(in.Value), in.Script, bchHashType, priv, true)
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
