package signer

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/dchest/blake2b"

	"github.com/Klingon-tech/klingvault/internal/wallet"
	"github.com/Klingon-tech/klingvault/pkg/crypto"
	"github.com/Klingon-tech/klingvault/pkg/tx"
)

// Sapling (v4) transparent-only transaction constants.
const (
	zcashVersion        uint32 = 0x80000004 // v4 | fOverwintered
	zcashVersionGroupID uint32 = 0x892F2085
	zcashSequence       uint32 = 0xffffffff
	zcashSigHashAll     uint32 = 1
)

// zcashTx is a transparent-only v4 transaction.
type zcashTx struct {
	inputs     []tx.Input
	outScripts [][]byte
	outValues  []int64
	sigScripts [][]byte
}

func putUint32(w *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func putUint64(w *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.Write(b[:])
}

func putVarBytes(w *bytes.Buffer, b []byte) {
	// bytes.Buffer writes never fail.
	_ = wire.WriteVarBytes(w, 0, b)
}

func putOutpoint(w *bytes.Buffer, in tx.Input) {
	w.Write(in.PrevOut.TxID[:])
	putUint32(w, in.PrevOut.Index)
}

func (z *zcashTx) serialize() []byte {
	var buf bytes.Buffer
	putUint32(&buf, zcashVersion)
	putUint32(&buf, zcashVersionGroupID)

	_ = wire.WriteVarInt(&buf, 0, uint64(len(z.inputs)))
	for i, in := range z.inputs {
		putOutpoint(&buf, in)
		putVarBytes(&buf, z.sigScripts[i])
		putUint32(&buf, zcashSequence)
	}

	_ = wire.WriteVarInt(&buf, 0, uint64(len(z.outScripts)))
	for i, script := range z.outScripts {
		putUint64(&buf, uint64(z.outValues[i]))
		putVarBytes(&buf, script)
	}

	putUint32(&buf, 0) // lock time
	putUint32(&buf, 0) // expiry height
	putUint64(&buf, 0) // value balance
	buf.WriteByte(0)   // shielded spends
	buf.WriteByte(0)   // shielded outputs
	buf.WriteByte(0)   // joinsplits
	return buf.Bytes()
}

// zcashBlake2b is BLAKE2b-256 with a 16-byte personalization.
func zcashBlake2b(personal []byte, data []byte) []byte {
	h, err := blake2b.New(&blake2b.Config{Size: 32, Person: personal})
	if err != nil {
		panic(err) // static configuration
	}
	h.Write(data)
	return h.Sum(nil)
}

func blake2bPersonal(personal string, data []byte) []byte {
	var p [16]byte
	copy(p[:], personal)
	return zcashBlake2b(p[:], data)
}

// sigHash computes the ZIP-243 SIGHASH_ALL digest for input idx.
func (z *zcashTx) sigHash(idx int, branchID uint32) []byte {
	var prevouts, sequences, outputs bytes.Buffer
	for _, in := range z.inputs {
		putOutpoint(&prevouts, in)
		putUint32(&sequences, zcashSequence)
	}
	for i, script := range z.outScripts {
		putUint64(&outputs, uint64(z.outValues[i]))
		putVarBytes(&outputs, script)
	}

	var pre bytes.Buffer
	putUint32(&pre, zcashVersion)
	putUint32(&pre, zcashVersionGroupID)
	pre.Write(blake2bPersonal("ZcashPrevoutHash", prevouts.Bytes()))
	pre.Write(blake2bPersonal("ZcashSequencHash", sequences.Bytes()))
	pre.Write(blake2bPersonal("ZcashOutputsHash", outputs.Bytes()))
	pre.Write(make([]byte, 32)) // joinsplits
	pre.Write(make([]byte, 32)) // shielded spends
	pre.Write(make([]byte, 32)) // shielded outputs
	putUint32(&pre, 0)          // lock time
	putUint32(&pre, 0)          // expiry height
	putUint64(&pre, 0)          // value balance
	putUint32(&pre, zcashSigHashAll)

	in := z.inputs[idx]
	putOutpoint(&pre, in)
	putVarBytes(&pre, in.Script)
	putUint64(&pre, in.Value)
	putUint32(&pre, zcashSequence)

	var personal [16]byte
	copy(personal[:], "ZcashSigHash")
	binary.LittleEndian.PutUint32(personal[12:], branchID)
	return zcashBlake2b(personal[:], pre.Bytes())
}

func signZcash(u *tx.Unsigned, key *wallet.DerivedKey, branchID uint32) (*tx.Signed, error) {
	scripts, values, err := outputScripts(u)
	if err != nil {
		return nil, err
	}
	z := &zcashTx{
		inputs:     u.Inputs,
		outScripts: scripts,
		outValues:  values,
		sigScripts: make([][]byte, len(u.Inputs)),
	}

	priv, err := crypto.PrivateKeyFromBytes(key.Private)
	if err != nil {
		return nil, err
	}
	defer priv.Zero()
	pub := priv.PublicKey()

	for i := range z.inputs {
		hash := z.sigHash(i, branchID)
		der, err := priv.Sign(hash)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		if !crypto.VerifySignature(hash, der, pub) {
			return nil, fmt.Errorf("input %d: signature does not verify", i)
		}
		sigScript, err := txscript.NewScriptBuilder().
			AddData(append(der, byte(zcashSigHashAll))).
			AddData(pub).
			Script()
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		z.sigScripts[i] = sigScript
	}

	raw := z.serialize()
	return &tx.Signed{
		Chain:      u.Chain,
		TxID:       crypto.DoubleSHA256(raw).Reversed().String(),
		Raw:        raw,
		Signatures: z.sigScripts,
	}, nil
}
