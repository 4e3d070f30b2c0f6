package signer

import (
	"crypto/ed25519"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	"github.com/Klingon-tech/klingvault/internal/wallet"
	"github.com/Klingon-tech/klingvault/pkg/tx"
)

// signSolana signs a single system transfer.
func signSolana(u *tx.Unsigned, key *wallet.DerivedKey) (*tx.Signed, error) {
	if len(key.Private) != ed25519.SeedSize {
		return nil, fmt.Errorf("ed25519 seed must be %d bytes", ed25519.SeedSize)
	}
	priv := solana.PrivateKey(ed25519.NewKeyFromSeed(key.Private))
	defer wallet.Zero(priv)

	from := priv.PublicKey()
	if from.String() != u.From {
		return nil, fmt.Errorf("%w: derived %s", ErrKeyAddressMismatch, from)
	}
	payment, _ := u.Payment()
	to, err := solana.PublicKeyFromBase58(payment.Address)
	if err != nil {
		return nil, fmt.Errorf("recipient: %w", err)
	}
	blockhash, err := solana.HashFromBase58(u.Solana.RecentBlockhash)
	if err != nil {
		return nil, fmt.Errorf("blockhash: %w", err)
	}
	if !payment.Amount.IsUint64() {
		return nil, fmt.Errorf("amount out of range")
	}

	transfer := system.NewTransferInstruction(payment.Amount.Uint64(), from, to).Build()
	solTx, err := solana.NewTransaction([]solana.Instruction{transfer}, blockhash, solana.TransactionPayer(from))
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}
	_, err = solTx.Sign(func(k solana.PublicKey) *solana.PrivateKey {
		if k.Equals(from) {
			return &priv
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	raw, err := solTx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	sigs := make([][]byte, len(solTx.Signatures))
	for i, s := range solTx.Signatures {
		sigs[i] = append([]byte(nil), s[:]...)
	}
	return &tx.Signed{
		Chain:      u.Chain,
		TxID:       solTx.Signatures[0].String(),
		Raw:        raw,
		Signatures: sigs,
	}, nil
}
