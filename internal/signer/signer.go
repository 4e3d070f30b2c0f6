// Package signer turns unsigned transactions into signed, serialized ones.
// It is pure: keys come from the caller and nothing is persisted.
package signer

import (
	"errors"
	"fmt"

	klog "github.com/Klingon-tech/klingvault/internal/log"
	"github.com/Klingon-tech/klingvault/internal/wallet"
	"github.com/Klingon-tech/klingvault/pkg/chain"
	"github.com/Klingon-tech/klingvault/pkg/tx"
)

// Signer errors.
var (
	ErrKeyChainMismatch   = errors.New("signing key belongs to another chain")
	ErrKeyAddressMismatch = errors.New("signing key does not own the origin address")
	ErrUnsupportedScheme  = errors.New("signature scheme not supported")
)

// ZcashNU61BranchID is the mainnet consensus branch id (NU6.1) mixed into
// ZIP-243 sighashes.
const ZcashNU61BranchID uint32 = 0x4DEC4DF0

type options struct {
	zcashBranchID uint32
}

// Option customizes signing.
type Option func(*options)

// WithZcashBranchID overrides the Zcash consensus branch id after a network
// upgrade.
func WithZcashBranchID(id uint32) Option {
	return func(o *options) {
		if id != 0 {
			o.zcashBranchID = id
		}
	}
}

// Sign signs u with key, which must be the derived key of u.From.
func Sign(u *tx.Unsigned, key *wallet.DerivedKey, opts ...Option) (*tx.Signed, error) {
	o := options{zcashBranchID: ZcashNU61BranchID}
	for _, opt := range opts {
		opt(&o)
	}

	if key == nil || key.Chain != u.Chain {
		return nil, ErrKeyChainMismatch
	}
	desc, err := chain.Lookup(string(u.Chain))
	if err != nil {
		return nil, err
	}
	if desc.Family == chain.FamilyPrivacy {
		return nil, fmt.Errorf("%w: %s ring signatures", ErrUnsupportedScheme, desc.ID)
	}
	if key.Curve != desc.Curve {
		return nil, fmt.Errorf("%w: %s key for %s", ErrKeyChainMismatch, key.Curve, desc.ID)
	}
	if key.Address != u.From {
		return nil, fmt.Errorf("%w: key %s, origin %s", ErrKeyAddressMismatch, key.Address, u.From)
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}

	var signed *tx.Signed
	switch desc.AddressFormat {
	case chain.FormatP2PKH:
		signed, err = signLegacy(u, key)
	case chain.FormatCashAddr:
		signed, err = signBCH(u, key)
	case chain.FormatZcashT:
		signed, err = signZcash(u, key, o.zcashBranchID)
	case chain.FormatEVM:
		signed, err = signEVM(u, key)
	case chain.FormatTron:
		signed, err = signTron(u, key)
	case chain.FormatSolana:
		signed, err = signSolana(u, key)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, desc.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("sign %s: %w", desc.ID, err)
	}

	klog.WithChain(klog.Sign, string(desc.ID)).Info().
		Str("txid", signed.TxID).
		Int("size", len(signed.Raw)).
		Msg("Transaction signed")
	return signed, nil
}
