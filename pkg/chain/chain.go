// Package chain defines the immutable per-chain descriptors used by every
// other component: address format, derivation scheme, fee unit and decimals.
package chain

import (
	"fmt"
	"strings"
)

// ID identifies a supported chain or token rail.
type ID string

const (
	BTC       ID = "BTC"
	ETH       ID = "ETH"
	BNB       ID = "BNB"
	POL       ID = "POL"
	LTC       ID = "LTC"
	DOGE      ID = "DOGE"
	BCH       ID = "BCH"
	DASH      ID = "DASH"
	ZEC       ID = "ZEC"
	ADA       ID = "ADA"
	ATOM      ID = "ATOM"
	SOL       ID = "SOL"
	XMR       ID = "XMR"
	USDTERC20 ID = "USDT-ERC20"
	USDTTRC20 ID = "USDT-TRC20"
)

// Slug returns the lowercase config key form of the ID ("usdt_erc20").
func (id ID) Slug() string {
	return strings.ReplaceAll(strings.ToLower(string(id)), "-", "_")
}

// Family selects the backend variant that handles a chain.
type Family int

const (
	FamilyUTXO Family = iota
	FamilyAccount
	FamilyEd25519
	FamilyPrivacy
)

func (f Family) String() string {
	switch f {
	case FamilyUTXO:
		return "utxo"
	case FamilyAccount:
		return "account"
	case FamilyEd25519:
		return "ed25519-direct"
	case FamilyPrivacy:
		return "privacy-keypair"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

// Curve is the signature curve of a chain's keys.
type Curve string

const (
	Secp256k1 Curve = "secp256k1"
	Ed25519   Curve = "ed25519"
)

// AddressFormat names the encoding of a chain's addresses.
type AddressFormat string

const (
	FormatP2PKH        AddressFormat = "base58check-p2pkh"
	FormatZcashT       AddressFormat = "zcash-transparent"
	FormatCashAddr     AddressFormat = "cashaddr"
	FormatEVM          AddressFormat = "evm-hex"
	FormatTron         AddressFormat = "tron-base58"
	FormatSolana       AddressFormat = "solana-base58"
	FormatMonero       AddressFormat = "monero-base58"
	FormatCardano      AddressFormat = "cardano-bech32"
	FormatCosmosBech32 AddressFormat = "cosmos-bech32"
)

// Scheme is the canonical derivation scheme of a chain.
type Scheme string

const (
	SchemeBIP44   Scheme = "bip44"
	SchemeKeypair Scheme = "keypair"
	SchemeSLIP10  Scheme = "slip10_ed25519"
	SchemeMonero  Scheme = "monero"
	SchemeCosmos  Scheme = "bip44_cosmos"
	SchemeCIP1852 Scheme = "bip44_cardano_shelley"
)

// FeeUnit is the unit a fee quote is expressed in.
type FeeUnit string

const (
	UnitSat      FeeUnit = "sat"
	UnitGwei     FeeUnit = "gwei"
	UnitLamport  FeeUnit = "lamport"
	UnitPiconero FeeUnit = "piconero"
	UnitNative   FeeUnit = "native"
)

// Scale returns the fee unit expressed in minor units of the fee asset.
func (u FeeUnit) Scale() uint64 {
	if u == UnitGwei {
		return 1_000_000_000
	}
	return 1
}

// Token describes an asset that rides on a base chain.
type Token struct {
	Contract string
	Decimals int32
}

// Descriptor is the immutable description of one chain.
type Descriptor struct {
	ID            ID
	Name          string
	Family        Family
	Curve         Curve
	AddressFormat AddressFormat
	Scheme        Scheme
	CoinType      uint32

	// Ed25519Path is a SLIP-10 path template (%d = address index). SOL uses
	// it for mnemonic wallets; ADA and ATOM use it as the fallback when the
	// canonical scheme is unavailable.
	Ed25519Path string

	// Decimals of the transferred asset (token decimals for token rails).
	Decimals int32

	FeeUnit     FeeUnit
	FeeAsset    string // price-feed symbol of the fee currency
	FeeDecimals int32

	// BaseOperationCost is the number of fee units a plain transfer consumes
	// (gas for EVM, 1 elsewhere).
	BaseOperationCost uint64

	DustThreshold uint64
	EVMChainID    int64
	Token         *Token

	// CanSend is false for receive-only chains.
	CanSend bool
}

// IsToken reports whether the descriptor is a token rail.
func (d *Descriptor) IsToken() bool {
	return d.Token != nil
}

// String returns the chain ID.
func (d *Descriptor) String() string {
	return string(d.ID)
}
