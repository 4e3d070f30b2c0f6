package chain

import (
	"fmt"
	"sort"
	"strings"
)

// USDT contract addresses on mainnet.
const (
	USDTERC20Contract = "0xdAC17F958D2ee523a2206206994597C13D831ec7"
	USDTTRC20Contract = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"
)

// EVM gas constants.
const (
	TransferGas      = 21000
	TokenTransferGas = 100000
)

var registry = map[ID]*Descriptor{
	BTC: utxo(BTC, "Bitcoin", 0, FormatP2PKH, 546),
	LTC: utxo(LTC, "Litecoin", 2, FormatP2PKH, 546),
	// DOGE relays reject outputs under 0.01 DOGE.
	DOGE: utxo(DOGE, "Dogecoin", 3, FormatP2PKH, 1_000_000),
	DASH: utxo(DASH, "Dash", 5, FormatP2PKH, 546),
	ZEC:  utxo(ZEC, "Zcash", 133, FormatZcashT, 546),
	BCH:  utxo(BCH, "Bitcoin Cash", 145, FormatCashAddr, 546),

	ETH: evm(ETH, "Ethereum", "ETH", 1),
	BNB: evm(BNB, "BNB Smart Chain", "BNB", 56),
	POL: evm(POL, "Polygon", "POL", 137),

	USDTERC20: {
		ID:                USDTERC20,
		Name:              "Tether USD (ERC20)",
		Family:            FamilyAccount,
		Curve:             Secp256k1,
		AddressFormat:     FormatEVM,
		Scheme:            SchemeKeypair,
		CoinType:          60,
		Decimals:          6,
		FeeUnit:           UnitGwei,
		FeeAsset:          "ETH",
		FeeDecimals:       18,
		BaseOperationCost: TokenTransferGas,
		EVMChainID:        1,
		Token:             &Token{Contract: USDTERC20Contract, Decimals: 6},
		CanSend:           true,
	},
	USDTTRC20: {
		ID:                USDTTRC20,
		Name:              "Tether USD (TRC20)",
		Family:            FamilyAccount,
		Curve:             Secp256k1,
		AddressFormat:     FormatTron,
		Scheme:            SchemeKeypair,
		CoinType:          195,
		Decimals:          6,
		FeeUnit:           UnitNative,
		FeeAsset:          "TRX",
		FeeDecimals:       6,
		BaseOperationCost: 1,
		Token:             &Token{Contract: USDTTRC20Contract, Decimals: 6},
		CanSend:           true,
	},

	SOL: {
		ID:                SOL,
		Name:              "Solana",
		Family:            FamilyEd25519,
		Curve:             Ed25519,
		AddressFormat:     FormatSolana,
		Scheme:            SchemeKeypair,
		CoinType:          501,
		Ed25519Path:       "m/44'/501'/%d'/0'",
		Decimals:          9,
		FeeUnit:           UnitLamport,
		FeeAsset:          "SOL",
		FeeDecimals:       9,
		BaseOperationCost: 1,
		CanSend:           true,
	},
	XMR: {
		ID:                XMR,
		Name:              "Monero",
		Family:            FamilyPrivacy,
		Curve:             Ed25519,
		AddressFormat:     FormatMonero,
		Scheme:            SchemeMonero,
		CoinType:          128,
		Decimals:          12,
		FeeUnit:           UnitPiconero,
		FeeAsset:          "XMR",
		FeeDecimals:       12,
		BaseOperationCost: 1,
	},
	ADA: {
		ID:                ADA,
		Name:              "Cardano",
		Family:            FamilyEd25519,
		Curve:             Ed25519,
		AddressFormat:     FormatCardano,
		Scheme:            SchemeCIP1852,
		CoinType:          1815,
		Ed25519Path:       "m/1852'/1815'/0'/0'/%d'",
		Decimals:          6,
		FeeUnit:           UnitNative,
		FeeAsset:          "ADA",
		FeeDecimals:       6,
		BaseOperationCost: 1,
	},
	ATOM: {
		ID:                ATOM,
		Name:              "Cosmos Hub",
		Family:            FamilyAccount,
		Curve:             Secp256k1,
		AddressFormat:     FormatCosmosBech32,
		Scheme:            SchemeCosmos,
		CoinType:          118,
		Ed25519Path:       "m/44'/118'/0'/0'/%d'",
		Decimals:          6,
		FeeUnit:           UnitNative,
		FeeAsset:          "ATOM",
		FeeDecimals:       6,
		BaseOperationCost: 1,
	},
}

func utxo(id ID, name string, coinType uint32, format AddressFormat, dust uint64) *Descriptor {
	return &Descriptor{
		ID:                id,
		Name:              name,
		Family:            FamilyUTXO,
		Curve:             Secp256k1,
		AddressFormat:     format,
		Scheme:            SchemeBIP44,
		CoinType:          coinType,
		Decimals:          8,
		FeeUnit:           UnitSat,
		FeeAsset:          string(id),
		FeeDecimals:       8,
		BaseOperationCost: 1,
		DustThreshold:     dust,
		CanSend:           true,
	}
}

func evm(id ID, name, asset string, chainID int64) *Descriptor {
	return &Descriptor{
		ID:                id,
		Name:              name,
		Family:            FamilyAccount,
		Curve:             Secp256k1,
		AddressFormat:     FormatEVM,
		Scheme:            SchemeKeypair,
		CoinType:          60,
		Decimals:          18,
		FeeUnit:           UnitGwei,
		FeeAsset:          asset,
		FeeDecimals:       18,
		BaseOperationCost: TransferGas,
		EVMChainID:        chainID,
		CanSend:           true,
	}
}

// Lookup returns the descriptor for id. Matching is case-insensitive and
// accepts the slug form ("usdt_trc20").
func Lookup(id string) (*Descriptor, error) {
	key := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(id), "_", "-"))
	d, ok := registry[ID(key)]
	if !ok {
		return nil, fmt.Errorf("unknown chain %q", id)
	}
	return d.clone(), nil
}

// MustLookup is Lookup for compile-time IDs.
func MustLookup(id ID) *Descriptor {
	d, err := Lookup(string(id))
	if err != nil {
		panic(err)
	}
	return d
}

// All returns every descriptor sorted by ID.
func All() []*Descriptor {
	out := make([]*Descriptor, 0, len(registry))
	for _, d := range registry {
		out = append(out, d.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// clone returns a private copy so callers cannot alter the registry.
func (d *Descriptor) clone() *Descriptor {
	c := *d
	if d.Token != nil {
		t := *d.Token
		c.Token = &t
	}
	return &c
}
