package fee

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Klingon-tech/klingvault/pkg/chain"
)

// IntentKind selects how an Intent's amount is interpreted.
type IntentKind int

const (
	// IntentNative is a total fee in the chain's fee asset (0.001 BTC).
	IntentNative IntentKind = iota
	// IntentFiat is a total fee in USDT, converted at the spot price.
	IntentFiat
	// IntentUnits is a price per base operation in a named fee unit
	// (30 gwei of gas price, 5 sat per byte). The unit must be the chain's.
	IntentUnits
)

func (k IntentKind) String() string {
	switch k {
	case IntentNative:
		return "native"
	case IntentFiat:
		return "fiat"
	case IntentUnits:
		return "units"
	default:
		return fmt.Sprintf("intent(%d)", int(k))
	}
}

// Intent is a user's fee request.
type Intent struct {
	Kind   IntentKind
	Amount decimal.Decimal
	// Unit is set for IntentUnits only.
	Unit chain.FeeUnit
}

// Native returns an intent for a total fee in the fee asset.
func Native(amount decimal.Decimal) Intent {
	return Intent{Kind: IntentNative, Amount: amount}
}

// Fiat returns an intent for a total fee in USDT.
func Fiat(amount decimal.Decimal) Intent {
	return Intent{Kind: IntentFiat, Amount: amount}
}

// Units returns an intent for a per-operation price in unit.
func Units(amount decimal.Decimal, unit chain.FeeUnit) Intent {
	return Intent{Kind: IntentUnits, Amount: amount, Unit: unit}
}

// unitSuffixes maps typed suffixes to fee units, longest first.
var unitSuffixes = []struct {
	suffix string
	unit   chain.FeeUnit
}{
	{"piconeros", chain.UnitPiconero},
	{"piconero", chain.UnitPiconero},
	{"lamports", chain.UnitLamport},
	{"lamport", chain.UnitLamport},
	{"gwei", chain.UnitGwei},
	{"sats", chain.UnitSat},
	{"sat", chain.UnitSat},
}

func (i Intent) String() string {
	switch i.Kind {
	case IntentFiat:
		return "$" + i.Amount.String()
	case IntentUnits:
		return i.Amount.String() + " " + string(i.Unit)
	default:
		return i.Amount.String()
	}
}

// ParseIntent parses the command-line form of a fee intent:
//
//	"$2", "2usdt", "2 usd"  fiat
//	"30gwei", "5sat"        per-operation price in fee units
//	"0.001"                 native total
func ParseIntent(s string) (Intent, error) {
	raw := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	kind := IntentNative
	var unit chain.FeeUnit
	switch {
	case strings.HasPrefix(raw, "$"):
		kind, raw = IntentFiat, raw[1:]
	case strings.HasSuffix(raw, "usdt"):
		kind, raw = IntentFiat, strings.TrimSuffix(raw, "usdt")
	case strings.HasSuffix(raw, "usd"):
		kind, raw = IntentFiat, strings.TrimSuffix(raw, "usd")
	default:
		for _, u := range unitSuffixes {
			if strings.HasSuffix(raw, u.suffix) {
				kind, unit, raw = IntentUnits, u.unit, strings.TrimSuffix(raw, u.suffix)
				break
			}
		}
	}

	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return Intent{}, fmt.Errorf("%w: %q", ErrInvalidIntent, s)
	}
	if !amount.IsPositive() {
		return Intent{}, fmt.Errorf("%w: fee must be positive", ErrInvalidIntent)
	}
	return Intent{Kind: kind, Amount: amount, Unit: unit}, nil
}
