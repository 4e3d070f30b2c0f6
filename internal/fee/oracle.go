// Package fee converts a user's fee intent into chain-native fee
// parameters.
//
// Conversions truncate toward zero at the fee asset's minor unit so a quote
// never spends more than was asked for.
package fee

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	klog "github.com/Klingon-tech/klingvault/internal/log"
	"github.com/Klingon-tech/klingvault/pkg/chain"
)

// Fee errors.
var (
	ErrPriceUnavailable = errors.New("price unavailable")
	ErrInvalidIntent    = errors.New("invalid fee intent")
)

// Quote is an ephemeral fee quote for one send.
type Quote struct {
	Chain    chain.ID
	Intent   Intent
	FeeUnit  chain.FeeUnit
	FeeAsset string

	// NativeFee is the total fee in the fee asset, truncated to its
	// decimals.
	NativeFee decimal.Decimal

	// TotalMinor is NativeFee in minor units (sat, wei, lamports, sun).
	TotalMinor *big.Int

	// OperationPrice is the minor-unit price of one base operation
	// (gas price in wei on EVM chains). TotalMinor / BaseOperationCost,
	// truncated.
	OperationPrice *big.Int

	// UnitAmount is OperationPrice in the chain's fee unit (gwei on EVM).
	UnitAmount decimal.Decimal

	// SourcePrice is the USDT price used; zero when no lookup was needed.
	SourcePrice decimal.Decimal
	QuotedAt    time.Time
}

// Oracle produces fee quotes.
type Oracle struct {
	feed PriceFeed
	now  func() time.Time
}

// NewOracle creates an oracle over feed.
func NewOracle(feed PriceFeed) *Oracle {
	return &Oracle{feed: feed, now: time.Now}
}

// Quote converts intent into fee parameters for desc.
func (o *Oracle) Quote(ctx context.Context, desc *chain.Descriptor, intent Intent) (*Quote, error) {
	if !intent.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: fee must be positive", ErrInvalidIntent)
	}
	if desc.BaseOperationCost == 0 {
		return nil, fmt.Errorf("%w: %s has no base operation cost", ErrInvalidIntent, desc.ID)
	}

	q := &Quote{
		Chain:    desc.ID,
		Intent:   intent,
		FeeUnit:  desc.FeeUnit,
		FeeAsset: desc.FeeAsset,
	}
	baseCost := decimal.NewFromInt(int64(desc.BaseOperationCost))
	unitScale := decimal.NewFromInt(int64(desc.FeeUnit.Scale()))

	switch intent.Kind {
	case IntentNative:
		q.NativeFee = intent.Amount.Truncate(desc.FeeDecimals)

	case IntentFiat:
		if o.feed == nil {
			return nil, fmt.Errorf("%w: no price feed configured", ErrPriceUnavailable)
		}
		price, err := o.feed.Price(ctx, desc.FeeAsset)
		if err != nil {
			if errors.Is(err, ErrPriceUnavailable) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
		}
		if !price.IsPositive() {
			return nil, fmt.Errorf("%w: non-positive price %s", ErrPriceUnavailable, price)
		}
		q.SourcePrice = price
		// Extra precision before truncating so the division itself does
		// not round up.
		q.NativeFee = intent.Amount.DivRound(price, desc.FeeDecimals+8).Truncate(desc.FeeDecimals)

	case IntentUnits:
		if intent.Unit != desc.FeeUnit {
			return nil, fmt.Errorf("%w: %s fees are priced in %s, not %q", ErrInvalidIntent, desc.ID, desc.FeeUnit, intent.Unit)
		}
		perOp := intent.Amount.Mul(unitScale).Truncate(0)
		q.NativeFee = perOp.Mul(baseCost).Shift(-desc.FeeDecimals)

	default:
		return nil, fmt.Errorf("%w: unknown kind %s", ErrInvalidIntent, intent.Kind)
	}

	q.TotalMinor = q.NativeFee.Shift(desc.FeeDecimals).BigInt()
	if q.TotalMinor.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s is below one minor unit of %s", ErrInvalidIntent, intent, desc.FeeAsset)
	}
	q.OperationPrice = new(big.Int).Quo(q.TotalMinor, new(big.Int).SetUint64(desc.BaseOperationCost))
	if q.OperationPrice.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s does not cover %d operations", ErrInvalidIntent, intent, desc.BaseOperationCost)
	}
	q.UnitAmount = decimal.NewFromBigInt(q.OperationPrice, 0).Div(unitScale)
	q.QuotedAt = o.now()

	klog.WithChain(klog.Fee, string(desc.ID)).Info().
		Str("intent", intent.String()).
		Str("native_fee", q.NativeFee.String()).
		Str("unit_amount", q.UnitAmount.String()).
		Str("unit", string(q.FeeUnit)).
		Msg("fee quoted")
	return q, nil
}
