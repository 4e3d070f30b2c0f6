package fee

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	klog "github.com/Klingon-tech/klingvault/internal/log"
	"github.com/Klingon-tech/klingvault/internal/rpcclient"
)

// DefaultFeedURL is the Coinbase spot price API.
const DefaultFeedURL = "https://api.coinbase.com/v2/prices"

// PriceFeed returns the USDT price of one unit of asset.
type PriceFeed interface {
	Price(ctx context.Context, asset string) (decimal.Decimal, error)
}

// CoinbaseFeed reads {base}/{ASSET}-USDT/spot.
type CoinbaseFeed struct {
	client *rpcclient.Client
}

// NewCoinbaseFeed creates a feed against base (DefaultFeedURL when empty).
func NewCoinbaseFeed(base string, timeout time.Duration, retries int) *CoinbaseFeed {
	if base == "" {
		base = DefaultFeedURL
	}
	return &CoinbaseFeed{client: rpcclient.NewWithTimeout(base, timeout, rpcclient.WithRetries(retries))}
}

type spotResponse struct {
	Data struct {
		Base     string `json:"base"`
		Currency string `json:"currency"`
		Amount   string `json:"amount"`
	} `json:"data"`
}

// Price fetches the spot price. Any failure, including a non-positive or
// unparsable amount, yields ErrPriceUnavailable.
func (f *CoinbaseFeed) Price(ctx context.Context, asset string) (decimal.Decimal, error) {
	pair := strings.ToUpper(asset) + "-USDT"
	var resp spotResponse
	if err := f.client.GetJSON(ctx, "/"+pair+"/spot", nil, &resp); err != nil {
		klog.Fee.Warn().Str("pair", pair).Err(err).Msg("price feed request failed")
		return decimal.Zero, fmt.Errorf("%w: %s: %v", ErrPriceUnavailable, pair, err)
	}
	price, err := decimal.NewFromString(resp.Data.Amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: bad amount %q", ErrPriceUnavailable, pair, resp.Data.Amount)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s: non-positive price %s", ErrPriceUnavailable, pair, price)
	}
	klog.Fee.Debug().Str("pair", pair).Str("price", price.String()).Msg("spot price")
	return price, nil
}

// StaticFeed serves fixed prices. Used in tests and offline quoting.
type StaticFeed map[string]decimal.Decimal

// Price returns the configured price for asset.
func (s StaticFeed) Price(_ context.Context, asset string) (decimal.Decimal, error) {
	p, ok := s[strings.ToUpper(asset)]
	if !ok || !p.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: no price for %s", ErrPriceUnavailable, asset)
	}
	return p, nil
}
