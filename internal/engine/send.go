package engine

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/Klingon-tech/klingvault/internal/broadcast"
	"github.com/Klingon-tech/klingvault/internal/derive"
	"github.com/Klingon-tech/klingvault/internal/fee"
	klog "github.com/Klingon-tech/klingvault/internal/log"
	"github.com/Klingon-tech/klingvault/internal/signer"
	"github.com/Klingon-tech/klingvault/internal/txbuild"
	"github.com/Klingon-tech/klingvault/pkg/chain"
	"github.com/Klingon-tech/klingvault/pkg/tx"
)

// SendRequest describes one outgoing payment.
type SendRequest struct {
	To string
	// Amount in the chain's display unit ("0.001").
	Amount string
	Fee    fee.Intent
	// FromIndex selects the paying address; 0 is the default.
	FromIndex uint32
	// DryRun builds and signs without broadcasting.
	DryRun bool
}

// SendResult reports what was built, signed and submitted.
type SendResult struct {
	TxID     string
	Quote    *fee.Quote
	Unsigned *tx.Unsigned
	Signed   *tx.Signed

	From   string
	To     string
	Amount string
	// Fee is the signed fee in display units with the asset ("0.0000374 BTC").
	Fee string

	// Broadcast is false until Submit hands the transaction to the network.
	Broadcast bool
}

// prepare quotes, builds and signs. Account state is fetched fresh for every
// call. Nothing is journaled or submitted.
func (b *base) prepare(ctx context.Context, req SendRequest) (*SendResult, error) {
	if !b.desc.CanSend {
		return nil, fmt.Errorf("%w: %s is receive-only", ErrReceiveOnly, b.desc.ID)
	}
	amount, err := txbuild.ParseAmount(b.desc, req.Amount)
	if err != nil {
		return nil, err
	}

	rec, err := b.load()
	if err != nil {
		return nil, err
	}
	defer rec.Key.Zero()
	from, ok := rec.Address(req.FromIndex)
	if !ok {
		return nil, fmt.Errorf("address index %d not derived yet; run receive first", req.FromIndex)
	}

	quote, err := b.QuoteFee(ctx, req.Fee)
	if err != nil {
		return nil, wrapChain(b.desc, "quote fee", err)
	}

	net, err := b.e.openNet(ctx, b.desc)
	if err != nil {
		return nil, wrapChain(b.desc, "open network", err)
	}
	defer closeNetwork(net)

	state, err := net.AccountState(ctx, from.Address)
	if err != nil {
		return nil, wrapChain(b.desc, "account state", err)
	}

	unsigned, err := txbuild.Build(b.desc, txbuild.Request{
		From:   from,
		To:     req.To,
		Amount: amount,
		Quote:  quote,
		State:  state,
	})
	if err != nil {
		return nil, err
	}

	key, err := derive.PrivateKey(rec.Key, b.desc, from.Index)
	if err != nil {
		return nil, wrapChain(b.desc, "signing key", err)
	}
	signed, err := signer.Sign(unsigned, key, b.e.signOptions()...)
	key.Zero()
	if err != nil {
		return nil, err
	}

	return &SendResult{
		TxID:     signed.TxID,
		Quote:    quote,
		Unsigned: unsigned,
		Signed:   signed,
		From:     from.Address,
		To:       req.To,
		Amount:   txbuild.FormatAmount(b.desc, amount),
		Fee:      FormatNative(b.desc, unsigned.Fee) + " " + b.desc.FeeAsset,
	}, nil
}

// submit broadcasts a prepared transaction exactly as it was signed.
func (b *base) submit(ctx context.Context, res *SendResult) error {
	if res == nil || res.Signed == nil {
		return fmt.Errorf("%s: nothing to submit", b.desc.ID)
	}
	if res.Signed.Chain != b.desc.ID {
		return fmt.Errorf("%s: transaction was signed for %s", b.desc.ID, res.Signed.Chain)
	}

	net, err := b.e.openNet(ctx, b.desc)
	if err != nil {
		return wrapChain(b.desc, "open network", err)
	}
	defer closeNetwork(net)

	history, err := b.e.store.OpenHistory(b.desc.ID)
	if err != nil {
		return err
	}
	defer history.Close()

	bc := broadcast.New(net, history, b.e.cfg.Network.Timeout)
	txid, err := bc.Broadcast(ctx, res.Signed, broadcast.Details{
		From:   res.From,
		To:     res.To,
		Amount: res.Amount,
		Fee:    res.Fee,
	})
	if txid != "" {
		res.TxID = txid
		res.Broadcast = true
	}
	return err
}

// send prepares and, unless req.DryRun, submits.
func (b *base) send(ctx context.Context, req SendRequest) (*SendResult, error) {
	res, err := b.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	if req.DryRun {
		klog.WithChain(klog.Wallet, string(b.desc.ID)).Info().Str("txid", res.TxID).Msg("Dry run: transaction signed, not broadcast")
		return res, nil
	}
	if err := b.submit(ctx, res); err != nil {
		return res, err
	}
	return res, nil
}

func (b *base) Prepare(ctx context.Context, req SendRequest) (*SendResult, error) {
	return b.prepare(ctx, req)
}

func (b *base) Submit(ctx context.Context, res *SendResult) error {
	if !b.desc.CanSend {
		return fmt.Errorf("%w: %s is receive-only", ErrReceiveOnly, b.desc.ID)
	}
	return b.submit(ctx, res)
}

// FormatNative renders minor units of the fee asset in display units.
func FormatNative(desc *chain.Descriptor, minor *big.Int) string {
	if minor == nil {
		return "?"
	}
	return decimal.NewFromBigInt(minor, -desc.FeeDecimals).String()
}
