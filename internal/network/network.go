// Package network implements the chain network capability: reading account
// state and submitting raw transactions.
package network

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/Klingon-tech/klingvault/internal/wallet"
	"github.com/Klingon-tech/klingvault/pkg/chain"
)

// ErrNoNetwork is returned for chains without a network adapter.
var ErrNoNetwork = errors.New("no network adapter for chain")

// ErrRejected marks a definitive rejection by the network.
var ErrRejected = errors.New("transaction rejected")

// RejectedError carries the network's rejection reason verbatim.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return "transaction rejected: " + e.Reason
}

// Is makes errors.Is(err, ErrRejected) match.
func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// AccountState is a fresh snapshot of an address on its chain. Only the
// fields relevant to the chain's family are filled.
type AccountState struct {
	Address string

	// Balance in minor units of the native asset.
	Balance *big.Int
	// TokenBalance in token minor units, for token rails.
	TokenBalance *big.Int

	Nonce uint64
	UTXOs []wallet.UTXO

	TronBlock       *TronBlock
	RecentBlockhash string
}

// TronBlock is the reference block a Tron transaction is bound to.
type TronBlock struct {
	Number    int64
	ID        []byte // 32-byte block id
	Timestamp int64  // milliseconds
}

// Network reads chain state and submits transactions.
//
// Submit makes exactly one attempt. It returns a *RejectedError when the
// network definitively refused the transaction; any other error means the
// outcome is unknown.
type Network interface {
	AccountState(ctx context.Context, addr string) (*AccountState, error)
	Submit(ctx context.Context, raw []byte) (string, error)
}

// Options configures network backends.
type Options struct {
	// URL is the chain's RPC or REST endpoint.
	URL string
	// APIKey is optional (Blockchair key, TronGrid key).
	APIKey  string
	Timeout time.Duration
	// Retries bounds read retries. Submissions never retry.
	Retries int
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return 15 * time.Second
	}
	return o.Timeout
}

// retry runs fn up to retries+1 times while it fails with a non-rejection
// error.
func retry(ctx context.Context, retries int, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
			case <-time.After(time.Duration(attempt) * 250 * time.Millisecond):
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
	}
	return err
}

// Open returns the network adapter for desc.
func Open(ctx context.Context, desc *chain.Descriptor, opts Options) (Network, error) {
	switch desc.AddressFormat {
	case chain.FormatP2PKH, chain.FormatZcashT, chain.FormatCashAddr:
		return NewBlockchair(desc, opts)
	case chain.FormatEVM:
		if opts.URL == "" {
			return nil, fmt.Errorf("%s: rpc url required", desc.ID)
		}
		return NewEVM(ctx, desc, opts)
	case chain.FormatTron:
		return NewTron(desc, opts), nil
	case chain.FormatSolana:
		if opts.URL == "" {
			opts.URL = DefaultSolanaURL
		}
		return NewSolana(opts), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoNetwork, desc.ID)
	}
}
