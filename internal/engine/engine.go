// Package engine wires the wallet components into per-chain backends. It is
// the function-level surface the CLI calls: create, view, receive,
// quote-fee, send and history.
package engine

import (
	"context"
	"fmt"

	"github.com/Klingon-tech/klingvault/config"
	"github.com/Klingon-tech/klingvault/internal/fee"
	klog "github.com/Klingon-tech/klingvault/internal/log"
	"github.com/Klingon-tech/klingvault/internal/network"
	"github.com/Klingon-tech/klingvault/internal/signer"
	"github.com/Klingon-tech/klingvault/internal/store"
	"github.com/Klingon-tech/klingvault/pkg/chain"
)

// NetworkOpener returns the network adapter for a chain.
type NetworkOpener func(ctx context.Context, desc *chain.Descriptor) (network.Network, error)

// Deps are the collaborators of an engine. Nil fields are built from the
// configuration.
type Deps struct {
	Feed        fee.PriceFeed
	OpenNetwork NetworkOpener
	// Password unlocks encrypted wallets and encrypts new ones.
	Password []byte
	// StoreOptions are passed to the wallet store after the password.
	StoreOptions []store.Option
}

// Engine holds the configuration and collaborators for one invocation.
type Engine struct {
	cfg     *config.Config
	store   *store.Store
	oracle  *fee.Oracle
	openNet NetworkOpener
}

// New creates an engine. No network connection is made until a backend
// needs one.
func New(cfg *config.Config, deps Deps) (*Engine, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	var opts []store.Option
	if len(deps.Password) > 0 {
		opts = append(opts, store.WithPassword(deps.Password))
	}
	opts = append(opts, deps.StoreOptions...)
	st, err := store.New(cfg.DataDir, opts...)
	if err != nil {
		return nil, err
	}

	feed := deps.Feed
	if feed == nil {
		feed = fee.NewCoinbaseFeed(cfg.PriceFeed.URL, cfg.PriceFeed.Timeout, cfg.Network.Retries)
	}

	e := &Engine{
		cfg:     cfg,
		store:   st,
		oracle:  fee.NewOracle(feed),
		openNet: deps.OpenNetwork,
	}
	if e.openNet == nil {
		e.openNet = e.defaultNetwork
	}
	return e, nil
}

// Close wipes cached secrets.
func (e *Engine) Close() {
	e.store.Close()
}

// Store returns the wallet store.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Backend returns the backend for a chain id or slug.
func (e *Engine) Backend(id string) (ChainBackend, error) {
	desc, err := chain.Lookup(id)
	if err != nil {
		return nil, err
	}
	return newBackend(e, desc), nil
}

// NetworkOptions returns the endpoint settings for desc.
func (e *Engine) NetworkOptions(desc *chain.Descriptor) network.Options {
	opts := network.Options{
		Timeout: e.cfg.Network.Timeout,
		Retries: e.cfg.Network.Retries,
	}
	switch desc.AddressFormat {
	case chain.FormatP2PKH, chain.FormatZcashT, chain.FormatCashAddr:
		opts.URL = e.cfg.Network.BlockchairURL
		opts.APIKey = e.cfg.Network.BlockchairKey
	case chain.FormatTron:
		opts.URL = e.cfg.RPCURL(desc.ID)
		opts.APIKey = e.cfg.Network.TronGridKey
	default:
		opts.URL = e.cfg.RPCURL(desc.ID)
	}
	return opts
}

func (e *Engine) defaultNetwork(ctx context.Context, desc *chain.Descriptor) (network.Network, error) {
	opts := e.NetworkOptions(desc)
	net, err := network.Open(ctx, desc, opts)
	if err != nil {
		return nil, err
	}
	klog.WithChain(klog.Network, string(desc.ID)).Debug().Str("url", opts.URL).Msg("Network opened")
	return net, nil
}

func (e *Engine) signOptions() []signer.Option {
	return []signer.Option{signer.WithZcashBranchID(e.cfg.Zcash.BranchID)}
}

// closeNetwork releases adapters that hold a connection.
func closeNetwork(net network.Network) {
	if c, ok := net.(interface{ Close() }); ok {
		c.Close()
	}
}

func wrapChain(desc *chain.Descriptor, op string, err error) error {
	return fmt.Errorf("%s %s: %w", op, desc.ID, err)
}
